package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-site-api/internal/models"
)

func newTermRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestTermRepositoryListByYear(t *testing.T) {
	db, mock, cleanup := newTermRepoMock(t)
	defer cleanup()
	repo := NewTermRepository(db)

	rows := sqlmock.NewRows([]string{"id", "name", "academic_year", "start_date", "end_date", "is_active", "created_at", "updated_at"}).
		AddRow("t1", "Fall", "2026/2027", time.Now(), time.Now(), true, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM terms WHERE 1=1 AND academic_year = $1 ORDER BY start_date DESC")).
		WithArgs("2026/2027").
		WillReturnRows(rows)

	terms, err := repo.List(context.Background(), models.TermFilter{AcademicYear: "2026/2027"})
	require.NoError(t, err)
	assert.Len(t, terms, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTermRepositoryExistsByYearAndNameExcludesSelf(t *testing.T) {
	db, mock, cleanup := newTermRepoMock(t)
	defer cleanup()
	repo := NewTermRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM terms WHERE academic_year = $1 AND name = $2 AND id <> $3 LIMIT 1")).
		WithArgs("2026/2027", "Fall", "t1").
		WillReturnRows(sqlmock.NewRows([]string{"1"}))

	exists, err := repo.ExistsByYearAndName(context.Background(), "2026/2027", "Fall", "t1")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTermRepositorySetActiveDeactivatesOthers(t *testing.T) {
	db, mock, cleanup := newTermRepoMock(t)
	defer cleanup()
	repo := NewTermRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE terms SET is_active = FALSE, updated_at = $1 WHERE is_active = TRUE AND id <> $2")).
		WithArgs(sqlmock.AnyArg(), "t2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE terms SET is_active = TRUE, updated_at = $2 WHERE id = $1")).
		WithArgs("t2", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.SetActive(context.Background(), "t2"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTermRepositoryCountEvents(t *testing.T) {
	db, mock, cleanup := newTermRepoMock(t)
	defer cleanup()
	repo := NewTermRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM calendar_events WHERE term_id = $1")).
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	count, err := repo.CountEvents(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 4, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
