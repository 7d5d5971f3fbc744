package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-site-api/internal/models"
)

func newDocumentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestDocumentRepositoryListFiltersByCategory(t *testing.T) {
	db, mock, cleanup := newDocumentRepoMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "title", "description", "file_name", "file_url", "file_path", "file_size", "mime_type", "category", "type", "tags", "is_published", "author_id", "author_name", "created_at", "updated_at"}).
		AddRow("d1", "Enrollment form", "", "form.pdf", "/uploads/documents/enrollment/form.pdf", nil, 1024, "application/pdf", "enrollment", nil, pq.StringArray{"forms"}, true, nil, nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM documents WHERE category = $1 AND is_published = $2 ORDER BY created_at DESC")).
		WithArgs("enrollment", true).
		WillReturnRows(rows)

	published := true
	docs, err := repo.List(context.Background(), models.DocumentFilter{Category: "enrollment", Published: &published})
	require.NoError(t, err)
	assert.Len(t, docs, 1)
	assert.Equal(t, "enrollment", docs[0].Category)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryListFiltersByTagAndSearch(t *testing.T) {
	db, mock, cleanup := newDocumentRepoMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM documents WHERE $1 = ANY(tags) AND (LOWER(title) LIKE $2 OR LOWER(description) LIKE $2) ORDER BY created_at DESC")).
		WithArgs("forms", "%enrollment%").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "description", "file_name", "file_url", "file_path", "file_size", "mime_type", "category", "type", "tags", "is_published", "author_id", "author_name", "created_at", "updated_at"}))

	docs, err := repo.List(context.Background(), models.DocumentFilter{Tag: "forms", Search: "Enrollment"})
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryCreateFillsDefaults(t *testing.T) {
	db, mock, cleanup := newDocumentRepoMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectExec("INSERT INTO documents").
		WillReturnResult(sqlmock.NewResult(1, 1))

	doc := &models.Document{Title: "Handbook", FileName: "handbook.pdf", Category: "policies"}
	require.NoError(t, repo.Create(context.Background(), doc))
	assert.NotEmpty(t, doc.ID)
	assert.False(t, doc.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryDeleteMissingRow(t *testing.T) {
	db, mock, cleanup := newDocumentRepoMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectExec("DELETE FROM documents WHERE id").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryStats(t *testing.T) {
	db, mock, cleanup := newDocumentRepoMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) AS total, COUNT(*) FILTER (WHERE is_published) AS published FROM documents")).
		WillReturnRows(sqlmock.NewRows([]string{"total", "published"}).AddRow(5, 3))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT category, COUNT(*) AS count FROM documents GROUP BY category")).
		WillReturnRows(sqlmock.NewRows([]string{"category", "count"}).
			AddRow("enrollment", 2).
			AddRow("policies", 3))

	stats, err := repo.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Total)
	assert.Equal(t, 3, stats.Published)
	assert.Equal(t, 2, stats.Unpublished)
	assert.Len(t, stats.ByCategory, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}
