package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-site-api/internal/models"
)

func newNewsletterRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestNewsletterRepositoryListWithStatusFilter(t *testing.T) {
	db, mock, cleanup := newNewsletterRepoMock(t)
	defer cleanup()
	repo := NewNewsletterRepository(db)

	rows := sqlmock.NewRows([]string{"id", "subject", "body_html", "status", "priority", "target_audience", "grade_levels", "attachments", "scheduled_for", "sent_at", "created_by", "created_at", "updated_at"}).
		AddRow("n1", "Week 1", "<p>hi</p>", "DRAFT", "NORMAL", "ALL_PARENTS", nil, nil, nil, nil, nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM newsletters WHERE 1=1 AND status = $1 ORDER BY created_at DESC LIMIT 20 OFFSET 0")).
		WithArgs("DRAFT").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM newsletters WHERE 1=1 AND status = $1")).
		WithArgs("DRAFT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := repo.List(context.Background(), models.NewsletterFilter{Status: models.NewsletterDraft})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewsletterRepositoryCreateRecipientsDefaults(t *testing.T) {
	db, mock, cleanup := newNewsletterRepoMock(t)
	defer cleanup()
	repo := NewNewsletterRepository(db)

	mock.ExpectExec("INSERT INTO newsletter_recipients").
		WillReturnResult(sqlmock.NewResult(2, 2))

	recipients := []models.NewsletterRecipient{
		{NewsletterID: "n1", ParentID: "p1", Email: "a@example.com", FullName: "Parent A"},
		{NewsletterID: "n1", ParentID: "p2", Email: "b@example.com", FullName: "Parent B"},
	}
	require.NoError(t, repo.CreateRecipients(context.Background(), recipients))
	for _, r := range recipients {
		assert.NotEmpty(t, r.ID)
		assert.Equal(t, models.RecipientPending, r.Status)
		assert.False(t, r.CreatedAt.IsZero())
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewsletterRepositoryUpdateRecipientStatus(t *testing.T) {
	db, mock, cleanup := newNewsletterRepoMock(t)
	defer cleanup()
	repo := NewNewsletterRepository(db)

	sentAt := time.Now().UTC()
	mock.ExpectExec("UPDATE newsletter_recipients SET status").
		WithArgs("r1", "SENT", nil, sentAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.UpdateRecipientStatus(context.Background(), "r1", models.RecipientSent, nil, &sentAt)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewsletterRepositoryDeleteRemovesRecipientsFirst(t *testing.T) {
	db, mock, cleanup := newNewsletterRepoMock(t)
	defer cleanup()
	repo := NewNewsletterRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM newsletter_recipients WHERE newsletter_id").
		WithArgs("n1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("DELETE FROM newsletters WHERE id").
		WithArgs("n1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), "n1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewsletterRepositoryDeleteMissingRow(t *testing.T) {
	db, mock, cleanup := newNewsletterRepoMock(t)
	defer cleanup()
	repo := NewNewsletterRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM newsletter_recipients WHERE newsletter_id").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM newsletters WHERE id").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
