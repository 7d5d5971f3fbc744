package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-site-api/internal/models"
)

const newsletterColumns = `id, subject, body_html, status, priority, target_audience, grade_levels, attachments, scheduled_for, sent_at, created_by, created_at, updated_at`

// NewsletterRepository handles newsletter and recipient persistence.
type NewsletterRepository struct {
	db *sqlx.DB
}

// NewNewsletterRepository constructs the repository.
func NewNewsletterRepository(db *sqlx.DB) *NewsletterRepository {
	return &NewsletterRepository{db: db}
}

// Create inserts a newsletter row.
func (r *NewsletterRepository) Create(ctx context.Context, n *models.Newsletter) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	n.UpdatedAt = now

	const query = `INSERT INTO newsletters (id, subject, body_html, status, priority, target_audience, grade_levels, attachments, scheduled_for, sent_at, created_by, created_at, updated_at)
	VALUES (:id, :subject, :body_html, :status, :priority, :target_audience, :grade_levels, :attachments, :scheduled_for, :sent_at, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, n); err != nil {
		return fmt.Errorf("create newsletter: %w", err)
	}
	return nil
}

// GetByID retrieves one newsletter row.
func (r *NewsletterRepository) GetByID(ctx context.Context, id string) (*models.Newsletter, error) {
	query := fmt.Sprintf(`SELECT %s FROM newsletters WHERE id = $1`, newsletterColumns)
	var n models.Newsletter
	if err := r.db.GetContext(ctx, &n, query, id); err != nil {
		return nil, err
	}
	return &n, nil
}

// List returns newsletters newest-first with total count.
func (r *NewsletterRepository) List(ctx context.Context, filter models.NewsletterFilter) ([]models.Newsletter, int, error) {
	base := "FROM newsletters WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", newsletterColumns, base, size, offset)

	var newsletters []models.Newsletter
	if err := r.db.SelectContext(ctx, &newsletters, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list newsletters: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count newsletters: %w", err)
	}

	return newsletters, total, nil
}

// Update rewrites a newsletter's editable fields.
func (r *NewsletterRepository) Update(ctx context.Context, n *models.Newsletter) error {
	n.UpdatedAt = time.Now().UTC()
	const query = `UPDATE newsletters SET subject = :subject, body_html = :body_html, priority = :priority, target_audience = :target_audience, grade_levels = :grade_levels, attachments = :attachments, scheduled_for = :scheduled_for, status = :status, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, n); err != nil {
		return fmt.Errorf("update newsletter: %w", err)
	}
	return nil
}

// UpdateStatus transitions a newsletter's lifecycle state.
func (r *NewsletterRepository) UpdateStatus(ctx context.Context, id string, status models.NewsletterStatus, sentAt *time.Time) error {
	const query = `UPDATE newsletters SET status = $2, sent_at = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, sentAt, time.Now().UTC()); err != nil {
		return fmt.Errorf("update newsletter status: %w", err)
	}
	return nil
}

// Delete removes a newsletter and its recipient rows.
func (r *NewsletterRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin newsletter delete tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM newsletter_recipients WHERE newsletter_id = $1`, id); err != nil {
		return fmt.Errorf("delete newsletter recipients: %w", err)
	}

	var res sql.Result
	if res, err = tx.ExecContext(ctx, `DELETE FROM newsletters WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete newsletter: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check newsletter delete rows: %w", err)
	}
	if affected == 0 {
		err = sql.ErrNoRows
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit newsletter delete tx: %w", err)
	}
	return nil
}

// CreateRecipients bulk-inserts PENDING recipient rows at send time.
func (r *NewsletterRepository) CreateRecipients(ctx context.Context, recipients []models.NewsletterRecipient) error {
	if len(recipients) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range recipients {
		if recipients[i].ID == "" {
			recipients[i].ID = uuid.NewString()
		}
		if recipients[i].CreatedAt.IsZero() {
			recipients[i].CreatedAt = now
		}
		if recipients[i].Status == "" {
			recipients[i].Status = models.RecipientPending
		}
	}

	const query = `INSERT INTO newsletter_recipients (id, newsletter_id, parent_id, email, full_name, status, error, sent_at, created_at)
	VALUES (:id, :newsletter_id, :parent_id, :email, :full_name, :status, :error, :sent_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, recipients); err != nil {
		return fmt.Errorf("create newsletter recipients: %w", err)
	}
	return nil
}

// ListRecipients returns recipient rows for a newsletter.
func (r *NewsletterRepository) ListRecipients(ctx context.Context, newsletterID string) ([]models.NewsletterRecipient, error) {
	const query = `SELECT id, newsletter_id, parent_id, email, full_name, status, error, sent_at, created_at FROM newsletter_recipients WHERE newsletter_id = $1 ORDER BY created_at ASC`
	var recipients []models.NewsletterRecipient
	if err := r.db.SelectContext(ctx, &recipients, query, newsletterID); err != nil {
		return nil, fmt.Errorf("list newsletter recipients: %w", err)
	}
	return recipients, nil
}

// UpdateRecipientStatus marks one recipient's delivery outcome.
func (r *NewsletterRepository) UpdateRecipientStatus(ctx context.Context, id string, status models.RecipientStatus, sendErr *string, sentAt *time.Time) error {
	const query = `UPDATE newsletter_recipients SET status = $2, error = $3, sent_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, sendErr, sentAt); err != nil {
		return fmt.Errorf("update recipient status: %w", err)
	}
	return nil
}
