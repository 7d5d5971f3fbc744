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

const documentColumns = `id, title, description, file_name, file_url, file_path, file_size, mime_type, category, type, tags, is_published, author_id, author_name, created_at, updated_at`

// DocumentRepository handles document metadata persistence.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs the repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create stores metadata for an uploaded document.
func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	const query = `INSERT INTO documents
	(id, title, description, file_name, file_url, file_path, file_size, mime_type, category, type, tags, is_published, author_id, author_name, created_at, updated_at)
	VALUES (:id, :title, :description, :file_name, :file_url, :file_path, :file_size, :mime_type, :category, :type, :tags, :is_published, :author_id, :author_name, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// GetByID retrieves one document row.
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	query := fmt.Sprintf(`SELECT %s FROM documents WHERE id = $1`, documentColumns)
	var doc models.Document
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		return nil, err
	}
	return &doc, nil
}

// List returns documents newest-first applying filters. A set category never
// leaks rows from other categories.
func (r *DocumentRepository) List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, error) {
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf(`SELECT %s FROM documents`, documentColumns))
	args := make([]interface{}, 0, 4)
	conditions := make([]string, 0, 4)

	if filter.Category != "" {
		args = append(args, filter.Category)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.Published != nil {
		args = append(args, *filter.Published)
		conditions = append(conditions, fmt.Sprintf("is_published = $%d", len(args)))
	}
	if filter.Tag != "" {
		args = append(args, filter.Tag)
		conditions = append(conditions, fmt.Sprintf("$%d = ANY(tags)", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(title) LIKE $%d OR LOWER(description) LIKE $%d)", len(args), len(args)))
	}

	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC")

	var docs []models.Document
	if err := r.db.SelectContext(ctx, &docs, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// Update rewrites the mutable metadata columns of a document.
func (r *DocumentRepository) Update(ctx context.Context, doc *models.Document) error {
	doc.UpdatedAt = time.Now().UTC()
	const query = `UPDATE documents SET title = :title, description = :description, category = :category, type = :type, tags = :tags, is_published = :is_published, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	return nil
}

// Delete removes a document row. Returns sql.ErrNoRows when nothing matched.
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check document delete rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Categories returns the distinct category keys in use.
func (r *DocumentRepository) Categories(ctx context.Context) ([]string, error) {
	var categories []string
	if err := r.db.SelectContext(ctx, &categories, `SELECT DISTINCT category FROM documents ORDER BY category`); err != nil {
		return nil, fmt.Errorf("list document categories: %w", err)
	}
	return categories, nil
}

// Stats aggregates total, publish-state and per-category counts.
func (r *DocumentRepository) Stats(ctx context.Context) (*models.DocumentStats, error) {
	stats := &models.DocumentStats{}

	var totals struct {
		Total     int `db:"total"`
		Published int `db:"published"`
	}
	const totalsQuery = `SELECT COUNT(*) AS total, COUNT(*) FILTER (WHERE is_published) AS published FROM documents`
	if err := r.db.GetContext(ctx, &totals, totalsQuery); err != nil {
		return nil, fmt.Errorf("document totals: %w", err)
	}
	stats.Total = totals.Total
	stats.Published = totals.Published
	stats.Unpublished = totals.Total - totals.Published

	const byCategoryQuery = `SELECT category, COUNT(*) AS count FROM documents GROUP BY category ORDER BY category`
	if err := r.db.SelectContext(ctx, &stats.ByCategory, byCategoryQuery); err != nil {
		return nil, fmt.Errorf("document category counts: %w", err)
	}

	return stats, nil
}
