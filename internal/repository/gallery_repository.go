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

const galleryColumns = `id, title, description, album, file_url, file_path, mime_type, file_size, is_published, created_at, updated_at`

// GalleryRepository handles gallery media persistence.
type GalleryRepository struct {
	db *sqlx.DB
}

// NewGalleryRepository constructs the repository.
func NewGalleryRepository(db *sqlx.DB) *GalleryRepository {
	return &GalleryRepository{db: db}
}

// List returns gallery items newest-first.
func (r *GalleryRepository) List(ctx context.Context, filter models.GalleryFilter) ([]models.GalleryItem, error) {
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf(`SELECT %s FROM gallery_items`, galleryColumns))
	args := make([]interface{}, 0, 2)
	conditions := make([]string, 0, 2)

	if filter.Album != "" {
		args = append(args, filter.Album)
		conditions = append(conditions, fmt.Sprintf("album = $%d", len(args)))
	}
	if filter.Published != nil {
		args = append(args, *filter.Published)
		conditions = append(conditions, fmt.Sprintf("is_published = $%d", len(args)))
	}

	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC")

	var items []models.GalleryItem
	if err := r.db.SelectContext(ctx, &items, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list gallery items: %w", err)
	}
	return items, nil
}

// FindByID loads one gallery item.
func (r *GalleryRepository) FindByID(ctx context.Context, id string) (*models.GalleryItem, error) {
	query := fmt.Sprintf(`SELECT %s FROM gallery_items WHERE id = $1`, galleryColumns)
	var item models.GalleryItem
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		return nil, err
	}
	return &item, nil
}

// Albums returns the distinct album names in use.
func (r *GalleryRepository) Albums(ctx context.Context) ([]string, error) {
	var albums []string
	if err := r.db.SelectContext(ctx, &albums, `SELECT DISTINCT album FROM gallery_items ORDER BY album`); err != nil {
		return nil, fmt.Errorf("list gallery albums: %w", err)
	}
	return albums, nil
}

// Create inserts a gallery item row.
func (r *GalleryRepository) Create(ctx context.Context, item *models.GalleryItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	const query = `INSERT INTO gallery_items (id, title, description, album, file_url, file_path, mime_type, file_size, is_published, created_at, updated_at)
	VALUES (:id, :title, :description, :album, :file_url, :file_path, :mime_type, :file_size, :is_published, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, item); err != nil {
		return fmt.Errorf("create gallery item: %w", err)
	}
	return nil
}

// Update rewrites a gallery item's metadata.
func (r *GalleryRepository) Update(ctx context.Context, item *models.GalleryItem) error {
	item.UpdatedAt = time.Now().UTC()
	const query = `UPDATE gallery_items SET title = :title, description = :description, album = :album, is_published = :is_published, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, item); err != nil {
		return fmt.Errorf("update gallery item: %w", err)
	}
	return nil
}

// Delete removes a gallery item row. Returns sql.ErrNoRows when absent.
func (r *GalleryRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM gallery_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete gallery item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check gallery delete rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
