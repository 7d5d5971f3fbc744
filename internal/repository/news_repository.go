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

const newsColumns = `id, title, summary, body, cover_url, is_published, published_at, author_id, author_name, created_at, updated_at`

// NewsRepository handles news article persistence.
type NewsRepository struct {
	db *sqlx.DB
}

// NewNewsRepository constructs the repository.
func NewNewsRepository(db *sqlx.DB) *NewsRepository {
	return &NewsRepository{db: db}
}

// List returns articles newest-first, optionally published-only.
func (r *NewsRepository) List(ctx context.Context, publishedOnly bool) ([]models.NewsArticle, error) {
	base := "FROM news_articles WHERE 1=1"
	var conditions []string
	if publishedOnly {
		conditions = append(conditions, "is_published = true")
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC", newsColumns, base)
	var articles []models.NewsArticle
	if err := r.db.SelectContext(ctx, &articles, query); err != nil {
		return nil, fmt.Errorf("list news articles: %w", err)
	}
	return articles, nil
}

// FindByID retrieves one article.
func (r *NewsRepository) FindByID(ctx context.Context, id string) (*models.NewsArticle, error) {
	query := fmt.Sprintf(`SELECT %s FROM news_articles WHERE id = $1`, newsColumns)
	var article models.NewsArticle
	if err := r.db.GetContext(ctx, &article, query, id); err != nil {
		return nil, err
	}
	return &article, nil
}

// Create inserts an article row.
func (r *NewsRepository) Create(ctx context.Context, a *models.NewsArticle) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	const query = `INSERT INTO news_articles (id, title, summary, body, cover_url, is_published, published_at, author_id, author_name, created_at, updated_at)
	VALUES (:id, :title, :summary, :body, :cover_url, :is_published, :published_at, :author_id, :author_name, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, a); err != nil {
		return fmt.Errorf("create news article: %w", err)
	}
	return nil
}

// Update rewrites an article row.
func (r *NewsRepository) Update(ctx context.Context, a *models.NewsArticle) error {
	a.UpdatedAt = time.Now().UTC()
	const query = `UPDATE news_articles SET title = :title, summary = :summary, body = :body, cover_url = :cover_url, is_published = :is_published, published_at = :published_at, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, a); err != nil {
		return fmt.Errorf("update news article: %w", err)
	}
	return nil
}

// Delete removes an article row.
func (r *NewsRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM news_articles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete news article: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check news delete rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
