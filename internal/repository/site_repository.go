package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-site-api/internal/models"
)

const boardMemberColumns = `id, full_name, role, bio, photo_url, sort_order, created_at, updated_at`

// SiteRepository handles board members and site settings.
type SiteRepository struct {
	db *sqlx.DB
}

// NewSiteRepository constructs the repository.
func NewSiteRepository(db *sqlx.DB) *SiteRepository {
	return &SiteRepository{db: db}
}

// ListBoardMembers returns the board in display order.
func (r *SiteRepository) ListBoardMembers(ctx context.Context) ([]models.BoardMember, error) {
	query := fmt.Sprintf(`SELECT %s FROM board_members ORDER BY sort_order ASC, full_name ASC`, boardMemberColumns)
	var members []models.BoardMember
	if err := r.db.SelectContext(ctx, &members, query); err != nil {
		return nil, fmt.Errorf("list board members: %w", err)
	}
	return members, nil
}

// FindBoardMemberByID retrieves one board member.
func (r *SiteRepository) FindBoardMemberByID(ctx context.Context, id string) (*models.BoardMember, error) {
	query := fmt.Sprintf(`SELECT %s FROM board_members WHERE id = $1`, boardMemberColumns)
	var member models.BoardMember
	if err := r.db.GetContext(ctx, &member, query, id); err != nil {
		return nil, err
	}
	return &member, nil
}

// CreateBoardMember inserts a board member row.
func (r *SiteRepository) CreateBoardMember(ctx context.Context, m *models.BoardMember) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now

	const query = `INSERT INTO board_members (id, full_name, role, bio, photo_url, sort_order, created_at, updated_at)
	VALUES (:id, :full_name, :role, :bio, :photo_url, :sort_order, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, m); err != nil {
		return fmt.Errorf("create board member: %w", err)
	}
	return nil
}

// UpdateBoardMember rewrites a board member row.
func (r *SiteRepository) UpdateBoardMember(ctx context.Context, m *models.BoardMember) error {
	m.UpdatedAt = time.Now().UTC()
	const query = `UPDATE board_members SET full_name = :full_name, role = :role, bio = :bio, photo_url = :photo_url, sort_order = :sort_order, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, m); err != nil {
		return fmt.Errorf("update board member: %w", err)
	}
	return nil
}

// DeleteBoardMember removes a board member row.
func (r *SiteRepository) DeleteBoardMember(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM board_members WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete board member: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check board member delete rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListSettings returns every settings row.
func (r *SiteRepository) ListSettings(ctx context.Context) ([]models.Setting, error) {
	const query = `SELECT key, value, updated_by, updated_at FROM site_settings ORDER BY key ASC`
	var settings []models.Setting
	if err := r.db.SelectContext(ctx, &settings, query); err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	return settings, nil
}

// GetSetting retrieves one settings row by key.
func (r *SiteRepository) GetSetting(ctx context.Context, key string) (*models.Setting, error) {
	const query = `SELECT key, value, updated_by, updated_at FROM site_settings WHERE key = $1`
	var setting models.Setting
	if err := r.db.GetContext(ctx, &setting, query, key); err != nil {
		return nil, err
	}
	return &setting, nil
}

// UpsertSetting writes a settings row, inserting or overwriting by key.
func (r *SiteRepository) UpsertSetting(ctx context.Context, s *models.Setting) error {
	s.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO site_settings (key, value, updated_by, updated_at)
	VALUES (:key, :value, :updated_by, :updated_at)
	ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, s); err != nil {
		return fmt.Errorf("upsert setting: %w", err)
	}
	return nil
}

// DeleteSetting removes a settings row.
func (r *SiteRepository) DeleteSetting(ctx context.Context, key string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM site_settings WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("delete setting: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check setting delete rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
