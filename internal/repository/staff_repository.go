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

const staffColumns = `id, full_name, position, department, email, phone, bio, photo_url, photo_path, sort_order, active, created_at, updated_at`

// StaffRepository handles staff roster persistence.
type StaffRepository struct {
	db *sqlx.DB
}

// NewStaffRepository constructs the repository.
func NewStaffRepository(db *sqlx.DB) *StaffRepository {
	return &StaffRepository{db: db}
}

// List returns staff members ordered for display.
func (r *StaffRepository) List(ctx context.Context, filter models.StaffFilter) ([]models.StaffMember, error) {
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf(`SELECT %s FROM staff_members`, staffColumns))
	args := make([]interface{}, 0, 3)
	conditions := make([]string, 0, 3)

	if filter.Department != "" {
		args = append(args, filter.Department)
		conditions = append(conditions, fmt.Sprintf("department = $%d", len(args)))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(full_name) LIKE $%d OR LOWER(position) LIKE $%d)", len(args), len(args)))
	}

	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY sort_order ASC, full_name ASC")

	var members []models.StaffMember
	if err := r.db.SelectContext(ctx, &members, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list staff: %w", err)
	}
	return members, nil
}

// FindByID loads one staff member.
func (r *StaffRepository) FindByID(ctx context.Context, id string) (*models.StaffMember, error) {
	query := fmt.Sprintf(`SELECT %s FROM staff_members WHERE id = $1`, staffColumns)
	var member models.StaffMember
	if err := r.db.GetContext(ctx, &member, query, id); err != nil {
		return nil, err
	}
	return &member, nil
}

// Create inserts a staff member row.
func (r *StaffRepository) Create(ctx context.Context, member *models.StaffMember) error {
	if member.ID == "" {
		member.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if member.CreatedAt.IsZero() {
		member.CreatedAt = now
	}
	member.UpdatedAt = now

	const query = `INSERT INTO staff_members (id, full_name, position, department, email, phone, bio, photo_url, photo_path, sort_order, active, created_at, updated_at)
	VALUES (:id, :full_name, :position, :department, :email, :phone, :bio, :photo_url, :photo_path, :sort_order, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, member); err != nil {
		return fmt.Errorf("create staff member: %w", err)
	}
	return nil
}

// Update rewrites a staff member row.
func (r *StaffRepository) Update(ctx context.Context, member *models.StaffMember) error {
	member.UpdatedAt = time.Now().UTC()
	const query = `UPDATE staff_members SET full_name = :full_name, position = :position, department = :department, email = :email, phone = :phone, bio = :bio, photo_url = :photo_url, photo_path = :photo_path, sort_order = :sort_order, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, member); err != nil {
		return fmt.Errorf("update staff member: %w", err)
	}
	return nil
}

// Delete removes a staff member row. Returns sql.ErrNoRows when absent.
func (r *StaffRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM staff_members WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete staff member: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check staff delete rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
