package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/school-site-api/internal/models"
)

const parentColumns = `id, full_name, email, phone, active, created_at, updated_at`
const studentColumns = `id, parent_id, full_name, grade_level, active, created_at, updated_at`

// FamilyRepository handles parent and student persistence.
type FamilyRepository struct {
	db *sqlx.DB
}

// NewFamilyRepository constructs the repository.
func NewFamilyRepository(db *sqlx.DB) *FamilyRepository {
	return &FamilyRepository{db: db}
}

// ListActiveParents returns every active parent, the ALL_PARENTS audience.
func (r *FamilyRepository) ListActiveParents(ctx context.Context) ([]models.Parent, error) {
	query := fmt.Sprintf(`SELECT %s FROM parents WHERE active = true ORDER BY full_name ASC`, parentColumns)
	var parents []models.Parent
	if err := r.db.SelectContext(ctx, &parents, query); err != nil {
		return nil, fmt.Errorf("list active parents: %w", err)
	}
	return parents, nil
}

// ListParentsByGradeLevels resolves the GRADE_LEVELS audience through the
// students table. A parent with two students in one grade appears once.
func (r *FamilyRepository) ListParentsByGradeLevels(ctx context.Context, grades []string) ([]models.Parent, error) {
	if len(grades) == 0 {
		return nil, nil
	}
	const query = `SELECT DISTINCT p.id, p.full_name, p.email, p.phone, p.active, p.created_at, p.updated_at
	FROM parents p
	JOIN students s ON s.parent_id = p.id
	WHERE p.active = true AND s.active = true AND s.grade_level = ANY($1)
	ORDER BY p.full_name ASC`
	var parents []models.Parent
	if err := r.db.SelectContext(ctx, &parents, query, pq.Array(grades)); err != nil {
		return nil, fmt.Errorf("list parents by grade levels: %w", err)
	}
	return parents, nil
}

// ListParents returns all parents for the admin console.
func (r *FamilyRepository) ListParents(ctx context.Context) ([]models.Parent, error) {
	query := fmt.Sprintf(`SELECT %s FROM parents ORDER BY full_name ASC`, parentColumns)
	var parents []models.Parent
	if err := r.db.SelectContext(ctx, &parents, query); err != nil {
		return nil, fmt.Errorf("list parents: %w", err)
	}
	return parents, nil
}

// FindParentByID retrieves one parent row.
func (r *FamilyRepository) FindParentByID(ctx context.Context, id string) (*models.Parent, error) {
	query := fmt.Sprintf(`SELECT %s FROM parents WHERE id = $1`, parentColumns)
	var parent models.Parent
	if err := r.db.GetContext(ctx, &parent, query, id); err != nil {
		return nil, err
	}
	return &parent, nil
}

// CreateParent inserts a parent row.
func (r *FamilyRepository) CreateParent(ctx context.Context, p *models.Parent) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	const query = `INSERT INTO parents (id, full_name, email, phone, active, created_at, updated_at)
	VALUES (:id, :full_name, :email, :phone, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, p); err != nil {
		return fmt.Errorf("create parent: %w", err)
	}
	return nil
}

// UpdateParent rewrites a parent row.
func (r *FamilyRepository) UpdateParent(ctx context.Context, p *models.Parent) error {
	p.UpdatedAt = time.Now().UTC()
	const query = `UPDATE parents SET full_name = :full_name, email = :email, phone = :phone, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, p); err != nil {
		return fmt.Errorf("update parent: %w", err)
	}
	return nil
}

// DeleteParent removes a parent and its students.
func (r *FamilyRepository) DeleteParent(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin parent delete tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM students WHERE parent_id = $1`, id); err != nil {
		return fmt.Errorf("delete parent students: %w", err)
	}

	var res sql.Result
	if res, err = tx.ExecContext(ctx, `DELETE FROM parents WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete parent: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check parent delete rows: %w", err)
	}
	if affected == 0 {
		err = sql.ErrNoRows
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit parent delete tx: %w", err)
	}
	return nil
}

// ListStudentsByParent returns a parent's students.
func (r *FamilyRepository) ListStudentsByParent(ctx context.Context, parentID string) ([]models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students WHERE parent_id = $1 ORDER BY full_name ASC`, studentColumns)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, parentID); err != nil {
		return nil, fmt.Errorf("list students by parent: %w", err)
	}
	return students, nil
}

// CreateStudent inserts a student row.
func (r *FamilyRepository) CreateStudent(ctx context.Context, s *models.Student) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now

	const query = `INSERT INTO students (id, parent_id, full_name, grade_level, active, created_at, updated_at)
	VALUES (:id, :parent_id, :full_name, :grade_level, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, s); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// UpdateStudent rewrites a student row.
func (r *FamilyRepository) UpdateStudent(ctx context.Context, s *models.Student) error {
	s.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET full_name = :full_name, grade_level = :grade_level, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, s); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// DeleteStudent removes a student row.
func (r *FamilyRepository) DeleteStudent(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check student delete rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
