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

const calendarColumns = `id, title, description, event_type, category, term_id, grade_level, start_date, end_date, is_holiday, is_published, created_by, created_at, updated_at`

// CalendarRepository handles academic calendar event persistence.
type CalendarRepository struct {
	db *sqlx.DB
}

// NewCalendarRepository constructs the repository.
func NewCalendarRepository(db *sqlx.DB) *CalendarRepository {
	return &CalendarRepository{db: db}
}

// List returns events ordered by start date applying filters.
func (r *CalendarRepository) List(ctx context.Context, filter models.CalendarFilter) ([]models.CalendarEvent, error) {
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf(`SELECT %s FROM calendar_events`, calendarColumns))
	args := make([]interface{}, 0, 6)
	conditions := make([]string, 0, 6)

	if filter.TermID != "" {
		args = append(args, filter.TermID)
		conditions = append(conditions, fmt.Sprintf("term_id = $%d", len(args)))
	}
	if filter.EventType != "" {
		args = append(args, filter.EventType)
		conditions = append(conditions, fmt.Sprintf("event_type = $%d", len(args)))
	}
	if filter.GradeLevel != "" {
		args = append(args, filter.GradeLevel)
		conditions = append(conditions, fmt.Sprintf("grade_level = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conditions = append(conditions, fmt.Sprintf("end_date >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conditions = append(conditions, fmt.Sprintf("start_date <= $%d", len(args)))
	}
	if filter.Published != nil {
		args = append(args, *filter.Published)
		conditions = append(conditions, fmt.Sprintf("is_published = $%d", len(args)))
	}

	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY start_date ASC")

	var events []models.CalendarEvent
	if err := r.db.SelectContext(ctx, &events, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list calendar events: %w", err)
	}
	return events, nil
}

// FindByID loads one event.
func (r *CalendarRepository) FindByID(ctx context.Context, id string) (*models.CalendarEvent, error) {
	query := fmt.Sprintf(`SELECT %s FROM calendar_events WHERE id = $1`, calendarColumns)
	var event models.CalendarEvent
	if err := r.db.GetContext(ctx, &event, query, id); err != nil {
		return nil, err
	}
	return &event, nil
}

// Create inserts a calendar event row.
func (r *CalendarRepository) Create(ctx context.Context, event *models.CalendarEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.UpdatedAt = now

	const query = `INSERT INTO calendar_events (id, title, description, event_type, category, term_id, grade_level, start_date, end_date, is_holiday, is_published, created_by, created_at, updated_at)
	VALUES (:id, :title, :description, :event_type, :category, :term_id, :grade_level, :start_date, :end_date, :is_holiday, :is_published, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("create calendar event: %w", err)
	}
	return nil
}

// Update rewrites a calendar event row.
func (r *CalendarRepository) Update(ctx context.Context, event *models.CalendarEvent) error {
	event.UpdatedAt = time.Now().UTC()
	const query = `UPDATE calendar_events SET title = :title, description = :description, event_type = :event_type, category = :category, term_id = :term_id, grade_level = :grade_level, start_date = :start_date, end_date = :end_date, is_holiday = :is_holiday, is_published = :is_published, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("update calendar event: %w", err)
	}
	return nil
}

// Delete removes a calendar event row. Returns sql.ErrNoRows when absent.
func (r *CalendarRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM calendar_events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete calendar event: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check calendar delete rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
