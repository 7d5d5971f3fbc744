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

const eventColumns = `id, title, description, location, starts_at, ends_at, is_published, created_at, updated_at`

// EventRepository handles school event persistence.
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository constructs the repository.
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// List returns events ordered by start time, optionally published-only.
func (r *EventRepository) List(ctx context.Context, publishedOnly bool) ([]models.Event, error) {
	base := "FROM events"
	if publishedOnly {
		base += " WHERE is_published = true"
	}
	query := fmt.Sprintf("SELECT %s %s ORDER BY starts_at ASC", eventColumns, base)

	var events []models.Event
	if err := r.db.SelectContext(ctx, &events, query); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// Upcoming returns published events that have not ended yet.
func (r *EventRepository) Upcoming(ctx context.Context, now time.Time) ([]models.Event, error) {
	query := fmt.Sprintf("SELECT %s FROM events WHERE is_published = true AND ends_at >= $1 ORDER BY starts_at ASC", eventColumns)
	var events []models.Event
	if err := r.db.SelectContext(ctx, &events, query, now); err != nil {
		return nil, fmt.Errorf("list upcoming events: %w", err)
	}
	return events, nil
}

// FindByID retrieves one event.
func (r *EventRepository) FindByID(ctx context.Context, id string) (*models.Event, error) {
	query := fmt.Sprintf(`SELECT %s FROM events WHERE id = $1`, eventColumns)
	var event models.Event
	if err := r.db.GetContext(ctx, &event, query, id); err != nil {
		return nil, err
	}
	return &event, nil
}

// Create inserts an event row.
func (r *EventRepository) Create(ctx context.Context, e *models.Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now

	const query = `INSERT INTO events (id, title, description, location, starts_at, ends_at, is_published, created_at, updated_at)
	VALUES (:id, :title, :description, :location, :starts_at, :ends_at, :is_published, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, e); err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

// Update rewrites an event row.
func (r *EventRepository) Update(ctx context.Context, e *models.Event) error {
	e.UpdatedAt = time.Now().UTC()
	const query = `UPDATE events SET title = :title, description = :description, location = :location, starts_at = :starts_at, ends_at = :ends_at, is_published = :is_published, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, e); err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	return nil
}

// Delete removes an event row.
func (r *EventRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check event delete rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
