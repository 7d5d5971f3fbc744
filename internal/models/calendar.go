package models

import "time"

// CalendarEventType classifies calendar entries.
type CalendarEventType string

const (
	CalendarEventAcademic CalendarEventType = "ACADEMIC"
	CalendarEventHoliday  CalendarEventType = "HOLIDAY"
	CalendarEventExam     CalendarEventType = "EXAM"
	CalendarEventActivity CalendarEventType = "ACTIVITY"
)

// CalendarEvent represents an academic calendar entry, optionally tied to a term.
type CalendarEvent struct {
	ID          string            `db:"id" json:"id"`
	Title       string            `db:"title" json:"title"`
	Description *string           `db:"description" json:"description,omitempty"`
	EventType   CalendarEventType `db:"event_type" json:"event_type"`
	Category    *string           `db:"category" json:"category,omitempty"`
	TermID      *string           `db:"term_id" json:"term_id,omitempty"`
	GradeLevel  *string           `db:"grade_level" json:"grade_level,omitempty"`
	StartDate   time.Time         `db:"start_date" json:"start_date"`
	EndDate     time.Time         `db:"end_date" json:"end_date"`
	IsHoliday   bool              `db:"is_holiday" json:"is_holiday"`
	IsPublished bool              `db:"is_published" json:"is_published"`
	CreatedBy   *string           `db:"created_by" json:"created_by,omitempty"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time         `db:"updated_at" json:"updated_at"`
}

// CalendarFilter narrows down events.
type CalendarFilter struct {
	TermID     string
	EventType  CalendarEventType
	GradeLevel string
	From       *time.Time
	To         *time.Time
	Published  *bool
}
