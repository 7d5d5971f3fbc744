package models

import (
	"time"

	"github.com/lib/pq"
)

// NewsletterStatus tracks a newsletter through its send lifecycle.
type NewsletterStatus string

const (
	NewsletterDraft     NewsletterStatus = "DRAFT"
	NewsletterScheduled NewsletterStatus = "SCHEDULED"
	NewsletterSending   NewsletterStatus = "SENDING"
	NewsletterSent      NewsletterStatus = "SENT"
	NewsletterFailed    NewsletterStatus = "FAILED"
)

// NewsletterPriority orders newsletters in the admin console.
type NewsletterPriority string

const (
	NewsletterPriorityLow    NewsletterPriority = "LOW"
	NewsletterPriorityNormal NewsletterPriority = "NORMAL"
	NewsletterPriorityHigh   NewsletterPriority = "HIGH"
)

// NewsletterAudience selects the recipient population.
type NewsletterAudience string

const (
	AudienceAllParents  NewsletterAudience = "ALL_PARENTS"
	AudienceGradeLevels NewsletterAudience = "GRADE_LEVELS"
)

// Newsletter represents one mail-out and its dispatch state.
type Newsletter struct {
	ID             string             `db:"id" json:"id"`
	Subject        string             `db:"subject" json:"subject"`
	BodyHTML       string             `db:"body_html" json:"body_html"`
	Status         NewsletterStatus   `db:"status" json:"status"`
	Priority       NewsletterPriority `db:"priority" json:"priority"`
	TargetAudience NewsletterAudience `db:"target_audience" json:"target_audience"`
	GradeLevels    pq.StringArray     `db:"grade_levels" json:"grade_levels"`
	Attachments    pq.StringArray     `db:"attachments" json:"attachments"`
	ScheduledFor   *time.Time         `db:"scheduled_for" json:"scheduled_for,omitempty"`
	SentAt         *time.Time         `db:"sent_at" json:"sent_at,omitempty"`
	CreatedBy      *string            `db:"created_by" json:"created_by,omitempty"`
	CreatedAt      time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time          `db:"updated_at" json:"updated_at"`
}

// RecipientStatus tracks one recipient's delivery outcome independently.
type RecipientStatus string

const (
	RecipientPending RecipientStatus = "PENDING"
	RecipientSent    RecipientStatus = "SENT"
	RecipientFailed  RecipientStatus = "FAILED"
)

// NewsletterRecipient is created at send time, one row per resolved parent.
type NewsletterRecipient struct {
	ID           string          `db:"id" json:"id"`
	NewsletterID string          `db:"newsletter_id" json:"newsletter_id"`
	ParentID     string          `db:"parent_id" json:"parent_id"`
	Email        string          `db:"email" json:"email"`
	FullName     string          `db:"full_name" json:"full_name"`
	Status       RecipientStatus `db:"status" json:"status"`
	Error        *string         `db:"error" json:"error,omitempty"`
	SentAt       *time.Time      `db:"sent_at" json:"sent_at,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// NewsletterFilter narrows newsletter listings.
type NewsletterFilter struct {
	Status   NewsletterStatus
	Page     int
	PageSize int
}
