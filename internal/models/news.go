package models

import "time"

// NewsArticle is a public site news post.
type NewsArticle struct {
	ID          string     `db:"id" json:"id"`
	Title       string     `db:"title" json:"title"`
	Summary     *string    `db:"summary" json:"summary,omitempty"`
	Body        string     `db:"body" json:"body"`
	CoverURL    *string    `db:"cover_url" json:"cover_url,omitempty"`
	IsPublished bool       `db:"is_published" json:"is_published"`
	PublishedAt *time.Time `db:"published_at" json:"published_at,omitempty"`
	AuthorID    *string    `db:"author_id" json:"author_id,omitempty"`
	AuthorName  *string    `db:"author_name" json:"author_name,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// Event is a school-hub event announced on the public site.
type Event struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Description *string   `db:"description" json:"description,omitempty"`
	Location    *string   `db:"location" json:"location,omitempty"`
	StartsAt    time.Time `db:"starts_at" json:"starts_at"`
	EndsAt      time.Time `db:"ends_at" json:"ends_at"`
	IsPublished bool      `db:"is_published" json:"is_published"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
