package models

import "time"

// StaffMember represents one staff roster entry on the public site.
type StaffMember struct {
	ID         string    `db:"id" json:"id"`
	FullName   string    `db:"full_name" json:"full_name"`
	Position   string    `db:"position" json:"position"`
	Department *string   `db:"department" json:"department,omitempty"`
	Email      *string   `db:"email" json:"email,omitempty"`
	Phone      *string   `db:"phone" json:"phone,omitempty"`
	Bio        *string   `db:"bio" json:"bio,omitempty"`
	PhotoURL   *string   `db:"photo_url" json:"photo_url,omitempty"`
	PhotoPath  *string   `db:"photo_path" json:"-"`
	SortOrder  int       `db:"sort_order" json:"sort_order"`
	Active     bool      `db:"active" json:"active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// StaffFilter narrows staff listings.
type StaffFilter struct {
	Department string
	Active     *bool
	Search     string
}
