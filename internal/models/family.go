package models

import "time"

// Parent is a newsletter recipient candidate linked to one or more students.
type Parent struct {
	ID        string    `db:"id" json:"id"`
	FullName  string    `db:"full_name" json:"full_name"`
	Email     string    `db:"email" json:"email"`
	Phone     *string   `db:"phone" json:"phone,omitempty"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Student carries the grade level used for newsletter targeting.
type Student struct {
	ID         string    `db:"id" json:"id"`
	ParentID   string    `db:"parent_id" json:"parent_id"`
	FullName   string    `db:"full_name" json:"full_name"`
	GradeLevel string    `db:"grade_level" json:"grade_level"`
	Active     bool      `db:"active" json:"active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}
