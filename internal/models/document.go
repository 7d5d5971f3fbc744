package models

import (
	"time"

	"github.com/lib/pq"
)

// Document represents one uploaded asset (PDF/image) plus its metadata.
// Tags live in a text[] column so no serialisation boundary is needed.
type Document struct {
	ID          string         `db:"id" json:"id"`
	Title       string         `db:"title" json:"title"`
	Description string         `db:"description" json:"description"`
	FileName    string         `db:"file_name" json:"file_name"`
	FileURL     string         `db:"file_url" json:"file_url"`
	FilePath    *string        `db:"file_path" json:"-"`
	FileSize    int64          `db:"file_size" json:"file_size"`
	MimeType    string         `db:"mime_type" json:"mime_type"`
	Category    string         `db:"category" json:"category"`
	Type        *string        `db:"type" json:"type,omitempty"`
	Tags        pq.StringArray `db:"tags" json:"tags"`
	IsPublished bool           `db:"is_published" json:"is_published"`
	AuthorID    *string        `db:"author_id" json:"author_id,omitempty"`
	AuthorName  *string        `db:"author_name" json:"author_name,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// DefaultDocumentCategory is applied when a document is created without one.
const DefaultDocumentCategory = "general"

// DocumentFilter narrows listing queries.
type DocumentFilter struct {
	Category  string
	Published *bool
	Search    string
	Tag       string
}

// CategoryCount pairs a category with its document count.
type CategoryCount struct {
	Category string `db:"category" json:"category"`
	Count    int    `db:"count" json:"count"`
}

// DocumentStats aggregates corpus-wide counts for the admin console.
type DocumentStats struct {
	Total       int             `json:"total"`
	Published   int             `json:"published"`
	Unpublished int             `json:"unpublished"`
	ByCategory  []CategoryCount `json:"by_category"`
}
