package models

import "time"

// GalleryItem represents one published media asset in a gallery album.
type GalleryItem struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Description *string   `db:"description" json:"description,omitempty"`
	Album       string    `db:"album" json:"album"`
	FileURL     string    `db:"file_url" json:"file_url"`
	FilePath    *string   `db:"file_path" json:"-"`
	MimeType    string    `db:"mime_type" json:"mime_type"`
	FileSize    int64     `db:"file_size" json:"file_size"`
	IsPublished bool      `db:"is_published" json:"is_published"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// GalleryFilter narrows gallery listings.
type GalleryFilter struct {
	Album     string
	Published *bool
}
