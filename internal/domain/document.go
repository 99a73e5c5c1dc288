package domain

import "time"

// Document is a stored file's metadata. The bytes live in object storage
// under StorageKey; the row is the source of truth for listing and
// access control.
type Document struct {
	ID             string    `json:"id" db:"id"`
	OrganizationID string    `json:"organization_id" db:"organization_id"`
	Title          string    `json:"title" db:"title"`
	FileName       string    `json:"file_name" db:"file_name"`
	ContentType    string    `json:"content_type" db:"content_type"`
	SizeBytes      int64     `json:"size_bytes" db:"size_bytes"`
	StorageKey     string    `json:"-" db:"storage_key"`
	UploadedBy     string    `json:"uploaded_by" db:"uploaded_by"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
