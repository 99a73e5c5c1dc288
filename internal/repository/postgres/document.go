package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/opencivic/memberhub/internal/domain"
)

// ErrDocumentNotFound indicates the document does not exist.
var ErrDocumentNotFound = errors.New("document not found")

// DocumentRepo manages document metadata rows.
type DocumentRepo struct{ db *sql.DB }

// NewDocumentRepo creates a Postgres-backed document repository.
func NewDocumentRepo(db *sql.DB) *DocumentRepo { return &DocumentRepo{db: db} }

// Create inserts a document row.
func (r *DocumentRepo) Create(ctx context.Context, d *domain.Document) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO documents (id, organization_id, title, file_name, content_type, size_bytes, storage_key, uploaded_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	`, d.ID, d.OrganizationID, d.Title, d.FileName, d.ContentType, d.SizeBytes, d.StorageKey, d.UploadedBy)
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// Get returns one document.
func (r *DocumentRepo) Get(ctx context.Context, orgID, id string) (*domain.Document, error) {
	d := &domain.Document{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, organization_id, title, file_name, content_type, size_bytes, storage_key, uploaded_by, created_at
		FROM documents
		WHERE id = $1 AND organization_id = $2
	`, id, orgID).Scan(
		&d.ID, &d.OrganizationID, &d.Title, &d.FileName, &d.ContentType,
		&d.SizeBytes, &d.StorageKey, &d.UploadedBy, &d.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return d, nil
}

// List returns the organization's documents, newest first.
func (r *DocumentRepo) List(ctx context.Context, orgID string) ([]domain.Document, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, organization_id, title, file_name, content_type, size_bytes, storage_key, uploaded_by, created_at
		FROM documents
		WHERE organization_id = $1
		ORDER BY created_at DESC
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []domain.Document
	for rows.Next() {
		var d domain.Document
		if err := rows.Scan(
			&d.ID, &d.OrganizationID, &d.Title, &d.FileName, &d.ContentType,
			&d.SizeBytes, &d.StorageKey, &d.UploadedBy, &d.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Delete removes a document row and returns it so the caller can delete
// the stored object.
func (r *DocumentRepo) Delete(ctx context.Context, orgID, id string) (*domain.Document, error) {
	d, err := r.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if _, err := r.db.ExecContext(ctx, `
		DELETE FROM documents WHERE id = $1 AND organization_id = $2
	`, id, orgID); err != nil {
		return nil, fmt.Errorf("delete document: %w", err)
	}
	return d, nil
}
