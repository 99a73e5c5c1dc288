package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/opencivic/memberhub/internal/domain"
)

// ErrOrgNotFound indicates the organization does not exist.
var ErrOrgNotFound = errors.New("organization not found")

// ErrDuplicateSlug indicates the organization slug is taken.
var ErrDuplicateSlug = errors.New("organization slug already in use")

// OrgRepo manages organization rows.
type OrgRepo struct{ db *sql.DB }

// NewOrgRepo creates a Postgres-backed organization repository.
func NewOrgRepo(db *sql.DB) *OrgRepo { return &OrgRepo{db: db} }

// Create inserts an organization.
func (r *OrgRepo) Create(ctx context.Context, o *domain.Organization) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO organizations (id, name, slug, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
	`, o.ID, o.Name, o.Slug)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicateSlug
		}
		return fmt.Errorf("create organization: %w", err)
	}
	return nil
}

// Get returns one organization.
func (r *OrgRepo) Get(ctx context.Context, id string) (*domain.Organization, error) {
	o := &domain.Organization{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, slug, created_at, updated_at FROM organizations WHERE id = $1
	`, id).Scan(&o.ID, &o.Name, &o.Slug, &o.CreatedAt, &o.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrOrgNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get organization: %w", err)
	}
	return o, nil
}
