package domains

import (
	"context"
	"time"

	"github.com/opencivic/memberhub/internal/domain"
)

// Repository defines the data access contract for custom domains.
// Implementations must be safe for concurrent use.
type Repository interface {
	// GetByID returns a domain record. Returns ErrNotFound if absent.
	GetByID(ctx context.Context, id string) (*domain.CustomDomain, error)

	// GetByName returns a domain record by canonical name.
	// Returns ErrNotFound if absent.
	GetByName(ctx context.Context, name string) (*domain.CustomDomain, error)

	// ListByOrg returns an organization's domains, newest first.
	ListByOrg(ctx context.Context, orgID string) ([]domain.CustomDomain, error)

	// Create inserts a new domain record. Returns ErrDomainTaken when the
	// canonical name already exists for any organization.
	Create(ctx context.Context, d *domain.CustomDomain) error

	// MarkVerified sets status verified and records verified_at /
	// last_checked_at. Verified is terminal.
	MarkVerified(ctx context.Context, id string, at time.Time) error

	// MarkFailed sets status failed and records last_checked_at.
	// It must not overwrite a verified status.
	MarkFailed(ctx context.Context, id string, at time.Time) error
}
