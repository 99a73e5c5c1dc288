package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/opencivic/memberhub/internal/domain"
	"github.com/opencivic/memberhub/internal/service/domains"
)

// uniqueViolation is the Postgres error code for unique constraint hits.
const uniqueViolation = "23505"

// DomainRepo implements domains.Repository against PostgreSQL.
type DomainRepo struct{ db *sql.DB }

// NewDomainRepo creates a Postgres-backed custom domain repository.
func NewDomainRepo(db *sql.DB) *DomainRepo { return &DomainRepo{db: db} }

const domainColumns = `id, organization_id, domain, verification_token, status,
       verified_at, last_checked_at, created_at, updated_at`

func scanDomain(row interface{ Scan(...interface{}) error }) (*domain.CustomDomain, error) {
	d := &domain.CustomDomain{}
	err := row.Scan(
		&d.ID, &d.OrganizationID, &d.Domain, &d.VerificationToken, &d.Status,
		&d.VerifiedAt, &d.LastCheckedAt, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *DomainRepo) GetByID(ctx context.Context, id string) (*domain.CustomDomain, error) {
	d, err := scanDomain(r.db.QueryRowContext(ctx, `
		SELECT `+domainColumns+` FROM custom_domains WHERE id = $1
	`, id))
	if err == sql.ErrNoRows {
		return nil, domains.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get domain: %w", err)
	}
	return d, nil
}

func (r *DomainRepo) GetByName(ctx context.Context, name string) (*domain.CustomDomain, error) {
	d, err := scanDomain(r.db.QueryRowContext(ctx, `
		SELECT `+domainColumns+` FROM custom_domains WHERE domain = $1
	`, name))
	if err == sql.ErrNoRows {
		return nil, domains.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get domain by name: %w", err)
	}
	return d, nil
}

func (r *DomainRepo) ListByOrg(ctx context.Context, orgID string) ([]domain.CustomDomain, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+domainColumns+` FROM custom_domains
		WHERE organization_id = $1
		ORDER BY created_at DESC
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list domains: %w", err)
	}
	defer rows.Close()

	var out []domain.CustomDomain
	for rows.Next() {
		d, err := scanDomain(rows)
		if err != nil {
			return nil, fmt.Errorf("scan domain: %w", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (r *DomainRepo) Create(ctx context.Context, d *domain.CustomDomain) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO custom_domains
			(id, organization_id, domain, verification_token, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, d.ID, d.OrganizationID, d.Domain, d.VerificationToken, d.Status, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return domains.ErrDomainTaken
		}
		return fmt.Errorf("create domain: %w", err)
	}
	return nil
}

func (r *DomainRepo) MarkVerified(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE custom_domains
		SET status = 'verified', verified_at = $1, last_checked_at = $1, updated_at = NOW()
		WHERE id = $2
	`, at, id)
	if err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domains.ErrNotFound
	}
	return nil
}

// MarkFailed records a failed check. The status guard keeps verified
// terminal even if a stale verify attempt races a successful one.
func (r *DomainRepo) MarkFailed(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE custom_domains
		SET status = 'failed', last_checked_at = $1, updated_at = NOW()
		WHERE id = $2 AND status <> 'verified'
	`, at, id)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		// Either missing or already verified; both are non-errors for the
		// caller when the row exists.
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
