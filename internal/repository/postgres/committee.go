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

// ErrCommitteeNotFound indicates the committee does not exist.
var ErrCommitteeNotFound = errors.New("committee not found")

// ErrPositionNotFound indicates the committee position does not exist.
var ErrPositionNotFound = errors.New("committee position not found")

// CommitteeRepo manages committees and their positions.
type CommitteeRepo struct{ db *sql.DB }

// NewCommitteeRepo creates a Postgres-backed committee repository.
func NewCommitteeRepo(db *sql.DB) *CommitteeRepo { return &CommitteeRepo{db: db} }

// CreateCommittee inserts a committee.
func (r *CommitteeRepo) CreateCommittee(ctx context.Context, c *domain.Committee) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO committees (id, organization_id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
	`, c.ID, c.OrganizationID, c.Name, c.Description)
	if err != nil {
		return fmt.Errorf("create committee: %w", err)
	}
	return nil
}

// ListCommittees returns the organization's committees.
func (r *CommitteeRepo) ListCommittees(ctx context.Context, orgID string) ([]domain.Committee, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, organization_id, name, COALESCE(description,''), created_at, updated_at
		FROM committees
		WHERE organization_id = $1
		ORDER BY name
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list committees: %w", err)
	}
	defer rows.Close()

	var out []domain.Committee
	for rows.Next() {
		var c domain.Committee
		if err := rows.Scan(&c.ID, &c.OrganizationID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan committee: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetCommittee returns one committee.
func (r *CommitteeRepo) GetCommittee(ctx context.Context, orgID, id string) (*domain.Committee, error) {
	c := &domain.Committee{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, organization_id, name, COALESCE(description,''), created_at, updated_at
		FROM committees
		WHERE id = $1 AND organization_id = $2
	`, id, orgID).Scan(&c.ID, &c.OrganizationID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrCommitteeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get committee: %w", err)
	}
	return c, nil
}

// CreatePosition inserts a committee position. The committee must belong
// to the organization.
func (r *CommitteeRepo) CreatePosition(ctx context.Context, orgID string, p *domain.CommitteePosition) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO committee_positions (id, committee_id, member_id, title, permissions, created_at, updated_at)
		SELECT $1, c.id, $3, $4, $5, NOW(), NOW()
		FROM committees c
		WHERE c.id = $2 AND c.organization_id = $6
	`, p.ID, p.CommitteeID, p.MemberID, p.Title, pq.Array(p.Permissions), orgID)
	if err != nil {
		return fmt.Errorf("create position: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrCommitteeNotFound
	}
	return nil
}

// ListPositions returns a committee's positions.
func (r *CommitteeRepo) ListPositions(ctx context.Context, orgID, committeeID string) ([]domain.CommitteePosition, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.id, p.committee_id, p.member_id, p.title, COALESCE(p.permissions, '{}'), p.created_at, p.updated_at
		FROM committee_positions p
		JOIN committees c ON c.id = p.committee_id
		WHERE p.committee_id = $1 AND c.organization_id = $2
		ORDER BY p.title
	`, committeeID, orgID)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	defer rows.Close()

	var out []domain.CommitteePosition
	for rows.Next() {
		var p domain.CommitteePosition
		if err := rows.Scan(
			&p.ID, &p.CommitteeID, &p.MemberID, &p.Title,
			pq.Array(&p.Permissions), &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// AssignPosition sets or clears the member holding a position.
func (r *CommitteeRepo) AssignPosition(ctx context.Context, orgID, positionID string, memberID *string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE committee_positions p
		SET member_id = $1, updated_at = NOW()
		FROM committees c
		WHERE p.id = $2 AND c.id = p.committee_id AND c.organization_id = $3
	`, memberID, positionID, orgID)
	if err != nil {
		return fmt.Errorf("assign position: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrPositionNotFound
	}
	return nil
}
