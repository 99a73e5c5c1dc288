package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/opencivic/memberhub/internal/domain"
	"github.com/opencivic/memberhub/internal/service/permission"
)

// ErrDuplicateMember indicates the email is already registered in the org.
var ErrDuplicateMember = errors.New("member email already exists in organization")

// ErrMembershipNotFound indicates the membership record does not exist.
var ErrMembershipNotFound = errors.New("membership not found")

// MemberRepo manages members and membership records. It also satisfies
// permission.Repository for grant resolution.
type MemberRepo struct{ db *sql.DB }

// NewMemberRepo creates a Postgres-backed member repository.
func NewMemberRepo(db *sql.DB) *MemberRepo { return &MemberRepo{db: db} }

const memberColumns = `id, organization_id, email, COALESCE(first_name,''),
       COALESCE(last_name,''), role, active, created_at, updated_at`

func scanMember(row interface{ Scan(...interface{}) error }) (*domain.Member, error) {
	m := &domain.Member{}
	err := row.Scan(
		&m.ID, &m.OrganizationID, &m.Email, &m.FirstName,
		&m.LastName, &m.Role, &m.Active, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// GetMember returns one member. Implements permission.Repository.
func (r *MemberRepo) GetMember(ctx context.Context, orgID, id string) (*domain.Member, error) {
	m, err := scanMember(r.db.QueryRowContext(ctx, `
		SELECT `+memberColumns+` FROM members WHERE id = $1 AND organization_id = $2
	`, id, orgID))
	if err == sql.ErrNoRows {
		return nil, permission.ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

// GetMemberByEmail resolves a member by email within an organization.
func (r *MemberRepo) GetMemberByEmail(ctx context.Context, orgID, email string) (*domain.Member, error) {
	m, err := scanMember(r.db.QueryRowContext(ctx, `
		SELECT `+memberColumns+` FROM members WHERE organization_id = $1 AND LOWER(email) = LOWER($2)
	`, orgID, email))
	if err == sql.ErrNoRows {
		return nil, permission.ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get member by email: %w", err)
	}
	return m, nil
}

// ListMembers returns the organization's members, newest first.
func (r *MemberRepo) ListMembers(ctx context.Context, orgID string) ([]domain.Member, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+memberColumns+` FROM members
		WHERE organization_id = $1
		ORDER BY created_at DESC
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var out []domain.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// CreateMember inserts a member.
func (r *MemberRepo) CreateMember(ctx context.Context, m *domain.Member) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Role == "" {
		m.Role = domain.RoleMember
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO members (id, organization_id, email, first_name, last_name, role, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
	`, m.ID, m.OrganizationID, m.Email, m.FirstName, m.LastName, m.Role, m.Active)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicateMember
		}
		return fmt.Errorf("create member: %w", err)
	}
	return nil
}

// UpdateMemberRole changes a member's role.
func (r *MemberRepo) UpdateMemberRole(ctx context.Context, orgID, id string, role domain.Role) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE members SET role = $1, updated_at = NOW()
		WHERE id = $2 AND organization_id = $3
	`, role, id, orgID)
	if err != nil {
		return fmt.Errorf("update member role: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return permission.ErrMemberNotFound
	}
	return nil
}

// PositionsForMember returns the committee positions a member holds.
// Implements permission.Repository.
func (r *MemberRepo) PositionsForMember(ctx context.Context, memberID string) ([]domain.CommitteePosition, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, committee_id, member_id, title, COALESCE(permissions, '{}'), created_at, updated_at
		FROM committee_positions
		WHERE member_id = $1
	`, memberID)
	if err != nil {
		return nil, fmt.Errorf("positions for member: %w", err)
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

// CreateMembership inserts a membership record.
func (r *MemberRepo) CreateMembership(ctx context.Context, m *domain.Membership) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Status == "" {
		m.Status = domain.MembershipPending
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO memberships (id, organization_id, member_id, type, status, starts_at, ends_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
	`, m.ID, m.OrganizationID, m.MemberID, m.Type, m.Status, m.StartsAt, m.EndsAt)
	if err != nil {
		return fmt.Errorf("create membership: %w", err)
	}
	return nil
}

// MembershipsForMember returns a member's membership history, newest first.
func (r *MemberRepo) MembershipsForMember(ctx context.Context, orgID, memberID string) ([]domain.Membership, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, organization_id, member_id, type, status, starts_at, ends_at, created_at, updated_at
		FROM memberships
		WHERE organization_id = $1 AND member_id = $2
		ORDER BY starts_at DESC
	`, orgID, memberID)
	if err != nil {
		return nil, fmt.Errorf("memberships for member: %w", err)
	}
	defer rows.Close()

	var out []domain.Membership
	for rows.Next() {
		var m domain.Membership
		if err := rows.Scan(
			&m.ID, &m.OrganizationID, &m.MemberID, &m.Type, &m.Status,
			&m.StartsAt, &m.EndsAt, &m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// UpdateMembershipStatus transitions a membership record.
func (r *MemberRepo) UpdateMembershipStatus(ctx context.Context, orgID, id string, status domain.MembershipStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE memberships SET status = $1, updated_at = NOW()
		WHERE id = $2 AND organization_id = $3
	`, status, id, orgID)
	if err != nil {
		return fmt.Errorf("update membership status: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrMembershipNotFound
	}
	return nil
}
