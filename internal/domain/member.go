package domain

import "time"

// Role enumerates the access levels a member can hold.
type Role string

const (
	RoleMember     Role = "member"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// Organization is the tenant boundary. Every other entity is scoped to
// exactly one organization (domains additionally carry a global
// uniqueness constraint on the domain name).
type Organization struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Slug      string    `json:"slug" db:"slug"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Member is a person within an organization. The member row backs the
// authenticated identity: the bearer token's subject resolves to a member.
type Member struct {
	ID             string    `json:"id" db:"id"`
	OrganizationID string    `json:"organization_id" db:"organization_id"`
	Email          string    `json:"email" db:"email"`
	FirstName      string    `json:"first_name" db:"first_name"`
	LastName       string    `json:"last_name" db:"last_name"`
	Role           Role      `json:"role" db:"role"`
	Active         bool      `json:"active" db:"active"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// MembershipStatus enumerates membership record states.
type MembershipStatus string

const (
	MembershipActive  MembershipStatus = "active"
	MembershipLapsed  MembershipStatus = "lapsed"
	MembershipPending MembershipStatus = "pending"
)

// Membership is a dated membership record for a member, e.g. an annual
// paid membership of a given type.
type Membership struct {
	ID             string           `json:"id" db:"id"`
	OrganizationID string           `json:"organization_id" db:"organization_id"`
	MemberID       string           `json:"member_id" db:"member_id"`
	Type           string           `json:"type" db:"type"`
	Status         MembershipStatus `json:"status" db:"status"`
	StartsAt       time.Time        `json:"starts_at" db:"starts_at"`
	EndsAt         *time.Time       `json:"ends_at" db:"ends_at"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at" db:"updated_at"`
}
