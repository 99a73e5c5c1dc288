package domain

import "time"

// Committee is a named group within an organization (board, events
// committee, finance committee, ...).
type Committee struct {
	ID             string    `json:"id" db:"id"`
	OrganizationID string    `json:"organization_id" db:"organization_id"`
	Name           string    `json:"name" db:"name"`
	Description    string    `json:"description" db:"description"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// CommitteePosition is a seat on a committee. A position carries a set of
// permission strings; a member's effective permissions are the union of
// the permissions of every position they hold.
type CommitteePosition struct {
	ID          string    `json:"id" db:"id"`
	CommitteeID string    `json:"committee_id" db:"committee_id"`
	MemberID    *string   `json:"member_id" db:"member_id"`
	Title       string    `json:"title" db:"title"`
	Permissions []string  `json:"permissions" db:"permissions"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}
