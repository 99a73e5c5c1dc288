package domain

import "time"

// DomainStatus enumerates the verification lifecycle of a custom domain.
type DomainStatus string

const (
	DomainUnverified DomainStatus = "unverified"
	DomainPending    DomainStatus = "pending"
	DomainVerified   DomainStatus = "verified"
	DomainFailed     DomainStatus = "failed"
)

// CustomDomain represents an organization's custom domain and its
// verification state. The domain name is stored canonical (lowercased,
// trimmed) and is globally unique across organizations.
//
// The verification token is issued once at registration and never
// regenerated by the verify flow; a domain cannot reach DomainVerified
// without a matching DNS TXT record.
type CustomDomain struct {
	ID                string       `json:"id" db:"id"`
	OrganizationID    string       `json:"organization_id" db:"organization_id"`
	Domain            string       `json:"domain" db:"domain"`
	VerificationToken string       `json:"verification_token" db:"verification_token"`
	Status            DomainStatus `json:"status" db:"status"`
	VerifiedAt        *time.Time   `json:"verified_at" db:"verified_at"`
	LastCheckedAt     *time.Time   `json:"last_checked_at" db:"last_checked_at"`
	CreatedAt         time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at" db:"updated_at"`
}

// IsVerified reports whether the domain has completed verification.
// DomainVerified is terminal: repeated verify calls are no-op successes.
func (d *CustomDomain) IsVerified() bool {
	return d.Status == DomainVerified
}
