package domain

import "time"

// Event is an organization event members can register for.
type Event struct {
	ID             string     `json:"id" db:"id"`
	OrganizationID string     `json:"organization_id" db:"organization_id"`
	Title          string     `json:"title" db:"title"`
	Description    string     `json:"description" db:"description"`
	Location       string     `json:"location" db:"location"`
	Capacity       *int       `json:"capacity" db:"capacity"`
	StartsAt       time.Time  `json:"starts_at" db:"starts_at"`
	EndsAt         *time.Time `json:"ends_at" db:"ends_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// RegistrationStatus enumerates event registration states.
type RegistrationStatus string

const (
	RegistrationConfirmed  RegistrationStatus = "confirmed"
	RegistrationWaitlisted RegistrationStatus = "waitlisted"
	RegistrationCancelled  RegistrationStatus = "cancelled"
)

// EventRegistration links a member to an event.
type EventRegistration struct {
	ID           string             `json:"id" db:"id"`
	EventID      string             `json:"event_id" db:"event_id"`
	MemberID     string             `json:"member_id" db:"member_id"`
	Status       RegistrationStatus `json:"status" db:"status"`
	RegisteredAt time.Time          `json:"registered_at" db:"registered_at"`
}
