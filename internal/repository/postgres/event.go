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

// ErrEventNotFound indicates the event does not exist.
var ErrEventNotFound = errors.New("event not found")

// ErrAlreadyRegistered indicates the member is already registered.
var ErrAlreadyRegistered = errors.New("member already registered for event")

// EventRepo manages events and registrations.
type EventRepo struct{ db *sql.DB }

// NewEventRepo creates a Postgres-backed event repository.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// CreateEvent inserts an event.
func (r *EventRepo) CreateEvent(ctx context.Context, e *domain.Event) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO events (id, organization_id, title, description, location, capacity, starts_at, ends_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
	`, e.ID, e.OrganizationID, e.Title, e.Description, e.Location, e.Capacity, e.StartsAt, e.EndsAt)
	if err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

// GetEvent returns one event.
func (r *EventRepo) GetEvent(ctx context.Context, orgID, id string) (*domain.Event, error) {
	e := &domain.Event{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, organization_id, title, COALESCE(description,''), COALESCE(location,''),
		       capacity, starts_at, ends_at, created_at, updated_at
		FROM events
		WHERE id = $1 AND organization_id = $2
	`, id, orgID).Scan(
		&e.ID, &e.OrganizationID, &e.Title, &e.Description, &e.Location,
		&e.Capacity, &e.StartsAt, &e.EndsAt, &e.CreatedAt, &e.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

// ListEvents returns the organization's events, soonest first.
func (r *EventRepo) ListEvents(ctx context.Context, orgID string) ([]domain.Event, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, organization_id, title, COALESCE(description,''), COALESCE(location,''),
		       capacity, starts_at, ends_at, created_at, updated_at
		FROM events
		WHERE organization_id = $1
		ORDER BY starts_at
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(
			&e.ID, &e.OrganizationID, &e.Title, &e.Description, &e.Location,
			&e.Capacity, &e.StartsAt, &e.EndsAt, &e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Register adds a member to an event. Registrations past capacity are
// waitlisted; the capacity check and insert run in one statement so two
// concurrent registrations cannot both take the last confirmed seat.
func (r *EventRepo) Register(ctx context.Context, orgID, eventID, memberID string) (*domain.EventRegistration, error) {
	reg := &domain.EventRegistration{ID: uuid.New().String(), EventID: eventID, MemberID: memberID}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO event_registrations (id, event_id, member_id, status, registered_at)
		SELECT $1, e.id, $3,
		       CASE WHEN e.capacity IS NOT NULL AND (
		           SELECT COUNT(*) FROM event_registrations x
		           WHERE x.event_id = e.id AND x.status = 'confirmed'
		       ) >= e.capacity THEN 'waitlisted' ELSE 'confirmed' END,
		       NOW()
		FROM events e
		WHERE e.id = $2 AND e.organization_id = $4
		RETURNING status, registered_at
	`, reg.ID, eventID, memberID, orgID).Scan(&reg.Status, &reg.RegisteredAt)
	if err == sql.ErrNoRows {
		return nil, ErrEventNotFound
	}
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, ErrAlreadyRegistered
		}
		return nil, fmt.Errorf("register for event: %w", err)
	}
	return reg, nil
}

// ListRegistrations returns an event's registrations.
func (r *EventRepo) ListRegistrations(ctx context.Context, orgID, eventID string) ([]domain.EventRegistration, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT reg.id, reg.event_id, reg.member_id, reg.status, reg.registered_at
		FROM event_registrations reg
		JOIN events e ON e.id = reg.event_id
		WHERE reg.event_id = $1 AND e.organization_id = $2
		ORDER BY reg.registered_at
	`, eventID, orgID)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	var out []domain.EventRegistration
	for rows.Next() {
		var reg domain.EventRegistration
		if err := rows.Scan(&reg.ID, &reg.EventID, &reg.MemberID, &reg.Status, &reg.RegisteredAt); err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		out = append(out, reg)
	}
	return out, rows.Err()
}

// CancelRegistration cancels a member's registration.
func (r *EventRepo) CancelRegistration(ctx context.Context, orgID, eventID, memberID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE event_registrations reg
		SET status = 'cancelled'
		FROM events e
		WHERE reg.event_id = $1 AND reg.member_id = $2
		  AND e.id = reg.event_id AND e.organization_id = $3
		  AND reg.status <> 'cancelled'
	`, eventID, memberID, orgID)
	if err != nil {
		return fmt.Errorf("cancel registration: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrEventNotFound
	}
	return nil
}
