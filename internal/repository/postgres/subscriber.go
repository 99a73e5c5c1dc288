package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/opencivic/memberhub/internal/domain"
)

// ErrListNotFound indicates the mailing list does not exist.
var ErrListNotFound = errors.New("mailing list not found")

// ErrSubscriberNotFound indicates the subscriber does not exist.
var ErrSubscriberNotFound = errors.New("subscriber not found")

// ErrDuplicateSubscriber indicates the email is already on the list.
var ErrDuplicateSubscriber = errors.New("email already subscribed to this list")

// SubscriberRepo manages mailing lists and their subscribers. It also
// satisfies campaign.SubscriberSource for dispatch.
type SubscriberRepo struct{ db *sql.DB }

// NewSubscriberRepo creates a Postgres-backed subscriber repository.
func NewSubscriberRepo(db *sql.DB) *SubscriberRepo { return &SubscriberRepo{db: db} }

// GetSubscribed returns the list's recipients with status subscribed.
func (r *SubscriberRepo) GetSubscribed(ctx context.Context, listID string) ([]domain.Subscriber, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, organization_id, list_id, email,
		       COALESCE(first_name,''), COALESCE(last_name,''), status,
		       subscribed_at, unsubscribed_at, created_at, updated_at
		FROM subscribers
		WHERE list_id = $1 AND status = 'subscribed'
		ORDER BY subscribed_at
	`, listID)
	if err != nil {
		return nil, fmt.Errorf("get subscribed: %w", err)
	}
	defer rows.Close()

	var out []domain.Subscriber
	for rows.Next() {
		var s domain.Subscriber
		if err := rows.Scan(
			&s.ID, &s.OrganizationID, &s.ListID, &s.Email,
			&s.FirstName, &s.LastName, &s.Status,
			&s.SubscribedAt, &s.UnsubscribedAt, &s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListSubscribers returns every subscriber on a list regardless of status.
func (r *SubscriberRepo) ListSubscribers(ctx context.Context, orgID, listID string) ([]domain.Subscriber, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, organization_id, list_id, email,
		       COALESCE(first_name,''), COALESCE(last_name,''), status,
		       subscribed_at, unsubscribed_at, created_at, updated_at
		FROM subscribers
		WHERE list_id = $1 AND organization_id = $2
		ORDER BY subscribed_at
	`, listID, orgID)
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	defer rows.Close()

	var out []domain.Subscriber
	for rows.Next() {
		var s domain.Subscriber
		if err := rows.Scan(
			&s.ID, &s.OrganizationID, &s.ListID, &s.Email,
			&s.FirstName, &s.LastName, &s.Status,
			&s.SubscribedAt, &s.UnsubscribedAt, &s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// AddSubscriber subscribes an email to a list.
func (r *SubscriberRepo) AddSubscriber(ctx context.Context, s *domain.Subscriber) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO subscribers
			(id, organization_id, list_id, email, first_name, last_name,
			 status, subscribed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'subscribed', NOW(), NOW(), NOW())
	`, s.ID, s.OrganizationID, s.ListID, s.Email, s.FirstName, s.LastName)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicateSubscriber
		}
		return fmt.Errorf("add subscriber: %w", err)
	}
	return nil
}

// Unsubscribe flips a subscriber to unsubscribed. Idempotent.
func (r *SubscriberRepo) Unsubscribe(ctx context.Context, orgID, subscriberID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE subscribers
		SET status = 'unsubscribed', unsubscribed_at = $1, updated_at = NOW()
		WHERE id = $2 AND organization_id = $3
	`, at, subscriberID, orgID)
	if err != nil {
		return fmt.Errorf("unsubscribe: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrSubscriberNotFound
	}
	return nil
}

// CreateList creates a mailing list.
func (r *SubscriberRepo) CreateList(ctx context.Context, l *domain.MailingList) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO mailing_lists (id, organization_id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
	`, l.ID, l.OrganizationID, l.Name, l.Description)
	if err != nil {
		return fmt.Errorf("create list: %w", err)
	}
	return nil
}

// GetList returns one mailing list with its live subscriber count.
func (r *SubscriberRepo) GetList(ctx context.Context, orgID, listID string) (*domain.MailingList, error) {
	l := &domain.MailingList{}
	err := r.db.QueryRowContext(ctx, `
		SELECT l.id, l.organization_id, l.name, COALESCE(l.description,''),
		       (SELECT COUNT(*) FROM subscribers s WHERE s.list_id = l.id AND s.status = 'subscribed'),
		       l.created_at, l.updated_at
		FROM mailing_lists l
		WHERE l.id = $1 AND l.organization_id = $2
	`, listID, orgID).Scan(
		&l.ID, &l.OrganizationID, &l.Name, &l.Description,
		&l.SubscriberCount, &l.CreatedAt, &l.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrListNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get list: %w", err)
	}
	return l, nil
}

// ListLists returns the organization's mailing lists.
func (r *SubscriberRepo) ListLists(ctx context.Context, orgID string) ([]domain.MailingList, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT l.id, l.organization_id, l.name, COALESCE(l.description,''),
		       (SELECT COUNT(*) FROM subscribers s WHERE s.list_id = l.id AND s.status = 'subscribed'),
		       l.created_at, l.updated_at
		FROM mailing_lists l
		WHERE l.organization_id = $1
		ORDER BY l.created_at DESC
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list mailing lists: %w", err)
	}
	defer rows.Close()

	var out []domain.MailingList
	for rows.Next() {
		var l domain.MailingList
		if err := rows.Scan(
			&l.ID, &l.OrganizationID, &l.Name, &l.Description,
			&l.SubscriberCount, &l.CreatedAt, &l.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan list: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
