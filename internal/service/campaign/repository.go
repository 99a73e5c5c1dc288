package campaign

import (
	"context"
	"time"

	"github.com/opencivic/memberhub/internal/domain"
)

// Repository defines the data access contract for campaigns.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a single campaign. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, orgID, id string) (*domain.Campaign, error)

	// List returns campaigns matching the given filter, ordered by created_at DESC.
	List(ctx context.Context, orgID string, filter ListFilter) ([]domain.Campaign, int, error)

	// Create inserts a new campaign and returns its ID.
	Create(ctx context.Context, c *domain.Campaign) (string, error)

	// Update modifies a campaign. Only non-nil fields in the update are
	// applied, and only while the campaign is in draft status.
	Update(ctx context.Context, orgID, id string, u UpdateFields) error

	// Delete removes a campaign. Only draft campaigns can be deleted.
	Delete(ctx context.Context, orgID, id string) error

	// ClaimForSending atomically moves a draft campaign to sending status,
	// recording total recipients and the start time. The update is
	// conditional on the current status being draft; when another request
	// already claimed the campaign it returns ErrAlreadySending.
	ClaimForSending(ctx context.Context, orgID, id string, totalRecipients int, startedAt time.Time) error

	// FinalizeDispatch writes the terminal status and counters once at the
	// end of a dispatch run.
	FinalizeDispatch(ctx context.Context, orgID, id string, status domain.CampaignStatus, sent, delivered, failed int, completedAt time.Time) error
}

// SubscriberSource resolves a mailing list to its active recipients.
type SubscriberSource interface {
	// GetSubscribed returns the list's subscribers with status subscribed.
	GetSubscribed(ctx context.Context, listID string) ([]domain.Subscriber, error)
}

// ListFilter controls pagination and filtering for campaign lists.
type ListFilter struct {
	Status string
	Search string
	Limit  int
	Offset int
}

// UpdateFields holds the mutable fields for a campaign update.
// Nil fields are not applied.
type UpdateFields struct {
	Name        *string
	Subject     *string
	FromName    *string
	FromEmail   *string
	ReplyTo     *string
	HTMLContent *string
	ListID      *string
}
