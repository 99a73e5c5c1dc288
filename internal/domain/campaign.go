package domain

import "time"

// CampaignStatus enumerates the lifecycle states of an email campaign.
type CampaignStatus string

const (
	CampaignDraft   CampaignStatus = "draft"
	CampaignSending CampaignStatus = "sending"
	CampaignSent    CampaignStatus = "sent"
	CampaignFailed  CampaignStatus = "failed"
)

// Campaign represents an email campaign targeting a mailing list.
// A campaign is dispatched at most once: the draft -> sending transition
// is a single conditional update, and the delivery counters are written
// once when the dispatch completes.
type Campaign struct {
	ID             string         `json:"id" db:"id"`
	OrganizationID string         `json:"organization_id" db:"organization_id"`
	ListID         *string        `json:"list_id" db:"list_id"`
	Name           string         `json:"name" db:"name"`
	Subject        string         `json:"subject" db:"subject"`
	FromName       string         `json:"from_name" db:"from_name"`
	FromEmail      string         `json:"from_email" db:"from_email"`
	ReplyTo        string         `json:"reply_to" db:"reply_to"`
	HTMLContent    string         `json:"html_content" db:"html_content"`
	Status         CampaignStatus `json:"status" db:"status"`

	// Dispatch counters, single-assignment per dispatch.
	TotalRecipients int `json:"total_recipients" db:"total_recipients"`
	SentCount       int `json:"sent_count" db:"sent_count"`
	DeliveredCount  int `json:"delivered_count" db:"delivered_count"`
	FailedCount     int `json:"failed_count" db:"failed_count"`

	StartedAt   *time.Time `json:"started_at" db:"started_at"`
	CompletedAt *time.Time `json:"completed_at" db:"completed_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// IsTerminal returns true if the campaign is in a final state.
func (c *Campaign) IsTerminal() bool {
	return c.Status == CampaignSent || c.Status == CampaignFailed
}
