package campaign

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opencivic/memberhub/internal/config"
	"github.com/opencivic/memberhub/internal/domain"
	"github.com/opencivic/memberhub/internal/pkg/distlock"
	"github.com/opencivic/memberhub/internal/pkg/logger"
)

// LockFactory builds a distributed lock for a key. Nil disables dispatch
// locking (single-process deployments and tests).
type LockFactory func(key string) distlock.DistLock

// Service implements campaign business logic. All public methods are safe
// for concurrent use if the underlying repository is concurrency-safe.
type Service struct {
	repo   Repository
	subs   SubscriberSource
	sender Sender
	cfg    config.DispatchConfig
	locks  LockFactory

	// sleep is swapped out in tests to avoid real inter-batch delays.
	sleep func(time.Duration)
}

// NewService creates a campaign service backed by the given repository.
func NewService(repo Repository, subs SubscriberSource, sender Sender, cfg config.DispatchConfig, locks LockFactory) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxReportErrors <= 0 {
		cfg.MaxReportErrors = 10
	}
	return &Service{
		repo:   repo,
		subs:   subs,
		sender: sender,
		cfg:    cfg,
		locks:  locks,
		sleep:  time.Sleep,
	}
}

// Get returns a single campaign.
func (s *Service) Get(ctx context.Context, orgID, id string) (*domain.Campaign, error) {
	return s.repo.Get(ctx, orgID, id)
}

// List returns campaigns matching the filter.
func (s *Service) List(ctx context.Context, orgID string, f ListFilter) ([]domain.Campaign, int, error) {
	return s.repo.List(ctx, orgID, f)
}

// Create validates and persists a new campaign in draft status.
func (s *Service) Create(ctx context.Context, orgID string, input CreateInput) (*domain.Campaign, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if input.Subject == "" {
		return nil, fmt.Errorf("%w: subject is required", ErrInvalidInput)
	}
	if input.FromEmail == "" {
		return nil, fmt.Errorf("%w: from_email is required", ErrInvalidInput)
	}

	now := time.Now().UTC()
	c := &domain.Campaign{
		ID:             uuid.New().String(),
		OrganizationID: orgID,
		Name:           input.Name,
		Subject:        input.Subject,
		FromName:       input.FromName,
		FromEmail:      input.FromEmail,
		ReplyTo:        input.ReplyTo,
		HTMLContent:    input.HTMLContent,
		Status:         domain.CampaignDraft,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if input.ListID != "" {
		c.ListID = &input.ListID
	}

	id, err := s.repo.Create(ctx, c)
	if err != nil {
		return nil, err
	}
	c.ID = id
	return c, nil
}

// Update modifies mutable campaign fields. The repository rejects
// updates once the campaign leaves draft status.
func (s *Service) Update(ctx context.Context, orgID, id string, u UpdateFields) error {
	return s.repo.Update(ctx, orgID, id, u)
}

// Delete removes a campaign (draft only).
func (s *Service) Delete(ctx context.Context, orgID, id string) error {
	return s.repo.Delete(ctx, orgID, id)
}

// SendError records one recipient that could not be delivered to.
type SendError struct {
	Email string `json:"email"`
	Error string `json:"error"`
}

// DispatchResult summarizes one dispatch run. Errors carries at most the
// first MaxReportErrors failures; Failed is the true total.
type DispatchResult struct {
	CampaignID string      `json:"campaign_id"`
	Total      int         `json:"total"`
	Sent       int         `json:"sent"`
	Delivered  int         `json:"delivered"`
	Failed     int         `json:"failed"`
	Errors     []SendError `json:"errors,omitempty"`
}

// Dispatch sends a draft campaign to its list's subscribed recipients.
//
// Preconditions are checked without mutating anything: the campaign must
// exist, be in draft status, and have a list with at least one subscribed
// recipient. The campaign is then claimed with an atomic conditional
// status update, so a concurrent Dispatch for the same campaign loses the
// race and gets ErrAlreadySending.
//
// Recipients are processed in batches of BatchSize. Within a batch every
// recipient is rendered and sent on its own goroutine; the batch joins
// before the next one starts, and a single recipient failing never
// affects its siblings. Batches are paced by BatchDelay, with no delay
// after the last batch. Once the claim succeeds the loop and the final
// status write run detached from the caller's context, so a client
// disconnect or request timeout stops neither the remaining sends nor
// the sending -> sent transition.
func (s *Service) Dispatch(ctx context.Context, orgID, campaignID string) (*DispatchResult, error) {
	c, err := s.repo.Get(ctx, orgID, campaignID)
	if err != nil {
		return nil, err
	}
	if c.Status != domain.CampaignDraft {
		return nil, ErrAlreadySending
	}
	if c.ListID == nil || *c.ListID == "" {
		return nil, ErrMissingList
	}

	recipients, err := s.subs.GetSubscribed(ctx, *c.ListID)
	if err != nil {
		return nil, fmt.Errorf("load recipients: %w", err)
	}
	if len(recipients) == 0 {
		return nil, ErrNoRecipients
	}

	if s.locks != nil {
		lock := s.locks("campaign:dispatch:" + campaignID)
		acquired, err := lock.Acquire(ctx)
		if err != nil {
			return nil, fmt.Errorf("acquire dispatch lock: %w", err)
		}
		if !acquired {
			return nil, ErrAlreadySending
		}
		defer lock.Release(context.WithoutCancel(ctx))
	}

	startedAt := time.Now().UTC()
	if err := s.repo.ClaimForSending(ctx, orgID, campaignID, len(recipients), startedAt); err != nil {
		return nil, err
	}

	// The campaign is claimed; from here the run must reach FinalizeDispatch
	// even if the caller goes away, or the row is stranded in sending.
	runCtx := context.WithoutCancel(ctx)

	logger.Info("campaign dispatch started",
		"campaign_id", campaignID, "org_id", orgID, "recipients", len(recipients), "batch_size", s.cfg.BatchSize)

	result := s.runBatches(runCtx, c, recipients)

	status := domain.CampaignSent
	if result.Sent == 0 && result.Failed > 0 {
		status = domain.CampaignFailed
	}
	completedAt := time.Now().UTC()
	if err := s.repo.FinalizeDispatch(runCtx, orgID, campaignID, status, result.Sent, result.Delivered, result.Failed, completedAt); err != nil {
		// The sends happened; losing the counter write must not turn a
		// completed dispatch into a caller-visible failure.
		logger.Error("finalize dispatch failed",
			"campaign_id", campaignID, "error", err.Error(), "sent", result.Sent, "failed", result.Failed)
	}

	logger.Info("campaign dispatch completed",
		"campaign_id", campaignID, "total", result.Total, "sent", result.Sent, "failed", result.Failed,
		"duration_ms", time.Since(startedAt).Milliseconds())
	return result, nil
}

// runBatches executes the batched concurrent send loop.
func (s *Service) runBatches(ctx context.Context, c *domain.Campaign, recipients []domain.Subscriber) *DispatchResult {
	result := &DispatchResult{
		CampaignID: c.ID,
		Total:      len(recipients),
	}

	var mu sync.Mutex
	for start := 0; start < len(recipients); start += s.cfg.BatchSize {
		end := start + s.cfg.BatchSize
		if end > len(recipients) {
			end = len(recipients)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			sub := recipients[i]
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := s.sendOne(ctx, c, &sub)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					result.Failed++
					if len(result.Errors) < s.cfg.MaxReportErrors {
						result.Errors = append(result.Errors, SendError{Email: sub.Email, Error: err.Error()})
					}
					return
				}
				result.Sent++
				result.Delivered++
			}()
		}
		wg.Wait()

		if end < len(recipients) && s.cfg.BatchDelay() > 0 {
			s.sleep(s.cfg.BatchDelay())
		}
	}
	return result
}

// sendOne renders and delivers a single recipient's message. A panic in
// rendering or the sender is converted to an error so one recipient
// cannot take down the batch.
func (s *Service) sendOne(ctx context.Context, c *domain.Campaign, sub *domain.Subscriber) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("send panicked: %v", r)
			logger.Error("recipient send panicked", "campaign_id", c.ID, "recipient", sub.Email, "panic", fmt.Sprint(r))
		}
	}()

	msg := Message{
		To:        sub.Email,
		ToName:    sub.FirstName + " " + sub.LastName,
		FromName:  c.FromName,
		FromEmail: c.FromEmail,
		ReplyTo:   c.ReplyTo,
		Subject:   Render(c.Subject, sub),
		HTML:      Render(c.HTMLContent, sub),
	}

	if _, err := s.sender.Send(ctx, msg); err != nil {
		logger.Warn("recipient send failed", "campaign_id", c.ID, "recipient", sub.Email, "error", err.Error())
		return err
	}
	return nil
}

// CreateInput holds the fields for creating a new campaign.
type CreateInput struct {
	Name        string `json:"name"`
	Subject     string `json:"subject"`
	FromName    string `json:"from_name"`
	FromEmail   string `json:"from_email"`
	ReplyTo     string `json:"reply_to"`
	HTMLContent string `json:"html_content"`
	ListID      string `json:"list_id"`
}
