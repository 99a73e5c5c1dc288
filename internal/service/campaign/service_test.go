package campaign_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/opencivic/memberhub/internal/config"
	"github.com/opencivic/memberhub/internal/domain"
	"github.com/opencivic/memberhub/internal/service/campaign"
)

// memRepo is an in-memory campaign repository for unit testing.
type memRepo struct {
	mu        sync.Mutex
	campaigns map[string]*domain.Campaign // keyed by id
}

func newMemRepo() *memRepo {
	return &memRepo{campaigns: make(map[string]*domain.Campaign)}
}

func (m *memRepo) Get(_ context.Context, orgID, id string) (*domain.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok || c.OrganizationID != orgID {
		return nil, campaign.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memRepo) List(_ context.Context, orgID string, f campaign.ListFilter) ([]domain.Campaign, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Campaign
	for _, c := range m.campaigns {
		if c.OrganizationID != orgID {
			continue
		}
		if f.Status != "" && string(c.Status) != f.Status {
			continue
		}
		out = append(out, *c)
	}
	total := len(out)
	if f.Offset >= len(out) {
		return nil, total, nil
	}
	end := f.Offset + f.Limit
	if end > len(out) || f.Limit <= 0 {
		end = len(out)
	}
	return out[f.Offset:end], total, nil
}

func (m *memRepo) Create(_ context.Context, c *domain.Campaign) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == "" {
		return "", fmt.Errorf("id required")
	}
	cp := *c
	m.campaigns[cp.ID] = &cp
	return cp.ID, nil
}

func (m *memRepo) Update(_ context.Context, orgID, id string, u campaign.UpdateFields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok || c.OrganizationID != orgID {
		return campaign.ErrNotFound
	}
	if c.Status != domain.CampaignDraft {
		return campaign.ErrNotDraft
	}
	if u.Name != nil {
		c.Name = *u.Name
	}
	if u.Subject != nil {
		c.Subject = *u.Subject
	}
	return nil
}

func (m *memRepo) Delete(_ context.Context, orgID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok || c.OrganizationID != orgID {
		return campaign.ErrNotFound
	}
	if c.Status != domain.CampaignDraft {
		return campaign.ErrNotDraft
	}
	delete(m.campaigns, id)
	return nil
}

func (m *memRepo) ClaimForSending(_ context.Context, orgID, id string, total int, startedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok || c.OrganizationID != orgID {
		return campaign.ErrNotFound
	}
	// Conditional update: only a draft can be claimed.
	if c.Status != domain.CampaignDraft {
		return campaign.ErrAlreadySending
	}
	c.Status = domain.CampaignSending
	c.TotalRecipients = total
	c.StartedAt = &startedAt
	return nil
}

func (m *memRepo) FinalizeDispatch(_ context.Context, orgID, id string, status domain.CampaignStatus, sent, delivered, failed int, completedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok || c.OrganizationID != orgID {
		return campaign.ErrNotFound
	}
	c.Status = status
	c.SentCount = sent
	c.DeliveredCount = delivered
	c.FailedCount = failed
	c.CompletedAt = &completedAt
	return nil
}

// memSubs serves a fixed recipient set per list.
type memSubs struct {
	lists map[string][]domain.Subscriber
}

func (m *memSubs) GetSubscribed(_ context.Context, listID string) ([]domain.Subscriber, error) {
	return m.lists[listID], nil
}

// fakeSender records sends and fails the configured addresses.
type fakeSender struct {
	mu       sync.Mutex
	sent     []campaign.Message
	failFor  map[string]bool
	inFlight int
	maxSeen  int
}

func newFakeSender() *fakeSender {
	return &fakeSender{failFor: make(map[string]bool)}
}

func (f *fakeSender) Send(_ context.Context, msg campaign.Message) (string, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxSeen {
		f.maxSeen = f.inFlight
	}
	f.mu.Unlock()

	// Let the rest of the batch pile up so concurrency is observable.
	time.Sleep(time.Millisecond)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight--
	if f.failFor[msg.To] {
		return "", errors.New("mailbox unavailable")
	}
	f.sent = append(f.sent, msg)
	return fmt.Sprintf("msg-%d", len(f.sent)), nil
}

const testOrg = "org-1"

func recipients(n int) []domain.Subscriber {
	out := make([]domain.Subscriber, n)
	for i := range out {
		out[i] = domain.Subscriber{
			ID:        fmt.Sprintf("sub-%d", i),
			Email:     fmt.Sprintf("member%d@example.org", i),
			FirstName: "Pat",
			LastName:  fmt.Sprintf("Nr%d", i),
			Status:    domain.SubscriberSubscribed,
		}
	}
	return out
}

func testConfig() config.DispatchConfig {
	// Zero delay keeps the suite fast; pacing is covered separately.
	return config.DispatchConfig{BatchSize: 50, BatchDelayMs: 0, MaxReportErrors: 10}
}

func newTestService(repo *memRepo, subs *memSubs, sender *fakeSender) *campaign.Service {
	return campaign.NewService(repo, subs, sender, testConfig(), nil)
}

func createDraft(t *testing.T, svc *campaign.Service, listID string) *domain.Campaign {
	t.Helper()
	c, err := svc.Create(context.Background(), testOrg, campaign.CreateInput{
		Name:        "Newsletter",
		Subject:     "Hello {{first_name}}",
		FromName:    "Civic Org",
		FromEmail:   "news@example.org",
		HTMLContent: "<p>Hi {{first_name}} {{last_name}}, sent to {{email}}. {{unknown_tag}}</p>",
		ListID:      listID,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return c
}

func TestCreate(t *testing.T) {
	svc := newTestService(newMemRepo(), &memSubs{}, newFakeSender())
	c := createDraft(t, svc, "list-1")
	if c.Status != domain.CampaignDraft {
		t.Fatalf("expected draft, got %s", c.Status)
	}
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService(newMemRepo(), &memSubs{}, newFakeSender())
	_, err := svc.Create(context.Background(), testOrg, campaign.CreateInput{})
	if err == nil {
		t.Fatal("expected validation error")
	}
}

func TestGetNotFound(t *testing.T) {
	svc := newTestService(newMemRepo(), &memSubs{}, newFakeSender())
	_, err := svc.Get(context.Background(), testOrg, "nonexistent")
	if err != campaign.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDispatchHappyPath(t *testing.T) {
	repo := newMemRepo()
	subs := &memSubs{lists: map[string][]domain.Subscriber{"list-1": recipients(3)}}
	sender := newFakeSender()
	svc := newTestService(repo, subs, sender)
	c := createDraft(t, svc, "list-1")

	res, err := svc.Dispatch(context.Background(), testOrg, c.ID)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if res.Total != 3 || res.Sent != 3 || res.Failed != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}

	got, _ := svc.Get(context.Background(), testOrg, c.ID)
	if got.Status != domain.CampaignSent {
		t.Fatalf("expected sent status, got %s", got.Status)
	}
	if got.TotalRecipients != 3 || got.SentCount != 3 {
		t.Fatalf("counters not written: %+v", got)
	}
	if got.StartedAt == nil || got.CompletedAt == nil {
		t.Fatal("expected started_at and completed_at set")
	}
}

func TestDispatchRendersMergeTags(t *testing.T) {
	repo := newMemRepo()
	subs := &memSubs{lists: map[string][]domain.Subscriber{"list-1": {{
		ID: "sub-1", Email: "pat@example.org", FirstName: "Pat", LastName: "Jones",
		Status: domain.SubscriberSubscribed,
	}}}}
	sender := newFakeSender()
	svc := newTestService(repo, subs, sender)
	c := createDraft(t, svc, "list-1")

	if _, err := svc.Dispatch(context.Background(), testOrg, c.ID); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 send, got %d", len(sender.sent))
	}
	msg := sender.sent[0]
	if msg.Subject != "Hello Pat" {
		t.Fatalf("subject not rendered: %q", msg.Subject)
	}
	want := "<p>Hi Pat Jones, sent to pat@example.org. {{unknown_tag}}</p>"
	if msg.HTML != want {
		t.Fatalf("html not rendered: %q", msg.HTML)
	}
}

func TestDispatchNoListDoesNotMutate(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, &memSubs{}, newFakeSender())
	c := createDraft(t, svc, "")

	_, err := svc.Dispatch(context.Background(), testOrg, c.ID)
	if err != campaign.ErrMissingList {
		t.Fatalf("expected ErrMissingList, got %v", err)
	}
	got, _ := svc.Get(context.Background(), testOrg, c.ID)
	if got.Status != domain.CampaignDraft {
		t.Fatalf("precondition failure must not mutate, got %s", got.Status)
	}
}

func TestDispatchNoRecipientsDoesNotMutate(t *testing.T) {
	repo := newMemRepo()
	subs := &memSubs{lists: map[string][]domain.Subscriber{}}
	svc := newTestService(repo, subs, newFakeSender())
	c := createDraft(t, svc, "list-empty")

	_, err := svc.Dispatch(context.Background(), testOrg, c.ID)
	if err != campaign.ErrNoRecipients {
		t.Fatalf("expected ErrNoRecipients, got %v", err)
	}
	got, _ := svc.Get(context.Background(), testOrg, c.ID)
	if got.Status != domain.CampaignDraft {
		t.Fatalf("precondition failure must not mutate, got %s", got.Status)
	}
}

func TestDispatchAlreadySent(t *testing.T) {
	repo := newMemRepo()
	subs := &memSubs{lists: map[string][]domain.Subscriber{"list-1": recipients(2)}}
	svc := newTestService(repo, subs, newFakeSender())
	c := createDraft(t, svc, "list-1")

	if _, err := svc.Dispatch(context.Background(), testOrg, c.ID); err != nil {
		t.Fatalf("first dispatch: %v", err)
	}
	_, err := svc.Dispatch(context.Background(), testOrg, c.ID)
	if err != campaign.ErrAlreadySending {
		t.Fatalf("expected ErrAlreadySending, got %v", err)
	}
}

func TestClaimIsConditional(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, &memSubs{}, newFakeSender())
	c := createDraft(t, svc, "list-1")

	now := time.Now().UTC()
	if err := repo.ClaimForSending(context.Background(), testOrg, c.ID, 10, now); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if err := repo.ClaimForSending(context.Background(), testOrg, c.ID, 10, now); err != campaign.ErrAlreadySending {
		t.Fatalf("second claim must lose the race, got %v", err)
	}
}

func TestDispatchIsolatesFailures(t *testing.T) {
	repo := newMemRepo()
	recips := recipients(120)
	subs := &memSubs{lists: map[string][]domain.Subscriber{"list-1": recips}}
	sender := newFakeSender()
	sender.failFor["member7@example.org"] = true
	sender.failFor["member63@example.org"] = true
	svc := newTestService(repo, subs, sender)
	c := createDraft(t, svc, "list-1")

	res, err := svc.Dispatch(context.Background(), testOrg, c.ID)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if res.Total != 120 || res.Sent != 118 || res.Failed != 2 {
		t.Fatalf("expected 120/118/2, got %d/%d/%d", res.Total, res.Sent, res.Failed)
	}

	failed := map[string]bool{}
	for _, e := range res.Errors {
		failed[e.Email] = true
	}
	if !failed["member7@example.org"] || !failed["member63@example.org"] {
		t.Fatalf("failed addresses missing from errors: %+v", res.Errors)
	}

	// Concurrency never exceeds the batch size.
	if sender.maxSeen > 50 {
		t.Fatalf("observed %d concurrent sends, batch size is 50", sender.maxSeen)
	}

	got, _ := svc.Get(context.Background(), testOrg, c.ID)
	if got.Status != domain.CampaignSent {
		t.Fatalf("partial failure still completes as sent, got %s", got.Status)
	}
	if got.SentCount != 118 || got.FailedCount != 2 {
		t.Fatalf("counters not written: %+v", got)
	}
}

// ctxAwareRepo refuses writes once the context is done, the way a real
// database/sql ExecContext would.
type ctxAwareRepo struct{ *memRepo }

func (r *ctxAwareRepo) FinalizeDispatch(ctx context.Context, orgID, id string, status domain.CampaignStatus, sent, delivered, failed int, completedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.memRepo.FinalizeDispatch(ctx, orgID, id, status, sent, delivered, failed, completedAt)
}

// hangupSender cancels the caller's context on its first send, then
// fails any send whose own context has been canceled.
type hangupSender struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	sent   int
}

func (s *hangupSender) Send(ctx context.Context, _ campaign.Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	return fmt.Sprintf("msg-%d", s.sent), nil
}

func TestDispatchSurvivesCallerHangup(t *testing.T) {
	repo := newMemRepo()
	subs := &memSubs{lists: map[string][]domain.Subscriber{"list-1": recipients(4)}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sender := &hangupSender{cancel: cancel}

	cfg := config.DispatchConfig{BatchSize: 2, BatchDelayMs: 0, MaxReportErrors: 10}
	svc := campaign.NewService(&ctxAwareRepo{repo}, subs, sender, cfg, nil)
	c := createDraft(t, svc, "list-1")

	res, err := svc.Dispatch(ctx, testOrg, c.ID)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if ctx.Err() == nil {
		t.Fatal("caller context was never canceled; test exercises nothing")
	}
	if res.Sent != 4 || res.Failed != 0 {
		t.Fatalf("expected all 4 sent despite hangup, got sent=%d failed=%d: %+v",
			res.Sent, res.Failed, res.Errors)
	}

	// The claim must be resolved: sending -> sent, counters written.
	got, _ := svc.Get(context.Background(), testOrg, c.ID)
	if got.Status != domain.CampaignSent {
		t.Fatalf("campaign stranded in %s after caller hangup", got.Status)
	}
	if got.SentCount != 4 {
		t.Fatalf("counters not written: %+v", got)
	}
}

func TestDispatchCapsReportedErrors(t *testing.T) {
	repo := newMemRepo()
	recips := recipients(30)
	sender := newFakeSender()
	for _, r := range recips {
		sender.failFor[r.Email] = true
	}
	subs := &memSubs{lists: map[string][]domain.Subscriber{"list-1": recips}}
	svc := newTestService(repo, subs, sender)
	c := createDraft(t, svc, "list-1")

	res, err := svc.Dispatch(context.Background(), testOrg, c.ID)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if res.Failed != 30 {
		t.Fatalf("expected all 30 failed, got %d", res.Failed)
	}
	if len(res.Errors) != 10 {
		t.Fatalf("expected error report capped at 10, got %d", len(res.Errors))
	}

	// Nothing delivered: the campaign finishes as failed.
	got, _ := svc.Get(context.Background(), testOrg, c.ID)
	if got.Status != domain.CampaignFailed {
		t.Fatalf("expected failed status, got %s", got.Status)
	}
}

func TestDeleteDraftOnly(t *testing.T) {
	repo := newMemRepo()
	subs := &memSubs{lists: map[string][]domain.Subscriber{"list-1": recipients(1)}}
	svc := newTestService(repo, subs, newFakeSender())
	c := createDraft(t, svc, "list-1")

	if _, err := svc.Dispatch(context.Background(), testOrg, c.ID); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if err := svc.Delete(context.Background(), testOrg, c.ID); err != campaign.ErrNotDraft {
		t.Fatalf("expected ErrNotDraft, got %v", err)
	}
}

func TestListWithFilter(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, &memSubs{}, newFakeSender())

	createDraft(t, svc, "list-1")
	createDraft(t, svc, "list-1")

	list, total, err := svc.List(context.Background(), testOrg, campaign.ListFilter{Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 || len(list) != 2 {
		t.Fatalf("expected 2 campaigns, got %d (total %d)", len(list), total)
	}
}
