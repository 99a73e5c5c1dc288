package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/opencivic/memberhub/internal/domain"
	"github.com/opencivic/memberhub/internal/pkg/httputil"
)

// ListStore is the mailing-list persistence contract, satisfied by
// postgres.SubscriberRepo.
type ListStore interface {
	CreateList(ctx context.Context, l *domain.MailingList) error
	GetList(ctx context.Context, orgID, listID string) (*domain.MailingList, error)
	ListLists(ctx context.Context, orgID string) ([]domain.MailingList, error)
	ListSubscribers(ctx context.Context, orgID, listID string) ([]domain.Subscriber, error)
	AddSubscriber(ctx context.Context, s *domain.Subscriber) error
	Unsubscribe(ctx context.Context, orgID, subscriberID string, at time.Time) error
}

// ListHandlers serves mailing lists and subscribers.
type ListHandlers struct {
	store ListStore
}

// RegisterListRoutes mounts the mailing-list endpoints.
func RegisterListRoutes(r chi.Router, store ListStore) {
	h := &ListHandlers{store: store}

	r.Route("/lists", func(r chi.Router) {
		r.Post("/", h.CreateList)
		r.Get("/", h.ListLists)
		r.Get("/{id}", h.GetList)
		r.Get("/{id}/subscribers", h.ListSubscribers)
		r.Post("/{id}/subscribers", h.AddSubscriber)
	})
	r.Post("/subscribers/{id}/unsubscribe", h.Unsubscribe)
}

type createListRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CreateList handles POST /api/lists. Admin only.
func (h *ListHandlers) CreateList(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}
	if !ident.CanManageOrg(ident.OrganizationID) {
		httputil.Forbidden(w, "admin role required")
		return
	}

	var req createListRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		httputil.BadRequest(w, "name is required")
		return
	}

	now := time.Now().UTC()
	l := &domain.MailingList{
		OrganizationID: ident.OrganizationID,
		Name:           req.Name,
		Description:    req.Description,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := h.store.CreateList(r.Context(), l); err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.Created(w, l)
}

// ListLists handles GET /api/lists.
func (h *ListHandlers) ListLists(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}

	lists, err := h.store.ListLists(r.Context(), ident.OrganizationID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if lists == nil {
		lists = []domain.MailingList{}
	}
	httputil.OK(w, map[string]interface{}{"lists": lists, "total": len(lists)})
}

// GetList handles GET /api/lists/{id}.
func (h *ListHandlers) GetList(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}

	l, err := h.store.GetList(r.Context(), ident.OrganizationID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, l)
}

// ListSubscribers handles GET /api/lists/{id}/subscribers.
func (h *ListHandlers) ListSubscribers(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}

	subs, err := h.store.ListSubscribers(r.Context(), ident.OrganizationID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if subs == nil {
		subs = []domain.Subscriber{}
	}
	httputil.OK(w, map[string]interface{}{"subscribers": subs, "total": len(subs)})
}

type addSubscriberRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// AddSubscriber handles POST /api/lists/{id}/subscribers. Admin only.
// The list must exist; the subscriber lands in subscribed status.
func (h *ListHandlers) AddSubscriber(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}
	if !ident.CanManageOrg(ident.OrganizationID) {
		httputil.Forbidden(w, "admin role required")
		return
	}

	var req addSubscriberRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		httputil.BadRequest(w, "a valid email is required")
		return
	}

	listID := chi.URLParam(r, "id")
	if _, err := h.store.GetList(r.Context(), ident.OrganizationID, listID); err != nil {
		writeServiceError(w, err)
		return
	}

	s := &domain.Subscriber{
		OrganizationID: ident.OrganizationID,
		ListID:         listID,
		Email:          req.Email,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Status:         domain.SubscriberSubscribed,
	}
	if err := h.store.AddSubscriber(r.Context(), s); err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.Created(w, s)
}

// Unsubscribe handles POST /api/subscribers/{id}/unsubscribe.
func (h *ListHandlers) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.store.Unsubscribe(r.Context(), ident.OrganizationID, id, time.Now().UTC()); err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"status": "unsubscribed"})
}
