package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/opencivic/memberhub/internal/domain"
	"github.com/opencivic/memberhub/internal/pkg/httputil"
)

// EventStore is the event persistence contract, satisfied by
// postgres.EventRepo.
type EventStore interface {
	CreateEvent(ctx context.Context, e *domain.Event) error
	GetEvent(ctx context.Context, orgID, id string) (*domain.Event, error)
	ListEvents(ctx context.Context, orgID string) ([]domain.Event, error)
	Register(ctx context.Context, orgID, eventID, memberID string) (*domain.EventRegistration, error)
	ListRegistrations(ctx context.Context, orgID, eventID string) ([]domain.EventRegistration, error)
	CancelRegistration(ctx context.Context, orgID, eventID, memberID string) error
}

// EventHandlers serves events and registrations.
type EventHandlers struct {
	store EventStore
}

// RegisterEventRoutes mounts the event endpoints.
func RegisterEventRoutes(r chi.Router, store EventStore) {
	h := &EventHandlers{store: store}

	r.Route("/events", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Post("/{id}/register", h.Register)
		r.Get("/{id}/registrations", h.ListRegistrations)
		r.Post("/{id}/cancel", h.Cancel)
	})
}

type createEventRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Location    string     `json:"location"`
	Capacity    *int       `json:"capacity"`
	StartsAt    time.Time  `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at"`
}

// Create handles POST /api/events. Admin only.
func (h *EventHandlers) Create(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}
	if !ident.CanManageOrg(ident.OrganizationID) {
		httputil.Forbidden(w, "admin role required")
		return
	}

	var req createEventRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Title == "" {
		httputil.BadRequest(w, "title is required")
		return
	}
	if req.StartsAt.IsZero() {
		httputil.BadRequest(w, "starts_at is required")
		return
	}
	if req.Capacity != nil && *req.Capacity <= 0 {
		httputil.BadRequest(w, "capacity must be positive")
		return
	}

	e := &domain.Event{
		OrganizationID: ident.OrganizationID,
		Title:          req.Title,
		Description:    req.Description,
		Location:       req.Location,
		Capacity:       req.Capacity,
		StartsAt:       req.StartsAt,
		EndsAt:         req.EndsAt,
	}
	if err := h.store.CreateEvent(r.Context(), e); err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.Created(w, e)
}

// List handles GET /api/events.
func (h *EventHandlers) List(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}

	events, err := h.store.ListEvents(r.Context(), ident.OrganizationID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if events == nil {
		events = []domain.Event{}
	}
	httputil.OK(w, map[string]interface{}{"events": events, "total": len(events)})
}

// Get handles GET /api/events/{id}.
func (h *EventHandlers) Get(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}

	e, err := h.store.GetEvent(r.Context(), ident.OrganizationID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, e)
}

// Register handles POST /api/events/{id}/register. The caller registers
// themselves; registrations past capacity are waitlisted.
func (h *EventHandlers) Register(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}

	reg, err := h.store.Register(r.Context(), ident.OrganizationID, chi.URLParam(r, "id"), ident.MemberID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.Created(w, reg)
}

// ListRegistrations handles GET /api/events/{id}/registrations.
func (h *EventHandlers) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}

	regs, err := h.store.ListRegistrations(r.Context(), ident.OrganizationID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if regs == nil {
		regs = []domain.EventRegistration{}
	}
	httputil.OK(w, map[string]interface{}{"registrations": regs, "total": len(regs)})
}

// Cancel handles POST /api/events/{id}/cancel for the caller's own
// registration.
func (h *EventHandlers) Cancel(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}

	if err := h.store.CancelRegistration(r.Context(), ident.OrganizationID, chi.URLParam(r, "id"), ident.MemberID); err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"status": "cancelled"})
}
