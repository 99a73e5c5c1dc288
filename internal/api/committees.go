package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/opencivic/memberhub/internal/domain"
	"github.com/opencivic/memberhub/internal/pkg/httputil"
	"github.com/opencivic/memberhub/internal/service/permission"
)

// CommitteeStore is the committee persistence contract, satisfied by
// postgres.CommitteeRepo.
type CommitteeStore interface {
	CreateCommittee(ctx context.Context, c *domain.Committee) error
	ListCommittees(ctx context.Context, orgID string) ([]domain.Committee, error)
	GetCommittee(ctx context.Context, orgID, id string) (*domain.Committee, error)
	CreatePosition(ctx context.Context, orgID string, p *domain.CommitteePosition) error
	ListPositions(ctx context.Context, orgID, committeeID string) ([]domain.CommitteePosition, error)
	AssignPosition(ctx context.Context, orgID, positionID string, memberID *string) error
}

// CommitteeHandlers serves committees and positions. Position changes
// alter effective permissions, so assignments invalidate the permission
// cache for the affected members.
type CommitteeHandlers struct {
	store CommitteeStore
	perms *permission.Service
}

// RegisterCommitteeRoutes mounts the committee endpoints.
func RegisterCommitteeRoutes(r chi.Router, store CommitteeStore, perms *permission.Service) {
	h := &CommitteeHandlers{store: store, perms: perms}

	r.Route("/committees", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Post("/{id}/positions", h.CreatePosition)
		r.Get("/{id}/positions", h.ListPositions)
	})
	r.Put("/positions/{id}/assign", h.AssignPosition)
}

type createCommitteeRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Create handles POST /api/committees. Admin only.
func (h *CommitteeHandlers) Create(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}
	if !ident.CanManageOrg(ident.OrganizationID) {
		httputil.Forbidden(w, "admin role required")
		return
	}

	var req createCommitteeRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		httputil.BadRequest(w, "name is required")
		return
	}

	c := &domain.Committee{
		OrganizationID: ident.OrganizationID,
		Name:           req.Name,
		Description:    req.Description,
	}
	if err := h.store.CreateCommittee(r.Context(), c); err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.Created(w, c)
}

// List handles GET /api/committees.
func (h *CommitteeHandlers) List(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}

	committees, err := h.store.ListCommittees(r.Context(), ident.OrganizationID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if committees == nil {
		committees = []domain.Committee{}
	}
	httputil.OK(w, map[string]interface{}{"committees": committees, "total": len(committees)})
}

// Get handles GET /api/committees/{id}.
func (h *CommitteeHandlers) Get(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}

	c, err := h.store.GetCommittee(r.Context(), ident.OrganizationID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, c)
}

type createPositionRequest struct {
	Title       string   `json:"title"`
	MemberID    *string  `json:"member_id"`
	Permissions []string `json:"permissions"`
}

// CreatePosition handles POST /api/committees/{id}/positions. Admin only.
func (h *CommitteeHandlers) CreatePosition(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}
	if !ident.CanManageOrg(ident.OrganizationID) {
		httputil.Forbidden(w, "admin role required")
		return
	}

	var req createPositionRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Title == "" {
		httputil.BadRequest(w, "title is required")
		return
	}
	for _, p := range req.Permissions {
		if !permission.Known(p) {
			httputil.BadRequest(w, "unknown permission: "+p)
			return
		}
	}

	p := &domain.CommitteePosition{
		CommitteeID: chi.URLParam(r, "id"),
		MemberID:    req.MemberID,
		Title:       req.Title,
		Permissions: req.Permissions,
	}
	if err := h.store.CreatePosition(r.Context(), ident.OrganizationID, p); err != nil {
		writeServiceError(w, err)
		return
	}
	if req.MemberID != nil {
		h.perms.Invalidate(r.Context(), *req.MemberID)
	}
	httputil.Created(w, p)
}

// ListPositions handles GET /api/committees/{id}/positions.
func (h *CommitteeHandlers) ListPositions(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}

	positions, err := h.store.ListPositions(r.Context(), ident.OrganizationID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if positions == nil {
		positions = []domain.CommitteePosition{}
	}
	httputil.OK(w, map[string]interface{}{"positions": positions, "total": len(positions)})
}

type assignPositionRequest struct {
	MemberID *string `json:"member_id"`
}

// AssignPosition handles PUT /api/positions/{id}/assign. Admin only.
// A null member_id vacates the position.
func (h *CommitteeHandlers) AssignPosition(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}
	if !ident.CanManageOrg(ident.OrganizationID) {
		httputil.Forbidden(w, "admin role required")
		return
	}

	var req assignPositionRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.store.AssignPosition(r.Context(), ident.OrganizationID, id, req.MemberID); err != nil {
		writeServiceError(w, err)
		return
	}
	if req.MemberID != nil {
		h.perms.Invalidate(r.Context(), *req.MemberID)
	}
	httputil.OK(w, map[string]interface{}{"id": id, "member_id": req.MemberID})
}
