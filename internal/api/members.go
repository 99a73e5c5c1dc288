package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/opencivic/memberhub/internal/domain"
	"github.com/opencivic/memberhub/internal/pkg/httputil"
	"github.com/opencivic/memberhub/internal/service/permission"
)

// MemberStore is the member persistence contract, satisfied by
// postgres.MemberRepo.
type MemberStore interface {
	GetMember(ctx context.Context, orgID, id string) (*domain.Member, error)
	ListMembers(ctx context.Context, orgID string) ([]domain.Member, error)
	CreateMember(ctx context.Context, m *domain.Member) error
	UpdateMemberRole(ctx context.Context, orgID, id string, role domain.Role) error
	CreateMembership(ctx context.Context, m *domain.Membership) error
	MembershipsForMember(ctx context.Context, orgID, memberID string) ([]domain.Membership, error)
	UpdateMembershipStatus(ctx context.Context, orgID, id string, status domain.MembershipStatus) error
}

// MemberHandlers serves member and membership records.
type MemberHandlers struct {
	store MemberStore
	perms *permission.Service
}

// RegisterMemberRoutes mounts the member endpoints.
func RegisterMemberRoutes(r chi.Router, store MemberStore, perms *permission.Service) {
	h := &MemberHandlers{store: store, perms: perms}

	r.Route("/members", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Put("/{id}/role", h.UpdateRole)
		r.Get("/{id}/permissions", h.Permissions)
		r.Get("/{id}/memberships", h.Memberships)
		r.Post("/{id}/memberships", h.CreateMembership)
	})
	r.Put("/memberships/{id}/status", h.UpdateMembershipStatus)
}

type createMemberRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}

// Create handles POST /api/members. Admin only.
func (h *MemberHandlers) Create(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}
	if !ident.CanManageOrg(ident.OrganizationID) {
		httputil.Forbidden(w, "admin role required")
		return
	}

	var req createMemberRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		httputil.BadRequest(w, "a valid email is required")
		return
	}
	role := domain.Role(req.Role)
	switch role {
	case "", domain.RoleMember, domain.RoleAdmin:
	default:
		httputil.BadRequest(w, "role must be member or admin")
		return
	}

	m := &domain.Member{
		OrganizationID: ident.OrganizationID,
		Email:          req.Email,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Role:           role,
		Active:         true,
	}
	if err := h.store.CreateMember(r.Context(), m); err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.Created(w, m)
}

// List handles GET /api/members.
func (h *MemberHandlers) List(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}

	members, err := h.store.ListMembers(r.Context(), ident.OrganizationID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if members == nil {
		members = []domain.Member{}
	}
	httputil.OK(w, map[string]interface{}{"members": members, "total": len(members)})
}

// Get handles GET /api/members/{id}.
func (h *MemberHandlers) Get(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}

	m, err := h.store.GetMember(r.Context(), ident.OrganizationID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, m)
}

type updateRoleRequest struct {
	Role string `json:"role"`
}

// UpdateRole handles PUT /api/members/{id}/role. Admin only. The cached
// permission grant is invalidated so the change takes effect immediately.
func (h *MemberHandlers) UpdateRole(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}
	if !ident.CanManageOrg(ident.OrganizationID) {
		httputil.Forbidden(w, "admin role required")
		return
	}

	var req updateRoleRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	role := domain.Role(req.Role)
	switch role {
	case domain.RoleMember, domain.RoleAdmin:
	default:
		httputil.BadRequest(w, "role must be member or admin")
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.store.UpdateMemberRole(r.Context(), ident.OrganizationID, id, role); err != nil {
		writeServiceError(w, err)
		return
	}
	h.perms.Invalidate(r.Context(), id)
	httputil.OK(w, map[string]string{"id": id, "role": string(role)})
}

// Permissions handles GET /api/members/{id}/permissions.
func (h *MemberHandlers) Permissions(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}

	grant, err := h.perms.Resolve(r.Context(), ident.OrganizationID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, grant)
}

type createMembershipRequest struct {
	Type     string     `json:"type"`
	StartsAt time.Time  `json:"starts_at"`
	EndsAt   *time.Time `json:"ends_at"`
}

// CreateMembership handles POST /api/members/{id}/memberships. Admin only.
func (h *MemberHandlers) CreateMembership(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}
	if !ident.CanManageOrg(ident.OrganizationID) {
		httputil.Forbidden(w, "admin role required")
		return
	}

	var req createMembershipRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Type == "" {
		httputil.BadRequest(w, "type is required")
		return
	}

	memberID := chi.URLParam(r, "id")
	if _, err := h.store.GetMember(r.Context(), ident.OrganizationID, memberID); err != nil {
		writeServiceError(w, err)
		return
	}

	if req.StartsAt.IsZero() {
		req.StartsAt = time.Now().UTC()
	}
	m := &domain.Membership{
		OrganizationID: ident.OrganizationID,
		MemberID:       memberID,
		Type:           req.Type,
		Status:         domain.MembershipPending,
		StartsAt:       req.StartsAt,
		EndsAt:         req.EndsAt,
	}
	if err := h.store.CreateMembership(r.Context(), m); err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.Created(w, m)
}

// Memberships handles GET /api/members/{id}/memberships.
func (h *MemberHandlers) Memberships(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}

	list, err := h.store.MembershipsForMember(r.Context(), ident.OrganizationID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if list == nil {
		list = []domain.Membership{}
	}
	httputil.OK(w, map[string]interface{}{"memberships": list, "total": len(list)})
}

type updateMembershipStatusRequest struct {
	Status string `json:"status"`
}

// UpdateMembershipStatus handles PUT /api/memberships/{id}/status.
// Admin only.
func (h *MemberHandlers) UpdateMembershipStatus(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}
	if !ident.CanManageOrg(ident.OrganizationID) {
		httputil.Forbidden(w, "admin role required")
		return
	}

	var req updateMembershipStatusRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	status := domain.MembershipStatus(req.Status)
	switch status {
	case domain.MembershipActive, domain.MembershipLapsed, domain.MembershipPending:
	default:
		httputil.BadRequest(w, "status must be active, lapsed, or pending")
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.store.UpdateMembershipStatus(r.Context(), ident.OrganizationID, id, status); err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"id": id, "status": string(status)})
}
