package api

import (
	"context"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/opencivic/memberhub/internal/domain"
	"github.com/opencivic/memberhub/internal/pkg/httputil"
)

// OrgStore is the organization persistence contract, satisfied by
// postgres.OrgRepo.
type OrgStore interface {
	Create(ctx context.Context, o *domain.Organization) error
	Get(ctx context.Context, id string) (*domain.Organization, error)
}

// OrgHandlers serves organization records.
type OrgHandlers struct {
	store OrgStore
}

// RegisterOrgRoutes mounts the organization endpoints.
func RegisterOrgRoutes(r chi.Router, store OrgStore) {
	h := &OrgHandlers{store: store}

	r.Route("/orgs", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/current", h.Current)
		r.Get("/{id}", h.Get)
	})
}

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

type createOrgRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Create handles POST /api/orgs. Creating tenants is a platform
// operation, so super-admin only.
func (h *OrgHandlers) Create(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}
	if !ident.IsSuperAdmin() {
		httputil.Forbidden(w, "super-admin role required")
		return
	}

	var req createOrgRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		httputil.BadRequest(w, "name is required")
		return
	}
	req.Slug = strings.ToLower(strings.TrimSpace(req.Slug))
	if !slugPattern.MatchString(req.Slug) {
		httputil.BadRequest(w, "slug must be lowercase letters, digits, and hyphens")
		return
	}

	o := &domain.Organization{Name: req.Name, Slug: req.Slug}
	if err := h.store.Create(r.Context(), o); err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.Created(w, o)
}

// Current handles GET /api/orgs/current, returning the caller's own
// organization.
func (h *OrgHandlers) Current(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}

	o, err := h.store.Get(r.Context(), ident.OrganizationID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, o)
}

// Get handles GET /api/orgs/{id}. Members may read their own
// organization; anything else requires super-admin.
func (h *OrgHandlers) Get(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if id != ident.OrganizationID && !ident.IsSuperAdmin() {
		httputil.Forbidden(w, "not a member of this organization")
		return
	}

	o, err := h.store.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, o)
}
