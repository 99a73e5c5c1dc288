package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/opencivic/memberhub/internal/domain"
	"github.com/opencivic/memberhub/internal/pkg/httputil"
	"github.com/opencivic/memberhub/internal/service/domains"
	"github.com/opencivic/memberhub/internal/ssl"
)

// DomainHandlers serves custom-domain registration, verification, DNS
// diagnostics, and SSL issuance.
type DomainHandlers struct {
	svc    *domains.Service
	issuer *ssl.Issuer
}

// RegisterDomainRoutes mounts the domain endpoints.
func RegisterDomainRoutes(r chi.Router, svc *domains.Service, issuer *ssl.Issuer) {
	h := &DomainHandlers{svc: svc, issuer: issuer}

	r.Route("/domains", func(r chi.Router) {
		r.Post("/", h.Register)
		r.Get("/", h.List)
		r.Post("/verify", h.Verify)
		r.Get("/{domain}/dns-check", h.DNSCheck)
		r.Post("/ssl/generate", h.GenerateSSL)
	})
}

type registerDomainRequest struct {
	Domain string `json:"domain"`
}

// Register handles POST /api/domains.
func (h *DomainHandlers) Register(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}

	var req registerDomainRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Domain == "" {
		httputil.BadRequest(w, "domain is required")
		return
	}

	d, err := h.svc.Register(r.Context(), ident, ident.OrganizationID, req.Domain)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httputil.Created(w, map[string]interface{}{
		"domain":      d,
		"record_name": h.svc.VerificationRecordName(d.Domain),
		"message":     "add a DNS TXT record with the verification token, then call verify",
	})
}

// List handles GET /api/domains.
func (h *DomainHandlers) List(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}

	list, err := h.svc.ListForOrg(r.Context(), ident, ident.OrganizationID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if list == nil {
		list = []domain.CustomDomain{}
	}
	httputil.OK(w, map[string]interface{}{"domains": list, "total": len(list)})
}

type verifyDomainRequest struct {
	DomainID string `json:"domain_id"`
}

// Verify handles POST /api/domains/verify. A non-matching DNS check is a
// 200 with verified:false, not an error.
func (h *DomainHandlers) Verify(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}

	var req verifyDomainRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.DomainID == "" {
		httputil.BadRequest(w, "domain_id is required")
		return
	}

	result, err := h.svc.Verify(r.Context(), ident, req.DomainID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, result)
}

// DNSCheck handles GET /api/domains/{domain}/dns-check.
func (h *DomainHandlers) DNSCheck(w http.ResponseWriter, r *http.Request) {
	if _, ok := identity(w, r); !ok {
		return
	}

	name := chi.URLParam(r, "domain")
	result, err := h.svc.DNSCheck(r.Context(), name)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, result)
}

type generateSSLRequest struct {
	Domain string `json:"domain"`
}

// GenerateSSL handles POST /api/domains/ssl/generate.
func (h *DomainHandlers) GenerateSSL(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}

	var req generateSSLRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Domain == "" {
		httputil.BadRequest(w, "domain is required")
		return
	}

	d, err := h.svc.GetForManage(r.Context(), ident, req.Domain)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	result, err := h.issuer.Issue(r.Context(), d)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, result)
}
