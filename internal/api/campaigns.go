package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/opencivic/memberhub/internal/pkg/httputil"
	"github.com/opencivic/memberhub/internal/service/campaign"
)

// CampaignHandlers serves campaign CRUD and the send endpoint.
type CampaignHandlers struct {
	svc *campaign.Service
}

// RegisterCampaignRoutes mounts the campaign endpoints.
func RegisterCampaignRoutes(r chi.Router, svc *campaign.Service) {
	h := &CampaignHandlers{svc: svc}

	r.Route("/campaigns", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Post("/send", h.Send)
		r.Get("/{id}", h.Get)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
}

// Create handles POST /api/campaigns. Admin only.
func (h *CampaignHandlers) Create(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}
	if !ident.CanManageOrg(ident.OrganizationID) {
		httputil.Forbidden(w, "admin role required")
		return
	}

	var input campaign.CreateInput
	if !httputil.Decode(w, r, &input) {
		return
	}

	c, err := h.svc.Create(r.Context(), ident.OrganizationID, input)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.Created(w, c)
}

// List handles GET /api/campaigns with optional status, search, limit,
// and offset query parameters.
func (h *CampaignHandlers) List(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := campaign.ListFilter{
		Status: q.Get("status"),
		Search: q.Get("search"),
		Limit:  intQuery(q.Get("limit"), 50),
		Offset: intQuery(q.Get("offset"), 0),
	}

	list, total, err := h.svc.List(r.Context(), ident.OrganizationID, filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{
		"campaigns": list,
		"total":     total,
		"limit":     filter.Limit,
		"offset":    filter.Offset,
	})
}

// Get handles GET /api/campaigns/{id}.
func (h *CampaignHandlers) Get(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}

	c, err := h.svc.Get(r.Context(), ident.OrganizationID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, c)
}

// Update handles PUT /api/campaigns/{id}. Admin only; only drafts are
// mutable.
func (h *CampaignHandlers) Update(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}
	if !ident.CanManageOrg(ident.OrganizationID) {
		httputil.Forbidden(w, "admin role required")
		return
	}

	var body struct {
		Name        *string `json:"name"`
		Subject     *string `json:"subject"`
		FromName    *string `json:"from_name"`
		FromEmail   *string `json:"from_email"`
		ReplyTo     *string `json:"reply_to"`
		HTMLContent *string `json:"html_content"`
		ListID      *string `json:"list_id"`
	}
	if !httputil.Decode(w, r, &body) {
		return
	}

	id := chi.URLParam(r, "id")
	err := h.svc.Update(r.Context(), ident.OrganizationID, id, campaign.UpdateFields{
		Name:        body.Name,
		Subject:     body.Subject,
		FromName:    body.FromName,
		FromEmail:   body.FromEmail,
		ReplyTo:     body.ReplyTo,
		HTMLContent: body.HTMLContent,
		ListID:      body.ListID,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	c, err := h.svc.Get(r.Context(), ident.OrganizationID, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, c)
}

// Delete handles DELETE /api/campaigns/{id}. Admin only.
func (h *CampaignHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}
	if !ident.CanManageOrg(ident.OrganizationID) {
		httputil.Forbidden(w, "admin role required")
		return
	}

	if err := h.svc.Delete(r.Context(), ident.OrganizationID, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.NoContent(w)
}

type sendCampaignRequest struct {
	CampaignID string `json:"campaign_id"`
}

// Send handles POST /api/campaigns/send. Admin only. The response
// reports per-run stats; partial failure is still a 200 with the
// failures itemized.
func (h *CampaignHandlers) Send(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}
	if !ident.CanManageOrg(ident.OrganizationID) {
		httputil.Forbidden(w, "admin role required")
		return
	}

	var req sendCampaignRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.CampaignID == "" {
		httputil.BadRequest(w, "campaign_id is required")
		return
	}

	result, err := h.svc.Dispatch(r.Context(), ident.OrganizationID, req.CampaignID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := map[string]interface{}{
		"success": true,
		"stats": map[string]int{
			"total":     result.Total,
			"sent":      result.Sent,
			"delivered": result.Delivered,
			"failed":    result.Failed,
		},
	}
	if len(result.Errors) > 0 {
		resp["errors"] = result.Errors
	}
	httputil.OK(w, resp)
}

// intQuery parses a query parameter as an int, falling back to def when
// absent or malformed.
func intQuery(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}
