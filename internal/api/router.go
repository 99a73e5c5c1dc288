// Package api wires the HTTP surface: routing, request decoding, error
// mapping, and handler glue between the transport and the services.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/opencivic/memberhub/internal/auth"
	"github.com/opencivic/memberhub/internal/config"
	"github.com/opencivic/memberhub/internal/pkg/httputil"
	"github.com/opencivic/memberhub/internal/service/campaign"
	"github.com/opencivic/memberhub/internal/service/domains"
	"github.com/opencivic/memberhub/internal/service/permission"
	"github.com/opencivic/memberhub/internal/ssl"
	"github.com/opencivic/memberhub/internal/storage"
)

// Deps carries everything the HTTP layer needs. The repository fields
// are interfaces so handler tests can run against in-memory fakes.
type Deps struct {
	Cfg         *config.Config
	Verifier    *auth.Verifier
	Domains     *domains.Service
	Issuer      *ssl.Issuer
	Campaigns   *campaign.Service
	Permissions *permission.Service
	Orgs        OrgStore
	Lists       ListStore
	Members     MemberStore
	Committees  CommitteeStore
	Events      EventStore
	Documents   DocumentStore
	Objects     storage.ObjectStore
}

// SetupRoutes configures the full router. Everything under /api requires
// a bearer token; /health does not.
func SetupRoutes(d Deps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://localhost:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		httputil.OK(w, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(d.Verifier.Middleware)

		RegisterOrgRoutes(r, d.Orgs)
		RegisterDomainRoutes(r, d.Domains, d.Issuer)
		RegisterCampaignRoutes(r, d.Campaigns)
		RegisterListRoutes(r, d.Lists)
		RegisterMemberRoutes(r, d.Members, d.Permissions)
		RegisterCommitteeRoutes(r, d.Committees, d.Permissions)
		RegisterEventRoutes(r, d.Events)
		RegisterDocumentRoutes(r, d.Documents, d.Objects)
	})

	return r
}

// identity pulls the authenticated caller off the request. The auth
// middleware guarantees presence under /api; the fallback 401 covers
// handlers mounted without it.
func identity(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		httputil.Unauthorized(w, "authorization required")
	}
	return id, ok
}
