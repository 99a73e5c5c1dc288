package api

import (
	"errors"
	"net/http"

	"github.com/opencivic/memberhub/internal/pkg/httputil"
	"github.com/opencivic/memberhub/internal/repository/postgres"
	"github.com/opencivic/memberhub/internal/service/campaign"
	"github.com/opencivic/memberhub/internal/service/domains"
	"github.com/opencivic/memberhub/internal/service/permission"
	"github.com/opencivic/memberhub/internal/ssl"
	"github.com/opencivic/memberhub/internal/storage"
)

// writeServiceError maps service-layer sentinel errors onto the API's
// error taxonomy. Anything unmapped is a 500 with the detail hidden in
// production.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domains.ErrInvalidDomain):
		httputil.ErrorCode(w, http.StatusBadRequest, "invalid_domain", err.Error())
	case errors.Is(err, campaign.ErrInvalidInput):
		httputil.BadRequest(w, err.Error())
	case errors.Is(err, domains.ErrDomainTaken):
		httputil.ErrorCode(w, http.StatusConflict, "domain_taken", err.Error())
	case errors.Is(err, domains.ErrNotFound),
		errors.Is(err, campaign.ErrNotFound),
		errors.Is(err, permission.ErrMemberNotFound),
		errors.Is(err, postgres.ErrListNotFound),
		errors.Is(err, postgres.ErrSubscriberNotFound),
		errors.Is(err, postgres.ErrCommitteeNotFound),
		errors.Is(err, postgres.ErrPositionNotFound),
		errors.Is(err, postgres.ErrEventNotFound),
		errors.Is(err, postgres.ErrDocumentNotFound),
		errors.Is(err, postgres.ErrMembershipNotFound),
		errors.Is(err, postgres.ErrOrgNotFound):
		httputil.NotFound(w, err.Error())
	case errors.Is(err, domains.ErrForbidden):
		httputil.Forbidden(w, err.Error())
	case errors.Is(err, campaign.ErrAlreadySending):
		httputil.ErrorCode(w, http.StatusBadRequest, "already_sent", err.Error())
	case errors.Is(err, campaign.ErrMissingList):
		httputil.ErrorCode(w, http.StatusBadRequest, "no_list", err.Error())
	case errors.Is(err, campaign.ErrNoRecipients):
		httputil.ErrorCode(w, http.StatusBadRequest, "no_recipients", err.Error())
	case errors.Is(err, campaign.ErrNotDraft):
		httputil.ErrorCode(w, http.StatusBadRequest, "not_draft", err.Error())
	case errors.Is(err, postgres.ErrDuplicateSubscriber),
		errors.Is(err, postgres.ErrDuplicateMember),
		errors.Is(err, postgres.ErrDuplicateSlug),
		errors.Is(err, postgres.ErrAlreadyRegistered):
		httputil.ErrorCode(w, http.StatusConflict, "duplicate", err.Error())
	case errors.Is(err, ssl.ErrDomainNotVerified):
		httputil.ErrorCode(w, http.StatusBadRequest, "not_verified", err.Error())
	case errors.Is(err, ssl.ErrIssuanceFailed):
		httputil.ErrorCode(w, http.StatusBadGateway, "issuance_failed", "certificate issuance failed")
	case errors.Is(err, storage.ErrDisabled):
		httputil.ErrorCode(w, http.StatusServiceUnavailable, "storage_disabled", err.Error())
	default:
		httputil.InternalError(w, err)
	}
}
