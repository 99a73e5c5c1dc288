package domains

import "errors"

// Sentinel errors for the domains service layer.
var (
	ErrNotFound      = errors.New("domain not found")
	ErrInvalidDomain = errors.New("invalid domain format")
	ErrDomainTaken   = errors.New("domain is already registered")
	ErrForbidden     = errors.New("not authorized for this domain")
)
