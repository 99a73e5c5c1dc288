package domains

import (
	"context"
	"net"
	"time"
)

// Resolver is the DNS collaborator. Implementations must surface
// *net.DNSError so callers can distinguish NXDOMAIN from transport
// failures.
type Resolver interface {
	LookupTXT(ctx context.Context, name string) ([]string, error)
	LookupHost(ctx context.Context, name string) ([]string, error)
	LookupCNAME(ctx context.Context, name string) (string, error)
}

// NetResolver wraps net.Resolver with a per-lookup timeout.
type NetResolver struct {
	resolver *net.Resolver
	timeout  time.Duration
}

// NewNetResolver creates a resolver using the system DNS configuration.
func NewNetResolver(timeout time.Duration) *NetResolver {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &NetResolver{resolver: net.DefaultResolver, timeout: timeout}
}

func (r *NetResolver) LookupTXT(ctx context.Context, name string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.resolver.LookupTXT(ctx, name)
}

func (r *NetResolver) LookupHost(ctx context.Context, name string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.resolver.LookupHost(ctx, name)
}

func (r *NetResolver) LookupCNAME(ctx context.Context, name string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.resolver.LookupCNAME(ctx, name)
}

// dnsErrorCode classifies a DNS lookup error for caller diagnostics.
// Returns "" for nil errors.
func dnsErrorCode(err error) string {
	if err == nil {
		return ""
	}
	if dnsErr, ok := err.(*net.DNSError); ok {
		switch {
		case dnsErr.IsNotFound:
			return "NXDOMAIN"
		case dnsErr.IsTimeout:
			return "TIMEOUT"
		case dnsErr.IsTemporary:
			return "SERVFAIL"
		}
		return "DNSERROR"
	}
	return "LOOKUP_FAILED"
}
