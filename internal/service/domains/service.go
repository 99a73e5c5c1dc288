package domains

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opencivic/memberhub/internal/auth"
	"github.com/opencivic/memberhub/internal/domain"
	"github.com/opencivic/memberhub/internal/pkg/logger"
)

// Service implements the domain verification workflow.
type Service struct {
	repo      Repository
	resolver  Resolver
	txtPrefix string
}

// NewService creates a domains service. txtPrefix is the DNS label
// prefixed to the domain for the verification TXT record, without a
// trailing dot (e.g. "_verification").
func NewService(repo Repository, resolver Resolver, txtPrefix string) *Service {
	if txtPrefix == "" {
		txtPrefix = "_verification"
	}
	return &Service{repo: repo, resolver: resolver, txtPrefix: txtPrefix}
}

// VerificationRecordName returns the DNS name the TXT token must live at.
func (s *Service) VerificationRecordName(canonicalDomain string) string {
	return s.txtPrefix + "." + canonicalDomain
}

// Register creates a domain record for orgID in unverified status with a
// freshly issued verification token. The caller must be an admin of the
// target organization or a super-admin.
func (s *Service) Register(ctx context.Context, ident auth.Identity, orgID, rawDomain string) (*domain.CustomDomain, error) {
	if !ident.CanManageOrg(orgID) {
		return nil, ErrForbidden
	}

	name, err := Validate(rawDomain)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.GetByName(ctx, name); err == nil {
		return nil, ErrDomainTaken
	} else if err != ErrNotFound {
		return nil, fmt.Errorf("check existing domain: %w", err)
	}

	token, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("generate verification token: %w", err)
	}

	now := time.Now().UTC()
	d := &domain.CustomDomain{
		ID:                uuid.New().String(),
		OrganizationID:    orgID,
		Domain:            name,
		VerificationToken: token,
		Status:            domain.DomainUnverified,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return nil, err
	}

	logger.Info("domain registered", "domain", name, "org_id", orgID, "domain_id", d.ID)
	return d, nil
}

// ListForOrg returns the organization's domains. Members may list their
// own organization's domains; other organizations require super-admin.
func (s *Service) ListForOrg(ctx context.Context, ident auth.Identity, orgID string) ([]domain.CustomDomain, error) {
	if orgID != ident.OrganizationID && !ident.IsSuperAdmin() {
		return nil, ErrForbidden
	}
	return s.repo.ListByOrg(ctx, orgID)
}

// GetForManage looks a domain up by name and checks that the caller may
// manage it. Used by operations that act on a single domain, like SSL
// issuance.
func (s *Service) GetForManage(ctx context.Context, ident auth.Identity, rawDomain string) (*domain.CustomDomain, error) {
	name, err := Validate(rawDomain)
	if err != nil {
		return nil, err
	}
	d, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ident.CanManageOrg(d.OrganizationID) {
		return nil, ErrForbidden
	}
	return d, nil
}

// VerifyResult describes the outcome of one verification attempt.
// A failed DNS check is a normal result, not an error: Found carries the
// TXT values that were present and Expected the token we looked for.
type VerifyResult struct {
	Verified        bool     `json:"verified"`
	AlreadyVerified bool     `json:"already_verified,omitempty"`
	Domain          string   `json:"domain"`
	RecordName      string   `json:"record_name"`
	Expected        string   `json:"expected,omitempty"`
	Found           []string `json:"found,omitempty"`
	DNSError        string   `json:"dns_error,omitempty"`
	Message         string   `json:"message"`
}

// Verify performs one verification attempt against live DNS.
//
// An already-verified domain short-circuits without any DNS lookup and
// reports AlreadyVerified. Otherwise the TXT records at
// <txtPrefix>.<domain> are fetched and the attempt succeeds iff at least
// one value exactly equals the stored token. The token is never changed
// here; the operation is idempotent modulo timestamp updates.
func (s *Service) Verify(ctx context.Context, ident auth.Identity, domainID string) (*VerifyResult, error) {
	d, err := s.repo.GetByID(ctx, domainID)
	if err != nil {
		return nil, err
	}
	if !ident.CanManageOrg(d.OrganizationID) {
		return nil, ErrForbidden
	}

	if d.IsVerified() {
		return &VerifyResult{
			Verified:        true,
			AlreadyVerified: true,
			Domain:          d.Domain,
			RecordName:      s.VerificationRecordName(d.Domain),
			Message:         "domain is already verified",
		}, nil
	}

	recordName := s.VerificationRecordName(d.Domain)
	now := time.Now().UTC()

	records, lookupErr := s.resolver.LookupTXT(ctx, recordName)
	if lookupErr == nil {
		for _, record := range records {
			if record == d.VerificationToken {
				if err := s.repo.MarkVerified(ctx, d.ID, now); err != nil {
					return nil, fmt.Errorf("mark verified: %w", err)
				}
				logger.Info("domain verified", "domain", d.Domain, "domain_id", d.ID)
				return &VerifyResult{
					Verified:   true,
					Domain:     d.Domain,
					RecordName: recordName,
					Message:    "domain verified",
				}, nil
			}
		}
	}

	// Token absent, mismatched, or the lookup itself failed. Either way
	// this attempt records a failed check; the caller can fix DNS and
	// retry.
	if err := s.repo.MarkFailed(ctx, d.ID, now); err != nil {
		return nil, fmt.Errorf("mark failed: %w", err)
	}

	result := &VerifyResult{
		Domain:     d.Domain,
		RecordName: recordName,
		Expected:   d.VerificationToken,
		Found:      records,
	}
	if lookupErr != nil {
		result.DNSError = dnsErrorCode(lookupErr)
		result.Message = fmt.Sprintf("DNS lookup failed (%s); add a TXT record at %s with the verification token",
			result.DNSError, recordName)
	} else {
		result.Message = fmt.Sprintf("no TXT record at %s matches the verification token", recordName)
	}
	logger.Info("domain verification failed",
		"domain", d.Domain, "domain_id", d.ID, "dns_error", result.DNSError, "records_found", len(records))
	return result, nil
}

// DNSCheckResult reports the current A, CNAME, and verification TXT
// records for a domain. Lookup failures are isolated per record type.
type DNSCheckResult struct {
	Domain             string   `json:"domain"`
	ARecords           []string `json:"a_records"`
	AError             string   `json:"a_error,omitempty"`
	CNAME              string   `json:"cname_record,omitempty"`
	CNAMEError         string   `json:"cname_error,omitempty"`
	VerificationRecord []string `json:"verification_record"`
	VerificationError  string   `json:"verification_error,omitempty"`
}

// DNSCheck resolves A, CNAME, and verification TXT records for the
// domain concurrently. One lookup failing never blocks the others.
func (s *Service) DNSCheck(ctx context.Context, rawDomain string) (*DNSCheckResult, error) {
	name, err := Validate(rawDomain)
	if err != nil {
		return nil, err
	}

	result := &DNSCheckResult{Domain: name}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		hosts, err := s.resolver.LookupHost(ctx, name)
		if err != nil {
			result.AError = dnsErrorCode(err)
			return
		}
		result.ARecords = hosts
	}()
	go func() {
		defer wg.Done()
		cname, err := s.resolver.LookupCNAME(ctx, name)
		if err != nil {
			result.CNAMEError = dnsErrorCode(err)
			return
		}
		result.CNAME = cname
	}()
	go func() {
		defer wg.Done()
		txts, err := s.resolver.LookupTXT(ctx, s.VerificationRecordName(name))
		if err != nil {
			result.VerificationError = dnsErrorCode(err)
			return
		}
		result.VerificationRecord = txts
	}()
	wg.Wait()

	return result, nil
}

// generateToken returns a 32-hex-char random verification token.
func generateToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
