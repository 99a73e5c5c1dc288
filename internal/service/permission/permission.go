package permission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/opencivic/memberhub/internal/domain"
	"github.com/opencivic/memberhub/internal/pkg/logger"
)

// Known permission names. Positions may carry any subset; FullAdmin
// implies all of them.
const (
	ApproveMembers     = "approve_members"
	ManageMembers      = "manage_members"
	ManageMemberships  = "manage_memberships"
	ViewReports        = "view_reports"
	ExportReports      = "export_reports"
	ManageEvents       = "manage_events"
	ManageEmails       = "manage_emails"
	ManageMailingLists = "manage_mailing_lists"
	ManageCommittees   = "manage_committees"
	ManageSettings     = "manage_settings"
	ManageDomains      = "manage_domains"
	FullAdmin          = "full_admin"
)

var known = map[string]struct{}{
	ApproveMembers: {}, ManageMembers: {}, ManageMemberships: {},
	ViewReports: {}, ExportReports: {}, ManageEvents: {},
	ManageEmails: {}, ManageMailingLists: {}, ManageCommittees: {},
	ManageSettings: {}, ManageDomains: {}, FullAdmin: {},
}

// Known reports whether name is a recognized permission.
func Known(name string) bool {
	_, ok := known[name]
	return ok
}

// ErrMemberNotFound indicates the member does not exist.
var ErrMemberNotFound = errors.New("member not found")

// Repository supplies the rows the resolver needs.
type Repository interface {
	// GetMember returns the member row. Returns ErrMemberNotFound if absent.
	GetMember(ctx context.Context, orgID, memberID string) (*domain.Member, error)

	// PositionsForMember returns every committee position held by the member.
	PositionsForMember(ctx context.Context, memberID string) ([]domain.CommitteePosition, error)
}

// Grant is a member's resolved permission set.
type Grant struct {
	MemberID    string                     `json:"member_id"`
	Role        domain.Role                `json:"role"`
	Permissions []string                   `json:"permissions"`
	Positions   []domain.CommitteePosition `json:"positions,omitempty"`
}

// Has reports whether the grant includes the permission. Admin roles and
// full_admin imply every permission.
func (g *Grant) Has(perm string) bool {
	if g.Role == domain.RoleAdmin || g.Role == domain.RoleSuperAdmin {
		return true
	}
	for _, p := range g.Permissions {
		if p == FullAdmin || p == perm {
			return true
		}
	}
	return false
}

// HasAny reports whether any of the permissions are granted.
func (g *Grant) HasAny(perms ...string) bool {
	for _, p := range perms {
		if g.Has(p) {
			return true
		}
	}
	return false
}

// Service resolves grants, with an optional Redis cache in front of the
// repository. Committee assignments change rarely; a short TTL keeps the
// hot authorization path off the database.
type Service struct {
	repo     Repository
	redis    *redis.Client
	cacheTTL time.Duration
}

// NewService creates a permission service. redisClient may be nil to
// disable caching.
func NewService(repo Repository, redisClient *redis.Client, cacheTTL time.Duration) *Service {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &Service{repo: repo, redis: redisClient, cacheTTL: cacheTTL}
}

func cacheKey(memberID string) string { return "perm:member:" + memberID }

// Resolve returns the member's effective grant.
func (s *Service) Resolve(ctx context.Context, orgID, memberID string) (*Grant, error) {
	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, cacheKey(memberID)).Bytes(); err == nil {
			var g Grant
			if json.Unmarshal(cached, &g) == nil {
				return &g, nil
			}
		}
	}

	g, err := s.resolve(ctx, orgID, memberID)
	if err != nil {
		return nil, err
	}

	if s.redis != nil {
		if data, err := json.Marshal(g); err == nil {
			if err := s.redis.Set(ctx, cacheKey(memberID), data, s.cacheTTL).Err(); err != nil {
				logger.Warn("permission cache write failed", "member_id", memberID, "error", err.Error())
			}
		}
	}
	return g, nil
}

// Invalidate drops the cached grant after a committee or role change.
func (s *Service) Invalidate(ctx context.Context, memberID string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, cacheKey(memberID)).Err(); err != nil {
		logger.Warn("permission cache invalidation failed", "member_id", memberID, "error", err.Error())
	}
}

func (s *Service) resolve(ctx context.Context, orgID, memberID string) (*Grant, error) {
	m, err := s.repo.GetMember(ctx, orgID, memberID)
	if err != nil {
		return nil, err
	}

	g := &Grant{MemberID: m.ID, Role: m.Role}

	// Admin roles short-circuit to the blanket grant.
	if m.Role == domain.RoleAdmin || m.Role == domain.RoleSuperAdmin {
		g.Permissions = []string{FullAdmin}
		return g, nil
	}

	positions, err := s.repo.PositionsForMember(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("load positions: %w", err)
	}

	set := make(map[string]struct{})
	for _, pos := range positions {
		for _, p := range pos.Permissions {
			set[p] = struct{}{}
		}
	}
	g.Positions = positions
	g.Permissions = make([]string, 0, len(set))
	for p := range set {
		g.Permissions = append(g.Permissions, p)
	}
	sort.Strings(g.Permissions)
	return g, nil
}
