package permission_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/opencivic/memberhub/internal/domain"
	"github.com/opencivic/memberhub/internal/service/permission"
)

type memRepo struct {
	members       map[string]*domain.Member
	positions     map[string][]domain.CommitteePosition
	positionLoads int
}

func (m *memRepo) GetMember(_ context.Context, orgID, id string) (*domain.Member, error) {
	mem, ok := m.members[id]
	if !ok || mem.OrganizationID != orgID {
		return nil, permission.ErrMemberNotFound
	}
	return mem, nil
}

func (m *memRepo) PositionsForMember(_ context.Context, id string) ([]domain.CommitteePosition, error) {
	m.positionLoads++
	return m.positions[id], nil
}

func fixtureRepo() *memRepo {
	return &memRepo{
		members: map[string]*domain.Member{
			"m-admin":  {ID: "m-admin", OrganizationID: "org-1", Role: domain.RoleAdmin},
			"m-chair":  {ID: "m-chair", OrganizationID: "org-1", Role: domain.RoleMember},
			"m-plain":  {ID: "m-plain", OrganizationID: "org-1", Role: domain.RoleMember},
		},
		positions: map[string][]domain.CommitteePosition{
			"m-chair": {
				{ID: "p-1", Title: "Events Chair", Permissions: []string{permission.ManageEvents, permission.ViewReports}},
				{ID: "p-2", Title: "Newsletter Editor", Permissions: []string{permission.ManageEmails, permission.ViewReports}},
			},
		},
	}
}

func TestResolveUnionAcrossPositions(t *testing.T) {
	svc := permission.NewService(fixtureRepo(), nil, 0)

	g, err := svc.Resolve(context.Background(), "org-1", "m-chair")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	want := []string{permission.ManageEmails, permission.ManageEvents, permission.ViewReports}
	if len(g.Permissions) != len(want) {
		t.Fatalf("expected deduplicated union %v, got %v", want, g.Permissions)
	}
	for i, p := range want {
		if g.Permissions[i] != p {
			t.Fatalf("expected sorted union %v, got %v", want, g.Permissions)
		}
	}
	if !g.Has(permission.ManageEvents) || g.Has(permission.ManageDomains) {
		t.Fatalf("grant membership wrong: %+v", g)
	}
}

func TestResolveAdminImpliesAll(t *testing.T) {
	svc := permission.NewService(fixtureRepo(), nil, 0)

	g, err := svc.Resolve(context.Background(), "org-1", "m-admin")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !g.Has(permission.ManageDomains) || !g.Has(permission.ManageSettings) {
		t.Fatal("admin must hold every permission")
	}
}

func TestResolveNoPositions(t *testing.T) {
	svc := permission.NewService(fixtureRepo(), nil, 0)

	g, err := svc.Resolve(context.Background(), "org-1", "m-plain")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(g.Permissions) != 0 {
		t.Fatalf("expected empty grant, got %v", g.Permissions)
	}
	if g.HasAny(permission.ManageEvents, permission.ViewReports) {
		t.Fatal("plain member must have no permissions")
	}
}

func TestResolveMemberNotFound(t *testing.T) {
	svc := permission.NewService(fixtureRepo(), nil, 0)
	if _, err := svc.Resolve(context.Background(), "org-1", "ghost"); err != permission.ErrMemberNotFound {
		t.Fatalf("expected ErrMemberNotFound, got %v", err)
	}
	// Wrong org: same error, no tenant leakage.
	if _, err := svc.Resolve(context.Background(), "org-2", "m-chair"); err != permission.ErrMemberNotFound {
		t.Fatalf("expected ErrMemberNotFound for cross-org lookup, got %v", err)
	}
}

func TestResolveCaching(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	repo := fixtureRepo()
	svc := permission.NewService(repo, client, time.Minute)

	for i := 0; i < 3; i++ {
		if _, err := svc.Resolve(context.Background(), "org-1", "m-chair"); err != nil {
			t.Fatalf("resolve %d: %v", i, err)
		}
	}
	if repo.positionLoads != 1 {
		t.Fatalf("expected 1 repository load with cache, got %d", repo.positionLoads)
	}

	svc.Invalidate(context.Background(), "m-chair")
	if _, err := svc.Resolve(context.Background(), "org-1", "m-chair"); err != nil {
		t.Fatalf("resolve after invalidation: %v", err)
	}
	if repo.positionLoads != 2 {
		t.Fatalf("expected reload after invalidation, got %d loads", repo.positionLoads)
	}
}
