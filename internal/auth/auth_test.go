package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencivic/memberhub/internal/domain"
)

func TestVerifyRoundTrip(t *testing.T) {
	v := NewVerifier("test-secret", "memberhub")

	token, err := v.MintToken(Identity{
		MemberID:       "m-1",
		Email:          "admin@example.org",
		Role:           domain.RoleAdmin,
		OrganizationID: "org-1",
	}, time.Hour)
	require.NoError(t, err)

	id, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "m-1", id.MemberID)
	assert.Equal(t, domain.RoleAdmin, id.Role)
	assert.Equal(t, "org-1", id.OrganizationID)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	good := NewVerifier("secret-a", "")
	bad := NewVerifier("secret-b", "")

	token, err := good.MintToken(Identity{MemberID: "m-1"}, time.Hour)
	require.NoError(t, err)

	_, err = bad.Verify(token)
	assert.Error(t, err)
}

func TestVerifyRejectsExpired(t *testing.T) {
	v := NewVerifier("test-secret", "")
	token, err := v.MintToken(Identity{MemberID: "m-1"}, -time.Minute)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.Error(t, err)
}

func TestCanManageOrg(t *testing.T) {
	admin := Identity{Role: domain.RoleAdmin, OrganizationID: "org-1"}
	assert.True(t, admin.CanManageOrg("org-1"))
	assert.False(t, admin.CanManageOrg("org-2"))

	member := Identity{Role: domain.RoleMember, OrganizationID: "org-1"}
	assert.False(t, member.CanManageOrg("org-1"))

	super := Identity{Role: domain.RoleSuperAdmin, OrganizationID: "org-9"}
	assert.True(t, super.CanManageOrg("org-1"))
	assert.True(t, super.CanManageOrg("org-2"))
}

func TestMiddleware(t *testing.T) {
	v := NewVerifier("test-secret", "")
	token, err := v.MintToken(Identity{MemberID: "m-1", Role: domain.RoleAdmin, OrganizationID: "org-1"}, time.Hour)
	require.NoError(t, err)

	var captured Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := v.Middleware(next)

	// Missing header.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Malformed header.
	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", token)
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Valid token.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "m-1", captured.MemberID)
}
