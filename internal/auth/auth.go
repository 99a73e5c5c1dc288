// Package auth resolves bearer credentials to an organization-scoped
// identity and provides the authorization checks handlers rely on.
//
// Tokens are HS256 JWTs minted by the identity provider. The server only
// verifies; it never issues tokens except in tests.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/opencivic/memberhub/internal/domain"
	"github.com/opencivic/memberhub/internal/pkg/httputil"
)

// Claims is the JWT payload carried by bearer tokens.
type Claims struct {
	Email          string `json:"email"`
	Role           string `json:"role"`
	OrganizationID string `json:"org_id"`
	jwt.RegisteredClaims
}

// Identity is the authenticated caller, threaded explicitly through the
// call chain rather than stored in ambient state.
type Identity struct {
	MemberID       string
	Email          string
	Role           domain.Role
	OrganizationID string
}

// IsSuperAdmin reports whether the identity has platform-wide rights.
func (id Identity) IsSuperAdmin() bool { return id.Role == domain.RoleSuperAdmin }

// CanManageOrg reports whether the identity may administer orgID:
// organization admins manage their own org, super-admins manage any.
func (id Identity) CanManageOrg(orgID string) bool {
	if id.IsSuperAdmin() {
		return true
	}
	return id.Role == domain.RoleAdmin && id.OrganizationID == orgID
}

// Verifier parses and validates bearer tokens.
type Verifier struct {
	secret []byte
	issuer string
}

// NewVerifier creates a token verifier for the given shared secret.
// issuer is optional; when set, tokens from other issuers are rejected.
func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer}
}

// Verify parses the token string and returns the caller identity.
func (v *Verifier) Verify(tokenStr string) (Identity, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return Identity{}, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Identity{}, fmt.Errorf("invalid token")
	}
	if claims.Subject == "" {
		return Identity{}, fmt.Errorf("token has no subject")
	}

	return Identity{
		MemberID:       claims.Subject,
		Email:          claims.Email,
		Role:           domain.Role(claims.Role),
		OrganizationID: claims.OrganizationID,
	}, nil
}

// MintToken issues a signed token for the given identity. Used by tests
// and the seed tooling; production tokens come from the identity provider.
func (v *Verifier) MintToken(id Identity, ttl time.Duration) (string, error) {
	claims := Claims{
		Email:          id.Email,
		Role:           string(id.Role),
		OrganizationID: id.OrganizationID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.MemberID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

type contextKey struct{}

// FromContext returns the identity stored by Middleware, if any.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

// WithIdentity returns a context carrying the identity. Exposed for tests.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// Middleware authenticates every request with a Bearer token and stores
// the resolved identity on the request context. Unauthenticated requests
// receive a 401 JSON error.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			httputil.Unauthorized(w, "authorization required")
			return
		}
		tokenStr := strings.TrimPrefix(header, "Bearer ")
		if tokenStr == header {
			httputil.Unauthorized(w, "invalid authorization format")
			return
		}

		id, err := v.Verify(tokenStr)
		if err != nil {
			httputil.Unauthorized(w, "invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}
