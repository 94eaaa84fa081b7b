package httpapi

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Proton-105/phonelookup/internal/middleware"
	"github.com/Proton-105/phonelookup/pkg/config"
)

// RoleAdmin is the role claim required on admin tokens.
const RoleAdmin = "admin"

const tokenLeeway = 30 * time.Second

var (
	errMissingToken = errors.New("missing bearer token")
	errNotAdmin     = errors.New("token lacks admin role")
)

// AdminClaims are the claims carried by admin bearer tokens.
type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type adminSubjectKey struct{}

// AdminSubject returns the subject of the authenticated admin token stored in ctx.
func AdminSubject(ctx context.Context) string {
	if sub, ok := ctx.Value(adminSubjectKey{}).(string); ok {
		return sub
	}
	return ""
}

// AdminAuth verifies HS256 admin tokens. The secret and audience can be swapped at runtime.
type AdminAuth struct {
	cfg atomic.Pointer[config.AdminConfig]
}

func NewAdminAuth(cfg config.AdminConfig) *AdminAuth {
	a := &AdminAuth{}
	a.Update(cfg)
	return a
}

// Update replaces the verification settings.
func (a *AdminAuth) Update(cfg config.AdminConfig) {
	a.cfg.Store(&cfg)
}

// Verify parses raw and returns its claims when the signature, audience, expiry and role check out.
func (a *AdminAuth) Verify(raw string) (*AdminClaims, error) {
	cfg := a.cfg.Load()
	if cfg == nil || cfg.JWTSecret == "" {
		return nil, errors.New("admin authentication is not configured")
	}

	claims := &AdminClaims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (interface{}, error) {
			return []byte(cfg.JWTSecret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(tokenLeeway),
	)
	if err != nil {
		return nil, err
	}
	if claims.Role != RoleAdmin {
		return nil, errNotAdmin
	}
	return claims, nil
}

// Middleware rejects requests without a valid admin token. A nil AdminAuth rejects everything.
func (a *AdminAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a == nil {
			middleware.WriteError(w, http.StatusUnauthorized, "unauthorized", "Admin authentication is not configured")
			return
		}

		raw, err := bearerToken(r)
		if err != nil {
			middleware.WriteError(w, http.StatusUnauthorized, "unauthorized", "Missing bearer token")
			return
		}

		claims, err := a.Verify(raw)
		switch {
		case errors.Is(err, errNotAdmin):
			middleware.WriteError(w, http.StatusForbidden, "forbidden", "Admin role required")
			return
		case err != nil:
			middleware.WriteError(w, http.StatusUnauthorized, "unauthorized", "Invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), adminSubjectKey{}, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// TokenSet holds the static bearer tokens accepted on the event endpoint. An empty set admits
// every caller.
type TokenSet struct {
	tokens atomic.Pointer[[]string]
}

func NewTokenSet(tokens []string) *TokenSet {
	t := &TokenSet{}
	t.Update(tokens)
	return t
}

// Update replaces the accepted tokens. Blank entries are ignored.
func (t *TokenSet) Update(tokens []string) {
	cleaned := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if token = strings.TrimSpace(token); token != "" {
			cleaned = append(cleaned, token)
		}
	}
	t.tokens.Store(&cleaned)
}

// Allow reports whether presented matches one of the accepted tokens.
func (t *TokenSet) Allow(presented string) bool {
	if t == nil {
		return true
	}
	tokens := t.tokens.Load()
	if tokens == nil || len(*tokens) == 0 {
		return true
	}

	ok := 0
	for _, token := range *tokens {
		ok |= subtle.ConstantTimeCompare([]byte(token), []byte(presented))
	}
	return ok == 1
}

func (t *TokenSet) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		presented, _ := bearerToken(r)
		if !t.Allow(presented) {
			middleware.WriteError(w, http.StatusUnauthorized, "unauthorized", "Invalid ingress token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", errMissingToken
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errMissingToken
	}
	return token, nil
}
