package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wayfind/Cortex/platform/httpkit"
	"github.com/wayfind/Cortex/platform/logging"
)

type ctxKey int

const (
	userIDKey ctxKey = iota
	userRoleKey
	agentIDKey
)

// UserClaims are the JWT claims issued on successful admin login.
type UserClaims struct {
	UserID string `json:"sub"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies admin bearer tokens, grounded on the
// teacher's ServiceTokenGenerator shape but using a shared HMAC secret
// instead of RSA, since Cortex has a single Monitor issuing its own tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer builds an issuer signing with HS256 using secret, with
// tokens expiring after ttl.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}
}

// Issue mints a signed token for userID with the given role.
func (ti *TokenIssuer) Issue(userID, role string, now time.Time) (string, error) {
	claims := UserClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ti.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(ti.secret)
}

func (ti *TokenIssuer) parse(raw string) (*UserClaims, error) {
	claims := &UserClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return ti.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, jwt.ErrTokenSignatureInvalid
	}
	return claims, nil
}

// Auth validates the Authorization: Bearer <token> header and attaches the
// user ID and role to the request context.
func Auth(ti *TokenIssuer, log *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || raw == "" {
				httpkit.WriteMessage(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			claims, err := ti.parse(raw)
			if err != nil {
				log.WithContext(r.Context()).WithFields(map[string]any{"error": err.Error()}).Warn("rejected bearer token")
				httpkit.WriteMessage(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
			ctx = context.WithValue(ctx, userRoleKey, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects requests whose authenticated role does not match role.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if UserRole(r.Context()) != role {
				httpkit.WriteMessage(w, http.StatusForbidden, "insufficient privileges")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserID returns the authenticated user ID, or "" if none.
func UserID(ctx context.Context) string {
	v, _ := ctx.Value(userIDKey).(string)
	return v
}

// UserRole returns the authenticated user's role, or "" if none.
func UserRole(ctx context.Context) string {
	v, _ := ctx.Value(userRoleKey).(string)
	return v
}

// AgentID returns the agent ID authenticated by ServiceAuth, or "" if none.
func AgentID(ctx context.Context) string {
	v, _ := ctx.Value(agentIDKey).(string)
	return v
}

// WithAgentID attaches an authenticated agent ID to ctx; exported for tests
// that need to call handlers directly without going through ServiceAuth.
func WithAgentID(ctx context.Context, agentID string) context.Context {
	return context.WithValue(ctx, agentIDKey, agentID)
}
