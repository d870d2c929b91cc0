package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/wayfind/Cortex/platform/httpkit"
	"github.com/wayfind/Cortex/platform/logging"
)

// AgentAuthenticator resolves an agent's API key to its agent ID, per
// spec.md §4.14's per-agent credential model. Implemented by the store.
type AgentAuthenticator interface {
	AuthenticateAPIKey(ctx context.Context, apiKey string) (agentID string, err error)
}

// ServiceAuth validates the X-API-Key header on Probe->Monitor traffic
// (report submission, heartbeat) and attaches the resolved agent ID to the
// request context. Grounded on infrastructure/middleware/serviceauth.go's
// shape, simplified from RSA service tokens to the spec's per-agent API key.
func ServiceAuth(auth AgentAuthenticator, log *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				httpkit.WriteMessage(w, http.StatusUnauthorized, "missing X-API-Key")
				return
			}

			agentID, err := auth.AuthenticateAPIKey(r.Context(), key)
			if err != nil {
				log.WithContext(r.Context()).WithFields(map[string]any{"error": err.Error()}).Warn("rejected api key")
				httpkit.WriteMessage(w, http.StatusUnauthorized, "invalid api key")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAgentID(r.Context(), agentID)))
		})
	}
}

// RegistrationAuth guards the agent registration endpoint with a single
// shared secret configured on the Monitor, per spec.md §4.14: a new agent
// proves it belongs to this cluster before it is issued its own API key.
func RegistrationAuth(secret string, log *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				next.ServeHTTP(w, r)
				return
			}

			provided := r.Header.Get("X-Registration-Token")
			if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
				log.WithContext(r.Context()).Warn("rejected agent registration: bad token")
				httpkit.WriteMessage(w, http.StatusUnauthorized, "invalid registration token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
