// Package monitorapi wires the Monitor's domain and platform components
// into an HTTP surface, grounded on services/mixer/handlers.go's
// registerRoutes/gorilla-mux pattern and applying the full
// platform/middleware chain.
package monitorapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wayfind/Cortex/domain/agent"
	"github.com/wayfind/Cortex/domain/alert"
	"github.com/wayfind/Cortex/domain/decision"
	"github.com/wayfind/Cortex/domain/intent"
	"github.com/wayfind/Cortex/domain/report"
	"github.com/wayfind/Cortex/domain/user"
	"github.com/wayfind/Cortex/monitor/alertaggregator"
	"github.com/wayfind/Cortex/monitor/broadcaster"
	"github.com/wayfind/Cortex/monitor/decisionengine"
	"github.com/wayfind/Cortex/monitor/ingest"
	"github.com/wayfind/Cortex/monitor/intentrecorder"
	"github.com/wayfind/Cortex/monitor/topology"
	"github.com/wayfind/Cortex/platform/cache"
	"github.com/wayfind/Cortex/platform/httpkit"
	"github.com/wayfind/Cortex/platform/logging"
	"github.com/wayfind/Cortex/platform/metrics"
	"github.com/wayfind/Cortex/platform/middleware"
)

// AgentStore is the subset of the agent store the API needs beyond what
// ingest/topology already require.
type AgentStore interface {
	Get(ctx context.Context, id string) (agent.Agent, error)
	List(ctx context.Context) ([]agent.Agent, error)
	Upsert(ctx context.Context, a agent.Agent, apiKey string) error
	Delete(ctx context.Context, id string) error
	Touch(ctx context.Context, id string, health string, now time.Time) error
	AuthenticateAPIKey(ctx context.Context, apiKey string) (string, error)
}

// ReportStore is the subset of the report store the API needs.
type ReportStore interface {
	Recent(ctx context.Context, agentID string, limit int) ([]report.Report, error)
}

// DecisionStore is the subset of the decision store the API needs.
type DecisionStore interface {
	List(ctx context.Context, f decision.Filter) ([]decision.Decision, error)
	Get(ctx context.Context, id string) (decision.Decision, error)
	Insert(ctx context.Context, d decision.Decision) (string, error)
	Update(ctx context.Context, d decision.Decision) error
}

// AlertStore is the subset of the alert store the API needs beyond what
// alertaggregator.Aggregator already wraps.
type AlertStore interface {
	List(ctx context.Context, f alert.Filter) ([]alert.Alert, error)
	Get(ctx context.Context, id string) (alert.Alert, error)
}

// UserStore is the subset of the administrative account store the API needs.
type UserStore interface {
	Create(ctx context.Context, username, password, role string, now time.Time) (user.User, error)
	Authenticate(ctx context.Context, username, password string) (user.User, error)
	List(ctx context.Context) ([]user.User, error)
	Delete(ctx context.Context, id string) error
}

// Server holds every dependency the Monitor HTTP API dispatches to.
type Server struct {
	Agents      AgentStore
	Reports     ReportStore
	Decisions   DecisionStore
	Alerts      AlertStore
	Users       UserStore
	Topology    *topology.Service
	Ingest      *ingest.Pipeline
	Engine      *decisionengine.Engine
	Aggregator  *alertaggregator.Aggregator
	Intent      *intentrecorder.Recorder
	Broadcaster *broadcaster.Broadcaster
	Cache       *cache.Cache
	TokenIssuer *middleware.TokenIssuer
	RegistrationSecret string
	CORS        middleware.CORSConfig
	RateLimiter *middleware.RateLimiter
	Log         *logging.Logger
}

// Router builds the full gorilla/mux router for the Monitor API, applying
// the common middleware chain then splitting admin/bearer, agent/api-key,
// and unauthenticated route groups.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.Recovery(s.Log))
	r.Use(middleware.Logging(s.Log))
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS(s.CORS))
	if s.RateLimiter != nil {
		r.Use(s.RateLimiter.Handler)
	}

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/api/v1/auth/login", s.handleLogin).Methods(http.MethodPost)

	bearer := r.NewRoute().Subrouter()
	bearer.Use(middleware.Auth(s.TokenIssuer, s.Log))
	bearer.HandleFunc("/api/v1/auth/refresh", s.handleRefresh).Methods(http.MethodPost)
	bearer.HandleFunc("/api/v1/cluster/overview", s.handleClusterOverview).Methods(http.MethodGet)
	bearer.HandleFunc("/api/v1/cluster/topology", s.handleClusterTopology).Methods(http.MethodGet)
	bearer.HandleFunc("/api/v1/agents", s.handleListAgents).Methods(http.MethodGet)
	bearer.HandleFunc("/api/v1/agents/{id}", s.handleGetAgent).Methods(http.MethodGet)
	bearer.HandleFunc("/api/v1/decisions", s.handleListDecisions).Methods(http.MethodGet)
	bearer.HandleFunc("/api/v1/decisions/{id}", s.handleGetDecision).Methods(http.MethodGet)
	bearer.HandleFunc("/api/v1/alerts", s.handleListAlerts).Methods(http.MethodGet)
	bearer.HandleFunc("/api/v1/alerts/{id}", s.handleGetAlert).Methods(http.MethodGet)
	bearer.HandleFunc("/api/v1/alerts/{id}/acknowledge", s.handleAcknowledgeAlert).Methods(http.MethodPost)
	bearer.HandleFunc("/api/v1/alerts/{id}/resolve", s.handleResolveAlert).Methods(http.MethodPost)
	bearer.HandleFunc("/api/v1/intents", s.handleListIntents).Methods(http.MethodGet)
	bearer.HandleFunc("/api/v1/intents/stats/summary", s.handleIntentSummary).Methods(http.MethodGet)
	bearer.HandleFunc("/api/v1/intents/{id}", s.handleGetIntent).Methods(http.MethodGet)
	bearer.HandleFunc("/ws", s.Broadcaster.Subscribe).Methods(http.MethodGet)

	admin := bearer.NewRoute().Subrouter()
	admin.Use(middleware.RequireRole("admin"))
	admin.HandleFunc("/api/v1/agents/{id}", s.handleDeleteAgent).Methods(http.MethodDelete)
	admin.HandleFunc("/api/v1/auth/users", s.handleListUsers).Methods(http.MethodGet)
	admin.HandleFunc("/api/v1/auth/users", s.handleCreateUser).Methods(http.MethodPost)
	admin.HandleFunc("/api/v1/auth/users/{id}", s.handleDeleteUser).Methods(http.MethodDelete)
	admin.HandleFunc("/api/v1/auth/api-keys", s.handleReissueAPIKey).Methods(http.MethodPost)
	admin.HandleFunc("/api/v1/auth/api-keys/{agent_id}", s.handleRevokeAPIKey).Methods(http.MethodDelete)

	registration := r.NewRoute().Subrouter()
	registration.Use(middleware.RegistrationAuth(s.RegistrationSecret, s.Log))
	registration.HandleFunc("/api/v1/agents", s.handleRegisterAgent).Methods(http.MethodPost)
	registration.HandleFunc("/api/v1/decisions/request", s.handleDecisionRequest).Methods(http.MethodPost)

	agentAuth := r.NewRoute().Subrouter()
	agentAuth.Use(middleware.ServiceAuth(s.Agents, s.Log))
	agentAuth.HandleFunc("/api/v1/reports", s.handleIngestReport).Methods(http.MethodPost)
	agentAuth.HandleFunc("/api/v1/heartbeat", s.handleLightHeartbeat).Methods(http.MethodPost)
	agentAuth.HandleFunc("/api/v1/agents/{id}/heartbeat", s.handleStructuredHeartbeat).Methods(http.MethodPost)
	agentAuth.HandleFunc("/api/v1/decisions/{id}/feedback", s.handleDecisionFeedback).Methods(http.MethodPost)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httpkit.WriteJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"subscribers": s.Broadcaster.Subscribers(),
		"time":        time.Now().UTC(),
	})
}
