// Package probeapi wires the Probe's scheduler, executor, and queue into an
// HTTP surface, grounded on services/mixer/handlers.go's registerRoutes/
// gorilla-mux pattern (the same one api/monitorapi uses). Unlike the
// Monitor API, every route here is local-operator-facing (spec.md §6
// lists no auth scheme for the Probe API), so no auth middleware is
// applied beyond the common chain.
package probeapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wayfind/Cortex/platform/config"
	"github.com/wayfind/Cortex/platform/httpkit"
	"github.com/wayfind/Cortex/platform/logging"
	"github.com/wayfind/Cortex/platform/metrics"
	"github.com/wayfind/Cortex/platform/middleware"
	"github.com/wayfind/Cortex/probe/scheduler"
)

// Server holds every dependency the Probe HTTP API dispatches to.
type Server struct {
	Scheduler *scheduler.Scheduler
	Config    *config.Config
	AgentID   string
	CORS      middleware.CORSConfig
	Log       *logging.Logger
}

// Router builds the gorilla/mux router for the Probe API.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.Recovery(s.Log))
	r.Use(middleware.Logging(s.Log))
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS(s.CORS))

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/config", s.handleConfig).Methods(http.MethodGet)
	r.HandleFunc("/execute", s.handleExecute).Methods(http.MethodPost)
	r.HandleFunc("/schedule", s.handleSchedule).Methods(http.MethodGet)
	r.HandleFunc("/schedule/pause", s.handleSchedulePause).Methods(http.MethodPost)
	r.HandleFunc("/schedule/resume", s.handleScheduleResume).Methods(http.MethodPost)
	r.HandleFunc("/reports", s.handleListReports).Methods(http.MethodGet)
	r.HandleFunc("/reports/{id}", s.handleGetReport).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleSubscribe).Methods(http.MethodGet)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httpkit.WriteJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"agent_id": s.AgentID,
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	httpkit.WriteJSON(w, http.StatusOK, s.Config.Redacted())
}
