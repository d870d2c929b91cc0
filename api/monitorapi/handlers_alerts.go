package monitorapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wayfind/Cortex/domain/alert"
	"github.com/wayfind/Cortex/domain/report"
	"github.com/wayfind/Cortex/platform/httpkit"
	"github.com/wayfind/Cortex/platform/middleware"
)

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	httpkit.Handle(s.Log, func(r *http.Request) (any, error) {
		offset, limit := httpkit.Pagination(r, 50, 200)
		f := alert.Filter{
			AgentID:  httpkit.QueryString(r, "agent_id", ""),
			Tier:     report.Tier(httpkit.QueryString(r, "level", "")),
			Status:   alert.Status(httpkit.QueryString(r, "status", "")),
			Severity: report.Severity(httpkit.QueryString(r, "severity", "")),
			Limit:    limit,
			Offset:   offset,
		}
		return s.Alerts.List(r.Context(), f)
	})(w, r)
}

func (s *Server) handleGetAlert(w http.ResponseWriter, r *http.Request) {
	httpkit.Handle(s.Log, func(r *http.Request) (any, error) {
		return s.Alerts.Get(r.Context(), mux.Vars(r)["id"])
	})(w, r)
}

type alertNoteRequest struct {
	Note string `json:"note"`
}

func (s *Server) handleAcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	httpkit.HandleJSON[alertNoteRequest](s.Log, func(r *http.Request, req *alertNoteRequest) (any, error) {
		id := mux.Vars(r)["id"]
		by := middleware.UserID(r.Context())
		return s.Aggregator.Acknowledge(r.Context(), id, by, req.Note, time.Now().UTC())
	})(w, r)
}

func (s *Server) handleResolveAlert(w http.ResponseWriter, r *http.Request) {
	httpkit.HandleJSON[alertNoteRequest](s.Log, func(r *http.Request, req *alertNoteRequest) (any, error) {
		id := mux.Vars(r)["id"]
		return s.Aggregator.Resolve(r.Context(), id, req.Note, time.Now().UTC())
	})(w, r)
}
