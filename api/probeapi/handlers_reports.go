package probeapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wayfind/Cortex/platform/apierr"
	"github.com/wayfind/Cortex/platform/httpkit"
)

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	httpkit.Handle(s.Log, func(r *http.Request) (any, error) {
		limit := httpkit.QueryInt(r, "limit", 50)
		return s.Scheduler.RecentReports(limit), nil
	})(w, r)
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	httpkit.Handle(s.Log, func(r *http.Request) (any, error) {
		id := mux.Vars(r)["id"]
		exec, ok := s.Scheduler.GetReport(id)
		if !ok {
			return nil, apierr.NotFound("execution %q not found", id)
		}
		return exec, nil
	})(w, r)
}
