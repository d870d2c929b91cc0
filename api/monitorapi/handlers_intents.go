package monitorapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wayfind/Cortex/domain/intent"
	"github.com/wayfind/Cortex/platform/httpkit"
)

func (s *Server) handleListIntents(w http.ResponseWriter, r *http.Request) {
	httpkit.Handle(s.Log, func(r *http.Request) (any, error) {
		offset, limit := httpkit.Pagination(r, 50, 200)
		since := time.Time{}
		if raw := httpkit.QueryString(r, "since", ""); raw != "" {
			if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
				since = parsed
			}
		}
		f := intent.Filter{
			AgentID:  httpkit.QueryString(r, "agent_id", ""),
			Kind:     httpkit.QueryString(r, "kind", ""),
			Tier:     httpkit.QueryString(r, "tier", ""),
			Category: httpkit.QueryString(r, "category", ""),
			Since:    since,
			Limit:    limit,
			Offset:   offset,
		}
		return s.Intent.Query(r.Context(), f)
	})(w, r)
}

func (s *Server) handleGetIntent(w http.ResponseWriter, r *http.Request) {
	httpkit.Handle(s.Log, func(r *http.Request) (any, error) {
		return s.Intent.Get(r.Context(), mux.Vars(r)["id"])
	})(w, r)
}

func (s *Server) handleIntentSummary(w http.ResponseWriter, r *http.Request) {
	httpkit.Handle(s.Log, func(r *http.Request) (any, error) {
		lookback := time.Duration(httpkit.QueryInt(r, "lookback_hours", 24)) * time.Hour
		topN := httpkit.QueryInt(r, "top", 5)
		return s.Intent.Summarize(r.Context(), time.Now().UTC().Add(-lookback), topN)
	})(w, r)
}
