package monitorapi

import (
	"net/http"
	"time"

	"github.com/wayfind/Cortex/domain/report"
	"github.com/wayfind/Cortex/platform/httpkit"
)

func (s *Server) handleIngestReport(w http.ResponseWriter, r *http.Request) {
	httpkit.HandleJSON[report.ProbeReport](s.Log, func(r *http.Request, pr *report.ProbeReport) (any, error) {
		return s.Ingest.Ingest(r.Context(), *pr, time.Now().UTC())
	})(w, r)
}
