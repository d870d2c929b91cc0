package probeapi

import (
	"net/http"

	"github.com/wayfind/Cortex/platform/apierr"
	"github.com/wayfind/Cortex/platform/httpkit"
)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	httpkit.WriteJSON(w, http.StatusOK, s.Scheduler.Status())
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	httpkit.WriteJSON(w, http.StatusOK, s.Scheduler.Status())
}

func (s *Server) handleSchedulePause(w http.ResponseWriter, r *http.Request) {
	s.Scheduler.Pause()
	httpkit.WriteMessage(w, http.StatusOK, "schedule paused")
}

func (s *Server) handleScheduleResume(w http.ResponseWriter, r *http.Request) {
	s.Scheduler.Resume()
	httpkit.WriteMessage(w, http.StatusOK, "schedule resumed")
}

type executeRequest struct {
	Force bool `json:"force"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	httpkit.HandleJSON[executeRequest](s.Log, func(r *http.Request, req *executeRequest) (any, error) {
		id, err := s.Scheduler.ExecuteOnce(req.Force)
		if err != nil {
			return nil, apierr.Conflict("%s", err.Error())
		}
		return map[string]string{"execution_id": id}, nil
	})(w, r)
}
