package monitorapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wayfind/Cortex/domain/agent"
	"github.com/wayfind/Cortex/platform/apierr"
	"github.com/wayfind/Cortex/platform/httpkit"
)

type registerAgentRequest struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	ParentID          string `json:"parent_id,omitempty"`
	UpstreamURL       string `json:"upstream_url,omitempty"`
	APIKey            string `json:"api_key"`
	RegistrationToken string `json:"registration_token"`
}

func (s *Server) handleRegisterAgent(w http.ResponseWriter, r *http.Request) {
	httpkit.HandleJSON[registerAgentRequest](s.Log, func(r *http.Request, req *registerAgentRequest) (any, error) {
		if req.ID == "" || req.APIKey == "" {
			return nil, apierr.Validation("id and api_key are required")
		}
		now := time.Now().UTC()
		var parentID *string
		if req.ParentID != "" {
			parentID = &req.ParentID
		}

		a := agent.New(req.ID, req.Name, parentID, req.APIKey, now)
		a.UpstreamURL = req.UpstreamURL
		if existing, err := s.Agents.Get(r.Context(), req.ID); err == nil {
			a.CreatedAt = existing.CreatedAt
			a.Health = existing.Health
			a.Status = existing.Status
			a.LastHeartbeat = existing.LastHeartbeat
		}

		if err := s.Topology.Register(r.Context(), a, req.APIKey, req.RegistrationToken); err != nil {
			return nil, err
		}
		return a, nil
	})(w, r)
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	httpkit.Handle(s.Log, func(r *http.Request) (any, error) {
		all, err := s.Agents.List(r.Context())
		if err != nil {
			return nil, err
		}
		status := httpkit.QueryString(r, "status", "")
		health := httpkit.QueryString(r, "health", "")

		out := make([]agent.Agent, 0, len(all))
		for _, a := range all {
			if status != "" && string(a.Status) != status {
				continue
			}
			if health != "" && string(a.Health) != health {
				continue
			}
			out = append(out, a)
		}
		return out, nil
	})(w, r)
}

type agentDetail struct {
	agent.Agent
	RecentReports int `json:"recent_reports"`
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	httpkit.Handle(s.Log, func(r *http.Request) (any, error) {
		id := mux.Vars(r)["id"]
		a, err := s.Agents.Get(r.Context(), id)
		if err != nil {
			return nil, err
		}
		reports, err := s.Reports.Recent(r.Context(), id, 20)
		if err != nil {
			return nil, err
		}
		return agentDetail{Agent: a, RecentReports: len(reports)}, nil
	})(w, r)
}

func (s *Server) handleDeleteAgent(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.Agents.Delete(r.Context(), id); err != nil {
		httpkit.WriteError(w, r, s.Log, err)
		return
	}
	s.Topology.Invalidate(r.Context())
	s.Cache.ClearPattern(r.Context(), "cluster")
	httpkit.WriteMessage(w, http.StatusOK, "agent deleted")
}

func (s *Server) handleLightHeartbeat(w http.ResponseWriter, r *http.Request) {
	id := httpkit.QueryString(r, "agent_id", "")
	if id == "" {
		httpkit.WriteMessage(w, http.StatusBadRequest, "agent_id is required")
		return
	}
	if err := s.Agents.Touch(r.Context(), id, "", time.Now().UTC()); err != nil {
		httpkit.WriteError(w, r, s.Log, err)
		return
	}
	s.Cache.ClearPattern(r.Context(), "cluster")
	httpkit.WriteMessage(w, http.StatusOK, "heartbeat recorded")
}

type structuredHeartbeatRequest struct {
	Health string `json:"health"`
}

func (s *Server) handleStructuredHeartbeat(w http.ResponseWriter, r *http.Request) {
	httpkit.HandleJSON[structuredHeartbeatRequest](s.Log, func(r *http.Request, req *structuredHeartbeatRequest) (any, error) {
		id := mux.Vars(r)["id"]
		if err := s.Agents.Touch(r.Context(), id, req.Health, time.Now().UTC()); err != nil {
			return nil, err
		}
		s.Cache.ClearPattern(r.Context(), "cluster")
		return map[string]string{"agent_id": id, "health": req.Health}, nil
	})(w, r)
}

func (s *Server) handleClusterOverview(w http.ResponseWriter, r *http.Request) {
	httpkit.Handle(s.Log, func(r *http.Request) (any, error) {
		const cacheKey = "cluster:overview"
		if v, ok := s.Cache.Get(r.Context(), cacheKey); ok {
			return v, nil
		}

		agents, err := s.Agents.List(r.Context())
		if err != nil {
			return nil, err
		}
		overview := map[string]any{
			"total_agents": len(agents),
			"by_status":    map[string]int{},
			"by_health":    map[string]int{},
		}
		byStatus := overview["by_status"].(map[string]int)
		byHealth := overview["by_health"].(map[string]int)
		for _, a := range agents {
			byStatus[string(a.Status)]++
			byHealth[string(a.Health)]++
		}

		s.Cache.Set(r.Context(), cacheKey, overview, 30*time.Second)
		return overview, nil
	})(w, r)
}

func (s *Server) handleClusterTopology(w http.ResponseWriter, r *http.Request) {
	httpkit.Handle(s.Log, func(r *http.Request) (any, error) {
		return s.Topology.Compute(r.Context())
	})(w, r)
}
