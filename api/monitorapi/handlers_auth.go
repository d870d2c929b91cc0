package monitorapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wayfind/Cortex/platform/apierr"
	"github.com/wayfind/Cortex/platform/httpkit"
	"github.com/wayfind/Cortex/platform/middleware"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string `json:"token"`
	Role      string `json:"role"`
	ExpiresIn int    `json:"expires_in_seconds"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	httpkit.HandleJSON[loginRequest](s.Log, func(r *http.Request, req *loginRequest) (any, error) {
		u, err := s.Users.Authenticate(r.Context(), req.Username, req.Password)
		if err != nil {
			return nil, err
		}
		token, err := s.TokenIssuer.Issue(u.ID, u.Role, time.Now().UTC())
		if err != nil {
			return nil, err
		}
		return tokenResponse{Token: token, Role: u.Role}, nil
	})(w, r)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	role := middleware.UserRole(r.Context())
	token, err := s.TokenIssuer.Issue(userID, role, time.Now().UTC())
	if err != nil {
		httpkit.WriteError(w, r, s.Log, err)
		return
	}
	httpkit.WriteJSON(w, http.StatusOK, tokenResponse{Token: token, Role: role})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	httpkit.Handle(s.Log, func(r *http.Request) (any, error) {
		return s.Users.List(r.Context())
	})(w, r)
}

type createUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	httpkit.HandleJSON[createUserRequest](s.Log, func(r *http.Request, req *createUserRequest) (any, error) {
		if req.Username == "" || req.Password == "" {
			return nil, apierr.Validation("username and password are required")
		}
		if req.Role == "" {
			req.Role = "operator"
		}
		return s.Users.Create(r.Context(), req.Username, req.Password, req.Role, time.Now().UTC())
	})(w, r)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.Users.Delete(r.Context(), id); err != nil {
		httpkit.WriteError(w, r, s.Log, err)
		return
	}
	httpkit.WriteMessage(w, http.StatusOK, "user deleted")
}

type reissueAPIKeyRequest struct {
	AgentID string `json:"agent_id"`
	APIKey  string `json:"api_key"`
}

// handleReissueAPIKey rotates the credential an agent presents to
// /api/v1/reports and /api/v1/heartbeat. API keys share the agents table
// (spec.md §3) rather than a dedicated table — see DESIGN.md's Open
// Question resolution — so reissuing re-upserts the existing agent with a
// new key.
func (s *Server) handleReissueAPIKey(w http.ResponseWriter, r *http.Request) {
	httpkit.HandleJSON[reissueAPIKeyRequest](s.Log, func(r *http.Request, req *reissueAPIKeyRequest) (any, error) {
		if req.AgentID == "" || req.APIKey == "" {
			return nil, apierr.Validation("agent_id and api_key are required")
		}
		a, err := s.Agents.Get(r.Context(), req.AgentID)
		if err != nil {
			return nil, err
		}
		if err := s.Agents.Upsert(r.Context(), a, req.APIKey); err != nil {
			return nil, err
		}
		return map[string]string{"agent_id": req.AgentID}, nil
	})(w, r)
}

func (s *Server) handleRevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	agentID := mux.Vars(r)["agent_id"]
	a, err := s.Agents.Get(r.Context(), agentID)
	if err != nil {
		httpkit.WriteError(w, r, s.Log, err)
		return
	}
	if err := s.Agents.Upsert(r.Context(), a, randomUnusableKey(a.ID)); err != nil {
		httpkit.WriteError(w, r, s.Log, err)
		return
	}
	httpkit.WriteMessage(w, http.StatusOK, "api key revoked")
}

// randomUnusableKey produces a key no client could plausibly present,
// effectively disabling the agent's credential without a dedicated
// revocation column.
func randomUnusableKey(agentID string) string {
	return "revoked:" + agentID + ":" + time.Now().UTC().Format(time.RFC3339Nano)
}
