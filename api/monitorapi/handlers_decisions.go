package monitorapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wayfind/Cortex/domain/decision"
	"github.com/wayfind/Cortex/domain/report"
	"github.com/wayfind/Cortex/monitor/decisionengine"
	"github.com/wayfind/Cortex/platform/apierr"
	"github.com/wayfind/Cortex/platform/httpkit"
)

func (s *Server) handleListDecisions(w http.ResponseWriter, r *http.Request) {
	httpkit.Handle(s.Log, func(r *http.Request) (any, error) {
		offset, limit := httpkit.Pagination(r, 50, 200)
		f := decision.Filter{
			AgentID: httpkit.QueryString(r, "agent_id", ""),
			Status:  decision.Status(httpkit.QueryString(r, "status", "")),
			Limit:   limit,
			Offset:  offset,
		}
		return s.Decisions.List(r.Context(), f)
	})(w, r)
}

func (s *Server) handleGetDecision(w http.ResponseWriter, r *http.Request) {
	httpkit.Handle(s.Log, func(r *http.Request) (any, error) {
		return s.Decisions.Get(r.Context(), mux.Vars(r)["id"])
	})(w, r)
}

// decisionRequest is the cross-tree L2 request body (spec.md §6): a child
// Monitor forwarding an issue it cannot decide locally.
type decisionRequest struct {
	AgentID          string         `json:"agent_id"`
	IssueType        string         `json:"issue_type"`
	IssueDescription string         `json:"issue_description"`
	Severity         string         `json:"severity"`
	ProposedAction   string         `json:"proposed_action,omitempty"`
	RiskAssessment   string         `json:"risk_assessment,omitempty"`
	Details          map[string]any `json:"details,omitempty"`
}

type decisionRequestResponse struct {
	DecisionID  string    `json:"decision_id"`
	Status      string    `json:"status"`
	Reason      string    `json:"reason"`
	LLMAnalysis string    `json:"llm_analysis,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (s *Server) handleDecisionRequest(w http.ResponseWriter, r *http.Request) {
	httpkit.HandleJSON[decisionRequest](s.Log, func(r *http.Request, req *decisionRequest) (any, error) {
		if req.AgentID == "" || req.IssueType == "" {
			return nil, apierr.Validation("agent_id and issue_type are required")
		}
		now := time.Now().UTC()
		d := s.Engine.Analyze(r.Context(), decisionengine.Issue{
			AgentID:        req.AgentID,
			Type:           req.IssueType,
			Description:    req.IssueDescription,
			Severity:       report.Severity(req.Severity),
			ProposedAction: req.ProposedAction,
			RiskAssessment: req.RiskAssessment,
		}, now)

		id, err := s.Decisions.Insert(r.Context(), d)
		if err != nil {
			return nil, err
		}
		d.ID = id

		return decisionRequestResponse{
			DecisionID:  d.ID,
			Status:      string(d.Status),
			Reason:      d.Reason,
			LLMAnalysis: d.LLMAnalysis,
			CreatedAt:   d.CreatedAt,
		}, nil
	})(w, r)
}

type decisionFeedbackRequest struct {
	Result string `json:"result"`
}

func (s *Server) handleDecisionFeedback(w http.ResponseWriter, r *http.Request) {
	httpkit.HandleJSON[decisionFeedbackRequest](s.Log, func(r *http.Request, req *decisionFeedbackRequest) (any, error) {
		id := mux.Vars(r)["id"]
		d, err := s.Decisions.Get(r.Context(), id)
		if err != nil {
			return nil, err
		}
		d.MarkExecuted(req.Result, time.Now().UTC())
		if err := s.Decisions.Update(r.Context(), d); err != nil {
			return nil, err
		}
		return d, nil
	})(w, r)
}
