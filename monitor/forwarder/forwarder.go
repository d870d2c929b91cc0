// Package forwarder is a pure HTTP client that forwards one L2 issue to a
// parent Monitor's decisions/request endpoint (spec.md §4.11). It persists
// no state: on success it returns the decision payload, on exhaustion or a
// non-retryable error it returns nothing, signaling ingest to fall back to
// a local decision.
package forwarder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/wayfind/Cortex/platform/retrypolicy"
)

// Request is the compact L2 forward body (spec.md §6's wire format).
type Request struct {
	AgentID          string         `json:"agent_id"`
	IssueType        string         `json:"issue_type"`
	IssueDescription string         `json:"issue_description"`
	Severity         string         `json:"severity"`
	ProposedAction   string         `json:"proposed_action,omitempty"`
	RiskAssessment   string         `json:"risk_assessment,omitempty"`
	Details          map[string]any `json:"details,omitempty"`
}

// Response is the parent's decision reply.
type Response struct {
	DecisionID  string    `json:"decision_id"`
	Status      string    `json:"status"`
	Reason      string    `json:"reason"`
	LLMAnalysis string    `json:"llm_analysis,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Forwarder posts L2 requests to an upstream Monitor.
type Forwarder struct {
	client *http.Client
}

// New builds a Forwarder.
func New(client *http.Client) *Forwarder {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Forwarder{client: client}
}

// Forward posts req to upstreamURL + "/api/v1/decisions/request" using the
// patient retry profile. It returns (nil, nil) on exhaustion — not an
// error — so callers know to fall back locally without logging it as a
// failure of the forward attempt itself.
func (f *Forwarder) Forward(ctx context.Context, upstreamURL string, req Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode forward request: %w", err)
	}

	var resp *Response
	err = retrypolicy.Run(ctx, retrypolicy.Patient(), func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, upstreamURL+"/api/v1/decisions/request", bytes.NewReader(body))
		if err != nil {
			return err
		}
		httpReq.Header.Set("Content-Type", "application/json")

		httpResp, err := f.client.Do(httpReq)
		if err != nil {
			return err
		}
		defer httpResp.Body.Close()

		if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
			return fmt.Errorf("upstream decision request failed with status %d", httpResp.StatusCode)
		}

		var decoded Response
		if err := json.NewDecoder(httpResp.Body).Decode(&decoded); err != nil {
			return fmt.Errorf("decode upstream decision response: %w", err)
		}
		resp = &decoded
		return nil
	})
	if err != nil {
		return nil, nil
	}
	return resp, nil
}
