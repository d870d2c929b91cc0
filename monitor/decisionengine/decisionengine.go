// Package decisionengine renders an L2 issue to a prompt, calls an LLM, and
// parses its line-oriented response into a Decision (spec.md §4.10).
package decisionengine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wayfind/Cortex/domain/decision"
	"github.com/wayfind/Cortex/domain/intent"
	"github.com/wayfind/Cortex/domain/report"
	"github.com/wayfind/Cortex/platform/logging"
)

// LLMClient is the narrow interface the engine needs from an LLM provider.
type LLMClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// IntentRecorder appends a best-effort audit entry.
type IntentRecorder interface {
	Record(ctx context.Context, rec intent.Record) error
}

// Issue is the subset of an IssueReport the engine needs, decoupled from
// the transport so both local executor output and forwarded requests can
// feed it.
type Issue struct {
	AgentID        string
	Type           string
	Description    string
	Severity       report.Severity
	ProposedAction string
	RiskAssessment string
}

// Engine produces L2 decisions.
type Engine struct {
	LLM     LLMClient
	Intent  IntentRecorder
	Timeout time.Duration
	Log     *logging.Logger
}

// New builds an Engine. A zero timeout defaults to 20s, matching
// config.LLMConfig's default.
func New(llm LLMClient, intentRecorder IntentRecorder, timeout time.Duration, log *logging.Logger) *Engine {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Engine{LLM: llm, Intent: intentRecorder, Timeout: timeout, Log: log}
}

// Analyze renders a prompt for one issue, calls the LLM with a bounded
// timeout, and returns the resulting Decision. Any LLM or parse failure
// degrades to a rejected decision carrying the error text in Reason
// (spec.md §7: "LLM failure ... never crashes ingest").
func (e *Engine) Analyze(ctx context.Context, iss Issue, now time.Time) decision.Decision {
	d := decision.Decision{
		AgentID:          iss.AgentID,
		IssueType:        iss.Type,
		IssueDescription: iss.Description,
		ProposedAction:   iss.ProposedAction,
		CreatedAt:        now,
	}

	callCtx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	raw, err := e.LLM.Complete(callCtx, renderPrompt(iss))
	if err != nil {
		d.Status = decision.StatusRejected
		d.Reason = fmt.Sprintf("llm call failed: %v", err)
	} else {
		d.LLMAnalysis = raw
		status, reason, ok := parse(raw)
		if !ok {
			d.Status = decision.StatusRejected
			d.Reason = "unparseable llm response"
		} else {
			d.Status = status
			d.Reason = reason
		}
	}

	tier := report.TierL2
	e.recordIntent(ctx, iss, d, &tier, now)
	return d
}

// BatchAnalyze analyzes a batch of issues serially, so as not to exhaust
// the provider's rate limit (spec.md §4.10). One failing call does not
// abort the batch.
func (e *Engine) BatchAnalyze(ctx context.Context, issues []Issue, now time.Time) []decision.Decision {
	out := make([]decision.Decision, 0, len(issues))
	for _, iss := range issues {
		out = append(out, e.Analyze(ctx, iss, now))
	}
	return out
}

func (e *Engine) recordIntent(ctx context.Context, iss Issue, d decision.Decision, tier *report.Tier, now time.Time) {
	if e.Intent == nil {
		return
	}
	rec := intent.Record{
		AgentID:     iss.AgentID,
		Kind:        intent.KindDecision,
		Tier:        tier,
		Category:    iss.Type,
		Description: fmt.Sprintf("decision engine: %s -> %s (%s)", iss.Type, d.Status, d.Reason),
		Timestamp:   now,
	}
	if err := e.Intent.Record(ctx, rec); err != nil && e.Log != nil {
		e.Log.WithContext(ctx).WithError(err).Warn("decision engine: record intent")
	}
}

func renderPrompt(iss Issue) string {
	var b strings.Builder
	b.WriteString("An operational issue requires a decision.\n")
	fmt.Fprintf(&b, "Type: %s\n", iss.Type)
	fmt.Fprintf(&b, "Description: %s\n", iss.Description)
	fmt.Fprintf(&b, "Severity: %s\n", iss.Severity)
	if iss.ProposedAction != "" {
		fmt.Fprintf(&b, "Proposed action: %s\n", iss.ProposedAction)
	}
	if iss.RiskAssessment != "" {
		fmt.Fprintf(&b, "Risk assessment: %s\n", iss.RiskAssessment)
	}
	b.WriteString("Respond with exactly: DECISION: APPROVE|REJECT, REASON: <short reason>, and optionally ANALYSIS: <detail>.\n")
	return b.String()
}

// parse reads line-oriented DECISION:/REASON: labels from raw, tolerant of
// extra lines and leading/trailing whitespace. An ANALYSIS: line is not
// extracted on its own; the caller keeps the whole raw response as the
// decision's analysis. DECISION is
// normalized by substring (spec.md §4.10): contains "APPROVE" => approved,
// contains "REJECT" => rejected.
func parse(raw string) (decision.Status, string, bool) {
	var status decision.Status
	var reason string
	found := false

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(strings.ToUpper(line), "DECISION:"):
			val := strings.ToUpper(strings.TrimSpace(line[len("DECISION:"):]))
			switch {
			case strings.Contains(val, "APPROVE"):
				status = decision.StatusApproved
				found = true
			case strings.Contains(val, "REJECT"):
				status = decision.StatusRejected
				found = true
			}
		case strings.HasPrefix(strings.ToUpper(line), "REASON:"):
			reason = strings.TrimSpace(line[len("REASON:"):])
		}
	}

	if !found {
		return "", "", false
	}
	if reason == "" {
		reason = "no reason provided"
	}
	return status, reason, true
}
