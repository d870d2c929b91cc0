// Package ingest implements the Monitor's report intake pipeline (spec.md
// §4.9): a transactional resolve/heartbeat/persist, followed by
// non-transactional, best-effort dispatch to the decision engine, alert
// aggregator, notifier, and live feed.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/wayfind/Cortex/domain/agent"
	"github.com/wayfind/Cortex/domain/alert"
	"github.com/wayfind/Cortex/domain/decision"
	"github.com/wayfind/Cortex/domain/intent"
	"github.com/wayfind/Cortex/domain/report"
	"github.com/wayfind/Cortex/monitor/alertaggregator"
	"github.com/wayfind/Cortex/monitor/broadcaster"
	"github.com/wayfind/Cortex/monitor/decisionengine"
	"github.com/wayfind/Cortex/monitor/forwarder"
	"github.com/wayfind/Cortex/platform/cache"
	"github.com/wayfind/Cortex/platform/logging"
)

// AgentStore is the subset of the agent store ingest needs.
type AgentStore interface {
	Get(ctx context.Context, id string) (agent.Agent, error)
	Upsert(ctx context.Context, a agent.Agent, apiKey string) error
	Touch(ctx context.Context, id string, health string, now time.Time) error
}

// ReportStore is the subset of the report store ingest needs.
type ReportStore interface {
	Insert(ctx context.Context, rep report.Report) (int64, error)
}

// DecisionStore is the subset of the decision store ingest needs.
type DecisionStore interface {
	Insert(ctx context.Context, d decision.Decision) (string, error)
}

// TxRunner runs fn within one database transaction, matching
// store/postgres.BaseStore.WithTx's shape so ingest can run steps 1-4 of
// spec.md §4.9 atomically regardless of backend.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Engine is the subset of decisionengine.Engine ingest needs.
type Engine interface {
	Analyze(ctx context.Context, iss decisionengine.Issue, now time.Time) decision.Decision
}

// Aggregator is the subset of alertaggregator.Aggregator ingest needs.
type Aggregator interface {
	Ingest(ctx context.Context, agentID string, issues []alertaggregator.Issue, now time.Time) ([]alert.Alert, error)
}

// Notifier is the subset of notifier.Notifier ingest needs.
type Notifier interface {
	Send(ctx context.Context, a alert.Alert)
}

// Pipeline wires every ingest-side dependency.
type Pipeline struct {
	Tx         TxRunner
	Agents     AgentStore
	Reports    ReportStore
	Decisions  DecisionStore
	Intent     decisionengine.IntentRecorder
	Engine     Engine
	Forwarder  *forwarder.Forwarder
	Aggregator Aggregator
	Notifier   Notifier
	Broadcaster *broadcaster.Broadcaster
	Cache      *cache.Cache
	Log        *logging.Logger
}

// Result is the response shape for POST /api/v1/reports (spec.md §4.9).
type Result struct {
	ReportID         string              `json:"report_id"`
	L2Decisions      []decision.Decision `json:"l2_decisions"`
	L3AlertsTriggered int                `json:"l3_alerts_triggered"`
}

// Ingest runs the full pipeline for one incoming ProbeReport.
func (p *Pipeline) Ingest(ctx context.Context, pr report.ProbeReport, now time.Time) (Result, error) {
	var reportID int64

	err := p.Tx.WithTx(ctx, func(ctx context.Context) error {
		a, err := p.Agents.Get(ctx, pr.AgentID)
		if err != nil {
			a = agent.New(pr.AgentID, pr.AgentID, nil, "", now)
			if err := p.Agents.Upsert(ctx, a, ""); err != nil {
				return fmt.Errorf("auto-register agent: %w", err)
			}
		}

		if err := p.Agents.Touch(ctx, pr.AgentID, string(pr.Status), now); err != nil {
			return fmt.Errorf("touch agent: %w", err)
		}

		rep := report.Report{
			AgentID:    pr.AgentID,
			Timestamp:  pr.Timestamp,
			Status:     pr.Status,
			Metrics:    pr.Metrics,
			Issues:     pr.Issues,
			Actions:    pr.ActionsTaken,
			Metadata:   pr.Metadata,
			ReceivedAt: now,
		}
		id, err := p.Reports.Insert(ctx, rep)
		if err != nil {
			return fmt.Errorf("insert report: %w", err)
		}
		reportID = id
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	result := Result{ReportID: fmt.Sprintf("%d", reportID)}

	a, err := p.Agents.Get(ctx, pr.AgentID)
	upstreamURL := ""
	if err == nil {
		upstreamURL = a.UpstreamURL
	}

	var l2 []report.IssueReport
	var l3 []report.IssueReport
	for _, iss := range pr.Issues {
		switch iss.Tier {
		case report.TierL2:
			l2 = append(l2, iss)
		case report.TierL3:
			l3 = append(l3, iss)
		}
	}

	for _, iss := range l2 {
		d := p.dispatchL2(ctx, pr.AgentID, upstreamURL, iss, now)
		result.L2Decisions = append(result.L2Decisions, d)
	}

	if len(l3) > 0 && p.Aggregator != nil {
		aggIssues := make([]alertaggregator.Issue, 0, len(l3))
		for _, iss := range l3 {
			aggIssues = append(aggIssues, alertaggregator.Issue{
				Type: iss.Type, Description: iss.Description, Severity: iss.Severity,
				ProposedFix: iss.ProposedFix, RiskAssessment: iss.RiskAssessment, Details: iss.Details,
			})
		}
		alerts, err := p.Aggregator.Ingest(ctx, pr.AgentID, aggIssues, now)
		if err != nil {
			p.Log.WithContext(ctx).WithError(err).Error("ingest: alert aggregation failed")
		}
		result.L3AlertsTriggered = len(alerts)
		for _, al := range alerts {
			if p.Notifier != nil {
				p.Notifier.Send(ctx, al)
			}
			if p.Broadcaster != nil {
				p.Broadcaster.Publish(broadcaster.EventAlertTriggered, al)
			}
		}
	}

	if p.Broadcaster != nil {
		p.Broadcaster.Publish(broadcaster.EventReportReceived, map[string]any{
			"agent_id": pr.AgentID,
			"status":   pr.Status,
			"issues":   len(pr.Issues),
			"actions":  len(pr.ActionsTaken),
		})
	}
	if p.Cache != nil {
		p.Cache.ClearPattern(ctx, "cluster")
	}

	return result, nil
}

// dispatchL2 forwards to the agent's upstream when one is configured,
// falling back to the local decision engine on no-upstream or forward
// failure (spec.md §4.9/§4.11).
func (p *Pipeline) dispatchL2(ctx context.Context, agentID, upstreamURL string, iss report.IssueReport, now time.Time) decision.Decision {
	if upstreamURL != "" && p.Forwarder != nil {
		req := forwarder.Request{
			AgentID: agentID, IssueType: iss.Type, IssueDescription: iss.Description,
			Severity: string(iss.Severity), ProposedAction: iss.ProposedFix,
			RiskAssessment: iss.RiskAssessment, Details: iss.Details,
		}
		resp, err := p.Forwarder.Forward(ctx, upstreamURL, req)
		if err == nil && resp != nil {
			d := decision.Decision{
				AgentID: agentID, IssueType: iss.Type, IssueDescription: iss.Description,
				ProposedAction: iss.ProposedFix, LLMAnalysis: resp.LLMAnalysis,
				Status: decision.Status(resp.Status), Reason: resp.Reason, CreatedAt: now,
			}
			id, err := p.Decisions.Insert(ctx, d)
			if err != nil {
				p.Log.WithContext(ctx).WithError(err).Error("ingest: persist forwarded decision")
			}
			d.ID = id
			p.recordDecisionIntent(ctx, d, now)
			return d
		}
		p.Log.WithContext(ctx).Warn("ingest: upstream forward failed, falling back to local decision engine")
	}

	d := p.Engine.Analyze(ctx, decisionengine.Issue{
		AgentID: agentID, Type: iss.Type, Description: iss.Description, Severity: iss.Severity,
		ProposedAction: iss.ProposedFix, RiskAssessment: iss.RiskAssessment,
	}, now)
	id, err := p.Decisions.Insert(ctx, d)
	if err != nil {
		p.Log.WithContext(ctx).WithError(err).Error("ingest: persist local decision")
	}
	d.ID = id
	return d
}

func (p *Pipeline) recordDecisionIntent(ctx context.Context, d decision.Decision, now time.Time) {
	if p.Intent == nil {
		return
	}
	tier := report.TierL2
	rec := intent.Record{
		AgentID: d.AgentID, Kind: intent.KindDecision, Tier: &tier, Category: d.IssueType,
		Description: fmt.Sprintf("forwarded decision materialized: %s -> %s", d.IssueType, d.Status),
		Timestamp:   now,
	}
	if err := p.Intent.Record(ctx, rec); err != nil {
		p.Log.WithContext(ctx).WithError(err).Warn("ingest: record intent for forwarded decision")
	}
}
