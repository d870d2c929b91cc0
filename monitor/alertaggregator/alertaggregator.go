// Package alertaggregator dedups incoming L3 issues into Alert rows and
// drives their acknowledge/resolve lifecycle (spec.md §4.12).
package alertaggregator

import (
	"context"
	"fmt"
	"time"

	"github.com/wayfind/Cortex/domain/alert"
	"github.com/wayfind/Cortex/domain/intent"
	"github.com/wayfind/Cortex/domain/report"
	"github.com/wayfind/Cortex/platform/apierr"
	"github.com/wayfind/Cortex/platform/logging"
)

// AlertStore is the subset of the alert store the aggregator needs.
type AlertStore interface {
	Insert(ctx context.Context, a alert.Alert) (string, error)
	RecentOpenByAgentType(ctx context.Context, agentID, issueType string, since time.Time, limit int) ([]alert.Alert, error)
	Get(ctx context.Context, id string) (alert.Alert, error)
	Update(ctx context.Context, a alert.Alert) error
	Summarize(ctx context.Context, since time.Time) (alert.Summary, error)
}

// IntentRecorder appends a best-effort audit entry.
type IntentRecorder interface {
	Record(ctx context.Context, rec intent.Record) error
}

// Issue is the subset of an IssueReport the aggregator needs.
type Issue struct {
	Type           string
	Description    string
	Severity       report.Severity
	ProposedFix    string
	RiskAssessment string
	Details        map[string]any
}

const dedupLookback = 5

// Aggregator dedups L3 issues into Alert rows.
type Aggregator struct {
	store       AlertStore
	intent      IntentRecorder
	dedupWindow time.Duration
	log         *logging.Logger
}

// New builds an Aggregator. dedupWindow defaults to 30 minutes (spec.md
// §4.12) when zero.
func New(store AlertStore, intentRecorder IntentRecorder, dedupWindow time.Duration, log *logging.Logger) *Aggregator {
	if dedupWindow <= 0 {
		dedupWindow = 30 * time.Minute
	}
	return &Aggregator{store: store, intent: intentRecorder, dedupWindow: dedupWindow, log: log}
}

// Ingest processes a batch of L3 issues from one agent, creating new alerts
// for the ones that are not duplicates of a recent open alert of the same
// (agent, type). It returns only the alerts actually created.
func (a *Aggregator) Ingest(ctx context.Context, agentID string, issues []Issue, now time.Time) ([]alert.Alert, error) {
	var created []alert.Alert
	for _, iss := range issues {
		al, isNew, err := a.ingestOne(ctx, agentID, iss, now)
		if err != nil {
			return created, err
		}
		if isNew {
			created = append(created, al)
		}
	}
	return created, nil
}

func (a *Aggregator) ingestOne(ctx context.Context, agentID string, iss Issue, now time.Time) (alert.Alert, bool, error) {
	recent, err := a.store.RecentOpenByAgentType(ctx, agentID, iss.Type, now.Add(-a.dedupWindow), dedupLookback)
	if err != nil {
		return alert.Alert{}, false, fmt.Errorf("check recent alerts: %w", err)
	}
	if len(recent) > 0 {
		return alert.Alert{}, false, nil
	}

	details := map[string]any{}
	for k, v := range iss.Details {
		details[k] = v
	}
	if iss.ProposedFix != "" {
		details["proposed_fix"] = iss.ProposedFix
	}
	if iss.RiskAssessment != "" {
		details["risk_assessment"] = iss.RiskAssessment
	}

	al := alert.Alert{
		AgentID:     agentID,
		Tier:        report.TierL3,
		Type:        iss.Type,
		Severity:    iss.Severity,
		Description: iss.Description,
		Status:      alert.StatusNew,
		CreatedAt:   now,
		Details:     details,
	}
	id, err := a.store.Insert(ctx, al)
	if err != nil {
		return alert.Alert{}, false, fmt.Errorf("insert alert: %w", err)
	}
	al.ID = id

	a.recordIntent(ctx, al, now)
	return al, true, nil
}

func (a *Aggregator) recordIntent(ctx context.Context, al alert.Alert, now time.Time) {
	if a.intent == nil {
		return
	}
	tier := al.Tier
	rec := intent.Record{
		AgentID:     al.AgentID,
		Kind:        intent.KindBlocker,
		Tier:        &tier,
		Category:    al.Type,
		Description: al.Description,
		Timestamp:   now,
	}
	if err := a.intent.Record(ctx, rec); err != nil {
		a.log.WithContext(ctx).WithError(err).Warn("alert aggregator: record intent")
	}
}

// Acknowledge transitions an alert new -> acknowledged.
func (a *Aggregator) Acknowledge(ctx context.Context, id, by, note string, now time.Time) (alert.Alert, error) {
	al, err := a.store.Get(ctx, id)
	if err != nil {
		return alert.Alert{}, err
	}
	if err := al.Acknowledge(by, note, now); err != nil {
		return alert.Alert{}, apierr.Conflict("%s", err.Error())
	}
	if err := a.store.Update(ctx, al); err != nil {
		return alert.Alert{}, fmt.Errorf("update alert: %w", err)
	}
	return al, nil
}

// Resolve transitions an alert {new, acknowledged} -> resolved.
func (a *Aggregator) Resolve(ctx context.Context, id, note string, now time.Time) (alert.Alert, error) {
	al, err := a.store.Get(ctx, id)
	if err != nil {
		return alert.Alert{}, err
	}
	if err := al.Resolve(note, now); err != nil {
		return alert.Alert{}, apierr.Conflict("%s", err.Error())
	}
	if err := a.store.Update(ctx, al); err != nil {
		return alert.Alert{}, fmt.Errorf("update alert: %w", err)
	}
	return al, nil
}

// Summarize computes alert counts grouped by severity/status/agent over
// the given lookback window.
func (a *Aggregator) Summarize(ctx context.Context, lookback time.Duration, now time.Time) (alert.Summary, error) {
	return a.store.Summarize(ctx, now.Add(-lookback))
}
