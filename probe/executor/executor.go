// Package executor runs one full Probe inspection: collect, derive issues,
// classify, auto-fix L1s, and assemble the upstream-bound report (spec.md
// §4.7).
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/wayfind/Cortex/domain/intent"
	"github.com/wayfind/Cortex/domain/report"
	"github.com/wayfind/Cortex/probe/autofix"
	"github.com/wayfind/Cortex/probe/classifier"
)

// MetricsCollector samples one SystemMetrics snapshot.
type MetricsCollector interface {
	Collect(ctx context.Context) (report.SystemMetrics, error)
}

// IntentRecorder appends a best-effort audit entry.
type IntentRecorder interface {
	Record(ctx context.Context, rec intent.Record) error
}

// Thresholds configures the raw issue-derivation rules.
type Thresholds struct {
	CPUPercent    float64
	MemoryPercent float64
	DiskPercent   float64
}

// Executor wires together a metrics collector, classifier, auto-fixer, and
// intent recorder to produce one Report per run.
type Executor struct {
	AgentID    string
	Metrics    MetricsCollector
	Classifier *classifier.Classifier
	Fixer      *autofix.Fixer
	Intent     IntentRecorder
	Thresholds Thresholds
}

// Run performs one inspection and returns the assembled report. now is
// injected so callers (and tests) control timestamps deterministically.
func (e *Executor) Run(ctx context.Context, now time.Time) (report.Report, error) {
	e.recordIntent(ctx, intent.KindMilestone, "", "probe run started", nil, now)

	metrics, err := e.Metrics.Collect(ctx)
	if err != nil {
		return report.Report{}, fmt.Errorf("collect metrics: %w", err)
	}

	rawIssues, thresholdBreached := e.deriveIssues(metrics, now)

	var tiered []report.IssueReport
	for _, iss := range rawIssues {
		iss.Tier = e.Classifier.Classify(iss)
		tiered = append(tiered, iss)
	}

	var actions []report.ActionReport
	for _, iss := range tiered {
		if iss.Tier != report.TierL1 {
			continue
		}
		action := e.Fixer.Run(ctx, iss, now)
		actions = append(actions, action)
		e.recordIntent(ctx, intent.KindDecision, iss.Type, fmt.Sprintf("auto-fix attempt: %s -> %s", iss.Type, action.Outcome), map[string]any{"detail": action.Details}, now)
	}

	for _, iss := range tiered {
		if iss.Tier != report.TierL3 {
			continue
		}
		tier := report.TierL3
		rec := intent.Record{
			AgentID:     e.AgentID,
			Kind:        intent.KindBlocker,
			Tier:        &tier,
			Category:    iss.Type,
			Description: iss.Description,
			Timestamp:   now,
		}
		_ = e.Intent.Record(ctx, rec)
	}

	status := report.ComputeStatus(tiered, thresholdBreached)

	rep := report.Report{
		AgentID:   e.AgentID,
		Timestamp: now,
		Status:    status,
		Metrics:   metrics,
		Issues:    report.OpenIssues(tiered),
		Actions:   actions,
	}

	e.recordIntent(ctx, intent.KindMilestone, "", fmt.Sprintf("probe run completed: status=%s", status), nil, now)

	return rep, nil
}

func (e *Executor) recordIntent(ctx context.Context, kind intent.Kind, category, description string, metadata map[string]any, now time.Time) {
	if e.Intent == nil {
		return
	}
	_ = e.Intent.Record(ctx, intent.Record{
		AgentID:     e.AgentID,
		Kind:        kind,
		Category:    category,
		Description: description,
		Metadata:    metadata,
		Timestamp:   now,
	})
}

// deriveIssues applies threshold rules over metrics, producing typed
// candidate issues (tier is assigned later by the classifier) and reporting
// whether any configured threshold was breached.
func (e *Executor) deriveIssues(metrics report.SystemMetrics, now time.Time) ([]report.IssueReport, bool) {
	var issues []report.IssueReport
	breached := false

	if e.Thresholds.CPUPercent > 0 && metrics.CPUPercent >= e.Thresholds.CPUPercent {
		breached = true
		issues = append(issues, report.IssueReport{
			Type:        "high_cpu_usage",
			Description: fmt.Sprintf("cpu usage %.1f%% exceeds threshold %.1f%%", metrics.CPUPercent, e.Thresholds.CPUPercent),
			Severity:    report.SeverityMedium,
			Timestamp:   now,
		})
	}

	if e.Thresholds.MemoryPercent > 0 && metrics.MemoryPercent >= e.Thresholds.MemoryPercent {
		breached = true
		issues = append(issues, report.IssueReport{
			Type:        "memory_leak",
			Description: fmt.Sprintf("memory usage %.1f%% exceeds threshold %.1f%%", metrics.MemoryPercent, e.Thresholds.MemoryPercent),
			Severity:    report.SeverityMedium,
			Timestamp:   now,
		})
	}

	if e.Thresholds.DiskPercent > 0 && metrics.DiskPercent >= e.Thresholds.DiskPercent {
		breached = true
		issues = append(issues, report.IssueReport{
			Type:        "disk_space_low",
			Description: fmt.Sprintf("disk usage %.1f%% exceeds threshold %.1f%%", metrics.DiskPercent, e.Thresholds.DiskPercent),
			Severity:    report.SeverityMedium,
			Timestamp:   now,
		})
	}

	return issues, breached
}
