// Package report defines the wire and persisted shapes produced by a Probe
// inspection: SystemMetrics, IssueReport, ActionReport, and the Report
// envelope that wraps them for delivery and storage.
package report

import "time"

// Tier classifies an issue's severity bucket.
type Tier string

const (
	TierL1 Tier = "L1"
	TierL2 Tier = "L2"
	TierL3 Tier = "L3"
)

// Severity is the producer's hint about how bad an issue is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Status is the overall health verdict an executor assigns to one
// inspection run.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
)

// TypeUnknown is the sentinel issue type that always classifies as L3,
// per spec.md §4.4 rule 1.
const TypeUnknown = "unknown"

// SystemMetrics is one point-in-time snapshot of a host's vitals.
type SystemMetrics struct {
	CPUPercent    float64            `json:"cpu_percent"`
	MemoryPercent float64            `json:"memory_percent"`
	DiskPercent   float64            `json:"disk_percent"`
	LoadAverage   [3]float64         `json:"load_average"`
	UptimeSeconds int64              `json:"uptime_seconds"`
	ProcessCount  int                `json:"process_count,omitempty"`
	DiskIO        map[string]int64   `json:"disk_io,omitempty"`
	NetworkIO     map[string]int64   `json:"network_io,omitempty"`
}

// IssueReport is the ephemeral, structured finding produced by the executor.
// Tier is set by the classifier, never by the producer (spec.md §3 invariant).
type IssueReport struct {
	Tier             Tier           `json:"level"`
	Type             string         `json:"type"`
	Description      string         `json:"description"`
	Severity         Severity       `json:"severity"`
	ProposedFix      string         `json:"proposed_fix,omitempty"`
	RiskAssessment   string         `json:"risk_assessment,omitempty"`
	Details          map[string]any `json:"details,omitempty"`
	Timestamp        time.Time      `json:"timestamp"`
}

// ActionOutcome is the result of an auto-fix attempt.
type ActionOutcome string

const (
	OutcomeSuccess ActionOutcome = "success"
	OutcomeFailed  ActionOutcome = "failed"
	OutcomePartial ActionOutcome = "partial"
)

// ActionReport is evidence of a remediation attempt. Tier is restricted to
// L1 or L2 by spec.md §3; Cortex's auto-fixer only ever produces L1 action
// reports (spec.md §4.5), the L2 tier exists for forward-compatibility with
// a future human-approved-then-executed action path.
type ActionReport struct {
	Tier      Tier          `json:"level"`
	Action    string        `json:"action"`
	Outcome   ActionOutcome `json:"outcome"`
	Details   string        `json:"details"`
	Timestamp time.Time     `json:"timestamp"`
}

// Report is the append-only record of one inspection, as persisted by
// ingest. Issues here are only L2/L3 (tier-1 containment, spec.md §8).
type Report struct {
	ID          string
	AgentID     string
	Timestamp   time.Time
	Status      Status
	Metrics     SystemMetrics
	Issues      []IssueReport
	Actions     []ActionReport
	Metadata    map[string]any
	ReceivedAt  time.Time
}

// ProbeReport is the wire shape POSTed to a Monitor's /api/v1/reports.
type ProbeReport struct {
	AgentID     string         `json:"agent_id"`
	Timestamp   time.Time      `json:"timestamp"`
	Status      Status         `json:"status"`
	Metrics     SystemMetrics  `json:"metrics"`
	Issues      []IssueReport  `json:"issues"`
	ActionsTaken []ActionReport `json:"actions_taken"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// ComputeStatus implements spec.md §4.7/§8's status-computation invariant:
// critical iff any L3 issue exists; warning iff no L3 but (any L2 or any
// threshold breach); healthy otherwise.
func ComputeStatus(issues []IssueReport, thresholdBreached bool) Status {
	hasL2 := false
	for _, iss := range issues {
		if iss.Tier == TierL3 {
			return StatusCritical
		}
		if iss.Tier == TierL2 {
			hasL2 = true
		}
	}
	if hasL2 || thresholdBreached {
		return StatusWarning
	}
	return StatusHealthy
}

// OpenIssues filters a tiered issue slice down to the L2+L3 issues that a
// ProbeReport should carry upstream; L1 issues are represented only by their
// ActionReport (spec.md §4.7/§8 tier-1 containment invariant).
func OpenIssues(issues []IssueReport) []IssueReport {
	out := make([]IssueReport, 0, len(issues))
	for _, iss := range issues {
		if iss.Tier != TierL1 {
			out = append(out, iss)
		}
	}
	return out
}
