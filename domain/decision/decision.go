// Package decision defines the Decision entity: the verdict on one L2 issue,
// produced locally by the decision engine or materialized from an upstream
// Monitor's response.
package decision

import "time"

// Status is the verdict of a decision.
type Status string

const (
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Decision is a record of one L2 verdict.
type Decision struct {
	ID              string
	AgentID         string
	IssueType       string
	IssueDescription string
	ProposedAction  string
	LLMAnalysis     string
	Status          Status
	Reason          string
	CreatedAt       time.Time
	ExecutedAt      *time.Time
	ExecutionResult string
}

// MarkExecuted records that the originating agent reported back an
// execution outcome for this decision.
func (d *Decision) MarkExecuted(result string, at time.Time) {
	d.ExecutedAt = &at
	d.ExecutionResult = result
}

// Filter narrows a query over the decision log (spec.md §6's
// GET /api/v1/decisions). It lives here, rather than in a store package,
// so every backend and consumer shares one type.
type Filter struct {
	AgentID string
	Status  Status
	Since   time.Time
	Limit   int
	Offset  int
}
