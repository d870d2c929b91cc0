// Package autofix implements the tier-1 remediation registry (spec.md
// §4.5): a map from issue type to handler, wrapped so that every handler
// invocation — success, failure, or panic — surfaces as one ActionReport
// and never escapes to the caller.
package autofix

import (
	"context"
	"fmt"
	"time"

	"github.com/wayfind/Cortex/domain/report"
)

// FixResult is what a remediation handler reports about its own attempt.
type FixResult struct {
	Success bool
	Detail  string
}

// Handler performs one remediation attempt for a given issue.
type Handler func(ctx context.Context, issue report.IssueReport) FixResult

// Fixer is the type->handler registry. The zero value is usable with no
// registered handlers (every issue falls through to "no handler").
type Fixer struct {
	handlers map[string]Handler
}

// New builds a Fixer with no handlers registered.
func New() *Fixer {
	return &Fixer{handlers: make(map[string]Handler)}
}

// Register installs handler for issueType. Only L1 types should ever be
// registered; the fixer does not self-register handlers for L2 issue types
// (spec.md §4.5).
func (f *Fixer) Register(issueType string, h Handler) {
	f.handlers[issueType] = h
}

// Run executes the registered handler for issue.Type, recovering any panic
// and always returning an L1 ActionReport.
func (f *Fixer) Run(ctx context.Context, issue report.IssueReport, now time.Time) report.ActionReport {
	out := report.ActionReport{
		Tier:      report.TierL1,
		Action:    issue.Type,
		Timestamp: now,
	}

	h, ok := f.handlers[issue.Type]
	if !ok {
		out.Outcome = report.OutcomeFailed
		out.Details = fmt.Sprintf("no handler registered for issue type %q", issue.Type)
		return out
	}

	result := f.runSafely(ctx, h, issue)
	out.Details = result.Detail
	if result.Success {
		out.Outcome = report.OutcomeSuccess
	} else {
		out.Outcome = report.OutcomeFailed
	}
	return out
}

func (f *Fixer) runSafely(ctx context.Context, h Handler, issue report.IssueReport) (result FixResult) {
	defer func() {
		if r := recover(); r != nil {
			result = FixResult{Success: false, Detail: fmt.Sprintf("handler panic: %v", r)}
		}
	}()
	return h(ctx, issue)
}
