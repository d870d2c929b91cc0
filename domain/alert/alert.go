// Package alert defines the Alert entity: an open L3 operational issue with
// a one-way acknowledge → resolve lifecycle.
package alert

import (
	"fmt"
	"time"

	"github.com/wayfind/Cortex/domain/report"
)

// Status is the lifecycle state of an alert.
type Status string

const (
	StatusNew          Status = "new"
	StatusAcknowledged Status = "acknowledged"
	StatusResolved     Status = "resolved"
)

// Open reports whether the alert status counts toward the dedup window
// (spec.md §4.12: status in {new, acknowledged}).
func (s Status) Open() bool {
	return s == StatusNew || s == StatusAcknowledged
}

// Alert is an open operational issue at tier L3.
type Alert struct {
	ID             string
	AgentID        string
	Tier           report.Tier // always TierL3
	Type           string
	Severity       report.Severity
	Description    string
	Status         Status
	CreatedAt      time.Time
	AcknowledgedAt *time.Time
	AcknowledgedBy string
	ResolvedAt     *time.Time
	Notes          []string
	Details        map[string]any
}

// ErrTerminal is returned when a caller tries to transition an alert out of
// the resolved state.
var ErrTerminal = fmt.Errorf("alert lifecycle transitions out of resolved are rejected")

// Acknowledge moves a new alert to acknowledged, recording who and an
// optional note. Per spec.md §4.12 the transition is one-way; acknowledging
// an already-acknowledged alert succeeds, overwrites who and when, and
// appends any note.
func (a *Alert) Acknowledge(by, note string, at time.Time) error {
	if a.Status == StatusResolved {
		return ErrTerminal
	}
	a.Status = StatusAcknowledged
	a.AcknowledgedAt = &at
	a.AcknowledgedBy = by
	if note != "" {
		a.Notes = append(a.Notes, note)
	}
	return nil
}

// Resolve moves a new or acknowledged alert to resolved, appending any note.
func (a *Alert) Resolve(note string, at time.Time) error {
	if a.Status == StatusResolved {
		return ErrTerminal
	}
	a.Status = StatusResolved
	a.ResolvedAt = &at
	if note != "" {
		a.Notes = append(a.Notes, note)
	}
	return nil
}

// Summary groups alert counts by severity, status, and agent over a
// lookback window (spec.md §4.12's summary endpoint). It lives here,
// rather than in a store package, so every backend and consumer shares one
// type.
type Summary struct {
	BySeverity map[string]int
	ByStatus   map[string]int
	ByAgent    map[string]int
}

// Filter narrows a query over alerts (spec.md §6's GET /api/v1/alerts).
type Filter struct {
	AgentID  string
	Tier     report.Tier
	Status   Status
	Severity report.Severity
	Limit    int
	Offset   int
}
