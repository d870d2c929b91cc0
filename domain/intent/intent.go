// Package intent defines IntentRecord: an append-only audit entry describing
// a decision, blocker, milestone, or note.
package intent

import (
	"time"

	"github.com/wayfind/Cortex/domain/report"
)

// Kind is the category of an intent record.
type Kind string

const (
	KindDecision  Kind = "decision"
	KindBlocker   Kind = "blocker"
	KindMilestone Kind = "milestone"
	KindNote      Kind = "note"
)

// Record is one append-only audit entry.
type Record struct {
	ID          string
	AgentID     string
	Kind        Kind
	Tier        *report.Tier
	Category    string
	Description string
	Metadata    map[string]any
	Status      string
	Timestamp   time.Time
}

// Filter narrows a query over the intent log (spec.md §4.16). It lives
// here, rather than in a store package, so every backend and consumer
// shares one type.
type Filter struct {
	AgentID  string
	Kind     string
	Tier     string
	Category string
	Since    time.Time
	Limit    int
	Offset   int
}
