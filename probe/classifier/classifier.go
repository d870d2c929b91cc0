// Package classifier assigns a tier to an IssueReport, per spec.md §4.4.
// It is a pure function over a runtime-extensible pair of type sets.
package classifier

import "github.com/wayfind/Cortex/domain/report"

// DefaultL1Types are remediable in place with a worst-case no-op.
var DefaultL1Types = []string{
	"disk_space_low",
	"temp_files_cleanup",
	"log_rotation_needed",
	"cache_cleanup",
	"old_package_cleanup",
}

// DefaultL2Types require a decision before any action is taken.
var DefaultL2Types = []string{
	"service_down",
	"service_failed",
	"process_crashed",
	"config_drift",
	"certificate_expiring",
	"memory_leak",
}

// Classifier holds the (mutable, runtime-extensible) L1/L2 type sets.
type Classifier struct {
	l1 map[string]struct{}
	l2 map[string]struct{}
}

// New builds a classifier seeded with the default type sets.
func New() *Classifier {
	return &Classifier{
		l1: toSet(DefaultL1Types),
		l2: toSet(DefaultL2Types),
	}
}

func toSet(types []string) map[string]struct{} {
	s := make(map[string]struct{}, len(types))
	for _, t := range types {
		s[t] = struct{}{}
	}
	return s
}

// AddL1Type/AddL2Type extend the classifier's type sets at runtime.
func (c *Classifier) AddL1Type(issueType string) { c.l1[issueType] = struct{}{} }
func (c *Classifier) AddL2Type(issueType string) { c.l2[issueType] = struct{}{} }

// Classify assigns a tier, evaluated in the order spec.md §4.4 specifies:
// critical severity or the unknown sentinel always escalate to L3; known L1
// types auto-heal; known L2 types (and anything else, conservatively) need a
// decision.
func (c *Classifier) Classify(issue report.IssueReport) report.Tier {
	if issue.Severity == report.SeverityCritical || issue.Type == report.TypeUnknown {
		return report.TierL3
	}
	if _, ok := c.l1[issue.Type]; ok {
		return report.TierL1
	}
	return report.TierL2
}
