// Package agent defines the Agent entity: identity and liveness of a node
// in the Cortex cluster tree.
package agent

import "time"

// Status is the connectivity state of an agent.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// Health is the last reported health tier of an agent.
type Health string

const (
	HealthHealthy  Health = "healthy"
	HealthWarning  Health = "warning"
	HealthCritical Health = "critical"
	HealthUnknown  Health = "unknown"
)

// Agent is a managed host: a Probe (leaf) or a child Monitor.
type Agent struct {
	ID            string
	Name          string
	ParentID      *string
	UpstreamURL   string
	APIKey        string
	Status        Status
	Health        Health
	LastHeartbeat *time.Time
	Metadata      map[string]any
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsRoot reports whether the agent has no parent.
func (a Agent) IsRoot() bool {
	return a.ParentID == nil || *a.ParentID == ""
}

// HasUpstream reports whether escalating L2 issues to a parent Monitor is
// possible for this agent.
func (a Agent) HasUpstream() bool {
	return a.UpstreamURL != ""
}

// New constructs a freshly registered Agent in the online state, as produced
// by both explicit registration and ingest auto-registration.
func New(id, name string, parentID *string, apiKey string, now time.Time) Agent {
	return Agent{
		ID:        id,
		Name:      name,
		ParentID:  parentID,
		APIKey:    apiKey,
		Status:    StatusOnline,
		Health:    HealthUnknown,
		Metadata:  map[string]any{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch records a heartbeat at t, per spec.md's heartbeat-monotonicity
// invariant: last_heartbeat never moves backward and status becomes online.
func (a *Agent) Touch(t time.Time) {
	if a.LastHeartbeat == nil || t.After(*a.LastHeartbeat) {
		a.LastHeartbeat = &t
	}
	a.Status = StatusOnline
	a.UpdatedAt = t
}

// Expired reports whether the agent's last heartbeat is older than now-timeout,
// or it never sent one at all.
func (a Agent) Expired(now time.Time, timeout time.Duration) bool {
	if a.LastHeartbeat == nil {
		return true
	}
	return now.Sub(*a.LastHeartbeat) > timeout
}
