// Package memory is an in-memory implementation of store/postgres's
// per-entity stores, for tests and local development. Grounded on
// pkg/storage/memory/memory.go's map-of-structs-guarded-by-mutex shape;
// method names mirror store/postgres's so either backing can be wired into
// the same monitor-side interfaces.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/wayfind/Cortex/domain/agent"
	"github.com/wayfind/Cortex/domain/alert"
	"github.com/wayfind/Cortex/domain/decision"
	"github.com/wayfind/Cortex/domain/intent"
	"github.com/wayfind/Cortex/domain/report"
	"github.com/wayfind/Cortex/domain/user"
	"github.com/wayfind/Cortex/platform/apierr"
)

// NoTx satisfies monitor/ingest.TxRunner for the in-memory backend, which
// has no real transactions: fn runs directly, since every per-entity store
// already serializes its own mutations under its own mutex.
type NoTx struct{}

// WithTx runs fn with ctx unchanged.
func (NoTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// AgentStore is an in-memory Agent store.
type AgentStore struct {
	mu      sync.RWMutex
	agents  map[string]agent.Agent
	keys    map[string]string
}

// NewAgentStore returns an empty AgentStore.
func NewAgentStore() *AgentStore {
	return &AgentStore{agents: make(map[string]agent.Agent), keys: make(map[string]string)}
}

// Upsert inserts or replaces the agent at a.ID, per spec.md §4.14.
func (s *AgentStore) Upsert(ctx context.Context, a agent.Agent, apiKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[a.ID] = a
	if apiKey != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(apiKey), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash api key: %w", err)
		}
		s.keys[a.ID] = string(hash)
	}
	return nil
}

// Get returns one agent by id.
func (s *AgentStore) Get(ctx context.Context, id string) (agent.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.agents[id]
	if !ok {
		return agent.Agent{}, apierr.NotFound("agent %q not found", id)
	}
	return a, nil
}

// List returns every agent, ordered by id.
func (s *AgentStore) List(ctx context.Context) ([]agent.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]agent.Agent, 0, len(s.agents))
	for _, a := range s.agents {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Touch records a heartbeat for an existing agent.
func (s *AgentStore) Touch(ctx context.Context, id string, health string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[id]
	if !ok {
		return apierr.NotFound("agent %q not found", id)
	}
	a.Touch(now)
	a.Health = agent.Health(health)
	s.agents[id] = a
	return nil
}

// MarkOffline transitions an agent's status, preserving health.
func (s *AgentStore) MarkOffline(ctx context.Context, id string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[id]
	if !ok {
		return apierr.NotFound("agent %q not found", id)
	}
	a.Status = agent.StatusOffline
	a.UpdatedAt = now
	s.agents[id] = a
	return nil
}

// OnlineExpired returns every online agent whose heartbeat is older than
// cutoff.
func (s *AgentStore) OnlineExpired(ctx context.Context, cutoff time.Time) ([]agent.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []agent.Agent
	for _, a := range s.agents {
		if a.Status != agent.StatusOnline {
			continue
		}
		if a.LastHeartbeat == nil || a.LastHeartbeat.Before(cutoff) {
			out = append(out, a)
		}
	}
	return out, nil
}

// Delete removes an agent by id.
func (s *AgentStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.agents[id]; !ok {
		return apierr.NotFound("agent %q not found", id)
	}
	delete(s.agents, id)
	delete(s.keys, id)
	return nil
}

// AuthenticateAPIKey resolves a plaintext API key to its owning agent id.
func (s *AgentStore) AuthenticateAPIKey(ctx context.Context, apiKey string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, hash := range s.keys {
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(apiKey)) == nil {
			return id, nil
		}
	}
	return "", apierr.Unauthorized("invalid api key")
}

// ReportStore is an in-memory Report store.
type ReportStore struct {
	mu      sync.Mutex
	nextID  int64
	reports map[int64]report.Report
}

// NewReportStore returns an empty ReportStore.
func NewReportStore() *ReportStore {
	return &ReportStore{reports: make(map[int64]report.Report)}
}

// Insert persists a new report and returns its assigned id.
func (s *ReportStore) Insert(ctx context.Context, rep report.Report) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	rep.ID = fmt.Sprintf("%d", s.nextID)
	s.reports[s.nextID] = rep
	return s.nextID, nil
}

// Recent returns up to limit of the most recent reports for an agent.
func (s *ReportStore) Recent(ctx context.Context, agentID string, limit int) ([]report.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []report.Report
	for _, r := range s.reports {
		if r.AgentID == agentID {
			matched = append(matched, r)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Timestamp.After(matched[j].Timestamp) })
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

// DecisionStore is an in-memory Decision store.
type DecisionStore struct {
	mu        sync.Mutex
	nextID    int64
	decisions map[int64]decision.Decision
}

// NewDecisionStore returns an empty DecisionStore.
func NewDecisionStore() *DecisionStore {
	return &DecisionStore{decisions: make(map[int64]decision.Decision)}
}

// Insert persists a new decision and returns its assigned id.
func (s *DecisionStore) Insert(ctx context.Context, d decision.Decision) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	d.ID = fmt.Sprintf("%d", s.nextID)
	s.decisions[s.nextID] = d
	return d.ID, nil
}

// Recent returns up to limit of the most recent decisions for an agent.
func (s *DecisionStore) Recent(ctx context.Context, agentID string, limit int) ([]decision.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []decision.Decision
	for _, d := range s.decisions {
		if d.AgentID == agentID {
			matched = append(matched, d)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

// Get returns one decision by id.
func (s *DecisionStore) Get(ctx context.Context, id string) (decision.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.decisions {
		if d.ID == id {
			return d, nil
		}
	}
	return decision.Decision{}, apierr.NotFound("decision %q not found", id)
}

// Update persists a decision's execution outcome (MarkExecuted).
func (s *DecisionStore) Update(ctx context.Context, d decision.Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, existing := range s.decisions {
		if existing.ID == d.ID {
			s.decisions[k] = d
			return nil
		}
	}
	return apierr.NotFound("decision %q not found", d.ID)
}

// List returns decisions matching f, newest first, paginated.
func (s *DecisionStore) List(ctx context.Context, f decision.Filter) ([]decision.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []decision.Decision
	for _, d := range s.decisions {
		if d.CreatedAt.Before(f.Since) {
			continue
		}
		if f.AgentID != "" && d.AgentID != f.AgentID {
			continue
		}
		if f.Status != "" && d.Status != f.Status {
			continue
		}
		matched = append(matched, d)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	if f.Offset > 0 {
		if f.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(matched) {
		matched = matched[:f.Limit]
	}
	return matched, nil
}

// AlertStore is an in-memory Alert store.
type AlertStore struct {
	mu     sync.Mutex
	nextID int64
	alerts map[int64]alert.Alert
}

// NewAlertStore returns an empty AlertStore.
func NewAlertStore() *AlertStore {
	return &AlertStore{alerts: make(map[int64]alert.Alert)}
}

// Insert persists a new alert and returns its assigned id.
func (s *AlertStore) Insert(ctx context.Context, a alert.Alert) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	a.ID = fmt.Sprintf("%d", s.nextID)
	s.alerts[s.nextID] = a
	return a.ID, nil
}

// RecentOpenByAgentType returns up to limit of the newest open alerts for
// the same (agent, type), created at or after since.
func (s *AlertStore) RecentOpenByAgentType(ctx context.Context, agentID, issueType string, since time.Time, limit int) ([]alert.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []alert.Alert
	for _, a := range s.alerts {
		if a.AgentID != agentID || a.Type != issueType || !a.Status.Open() || a.CreatedAt.Before(since) {
			continue
		}
		matched = append(matched, a)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

// Get returns one alert by id.
func (s *AlertStore) Get(ctx context.Context, id string) (alert.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.alerts {
		if a.ID == id {
			return a, nil
		}
	}
	return alert.Alert{}, apierr.NotFound("alert %q not found", id)
}

// Update persists the mutated lifecycle fields of an existing alert.
func (s *AlertStore) Update(ctx context.Context, a alert.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, existing := range s.alerts {
		if existing.ID == a.ID {
			s.alerts[k] = a
			return nil
		}
	}
	return apierr.NotFound("alert %q not found", a.ID)
}

// List returns alerts matching f, newest first, paginated.
func (s *AlertStore) List(ctx context.Context, f alert.Filter) ([]alert.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []alert.Alert
	for _, a := range s.alerts {
		if f.AgentID != "" && a.AgentID != f.AgentID {
			continue
		}
		if f.Tier != "" && a.Tier != f.Tier {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if f.Severity != "" && a.Severity != f.Severity {
			continue
		}
		matched = append(matched, a)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	if f.Offset > 0 {
		if f.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(matched) {
		matched = matched[:f.Limit]
	}
	return matched, nil
}

// Summarize computes the alert summary since cutoff.
func (s *AlertStore) Summarize(ctx context.Context, since time.Time) (alert.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := alert.Summary{BySeverity: map[string]int{}, ByStatus: map[string]int{}, ByAgent: map[string]int{}}
	for _, a := range s.alerts {
		if a.CreatedAt.Before(since) {
			continue
		}
		sum.BySeverity[string(a.Severity)]++
		sum.ByStatus[string(a.Status)]++
		sum.ByAgent[a.AgentID]++
	}
	return sum, nil
}

// IntentStore is an in-memory IntentRecord store.
type IntentStore struct {
	mu      sync.Mutex
	records []intent.Record
}

// NewIntentStore returns an empty IntentStore.
func NewIntentStore() *IntentStore {
	return &IntentStore{}
}

// Record appends one intent entry.
func (s *IntentStore) Record(ctx context.Context, rec intent.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	s.records = append(s.records, rec)
	return nil
}

// Get returns one intent record by id.
func (s *IntentStore) Get(ctx context.Context, id string) (intent.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.records {
		if rec.ID == id {
			return rec, nil
		}
	}
	return intent.Record{}, apierr.NotFound("intent record %q not found", id)
}

// Query filters the intent log using domain/intent.Filter.
func (s *IntentStore) Query(ctx context.Context, f intent.Filter) ([]intent.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []intent.Record
	for _, rec := range s.records {
		if rec.Timestamp.Before(f.Since) {
			continue
		}
		if f.AgentID != "" && rec.AgentID != f.AgentID {
			continue
		}
		if f.Kind != "" && string(rec.Kind) != f.Kind {
			continue
		}
		if f.Tier != "" && (rec.Tier == nil || string(*rec.Tier) != f.Tier) {
			continue
		}
		if f.Category != "" && rec.Category != f.Category {
			continue
		}
		matched = append(matched, rec)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Timestamp.After(matched[j].Timestamp) })

	if f.Offset > 0 {
		if f.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(matched) {
		matched = matched[:f.Limit]
	}
	return matched, nil
}

// UserStore is an in-memory administrative-account store.
type UserStore struct {
	mu    sync.Mutex
	users map[string]user.User
	hash  map[string]string
}

// NewUserStore returns an empty UserStore.
func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]user.User), hash: make(map[string]string)}
}

// Create registers a new user with a bcrypt-hashed password.
func (s *UserStore) Create(ctx context.Context, username, password, role string, now time.Time) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return user.User{}, fmt.Errorf("hash password: %w", err)
	}
	u := user.User{ID: uuid.NewString(), Username: username, Role: role, CreatedAt: now}
	s.users[username] = u
	s.hash[username] = string(hash)
	return u, nil
}

// List returns every administrative account, ordered by username.
func (s *UserStore) List(ctx context.Context) ([]user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]user.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

// Delete removes an administrative account by username-keyed lookup.
func (s *UserStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for username, u := range s.users {
		if u.ID == id {
			delete(s.users, username)
			delete(s.hash, username)
			return nil
		}
	}
	return apierr.NotFound("user %q not found", id)
}

// Authenticate verifies a username/password pair.
func (s *UserStore) Authenticate(ctx context.Context, username, password string) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[username]
	if !ok || bcrypt.CompareHashAndPassword([]byte(s.hash[username]), []byte(password)) != nil {
		return user.User{}, apierr.Unauthorized("invalid username or password")
	}
	return u, nil
}
