package monitorapi

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wayfind/Cortex/domain/agent"
	"github.com/wayfind/Cortex/domain/alert"
	"github.com/wayfind/Cortex/domain/decision"
	"github.com/wayfind/Cortex/domain/intent"
	"github.com/wayfind/Cortex/domain/report"
	"github.com/wayfind/Cortex/domain/user"
	"github.com/wayfind/Cortex/monitor/alertaggregator"
	"github.com/wayfind/Cortex/monitor/broadcaster"
	"github.com/wayfind/Cortex/monitor/decisionengine"
	"github.com/wayfind/Cortex/monitor/ingest"
	"github.com/wayfind/Cortex/monitor/intentrecorder"
	"github.com/wayfind/Cortex/monitor/topology"
	"github.com/wayfind/Cortex/platform/apierr"
	"github.com/wayfind/Cortex/platform/cache"
	"github.com/wayfind/Cortex/platform/logging"
	"github.com/wayfind/Cortex/platform/middleware"
)

func testLogger() *logging.Logger {
	return logging.New(logging.Config{Level: "error"})
}

type errNotFound struct{ msg string }

func (e errNotFound) Error() string { return e.msg }

type fakeAgentStore struct {
	mu     sync.Mutex
	agents map[string]agent.Agent
	keys   map[string]string
}

func newFakeAgentStore() *fakeAgentStore {
	return &fakeAgentStore{agents: map[string]agent.Agent{}, keys: map[string]string{}}
}

func (f *fakeAgentStore) Get(ctx context.Context, id string) (agent.Agent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.agents[id]
	if !ok {
		return agent.Agent{}, apierr.NotFound("agent %q not found", id)
	}
	return a, nil
}

func (f *fakeAgentStore) List(ctx context.Context) ([]agent.Agent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]agent.Agent, 0, len(f.agents))
	for _, a := range f.agents {
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeAgentStore) Upsert(ctx context.Context, a agent.Agent, apiKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.agents[a.ID] = a
	if apiKey != "" {
		for k, id := range f.keys {
			if id == a.ID {
				delete(f.keys, k)
			}
		}
		f.keys[apiKey] = a.ID
	}
	return nil
}

func (f *fakeAgentStore) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.agents[id]; !ok {
		return apierr.NotFound("agent %q not found", id)
	}
	delete(f.agents, id)
	return nil
}

func (f *fakeAgentStore) Touch(ctx context.Context, id string, health string, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.agents[id]
	if !ok {
		return apierr.NotFound("agent %q not found", id)
	}
	a.Touch(now)
	if health != "" {
		a.Health = agent.Health(health)
	}
	f.agents[id] = a
	return nil
}

func (f *fakeAgentStore) AuthenticateAPIKey(ctx context.Context, apiKey string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.keys[apiKey]
	if !ok {
		return "", apierr.Unauthorized("invalid api key")
	}
	return id, nil
}

type fakeReportStore struct {
	mu      sync.Mutex
	reports map[string][]report.Report
	nextID  int64
}

func (f *fakeReportStore) Insert(ctx context.Context, rep report.Report) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	rep.ID = fmt.Sprintf("%d", f.nextID)
	f.reports[rep.AgentID] = append(f.reports[rep.AgentID], rep)
	return f.nextID, nil
}

func (f *fakeReportStore) Recent(ctx context.Context, agentID string, limit int) ([]report.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	recs := f.reports[agentID]
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

type fakeDecisionStore struct {
	mu        sync.Mutex
	decisions map[string]decision.Decision
	nextID    int
}

func newFakeDecisionStore() *fakeDecisionStore {
	return &fakeDecisionStore{decisions: map[string]decision.Decision{}}
}

func (f *fakeDecisionStore) List(ctx context.Context, filter decision.Filter) ([]decision.Decision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]decision.Decision, 0, len(f.decisions))
	for _, d := range f.decisions {
		if filter.AgentID != "" && d.AgentID != filter.AgentID {
			continue
		}
		if filter.Status != "" && d.Status != filter.Status {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (f *fakeDecisionStore) Get(ctx context.Context, id string) (decision.Decision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.decisions[id]
	if !ok {
		return decision.Decision{}, apierr.NotFound("decision %q not found", id)
	}
	return d, nil
}

func (f *fakeDecisionStore) Insert(ctx context.Context, d decision.Decision) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("%d", f.nextID)
	d.ID = id
	f.decisions[id] = d
	return id, nil
}

func (f *fakeDecisionStore) Update(ctx context.Context, d decision.Decision) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.decisions[d.ID]; !ok {
		return apierr.NotFound("decision %q not found", d.ID)
	}
	f.decisions[d.ID] = d
	return nil
}

type fakeAlertStore struct {
	mu     sync.Mutex
	alerts map[string]alert.Alert
	nextID int
}

func newFakeAlertStore() *fakeAlertStore {
	return &fakeAlertStore{alerts: map[string]alert.Alert{}}
}

func (f *fakeAlertStore) Insert(ctx context.Context, a alert.Alert) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("%d", f.nextID)
	a.ID = id
	f.alerts[id] = a
	return id, nil
}

func (f *fakeAlertStore) RecentOpenByAgentType(ctx context.Context, agentID, issueType string, since time.Time, limit int) ([]alert.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []alert.Alert
	for _, a := range f.alerts {
		if a.AgentID == agentID && a.Type == issueType && a.Status.Open() {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAlertStore) Get(ctx context.Context, id string) (alert.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.alerts[id]
	if !ok {
		return alert.Alert{}, apierr.NotFound("alert %q not found", id)
	}
	return a, nil
}

func (f *fakeAlertStore) Update(ctx context.Context, a alert.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.alerts[a.ID]; !ok {
		return apierr.NotFound("alert %q not found", a.ID)
	}
	f.alerts[a.ID] = a
	return nil
}

func (f *fakeAlertStore) List(ctx context.Context, filter alert.Filter) ([]alert.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]alert.Alert, 0, len(f.alerts))
	for _, a := range f.alerts {
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeAlertStore) Summarize(ctx context.Context, since time.Time) (alert.Summary, error) {
	return alert.Summary{BySeverity: map[string]int{}, ByStatus: map[string]int{}, ByAgent: map[string]int{}}, nil
}

type fakeUserStore struct {
	mu    sync.Mutex
	users map[string]user.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: map[string]user.User{}}
}

func (f *fakeUserStore) Create(ctx context.Context, username, password, role string, now time.Time) (user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := user.User{ID: username, Username: username, Role: role, CreatedAt: now}
	f.users[username] = u
	return u, nil
}

func (f *fakeUserStore) Authenticate(ctx context.Context, username, password string) (user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[username]
	if !ok || password != "correct-password" {
		return user.User{}, apierr.Unauthorized("invalid username or password")
	}
	return u, nil
}

func (f *fakeUserStore) List(ctx context.Context) ([]user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]user.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeUserStore) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return apierr.NotFound("user %q not found", id)
	}
	delete(f.users, id)
	return nil
}

type fakeIntentStore struct {
	mu      sync.Mutex
	records map[string]intent.Record
}

func newFakeIntentStore() *fakeIntentStore {
	return &fakeIntentStore{records: map[string]intent.Record{}}
}

func (f *fakeIntentStore) Record(ctx context.Context, rec intent.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec.ID == "" {
		rec.ID = fmt.Sprintf("intent-%d", len(f.records)+1)
	}
	f.records[rec.ID] = rec
	return nil
}

func (f *fakeIntentStore) Get(ctx context.Context, id string) (intent.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[id]
	if !ok {
		return intent.Record{}, apierr.NotFound("intent record %q not found", id)
	}
	return r, nil
}

func (f *fakeIntentStore) Query(ctx context.Context, filter intent.Filter) ([]intent.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]intent.Record, 0, len(f.records))
	for _, r := range f.records {
		out = append(out, r)
	}
	return out, nil
}

type fakeLLM struct {
	response string
	err      error
}

func (f *fakeLLM) Complete(ctx context.Context, prompt string) (string, error) {
	return f.response, f.err
}

// testFixture holds a fully wired Server backed by in-memory fakes, for
// handler-level tests that bypass the router's middleware chain.
type testFixture struct {
	server  *Server
	agents  *fakeAgentStore
	alerts  *fakeAlertStore
	intents *fakeIntentStore
}

func newTestFixture() *testFixture {
	log := testLogger()
	agents := newFakeAgentStore()
	reports := &fakeReportStore{reports: map[string][]report.Report{}}
	decisions := newFakeDecisionStore()
	alerts := newFakeAlertStore()
	users := newFakeUserStore()
	intents := newFakeIntentStore()
	c := cache.New()

	aggregator := alertaggregator.New(alerts, intents, 30*time.Minute, log)
	engine := decisionengine.New(&fakeLLM{response: "DECISION: approved\nREASON: looks fine"}, intents, 0, log)
	topo := topology.New(agents, c, 0, "registration-secret")

	pipeline := &ingest.Pipeline{
		Tx:         noopTx{},
		Agents:     agents,
		Reports:    reports,
		Decisions:  decisions,
		Intent:     intents,
		Engine:     engine,
		Aggregator: aggregator,
		Notifier:   noopNotifier{},
		Cache:      c,
		Log:        log,
	}

	s := &Server{
		Agents:             agents,
		Reports:            reports,
		Decisions:          decisions,
		Alerts:             alerts,
		Users:              users,
		Topology:           topo,
		Ingest:             pipeline,
		Engine:             engine,
		Aggregator:         aggregator,
		Intent:             intentrecorder.New(intents),
		Broadcaster:        broadcaster.New(log),
		Cache:              c,
		TokenIssuer:        middleware.NewTokenIssuer("test-secret", time.Hour),
		RegistrationSecret: "registration-secret",
		Log:                log,
	}
	return &testFixture{server: s, agents: agents, alerts: alerts, intents: intents}
}

type noopTx struct{}

func (noopTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

type noopNotifier struct{}

func (noopNotifier) Send(ctx context.Context, a alert.Alert) {}
