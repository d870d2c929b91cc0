package heartbeat

import (
	"context"
	"testing"
	"time"

	"github.com/wayfind/Cortex/domain/agent"
	"github.com/wayfind/Cortex/platform/logging"
)

func testLogger() *logging.Logger {
	return logging.New(logging.Config{Level: "error"})
}

type fakeAgentStore struct {
	expired        []agent.Agent
	expiredErr     error
	markedOffline  []string
	markOfflineErr error
}

func (f *fakeAgentStore) OnlineExpired(ctx context.Context, cutoff time.Time) ([]agent.Agent, error) {
	if f.expiredErr != nil {
		return nil, f.expiredErr
	}
	return f.expired, nil
}

func (f *fakeAgentStore) MarkOffline(ctx context.Context, id string, now time.Time) error {
	if f.markOfflineErr != nil {
		return f.markOfflineErr
	}
	f.markedOffline = append(f.markedOffline, id)
	return nil
}

func TestNewAppliesDefaultCadenceWhenZero(t *testing.T) {
	c := New(&fakeAgentStore{}, nil, nil, 0, 0, testLogger())
	if c.CheckInterval != 60*time.Second {
		t.Errorf("expected default check interval of 60s, got %s", c.CheckInterval)
	}
	if c.Timeout != 5*time.Minute {
		t.Errorf("expected default timeout of 5m, got %s", c.Timeout)
	}
}

func TestTickExpiresStaleAgents(t *testing.T) {
	store := &fakeAgentStore{expired: []agent.Agent{{ID: "agent-1"}, {ID: "agent-2"}}}
	c := New(store, nil, nil, time.Minute, time.Minute, testLogger())

	c.tick(context.Background())

	if len(store.markedOffline) != 2 {
		t.Fatalf("expected 2 agents marked offline, got %d", len(store.markedOffline))
	}
	if store.markedOffline[0] != "agent-1" || store.markedOffline[1] != "agent-2" {
		t.Errorf("expected both expired agents marked offline, got %v", store.markedOffline)
	}
}

func TestTickNoopWhenNoneExpired(t *testing.T) {
	store := &fakeAgentStore{}
	c := New(store, nil, nil, time.Minute, time.Minute, testLogger())

	c.tick(context.Background())

	if len(store.markedOffline) != 0 {
		t.Errorf("expected no agents marked offline, got %v", store.markedOffline)
	}
}

func TestTickToleratesMarkOfflineError(t *testing.T) {
	store := &fakeAgentStore{
		expired:        []agent.Agent{{ID: "agent-1"}},
		markOfflineErr: errBoom{},
	}
	c := New(store, nil, nil, time.Minute, time.Minute, testLogger())

	// tick must not panic even if the store fails mid-sweep.
	c.tick(context.Background())
}

func TestTickToleratesStoreError(t *testing.T) {
	store := &fakeAgentStore{expiredErr: errBoom{}}
	c := New(store, nil, nil, time.Minute, time.Minute, testLogger())

	c.tick(context.Background())
}

func TestStartStopStopsCleanly(t *testing.T) {
	store := &fakeAgentStore{}
	c := New(store, nil, nil, 10*time.Millisecond, time.Minute, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c.Start(ctx)
	time.Sleep(30 * time.Millisecond)
	c.Stop()
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }
