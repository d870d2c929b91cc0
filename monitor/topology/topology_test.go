package topology

import (
	"context"
	"testing"
	"time"

	"github.com/wayfind/Cortex/domain/agent"
	"github.com/wayfind/Cortex/platform/cache"
)

type fakeAgentStore struct {
	agents map[string]agent.Agent
}

func newFakeAgentStore() *fakeAgentStore {
	return &fakeAgentStore{agents: map[string]agent.Agent{}}
}

func (f *fakeAgentStore) Get(ctx context.Context, id string) (agent.Agent, error) {
	a, ok := f.agents[id]
	if !ok {
		return agent.Agent{}, errNotFound{}
	}
	return a, nil
}

func (f *fakeAgentStore) List(ctx context.Context) ([]agent.Agent, error) {
	out := make([]agent.Agent, 0, len(f.agents))
	for _, a := range f.agents {
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeAgentStore) Upsert(ctx context.Context, a agent.Agent, apiKey string) error {
	f.agents[a.ID] = a
	return nil
}

type errNotFound struct{}

func (errNotFound) Error() string { return "agent not found" }

func ptr(s string) *string { return &s }

func TestComputeAssignsLevels(t *testing.T) {
	store := newFakeAgentStore()
	store.agents["root"] = agent.Agent{ID: "root"}
	store.agents["child"] = agent.Agent{ID: "child", ParentID: ptr("root")}
	store.agents["grandchild"] = agent.Agent{ID: "grandchild", ParentID: ptr("child")}

	svc := New(store, cache.New(), time.Minute, "")
	topo, err := svc.Compute(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	byID := map[string]Node{}
	for _, n := range topo.Nodes {
		byID[n.ID] = n
	}
	if byID["root"].Level != 0 {
		t.Errorf("expected root at level 0, got %d", byID["root"].Level)
	}
	if byID["child"].Level != 1 {
		t.Errorf("expected child at level 1, got %d", byID["child"].Level)
	}
	if byID["grandchild"].Level != 2 {
		t.Errorf("expected grandchild at level 2, got %d", byID["grandchild"].Level)
	}
	if len(topo.Levels["L0"]) != 1 || len(topo.Levels["L2"]) != 1 {
		t.Errorf("expected levels bucketed by depth, got %v", topo.Levels)
	}
}

func TestComputeDetectsCycle(t *testing.T) {
	store := newFakeAgentStore()
	store.agents["a"] = agent.Agent{ID: "a", ParentID: ptr("b")}
	store.agents["b"] = agent.Agent{ID: "b", ParentID: ptr("a")}

	svc := New(store, cache.New(), time.Minute, "")
	topo, err := svc.Compute(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, n := range topo.Nodes {
		if n.Level != -1 {
			t.Errorf("expected cyclic nodes to resolve to level -1, got node %+v", n)
		}
	}
}

func TestComputeUsesCache(t *testing.T) {
	store := newFakeAgentStore()
	store.agents["root"] = agent.Agent{ID: "root"}

	c := cache.New()
	svc := New(store, c, time.Minute, "")

	if _, err := svc.Compute(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// mutate the store directly; a cached Compute should not see it.
	store.agents["new-agent"] = agent.Agent{ID: "new-agent"}

	topo, err := svc.Compute(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(topo.Nodes) != 1 {
		t.Fatalf("expected cached topology to still report 1 node, got %d", len(topo.Nodes))
	}

	svc.Invalidate(context.Background())
	topo, err = svc.Compute(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(topo.Nodes) != 2 {
		t.Fatalf("expected invalidated topology to reflect the new agent, got %d nodes", len(topo.Nodes))
	}
}

func TestRegisterRejectsBadToken(t *testing.T) {
	store := newFakeAgentStore()
	svc := New(store, cache.New(), time.Minute, "cluster-secret")

	err := svc.Register(context.Background(), agent.Agent{ID: "agent-1"}, "api-key", "wrong-token")
	if err == nil {
		t.Fatalf("expected an error for a mismatched registration token")
	}
}

func TestRegisterRejectsMissingParent(t *testing.T) {
	store := newFakeAgentStore()
	svc := New(store, cache.New(), time.Minute, "")

	err := svc.Register(context.Background(), agent.Agent{ID: "agent-1", ParentID: ptr("nonexistent")}, "api-key", "")
	if err == nil {
		t.Fatalf("expected an error for a nonexistent parent")
	}
}

func TestRegisterSucceedsAndInvalidatesCache(t *testing.T) {
	store := newFakeAgentStore()
	svc := New(store, cache.New(), time.Minute, "")

	if _, err := svc.Compute(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.Register(context.Background(), agent.Agent{ID: "agent-1"}, "api-key", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	topo, err := svc.Compute(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(topo.Nodes) != 1 {
		t.Fatalf("expected the newly registered agent to appear after cache invalidation, got %d nodes", len(topo.Nodes))
	}
}
