// Package topology computes the cluster's level map and guards agent
// registration's parent/token invariants (spec.md §4.14), grounded on
// platform/cache's TTL-cache shape for the 60s result cache.
package topology

import (
	"context"
	"crypto/subtle"
	"fmt"
	"sort"
	"time"

	"github.com/wayfind/Cortex/domain/agent"
	"github.com/wayfind/Cortex/platform/apierr"
	"github.com/wayfind/Cortex/platform/cache"
)

// AgentStore is the subset of store/postgres.AgentStore (or store/memory's
// AgentStore) the topology service needs.
type AgentStore interface {
	Get(ctx context.Context, id string) (agent.Agent, error)
	List(ctx context.Context) ([]agent.Agent, error)
	Upsert(ctx context.Context, a agent.Agent, apiKey string) error
}

// Node is one agent's position in the tree.
type Node struct {
	ID       string `json:"id"`
	ParentID string `json:"parent_id,omitempty"`
	Level    int    `json:"level"`
}

// Topology is the computed level map, per spec.md §4.14's flat-list +
// level-bucketed-map output shape.
type Topology struct {
	Nodes []Node              `json:"nodes"`
	Levels map[string][]string `json:"levels"`
}

const cacheKey = "topology:current"

// Service computes and caches the cluster topology, and enforces
// registration invariants.
type Service struct {
	store  AgentStore
	cache  *cache.Cache
	ttl    time.Duration
	secret string
}

// New builds a Service. ttl is the cache lifetime (default 60s per
// spec.md §4.14); secret is the shared registration token.
func New(store AgentStore, c *cache.Cache, ttl time.Duration, secret string) *Service {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &Service{store: store, cache: c, ttl: ttl, secret: secret}
}

// Compute returns the current topology, serving from cache when fresh.
func (s *Service) Compute(ctx context.Context) (Topology, error) {
	if v, ok := s.cache.Get(ctx, cacheKey); ok {
		if t, ok := v.(Topology); ok {
			return t, nil
		}
	}

	agents, err := s.store.List(ctx)
	if err != nil {
		return Topology{}, fmt.Errorf("list agents: %w", err)
	}

	byID := make(map[string]agent.Agent, len(agents))
	for _, a := range agents {
		byID[a.ID] = a
	}

	levels := make(map[string]int, len(agents))
	for _, a := range agents {
		levels[a.ID] = levelOf(a.ID, byID, levels, make(map[string]bool))
	}

	t := Topology{Levels: map[string][]string{}}
	for _, a := range agents {
		lvl := levels[a.ID]
		parent := ""
		if a.ParentID != nil {
			parent = *a.ParentID
		}
		t.Nodes = append(t.Nodes, Node{ID: a.ID, ParentID: parent, Level: lvl})

		key := "unknown"
		if lvl >= 0 {
			key = fmt.Sprintf("L%d", lvl)
		}
		t.Levels[key] = append(t.Levels[key], a.ID)
	}
	sort.Slice(t.Nodes, func(i, j int) bool { return t.Nodes[i].ID < t.Nodes[j].ID })
	for k := range t.Levels {
		sort.Strings(t.Levels[k])
	}

	s.cache.Set(ctx, cacheKey, t, s.ttl)
	return t, nil
}

// levelOf walks the parent chain of id, memoizing into levels and
// detecting cycles via visiting. A revisited node yields level -1
// (spec.md §4.14/§8's topology-acyclicity invariant).
func levelOf(id string, byID map[string]agent.Agent, levels map[string]int, visiting map[string]bool) int {
	if lvl, ok := levels[id]; ok {
		return lvl
	}
	if visiting[id] {
		return -1
	}
	a, ok := byID[id]
	if !ok || a.ParentID == nil || *a.ParentID == "" {
		return 0
	}

	visiting[id] = true
	parentLevel := levelOf(*a.ParentID, byID, levels, visiting)
	visiting[id] = false

	if parentLevel < 0 {
		return -1
	}
	return parentLevel + 1
}

// Invalidate drops the cached topology so the next Compute recomputes it.
func (s *Service) Invalidate(ctx context.Context) {
	s.cache.Delete(ctx, cacheKey)
}

// Register validates and persists an agent registration (spec.md §4.14):
// the registration token must match the shared secret, and a non-null
// parent must already exist. Re-registering an existing id updates all
// fields, including parent, in place.
func (s *Service) Register(ctx context.Context, a agent.Agent, apiKey, token string) error {
	if s.secret != "" && subtle.ConstantTimeCompare([]byte(token), []byte(s.secret)) != 1 {
		return apierr.Unauthorized("invalid registration token")
	}
	if a.ParentID != nil && *a.ParentID != "" {
		if _, err := s.store.Get(ctx, *a.ParentID); err != nil {
			return apierr.Validation("parent agent %q does not exist", *a.ParentID)
		}
	}
	if err := s.store.Upsert(ctx, a, apiKey); err != nil {
		return fmt.Errorf("upsert agent: %w", err)
	}
	s.Invalidate(ctx)
	return nil
}
