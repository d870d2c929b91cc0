// Package heartbeat runs the Monitor's liveness-expiry loop (spec.md §4.8):
// every check_interval, any online agent whose heartbeat has gone stale is
// transitioned offline and the transition is broadcast.
package heartbeat

import (
	"context"
	"time"

	"github.com/wayfind/Cortex/domain/agent"
	"github.com/wayfind/Cortex/monitor/broadcaster"
	"github.com/wayfind/Cortex/platform/cache"
	"github.com/wayfind/Cortex/platform/logging"
)

// AgentStore is the subset of the agent store the checker needs.
type AgentStore interface {
	OnlineExpired(ctx context.Context, cutoff time.Time) ([]agent.Agent, error)
	MarkOffline(ctx context.Context, id string, now time.Time) error
}

// Checker wakes periodically and expires stale agents.
type Checker struct {
	Store         AgentStore
	Broadcaster   *broadcaster.Broadcaster
	Cache         *cache.Cache
	CheckInterval time.Duration
	Timeout       time.Duration
	Log           *logging.Logger

	stop chan struct{}
	done chan struct{}
}

// New builds a Checker with spec.md §4.8's default cadence (60s check
// interval, 5 minute timeout) when either is left zero.
func New(store AgentStore, b *broadcaster.Broadcaster, c *cache.Cache, checkInterval, timeout time.Duration, log *logging.Logger) *Checker {
	if checkInterval <= 0 {
		checkInterval = 60 * time.Second
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Checker{
		Store: store, Broadcaster: b, Cache: c,
		CheckInterval: checkInterval, Timeout: timeout, Log: log,
		stop: make(chan struct{}), done: make(chan struct{}),
	}
}

// Start runs the loop in a goroutine until Stop is called.
func (c *Checker) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.CheckInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-c.stop:
				return
			case <-ticker.C:
				c.tick(ctx)
			}
		}
	}()
}

// Stop signals the loop to finish its current iteration and exit.
func (c *Checker) Stop() {
	close(c.stop)
	<-c.done
}

// tick expires every stale online agent. Errors are caught per iteration;
// the loop continues at the next tick (spec.md §7).
func (c *Checker) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			c.Log.WithContext(ctx).Errorf("heartbeat checker panic recovered: %v", r)
		}
	}()

	now := time.Now().UTC()
	expired, err := c.Store.OnlineExpired(ctx, now.Add(-c.Timeout))
	if err != nil {
		c.Log.WithContext(ctx).WithError(err).Error("heartbeat checker: list expired agents")
		return
	}

	for _, a := range expired {
		if err := c.Store.MarkOffline(ctx, a.ID, now); err != nil {
			c.Log.WithContext(ctx).WithError(err).Errorf("heartbeat checker: mark %s offline", a.ID)
			continue
		}
		if c.Cache != nil {
			c.Cache.ClearPattern(ctx, "cluster")
			c.Cache.ClearPattern(ctx, "agent")
		}
		if c.Broadcaster != nil {
			c.Broadcaster.Publish(broadcaster.EventAgentStatusChanged, map[string]any{
				"agent_id":   a.ID,
				"old_status": string(agent.StatusOnline),
				"new_status": string(agent.StatusOffline),
			})
		}
	}
}
