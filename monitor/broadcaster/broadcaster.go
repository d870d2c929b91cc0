// Package broadcaster fans out liveness events to live-feed subscribers
// (spec.md §4.15), grounded on pkg/api/websocket.go's register/unregister/
// broadcast hub pattern. Subscribers are added on accept and dropped on
// first send error, so a dead subscriber does not stop delivery to the
// others. Sends go to one subscriber at a time with no write deadline, so a
// slow subscriber delays delivery to the ones after it.
package broadcaster

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"

	"github.com/wayfind/Cortex/platform/logging"
)

// EventKind is one of the four liveness event kinds.
type EventKind string

const (
	EventReportReceived    EventKind = "report_received"
	EventAlertTriggered    EventKind = "alert_triggered"
	EventDecisionMade      EventKind = "decision_made"
	EventAgentStatusChanged EventKind = "agent_status_changed"
)

// Event is one broadcast payload.
type Event struct {
	Kind      EventKind `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type subscriber struct {
	conn *websocket.Conn
	mu   sync.Mutex // serializes concurrent WriteJSON calls on one conn
}

// Broadcaster is the process-wide live feed. Its subscriber set is the one
// piece of genuinely process-wide state Cortex carries (spec.md §9); every
// other component is explicitly constructed and wired.
type Broadcaster struct {
	mu   sync.RWMutex
	subs map[*subscriber]struct{}
	log  *logging.Logger

	redis  *redis.Client
	prefix string
}

// New builds an empty Broadcaster.
func New(log *logging.Logger) *Broadcaster {
	return &Broadcaster{subs: make(map[*subscriber]struct{}), log: log}
}

// WithRedis attaches a redis client: Publish then also publishes each event
// to the channel prefix+"events". The Broadcaster does not subscribe to that
// channel, so events published by other processes are not delivered to this
// process's subscribers.
func (b *Broadcaster) WithRedis(client *redis.Client, prefix string) *Broadcaster {
	b.redis = client
	b.prefix = prefix
	return b
}

// Subscribe upgrades r to a websocket connection and registers it as a
// subscriber until the connection closes.
func (b *Broadcaster) Subscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.WithContext(r.Context()).WithError(err).Warn("websocket upgrade failed")
		return
	}

	sub := &subscriber{conn: conn}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.subs, sub)
		b.mu.Unlock()
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Publish fans out an event to every current subscriber. A send error on
// one subscriber removes it and never affects the others.
func (b *Broadcaster) Publish(kind EventKind, data any) {
	evt := Event{Kind: kind, Timestamp: time.Now().UTC(), Data: data}

	b.mu.RLock()
	subs := make([]*subscriber, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	for _, s := range subs {
		s.mu.Lock()
		err := s.conn.WriteJSON(evt)
		s.mu.Unlock()
		if err != nil {
			b.mu.Lock()
			delete(b.subs, s)
			b.mu.Unlock()
			s.conn.Close()
		}
	}

	if b.redis != nil {
		if enc, err := json.Marshal(evt); err == nil {
			_ = b.redis.Publish(context.Background(), b.prefix+"events", enc).Err()
		}
	}
}

// Subscribers returns the current subscriber count, for /health and
// diagnostics.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
