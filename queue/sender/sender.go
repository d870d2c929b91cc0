// Package sender drains the local durable queue in the background,
// delivering each item with the fast retry profile (spec.md §4.3).
package sender

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/wayfind/Cortex/domain/queueitem"
	"github.com/wayfind/Cortex/platform/metrics"
	"github.com/wayfind/Cortex/platform/retrypolicy"
)

// Store is the subset of queue/store's API the sender depends on.
type Store interface {
	GetPending(limit, maxRetries int) []queueitem.QueueItem
	MarkSending(id int64, now time.Time) error
	MarkSent(id int64, now time.Time) error
	MarkFailed(id int64, errText string, maxRetries int, now time.Time) error
	Len() int
}

// Sender periodically fetches pending items and delivers them concurrently.
type Sender struct {
	store        Store
	client       *http.Client
	sendInterval time.Duration
	batchSize    int
	maxRetries   int
	policy       retrypolicy.Policy

	stop chan struct{}
	done chan struct{}
}

// New builds a Sender waking every sendInterval to drain up to batchSize
// pending items per cycle.
func New(store Store, client *http.Client, sendInterval time.Duration, batchSize, maxRetries int) *Sender {
	if client == nil {
		client = http.DefaultClient
	}
	return &Sender{
		store:        store,
		client:       client,
		sendInterval: sendInterval,
		batchSize:    batchSize,
		maxRetries:   maxRetries,
		policy:       retrypolicy.Fast(),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Start runs the drain loop until Stop is called.
func (s *Sender) Start(ctx context.Context) {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.sendInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.C:
				s.drainOnce(ctx)
			}
		}
	}()
}

// Stop halts the drain loop and waits for the current cycle to finish.
func (s *Sender) Stop() {
	close(s.stop)
	<-s.done
}

// Flush drains the queue synchronously; used at shutdown so no pending
// item is silently dropped.
func (s *Sender) Flush(ctx context.Context) {
	for {
		items := s.store.GetPending(s.batchSize, s.maxRetries)
		if len(items) == 0 {
			return
		}
		s.deliverAll(ctx, items)
	}
}

func (s *Sender) drainOnce(ctx context.Context) {
	items := s.store.GetPending(s.batchSize, s.maxRetries)
	metrics.QueueDepth.Set(float64(s.store.Len()))
	if len(items) == 0 {
		return
	}
	s.deliverAll(ctx, items)
}

func (s *Sender) deliverAll(ctx context.Context, items []queueitem.QueueItem) {
	var wg sync.WaitGroup
	for _, item := range items {
		wg.Add(1)
		go func(item queueitem.QueueItem) {
			defer wg.Done()
			s.deliverOne(ctx, item)
		}(item)
	}
	wg.Wait()
}

func (s *Sender) deliverOne(ctx context.Context, item queueitem.QueueItem) {
	now := time.Now()
	_ = s.store.MarkSending(item.ID, now)

	err := retrypolicy.Run(ctx, s.policy, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, item.Endpoint, bytes.NewReader(item.Payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("delivery to %s failed with status %d", item.Endpoint, resp.StatusCode)
		}
		return nil
	})

	now = time.Now()
	if err != nil {
		_ = s.store.MarkFailed(item.ID, err.Error(), s.maxRetries, now)
		if item.RetryCount+1 >= s.maxRetries {
			metrics.QueueItemsFailed.Inc()
		}
		return
	}
	_ = s.store.MarkSent(item.ID, now)
}
