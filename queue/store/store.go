// Package store implements the Probe/Monitor local durable queue (spec.md
// §4.2): a capacity-bounded FIFO of outbound deliveries, persisted as
// newline-delimited JSON so a node's outbox survives a process restart
// independent of the primary database's availability.
package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/wayfind/Cortex/domain/queueitem"
)

// Store is a mutex-guarded, file-backed FIFO of QueueItems.
type Store struct {
	mu       sync.Mutex
	path     string
	items    []queueitem.QueueItem
	nextID   int64
	capacity int
	pruneSlack int
}

// Open loads path (if it exists) into memory and returns a Store backed by
// it. capacity is the item count at which Enqueue prunes terminal (sent or
// failed) items; pending items are never pruned. 0 means no pruning.
func Open(path string, capacity int) (*Store, error) {
	s := &Store{path: path, capacity: capacity, pruneSlack: 100}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create queue dir: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("open queue file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		var item queueitem.QueueItem
		if err := json.Unmarshal(scanner.Bytes(), &item); err != nil {
			continue
		}
		if item.Status == queueitem.StatusSending {
			item.Status = queueitem.StatusPending
		}
		s.items = append(s.items, item)
		if item.ID >= s.nextID {
			s.nextID = item.ID + 1
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read queue file: %w", err)
	}

	return s, nil
}

// Enqueue appends one pending item, pruning terminal items first if the
// queue is at or above capacity.
func (s *Store) Enqueue(endpoint string, payload []byte, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.capacity > 0 && len(s.items) >= s.capacity {
		s.pruneLocked()
	}

	item := queueitem.QueueItem{
		ID:        s.nextID,
		Endpoint:  endpoint,
		Payload:   payload,
		Status:    queueitem.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.nextID++
	s.items = append(s.items, item)

	if err := s.persistLocked(); err != nil {
		return 0, err
	}
	return item.ID, nil
}

// pruneLocked deletes the oldest terminal items in a batch, leaving
// pruneSlack headroom so pruning doesn't run on every single insert.
func (s *Store) pruneLocked() {
	target := s.capacity - s.pruneSlack
	if target < 0 {
		target = 0
	}

	kept := s.items[:0]
	removed := 0
	for _, item := range s.items {
		if len(s.items)-removed > target && item.Status.Terminal() {
			removed++
			continue
		}
		kept = append(kept, item)
	}
	s.items = kept
}

// GetPending returns up to limit of the oldest pending items whose retry
// count is below maxRetries.
func (s *Store) GetPending(limit, maxRetries int) []queueitem.QueueItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []queueitem.QueueItem
	for _, item := range s.items {
		if item.Status != queueitem.StatusPending {
			continue
		}
		if maxRetries > 0 && item.RetryCount >= maxRetries {
			continue
		}
		out = append(out, item)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// MarkSending transitions an item to the sending bookkeeping state.
func (s *Store) MarkSending(id int64, now time.Time) error {
	return s.mutate(id, func(item *queueitem.QueueItem) {
		item.Status = queueitem.StatusSending
		item.UpdatedAt = now
	})
}

// MarkSent transitions an item to its terminal sent state.
func (s *Store) MarkSent(id int64, now time.Time) error {
	return s.mutate(id, func(item *queueitem.QueueItem) {
		item.Status = queueitem.StatusSent
		item.UpdatedAt = now
	})
}

// MarkFailed records a delivery failure, moving the item back to pending or
// into the terminal failed state once maxRetries is reached.
func (s *Store) MarkFailed(id int64, errText string, maxRetries int, now time.Time) error {
	return s.mutate(id, func(item *queueitem.QueueItem) {
		item.MarkFailed(errText, maxRetries, now)
	})
}

func (s *Store) mutate(id int64, fn func(*queueitem.QueueItem)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].ID == id {
			fn(&s.items[i])
			return s.persistLocked()
		}
	}
	return fmt.Errorf("queue item %d not found", id)
}

// Cleanup deletes terminal items older than cutoff.
func (s *Store) Cleanup(cutoff time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.items[:0]
	for _, item := range s.items {
		if item.Status.Terminal() && item.UpdatedAt.Before(cutoff) {
			continue
		}
		kept = append(kept, item)
	}
	s.items = kept
	return s.persistLocked()
}

// Len reports the current number of tracked items, for the queue-depth
// gauge.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Store) persistLocked() error {
	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create queue tmp file: %w", err)
	}

	w := bufio.NewWriter(f)
	for _, item := range s.items {
		enc, err := json.Marshal(item)
		if err != nil {
			f.Close()
			return fmt.Errorf("encode queue item: %w", err)
		}
		if _, err := w.Write(enc); err != nil {
			f.Close()
			return fmt.Errorf("write queue item: %w", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			f.Close()
			return fmt.Errorf("write queue item: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flush queue file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("fsync queue file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close queue file: %w", err)
	}

	return os.Rename(tmp, s.path)
}
