// Package scheduler owns the Probe's single cron trigger and its bounded
// execution history (spec.md §4.6). No teacher file samples robfig/cron
// directly; this is grounded on the dependency's documented Cron/Parser API
// as declared in go.mod, combined with the single-instance-run and
// bounded-history-ring shape common across the corpus's job runners.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/wayfind/Cortex/domain/report"
)

// RunStatus is a phase in one execution's state machine.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunTimeout   RunStatus = "timeout"
)

// Execution is one scheduler-tracked inspection run.
type Execution struct {
	ID        string
	Status    RunStatus
	StartedAt time.Time
	EndedAt   time.Time
	Report    *report.Report
	Error     string
}

// Event is published on every execution phase transition.
type Event struct {
	Execution Execution
	At        time.Time
}

// RunFunc performs one inspection and returns the assembled report.
type RunFunc func(ctx context.Context, now time.Time) (report.Report, error)

// Scheduler fires RunFunc on a cron schedule; a trigger that arrives while
// an inspection is running is silently coalesced (dropped), never queued.
// ExecuteOnce(true) starts a run even while another one is in progress.
type Scheduler struct {
	mu       sync.Mutex
	cron     *cron.Cron
	entryID  cron.EntryID
	schedule string
	timeout  time.Duration
	run      RunFunc
	nowFn    func() time.Time

	running bool
	paused  bool

	history    []Execution
	historyCap int

	subsMu sync.Mutex
	subs   []chan Event
}

// New builds a scheduler firing run on the given cron schedule expression.
// historyCap bounds the retained execution ring (default 100).
func New(schedule string, timeout time.Duration, historyCap int, run RunFunc) *Scheduler {
	if historyCap <= 0 {
		historyCap = 100
	}
	return &Scheduler{
		cron:       cron.New(),
		schedule:   schedule,
		timeout:    timeout,
		run:        run,
		nowFn:      time.Now,
		historyCap: historyCap,
	}
}

// Start registers the cron trigger and begins firing. Safe to call once.
func (s *Scheduler) Start() error {
	id, err := s.cron.AddFunc(s.schedule, func() { s.fire(false) })
	if err != nil {
		return fmt.Errorf("register schedule %q: %w", s.schedule, err)
	}
	s.entryID = id
	s.cron.Start()
	return nil
}

// Stop halts the cron trigger; in-flight runs are allowed to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Pause suspends the scheduled trigger; ExecuteOnce still works.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
}

// Resume re-enables the scheduled trigger.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
}

// ErrAlreadyRunning is returned by ExecuteOnce(force=false) when a run is
// already in progress.
type ErrAlreadyRunning struct{}

func (ErrAlreadyRunning) Error() string { return "a probe run is already in progress" }

// ExecuteOnce triggers a manual run. If force is false and a run is already
// in progress, it returns ErrAlreadyRunning instead of queuing.
func (s *Scheduler) ExecuteOnce(force bool) (string, error) {
	s.mu.Lock()
	if s.running && !force {
		s.mu.Unlock()
		return "", ErrAlreadyRunning{}
	}
	s.mu.Unlock()

	id := s.fire(true)
	if id == "" {
		return "", ErrAlreadyRunning{}
	}
	return id, nil
}

// fire attempts to start one execution, coalescing (dropping) the request
// if a run is already in progress and manual is false. It returns the new
// execution id, or "" if the request was coalesced away.
func (s *Scheduler) fire(manual bool) string {
	s.mu.Lock()
	if s.running {
		if !manual {
			s.mu.Unlock()
			return ""
		}
	}
	if s.paused && !manual {
		s.mu.Unlock()
		return ""
	}
	s.running = true
	s.mu.Unlock()

	now := s.nowFn()
	exec := Execution{ID: uuid.NewString(), Status: RunPending, StartedAt: now}
	s.publish(exec)

	go s.runExecution(exec)
	return exec.ID
}

func (s *Scheduler) runExecution(exec Execution) {
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	exec.Status = RunRunning
	s.publish(exec)

	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	rep, err := s.run(ctx, s.nowFn())
	exec.EndedAt = s.nowFn()

	switch {
	case err != nil && ctx.Err() == context.DeadlineExceeded:
		exec.Status = RunTimeout
		exec.Error = err.Error()
	case err != nil:
		exec.Status = RunFailed
		exec.Error = err.Error()
	default:
		exec.Status = RunCompleted
		exec.Report = &rep
	}

	s.recordHistory(exec)
	s.publish(exec)
}

func (s *Scheduler) recordHistory(exec Execution) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, exec)
	if len(s.history) > s.historyCap {
		s.history = s.history[len(s.history)-s.historyCap:]
	}
}

// Status describes the scheduler's current state.
type Status struct {
	Running  bool
	Paused   bool
	NextFire time.Time
	Last     *Execution
}

// Status reports whether a run is in progress, whether the trigger is
// paused, the next scheduled fire time, and the last execution's summary.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{Running: s.running, Paused: s.paused}
	if entry := s.cron.Entry(s.entryID); entry.ID != 0 {
		st.NextFire = entry.Next
	}
	if n := len(s.history); n > 0 {
		last := s.history[n-1]
		st.Last = &last
	}
	return st
}

// RecentReports returns up to limit of the most recent executions, newest
// first.
func (s *Scheduler) RecentReports(limit int) []Execution {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.history)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Execution, limit)
	for i := 0; i < limit; i++ {
		out[i] = s.history[n-1-i]
	}
	return out
}

// GetReport returns the execution with the given id, if still in history.
func (s *Scheduler) GetReport(id string) (Execution, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.history {
		if e.ID == id {
			return e, true
		}
	}
	return Execution{}, false
}

// Subscribe registers a channel that receives every execution phase
// transition. The channel is buffered and never blocks the scheduler: a
// slow subscriber simply misses events once its buffer is full.
func (s *Scheduler) Subscribe() <-chan Event {
	ch := make(chan Event, 16)
	s.subsMu.Lock()
	s.subs = append(s.subs, ch)
	s.subsMu.Unlock()
	return ch
}

func (s *Scheduler) publish(exec Execution) {
	evt := Event{Execution: exec, At: s.nowFn()}
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}
