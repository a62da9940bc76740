// Package schedule runs named periodic and one-shot tasks on a single
// logical thread. A Scheduler is driven either by the wall clock (Run) or by
// hand (Advance), which lets tests replay minutes of activity instantly.
package schedule

import (
	"container/heap"
	"context"
	"log/slog"
	"sync"
	"time"
)

// Func is the body of a task. now is the instant the task was due.
type Func func(now time.Time)

// Task is one scheduled action. Cancel is safe to call any number of times,
// from any goroutine, including from inside the task itself.
type Task struct {
	name     string
	interval time.Duration
	due      time.Time
	fn       Func
	seq      uint64
	index    int
	done     bool

	s *Scheduler
}

// Name returns the task name given at registration.
func (t *Task) Name() string {
	if t == nil {
		return ""
	}
	return t.name
}

// Cancel removes the task from its scheduler. A cancelled task never fires
// again.
func (t *Task) Cancel() {
	if t == nil || t.s == nil {
		return
	}
	t.s.cancel(t)
}

// Cancelled reports whether Cancel was called or a one-shot task has fired.
func (t *Task) Cancelled() bool {
	if t == nil || t.s == nil {
		return true
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return t.done
}

// Scheduler owns a queue of tasks ordered by due time.
type Scheduler struct {
	mu     sync.Mutex
	fireMu sync.Mutex

	clock  func() time.Time
	manual bool
	now    time.Time

	queue taskQueue
	seq   uint64
	wake  chan struct{}
	log   *slog.Logger
}

// Option customises a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger used to report task panics.
func WithLogger(log *slog.Logger) Option {
	return func(s *Scheduler) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock replaces time.Now for a wall-clock scheduler.
func WithClock(clock func() time.Time) Option {
	return func(s *Scheduler) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// New returns a scheduler driven by the wall clock through Run.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		clock: time.Now,
		wake:  make(chan struct{}, 1),
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "schedule")
	return s
}

// NewManual returns a scheduler whose clock only moves through Advance.
func NewManual(start time.Time, opts ...Option) *Scheduler {
	s := New(opts...)
	s.manual = true
	s.now = start
	return s
}

// Now returns the scheduler's notion of the current time.
func (s *Scheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nowLocked()
}

func (s *Scheduler) nowLocked() time.Time {
	if s.manual {
		return s.now
	}
	return s.clock()
}

// Every registers fn to run every interval, first after one interval.
func (s *Scheduler) Every(name string, interval time.Duration, fn Func) *Task {
	if interval <= 0 {
		panic("schedule: non-positive interval for task " + name)
	}
	return s.add(name, interval, interval, fn)
}

// After registers fn to run once after delay.
func (s *Scheduler) After(name string, delay time.Duration, fn Func) *Task {
	if delay < 0 {
		delay = 0
	}
	return s.add(name, delay, 0, fn)
}

func (s *Scheduler) add(name string, delay, interval time.Duration, fn Func) *Task {
	s.mu.Lock()
	s.seq++
	t := &Task{
		name:     name,
		interval: interval,
		due:      s.nowLocked().Add(delay),
		fn:       fn,
		seq:      s.seq,
		s:        s,
	}
	heap.Push(&s.queue, t)
	s.mu.Unlock()

	s.signal()
	return t
}

func (s *Scheduler) cancel(t *Task) {
	s.mu.Lock()
	t.done = true
	if t.index >= 0 && t.index < len(s.queue) && s.queue[t.index] == t {
		heap.Remove(&s.queue, t.index)
	}
	s.mu.Unlock()

	s.signal()
}

// CancelAll cancels every queued task.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	for _, t := range s.queue {
		t.done = true
		t.index = -1
	}
	s.queue = nil
	s.mu.Unlock()
}

// Pending returns the number of tasks still queued.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Advance moves a manual scheduler's clock forward by d, firing every task
// that falls due on the way, in due order, each at its own due instant.
func (s *Scheduler) Advance(d time.Duration) {
	s.mu.Lock()
	if !s.manual {
		s.mu.Unlock()
		panic("schedule: Advance on a wall-clock scheduler")
	}
	target := s.now.Add(d)
	s.mu.Unlock()

	s.runDue(target)

	s.mu.Lock()
	if s.now.Before(target) {
		s.now = target
	}
	s.mu.Unlock()
}

// Run drives a wall-clock scheduler until ctx ends, then cancels every
// remaining task.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.manual {
		panic("schedule: Run on a manual scheduler")
	}

	timer := time.NewTimer(time.Hour)
	defer timer.Stop()
	defer s.CancelAll()

	for {
		s.runDue(s.clock())

		wait, ok := s.nextWait()
		if !ok {
			select {
			case <-ctx.Done():
				return nil
			case <-s.wake:
			}
			continue
		}

		timer.Reset(wait)
		select {
		case <-ctx.Done():
			return nil
		case <-s.wake:
		case <-timer.C:
		}
	}
}

func (s *Scheduler) nextWait() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return 0, false
	}
	wait := s.queue[0].due.Sub(s.clock())
	if wait < 0 {
		wait = 0
	}
	return wait, true
}

func (s *Scheduler) runDue(now time.Time) {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 || s.queue[0].due.After(now) {
			s.mu.Unlock()
			return
		}
		t := heap.Pop(&s.queue).(*Task)
		at := t.due
		if s.manual {
			s.now = at
		}
		s.mu.Unlock()

		s.fire(t, at)

		s.mu.Lock()
		switch {
		case t.done:
		case t.interval == 0:
			t.done = true
		default:
			next := t.due.Add(t.interval)
			// Wall-clock drivers coalesce missed ticks instead of bursting.
			if !s.manual && !next.After(now) {
				next = now.Add(t.interval)
			}
			t.due = next
			heap.Push(&s.queue, t)
		}
		s.mu.Unlock()
	}
}

func (s *Scheduler) fire(t *Task, at time.Time) {
	s.fireMu.Lock()
	defer s.fireMu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Task panicked", "task", t.name, "panic", r)
		}
	}()
	t.fn(at)
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

type taskQueue []*Task

func (q taskQueue) Len() int { return len(q) }

func (q taskQueue) Less(i, j int) bool {
	if q[i].due.Equal(q[j].due) {
		return q[i].seq < q[j].seq
	}
	return q[i].due.Before(q[j].due)
}

func (q taskQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *taskQueue) Push(x any) {
	t := x.(*Task)
	t.index = len(*q)
	*q = append(*q, t)
}

func (q *taskQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*q = old[:n-1]
	return t
}
