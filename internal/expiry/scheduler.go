package expiry

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Scheduler runs one deferred task per id. Scheduling an id again replaces
// its task; Stop cancels everything and refuses new work.
type Scheduler struct {
	clock Clock
	log   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	tasks   map[int64]*task
	seq     uint64
	stopped bool
	running sync.WaitGroup
}

type task struct {
	seq   uint64
	timer Timer
}

func NewScheduler(clock Clock, log *slog.Logger) *Scheduler {
	if clock == nil {
		clock = SystemClock()
	}
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		clock:  clock,
		log:    log.With(slog.String("component", "expiry")),
		ctx:    ctx,
		cancel: cancel,
		tasks:  make(map[int64]*task),
	}
}

func (s *Scheduler) Now() time.Time { return s.clock.Now() }

// Schedule runs fn at the given instant, or as soon as possible when it has
// already passed. It reports false once the scheduler is stopped.
func (s *Scheduler) Schedule(id int64, at time.Time, fn func(ctx context.Context)) bool {
	return s.After(id, at.Sub(s.clock.Now()), fn)
}

func (s *Scheduler) After(id int64, d time.Duration, fn func(ctx context.Context)) bool {
	if d < 0 {
		d = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	if prev, ok := s.tasks[id]; ok {
		prev.timer.Stop()
	}

	s.seq++
	t := &task{seq: s.seq}
	seq := t.seq
	t.timer = s.clock.AfterFunc(d, func() { s.fire(id, seq, fn) })
	s.tasks[id] = t
	return true
}

func (s *Scheduler) fire(id int64, seq uint64, fn func(ctx context.Context)) {
	s.mu.Lock()
	t, ok := s.tasks[id]
	if !ok || t.seq != seq || s.stopped {
		s.mu.Unlock()
		return
	}
	delete(s.tasks, id)
	s.running.Add(1)
	s.mu.Unlock()

	defer s.running.Done()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("deferred task panicked", slog.Int64("id", id), slog.Any("panic", r))
		}
	}()
	fn(s.ctx)
}

// Cancel drops the task for id and reports whether one was pending.
func (s *Scheduler) Cancel(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return false
	}
	t.timer.Stop()
	delete(s.tasks, id)
	return true
}

func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Stop cancels every pending task and waits for running ones to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	for id, t := range s.tasks {
		t.timer.Stop()
		delete(s.tasks, id)
	}
	s.mu.Unlock()

	s.cancel()
	s.running.Wait()
}
