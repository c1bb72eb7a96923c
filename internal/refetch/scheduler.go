package refetch

import (
	"sync"
	"time"
)

// Scheduler runs delayed tasks keyed by identity. Scheduling a key replaces
// the task pending under it, so only the last one in a burst runs.
type Scheduler struct {
	mu      sync.Mutex
	pending map[string]*task
	closed  bool
}

type task struct {
	timer *time.Timer
}

func NewScheduler() *Scheduler {
	return &Scheduler{pending: make(map[string]*task)}
}

// Schedule runs fn after delay unless key is scheduled again or cancelled first.
func (s *Scheduler) Schedule(key string, delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if prev, ok := s.pending[key]; ok {
		prev.timer.Stop()
	}
	t := &task{}
	t.timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		// a replaced task whose timer already fired must not run
		if s.pending[key] != t {
			s.mu.Unlock()
			return
		}
		delete(s.pending, key)
		s.mu.Unlock()
		fn()
	})
	s.pending[key] = t
}

// Cancel drops the task pending under key and reports whether there was one.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.pending[key]
	if ok {
		t.timer.Stop()
		delete(s.pending, key)
	}
	return ok
}

func (s *Scheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[key]
	return ok
}

// Close cancels every pending task. Later Schedule calls are ignored.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for key, t := range s.pending {
		t.timer.Stop()
		delete(s.pending, key)
	}
}
