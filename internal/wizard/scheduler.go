package wizard

import (
	"sync"
	"time"
)

// Scheduler is a trailing-debounce task runner owned by one engine.
// Every Bump replaces the pending timer, so the task fires once the
// mutations settle for the configured delay. Stop cancels any pending
// run permanently.
type Scheduler struct {
	delay time.Duration
	fn    func()

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

func NewScheduler(delay time.Duration, fn func()) *Scheduler {
	return &Scheduler{delay: delay, fn: fn}
}

func (s *Scheduler) Bump() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	if s.timer != nil {
		s.timer.Stop()
	}

	s.timer = time.AfterFunc(s.delay, s.fn)
}

// Cancel drops any pending run. Unlike Stop, later Bumps schedule again.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
