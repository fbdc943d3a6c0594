package arena

import (
	"sync"
	"time"
)

// Scheduler owns every timer and ticker the orchestrator arms, so shutdown
// can cancel all pending work in one call. After Stop, arming is a no-op.
type Scheduler struct {
	mu      sync.Mutex
	stopped bool
	nextID  int
	cancels map[int]func()
}

// NewScheduler creates an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{cancels: make(map[int]func())}
}

// After arms a one-shot timer running fn on its own goroutine. The returned
// cancel is idempotent and safe after the timer has fired.
func (s *Scheduler) After(d time.Duration, fn func()) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return func() {}
	}

	id := s.nextID
	s.nextID++

	t := time.AfterFunc(d, func() {
		s.forget(id)
		fn()
	})
	s.cancels[id] = func() { t.Stop() }

	return func() {
		s.mu.Lock()
		if c, ok := s.cancels[id]; ok {
			delete(s.cancels, id)
			c()
		}
		s.mu.Unlock()
	}
}

// Every arms a repeating ticker running fn on its own goroutine until
// cancelled or the scheduler stops.
func (s *Scheduler) Every(d time.Duration, fn func()) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return func() {}
	}

	id := s.nextID
	s.nextID++

	done := make(chan struct{})
	var once sync.Once
	stop := func() { once.Do(func() { close(done) }) }
	s.cancels[id] = stop

	go func() {
		ticker := time.NewTicker(d)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				fn()
			}
		}
	}()

	return func() {
		s.forget(id)
		stop()
	}
}

// Stop cancels everything pending. Timers already mid-callback finish; new
// arms after Stop never fire.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for id, c := range s.cancels {
		delete(s.cancels, id)
		c()
	}
}

func (s *Scheduler) forget(id int) {
	s.mu.Lock()
	delete(s.cancels, id)
	s.mu.Unlock()
}
