package arena

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestAfterFiresOnce(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var fired atomic.Int32
	s.After(5*time.Millisecond, func() { fired.Add(1) })

	time.Sleep(50 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Errorf("fired %d times, want 1", got)
	}
}

func TestAfterCancel(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var fired atomic.Int32
	cancel := s.After(20*time.Millisecond, func() { fired.Add(1) })
	cancel()
	cancel() // idempotent

	time.Sleep(60 * time.Millisecond)
	if got := fired.Load(); got != 0 {
		t.Errorf("cancelled timer fired %d times", got)
	}
}

func TestEveryRepeatsUntilCancelled(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var fired atomic.Int32
	cancel := s.Every(5*time.Millisecond, func() { fired.Add(1) })

	time.Sleep(40 * time.Millisecond)
	cancel()
	n := fired.Load()
	if n < 2 {
		t.Fatalf("ticker fired %d times, want >= 2", n)
	}

	time.Sleep(30 * time.Millisecond)
	if got := fired.Load(); got > n+1 {
		t.Errorf("ticker kept firing after cancel: %d -> %d", n, got)
	}
}

func TestStopCancelsEverything(t *testing.T) {
	s := NewScheduler()

	var fired atomic.Int32
	s.After(20*time.Millisecond, func() { fired.Add(1) })
	s.Every(10*time.Millisecond, func() { fired.Add(1) })
	s.Stop()

	time.Sleep(50 * time.Millisecond)
	if got := fired.Load(); got != 0 {
		t.Errorf("stopped scheduler fired %d times", got)
	}
}

func TestArmAfterStopIsNoop(t *testing.T) {
	s := NewScheduler()
	s.Stop()

	var fired atomic.Int32
	s.After(time.Millisecond, func() { fired.Add(1) })
	s.Every(time.Millisecond, func() { fired.Add(1) })

	time.Sleep(30 * time.Millisecond)
	if got := fired.Load(); got != 0 {
		t.Errorf("post-stop arm fired %d times", got)
	}
}
