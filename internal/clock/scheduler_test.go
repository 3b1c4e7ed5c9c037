package clock

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestAfterFuncFires(t *testing.T) {
	s := New()
	done := make(chan struct{})

	s.AfterFunc(10*time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}

	// The handle deregisters itself after firing.
	time.Sleep(20 * time.Millisecond)
	if n := s.Pending(); n != 0 {
		t.Errorf("pending = %d, want 0 after fire", n)
	}
}

func TestTimerStopPreventsFire(t *testing.T) {
	s := New()
	var fired atomic.Bool

	h := s.AfterFunc(30*time.Millisecond, func() { fired.Store(true) })
	if !h.Stop() {
		t.Error("Stop() = false, want true before fire")
	}

	time.Sleep(80 * time.Millisecond)
	if fired.Load() {
		t.Error("callback ran after Stop")
	}
	if n := s.Pending(); n != 0 {
		t.Errorf("pending = %d, want 0 after stop", n)
	}
}

func TestTimerStopIdempotent(t *testing.T) {
	s := New()
	h := s.AfterFunc(time.Hour, func() {})
	if !h.Stop() {
		t.Error("first Stop() = false, want true")
	}
	if h.Stop() {
		t.Error("second Stop() = true, want false")
	}
}

func TestStopAfterFireReturnsFalse(t *testing.T) {
	s := New()
	done := make(chan struct{})
	h := s.AfterFunc(5*time.Millisecond, func() { close(done) })
	<-done
	if h.Stop() {
		t.Error("Stop() after fire = true, want false")
	}
}

func TestEveryTicks(t *testing.T) {
	s := New()
	var ticks atomic.Int32

	h := s.Every(10*time.Millisecond, func() { ticks.Add(1) })
	time.Sleep(55 * time.Millisecond)
	h.Stop()

	got := ticks.Load()
	if got < 3 {
		t.Errorf("ticks = %d, want >= 3", got)
	}

	// No further ticks after Stop.
	time.Sleep(50 * time.Millisecond)
	if after := ticks.Load(); after != got {
		t.Errorf("ticks advanced from %d to %d after Stop", got, after)
	}
}

func TestStopAll(t *testing.T) {
	s := New()
	var fired atomic.Int32

	s.AfterFunc(50*time.Millisecond, func() { fired.Add(1) })
	s.AfterFunc(50*time.Millisecond, func() { fired.Add(1) })
	s.Every(10*time.Millisecond, func() { fired.Add(1) })

	s.StopAll()
	if n := s.Pending(); n != 0 {
		t.Errorf("pending = %d, want 0 after StopAll", n)
	}

	time.Sleep(100 * time.Millisecond)
	if n := fired.Load(); n != 0 {
		t.Errorf("%d callbacks ran after StopAll", n)
	}
}
