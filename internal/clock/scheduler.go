// Package clock schedules delayed and periodic callbacks behind cancellable
// handles. Every handle is tracked by its Scheduler so teardown can stop all
// outstanding work; a stopped handle never fires again.
package clock

import (
	"sync"
	"time"
)

// Scheduler owns a set of pending timers and tickers.
type Scheduler struct {
	mu      sync.Mutex
	next    int
	timers  map[int]*Timer
	tickers map[int]*Ticker
}

// New creates an empty scheduler.
func New() *Scheduler {
	return &Scheduler{
		timers:  make(map[int]*Timer),
		tickers: make(map[int]*Ticker),
	}
}

// Timer is a cancellable one-shot timer handle.
type Timer struct {
	s    *Scheduler
	id   int
	mu   sync.Mutex
	t    *time.Timer
	done bool
}

// AfterFunc runs fn once after d. The returned handle can be stopped before
// it fires; stopping after the fire is a no-op.
func (s *Scheduler) AfterFunc(d time.Duration, fn func()) *Timer {
	s.mu.Lock()
	id := s.next
	s.next++
	h := &Timer{s: s, id: id}
	s.timers[id] = h
	s.mu.Unlock()

	h.t = time.AfterFunc(d, func() {
		h.mu.Lock()
		fired := !h.done
		h.done = true
		h.mu.Unlock()
		s.forgetTimer(id)
		if fired {
			fn()
		}
	})
	return h
}

// Stop cancels the timer. Returns true if the callback was prevented from
// running. Safe to call more than once and on a nil handle.
func (h *Timer) Stop() bool {
	if h == nil {
		return false
	}
	h.mu.Lock()
	if h.done {
		h.mu.Unlock()
		return false
	}
	h.done = true
	h.mu.Unlock()
	h.t.Stop()
	h.s.forgetTimer(h.id)
	return true
}

// Ticker is a cancellable periodic timer handle.
type Ticker struct {
	s    *Scheduler
	id   int
	stop chan struct{}
	once sync.Once
}

// Every runs fn every interval until the handle is stopped.
func (s *Scheduler) Every(interval time.Duration, fn func()) *Ticker {
	s.mu.Lock()
	id := s.next
	s.next++
	h := &Ticker{s: s, id: id, stop: make(chan struct{})}
	s.tickers[id] = h
	s.mu.Unlock()

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				fn()
			case <-h.stop:
				return
			}
		}
	}()
	return h
}

// Stop cancels the ticker. Safe to call more than once and on a nil handle.
func (h *Ticker) Stop() {
	if h == nil {
		return
	}
	h.once.Do(func() {
		close(h.stop)
		h.s.forgetTicker(h.id)
	})
}

// StopAll cancels every outstanding timer and ticker.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	timers := make([]*Timer, 0, len(s.timers))
	for _, h := range s.timers {
		timers = append(timers, h)
	}
	tickers := make([]*Ticker, 0, len(s.tickers))
	for _, h := range s.tickers {
		tickers = append(tickers, h)
	}
	s.mu.Unlock()

	for _, h := range timers {
		h.Stop()
	}
	for _, h := range tickers {
		h.Stop()
	}
}

// Pending returns the number of outstanding handles.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers) + len(s.tickers)
}

func (s *Scheduler) forgetTimer(id int) {
	s.mu.Lock()
	delete(s.timers, id)
	s.mu.Unlock()
}

func (s *Scheduler) forgetTicker(id int) {
	s.mu.Lock()
	delete(s.tickers, id)
	s.mu.Unlock()
}
