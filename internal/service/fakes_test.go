package service

import (
	"context"
	"sync"
	"time"
)

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// fakeClock fires timers only when Advance is called
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock and runs the timers that became due
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	for _, t := range due {
		t.f()
	}
}

func (c *fakeClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

type fakeStorage struct {
	mu       sync.Mutex
	writes   map[string]any
	counter  int
	readErr  error
	counters []int
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{writes: make(map[string]any)}
}

func (s *fakeStorage) Write(ctx context.Context, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes[key] = value
	return nil
}

func (s *fakeStorage) ReadCounter(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counter, s.readErr
}

func (s *fakeStorage) WriteCounter(ctx context.Context, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counter = n
	s.counters = append(s.counters, n)
	return nil
}

func (s *fakeStorage) get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.writes[key]
	return v, ok
}

func (s *fakeStorage) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.writes)
}

type fakePreloader struct {
	mu     sync.Mutex
	images []string
}

func (p *fakePreloader) Preload(ctx context.Context, images []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.images = append(p.images, images...)
	return nil
}

type completion struct {
	id      string
	reward  float64
	payment float64
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []completion
}

func (n *fakeNotifier) NotifyCompletion(ctx context.Context, sessionID string, reward, payment float64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, completion{sessionID, reward, payment})
	return nil
}
