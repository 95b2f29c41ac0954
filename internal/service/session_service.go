package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"wordwatch/internal/catalog"
	"wordwatch/internal/experiment"
	"wordwatch/internal/logger"
	"wordwatch/internal/models"
)

// ErrSessionNotFound is returned for unknown or evicted sessions
var ErrSessionNotFound = errors.New("session not found")

// storageTimeout bounds each background storage call
const storageTimeout = 10 * time.Second

// Preloader warms the image cache
type Preloader interface {
	Preload(ctx context.Context, images []string) error
}

// Notifier reports finished sessions
type Notifier interface {
	NotifyCompletion(ctx context.Context, sessionID string, reward, payment float64) error
}

// SessionOptions are the per-session switches
type SessionOptions struct {
	// Local runs without the shared counter and without persistence
	Local bool
	// TestAll shows every stimulus in catalog order
	TestAll bool
	// SkipTutorial starts at the last instruction step
	SkipTutorial bool
}

// Snapshot is a consistent copy of a session's state
type Snapshot struct {
	ID      string
	Machine *experiment.Machine
	State   experiment.State
	// FocusAfter is set once after a guessing part opens
	FocusAfter time.Duration
}

type session struct {
	mu         sync.Mutex
	machine    *experiment.Machine
	state      experiment.State
	persist    bool
	timers     map[experiment.TimerKind]Timer
	focusAfter time.Duration
	lastSeen   time.Time
	closed     bool
}

// SessionDeps are the collaborators of a SessionService
type SessionDeps struct {
	Catalog   *catalog.Catalog
	Storage   Storage
	Preloader Preloader
	Notifier  Notifier
	Clock     Clock
	Logger    *logger.Logger
	TTL       time.Duration
}

// SessionService drives experiment sessions: it applies events under a
// per-session lock and executes the resulting effects
type SessionService struct {
	catalog   *catalog.Catalog
	storage   Storage
	preloader Preloader
	notifier  Notifier
	clock     Clock
	log       *logger.Logger
	ttl       time.Duration
	randIndex func(n int) int

	mu       sync.Mutex
	sessions map[string]*session

	// background storage, preload and notification calls
	wg sync.WaitGroup
}

// NewSessionService creates a session driver
func NewSessionService(deps SessionDeps) *SessionService {
	if deps.Clock == nil {
		deps.Clock = RealClock{}
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNop()
	}
	if deps.Storage == nil {
		deps.Storage = NewNopStorage(deps.Logger)
	}
	return &SessionService{
		catalog:   deps.Catalog,
		storage:   deps.Storage,
		preloader: deps.Preloader,
		notifier:  deps.Notifier,
		clock:     deps.Clock,
		log:       deps.Logger.With("service", "SessionService"),
		ttl:       deps.TTL,
		randIndex: rand.IntN,
		sessions:  make(map[string]*session),
	}
}

// Start creates a session and returns its first snapshot
func (s *SessionService) Start(ctx context.Context, opts SessionOptions) (Snapshot, error) {
	assignment, err := s.assign(ctx, opts)
	if err != nil {
		return Snapshot{}, err
	}

	id := uuid.NewString()
	machine, err := experiment.NewMachine(s.catalog, assignment, id)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to start session: %w", err)
	}

	now := s.clock.Now()
	sess := &session{
		machine:  machine,
		state:    machine.InitialState(opts.SkipTutorial, now),
		persist:  !opts.Local,
		timers:   make(map[experiment.TimerKind]Timer),
		lastSeen: now,
	}

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	s.log.Info("session started", "session", id, "assignment", []int(assignment),
		"local", opts.Local, "test_all", opts.TestAll, "skip_tutorial", opts.SkipTutorial)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	s.execute(id, sess, machine.StartEffects())
	return s.snapshot(id, sess), nil
}

// assign picks the trial order for a new session. The counter is read and
// then written without a transaction; concurrent starts may share an index.
func (s *SessionService) assign(ctx context.Context, opts SessionOptions) (models.StimulusAssignment, error) {
	if opts.TestAll {
		return s.catalog.AllStimuli(), nil
	}
	n := len(s.catalog.Assignments)
	if n == 0 {
		return nil, experiment.ErrNoAssignment
	}
	if opts.Local {
		return s.catalog.Assignments[s.randIndex(n)], nil
	}

	count, err := s.storage.ReadCounter(ctx)
	if err != nil {
		idx := s.randIndex(n)
		s.log.Warn("failed to read assignment counter, using a random assignment", "error", err, "index", idx)
		return s.catalog.Assignments[idx], nil
	}
	if count < 0 {
		count = 0
	}
	if err := s.storage.WriteCounter(ctx, count+1); err != nil {
		s.log.Warn("failed to write assignment counter", "error", err, "count", count+1)
	}
	return s.catalog.Assignments[count%n], nil
}

// Dispatch applies ev to a session. An Advance without a time is stamped
// with the current clock.
func (s *SessionService) Dispatch(ctx context.Context, id string, ev experiment.Event) (Snapshot, error) {
	sess, err := s.get(id)
	if err != nil {
		return Snapshot{}, err
	}
	if a, ok := ev.(experiment.Advance); ok && a.At.IsZero() {
		ev = experiment.Advance{At: s.clock.Now()}
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return Snapshot{}, ErrSessionNotFound
	}
	sess.lastSeen = s.clock.Now()

	next, fx, err := sess.machine.Apply(sess.state, ev)
	if err != nil {
		return s.snapshot(id, sess), err
	}
	sess.state = next
	s.execute(id, sess, fx)
	return s.snapshot(id, sess), nil
}

// Snapshot returns the current state of a session
func (s *SessionService) Snapshot(id string) (Snapshot, error) {
	sess, err := s.get(id)
	if err != nil {
		return Snapshot{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return Snapshot{}, ErrSessionNotFound
	}
	sess.lastSeen = s.clock.Now()
	return s.snapshot(id, sess), nil
}

// snapshot copies the state; callers hold sess.mu
func (s *SessionService) snapshot(id string, sess *session) Snapshot {
	snap := Snapshot{
		ID:         id,
		Machine:    sess.machine,
		State:      sess.state,
		FocusAfter: sess.focusAfter,
	}
	snap.State.Guesses = append([]string(nil), sess.state.Guesses...)
	snap.State.Ratings = append([]models.PartRating(nil), sess.state.Ratings...)
	snap.State.ExamResults = append([]bool(nil), sess.state.ExamResults...)
	sess.focusAfter = 0
	return snap
}

func (s *SessionService) get(id string) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// execute runs effects; callers hold sess.mu
func (s *SessionService) execute(id string, sess *session, fx []experiment.Effect) {
	for _, effect := range fx {
		switch e := effect.(type) {
		case experiment.Persist:
			s.log.Debug("persist", "key", e.Key, "value", e.Value)
			if sess.persist {
				s.background(func(ctx context.Context) {
					if err := s.storage.Write(ctx, e.Key, e.Value); err != nil {
						s.log.Warn("failed to persist result", "key", e.Key, "error", err)
					}
				})
			}
		case experiment.Schedule:
			if prev, ok := sess.timers[e.Timer]; ok {
				prev.Stop()
			}
			sess.timers[e.Timer] = s.clock.After(e.After, func() {
				s.fire(id, experiment.TimerFired{Timer: e.Timer, Generation: e.Generation})
			})
		case experiment.Preload:
			if s.preloader != nil {
				s.background(func(ctx context.Context) {
					if err := s.preloader.Preload(ctx, e.Images); err != nil {
						s.log.Warn("failed to preload images", "session", id, "error", err)
					}
				})
			}
		case experiment.FocusInput:
			sess.focusAfter = e.After
		case experiment.Completed:
			s.log.Info("session completed", "session", id, "total_reward", e.TotalReward, "total_payment", e.TotalPayment)
			if s.notifier != nil && sess.persist {
				s.background(func(ctx context.Context) {
					if err := s.notifier.NotifyCompletion(ctx, id, e.TotalReward, e.TotalPayment); err != nil {
						s.log.Warn("failed to send completion notice", "session", id, "error", err)
					}
				})
			}
		}
	}
}

// background runs f on a tracked goroutine with its own timeout
func (s *SessionService) background(f func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), storageTimeout)
		defer cancel()
		f(ctx)
	}()
}

// fire delivers a timer callback. Sessions closed in the meantime are
// skipped; stale generations are dropped by the state machine.
func (s *SessionService) fire(id string, ev experiment.TimerFired) {
	sess, err := s.get(id)
	if err != nil {
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return
	}

	next, fx, err := sess.machine.Apply(sess.state, ev)
	if err != nil {
		s.log.Error("timer event failed", "session", id, "timer", ev.Timer.String(), "error", err)
		return
	}
	sess.state = next
	s.execute(id, sess, fx)
}

// Close removes a session and stops its pending timers
func (s *SessionService) Close(id string) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if ok {
		s.closeSession(sess)
	}
}

// CloseAll closes every session, as on shutdown
func (s *SessionService) CloseAll() {
	s.mu.Lock()
	all := s.sessions
	s.sessions = make(map[string]*session)
	s.mu.Unlock()
	for _, sess := range all {
		s.closeSession(sess)
	}
}

func (s *SessionService) closeSession(sess *session) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.closed = true
	for kind, t := range sess.timers {
		t.Stop()
		delete(sess.timers, kind)
	}
}

// Sweep evicts sessions idle for longer than the TTL and returns how many
// were removed
func (s *SessionService) Sweep() int {
	if s.ttl <= 0 {
		return 0
	}
	cutoff := s.clock.Now().Add(-s.ttl)

	s.mu.Lock()
	var expired []*session
	for id, sess := range s.sessions {
		sess.mu.Lock()
		idle := sess.lastSeen.Before(cutoff)
		sess.mu.Unlock()
		if idle {
			expired = append(expired, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range expired {
		s.closeSession(sess)
	}
	if len(expired) > 0 {
		s.log.Info("evicted idle sessions", "count", len(expired))
	}
	return len(expired)
}

// RunSweeper calls Sweep every interval until ctx is done
func (s *SessionService) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Len returns the number of live sessions
func (s *SessionService) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Wait blocks until background writes, preloads and notifications finish
func (s *SessionService) Wait() {
	s.wg.Wait()
}
