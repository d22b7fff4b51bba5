// Package scheduler serializes login attempts across all sessions. One
// shared auth endpoint with a strict rate limit sits behind every login,
// so the process runs at most one login at a time and spaces dispatch
// starts by a minimum interval.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/tabvault/tabvault/pkg/logging"
)

// LoginFunc is the work executed for one dispatched login. It is produced
// at enqueue time and captures the session handle.
type LoginFunc func(ctx context.Context) error

// Presenter receives countdown lifecycle calls for queued sessions.
// Implementations must tolerate Hide for sessions that never got a Show.
type Presenter interface {
	Show(sessionID string, wait time.Duration, queuePosition int)
	Hide(sessionID string)
}

// timerHandle abstracts time.AfterFunc results so tests can drive
// dispatch timing manually.
type timerHandle interface {
	Stop() bool
}

type entry struct {
	sessionID  string
	fn         LoginFunc
	enqueuedAt time.Time
}

// Scheduler owns the global FIFO login queue.
//
// Guarantees: at most one login function executes at a time across the
// process, and two consecutive dispatches start at least minInterval
// apart, measured from dispatch start to dispatch start. Entries leave
// the queue in enqueue order; session identity never reorders them.
type Scheduler struct {
	mu             sync.Mutex
	queue          []entry
	active         map[string]struct{}
	inFlight       bool
	lastDispatchAt time.Time
	minInterval    time.Duration
	closed         bool

	presenter Presenter
	log       *logging.Logger

	now        func() time.Time
	afterFunc  func(d time.Duration, fn func()) timerHandle
	pending    timerHandle
	timerArmed bool
}

// New creates a scheduler gated by minInterval.
func New(minInterval time.Duration, presenter Presenter, log *logging.Logger) *Scheduler {
	return &Scheduler{
		active:      make(map[string]struct{}),
		minInterval: minInterval,
		presenter:   presenter,
		log:         log,
		now:         time.Now,
		afterFunc: func(d time.Duration, fn func()) timerHandle {
			return time.AfterFunc(d, fn)
		},
	}
}

// Enqueue admits one login request for a session. It returns false when
// the session already has a pending or in-flight entry, or the scheduler
// is closed. When the gate is open and nothing is queued the entry
// dispatches immediately; otherwise a countdown is shown for the
// estimated wait.
func (s *Scheduler) Enqueue(sessionID string, fn LoginFunc) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	if _, dup := s.active[sessionID]; dup {
		s.mu.Unlock()
		return false
	}

	now := s.now()
	s.active[sessionID] = struct{}{}
	s.queue = append(s.queue, entry{sessionID: sessionID, fn: fn, enqueuedAt: now})

	if !s.inFlight && len(s.queue) == 1 && now.Sub(s.lastDispatchAt) >= s.minInterval {
		s.dispatchLocked()
		s.mu.Unlock()
		return true
	}

	position := len(s.queue)
	wait := s.estimateWaitLocked(now, position)
	s.armTimerLocked()
	s.mu.Unlock()

	s.presenter.Show(sessionID, wait, position)
	return true
}

// Remove cancels any queued entry for the session and hides its overlay.
// An in-flight entry is allowed to finish; its result is discarded by the
// session's state machine.
func (s *Scheduler) Remove(sessionID string) {
	s.mu.Lock()
	removed := false
	for i, e := range s.queue {
		if e.sessionID == sessionID {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			removed = true
			break
		}
	}
	if removed {
		delete(s.active, sessionID)
	}
	s.mu.Unlock()

	if removed {
		s.presenter.Hide(sessionID)
	}
}

// Close stops dispatching. Queued entries are dropped; an in-flight login
// finishes on its own.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.queue = nil
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
	s.timerArmed = false
}

// InFlight reports whether a login is currently executing.
func (s *Scheduler) InFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// QueueLen returns the number of waiting entries.
func (s *Scheduler) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// estimateWaitLocked projects when the entry at the given 1-based queue
// position will dispatch. The estimate assumes every earlier entry takes
// a full interval; the overlay is corrected by ticks, never trusted for
// correctness.
func (s *Scheduler) estimateWaitLocked(now time.Time, position int) time.Duration {
	remainder := s.minInterval - now.Sub(s.lastDispatchAt)
	if remainder < 0 {
		remainder = 0
	}
	return remainder + time.Duration(position-1)*s.minInterval
}

// armTimerLocked schedules the next dispatch attempt when nothing is in
// flight. Completion of an in-flight login re-arms instead.
func (s *Scheduler) armTimerLocked() {
	if s.inFlight || s.timerArmed || s.closed || len(s.queue) == 0 {
		return
	}
	delay := s.lastDispatchAt.Add(s.minInterval).Sub(s.now())
	if delay < 0 {
		delay = 0
	}
	s.timerArmed = true
	s.pending = s.afterFunc(delay, s.onTimer)
}

func (s *Scheduler) onTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timerArmed = false
	s.pending = nil
	if s.closed || s.inFlight || len(s.queue) == 0 {
		return
	}
	if s.now().Before(s.lastDispatchAt.Add(s.minInterval)) {
		// Raced with a dispatch; wait out the remainder.
		s.armTimerLocked()
		return
	}
	s.dispatchLocked()
}

// dispatchLocked pops the queue head and starts it. The inter-dispatch
// gate is stamped from the dispatch start, not its completion.
func (s *Scheduler) dispatchLocked() {
	e := s.queue[0]
	s.queue = s.queue[1:]
	s.inFlight = true
	s.lastDispatchAt = s.now()
	go s.run(e)
}

// run executes one dispatched login outside the lock.
func (s *Scheduler) run(e entry) {
	s.presenter.Hide(e.sessionID)

	if err := e.fn(context.Background()); err != nil {
		s.log.Warnf("login for session %s failed: %v", e.sessionID, err)
	}

	s.mu.Lock()
	s.inFlight = false
	delete(s.active, e.sessionID)
	s.armTimerLocked()
	s.mu.Unlock()
}
