// Package orchestrator wires navigation events from sessions into the
// auth-page classifier, per-session login state machines and the global
// login scheduler. It is the process-level entry point for login
// automation and the single owner of all mutable login state.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/tabvault/tabvault/pkg/authflow"
	"github.com/tabvault/tabvault/pkg/browser"
	"github.com/tabvault/tabvault/pkg/config"
	"github.com/tabvault/tabvault/pkg/credentials"
	"github.com/tabvault/tabvault/pkg/events"
	"github.com/tabvault/tabvault/pkg/formscan"
	"github.com/tabvault/tabvault/pkg/loginstate"
	"github.com/tabvault/tabvault/pkg/logging"
	"github.com/tabvault/tabvault/pkg/scheduler"
)

// Options bundle every tunable of the login core.
type Options struct {
	MinInterval             time.Duration
	FormFillGrace           time.Duration
	RecentGiveupCooldown    time.Duration
	SameFlowReentryCooldown time.Duration
	ProbeBudget             int
	ProbeInterval           time.Duration
	Followup2FADelay        time.Duration
}

// OptionsFromConfig lifts the scheduler and probe sections of the
// configuration into Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MinInterval:             cfg.Scheduler.MinInterval.Std(),
		FormFillGrace:           cfg.Scheduler.FormFillGrace.Std(),
		RecentGiveupCooldown:    cfg.Scheduler.RecentGiveupCooldown.Std(),
		SameFlowReentryCooldown: cfg.Scheduler.SameFlowReentryCooldown.Std(),
		ProbeBudget:             cfg.Probe.Budget,
		ProbeInterval:           cfg.Probe.Interval.Std(),
		Followup2FADelay:        cfg.Probe.Followup2FADelay.Std(),
	}
}

type sessionState struct {
	cap         browser.Capability
	machine     *loginstate.Machine
	unsubscribe func()
	removed     bool
}

// Orchestrator owns the login state of every session and the global
// scheduler. All state mutation happens under one mutex held only across
// short critical sections; the lock is never held across session I/O.
type Orchestrator struct {
	mu       sync.Mutex
	sessions map[string]*sessionState

	classifier *authflow.Classifier
	scanner    *formscan.Scanner
	provider   credentials.Provider
	sched      *scheduler.Scheduler
	presenter  *scheduler.CountdownPresenter
	bus        *events.Bus
	log        *logging.Logger
	opts       Options

	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
	afterFunc func(d time.Duration, fn func())
}

// New creates an orchestrator with its own presenter and scheduler.
func New(opts Options, classifier *authflow.Classifier, scanner *formscan.Scanner, provider credentials.Provider, bus *events.Bus, log *logging.Logger) *Orchestrator {
	o := &Orchestrator{
		sessions:   make(map[string]*sessionState),
		classifier: classifier,
		scanner:    scanner,
		provider:   provider,
		bus:        bus,
		log:        log,
		opts:       opts,
		now:        time.Now,
		sleep:      sleepContext,
		afterFunc: func(d time.Duration, fn func()) {
			time.AfterFunc(d, fn)
		},
	}
	o.presenter = scheduler.NewCountdownPresenter(o.lookupCapability, log, o.recordOverlayHandle)
	o.sched = scheduler.New(opts.MinInterval, o.presenter, log)
	return o
}

// Close stops the scheduler. Sessions themselves are owned elsewhere.
func (o *Orchestrator) Close() {
	o.sched.Close()
}

// AddSession starts watching a session for auth-page navigations.
func (o *Orchestrator) AddSession(cap browser.Capability) {
	id := cap.SessionID()

	o.mu.Lock()
	if _, exists := o.sessions[id]; exists {
		o.mu.Unlock()
		return
	}
	st := &sessionState{
		cap:     cap,
		machine: loginstate.NewMachine(id),
	}
	o.sessions[id] = st
	o.mu.Unlock()

	unsubscribe := cap.OnNavigate(func(event browser.NavigationEvent) {
		o.handleNavigation(id, event)
	})

	o.mu.Lock()
	st.unsubscribe = unsubscribe
	o.mu.Unlock()

	o.log.Infof("watching session %s for login pages", id)
}

// RemoveSession drops a session: its queued entry, its overlay and its
// login state. An in-flight dispatch finishes on its own; the outcome is
// discarded.
func (o *Orchestrator) RemoveSession(sessionID string) {
	o.mu.Lock()
	st, exists := o.sessions[sessionID]
	if !exists {
		o.mu.Unlock()
		return
	}
	st.removed = true
	delete(o.sessions, sessionID)
	unsubscribe := st.unsubscribe
	st.machine.CancelQueued()
	tenant := o.tenantOf(st.machine.LastAuthURL())
	o.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	o.sched.Remove(sessionID)
	o.emit(events.EventTypeSessionRemoved, sessionID, tenant, "")
}

// Machine returns the login state machine for a session, for inspection.
func (o *Orchestrator) Machine(sessionID string) *loginstate.Machine {
	o.mu.Lock()
	defer o.mu.Unlock()
	if st, ok := o.sessions[sessionID]; ok {
		return st.machine
	}
	return nil
}

// handleNavigation admits a session's auth-page navigation into the
// global queue when the state machine allows it. Both full-load and
// in-page events land here; the admission guards absorb duplicates.
func (o *Orchestrator) handleNavigation(sessionID string, event browser.NavigationEvent) {
	if !o.classifier.IsAuthPage(event.URL) {
		return
	}

	now := o.now()
	o.mu.Lock()
	st, exists := o.sessions[sessionID]
	if !exists || st.removed {
		o.mu.Unlock()
		return
	}
	machine := st.machine
	if !machine.ShouldAttempt(event.URL, now, o.guards()) {
		o.mu.Unlock()
		return
	}
	if err := machine.Enqueue(event.URL); err != nil {
		o.mu.Unlock()
		return
	}
	o.mu.Unlock()

	if !o.sched.Enqueue(sessionID, o.loginFunc(sessionID)) {
		o.mu.Lock()
		machine.CancelQueued()
		o.mu.Unlock()
		return
	}
	o.emit(events.EventTypeEnqueue, sessionID, o.tenantOf(event.URL), "")
}

func (o *Orchestrator) guards() loginstate.Guards {
	return loginstate.Guards{
		FormFillGrace:           o.opts.FormFillGrace,
		RecentGiveupCooldown:    o.opts.RecentGiveupCooldown,
		SameFlowReentryCooldown: o.opts.SameFlowReentryCooldown,
		SameFlow:                o.classifier.SameFlow,
	}
}

// lookupCapability resolves a session for the presenter; nil once the
// session is removed.
func (o *Orchestrator) lookupCapability(sessionID string) browser.Capability {
	o.mu.Lock()
	defer o.mu.Unlock()
	st, exists := o.sessions[sessionID]
	if !exists || st.removed {
		return nil
	}
	return st.cap
}

// recordOverlayHandle stores the overlay handle on the queued session's
// state, keeping overlay lifetime tied to the request lifetime.
func (o *Orchestrator) recordOverlayHandle(sessionID, handle string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if st, exists := o.sessions[sessionID]; exists {
		st.machine.SetCountdownHandle(handle)
	}
}

func (o *Orchestrator) tenantOf(url string) string {
	key, _ := o.classifier.TenantKey(url)
	return key
}

func (o *Orchestrator) emit(eventType events.LoginEventType, sessionID, tenantKey, detail string) {
	if o.bus != nil {
		o.bus.Publish(events.LoginEvent{
			Type:      eventType,
			SessionID: sessionID,
			TenantKey: tenantKey,
			At:        o.now(),
			Detail:    detail,
		})
	}
	o.log.Debugf("event %s session=%s tenant=%s detail=%q", eventType, sessionID, tenantKey, detail)
}

// sleepContext waits for the duration or the context, whichever ends
// first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
