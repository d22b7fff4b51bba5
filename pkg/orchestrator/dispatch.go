package orchestrator

import (
	"context"
	"errors"

	"github.com/tabvault/tabvault/pkg/browser"
	"github.com/tabvault/tabvault/pkg/credentials"
	"github.com/tabvault/tabvault/pkg/events"
	"github.com/tabvault/tabvault/pkg/formscan"
	"github.com/tabvault/tabvault/pkg/loginstate"
	"github.com/tabvault/tabvault/pkg/scheduler"
)

// loginFunc produces the closure the scheduler executes for one admitted
// session. The closure re-reads the world at dispatch time: the page may
// have navigated away, the session may be gone.
func (o *Orchestrator) loginFunc(sessionID string) scheduler.LoginFunc {
	return func(ctx context.Context) error {
		return o.dispatch(ctx, sessionID)
	}
}

// dispatch runs one in-flight login attempt end to end. Every error is
// reduced to a state-machine transition here; the scheduler only sees
// success or failure in order to release the gate.
func (o *Orchestrator) dispatch(ctx context.Context, sessionID string) error {
	o.mu.Lock()
	st, exists := o.sessions[sessionID]
	if !exists || st.removed {
		// Session destroyed while queued; result would be discarded anyway.
		o.mu.Unlock()
		return nil
	}
	machine := st.machine
	cap := st.cap
	machine.BeginDispatch(o.now())
	tenant := o.tenantOf(machine.LastAuthURL())
	o.mu.Unlock()

	o.emit(events.EventTypeDispatchBegin, sessionID, tenant, "")
	defer func() {
		o.mu.Lock()
		machine.EndDispatch()
		o.mu.Unlock()
		o.emit(events.EventTypeDispatchEnd, sessionID, tenant, "")
	}()

	url, err := cap.CurrentURL(ctx)
	if err != nil {
		o.giveUp(sessionID, machine, tenant, "session not reachable")
		return err
	}
	if !o.classifier.IsAuthPage(url) {
		// The tab moved on while the request waited in the queue.
		o.giveUp(sessionID, machine, tenant, "navigated away from login page")
		return nil
	}
	tenant = o.tenantOf(url)

	creds, err := o.provider.Credentials(tenant)
	if err != nil {
		o.log.Warnf("no credentials for tenant %q, session %s", tenant, sessionID)
		o.giveUp(sessionID, machine, tenant, "credentials missing")
		return nil
	}

	return o.probeLoop(ctx, sessionID, cap, machine, tenant, creds)
}

// probeLoop runs up to ProbeBudget form probes, ProbeInterval apart, and
// fills whatever form shows up. A script error spoils a single probe, not
// the dispatch.
func (o *Orchestrator) probeLoop(ctx context.Context, sessionID string, cap browser.Capability, machine *loginstate.Machine, tenant string, creds credentials.Credentials) error {
	for attempt := 1; attempt <= o.opts.ProbeBudget; attempt++ {
		if o.sessionGone(sessionID) {
			return nil
		}

		kind, err := o.scanner.Probe(ctx, cap)
		if err != nil {
			if errors.Is(err, browser.ErrNotReachable) {
				o.giveUp(sessionID, machine, tenant, "session not reachable")
				return err
			}
			// Probe script threw; count the attempt and move on.
			kind = formscan.KindNone
		}

		switch kind {
		case formscan.KindMain, formscan.KindSameOriginFrame, formscan.KindCrossOriginFrame:
			o.emit(events.EventTypeFormFound, sessionID, tenant, string(kind))
			err := o.scanner.FillCredentials(ctx, cap, kind, creds.Identifier, creds.Secret)
			if err == nil {
				o.mu.Lock()
				machine.MarkFormFilled(o.now())
				o.mu.Unlock()
				o.emit(events.EventTypeFormFilled, sessionID, tenant, string(kind))
				go o.followUp2FA(sessionID, tenant)
				return nil
			}
			if errors.Is(err, browser.ErrNotReachable) {
				o.giveUp(sessionID, machine, tenant, "session not reachable")
				return err
			}
			// The form vanished between probe and fill; re-probe.

		case formscan.KindTwoFA:
			o.emit(events.EventTypeTwoFAFound, sessionID, tenant, "")
			o.mu.Lock()
			machine.MarkAwaiting2FA(o.now())
			o.mu.Unlock()
			if done := o.fillChallenge(ctx, sessionID, cap, machine, tenant); done {
				return nil
			}
			// Challenge fill failed non-fatally; re-probe.

		case formscan.KindNone:
			// Nothing on screen yet; wait and re-probe.
		}

		if attempt < o.opts.ProbeBudget {
			if err := o.sleep(ctx, o.opts.ProbeInterval); err != nil {
				return err
			}
		}
	}

	o.giveUp(sessionID, machine, tenant, "no login form found")
	return nil
}

// fillChallenge fetches a fresh one-time code and delivers it. Returns
// true when the dispatch is finished, either completed or parked in the
// awaiting-2fa grace window.
func (o *Orchestrator) fillChallenge(ctx context.Context, sessionID string, cap browser.Capability, machine *loginstate.Machine, tenant string) bool {
	code, err := o.provider.CurrentOTP(tenant)
	if err != nil {
		// Stay in the grace window; give up when it expires.
		o.log.Warnf("one-time code unavailable for tenant %q, session %s: %v", tenant, sessionID, err)
		o.scheduleGraceExpiry(sessionID, tenant)
		return true
	}

	if err := o.scanner.FillOTP(ctx, cap, formscan.KindTwoFA, code); err != nil {
		if errors.Is(err, browser.ErrNotReachable) {
			o.giveUp(sessionID, machine, tenant, "session not reachable")
			return true
		}
		return false
	}

	o.mu.Lock()
	machine.MarkComplete()
	o.mu.Unlock()
	o.emit(events.EventTypeTwoFAFilled, sessionID, tenant, "")
	return true
}

// followUp2FA watches the already-open session after a credential submit.
// It runs outside the inter-login gate: no new auth call is made, the
// session is just observed for the second factor or for silent success.
func (o *Orchestrator) followUp2FA(sessionID, tenant string) {
	ctx := context.Background()
	if err := o.sleep(ctx, o.opts.Followup2FADelay); err != nil {
		return
	}

	for attempt := 1; attempt <= o.opts.ProbeBudget; attempt++ {
		o.mu.Lock()
		st, exists := o.sessions[sessionID]
		if !exists || st.removed {
			o.mu.Unlock()
			return
		}
		machine := st.machine
		cap := st.cap
		o.mu.Unlock()

		kind, err := o.scanner.Probe(ctx, cap)
		if errors.Is(err, browser.ErrNotReachable) {
			return
		}

		if kind == formscan.KindTwoFA {
			o.emit(events.EventTypeTwoFAFound, sessionID, tenant, "")
			o.mu.Lock()
			machine.MarkAwaiting2FA(o.now())
			o.mu.Unlock()
			o.fillChallenge(ctx, sessionID, cap, machine, tenant)
			return
		}

		// No challenge. If the tab left the auth flow, the login stuck
		// without a second factor.
		if url, err := cap.CurrentURL(ctx); err == nil && !o.classifier.IsAuthPage(url) {
			o.mu.Lock()
			machine.MarkComplete()
			o.mu.Unlock()
			return
		}

		if err := o.sleep(ctx, o.opts.ProbeInterval); err != nil {
			return
		}
	}
}

// scheduleGraceExpiry abandons a session still stuck on a one-time-code
// challenge once the grace window closes.
func (o *Orchestrator) scheduleGraceExpiry(sessionID, tenant string) {
	o.afterFunc(o.opts.FormFillGrace, func() {
		o.mu.Lock()
		st, exists := o.sessions[sessionID]
		if !exists || st.machine.Phase() != loginstate.PhaseAwaiting2FA {
			o.mu.Unlock()
			return
		}
		st.machine.MarkGaveUp(o.now())
		o.mu.Unlock()
		o.emit(events.EventTypeGaveUp, sessionID, tenant, "one-time code unavailable")
	})
}

func (o *Orchestrator) sessionGone(sessionID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	st, exists := o.sessions[sessionID]
	return !exists || st.removed
}

// giveUp abandons the current attempt and records when, so re-admission
// stays suppressed for the cooldown.
func (o *Orchestrator) giveUp(sessionID string, machine *loginstate.Machine, tenant, reason string) {
	o.mu.Lock()
	machine.MarkGaveUp(o.now())
	o.mu.Unlock()
	o.emit(events.EventTypeGaveUp, sessionID, tenant, reason)
}
