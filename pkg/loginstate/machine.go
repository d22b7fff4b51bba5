// Package loginstate tracks login progress for one session. A Machine is
// not synchronized; the orchestrator serializes all access, matching the
// single-owner model the scheduler state uses.
package loginstate

import (
	"fmt"
	"time"
)

// Phase is a session's position in the login lifecycle.
type Phase string

const (
	PhaseIdle        Phase = "idle"         // PhaseIdle means no login activity for the session yet.
	PhaseQueued      Phase = "queued"       // PhaseQueued means an entry for the session sits in the global queue.
	PhaseInProgress  Phase = "in_progress"  // PhaseInProgress means the session's login is the one in flight.
	PhaseFormFilled  Phase = "form_filled"  // PhaseFormFilled means credentials were submitted; awaiting the outcome.
	PhaseAwaiting2FA Phase = "awaiting_2fa" // PhaseAwaiting2FA means a one-time-code challenge is on screen.
	PhaseComplete    Phase = "complete"     // PhaseComplete means login finished; no further automatic attempts.
	PhaseGaveUp      Phase = "gave_up"      // PhaseGaveUp means the attempt was abandoned; clears after a cooldown.
)

// Guards holds the suppression windows consulted by ShouldAttempt.
type Guards struct {
	// FormFillGrace suppresses re-entry after a successful submit while a
	// second factor may still be pending.
	FormFillGrace time.Duration

	// RecentGiveupCooldown suppresses re-admission after a give-up.
	RecentGiveupCooldown time.Duration

	// SameFlowReentryCooldown suppresses repeated requests for the same
	// auth flow while one is in progress.
	SameFlowReentryCooldown time.Duration

	// SameFlow reports whether two URLs belong to the same auth flow.
	SameFlow func(a, b string) bool
}

// Machine is the login state of a single session.
type Machine struct {
	sessionID string

	phase            Phase
	lastAttemptAt    time.Time
	formFilledAt     time.Time
	gaveUpAt         time.Time
	lastAuthURL      string
	countdownHandle  string
	hasActiveRequest bool
}

// NewMachine creates a machine in the idle phase.
func NewMachine(sessionID string) *Machine {
	return &Machine{
		sessionID: sessionID,
		phase:     PhaseIdle,
	}
}

// SessionID returns the session this machine belongs to.
func (m *Machine) SessionID() string { return m.sessionID }

// Phase returns the current phase.
func (m *Machine) Phase() Phase { return m.phase }

// LastAuthURL returns the URL of the most recently admitted auth request.
func (m *Machine) LastAuthURL() string { return m.lastAuthURL }

// HasActiveRequest reports whether an entry for this session is queued or
// in flight. It enforces per-session queue uniqueness.
func (m *Machine) HasActiveRequest() bool { return m.hasActiveRequest }

// CountdownHandle returns the overlay handle, present only while queued.
func (m *Machine) CountdownHandle() string { return m.countdownHandle }

// SetCountdownHandle records the overlay handle for the queued request.
func (m *Machine) SetCountdownHandle(handle string) { m.countdownHandle = handle }

// ClearCountdownHandle drops the overlay handle.
func (m *Machine) ClearCountdownHandle() { m.countdownHandle = "" }

// ShouldAttempt decides whether an auth navigation to url may be admitted
// at time now.
func (m *Machine) ShouldAttempt(url string, now time.Time, g Guards) bool {
	if m.hasActiveRequest {
		return false
	}
	switch m.phase {
	case PhaseComplete:
		return false
	case PhaseFormFilled, PhaseAwaiting2FA:
		if now.Sub(m.formFilledAt) < g.FormFillGrace {
			return false
		}
	case PhaseInProgress:
		if now.Sub(m.lastAttemptAt) < g.SameFlowReentryCooldown &&
			g.SameFlow != nil && g.SameFlow(url, m.lastAuthURL) {
			return false
		}
	case PhaseGaveUp:
		if now.Sub(m.gaveUpAt) < g.RecentGiveupCooldown {
			return false
		}
	}
	return true
}

// Enqueue transitions to Queued for an admitted request. It fails when an
// entry for this session is already pending.
func (m *Machine) Enqueue(url string) error {
	if m.hasActiveRequest {
		return fmt.Errorf("session %s already has an active login request", m.sessionID)
	}
	m.phase = PhaseQueued
	m.lastAuthURL = url
	m.hasActiveRequest = true
	return nil
}

// BeginDispatch transitions to InProgress when the scheduler picks this
// session's entry.
func (m *Machine) BeginDispatch(now time.Time) {
	m.phase = PhaseInProgress
	m.lastAttemptAt = now
	m.countdownHandle = ""
}

// MarkFormFilled records a successful credential submit.
func (m *Machine) MarkFormFilled(now time.Time) {
	m.phase = PhaseFormFilled
	m.formFilledAt = now
}

// MarkAwaiting2FA records that a one-time-code challenge is on screen.
// The grace window restarts from the detection time, so a slow challenge
// does not expire mid-fill.
func (m *Machine) MarkAwaiting2FA(now time.Time) {
	m.phase = PhaseAwaiting2FA
	m.formFilledAt = now
}

// CancelQueued clears a queued request that never dispatched: either the
// scheduler refused it or the session was removed from the queue.
func (m *Machine) CancelQueued() {
	if m.phase == PhaseQueued {
		m.phase = PhaseIdle
	}
	m.hasActiveRequest = false
	m.countdownHandle = ""
}

// MarkComplete records a finished login. Terminal for the session's
// lifetime: no further automatic attempts are admitted.
func (m *Machine) MarkComplete() {
	m.phase = PhaseComplete
	m.hasActiveRequest = false
}

// MarkGaveUp abandons the attempt. Re-admission is suppressed for the
// give-up cooldown, then navigations may try again.
func (m *Machine) MarkGaveUp(now time.Time) {
	m.phase = PhaseGaveUp
	m.gaveUpAt = now
	m.hasActiveRequest = false
}

// EndDispatch releases the per-session request slot once the dispatched
// login function has returned, whatever phase it left the machine in.
func (m *Machine) EndDispatch() {
	m.hasActiveRequest = false
}
