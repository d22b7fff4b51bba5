// Package events defines the typed observability stream emitted by the
// login core. Events are published on an in-process bus; sinks subscribe
// without the core knowing about them.
package events

import "time"

// LoginEventType defines the type of event emitted by the login core.
type LoginEventType string

const (
	EventTypeEnqueue        LoginEventType = "enqueue"         // EventTypeEnqueue indicates a session was admitted to the login queue.
	EventTypeDispatchBegin  LoginEventType = "dispatch_begin"  // EventTypeDispatchBegin indicates the scheduler began executing a queued login.
	EventTypeDispatchEnd    LoginEventType = "dispatch_end"    // EventTypeDispatchEnd indicates a dispatched login finished, in any outcome.
	EventTypeFormFound      LoginEventType = "form_found"      // EventTypeFormFound indicates the form locator classified a fillable login form.
	EventTypeFormFilled     LoginEventType = "form_filled"     // EventTypeFormFilled indicates credentials were delivered and the form submitted.
	EventTypeTwoFAFound     LoginEventType = "twofa_found"     // EventTypeTwoFAFound indicates a one-time-code challenge was detected.
	EventTypeTwoFAFilled    LoginEventType = "twofa_filled"    // EventTypeTwoFAFilled indicates the one-time code was delivered and submitted.
	EventTypeGaveUp         LoginEventType = "gaveup"          // EventTypeGaveUp indicates the session's login attempt was abandoned.
	EventTypeSessionRemoved LoginEventType = "session_removed" // EventTypeSessionRemoved indicates a session was destroyed and its login state dropped.
)

// LoginEvent is one observation from the login core.
type LoginEvent struct {
	// Type indicates the kind of event.
	Type LoginEventType

	// SessionID identifies the session the event belongs to.
	SessionID string

	// TenantKey groups the event under an authentication flow, when known.
	TenantKey string

	// At is the wall time the event was emitted.
	At time.Time

	// Detail carries optional free-form context (form kind, error text).
	Detail string
}
