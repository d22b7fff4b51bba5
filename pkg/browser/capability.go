package browser

import "context"

// NavigationKind distinguishes the two navigation signals a session emits.
type NavigationKind string

const (
	// NavigationFullLoad indicates a full document load completed.
	NavigationFullLoad NavigationKind = "full-load"

	// NavigationInPage indicates an in-page (history/pushState) navigation.
	NavigationInPage NavigationKind = "in-page"
)

// NavigationEvent carries the new URL for a navigation in a session.
type NavigationEvent struct {
	Kind NavigationKind
	URL  string
}

// NavigationListener receives navigation events for one session.
// Events from a single session are delivered in source order.
type NavigationListener func(NavigationEvent)

// FrameEvalResult is the outcome of evaluating a script inside a subframe.
type FrameEvalResult struct {
	// Found reports whether a subframe matching the URL substring existed.
	Found bool

	// Value is the script's return value when Found is true.
	Value interface{}
}

// OverlaySpec describes a countdown overlay rendered on a session's content.
type OverlaySpec struct {
	// Title is the headline shown on the overlay.
	Title string

	// Seconds is the initial countdown value.
	Seconds int

	// QueuePosition is the session's 1-based position in the login queue.
	QueuePosition int
}

// Capability is the narrow surface the login core uses to drive one
// sandboxed browsing session. All operations may fail with ErrNotReachable
// (session torn down) or ErrScriptError (evaluation threw); neither is
// fatal to the scheduler.
type Capability interface {
	// SessionID returns the stable identifier of this session.
	SessionID() string

	// CurrentURL returns the URL of the session's top document.
	CurrentURL(ctx context.Context) (string, error)

	// Navigate loads the given URL in the session.
	Navigate(ctx context.Context, url string) error

	// EvalTop evaluates a script in the top document and returns its value.
	EvalTop(ctx context.Context, script string) (interface{}, error)

	// EvalFrame finds the first subframe whose URL contains urlSubstr and
	// evaluates the script there. Found is false when no frame matches.
	EvalFrame(ctx context.Context, urlSubstr, script string) (FrameEvalResult, error)

	// OnNavigate registers a navigation listener. The returned function
	// unregisters it.
	OnNavigate(listener NavigationListener) (unsubscribe func())

	// ShowOverlay renders a countdown overlay and returns an opaque handle.
	ShowOverlay(ctx context.Context, spec OverlaySpec) (string, error)

	// UpdateOverlay refreshes the remaining seconds on an overlay.
	UpdateOverlay(ctx context.Context, handle string, seconds int) error

	// HideOverlay removes an overlay on a short fade.
	HideOverlay(ctx context.Context, handle string) error
}
