package browser

import "errors"

var (
	// ErrNotReachable indicates the session handle is invalid or the page
	// is gone; callers treat the session as torn down.
	ErrNotReachable = errors.New("session not reachable")

	// ErrScriptError indicates a script threw inside the session. The
	// session itself is still alive.
	ErrScriptError = errors.New("script evaluation failed")
)
