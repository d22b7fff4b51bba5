package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/tabvault/tabvault/pkg/logging"
)

// Session is one sandboxed browsing context driven through its own browser
// instance. It implements Capability for the login core.
type Session struct {
	id      string
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
	log     *logging.Logger

	createdAt  time.Time
	lastUsedAt time.Time

	mu           sync.Mutex
	closed       bool
	listeners    map[int]NavigationListener
	nextListener int
}

// SessionID returns the stable identifier of this session.
func (s *Session) SessionID() string {
	return s.id
}

// CreatedAt returns when the session was opened.
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// touch updates the last-used timestamp.
func (s *Session) touch() {
	s.mu.Lock()
	s.lastUsedAt = time.Now()
	s.mu.Unlock()
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// close tears down the session's browser resources. Errors are ignored so
// cleanup always runs to completion.
func (s *Session) close() {
	s.mu.Lock()
	s.closed = true
	s.listeners = make(map[int]NavigationListener)
	s.mu.Unlock()

	_ = s.page.Close()
	_ = s.context.Close()
	_ = s.browser.Close()
}

// CurrentURL returns the URL of the session's top document.
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.isClosed() || s.page.IsClosed() {
		return "", fmt.Errorf("session %s: %w", s.id, ErrNotReachable)
	}
	s.touch()
	return s.page.URL(), nil
}

// Navigate loads the given URL in the session.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.isClosed() || s.page.IsClosed() {
		return fmt.Errorf("session %s: %w", s.id, ErrNotReachable)
	}
	s.touch()

	if _, err := s.page.Goto(url); err != nil {
		return fmt.Errorf("navigation failed: %w: %v", ErrNotReachable, err)
	}
	return nil
}

// EvalTop evaluates a script in the top document.
func (s *Session) EvalTop(ctx context.Context, script string) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.isClosed() || s.page.IsClosed() {
		return nil, fmt.Errorf("session %s: %w", s.id, ErrNotReachable)
	}
	s.touch()

	result, err := s.page.Evaluate(script)
	if err != nil {
		return nil, s.evalError(err)
	}
	return result, nil
}

// EvalFrame finds the first subframe whose URL contains urlSubstr and
// evaluates the script there. Used for cross-origin auth frames, where the
// top document cannot touch the frame's DOM.
func (s *Session) EvalFrame(ctx context.Context, urlSubstr, script string) (FrameEvalResult, error) {
	if err := ctx.Err(); err != nil {
		return FrameEvalResult{}, err
	}
	if s.isClosed() || s.page.IsClosed() {
		return FrameEvalResult{}, fmt.Errorf("session %s: %w", s.id, ErrNotReachable)
	}
	s.touch()

	main := s.page.MainFrame()
	for _, frame := range s.page.Frames() {
		if frame == main || !strings.Contains(frame.URL(), urlSubstr) {
			continue
		}
		value, err := frame.Evaluate(script)
		if err != nil {
			return FrameEvalResult{}, s.evalError(err)
		}
		return FrameEvalResult{Found: true, Value: value}, nil
	}
	return FrameEvalResult{Found: false}, nil
}

// evalError maps a playwright evaluation failure onto the core's error
// kinds: a closed target is NotReachable, anything else is a script error.
func (s *Session) evalError(err error) error {
	if s.isClosed() || s.page.IsClosed() {
		return fmt.Errorf("session %s: %w", s.id, ErrNotReachable)
	}
	return fmt.Errorf("%w: %v", ErrScriptError, err)
}
