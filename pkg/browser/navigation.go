package browser

import "github.com/playwright-community/playwright-go"

// OnNavigate registers a navigation listener. Events from this session are
// delivered in source order. The returned function unregisters the
// listener; it is safe to call more than once.
func (s *Session) OnNavigate(listener NavigationListener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = listener
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// wireNavigationEvents hooks the page's load and frame-navigation events
// into the listener registry. A hard navigation surfaces as an in-page
// signal (the main frame commits) followed by a full-load signal; the
// login core's admission guards absorb the duplicate.
func (s *Session) wireNavigationEvents() {
	s.page.OnLoad(func(page playwright.Page) {
		s.emit(NavigationEvent{Kind: NavigationFullLoad, URL: page.URL()})
	})

	s.page.OnFrameNavigated(func(frame playwright.Frame) {
		if frame != s.page.MainFrame() {
			return
		}
		s.emit(NavigationEvent{Kind: NavigationInPage, URL: frame.URL()})
	})
}

// emit delivers an event to all registered listeners, serially.
func (s *Session) emit(event NavigationEvent) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	listeners := make([]NavigationListener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(event)
	}
}
