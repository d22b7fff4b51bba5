package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/tabvault/tabvault/pkg/browser"
	"github.com/tabvault/tabvault/pkg/logging"
)

// CapabilityLookup resolves a session id to its capability, or nil when
// the session is gone.
type CapabilityLookup func(sessionID string) browser.Capability

// CountdownPresenter renders per-session wait overlays. It holds no
// session state beyond the live overlays; scheduler correctness never
// depends on it, so every overlay failure is logged and swallowed.
type CountdownPresenter struct {
	mu       sync.Mutex
	overlays map[string]*countdown

	lookup  CapabilityLookup
	log     *logging.Logger
	onShown func(sessionID, handle string)

	tick func(d time.Duration) *time.Ticker
}

type countdown struct {
	handle string
	stop   chan struct{}
}

// NewCountdownPresenter creates a presenter. onShown, when non-nil, is
// invoked with the overlay handle after a successful Show so the owner
// can record it on the session's login state.
func NewCountdownPresenter(lookup CapabilityLookup, log *logging.Logger, onShown func(sessionID, handle string)) *CountdownPresenter {
	return &CountdownPresenter{
		overlays: make(map[string]*countdown),
		lookup:   lookup,
		log:      log,
		onShown:  onShown,
		tick:     time.NewTicker,
	}
}

// Show renders a countdown overlay on the session and starts ticking it
// down once per second until it reaches zero or the session dispatches.
func (p *CountdownPresenter) Show(sessionID string, wait time.Duration, queuePosition int) {
	cap := p.lookup(sessionID)
	if cap == nil {
		return
	}

	seconds := int(wait.Round(time.Second) / time.Second)
	handle, err := cap.ShowOverlay(context.Background(), browser.OverlaySpec{
		Seconds:       seconds,
		QueuePosition: queuePosition,
	})
	if err != nil {
		p.log.Warnf("overlay show failed for session %s: %v", sessionID, err)
		return
	}

	cd := &countdown{handle: handle, stop: make(chan struct{})}

	p.mu.Lock()
	// A stale overlay for the same session is replaced, not leaked.
	if prev, ok := p.overlays[sessionID]; ok {
		close(prev.stop)
	}
	p.overlays[sessionID] = cd
	p.mu.Unlock()

	if p.onShown != nil {
		p.onShown(sessionID, handle)
	}

	go p.run(sessionID, cd, seconds)
}

// Hide removes the session's overlay on a short fade. Sessions without an
// overlay are a no-op, so a dispatch that never waited is safe.
func (p *CountdownPresenter) Hide(sessionID string) {
	p.mu.Lock()
	cd, ok := p.overlays[sessionID]
	if ok {
		delete(p.overlays, sessionID)
	}
	p.mu.Unlock()
	if !ok {
		return
	}

	close(cd.stop)

	cap := p.lookup(sessionID)
	if cap == nil {
		return
	}
	if err := cap.HideOverlay(context.Background(), cd.handle); err != nil {
		p.log.Warnf("overlay hide failed for session %s: %v", sessionID, err)
	}
}

// run ticks the overlay once per second. The countdown stops at zero, at
// Hide, or when the session disappears.
func (p *CountdownPresenter) run(sessionID string, cd *countdown, seconds int) {
	ticker := p.tick(time.Second)
	defer ticker.Stop()

	for seconds > 0 {
		select {
		case <-cd.stop:
			return
		case <-ticker.C:
		}

		seconds--
		cap := p.lookup(sessionID)
		if cap == nil {
			return
		}
		if err := cap.UpdateOverlay(context.Background(), cd.handle, seconds); err != nil {
			p.log.Debugf("overlay update failed for session %s: %v", sessionID, err)
		}
	}
}
