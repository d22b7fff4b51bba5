package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Overlays are plain DOM nodes injected into the session's top document.
// The handle returned by ShowOverlay is the element id, so updates and
// removal survive the core holding the handle across navigations (a
// navigation simply makes the element vanish, and the scripts tolerate a
// missing node).

// ShowOverlay renders a countdown overlay and returns its handle.
func (s *Session) ShowOverlay(ctx context.Context, spec OverlaySpec) (string, error) {
	handle := "tabvault-overlay-" + uuid.New().String()[:8]
	if _, err := s.EvalTop(ctx, buildShowOverlayScript(handle, spec)); err != nil {
		return "", err
	}
	return handle, nil
}

// UpdateOverlay refreshes the remaining seconds shown on an overlay.
func (s *Session) UpdateOverlay(ctx context.Context, handle string, seconds int) error {
	_, err := s.EvalTop(ctx, buildUpdateOverlayScript(handle, seconds))
	return err
}

// HideOverlay removes an overlay on a short fade.
func (s *Session) HideOverlay(ctx context.Context, handle string) error {
	_, err := s.EvalTop(ctx, buildHideOverlayScript(handle))
	return err
}

func jsString(v string) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func buildShowOverlayScript(handle string, spec OverlaySpec) string {
	title := spec.Title
	if title == "" {
		title = "Waiting to sign in"
	}
	return fmt.Sprintf(`(() => {
  const id = %s;
  let box = document.getElementById(id);
  if (!box) {
    box = document.createElement('div');
    box.id = id;
    box.style.cssText = 'position:fixed;top:16px;right:16px;z-index:2147483647;' +
      'background:rgba(20,20,28,0.92);color:#fff;padding:12px 16px;border-radius:8px;' +
      'font:13px/1.5 system-ui,sans-serif;box-shadow:0 4px 16px rgba(0,0,0,0.35);' +
      'transition:opacity 0.3s ease;pointer-events:none;';
    const title = document.createElement('div');
    title.style.fontWeight = '600';
    title.textContent = %s;
    const body = document.createElement('div');
    body.className = 'tabvault-overlay-body';
    box.appendChild(title);
    box.appendChild(body);
    (document.body || document.documentElement).appendChild(box);
  }
  const body = box.querySelector('.tabvault-overlay-body');
  if (body) body.textContent = 'about ' + %d + 's (position ' + %d + ' in queue)';
  return id;
})();`, jsString(handle), jsString(title), spec.Seconds, spec.QueuePosition)
}

func buildUpdateOverlayScript(handle string, seconds int) string {
	return fmt.Sprintf(`(() => {
  const box = document.getElementById(%s);
  if (!box) return false;
  const body = box.querySelector('.tabvault-overlay-body');
  if (body) body.textContent = 'about ' + %d + 's';
  return true;
})();`, jsString(handle), seconds)
}

func buildHideOverlayScript(handle string) string {
	return fmt.Sprintf(`(() => {
  const box = document.getElementById(%s);
  if (!box) return false;
  box.style.opacity = '0';
  setTimeout(() => box.remove(), 300);
  return true;
})();`, jsString(handle))
}
