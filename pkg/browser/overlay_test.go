package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildShowOverlayScript(t *testing.T) {
	script := buildShowOverlayScript("tabvault-overlay-ab12cd34", OverlaySpec{
		Title:         "Waiting to sign in",
		Seconds:       42,
		QueuePosition: 2,
	})

	assert.Contains(t, script, `"tabvault-overlay-ab12cd34"`)
	assert.Contains(t, script, `"Waiting to sign in"`)
	assert.Contains(t, script, "42")
	assert.Contains(t, script, "position ' + 2")
	// Re-running the script must not stack a second node.
	assert.Contains(t, script, "getElementById")
}

func TestBuildShowOverlayScriptDefaultTitle(t *testing.T) {
	script := buildShowOverlayScript("h", OverlaySpec{Seconds: 5})
	assert.Contains(t, script, `"Waiting to sign in"`)
}

func TestBuildShowOverlayScriptEscapesTitle(t *testing.T) {
	script := buildShowOverlayScript("h", OverlaySpec{Title: `"><script>`})
	assert.Contains(t, script, `"\"><script>"`)
}

func TestBuildUpdateOverlayScript(t *testing.T) {
	script := buildUpdateOverlayScript("handle-1", 17)
	assert.Contains(t, script, `"handle-1"`)
	assert.Contains(t, script, "17")
	// A vanished overlay is tolerated, not an error.
	assert.Contains(t, script, "if (!box) return false")
}

func TestBuildHideOverlayScript(t *testing.T) {
	script := buildHideOverlayScript("handle-1")
	assert.Contains(t, script, `"handle-1"`)
	assert.Contains(t, script, "box.remove()")
}
