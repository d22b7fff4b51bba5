// Package formscan locates and fills login forms inside a browsing
// session. A single probe script classifies the current page; everything
// downstream is parameterized by that classification.
package formscan

import (
	"errors"
	"fmt"
)

// Kind classifies what kind of login form the current page is showing.
type Kind string

const (
	// KindMain means a password input is present in the top document.
	KindMain Kind = "main"

	// KindSameOriginFrame means an accessible subframe contains a
	// password input.
	KindSameOriginFrame Kind = "iframe:same-origin"

	// KindCrossOriginFrame means a subframe matches the auth-host pattern
	// but its document is not accessible from the top.
	KindCrossOriginFrame Kind = "iframe:cross-origin"

	// KindTwoFA means the page exhibits a one-time-code input.
	KindTwoFA Kind = "2fa"

	// KindNone means no login form was found.
	KindNone Kind = "none"
)

// ErrFormMissing indicates the expected form was not present when a fill
// was attempted.
var ErrFormMissing = errors.New("no fillable login form")

// parseKind validates a probe script result.
func parseKind(value interface{}) (Kind, error) {
	s, ok := value.(string)
	if !ok {
		return KindNone, fmt.Errorf("probe returned non-string result %T", value)
	}
	switch k := Kind(s); k {
	case KindMain, KindSameOriginFrame, KindCrossOriginFrame, KindTwoFA, KindNone:
		return k, nil
	default:
		return KindNone, fmt.Errorf("probe returned unknown classification %q", s)
	}
}
