package formscan

import (
	"context"
	"fmt"

	"github.com/tabvault/tabvault/pkg/browser"
	"github.com/tabvault/tabvault/pkg/logging"
)

// Scanner probes a session for login forms and delivers values into them.
type Scanner struct {
	authHostSubstr string
	log            *logging.Logger
}

// NewScanner creates a scanner. authHostSubstr is the marker used to
// recognize cross-origin auth frames by URL, e.g. "auth.".
func NewScanner(authHostSubstr string, log *logging.Logger) *Scanner {
	return &Scanner{
		authHostSubstr: authHostSubstr,
		log:            log,
	}
}

// Probe classifies the current page of the session.
func (s *Scanner) Probe(ctx context.Context, cap browser.Capability) (Kind, error) {
	value, err := cap.EvalTop(ctx, buildProbeScript(s.authHostSubstr))
	if err != nil {
		return KindNone, err
	}
	kind, err := parseKind(value)
	if err != nil {
		return KindNone, fmt.Errorf("%w: %v", browser.ErrScriptError, err)
	}
	return kind, nil
}

// FillCredentials writes the identifier and secret into the form located
// by kind and submits it. The identifier is optional; the password field
// is required.
func (s *Scanner) FillCredentials(ctx context.Context, cap browser.Capability, kind Kind, identifier, secret string) error {
	switch kind {
	case KindMain:
		value, err := cap.EvalTop(ctx, buildCredentialFillScript(docTop, identifier, secret))
		if err != nil {
			return err
		}
		return fillOutcome(value)

	case KindSameOriginFrame:
		value, err := cap.EvalTop(ctx, buildCredentialFillScript(docSameOriginFrame, identifier, secret))
		if err != nil {
			return err
		}
		return fillOutcome(value)

	case KindCrossOriginFrame:
		result, err := cap.EvalFrame(ctx, s.authHostSubstr, buildCredentialFillScript(docTop, identifier, secret))
		if err != nil {
			return err
		}
		if !result.Found {
			return fmt.Errorf("auth frame vanished before fill: %w", ErrFormMissing)
		}
		return fillOutcome(result.Value)

	default:
		return fmt.Errorf("cannot fill credentials into %q form: %w", kind, ErrFormMissing)
	}
}

// FillOTP writes a one-time code into the challenge located by kind and
// submits it.
func (s *Scanner) FillOTP(ctx context.Context, cap browser.Capability, kind Kind, code string) error {
	switch kind {
	case KindTwoFA, KindMain:
		value, err := cap.EvalTop(ctx, buildOTPFillScript(docTop, code))
		if err != nil {
			return err
		}
		return fillOutcome(value)

	case KindSameOriginFrame:
		value, err := cap.EvalTop(ctx, buildOTPFillScript(docSameOriginFrame, code))
		if err != nil {
			return err
		}
		return fillOutcome(value)

	case KindCrossOriginFrame:
		result, err := cap.EvalFrame(ctx, s.authHostSubstr, buildOTPFillScript(docTop, code))
		if err != nil {
			return err
		}
		if !result.Found {
			return fmt.Errorf("auth frame vanished before fill: %w", ErrFormMissing)
		}
		return fillOutcome(result.Value)

	default:
		return fmt.Errorf("cannot fill one-time code into %q form: %w", kind, ErrFormMissing)
	}
}

// fillOutcome maps a fill script result onto the core's error kinds.
func fillOutcome(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("fill script returned %T", value)
	}
	switch s {
	case "ok":
		return nil
	case "no-form", "no-password", "no-otp", "no-submit":
		return fmt.Errorf("fill failed (%s): %w", s, ErrFormMissing)
	default:
		return fmt.Errorf("fill script returned unknown outcome %q", s)
	}
}
