package formscan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabvault/tabvault/pkg/browser"
	"github.com/tabvault/tabvault/pkg/logging"
)

// fakeCapability scripts EvalTop and EvalFrame results and records the
// scripts it was asked to run.
type fakeCapability struct {
	topResults   []interface{}
	topErr       error
	frameResult  browser.FrameEvalResult
	frameErr     error
	topScripts   []string
	frameScripts []string
	frameFilters []string
}

func (f *fakeCapability) SessionID() string { return "tab-test" }

func (f *fakeCapability) CurrentURL(ctx context.Context) (string, error) {
	return "https://auth.omnivendor.example/login", nil
}

func (f *fakeCapability) Navigate(ctx context.Context, url string) error { return nil }

func (f *fakeCapability) EvalTop(ctx context.Context, script string) (interface{}, error) {
	f.topScripts = append(f.topScripts, script)
	if f.topErr != nil {
		return nil, f.topErr
	}
	if len(f.topResults) == 0 {
		return nil, errors.New("fake: no scripted result")
	}
	value := f.topResults[0]
	f.topResults = f.topResults[1:]
	return value, nil
}

func (f *fakeCapability) EvalFrame(ctx context.Context, urlSubstr, script string) (browser.FrameEvalResult, error) {
	f.frameFilters = append(f.frameFilters, urlSubstr)
	f.frameScripts = append(f.frameScripts, script)
	if f.frameErr != nil {
		return browser.FrameEvalResult{}, f.frameErr
	}
	return f.frameResult, nil
}

func (f *fakeCapability) OnNavigate(listener browser.NavigationListener) func() {
	return func() {}
}

func (f *fakeCapability) ShowOverlay(ctx context.Context, spec browser.OverlaySpec) (string, error) {
	return "", nil
}

func (f *fakeCapability) UpdateOverlay(ctx context.Context, handle string, seconds int) error {
	return nil
}

func (f *fakeCapability) HideOverlay(ctx context.Context, handle string) error { return nil }

func newTestScanner(t *testing.T) *Scanner {
	t.Helper()
	logger, _ := logging.NewLogger("formscan-test")
	return NewScanner("auth.", logger)
}

func TestProbe_Classifications(t *testing.T) {
	s := newTestScanner(t)

	for _, result := range []string{"main", "iframe:same-origin", "iframe:cross-origin", "2fa", "none"} {
		cap := &fakeCapability{topResults: []interface{}{result}}
		kind, err := s.Probe(context.Background(), cap)
		require.NoError(t, err)
		assert.Equal(t, Kind(result), kind)
	}
}

func TestProbe_ScriptCarriesAuthMarker(t *testing.T) {
	s := newTestScanner(t)
	cap := &fakeCapability{topResults: []interface{}{"none"}}

	_, err := s.Probe(context.Background(), cap)
	require.NoError(t, err)
	require.Len(t, cap.topScripts, 1)
	assert.Contains(t, cap.topScripts[0], `"auth."`)
}

func TestProbe_UnknownResult(t *testing.T) {
	s := newTestScanner(t)
	cap := &fakeCapability{topResults: []interface{}{"banner"}}

	kind, err := s.Probe(context.Background(), cap)
	assert.Equal(t, KindNone, kind)
	require.Error(t, err)
	assert.ErrorIs(t, err, browser.ErrScriptError)
}

func TestProbe_NonStringResult(t *testing.T) {
	s := newTestScanner(t)
	cap := &fakeCapability{topResults: []interface{}{42.0}}

	_, err := s.Probe(context.Background(), cap)
	require.Error(t, err)
	assert.ErrorIs(t, err, browser.ErrScriptError)
}

func TestProbe_EvalErrorPassesThrough(t *testing.T) {
	s := newTestScanner(t)
	evalErr := fmt.Errorf("page gone: %w", browser.ErrNotReachable)
	cap := &fakeCapability{topErr: evalErr}

	_, err := s.Probe(context.Background(), cap)
	assert.ErrorIs(t, err, browser.ErrNotReachable)
}

func TestFillCredentials_MainForm(t *testing.T) {
	s := newTestScanner(t)
	cap := &fakeCapability{topResults: []interface{}{"ok"}}

	err := s.FillCredentials(context.Background(), cap, KindMain, "user@example.com", "hunter2")
	require.NoError(t, err)
	require.Len(t, cap.topScripts, 1)
	assert.Contains(t, cap.topScripts[0], `"user@example.com"`)
	assert.Contains(t, cap.topScripts[0], `"hunter2"`)
	assert.Empty(t, cap.frameScripts)
}

func TestFillCredentials_SameOriginFrameUsesTopEval(t *testing.T) {
	s := newTestScanner(t)
	cap := &fakeCapability{topResults: []interface{}{"ok"}}

	err := s.FillCredentials(context.Background(), cap, KindSameOriginFrame, "user", "pw")
	require.NoError(t, err)
	require.Len(t, cap.topScripts, 1)
	// The same-origin variant walks into the frame from the top document.
	assert.Contains(t, cap.topScripts[0], "iframe")
	assert.Empty(t, cap.frameScripts)
}

func TestFillCredentials_CrossOriginFrame(t *testing.T) {
	s := newTestScanner(t)
	cap := &fakeCapability{frameResult: browser.FrameEvalResult{Found: true, Value: "ok"}}

	err := s.FillCredentials(context.Background(), cap, KindCrossOriginFrame, "user", "pw")
	require.NoError(t, err)
	assert.Empty(t, cap.topScripts)
	require.Len(t, cap.frameScripts, 1)
	assert.Equal(t, []string{"auth."}, cap.frameFilters)
}

func TestFillCredentials_CrossOriginFrameVanished(t *testing.T) {
	s := newTestScanner(t)
	cap := &fakeCapability{frameResult: browser.FrameEvalResult{Found: false}}

	err := s.FillCredentials(context.Background(), cap, KindCrossOriginFrame, "user", "pw")
	assert.ErrorIs(t, err, ErrFormMissing)
}

func TestFillCredentials_ScriptOutcomes(t *testing.T) {
	s := newTestScanner(t)

	tests := []struct {
		outcome string
		wantErr bool
	}{
		{outcome: "ok", wantErr: false},
		{outcome: "no-form", wantErr: true},
		{outcome: "no-password", wantErr: true},
		{outcome: "no-submit", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.outcome, func(t *testing.T) {
			cap := &fakeCapability{topResults: []interface{}{tt.outcome}}
			err := s.FillCredentials(context.Background(), cap, KindMain, "u", "p")
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrFormMissing)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFillCredentials_RejectsUnfillableKinds(t *testing.T) {
	s := newTestScanner(t)
	for _, kind := range []Kind{KindTwoFA, KindNone} {
		err := s.FillCredentials(context.Background(), &fakeCapability{}, kind, "u", "p")
		assert.ErrorIs(t, err, ErrFormMissing, "kind %s", kind)
	}
}

func TestFillOTP_TopDocument(t *testing.T) {
	s := newTestScanner(t)
	cap := &fakeCapability{topResults: []interface{}{"ok"}}

	err := s.FillOTP(context.Background(), cap, KindTwoFA, "123456")
	require.NoError(t, err)
	require.Len(t, cap.topScripts, 1)
	assert.Contains(t, cap.topScripts[0], `"123456"`)
}

func TestFillOTP_NoOTPField(t *testing.T) {
	s := newTestScanner(t)
	cap := &fakeCapability{topResults: []interface{}{"no-otp"}}

	err := s.FillOTP(context.Background(), cap, KindTwoFA, "123456")
	assert.ErrorIs(t, err, ErrFormMissing)
}

func TestFillOTP_CrossOriginFrame(t *testing.T) {
	s := newTestScanner(t)
	cap := &fakeCapability{frameResult: browser.FrameEvalResult{Found: true, Value: "ok"}}

	err := s.FillOTP(context.Background(), cap, KindCrossOriginFrame, "654321")
	require.NoError(t, err)
	require.Len(t, cap.frameScripts, 1)
	assert.Contains(t, cap.frameScripts[0], `"654321"`)
}

func TestBuildScripts_EscapeValues(t *testing.T) {
	// Values land in the script via JSON encoding, so quotes and
	// backslashes cannot break out of the string literal.
	script := buildCredentialFillScript(docTop, `user"with'quotes`, `pa\ss`)
	assert.Contains(t, script, `"user\"with'quotes"`)
	assert.Contains(t, script, `"pa\\ss"`)
	assert.False(t, strings.Contains(script, "pa\\ss\"+"), "no concatenation artifacts")
}

func TestParseKind(t *testing.T) {
	kind, err := parseKind("main")
	require.NoError(t, err)
	assert.Equal(t, KindMain, kind)

	_, err = parseKind("bogus")
	assert.Error(t, err)

	_, err = parseKind(7)
	assert.Error(t, err)
}

func TestFillOutcome_UnknownValue(t *testing.T) {
	err := fillOutcome("maybe")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrFormMissing))
}
