package credentials

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabvault/tabvault/pkg/config"
)

// rfcSeed is the RFC 6238 test secret ("12345678901234567890") in base32.
const rfcSeed = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"

func testProvider(at time.Time) *StaticProvider {
	p := NewStaticProvider(config.CredentialsConfig{
		Fallback: &config.CredentialEntry{
			Identifier: "fallback@acme.test",
			Secret:     "fallback-pw",
		},
		Tenants: map[string]config.CredentialEntry{
			"auth.omnivendor.example": {
				Identifier: "robot@acme.test",
				Secret:     "s3cret",
				TOTPSeed:   rfcSeed,
			},
			"env:staging": {
				Identifier: "staging@acme.test",
				Secret:     "staging-pw",
			},
		},
	})
	p.now = func() time.Time { return at }
	return p
}

func TestCredentials_TenantEntry(t *testing.T) {
	p := testProvider(time.Unix(59, 0))

	creds, err := p.Credentials("auth.omnivendor.example")
	require.NoError(t, err)
	assert.Equal(t, "robot@acme.test", creds.Identifier)
	assert.Equal(t, "s3cret", creds.Secret)
	assert.True(t, creds.HasTOTP)
}

func TestCredentials_FallbackEntry(t *testing.T) {
	p := testProvider(time.Unix(59, 0))

	creds, err := p.Credentials("env:production")
	require.NoError(t, err)
	assert.Equal(t, "fallback@acme.test", creds.Identifier)
	assert.False(t, creds.HasTOTP)
}

func TestCredentials_MissingWithoutFallback(t *testing.T) {
	p := NewStaticProvider(config.CredentialsConfig{})

	_, err := p.Credentials("env:edison")
	assert.ErrorIs(t, err, ErrCredentialsMissing)
}

func TestCurrentOTP_RFCVectors(t *testing.T) {
	// Vectors from RFC 6238 appendix B, truncated to six digits.
	tests := []struct {
		unix int64
		code string
	}{
		{unix: 59, code: "287082"},
		{unix: 1111111109, code: "081804"},
		{unix: 1234567890, code: "005924"},
	}

	for _, tt := range tests {
		p := testProvider(time.Unix(tt.unix, 0))
		code, err := p.CurrentOTP("auth.omnivendor.example")
		require.NoError(t, err)
		assert.Equal(t, tt.code, code, "at unix %d", tt.unix)
	}
}

func TestCurrentOTP_FreshPerTimeStep(t *testing.T) {
	early := testProvider(time.Unix(59, 0))
	late := testProvider(time.Unix(1111111109, 0))

	first, err := early.CurrentOTP("auth.omnivendor.example")
	require.NoError(t, err)
	second, err := late.CurrentOTP("auth.omnivendor.example")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestCurrentOTP_NoSeed(t *testing.T) {
	p := testProvider(time.Unix(59, 0))

	_, err := p.CurrentOTP("env:staging")
	assert.ErrorIs(t, err, ErrOTPUnavailable)
}

func TestCurrentOTP_UnknownTenantNoFallbackSeed(t *testing.T) {
	// The fallback entry carries no seed, so the code request fails even
	// though passwords would resolve.
	p := testProvider(time.Unix(59, 0))

	_, err := p.CurrentOTP("env:production")
	assert.ErrorIs(t, err, ErrOTPUnavailable)
}

func TestCurrentOTP_BadSeed(t *testing.T) {
	p := NewStaticProvider(config.CredentialsConfig{
		Tenants: map[string]config.CredentialEntry{
			"env:edison": {Secret: "pw", TOTPSeed: "not base32 at all 0189"},
		},
	})

	_, err := p.CurrentOTP("env:edison")
	assert.ErrorIs(t, err, ErrOTPUnavailable)
}
