// Package credentials supplies login secrets and time-step one-time
// passwords to the login core. The provider is a port: the core never
// knows where secrets come from.
package credentials

import (
	"errors"
	"fmt"
	"time"

	"github.com/pquerna/otp/totp"

	"github.com/tabvault/tabvault/pkg/config"
)

var (
	// ErrCredentialsMissing indicates no credentials exist for the tenant.
	ErrCredentialsMissing = errors.New("no credentials available")

	// ErrOTPUnavailable indicates a one-time code could not be issued.
	ErrOTPUnavailable = errors.New("one-time code unavailable")
)

// Credentials is one identifier/secret pair.
type Credentials struct {
	Identifier string
	Secret     string
	HasTOTP    bool
}

// Provider supplies credentials and one-time codes per tenant.
type Provider interface {
	// Credentials returns the login pair for a tenant key, or
	// ErrCredentialsMissing.
	Credentials(tenantKey string) (Credentials, error)

	// CurrentOTP returns a code valid for the time step containing now.
	// Codes must never be cached across steps.
	CurrentOTP(tenantKey string) (string, error)
}

// StaticProvider serves credentials from configuration: tenant-specific
// entries first, then a process-wide fallback.
type StaticProvider struct {
	fallback *config.CredentialEntry
	tenants  map[string]config.CredentialEntry
	now      func() time.Time
}

// NewStaticProvider builds a provider from the credentials section of the
// configuration.
func NewStaticProvider(cfg config.CredentialsConfig) *StaticProvider {
	return &StaticProvider{
		fallback: cfg.Fallback,
		tenants:  cfg.Tenants,
		now:      time.Now,
	}
}

// Credentials returns the entry for the tenant, or the fallback.
func (p *StaticProvider) Credentials(tenantKey string) (Credentials, error) {
	entry, err := p.entry(tenantKey)
	if err != nil {
		return Credentials{}, err
	}
	return Credentials{
		Identifier: entry.Identifier,
		Secret:     entry.Secret,
		HasTOTP:    entry.TOTPSeed != "",
	}, nil
}

// CurrentOTP issues a fresh code for the current time step from the
// tenant's seed.
func (p *StaticProvider) CurrentOTP(tenantKey string) (string, error) {
	entry, err := p.entry(tenantKey)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrOTPUnavailable, err)
	}
	if entry.TOTPSeed == "" {
		return "", fmt.Errorf("%w: tenant %q has no seed", ErrOTPUnavailable, tenantKey)
	}
	code, err := totp.GenerateCode(entry.TOTPSeed, p.now())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrOTPUnavailable, err)
	}
	return code, nil
}

func (p *StaticProvider) entry(tenantKey string) (config.CredentialEntry, error) {
	if entry, ok := p.tenants[tenantKey]; ok {
		return entry, nil
	}
	if p.fallback != nil {
		return *p.fallback, nil
	}
	return config.CredentialEntry{}, fmt.Errorf("tenant %q: %w", tenantKey, ErrCredentialsMissing)
}
