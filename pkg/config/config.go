// Package config loads tabvault configuration from a YAML file. A missing
// file yields the defaults; a partial file overrides only the fields it
// names. Durations are written as integer milliseconds.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that YAML-decodes from integer milliseconds.
type Duration time.Duration

// UnmarshalYAML decodes an integer millisecond count.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var ms int64
	if err := value.Decode(&ms); err != nil {
		return fmt.Errorf("duration must be integer milliseconds: %w", err)
	}
	*d = Duration(time.Duration(ms) * time.Millisecond)
	return nil
}

// MarshalYAML encodes the duration back to integer milliseconds.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).Milliseconds(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the root configuration document.
type Config struct {
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
	Probe       ProbeConfig       `yaml:"probe"`
	AuthFlow    AuthFlowConfig    `yaml:"auth_flow"`
	Browser     BrowserConfig     `yaml:"browser"`
	Credentials CredentialsConfig `yaml:"credentials"`
}

// SchedulerConfig holds the global login gate and per-session suppression
// windows.
type SchedulerConfig struct {
	// MinInterval is the minimum spacing between two dispatch starts.
	MinInterval Duration `yaml:"min_interval"`

	// FormFillGrace is how long a session counts as awaiting its second
	// factor after a successful submit.
	FormFillGrace Duration `yaml:"form_fill_grace"`

	// RecentGiveupCooldown suppresses re-admission after a give-up.
	RecentGiveupCooldown Duration `yaml:"recent_giveup_cooldown"`

	// SameFlowReentryCooldown suppresses repeated requests for the same
	// auth flow while one is in progress.
	SameFlowReentryCooldown Duration `yaml:"same_flow_reentry_cooldown"`
}

// ProbeConfig bounds the form-locator retry loop inside one dispatch.
type ProbeConfig struct {
	// Budget is the maximum number of form probes per dispatch.
	Budget int `yaml:"budget"`

	// Interval is the wait between probes.
	Interval Duration `yaml:"interval"`

	// Followup2FADelay is the wait before the first post-submit probe for
	// a one-time-code challenge.
	Followup2FADelay Duration `yaml:"followup_2fa_delay"`
}

// AuthFlowConfig tunes the auth-page classifier.
type AuthFlowConfig struct {
	// VendorRoot is the registrable domain all auth hosts live under.
	VendorRoot string `yaml:"vendor_root"`

	// EnvironmentNames is the closed set of accepted environment tokens
	// for tenant derivation.
	EnvironmentNames []string `yaml:"environment_names"`
}

// BrowserConfig holds session defaults.
type BrowserConfig struct {
	Headless       bool `yaml:"headless"`
	ViewportWidth  int  `yaml:"viewport_width"`
	ViewportHeight int  `yaml:"viewport_height"`
	MaxSessions    int  `yaml:"max_sessions"`
}

// CredentialEntry is one identifier/secret pair, optionally with a TOTP
// seed for the second factor.
type CredentialEntry struct {
	Identifier string `yaml:"identifier"`
	Secret     string `yaml:"secret"`
	TOTPSeed   string `yaml:"totp_seed"`
}

// CredentialsConfig maps tenant keys to credentials, with a process-wide
// fallback entry used when no tenant-specific entry exists.
type CredentialsConfig struct {
	Fallback *CredentialEntry           `yaml:"fallback"`
	Tenants  map[string]CredentialEntry `yaml:"tenants"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Scheduler: SchedulerConfig{
			MinInterval:             Duration(30 * time.Second),
			FormFillGrace:           Duration(30 * time.Second),
			RecentGiveupCooldown:    Duration(10 * time.Second),
			SameFlowReentryCooldown: Duration(5 * time.Second),
		},
		Probe: ProbeConfig{
			Budget:           5,
			Interval:         Duration(time.Second),
			Followup2FADelay: Duration(2 * time.Second),
		},
		AuthFlow: AuthFlowConfig{
			VendorRoot:       "omnivendor.example",
			EnvironmentNames: []string{"edison", "staging", "store", "production"},
		},
		Browser: BrowserConfig{
			Headless:       true,
			ViewportWidth:  1280,
			ViewportHeight: 720,
			MaxSessions:    16,
		},
	}
}

// DefaultPath returns the conventional config location,
// ~/.tabvault/config.yaml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".tabvault", "config.yaml"), nil
}

// Load reads the configuration at path, layered over the defaults. A
// missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config in %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Scheduler.MinInterval <= 0 {
		return fmt.Errorf("scheduler.min_interval must be positive")
	}
	if c.Probe.Budget <= 0 {
		return fmt.Errorf("probe.budget must be positive")
	}
	if c.Probe.Interval <= 0 {
		return fmt.Errorf("probe.interval must be positive")
	}
	if c.AuthFlow.VendorRoot == "" {
		return fmt.Errorf("auth_flow.vendor_root must be set")
	}
	if len(c.AuthFlow.EnvironmentNames) == 0 {
		return fmt.Errorf("auth_flow.environment_names must not be empty")
	}
	return nil
}
