package authflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestClassifier() *Classifier {
	return NewClassifier("omnivendor.example", []string{"edison", "staging", "store", "production"})
}

func TestClassifier_IsAuthPage(t *testing.T) {
	c := newTestClassifier()

	tests := []struct {
		name string
		url  string
		want bool
	}{
		{
			name: "auth host under vendor root",
			url:  "https://auth.edison.omnivendor.example/login",
			want: true,
		},
		{
			name: "auth host without path",
			url:  "https://auth.staging.omnivendor.example/",
			want: true,
		},
		{
			name: "login path on vendor host",
			url:  "https://idw.store.omnivendor.example/login?next=%2Fhome",
			want: true,
		},
		{
			name: "login path deeper in the tree",
			url:  "https://portal.omnivendor.example/account/login",
			want: true,
		},
		{
			name: "auth host on foreign root",
			url:  "https://auth.edison.elsewhere.example/login",
			want: false,
		},
		{
			name: "vendor host without login path",
			url:  "https://dashboard.edison.omnivendor.example/reports",
			want: false,
		},
		{
			name: "foreign site entirely",
			url:  "https://news.example.com/",
			want: false,
		},
		{
			name: "not a url",
			url:  "::::",
			want: false,
		},
		{
			name: "empty string",
			url:  "",
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.IsAuthPage(tt.url))
		})
	}
}

func TestClassifier_TenantKey(t *testing.T) {
	c := newTestClassifier()

	tests := []struct {
		name    string
		url     string
		wantKey string
		wantOK  bool
	}{
		{
			name:    "auth host keys on itself",
			url:     "https://auth.edison.omnivendor.example/login",
			wantKey: "auth.edison.omnivendor.example",
			wantOK:  true,
		},
		{
			name:    "idw host with login path keys on itself",
			url:     "https://idw.staging.omnivendor.example/login",
			wantKey: "idw.staging.omnivendor.example",
			wantOK:  true,
		},
		{
			name:   "idw host without login path falls through to env",
			url:    "https://idw.omnivendor.example/dashboard",
			wantOK: false,
		},
		{
			name:    "environment token anywhere in host",
			url:     "https://sso.production.omnivendor.example/start",
			wantKey: "env:production",
			wantOK:  true,
		},
		{
			name:   "unknown environment",
			url:    "https://sso.sandbox.omnivendor.example/start",
			wantOK: false,
		},
		{
			name:   "foreign root never keys",
			url:    "https://auth.edison.elsewhere.example/login",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, ok := c.TenantKey(tt.url)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantKey, key)
			}
		})
	}
}

func TestClassifier_SameFlow(t *testing.T) {
	c := newTestClassifier()

	assert.True(t, c.SameFlow(
		"https://auth.edison.omnivendor.example/login",
		"https://auth.edison.omnivendor.example/login?step=2",
	))

	// Different environments are different flows.
	assert.False(t, c.SameFlow(
		"https://auth.edison.omnivendor.example/login",
		"https://auth.staging.omnivendor.example/login",
	))

	// A URL with no tenant key never matches, not even itself.
	assert.False(t, c.SameFlow(
		"https://news.example.com/",
		"https://news.example.com/",
	))
}

func TestClassifier_EnvironmentSetIsClosed(t *testing.T) {
	c := NewClassifier("omnivendor.example", []string{"edison"})

	_, ok := c.TenantKey("https://sso.staging.omnivendor.example/login")
	assert.False(t, ok, "staging removed from the set must not derive a key")

	key, ok := c.TenantKey("https://sso.edison.omnivendor.example/login")
	assert.True(t, ok)
	assert.Equal(t, "env:edison", key)
}
