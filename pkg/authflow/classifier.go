// Package authflow classifies URLs into authentication flows. Two URLs
// belong to the same flow iff they derive the same tenant key, which is
// the only notion of "same login" the rest of the core relies on.
package authflow

import (
	"net/url"
	"strings"

	"github.com/gobwas/glob"
	"golang.org/x/net/publicsuffix"
)

// Classifier decides whether a URL is a vendor login page and derives the
// tenant key that groups URLs of one auth flow. It is pure: no I/O, no
// state beyond the compiled configuration.
type Classifier struct {
	vendorRoot string
	envNames   map[string]struct{}
	authHosts  glob.Glob
	idwHosts   glob.Glob
}

// NewClassifier builds a classifier for one vendor root and a closed set
// of environment tokens.
func NewClassifier(vendorRoot string, environmentNames []string) *Classifier {
	envNames := make(map[string]struct{}, len(environmentNames))
	for _, name := range environmentNames {
		envNames[strings.ToLower(name)] = struct{}{}
	}
	return &Classifier{
		vendorRoot: strings.ToLower(vendorRoot),
		envNames:   envNames,
		authHosts:  glob.MustCompile("auth.**", '.'),
		idwHosts:   glob.MustCompile("idw.**", '.'),
	}
}

// VendorRoot returns the registrable domain the classifier accepts.
func (c *Classifier) VendorRoot() string {
	return c.vendorRoot
}

// IsAuthPage reports whether the URL identifies the vendor's login page:
// either an auth.* host under the vendor root, or a /login path on a host
// within the vendor root.
func (c *Classifier) IsAuthPage(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}

	if c.authHosts.Match(host) && c.hostWithinRoot(host) {
		return true
	}
	return strings.Contains(u.Path, "/login") && c.hostWithinRoot(host)
}

// TenantKey derives the stable identifier of the auth flow a URL belongs
// to. ok is false when the URL is not part of any recognized flow.
//
// Tie-breaks, in order: a full auth.* host is its own key; an idw.* host
// on a /login path is its own key; otherwise a recognized environment
// token anywhere in the host yields an env-scoped key.
func (c *Classifier) TenantKey(raw string) (key string, ok bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" || !c.hostWithinRoot(host) {
		return "", false
	}

	if c.authHosts.Match(host) {
		return host, true
	}
	if c.idwHosts.Match(host) && strings.HasPrefix(u.Path, "/login") {
		return host, true
	}
	if env, found := c.environmentToken(host); found {
		return "env:" + env, true
	}
	return "", false
}

// SameFlow reports whether two URLs belong to the same auth flow. Both
// must derive a tenant key.
func (c *Classifier) SameFlow(rawA, rawB string) bool {
	keyA, okA := c.TenantKey(rawA)
	keyB, okB := c.TenantKey(rawB)
	return okA && okB && keyA == keyB
}

// hostWithinRoot reports whether the host lives under the vendor root.
// The registrable domain is derived through the public suffix list, with
// a plain suffix check as fallback for hosts the list cannot split.
func (c *Classifier) hostWithinRoot(host string) bool {
	if host == c.vendorRoot || strings.HasSuffix(host, "."+c.vendorRoot) {
		return true
	}
	if etld1, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return etld1 == c.vendorRoot
	}
	return false
}

// environmentToken returns the first host label that is in the closed set
// of environment names.
func (c *Classifier) environmentToken(host string) (string, bool) {
	for _, label := range strings.Split(host, ".") {
		if _, ok := c.envNames[label]; ok {
			return label, true
		}
	}
	return "", false
}
