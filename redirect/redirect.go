// Package redirect implements the optional interstitial hop placed between
// a shared link and the real download URL. The interstitial page receives
// the final URL as a query parameter and is expected to forward the visitor
// there itself.
package redirect

import (
	"math/rand"
	"net/url"
)

// DefaultBase is used when the gate is enabled but no interstitial URLs
// were configured.
const DefaultBase = "https://www.florespick.in"

// A Gate wraps download URLs in an interstitial redirect. The zero value is
// a disabled gate.
type Gate struct {
	// Enabled turns wrapping on. When false, Wrap is the identity.
	Enabled bool

	// BaseURLs is the set of interstitial pages to choose from. One is
	// picked uniformly at random per call.
	BaseURLs []string
}

// Wrap returns the URL a client should be sent to for finalURL. When the
// gate is enabled that is an interstitial page with finalURL URL-encoded in
// its target parameter; otherwise it is finalURL unchanged.
func (g *Gate) Wrap(finalURL string) string {
	if !g.Enabled {
		return finalURL
	}
	base := DefaultBase
	if len(g.BaseURLs) > 0 {
		base = g.BaseURLs[rand.Intn(len(g.BaseURLs))]
	}
	return base + "?target=" + url.QueryEscape(finalURL)
}
