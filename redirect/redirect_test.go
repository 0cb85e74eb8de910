package redirect

import (
	"net/url"
	"strings"
	"testing"
)

func TestDisabledIsIdentity(t *testing.T) {
	g := &Gate{}
	in := "http://example.com/dl/abc?code=123"
	if out := g.Wrap(in); out != in {
		t.Errorf("Wrap = %q, expected identity", out)
	}
}

func TestWrapUsesConfiguredBases(t *testing.T) {
	bases := []string{"https://one.example", "https://two.example"}
	g := &Gate{Enabled: true, BaseURLs: bases}
	final := "http://example.com/dl/abc?code=123"
	for i := 0; i < 20; i++ {
		out := g.Wrap(final)
		matched := false
		for _, b := range bases {
			if strings.HasPrefix(out, b+"?target=") {
				matched = true
			}
		}
		if !matched {
			t.Fatalf("Wrap = %q, not built on a configured base", out)
		}
		u, err := url.Parse(out)
		if err != nil {
			t.Fatal(err)
		}
		if u.Query().Get("target") != final {
			t.Errorf("target = %q", u.Query().Get("target"))
		}
	}
}

func TestWrapFallsBackToDefault(t *testing.T) {
	g := &Gate{Enabled: true}
	out := g.Wrap("http://example.com/x")
	if !strings.HasPrefix(out, DefaultBase+"?target=") {
		t.Errorf("Wrap = %q, expected default base", out)
	}
}
