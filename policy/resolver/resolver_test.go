package resolver_test

import (
	"net/http"
	"net/url"
	"testing"

	"gitlab.com/navguard/mock"
	"gitlab.com/navguard/navguard"
	"gitlab.com/navguard/policy/resolver"
)

func mainFrameReq(raw, initiator string) *navguard.Request {
	u, _ := url.Parse(raw)
	req := &navguard.Request{
		URL:         u,
		Method:      "GET",
		Headers:     make(http.Header),
		IsMainFrame: true,
		Cause:       navguard.CauseLinkActivated,
	}
	if initiator != "" {
		req.InitiatorURL, _ = url.Parse(initiator)
	}
	return req
}

func TestResolveDebounceChain(t *testing.T) {
	full, _ := url.Parse("https://news.example/full")
	debouncer := mock.MakeMockDebouncer()
	debouncer.ChainFn = func(u *url.URL) []navguard.RedirectChainEntry {
		if u.String() != "https://t.co/abc" {
			return nil
		}
		return []navguard.RedirectChainEntry{
			{Target: full, RequiredFlags: []navguard.FeatureFlag{navguard.FlagDeAmp}},
		}
	}

	req := mainFrameReq("https://t.co/abc", "https://search.example/")
	req.Headers.Set("Referer", "https://search.example/")

	// chain node requires de-amp which is off, so no replacement
	cfg := &navguard.Config{Flags: map[navguard.FeatureFlag]bool{navguard.FlagDebounce: true}}
	r := resolver.New(debouncer, cfg)
	if got := r.Resolve(req); got != nil {
		t.Fatalf("expected nil replacement with de-amp disabled, got %s", got.URL)
	}

	cfg.Flags[navguard.FlagDeAmp] = true
	got := r.Resolve(req)
	if got == nil {
		t.Fatal("expected a replacement with de-amp enabled")
	}
	if got.URL.String() != "https://news.example/full" {
		t.Fatalf("wrong target: %s", got.URL)
	}
	if !got.IsInternalRedirect {
		t.Fatal("replacement must be marked internally redirected")
	}
	if got.Headers.Get("Referer") != "https://search.example/" {
		t.Fatal("referer was not preserved onto the replacement")
	}
}

func TestResolveNoOp(t *testing.T) {
	cfg := &navguard.Config{Flags: map[navguard.FeatureFlag]bool{
		navguard.FlagDebounce:       true,
		navguard.FlagQueryStripping: true,
	}}
	r := resolver.New(mock.MakeMockDebouncer(), cfg)

	var inputs = []struct {
		name string
		req  *navguard.Request
	}{
		{"no tracking params", mainFrameReq("https://example.com/page?q=term", "https://other.net/")},
		{"sub frame", func() *navguard.Request {
			req := mainFrameReq("https://example.com/page?fbclid=x", "")
			req.IsMainFrame = false
			return req
		}()},
		{"non web scheme", mainFrameReq("mailto:someone@example.com", "")},
		{"already internal", func() *navguard.Request {
			req := mainFrameReq("https://example.com/page?fbclid=x", "")
			req.IsInternalRedirect = true
			return req
		}()},
	}
	for _, in := range inputs {
		if got := r.Resolve(in.req); got != nil {
			t.Fatalf("%s: expected nil, got %s", in.name, got.URL)
		}
	}
}

func TestResolveStripsTrackingParams(t *testing.T) {
	cfg := &navguard.Config{Flags: map[navguard.FeatureFlag]bool{navguard.FlagQueryStripping: true}}
	r := resolver.New(mock.MakeMockDebouncer(), cfg)

	req := mainFrameReq("https://example.com/page?fbclid=abc&q=term", "https://other.net/")
	got := r.Resolve(req)
	if got == nil {
		t.Fatal("expected a replacement")
	}
	if got.URL.Query().Get("fbclid") != "" {
		t.Fatal("fbclid should have been stripped")
	}
	if got.URL.Query().Get("q") != "term" {
		t.Fatal("non-tracking params must survive")
	}
}

func TestResolveCrossSiteOnlyParams(t *testing.T) {
	cfg := &navguard.Config{Flags: map[navguard.FeatureFlag]bool{navguard.FlagQueryStripping: true}}
	r := resolver.New(mock.MakeMockDebouncer(), cfg)

	// same-site: cross-site-only param survives
	same := mainFrameReq("https://example.com/page?igshid=1", "https://sub.example.com/")
	if got := r.Resolve(same); got != nil {
		t.Fatalf("same-site igshid should survive, got %s", got.URL)
	}

	// cross-site: stripped
	cross := mainFrameReq("https://example.com/page?igshid=1", "https://other.net/")
	got := r.Resolve(cross)
	if got == nil {
		t.Fatal("cross-site igshid should be stripped")
	}
	if got.URL.RawQuery != "" {
		t.Fatalf("expected empty query, got %q", got.URL.RawQuery)
	}
}
