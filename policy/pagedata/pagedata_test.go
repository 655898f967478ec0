package pagedata_test

import (
	"context"
	"net/url"
	"testing"

	"gitlab.com/navguard/mock"
	"gitlab.com/navguard/navguard"
	"gitlab.com/navguard/policy/pagedata"
)

func mustParse(t *testing.T, raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("bad url %s: %s", raw, err)
	}
	return u
}

func TestUpgradeFrameURLIdempotent(t *testing.T) {
	p := pagedata.New(mustParse(t, "http://example.com/"), mock.MakeMockAdblockService())

	upgraded := mustParse(t, "https://example.com/")
	if !p.UpgradeFrameURL(upgraded, true) {
		t.Fatal("first upgrade must report a change")
	}
	if p.UpgradeFrameURL(upgraded, true) {
		t.Fatal("second identical upgrade must be a no-op")
	}
	if p.MainFrameURL().Scheme != "https" {
		t.Fatal("main frame URL was not replaced")
	}
}

func TestUpgradeSubframeReplacesDowngraded(t *testing.T) {
	p := pagedata.New(mustParse(t, "https://example.com/"), mock.MakeMockAdblockService())

	plain := mustParse(t, "http://embed.example.net/widget")
	p.ObserveRequest(plain, false)
	if n := len(p.SubFrameURLs()); n != 1 {
		t.Fatalf("expected 1 tracked sub frame, got %d", n)
	}

	secure := mustParse(t, "https://embed.example.net/widget")
	if !p.UpgradeFrameURL(secure, false) {
		t.Fatal("upgrade of a tracked sub frame must report a change")
	}
	frames := p.SubFrameURLs()
	if len(frames) != 1 {
		t.Fatalf("downgraded counterpart must be removed, have %d frames", len(frames))
	}
	if frames[0].Scheme != "https" {
		t.Fatal("tracked frame should be the https URL")
	}
	if p.UpgradeFrameURL(secure, false) {
		t.Fatal("repeated sub frame upgrade must be a no-op")
	}
}

func TestSubframeNeverShadowsMainFrame(t *testing.T) {
	main := mustParse(t, "https://example.com/")
	p := pagedata.New(main, mock.MakeMockAdblockService())
	p.ObserveRequest(mustParse(t, "https://example.com/"), false)
	if len(p.SubFrameURLs()) != 0 {
		t.Fatal("sub frame set must never contain the main frame URL")
	}
}

func TestMainFrameUpgradeEvictsTrackedSubframe(t *testing.T) {
	p := pagedata.New(mustParse(t, "http://example.com/"), mock.MakeMockAdblockService())

	// the https form was observed as a sub frame before the main frame
	// upgraded to it
	secure := mustParse(t, "https://example.com/")
	p.ObserveRequest(secure, false)
	if len(p.SubFrameURLs()) != 1 {
		t.Fatal("setup: sub frame was not tracked")
	}

	if !p.UpgradeFrameURL(secure, true) {
		t.Fatal("main frame upgrade must report a change")
	}
	if p.MainFrameURL().String() != secure.String() {
		t.Fatal("main frame URL was not replaced")
	}
	for _, u := range p.SubFrameURLs() {
		if u.String() == secure.String() {
			t.Fatal("sub frame set must never contain the current main frame URL")
		}
	}
}

func TestDesiredScriptsBaseSet(t *testing.T) {
	// main frame http://example.com, adblock shield up, engine returns
	// scriptX for the main frame
	engine := mock.MakeMockAdblockService()
	engine.MatchScriptsFn = func(frameURL *url.URL, isMainFrame bool, domain *navguard.DomainSnapshot) navguard.ScriptSet {
		if isMainFrame {
			return navguard.NewScriptSet(navguard.ScriptDescriptor{Name: "scriptX"})
		}
		return navguard.ScriptSet{}
	}
	p := pagedata.New(mustParse(t, "http://example.com"), engine)

	domain := &navguard.DomainSnapshot{
		Host:    "example.com",
		Domain:  "example.com",
		Shields: map[navguard.Shield]bool{navguard.ShieldAdblockAndTp: true},
	}
	got := p.DesiredScripts(context.Background(), domain)

	for _, want := range []string{"session_liveness", "global_privacy_control", "scriptX"} {
		if !got.Contains(want) {
			t.Fatalf("desired set missing %s", want)
		}
	}
}

func TestDesiredScriptsFarblingGate(t *testing.T) {
	p := pagedata.New(mustParse(t, "https://example.com"), mock.MakeMockAdblockService())

	off := &navguard.DomainSnapshot{Domain: "example.com", Shields: map[navguard.Shield]bool{}}
	if got := p.DesiredScripts(context.Background(), off); got.Contains("farbling_lib") {
		t.Fatal("farbling must not appear with fp protection off")
	}

	on := &navguard.DomainSnapshot{
		Domain:  "example.com",
		Shields: map[navguard.Shield]bool{navguard.ShieldFpProtection: true},
	}
	got := p.DesiredScripts(context.Background(), on)
	if !got.Contains("farbling_lib") {
		t.Fatal("farbling dependency library missing")
	}
	if !got.Contains("farbling_protection/example.com") {
		t.Fatal("seeded farbling descriptor missing")
	}
}

func TestDesiredScriptsMonotonic(t *testing.T) {
	engine := mock.MakeMockAdblockService()
	engine.MatchScriptsFn = func(frameURL *url.URL, isMainFrame bool, domain *navguard.DomainSnapshot) navguard.ScriptSet {
		return navguard.NewScriptSet(navguard.ScriptDescriptor{Name: "engine/" + frameURL.Host})
	}
	p := pagedata.New(mustParse(t, "https://example.com"), engine)
	domain := &navguard.DomainSnapshot{Domain: "example.com"}

	before := p.DesiredScripts(context.Background(), domain)
	p.ObserveRequest(mustParse(t, "https://embed.example.net/widget"), false)
	after := p.DesiredScripts(context.Background(), domain)

	for name := range before {
		if !after.Contains(name) {
			t.Fatalf("adding a sub frame dropped %s from the desired set", name)
		}
	}
	if !after.Contains("engine/embed.example.net") {
		t.Fatal("new sub frame's engine script missing")
	}
}

func TestDomainCompatSingleMatch(t *testing.T) {
	p := pagedata.New(mustParse(t, "https://www.youtube.com/watch"), mock.MakeMockAdblockService())

	// gated on the adblock shield
	off := &navguard.DomainSnapshot{Domain: "youtube.com", Shields: map[navguard.Shield]bool{}}
	if got := p.DesiredScripts(context.Background(), off); got.Contains("compat/youtube_quality") {
		t.Fatal("compat script must honor its required shield")
	}

	on := &navguard.DomainSnapshot{
		Domain:  "youtube.com",
		Shields: map[navguard.Shield]bool{navguard.ShieldAdblockAndTp: true},
	}
	if got := p.DesiredScripts(context.Background(), on); !got.Contains("compat/youtube_quality") {
		t.Fatal("compat script missing with shield enabled")
	}
}
