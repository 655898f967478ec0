package pagedata

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"gitlab.com/navguard/navguard"
)

// PageData tracks per-navigation-session frame state for one tab: the main
// frame URL, every observed sub-frame URL and the shield snapshot resolved
// for the main frame. Writes are serialized behind the mutex; script
// computation copies frame state under the lock then fans out lock-free.
type PageData struct {
	mu           sync.Mutex
	mainFrameURL *url.URL
	subFrames    map[string]*url.URL
	engine       navguard.AdblockService
}

// New session rooted at the main frame URL
func New(mainFrameURL *url.URL, engine navguard.AdblockService) *PageData {
	return &PageData{
		mainFrameURL: mainFrameURL,
		subFrames:    make(map[string]*url.URL),
		engine:       engine,
	}
}

// MainFrameURL returns the current top-level document URL
func (p *PageData) MainFrameURL() *url.URL {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mainFrameURL
}

// ObserveRequest records a sub-frame resource request. Main-frame requests
// are ignored here; the main frame is only replaced via UpgradeFrameURL or
// a new session.
func (p *PageData) ObserveRequest(u *url.URL, isMainFrame bool) {
	if isMainFrame || u == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.mainFrameURL != nil && u.String() == p.mainFrameURL.String() {
		return
	}
	p.subFrames[u.String()] = u
}

// UpgradeFrameURL applies a response-side URL change (typically an
// http->https upgrade) without treating the frame as new. Returns true when
// state changed; repeated identical upgrades are no-ops.
func (p *PageData) UpgradeFrameURL(responseURL *url.URL, isMainFrame bool) bool {
	if responseURL == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if isMainFrame {
		if p.mainFrameURL != nil && responseURL.String() == p.mainFrameURL.String() {
			return false
		}
		p.mainFrameURL = responseURL
		// the new main frame URL may have been tracked as a sub frame
		// before the upgrade; the sub frame set never holds the main frame
		delete(p.subFrames, responseURL.String())
		return true
	}

	key := responseURL.String()
	if _, ok := p.subFrames[key]; ok {
		return false
	}
	if downgraded := downgradedCounterpart(responseURL); downgraded != "" {
		delete(p.subFrames, downgraded)
	}
	p.subFrames[key] = responseURL
	return true
}

// downgradedCounterpart returns the http form of an https URL, or empty
func downgradedCounterpart(u *url.URL) string {
	if u.Scheme != "https" {
		return ""
	}
	plain := *u
	plain.Scheme = "http"
	return plain.String()
}

// SubFrameURLs copies the tracked sub-frame set
func (p *PageData) SubFrameURLs() []*url.URL {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*url.URL, 0, len(p.subFrames))
	for _, u := range p.subFrames {
		out = append(out, u)
	}
	return out
}

// DesiredScripts computes the full script set the session requires right
// now: the always-on session descriptors, shield-gated fingerprint
// protection keyed by the main frame's registrable domain, at most one
// domain compatibility descriptor, and the engine-supplied descriptors for
// the main frame and every tracked sub-frame. Engine lookups per frame are
// independent and run concurrently; the union merge makes the result
// independent of completion order.
func (p *PageData) DesiredScripts(ctx context.Context, domain *navguard.DomainSnapshot) navguard.ScriptSet {
	p.mu.Lock()
	main := p.mainFrameURL
	frames := make([]*url.URL, 0, len(p.subFrames))
	for _, u := range p.subFrames {
		frames = append(frames, u)
	}
	p.mu.Unlock()

	desired := navguard.NewScriptSet(SessionLivenessScript(), GlobalPrivacyControlScript())

	if main != nil && domain.IsShieldEnabled(navguard.ShieldFpProtection) {
		for _, d := range FarblingScripts(navguard.RegistrableDomain(main)) {
			desired.Add(d)
		}
	}

	if main != nil {
		if d, ok := domainCompatScript(main, domain); ok {
			desired.Add(d)
		}
	}

	var mu sync.Mutex
	g, _ := errgroup.WithContext(ctx)

	merge := func(s navguard.ScriptSet) {
		mu.Lock()
		desired = desired.Union(s)
		mu.Unlock()
	}

	if main != nil {
		mainURL := main
		g.Go(func() error {
			merge(p.engine.MatchScripts(mainURL, true, domain))
			return nil
		})
	}
	for _, f := range frames {
		frame := f
		g.Go(func() error {
			merge(p.engine.MatchScripts(frame, false, domain))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Warn().Err(err).Msg("engine script lookup failed")
	}
	return desired
}

// SessionLivenessScript keeps the page's session handle alive so badge and
// stat reads have something to talk to. Always injected.
func SessionLivenessScript() navguard.ScriptDescriptor {
	return navguard.ScriptDescriptor{
		Name:   "session_liveness",
		Source: "window.__pageSessionAlive = true;",
		World:  navguard.WorldIsolated,
		Scope:  navguard.AllFrames,
		When:   navguard.DocumentStart,
		Order:  0,
	}
}

// GlobalPrivacyControlScript advertises GPC to the page. Always injected.
func GlobalPrivacyControlScript() navguard.ScriptDescriptor {
	return navguard.ScriptDescriptor{
		Name:   "global_privacy_control",
		Source: "Object.defineProperty(navigator, 'globalPrivacyControl', {value: true, enumerable: true});",
		World:  navguard.WorldPage,
		Scope:  navguard.AllFrames,
		When:   navguard.DocumentStart,
		Order:  1,
	}
}

// FarblingScripts returns the fingerprint-protection pair for a registrable
// domain: the crypto dependency library first, then the seeded farbling
// script. The seed is deterministic per domain so a site sees stable noise
// across loads.
func FarblingScripts(domain string) []navguard.ScriptDescriptor {
	seed := md5.Sum([]byte(domain))
	return []navguard.ScriptDescriptor{
		{
			Name:   "farbling_lib",
			Source: "window.__farblingLibLoaded = true;",
			World:  navguard.WorldPage,
			Scope:  navguard.AllFrames,
			When:   navguard.DocumentStart,
			Order:  10,
		},
		{
			Name:   "farbling_protection/" + domain,
			Source: fmt.Sprintf("window.__farble(%q);", hex.EncodeToString(seed[:])),
			World:  navguard.WorldPage,
			Scope:  navguard.AllFrames,
			When:   navguard.DocumentStart,
			Order:  11,
		},
	}
}

// domainCompat maps host suffixes to exactly one compatibility descriptor,
// optionally gated by a shield that must be enabled for the domain
type domainCompat struct {
	hostSuffix     string
	requiredShield navguard.Shield // zero means unconditional
	descriptor     navguard.ScriptDescriptor
}

var domainCompatTable = []domainCompat{
	{
		hostSuffix:     "youtube.com",
		requiredShield: navguard.ShieldAdblockAndTp,
		descriptor: navguard.ScriptDescriptor{
			Name:   "compat/youtube_quality",
			Source: "window.__preferHDPlayback = true;",
			World:  navguard.WorldPage,
			Scope:  navguard.MainFrameOnly,
			When:   navguard.DocumentEnd,
			Order:  20,
		},
	},
	{
		hostSuffix: "archive.org",
		descriptor: navguard.ScriptDescriptor{
			Name:   "compat/reader_fixup",
			Source: "window.__readerCompat = true;",
			World:  navguard.WorldPage,
			Scope:  navguard.MainFrameOnly,
			When:   navguard.DocumentEnd,
			Order:  21,
		},
	},
}

// domainCompatScript picks the single compatibility descriptor matching the
// main frame host, honoring its required shield
func domainCompatScript(main *url.URL, domain *navguard.DomainSnapshot) (navguard.ScriptDescriptor, bool) {
	host := main.Hostname()
	for _, c := range domainCompatTable {
		if host != c.hostSuffix && !strings.HasSuffix(host, "."+c.hostSuffix) {
			continue
		}
		if c.requiredShield != 0 && !domain.IsShieldEnabled(c.requiredShield) {
			return navguard.ScriptDescriptor{}, false
		}
		return c.descriptor, true
	}
	return navguard.ScriptDescriptor{}, false
}
