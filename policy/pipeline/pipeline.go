package pipeline

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"gitlab.com/navguard/navguard"
	"gitlab.com/navguard/policy/pagedata"
	"gitlab.com/navguard/policy/resolver"
	"gitlab.com/navguard/policy/scripts"
)

// revive:exported
var (
	ErrEngineNotReady = errors.New("filter engine initialization interrupted")
)

// externalSchemes hand off to the system application handler
var externalSchemes = map[string]bool{
	"tel":            true,
	"sms":            true,
	"facetime":       true,
	"facetime-audio": true,
	"maps":           true,
	"mailto":         true,
	"itms-apps":      true,
	"itms-appss":     true,
	"itmss":          true,
}

// contentSchemes the engine renders directly
var contentSchemes = map[string]bool{
	"http":  true,
	"https": true,
	"data":  true,
	"blob":  true,
	"file":  true,
}

// builtinRedirects are the shipped main-frame site redirects (lightweight
// variants of heavy sites); configured rules take precedence
var builtinRedirects = map[string]string{
	"https://www.reddit.com/": "https://old.reddit.com/",
	"https://www.npr.org/":    "https://text.npr.org/",
}

// Pipeline is the per-tab policy engine deciding every navigation request
// and response. It implements navguard.Observer so it can be registered
// with the arbiter alongside other observers.
type Pipeline struct {
	cfg      *navguard.Config
	engine   navguard.AdblockService
	shields  navguard.ShieldStore
	resolver *resolver.Resolver
	registry *scripts.Registry
	prompter navguard.Prompter
	tab      navguard.TabHost
	frame    navguard.FrameScripter
	handoff  *Handoff

	mu           sync.Mutex
	page         *pagedata.PageData
	features     navguard.FeatureSet
	pending      map[string]*navguard.Request
	search       *BackupQuery
	claimers     []navguard.ResponseClaimer
	invalidCerts map[string]bool
}

// New pipeline for one tab
func New(cfg *navguard.Config, engine navguard.AdblockService, shields navguard.ShieldStore,
	res *resolver.Resolver, registry *scripts.Registry, launcher navguard.AppLauncher,
	prompter navguard.Prompter, tab navguard.TabHost, frame navguard.FrameScripter) *Pipeline {
	return &Pipeline{
		cfg:          cfg,
		engine:       engine,
		shields:      shields,
		resolver:     res,
		registry:     registry,
		prompter:     prompter,
		tab:          tab,
		frame:        frame,
		handoff:      NewHandoff(launcher, prompter, tab),
		features:     make(navguard.FeatureSet),
		pending:      make(map[string]*navguard.Request),
		invalidCerts: make(map[string]bool),
	}
}

// Name implements navguard.Observer
func (p *Pipeline) Name() string { return "DecisionPipeline" }

// DecideRequest runs the full decision tree for one navigation request.
// Suspension points (the readiness gate, the external-app confirmation)
// respect ctx; a cancelled decision is terminal for this request.
func (p *Pipeline) DecideRequest(ctx context.Context, req *navguard.Request) navguard.Decision {
	if req == nil || req.URL == nil || req.URL.Scheme == "" {
		// malformed input resolves locally to a cancel, never an error
		return navguard.Cancelled()
	}
	scheme := req.URL.Scheme

	// privileged internal URLs need authorization
	if scheme == p.cfg.Internal() {
		if req.AuthToken != "" {
			return navguard.Allowed()
		}
		if req.Cause != navguard.CauseBackForward || req.HasSourceFrame || req.CachePolicy == navguard.CacheDefault {
			log.Warn().Str("url", req.URL.String()).Msg("unauthorized internal URL from unprivileged context")
			return navguard.Cancelled()
		}
		return navguard.Allowed()
	}

	if scheme == "about" {
		return navguard.Allowed()
	}
	if scheme == "javascript" {
		return navguard.Cancelled()
	}

	// app deep links bypass the engine entirely
	if p.isAppLink(req) {
		p.handoff.launcher.Open(ctx, req.MainDocumentURL)
		return navguard.Cancelled()
	}

	// telephony, maps, store and mail go through the handoff protocol;
	// the engine can never render these so the original load always dies
	if externalSchemes[scheme] {
		p.handoff.Attempt(ctx, req)
		return navguard.Cancelled()
	}

	// static site redirect table for main-frame web requests
	if req.IsMainFrame && req.IsWebScheme() {
		if target, ok := p.redirectTarget(req.URL.String()); ok {
			if replacement := rebuildRequest(req, target); replacement != nil {
				p.tab.Load(replacement)
				return navguard.Cancelled()
			}
		}
	}

	// readiness gate: suspend until rule compilation completes
	select {
	case <-p.engine.Ready():
	case <-ctx.Done():
		log.Warn().Err(ctx.Err()).Msg(ErrEngineNotReady.Error())
		return navguard.Cancelled()
	}

	// session bookkeeping must precede every shield lookup below
	p.ensureSession(req)

	// internal redirect resolution (debounce + query stripping)
	if replacement := p.resolver.Resolve(req); replacement != nil {
		p.tab.Load(replacement)
		return navguard.Cancelled()
	}

	p.applyScriptSet(ctx, req)

	if req.IsMainFrame && p.isSearchHost(req) {
		if d, done := p.cooperateWithSearch(req); done {
			return d
		}
	}

	if contentSchemes[scheme] {
		return p.allowContent(req)
	}

	// anything left is an external-app candidate
	opened := p.handoff.Attempt(ctx, req)
	if !opened && req.Cause == navguard.CauseLinkActivated && req.UserGesture {
		p.prompter.ShowUnableToOpen(req.URL)
	}
	return navguard.Cancelled()
}

// ensureSession starts a new frame-state session when the request belongs
// to a different main document than the tracked one
func (p *Pipeline) ensureSession(req *navguard.Request) {
	mainDoc := req.MainDocumentURL
	if mainDoc == nil && req.IsMainFrame {
		mainDoc = req.URL
	}
	if mainDoc == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.page != nil && p.page.MainFrameURL() != nil && p.page.MainFrameURL().String() == mainDoc.String() {
		return
	}
	p.page = pagedata.New(mainDoc, p.engine)
	// a fresh main document invalidates any in-flight backup lookup
	if p.search != nil {
		p.search.Cancel()
		p.search = nil
	}
}

// applyScriptSet recomputes the coarse feature toggles for main-frame
// requests and pushes the full desired script set into the frame
func (p *Pipeline) applyScriptSet(ctx context.Context, req *navguard.Request) {
	p.mu.Lock()
	page := p.page
	p.mu.Unlock()
	if page == nil {
		return
	}

	domain := p.shields.Snapshot(page.MainFrameURL())

	if req.IsMainFrame {
		p.mu.Lock()
		p.features.Toggle(navguard.ScriptDeAmp, p.cfg.FlagEnabled(navguard.FlagDeAmp))
		p.features.Toggle(navguard.ScriptRequestBlocking, domain.IsShieldEnabled(navguard.ShieldAdblockAndTp))
		p.features.Toggle(navguard.ScriptTrackerStats, domain.IsShieldEnabled(navguard.ShieldAdblockAndTp))
		p.features.Toggle(navguard.ScriptCookieBlocking, domain.IsShieldEnabled(navguard.ShieldCookieBlocking))
		p.mu.Unlock()
	} else {
		page.ObserveRequest(req.URL, false)
	}

	dynamic := page.DesiredScripts(ctx, domain)

	p.mu.Lock()
	features := make(navguard.FeatureSet, len(p.features))
	for k, v := range p.features {
		features[k] = v
	}
	p.mu.Unlock()

	if err := p.registry.Sync(p.frame, features, dynamic, nil); err != nil {
		log.Warn().Err(err).Msg("script sync failed")
	}
}

// allowContent finishes a standard content-scheme load: UA selection,
// pending-request recording, domain rule preparation and the no-script
// toggle, then Allow.
func (p *Pipeline) allowContent(req *navguard.Request) navguard.Decision {
	prefs := make(navguard.PreferencePatch)

	if req.IsMainFrame {
		prefs[navguard.PrefDesktopMode] = p.wantsDesktopUA(req)

		p.mu.Lock()
		p.pending[req.URL.String()] = req
		p.mu.Unlock()
	}

	domain := p.shields.Snapshot(req.URL)
	p.engine.PrepareDomain(domain)

	jsEnabled := !p.shields.IsShieldExpected(req.URL, navguard.ShieldNoScript, true)
	prefs[navguard.PrefJavaScriptEnabled] = jsEnabled
	if err := p.frame.SetJavaScriptEnabled(jsEnabled); err != nil {
		log.Warn().Err(err).Msg("failed to toggle frame JS")
	}

	return navguard.AllowWithPrefs(prefs)
}

func (p *Pipeline) wantsDesktopUA(req *navguard.Request) bool {
	host := req.URL.Hostname()
	for _, h := range p.cfg.DesktopModeHosts {
		if h == host {
			return true
		}
	}
	return false
}

// UserAgentFor returns the configured UA string matching the desktop-mode
// choice made for this request, empty when the engine default should stand
func (p *Pipeline) UserAgentFor(req *navguard.Request) string {
	if !req.IsMainFrame {
		return ""
	}
	if p.wantsDesktopUA(req) {
		return p.cfg.DesktopUA
	}
	return p.cfg.MobileUA
}

func (p *Pipeline) isAppLink(req *navguard.Request) bool {
	if req.MainDocumentURL == nil {
		return false
	}
	host := req.MainDocumentURL.Hostname()
	for _, h := range p.cfg.AppLinkHosts {
		if h == host {
			return true
		}
	}
	return false
}

// redirectTarget consults the configured rules first, then the shipped
// table
func (p *Pipeline) redirectTarget(rawURL string) (string, bool) {
	if target, ok := p.cfg.RedirectRules[rawURL]; ok {
		return target, true
	}
	target, ok := builtinRedirects[rawURL]
	return target, ok
}

func (p *Pipeline) isSearchHost(req *navguard.Request) bool {
	host := req.URL.Hostname()
	for _, h := range p.cfg.SearchHosts {
		if h == host {
			return true
		}
	}
	return false
}

// cooperateWithSearch tags the request with the capability header when
// rewards participation allows it, or opens a fallback-query epoch for the
// load. Returns done=true when the original request must die in favor of a
// tagged re-issue.
func (p *Pipeline) cooperateWithSearch(req *navguard.Request) (navguard.Decision, bool) {
	if p.cfg.RewardsEnabled && p.cfg.FlagEnabled(navguard.FlagRewards) && req.Headers.Get(CapabilityHeader) == "" {
		tagged := req.Clone()
		tagged.Headers.Set(CapabilityHeader, "1")
		p.tab.Load(tagged)
		return navguard.Cancelled(), true
	}

	p.mu.Lock()
	if p.search != nil {
		p.search.Cancel()
	}
	p.search = NewBackupQuery(p.frame)
	p.mu.Unlock()
	return navguard.Decision{}, false
}

// CurrentBackupQuery exposes the live fallback-query epoch, nil outside a
// cooperating search load
func (p *Pipeline) CurrentBackupQuery() *BackupQuery {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.search
}

// PageLoadFinished is the on-demand firing point for backup delivery
func (p *Pipeline) PageLoadFinished(ctx context.Context) {
	p.mu.Lock()
	search := p.search
	p.mu.Unlock()
	p.deliverBackup(ctx, search)
}

// deliverBackup fires a delivery only when the query's generation token
// still matches the live epoch; a stale query never reaches the new page
func (p *Pipeline) deliverBackup(ctx context.Context, b *BackupQuery) {
	if b == nil {
		return
	}
	p.mu.Lock()
	current := p.search != nil && p.search.Epoch() == b.Epoch()
	p.mu.Unlock()
	if !current {
		return
	}
	b.Deliver(ctx)
}

// ObserveCertFailure marks a host's pinning failure; the invalid state is
// surfaced at response-commit time, it does not cancel the navigation here
func (p *Pipeline) ObserveCertFailure(host string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.invalidCerts[host] = true
}

// IsCertInvalid reports a previously observed pinning failure
func (p *Pipeline) IsCertInvalid(host string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.invalidCerts[host]
}

// PageData exposes the live session for diagnostics and badges
func (p *Pipeline) PageData() *pagedata.PageData {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.page
}

// rebuildRequest clones req onto a raw replacement URL string
func rebuildRequest(req *navguard.Request, raw string) *navguard.Request {
	u, err := req.URL.Parse(raw)
	if err != nil {
		log.Warn().Err(err).Str("target", raw).Msg("bad redirect rule target")
		return nil
	}
	return req.WithURL(u)
}
