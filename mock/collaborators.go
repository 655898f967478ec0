package mock

import (
	"context"
	"net/url"

	"gitlab.com/navguard/navguard"
)

type Debouncer struct {
	ChainFn     func(u *url.URL) []navguard.RedirectChainEntry
	ChainCalled bool
}

func (d *Debouncer) Chain(u *url.URL) []navguard.RedirectChainEntry {
	d.ChainCalled = true
	return d.ChainFn(u)
}

// MakeMockDebouncer knows no chains
func MakeMockDebouncer() *Debouncer {
	d := &Debouncer{}
	d.ChainFn = func(u *url.URL) []navguard.RedirectChainEntry {
		return nil
	}
	return d
}

type ShieldStore struct {
	IsShieldExpectedFn     func(u *url.URL, shield navguard.Shield, considerAllShieldsOption bool) bool
	IsShieldExpectedCalled bool

	SnapshotFn     func(u *url.URL) *navguard.DomainSnapshot
	SnapshotCalled bool
}

func (s *ShieldStore) IsShieldExpected(u *url.URL, shield navguard.Shield, considerAllShieldsOption bool) bool {
	s.IsShieldExpectedCalled = true
	return s.IsShieldExpectedFn(u, shield, considerAllShieldsOption)
}

func (s *ShieldStore) Snapshot(u *url.URL) *navguard.DomainSnapshot {
	s.SnapshotCalled = true
	return s.SnapshotFn(u)
}

// MakeMockShieldStore has every shield up except no-script
func MakeMockShieldStore() *ShieldStore {
	s := &ShieldStore{}
	s.IsShieldExpectedFn = func(u *url.URL, shield navguard.Shield, considerAllShieldsOption bool) bool {
		return shield != navguard.ShieldNoScript && shield != navguard.ShieldAllOff
	}
	s.SnapshotFn = func(u *url.URL) *navguard.DomainSnapshot {
		return &navguard.DomainSnapshot{
			Host:   u.Hostname(),
			Domain: navguard.RegistrableDomain(u),
			Shields: map[navguard.Shield]bool{
				navguard.ShieldAdblockAndTp:   true,
				navguard.ShieldFpProtection:   true,
				navguard.ShieldCookieBlocking: true,
			},
		}
	}
	return s
}

type AppLauncher struct {
	CanOpenFn     func(u *url.URL) bool
	CanOpenCalled bool

	OpenFn     func(ctx context.Context, u *url.URL) bool
	OpenCalled bool
}

func (a *AppLauncher) CanOpen(u *url.URL) bool {
	a.CanOpenCalled = true
	return a.CanOpenFn(u)
}

func (a *AppLauncher) Open(ctx context.Context, u *url.URL) bool {
	a.OpenCalled = true
	return a.OpenFn(ctx, u)
}

// MakeMockAppLauncher opens everything successfully
func MakeMockAppLauncher() *AppLauncher {
	a := &AppLauncher{}
	a.CanOpenFn = func(u *url.URL) bool { return true }
	a.OpenFn = func(ctx context.Context, u *url.URL) bool { return true }
	return a
}

type Prompter struct {
	ConfirmExternalOpenFn     func(ctx context.Context, host string, offerSuppress bool) (bool, bool)
	ConfirmExternalOpenCalled bool

	ShowUnableToOpenFn     func(u *url.URL)
	ShowUnableToOpenCalled bool
}

func (p *Prompter) ConfirmExternalOpen(ctx context.Context, host string, offerSuppress bool) (bool, bool) {
	p.ConfirmExternalOpenCalled = true
	return p.ConfirmExternalOpenFn(ctx, host, offerSuppress)
}

func (p *Prompter) ShowUnableToOpen(u *url.URL) {
	p.ShowUnableToOpenCalled = true
	p.ShowUnableToOpenFn(u)
}

// MakeMockPrompter confirms every external open without suppression
func MakeMockPrompter() *Prompter {
	p := &Prompter{}
	p.ConfirmExternalOpenFn = func(ctx context.Context, host string, offerSuppress bool) (bool, bool) {
		return true, false
	}
	p.ShowUnableToOpenFn = func(u *url.URL) {}
	return p
}

type ResponseClaimer struct {
	NameFn     func() string
	NameCalled bool

	CanClaimFn     func(resp *navguard.Response) bool
	CanClaimCalled bool

	ClaimFn     func(ctx context.Context, resp *navguard.Response) error
	ClaimCalled bool
}

func (r *ResponseClaimer) Name() string {
	r.NameCalled = true
	return r.NameFn()
}

func (r *ResponseClaimer) CanClaim(resp *navguard.Response) bool {
	r.CanClaimCalled = true
	return r.CanClaimFn(resp)
}

func (r *ResponseClaimer) Claim(ctx context.Context, resp *navguard.Response) error {
	r.ClaimCalled = true
	return r.ClaimFn(ctx, resp)
}

// MakeMockResponseClaimer claims nothing
func MakeMockResponseClaimer() *ResponseClaimer {
	r := &ResponseClaimer{}
	r.NameFn = func() string { return "TestClaimer" }
	r.CanClaimFn = func(resp *navguard.Response) bool { return false }
	r.ClaimFn = func(ctx context.Context, resp *navguard.Response) error { return nil }
	return r
}

type TabHost struct {
	IDFn     func() string
	IDCalled bool

	IsVisibleFn     func() bool
	IsVisibleCalled bool

	LoadFn     func(req *navguard.Request)
	LoadCalled bool

	CloseIfEmptyFn     func()
	CloseIfEmptyCalled bool

	Loaded []*navguard.Request
}

func (tb *TabHost) ID() string {
	tb.IDCalled = true
	return tb.IDFn()
}

func (tb *TabHost) IsVisible() bool {
	tb.IsVisibleCalled = true
	return tb.IsVisibleFn()
}

func (tb *TabHost) Load(req *navguard.Request) {
	tb.LoadCalled = true
	tb.Loaded = append(tb.Loaded, req)
	tb.LoadFn(req)
}

func (tb *TabHost) CloseIfEmpty() {
	tb.CloseIfEmptyCalled = true
	tb.CloseIfEmptyFn()
}

// MakeMockTabHost is a visible foreground tab that records issued loads
func MakeMockTabHost() *TabHost {
	tb := &TabHost{}
	tb.IDFn = func() string { return "TAB-9999" }
	tb.IsVisibleFn = func() bool { return true }
	tb.LoadFn = func(req *navguard.Request) {}
	tb.CloseIfEmptyFn = func() {}
	return tb
}

type FrameScripter struct {
	SetScriptsFn     func(scripts []navguard.ScriptDescriptor) error
	SetScriptsCalled bool

	EvaluateFn     func(ctx context.Context, js string) (string, error)
	EvaluateCalled bool

	SetJavaScriptEnabledFn     func(enabled bool) error
	SetJavaScriptEnabledCalled bool

	Live      []navguard.ScriptDescriptor
	JSEnabled bool
}

func (f *FrameScripter) SetScripts(scripts []navguard.ScriptDescriptor) error {
	f.SetScriptsCalled = true
	f.Live = scripts
	return f.SetScriptsFn(scripts)
}

func (f *FrameScripter) Evaluate(ctx context.Context, js string) (string, error) {
	f.EvaluateCalled = true
	return f.EvaluateFn(ctx, js)
}

func (f *FrameScripter) SetJavaScriptEnabled(enabled bool) error {
	f.SetJavaScriptEnabledCalled = true
	f.JSEnabled = enabled
	return f.SetJavaScriptEnabledFn(enabled)
}

// MakeMockFrameScripter records the live set and succeeds at everything
func MakeMockFrameScripter() *FrameScripter {
	f := &FrameScripter{JSEnabled: true}
	f.SetScriptsFn = func(scripts []navguard.ScriptDescriptor) error { return nil }
	f.EvaluateFn = func(ctx context.Context, js string) (string, error) { return "undefined", nil }
	f.SetJavaScriptEnabledFn = func(enabled bool) error { return nil }
	return f
}
