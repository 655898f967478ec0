package navguard

import (
	"context"
	"net/url"
)

// FeatureFlag is the closed set of global feature preferences consulted by
// redirect resolution and search cooperation
type FeatureFlag int8

const (
	// FlagDebounce tracking-redirect short-circuiting
	FlagDebounce FeatureFlag = iota + 1
	// FlagDeAmp AMP canonical-URL rewriting
	FlagDeAmp
	// FlagQueryStripping tracking query-parameter removal
	FlagQueryStripping
	// FlagRewards rewards participation (search capability header)
	FlagRewards
)

func (f FeatureFlag) String() string {
	switch f {
	case FlagDebounce:
		return "debounce"
	case FlagDeAmp:
		return "de_amp"
	case FlagQueryStripping:
		return "query_stripping"
	case FlagRewards:
		return "rewards"
	}
	return "unknown"
}

// AdblockService is the compiled filter engine. Rule compilation happens
// elsewhere; this layer only consumes match results.
type AdblockService interface {
	// MatchScripts returns engine-supplied descriptors for one frame.
	// Implementations must be side-effect free; lookups for different
	// frames may run concurrently.
	MatchScripts(frameURL *url.URL, isMainFrame bool, domain *DomainSnapshot) ScriptSet
	// Ready is closed once rule compilation completes
	Ready() <-chan struct{}
	// PrepareDomain lets the engine page in rule lists for a domain ahead
	// of the first match query
	PrepareDomain(domain *DomainSnapshot)
}

// ShieldStore resolves per-domain shield toggles
type ShieldStore interface {
	IsShieldExpected(u *url.URL, shield Shield, considerAllShieldsOption bool) bool
	Snapshot(u *url.URL) *DomainSnapshot
}

// RedirectChainEntry is one hop of a precomputed tracking-redirect chain.
// Chains are finite and acyclic; bounding is the supplier's responsibility.
type RedirectChainEntry struct {
	Target        *url.URL
	RequiredFlags []FeatureFlag
}

// Debouncer supplies redirect chains keyed by source URL
type Debouncer interface {
	Chain(u *url.URL) []RedirectChainEntry
}

// FlagSource answers current values of the global feature flags
type FlagSource interface {
	FlagEnabled(f FeatureFlag) bool
}

// AppLauncher opens external applications for non-web schemes
type AppLauncher interface {
	CanOpen(u *url.URL) bool
	Open(ctx context.Context, u *url.URL) bool
}

// Prompter is the only user-visible surface of this layer: the external-app
// confirmation and the unable-to-open error
type Prompter interface {
	// ConfirmExternalOpen blocks (cooperatively) until the user answers.
	// offerSuppress adds an always-block option; suppress reports whether
	// the user took it.
	ConfirmExternalOpen(ctx context.Context, host string, offerSuppress bool) (open bool, suppress bool)
	ShowUnableToOpen(u *url.URL)
}

// ResponseClaimer is an external capability (calendar, passbook, generic
// download detector) that may take a response away from the engine
type ResponseClaimer interface {
	Name() string
	CanClaim(resp *Response) bool
	Claim(ctx context.Context, resp *Response) error
}

// Credential for basic-auth and client-certificate challenges
type Credential struct {
	User   string
	Secret string
}

// CredentialStore resolves credential challenges. Only the first registered
// observer whose store accepts a protection space handles the challenge.
type CredentialStore interface {
	CanAuthenticate(host string, port int, realm string) bool
	Authenticate(ctx context.Context, host string, port int, realm string) (*Credential, error)
}

// FrameScripter is the engine's per-frame injection surface
type FrameScripter interface {
	// SetScripts replaces the live script set wholesale
	SetScripts(scripts []ScriptDescriptor) error
	// Evaluate runs JS in the frame's isolated world and returns the
	// serialized result
	Evaluate(ctx context.Context, js string) (string, error)
	// SetJavaScriptEnabled toggles page-content JS for the frame
	SetJavaScriptEnabled(enabled bool) error
}

// TabHost is what the pipeline may ask of the tab owning a navigation
type TabHost interface {
	ID() string
	IsVisible() bool
	// Load issues a brand-new navigation, replacing a cancelled one
	Load(req *Request)
	// CloseIfEmpty cleans up a bare about:blank shell whose only load was
	// claimed externally
	CloseIfEmpty()
}
