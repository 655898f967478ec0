package resolver

import (
	"net/url"

	"github.com/rs/zerolog/log"
	"gitlab.com/navguard/navguard"
)

// alwaysStrip are tracking parameters removed regardless of provenance
var alwaysStrip = []string{
	"fbclid",
	"gclid",
	"msclkid",
	"mkt_tok",
	"dclid",
	"oly_anon_id",
	"oly_enc_id",
	"vero_id",
	"wickedid",
	"yclid",
	"__s",
	"_hsenc",
	"mc_eid",
}

// crossSiteStrip are only removed when the initiator's registrable domain
// differs from the target's
var crossSiteStrip = []string{
	"igshid",
	"twclid",
	"ref_src",
	"s_cid",
}

// Resolver walks debounce chains and strips tracking query parameters to
// produce replacement requests. Pure with respect to its inputs; all state
// lives in the collaborators.
type Resolver struct {
	debouncer navguard.Debouncer
	flags     navguard.FlagSource
}

// New resolver over a chain supplier and the global feature flags
func New(debouncer navguard.Debouncer, flags navguard.FlagSource) *Resolver {
	return &Resolver{debouncer: debouncer, flags: flags}
}

// Resolve returns a replacement for req, or nil when neither debouncing nor
// query stripping changes anything. Only main-frame web-page requests are
// considered; malformed or non-web URLs short-circuit to nil.
func (r *Resolver) Resolve(req *navguard.Request) *navguard.Request {
	if req == nil || req.URL == nil || !req.IsMainFrame || !req.IsWebScheme() {
		return nil
	}

	target := req.URL
	debounced := false

	if hop := r.debounce(req); hop != nil {
		target = hop
		debounced = true
	}

	stripped := target
	if !req.IsInternalRedirect {
		stripped = r.stripQuery(target, req.InitiatorURL, req.RedirectSourceURL)
	}

	if !debounced && stripped.String() == req.URL.String() {
		return nil
	}

	replacement := req.WithURL(stripped)
	replacement.IsInternalRedirect = true
	if ref := req.Headers.Get("Referer"); ref != "" {
		replacement.Headers.Set("Referer", ref)
	}
	return replacement
}

// debounce walks the precomputed chain for req.URL, taking the last node
// whose required flags are all satisfied. Cross-site only: same-site
// candidates are never debounced.
func (r *Resolver) debounce(req *navguard.Request) *url.URL {
	if !r.flags.FlagEnabled(navguard.FlagDebounce) {
		return nil
	}
	if req.InitiatorURL != nil && navguard.SameRegistrableDomain(req.URL, req.InitiatorURL) {
		return nil
	}

	chain := r.debouncer.Chain(req.URL)
	if len(chain) == 0 {
		return nil
	}

	var last *url.URL
	for _, entry := range chain {
		if entry.Target == nil || !r.flagsSatisfied(entry.RequiredFlags) {
			break
		}
		last = entry.Target
	}
	if last == nil {
		return nil
	}
	if last.String() == req.URL.String() {
		return nil
	}
	log.Debug().Str("from", req.URL.String()).Str("to", last.String()).Msg("debounced redirect chain")
	return last
}

func (r *Resolver) flagsSatisfied(flags []navguard.FeatureFlag) bool {
	for _, f := range flags {
		if !r.flags.FlagEnabled(f) {
			return false
		}
	}
	return true
}

// stripQuery removes tracking parameters from u. Parameters in the
// cross-site list survive same-site navigations; provenance is judged by
// the initiator first, then the server-redirect source.
func (r *Resolver) stripQuery(u *url.URL, initiator, redirectSource *url.URL) *url.URL {
	if !r.flags.FlagEnabled(navguard.FlagQueryStripping) {
		return u
	}
	if u.RawQuery == "" {
		return u
	}

	provenance := initiator
	if provenance == nil {
		provenance = redirectSource
	}
	crossSite := provenance == nil || !navguard.SameRegistrableDomain(u, provenance)

	query := u.Query()
	changed := false
	for _, p := range alwaysStrip {
		if _, ok := query[p]; ok {
			query.Del(p)
			changed = true
		}
	}
	if crossSite {
		for _, p := range crossSiteStrip {
			if _, ok := query[p]; ok {
				query.Del(p)
				changed = true
			}
		}
	}
	if !changed {
		return u
	}

	cleaned := *u
	cleaned.RawQuery = query.Encode()
	return &cleaned
}
