package pipeline

import (
	"context"

	"github.com/rs/zerolog/log"

	"gitlab.com/navguard/navguard"
)

// MIME types opened by capabilities external to the engine
var externallyHandledMIMEs = map[string]bool{
	"text/calendar":                    true,
	"text/x-vcalendar":                 true,
	"text/vcard":                       true,
	"text/x-vcard":                     true,
	"application/x-apple-aspen-config": true,
}

const passbookMIME = "application/vnd.apple.pkpass"

// SetClaimers installs the external response handlers (calendar, passbook,
// generic download detector) consulted in order
func (p *Pipeline) SetClaimers(claimers ...navguard.ResponseClaimer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.claimers = claimers
}

// DecideResponse arbitrates a response by MIME: externally handled payloads
// cancel the engine load, passbook-like payloads download, a claimer may
// take the response, and everything else is allowed - even MIME the engine
// cannot display, which it then renders best effort. That graceful
// degradation default is deliberate.
func (p *Pipeline) DecideResponse(ctx context.Context, resp *navguard.Response) navguard.Decision {
	if resp == nil || resp.URL == nil {
		return navguard.Cancelled()
	}

	// match against the recorded pending request and apply any
	// response-side scheme upgrade to the tracked frame state
	p.mu.Lock()
	_, wasPending := p.pending[resp.URL.String()]
	delete(p.pending, resp.URL.String())
	page := p.page
	claimers := p.claimers
	search := p.search
	p.mu.Unlock()

	if page != nil {
		if page.UpgradeFrameURL(resp.URL, resp.IsMainFrame) {
			log.Debug().Str("url", resp.URL.String()).Bool("main", resp.IsMainFrame).Msg("frame URL upgraded")
		}
	}

	if p.IsCertInvalid(resp.URL.Hostname()) {
		// invalid certificate is a distinct terminal state shown at
		// commit; the response itself still cancels here
		log.Warn().Str("host", resp.URL.Hostname()).Msg("response from host with failed certificate pinning")
		return navguard.Cancelled()
	}

	if externallyHandledMIMEs[resp.MIMEType] && resp.IsMainFrame && !resp.PendingDownload {
		p.claimExternal(ctx, resp, claimers)
		if resp.OriginIsEmptyTab {
			p.tab.CloseIfEmpty()
		}
		return navguard.Cancelled()
	}

	if resp.MIMEType == passbookMIME {
		return navguard.Downloaded()
	}

	for _, c := range claimers {
		if c.CanClaim(resp) {
			log.Debug().Str("claimer", c.Name()).Str("url", resp.URL.String()).Msg("response claimed for download")
			return navguard.Downloaded()
		}
	}

	if wasPending && search != nil {
		// inline firing point: results may already have beaten the load
		p.deliverBackup(ctx, search)
	}

	// allowed regardless of CanShowInWebView; the engine displays what it
	// can and error-pages the rest
	return navguard.Allowed()
}

func (p *Pipeline) claimExternal(ctx context.Context, resp *navguard.Response, claimers []navguard.ResponseClaimer) {
	for _, c := range claimers {
		if c.CanClaim(resp) {
			if err := c.Claim(ctx, resp); err != nil {
				log.Warn().Err(err).Str("claimer", c.Name()).Msg("external claim failed")
			}
			return
		}
	}
	log.Warn().Str("mime", resp.MIMEType).Msg("externally handled MIME with no claimer installed")
}
