package pipeline

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"gitlab.com/navguard/navguard"
)

// suppressThreshold is how many confirmations a single origin gets before
// the prompt escalates with an always-block option
const suppressThreshold = 3

// Handoff runs the external-app confirmation protocol for one tab. All
// counter state is owned here, per tab, never global: the alert count, the
// suppressed flag and the origin domain the counters belong to.
type Handoff struct {
	launcher navguard.AppLauncher
	prompter navguard.Prompter
	tab      navguard.TabHost

	mu           sync.Mutex
	alertCount   int
	alertShowing bool
	suppressed   bool
	originDomain string
}

// NewHandoff for one tab
func NewHandoff(launcher navguard.AppLauncher, prompter navguard.Prompter, tab navguard.TabHost) *Handoff {
	return &Handoff{launcher: launcher, prompter: prompter, tab: tab}
}

// Attempt runs the confirmation protocol for an external-scheme candidate
// and reports whether the external target was actually opened. The user
// confirmation suspends this navigation only; other navigations continue.
func (h *Handoff) Attempt(ctx context.Context, req *navguard.Request) bool {
	// child frames only get a shot when the user directly tapped the link
	if !req.IsMainFrame && req.Cause != navguard.CauseLinkActivated {
		return false
	}
	if !h.launcher.CanOpen(req.URL) {
		return false
	}

	origin := navguard.RegistrableDomain(req.MainDocumentURL)
	if origin == "" {
		origin = navguard.RegistrableDomain(req.URL)
	}

	h.mu.Lock()
	if origin != h.originDomain {
		// counters live until the origin changes
		h.originDomain = origin
		h.alertCount = 0
		h.suppressed = false
	}
	if h.alertShowing || h.suppressed || !h.tab.IsVisible() {
		h.mu.Unlock()
		return false
	}
	h.alertCount++
	offerSuppress := h.alertCount > suppressThreshold
	h.alertShowing = true
	h.mu.Unlock()

	open, suppress := h.prompter.ConfirmExternalOpen(ctx, origin, offerSuppress)

	h.mu.Lock()
	h.alertShowing = false
	if suppress {
		h.suppressed = true
	}
	h.mu.Unlock()

	if !open {
		return false
	}
	opened := h.launcher.Open(ctx, req.URL)
	if !opened {
		log.Warn().Str("url", req.URL.String()).Msg("external application refused the open")
	}
	return opened
}

// Suppressed reports whether the user opted out of prompts for the current
// origin
func (h *Handoff) Suppressed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.suppressed
}
