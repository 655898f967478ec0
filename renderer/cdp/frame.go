// Package cdp adapts a Chrome DevTools tab to the engine interfaces the
// navigation layer consumes. The embedding application owns tab lifetime;
// this adapter only covers script injection, evaluation, the JS toggle and
// load re-issuance.
package cdp

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	uuid "github.com/satori/go.uuid"
	"github.com/wirepair/gcd"
	"github.com/wirepair/gcd/gcdapi"

	"gitlab.com/navguard/navguard"
)

// isolated world name used for scripts that must stay invisible to the page
const isolatedWorld = "navguard"

// Frame implements navguard.FrameScripter and navguard.TabHost over one
// devtools target
type Frame struct {
	id string
	t  *gcd.ChromeTarget

	mu       sync.Mutex
	injected []string // identifiers of live on-new-document scripts
	visible  bool
}

// NewFrame over a devtools target
func NewFrame(target *gcd.ChromeTarget) *Frame {
	return &Frame{
		id:      uuid.NewV4().String(),
		t:       target,
		visible: true,
	}
}

// ID of this tab
func (f *Frame) ID() string { return f.id }

// SetVisible records foreground state; the embedding app calls this on tab
// switches
func (f *Frame) SetVisible(visible bool) {
	f.mu.Lock()
	f.visible = visible
	f.mu.Unlock()
}

// IsVisible implements navguard.TabHost
func (f *Frame) IsVisible() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visible
}

// SetScripts replaces the live script set wholesale: every previously
// injected descriptor is removed, then the new set is installed in order.
// A descriptor the target rejects is dropped with a warning, never
// aborting the remaining installs.
func (f *Frame) SetScripts(scripts []navguard.ScriptDescriptor) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, id := range f.injected {
		params := &gcdapi.PageRemoveScriptToEvaluateOnNewDocumentParams{Identifier: id}
		if _, err := f.t.Page.RemoveScriptToEvaluateOnNewDocumentWithParams(params); err != nil {
			log.Warn().Err(err).Str("identifier", id).Msg("failed to remove script")
		}
	}
	f.injected = f.injected[:0]

	for _, d := range scripts {
		params := &gcdapi.PageAddScriptToEvaluateOnNewDocumentParams{Source: wrapSource(d)}
		if d.World == navguard.WorldIsolated {
			params.WorldName = isolatedWorld
		}
		id, err := f.t.Page.AddScriptToEvaluateOnNewDocumentWithParams(params)
		if err != nil {
			log.Warn().Err(err).Str("script", d.Name).Msg("target rejected script, dropping")
			continue
		}
		f.injected = append(f.injected, id)
	}
	return nil
}

// wrapSource scopes a descriptor's source to its frame scope and injection
// point; devtools installs on-new-document scripts in every frame at start,
// so the rest is guarded in the source itself.
func wrapSource(d navguard.ScriptDescriptor) string {
	src := d.Source
	if d.When == navguard.DocumentEnd {
		src = fmt.Sprintf("document.addEventListener('DOMContentLoaded', function() { %s });", src)
	}
	if d.Scope == navguard.MainFrameOnly {
		src = fmt.Sprintf("if (window === window.top) { %s }", src)
	}
	return src
}

// Evaluate runs JS in the frame and returns the serialized result
func (f *Frame) Evaluate(ctx context.Context, js string) (string, error) {
	params := &gcdapi.RuntimeEvaluateParams{
		Expression:    js,
		ObjectGroup:   "navguard",
		Silent:        true,
		ReturnByValue: true,
		Timeout:       1000,
	}
	r, exp, err := f.t.Runtime.EvaluateWithParams(params)
	if err != nil {
		return "", err
	}
	if exp != nil {
		log.Warn().Str("details", exp.Text).Msg("evaluation raised an exception")
	}
	return fmt.Sprintf("%v", r.Value), nil
}

// SetJavaScriptEnabled toggles page-content JS for the frame
func (f *Frame) SetJavaScriptEnabled(enabled bool) error {
	params := &gcdapi.EmulationSetScriptExecutionDisabledParams{Value: !enabled}
	_, err := f.t.Emulation.SetScriptExecutionDisabledWithParams(params)
	return err
}

// Load issues a brand-new navigation; implements navguard.TabHost
func (f *Frame) Load(req *navguard.Request) {
	params := &gcdapi.PageNavigateParams{Url: req.URL.String()}
	if ref := req.Headers.Get("Referer"); ref != "" {
		params.Referrer = ref
	}
	if _, _, errText, err := f.t.Page.NavigateWithParams(params); err != nil || errText != "" {
		log.Warn().Err(err).Str("errText", errText).Str("url", req.URL.String()).Msg("re-issued load failed")
	}
}

// CloseIfEmpty closes the tab if its only content is the blank shell
func (f *Frame) CloseIfEmpty() {
	_, entries, err := f.t.Page.GetNavigationHistory()
	if err != nil {
		log.Warn().Err(err).Msg("could not read navigation history")
		return
	}
	for _, e := range entries {
		if e.Url != "about:blank" {
			return
		}
	}
	if _, err := f.t.Page.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close empty tab")
	}
}
