package scripts

import (
	"sort"
	"sync"

	"github.com/gobuffalo/packr/v2"
	"github.com/rs/zerolog/log"

	"gitlab.com/navguard/navguard"
)

// staticSlot is one of the eight injection-time x frame-scope x world
// combinations, each an independent slot with its own bundled source
type staticSlot struct {
	name  string
	file  string
	world navguard.ScriptWorld
	scope navguard.FrameScope
	when  navguard.InjectionTime
}

var staticSlots = []staticSlot{
	{"static/start_main_page", "start_main_page.js", navguard.WorldPage, navguard.MainFrameOnly, navguard.DocumentStart},
	{"static/start_main_isolated", "start_main_isolated.js", navguard.WorldIsolated, navguard.MainFrameOnly, navguard.DocumentStart},
	{"static/start_all_page", "start_all_page.js", navguard.WorldPage, navguard.AllFrames, navguard.DocumentStart},
	{"static/start_all_isolated", "start_all_isolated.js", navguard.WorldIsolated, navguard.AllFrames, navguard.DocumentStart},
	{"static/end_main_page", "end_main_page.js", navguard.WorldPage, navguard.MainFrameOnly, navguard.DocumentEnd},
	{"static/end_main_isolated", "end_main_isolated.js", navguard.WorldIsolated, navguard.MainFrameOnly, navguard.DocumentEnd},
	{"static/end_all_page", "end_all_page.js", navguard.WorldPage, navguard.AllFrames, navguard.DocumentEnd},
	{"static/end_all_isolated", "end_all_isolated.js", navguard.WorldIsolated, navguard.AllFrames, navguard.DocumentEnd},
}

// conditionalFiles maps each feature script to its bundled source
var conditionalFiles = map[navguard.FeatureScript]string{
	navguard.ScriptCookieBlocking:      "cookie_blocking.js",
	navguard.ScriptMediaBackgroundPlay: "media_background_play.js",
	navguard.ScriptNightMode:           "night_mode.js",
	navguard.ScriptDeAmp:               "de_amp.js",
	navguard.ScriptRequestBlocking:     "request_blocking.js",
	navguard.ScriptTrackerStats:        "tracker_stats.js",
}

// Registry holds the catalog of injectable scripts: the fixed bootstrap and
// static descriptors, the conditional table keyed by FeatureScript, and
// externally supplied custom descriptors with explicit ordering keys.
type Registry struct {
	box *packr.Box

	mu     sync.Mutex
	custom map[string]navguard.ScriptDescriptor
}

// NewRegistry over the bundled script sources
func NewRegistry() *Registry {
	return &Registry{
		box:    packr.New("contentscripts", "./js"),
		custom: make(map[string]navguard.ScriptDescriptor),
	}
}

// SetCustom replaces the set of user-supplied descriptors
func (r *Registry) SetCustom(descs []navguard.ScriptDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.custom = make(map[string]navguard.ScriptDescriptor, len(descs))
	for _, d := range descs {
		r.custom[d.Name] = d
	}
}

// load materializes a descriptor from a bundled source file. A missing
// source drops the descriptor with a warning and never aborts injection.
func (r *Registry) load(name, file string, world navguard.ScriptWorld, scope navguard.FrameScope, when navguard.InjectionTime, order int) (navguard.ScriptDescriptor, bool) {
	src, err := r.box.FindString(file)
	if err != nil {
		log.Warn().Err(err).Str("script", name).Str("file", file).Msg("bundled script source missing, dropping")
		return navguard.ScriptDescriptor{}, false
	}
	return navguard.ScriptDescriptor{
		Name:   name,
		Source: src,
		World:  world,
		Scope:  scope,
		When:   when,
		Order:  order,
	}, true
}

// Sync replaces the live script set for a frame context. The produced order
// is load-bearing: bootstrap first, then tracker-stats and request-blocking
// (they must observe outgoing requests before anything else reacts), then
// the static slots, the computed dynamic descriptors, the requested
// conditional features, and finally custom scripts ascending by their
// ordering key. Calling Sync twice with the same arguments yields an
// identical live set.
func (r *Registry) Sync(live navguard.FrameScripter, features navguard.FeatureSet, dynamic navguard.ScriptSet, custom []navguard.ScriptDescriptor) error {
	order := 0
	next := func() int { order++; return order }
	out := make([]navguard.ScriptDescriptor, 0, len(staticSlots)+len(dynamic)+len(features)+len(custom)+4)
	add := func(d navguard.ScriptDescriptor, ok bool) {
		if !ok {
			return
		}
		d.Order = next()
		out = append(out, d)
	}

	// bootstrap, fixed order, before anything else loads
	add(r.load("bootstrap", "bootstrap.js", navguard.WorldIsolated, navguard.AllFrames, navguard.DocumentStart, 0))
	add(r.load("frame_token", "frame_token.js", navguard.WorldIsolated, navguard.AllFrames, navguard.DocumentStart, 0))

	// request observers go ahead of every other static script
	if features[navguard.ScriptTrackerStats] {
		add(r.loadConditional(navguard.ScriptTrackerStats))
	}
	if features[navguard.ScriptRequestBlocking] {
		add(r.loadConditional(navguard.ScriptRequestBlocking))
	}

	for _, s := range staticSlots {
		add(r.load(s.name, s.file, s.world, s.scope, s.when, 0))
	}

	for _, d := range dynamic.Sorted() {
		add(d, true)
	}

	for _, key := range sortedFeatures(features) {
		if key == navguard.ScriptTrackerStats || key == navguard.ScriptRequestBlocking {
			continue // already injected ahead of the statics
		}
		add(r.loadConditional(key))
	}

	r.mu.Lock()
	userScripts := make([]navguard.ScriptDescriptor, 0, len(r.custom)+len(custom))
	for _, d := range r.custom {
		userScripts = append(userScripts, d)
	}
	r.mu.Unlock()
	userScripts = append(userScripts, custom...)
	sort.Slice(userScripts, func(i, j int) bool {
		if userScripts[i].Order != userScripts[j].Order {
			return userScripts[i].Order < userScripts[j].Order
		}
		return userScripts[i].Name < userScripts[j].Name
	})
	for _, d := range userScripts {
		add(d, true)
	}

	return live.SetScripts(out)
}

func (r *Registry) loadConditional(key navguard.FeatureScript) (navguard.ScriptDescriptor, bool) {
	file, ok := conditionalFiles[key]
	if !ok {
		log.Warn().Str("feature", key.String()).Msg("no bundled source registered for feature")
		return navguard.ScriptDescriptor{}, false
	}
	world := navguard.WorldPage
	if key == navguard.ScriptTrackerStats || key == navguard.ScriptRequestBlocking {
		world = navguard.WorldIsolated
	}
	return r.load("feature/"+key.String(), file, world, navguard.AllFrames, navguard.DocumentStart, 0)
}

func sortedFeatures(features navguard.FeatureSet) []navguard.FeatureScript {
	keys := make([]navguard.FeatureScript, 0, len(features))
	for k, on := range features {
		if on {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
