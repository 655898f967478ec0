package navguard

import "sort"

// ScriptWorld is the JS execution context a script is injected into
type ScriptWorld int8

const (
	// WorldIsolated a content world invisible to page scripts
	WorldIsolated ScriptWorld = iota + 1
	// WorldPage shared with the page's own scripts
	WorldPage
)

// FrameScope restricts which frames a script is injected into
type FrameScope int8

const (
	// MainFrameOnly top-level document only
	MainFrameOnly FrameScope = iota + 1
	// AllFrames every frame including nested documents
	AllFrames
)

// InjectionTime is when during the document lifecycle a script runs
type InjectionTime int8

const (
	// DocumentStart before any page content loads
	DocumentStart InjectionTime = iota + 1
	// DocumentEnd after the DOM is parsed
	DocumentEnd
)

// ScriptDescriptor is a named, scoped, orderable unit of injectable page
// logic. Two descriptors are the same script iff their Name matches;
// dynamic descriptors bake their parameters into Name so a changed
// parameter produces a distinct descriptor.
type ScriptDescriptor struct {
	Name   string
	Source string
	World  ScriptWorld
	Scope  FrameScope
	When   InjectionTime
	Order  int
}

// ScriptSet is a set of descriptors keyed by name
type ScriptSet map[string]ScriptDescriptor

// NewScriptSet builds a set from descriptors
func NewScriptSet(descs ...ScriptDescriptor) ScriptSet {
	s := make(ScriptSet, len(descs))
	for _, d := range descs {
		s[d.Name] = d
	}
	return s
}

// Add a descriptor, overwriting a same-named entry
func (s ScriptSet) Add(d ScriptDescriptor) {
	s[d.Name] = d
}

// Contains reports whether the named descriptor is present
func (s ScriptSet) Contains(name string) bool {
	_, ok := s[name]
	return ok
}

// Union merges other into a new set. Union is commutative and associative
// so merged results are independent of completion order when per-frame
// lookups run concurrently.
func (s ScriptSet) Union(other ScriptSet) ScriptSet {
	merged := make(ScriptSet, len(s)+len(other))
	for k, v := range s {
		merged[k] = v
	}
	for k, v := range other {
		merged[k] = v
	}
	return merged
}

// Equal reports whether both sets hold the same descriptor names
func (s ScriptSet) Equal(other ScriptSet) bool {
	if len(s) != len(other) {
		return false
	}
	for k := range s {
		if _, ok := other[k]; !ok {
			return false
		}
	}
	return true
}

// Sorted returns descriptors ordered by Order then Name for deterministic
// injection
func (s ScriptSet) Sorted() []ScriptDescriptor {
	out := make([]ScriptDescriptor, 0, len(s))
	for _, d := range s {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// FeatureScript keys the registry's table of conditional descriptors
type FeatureScript int8

const (
	// ScriptCookieBlocking third-party cookie access denial
	ScriptCookieBlocking FeatureScript = iota + 1
	// ScriptMediaBackgroundPlay keeps media playing when backgrounded
	ScriptMediaBackgroundPlay
	// ScriptNightMode dark-mode CSS rewriting
	ScriptNightMode
	// ScriptDeAmp rewrites AMP pages back to their canonical URL
	ScriptDeAmp
	// ScriptRequestBlocking per-request block decisions inside the frame
	ScriptRequestBlocking
	// ScriptTrackerStats counts blocked trackers for the shields badge
	ScriptTrackerStats
)

func (f FeatureScript) String() string {
	switch f {
	case ScriptCookieBlocking:
		return "cookie_blocking"
	case ScriptMediaBackgroundPlay:
		return "media_background_play"
	case ScriptNightMode:
		return "night_mode"
	case ScriptDeAmp:
		return "de_amp"
	case ScriptRequestBlocking:
		return "request_blocking"
	case ScriptTrackerStats:
		return "tracker_stats"
	}
	return "unknown"
}

// FeatureSet is the set of conditional scripts currently desired
type FeatureSet map[FeatureScript]bool

// Toggle sets or clears a feature
func (f FeatureSet) Toggle(key FeatureScript, on bool) {
	if on {
		f[key] = true
	} else {
		delete(f, key)
	}
}
