package navguard

// Action is the terminal outcome of a navigation decision
type Action int8

const (
	// Allow the engine to continue the load
	Allow Action = iota + 1
	// Cancel the load entirely
	Cancel
	// Download hands the response to the download machinery
	Download
)

func (a Action) String() string {
	switch a {
	case Allow:
		return "allow"
	case Cancel:
		return "cancel"
	case Download:
		return "download"
	}
	return "invalid"
}

// PreferenceKey is the closed set of per-navigation preference overrides.
// Keys are a closed enum so "preference changed" handling is an exhaustive
// switch instead of string matching.
type PreferenceKey int8

const (
	// PrefJavaScriptEnabled per-frame content JS toggle
	PrefJavaScriptEnabled PreferenceKey = iota + 1
	// PrefDesktopMode request desktop rendering for this load
	PrefDesktopMode
	// PrefPopupsAllowed programmatic window.open allowance
	PrefPopupsAllowed
)

// PreferencePatch is a partial override of engine preferences attached to
// an Allow decision
type PreferencePatch map[PreferenceKey]bool

// Merge folds other into p, other winning on conflicting keys. Returns p
// for chaining; a nil receiver allocates.
func (p PreferencePatch) Merge(other PreferencePatch) PreferencePatch {
	if len(other) == 0 {
		return p
	}
	if p == nil {
		p = make(PreferencePatch, len(other))
	}
	for k, v := range other {
		p[k] = v
	}
	return p
}

// Decision is one observer's vote on a navigation outcome
type Decision struct {
	Action Action
	Prefs  PreferencePatch
}

// Allowed is the default vote
func Allowed() Decision { return Decision{Action: Allow} }

// Cancelled terminates the load
func Cancelled() Decision { return Decision{Action: Cancel} }

// Downloaded claims the response for the download machinery
func Downloaded() Decision { return Decision{Action: Download} }

// AllowWithPrefs allows the load with preference overrides attached
func AllowWithPrefs(prefs PreferencePatch) Decision {
	return Decision{Action: Allow, Prefs: prefs}
}
