package navguard

// Config for the navigation layer. Values come from CLI flags or the
// embedding application; nothing here is persisted by this layer.
type Config struct {
	PrivateBrowsing bool
	RewardsEnabled  bool

	// Flags are the global feature preferences (debounce, de-amp, query
	// stripping, rewards)
	Flags map[FeatureFlag]bool

	// User agents selected per main-frame request
	DesktopUA string
	MobileUA  string
	// Hosts that always get the desktop UA
	DesktopModeHosts []string

	// RedirectRules maps an exact URL string to its replacement URL for
	// main-frame web requests (legacy host moves)
	RedirectRules map[string]string

	// SearchHosts are hosts recognized as the cooperating search engine
	SearchHosts []string

	// AppLinkHosts are universal-link hosts handed straight to the
	// external application
	AppLinkHosts []string

	// ChainPath is the on-disk location of the compiled debounce-chain
	// store
	ChainPath string

	// InternalScheme is the privileged scheme requiring authorization
	// tokens (defaults to "internal" when empty)
	InternalScheme string
}

// FlagEnabled implements FlagSource
func (c *Config) FlagEnabled(f FeatureFlag) bool {
	if c == nil || c.Flags == nil {
		return false
	}
	return c.Flags[f]
}

// Internal returns the privileged scheme name
func (c *Config) Internal() string {
	if c == nil || c.InternalScheme == "" {
		return "internal"
	}
	return c.InternalScheme
}
