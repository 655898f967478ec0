package navguard

import (
	"net/url"

	"golang.org/x/net/publicsuffix"
)

// Shield is a named content-protection toggle resolvable per domain
type Shield int8

const (
	// ShieldAllOff every protection disabled for the domain
	ShieldAllOff Shield = iota + 1
	// ShieldAdblockAndTp ad and tracker blocking
	ShieldAdblockAndTp
	// ShieldNoScript disable JS for the domain
	ShieldNoScript
	// ShieldFpProtection fingerprint farbling
	ShieldFpProtection
	// ShieldCookieBlocking third-party cookie denial
	ShieldCookieBlocking
)

func (s Shield) String() string {
	switch s {
	case ShieldAllOff:
		return "all_off"
	case ShieldAdblockAndTp:
		return "adblock_and_tp"
	case ShieldNoScript:
		return "no_script"
	case ShieldFpProtection:
		return "fp_protection"
	case ShieldCookieBlocking:
		return "cookie_blocking"
	}
	return "unknown"
}

// DomainSnapshot is the shield flags resolved for one page's domain at
// session start. Lookups made off the snapshot stay stable while the page
// lives even if the backing store changes underneath.
type DomainSnapshot struct {
	Host    string
	Domain  string // registrable domain (eTLD+1)
	Shields map[Shield]bool
}

// IsShieldEnabled reports whether the shield was on when the snapshot was
// taken. ShieldAllOff inverts everything else.
func (d *DomainSnapshot) IsShieldEnabled(s Shield) bool {
	if d == nil || d.Shields == nil {
		return false
	}
	if d.Shields[ShieldAllOff] {
		return false
	}
	return d.Shields[s]
}

// RegistrableDomain returns the eTLD+1 for a URL host, falling back to the
// raw host for IPs and single-label hosts
func RegistrableDomain(u *url.URL) string {
	if u == nil {
		return ""
	}
	host := u.Hostname()
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return domain
}

// SameRegistrableDomain reports whether two URLs share an eTLD+1
func SameRegistrableDomain(a, b *url.URL) bool {
	if a == nil || b == nil {
		return false
	}
	return RegistrableDomain(a) == RegistrableDomain(b)
}
