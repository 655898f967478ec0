package policy

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"gitlab.com/navguard/navguard"
)

// revive:exported
var (
	ErrNoChallengeHandler = errors.New("no observer can handle the challenge")
)

// Arbiter fans one navigation event out to every registered observer and
// folds their votes into a single decision. Observers run sequentially in
// registration order, which keeps results deterministic for a fixed order.
type Arbiter struct {
	cfg *navguard.Config

	mu        sync.RWMutex
	observers []navguard.Observer
}

// NewArbiter with the static policy configuration
func NewArbiter(cfg *navguard.Config) *Arbiter {
	return &Arbiter{cfg: cfg}
}

// Register an observer. Registration order is decision order.
func (a *Arbiter) Register(o navguard.Observer) {
	a.mu.Lock()
	a.observers = append(a.observers, o)
	a.mu.Unlock()
	log.Debug().Str("observer", o.Name()).Msg("navigation observer registered")
}

// DecideRequest combines every observer's request vote. Precedence is
// Cancel > Download > Allow; preference patches merge in registration
// order with later observers winning conflicting keys.
func (a *Arbiter) DecideRequest(ctx context.Context, req *navguard.Request) navguard.Decision {
	return a.combine(func(o navguard.Observer) navguard.Decision {
		return o.DecideRequest(ctx, req)
	})
}

// DecideResponse combines response votes with the same precedence
func (a *Arbiter) DecideResponse(ctx context.Context, resp *navguard.Response) navguard.Decision {
	return a.combine(func(o navguard.Observer) navguard.Decision {
		return o.DecideResponse(ctx, resp)
	})
}

func (a *Arbiter) combine(vote func(navguard.Observer) navguard.Decision) navguard.Decision {
	a.mu.RLock()
	observers := make([]navguard.Observer, len(a.observers))
	copy(observers, a.observers)
	a.mu.RUnlock()

	final := a.basePolicy()
	for _, o := range observers {
		d := vote(o)
		final.Prefs = final.Prefs.Merge(d.Prefs)
		switch {
		case d.Action == navguard.Cancel:
			final.Action = navguard.Cancel
		case d.Action == navguard.Download && final.Action != navguard.Cancel:
			final.Action = navguard.Download
		}
	}
	return final
}

// basePolicy is the default Allow every combination starts from, seeded
// from static configuration
func (a *Arbiter) basePolicy() navguard.Decision {
	d := navguard.Allowed()
	if a.cfg != nil && a.cfg.PrivateBrowsing {
		d.Prefs = navguard.PreferencePatch{navguard.PrefPopupsAllowed: false}
	}
	return d
}

// HandleChallenge gives the credential challenge to the first registered
// observer that declares it can authenticate; no other observer is
// consulted.
func (a *Arbiter) HandleChallenge(ctx context.Context, host string, port int, realm string) (*navguard.Credential, error) {
	a.mu.RLock()
	observers := make([]navguard.Observer, len(a.observers))
	copy(observers, a.observers)
	a.mu.RUnlock()

	for _, o := range observers {
		c, ok := o.(navguard.ChallengeObserver)
		if !ok {
			continue
		}
		if c.CanHandleChallenge(host, port, realm) {
			return c.HandleChallenge(ctx, host, port, realm)
		}
	}
	return nil, errors.Wrap(ErrNoChallengeHandler, host)
}
