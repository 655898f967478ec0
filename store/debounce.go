package store

import (
	"encoding/json"
	"io"
	"net/url"
	"os"

	badger "github.com/dgraph-io/badger/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"gitlab.com/navguard/navguard"
)

// chainRule is the on-disk shape of one precompiled debounce chain
type chainRule struct {
	Source string      `json:"source"`
	Chain  []chainNode `json:"chain"`
}

type chainNode struct {
	Target string   `json:"target"`
	Flags  []string `json:"flags"`
}

var flagNames = map[string]navguard.FeatureFlag{
	"debounce":        navguard.FlagDebounce,
	"de_amp":          navguard.FlagDeAmp,
	"query_stripping": navguard.FlagQueryStripping,
	"rewards":         navguard.FlagRewards,
}

// DebounceStore serves precompiled tracking-redirect chains keyed by source
// URL. Chains are compiled and shipped elsewhere; this store only loads and
// looks them up. Implements navguard.Debouncer.
type DebounceStore struct {
	Store    *badger.DB
	filepath string
}

// NewDebounceStore at the given path
func NewDebounceStore(filepath string) *DebounceStore {
	return &DebounceStore{filepath: filepath}
}

// Init the chain storage
func (s *DebounceStore) Init() error {
	var err error

	if err = os.MkdirAll(s.filepath, 0677); err != nil {
		return err
	}

	s.Store, err = badger.Open(badger.DefaultOptions(s.filepath))

	if errors.Is(err, badger.ErrTruncateNeeded) {
		log.Warn().Msg("there was a failure re-opening database, trying to recover")
		opts := badger.DefaultOptions(s.filepath)
		opts.Truncate = true
		s.Store, err = badger.Open(opts)
	}

	return err
}

// LoadRules reads a JSON rule file and replaces the stored chains it names.
// Returns how many chains were loaded; individually malformed rules are
// skipped with a warning.
func (s *DebounceStore) LoadRules(r io.Reader) (int, error) {
	var rules []chainRule
	if err := json.NewDecoder(r).Decode(&rules); err != nil {
		return 0, errors.Wrap(err, "decoding chain rules")
	}

	loaded := 0
	err := s.Store.Update(func(txn *badger.Txn) error {
		for _, rule := range rules {
			src, err := url.Parse(rule.Source)
			if err != nil || src.Host == "" {
				log.Warn().Str("source", rule.Source).Msg("skipping rule with bad source URL")
				continue
			}
			value, err := json.Marshal(rule.Chain)
			if err != nil {
				return err
			}
			if err := txn.Set([]byte(src.String()), value); err != nil {
				return err
			}
			loaded++
		}
		return nil
	})
	return loaded, err
}

// Chain returns the redirect chain recorded for u, or nil. Implements
// navguard.Debouncer.
func (s *DebounceStore) Chain(u *url.URL) []navguard.RedirectChainEntry {
	if u == nil || s.Store == nil {
		return nil
	}

	var nodes []chainNode
	err := s.Store.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(u.String()))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &nodes)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		log.Warn().Err(err).Str("url", u.String()).Msg("chain lookup failed")
		return nil
	}

	chain := make([]navguard.RedirectChainEntry, 0, len(nodes))
	for _, n := range nodes {
		target, err := url.Parse(n.Target)
		if err != nil || target.Host == "" {
			log.Warn().Str("target", n.Target).Msg("dropping chain node with bad target")
			continue
		}
		entry := navguard.RedirectChainEntry{Target: target}
		for _, name := range n.Flags {
			if f, ok := flagNames[name]; ok {
				entry.RequiredFlags = append(entry.RequiredFlags, f)
			}
		}
		chain = append(chain, entry)
	}
	return chain
}

// Close the chain store
func (s *DebounceStore) Close() error {
	return s.Store.Close()
}
