package mock

import (
	"net/url"

	"gitlab.com/navguard/navguard"
)

type AdblockService struct {
	MatchScriptsFn     func(frameURL *url.URL, isMainFrame bool, domain *navguard.DomainSnapshot) navguard.ScriptSet
	MatchScriptsCalled bool

	ReadyFn     func() <-chan struct{}
	ReadyCalled bool

	PrepareDomainFn     func(domain *navguard.DomainSnapshot)
	PrepareDomainCalled bool
}

func (a *AdblockService) PrepareDomain(domain *navguard.DomainSnapshot) {
	a.PrepareDomainCalled = true
	a.PrepareDomainFn(domain)
}

func (a *AdblockService) MatchScripts(frameURL *url.URL, isMainFrame bool, domain *navguard.DomainSnapshot) navguard.ScriptSet {
	a.MatchScriptsCalled = true
	return a.MatchScriptsFn(frameURL, isMainFrame, domain)
}

func (a *AdblockService) Ready() <-chan struct{} {
	a.ReadyCalled = true
	return a.ReadyFn()
}

// MakeMockAdblockService is ready immediately and matches nothing
func MakeMockAdblockService() *AdblockService {
	ready := make(chan struct{})
	close(ready)

	a := &AdblockService{}
	a.MatchScriptsFn = func(frameURL *url.URL, isMainFrame bool, domain *navguard.DomainSnapshot) navguard.ScriptSet {
		return navguard.ScriptSet{}
	}
	a.ReadyFn = func() <-chan struct{} {
		return ready
	}
	a.PrepareDomainFn = func(domain *navguard.DomainSnapshot) {}
	return a
}
