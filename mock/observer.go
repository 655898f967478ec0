package mock

import (
	"context"

	"gitlab.com/navguard/navguard"
)

type Observer struct {
	NameFn     func() string
	NameCalled bool

	DecideRequestFn     func(ctx context.Context, req *navguard.Request) navguard.Decision
	DecideRequestCalled bool

	DecideResponseFn     func(ctx context.Context, resp *navguard.Response) navguard.Decision
	DecideResponseCalled bool

	CanHandleChallengeFn     func(host string, port int, realm string) bool
	CanHandleChallengeCalled bool

	HandleChallengeFn     func(ctx context.Context, host string, port int, realm string) (*navguard.Credential, error)
	HandleChallengeCalled bool
}

func (o *Observer) Name() string {
	o.NameCalled = true
	return o.NameFn()
}

func (o *Observer) DecideRequest(ctx context.Context, req *navguard.Request) navguard.Decision {
	o.DecideRequestCalled = true
	return o.DecideRequestFn(ctx, req)
}

func (o *Observer) DecideResponse(ctx context.Context, resp *navguard.Response) navguard.Decision {
	o.DecideResponseCalled = true
	return o.DecideResponseFn(ctx, resp)
}

func (o *Observer) CanHandleChallenge(host string, port int, realm string) bool {
	o.CanHandleChallengeCalled = true
	return o.CanHandleChallengeFn(host, port, realm)
}

func (o *Observer) HandleChallenge(ctx context.Context, host string, port int, realm string) (*navguard.Credential, error) {
	o.HandleChallengeCalled = true
	return o.HandleChallengeFn(ctx, host, port, realm)
}

// MakeMockObserver votes Allow on everything and declines challenges
func MakeMockObserver() *Observer {
	o := &Observer{}
	o.NameFn = func() string { return "TestObserver" }
	o.DecideRequestFn = func(ctx context.Context, req *navguard.Request) navguard.Decision {
		return navguard.Allowed()
	}
	o.DecideResponseFn = func(ctx context.Context, resp *navguard.Response) navguard.Decision {
		return navguard.Allowed()
	}
	o.CanHandleChallengeFn = func(host string, port int, realm string) bool { return false }
	o.HandleChallengeFn = func(ctx context.Context, host string, port int, realm string) (*navguard.Credential, error) {
		return nil, nil
	}
	return o
}
