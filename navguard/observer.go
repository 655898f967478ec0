package navguard

import "context"

// Observer votes on navigation outcomes. Each registered observer runs its
// own decision pipeline; the arbiter combines votes.
type Observer interface {
	Name() string
	DecideRequest(ctx context.Context, req *Request) Decision
	DecideResponse(ctx context.Context, resp *Response) Decision
}

// ChallengeObserver is an optional observer capability for credential
// challenges. The first registered observer that reports it can handle a
// challenge is the only one consulted.
type ChallengeObserver interface {
	Observer
	CanHandleChallenge(host string, port int, realm string) bool
	HandleChallenge(ctx context.Context, host string, port int, realm string) (*Credential, error)
}
