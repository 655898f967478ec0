package policy_test

import (
	"context"
	"fmt"
	"testing"

	"gitlab.com/navguard/mock"
	"gitlab.com/navguard/navguard"
	"gitlab.com/navguard/policy"
)

func voter(name string, action navguard.Action, prefs navguard.PreferencePatch) *mock.Observer {
	o := mock.MakeMockObserver()
	o.NameFn = func() string { return name }
	o.DecideRequestFn = func(ctx context.Context, req *navguard.Request) navguard.Decision {
		return navguard.Decision{Action: action, Prefs: prefs}
	}
	o.DecideResponseFn = func(ctx context.Context, resp *navguard.Response) navguard.Decision {
		return navguard.Decision{Action: action, Prefs: prefs}
	}
	return o
}

func TestCombinePrecedence(t *testing.T) {
	var inputs = []struct {
		name     string
		votes    []navguard.Action
		expected navguard.Action
	}{
		{"all allow", []navguard.Action{navguard.Allow, navguard.Allow}, navguard.Allow},
		{"cancel wins", []navguard.Action{navguard.Allow, navguard.Allow, navguard.Cancel}, navguard.Cancel},
		{"cancel beats download", []navguard.Action{navguard.Download, navguard.Cancel}, navguard.Cancel},
		{"download beats allow", []navguard.Action{navguard.Allow, navguard.Download}, navguard.Download},
		{"order irrelevant for cancel", []navguard.Action{navguard.Cancel, navguard.Allow, navguard.Allow}, navguard.Cancel},
	}
	for _, in := range inputs {
		a := policy.NewArbiter(&navguard.Config{})
		for i, action := range in.votes {
			a.Register(voter(fmt.Sprintf("observer-%d", i), action, nil))
		}
		got := a.DecideRequest(context.Background(), &navguard.Request{})
		if got.Action != in.expected {
			t.Fatalf("%s: expected %s, got %s", in.name, in.expected, got.Action)
		}
		// response combination is symmetric
		if got := a.DecideResponse(context.Background(), &navguard.Response{}); got.Action != in.expected {
			t.Fatalf("%s (response): expected %s, got %s", in.name, in.expected, got.Action)
		}
	}
}

func TestCombineDeterministic(t *testing.T) {
	a := policy.NewArbiter(&navguard.Config{})
	a.Register(voter("first", navguard.Allow, nil))
	a.Register(voter("second", navguard.Cancel, nil))
	a.Register(voter("third", navguard.Allow, nil))

	req := &navguard.Request{}
	first := a.DecideRequest(context.Background(), req)
	for i := 0; i < 10; i++ {
		if got := a.DecideRequest(context.Background(), req); got.Action != first.Action {
			t.Fatal("same registration order must always yield the same decision")
		}
	}
}

func TestPreferenceMergeOrder(t *testing.T) {
	a := policy.NewArbiter(&navguard.Config{})
	a.Register(voter("early", navguard.Allow, navguard.PreferencePatch{
		navguard.PrefJavaScriptEnabled: true,
		navguard.PrefDesktopMode:       true,
	}))
	a.Register(voter("late", navguard.Allow, navguard.PreferencePatch{
		navguard.PrefJavaScriptEnabled: false,
	}))

	got := a.DecideRequest(context.Background(), &navguard.Request{})
	if got.Prefs[navguard.PrefJavaScriptEnabled] {
		t.Fatal("later observers override earlier ones on conflicting keys")
	}
	if !got.Prefs[navguard.PrefDesktopMode] {
		t.Fatal("non-conflicting keys from earlier observers survive")
	}
}

func TestPrivateBrowsingBasePolicy(t *testing.T) {
	a := policy.NewArbiter(&navguard.Config{PrivateBrowsing: true})
	a.Register(voter("only", navguard.Allow, nil))

	got := a.DecideRequest(context.Background(), &navguard.Request{})
	if allowed, ok := got.Prefs[navguard.PrefPopupsAllowed]; !ok || allowed {
		t.Fatal("private browsing suppresses popups in the base policy")
	}
}

func TestChallengeFirstResponderWins(t *testing.T) {
	a := policy.NewArbiter(&navguard.Config{})

	declines := mock.MakeMockObserver()
	accepts := mock.MakeMockObserver()
	accepts.CanHandleChallengeFn = func(host string, port int, realm string) bool { return true }
	accepts.HandleChallengeFn = func(ctx context.Context, host string, port int, realm string) (*navguard.Credential, error) {
		return &navguard.Credential{User: "u", Secret: "s"}, nil
	}
	shadowed := mock.MakeMockObserver()
	shadowed.CanHandleChallengeFn = func(host string, port int, realm string) bool { return true }

	a.Register(declines)
	a.Register(accepts)
	a.Register(shadowed)

	cred, err := a.HandleChallenge(context.Background(), "example.com", 443, "realm")
	if err != nil {
		t.Fatalf("challenge failed: %s", err)
	}
	if cred == nil || cred.User != "u" {
		t.Fatal("wrong credential returned")
	}
	if !accepts.HandleChallengeCalled {
		t.Fatal("accepting observer must handle the challenge")
	}
	if shadowed.HandleChallengeCalled {
		t.Fatal("later observers must not be consulted")
	}
	if declines.HandleChallengeCalled {
		t.Fatal("declining observers must not handle")
	}
}

func TestChallengeNoHandler(t *testing.T) {
	a := policy.NewArbiter(&navguard.Config{})
	a.Register(mock.MakeMockObserver())
	if _, err := a.HandleChallenge(context.Background(), "example.com", 443, "realm"); err == nil {
		t.Fatal("expected an error with no capable observer")
	}
}
