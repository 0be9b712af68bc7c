package policy

import (
	"context"
	"testing"
)

func TestCallerGateEmptyAllowlistAdmitsEveryone(t *testing.T) {
	g := NewCallerGate(nil)

	ok, err := g.CanStartSession(context.Background(), "anyone")
	if err != nil {
		t.Fatalf("CanStartSession() error = %v", err)
	}
	if !ok {
		t.Fatal("empty allowlist must admit every caller")
	}
}

func TestCallerGateAllowlist(t *testing.T) {
	g := NewCallerGate([]string{"alice", " bob "})

	cases := []struct {
		caller string
		want   bool
	}{
		{"alice", true},
		{"bob", true},
		{"mallory", false},
		{"", false},
	}
	for _, tc := range cases {
		ok, err := g.CanStartSession(context.Background(), tc.caller)
		if err != nil {
			t.Fatalf("CanStartSession(%q) error = %v", tc.caller, err)
		}
		if ok != tc.want {
			t.Fatalf("CanStartSession(%q) = %v, want %v", tc.caller, ok, tc.want)
		}
	}
}

func TestCallerGateRuntimeDenial(t *testing.T) {
	g := NewCallerGate(nil)

	g.Deny("mallory")
	if ok, _ := g.CanStartSession(context.Background(), "mallory"); ok {
		t.Fatal("denied caller admitted")
	}

	g.Allow("mallory")
	if ok, _ := g.CanStartSession(context.Background(), "mallory"); !ok {
		t.Fatal("caller still blocked after Allow")
	}
}
