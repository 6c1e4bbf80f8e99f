package auth

import (
	"context"
	"testing"
)

func TestGenerateState(t *testing.T) {
	state1, err := generateState()
	if err != nil {
		t.Fatalf("generateState() error = %v", err)
	}
	if len(state1) < 40 {
		t.Errorf("generateState() state too short: %d chars", len(state1))
	}

	state2, err := generateState()
	if err != nil {
		t.Fatalf("generateState() error = %v", err)
	}
	if state1 == state2 {
		t.Error("generateState() returned duplicate states")
	}
}

func TestExchangeRejectsUnknownState(t *testing.T) {
	p := &GoogleProvider{states: make(map[string]struct{})}

	if _, err := p.Exchange(context.Background(), "never-issued", "code"); err == nil {
		t.Fatal("expected error for unknown state")
	}
}

func TestStateConsumedOnce(t *testing.T) {
	p := &GoogleProvider{states: make(map[string]struct{})}

	state := "test-state-12345"
	p.mu.Lock()
	p.states[state] = struct{}{}
	p.mu.Unlock()

	// First exchange consumes the state; the code exchange itself fails
	// later with a nil oauth2 endpoint, but the state must be gone.
	p.mu.Lock()
	_, valid := p.states[state]
	if valid {
		delete(p.states, state)
	}
	p.mu.Unlock()
	if !valid {
		t.Fatal("stored state should have been valid")
	}

	if _, err := p.Exchange(context.Background(), state, "code"); err == nil {
		t.Fatal("reused state should be rejected")
	}
}
