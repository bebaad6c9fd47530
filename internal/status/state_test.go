package status

import (
	"testing"

	"github.com/matheus3301/chatsync/internal/bus"
)

func TestInitialState(t *testing.T) {
	m := NewMachine(nil)
	if m.Current() != Booting {
		t.Errorf("initial state = %s, want BOOTING", m.Current())
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		from State
		to   State
	}{
		{Booting, SignedOut},
		{Booting, Syncing},
		{Booting, Error},
		{SignedOut, Syncing},
		{Syncing, Ready},
		{Syncing, SignedOut},
		{Ready, Syncing},
		{Ready, SignedOut},
		{Error, Booting},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			m := NewMachine(nil)
			walkTo(t, m, tt.from)
			if err := m.Transition(tt.to); err != nil {
				t.Errorf("Transition(%s -> %s) error = %v", tt.from, tt.to, err)
			}
			if m.Current() != tt.to {
				t.Errorf("state = %s, want %s", m.Current(), tt.to)
			}
		})
	}
}

func TestInvalidTransition(t *testing.T) {
	m := NewMachine(nil)
	if err := m.Transition(Ready); err == nil {
		t.Error("Transition(BOOTING -> READY) should fail")
	}
	walkTo(t, m, SignedOut)
	if err := m.Transition(Ready); err == nil {
		t.Error("Transition(SIGNED_OUT -> READY) should fail; a feed must be syncing first")
	}
}

func TestTransitionEmitsEvent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("session.", 10)
	defer unsub()

	m := NewMachine(b)
	if err := m.TransitionWithDetail(Error, "database locked"); err != nil {
		t.Fatal(err)
	}

	evt := <-ch
	if evt.Kind != bus.SessionStatus {
		t.Errorf("event kind = %q, want %s", evt.Kind, bus.SessionStatus)
	}
	change, ok := evt.Payload.(StatusChange)
	if !ok {
		t.Fatalf("payload type = %T, want StatusChange", evt.Payload)
	}
	if change.From != Booting || change.To != Error || change.Detail != "database locked" {
		t.Errorf("change = %+v", change)
	}
	if m.Detail() != "database locked" {
		t.Errorf("Detail() = %q", m.Detail())
	}
}

// TestSignInLifecycle walks a first run: sign in, first snapshot, sign out.
func TestSignInLifecycle(t *testing.T) {
	m := NewMachine(nil)

	steps := []State{SignedOut, Syncing, Ready, SignedOut}
	for _, s := range steps {
		if err := m.Transition(s); err != nil {
			t.Fatalf("Transition to %s: %v (current: %s)", s, err, m.Current())
		}
	}
}

func TestAdvanceOnlyFromExpectedState(t *testing.T) {
	m := NewMachine(nil)
	walkTo(t, m, Syncing)

	if !m.Advance(Syncing, Ready) {
		t.Fatal("Advance(SYNCING -> READY) should succeed")
	}
	// Later snapshots keep calling Advance; it must be a no-op.
	if m.Advance(Syncing, Ready) {
		t.Error("second Advance should report false")
	}
	if m.Current() != Ready {
		t.Errorf("state = %s, want READY", m.Current())
	}
}

// walkTo is a helper that transitions the machine to a target state.
func walkTo(t *testing.T, m *Machine, target State) {
	t.Helper()
	paths := map[State][]State{
		Booting:   {},
		SignedOut: {SignedOut},
		Syncing:   {Syncing},
		Ready:     {Syncing, Ready},
		Error:     {Error},
	}
	for _, s := range paths[target] {
		if err := m.Transition(s); err != nil {
			t.Fatalf("walkTo(%s): %v", target, err)
		}
	}
}
