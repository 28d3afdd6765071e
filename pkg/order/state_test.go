package order

import "testing"

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    State
		to      State
		wantErr bool
	}{
		{"charging to paid", StateCharging, StatePaid, false},
		{"charging to failed", StateCharging, StateFailed, false},
		{"paid to picked up", StatePaid, StatePickedUp, false},
		{"paid to refunding", StatePaid, StateRefunding, false},
		{"picked up to delivered", StatePickedUp, StateDelivered, false},
		{"picked up to refunding", StatePickedUp, StateRefunding, false},
		{"delivered to completed", StateDelivered, StateCompleted, false},
		{"refunding to failed", StateRefunding, StateFailed, false},
		{"same state is a no-op", StatePaid, StatePaid, false},
		{"charging cannot skip to picked up", StateCharging, StatePickedUp, true},
		{"paid cannot skip to delivered", StatePaid, StateDelivered, true},
		{"delivered cannot refund", StateDelivered, StateRefunding, true},
		{"completed is immutable", StateCompleted, StateFailed, true},
		{"failed is immutable", StateFailed, StatePaid, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateTransition(tt.from, tt.to)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateTransition(%s, %s) error = %v, wantErr %v", tt.from, tt.to, err, tt.wantErr)
			}
		})
	}
}

func TestIsTerminal(t *testing.T) {
	for _, state := range []State{StateCharging, StatePaid, StatePickedUp, StateDelivered, StateRefunding} {
		if state.IsTerminal() {
			t.Errorf("%s must not be terminal", state)
		}
	}
	for _, state := range []State{StateCompleted, StateFailed} {
		if !state.IsTerminal() {
			t.Errorf("%s must be terminal", state)
		}
	}
}

func TestNonTerminalStates(t *testing.T) {
	states := NonTerminalStates()
	if len(states) != 5 {
		t.Fatalf("expected 5 non-terminal states, got %d", len(states))
	}
	for _, s := range states {
		if State(s).IsTerminal() {
			t.Errorf("%s listed as non-terminal", s)
		}
	}
}
