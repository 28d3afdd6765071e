package order

import "fmt"

// State is the fulfillment state of one order.
type State string

const (
	// StateCharging is the initial state while the card charge is in flight.
	StateCharging State = "charging"
	// StatePaid means the charge succeeded and the order awaits pickup.
	StatePaid State = "paid"
	// StatePickedUp means a driver picked up the order.
	StatePickedUp State = "picked_up"
	// StateDelivered means the driver delivered the order.
	StateDelivered State = "delivered"
	// StateRefunding marks an order whose charge succeeded but whose
	// fulfillment timed out; the refund is about to run.
	StateRefunding State = "refunding"
	// StateCompleted is the happy-path terminal state.
	StateCompleted State = "completed"
	// StateFailed is the terminal state of every abort path.
	StateFailed State = "failed"
)

// String returns the state name.
func (s State) String() string { return string(s) }

// IsTerminal reports whether no further transition can occur.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

var allowedTransitions = map[State]map[State]struct{}{
	StateCharging: {
		StatePaid:   {},
		StateFailed: {},
	},
	StatePaid: {
		StatePickedUp:  {},
		StateRefunding: {},
		StateFailed:    {},
	},
	StatePickedUp: {
		StateDelivered: {},
		StateRefunding: {},
		StateFailed:    {},
	},
	StateDelivered: {
		StateCompleted: {},
		StateFailed:    {},
	},
	StateRefunding: {
		StateFailed: {},
	},
}

func validateTransition(from, to State) error {
	if from == to {
		return nil
	}
	if from.IsTerminal() {
		return fmt.Errorf("illegal order transition %q -> %q: terminal state is immutable", from, to)
	}
	allowed, ok := allowedTransitions[from]
	if !ok {
		return fmt.Errorf("illegal order transition %q -> %q", from, to)
	}
	if _, ok := allowed[to]; !ok {
		return fmt.Errorf("illegal order transition %q -> %q", from, to)
	}
	return nil
}

// NonTerminalStates lists every state a crashed process may need to resume.
func NonTerminalStates() []string {
	return []string{
		string(StateCharging),
		string(StatePaid),
		string(StatePickedUp),
		string(StateDelivered),
		string(StateRefunding),
	}
}
