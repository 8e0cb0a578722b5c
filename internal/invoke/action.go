package invoke

import "fmt"

// Action is the closed set of operations an invocation can request.
type Action int

const (
	// ActionUp applies pending migrations.
	ActionUp Action = iota
	// ActionDown rolls back applied migrations.
	ActionDown
	// ActionStatus reports ledger state without mutating anything.
	ActionStatus
)

// String returns the wire name of the action.
func (a Action) String() string {
	switch a {
	case ActionUp:
		return "up"
	case ActionDown:
		return "down"
	case ActionStatus:
		return "status"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// errUnknownAction covers the unreachable default of an exhaustive
// Action switch.
func errUnknownAction(a Action) error {
	return fmt.Errorf("unknown action %v", a)
}

// ParseAction maps a wire string to an Action, rejecting unknown values.
func ParseAction(s string) (Action, error) {
	switch s {
	case "up":
		return ActionUp, nil
	case "down":
		return ActionDown, nil
	case "status":
		return ActionStatus, nil
	default:
		return 0, fmt.Errorf("unknown action %q (expected up, down, or status)", s)
	}
}
