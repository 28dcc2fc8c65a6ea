package capture

import "fmt"

// State is the lifecycle position of the capture controller.
type State int32

const (
	Idle State = iota
	Armed
	Capturing
	Saving
	Disarmed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Armed:
		return "armed"
	case Capturing:
		return "capturing"
	case Saving:
		return "saving"
	case Disarmed:
		return "disarmed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Active reports whether a session is in progress.
func (s State) Active() bool {
	return s == Armed || s == Capturing || s == Saving
}
