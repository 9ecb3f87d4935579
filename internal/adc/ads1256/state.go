package ads1256

import "fmt"

type State int

const (
	StateUnconfigured State = iota
	StateCalibrating
	StateReady
	StateReading
)

func (s State) String() string {
	switch s {
	case StateUnconfigured:
		return "UNCONFIGURED"
	case StateCalibrating:
		return "CALIBRATING"
	case StateReady:
		return "READY"
	case StateReading:
		return "READING"
	default:
		return "UNKNOWN"
	}
}

var validTransitions = map[State][]State{
	StateUnconfigured: {StateCalibrating},
	StateCalibrating:  {StateReady, StateUnconfigured},
	StateReady:        {StateReading, StateCalibrating},
	StateReading:      {StateReady, StateCalibrating},
}

func ValidateTransition(from, to State) error {
	allowed, exists := validTransitions[from]
	if !exists {
		return fmt.Errorf("invalid current state: %s", from)
	}

	for _, validTo := range allowed {
		if validTo == to {
			return nil
		}
	}

	return fmt.Errorf("invalid state transition: %s -> %s", from, to)
}

// ReadyState is the outcome of WaitReady.
type ReadyState int

const (
	NotReady ReadyState = iota
	Ready
	ReadyError
)

func (r ReadyState) String() string {
	switch r {
	case Ready:
		return "ready"
	case NotReady:
		return "not ready"
	default:
		return "error"
	}
}
