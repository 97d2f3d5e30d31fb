package engine

import "fmt"

// RunState is a state of the run state machine.
type RunState string

const (
	StateIdle             RunState = "IDLE"
	StateRunningSimulated RunState = "RUNNING_SIMULATED"
	StateRunningRemote    RunState = "RUNNING_REMOTE"
	StateRunningFallback  RunState = "RUNNING_FALLBACK"
	StateDone             RunState = "DONE"
)

// Running reports whether a runner is active. Editing is locked while true.
func (s RunState) Running() bool {
	switch s {
	case StateRunningSimulated, StateRunningRemote, StateRunningFallback:
		return true
	}
	return false
}

// RunMode selects the runner used for the next run.
type RunMode string

const (
	ModeSimulated RunMode = "SIMULATED"
	ModeReal      RunMode = "REAL"
)

// ParseRunMode converts a mode name into a RunMode.
func ParseRunMode(s string) (RunMode, error) {
	switch RunMode(s) {
	case ModeSimulated:
		return ModeSimulated, nil
	case ModeReal:
		return ModeReal, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRunMode, s)
}

// entryState is the running state a mode starts in.
func (m RunMode) entryState() RunState {
	if m == ModeReal {
		return StateRunningRemote
	}
	return StateRunningSimulated
}

// validTransition reports whether the state machine allows from -> to.
func validTransition(from, to RunState) bool {
	switch from {
	case StateIdle:
		return to == StateRunningSimulated || to == StateRunningRemote
	case StateRunningRemote:
		return to == StateRunningFallback || to == StateDone
	case StateRunningSimulated, StateRunningFallback:
		return to == StateDone
	case StateDone:
		return to == StateIdle
	}
	return false
}
