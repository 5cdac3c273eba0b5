// Package session tracks crew runs per browser session. A session runs at
// most one crew at a time; each run carries its own log and outcome.
package session

import (
	"errors"
	"slices"
)

var (
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrRunInProgress     = errors.New("a run is already in progress for this session")
	ErrRunNotFound       = errors.New("run not found")
	ErrManagerClosed     = errors.New("session manager is shut down")
)

// State is the run state of a session or a run.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateFailed
)

var stateNames = map[State]string{
	StateIdle:      "idle",
	StateRunning:   "running",
	StateCompleted: "completed",
	StateFailed:    "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether s is completed or failed.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// validTransitions defines allowed state transitions. A finished session may
// start again; the new run replaces the previous outcome.
var validTransitions = map[State][]State{
	StateIdle:      {StateRunning},
	StateRunning:   {StateCompleted, StateFailed},
	StateCompleted: {StateRunning},
	StateFailed:    {StateRunning},
}

// CanTransition reports whether from → to is allowed.
func CanTransition(from, to State) bool {
	return slices.Contains(validTransitions[from], to)
}
