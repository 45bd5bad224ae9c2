package state

import (
	"fmt"
	"time"
)

// State is the operational state of a GVA unit.
type State string

const (
	Normal        State = "NORMAL"
	EmergencyStop State = "EMERGENCY_STOP"
	Restoring     State = "RESTORING"
)

// States lists all valid operational states.
var States = []State{Normal, EmergencyStop, Restoring}

// Valid reports whether s is a known operational state.
func (s State) Valid() bool {
	switch s {
	case Normal, EmergencyStop, Restoring:
		return true
	}
	return false
}

// Transitions is the fixed adjacency table of legal transitions.
// Every state has exactly one legal successor; the table is a directed
// cycle of length 3.
var Transitions = map[State][]State{
	Normal:        {EmergencyStop},
	EmergencyStop: {Restoring},
	Restoring:     {Normal},
}

// TransitionRecord is one committed entry of the audit history.
type TransitionRecord struct {
	State     State     `json:"state"`
	Timestamp time.Time `json:"ts"`
}

// TransitionResult is the snapshot returned by a successful transition.
type TransitionResult struct {
	Status    string    `json:"status"`
	State     State     `json:"state"`
	Previous  State     `json:"previous"`
	Timestamp time.Time `json:"ts"`
}

// InvalidTransitionError reports an attempted transition that is not in the
// adjacency table. It carries the offending pair and the legal alternatives
// so callers can diagnose without consulting logs.
type InvalidTransitionError struct {
	From    State
	To      State
	Allowed []State
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("INVALID_TRANSITION: %s -> %s (allowed from %s: %v)",
		e.From, e.To, e.From, e.Allowed)
}

// Observer is the optional state change callback, invoked synchronously
// after a transition commits.
type Observer func(previous, next State)
