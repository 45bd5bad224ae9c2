package sequence

import (
	"errors"
	"fmt"
)

// ErrBusy is returned by Trigger while a sequence is in flight or an earlier
// one is unresolved. Expected and benign: the emergency is already being
// handled. Distinguishable from step failures so callers can tell "already
// handled" from "broken".
var ErrBusy = errors.New("ORCHESTRATOR_BUSY")

// ErrStopFailed is the sentinel all step failures wrap.
var ErrStopFailed = errors.New("EMERGENCY_STOP_FAILED")

// StopFailedError reports a failed step of the emergency stop sequence,
// preserving the original cause for diagnostics.
type StopFailedError struct {
	Step  string // "cutPower", "transition" or "publish"
	Cause error
}

func (e *StopFailedError) Error() string {
	return fmt.Sprintf("%v: step %s: %v", ErrStopFailed, e.Step, e.Cause)
}

func (e *StopFailedError) Unwrap() error {
	return e.Cause
}

// Is matches both the sentinel and the wrapped cause chain.
func (e *StopFailedError) Is(target error) bool {
	return target == ErrStopFailed
}
