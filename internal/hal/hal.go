package hal

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RelayPosition is the physical position of the motor power relay.
type RelayPosition string

const (
	// RelayClosed means the relay is energized and the motor is active.
	RelayClosed RelayPosition = "CLOSED"
	// RelayOpen means the relay is de-energized and motor power is cut.
	RelayOpen RelayPosition = "OPEN"
)

// PowerResult is the outcome of a relay actuation.
type PowerResult struct {
	Status    string        `json:"status"`
	Relay     RelayPosition `json:"relay"`
	UnitID    string        `json:"unit_id"`
	Timestamp time.Time     `json:"ts"`
}

// PowerControl is the southbound port for the motor power relay.
// The sequencer is responsible for call ordering; implementations do not
// validate precondition state.
type PowerControl interface {
	// CutPower opens the power relay. Idempotent in effect: calling again
	// while already open re-confirms OPEN, but each call re-incurs the
	// actuation delay.
	CutPower(ctx context.Context) (*PowerResult, error)

	// RestorePower closes the power relay, re-energizing the motor.
	RestorePower(ctx context.Context) (*PowerResult, error)
}

// ErrActuation indicates the power controller rejected or failed a relay
// command.
var ErrActuation = errors.New("HAL_ACTUATION")

// ActuationError wraps a driver failure with the command that failed,
// preserving the original cause for diagnostics.
type ActuationError struct {
	Command  string
	Original error
}

func (e *ActuationError) Error() string {
	return fmt.Sprintf("%v: %s failed: %v", ErrActuation, e.Command, e.Original)
}

func (e *ActuationError) Unwrap() error {
	return ErrActuation
}
