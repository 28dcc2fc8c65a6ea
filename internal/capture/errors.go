package capture

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy is returned by Arm when a session is already in progress
	ErrBusy = errors.New("capture session already in progress")

	// ErrNotArmed is returned when an operation needs an armed session
	ErrNotArmed = errors.New("capture controller is not armed")

	// ErrDisarmed is the outcome of a session ended by Disarm
	ErrDisarmed = errors.New("capture session disarmed")
)

// HardwareStartError is returned by Arm when the radio front end could not
// begin streaming. The controller is back in Idle when it is returned.
type HardwareStartError struct {
	Err error
}

func (e *HardwareStartError) Error() string {
	return fmt.Sprintf("hardware start failed: %s", e.Err)
}

func (e *HardwareStartError) Unwrap() error {
	return e.Err
}

// PersistenceError reports a capture that could not be written. The session
// still completes and the controller returns to Idle.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("error writing capture '%s': %s", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
