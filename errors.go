package classbook

import (
	"errors"
	"fmt"
)

// Sentinel errors for the ways a booking attempt ends short of a fresh
// reservation.
var (
	ErrAuthFailed     = errors.New("login failed")
	ErrNotAvailable   = errors.New("class slot not available")
	ErrAlreadyBooked  = errors.New("class already booked")
	ErrConfirmTimeout = errors.New("booking confirmation timed out")
)

// StageError tags an error with the stage the run was moving toward when it
// hit. errors.Is and errors.As see through it to the cause.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("reaching %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}
