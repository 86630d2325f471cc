package classbook

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Outcome is the terminal classification of a run.
type Outcome string

const (
	OutcomeSuccess       Outcome = "Success"
	OutcomeAlreadyBooked Outcome = "AlreadyBooked"
	OutcomeNotAvailable  Outcome = "NotAvailable"
	OutcomeFailed        Outcome = "Failed"
)

// Stage values trace a run from browser start through confirmation.
// Reaching a stage implies every earlier one completed.
type Stage string

const (
	StageStart          Stage = "Start"
	StageLoggedIn       Stage = "LoggedIn"
	StagePopupsCleared  Stage = "PopupsCleared"
	StageScheduleLoaded Stage = "ScheduleLoaded"
	StageSlotSelected   Stage = "SlotSelected"
	StageConfirmed      Stage = "Confirmed"
)

// RunResult is the single report a run produces.
type RunResult struct {
	ID      uuid.UUID
	Target  Target
	Outcome Outcome
	Message string

	// Stage is the furthest booking stage the run completed.
	Stage Stage

	// SessionClosed flips once the browser session release has run. It is
	// true for every finished run, whatever the outcome.
	SessionClosed bool

	StartedAt  time.Time
	FinishedAt time.Time
}

// NewRunResult stamps a fresh result for one attempt at target.
func NewRunResult(target Target) *RunResult {
	return &RunResult{
		ID:        uuid.New(),
		Target:    target,
		Stage:     StageStart,
		StartedAt: time.Now(),
	}
}

// Finish classifies err into the final outcome and message.
func (r *RunResult) Finish(err error) {
	r.FinishedAt = time.Now()
	r.Outcome = Classify(err)

	if err != nil {
		r.Message = err.Error()
		return
	}
	r.Message = fmt.Sprintf("booked %s on %s",
		r.Target, r.Target.Date(r.StartedAt).Format("Monday, Jan 2"))
}

// Elapsed is how long the run took end to end.
func (r *RunResult) Elapsed() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// ExitCode maps the outcome to the process exit status: zero whenever the
// class ends up held by the account, non-zero otherwise.
func (r *RunResult) ExitCode() int {
	if r.Outcome == OutcomeSuccess || r.Outcome == OutcomeAlreadyBooked {
		return 0
	}
	return 1
}

// Classify maps an attempt error onto the outcome it represents. A nil
// error is a fresh booking; holding the slot from an earlier run is not an
// error outcome.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrAlreadyBooked):
		return OutcomeAlreadyBooked
	case errors.Is(err, ErrNotAvailable):
		return OutcomeNotAvailable
	default:
		return OutcomeFailed
	}
}
