package classbook

import (
	"fmt"
	"time"

	"classbook/schedule"
)

// Target identifies the single session a run tries to book.
type Target struct {
	Location string
	Class    string

	// Time is the session start time exactly as the schedule displays it,
	// e.g. "6:15 pm".
	Time string

	// DaysAhead is how far past today the target date sits. Studios open
	// reservations a fixed window ahead, so runs aim at the far edge.
	DaysAhead int
}

// Date is the schedule date the run aims at, DaysAhead days past now.
func (t Target) Date(now time.Time) time.Time {
	return schedule.TargetDate(now, t.DaysAhead)
}

func (t Target) String() string {
	if t.Location == "" {
		return fmt.Sprintf("%s at %s", t.Class, t.Time)
	}
	return fmt.Sprintf("%s at %s (%s)", t.Class, t.Time, t.Location)
}
