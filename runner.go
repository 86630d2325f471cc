package classbook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"classbook/browser"
	"classbook/schedule"
)

// CredentialSource supplies the account credentials right before login, so
// secrets stay out of long-lived structures.
type CredentialSource interface {
	Credentials(ctx context.Context) (Credentials, error)
}

// Credentials for the booking account. The password never reaches logs.
type Credentials struct {
	Username string
	Password string
}

// Notifier is told the final result of a run. Failures there are logged and
// dropped; they never change the outcome.
type Notifier interface {
	Notify(ctx context.Context, result *RunResult) error
}

// Journal records finished runs for later inspection. The booking flow
// never reads it back.
type Journal interface {
	Append(ctx context.Context, result *RunResult) error
}

// Waits collects the per-phase timeouts of a run.
type Waits struct {
	Login    time.Duration
	Popup    time.Duration
	Schedule time.Duration
	Confirm  time.Duration
}

// DefaultWaits mirrors the timings the flow was tuned with on the real
// site.
func DefaultWaits() Waits {
	return Waits{
		Login:    15 * time.Second,
		Popup:    3 * time.Second,
		Schedule: 10 * time.Second,
		Confirm:  10 * time.Second,
	}
}

// Runner drives one complete booking attempt: log in, clear popups, load
// the schedule for the target date, locate the slot, reserve it, verify the
// confirmation. Construct with NewRunner, adjust the optional fields, then
// call Run exactly once.
type Runner struct {
	Driver browser.Driver
	Creds  CredentialSource
	Target Target
	Flow   Flow
	Waits  Waits
	Log    *zap.Logger

	// Notifier and Journal are optional post-run observers.
	Notifier Notifier
	Journal  Journal

	// ArtifactDir, when set, receives a page screenshot for every failed
	// run.
	ArtifactDir string

	// DryRun stops after the slot is located, before anything is reserved.
	DryRun bool
}

// NewRunner wires the required pieces with the default flow and waits.
func NewRunner(driver browser.Driver, creds CredentialSource, target Target) *Runner {
	return &Runner{
		Driver: driver,
		Creds:  creds,
		Target: target,
		Flow:   DefaultFlow(),
		Waits:  DefaultWaits(),
		Log:    zap.NewNop(),
	}
}

// Run performs the booking attempt. It always returns exactly one result,
// and the browser session is always released, whatever path the run takes.
func (r *Runner) Run(ctx context.Context) *RunResult {
	res := NewRunResult(r.Target)
	date := r.Target.Date(res.StartedAt)

	r.Log.Info("starting booking run",
		zap.String("run_id", res.ID.String()),
		zap.String("target", r.Target.String()),
		zap.String("target_date", date.Format("Monday, Jan 2")),
		zap.Bool("dry_run", r.DryRun),
	)

	err := r.attempt(ctx, res, date)
	res.Finish(err)
	if r.DryRun && err == nil {
		res.Message = fmt.Sprintf("dry run: %s is open on %s",
			r.Target, date.Format("Monday, Jan 2"))
	}

	log := r.Log.With(
		zap.String("run_id", res.ID.String()),
		zap.String("outcome", string(res.Outcome)),
		zap.String("stage", string(res.Stage)),
		zap.Duration("elapsed", res.Elapsed()),
	)
	if res.Outcome == OutcomeFailed {
		log.Error("booking run failed", zap.String("message", res.Message))
	} else {
		log.Info("booking run finished", zap.String("message", res.Message))
	}

	r.report(ctx, res)
	return res
}

// attempt walks the booking stages in order. Non-error outcomes surface as
// bare sentinels; failures come back stage-tagged.
func (r *Runner) attempt(ctx context.Context, res *RunResult, date time.Time) (err error) {
	started := false
	defer func() {
		if started && err != nil && Classify(err) == OutcomeFailed {
			r.snapshot(ctx, res)
		}
		if cerr := r.Driver.Close(); cerr != nil {
			r.Log.Warn("failed to release browser session", zap.Error(cerr))
		}
		res.SessionClosed = true
		r.Log.Debug("browser session released")
	}()

	creds, err := r.Creds.Credentials(ctx)
	if err != nil {
		return stageErr(StageLoggedIn, fmt.Errorf("%w: %v", ErrAuthFailed, err))
	}

	if err := r.Driver.Start(ctx); err != nil {
		return stageErr(StageLoggedIn, fmt.Errorf("failed to start browser session: %w", err))
	}
	started = true

	if err := r.login(ctx, creds); err != nil {
		return stageErr(StageLoggedIn, err)
	}
	res.Stage = StageLoggedIn
	r.Log.Info("login successful")

	r.clearPopups(ctx)
	res.Stage = StagePopupsCleared

	if err := r.loadSchedule(ctx, date); err != nil {
		return stageErr(StageScheduleLoaded, err)
	}
	res.Stage = StageScheduleLoaded

	slot, err := r.locateSlot(ctx)
	if err != nil {
		if errors.Is(err, ErrNotAvailable) {
			return err
		}
		return stageErr(StageSlotSelected, err)
	}
	res.Stage = StageSlotSelected
	r.Log.Info("located class slot",
		zap.String("name", slot.Name),
		zap.String("time", slot.Time),
		zap.String("status", string(slot.Status)),
	)

	switch slot.Status {
	case schedule.StatusBooked:
		return ErrAlreadyBooked
	case schedule.StatusFull:
		return fmt.Errorf("%w: %s is full", ErrNotAvailable, r.Target)
	}

	if r.DryRun {
		r.Log.Info("dry run: stopping before reservation")
		return nil
	}

	if err := r.reserve(ctx, slot); err != nil {
		if errors.Is(err, ErrAlreadyBooked) {
			return err
		}
		return stageErr(StageConfirmed, err)
	}
	res.Stage = StageConfirmed

	return nil
}

func (r *Runner) login(ctx context.Context, creds Credentials) error {
	f := r.Flow.Login
	if err := r.Driver.Navigate(ctx, r.Flow.BaseURL); err != nil {
		return err
	}

	// Cookie banners and promo modals land on top of the account menu.
	r.clearPopups(ctx)

	if f.AccountMenu != "" {
		if err := r.Driver.Click(ctx, f.AccountMenu); err != nil {
			return fmt.Errorf("failed to open the account menu: %w", err)
		}
	}
	if err := r.Driver.Click(ctx, f.SignIn); err != nil {
		return fmt.Errorf("failed to open the sign-in form: %w", err)
	}

	if err := r.Driver.SendKeys(ctx, f.Username, creds.Username); err != nil {
		return fmt.Errorf("failed to enter username: %w", err)
	}
	if err := r.Driver.SendKeys(ctx, f.Password, creds.Password); err != nil {
		return fmt.Errorf("failed to enter password: %w", err)
	}
	if f.Submit != "" {
		if err := r.Driver.Click(ctx, f.Submit); err != nil {
			return fmt.Errorf("failed to submit credentials: %w", err)
		}
	} else if err := r.Driver.Submit(ctx, f.Password); err != nil {
		return fmt.Errorf("failed to submit credentials: %w", err)
	}

	if err := r.Driver.WaitVisible(ctx, f.LoggedInMarker, r.Waits.Login); err != nil {
		return fmt.Errorf("%w: account marker did not appear: %v", ErrAuthFailed, err)
	}
	return nil
}

// clearPopups walks the dismissal selectors and clicks whatever is there.
// Nothing in here is allowed to fail the run.
func (r *Runner) clearPopups(ctx context.Context) {
	for _, sel := range r.Flow.Popups {
		if r.Driver.TryClick(ctx, sel, r.Waits.Popup) {
			r.Log.Debug("dismissed popup", zap.String("selector", sel))
		}
	}
}

func (r *Runner) loadSchedule(ctx context.Context, date time.Time) error {
	f := r.Flow.Schedule
	if f.Open != "" {
		if err := r.Driver.Click(ctx, f.Open); err != nil {
			return fmt.Errorf("failed to open the schedule: %w", err)
		}
	}

	if f.LocationFilter != "" && r.Target.Location != "" {
		sel := f.LocationSelector(r.Target.Location)
		if !r.Driver.TryClick(ctx, sel, r.Waits.Popup) {
			r.Log.Debug("location filter not found", zap.String("selector", sel))
		}
	}

	label := schedule.DayLabel(date)
	day := f.DaySelector(label)
	if err := r.Driver.WaitVisible(ctx, day, r.Waits.Schedule); err != nil {
		return fmt.Errorf("calendar did not show day %s: %w", label, err)
	}
	if err := r.Driver.Click(ctx, day); err != nil {
		return fmt.Errorf("failed to select day %s: %w", label, err)
	}
	return nil
}

// locateSlot scrolls through the schedule until the target session is
// rendered, then reads its status out of the page HTML.
func (r *Runner) locateSlot(ctx context.Context) (schedule.Slot, error) {
	f := r.Flow.Schedule
	matcher := schedule.Matcher{Class: r.Target.Class, Time: r.Target.Time}
	sel := f.Selectors()

	for pass := 0; pass < f.ScrollPasses; pass++ {
		html, err := r.Driver.OuterHTML(ctx)
		if err != nil {
			return schedule.Slot{}, fmt.Errorf("failed to read the schedule page: %w", err)
		}

		slots, err := schedule.Parse(html, sel)
		if err != nil {
			return schedule.Slot{}, err
		}
		if slot, ok := schedule.Find(slots, matcher); ok {
			return slot, nil
		}

		if err := r.Driver.ScrollBy(ctx, f.ScrollStep); err != nil {
			return schedule.Slot{}, fmt.Errorf("failed to scroll the schedule: %w", err)
		}
		select {
		case <-ctx.Done():
			return schedule.Slot{}, ctx.Err()
		case <-time.After(f.ScrollPause):
		}
	}

	return schedule.Slot{}, fmt.Errorf("%w: no %s session at %s found after %d scroll passes",
		ErrNotAvailable, r.Target.Class, r.Target.Time, f.ScrollPasses)
}

func (r *Runner) reserve(ctx context.Context, slot schedule.Slot) error {
	f := r.Flow.Schedule
	if err := r.Driver.Click(ctx, f.CardSelector(r.Target.Time, slot.Name)); err != nil {
		return fmt.Errorf("failed to select the session card: %w", err)
	}

	reserve := f.ReserveButton()
	if err := r.Driver.WaitVisible(ctx, reserve, r.Waits.Confirm); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("waiting for the reserve control: %w", ctx.Err())
		}
		// The reserve control disappears once the account already holds
		// the session.
		return ErrAlreadyBooked
	}
	if err := r.Driver.Click(ctx, reserve); err != nil {
		return fmt.Errorf("failed to click %s: %w", f.ReserveLabel, err)
	}

	if err := r.Driver.WaitVisible(ctx, r.Flow.ConfirmationMarker, r.Waits.Confirm); err != nil {
		return fmt.Errorf("%w after reserving: %v", ErrConfirmTimeout, err)
	}
	return nil
}

// snapshot grabs a failure screenshot while the session is still open.
func (r *Runner) snapshot(ctx context.Context, res *RunResult) {
	if r.ArtifactDir == "" {
		return
	}

	name := fmt.Sprintf("run-%s.png", res.ID)
	path, err := browser.SaveScreenshot(context.WithoutCancel(ctx), r.Driver, r.ArtifactDir, name)
	if err != nil {
		r.Log.Debug("failed to capture failure screenshot", zap.Error(err))
		return
	}
	r.Log.Info("saved failure screenshot", zap.String("path", path))
}

// report fans the result out to the optional observers.
func (r *Runner) report(ctx context.Context, res *RunResult) {
	ctx = context.WithoutCancel(ctx)
	if r.Notifier != nil {
		if err := r.Notifier.Notify(ctx, res); err != nil {
			r.Log.Warn("failed to send notification", zap.Error(err))
		}
	}
	if r.Journal != nil {
		if err := r.Journal.Append(ctx, res); err != nil {
			r.Log.Warn("failed to record run", zap.Error(err))
		}
	}
}
