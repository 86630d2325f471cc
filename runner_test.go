package classbook

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDriver is a scripted browser.Driver. Every page operation is
// recorded; selectors listed in fail return their error, selectors in
// missing make WaitVisible and TryClick miss. Like the live session, a
// call on a done context reports the context error before touching the
// page; setting cancelOn cancels the run while that call is in flight.
type fakeDriver struct {
	calls    []string
	closed   int
	startErr error
	html     string
	htmlErr  error
	fail     map[string]error
	missing  map[string]bool
	cancelOn string
	cancel   context.CancelFunc
}

func newFakeDriver(html string) *fakeDriver {
	return &fakeDriver{
		html:    html,
		fail:    map[string]error{},
		missing: map[string]bool{},
	}
}

func (d *fakeDriver) record(op, detail string) {
	call := op + " " + detail
	d.calls = append(d.calls, call)
	if d.cancel != nil && d.cancelOn != "" && strings.HasPrefix(call, d.cancelOn) {
		d.cancel()
	}
}

func (d *fakeDriver) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.record("start", "")
	return d.startErr
}

func (d *fakeDriver) Close() error {
	d.closed++
	return nil
}

func (d *fakeDriver) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.record("navigate", url)
	return d.fail[url]
}

func (d *fakeDriver) WaitVisible(ctx context.Context, sel string, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.record("wait", sel)
	if err := d.fail[sel]; err != nil {
		return err
	}
	if d.missing[sel] {
		return fmt.Errorf("element %q not visible: timeout", sel)
	}
	return nil
}

func (d *fakeDriver) Click(ctx context.Context, sel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.record("click", sel)
	return d.fail[sel]
}

func (d *fakeDriver) TryClick(ctx context.Context, sel string, _ time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	d.record("tryclick", sel)
	return !d.missing[sel]
}

func (d *fakeDriver) SendKeys(ctx context.Context, sel, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.record("keys", sel)
	return d.fail[sel]
}

func (d *fakeDriver) Submit(ctx context.Context, sel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.record("submit", sel)
	return d.fail[sel]
}

func (d *fakeDriver) OuterHTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	d.record("html", "")
	return d.html, d.htmlErr
}

func (d *fakeDriver) ScrollBy(ctx context.Context, pixels int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.record("scroll", fmt.Sprint(pixels))
	return d.fail["scroll"]
}

func (d *fakeDriver) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.record("screenshot", "")
	return []byte("png"), nil
}

// callIndex returns the position of the first recorded call starting with
// prefix, or -1.
func (d *fakeDriver) callIndex(prefix string) int {
	for i, c := range d.calls {
		if strings.HasPrefix(c, prefix) {
			return i
		}
	}
	return -1
}

func (d *fakeDriver) called(prefix string) bool {
	return d.callIndex(prefix) >= 0
}

type staticCreds struct {
	creds Credentials
	err   error
}

func (s staticCreds) Credentials(context.Context) (Credentials, error) {
	return s.creds, s.err
}

// Schedule page fixtures matching the default card fragments.
const (
	openSlotHTML = `<html><body>
		<div class="session-card_sessionCard__T4kkq">
			<div class="session-card_sessionTime__hNAfR">6:15 pm</div>
			<div class="session-card_sessionName__Jq2wd">Yoga Sculpt</div>
			<button>Reserve</button>
		</div></body></html>`

	bookedSlotHTML = `<html><body>
		<div class="session-card_sessionCard__T4kkq">
			<div class="session-card_sessionTime__hNAfR">6:15 pm</div>
			<div class="session-card_sessionName__Jq2wd">Yoga Sculpt</div>
			<div class="session-card_bookedBadge__w0Prt">Booked</div>
		</div></body></html>`

	fullSlotHTML = `<html><body>
		<div class="session-card_sessionCard__T4kkq">
			<div class="session-card_sessionTime__hNAfR">6:15 pm</div>
			<div class="session-card_sessionName__Jq2wd">Yoga Sculpt</div>
			<span>Waitlist</span>
		</div></body></html>`

	// A full class ahead of the target class, both at the target time.
	twoSessionsHTML = `<html><body>
		<div class="session-card_sessionCard__T4kkq">
			<div class="session-card_sessionTime__hNAfR">6:15 pm</div>
			<div class="session-card_sessionName__Jq2wd">CoreFlow</div>
			<span>Waitlist</span>
		</div>
		<div class="session-card_sessionCard__T4kkq">
			<div class="session-card_sessionTime__hNAfR">6:15 pm</div>
			<div class="session-card_sessionName__Jq2wd">Yoga Sculpt</div>
			<button>Reserve</button>
		</div></body></html>`

	emptyScheduleHTML = `<html><body><div class="schedule"></div></body></html>`
)

// Test helper: a runner against the fake driver with fast timings.
func newTestRunner(d *fakeDriver) *Runner {
	creds := staticCreds{creds: Credentials{Username: "yogi@example.com", Password: "om mani"}}
	r := NewRunner(d, creds, testTarget())
	r.Waits = Waits{
		Login:    time.Millisecond,
		Popup:    time.Millisecond,
		Schedule: time.Millisecond,
		Confirm:  time.Millisecond,
	}
	r.Flow.Schedule.ScrollPasses = 3
	r.Flow.Schedule.ScrollPause = time.Millisecond
	return r
}

func TestRunner_SuccessfulBooking(t *testing.T) {
	d := newFakeDriver(openSlotHTML)
	r := newTestRunner(d)

	res := r.Run(context.Background())

	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, StageConfirmed, res.Stage)
	assert.Equal(t, 0, res.ExitCode())
	assert.Contains(t, res.Message, "booked Yoga Sculpt at 6:15 pm")
	assert.True(t, res.SessionClosed)
	assert.Equal(t, 1, d.closed)

	// The stages must run in order.
	nav := d.callIndex("navigate https://www.corepoweryoga.com/")
	signIn := d.callIndex("click button[data-position='profile.1-sign-in']")
	marker := d.callIndex("wait //*[text()[contains(., 'Book a Class')]]")
	day := d.callIndex("click //button[contains(@class, 'calendar-day')")
	card := d.callIndex("click //div[contains(@class, 'session-card_sessionCard')]")
	reserve := d.callIndex("click //button[normalize-space(.) = 'Reserve']")
	confirm := d.callIndex("wait //*[text()[contains(., 'Reserved')]]")

	for name, idx := range map[string]int{
		"navigate": nav, "sign-in": signIn, "login marker": marker,
		"day": day, "card": card, "reserve": reserve, "confirm": confirm,
	} {
		require.GreaterOrEqual(t, idx, 0, "missing %s call", name)
	}
	assert.Less(t, nav, signIn)
	assert.Less(t, signIn, marker)
	assert.Less(t, marker, day)
	assert.Less(t, day, card)
	assert.Less(t, card, reserve)
	assert.Less(t, reserve, confirm)
}

func TestRunner_SubmitsWithEnterByDefault(t *testing.T) {
	d := newFakeDriver(openSlotHTML)
	r := newTestRunner(d)

	r.Run(context.Background())

	assert.True(t, d.called("submit input[name='password']"),
		"without a submit control the password field takes Enter")
}

func TestRunner_DismissesPopupsBeforeAndAfterLogin(t *testing.T) {
	d := newFakeDriver(openSlotHTML)
	r := newTestRunner(d)

	res := r.Run(context.Background())

	require.Equal(t, OutcomeSuccess, res.Outcome)

	var popupPasses int
	for _, c := range d.calls {
		if strings.HasPrefix(c, "tryclick //button[contains(., 'Close')]") {
			popupPasses++
		}
	}
	assert.Equal(t, 2, popupPasses, "one pass on landing, one after login")
}

func TestRunner_MissingCredentials(t *testing.T) {
	d := newFakeDriver(openSlotHTML)
	r := newTestRunner(d)
	r.Creds = staticCreds{err: errors.New("missing required environment variable: CLASSBOOK_EMAIL")}

	res := r.Run(context.Background())

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, 1, res.ExitCode())
	assert.Contains(t, res.Message, "login failed")
	assert.Contains(t, res.Message, "CLASSBOOK_EMAIL")

	assert.False(t, d.called("start"), "no browser work before credentials resolve")
	assert.Equal(t, 1, d.closed, "release still runs")
	assert.True(t, res.SessionClosed)
}

func TestRunner_BrowserStartFailure(t *testing.T) {
	d := newFakeDriver(openSlotHTML)
	d.startErr = errors.New("chrome executable not found")
	r := newTestRunner(d)
	r.ArtifactDir = t.TempDir()

	res := r.Run(context.Background())

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Contains(t, res.Message, "failed to start browser session")
	assert.Equal(t, 1, d.closed)
	assert.False(t, d.called("screenshot"), "no screenshot without a live session")
}

func TestRunner_LoginVerificationTimeout(t *testing.T) {
	d := newFakeDriver(openSlotHTML)
	r := newTestRunner(d)
	d.missing[r.Flow.Login.LoggedInMarker] = true

	res := r.Run(context.Background())

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, StageStart, res.Stage, "login never completed")
	assert.Contains(t, res.Message, "login failed")
	assert.False(t, d.called("html"), "no schedule work after a failed login")
	assert.Equal(t, 1, d.closed)
}

func TestRunner_SlotAbsent(t *testing.T) {
	d := newFakeDriver(emptyScheduleHTML)
	r := newTestRunner(d)

	res := r.Run(context.Background())

	assert.Equal(t, OutcomeNotAvailable, res.Outcome)
	assert.Equal(t, 1, res.ExitCode())
	assert.Equal(t, StageScheduleLoaded, res.Stage)
	assert.Contains(t, res.Message, "not available")

	var scrolls int
	for _, c := range d.calls {
		if strings.HasPrefix(c, "scroll") {
			scrolls++
		}
	}
	assert.Equal(t, r.Flow.Schedule.ScrollPasses, scrolls, "the hunt is bounded")
	assert.False(t, d.called("click //div[contains(@class, 'session-card_sessionCard')]"))
	assert.Equal(t, 1, d.closed)
}

func TestRunner_TwoSessionsAtTargetTime(t *testing.T) {
	d := newFakeDriver(twoSessionsHTML)
	r := newTestRunner(d)

	res := r.Run(context.Background())

	require.Equal(t, OutcomeSuccess, res.Outcome)
	card := d.callIndex("click //div[contains(@class, 'session-card_sessionCard')]")
	require.GreaterOrEqual(t, card, 0)
	assert.Contains(t, d.calls[card], "'Yoga Sculpt'",
		"the click must single out the card the matcher picked")
}

func TestRunner_SlotAlreadyBooked(t *testing.T) {
	d := newFakeDriver(bookedSlotHTML)
	r := newTestRunner(d)

	res := r.Run(context.Background())

	assert.Equal(t, OutcomeAlreadyBooked, res.Outcome)
	assert.Equal(t, 0, res.ExitCode(), "holding the slot is not a failure")
	assert.Equal(t, StageSlotSelected, res.Stage)
	assert.False(t, d.called("click //button[normalize-space(.) = 'Reserve']"),
		"no second reservation attempt")
	assert.Equal(t, 1, d.closed)
}

func TestRunner_SlotFull(t *testing.T) {
	d := newFakeDriver(fullSlotHTML)
	r := newTestRunner(d)

	res := r.Run(context.Background())

	assert.Equal(t, OutcomeNotAvailable, res.Outcome)
	assert.Contains(t, res.Message, "is full")
	assert.Equal(t, 1, res.ExitCode())
}

func TestRunner_ReserveControlMissing(t *testing.T) {
	d := newFakeDriver(openSlotHTML)
	r := newTestRunner(d)
	d.missing[r.Flow.Schedule.ReserveButton()] = true

	res := r.Run(context.Background())

	assert.Equal(t, OutcomeAlreadyBooked, res.Outcome)
	assert.Equal(t, 0, res.ExitCode())
	assert.Equal(t, 1, d.closed)
}

func TestRunner_CancelledWhileReserving(t *testing.T) {
	d := newFakeDriver(openSlotHTML)
	r := newTestRunner(d)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.cancelOn = "click //div[contains(@class, 'session-card_sessionCard')]"
	d.cancel = cancel

	res := r.Run(ctx)

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, 1, res.ExitCode(), "a cancelled run never reports the class as held")
	assert.Equal(t, StageSlotSelected, res.Stage)
	assert.Contains(t, res.Message, "context canceled")
	assert.False(t, d.called("click //button[normalize-space(.) = 'Reserve']"))
	assert.Equal(t, 1, d.closed)
}

func TestRunner_ConfirmationTimeout(t *testing.T) {
	d := newFakeDriver(openSlotHTML)
	r := newTestRunner(d)
	r.ArtifactDir = filepath.Join(t.TempDir(), "artifacts")
	d.missing[r.Flow.ConfirmationMarker] = true

	res := r.Run(context.Background())

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Contains(t, res.Message, "booking confirmation timed out")
	assert.Equal(t, StageSlotSelected, res.Stage)

	shot := filepath.Join(r.ArtifactDir, fmt.Sprintf("run-%s.png", res.ID))
	_, err := os.Stat(shot)
	assert.NoError(t, err, "failed runs leave a screenshot behind")
	assert.Equal(t, 1, d.closed)
}

func TestRunner_DryRunStopsBeforeReserving(t *testing.T) {
	d := newFakeDriver(openSlotHTML)
	r := newTestRunner(d)
	r.DryRun = true

	res := r.Run(context.Background())

	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, 0, res.ExitCode())
	assert.Equal(t, StageSlotSelected, res.Stage)
	assert.True(t, strings.HasPrefix(res.Message, "dry run:"), "got %q", res.Message)
	assert.False(t, d.called("click //div[contains(@class, 'session-card_sessionCard')]"))
	assert.False(t, d.called("click //button[normalize-space(.) = 'Reserve']"))
}

func TestRunner_ContextCancelledMidRun(t *testing.T) {
	d := newFakeDriver(emptyScheduleHTML)
	r := newTestRunner(d)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := r.Run(ctx)

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.True(t, res.SessionClosed)
	assert.Equal(t, 1, d.closed, "cancellation still releases the session")
}

type recordingNotifier struct {
	results []*RunResult
	err     error
}

func (n *recordingNotifier) Notify(_ context.Context, result *RunResult) error {
	n.results = append(n.results, result)
	return n.err
}

type recordingJournal struct {
	results []*RunResult
	err     error
}

func (j *recordingJournal) Append(_ context.Context, result *RunResult) error {
	j.results = append(j.results, result)
	return j.err
}

func TestRunner_ObserversSeeEveryOutcome(t *testing.T) {
	d := newFakeDriver(emptyScheduleHTML)
	r := newTestRunner(d)
	notifier := &recordingNotifier{}
	journal := &recordingJournal{}
	r.Notifier = notifier
	r.Journal = journal

	res := r.Run(context.Background())

	require.Equal(t, OutcomeNotAvailable, res.Outcome)
	require.Len(t, notifier.results, 1)
	require.Len(t, journal.results, 1)
	assert.Same(t, res, notifier.results[0])
	assert.Same(t, res, journal.results[0])
}

func TestRunner_ObserverErrorsDoNotChangeOutcome(t *testing.T) {
	d := newFakeDriver(openSlotHTML)
	r := newTestRunner(d)
	r.Notifier = &recordingNotifier{err: errors.New("telegram down")}
	r.Journal = &recordingJournal{err: errors.New("disk full")}

	res := r.Run(context.Background())

	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, 0, res.ExitCode())
}

func TestNewRunner_Defaults(t *testing.T) {
	d := newFakeDriver(openSlotHTML)
	r := NewRunner(d, staticCreds{}, testTarget())

	assert.Equal(t, DefaultFlow().BaseURL, r.Flow.BaseURL)
	assert.Equal(t, DefaultWaits(), r.Waits)
	assert.NotNil(t, r.Log)
}
