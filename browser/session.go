package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"
)

// ErrNotStarted is returned when a page operation runs before Start.
var ErrNotStarted = errors.New("browser session not started")

// Options configures how the browser is launched and driven.
type Options struct {
	Headless bool

	// SlowMo pauses after every mutating action, which makes a headed run
	// watchable.
	SlowMo time.Duration

	ViewportWidth  int
	ViewportHeight int

	UserAgent string

	// ExecPath points at a specific Chrome binary when the default lookup
	// is not wanted.
	ExecPath string

	// RemoteURL attaches to an already running DevTools endpoint instead
	// of launching a browser.
	RemoteURL string

	// NavigateTimeout bounds full page loads; ActionTimeout bounds every
	// other page operation.
	NavigateTimeout time.Duration
	ActionTimeout   time.Duration
}

// DefaultOptions returns the launch settings the flow was tuned with.
func DefaultOptions() Options {
	return Options{
		Headless:        true,
		ViewportWidth:   1280,
		ViewportHeight:  800,
		NavigateTimeout: 60 * time.Second,
		ActionTimeout:   15 * time.Second,
	}
}

// ApplyCI locks the options down for unattended runs when the CI
// environment variable says so.
func (o *Options) ApplyCI() {
	if os.Getenv("CI") == "true" {
		o.Headless = true
		o.SlowMo = 0
	}
}

// Session drives one Chrome instance through chromedp. It is meant for a
// single flow at a time; methods are not safe for concurrent use.
type Session struct {
	opts Options
	log  *zap.Logger

	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
}

// NewSession prepares a session with the given options. The browser itself
// is not launched until Start.
func NewSession(opts Options, log *zap.Logger) *Session {
	if opts.NavigateTimeout <= 0 {
		opts.NavigateTimeout = DefaultOptions().NavigateTimeout
	}
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = DefaultOptions().ActionTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{opts: opts, log: log}
}

// Start launches Chrome (or attaches to RemoteURL) and fixes the viewport.
func (s *Session) Start(ctx context.Context) error {
	if s.ctx != nil {
		return errors.New("browser session already started")
	}

	var allocCtx context.Context
	if s.opts.RemoteURL != "" {
		allocCtx, s.allocCancel = chromedp.NewRemoteAllocator(ctx, s.opts.RemoteURL)
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", s.opts.Headless),
			chromedp.Flag("disable-gpu", true),
			chromedp.WindowSize(s.opts.ViewportWidth, s.opts.ViewportHeight),
		)
		if s.opts.UserAgent != "" {
			opts = append(opts, chromedp.UserAgent(s.opts.UserAgent))
		}
		if s.opts.ExecPath != "" {
			opts = append(opts, chromedp.ExecPath(s.opts.ExecPath))
		}
		allocCtx, s.allocCancel = chromedp.NewExecAllocator(ctx, opts...)
	}

	s.ctx, s.cancel = chromedp.NewContext(allocCtx, chromedp.WithLogf(s.logf))

	err := chromedp.Run(s.ctx,
		chromedp.EmulateViewport(int64(s.opts.ViewportWidth), int64(s.opts.ViewportHeight)),
	)
	if err != nil {
		s.Close()
		return fmt.Errorf("failed to start browser: %w", err)
	}

	s.log.Debug("browser session started",
		zap.Bool("headless", s.opts.Headless),
		zap.String("remote_url", s.opts.RemoteURL),
	)
	return nil
}

// Close shuts the browser down. Safe to call repeatedly and after a failed
// Start.
func (s *Session) Close() error {
	var err error
	if s.ctx != nil {
		// Graceful cancel waits for the browser process to exit.
		err = chromedp.Cancel(s.ctx)
		s.ctx = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.allocCancel != nil {
		s.allocCancel()
		s.allocCancel = nil
	}
	return err
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	err := s.run(ctx, s.opts.NavigateTimeout, chromedp.Navigate(url))
	if err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	s.pause()
	return nil
}

func (s *Session) WaitVisible(ctx context.Context, sel string, timeout time.Duration) error {
	err := s.run(ctx, timeout, chromedp.WaitVisible(sel, queryOpt(sel)))
	if err != nil {
		return fmt.Errorf("element %q not visible: %w", sel, err)
	}
	return nil
}

func (s *Session) Click(ctx context.Context, sel string) error {
	err := s.run(ctx, s.opts.ActionTimeout, chromedp.Click(sel, queryOpt(sel)))
	if err != nil {
		return fmt.Errorf("failed to click %q: %w", sel, err)
	}
	s.pause()
	return nil
}

// TryClick is the tolerant variant of Click used for popups and other
// elements that may legitimately be absent.
func (s *Session) TryClick(ctx context.Context, sel string, timeout time.Duration) bool {
	err := s.run(ctx, timeout, chromedp.Click(sel, queryOpt(sel)))
	if err != nil {
		s.log.Debug("try-click missed", zap.String("selector", sel), zap.Error(err))
		return false
	}
	s.pause()
	return true
}

func (s *Session) SendKeys(ctx context.Context, sel, text string) error {
	err := s.run(ctx, s.opts.ActionTimeout, chromedp.SendKeys(sel, text, queryOpt(sel)))
	if err != nil {
		return fmt.Errorf("failed to type into %q: %w", sel, err)
	}
	s.pause()
	return nil
}

func (s *Session) Submit(ctx context.Context, sel string) error {
	err := s.run(ctx, s.opts.ActionTimeout, chromedp.SendKeys(sel, kb.Enter, queryOpt(sel)))
	if err != nil {
		return fmt.Errorf("failed to submit %q: %w", sel, err)
	}
	s.pause()
	return nil
}

func (s *Session) OuterHTML(ctx context.Context) (string, error) {
	var html string
	err := s.run(ctx, s.opts.ActionTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	if err != nil {
		return "", fmt.Errorf("failed to read page HTML: %w", err)
	}
	return html, nil
}

func (s *Session) ScrollBy(ctx context.Context, pixels int) error {
	err := s.run(ctx, s.opts.ActionTimeout,
		chromedp.Evaluate(fmt.Sprintf("window.scrollBy(0, %d)", pixels), nil),
	)
	if err != nil {
		return fmt.Errorf("failed to scroll: %w", err)
	}
	s.pause()
	return nil
}

func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := s.run(ctx, s.opts.ActionTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		buf, err = page.CaptureScreenshot().
			WithCaptureBeyondViewport(true).
			Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return buf, nil
}

// run executes chromedp actions on the session context under a deadline.
// The caller context is only consulted for early cancellation; the browser
// context already descends from the one handed to Start.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.ctx == nil {
		return ErrNotStarted
	}

	tctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	return chromedp.Run(tctx, actions...)
}

func (s *Session) pause() {
	if s.opts.SlowMo > 0 {
		time.Sleep(s.opts.SlowMo)
	}
}

func (s *Session) logf(format string, args ...interface{}) {
	s.log.Sugar().Debugf(format, args...)
}
