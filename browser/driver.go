package browser

import (
	"context"
	"time"
)

// Driver is the surface the booking flow needs from a browser. Session is
// the production implementation; tests substitute a scripted fake.
type Driver interface {
	// Start launches or attaches the browser. Close releases it; it is safe
	// to call more than once, including after a failed Start.
	Start(ctx context.Context) error
	Close() error

	Navigate(ctx context.Context, url string) error
	// WaitVisible blocks until the element at sel is rendered, or timeout.
	WaitVisible(ctx context.Context, sel string, timeout time.Duration) error
	Click(ctx context.Context, sel string) error
	// TryClick clicks sel if it shows up within timeout. A missing element
	// is reported as false, never as an error.
	TryClick(ctx context.Context, sel string, timeout time.Duration) bool
	SendKeys(ctx context.Context, sel, text string) error
	// Submit presses Enter on the element at sel.
	Submit(ctx context.Context, sel string) error
	// OuterHTML returns the full markup of the current page.
	OuterHTML(ctx context.Context) (string, error)
	ScrollBy(ctx context.Context, pixels int) error
	// Screenshot captures the full page as PNG bytes.
	Screenshot(ctx context.Context) ([]byte, error)
}
