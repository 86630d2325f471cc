// Package notify delivers the outcome of a finished run over the configured
// channels. Every channel sends the same one-line summary; delivery failures
// are reported to the caller, which logs and drops them.
package notify

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"classbook"
)

// Summary is the one-line message every channel delivers.
func Summary(res *classbook.RunResult) string {
	return fmt.Sprintf("%s %s: %s", glyph(res.Outcome), res.Outcome, res.Message)
}

// Subject is the short form used where a subject line exists.
func Subject(res *classbook.RunResult) string {
	return fmt.Sprintf("classbook %s: %s", res.Outcome, res.Target)
}

func glyph(outcome classbook.Outcome) string {
	switch outcome {
	case classbook.OutcomeSuccess:
		return "✅"
	case classbook.OutcomeAlreadyBooked:
		return "👌"
	case classbook.OutcomeNotAvailable:
		return "⚠️"
	default:
		return "❌"
	}
}

// LogNotifier writes the outcome to the process log. It is the fallback
// channel when nothing else is configured.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, res *classbook.RunResult) error {
	n.log.Info("run outcome",
		zap.String("outcome", string(res.Outcome)),
		zap.String("message", res.Message),
	)
	return nil
}

// Multi fans a result out to every channel. Later channels still run when an
// earlier one fails; the failures come back joined.
type Multi []classbook.Notifier

func (m Multi) Notify(ctx context.Context, res *classbook.RunResult) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, res); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
