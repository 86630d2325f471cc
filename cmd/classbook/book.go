package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"classbook"
	"classbook/browser"
	"classbook/config"
	"classbook/history"
	"classbook/notify"
)

// runBook performs one booking attempt and returns the process exit code.
func runBook(args []string) int {
	fs := flag.NewFlagSet("book", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to the YAML config file")
	class := fs.String("class", "", "Class name to book")
	timeOfDay := fs.String("time", "", "Class time, e.g. \"6:15 pm\"")
	location := fs.String("location", "", "Studio location")
	daysAhead := fs.Int("days-ahead", 0, "How many days out the class is")
	headless := fs.Bool("headless", true, "Run the browser headless")
	dryRun := fs.Bool("dry-run", false, "Stop after locating the slot, book nothing")
	verbose := fs.Bool("verbose", false, "Development logging at debug level")
	timeout := fs.Duration("timeout", 5*time.Minute, "Overall run deadline")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	// Flags the user actually set beat both the file and the environment.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "class":
			cfg.Target.Class = *class
		case "time":
			cfg.Target.Time = *timeOfDay
		case "location":
			cfg.Target.Location = *location
		case "days-ahead":
			cfg.Target.DaysAhead = *daysAhead
		case "headless":
			cfg.Browser.Headless = *headless
		case "verbose":
			if *verbose {
				cfg.Logging.Level = "debug"
				cfg.Logging.Development = true
			}
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	defer func() { _ = logger.Sync() }()

	notifier := buildNotifier(cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	runner := classbook.NewRunner(
		browser.NewSession(cfg.BuildBrowser(), logger),
		cfg.CredentialSource(),
		cfg.BuildTarget(),
	)
	runner.Flow = cfg.BuildFlow()
	runner.Log = logger
	runner.Notifier = notifier
	runner.ArtifactDir = cfg.Artifacts.Dir
	runner.DryRun = *dryRun

	if cfg.History.Path != "" {
		journal, err := history.NewJournal(cfg.History.Path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to open run journal: %v\n", err)
			return 2
		}
		defer journal.Close()
		runner.Journal = journal
	}

	res := runner.Run(ctx)

	if res.ExitCode() == 0 {
		fmt.Printf("✓ %s: %s\n", res.Outcome, res.Message)
	} else {
		fmt.Fprintf(os.Stderr, "✗ %s: %s\n", res.Outcome, res.Message)
	}
	return res.ExitCode()
}

// buildNotifier assembles the configured channels, falling back to plain
// logging when none are set up. Notifications are best-effort observers, so
// a channel that cannot be built is skipped with a warning rather than
// stopping the booking attempt.
func buildNotifier(cfg *config.Config, logger *zap.Logger) classbook.Notifier {
	var channels notify.Multi

	if tg := cfg.Notify.Telegram; tg.ChatID != 0 {
		if token := os.Getenv(tg.TokenEnv); token == "" {
			logger.Warn("skipping telegram notifications",
				zap.String("missing", tg.TokenEnv))
		} else if n, err := notify.NewTelegramNotifier(token, tg.ChatID); err != nil {
			logger.Warn("skipping telegram notifications", zap.Error(err))
		} else {
			channels = append(channels, n)
		}
	}

	if mail := cfg.Notify.SMTP; mail.Host != "" {
		n := &notify.SMTPNotifier{
			Host: mail.Host,
			Port: mail.Port,
			From: mail.From,
			To:   mail.To,
		}
		if mail.UserEnv != "" {
			n.Username = os.Getenv(mail.UserEnv)
			n.Password = os.Getenv(mail.PasswordEnv)
		}
		channels = append(channels, n)
	}

	if len(channels) == 0 {
		return notify.NewLogNotifier(logger)
	}
	return channels
}
