package main

import (
	"flag"
	"fmt"
	"os"

	"classbook/config"
	"classbook/history"
)

// runHistory prints recent journal entries, newest first.
func runHistory(args []string) int {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to the YAML config file")
	limit := fs.Int("limit", 20, "Maximum number of runs to show")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	if cfg.History.Path == "" {
		fmt.Fprintf(os.Stderr, "Error: history.path is not configured, no runs are recorded\n")
		return 2
	}

	journal, err := history.NewJournal(cfg.History.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open run journal: %v\n", err)
		return 1
	}
	defer journal.Close()

	entries, err := journal.List(*limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to list runs: %v\n", err)
		return 1
	}

	if len(entries) == 0 {
		fmt.Println("No runs recorded.")
		return 0
	}

	fmt.Printf("%-19s %-13s %-11s %-20s %-9s %s\n",
		"STARTED", "OUTCOME", "TARGET", "CLASS", "TIME", "MESSAGE")
	fmt.Println("--------------------------------------------------------------------------------------------------------------")

	for _, entry := range entries {
		class := entry.Class
		if len(class) > 20 {
			class = class[:17] + "..."
		}
		message := entry.Message
		if len(message) > 60 {
			message = message[:57] + "..."
		}

		fmt.Printf("%-19s %-13s %-11s %-20s %-9s %s\n",
			entry.StartedAt.Format("2006-01-02 15:04:05"),
			entry.Outcome,
			entry.TargetDate.Format("2006-01-02"),
			class,
			entry.Time,
			message,
		)
	}
	return 0
}
