package main

import (
	"fmt"
	"os"
	"strings"
)

const version = "0.4.0"

func main() {
	args := os.Args[1:]

	// book is the default subcommand, so bare flags work too:
	// classbook -dry-run
	if len(args) == 0 {
		os.Exit(runBook(nil))
	}
	if strings.HasPrefix(args[0], "-") {
		os.Exit(runBook(args))
	}

	switch args[0] {
	case "book":
		os.Exit(runBook(args[1:]))
	case "history":
		os.Exit(runHistory(args[1:]))
	case "version", "--version":
		fmt.Printf("classbook %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command: %s\n\n", args[0])
		printUsage()
		os.Exit(2)
	}
}

func printUsage() {
	fmt.Println("classbook - unattended class booking")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  classbook [book] [flags]")
	fmt.Println("  classbook history [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  book       Run one booking attempt (default)")
	fmt.Println("  history    Show recent runs from the journal")
	fmt.Println("  version    Show the version")
	fmt.Println("  help       Show this help message")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  CLASSBOOK_EMAIL     Account email (variable name is configurable)")
	fmt.Println("  CLASSBOOK_PASSWORD  Account password (variable name is configurable)")
	fmt.Println("  CLASSBOOK_CONFIG    Path to the YAML config file")
	fmt.Println()
	fmt.Println("book exits 0 when the class ends up held by the account, whether this")
	fmt.Println("run booked it or an earlier one did, and non-zero otherwise.")
}
