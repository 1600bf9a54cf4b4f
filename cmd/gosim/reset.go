package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	sim "github.com/everydev1618/gosim"
	"github.com/everydev1618/gosim/store"
)

func resetCmd(args []string) {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	dbPath := fs.String("db", sim.DefaultDBPath(), "SQLite results path")
	yes := fs.Bool("yes", false, "Skip confirmation prompt")

	fs.Usage = func() {
		fmt.Println(`Usage: gosim reset [options]

Delete every recorded result from the results database.

Options:`)
		fs.PrintDefaults()
		fmt.Println(`
Examples:
  gosim reset
  gosim reset --yes
  gosim reset --db /path/to/results.db`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	dbAbs, _ := filepath.Abs(*dbPath)
	if _, err := os.Stat(*dbPath); os.IsNotExist(err) {
		fmt.Printf("Nothing to reset, %s does not exist.\n", dbAbs)
		return
	}

	backend, err := store.NewSQLite(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database %s: %v\n", dbAbs, err)
		os.Exit(1)
	}
	defer backend.Close()

	ctx := context.Background()
	runs, err := backend.Runs(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading runs: %v\n", err)
		os.Exit(1)
	}
	if len(runs) == 0 {
		fmt.Println("Nothing to reset, already clean.")
		return
	}

	fmt.Printf("  Database: %s\n", dbAbs)
	fmt.Printf("  Runs:     %d\n", len(runs))
	fmt.Println()

	// Confirm unless --yes.
	if !*yes {
		fmt.Print("Are you sure you want to delete all recorded results? [y/N] ")
		scanner := bufio.NewScanner(os.Stdin)
		scanner.Scan()
		answer := strings.TrimSpace(strings.ToLower(scanner.Text()))
		if answer != "y" && answer != "yes" {
			fmt.Println("Aborted.")
			return
		}
		fmt.Println()
	}

	n, err := backend.Clear(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error clearing results: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Deleted %s records.\n", humanize.Comma(int64(n)))
}
