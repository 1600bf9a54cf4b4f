package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	sim "github.com/everydev1618/gosim"
	"github.com/everydev1618/gosim/config"
	"github.com/everydev1618/gosim/internal/periodic"
	"github.com/everydev1618/gosim/store"
)

// scheduleCmd runs one or more run files on a cron schedule until interrupted.
func scheduleCmd(args []string) {
	fs := flag.NewFlagSet("schedule", flag.ExitOnError)
	expr := fs.String("cron", "@every 1h", "Cron expression or descriptor")
	dbPath := fs.String("db", "", "SQLite results path (default ~/.gosim/results.db)")
	events := fs.String("events", sim.DefaultEventLogPath(), "Append worker events as JSON lines to this file")
	logLevel := fs.String("log-level", "info", "Log level: debug, info, warn, error")
	logFormat := fs.String("log-format", "text", "Log format: text or json")

	fs.Usage = func() {
		fmt.Println(`Usage: gosim schedule <file.yaml>... [options]

Run each run file on a cron schedule until interrupted. Results always go to
the SQLite store so that successive runs accumulate.

Options:`)
		fs.PrintDefaults()
		fmt.Println(`
Examples:
  gosim schedule --cron "@every 30m" opinion.yaml
  gosim schedule --cron "0 3 * * *" small.yaml large.yaml`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: no run file specified")
		fs.Usage()
		os.Exit(1)
	}

	logger, err := newLogger(*logLevel, *logFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	runner := periodic.New(scheduledRun(*dbPath, *events, logger), logger)
	for _, file := range fs.Args() {
		// Reject broken files up front rather than at the first firing.
		if _, err := config.LoadFile(file); err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing %s: %v\n", file, err)
			os.Exit(1)
		}
		job := periodic.Job{
			Name:    strings.TrimSuffix(filepath.Base(file), filepath.Ext(file)),
			Cron:    *expr,
			RunFile: file,
			Enabled: true,
		}
		if err := runner.Add(job); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	runner.Start(ctx)
}

// scheduledRun returns the job body: load the run file again so edits apply
// to the next firing, force the SQLite store and run the model.
func scheduledRun(dbPath, events string, logger *slog.Logger) periodic.RunFunc {
	return func(ctx context.Context, job periodic.Job) error {
		doc, err := config.LoadFile(job.RunFile)
		if err != nil {
			return err
		}

		settings := doc.Settings
		settings.Store.Kind = store.KindSQLite
		if dbPath != "" {
			settings.Store.Path = dbPath
		}

		results, _, err := simulate(ctx, doc, settings, logger.With("job", job.Name), events, "")
		if err != nil {
			return err
		}
		logger.Info("schedule: run completed", "job", job.Name, "run", results.RunID, "ticks", results.RecordedTicks)
		return nil
	}
}
