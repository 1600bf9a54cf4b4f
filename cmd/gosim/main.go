// Package main provides the gosim CLI.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	sim "github.com/everydev1618/gosim"
	"github.com/everydev1618/gosim/config"
	"github.com/everydev1618/gosim/internal/demo"
	"github.com/everydev1618/gosim/store"
)

var (
	version = "dev"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "run":
		runCmd(args)
	case "validate":
		validateCmd(args)
	case "results":
		resultsCmd(args)
	case "schedule":
		scheduleCmd(args)
	case "reset":
		resetCmd(args)
	case "version":
		fmt.Printf("gosim %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`gosim - Multi-core agent-based simulation

Usage:
  gosim <command> [options]

Commands:
  run       Run the opinion-dynamics model
  validate  Validate a run file
  results   List stored runs or print the records of one run
  schedule  Run a run file repeatedly on a cron schedule
  reset     Delete every stored result
  version   Print version information
  help      Show this help message

Examples:
  gosim run --cores 4 --sync --ticks 50
  gosim run opinion.yaml --out results.json
  gosim validate opinion.yaml
  gosim results --run 3f0c...
  gosim schedule --cron "@every 30m" opinion.yaml

Run 'gosim <command> --help' for more information on a command.`)
}

// runCmd runs the demo model.
func runCmd(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	agents := fs.Int("agents", -1, "Number of agents (overrides the run file)")
	cores := fs.Int("cores", -1, "Number of workers (overrides the run file)")
	ticks := fs.Int("ticks", -1, "Recorded ticks (overrides the run file)")
	warmup := fs.Int("warmup", -1, "Warm-up ticks (overrides the run file)")
	synced := fs.Bool("sync", false, "Synchronize workers through the coordinator")
	cache := fs.Bool("cache", false, "Cache remote reads within a tick")
	storeKind := fs.String("store", "", "Results store: memory or sqlite")
	dbPath := fs.String("db", "", "SQLite results path (default ~/.gosim/results.db)")
	out := fs.String("out", "", "Write merged results as JSON to this file")
	events := fs.String("events", "", "Append worker events as JSON lines to this file")
	timeout := fs.Duration("timeout", 0, "Maximum run time (0 for none)")
	logLevel := fs.String("log-level", "info", "Log level: debug, info, warn, error")
	logFormat := fs.String("log-format", "text", "Log format: text or json")

	fs.Usage = func() {
		fmt.Println(`Usage: gosim run [file.yaml] [options]

Run the opinion-dynamics model. Settings come from the run file when one is
given and from the defaults otherwise; flags override both.

Options:`)
		fs.PrintDefaults()
		fmt.Println(`
Examples:
  gosim run --agents 1000 --cores 4 --sync --cache
  gosim run opinion.yaml --store sqlite --out results.json`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	logger, err := newLogger(*logLevel, *logFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	doc := &config.Document{Settings: sim.DefaultSettings(), Params: config.Params{}}
	if fs.NArg() > 0 {
		doc, err = config.LoadFile(fs.Arg(0))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing %s: %v\n", fs.Arg(0), err)
			os.Exit(1)
		}
	}

	settings := doc.Settings
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if *agents >= 0 {
		settings.NumOfAgents = *agents
	}
	if *cores >= 0 {
		settings.NumOfCores = *cores
	}
	if *ticks >= 0 {
		settings.NumOfTicksToRun = *ticks
	}
	if *warmup >= 0 {
		settings.NumOfWarmUpTicks = *warmup
	}
	if set["sync"] {
		settings.AreProcessesSynced = *synced
	}
	if set["cache"] {
		settings.IsCacheUsed = *cache
	}
	if *storeKind != "" {
		settings.Store.Kind = *storeKind
	}
	if *dbPath != "" {
		settings.Store.Path = *dbPath
	}
	if err := settings.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	start := time.Now()
	results, model, err := simulate(ctx, doc, settings, logger, *events, *out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Run %s\n", results.RunID)
	fmt.Printf("  Agents:         %d\n", len(results.AgentNames))
	fmt.Printf("  Workers:        %d\n", len(results.Workers))
	fmt.Printf("  Recorded ticks: %d\n", results.RecordedTicks)
	fmt.Printf("  Duration:       %s\n", time.Since(start).Round(time.Millisecond))
	if env := model.Environment(); env != nil {
		if cl, ok := env.Behavior.(*demo.Climate); ok {
			fmt.Printf("  Mean opinion:   %.4f\n", cl.Mean)
		}
	}
	for _, w := range results.Workers {
		if settings.IsCacheUsed {
			fmt.Printf("  %s: %d agents, cache hit rate %.2f\n", w.Name, w.Agents, w.Cache.HitRate)
		}
	}

	if *out != "" {
		fmt.Printf("Results written to %s\n", *out)
	}
}

// validateCmd validates a run file without running it.
func validateCmd(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	verbose := fs.Bool("verbose", false, "Show the resolved settings")

	fs.Usage = func() {
		fmt.Println(`Usage: gosim validate <file.yaml> [options]

Validate a run file without executing it.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: no run file specified")
		fs.Usage()
		os.Exit(1)
	}

	file := fs.Arg(0)
	doc, err := config.LoadFile(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
		os.Exit(1)
	}

	if *verbose {
		s := doc.Settings
		fmt.Printf("File: %s\n", file)
		if doc.Name != "" {
			fmt.Printf("Name: %s\n", doc.Name)
		}
		fmt.Printf("Agents: %d\n", s.NumOfAgents)
		fmt.Printf("Cores: %d\n", s.NumOfCores)
		fmt.Printf("Ticks: %d (+%d warm-up)\n", s.NumOfTicksToRun, s.NumOfWarmUpTicks)
		fmt.Printf("Synced: %v, cache: %v, store copies: %v\n", s.AreProcessesSynced, s.IsCacheUsed, s.DoAgentStoresHoldAgentCopies)
		fmt.Printf("Scheduler: %s\n", s.Scheduler)
		fmt.Printf("Store: %s\n", s.Store.Kind)
	}

	fmt.Printf("✓ %s is valid\n", file)
}

// resultsCmd lists stored runs or prints the records of one.
func resultsCmd(args []string) {
	fs := flag.NewFlagSet("results", flag.ExitOnError)
	dbPath := fs.String("db", sim.DefaultDBPath(), "SQLite results path")
	runID := fs.String("run", "", "Print the records of this run")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	backend, err := openResults(*dbPath)
	if errors.Is(err, errNoResults) {
		fmt.Printf("No results yet, %s does not exist.\n", *dbPath)
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening %s: %v\n", *dbPath, err)
		os.Exit(1)
	}
	defer backend.Close()

	ctx := context.Background()
	if *runID == "" {
		runs, err := backend.Runs(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		for _, id := range runs {
			records, err := backend.Records(ctx, id)
			if err != nil || len(records) == 0 {
				fmt.Println(id)
				continue
			}
			fmt.Printf("%s  %s records  %s\n", id, humanize.Comma(int64(len(records))), humanize.Time(records[0].RecordedAt))
		}
		return
	}

	records, err := backend.Records(ctx, *runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	for _, r := range records {
		enc.Encode(r)
	}
}

// simulate runs the demo model described by doc with settings and returns
// the merged results together with the model that produced them. Worker
// events are appended to events and merged results saved to out when those
// are set.
func simulate(ctx context.Context, doc *config.Document, settings sim.Settings, logger *slog.Logger, events, out string) (*sim.Results, *sim.Model, error) {
	backend, err := openStore(settings.Store)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	defer backend.Close()

	opts := []sim.ModelOption{
		sim.WithEnvironment(demo.NewEnvironment()),
		sim.WithStore(backend),
		sim.WithLogger(logger),
	}
	if events != "" {
		evlog, err := sim.OpenEventLog(events)
		if err != nil {
			return nil, nil, err
		}
		defer evlog.Close()
		opts = append(opts, sim.WithEventHandler(evlog.Handle))
	}
	if out != "" {
		opts = append(opts, sim.WithPersistence(sim.NewJSONPersistence(out)))
	}

	model := sim.NewModel(settings, demo.Generator(settings.NumOfAgents, demoParams(doc.Params)), opts...)
	results, err := model.Start(ctx).Await(context.Background())
	if err != nil {
		return nil, nil, err
	}
	return results, model, nil
}

var errNoResults = errors.New("no results database")

// openResults opens an existing SQLite results database for reading. It never
// creates one.
func openResults(path string) (*store.SQLite, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", errNoResults, path)
		}
		return nil, err
	}
	return store.NewSQLite(path)
}

func openStore(s sim.StoreSettings) (store.Backend, error) {
	path := s.Path
	if s.Kind == store.KindSQLite && path == "" {
		if _, err := sim.EnsureHome(); err != nil {
			return nil, err
		}
		path = sim.DefaultDBPath()
	}
	return store.Open(s.Kind, path)
}

func demoParams(p config.Params) demo.Params {
	d := demo.DefaultParams()
	d.Tolerance = p.Float("tolerance", d.Tolerance)
	d.Rate = p.Float("rate", d.Rate)
	d.Pull = p.Float("pull", d.Pull)
	d.Extreme = p.Float("extreme", d.Extreme)
	d.Seed = uint64(p.Int("seed", int(d.Seed)))
	return d
}
