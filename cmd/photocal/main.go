// Photocal syncs a local photo-extracted event store with Google
// Calendar bidirectionally, resolving conflicts by configurable policy.
//
// Usage:
//
//	photocal sync-once [--config <path>] [--strategy <name>]  # single sync pass then exit
//	photocal daemon [--config <path>]                         # recurring sync loop
//	photocal status                                           # show sync state
//	photocal conflicts                                        # list queued conflicts
//	photocal resolve --id <n> --keep <local|remote>           # decide a queued conflict
//	photocal add --title <t> --start <time>                   # add an event by hand
//	photocal confirm --id <local-id>                          # accept a pending extraction
//	photocal reject --id <local-id>                           # discard a pending extraction
//	photocal version                                          # print version
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dhkang/photocal/internal/config"
	"github.com/dhkang/photocal/internal/googlecal"
	"github.com/dhkang/photocal/internal/intake"
	"github.com/dhkang/photocal/internal/model"
	"github.com/dhkang/photocal/internal/remote"
	"github.com/dhkang/photocal/internal/store"
	syncp "github.com/dhkang/photocal/internal/sync"
	"github.com/dhkang/photocal/internal/telemetry"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

// run dispatches to the appropriate subcommand.
func run() error {
	if len(os.Args) < 2 {
		return printUsage()
	}

	switch cmd := os.Args[1]; cmd {
	case "sync-once":
		return runSync(os.Args[2:], false)
	case "daemon":
		return runSync(os.Args[2:], true)
	case "status":
		return runStatus(os.Args[2:])
	case "conflicts":
		return runConflicts(os.Args[2:])
	case "resolve":
		return runResolve(os.Args[2:])
	case "add":
		return runAdd(os.Args[2:])
	case "confirm":
		return runReview(os.Args[2:], true)
	case "reject":
		return runReview(os.Args[2:], false)
	case "version":
		fmt.Println("photocal", version)
		return nil
	default:
		return fmt.Errorf("unknown command %q, run 'photocal' for usage", cmd)
	}
}

func printUsage() error {
	cfgPath, _ := config.DefaultPath()
	_, cfgErr := os.Stat(cfgPath)

	fmt.Fprintln(os.Stderr, "Photocal — sync photo-extracted events with Google Calendar")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  photocal sync-once [--config ...]       Single sync pass then exit")
	fmt.Fprintln(os.Stderr, "  photocal daemon [--config ...]          Run the recurring sync loop")
	fmt.Fprintln(os.Stderr, "  photocal status                         Show sync state")
	fmt.Fprintln(os.Stderr, "  photocal conflicts                      List queued conflicts")
	fmt.Fprintln(os.Stderr, "  photocal resolve --id <n> --keep <side> Decide a queued conflict")
	fmt.Fprintln(os.Stderr, "  photocal add --title <t> --start <time> Add an event by hand")
	fmt.Fprintln(os.Stderr, "  photocal confirm --id <local-id>        Accept a pending extraction")
	fmt.Fprintln(os.Stderr, "  photocal reject --id <local-id>         Discard a pending extraction")
	fmt.Fprintln(os.Stderr, "  photocal version                        Print version")
	fmt.Fprintln(os.Stderr, "")

	if cfgErr != nil {
		fmt.Fprintf(os.Stderr, "No config file found at %s.\n", cfgPath)
	}

	os.Exit(1)
	return nil // unreachable
}

// commonFlags registers the flags shared by every subcommand.
func commonFlags(fs *flag.FlagSet) (cfgPath *string, verbose *bool) {
	defaultCfg, _ := config.DefaultPath()
	cfgPath = fs.String("config", defaultCfg, "path to config.yaml")
	verbose = fs.Bool("verbose", false, "enable debug logging")
	return cfgPath, verbose
}

func setupLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

func openStore(cfg *config.Config) (*store.Store, error) {
	dbPath := cfg.DBPath
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolving state DB path: %w", err)
		}
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening state DB at %q: %w", dbPath, err)
	}
	return st, nil
}

// newCalendar builds the provider adapter from the stored credentials.
func newCalendar(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*googlecal.Adapter, error) {
	ts, err := googlecal.TokenSourceFromFile(ctx, cfg.CredentialsFile)
	if err != nil {
		return nil, err
	}
	cal, err := googlecal.New(ctx, ts, cfg.CalendarID, remote.DefaultPolicy(), logger)
	if err != nil {
		return nil, fmt.Errorf("initialising Google Calendar client: %w", err)
	}
	return cal, nil
}

// newOrchestrator wires the provider adapter and store together.
func newOrchestrator(ctx context.Context, cfg *config.Config, st *store.Store, logger *slog.Logger) (*syncp.Orchestrator, error) {
	cal, err := newCalendar(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return syncp.NewOrchestrator(cal, st, logger), nil
}

// --- Subcommands -------------------------------------------------------------

// runSync handles both "sync-once" and "daemon".
func runSync(args []string, daemon bool) error {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	cfgPath, verbose := commonFlags(fs)
	strategyFlag := fs.String("strategy", "", "override the configured conflict strategy for this run")
	var fromFlag, toFlag *string
	if !daemon {
		fromFlag = fs.String("from", "", "override window start (RFC 3339)")
		toFlag = fs.String("to", "", "override window end (RFC 3339)")
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger := setupLogger(*verbose)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return fmt.Errorf("loading config from %q: %w", *cfgPath, err)
	}
	strategy := cfg.ResolvedStrategy()
	if *strategyFlag != "" {
		if strategy, err = model.ParseStrategy(*strategyFlag); err != nil {
			return err
		}
	}
	logger.Info("config loaded",
		"user", cfg.User,
		"calendar", cfg.CalendarID,
		"strategy", strategy.String(),
		"poll_interval", cfg.PollInterval,
	)

	if cfg.Telemetry != nil {
		telCfg := telemetry.Config{
			OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
			Insecure:       cfg.Telemetry.Insecure,
			ServiceName:    cfg.Telemetry.ServiceName,
			ServiceVersion: version,
			Headers:        cfg.Telemetry.Headers,
		}
		shutdownTel, err := telemetry.Setup(context.Background(), telCfg)
		if err != nil {
			logger.Error("telemetry setup failed, continuing without telemetry", "error", err)
		} else {
			logger.Info("telemetry enabled", "endpoint", cfg.Telemetry.OTLPEndpoint)
			defer func() {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdownTel(flushCtx); err != nil {
					logger.Error("telemetry shutdown error", "error", err)
				}
			}()
		}
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("closing state DB", "error", closeErr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	cal, err := newCalendar(ctx, cfg, logger)
	if err != nil {
		return err
	}
	logger.Info("checking calendar access", "calendar", cfg.CalendarID)
	if err := cal.TestConnection(ctx); err != nil {
		return fmt.Errorf("reaching calendar %q: %w\n\nCheck calendar_id and credentials_file in your config", cfg.CalendarID, err)
	}
	logger.Info("calendar reachable")

	orch := syncp.NewOrchestrator(cal, st, logger)

	engine := syncp.NewEngine(orch, syncp.EngineConfig{
		UserID:       cfg.User,
		Strategy:     strategy,
		WindowPast:   cfg.WindowPast,
		WindowAhead:  cfg.WindowAhead,
		PollInterval: cfg.PollInterval,
		Schedule:     cfg.Schedule,
	}, logger)

	if !daemon {
		logger.Info("running single sync pass")
		if *fromFlag != "" || *toFlag != "" {
			w, err := windowFromFlags(*fromFlag, *toFlag, cfg)
			if err != nil {
				return err
			}
			rpt, err := orch.Sync(ctx, cfg.User, w, strategy)
			printReport(rpt)
			return err
		}
		rpt, err := engine.RunOnce(ctx)
		printReport(rpt)
		return err
	}

	logger.Info("daemon starting", "poll_interval", cfg.PollInterval, "schedule", cfg.Schedule)
	if err := engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("sync engine: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

func printReport(rpt *syncp.Report) {
	if rpt == nil {
		return
	}
	fmt.Printf("Sync pass finished\n")
	fmt.Printf("  Created:   %d pushed, %d pulled\n", rpt.Created.Push, rpt.Created.Pull)
	fmt.Printf("  Updated:   %d pushed, %d pulled\n", rpt.Updated.Push, rpt.Updated.Pull)
	fmt.Printf("  Deleted:   %d pushed, %d pulled\n", rpt.Deleted.Push, rpt.Deleted.Pull)
	if len(rpt.Conflicts) > 0 {
		fmt.Printf("  Conflicts: %d deferred, run 'photocal conflicts' to review\n", len(rpt.Conflicts))
	}
	for _, e := range rpt.Errors {
		fmt.Printf("  Error:     %s (local=%s remote=%s): %s\n", e.Op, e.LocalID, e.RemoteID, e.Message)
	}
}

// runStatus prints the persisted sync state without touching the provider.
func runStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	cfgPath, verbose := commonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	setupLogger(*verbose)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return fmt.Errorf("loading config from %q: %w", *cfgPath, err)
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	status, err := st.Status(context.Background(), cfg.User)
	if err != nil {
		return fmt.Errorf("reading sync status: %w", err)
	}

	fmt.Println("Photocal Status")
	fmt.Printf("  User:             %s\n", cfg.User)
	fmt.Printf("  Calendar:         %s\n", cfg.CalendarID)
	fmt.Printf("  Strategy:         %s\n", cfg.ResolvedStrategy())
	if status.LastSyncAt != nil {
		fmt.Printf("  Last sync:        %s\n", status.LastSyncAt.Local().Format(time.RFC1123))
	} else {
		fmt.Printf("  Last sync:        never\n")
	}
	fmt.Printf("  Pending local:    %d\n", status.PendingLocalChanges)
	fmt.Printf("  Pending remote:   %d\n", status.PendingRemoteChanges)
	fmt.Printf("  Open conflicts:   %d\n", status.OpenConflicts)
	return nil
}

// runConflicts lists the queued conflicts awaiting a decision.
func runConflicts(args []string) error {
	fs := flag.NewFlagSet("conflicts", flag.ExitOnError)
	cfgPath, verbose := commonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	setupLogger(*verbose)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return fmt.Errorf("loading config from %q: %w", *cfgPath, err)
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	conflicts, err := st.ListConflicts(context.Background(), cfg.User)
	if err != nil {
		return fmt.Errorf("listing conflicts: %w", err)
	}
	if len(conflicts) == 0 {
		fmt.Println("No conflicts pending.")
		return nil
	}

	for _, c := range conflicts {
		fmt.Printf("#%d  %s  detected %s\n", c.ID, c.Kind, c.DetectedAt.Local().Format(time.RFC1123))
		fmt.Printf("  local:  %q at %s (modified %s)\n",
			c.Local.Title, c.Local.Start.Local().Format(time.RFC1123), c.Local.UpdatedAt.Local().Format(time.RFC1123))
		fmt.Printf("  remote: %q at %s (modified %s)\n",
			c.Remote.Title, c.Remote.Start.Local().Format(time.RFC1123), c.Remote.UpdatedAt.Local().Format(time.RFC1123))
	}
	fmt.Printf("\nResolve with: photocal resolve --id <n> --keep <local|remote>\n")
	return nil
}

// runResolve applies a manual decision to one queued conflict.
func runResolve(args []string) error {
	fs := flag.NewFlagSet("resolve", flag.ExitOnError)
	cfgPath, verbose := commonFlags(fs)
	id := fs.Int64("id", 0, "conflict id from 'photocal conflicts'")
	keep := fs.String("keep", "", "side to keep: local or remote")
	if err := fs.Parse(args); err != nil {
		return err
	}
	logger := setupLogger(*verbose)

	if *id == 0 {
		return fmt.Errorf("--id is required")
	}
	decision, err := model.ParseResolution(*keep)
	if err != nil {
		return err
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return fmt.Errorf("loading config from %q: %w", *cfgPath, err)
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	orch, err := newOrchestrator(ctx, cfg, st, logger)
	if err != nil {
		return err
	}
	if err := orch.ResolveConflict(ctx, cfg.User, *id, decision); err != nil {
		return err
	}
	fmt.Printf("Conflict #%d resolved (%s).\n", *id, decision)
	return nil
}

// runAdd inserts a manually entered event, already confirmed.
func runAdd(args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	cfgPath, verbose := commonFlags(fs)
	title := fs.String("title", "", "event title")
	startArg := fs.String("start", "", "start time, RFC 3339 or YYYY-MM-DD with --all-day")
	endArg := fs.String("end", "", "optional end time")
	location := fs.String("location", "", "optional location")
	desc := fs.String("desc", "", "optional description")
	allDay := fs.Bool("all-day", false, "date-only event")
	if err := fs.Parse(args); err != nil {
		return err
	}
	setupLogger(*verbose)

	if *title == "" || *startArg == "" {
		return fmt.Errorf("--title and --start are required")
	}
	start, err := parseWhen(*startArg, *allDay)
	if err != nil {
		return err
	}
	var end *time.Time
	if *endArg != "" {
		e, err := parseWhen(*endArg, *allDay)
		if err != nil {
			return err
		}
		end = &e
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return fmt.Errorf("loading config from %q: %w", *cfgPath, err)
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ev := &model.Event{
		UserID:      cfg.User,
		Title:       *title,
		Description: *desc,
		Location:    *location,
		Start:       start,
		End:         end,
		AllDay:      *allDay,
		Status:      model.StatusConfirmed,
		Visible:     true,
	}
	if err := st.InsertEvent(context.Background(), ev); err != nil {
		return err
	}
	fmt.Printf("Added %q (%s). It will reach the calendar on the next sync.\n", ev.Title, ev.LocalID)
	return nil
}

// runReview confirms or rejects a pending extraction.
func runReview(args []string, accept bool) error {
	name := "reject"
	if accept {
		name = "confirm"
	}
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	cfgPath, verbose := commonFlags(fs)
	id := fs.String("id", "", "local event id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	logger := setupLogger(*verbose)

	if *id == "" {
		return fmt.Errorf("--id is required")
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return fmt.Errorf("loading config from %q: %w", *cfgPath, err)
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	svc := intake.NewService(st, cfg.ResolvedThreshold(), logger)
	ctx := context.Background()
	if accept {
		if err := svc.Confirm(ctx, cfg.User, *id); err != nil {
			return err
		}
		fmt.Printf("Event %s confirmed.\n", *id)
		return nil
	}
	if err := svc.Reject(ctx, cfg.User, *id); err != nil {
		return err
	}
	fmt.Printf("Event %s rejected.\n", *id)
	return nil
}

// windowFromFlags builds a sync window from explicit bounds, falling
// back to the configured window for whichever side is missing.
func windowFromFlags(from, to string, cfg *config.Config) (model.Window, error) {
	now := time.Now().UTC()
	w := model.Window{From: now.Add(-cfg.WindowPast), To: now.Add(cfg.WindowAhead)}
	if from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return model.Window{}, fmt.Errorf("cannot parse --from %q: %w", from, err)
		}
		w.From = t
	}
	if to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			return model.Window{}, fmt.Errorf("cannot parse --to %q: %w", to, err)
		}
		w.To = t
	}
	return w, nil
}

// parseWhen accepts RFC 3339 timestamps, or bare dates for all-day events.
func parseWhen(s string, allDay bool) (time.Time, error) {
	if allDay {
		if t, err := time.Parse("2006-01-02", s); err == nil {
			return t, nil
		}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("cannot parse time %q (want RFC 3339, or YYYY-MM-DD with --all-day)", s)
}
