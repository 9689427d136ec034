// HealthRelay is a daemon that incrementally syncs health samples from an
// on-device data store to a remote backend as day-bucketed JSON files, and
// can backfill the full available history one day at a time.
//
// Usage:
//
//	healthrelay daemon [--config <path>]      # start the polling/cron loop
//	healthrelay sync-once [--config ...]      # single incremental pass then exit
//	healthrelay backfill [--config ...]       # run (or resume) the historical backfill
//	healthrelay backfill-status               # show the backfill day grid rollup
//	healthrelay retry-failed                  # reset failed backfill days to pending
//	healthrelay reset-backfill                # discard all backfill progress
//	healthrelay status                        # show config & checkpoint state
//	healthrelay version                       # print version
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

	"healthrelay/internal/config"
	"healthrelay/internal/source"
	"healthrelay/internal/state"
	syncp "healthrelay/internal/sync"
	"healthrelay/internal/telemetry"
	"healthrelay/internal/upload"
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
	case "daemon":
		return runSync(os.Args[2:], true)
	case "sync-once":
		return runSync(os.Args[2:], false)
	case "backfill":
		return runBackfill(os.Args[2:])
	case "backfill-status":
		return runBackfillStatus(os.Args[2:])
	case "retry-failed":
		return runRetryFailed(os.Args[2:])
	case "reset-backfill":
		return runResetBackfill(os.Args[2:])
	case "status":
		return runStatus()
	case "version":
		fmt.Println("healthrelay", version)
		return nil
	default:
		return fmt.Errorf("unknown command %q — run 'healthrelay' for usage", cmd)
	}
}

// printUsage shows help.
func printUsage() error {
	fmt.Fprintln(os.Stderr, "HealthRelay — sync health samples to your backend")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  healthrelay daemon [--config ...]     Run as continuous daemon")
	fmt.Fprintln(os.Stderr, "  healthrelay sync-once [--config ...]  Single incremental pass then exit")
	fmt.Fprintln(os.Stderr, "  healthrelay backfill [--config ...]   Run or resume the historical backfill")
	fmt.Fprintln(os.Stderr, "  healthrelay backfill-status           Show backfill progress rollup")
	fmt.Fprintln(os.Stderr, "  healthrelay retry-failed              Reset failed backfill days to pending")
	fmt.Fprintln(os.Stderr, "  healthrelay reset-backfill            Discard all backfill progress")
	fmt.Fprintln(os.Stderr, "  healthrelay status                    Show config & checkpoint state")
	fmt.Fprintln(os.Stderr, "  healthrelay version                   Print version")
	os.Exit(1)
	return nil // unreachable
}

// commonFlags parses the flags shared by the sync-ish subcommands.
func commonFlags(name string, args []string) (cfgPath string, verbose bool, err error) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	defaultCfg, _ := config.DefaultPath()
	cfg := fs.String("config", defaultCfg, "path to config.yaml")
	verb := fs.Bool("verbose", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return "", false, err
	}
	return *cfg, *verb, nil
}

// runSync handles both "daemon" and "sync-once".
func runSync(args []string, daemon bool) error {
	cfgPath, verbose, err := commonFlags("sync", args)
	if err != nil {
		return err
	}

	app, cleanup, err := buildApp(cfgPath, verbose)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := app.pingBackend(ctx); err != nil {
		return err
	}

	if !daemon {
		app.log.Info("running single incremental pass")
		stats, err := app.engine.SyncOnce(ctx)
		app.log.Info("sync complete",
			"types_queried", stats.TypesQueried,
			"samples", stats.SamplesCollected,
			"sessions", stats.Sessions,
			"uploaded", stats.Uploaded,
			"query_failures", stats.QueryFailures,
		)
		return err
	}

	app.log.Info("daemon starting",
		"poll_interval", app.cfg.PollInterval, "schedule", app.cfg.Schedule)
	if err := app.engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("sync engine: %w", err)
	}
	app.log.Info("shutdown complete")
	return nil
}

// runBackfill runs (or resumes) the historical backfill to completion.
func runBackfill(args []string) error {
	cfgPath, verbose, err := commonFlags("backfill", args)
	if err != nil {
		return err
	}

	app, cleanup, err := buildApp(cfgPath, verbose)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := app.pingBackend(ctx); err != nil {
		return err
	}

	if err := app.backfill.Run(ctx, app.cfg.Categories); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// runBackfillStatus prints the year/month rollup of the persisted grid.
func runBackfillStatus(args []string) error {
	cfgPath, _, err := commonFlags("backfill-status", args)
	if err != nil {
		return err
	}

	app, cleanup, err := buildApp(cfgPath, false)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()
	progress, ok, err := app.backfill.Load(ctx)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("No backfill started yet. Run 'healthrelay backfill' to begin.")
		return nil
	}

	counts := progress.Counts()
	fmt.Printf("Backfill: %d done, %d pending, %d syncing, %d failed\n",
		counts[syncp.DayDone], counts[syncp.DayPending],
		counts[syncp.DaySyncing], counts[syncp.DayError])
	for _, year := range progress.Years() {
		fmt.Printf("  %d: %s\n", year, progress.YearStatus(year))
		for m := time.January; m <= time.December; m++ {
			st := progress.MonthStatus(year, m)
			if st == syncp.DayError || st == syncp.DaySyncing {
				fmt.Printf("    %s: %s\n", m, st)
			}
		}
	}
	return nil
}

// runRetryFailed resets failed backfill days to pending.
func runRetryFailed(args []string) error {
	cfgPath, verbose, err := commonFlags("retry-failed", args)
	if err != nil {
		return err
	}
	app, cleanup, err := buildApp(cfgPath, verbose)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := app.backfill.RetryFailed(context.Background()); err != nil {
		return err
	}
	fmt.Println("Failed days reset. Run 'healthrelay backfill' to resume.")
	return nil
}

// runResetBackfill discards all backfill progress.
func runResetBackfill(args []string) error {
	cfgPath, verbose, err := commonFlags("reset-backfill", args)
	if err != nil {
		return err
	}
	app, cleanup, err := buildApp(cfgPath, verbose)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := app.backfill.Reset(context.Background()); err != nil {
		return err
	}
	fmt.Println("Backfill progress discarded. The next backfill rebuilds from scratch.")
	return nil
}

// runStatus prints the current configuration and checkpoint state.
func runStatus() error {
	cfgPath, _ := config.DefaultPath()
	dbPath, _ := state.DefaultDBPath()

	fmt.Println("HealthRelay Status")
	fmt.Println("──────────────────")

	if _, err := os.Stat(cfgPath); err == nil {
		if cfg, loadErr := config.Load(cfgPath); loadErr == nil {
			fmt.Printf("  Config:     %s ✓\n", cfgPath)
			fmt.Printf("  Backend:    %s\n", cfg.BackendURL)
			fmt.Printf("  Categories: %v\n", cfg.Categories)
			fmt.Printf("  Poll:       %s\n", cfg.PollInterval)
		} else {
			fmt.Printf("  Config:     %s (invalid: %v)\n", cfgPath, loadErr)
		}
	} else {
		fmt.Printf("  Config:     not found (%s)\n", cfgPath)
	}

	info, err := os.Stat(dbPath)
	if err != nil {
		fmt.Printf("  State DB:   not found\n")
		return nil
	}
	fmt.Printf("  State DB:   %s (%s)\n", dbPath, humanSize(info.Size()))

	store, err := state.Open(dbPath)
	if err != nil {
		return nil
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	checkpoints := syncp.NewCheckpoints(store)
	for _, stream := range []string{syncp.StreamSamples, syncp.StreamWorkouts} {
		wm, ok, err := checkpoints.Watermark(ctx, stream)
		switch {
		case err != nil:
			fmt.Printf("  %-10s  (error: %v)\n", stream+":", err)
		case ok:
			fmt.Printf("  %-10s  synced through %s\n", stream+":", wm.Format(time.RFC3339))
		default:
			fmt.Printf("  %-10s  never synced\n", stream+":")
		}
	}
	return nil
}

// app bundles the wired components shared by the subcommands.
type app struct {
	cfg      *config.Config
	log      *slog.Logger
	uploader *upload.Client
	engine   *syncp.Engine
	backfill *syncp.Backfill
}

// pingBackend verifies the backend is reachable and the token is accepted
// before any sync work starts.
func (a *app) pingBackend(ctx context.Context) error {
	a.log.Info("pinging backend…", "url", a.cfg.BackendURL)
	if err := a.uploader.Ping(ctx); err != nil {
		return fmt.Errorf("connecting to backend at %q: %w\n\nCheck backend_url and backend_token in your config file", a.cfg.BackendURL, err)
	}
	a.log.Info("backend reachable")
	return nil
}

// buildApp performs the common wiring: logger, config, telemetry, state DB,
// data source, uploader, engine, backfill. The returned cleanup flushes
// telemetry and closes the DB.
func buildApp(cfgPath string, verbose bool) (*app, func(), error) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config from %q: %w", cfgPath, err)
	}
	logger.Info("config loaded",
		"backend", cfg.BackendURL,
		"categories", len(cfg.Categories),
		"poll_interval", cfg.PollInterval,
	)

	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	if cfg.Telemetry != nil {
		telCfg := telemetry.Config{
			OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
			Insecure:     cfg.Telemetry.Insecure,
			ServiceName:  cfg.Telemetry.ServiceName,
			Headers:      cfg.Telemetry.Headers,
		}
		shutdownTel, err := telemetry.Setup(context.Background(), telCfg)
		if err != nil {
			logger.Error("telemetry setup failed, continuing without telemetry", "error", err)
		} else {
			logger.Info("telemetry enabled", "endpoint", cfg.Telemetry.OTLPEndpoint)
			cleanups = append(cleanups, func() {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdownTel(flushCtx); err != nil {
					logger.Error("telemetry shutdown error", "error", err)
				}
			})
		}
	}

	dbPath, err := state.DefaultDBPath()
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("resolving state DB path: %w", err)
	}
	store, err := state.Open(dbPath)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("opening state DB at %q: %w", dbPath, err)
	}
	cleanups = append(cleanups, func() {
		if err := store.Close(); err != nil {
			logger.Error("closing state DB", "error", err)
		}
	})
	logger.Info("state DB opened", "path", dbPath)

	// The on-device data store is an external capability; this binary ships
	// with the simulated implementation for local runs.
	src := source.NewSimulated(time.Now().AddDate(-1, 0, 0), time.Now().UnixNano())

	uploader, err := upload.NewClient(cfg.BackendURL, cfg.BackendToken, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("initialising upload client: %w", err)
	}

	collector := syncp.NewCollector(src, cfg.StreamPrefix, cfg.DeviceInfo(), time.Local, logger)
	checkpoints := syncp.NewCheckpoints(store)

	engine := syncp.NewEngine(syncp.EngineConfig{
		Collector:    collector,
		Uploader:     uploader,
		Checkpoints:  checkpoints,
		Categories:   func() []string { return cfg.Categories },
		Lookback:     cfg.Lookback(),
		PollInterval: cfg.PollInterval,
		Schedule:     cfg.Schedule,
		Logger:       logger,
	})

	backfill := syncp.NewBackfill(syncp.BackfillConfig{
		Source:    src,
		Collector: collector,
		Uploader:  uploader,
		Settings:  store,
		Local:     time.Local,
		Logger:    logger,
	})

	return &app{cfg: cfg, log: logger, uploader: uploader, engine: engine, backfill: backfill}, cleanup, nil
}

// humanSize returns a human-readable file size string.
func humanSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
