package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alejandrodnm/hoopsedge/config"
	"github.com/alejandrodnm/hoopsedge/internal/adapters/notify"
	"github.com/alejandrodnm/hoopsedge/internal/adapters/storage"
	"github.com/alejandrodnm/hoopsedge/internal/ports"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	feedPath := flag.String("feed", "", "path to JSON-lines tick feed (overrides config)")
	dryRun := flag.Bool("dry-run", false, "do not persist positions to SQLite")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	report := flag.Bool("report", false, "print the trade journal report and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	if *feedPath != "" {
		cfg.Replay.FeedPath = *feedPath
	}
	setupLogger(cfg.Log)

	slog.Info("hoopsedge starting",
		"config", *configPath,
		"feed", cfg.Replay.FeedPath,
		"bankroll", cfg.Engine.InitialBankroll,
		"kelly_factor", cfg.Engine.KellyFactor,
		"policy", cfg.Engine.SignalPolicy,
		"dry_run", *dryRun,
	)

	console := notify.NewConsole()

	// interfaz nil explícita: un *SQLiteJournal nil no sería un journal nil
	var journal ports.TradeJournal
	if !*dryRun || *report {
		store, err := storage.NewSQLiteJournal(cfg.Storage.DSN)
		if err != nil {
			slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
			os.Exit(1)
		}
		defer store.Close()
		journal = store
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *report {
		if err := runReport(ctx, journal, console); err != nil {
			slog.Error("report failed", "err", err)
			os.Exit(1)
		}
		return
	}

	if err := runReplay(ctx, cfg, journal, console, *dryRun); err != nil {
		slog.Error("replay failed", "err", err)
		os.Exit(1)
	}

	slog.Info("hoopsedge stopped cleanly")
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
