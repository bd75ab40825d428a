package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/hoopsedge/config"
	"github.com/alejandrodnm/hoopsedge/internal/adapters/execution"
	"github.com/alejandrodnm/hoopsedge/internal/adapters/feed"
	"github.com/alejandrodnm/hoopsedge/internal/adapters/notify"
	"github.com/alejandrodnm/hoopsedge/internal/application/engine"
	"github.com/alejandrodnm/hoopsedge/internal/application/engine/trading"
	"github.com/alejandrodnm/hoopsedge/internal/domain"
	"github.com/alejandrodnm/hoopsedge/internal/ports"
	"github.com/google/uuid"
)

// runReplay lee el feed, ejecuta un engine por partido contra un único
// bankroll y guarda el resumen de la ejecución.
func runReplay(ctx context.Context, cfg *config.Config, journal ports.TradeJournal, console *notify.Console, dryRun bool) error {
	tcfg, err := tradingConfig(cfg)
	if err != nil {
		return err
	}

	rp, err := feed.Open(cfg.Replay.FeedPath, feed.Options{TicksPerSecond: cfg.Replay.TicksPerSecond})
	if err != nil {
		return fmt.Errorf("runReplay: %w", err)
	}
	fs := rp.Stats()
	slog.Info("feed loaded", "games", fs.Games, "ticks", fs.Ticks, "malformed", fs.Malformed)

	account := engine.NewAccount(cfg.Engine.InitialBankroll)
	exec := execution.NewPaperExecutor()
	runner := trading.NewRunner(tcfg, account, exec, journal).WithNotifier(console)

	started := time.Now()
	games := runner.Run(ctx, rp.Sources())
	finished := time.Now()

	snap := account.Snapshot()
	console.PrintSession(notify.SessionInput{
		Games:          games,
		InitialBalance: snap.Initial,
		FinalBalance:   snap.Balance,
		AtRisk:         snap.AtRisk,
		Violations:     snap.Violations,
		Malformed:      fs.Malformed,
		Elapsed:        finished.Sub(started),
		DryRun:         dryRun,
	})

	if journal == nil {
		return nil
	}
	run := domain.RunRecord{
		ID:             uuid.New().String(),
		StartedAt:      started,
		FinishedAt:     finished,
		Games:          len(games),
		InitialBalance: snap.Initial,
		FinalBalance:   snap.Balance,
		RealizedPnL:    snap.Realized,
		Violations:     snap.Violations,
	}
	for _, g := range games {
		run.Ticks += g.Ticks
		run.Positions += len(g.Closed)
	}
	// el contexto puede estar cancelado por SIGINT; el resumen se guarda igual
	if err := journal.RecordRun(context.WithoutCancel(ctx), run); err != nil {
		return fmt.Errorf("runReplay: %w", err)
	}
	return nil
}

// tradingConfig traduce la configuración de fichero a la del engine.
func tradingConfig(cfg *config.Config) (trading.Config, error) {
	policy, err := engine.ParseSignalPolicy(cfg.Engine.SignalPolicy)
	if err != nil {
		return trading.Config{}, fmt.Errorf("tradingConfig: %w", err)
	}
	return trading.Config{
		Model:         cfg.ModelParams(),
		HalfLife:      cfg.Engine.MomentumHalfLifeSec,
		Weights:       cfg.EventWeights(),
		EdgeThreshold: cfg.Engine.EdgeThreshold,
		Sizing:        cfg.SizingParams(),
		Exits:         cfg.ExitLimits(),
		Policy:        policy,
	}, nil
}
