package trading

// runner.go: un goroutine por partido, todos contra el mismo Account.
//
// Dentro de un partido el orden importa (decay del momentum, estimación), así
// que cada engine procesa su feed secuencialmente. La concurrencia es solo
// entre partidos; el Account serializa las reservas de capital.

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/alejandrodnm/hoopsedge/internal/application/engine"
	"github.com/alejandrodnm/hoopsedge/internal/domain"
	"github.com/alejandrodnm/hoopsedge/internal/ports"
)

// Runner ejecuta varios partidos concurrentemente con un bankroll compartido.
type Runner struct {
	cfg     Config
	account *engine.Account
	exec    ports.OrderExecutor
	journal ports.TradeJournal
	notify  ports.Notifier
}

// NewRunner crea un Runner. journal puede ser nil.
func NewRunner(cfg Config, account *engine.Account, exec ports.OrderExecutor, journal ports.TradeJournal) *Runner {
	return &Runner{cfg: cfg, account: account, exec: exec, journal: journal}
}

// WithNotifier añade un notificador para aperturas, ampliaciones y cierres.
func (r *Runner) WithNotifier(n ports.Notifier) *Runner {
	r.notify = n
	return r
}

// Run procesa todos los feeds hasta agotarlos o hasta que ctx se cancele.
// En ambos casos cada engine fuerza el cierre de su posición antes de salir.
// Los resúmenes se devuelven ordenados por GameID.
func (r *Runner) Run(ctx context.Context, sources map[string]ports.TickSource) []domain.GameSummary {
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		summaries = make([]domain.GameSummary, 0, len(sources))
	)

	for gameID, src := range sources {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := r.runGame(ctx, gameID, src)
			mu.Lock()
			summaries = append(summaries, s)
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].GameID < summaries[j].GameID
	})
	return summaries
}

func (r *Runner) runGame(ctx context.Context, gameID string, src ports.TickSource) domain.GameSummary {
	eng := New(gameID, r.cfg, r.account, r.exec, r.journal)
	s := domain.GameSummary{GameID: gameID}

	for {
		if ctx.Err() != nil {
			slog.Info("runner: game cancelled", "game", gameID, "ticks", s.Ticks)
			break
		}
		tick, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() == nil {
				slog.Warn("runner: feed error, stopping game", "game", gameID, "err", err)
			}
			break
		}

		res := eng.Process(ctx, tick)
		s.Ticks++
		if res.Skipped {
			s.Skipped++
		}
		if res.Signal != nil {
			s.Signals++
		}
		if res.Rejection != "" {
			s.Rejections++
		}
		if res.Opened != nil {
			s.Opened++
		}
		r.publish(ctx, res)
	}

	if pos, ok := eng.Shutdown(ctx); ok {
		r.publish(context.WithoutCancel(ctx), TickResult{Timestamp: pos.ExitTime, Closed: &pos})
	}

	s.Closed = eng.Closed()
	for _, p := range s.Closed {
		s.RealizedPnL += p.RealizedPnL
	}
	s.FinalProb = eng.ModelProb()
	s.FinalState = eng.State()

	slog.Debug("runner: game finished",
		"game", gameID,
		"ticks", s.Ticks,
		"skipped", s.Skipped,
		"positions", len(s.Closed),
		"pnl", s.RealizedPnL,
	)
	return s
}

func (r *Runner) publish(ctx context.Context, res TickResult) {
	if r.notify == nil {
		return
	}
	var err error
	switch {
	case res.Opened != nil:
		err = r.notify.PositionOpened(ctx, *res.Opened)
	case res.ScaledIn != nil:
		err = r.notify.PositionScaled(ctx, *res.ScaledIn)
	}
	if err != nil {
		slog.Warn("runner: notify failed", "err", err)
	}
	// un mismo tick puede abrir y cerrar (p.ej. fin de partido)
	if res.Closed != nil {
		if err := r.notify.PositionClosed(ctx, *res.Closed); err != nil {
			slog.Warn("runner: notify failed", "err", err)
		}
	}
}
