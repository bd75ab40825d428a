package trading_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/alejandrodnm/hoopsedge/internal/application/engine"
	"github.com/alejandrodnm/hoopsedge/internal/application/engine/trading"
	"github.com/alejandrodnm/hoopsedge/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeExecutor registra las peticiones y puede forzar fallos.
type fakeExecutor struct {
	mu       sync.Mutex
	orders   []domain.OrderRequest
	closes   []domain.CloseRequest
	failNext bool
}

func (f *fakeExecutor) SubmitOrder(_ context.Context, req domain.OrderRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return errors.New("exchange unavailable")
	}
	f.orders = append(f.orders, req)
	return nil
}

func (f *fakeExecutor) SubmitClose(_ context.Context, req domain.CloseRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes = append(f.closes, req)
	return nil
}

// stubValuation devuelve el P&L que el test fija en cada momento.
type stubValuation struct {
	pnl float64
}

func (s *stubValuation) valuer() engine.Valuer {
	return engine.ValuerFunc(func(domain.Position, float64) float64 { return s.pnl })
}

func stateTick(ts float64, diff int, remaining float64, quote float64) domain.Tick {
	t := domain.Tick{
		GameID:    "g1",
		Timestamp: ts,
		State:     &domain.GameState{ScoreDiff: diff, TimeRemaining: remaining, Period: 1},
	}
	if quote > 0 {
		t.Quote = &domain.MarketQuote{ImpliedHomeProb: quote}
	}
	return t
}

func newEngine(cfg trading.Config, bankroll float64) (*trading.Engine, *engine.Account, *fakeExecutor) {
	acc := engine.NewAccount(bankroll)
	exec := &fakeExecutor{}
	return trading.New("g1", cfg, acc, exec, nil), acc, exec
}

func TestEngine_EndToEndLateGameExit(t *testing.T) {
	ctx := context.Background()
	val := &stubValuation{}
	cfg := trading.DefaultConfig()
	// con 0.72 el take-profit (80000 × 0.72 = 57600) queda por encima del beneficio de salida tardía
	cfg.Sizing.KellyFactor = 0.72
	cfg.Valuer = val.valuer()
	eng, acc, exec := newEngine(cfg, 100000)

	res := eng.Process(ctx, stateTick(0, 0, 2880, 0.55))
	assert.InDelta(t, 0.55, res.ModelProb, 1e-9)
	assert.Nil(t, res.Signal)

	// +2 con 1200 s por jugar → modelo ≈ 0.61 contra mercado 0.55
	res = eng.Process(ctx, stateTick(1680, 2, 1200, 0.55))
	require.NotNil(t, res.Signal)
	assert.Equal(t, domain.SideBuy, res.Signal.Side)
	assert.InDelta(t, 0.06, res.Signal.Edge, 0.005)
	require.NotNil(t, res.Opened)

	size := res.Opened.Size
	assert.Greater(t, size, 100.0)
	assert.LessOrEqual(t, size, 20000.0)
	assert.LessOrEqual(t, acc.Snapshot().AtRisk, 10000.0)
	require.Len(t, exec.orders, 1)
	assert.Equal(t, domain.SideBuy, exec.orders[0].Side)
	assert.InDelta(t, 0.55, exec.orders[0].ReferenceProb, 1e-9)

	// marcador a +3 con 500 s y $56,000 de beneficio latente
	val.pnl = 56000
	res = eng.Process(ctx, stateTick(2380, 3, 500, 0))
	require.NotNil(t, res.Closed)
	assert.Equal(t, domain.ExitLateGame, res.Closed.ExitReason)
	assert.Equal(t, domain.PositionClosed, res.Closed.Status)
	assert.InDelta(t, 56000, res.Closed.RealizedPnL, 1e-9)

	snap := acc.Snapshot()
	assert.InDelta(t, 156000, snap.Balance, 1e-9)
	assert.Zero(t, snap.AtRisk)
	require.Len(t, exec.closes, 1)
	assert.Equal(t, domain.ExitLateGame, exec.closes[0].Reason)

	_, open := eng.Position()
	assert.False(t, open)
}

func TestEngine_EndOfGameDominatesOtherTriggers(t *testing.T) {
	ctx := context.Background()
	val := &stubValuation{}
	cfg := trading.DefaultConfig()
	cfg.Valuer = val.valuer()
	eng, _, exec := newEngine(cfg, 100000)

	res := eng.Process(ctx, stateTick(10, 0, 2800, 0.45))
	require.NotNil(t, res.Opened)

	// muy por encima del take-profit y en ventana tardía, pero el reloj está a cero
	val.pnl = 90000
	res = eng.Process(ctx, stateTick(2880, 1, 0, 0))
	require.NotNil(t, res.Closed)
	assert.Equal(t, domain.ExitEndOfGame, res.Closed.ExitReason)
	require.Len(t, exec.closes, 1)
	assert.Equal(t, domain.ExitEndOfGame, exec.closes[0].Reason)
}

func TestEngine_StopLoss(t *testing.T) {
	ctx := context.Background()
	val := &stubValuation{}
	cfg := trading.DefaultConfig()
	cfg.Valuer = val.valuer()
	eng, acc, _ := newEngine(cfg, 100000)

	res := eng.Process(ctx, stateTick(10, 0, 2800, 0.45))
	require.NotNil(t, res.Opened)
	stake := res.Opened.Size

	val.pnl = -50000
	res = eng.Process(ctx, stateTick(20, 0, 2790, 0))
	require.NotNil(t, res.Closed)
	assert.Equal(t, domain.ExitStopLoss, res.Closed.ExitReason)
	// la pérdida no puede superar el stake: se corrige y se marca
	assert.InDelta(t, -stake, res.Closed.RealizedPnL, 0.01)
	assert.Equal(t, 1, acc.Snapshot().Violations)
}

func TestEngine_MalformedTicksAreSkipped(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newEngine(trading.DefaultConfig(), 100000)

	res := eng.Process(ctx, stateTick(100, 4, 2000, 0))
	require.False(t, res.Skipped)
	before := eng.State()

	res = eng.Process(ctx, domain.Tick{Timestamp: 101, Event: &domain.GameEvent{Kind: "TELEPORT", Team: domain.TeamHome}})
	assert.True(t, res.Skipped)

	res = eng.Process(ctx, stateTick(50, -10, 2500, 0))
	assert.True(t, res.Skipped, "out-of-order tick must be skipped")

	res = eng.Process(ctx, domain.Tick{Timestamp: 102, Quote: &domain.MarketQuote{ImpliedHomeProb: 1.2}})
	assert.True(t, res.Skipped)

	assert.Equal(t, before, eng.State())

	// el stream sigue fluyendo
	res = eng.Process(ctx, stateTick(103, 5, 1990, 0))
	assert.False(t, res.Skipped)
	assert.Equal(t, 5, eng.State().ScoreDiff)

	// cotización con sello anterior al último tick aceptado
	probBefore := eng.ModelProb()
	res = eng.Process(ctx, domain.Tick{Timestamp: 110, Quote: &domain.MarketQuote{ImpliedHomeProb: 0.40, Timestamp: 50}})
	assert.True(t, res.Skipped, "stale quote must be skipped")
	assert.Contains(t, res.SkipReason, domain.ErrOutOfOrder.Error())
	assert.Nil(t, res.Signal)
	assert.Equal(t, probBefore, eng.ModelProb())
}

func TestEngine_EmptyTickIsNoOp(t *testing.T) {
	eng, acc, exec := newEngine(trading.DefaultConfig(), 100000)
	res := eng.Process(context.Background(), domain.Tick{GameID: "g1", Timestamp: 5})
	assert.False(t, res.Skipped)
	assert.Nil(t, res.Signal)
	assert.Nil(t, res.Opened)
	assert.Nil(t, res.Closed)
	assert.Empty(t, exec.orders)
	assert.Equal(t, 100000.0, acc.Snapshot().Balance)
}

func TestEngine_SignalWhileOpenIsIgnored(t *testing.T) {
	ctx := context.Background()
	eng, _, exec := newEngine(trading.DefaultConfig(), 100000)

	res := eng.Process(ctx, stateTick(10, 0, 2800, 0.45))
	require.NotNil(t, res.Opened)

	res = eng.Process(ctx, stateTick(20, 0, 2790, 0.44))
	require.NotNil(t, res.Signal)
	assert.Nil(t, res.Opened)
	assert.Equal(t, domain.ErrPositionOpen.Error(), res.Rejection)
	assert.Len(t, exec.orders, 1)
}

func TestEngine_ScaleInPolicy(t *testing.T) {
	ctx := context.Background()
	cfg := trading.DefaultConfig()
	cfg.Policy = engine.PolicyScaleIn
	cfg.Sizing.KellyFactor = 0.1
	eng, acc, exec := newEngine(cfg, 100000)

	res := eng.Process(ctx, stateTick(10, 0, 2800, 0.45))
	require.NotNil(t, res.Opened)
	first := res.Opened.Size

	res = eng.Process(ctx, stateTick(20, 0, 2790, 0.45))
	require.NotNil(t, res.ScaledIn)
	assert.Greater(t, res.ScaledIn.Size, first)
	assert.Len(t, exec.orders, 2)
	assert.Equal(t, exec.orders[0].PositionID, exec.orders[1].PositionID)
	assert.InDelta(t, res.ScaledIn.Size, acc.Snapshot().AtRisk, 1e-6)

	// una señal contraria no amplía
	res = eng.Process(ctx, stateTick(30, 0, 2780, 0.70))
	require.NotNil(t, res.Signal)
	assert.Equal(t, domain.SideSell, res.Signal.Side)
	assert.Nil(t, res.ScaledIn)
}

func TestEngine_ExecutorFailureReleasesReservation(t *testing.T) {
	ctx := context.Background()
	eng, acc, exec := newEngine(trading.DefaultConfig(), 100000)
	exec.failNext = true

	res := eng.Process(ctx, stateTick(10, 0, 2800, 0.45))
	require.NotNil(t, res.Signal)
	assert.Nil(t, res.Opened)
	assert.Contains(t, res.Rejection, "exchange unavailable")
	assert.Zero(t, acc.Snapshot().AtRisk)

	_, open := eng.Position()
	assert.False(t, open)
}

func TestEngine_ShutdownForceClosesWithEndOfGame(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	eng, acc, exec := newEngine(trading.DefaultConfig(), 100000)

	res := eng.Process(ctx, stateTick(10, 0, 2800, 0.45))
	require.NotNil(t, res.Opened)

	cancel()
	closed, ok := eng.Shutdown(ctx)
	require.True(t, ok)
	assert.Equal(t, domain.ExitEndOfGame, closed.ExitReason)
	require.Len(t, exec.closes, 1)
	assert.Zero(t, acc.Snapshot().AtRisk)

	_, ok = eng.Shutdown(ctx)
	assert.False(t, ok, "second shutdown is a no-op")
	assert.Len(t, exec.closes, 1)
}

func TestEngine_EndGameEventSettlesAtFinalScore(t *testing.T) {
	ctx := context.Background()
	eng, acc, _ := newEngine(trading.DefaultConfig(), 100000)

	res := eng.Process(ctx, stateTick(10, 0, 2800, 0.45))
	require.NotNil(t, res.Opened)
	pos := *res.Opened
	require.Equal(t, domain.SideBuy, pos.Side)

	eng.Process(ctx, stateTick(2870, 6, 10, 0))
	res = eng.Process(ctx, domain.Tick{
		GameID:    "g1",
		Timestamp: 2880,
		Event:     &domain.GameEvent{Kind: domain.EventEndGame, Team: domain.TeamHome},
	})
	require.NotNil(t, res.Closed)
	assert.Equal(t, domain.ExitEndOfGame, res.Closed.ExitReason)
	assert.Equal(t, 1.0, res.Closed.ExitMarketProb)

	// el local gana: cada contrato comprado a 0.45 paga 1
	want := pos.Contracts() * (1 - 0.45)
	assert.InDelta(t, want, res.Closed.RealizedPnL, 0.01)
	assert.InDelta(t, 100000+want, acc.Snapshot().Balance, 0.01)
}

func TestEngine_SharedAccountCapAcrossGames(t *testing.T) {
	ctx := context.Background()
	acc := engine.NewAccount(100000)
	exec := &fakeExecutor{}
	cfg := trading.DefaultConfig()

	var opened int
	var engines []*trading.Engine
	for _, id := range []string{"a", "b", "c", "d"} {
		eng := trading.New(id, cfg, acc, exec, nil)
		engines = append(engines, eng)
		// Kelly 0.5 × 0.10/0.55 ≈ 9.1% del bankroll por partido
		res := eng.Process(ctx, stateTick(10, 0, 2800, 0.45))
		if res.Opened != nil {
			opened++
		}
	}
	assert.Equal(t, 1, opened)
	assert.LessOrEqual(t, acc.Snapshot().AtRisk, 10000.0)

	for _, eng := range engines {
		eng.Shutdown(ctx)
	}
	assert.Zero(t, acc.Snapshot().AtRisk)
}
