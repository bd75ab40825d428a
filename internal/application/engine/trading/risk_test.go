package trading_test

import (
	"testing"

	"github.com/alejandrodnm/hoopsedge/internal/application/engine/trading"
	"github.com/alejandrodnm/hoopsedge/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openPosition() domain.Position {
	return domain.Position{
		ID:              "p1",
		GameID:          "g1",
		Side:            domain.SideBuy,
		Size:            5000,
		EntryModelProb:  0.6,
		EntryMarketProb: 0.5,
		KellyFraction:   0.5,
	}
}

func TestRiskManager_InactiveWithoutPosition(t *testing.T) {
	rm := trading.NewRiskManager(domain.DefaultExitLimits())
	_, ok := rm.Position()
	assert.False(t, ok)
	assert.Equal(t, domain.ExitNone, rm.Evaluate(domain.GameState{TimeRemaining: 0}, 1e9))
}

func TestRiskManager_SinglePosition(t *testing.T) {
	rm := trading.NewRiskManager(domain.DefaultExitLimits())
	require.NoError(t, rm.Open(openPosition()))

	err := rm.Open(openPosition())
	assert.ErrorIs(t, err, domain.ErrPositionOpen)

	pos, ok := rm.Position()
	require.True(t, ok)
	assert.Equal(t, domain.PositionOpen, pos.Status)
}

func TestRiskManager_CloseLifecycle(t *testing.T) {
	rm := trading.NewRiskManager(domain.DefaultExitLimits())

	_, err := rm.Close(domain.ExitStopLoss, 0, 0, 0)
	assert.ErrorIs(t, err, domain.ErrNoOpenPosition)

	require.NoError(t, rm.Open(openPosition()))
	closed, err := rm.Close(domain.ExitTakeProfit, 1200, 1500, 0.7)
	require.NoError(t, err)
	assert.Equal(t, domain.PositionClosed, closed.Status)
	assert.Equal(t, domain.ExitTakeProfit, closed.ExitReason)
	assert.Equal(t, 1200.0, closed.RealizedPnL)
	assert.Equal(t, 1500.0, closed.ExitTime)

	_, err = rm.Close(domain.ExitStopLoss, 0, 0, 0)
	assert.ErrorIs(t, err, domain.ErrPositionClosed)

	// tras cerrar se puede abrir otra
	assert.NoError(t, rm.Open(openPosition()))
}

func TestRiskManager_EvaluateDelegatesToExitRules(t *testing.T) {
	rm := trading.NewRiskManager(domain.DefaultExitLimits())
	require.NoError(t, rm.Open(openPosition()))

	mid := domain.GameState{ScoreDiff: 10, TimeRemaining: 1500}
	assert.Equal(t, domain.ExitNone, rm.Evaluate(mid, 1000))
	assert.Equal(t, domain.ExitStopLoss, rm.Evaluate(mid, -50000))
	assert.Equal(t, domain.ExitTakeProfit, rm.Evaluate(mid, 40000))
	assert.Equal(t, domain.ExitEndOfGame, rm.Evaluate(domain.GameState{TimeRemaining: 0}, -60000))
}

func TestRiskManager_ScaleInRequiresOpenPosition(t *testing.T) {
	rm := trading.NewRiskManager(domain.DefaultExitLimits())
	_, err := rm.ScaleIn(100, 0.5, 0.6)
	assert.ErrorIs(t, err, domain.ErrNoOpenPosition)

	require.NoError(t, rm.Open(openPosition()))
	pos, err := rm.ScaleIn(5000, 0.4, 0.6)
	require.NoError(t, err)
	assert.InDelta(t, 10000, pos.Size, 1e-9)
}
