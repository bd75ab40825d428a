package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/alejandrodnm/hoopsedge/internal/adapters/storage"
	"github.com/alejandrodnm/hoopsedge/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makePosition(id, gameID string, entry float64) domain.Position {
	return domain.Position{
		ID:              id,
		GameID:          gameID,
		Side:            domain.SideBuy,
		Size:            5000,
		EntryModelProb:  0.61,
		EntryMarketProb: 0.55,
		KellyFraction:   0.5,
		EntryTime:       entry,
		Status:          domain.PositionOpen,
		UpdatedAt:       time.Now().UTC(),
	}
}

func closeAs(p domain.Position, reason domain.ExitReason, pnl float64) domain.Position {
	p.Status = domain.PositionClosed
	p.ExitReason = reason
	p.RealizedPnL = pnl
	p.ExitTime = p.EntryTime + 600
	p.ExitMarketProb = 0.7
	return p
}

func TestSQLiteJournal_UpsertKeepsLatestState(t *testing.T) {
	j, err := storage.NewSQLiteJournal(":memory:")
	require.NoError(t, err)
	defer j.Close()
	ctx := context.Background()

	p := makePosition("p1", "g1", 120)
	require.NoError(t, j.SavePosition(ctx, p))
	require.NoError(t, j.SavePosition(ctx, closeAs(p, domain.ExitTakeProfit, 1363.64)))

	got, err := j.GetPositions(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.PositionClosed, got[0].Status)
	assert.Equal(t, domain.ExitTakeProfit, got[0].ExitReason)
	assert.Equal(t, domain.SideBuy, got[0].Side)
	assert.InDelta(t, 1363.64, got[0].RealizedPnL, 1e-9)
	assert.InDelta(t, 720, got[0].ExitTime, 1e-9)
	assert.False(t, got[0].UpdatedAt.IsZero())
}

func TestSQLiteJournal_GetPositionsFiltersByGame(t *testing.T) {
	j, err := storage.NewSQLiteJournal(":memory:")
	require.NoError(t, err)
	defer j.Close()
	ctx := context.Background()

	require.NoError(t, j.SavePosition(ctx, makePosition("a", "g1", 300)))
	require.NoError(t, j.SavePosition(ctx, makePosition("b", "g1", 100)))
	require.NoError(t, j.SavePosition(ctx, makePosition("c", "g2", 50)))

	g1, err := j.GetPositions(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, g1, 2)
	assert.Equal(t, "b", g1[0].ID) // orden de entrada

	all, err := j.GetPositions(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := j.GetPositions(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLiteJournal_Stats(t *testing.T) {
	j, err := storage.NewSQLiteJournal(":memory:")
	require.NoError(t, err)
	defer j.Close()
	ctx := context.Background()

	require.NoError(t, j.SavePosition(ctx, closeAs(makePosition("p1", "g1", 10), domain.ExitTakeProfit, 2000)))
	require.NoError(t, j.SavePosition(ctx, closeAs(makePosition("p2", "g1", 900), domain.ExitStopLoss, -5000)))
	require.NoError(t, j.SavePosition(ctx, closeAs(makePosition("p3", "g2", 10), domain.ExitEndOfGame, 500)))
	require.NoError(t, j.SavePosition(ctx, makePosition("p4", "g3", 10)))

	st, err := j.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, st.Games)
	assert.Equal(t, 4, st.Positions)
	assert.Equal(t, 1, st.OpenPositions)
	assert.Equal(t, 2, st.Wins)
	assert.Equal(t, 1, st.Losses)
	assert.InDelta(t, 20000, st.TotalStaked, 1e-9)
	assert.InDelta(t, -2500, st.RealizedPnL, 1e-9)
	assert.InDelta(t, 2000, st.BestPnL, 1e-9)
	assert.InDelta(t, -5000, st.WorstPnL, 1e-9)
	assert.Equal(t, 1, st.ByReason[domain.ExitStopLoss])
	assert.Equal(t, 1, st.ByReason[domain.ExitEndOfGame])
	assert.InDelta(t, 2.0/3.0, st.WinRate(), 1e-9)
}

func TestSQLiteJournal_EmptyStats(t *testing.T) {
	j, err := storage.NewSQLiteJournal(":memory:")
	require.NoError(t, err)
	defer j.Close()

	st, err := j.GetStats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, st.Positions)
	assert.Zero(t, st.WinRate())
	assert.Empty(t, st.ByReason)
}

func TestSQLiteJournal_Runs(t *testing.T) {
	j, err := storage.NewSQLiteJournal(":memory:")
	require.NoError(t, err)
	defer j.Close()
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	for i, id := range []string{"r1", "r2"} {
		require.NoError(t, j.RecordRun(ctx, domain.RunRecord{
			ID:             id,
			StartedAt:      base.Add(time.Duration(i) * time.Hour),
			FinishedAt:     base.Add(time.Duration(i)*time.Hour + time.Minute),
			Games:          2,
			InitialBalance: 100000,
			FinalBalance:   100000 + float64(i)*500,
		}))
	}

	runs, err := j.GetRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r2", runs[0].ID)
	assert.True(t, runs[0].StartedAt.Equal(base.Add(time.Hour)))
	assert.InDelta(t, 100500, runs[0].FinalBalance, 1e-9)
}
