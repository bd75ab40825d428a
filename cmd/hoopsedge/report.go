package main

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/hoopsedge/internal/adapters/notify"
	"github.com/alejandrodnm/hoopsedge/internal/ports"
)

const reportRuns = 10

func runReport(ctx context.Context, journal ports.TradeJournal, console *notify.Console) error {
	stats, err := journal.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("runReport: %w", err)
	}
	runs, err := journal.GetRuns(ctx, reportRuns)
	if err != nil {
		return fmt.Errorf("runReport: %w", err)
	}
	positions, err := journal.GetPositions(ctx, "")
	if err != nil {
		return fmt.Errorf("runReport: %w", err)
	}
	console.PrintJournalReport(stats, runs, positions)
	return nil
}
