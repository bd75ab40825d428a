package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alejandrodnm/hoopsedge/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// Console implementa ports.Notifier y los informes de sesión.
type Console struct {
	mu  sync.Mutex
	out io.Writer
	now func() time.Time
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout, now: time.Now}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w, now: time.Now}
}

// PositionOpened imprime una línea compacta con la entrada.
func (c *Console) PositionOpened(_ context.Context, pos domain.Position) error {
	c.line("OPEN ", pos, fmt.Sprintf("$%.2f @%.3f model %.3f t=%s",
		pos.Size, pos.EntryMarketProb, pos.EntryModelProb, gameClock(pos.EntryTime)))
	return nil
}

// PositionScaled imprime el nuevo tamaño y el precio medio.
func (c *Console) PositionScaled(_ context.Context, pos domain.Position) error {
	c.line("SCALE", pos, fmt.Sprintf("$%.2f avg @%.3f", pos.Size, pos.EntryMarketProb))
	return nil
}

// PositionClosed imprime el motivo y el P&L realizado.
func (c *Console) PositionClosed(_ context.Context, pos domain.Position) error {
	c.line("CLOSE", pos, fmt.Sprintf("%s pnl %s exit @%.3f t=%s",
		pos.ExitReason, signedUSD(pos.RealizedPnL), pos.ExitMarketProb, gameClock(pos.ExitTime)))
	return nil
}

func (c *Console) line(tag string, pos domain.Position, detail string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "[%s] %s %s %s %s %s\n",
		c.now().Format("15:04:05"), tag, compactName(pos.GameID, 16), pos.Side, shortID(pos.ID), detail)
}

// SessionInput agrupa todo lo que necesita PrintSession.
type SessionInput struct {
	Games          []domain.GameSummary
	InitialBalance float64
	FinalBalance   float64
	AtRisk         float64
	Violations     int
	Malformed      int
	Elapsed        time.Duration
	DryRun         bool
}

// PrintSession imprime el resumen de una ejecución: una tabla por partido,
// otra con las posiciones cerradas y los totales de la cuenta.
func (c *Console) PrintSession(in SessionInput) {
	c.mu.Lock()
	defer c.mu.Unlock()

	mode := ""
	if in.DryRun {
		mode = " [DRY RUN]"
	}
	fmt.Fprintf(c.out, "\n========================================================\n")
	fmt.Fprintf(c.out, "  SESSION SUMMARY%s\n", mode)
	fmt.Fprintf(c.out, "  %d games in %s\n", len(in.Games), in.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(c.out, "========================================================\n\n")

	if len(in.Games) == 0 {
		fmt.Fprintln(c.out, "  No games in feed.")
		return
	}

	games := tablewriter.NewWriter(c.out)
	games.Header("Game", "Ticks", "Skip", "Signals", "Opened", "Closed", "Diff", "P(home)", "PnL")
	var positions []domain.Position
	for _, g := range in.Games {
		games.Append(
			compactName(g.GameID, 24),
			fmt.Sprintf("%d", g.Ticks),
			fmt.Sprintf("%d", g.Skipped),
			fmt.Sprintf("%d", g.Signals),
			fmt.Sprintf("%d", g.Opened),
			fmt.Sprintf("%d", len(g.Closed)),
			fmt.Sprintf("%+d", g.FinalState.ScoreDiff),
			fmt.Sprintf("%.3f", g.FinalProb),
			signedUSD(g.RealizedPnL),
		)
		positions = append(positions, g.Closed...)
	}
	games.Render()

	if len(positions) > 0 {
		fmt.Fprintln(c.out)
		c.positionsTable(positions)
	}

	realized := in.FinalBalance - in.InitialBalance
	fmt.Fprintf(c.out, "\n  --- ACCOUNT ---\n")
	fmt.Fprintf(c.out, "  Initial bankroll:      $%.2f\n", in.InitialBalance)
	fmt.Fprintf(c.out, "  Final bankroll:        $%.2f\n", in.FinalBalance)
	fmt.Fprintf(c.out, "  Realized P&L:          %s", signedUSD(realized))
	if in.InitialBalance > 0 {
		fmt.Fprintf(c.out, " (%+.2f%%)", realized/in.InitialBalance*100)
	}
	fmt.Fprintln(c.out)
	fmt.Fprintf(c.out, "  Capital at risk:       $%.2f\n", in.AtRisk)
	if in.Malformed > 0 {
		fmt.Fprintf(c.out, "  Malformed feed lines:  %d\n", in.Malformed)
	}
	if in.Violations > 0 {
		fmt.Fprintf(c.out, "  WARNING: %d accounting invariant violations corrected (see log)\n", in.Violations)
	}
	fmt.Fprintln(c.out)
}

// PrintJournalReport imprime el histórico persistido: ejecuciones recientes,
// posiciones y agregados por motivo de salida.
func (c *Console) PrintJournalReport(stats domain.JournalStats, runs []domain.RunRecord, positions []domain.Position) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if stats.Positions == 0 && len(runs) == 0 {
		fmt.Fprintln(c.out, "\n  No journal data yet. Run a replay first.")
		return
	}

	fmt.Fprintf(c.out, "\n========================================================\n")
	fmt.Fprintf(c.out, "  TRADE JOURNAL REPORT\n")
	fmt.Fprintf(c.out, "========================================================\n\n")

	if len(runs) > 0 {
		tbl := tablewriter.NewWriter(c.out)
		tbl.Header("Started", "Games", "Ticks", "Pos", "Initial", "Final", "PnL", "Viol")
		for _, r := range runs {
			tbl.Append(
				r.StartedAt.Local().Format("01-02 15:04"),
				fmt.Sprintf("%d", r.Games),
				fmt.Sprintf("%d", r.Ticks),
				fmt.Sprintf("%d", r.Positions),
				fmt.Sprintf("$%.0f", r.InitialBalance),
				fmt.Sprintf("$%.0f", r.FinalBalance),
				signedUSD(r.RealizedPnL),
				fmt.Sprintf("%d", r.Violations),
			)
		}
		tbl.Render()
		fmt.Fprintln(c.out)
	}

	if len(positions) > 0 {
		c.positionsTable(positions)
	}

	fmt.Fprintf(c.out, "\n  --- AGGREGATE ---\n")
	fmt.Fprintf(c.out, "  Games traded:          %d\n", stats.Games)
	fmt.Fprintf(c.out, "  Positions:             %d (%d open)\n", stats.Positions, stats.OpenPositions)
	fmt.Fprintf(c.out, "  Wins / losses:         %d / %d (%.1f%%)\n", stats.Wins, stats.Losses, stats.WinRate()*100)
	fmt.Fprintf(c.out, "  Total staked:          $%.2f\n", stats.TotalStaked)
	fmt.Fprintf(c.out, "  Realized P&L:          %s\n", signedUSD(stats.RealizedPnL))
	fmt.Fprintf(c.out, "  Best / worst:          %s / %s\n", signedUSD(stats.BestPnL), signedUSD(stats.WorstPnL))

	if len(stats.ByReason) > 0 {
		fmt.Fprintf(c.out, "\n  --- EXITS ---\n")
		reasons := make([]string, 0, len(stats.ByReason))
		for r := range stats.ByReason {
			reasons = append(reasons, string(r))
		}
		sort.Strings(reasons)
		for _, r := range reasons {
			fmt.Fprintf(c.out, "  %-22s %d\n", r+":", stats.ByReason[domain.ExitReason(r)])
		}
	}
	fmt.Fprintln(c.out)
}

// positionsTable asume c.mu tomado.
func (c *Console) positionsTable(positions []domain.Position) {
	tbl := tablewriter.NewWriter(c.out)
	tbl.Header("Game", "ID", "Side", "Size", "Entry", "Model", "Exit", "Reason", "In", "Out", "PnL")
	for _, p := range positions {
		reason := string(p.ExitReason)
		if p.IsOpen() {
			reason = "OPEN"
		}
		tbl.Append(
			compactName(p.GameID, 20),
			shortID(p.ID),
			string(p.Side),
			fmt.Sprintf("$%.2f", p.Size),
			fmt.Sprintf("%.3f", p.EntryMarketProb),
			fmt.Sprintf("%.3f", p.EntryModelProb),
			fmt.Sprintf("%.3f", p.ExitMarketProb),
			reason,
			gameClock(p.EntryTime),
			gameClock(p.ExitTime),
			signedUSD(p.RealizedPnL),
		)
	}
	tbl.Render()
}

// --- helpers ---

// gameClock formatea segundos de juego transcurridos como mm:ss.
func gameClock(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	s := int(sec)
	return fmt.Sprintf("%02d:%02d", s/60, s%60)
}

func signedUSD(v float64) string {
	if v < 0 {
		return fmt.Sprintf("-$%.2f", -v)
	}
	return fmt.Sprintf("+$%.2f", v)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func compactName(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if len([]rune(s)) <= maxLen {
		return s
	}
	r := []rune(s)
	return string(r[:maxLen-1]) + "…"
}
