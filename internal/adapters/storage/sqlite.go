package storage

// sqlite.go: diario de posiciones y ejecuciones.
//
// Estrategia:
//   - `positions`: UNA fila por posición (UPSERT por id). Se escribe al abrir,
//     al ampliar y al cerrar, así que la fila refleja siempre el último estado.
//   - `runs`: una fila por ejecución del motor con el balance inicial y final.
//   - Los tiempos de juego (entry/exit) son segundos transcurridos, no fechas.
//     Solo updated_at y las marcas de la ejecución son tiempo de reloj.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alejandrodnm/hoopsedge/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS positions (
    id                TEXT PRIMARY KEY,
    game_id           TEXT NOT NULL,
    side              TEXT NOT NULL,
    size              REAL NOT NULL DEFAULT 0,
    entry_model_prob  REAL NOT NULL DEFAULT 0,
    entry_market_prob REAL NOT NULL DEFAULT 0,
    kelly_fraction    REAL NOT NULL DEFAULT 0,
    entry_time        REAL NOT NULL DEFAULT 0,
    status            TEXT NOT NULL,
    exit_reason       TEXT NOT NULL DEFAULT '',
    exit_time         REAL NOT NULL DEFAULT 0,
    exit_market_prob  REAL NOT NULL DEFAULT 0,
    realized_pnl      REAL NOT NULL DEFAULT 0,
    updated_at        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
    id              TEXT PRIMARY KEY,
    started_at      TEXT    NOT NULL,
    finished_at     TEXT    NOT NULL,
    games           INTEGER NOT NULL DEFAULT 0,
    ticks           INTEGER NOT NULL DEFAULT 0,
    positions       INTEGER NOT NULL DEFAULT 0,
    initial_balance REAL    NOT NULL DEFAULT 0,
    final_balance   REAL    NOT NULL DEFAULT 0,
    realized_pnl    REAL    NOT NULL DEFAULT 0,
    violations      INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_pos_game   ON positions(game_id);
CREATE INDEX IF NOT EXISTS idx_pos_status ON positions(status);
CREATE INDEX IF NOT EXISTS idx_runs_start ON runs(started_at DESC);
`

// SQLiteJournal implementa ports.TradeJournal usando SQLite (pure Go, sin CGo).
type SQLiteJournal struct {
	db *sql.DB
}

// NewSQLiteJournal abre (o crea) la base de datos en la ruta dada y aplica el schema.
func NewSQLiteJournal(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteJournal: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteJournal: apply schema: %w", err)
	}
	return &SQLiteJournal{db: db}, nil
}

// SavePosition inserta o actualiza la posición por ID.
func (s *SQLiteJournal) SavePosition(ctx context.Context, pos domain.Position) error {
	updated := pos.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO positions
			(id, game_id, side, size, entry_model_prob, entry_market_prob,
			 kelly_fraction, entry_time, status, exit_reason, exit_time,
			 exit_market_prob, realized_pnl, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			size              = excluded.size,
			entry_model_prob  = excluded.entry_model_prob,
			entry_market_prob = excluded.entry_market_prob,
			status            = excluded.status,
			exit_reason       = excluded.exit_reason,
			exit_time         = excluded.exit_time,
			exit_market_prob  = excluded.exit_market_prob,
			realized_pnl      = excluded.realized_pnl,
			updated_at        = excluded.updated_at
	`,
		pos.ID,
		pos.GameID,
		string(pos.Side),
		pos.Size,
		pos.EntryModelProb,
		pos.EntryMarketProb,
		pos.KellyFraction,
		pos.EntryTime,
		string(pos.Status),
		string(pos.ExitReason),
		pos.ExitTime,
		pos.ExitMarketProb,
		pos.RealizedPnL,
		formatTime(updated),
	)
	if err != nil {
		return fmt.Errorf("storage.SavePosition: upsert %s: %w", pos.ID, err)
	}
	return nil
}

// GetPositions devuelve las posiciones de un partido (o todas si gameID es ""),
// en orden de entrada.
func (s *SQLiteJournal) GetPositions(ctx context.Context, gameID string) ([]domain.Position, error) {
	query := `
		SELECT id, game_id, side, size, entry_model_prob, entry_market_prob,
		       kelly_fraction, entry_time, status, exit_reason, exit_time,
		       exit_market_prob, realized_pnl, updated_at
		FROM positions`
	var args []any
	if gameID != "" {
		query += ` WHERE game_id = ?`
		args = append(args, gameID)
	}
	query += ` ORDER BY game_id, entry_time, updated_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage.GetPositions: query: %w", err)
	}
	defer rows.Close()

	var out []domain.Position
	for rows.Next() {
		var (
			p                        domain.Position
			side, status, reason, ts string
		)
		if err := rows.Scan(
			&p.ID,
			&p.GameID,
			&side,
			&p.Size,
			&p.EntryModelProb,
			&p.EntryMarketProb,
			&p.KellyFraction,
			&p.EntryTime,
			&status,
			&reason,
			&p.ExitTime,
			&p.ExitMarketProb,
			&p.RealizedPnL,
			&ts,
		); err != nil {
			return nil, fmt.Errorf("storage.GetPositions: scan row: %w", err)
		}
		p.Side = domain.Side(side)
		p.Status = domain.PositionStatus(status)
		p.ExitReason = domain.ExitReason(reason)
		p.UpdatedAt = parseTime(ts)
		out = append(out, p)
	}
	return out, rows.Err()
}

// RecordRun guarda el resumen de una ejecución.
func (s *SQLiteJournal) RecordRun(ctx context.Context, run domain.RunRecord) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs
			(id, started_at, finished_at, games, ticks, positions,
			 initial_balance, final_balance, realized_pnl, violations)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		formatTime(run.StartedAt),
		formatTime(run.FinishedAt),
		run.Games,
		run.Ticks,
		run.Positions,
		run.InitialBalance,
		run.FinalBalance,
		run.RealizedPnL,
		run.Violations,
	); err != nil {
		return fmt.Errorf("storage.RecordRun: insert %s: %w", run.ID, err)
	}
	return nil
}

// GetRuns devuelve las últimas ejecuciones, la más reciente primero.
func (s *SQLiteJournal) GetRuns(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, games, ticks, positions,
		       initial_balance, final_balance, realized_pnl, violations
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.GetRuns: query: %w", err)
	}
	defer rows.Close()

	var out []domain.RunRecord
	for rows.Next() {
		var (
			r               domain.RunRecord
			started, finish string
		)
		if err := rows.Scan(
			&r.ID, &started, &finish,
			&r.Games, &r.Ticks, &r.Positions,
			&r.InitialBalance, &r.FinalBalance, &r.RealizedPnL, &r.Violations,
		); err != nil {
			return nil, fmt.Errorf("storage.GetRuns: scan row: %w", err)
		}
		r.StartedAt = parseTime(started)
		r.FinishedAt = parseTime(finish)
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetStats agrega el histórico completo de posiciones.
// Una posición cerrada con P&L ≤ 0 cuenta como pérdida.
func (s *SQLiteJournal) GetStats(ctx context.Context) (domain.JournalStats, error) {
	var st domain.JournalStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(DISTINCT game_id),
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'OPEN' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'CLOSED' AND realized_pnl > 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'CLOSED' AND realized_pnl <= 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(size), 0.0),
			COALESCE(SUM(CASE WHEN status = 'CLOSED' THEN realized_pnl ELSE 0.0 END), 0.0),
			COALESCE(MAX(CASE WHEN status = 'CLOSED' THEN realized_pnl END), 0.0),
			COALESCE(MIN(CASE WHEN status = 'CLOSED' THEN realized_pnl END), 0.0)
		FROM positions
	`).Scan(
		&st.Games,
		&st.Positions,
		&st.OpenPositions,
		&st.Wins,
		&st.Losses,
		&st.TotalStaked,
		&st.RealizedPnL,
		&st.BestPnL,
		&st.WorstPnL,
	)
	if err != nil {
		return st, fmt.Errorf("storage.GetStats: aggregate: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT exit_reason, COUNT(*)
		FROM positions
		WHERE status = 'CLOSED'
		GROUP BY exit_reason
	`)
	if err != nil {
		return st, fmt.Errorf("storage.GetStats: by reason: %w", err)
	}
	defer rows.Close()

	st.ByReason = make(map[domain.ExitReason]int)
	for rows.Next() {
		var (
			reason string
			n      int
		)
		if err := rows.Scan(&reason, &n); err != nil {
			return st, fmt.Errorf("storage.GetStats: scan reason: %w", err)
		}
		st.ByReason[domain.ExitReason(reason)] = n
	}
	return st, rows.Err()
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteJournal) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
