package domain

import "time"

// JournalStats agrega el histórico de posiciones persistido.
type JournalStats struct {
	Games         int
	Positions     int
	OpenPositions int
	Wins          int
	Losses        int
	TotalStaked   float64
	RealizedPnL   float64
	BestPnL       float64
	WorstPnL      float64
	ByReason      map[ExitReason]int
}

// WinRate devuelve la fracción de posiciones cerradas con beneficio.
func (s JournalStats) WinRate() float64 {
	closed := s.Wins + s.Losses
	if closed == 0 {
		return 0
	}
	return float64(s.Wins) / float64(closed)
}

// RunRecord resume una ejecución completa del motor (una sesión de replay).
type RunRecord struct {
	ID             string
	StartedAt      time.Time
	FinishedAt     time.Time
	Games          int
	Ticks          int
	Positions      int
	InitialBalance float64
	FinalBalance   float64
	RealizedPnL    float64
	Violations     int
}

// GameSummary resume lo ocurrido en un partido durante una ejecución.
type GameSummary struct {
	GameID      string
	Ticks       int
	Skipped     int
	Signals     int
	Rejections  int
	Opened      int
	Closed      []Position
	RealizedPnL float64
	FinalProb   float64
	FinalState  GameState
}
