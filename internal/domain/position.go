package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// PositionStatus es el ciclo de vida de una posición.
type PositionStatus string

const (
	PositionOpen   PositionStatus = "OPEN"
	PositionClosed PositionStatus = "CLOSED"
)

// ExitReason es el disparador que cerró una posición. ExitNone significa
// que la evaluación no encontró ningún disparador.
type ExitReason string

const (
	ExitNone       ExitReason = ""
	ExitTakeProfit ExitReason = "TAKE_PROFIT"
	ExitStopLoss   ExitReason = "STOP_LOSS"
	ExitLateGame   ExitReason = "LATE_GAME_EXIT"
	ExitEndOfGame  ExitReason = "END_OF_GAME"
)

// Position es una posición abierta o cerrada sobre el contrato del local.
type Position struct {
	ID              string
	GameID          string
	Side            Side
	Size            float64 // USD comprometidos
	EntryModelProb  float64
	EntryMarketProb float64
	KellyFraction   float64
	EntryTime       float64 // segundos de juego
	Status          PositionStatus
	ExitReason      ExitReason
	ExitTime        float64
	ExitMarketProb  float64
	RealizedPnL     float64
	UpdatedAt       time.Time
}

// NewPositionID genera un ID único para una posición.
func NewPositionID() string {
	return uuid.New().String()
}

// IsOpen devuelve true si la posición sigue abierta.
func (p Position) IsOpen() bool {
	return p.Status == PositionOpen
}

// Contracts devuelve el número de contratos de $1 que compra el tamaño:
// BUY compra "gana el local" a p, SELL compra "gana el visitante" a 1−p.
func (p Position) Contracts() float64 {
	price := p.EntryMarketProb
	if p.Side == SideSell {
		price = 1 - p.EntryMarketProb
	}
	if price <= 0 {
		return 0
	}
	return p.Size / price
}

// MarkToMarket devuelve el P&L no realizado al precio homeProb.
func (p Position) MarkToMarket(homeProb float64) float64 {
	c := p.Contracts()
	if p.Side == SideSell {
		return c * (p.EntryMarketProb - homeProb)
	}
	return c * (homeProb - p.EntryMarketProb)
}

// ScaleIn suma size a la posición al precio homeProb, recalculando el precio
// medio de entrada por contrato.
func (p *Position) ScaleIn(size, homeProb, modelProb float64) {
	contracts := p.Contracts()
	price := homeProb
	if p.Side == SideSell {
		price = 1 - homeProb
	}
	if price > 0 {
		contracts += size / price
	}
	p.Size += size
	p.EntryModelProb = modelProb
	if contracts <= 0 {
		return
	}
	avg := p.Size / contracts
	if p.Side == SideSell {
		p.EntryMarketProb = 1 - avg
	} else {
		p.EntryMarketProb = avg
	}
}

// OrderRequest se envía al colaborador de ejecución al abrir una posición.
type OrderRequest struct {
	PositionID    string
	GameID        string
	Side          Side
	Size          float64
	ReferenceProb float64
}

// CloseRequest se envía al colaborador de ejecución al cerrar una posición.
type CloseRequest struct {
	PositionID string
	GameID     string
	Reason     ExitReason
}

// ExitLimits son los umbrales del gestor de riesgo.
type ExitLimits struct {
	TakeProfitBase          float64 // $80,000, escalado por la fracción de Kelly de la posición
	StopLoss                float64 // $50,000
	LateGameWindow          float64 // 600 s
	LateGameScoreDiff       int     // 5 puntos
	LateGameProfitThreshold float64 // $55,000
}

// DefaultExitLimits devuelve los umbrales por defecto.
func DefaultExitLimits() ExitLimits {
	return ExitLimits{
		TakeProfitBase:          80000,
		StopLoss:                50000,
		LateGameWindow:          600,
		LateGameScoreDiff:       5,
		LateGameProfitThreshold: 55000,
	}
}

// TakeProfitLevel es el beneficio que dispara el take-profit de la posición.
func (l ExitLimits) TakeProfitLevel(p Position) float64 {
	return l.TakeProfitBase * p.KellyFraction
}

// EvaluateExit decide si una posición abierta debe cerrarse. Devuelve como
// mucho un motivo, en orden fijo de prioridad:
// END_OF_GAME > STOP_LOSS > TAKE_PROFIT > LATE_GAME_EXIT.
func EvaluateExit(p Position, state GameState, unrealized float64, l ExitLimits) ExitReason {
	if !p.IsOpen() {
		return ExitNone
	}
	if state.IsOver() {
		return ExitEndOfGame
	}
	if unrealized <= -l.StopLoss {
		return ExitStopLoss
	}
	if unrealized >= l.TakeProfitLevel(p) {
		return ExitTakeProfit
	}
	if state.TimeRemaining <= l.LateGameWindow &&
		int(math.Abs(float64(state.ScoreDiff))) < l.LateGameScoreDiff &&
		unrealized > l.LateGameProfitThreshold {
		return ExitLateGame
	}
	return ExitNone
}
