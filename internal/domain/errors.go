package domain

import "errors"

// Entrada malformada: el tick se descarta y el stream sigue.
var (
	ErrUnknownEventKind   = errors.New("unknown event kind")
	ErrUnknownTeam        = errors.New("unknown team")
	ErrInvalidProbability = errors.New("probability outside (0,1)")
	ErrOutOfOrder         = errors.New("non-monotonic timestamp")
	ErrInvalidGameState   = errors.New("invalid game state")
)

// Uso indebido del ciclo de vida de una posición: se rechaza como no-op.
var (
	ErrPositionOpen   = errors.New("position already open")
	ErrNoOpenPosition = errors.New("no open position")
	ErrPositionClosed = errors.New("position already closed")
)

// ErrInsufficientCapital indica que la reserva superaría el límite de capital en riesgo.
var ErrInsufficientCapital = errors.New("capital at risk limit exceeded")
