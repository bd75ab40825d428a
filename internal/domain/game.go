package domain

import (
	"fmt"
	"math"
)

// RegulationSeconds es la duración de un partido sin prórroga (4 × 12 min).
const RegulationSeconds = 2880.0

// Team identifica a qué equipo se atribuye un evento.
type Team string

const (
	TeamHome Team = "HOME"
	TeamAway Team = "AWAY"
)

// EventKind es el tipo de evento de juego que alimenta el momentum.
type EventKind string

const (
	EventScore      EventKind = "SCORE"
	EventThreePoint EventKind = "THREE_POINT"
	EventDunk       EventKind = "DUNK"
	EventMissed     EventKind = "MISSED"
	EventTurnover   EventKind = "TURNOVER"
	EventSteal      EventKind = "STEAL"
	EventBlock      EventKind = "BLOCK"
	EventFoul       EventKind = "FOUL"
	EventEndGame    EventKind = "END_GAME"
)

// GameEvent es un evento discreto del partido. Inmutable una vez emitido.
type GameEvent struct {
	Kind      EventKind `json:"kind"`
	Team      Team      `json:"team"`
	Timestamp float64   `json:"timestamp"` // segundos de juego transcurridos
}

// GameState es el marcador visto por el motor. Lo muta la fuente externa.
type GameState struct {
	ScoreDiff     int     `json:"score_diff"`     // home − away
	TimeRemaining float64 `json:"time_remaining"` // segundos
	Period        int     `json:"period"`
}

// IsOver devuelve true cuando el reloj llegó a cero.
func (s GameState) IsOver() bool {
	return s.TimeRemaining <= 0
}

// NewGameState devuelve el estado de inicio de partido.
func NewGameState() GameState {
	return GameState{TimeRemaining: RegulationSeconds, Period: 1}
}

// MarketQuote es la probabilidad implícita del mercado para la victoria local.
type MarketQuote struct {
	ImpliedHomeProb float64 `json:"implied_home_prob"`
	Timestamp       float64 `json:"timestamp"`
}

// Tick agrupa lo que llega en un paso del stream. Cualquier combinación de
// Event, State y Quote es válida, incluido ninguno.
type Tick struct {
	GameID    string       `json:"game_id"`
	Timestamp float64      `json:"timestamp"`
	Event     *GameEvent   `json:"event,omitempty"`
	State     *GameState   `json:"state,omitempty"`
	Quote     *MarketQuote `json:"quote,omitempty"`
}

// Normalize alinea los timestamps: el del tick pasa a ser el mayor de los
// tres y los que faltan (cero) toman el del tick.
func (t Tick) Normalize() Tick {
	if t.Event != nil {
		ev := *t.Event
		t.Timestamp = math.Max(t.Timestamp, ev.Timestamp)
		t.Event = &ev
	}
	if t.Quote != nil {
		q := *t.Quote
		t.Timestamp = math.Max(t.Timestamp, q.Timestamp)
		t.Quote = &q
	}
	if t.State != nil {
		st := *t.State
		t.State = &st
	}
	if t.Event != nil && t.Event.Timestamp == 0 {
		t.Event.Timestamp = t.Timestamp
	}
	if t.Quote != nil && t.Quote.Timestamp == 0 {
		t.Quote.Timestamp = t.Timestamp
	}
	return t
}

// Validate comprueba la forma del tick. El orden temporal respecto al tick
// anterior lo valida el engine, que es quien conoce el último timestamp.
func (t Tick) Validate(known func(EventKind) bool) error {
	if math.IsNaN(t.Timestamp) || math.IsInf(t.Timestamp, 0) {
		return fmt.Errorf("tick %s: timestamp %v: %w", t.GameID, t.Timestamp, ErrOutOfOrder)
	}
	if t.Event != nil {
		if known != nil && !known(t.Event.Kind) {
			return fmt.Errorf("tick %s: kind %q: %w", t.GameID, t.Event.Kind, ErrUnknownEventKind)
		}
		if t.Event.Team != TeamHome && t.Event.Team != TeamAway {
			return fmt.Errorf("tick %s: team %q: %w", t.GameID, t.Event.Team, ErrUnknownTeam)
		}
	}
	if t.State != nil {
		if t.State.TimeRemaining < 0 || math.IsNaN(t.State.TimeRemaining) {
			return fmt.Errorf("tick %s: time_remaining %v: %w", t.GameID, t.State.TimeRemaining, ErrInvalidGameState)
		}
	}
	if t.Quote != nil {
		if !IsProbability(t.Quote.ImpliedHomeProb) {
			return fmt.Errorf("tick %s: implied prob %v: %w", t.GameID, t.Quote.ImpliedHomeProb, ErrInvalidProbability)
		}
	}
	return nil
}

// IsProbability devuelve true si p está en el intervalo abierto (0,1).
func IsProbability(p float64) bool {
	return p > 0 && p < 1 && !math.IsNaN(p)
}
