package domain

import (
	"fmt"
	"math"
)

// DefaultHalfLifeSeconds es la vida media del momentum.
const DefaultHalfLifeSeconds = 180.0

// EventWeights mapea cada tipo de evento a su peso base, visto desde el equipo
// que lo protagoniza. Para eventos del visitante el signo se invierte.
type EventWeights map[EventKind]float64

// DefaultEventWeights devuelve la tabla de impactos por defecto.
func DefaultEventWeights() EventWeights {
	return EventWeights{
		EventScore:      3.0,
		EventThreePoint: 4.0,
		EventDunk:       5.0,
		EventMissed:     -1.0,
		EventTurnover:   -2.0,
		EventSteal:      2.0,
		EventBlock:      1.5,
		EventFoul:       -1.0,
		EventEndGame:    0,
	}
}

// Merge devuelve una copia de w con los pesos de extra añadidos o sobrescritos.
func (w EventWeights) Merge(extra map[string]float64) EventWeights {
	out := make(EventWeights, len(w)+len(extra))
	for k, v := range w {
		out[k] = v
	}
	for k, v := range extra {
		out[EventKind(k)] = v
	}
	return out
}

// Known devuelve true si el tipo de evento está en la tabla.
func (w EventWeights) Known(kind EventKind) bool {
	_, ok := w[kind]
	return ok
}

// Signed devuelve el peso del evento con signo: positivo favorece al local.
func (w EventWeights) Signed(ev GameEvent) (float64, error) {
	base, ok := w[ev.Kind]
	if !ok {
		return 0, fmt.Errorf("momentum: %q: %w", ev.Kind, ErrUnknownEventKind)
	}
	if ev.Team == TeamAway {
		return -base, nil
	}
	return base, nil
}

// MomentumState es el escalar de momentum y el instante al que está referido.
type MomentumState struct {
	Value     float64
	UpdatedAt float64
}

// MomentumTracker mantiene el momentum con decaimiento exponencial continuo:
//
//	m(t) = m(t0) · 2^(-(t−t0)/halfLife)
//
// No es seguro para uso concurrente; cada partido tiene el suyo.
type MomentumTracker struct {
	weights  EventWeights
	halfLife float64
	state    MomentumState
	started  bool
}

// NewMomentumTracker crea un tracker. halfLife <= 0 usa DefaultHalfLifeSeconds.
func NewMomentumTracker(weights EventWeights, halfLife float64) *MomentumTracker {
	if weights == nil {
		weights = DefaultEventWeights()
	}
	if halfLife <= 0 {
		halfLife = DefaultHalfLifeSeconds
	}
	return &MomentumTracker{weights: weights, halfLife: halfLife}
}

// Weights expone la tabla de pesos configurada.
func (m *MomentumTracker) Weights() EventWeights {
	return m.weights
}

// Record decae el momentum hasta el timestamp del evento y suma su peso.
// Un evento anterior al último instante registrado se rechaza sin tocar el estado.
func (m *MomentumTracker) Record(ev GameEvent) error {
	if m.started && ev.Timestamp < m.state.UpdatedAt {
		return fmt.Errorf("momentum: event at %.1f before %.1f: %w", ev.Timestamp, m.state.UpdatedAt, ErrOutOfOrder)
	}
	w, err := m.weights.Signed(ev)
	if err != nil {
		return err
	}
	m.decayTo(ev.Timestamp)
	m.state.Value += w
	return nil
}

// Value devuelve el momentum decaído hasta at y mueve la referencia temporal.
// Consultas con at anterior a la referencia devuelven el valor sin decaer.
func (m *MomentumTracker) Value(at float64) float64 {
	m.decayTo(at)
	return m.state.Value
}

// State devuelve una copia del estado interno.
func (m *MomentumTracker) State() MomentumState {
	return m.state
}

func (m *MomentumTracker) decayTo(at float64) {
	if !m.started {
		m.started = true
		m.state.UpdatedAt = at
		return
	}
	dt := at - m.state.UpdatedAt
	if dt <= 0 {
		return
	}
	m.state.Value *= math.Exp2(-dt / m.halfLife)
	m.state.UpdatedAt = at
}
