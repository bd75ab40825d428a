package trading

import (
	"fmt"
	"time"

	"github.com/alejandrodnm/hoopsedge/internal/domain"
)

// RiskManager es dueño de la posición de un partido y evalúa sus salidas.
// Como mucho hay una posición abierta; sin posición está inactivo.
type RiskManager struct {
	limits domain.ExitLimits
	pos    *domain.Position
}

// NewRiskManager crea un gestor con los umbrales dados.
func NewRiskManager(limits domain.ExitLimits) *RiskManager {
	return &RiskManager{limits: limits}
}

// Limits devuelve los umbrales configurados.
func (r *RiskManager) Limits() domain.ExitLimits {
	return r.limits
}

// Position devuelve la posición abierta, si la hay.
func (r *RiskManager) Position() (domain.Position, bool) {
	if r.pos == nil || !r.pos.IsOpen() {
		return domain.Position{}, false
	}
	return *r.pos, true
}

// Open registra una posición aprobada por el sizer.
func (r *RiskManager) Open(pos domain.Position) error {
	if r.pos != nil && r.pos.IsOpen() {
		return fmt.Errorf("trading.RiskManager.Open: %s: %w", r.pos.ID, domain.ErrPositionOpen)
	}
	pos.Status = domain.PositionOpen
	pos.ExitReason = domain.ExitNone
	pos.UpdatedAt = time.Now().UTC()
	r.pos = &pos
	return nil
}

// ScaleIn amplía la posición abierta.
func (r *RiskManager) ScaleIn(size, homeProb, modelProb float64) (domain.Position, error) {
	if r.pos == nil || !r.pos.IsOpen() {
		return domain.Position{}, fmt.Errorf("trading.RiskManager.ScaleIn: %w", domain.ErrNoOpenPosition)
	}
	r.pos.ScaleIn(size, homeProb, modelProb)
	r.pos.UpdatedAt = time.Now().UTC()
	return *r.pos, nil
}

// Evaluate devuelve el disparador que aplica en este tick, o ExitNone.
func (r *RiskManager) Evaluate(state domain.GameState, unrealized float64) domain.ExitReason {
	pos, ok := r.Position()
	if !ok {
		return domain.ExitNone
	}
	return domain.EvaluateExit(pos, state, unrealized, r.limits)
}

// Close lleva la posición a CLOSED con el motivo dado.
func (r *RiskManager) Close(reason domain.ExitReason, realized, at, exitProb float64) (domain.Position, error) {
	if r.pos == nil {
		return domain.Position{}, fmt.Errorf("trading.RiskManager.Close: %w", domain.ErrNoOpenPosition)
	}
	if !r.pos.IsOpen() {
		return domain.Position{}, fmt.Errorf("trading.RiskManager.Close: %s: %w", r.pos.ID, domain.ErrPositionClosed)
	}
	r.pos.Status = domain.PositionClosed
	r.pos.ExitReason = reason
	r.pos.RealizedPnL = realized
	r.pos.ExitTime = at
	r.pos.ExitMarketProb = exitProb
	r.pos.UpdatedAt = time.Now().UTC()
	return *r.pos, nil
}
