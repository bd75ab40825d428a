package engine

import (
	"fmt"

	"github.com/alejandrodnm/hoopsedge/internal/domain"
)

// Valuer calcula el P&L no realizado de una posición dada la probabilidad
// actual de victoria local. Desacopla el engine de cómo marca el broker.
type Valuer interface {
	Unrealized(pos domain.Position, homeProb float64) float64
}

// ValuerFunc adapta una función a Valuer.
type ValuerFunc func(pos domain.Position, homeProb float64) float64

// Unrealized implementa Valuer.
func (f ValuerFunc) Unrealized(pos domain.Position, homeProb float64) float64 {
	return f(pos, homeProb)
}

// MarkToMarket valora la posición como contratos de $1 al precio actual.
type MarkToMarket struct{}

// Unrealized implementa Valuer.
func (MarkToMarket) Unrealized(pos domain.Position, homeProb float64) float64 {
	return pos.MarkToMarket(homeProb)
}

// SignalPolicy decide qué hacer con una señal cuando ya hay posición abierta.
type SignalPolicy string

const (
	// PolicyIgnore descarta la señal hasta que la posición se cierre.
	PolicyIgnore SignalPolicy = "ignore"
	// PolicyScaleIn amplía la posición con señales del mismo lado.
	PolicyScaleIn SignalPolicy = "scale_in"
)

// ParseSignalPolicy valida el nombre de la política. Vacío = ignore.
func ParseSignalPolicy(s string) (SignalPolicy, error) {
	switch SignalPolicy(s) {
	case "", PolicyIgnore:
		return PolicyIgnore, nil
	case PolicyScaleIn:
		return PolicyScaleIn, nil
	}
	return "", fmt.Errorf("engine.ParseSignalPolicy: unknown policy %q", s)
}
