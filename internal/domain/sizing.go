package domain

import "math"

// Motivos de rechazo del sizer. Un rechazo no es un error: es "no operar".
const (
	RejectNone          = ""
	RejectNoEdge        = "no kelly edge"
	RejectBelowMinimum  = "below minimum trade"
	RejectRiskCap       = "capital at risk cap"
	RejectEmptyBankroll = "empty bankroll"
)

// SizingParams son los límites del sizer.
type SizingParams struct {
	MaxPosition         float64 // tope por operación ($20,000)
	MinTrade            float64 // mínimo por operación ($100)
	MaxCapitalAtRiskPct float64 // capital en riesgo agregado / bankroll (0.10)
	KellyFactor         float64 // fracción de Kelly aplicada (0.5 = half-Kelly)
}

// DefaultSizingParams devuelve los límites por defecto.
func DefaultSizingParams() SizingParams {
	return SizingParams{
		MaxPosition:         20000,
		MinTrade:            100,
		MaxCapitalAtRiskPct: 0.10,
		KellyFactor:         0.5,
	}
}

// SizeDecision es el resultado del sizer.
type SizeDecision struct {
	Approved      bool
	Size          float64 // USD, tras aplicar límites
	RawSize       float64 // USD, Kelly × bankroll antes de límites
	FullKelly     float64
	KellyFraction float64 // fracción de Kelly aplicada a esta posición
	Reason        string
}

// PositionSizer convierte una señal en un tamaño acotado con Kelly parcial.
type PositionSizer struct {
	params SizingParams
}

// NewPositionSizer crea un sizer con los parámetros dados.
func NewPositionSizer(p SizingParams) *PositionSizer {
	return &PositionSizer{params: p}
}

// Params devuelve los límites configurados.
func (s *PositionSizer) Params() SizingParams {
	return s.params
}

// FullKelly devuelve la fracción de Kelly completa de una señal binaria:
// BUY paga (1−p) por cada p arriesgado, SELL al revés.
func FullKelly(sig TradeSignal) float64 {
	var denom float64
	switch sig.Side {
	case SideBuy:
		denom = 1 - sig.MarketProb
	case SideSell:
		denom = sig.MarketProb
	}
	if denom <= 0 || sig.Edge <= 0 {
		return 0
	}
	return sig.Edge / denom
}

// Size calcula el tamaño para la señal dados el bankroll y el capital ya en riesgo.
func (s *PositionSizer) Size(sig TradeSignal, bankroll, openRisk float64) SizeDecision {
	full := FullKelly(sig)
	if full <= 0 {
		return SizeDecision{FullKelly: full, Reason: RejectNoEdge}
	}
	raw := full * s.params.KellyFactor * bankroll
	d := s.Constrain(raw, bankroll, openRisk)
	d.FullKelly = full
	d.KellyFraction = s.params.KellyFactor
	return d
}

// Constrain aplica los límites en orden: tope máximo, mínimo y límite agregado.
// Nunca recorta para encajar en el límite agregado: o cabe entero o no se opera.
func (s *PositionSizer) Constrain(raw, bankroll, openRisk float64) SizeDecision {
	d := SizeDecision{RawSize: raw, KellyFraction: s.params.KellyFactor}
	if bankroll <= 0 {
		d.Reason = RejectEmptyBankroll
		return d
	}
	size := math.Min(raw, s.params.MaxPosition)
	if size < s.params.MinTrade {
		d.Reason = RejectBelowMinimum
		return d
	}
	if !WithinRiskCap(openRisk+size, bankroll, s.params.MaxCapitalAtRiskPct) {
		d.Reason = RejectRiskCap
		return d
	}
	d.Approved = true
	d.Size = size
	return d
}

// WithinRiskCap devuelve true si atRisk no supera pct del bankroll.
func WithinRiskCap(atRisk, bankroll, pct float64) bool {
	return atRisk <= bankroll*pct+1e-9
}
