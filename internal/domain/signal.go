package domain

import "math"

// DefaultEdgeThreshold es la diferencia mínima modelo−mercado para operar.
const DefaultEdgeThreshold = 0.03

// edgeTolerance absorbe el ruido de coma flotante en el umbral inclusivo
// (0.60 − 0.57 debe contar como 0.03).
const edgeTolerance = 1e-9

// Side es la dirección de la operación sobre el contrato del local.
type Side string

const (
	SideBuy  Side = "BUY"  // el mercado infravalora al local
	SideSell Side = "SELL" // el mercado sobrevalora al local
)

// TradeSignal es una señal transitoria; no se persiste.
type TradeSignal struct {
	Side       Side
	Edge       float64 // magnitud, siempre >= 0
	ModelProb  float64
	MarketProb float64
	Timestamp  float64
}

// EdgeDetector compara la probabilidad del modelo con la del mercado.
type EdgeDetector struct {
	threshold float64
}

// NewEdgeDetector crea un detector. threshold <= 0 usa DefaultEdgeThreshold.
func NewEdgeDetector(threshold float64) *EdgeDetector {
	if threshold <= 0 {
		threshold = DefaultEdgeThreshold
	}
	return &EdgeDetector{threshold: threshold}
}

// Threshold devuelve el umbral configurado.
func (d *EdgeDetector) Threshold() float64 {
	return d.threshold
}

// Detect devuelve una señal si |modelo − mercado| alcanza el umbral (inclusivo).
func (d *EdgeDetector) Detect(modelProb, marketProb, at float64) (TradeSignal, bool) {
	edge := modelProb - marketProb
	if math.Abs(edge) < d.threshold-edgeTolerance {
		return TradeSignal{}, false
	}
	sig := TradeSignal{
		Side:       SideBuy,
		Edge:       math.Abs(edge),
		ModelProb:  modelProb,
		MarketProb: marketProb,
		Timestamp:  at,
	}
	if edge < 0 {
		sig.Side = SideSell
	}
	return sig, true
}
