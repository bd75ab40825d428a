package domain

import "math"

const (
	// probEpsilon mantiene la salida lejos de 0 y 1 exactos.
	probEpsilon = 1e-6
	// minGameFraction acota el peso del marcador cuando el reloj llega a cero.
	minGameFraction = 0.01
)

// ModelParams son los coeficientes del modelo de probabilidad.
type ModelParams struct {
	HomeAdvantagePrior   float64 // probabilidad a priori del local (0.55)
	ScoreLogOddsPerPoint float64 // log-odds por punto de diferencia con el partido entero por jugar
	MomentumLogOdds      float64 // log-odds por unidad de momentum
	RegulationSeconds    float64
}

// DefaultModelParams devuelve los parámetros calibrados por defecto.
func DefaultModelParams() ModelParams {
	return ModelParams{
		HomeAdvantagePrior:   0.55,
		ScoreLogOddsPerPoint: 0.08,
		MomentumLogOdds:      0.02,
		RegulationSeconds:    RegulationSeconds,
	}
}

// ProbabilityModel estima la probabilidad de victoria local sumando tres
// contribuciones en log-odds: prior de campo, marcador ponderado por tiempo y momentum.
type ProbabilityModel struct {
	params ModelParams
	prior  float64 // prior en log-odds
}

// NewProbabilityModel crea el modelo. Valores no válidos caen a los defaults.
func NewProbabilityModel(p ModelParams) *ProbabilityModel {
	def := DefaultModelParams()
	if !IsProbability(p.HomeAdvantagePrior) {
		p.HomeAdvantagePrior = def.HomeAdvantagePrior
	}
	if p.ScoreLogOddsPerPoint <= 0 {
		p.ScoreLogOddsPerPoint = def.ScoreLogOddsPerPoint
	}
	if p.MomentumLogOdds < 0 {
		p.MomentumLogOdds = def.MomentumLogOdds
	}
	if p.RegulationSeconds <= 0 {
		p.RegulationSeconds = def.RegulationSeconds
	}
	return &ProbabilityModel{params: p, prior: Logit(p.HomeAdvantagePrior)}
}

// Params devuelve los parámetros efectivos.
func (m *ProbabilityModel) Params() ModelParams {
	return m.params
}

// Estimate devuelve la probabilidad de victoria local, siempre en (0,1).
func (m *ProbabilityModel) Estimate(state GameState, momentum float64) float64 {
	logOdds := m.prior +
		m.ScoreWeight(state.TimeRemaining)*float64(state.ScoreDiff) +
		m.params.MomentumLogOdds*momentum
	return ClampProbability(Logistic(logOdds))
}

// ScoreWeight es el peso en log-odds de un punto de ventaja. Crece con la
// inversa de la raíz de la fracción de partido por jugar: la misma ventaja
// pesa más al final que al principio.
func (m *ProbabilityModel) ScoreWeight(timeRemaining float64) float64 {
	frac := timeRemaining / m.params.RegulationSeconds
	if frac > 1 {
		frac = 1
	}
	if frac < minGameFraction || math.IsNaN(frac) {
		frac = minGameFraction
	}
	return m.params.ScoreLogOddsPerPoint / math.Sqrt(frac)
}

// Logit convierte una probabilidad en log-odds.
func Logit(p float64) float64 {
	return math.Log(p / (1 - p))
}

// Logistic convierte log-odds en probabilidad.
func Logistic(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// ClampProbability acota p a [ε, 1−ε]. NaN se trata como 0.5.
func ClampProbability(p float64) float64 {
	switch {
	case math.IsNaN(p):
		return 0.5
	case p < probEpsilon:
		return probEpsilon
	case p > 1-probEpsilon:
		return 1 - probEpsilon
	}
	return p
}
