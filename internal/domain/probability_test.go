package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProbability_PriorAtTipOff(t *testing.T) {
	m := NewProbabilityModel(DefaultModelParams())
	p := m.Estimate(NewGameState(), 0)
	assert.InDelta(t, 0.55, p, 1e-9)
}

func TestProbability_AlwaysInOpenInterval(t *testing.T) {
	m := NewProbabilityModel(DefaultModelParams())
	for _, diff := range []int{-80, -30, -5, 0, 5, 30, 80} {
		for _, remaining := range []float64{0, 1, 60, 600, 1440, 2880, 5000} {
			for _, mom := range []float64{-500, -20, 0, 20, 500} {
				p := m.Estimate(GameState{ScoreDiff: diff, TimeRemaining: remaining}, mom)
				assert.Greater(t, p, 0.0, "diff=%d t=%v m=%v", diff, remaining, mom)
				assert.Less(t, p, 1.0, "diff=%d t=%v m=%v", diff, remaining, mom)
			}
		}
	}
}

func TestProbability_MonotonicInScoreDiff(t *testing.T) {
	m := NewProbabilityModel(DefaultModelParams())
	for _, remaining := range []float64{2880, 1200, 300} {
		prev := 0.0
		for diff := -15; diff <= 15; diff++ {
			p := m.Estimate(GameState{ScoreDiff: diff, TimeRemaining: remaining}, 1.5)
			assert.Greater(t, p, prev, "diff=%d t=%v", diff, remaining)
			prev = p
		}
	}
}

func TestProbability_LeadMattersMoreLate(t *testing.T) {
	m := NewProbabilityModel(DefaultModelParams())
	early := m.Estimate(GameState{ScoreDiff: 4, TimeRemaining: 2400}, 0)
	late := m.Estimate(GameState{ScoreDiff: 4, TimeRemaining: 240}, 0)
	assert.Greater(t, late, early)
}

func TestProbability_MomentumShiftsEstimate(t *testing.T) {
	m := NewProbabilityModel(DefaultModelParams())
	state := GameState{ScoreDiff: 0, TimeRemaining: 1500}
	assert.Greater(t, m.Estimate(state, 10), m.Estimate(state, 0))
	assert.Less(t, m.Estimate(state, -10), m.Estimate(state, 0))
}

func TestProbability_TwoPointLeadMidGame(t *testing.T) {
	// +2 con 1200 s por jugar y sin momentum ≈ 0.61
	m := NewProbabilityModel(DefaultModelParams())
	p := m.Estimate(GameState{ScoreDiff: 2, TimeRemaining: 1200}, 0)
	assert.InDelta(t, 0.61, p, 0.005)
}

func TestProbability_InvalidParamsFallBackToDefaults(t *testing.T) {
	m := NewProbabilityModel(ModelParams{HomeAdvantagePrior: 1.4, MomentumLogOdds: 0.02})
	assert.Equal(t, DefaultModelParams(), m.Params())
}

func TestClampProbability(t *testing.T) {
	assert.Equal(t, probEpsilon, ClampProbability(0))
	assert.Equal(t, 1-probEpsilon, ClampProbability(1))
	assert.Equal(t, 0.3, ClampProbability(0.3))
}
