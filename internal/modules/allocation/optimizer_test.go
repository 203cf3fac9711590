package allocation

import (
	"testing"

	"github.com/aristath/foresight/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sum(weights map[string]float64) float64 {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	return total
}

func TestOptimize_SumsToOne(t *testing.T) {
	o := NewOptimizer(DefaultConfig(), zerolog.Nop())

	tests := []struct {
		name    string
		classes []ClassInput
		profile domain.RiskProfile
	}{
		{
			name: "two classes",
			classes: []ClassInput{
				{Name: "equity", BaseWeight: 0.6, ExpectedReturn: 0.05, RiskFactor: 0.5},
				{Name: "bond", BaseWeight: 0.4, ExpectedReturn: 0.01, RiskFactor: 0.1},
			},
			profile: domain.DefaultRiskProfile(),
		},
		{
			name: "all clamped to zero falls back to equal",
			classes: []ClassInput{
				{Name: "a", BaseWeight: 1, ExpectedReturn: -5, RiskFactor: 0.5},
				{Name: "b", BaseWeight: 1, ExpectedReturn: -5, RiskFactor: 0.5},
			},
			profile: domain.RiskProfile{RiskTolerance: 0, MaxRisk: 1},
		},
		{
			name: "zero base weights",
			classes: []ClassInput{
				{Name: "a", RiskFactor: 0.9},
				{Name: "b", RiskFactor: 0.2},
				{Name: "c", RiskFactor: 0.4},
			},
			profile: domain.RiskProfile{RiskTolerance: 80, MaxRisk: 0.3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := o.Optimize(tt.classes, tt.profile)
			require.NoError(t, err)
			assert.InDelta(t, 1.0, sum(res.Weights), 1e-6)
			for _, w := range res.Weights {
				assert.GreaterOrEqual(t, w, 0.0)
				assert.LessOrEqual(t, w, 1.0)
			}
		})
	}
}

func TestOptimize_RepairsRiskConstraint(t *testing.T) {
	o := NewOptimizer(DefaultConfig(), zerolog.Nop())
	res, err := o.Optimize([]ClassInput{
		{Name: "equity", BaseWeight: 0.8, RiskFactor: 0.9},
		{Name: "bond", BaseWeight: 0.2, RiskFactor: 0.1},
	}, domain.RiskProfile{RiskTolerance: 100, MaxRisk: 0.4})
	require.NoError(t, err)

	assert.True(t, res.Converged)
	assert.Greater(t, res.Iterations, 0)
	assert.LessOrEqual(t, res.TotalRisk, 0.4)
	assert.Greater(t, res.Weights["bond"], res.Weights["equity"])
}

func TestOptimize_BoundedIterations(t *testing.T) {
	o := NewOptimizer(Config{MaxIterations: 3, ReductionStep: 0.1}, zerolog.Nop())
	res, err := o.Optimize([]ClassInput{
		{Name: "a", BaseWeight: 0.5, RiskFactor: 0.9},
		{Name: "b", BaseWeight: 0.5, RiskFactor: 0.8},
	}, domain.RiskProfile{RiskTolerance: 50, MaxRisk: 0.1})
	require.NoError(t, err)

	assert.Equal(t, 3, res.Iterations)
	assert.False(t, res.Converged)
	assert.InDelta(t, 1.0, sum(res.Weights), 1e-6)
}

func TestOptimize_Validation(t *testing.T) {
	o := NewOptimizer(DefaultConfig(), zerolog.Nop())

	_, err := o.Optimize([]ClassInput{{Name: ""}}, domain.DefaultRiskProfile())
	assert.ErrorIs(t, err, domain.ErrEmptySymbol)

	_, err = o.Optimize([]ClassInput{{Name: "a"}, {Name: "a"}}, domain.DefaultRiskProfile())
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	res, err := o.Optimize(nil, domain.DefaultRiskProfile())
	require.NoError(t, err)
	assert.Empty(t, res.Weights)
}

func TestCompare(t *testing.T) {
	got := Compare(
		map[string]float64{"equity": 0.6, "bond": 0.4},
		map[string]float64{"equity": 0.5, "cash": 0.5},
		1000,
	)
	require.Len(t, got, 3)
	assert.Equal(t, "bond", got[0].Name)
	assert.Equal(t, 0.4, got[0].Deviation)
	assert.Equal(t, "cash", got[1].Name)
	assert.Equal(t, -0.5, got[1].Deviation)
	assert.Equal(t, 600.0, got[2].CurrentValue)
	assert.Equal(t, 0.1, got[2].Deviation)
}
