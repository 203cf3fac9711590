package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateVaRAndCVaR(t *testing.T) {
	returns := make([]float64, 0, 100)
	for i := 1; i <= 100; i++ {
		returns = append(returns, float64(i-50)/1000)
	}

	// fifth smallest of -0.049..0.050
	assert.InDelta(t, -0.045, CalculateVaR(returns, 0.95), 1e-12)
	// mean of the five worst returns
	assert.InDelta(t, -0.047, CalculateCVaR(returns, 0.95), 1e-12)
	assert.LessOrEqual(t, CalculateCVaR(returns, 0.95), CalculateVaR(returns, 0.95))

	assert.Equal(t, 0.0, CalculateVaR(nil, 0.95))
	assert.Equal(t, 0.0, CalculateCVaR(nil, 0.95))
	assert.Equal(t, 0.02, CalculateCVaR([]float64{0.02}, 0.95))
}

func TestCalculateVaR_EmpiricalQuantile(t *testing.T) {
	tests := []struct {
		name       string
		returns    []float64
		confidence float64
		expected   float64
	}{
		{"single", []float64{0.02}, 0.95, 0.02},
		{"tail below one observation", []float64{0.03, -0.01, 0.02, -0.04}, 0.95, -0.04},
		{"unsorted input", []float64{0.01, -0.02, 0.03, -0.05, 0.04, 0.0, -0.01, 0.02, 0.01, -0.03}, 0.75, -0.02},
		{"median", []float64{0.03, 0.01, 0.02, 0.04}, 0.5, 0.02},
		{"full confidence is the worst return", []float64{0.01, -0.02, 0.03}, 1, -0.02},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, CalculateVaR(tt.returns, tt.confidence), 1e-12)
		})
	}
}

func TestCalculateSharpeRatio(t *testing.T) {
	assert.Nil(t, CalculateSharpeRatio([]float64{0.01}, 0, 252))
	assert.Nil(t, CalculateSharpeRatio([]float64{0.01, 0.01, 0.01}, 0, 252))

	s := CalculateSharpeRatio([]float64{0.01, 0.02, -0.01, 0.015}, 0, 252)
	require.NotNil(t, s)
	assert.Greater(t, *s, 0.0)
}

func TestCalculateSortinoRatio(t *testing.T) {
	assert.Nil(t, CalculateSortinoRatio([]float64{0.01, 0.02}, 0, 0, 252))

	s := CalculateSortinoRatio([]float64{0.02, -0.01, 0.03, -0.005}, 0, 0, 252)
	require.NotNil(t, s)
	assert.Greater(t, *s, 0.0)
}

func TestCalculateInformationRatio(t *testing.T) {
	assert.Nil(t, CalculateInformationRatio([]float64{0.01, 0.02}, []float64{0.01}, 252))
	ir := CalculateInformationRatio([]float64{0.02, 0.01, 0.03}, []float64{0.01, 0.01, 0.01}, 252)
	require.NotNil(t, ir)
	assert.Greater(t, *ir, 0.0)
}

func TestCalculateMaxDrawdown(t *testing.T) {
	assert.Nil(t, CalculateMaxDrawdown([]float64{100}))
	dd := CalculateMaxDrawdown([]float64{100, 120, 90, 130, 117})
	require.NotNil(t, dd)
	assert.InDelta(t, 0.25, *dd, 1e-12)

	series := DrawdownSeries([]float64{100, 120, 90})
	assert.InDeltaSlice(t, []float64{0, 0, 0.25}, series, 1e-12)
}
