package formulas

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSimpleReturn(t *testing.T) {
	assert.InDelta(t, 0.10, SimpleReturn(100, 110), 1e-12)
	assert.InDelta(t, -0.5, SimpleReturn(100, 50), 1e-12)
	assert.Equal(t, 0.0, SimpleReturn(0, 10))
}

func TestAnnualizedReturn(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		end      time.Time
		endValue float64
		expected float64
	}{
		{"one year", start.AddDate(0, 0, 365), 110, 0.10},
		{"two years", start.AddDate(0, 0, 730), 121, 0.10},
		{"same day falls back to simple", start, 110, 0.10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, AnnualizedReturn(100, tt.endValue, start, tt.end), 1e-9)
		})
	}
}

func TestCalculateReturns(t *testing.T) {
	assert.Empty(t, CalculateReturns([]float64{100}))
	got := CalculateReturns([]float64{100, 110, 99})
	assert.InDeltaSlice(t, []float64{0.10, -0.10}, got, 1e-12)
}

func TestStdDev_SmallInputs(t *testing.T) {
	assert.Equal(t, 0.0, StdDev(nil))
	assert.Equal(t, 0.0, StdDev([]float64{1}))
	assert.InDelta(t, math.Sqrt(2), StdDev([]float64{1, 3}), 1e-12)
}

func TestLinearSlope(t *testing.T) {
	assert.InDelta(t, 2.0, LinearSlope([]float64{1, 3, 5, 7}), 1e-12)
	assert.InDelta(t, 0.0, LinearSlope([]float64{4, 4, 4}), 1e-12)
	assert.Equal(t, 0.0, LinearSlope([]float64{4}))
}

func TestCorrelation_Degenerate(t *testing.T) {
	assert.Equal(t, 0.0, Correlation([]float64{1, 1, 1}, []float64{1, 2, 3}))
	assert.Equal(t, 0.0, Correlation([]float64{1, 2}, []float64{1}))
	assert.InDelta(t, 1.0, Correlation([]float64{1, 2, 3}, []float64{2, 4, 6}), 1e-12)
}

func TestCompoundReturn(t *testing.T) {
	assert.InDelta(t, 0.21, CompoundReturn(0.10, 2), 1e-12)
	assert.Equal(t, 0.0, CompoundReturn(0.10, 0))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.01, Clamp(0.001, 0.01, 0.30))
	assert.Equal(t, 0.30, Clamp(0.9, 0.01, 0.30))
	assert.Equal(t, 0.5, Clamp01(0.5))
	assert.Equal(t, 1.0, Clamp01(2))
}
