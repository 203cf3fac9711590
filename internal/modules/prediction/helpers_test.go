package prediction

import (
	"math"
	"time"

	"github.com/aristath/foresight/internal/domain"
	"github.com/rs/zerolog"
)

var testStart = time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)

func nopLogger() zerolog.Logger { return zerolog.Nop() }

// trendingPrices rises by drift per step with a small deterministic wiggle
func trendingPrices(n int, start, drift float64) []float64 {
	out := make([]float64, n)
	p := start
	for i := range out {
		out[i] = p * (1 + 0.002*math.Sin(float64(i)/3))
		p *= 1 + drift
	}
	return out
}

func barsFrom(prices []float64) []domain.Bar {
	out := make([]domain.Bar, len(prices))
	for i, p := range prices {
		out[i] = domain.Bar{
			Date:   testStart.AddDate(0, 0, i),
			Symbol: "MKT",
			Open:   p, High: p, Low: p, Close: p,
			Volume: 1_000_000 + float64(i)*1_000,
		}
	}
	return out
}

func datesFor(n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = testStart.AddDate(0, 0, i)
	}
	return out
}
