package testing

import (
	"math"
	"time"

	"github.com/aristath/foresight/internal/domain"
)

// Day0 is the first date of every generated series
var Day0 = time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)

// SeriesSpec describes a deterministic synthetic price path: a constant
// daily drift plus a sine wave so returns are not constant.
type SeriesSpec struct {
	Symbol    string
	Start     float64
	Drift     float64
	Amplitude float64
	Period    int
	// SkipWeekends leaves Saturdays and Sundays without bars
	SkipWeekends bool
}

// GenerateBars produces one bar per calendar day from Day0 for days days
func GenerateBars(series SeriesSpec, days int) []domain.Bar {
	if series.Period <= 0 {
		series.Period = 20
	}
	var out []domain.Bar
	price := series.Start
	for i := 0; i < days; i++ {
		d := Day0.AddDate(0, 0, i)
		wave := series.Amplitude * math.Sin(2*math.Pi*float64(i)/float64(series.Period))
		price *= 1 + series.Drift + wave
		if series.SkipWeekends && (d.Weekday() == time.Saturday || d.Weekday() == time.Sunday) {
			continue
		}
		out = append(out, domain.Bar{
			Date:   d,
			Symbol: series.Symbol,
			Open:   price * 0.998,
			High:   price * 1.01,
			Low:    price * 0.99,
			Close:  price,
			Volume: 1_000_000 + float64(i%7)*50_000,
		})
	}
	return out
}

// PortfolioWith builds a revalued portfolio holding qty of each symbol at
// the given prices with a flat price history of n points.
func PortfolioWith(id string, cash float64, holdings map[string]float64, prices map[string]float64, history int) *domain.Portfolio {
	p := domain.NewPortfolio(id, cash)
	for sym, qty := range holdings {
		pos := domain.Position{
			SecurityInfo: domain.SecurityInfo{Symbol: sym, AssetClass: "equity", Instrument: domain.InstrumentEquity},
			Quantity:     qty,
			AverageCost:  prices[sym],
			CurrentPrice: prices[sym],
			AcquiredAt:   Day0,
		}
		for i := 0; i < history; i++ {
			pos.PriceHistory = append(pos.PriceHistory, domain.PricePoint{Date: Day0.AddDate(0, 0, i), Price: prices[sym]})
		}
		p.Positions = append(p.Positions, pos)
	}
	p.Revalue()
	return p
}
