package diversification

import (
	"fmt"
	"testing"
	"time"

	"github.com/aristath/foresight/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, infos []domain.SecurityInfo, qty []float64) *domain.Portfolio {
	t.Helper()
	p := domain.NewPortfolio("p", 1_000_000)
	for i, info := range infos {
		p.Catalog[info.Symbol] = info
		require.NoError(t, p.ApplyTransaction(domain.Transaction{Type: domain.TransactionBuy, Symbol: info.Symbol, Quantity: qty[i], Price: 100}))
	}
	return p
}

func TestAnalyze_Concentrated(t *testing.T) {
	a := NewAnalyzer(zerolog.Nop())
	p := build(t, []domain.SecurityInfo{{Symbol: "A", Sector: "tech", Region: "us", MarketCap: "large", Style: "growth"}}, []float64{10})

	res, err := a.Analyze(p)
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Score)
	assert.Equal(t, 1.0, res.MaxWeight)
	assert.InDelta(t, 1.0, res.Herfindahl, 1e-12)
	assert.Len(t, res.Recommendations, 2)
}

func TestAnalyze_Spread(t *testing.T) {
	a := NewAnalyzer(zerolog.Nop())
	sectors := []string{"tech", "health", "energy", "finance", "utilities", "materials"}
	regions := []string{"us", "eu", "asia"}
	caps := []string{"large", "mid"}
	styles := []string{"growth", "value"}

	var infos []domain.SecurityInfo
	var qty []float64
	for i := 0; i < 12; i++ {
		infos = append(infos, domain.SecurityInfo{
			Symbol:    fmt.Sprintf("S%02d", i),
			Sector:    sectors[i%len(sectors)],
			Region:    regions[i%len(regions)],
			MarketCap: caps[i%len(caps)],
			Style:     styles[(i/2)%len(styles)],
		})
		qty = append(qty, 10)
	}
	p := build(t, infos, qty)

	res, err := a.Analyze(p)
	require.NoError(t, err)
	for name, c := range res.Components {
		assert.InDelta(t, 1.0, c, 1e-9, name)
	}
	assert.InDelta(t, 0.0, res.Gini, 1e-12)
	assert.InDelta(t, 1.0, res.Score, 1e-9, "no price history means zero correlation")
	assert.Empty(t, res.Recommendations)
	assert.InDelta(t, 1.0/12, res.Herfindahl, 1e-12)
}

func TestAnalyze_CorrelationDiscount(t *testing.T) {
	a := NewAnalyzer(zerolog.Nop())
	p := build(t, []domain.SecurityInfo{
		{Symbol: "A", Sector: "tech", Region: "us", MarketCap: "large", Style: "growth"},
		{Symbol: "B", Sector: "energy", Region: "eu", MarketCap: "mid", Style: "value"},
	}, []float64{10, 10})
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 30; i++ {
		price := 100 + float64(i%5)
		p.UpdatePrice("A", start.AddDate(0, 0, i), price)
		p.UpdatePrice("B", start.AddDate(0, 0, i), price*2)
	}
	p.Revalue()

	res, err := a.Analyze(p)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, res.AverageCorrelation, 1e-9)
	assert.Less(t, res.Score, res.RawScore)
	assert.Contains(t, res.Recommendations[len(res.Recommendations)-1], "correlation")
}

func TestAnalyze_Nil(t *testing.T) {
	_, err := NewAnalyzer(zerolog.Nop()).Analyze(nil)
	assert.ErrorIs(t, err, domain.ErrNilPortfolio)
}
