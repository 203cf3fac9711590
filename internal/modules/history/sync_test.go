package history

import (
	"context"
	"testing"

	"github.com/aristath/foresight/internal/domain"
	testutil "github.com/aristath/foresight/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncer_SyncBars(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	bars := testutil.GenerateBars(testutil.SeriesSpec{Symbol: "AAA", Start: 100, Drift: 0.001}, 30)
	bars[12].Close = -1
	source := testutil.NewMarketData(bars)
	syncer := NewSyncer(s, source, nil, zerolog.Nop())
	syncer.seedDays = 40

	end := testutil.Day0.AddDate(0, 0, 19)
	res, err := syncer.SyncBars(ctx, []string{"AAA", "MISSING"}, end)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Symbols)
	assert.Equal(t, 19, res.Inserted)
	assert.Equal(t, 1, res.Rejected)
	assert.Empty(t, res.Failed)

	// The second run only fetches the gap after the latest stored bar
	res, err = syncer.SyncBars(ctx, []string{"AAA"}, testutil.Day0.AddDate(0, 0, 29))
	require.NoError(t, err)
	assert.Equal(t, 10, res.Inserted)
	assert.Equal(t, 0, res.Rejected)

	latest, err := s.LatestBarDate(ctx, "AAA")
	require.NoError(t, err)
	assert.True(t, latest.Equal(testutil.Day0.AddDate(0, 0, 29)))
}

func TestSyncer_RecordsFailures(t *testing.T) {
	s := newStore(t)
	source := testutil.NewMarketData()
	source.SetError(assert.AnError)

	res, err := NewSyncer(s, source, nil, zerolog.Nop()).SyncBars(context.Background(), []string{"AAA"}, testutil.Day0)
	require.NoError(t, err)
	assert.Contains(t, res.Failed, "AAA")
}

func TestSyncer_SyncIndicators(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	econ := testutil.EconomicData{Indicators: map[string]float64{domain.IndicatorInflation: 0.02}}

	n, err := NewSyncer(s, testutil.NewMarketData(), econ, zerolog.Nop()).SyncIndicators(ctx, testutil.Day0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.Context(ctx, testutil.Day0.AddDate(0, 0, 3))
	require.NoError(t, err)
	assert.Equal(t, 0.02, got.Indicators[domain.IndicatorInflation])
}

func TestValidateBar(t *testing.T) {
	tests := []struct {
		name string
		bar  domain.Bar
		want string
	}{
		{"valid", domain.Bar{Open: 10, High: 11, Low: 9, Close: 10.5, Volume: 5}, ""},
		{"close only", domain.Bar{Close: 10}, ""},
		{"zero close", domain.Bar{Close: 0}, "non_positive_close"},
		{"inverted range", domain.Bar{High: 9, Low: 11, Close: 10}, "high_below_low"},
		{"close above high", domain.Bar{High: 10, Low: 9, Close: 12}, "high_below_close"},
		{"close below low", domain.Bar{High: 12, Low: 11, Close: 10}, "low_above_close"},
		{"negative volume", domain.Bar{Close: 10, Volume: -1}, "negative_volume"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateBar(tt.bar))
		})
	}
}
