package planning

import (
	"context"
	"testing"
	"time"

	"github.com/aristath/foresight/internal/database"
	"github.com/aristath/foresight/internal/domain"
	"github.com/aristath/foresight/internal/modules/allocation"
	"github.com/aristath/foresight/internal/modules/ensemble"
	"github.com/aristath/foresight/internal/modules/monitoring"
	"github.com/aristath/foresight/internal/modules/optimization"
	"github.com/aristath/foresight/internal/modules/portfolio"
	"github.com/aristath/foresight/internal/modules/prediction"
	testutil "github.com/aristath/foresight/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc    *Service
	repo   *portfolio.Repository
	market *testutil.MarketData
	date   time.Time
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	market := testutil.NewMarketData(
		testutil.GenerateBars(testutil.SeriesSpec{Symbol: "IDX", Start: 100, Drift: 0.0008, Amplitude: 0.006, Period: 17}, 150),
		testutil.GenerateBars(testutil.SeriesSpec{Symbol: "AAA", Start: 50, Drift: 0.0015, Amplitude: 0.012, Period: 11}, 150),
		testutil.GenerateBars(testutil.SeriesSpec{Symbol: "BBB", Start: 80, Drift: -0.0004, Amplitude: 0.009, Period: 23}, 150),
	)
	repo := portfolio.NewRepository(testutil.NewTestDB(t, database.NamePortfolio).Conn(), zerolog.Nop())

	p := testutil.PortfolioWith("main", 5_000, map[string]float64{"AAA": 40}, map[string]float64{"AAA": 50}, 0)
	p.Catalog["AAA"] = domain.SecurityInfo{Symbol: "AAA", AssetClass: "equity", Instrument: domain.InstrumentEquity}
	p.Catalog["BBB"] = domain.SecurityInfo{Symbol: "BBB", AssetClass: "bond", Instrument: domain.InstrumentBond}
	require.NoError(t, repo.SavePortfolio(context.Background(), p))

	predCfg := prediction.DefaultConfig()
	forecaster := ensemble.NewDefaultService(predCfg, domain.WeightingEqual,
		monitoring.NewMonitor(24*time.Hour, zerolog.Nop()), zerolog.Nop())
	cfg := DefaultConfig("IDX")
	cfg.LookbackDays = 120
	svc := NewService(
		market,
		testutil.EconomicData{Indicators: map[string]float64{domain.IndicatorInflation: 0.02}},
		repo,
		forecaster,
		optimization.NewOptimizer(allocation.DefaultConfig(), zerolog.Nop()),
		prediction.FeatureBuilder{ReturnLags: predCfg.ReturnLags},
		cfg,
		zerolog.Nop(),
	)
	return fixture{svc: svc, repo: repo, market: market, date: testutil.Day0.AddDate(0, 0, 140)}
}

func TestService_PredictMarket(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.PredictMarket(context.Background(), f.date, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Prediction.HorizonDays)
	assert.True(t, res.Prediction.Date.Equal(f.date))
	assert.NotEmpty(t, res.Prediction.Inputs)
	assert.False(t, f.market.LatestRequested().After(f.date))
}

func TestService_PredictSecurity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.PredictSecurity(ctx, "AAA", f.date, 3)
	require.NoError(t, err)
	assert.Equal(t, "AAA", res.Prediction.Symbol)
	assert.Equal(t, 3, res.Prediction.HorizonDays)

	_, err = f.svc.PredictSecurity(ctx, "", f.date, 3)
	assert.ErrorIs(t, err, domain.ErrEmptySymbol)

	_, err = f.svc.PredictSecurity(ctx, "ZZZ", f.date, 3)
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)
}

func TestService_ForecastPortfolio(t *testing.T) {
	f := newFixture(t)
	forecast, p, err := f.svc.ForecastPortfolio(context.Background(), "main", f.date, 0)
	require.NoError(t, err)

	assert.Contains(t, forecast.Securities, "AAA")
	assert.Contains(t, forecast.Securities, "BBB")
	require.Len(t, p.Positions, 1)
	assert.NotEmpty(t, p.Positions[0].PriceHistory)
	assert.Greater(t, forecast.Portfolio.Prediction.ExpectedValue, 0.0)

	_, _, err = f.svc.ForecastPortfolio(context.Background(), "missing", f.date, 0)
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)
}

func TestService_Optimize(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.Optimize(context.Background(), "main", f.date, 0, nil)
	require.NoError(t, err)

	require.NotNil(t, res.Plan)
	total := 0.0
	for _, w := range res.Plan.TargetWeights {
		assert.GreaterOrEqual(t, w, 0.0)
		total += w
	}
	assert.LessOrEqual(t, total, 1.0+1e-9)

	again, err := f.svc.Optimize(context.Background(), "main", f.date, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, res.Plan.TargetWeights, again.Plan.TargetWeights)
}

func TestService_Train(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	n, err := f.svc.Train(ctx, []string{"AAA", "BBB", "ZZZ"}, f.date)
	require.NoError(t, err)
	assert.Greater(t, n, 0)
	assert.False(t, f.market.LatestRequested().After(f.date))

	res, err := f.svc.PredictSecurity(ctx, "AAA", f.date, 0)
	require.NoError(t, err)
	models := map[domain.ModelType]bool{}
	for _, in := range res.Prediction.Inputs {
		models[in.Model] = true
	}
	assert.True(t, models[domain.ModelLearnedRegression])
}
