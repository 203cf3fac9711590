package backtesting

import (
	"time"

	"github.com/aristath/foresight/internal/domain"
	testutil "github.com/aristath/foresight/internal/testing"
	"github.com/rs/zerolog"
)

const seriesDays = 220

func marketFixture(skipWeekends bool) *testutil.MarketData {
	return testutil.NewMarketData(
		testutil.GenerateBars(testutil.SeriesSpec{Symbol: "IDX", Start: 100, Drift: 0.0008, Amplitude: 0.006, Period: 17, SkipWeekends: skipWeekends}, seriesDays),
		testutil.GenerateBars(testutil.SeriesSpec{Symbol: "AAA", Start: 50, Drift: 0.0015, Amplitude: 0.012, Period: 11, SkipWeekends: skipWeekends}, seriesDays),
		testutil.GenerateBars(testutil.SeriesSpec{Symbol: "BBB", Start: 80, Drift: -0.0004, Amplitude: 0.009, Period: 23, SkipWeekends: skipWeekends}, seriesDays),
	)
}

func testScenario(name string) Scenario {
	sc := DefaultScenario()
	sc.Name = name
	sc.InitialCash = 100_000
	sc.Symbols = []string{"AAA", "BBB"}
	sc.MarketSymbol = "IDX"
	sc.Securities = []domain.SecurityInfo{
		{Symbol: "AAA", AssetClass: "equity", Instrument: domain.InstrumentEquity},
		{Symbol: "BBB", AssetClass: "bond", Instrument: domain.InstrumentBond},
	}
	sc.LookbackDays = 90
	sc.MinHistoryBars = 30
	sc.RetrainEveryDays = 10
	sc.HorizonDays = 5
	return sc
}

func testDeps(md domain.MarketDataProvider) Dependencies {
	return Dependencies{
		Market:   md,
		Economic: testutil.EconomicData{Indicators: map[string]float64{domain.IndicatorInflation: 0.02, domain.IndicatorInterestRate: 0.03}},
	}
}

func window() (time.Time, time.Time) {
	return testutil.Day0.AddDate(0, 0, 100), testutil.Day0.AddDate(0, 0, 160)
}

func newTestFramework(md domain.MarketDataProvider) *Framework {
	return NewFramework(testDeps(md), 2, zerolog.Nop())
}
