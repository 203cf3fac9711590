package prediction

import (
	"errors"
	"math"

	"github.com/aristath/foresight/internal/domain"
	"github.com/aristath/foresight/pkg/formulas"
)

type securityPredictor func(symbol string, prices []float64, factors map[string]float64, horizon int) (domain.SecurityPredictionResult, error)

// predictPortfolioWith aggregates per-position security forecasts into a
// portfolio forecast. Positions without enough history are skipped; if none
// can be forecast the first validation error is returned.
func predictPortfolioWith(
	predict securityPredictor,
	metrics domain.ModelPerformanceMetrics,
	portfolio *domain.Portfolio,
	market domain.MarketPrediction,
	horizon int,
) (domain.PortfolioPredictionResult, error) {
	if err := portfolio.Validate(); err != nil {
		return domain.PortfolioPredictionResult{}, err
	}
	horizon = horizonOrDefault(horizon)

	factors := map[string]float64{
		domain.FactorMarketReturn: PerPeriodReturn(market.ExpectedReturn, market.HorizonDays),
	}

	securities := map[string]domain.SecurityPrediction{}
	returnSeries := map[string][]float64{}
	var firstErr error
	investedWeight := 0.0
	for _, pos := range portfolio.Positions {
		prices := pos.Prices()
		res, err := predict(pos.Symbol, prices, factors, horizon)
		if err != nil {
			if !errors.Is(err, domain.ErrInsufficientHistory) && !errors.Is(err, domain.ErrModelNotTrained) {
				return domain.PortfolioPredictionResult{}, err
			}
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		securities[pos.Symbol] = res.Prediction
		returnSeries[pos.Symbol] = formulas.CalculateReturns(prices)
		investedWeight += pos.Weight
	}

	if len(portfolio.Positions) > 0 && len(securities) == 0 {
		return domain.PortfolioPredictionResult{}, firstErr
	}

	var pred domain.PortfolioPrediction
	pred.HorizonDays = horizon
	pred.Securities = securities

	weights := map[string]float64{}
	for _, pos := range portfolio.Positions {
		if _, ok := securities[pos.Symbol]; ok {
			weights[pos.Symbol] = pos.Weight
		}
	}

	for _, sym := range formulas.SortedKeys(securities) {
		w := weights[sym]
		sp := securities[sym]
		pred.ExpectedReturn += w * sp.ExpectedReturn
		if investedWeight > 0 {
			share := w / investedWeight
			pred.Confidence += share * sp.Confidence
			pred.TechnicalScore += share * sp.TechnicalScore
		}
	}

	pred.Volatility = weightedSeriesVolatility(weights, returnSeries)
	pred.RiskLevel = domain.RiskLevelFromVolatility(pred.Volatility)
	pred.Trend = domain.TrendFromValue(pred.ExpectedReturn)
	pred.DiversificationScore = quickDiversification(weights, returnSeries)
	pred.ExpectedValue = portfolio.TotalValue * (1 + pred.ExpectedReturn)

	return domain.PortfolioPredictionResult{
		Prediction: pred,
		Confidence: pred.Confidence,
		Metrics:    metrics,
	}, nil
}

// weightedSeriesVolatility is the sample std of the weighted return series
// over the common tail of all member series.
func weightedSeriesVolatility(weights map[string]float64, series map[string][]float64) float64 {
	n := math.MaxInt
	for sym := range weights {
		if l := len(series[sym]); l < n {
			n = l
		}
	}
	if n == math.MaxInt || n < 2 {
		return 0
	}
	combined := make([]float64, n)
	for _, sym := range formulas.SortedKeys(weights) {
		s := series[sym]
		s = s[len(s)-n:]
		for i := range combined {
			combined[i] += weights[sym] * s[i]
		}
	}
	return formulas.StdDev(combined)
}

// quickDiversification scores symbol-level spread discounted by correlation
func quickDiversification(weights map[string]float64, series map[string][]float64) float64 {
	spread := formulas.NormalizedEntropy(weights)
	corr := formulas.AveragePairwiseCorrelation(series)
	return formulas.Clamp01(spread * (1 - 0.5*math.Max(0, corr)))
}

// PerPeriodReturn converts a horizon return back to a per-period return
func PerPeriodReturn(horizonReturn float64, horizon int) float64 {
	if horizon <= 1 {
		return horizonReturn
	}
	if horizonReturn <= -1 {
		return -1
	}
	return math.Pow(1+horizonReturn, 1/float64(horizon)) - 1
}
