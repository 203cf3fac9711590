package prediction

import (
	"context"
	"math"

	"github.com/aristath/foresight/internal/domain"
	"github.com/aristath/foresight/pkg/formulas"
	"github.com/rs/zerolog"
)

// StatisticalModel forecasts from return moments, a beta/alpha estimate
// against an assumed market return and the least-squares slope of returns.
type StatisticalModel struct {
	cfg     Config
	metrics *metricsState
	log     zerolog.Logger
}

// NewStatisticalModel creates a statistical model
func NewStatisticalModel(cfg Config, log zerolog.Logger) *StatisticalModel {
	if cfg.AssumedMarketReturn == 0 {
		cfg.AssumedMarketReturn = DefaultConfig().AssumedMarketReturn
	}
	return &StatisticalModel{
		cfg:     cfg,
		metrics: newMetricsState(domain.ModelStatistical),
		log:     log.With().Str("component", "statistical_model").Logger(),
	}
}

// Type implements Model
func (m *StatisticalModel) Type() domain.ModelType { return domain.ModelStatistical }

// Metrics implements Model
func (m *StatisticalModel) Metrics() domain.ModelPerformanceMetrics { return m.metrics.snapshot() }

// statEstimate is the shared intermediate of every statistical forecast
type statEstimate struct {
	mean, vol, slope float64
	beta, alpha      float64
	perPeriod        float64
	horizonReturn    float64
	confidence       float64
	technical        float64
	trend            domain.TrendDirection
	risk             domain.RiskLevel
}

func (m *StatisticalModel) estimate(prices []float64, factors map[string]float64, horizon int) (statEstimate, error) {
	if len(prices) < 2 {
		return statEstimate{}, domain.InsufficientHistory("prices", len(prices), 2)
	}
	returns := formulas.CalculateReturns(prices)

	var e statEstimate
	e.mean = formulas.Mean(returns)
	e.vol = formulas.StdDev(returns)
	e.slope = formulas.LinearSlope(returns)

	assumed := m.cfg.AssumedMarketReturn
	e.beta = formulas.Clamp(e.mean/assumed, -3, 3)
	e.alpha = e.mean - e.beta*assumed

	marketReturn := assumed
	if v, ok := factors[domain.FactorMarketReturn]; ok {
		marketReturn = v
	}
	e.perPeriod = e.alpha + e.beta*marketReturn
	e.horizonReturn = formulas.CompoundReturn(e.perPeriod, horizon)

	trendScore := 0.5
	switch {
	case e.slope == 0 || e.perPeriod == 0:
		// neutral
	case (e.slope > 0) == (e.perPeriod > 0):
		trendScore = 1
	default:
		trendScore = 0
	}
	e.confidence = formulas.Clamp01(0.5*trendScore + 0.5*(1-e.vol))

	e.technical = 0.5
	if e.vol > 0 {
		e.technical = formulas.Clamp01(0.5 + 0.5*math.Tanh(e.mean/e.vol))
	}
	e.trend = domain.TrendFromValue(e.slope)
	e.risk = domain.RiskLevelFromVolatility(e.vol)
	return e, nil
}

func (e statEstimate) prediction(horizon int) domain.Prediction {
	return domain.Prediction{
		ExpectedReturn: e.horizonReturn,
		Volatility:     e.vol,
		RiskLevel:      e.risk,
		Confidence:     e.confidence,
		HorizonDays:    horizon,
		Trend:          e.trend,
		TechnicalScore: e.technical,
	}
}

// PredictMarket implements Model
func (m *StatisticalModel) PredictMarket(history []domain.Bar, econ domain.EconomicContext, horizon int) (domain.MarketPredictionResult, error) {
	horizon = horizonOrDefault(horizon)
	e, err := m.estimate(closesOf(history), econ.Indicators, horizon)
	if err != nil {
		return domain.MarketPredictionResult{}, err
	}
	pred := domain.MarketPrediction{
		Prediction:    e.prediction(horizon),
		Date:          history[len(history)-1].Date,
		TrendStrength: e.slope,
	}
	return domain.MarketPredictionResult{Prediction: pred, Confidence: e.confidence, Metrics: m.Metrics()}, nil
}

// PredictSecurity implements Model
func (m *StatisticalModel) PredictSecurity(symbol string, prices []float64, factors map[string]float64, horizon int) (domain.SecurityPredictionResult, error) {
	if symbol == "" {
		return domain.SecurityPredictionResult{}, domain.NewValidationError(domain.ErrEmptySymbol, "symbol", "security prediction needs a symbol")
	}
	horizon = horizonOrDefault(horizon)
	e, err := m.estimate(prices, factors, horizon)
	if err != nil {
		return domain.SecurityPredictionResult{}, err
	}
	pred := domain.SecurityPrediction{
		Prediction: e.prediction(horizon),
		Symbol:     symbol,
		Beta:       e.beta,
		Alpha:      e.alpha,
	}
	return domain.SecurityPredictionResult{Prediction: pred, Confidence: e.confidence, Metrics: m.Metrics()}, nil
}

// PredictPortfolio implements Model
func (m *StatisticalModel) PredictPortfolio(portfolio *domain.Portfolio, market domain.MarketPrediction, horizon int) (domain.PortfolioPredictionResult, error) {
	return predictPortfolioWith(m.PredictSecurity, m.Metrics(), portfolio, market, horizon)
}

// Update implements Model. The statistical model has no trainable state; it
// only records how many samples it has seen.
func (m *StatisticalModel) Update(ctx context.Context, data TrainingData) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.metrics.update(func(mm *domain.ModelPerformanceMetrics) {
		if len(data.Samples) > 0 {
			mm.Timestamp = data.Samples[len(data.Samples)-1].Date
		}
	})
	return nil
}

// Validate implements Model
func (m *StatisticalModel) Validate(sets []ValidationSet) (map[domain.PredictionClass]float64, error) {
	return validateInto(m.metrics, sets)
}
