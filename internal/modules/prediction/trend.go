package prediction

import (
	"context"
	"math"
	"sort"

	"github.com/aristath/foresight/internal/domain"
	"github.com/aristath/foresight/pkg/formulas"
	"github.com/rs/zerolog"
)

// TrendFollowingModel forecasts from moving-average spreads. Each window w is
// compared with a window of length 2w, so the longest pair sets the minimum
// history.
type TrendFollowingModel struct {
	windows []int
	metrics *metricsState
	log     zerolog.Logger
}

// NewTrendFollowingModel creates a trend-following model
func NewTrendFollowingModel(cfg Config, log zerolog.Logger) *TrendFollowingModel {
	windows := append([]int(nil), cfg.TrendWindows...)
	if len(windows) == 0 {
		windows = DefaultConfig().TrendWindows
	}
	sort.Ints(windows)
	return &TrendFollowingModel{
		windows: windows,
		metrics: newMetricsState(domain.ModelTrendFollowing),
		log:     log.With().Str("component", "trend_following_model").Logger(),
	}
}

// Type implements Model
func (m *TrendFollowingModel) Type() domain.ModelType { return domain.ModelTrendFollowing }

// Metrics implements Model
func (m *TrendFollowingModel) Metrics() domain.ModelPerformanceMetrics { return m.metrics.snapshot() }

// RequiredHistory is the number of prices needed for a forecast
func (m *TrendFollowingModel) RequiredHistory() int {
	return 2 * m.windows[len(m.windows)-1]
}

type trendEstimate struct {
	strength      float64
	momentum      float64
	volumeTrend   float64
	vol           float64
	agreement     float64
	horizonReturn float64
	technical     float64
	confidence    float64
}

func (m *TrendFollowingModel) estimate(prices, volumes []float64, horizon int) (trendEstimate, error) {
	if need := m.RequiredHistory(); len(prices) < need {
		return trendEstimate{}, domain.InsufficientHistory("prices", len(prices), need)
	}

	var e trendEstimate
	spreads := make([]float64, 0, len(m.windows))
	for _, w := range m.windows {
		short := formulas.DerefOr(formulas.CalculateSMA(prices, w), 0)
		long := formulas.DerefOr(formulas.CalculateSMA(prices, 2*w), 0)
		if long == 0 {
			spreads = append(spreads, 0)
			continue
		}
		spreads = append(spreads, (short-long)/long)
	}
	e.strength = formulas.Mean(spreads)

	dir := math.Copysign(1, e.strength)
	agree := 0
	for _, s := range spreads {
		if s != 0 && math.Copysign(1, s) == dir {
			agree++
		}
	}
	if e.strength != 0 {
		e.agreement = float64(agree) / float64(len(spreads))
	}

	w0 := m.windows[0]
	if len(m.windows) > 1 {
		s0 := formulas.DerefOr(formulas.CalculateSMA(prices, w0), 0)
		s1 := formulas.DerefOr(formulas.CalculateSMA(prices, m.windows[1]), 0)
		if s1 != 0 {
			e.momentum = s0/s1 - 1
		}
	}

	if len(volumes) >= 2*w0 {
		vs := formulas.DerefOr(formulas.CalculateSMA(volumes, w0), 0)
		vl := formulas.DerefOr(formulas.CalculateSMA(volumes, 2*w0), 0)
		if vl > 0 {
			e.volumeTrend = formulas.Clamp(vs/vl-1, -1, 1)
		}
	}

	e.vol = formulas.StdDev(formulas.CalculateReturns(prices))
	damping := 1 / (1 + 10*e.vol)
	perPeriod := e.strength * damping * (1 + 0.5*e.volumeTrend) / float64(w0)
	e.horizonReturn = formulas.CompoundReturn(perPeriod, horizon)

	blend := 0.5*math.Tanh(10*e.strength) + 0.3*math.Tanh(10*e.momentum) + 0.2*e.volumeTrend
	e.technical = formulas.Clamp01(0.5 + 0.5*blend)
	e.confidence = formulas.Clamp01((0.4 + 0.6*e.agreement) * (1 - math.Min(0.5, e.vol)))
	return e, nil
}

func (e trendEstimate) prediction(horizon int) domain.Prediction {
	return domain.Prediction{
		ExpectedReturn: e.horizonReturn,
		Volatility:     e.vol,
		RiskLevel:      domain.RiskLevelFromVolatility(e.vol),
		Confidence:     e.confidence,
		HorizonDays:    horizon,
		Trend:          domain.TrendFromValue(e.strength),
		TechnicalScore: e.technical,
	}
}

// PredictMarket implements Model
func (m *TrendFollowingModel) PredictMarket(history []domain.Bar, econ domain.EconomicContext, horizon int) (domain.MarketPredictionResult, error) {
	horizon = horizonOrDefault(horizon)
	e, err := m.estimate(closesOf(history), domain.Volumes(history), horizon)
	if err != nil {
		return domain.MarketPredictionResult{}, err
	}
	pred := domain.MarketPrediction{
		Prediction:    e.prediction(horizon),
		Date:          history[len(history)-1].Date,
		TrendStrength: e.strength,
	}
	return domain.MarketPredictionResult{Prediction: pred, Confidence: e.confidence, Metrics: m.Metrics()}, nil
}

// PredictSecurity implements Model
func (m *TrendFollowingModel) PredictSecurity(symbol string, prices []float64, factors map[string]float64, horizon int) (domain.SecurityPredictionResult, error) {
	if symbol == "" {
		return domain.SecurityPredictionResult{}, domain.NewValidationError(domain.ErrEmptySymbol, "symbol", "security prediction needs a symbol")
	}
	horizon = horizonOrDefault(horizon)
	e, err := m.estimate(prices, nil, horizon)
	if err != nil {
		return domain.SecurityPredictionResult{}, err
	}
	pred := domain.SecurityPrediction{Prediction: e.prediction(horizon), Symbol: symbol, Beta: 1}
	return domain.SecurityPredictionResult{Prediction: pred, Confidence: e.confidence, Metrics: m.Metrics()}, nil
}

// PredictPortfolio implements Model
func (m *TrendFollowingModel) PredictPortfolio(portfolio *domain.Portfolio, market domain.MarketPrediction, horizon int) (domain.PortfolioPredictionResult, error) {
	return predictPortfolioWith(m.PredictSecurity, m.Metrics(), portfolio, market, horizon)
}

// Update implements Model; moving averages need no training
func (m *TrendFollowingModel) Update(ctx context.Context, data TrainingData) error {
	return ctx.Err()
}

// Validate implements Model
func (m *TrendFollowingModel) Validate(sets []ValidationSet) (map[domain.PredictionClass]float64, error) {
	return validateInto(m.metrics, sets)
}
