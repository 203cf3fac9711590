package prediction

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/aristath/foresight/internal/domain"
	"github.com/aristath/foresight/pkg/formulas"
	"github.com/rs/zerolog"
)

// LearnedRegressionModel predicts horizon returns with a trained estimator
// over normalised feature vectors.
type LearnedRegressionModel struct {
	cfg       Config
	estimator Estimator
	features  FeatureBuilder
	metrics   *metricsState
	log       zerolog.Logger

	mu             sync.RWMutex
	regressor      Regressor
	scaler         *Scaler
	trainedHorizon int
	quality        RegressionQuality
}

// NewLearnedRegressionModel creates an untrained model around estimator
func NewLearnedRegressionModel(cfg Config, estimator Estimator, log zerolog.Logger) *LearnedRegressionModel {
	if cfg.ReturnLags < 1 {
		cfg.ReturnLags = DefaultConfig().ReturnLags
	}
	if cfg.MinTrainingSamples < 2 {
		cfg.MinTrainingSamples = DefaultConfig().MinTrainingSamples
	}
	return &LearnedRegressionModel{
		cfg:       cfg,
		estimator: estimator,
		features:  FeatureBuilder{ReturnLags: cfg.ReturnLags},
		metrics:   newMetricsState(domain.ModelLearnedRegression),
		log:       log.With().Str("component", "learned_regression_model").Logger(),
	}
}

// Type implements Model
func (m *LearnedRegressionModel) Type() domain.ModelType { return domain.ModelLearnedRegression }

// Metrics implements Model
func (m *LearnedRegressionModel) Metrics() domain.ModelPerformanceMetrics { return m.metrics.snapshot() }

// Trained reports whether Update has succeeded at least once
func (m *LearnedRegressionModel) Trained() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.regressor != nil
}

// Quality returns the held-out regression scores of the last training run
func (m *LearnedRegressionModel) Quality() RegressionQuality {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.quality
}

// Features exposes the feature builder so callers can size training windows
func (m *LearnedRegressionModel) Features() FeatureBuilder {
	return m.features
}

// Update implements Model. Samples are ordered chronologically and split
// 80/20; the held-out part provides R², MAE and RMSE.
func (m *LearnedRegressionModel) Update(ctx context.Context, data TrainingData) error {
	samples := append([]TrainingSample(nil), data.Samples...)
	sort.SliceStable(samples, func(i, j int) bool { return samples[i].Date.Before(samples[j].Date) })

	X := make([][]float64, 0, len(samples))
	y := make([]float64, 0, len(samples))
	horizon := 0
	for _, s := range samples {
		if err := ctx.Err(); err != nil {
			return err
		}
		x, err := m.features.Build(s.Prices, s.Factors)
		if err != nil {
			continue
		}
		X = append(X, x)
		y = append(y, s.Target)
		if horizon == 0 {
			horizon = s.HorizonDays
		}
	}
	if len(X) < m.cfg.MinTrainingSamples {
		return domain.InsufficientHistory("training_samples", len(X), m.cfg.MinTrainingSamples)
	}

	split := int(math.Floor(float64(len(X)) * 0.8))
	trainX, trainY := X[:split], y[:split]
	testX, testY := X[split:], y[split:]
	if len(testX) < 5 {
		testX, testY = trainX, trainY
	}

	scaler := FitScaler(trainX)
	reg, err := m.estimator.Fit(ctx, scaler.TransformAll(trainX), trainY)
	if err != nil {
		return fmt.Errorf("failed to fit learned regression: %w", err)
	}

	preds := make([]float64, len(testX))
	for i, row := range testX {
		p, err := reg.Predict(scaler.Transform(row))
		if err != nil {
			return fmt.Errorf("failed to score held-out row %d: %w", i, err)
		}
		preds[i] = p
	}
	quality, err := EvaluateRegression(preds, testY)
	if err != nil {
		return err
	}
	dir, _ := ScoreDirectional([]ValidationSet{{Class: domain.ClassSecurity, Predicted: preds, Actual: testY}})

	m.mu.Lock()
	m.regressor = reg
	m.scaler = scaler
	m.trainedHorizon = horizonOrDefault(horizon)
	m.quality = quality
	m.mu.Unlock()

	confidence := trainedConfidence(quality.R2)
	m.metrics.update(func(mm *domain.ModelPerformanceMetrics) {
		mm.Timestamp = samples[len(samples)-1].Date
		mm.R2 = quality.R2
		mm.MAE = quality.MAE
		mm.RMSE = quality.RMSE
		mm.Samples = len(X)
		if mm.Accuracy == 0 {
			mm.Accuracy = dir.Accuracy
			mm.F1 = dir.F1
		}
		if mm.Confidence == 0 {
			mm.Confidence = confidence
		}
	})

	m.log.Debug().
		Int("samples", len(X)).
		Float64("r2", quality.R2).
		Float64("rmse", quality.RMSE).
		Msg("Learned regression trained")
	return nil
}

func trainedConfidence(r2 float64) float64 {
	return formulas.Clamp01(0.3 + 0.7*math.Max(0, r2))
}

func (m *LearnedRegressionModel) predictReturn(prices []float64, factors map[string]float64, horizon int) (float64, float64, error) {
	m.mu.RLock()
	reg, scaler, trainedH, quality := m.regressor, m.scaler, m.trainedHorizon, m.quality
	m.mu.RUnlock()
	if reg == nil {
		return 0, 0, domain.NewValidationError(domain.ErrModelNotTrained, "model", "learned regression has not been trained")
	}

	x, err := m.features.Build(prices, factors)
	if err != nil {
		return 0, 0, err
	}
	r, err := reg.Predict(scaler.Transform(x))
	if err != nil {
		return 0, 0, err
	}
	if horizon != trainedH && r > -1 {
		r = math.Pow(1+r, float64(horizon)/float64(trainedH)) - 1
	}
	return r, trainedConfidence(quality.R2), nil
}

func (m *LearnedRegressionModel) prediction(prices []float64, expected, confidence float64, horizon int) domain.Prediction {
	vol := formulas.StdDev(formulas.CalculateReturns(prices))
	technical := 0.5
	if rsi := formulas.CalculateRSI(prices, rsiPeriod); rsi != nil {
		technical = *rsi / 100
	}
	return domain.Prediction{
		ExpectedReturn: expected,
		Volatility:     vol,
		RiskLevel:      domain.RiskLevelFromVolatility(vol),
		Confidence:     confidence,
		HorizonDays:    horizon,
		Trend:          domain.TrendFromValue(expected),
		TechnicalScore: technical,
	}
}

// PredictMarket implements Model
func (m *LearnedRegressionModel) PredictMarket(history []domain.Bar, econ domain.EconomicContext, horizon int) (domain.MarketPredictionResult, error) {
	horizon = horizonOrDefault(horizon)
	prices := closesOf(history)
	r, conf, err := m.predictReturn(prices, econ.Indicators, horizon)
	if err != nil {
		return domain.MarketPredictionResult{}, err
	}
	pred := domain.MarketPrediction{
		Prediction:    m.prediction(prices, r, conf, horizon),
		Date:          history[len(history)-1].Date,
		TrendStrength: PerPeriodReturn(r, horizon),
	}
	return domain.MarketPredictionResult{Prediction: pred, Confidence: conf, Metrics: m.Metrics()}, nil
}

// PredictSecurity implements Model
func (m *LearnedRegressionModel) PredictSecurity(symbol string, prices []float64, factors map[string]float64, horizon int) (domain.SecurityPredictionResult, error) {
	if symbol == "" {
		return domain.SecurityPredictionResult{}, domain.NewValidationError(domain.ErrEmptySymbol, "symbol", "security prediction needs a symbol")
	}
	horizon = horizonOrDefault(horizon)
	r, conf, err := m.predictReturn(prices, factors, horizon)
	if err != nil {
		return domain.SecurityPredictionResult{}, err
	}
	pred := domain.SecurityPrediction{Prediction: m.prediction(prices, r, conf, horizon), Symbol: symbol, Beta: 1}
	return domain.SecurityPredictionResult{Prediction: pred, Confidence: conf, Metrics: m.Metrics()}, nil
}

// PredictPortfolio implements Model
func (m *LearnedRegressionModel) PredictPortfolio(portfolio *domain.Portfolio, market domain.MarketPrediction, horizon int) (domain.PortfolioPredictionResult, error) {
	return predictPortfolioWith(m.PredictSecurity, m.Metrics(), portfolio, market, horizon)
}

// Validate implements Model
func (m *LearnedRegressionModel) Validate(sets []ValidationSet) (map[domain.PredictionClass]float64, error) {
	return validateInto(m.metrics, sets)
}
