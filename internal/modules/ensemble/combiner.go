package ensemble

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/aristath/foresight/internal/domain"
	"github.com/aristath/foresight/internal/modules/prediction"
)

// CombinerSample is one historical ensemble observation: what each sub-model
// forecast, the portfolio state at the time and the realised return.
type CombinerSample struct {
	Date           time.Time                    `json:"date"`
	ModelReturns   map[domain.ModelType]float64 `json:"model_returns"`
	PortfolioValue float64                      `json:"portfolio_value"`
	Exposure       float64                      `json:"exposure"`
	Actual         float64                      `json:"actual"`
}

// Features returns sub-model forecasts in fixed model order, log portfolio
// value and invested exposure.
func (s CombinerSample) Features() []float64 {
	x := make([]float64, 0, len(domain.AllModelTypes)+2)
	for _, m := range domain.AllModelTypes {
		x = append(x, s.ModelReturns[m])
	}
	x = append(x, math.Log1p(math.Max(0, s.PortfolioValue)), s.Exposure)
	return x
}

// Combiner is a regression-based blender trained on historical ensemble
// feature vectors.
type Combiner struct {
	estimator prediction.Estimator

	mu        sync.RWMutex
	regressor prediction.Regressor
	scaler    *prediction.Scaler
	quality   prediction.RegressionQuality
}

// NewCombiner creates an untrained combiner
func NewCombiner(estimator prediction.Estimator) *Combiner {
	return &Combiner{estimator: estimator}
}

// Trained reports whether Train has succeeded
func (c *Combiner) Trained() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.regressor != nil
}

// Train fits the combiner on the first 80% of samples (chronologically) and
// reports quality on the remaining 20%.
func (c *Combiner) Train(ctx context.Context, samples []CombinerSample) (prediction.RegressionQuality, error) {
	if len(samples) < 5 {
		return prediction.RegressionQuality{}, domain.InsufficientHistory("combiner_samples", len(samples), 5)
	}
	ordered := append([]CombinerSample(nil), samples...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Date.Before(ordered[j].Date) })

	split := int(math.Floor(float64(len(ordered)) * 0.8))
	train, test := ordered[:split], ordered[split:]
	if len(test) == 0 {
		test = train
	}

	X := make([][]float64, len(train))
	y := make([]float64, len(train))
	for i, s := range train {
		X[i] = s.Features()
		y[i] = s.Actual
	}
	scaler := prediction.FitScaler(X)
	reg, err := c.estimator.Fit(ctx, scaler.TransformAll(X), y)
	if err != nil {
		return prediction.RegressionQuality{}, fmt.Errorf("failed to fit ensemble combiner: %w", err)
	}

	quality, err := evaluate(reg, scaler, test)
	if err != nil {
		return prediction.RegressionQuality{}, err
	}

	c.mu.Lock()
	c.regressor = reg
	c.scaler = scaler
	c.quality = quality
	c.mu.Unlock()
	return quality, nil
}

// Evaluate scores the trained combiner against held-out samples
func (c *Combiner) Evaluate(samples []CombinerSample) (prediction.RegressionQuality, error) {
	c.mu.RLock()
	reg, scaler := c.regressor, c.scaler
	c.mu.RUnlock()
	if reg == nil {
		return prediction.RegressionQuality{}, domain.NewValidationError(domain.ErrModelNotTrained, "combiner", "ensemble combiner has not been trained")
	}
	return evaluate(reg, scaler, samples)
}

// Score predicts the realised return for one sample
func (c *Combiner) Score(sample CombinerSample) (float64, error) {
	c.mu.RLock()
	reg, scaler := c.regressor, c.scaler
	c.mu.RUnlock()
	if reg == nil {
		return 0, domain.NewValidationError(domain.ErrModelNotTrained, "combiner", "ensemble combiner has not been trained")
	}
	return reg.Predict(scaler.Transform(sample.Features()))
}

// Quality returns the held-out quality of the last training run
func (c *Combiner) Quality() prediction.RegressionQuality {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.quality
}

func evaluate(reg prediction.Regressor, scaler *prediction.Scaler, samples []CombinerSample) (prediction.RegressionQuality, error) {
	preds := make([]float64, len(samples))
	actual := make([]float64, len(samples))
	for i, s := range samples {
		p, err := reg.Predict(scaler.Transform(s.Features()))
		if err != nil {
			return prediction.RegressionQuality{}, err
		}
		preds[i] = p
		actual[i] = s.Actual
	}
	return prediction.EvaluateRegression(preds, actual)
}
