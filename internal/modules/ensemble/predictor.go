package ensemble

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/aristath/foresight/internal/domain"
	"github.com/aristath/foresight/internal/modules/prediction"
	"github.com/aristath/foresight/pkg/formulas"
	"github.com/rs/zerolog"
)

// Predictor runs every model and blends their forecasts with one weight set
type Predictor struct {
	models   []prediction.Model
	weights  *WeightCalculator
	combiner *Combiner
	log      zerolog.Logger
}

// NewPredictor creates an ensemble predictor. combiner may be nil.
func NewPredictor(models []prediction.Model, weights *WeightCalculator, combiner *Combiner, log zerolog.Logger) *Predictor {
	return &Predictor{
		models:   models,
		weights:  weights,
		combiner: combiner,
		log:      log.With().Str("component", "ensemble_predictor").Logger(),
	}
}

// Models returns the sub-models in combination order
func (p *Predictor) Models() []prediction.Model {
	return p.models
}

// Combiner returns the regression combiner, or nil
func (p *Predictor) Combiner() *Combiner {
	return p.combiner
}

// skippable reports whether a model failure should drop the model from the
// blend rather than fail the whole forecast.
func skippable(err error) bool {
	return errors.Is(err, domain.ErrInsufficientHistory) || errors.Is(err, domain.ErrModelNotTrained)
}

type member struct {
	model      domain.ModelType
	prediction domain.Prediction
	metrics    domain.ModelPerformanceMetrics
}

func (p *Predictor) blend(members []member, econ domain.EconomicContext) (domain.Prediction, Weights, domain.ModelPerformanceMetrics) {
	metrics := make(map[domain.ModelType]domain.ModelPerformanceMetrics, len(members))
	for _, m := range members {
		metrics[m.model] = m.metrics
	}
	w := p.weights.Calculate(metrics, econ)

	var out domain.Prediction
	var risk float64
	ens := domain.ModelPerformanceMetrics{ModelType: domain.ModelEnsemble, Status: domain.HealthUnknown}
	for _, m := range members {
		wt := w[m.model]
		out.ExpectedReturn += wt * m.prediction.ExpectedReturn
		out.Volatility += wt * m.prediction.Volatility
		out.Confidence += wt * m.prediction.Confidence
		out.TechnicalScore += wt * m.prediction.TechnicalScore
		risk += wt * float64(m.prediction.RiskLevel)
		out.HorizonDays = m.prediction.HorizonDays
		out.Inputs = append(out.Inputs, domain.WeightedInput{
			Model:          m.model,
			Weight:         wt,
			ExpectedReturn: m.prediction.ExpectedReturn,
			Confidence:     m.prediction.Confidence,
		})

		ens.Accuracy += wt * m.metrics.Accuracy
		ens.Precision += wt * m.metrics.Precision
		ens.Recall += wt * m.metrics.Recall
		ens.F1 += wt * m.metrics.F1
		ens.Confidence += wt * m.metrics.Confidence
		if m.metrics.Timestamp.After(ens.Timestamp) {
			ens.Timestamp = m.metrics.Timestamp
		}
	}
	out.RiskLevel = domain.RiskLevelFromScore(risk)
	out.Trend = domain.TrendFromValue(out.ExpectedReturn)
	return out, w, ens
}

func noForecast(kind string, err error) error {
	return fmt.Errorf("no model could produce a %s forecast: %w", kind, err)
}

// PredictMarket runs every model on the market history and blends the results
func (p *Predictor) PredictMarket(history []domain.Bar, econ domain.EconomicContext, horizon int) (domain.MarketPredictionResult, error) {
	var members []member
	var trendStrength []float64
	var firstErr error
	for _, m := range p.models {
		res, err := m.PredictMarket(history, econ, horizon)
		if err != nil {
			if !skippable(err) {
				return domain.MarketPredictionResult{}, fmt.Errorf("%s market forecast failed: %w", m.Type(), err)
			}
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		members = append(members, member{m.Type(), res.Prediction.Prediction, res.Metrics})
		trendStrength = append(trendStrength, res.Prediction.TrendStrength)
	}
	if len(members) == 0 {
		return domain.MarketPredictionResult{}, noForecast("market", firstErr)
	}

	blended, w, metrics := p.blend(members, econ)
	pred := domain.MarketPrediction{Prediction: blended, Date: history[len(history)-1].Date}
	for i, m := range members {
		pred.TrendStrength += w[m.model] * trendStrength[i]
	}
	return domain.MarketPredictionResult{Prediction: pred, Confidence: blended.Confidence, Metrics: metrics}, nil
}

// PredictSecurity runs every model on one symbol and blends the results
func (p *Predictor) PredictSecurity(symbol string, prices []float64, factors map[string]float64, horizon int) (domain.SecurityPredictionResult, error) {
	var members []member
	var betas, alphas []float64
	var firstErr error
	for _, m := range p.models {
		res, err := m.PredictSecurity(symbol, prices, factors, horizon)
		if err != nil {
			if !skippable(err) {
				return domain.SecurityPredictionResult{}, fmt.Errorf("%s forecast for %s failed: %w", m.Type(), symbol, err)
			}
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		members = append(members, member{m.Type(), res.Prediction.Prediction, res.Metrics})
		betas = append(betas, res.Prediction.Beta)
		alphas = append(alphas, res.Prediction.Alpha)
	}
	if len(members) == 0 {
		return domain.SecurityPredictionResult{}, noForecast("security", firstErr)
	}

	blended, w, metrics := p.blend(members, domain.EconomicContext{Indicators: factors})
	pred := domain.SecurityPrediction{Prediction: blended, Symbol: symbol}
	for i, m := range members {
		pred.Beta += w[m.model] * betas[i]
		pred.Alpha += w[m.model] * alphas[i]
	}
	return domain.SecurityPredictionResult{Prediction: pred, Confidence: blended.Confidence, Metrics: metrics}, nil
}

// PredictPortfolio runs every model on the portfolio and blends the results.
// Weights use the market forecast's annualised volatility and trend strength
// as the economic context.
func (p *Predictor) PredictPortfolio(portfolio *domain.Portfolio, market domain.MarketPrediction, horizon int) (domain.PortfolioPredictionResult, error) {
	if err := portfolio.Validate(); err != nil {
		return domain.PortfolioPredictionResult{}, err
	}

	var members []member
	var results []domain.PortfolioPrediction
	var firstErr error
	for _, m := range p.models {
		res, err := m.PredictPortfolio(portfolio, market, horizon)
		if err != nil {
			if !skippable(err) {
				return domain.PortfolioPredictionResult{}, fmt.Errorf("%s portfolio forecast failed: %w", m.Type(), err)
			}
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		members = append(members, member{m.Type(), res.Prediction.Prediction, res.Metrics})
		results = append(results, res.Prediction)
	}
	if len(members) == 0 {
		return domain.PortfolioPredictionResult{}, noForecast("portfolio", firstErr)
	}

	econ := MarketContext(market)
	blended, w, metrics := p.blend(members, econ)
	pred := domain.PortfolioPrediction{Prediction: blended}
	modelReturns := map[domain.ModelType]float64{}
	for i, m := range members {
		pred.DiversificationScore += w[m.model] * results[i].DiversificationScore
		modelReturns[m.model] = results[i].ExpectedReturn
	}
	pred.ExpectedValue = portfolio.TotalValue * (1 + pred.ExpectedReturn)
	pred.Securities = blendSecurities(members, results, w)

	if p.combiner != nil && p.combiner.Trained() {
		exposure := 0.0
		if portfolio.TotalValue > 0 {
			exposure = portfolio.InvestedValue() / portfolio.TotalValue
		}
		score, err := p.combiner.Score(CombinerSample{
			ModelReturns:   modelReturns,
			PortfolioValue: portfolio.TotalValue,
			Exposure:       exposure,
		})
		if err == nil {
			pred.CombinerScore = &score
		}
	}
	return domain.PortfolioPredictionResult{Prediction: pred, Confidence: blended.Confidence, Metrics: metrics}, nil
}

// blendSecurities combines per-symbol forecasts from every member that
// produced one, renormalising the member weights per symbol.
func blendSecurities(members []member, results []domain.PortfolioPrediction, w Weights) map[string]domain.SecurityPrediction {
	symbols := map[string]struct{}{}
	for _, r := range results {
		for s := range r.Securities {
			symbols[s] = struct{}{}
		}
	}
	out := make(map[string]domain.SecurityPrediction, len(symbols))
	for _, sym := range formulas.SortedKeys(symbols) {
		var total float64
		for i, m := range members {
			if _, ok := results[i].Securities[sym]; ok {
				total += w[m.model]
			}
		}
		if total == 0 {
			continue
		}
		var sp domain.SecurityPrediction
		var risk float64
		sp.Symbol = sym
		for i, m := range members {
			s, ok := results[i].Securities[sym]
			if !ok {
				continue
			}
			wt := w[m.model] / total
			sp.ExpectedReturn += wt * s.ExpectedReturn
			sp.Volatility += wt * s.Volatility
			sp.Confidence += wt * s.Confidence
			sp.TechnicalScore += wt * s.TechnicalScore
			sp.Beta += wt * s.Beta
			sp.Alpha += wt * s.Alpha
			sp.HorizonDays = s.HorizonDays
			risk += wt * float64(s.RiskLevel)
		}
		sp.RiskLevel = domain.RiskLevelFromScore(risk)
		sp.Trend = domain.TrendFromValue(sp.ExpectedReturn)
		out[sym] = sp
	}
	return out
}

// MarketContext turns a market forecast into the economic context used for
// weighting: annualised volatility and trend strength.
func MarketContext(market domain.MarketPrediction) domain.EconomicContext {
	return domain.EconomicContext{
		Date: market.Date,
		Indicators: map[string]float64{
			domain.IndicatorVolatility:    market.Volatility * math.Sqrt(formulas.TradingDaysPerYear),
			domain.IndicatorTrendStrength: market.TrendStrength,
		},
	}
}

// Update forwards training data to every model. The first failure aborts and
// is returned to the caller, which owns any retry policy.
func (p *Predictor) Update(ctx context.Context, data prediction.TrainingData) error {
	for _, m := range p.models {
		if err := m.Update(ctx, data); err != nil {
			return fmt.Errorf("failed to update %s model: %w", m.Type(), err)
		}
	}
	return nil
}

// Metrics returns the current metrics of every sub-model
func (p *Predictor) Metrics() map[domain.ModelType]domain.ModelPerformanceMetrics {
	out := make(map[domain.ModelType]domain.ModelPerformanceMetrics, len(p.models))
	for _, m := range p.models {
		out[m.Type()] = m.Metrics()
	}
	return out
}
