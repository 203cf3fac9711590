// Package diversification scores how a portfolio spreads across sectors,
// regions, market caps and styles.
package diversification

import (
	"fmt"
	"math"

	"github.com/aristath/foresight/internal/domain"
	"github.com/aristath/foresight/pkg/formulas"
	"github.com/rs/zerolog"
)

// Bucket family weights of the aggregate score
const (
	sectorWeight    = 0.3
	regionWeight    = 0.3
	marketCapWeight = 0.2
	styleWeight     = 0.2
)

// Recommendation thresholds
const (
	MinScore              = 0.7
	MaxPositionWeight     = 0.2
	MaxAverageCorrelation = 0.5
)

const unclassified = "unclassified"

// Analysis is the diversification report of one portfolio
type Analysis struct {
	Components         map[string]float64 `json:"components"`
	Recommendations    []string           `json:"recommendations"`
	RawScore           float64            `json:"raw_score"`
	AverageCorrelation float64            `json:"average_correlation"`
	Gini               float64            `json:"gini"`
	Herfindahl         float64            `json:"herfindahl"`
	MaxWeight          float64            `json:"max_weight"`
	Score              float64            `json:"score"`
}

// Analyzer computes diversification scores
type Analyzer struct {
	log zerolog.Logger
}

// NewAnalyzer creates a diversification analyzer
func NewAnalyzer(log zerolog.Logger) *Analyzer {
	return &Analyzer{log: log.With().Str("component", "diversification").Logger()}
}

// Analyze computes the entropy of each bucket family, blends them 0.3/0.3/
// 0.2/0.2 and discounts by average correlation and Gini concentration.
func (a *Analyzer) Analyze(p *domain.Portfolio) (Analysis, error) {
	if err := p.Validate(); err != nil {
		return Analysis{}, err
	}

	weights := invested(p)
	sector := map[string]float64{}
	region := map[string]float64{}
	marketCap := map[string]float64{}
	style := map[string]float64{}
	series := map[string][]float64{}
	weightList := make([]float64, 0, len(weights))
	res := Analysis{Components: map[string]float64{}}

	for _, pos := range p.Positions {
		w := weights[pos.Symbol]
		sector[orUnclassified(pos.Sector)] += w
		region[orUnclassified(pos.Region)] += w
		marketCap[orUnclassified(pos.MarketCap)] += w
		style[orUnclassified(pos.Style)] += w
		series[pos.Symbol] = formulas.CalculateReturns(pos.Prices())
		weightList = append(weightList, w)
		res.MaxWeight = math.Max(res.MaxWeight, w)
	}

	res.Components["sector"] = formulas.NormalizedEntropy(sector)
	res.Components["region"] = formulas.NormalizedEntropy(region)
	res.Components["market_cap"] = formulas.NormalizedEntropy(marketCap)
	res.Components["style"] = formulas.NormalizedEntropy(style)
	res.RawScore = sectorWeight*res.Components["sector"] +
		regionWeight*res.Components["region"] +
		marketCapWeight*res.Components["market_cap"] +
		styleWeight*res.Components["style"]

	res.AverageCorrelation = formulas.AveragePairwiseCorrelation(series)
	res.Gini = formulas.Gini(weightList)
	res.Herfindahl = formulas.Herfindahl(weightList)
	res.Score = res.RawScore * (1 - 0.5*math.Max(0, res.AverageCorrelation)) * (1 - 0.5*res.Gini)

	if res.Score < MinScore {
		res.Recommendations = append(res.Recommendations,
			fmt.Sprintf("diversification score %.2f below %.2f: spread holdings across more sectors, regions, sizes and styles", res.Score, MinScore))
	}
	if res.MaxWeight > MaxPositionWeight {
		res.Recommendations = append(res.Recommendations,
			fmt.Sprintf("largest position is %.1f%% of invested value, above %.0f%%", res.MaxWeight*100, MaxPositionWeight*100))
	}
	if res.AverageCorrelation > MaxAverageCorrelation {
		res.Recommendations = append(res.Recommendations,
			fmt.Sprintf("average pairwise correlation %.2f above %.2f: add less correlated holdings", res.AverageCorrelation, MaxAverageCorrelation))
	}

	a.log.Debug().
		Float64("score", res.Score).
		Float64("herfindahl", res.Herfindahl).
		Int("recommendations", len(res.Recommendations)).
		Msg("Diversification analyzed")
	return res, nil
}

// invested returns position weights normalised over invested value
func invested(p *domain.Portfolio) map[string]float64 {
	out := make(map[string]float64, len(p.Positions))
	total := 0.0
	for _, pos := range p.Positions {
		total += pos.MarketValue()
	}
	for _, pos := range p.Positions {
		if total > 0 {
			out[pos.Symbol] = pos.MarketValue() / total
		} else {
			out[pos.Symbol] = 0
		}
	}
	return out
}

func orUnclassified(tag string) string {
	if tag == "" {
		return unclassified
	}
	return tag
}
