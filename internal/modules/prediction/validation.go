package prediction

import (
	"github.com/aristath/foresight/internal/domain"
	"github.com/aristath/foresight/pkg/formulas"
)

// DirectionalScore summarises how often predicted signs matched realised signs
type DirectionalScore struct {
	PerClass  map[domain.PredictionClass]float64
	Accuracy  float64
	Precision float64
	Recall    float64
	F1        float64
	Samples   int
}

// ScoreDirectional computes per-class directional accuracy plus pooled
// precision, recall and F1 for the "up" class. Counts must match per set.
func ScoreDirectional(sets []ValidationSet) (DirectionalScore, error) {
	score := DirectionalScore{PerClass: map[domain.PredictionClass]float64{}}
	var hits, tp, fp, fn int

	classHits := map[domain.PredictionClass]int{}
	classTotal := map[domain.PredictionClass]int{}

	for _, set := range sets {
		if len(set.Predicted) != len(set.Actual) {
			return score, domain.NewValidationError(domain.ErrMismatchedCounts, string(set.Class),
				"%d predictions vs %d actual returns", len(set.Predicted), len(set.Actual))
		}
		for i := range set.Predicted {
			predUp := set.Predicted[i] > 0
			actualUp := set.Actual[i] > 0
			classTotal[set.Class]++
			if predUp == actualUp {
				hits++
				classHits[set.Class]++
			}
			switch {
			case predUp && actualUp:
				tp++
			case predUp && !actualUp:
				fp++
			case !predUp && actualUp:
				fn++
			}
			score.Samples++
		}
	}

	for class, total := range classTotal {
		if total > 0 {
			score.PerClass[class] = float64(classHits[class]) / float64(total)
		}
	}
	if score.Samples == 0 {
		return score, nil
	}
	score.Accuracy = float64(hits) / float64(score.Samples)
	if tp+fp > 0 {
		score.Precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		score.Recall = float64(tp) / float64(tp+fn)
	}
	if score.Precision+score.Recall > 0 {
		score.F1 = 2 * score.Precision * score.Recall / (score.Precision + score.Recall)
	}
	return score, nil
}

// validateInto scores sets and folds the result into a model's metrics
func validateInto(state *metricsState, sets []ValidationSet) (map[domain.PredictionClass]float64, error) {
	score, err := ScoreDirectional(sets)
	if err != nil {
		return nil, err
	}
	if score.Samples == 0 {
		return score.PerClass, nil
	}

	var confidences []float64
	asOf := sets[0].AsOf
	for _, s := range sets {
		confidences = append(confidences, s.Confidences...)
		if s.AsOf.After(asOf) {
			asOf = s.AsOf
		}
	}

	state.update(func(m *domain.ModelPerformanceMetrics) {
		m.Timestamp = asOf
		m.Accuracy = score.Accuracy
		m.Precision = score.Precision
		m.Recall = score.Recall
		m.F1 = score.F1
		m.Samples = score.Samples
		m.ValidationAccuracy = make(map[domain.PredictionClass]float64, len(score.PerClass))
		for k, v := range score.PerClass {
			m.ValidationAccuracy[k] = v
		}
		if len(confidences) > 0 {
			m.Confidence = formulas.Mean(confidences)
		}
	})
	return score.PerClass, nil
}
