package prediction

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/aristath/foresight/internal/domain"
	"github.com/aristath/foresight/pkg/formulas"
	"gonum.org/v1/gonum/mat"
)

// Estimator fits a regressor on feature rows and labels. Any regression
// library can satisfy it.
type Estimator interface {
	Fit(ctx context.Context, X [][]float64, y []float64) (Regressor, error)
}

// Regressor scores a single feature vector
type Regressor interface {
	Predict(x []float64) (float64, error)
}

// RidgeEstimator solves L2-regularised least squares with an unpenalised
// intercept through the normal equations.
type RidgeEstimator struct {
	Lambda float64
}

// NewRidgeEstimator creates a ridge estimator
func NewRidgeEstimator(lambda float64) *RidgeEstimator {
	if lambda < 0 {
		lambda = 0
	}
	return &RidgeEstimator{Lambda: lambda}
}

// LinearRegressor is a fitted linear model
type LinearRegressor struct {
	Coefficients []float64
	Intercept    float64
}

// Predict implements Regressor
func (r *LinearRegressor) Predict(x []float64) (float64, error) {
	if len(x) != len(r.Coefficients) {
		return 0, domain.NewValidationError(domain.ErrMismatchedCounts, "features",
			"got %d features, model expects %d", len(x), len(r.Coefficients))
	}
	y := r.Intercept
	for i, c := range r.Coefficients {
		y += c * x[i]
	}
	return y, nil
}

// Fit implements Estimator
func (e *RidgeEstimator) Fit(ctx context.Context, X [][]float64, y []float64) (Regressor, error) {
	if len(X) == 0 || len(X) != len(y) {
		return nil, domain.NewValidationError(domain.ErrMismatchedCounts, "training", "%d rows vs %d labels", len(X), len(y))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n, p := len(X), len(X[0])
	design := mat.NewDense(n, p+1, nil)
	for i, row := range X {
		if len(row) != p {
			return nil, domain.NewValidationError(domain.ErrMismatchedCounts, "training", "row %d has %d features, want %d", i, len(row), p)
		}
		design.Set(i, 0, 1)
		for j, v := range row {
			design.Set(i, j+1, v)
		}
	}
	labels := mat.NewVecDense(n, append([]float64(nil), y...))

	// A = XᵀX + λI (intercept unpenalised), b = Xᵀy
	var gram mat.Dense
	gram.Mul(design.T(), design)
	for j := 1; j <= p; j++ {
		gram.Set(j, j, gram.At(j, j)+e.Lambda)
	}
	var rhs mat.VecDense
	rhs.MulVec(design.T(), labels)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var beta mat.VecDense
	if err := beta.SolveVec(&gram, &rhs); err != nil {
		// a finite Condition error is a conditioning warning; the solution is usable
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return nil, fmt.Errorf("failed to solve normal equations: %w", err)
		}
	}

	coef := make([]float64, p)
	for j := 0; j < p; j++ {
		coef[j] = beta.AtVec(j + 1)
	}
	return &LinearRegressor{Coefficients: coef, Intercept: beta.AtVec(0)}, nil
}

// RegressionQuality holds the standard regression scores
type RegressionQuality struct {
	R2                float64 `json:"r2"`
	MAE               float64 `json:"mae"`
	RMSE              float64 `json:"rmse"`
	ExplainedVariance float64 `json:"explained_variance"`
	Samples           int     `json:"samples"`
}

// EvaluateRegression scores predictions against actual values. Zero-variance
// targets yield R² and explained variance of 0.
func EvaluateRegression(predicted, actual []float64) (RegressionQuality, error) {
	if len(predicted) != len(actual) {
		return RegressionQuality{}, domain.NewValidationError(domain.ErrMismatchedCounts, "evaluation",
			"%d predictions vs %d actual values", len(predicted), len(actual))
	}
	q := RegressionQuality{Samples: len(actual)}
	if len(actual) == 0 {
		return q, nil
	}

	residuals := make([]float64, len(actual))
	var absSum, sqSum float64
	for i := range actual {
		r := actual[i] - predicted[i]
		residuals[i] = r
		absSum += math.Abs(r)
		sqSum += r * r
	}
	n := float64(len(actual))
	q.MAE = absSum / n
	q.RMSE = math.Sqrt(sqSum / n)

	mean := formulas.Mean(actual)
	var tot float64
	for _, a := range actual {
		tot += (a - mean) * (a - mean)
	}
	if tot > 0 {
		q.R2 = 1 - sqSum/tot
		resMean := formulas.Mean(residuals)
		var resVar float64
		for _, r := range residuals {
			resVar += (r - resMean) * (r - resMean)
		}
		q.ExplainedVariance = 1 - resVar/tot
	}
	return q, nil
}
