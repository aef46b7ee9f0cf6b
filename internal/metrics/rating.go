package metrics

import "math"

// RMSE is the root mean squared error over predicted ratings.
type RMSE struct{}

func (RMSE) Name() string { return "RMSE" }

func (RMSE) Compute(predicted, actual []float64) float64 {
	if len(predicted) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for i := range predicted {
		d := predicted[i] - actual[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(predicted)))
}

// MAE is the mean absolute error over predicted ratings.
type MAE struct{}

func (MAE) Name() string { return "MAE" }

func (MAE) Compute(predicted, actual []float64) float64 {
	if len(predicted) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for i := range predicted {
		sum += math.Abs(predicted[i] - actual[i])
	}
	return sum / float64(len(predicted))
}
