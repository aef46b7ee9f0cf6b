// Package metrics implements rating-error and ranking evaluation metrics.
// All metrics are pure functions over their inputs; aggregation across users
// is the experiment orchestrator's job.
package metrics

// Metric is the common surface of both metric families. The orchestrator
// type-switches on RatingMetric vs RankingMetric to route predictions.
type Metric interface {
	Name() string
}

// RatingMetric scores predicted against actual rating values. Compute is
// called once with the pooled prediction pairs; slices are parallel.
type RatingMetric interface {
	Metric
	Compute(predicted, actual []float64) float64
}

// RankingMetric scores one user's ranked candidate list against that user's
// relevance set. Implementations must only be called with a non-empty
// relevant set; users with empty ground truth are excluded upstream rather
// than contributing zero.
type RankingMetric interface {
	Metric
	Compute(ranked []int, relevant map[int]bool) float64
}
