package experiment

import (
	"time"

	"github.com/recbench/recbench/internal/statistics"
)

// Evaluation is one model's metric values on one held-out subset.
type Evaluation struct {
	// Metrics maps metric name to its aggregate value.
	Metrics map[string]float64 `json:"metrics"`

	// PerUser maps ranking metric name to the per-user scores backing
	// the aggregate, in user id order of first appearance.
	PerUser map[string][]float64 `json:"-"`

	// CI holds bootstrap confidence intervals for metrics with at least
	// two contributing users.
	CI map[string]statistics.ConfidenceInterval `json:"ci,omitempty"`

	// Users is the number of users that contributed to ranking metrics.
	Users int `json:"users"`

	// ColdStartUsers counts evaluated users that were absent from the
	// training split and fell back to the population prior.
	ColdStartUsers int `json:"cold_start_users"`
}

// ModelResult is one model's row in a fold's result table.
type ModelResult struct {
	Model      string      `json:"model"`
	Status     ModelStatus `json:"status"`
	Err        string      `json:"error,omitempty"`
	FitMs      int64       `json:"fit_ms"`
	Validation *Evaluation `json:"validation,omitempty"`
	Test       *Evaluation `json:"test"`
}

// FoldResult holds all model rows for one split, in input model order.
type FoldResult struct {
	Fold   int           `json:"fold"`
	Models []ModelResult `json:"models"`
}

// Digest summarizes model rows across all folds.
type Digest struct {
	TotalRows int `json:"total_rows"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Outcome is the full result of an experiment run.
type Outcome struct {
	Status     Status       `json:"status"`
	Splitter   string       `json:"splitter"`
	Timestamp  time.Time    `json:"timestamp"`
	DurationMs int64        `json:"duration_ms"`
	Filtered   int          `json:"filtered"`
	Folds      []FoldResult `json:"folds"`
	Digest     Digest       `json:"digest"`
}

func (o *Outcome) computeDigest() {
	d := Digest{}
	for _, fold := range o.Folds {
		for _, mr := range fold.Models {
			d.TotalRows++
			switch mr.Status {
			case ModelStatusOK:
				d.Succeeded++
			case ModelStatusFailed:
				d.Failed++
			case ModelStatusSkipped:
				d.Skipped++
			}
		}
	}
	o.Digest = d
}

// AggregatedModel is one model's metrics averaged across folds.
type AggregatedModel struct {
	Model      string             `json:"model"`
	Status     ModelStatus        `json:"status"`
	Err        string             `json:"error,omitempty"`
	Folds      int                `json:"folds"`
	Validation map[string]float64 `json:"validation,omitempty"`
	Test       map[string]float64 `json:"test,omitempty"`
}

// Aggregate averages each model's metrics over the folds where it
// succeeded. Models keep their input order. A model that never succeeded
// carries the error from its first failed fold.
func (o *Outcome) Aggregate() []AggregatedModel {
	if len(o.Folds) == 0 {
		return nil
	}

	out := make([]AggregatedModel, len(o.Folds[0].Models))
	for i := range out {
		out[i] = AggregatedModel{Model: o.Folds[0].Models[i].Model, Status: ModelStatusFailed}
	}

	for _, fold := range o.Folds {
		for i, mr := range fold.Models {
			agg := &out[i]
			if mr.Status != ModelStatusOK {
				if agg.Status != ModelStatusOK && agg.Err == "" && mr.Err != "" {
					agg.Err = mr.Err
				}
				if mr.Status == ModelStatusSkipped && agg.Status != ModelStatusOK {
					agg.Status = ModelStatusSkipped
				}
				continue
			}
			agg.Status = ModelStatusOK
			agg.Err = ""
			agg.Folds++
			agg.Validation = accumulate(agg.Validation, mr.Validation)
			agg.Test = accumulate(agg.Test, mr.Test)
		}
	}

	for i := range out {
		if out[i].Folds > 1 {
			divide(out[i].Validation, float64(out[i].Folds))
			divide(out[i].Test, float64(out[i].Folds))
		}
	}
	return out
}

func accumulate(sums map[string]float64, ev *Evaluation) map[string]float64 {
	if ev == nil {
		return sums
	}
	if sums == nil {
		sums = make(map[string]float64, len(ev.Metrics))
	}
	for name, v := range ev.Metrics {
		sums[name] += v
	}
	return sums
}

func divide(sums map[string]float64, n float64) {
	for name := range sums {
		sums[name] /= n
	}
}
