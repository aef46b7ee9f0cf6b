package main

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/recbench/recbench/internal/config"
	"github.com/recbench/recbench/internal/experiment"
	"github.com/recbench/recbench/internal/statistics"
)

func reporterSpec() *config.Spec {
	return &config.Spec{
		Name:    "reporter-test",
		Dataset: config.DatasetSpec{Path: "ratings.csv"},
		Metrics: []config.MetricSpec{
			{Kind: "rmse"},
			{Kind: "recall", K: 20},
		},
	}
}

func reporterOutcome() *experiment.Outcome {
	return &experiment.Outcome{
		Status:     experiment.StatusCompleted,
		Splitter:   "ratio",
		DurationMs: 1500,
		Folds: []experiment.FoldResult{
			{
				Fold: 0,
				Models: []experiment.ModelResult{
					{
						Model:  "pop",
						Status: experiment.ModelStatusOK,
						Test: &experiment.Evaluation{
							Metrics: map[string]float64{"RMSE": 1.2345, "Recall@20": 0.5},
						},
					},
					{
						Model:  "broken-mf",
						Status: experiment.ModelStatusFailed,
						Err:    `model "broken-mf" did not converge: exploded`,
					},
				},
			},
		},
		Digest: experiment.Digest{TotalRows: 2, Succeeded: 1, Failed: 1},
	}
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "250ms", formatDuration(250*time.Millisecond))
	assert.Equal(t, "1.5s", formatDuration(1500*time.Millisecond))
	assert.Equal(t, "2m0s", formatDuration(2*time.Minute))
}

func TestMetricColumnsFollowSpecOrder(t *testing.T) {
	cols := metricColumns(reporterSpec())
	assert.Equal(t, []string{"RMSE", "Recall@20"}, cols)
}

func TestPrintSummaryTable(t *testing.T) {
	var b strings.Builder
	printSummary(&b, reporterSpec(), reporterOutcome())
	out := b.String()

	assert.Contains(t, out, "EXPERIMENT RESULTS")
	assert.Contains(t, out, "Status:        completed")
	assert.Contains(t, out, "2 total, 1 succeeded, 1 failed")
	assert.Contains(t, out, "RMSE")
	assert.Contains(t, out, "Recall@20")
	assert.Contains(t, out, "1.2345")
	assert.Contains(t, out, "0.5000")
	assert.Contains(t, out, "Failed Models:")
	assert.Contains(t, out, "broken-mf")
	assert.Contains(t, out, "did not converge")

	// No validation table when no model has validation metrics.
	assert.NotContains(t, out, "VALIDATION")
}

func TestPrintSummaryIncludesValidationWhenPresent(t *testing.T) {
	outcome := reporterOutcome()
	outcome.Folds[0].Models[0].Validation = &experiment.Evaluation{
		Metrics: map[string]float64{"RMSE": 0.9},
	}

	var b strings.Builder
	printSummary(&b, reporterSpec(), outcome)
	out := b.String()

	assert.Contains(t, out, "VALIDATION")
	assert.Contains(t, out, "0.9000")
}

func TestPrintSummaryComparesAgainstBaseline(t *testing.T) {
	outcome := reporterOutcome()
	outcome.Folds[0].Models[1] = experiment.ModelResult{
		Model:  "mf",
		Status: experiment.ModelStatusOK,
		Test: &experiment.Evaluation{
			Metrics: map[string]float64{"RMSE": 1.1111, "Recall@20": 0.75},
			CI: map[string]statistics.ConfidenceInterval{
				"Recall@20": {Lower: 0.70, Upper: 0.80, Mean: 0.75},
			},
		},
	}
	outcome.Folds[0].Models[0].Test.CI = map[string]statistics.ConfidenceInterval{
		"Recall@20": {Lower: 0.45, Upper: 0.55, Mean: 0.5},
	}

	var b strings.Builder
	printSummary(&b, reporterSpec(), outcome)
	out := b.String()

	assert.Contains(t, out, "VS BASELINE (pop)")
	assert.Contains(t, out, "-10.0%")
	assert.Contains(t, out, "+50.0%*")
	assert.Contains(t, out, "intervals do not overlap")
}

func TestPrintSummaryBaselineNeedsTwoSucceedingModels(t *testing.T) {
	var b strings.Builder
	printSummary(&b, reporterSpec(), reporterOutcome())

	assert.NotContains(t, b.String(), "VS BASELINE")
}

func TestPrintSummaryFoldSpread(t *testing.T) {
	outcome := reporterOutcome()
	outcome.Folds = append(outcome.Folds, experiment.FoldResult{
		Fold: 1,
		Models: []experiment.ModelResult{
			{
				Model:  "pop",
				Status: experiment.ModelStatusOK,
				Test: &experiment.Evaluation{
					Metrics: map[string]float64{"RMSE": 1.4345, "Recall@20": 0.5},
				},
			},
			{
				Model:  "broken-mf",
				Status: experiment.ModelStatusFailed,
				Err:    "still broken",
			},
		},
	})

	var b strings.Builder
	printSummary(&b, reporterSpec(), outcome)
	out := b.String()

	assert.Contains(t, out, "FOLD SPREAD (mean ± sd)")
	assert.Contains(t, out, "1.3345 ±0.1000")
}

func TestFormatMarkdownSummary(t *testing.T) {
	out := FormatMarkdownSummary(reporterSpec(), reporterOutcome())

	assert.Contains(t, out, "## Experiment Results: reporter-test")
	assert.Contains(t, out, "❌ Failed")
	assert.Contains(t, out, "| Model | RMSE | Recall@20 | Status |")
	assert.Contains(t, out, "| pop | 1.2345 | 0.5000 | ✅ |")
	assert.Contains(t, out, "| broken-mf | - | - | ❌ |")
	assert.Contains(t, out, "### Failures")
	assert.Contains(t, out, "**Dataset:** ratings.csv")
}

func TestTruncateName(t *testing.T) {
	assert.Equal(t, "short", truncateName("short", 20))
	assert.Equal(t, "0123456789012345678…", truncateName("01234567890123456789extra", 20))
}

func TestPadRight(t *testing.T) {
	assert.Equal(t, "ab  ", padRight("ab", 4))
	assert.Equal(t, "abcd", padRight("abcd", 3))
}
