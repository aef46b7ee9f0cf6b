package main

import (
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"

	"github.com/recbench/recbench/internal/config"
	"github.com/recbench/recbench/internal/experiment"
	"github.com/recbench/recbench/internal/statistics"
)

// formatDuration formats a duration in a consistent, human-readable way.
// This ensures stable output regardless of Go version changes.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.String()
}

// metricColumns returns the metric display names in experiment file
// order, rating metrics first.
func metricColumns(spec *config.Spec) []string {
	rating, ranking, err := spec.BuildMetrics()
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(rating)+len(ranking))
	for _, m := range rating {
		names = append(names, m.Name())
	}
	for _, m := range ranking {
		names = append(names, m.Name())
	}
	return names
}

// printSummary renders the aggregated comparison table and digest.
func printSummary(w io.Writer, spec *config.Spec, outcome *experiment.Outcome) {
	fmt.Fprintln(w, "="+strings.Repeat("=", 50))
	fmt.Fprintln(w, " EXPERIMENT RESULTS")
	fmt.Fprintln(w, "="+strings.Repeat("=", 50))
	fmt.Fprintln(w)

	digest := outcome.Digest

	fmt.Fprintf(w, "Status:        %s\n", outcome.Status)
	fmt.Fprintf(w, "Splitter:      %s\n", outcome.Splitter)
	fmt.Fprintf(w, "Folds:         %d\n", len(outcome.Folds))
	fmt.Fprintf(w, "Model Rows:    %d total, %d succeeded, %d failed, %d skipped\n",
		digest.TotalRows, digest.Succeeded, digest.Failed, digest.Skipped)
	if outcome.Filtered > 0 {
		fmt.Fprintf(w, "Filtered:      %d cold start row(s) excluded from held-out subsets\n", outcome.Filtered)
	}
	fmt.Fprintf(w, "Duration:      %s\n", formatDuration(time.Duration(outcome.DurationMs)*time.Millisecond))
	fmt.Fprintln(w)

	columns := metricColumns(spec)
	aggregated := outcome.Aggregate()

	hasValidation := false
	for _, agg := range aggregated {
		if agg.Validation != nil {
			hasValidation = true
			break
		}
	}

	if hasValidation {
		fmt.Fprintln(w, "VALIDATION")
		writeTable(w, columns, aggregated, func(agg experiment.AggregatedModel) map[string]float64 {
			return agg.Validation
		})
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "TEST")
	writeTable(w, columns, aggregated, func(agg experiment.AggregatedModel) map[string]float64 {
		return agg.Test
	})

	printComparison(w, columns, outcome, aggregated)
	if len(outcome.Folds) > 1 {
		printFoldSpread(w, columns, outcome, aggregated)
	}

	// Failed model rows with their first error
	var failed []experiment.AggregatedModel
	for _, agg := range aggregated {
		if agg.Status != experiment.ModelStatusOK {
			failed = append(failed, agg)
		}
	}
	if len(failed) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Failed Models:")
		for _, agg := range failed {
			fmt.Fprintf(w, "  - %s (%s)", agg.Model, agg.Status)
			if agg.Err != "" {
				fmt.Fprintf(w, ": %s", agg.Err)
			}
			fmt.Fprintln(w)
		}
	}
}

// printComparison renders each succeeding model's metric change relative
// to the first succeeding model. A cell is starred when both models have
// bootstrap confidence intervals for the metric and they do not overlap.
func printComparison(w io.Writer, columns []string, outcome *experiment.Outcome, aggregated []experiment.AggregatedModel) {
	baseline := -1
	for i, agg := range aggregated {
		if agg.Status == experiment.ModelStatusOK {
			baseline = i
			break
		}
	}
	if baseline < 0 {
		return
	}

	var rows []reportRow
	starred := false
	for i, agg := range aggregated {
		if i == baseline || agg.Status != experiment.ModelStatusOK {
			continue
		}
		cells := make([]string, len(columns))
		for j, col := range columns {
			base, haveBase := aggregated[baseline].Test[col]
			v, haveValue := agg.Test[col]
			if !haveBase || !haveValue {
				cells[j] = "-"
				continue
			}
			cell := fmt.Sprintf("%+.1f%%", statistics.RelativeImprovement(base, v)*100)
			bci, okBase := foldCI(outcome, aggregated[baseline].Model, col)
			mci, okModel := foldCI(outcome, agg.Model, col)
			if okBase && okModel && !statistics.Overlaps(bci, mci) {
				cell += "*"
				starred = true
			}
			cells[j] = cell
		}
		rows = append(rows, reportRow{name: agg.Model, cells: cells})
	}
	if len(rows) == 0 {
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "VS BASELINE (%s)\n", aggregated[baseline].Model)
	writeRows(w, columns, rows)
	if starred {
		fmt.Fprintln(w, "* confidence intervals do not overlap the baseline's")
	}
}

// printFoldSpread renders each metric's mean and standard deviation over
// the folds where the model succeeded.
func printFoldSpread(w io.Writer, columns []string, outcome *experiment.Outcome, aggregated []experiment.AggregatedModel) {
	var rows []reportRow
	for _, agg := range aggregated {
		if agg.Status != experiment.ModelStatusOK {
			continue
		}
		cells := make([]string, len(columns))
		for j, col := range columns {
			vals := foldScores(outcome, agg.Model, col)
			if len(vals) == 0 {
				cells[j] = "-"
				continue
			}
			cells[j] = fmt.Sprintf("%.4f ±%.4f", statistics.Mean(vals), statistics.StdDev(vals))
		}
		rows = append(rows, reportRow{name: agg.Model, cells: cells})
	}
	if len(rows) == 0 {
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "FOLD SPREAD (mean ± sd)")
	writeRows(w, columns, rows)
}

// foldScores collects a model's per-fold test values for one metric.
func foldScores(outcome *experiment.Outcome, model, metric string) []float64 {
	var vals []float64
	for _, fold := range outcome.Folds {
		for _, mr := range fold.Models {
			if mr.Model != model || mr.Status != experiment.ModelStatusOK || mr.Test == nil {
				continue
			}
			if v, ok := mr.Test.Metrics[metric]; ok {
				vals = append(vals, v)
			}
		}
	}
	return vals
}

// foldCI returns the model's first available test confidence interval
// for a metric.
func foldCI(outcome *experiment.Outcome, model, metric string) (statistics.ConfidenceInterval, bool) {
	for _, fold := range outcome.Folds {
		for _, mr := range fold.Models {
			if mr.Model != model || mr.Status != experiment.ModelStatusOK || mr.Test == nil {
				continue
			}
			if ci, ok := mr.Test.CI[metric]; ok {
				return ci, true
			}
		}
	}
	return statistics.ConfidenceInterval{}, false
}

// reportRow is one pre-formatted line of a metric table.
type reportRow struct {
	name  string
	cells []string
}

// writeRows renders pre-formatted cells with the same layout as
// writeTable, widening columns to fit the longest cell.
func writeRows(w io.Writer, columns []string, rows []reportRow) {
	const modelWidth = 20

	widths := make([]int, len(columns))
	for i, col := range columns {
		widths[i] = runewidth.StringWidth(col)
		if widths[i] < 8 {
			widths[i] = 8
		}
		for _, row := range rows {
			if cw := runewidth.StringWidth(row.cells[i]); cw > widths[i] {
				widths[i] = cw
			}
		}
	}

	var b strings.Builder
	b.WriteString(padRight("Model", modelWidth))
	for i, col := range columns {
		b.WriteString("  ")
		b.WriteString(padRight(col, widths[i]))
	}
	fmt.Fprintln(w, b.String())
	fmt.Fprintln(w, strings.Repeat("-", runewidth.StringWidth(b.String())))

	for _, row := range rows {
		b.Reset()
		b.WriteString(padRight(truncateName(row.name, modelWidth), modelWidth))
		for i := range columns {
			b.WriteString("  ")
			b.WriteString(padRight(row.cells[i], widths[i]))
		}
		fmt.Fprintln(w, b.String())
	}
}

// writeTable renders one metric table with a model column followed by
// one column per metric, padded to terminal display width.
func writeTable(w io.Writer, columns []string, rows []experiment.AggregatedModel, pick func(experiment.AggregatedModel) map[string]float64) {
	const modelWidth = 20

	widths := make([]int, len(columns))
	for i, col := range columns {
		widths[i] = runewidth.StringWidth(col)
		if widths[i] < 8 {
			widths[i] = 8
		}
	}

	var b strings.Builder
	b.WriteString(padRight("Model", modelWidth))
	for i, col := range columns {
		b.WriteString("  ")
		b.WriteString(padRight(col, widths[i]))
	}
	fmt.Fprintln(w, b.String())
	fmt.Fprintln(w, strings.Repeat("-", runewidth.StringWidth(b.String())))

	for _, row := range rows {
		b.Reset()
		b.WriteString(padRight(truncateName(row.Model, modelWidth), modelWidth))
		values := pick(row)
		for i, col := range columns {
			b.WriteString("  ")
			cell := "-"
			if v, ok := values[col]; ok {
				cell = fmt.Sprintf("%.4f", v)
			} else if row.Status != experiment.ModelStatusOK {
				cell = strings.ToUpper(string(row.Status))
			}
			b.WriteString(padRight(cell, widths[i]))
		}
		fmt.Fprintln(w, b.String())
	}
}

// truncateName shortens a model name to maxLen runes with an ellipsis.
func truncateName(name string, maxLen int) string {
	if utf8.RuneCountInString(name) <= maxLen {
		return name
	}
	runes := []rune(name)
	return string(runes[:maxLen-1]) + "…"
}

// padRight pads s with spaces so its terminal display width reaches width.
func padRight(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	return s + strings.Repeat(" ", width-sw)
}

// FormatMarkdownSummary formats an experiment outcome as a markdown
// report suitable for pull request comments.
func FormatMarkdownSummary(spec *config.Spec, outcome *experiment.Outcome) string {
	var b strings.Builder

	digest := outcome.Digest
	duration := time.Duration(outcome.DurationMs) * time.Millisecond

	b.WriteString(fmt.Sprintf("## Experiment Results: %s\n\n", spec.Name))

	statusIcon := "✅ Completed"
	switch {
	case outcome.Status == experiment.StatusStopped:
		statusIcon = "⏹️ Stopped"
	case digest.Failed > 0 || digest.Succeeded == 0:
		statusIcon = "❌ Failed"
	}
	b.WriteString(fmt.Sprintf("**Status:** %s | **Splitter:** %s | **Duration:** %s\n\n",
		statusIcon, outcome.Splitter, formatDuration(duration)))

	b.WriteString(fmt.Sprintf("- **Model Rows:** %d total, %d succeeded, %d failed, %d skipped\n",
		digest.TotalRows, digest.Succeeded, digest.Failed, digest.Skipped))
	if outcome.Filtered > 0 {
		b.WriteString(fmt.Sprintf("- **Filtered:** %d cold start row(s)\n", outcome.Filtered))
	}
	b.WriteString("\n")

	columns := metricColumns(spec)
	aggregated := outcome.Aggregate()

	b.WriteString("### Test Metrics\n\n")
	b.WriteString("| Model | " + strings.Join(columns, " | ") + " | Status |\n")
	b.WriteString("|-------|" + strings.Repeat("-------|", len(columns)+1) + "\n")
	for _, agg := range aggregated {
		b.WriteString(fmt.Sprintf("| %s |", agg.Model))
		for _, col := range columns {
			if v, ok := agg.Test[col]; ok {
				b.WriteString(fmt.Sprintf(" %.4f |", v))
			} else {
				b.WriteString(" - |")
			}
		}
		icon := "✅"
		if agg.Status != experiment.ModelStatusOK {
			icon = "❌"
		}
		b.WriteString(fmt.Sprintf(" %s |\n", icon))
	}
	b.WriteString("\n")

	var failed []experiment.AggregatedModel
	for _, agg := range aggregated {
		if agg.Status != experiment.ModelStatusOK && agg.Err != "" {
			failed = append(failed, agg)
		}
	}
	if len(failed) > 0 {
		b.WriteString("### Failures\n\n")
		for _, agg := range failed {
			b.WriteString(fmt.Sprintf("- **%s**: %s\n", agg.Model, agg.Err))
		}
		b.WriteString("\n")
	}

	b.WriteString("---\n\n")
	b.WriteString(fmt.Sprintf("**Dataset:** %s | **Folds:** %d\n", spec.Dataset.Path, len(outcome.Folds)))

	return b.String()
}
