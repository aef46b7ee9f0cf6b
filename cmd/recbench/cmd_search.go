package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/recbench/recbench/internal/config"
	"github.com/recbench/recbench/internal/experiment"
	"github.com/recbench/recbench/internal/search"
)

var (
	searchOutputPath string
	searchWorkers    int
)

func newSearchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <experiment.yaml>",
		Short: "Run a hyperparameter search",
		Long: `Run a hyperparameter search from an experiment file's search block.

Each candidate configuration is evaluated in its own experiment run.
The winner is picked on validation scores; test metrics are reported
for the winning trial but never influence selection.`,
		Args: cobra.ExactArgs(1),
		RunE: searchCommandE,
	}

	cmd.Flags().StringVarP(&searchOutputPath, "output", "o", "", "Output JSON file for the trial table")
	cmd.Flags().IntVar(&searchWorkers, "workers", 0, "Concurrent trials (overrides the experiment file)")

	return cmd
}

func searchCommandE(cmd *cobra.Command, args []string) error {
	specPath := args[0]

	spec, err := config.Load(specPath)
	if err != nil {
		return fmt.Errorf("failed to load experiment file: %w", err)
	}
	if spec.Search == nil {
		return fmt.Errorf("experiment file %s has no search block", specPath)
	}

	if searchWorkers > 0 {
		spec.Options.Workers = searchWorkers
	}

	ds, err := spec.BuildDataset()
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}
	splitter, err := spec.BuildSplitter()
	if err != nil {
		return err
	}
	srch, err := spec.BuildSearch()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Searching %s over %s (%s strategy)\n", spec.Search.Model, spec.Search.Metric, spec.Search.Strategy)
	fmt.Printf("Dataset: %s (%d users, %d items, %d ratings)\n\n",
		spec.Dataset.Path, ds.NumUsers(), ds.NumItems(), ds.Len())

	result, runErr := srch.Run(ctx, ds, splitter)
	if result == nil {
		return fmt.Errorf("search failed: %w", runErr)
	}

	printSearchSummary(os.Stdout, spec, result)

	if searchOutputPath != "" {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(searchOutputPath, data, 0644); err != nil {
			return fmt.Errorf("failed to save output: %w", err)
		}
		fmt.Printf("\nResults saved to: %s\n", searchOutputPath)
	}

	if runErr != nil {
		return &ModelFailureError{Message: fmt.Sprintf("search completed with no successful trial: %v", runErr)}
	}
	return nil
}

// printSearchSummary renders the trial table and the winning
// configuration.
func printSearchSummary(w io.Writer, spec *config.Spec, result *search.Result) {
	fmt.Fprintln(w, "="+strings.Repeat("=", 50))
	fmt.Fprintln(w, " SEARCH RESULTS")
	fmt.Fprintln(w, "="+strings.Repeat("=", 50))
	fmt.Fprintln(w)

	paramOrder := make([]string, 0, len(spec.Search.Space))
	for _, p := range spec.Search.Space {
		paramOrder = append(paramOrder, p.Param)
	}

	fmt.Fprintf(w, "%-6s  %-32s  %-10s  %s\n", "Trial", "Params", result.Metric, "Status")
	fmt.Fprintln(w, strings.Repeat("-", 64))
	for _, trial := range result.Trials {
		score := "-"
		if trial.Status == experiment.ModelStatusOK {
			score = fmt.Sprintf("%.4f", trial.Score)
		}
		marker := " "
		if trial.Index == result.BestIndex {
			marker = "*"
		}
		fmt.Fprintf(w, "%s%-5d  %-32s  %-10s  %s\n",
			marker, trial.Index, formatParams(trial.Params, paramOrder), score, trial.Status)
		if trial.Err != "" {
			fmt.Fprintf(w, "        %s\n", trial.Err)
		}
	}
	fmt.Fprintln(w)

	if result.BestIndex < 0 {
		fmt.Fprintln(w, "No trial succeeded.")
		return
	}

	fmt.Fprintf(w, "Best trial:   %d\n", result.BestIndex)
	fmt.Fprintf(w, "Best params:  %s\n", formatParams(result.BestParams, paramOrder))
	fmt.Fprintf(w, "Best %s: %.4f (validation)\n", result.Metric, result.BestScore)
	if v, ok := result.BestTest[result.Metric]; ok {
		fmt.Fprintf(w, "Test %s: %.4f\n", result.Metric, v)
	}
}

// formatParams renders a trial's parameters in search space order.
func formatParams(params map[string]any, order []string) string {
	parts := make([]string, 0, len(params))
	for _, name := range order {
		if v, ok := params[name]; ok {
			parts = append(parts, fmt.Sprintf("%s=%v", name, v))
		}
	}
	return strings.Join(parts, " ")
}
