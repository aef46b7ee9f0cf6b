package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/recbench/recbench/internal/cache"
	"github.com/recbench/recbench/internal/config"
	"github.com/recbench/recbench/internal/experiment"
	"github.com/recbench/recbench/internal/spinner"
)

var (
	runOutputPath string
	runVerbose    bool
	runWorkers    int
	enableCache   bool
	disableCache  bool
	runCacheDir   string
	runFormat     string
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <experiment.yaml>",
		Short: "Run a recommender experiment",
		Long: `Run a recommender experiment from an experiment file.

The experiment file defines the dataset, the split strategy, the models
under comparison and the metrics to report. Relative data paths resolve
against the experiment file's directory.`,
		Args: cobra.ExactArgs(1),
		RunE: runCommandE,
	}

	cmd.Flags().StringVarP(&runOutputPath, "output", "o", "", "Output JSON file for results")
	cmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Verbose output with per-model progress")
	cmd.Flags().IntVar(&runWorkers, "workers", 0, "Concurrent model fits per fold (overrides the experiment file)")
	cmd.Flags().BoolVar(&enableCache, "cache", false, "Enable result caching")
	cmd.Flags().BoolVar(&disableCache, "no-cache", false, "Disable result caching even if the experiment file enables it")
	cmd.Flags().StringVar(&runCacheDir, "cache-dir", "", "Cache directory (overrides the experiment file)")
	cmd.Flags().StringVar(&runFormat, "format", "default", "Output format: default, markdown")

	return cmd
}

func runCommandE(cmd *cobra.Command, args []string) error {
	specPath := args[0]

	spec, err := config.Load(specPath)
	if err != nil {
		return fmt.Errorf("failed to load experiment file: %w", err)
	}

	// CLI flags override the experiment file
	if runWorkers > 0 {
		spec.Options.Workers = runWorkers
	}
	if runCacheDir != "" {
		spec.Options.CacheDir = runCacheDir
	}

	resultCache, key, err := setupCache(spec)
	if err != nil {
		return err
	}

	if resultCache != nil {
		if outcome, ok := resultCache.Get(key); ok {
			fmt.Printf("Loaded cached result for experiment: %s\n\n", spec.Name)
			if err := reportOutcome(spec, outcome); err != nil {
				return err
			}
			return finishRun(outcome)
		}
	}

	ds, err := spec.BuildDataset()
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}
	splitter, err := spec.BuildSplitter()
	if err != nil {
		return err
	}
	models, err := spec.BuildModels()
	if err != nil {
		return err
	}
	opts, err := spec.ExperimentOptions()
	if err != nil {
		return err
	}

	exp, err := experiment.New(ds, splitter, models, opts...)
	if err != nil {
		return err
	}

	stopSpinner := func() {}
	if runVerbose {
		exp.OnProgress(verboseProgressListener)
	} else {
		exp.OnProgress(simpleProgressListener)
		if term.IsTerminal(int(os.Stderr.Fd())) {
			sp := spinner.Start(os.Stderr, fmt.Sprintf("running %s", spec.Name))
			exp.OnProgress(func(event experiment.ProgressEvent) {
				if event.EventType == experiment.EventModelStart {
					sp.SetMessage(fmt.Sprintf("fold %d/%d: fitting %s",
						event.FoldNum, event.TotalFolds, event.ModelName))
				}
			})
			stopSpinner = sp.Stop
		}
	}

	// SIGINT stops the run; completed folds are still reported.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Running experiment: %s\n", spec.Name)
	fmt.Printf("Dataset: %s (%d users, %d items, %d ratings)\n",
		spec.Dataset.Path, ds.NumUsers(), ds.NumItems(), ds.Len())
	fmt.Printf("Splitter: %s\n", splitter.Name())
	fmt.Printf("Models: %d\n", len(models))
	if spec.Options.Workers > 1 {
		fmt.Printf("Parallel: %d workers\n", spec.Options.Workers)
	}
	fmt.Println()

	outcome, runErr := exp.Run(ctx)
	stopSpinner()

	if outcome == nil {
		return fmt.Errorf("experiment failed: %w", runErr)
	}

	fmt.Println()
	if err := reportOutcome(spec, outcome); err != nil {
		return err
	}

	if resultCache != nil && outcome.Status == experiment.StatusCompleted {
		if err := resultCache.Put(key, outcome); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to cache result: %v\n", err)
		}
	}

	if outcome.Status == experiment.StatusStopped {
		return fmt.Errorf("experiment stopped after %s with %d of %d model row(s) evaluated",
			formatDuration(time.Duration(outcome.DurationMs)*time.Millisecond),
			outcome.Digest.Succeeded+outcome.Digest.Failed, outcome.Digest.TotalRows)
	}
	return finishRun(outcome)
}

// finishRun maps the outcome's digest onto the process exit contract.
func finishRun(outcome *experiment.Outcome) error {
	if outcome.Digest.Succeeded == 0 {
		return &ModelFailureError{
			Message: fmt.Sprintf("experiment failed: all %d model row(s) failed", outcome.Digest.TotalRows),
		}
	}
	if outcome.Digest.Failed > 0 {
		return &ModelFailureError{
			Message: fmt.Sprintf("experiment completed with %d failed model row(s)", outcome.Digest.Failed),
		}
	}
	return nil
}

// reportOutcome prints the result in the selected format and saves the
// JSON output file when requested.
func reportOutcome(spec *config.Spec, outcome *experiment.Outcome) error {
	switch runFormat {
	case "markdown":
		fmt.Print(FormatMarkdownSummary(spec, outcome))
	case "default":
		printSummary(os.Stdout, spec, outcome)
	default:
		return fmt.Errorf("unknown output format: %s (supported: default, markdown)", runFormat)
	}

	if runOutputPath != "" {
		if err := saveOutcome(outcome, runOutputPath); err != nil {
			return fmt.Errorf("failed to save output: %w", err)
		}
		fmt.Printf("\nResults saved to: %s\n", runOutputPath)
	}
	return nil
}

// setupCache resolves the cache configuration into a cache handle and
// the spec's cache key. A nil cache means caching is off.
func setupCache(spec *config.Spec) (*cache.Cache, string, error) {
	useCaching := spec.Options.Cache || enableCache
	if disableCache {
		useCaching = false
	}
	if !useCaching {
		return nil, "", nil
	}

	dir := spec.Options.CacheDir
	if dir == "" {
		dir = config.DefaultCacheDir
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, "", fmt.Errorf("resolving cache directory: %w", err)
	}

	key, err := cache.Key(spec)
	if err != nil {
		return nil, "", fmt.Errorf("computing cache key: %w", err)
	}
	return cache.New(absDir), key, nil
}

func verboseProgressListener(event experiment.ProgressEvent) {
	switch event.EventType {
	case experiment.EventExperimentStart:
		fmt.Printf("Starting %d model(s) across %d fold(s)...\n\n", event.TotalModels, event.TotalFolds)
	case experiment.EventFoldStart:
		fmt.Printf("Fold %d/%d\n", event.FoldNum, event.TotalFolds)
	case experiment.EventModelStart:
		fmt.Printf("  [%d/%d] fitting %s...\n", event.ModelNum, event.TotalModels, event.ModelName)
	case experiment.EventModelComplete:
		duration := time.Duration(event.DurationMs) * time.Millisecond
		fmt.Printf("  [%d/%d] %s: %s (%v)\n", event.ModelNum, event.TotalModels, event.ModelName, event.Status, duration)
	case experiment.EventFoldComplete:
		fmt.Println()
	case experiment.EventExperimentComplete:
		duration := time.Duration(event.DurationMs) * time.Millisecond
		fmt.Printf("Experiment completed in %v\n", duration)
	case experiment.EventExperimentStopped:
		duration := time.Duration(event.DurationMs) * time.Millisecond
		fmt.Printf("Experiment stopped after %v\n", duration)
	}
}

func simpleProgressListener(event experiment.ProgressEvent) {
	if event.EventType != experiment.EventModelComplete {
		return
	}
	icon := "✓"
	if event.Status != experiment.ModelStatusOK {
		icon = "✗"
	}
	fmt.Printf("%s %s [fold %d/%d]\n", icon, event.ModelName, event.FoldNum, event.TotalFolds)
}

func saveOutcome(outcome *experiment.Outcome, path string) error {
	data, err := json.MarshalIndent(outcome, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
