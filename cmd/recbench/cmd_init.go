package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/recbench/recbench/internal/wizard"
)

func newInitCommand() *cobra.Command {
	var interactive bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new experiment",
		Long: `Initialize a new experiment directory.

Creates an experiment.yaml starter file and a data/ directory with an
example interactions file.

Use --interactive to run a guided wizard that collects the dataset
path, split strategy, models and metrics.

If no directory is specified, the current directory is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return initCommandE(cmd, args, interactive)
		},
	}

	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Run the guided experiment wizard")

	return cmd
}

func initCommandE(cmd *cobra.Command, args []string, interactive bool) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	specPath := filepath.Join(dir, "experiment.yaml")
	if _, err := os.Stat(specPath); err == nil {
		return fmt.Errorf("%s already exists", specPath)
	}

	var content string
	if interactive {
		initialName := filepath.Base(dir)
		if initialName == "." || initialName == string(filepath.Separator) {
			initialName = ""
		}
		draft, err := wizard.RunExperimentWizard(cmd.InOrStdin(), cmd.OutOrStdout(), initialName)
		if err != nil {
			return err
		}
		content, err = wizard.GenerateExperimentYAML(draft)
		if err != nil {
			return fmt.Errorf("failed to generate experiment file: %w", err)
		}
	} else {
		draft := &wizard.Draft{
			Name:     "my-experiment",
			DataPath: "data/ratings.csv",
			Split:    "ratio",
			Models:   []string{"popularity", "mf"},
			Metrics:  []string{"rmse", "recall", "ndcg"},
		}
		var err error
		content, err = wizard.GenerateExperimentYAML(draft)
		if err != nil {
			return fmt.Errorf("failed to generate experiment file: %w", err)
		}
	}

	if err := os.WriteFile(specPath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write experiment.yaml: %w", err)
	}

	// Example interactions so the starter file runs out of the box
	dataDir := filepath.Join(dir, "data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	dataPath := filepath.Join(dataDir, "ratings.csv")
	if _, err := os.Stat(dataPath); os.IsNotExist(err) {
		if err := os.WriteFile(dataPath, []byte(exampleRatings), 0o644); err != nil {
			return fmt.Errorf("failed to write example data: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", dataPath) //nolint:errcheck
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Initialized experiment:") //nolint:errcheck
	fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", specPath)         //nolint:errcheck

	return nil
}

const exampleRatings = `u1,i1,5
u1,i2,3
u1,i3,4
u2,i1,4
u2,i2,2
u2,i4,5
u3,i2,5
u3,i3,3
u3,i4,4
u4,i1,2
u4,i3,5
u4,i4,3
u5,i1,4
u5,i2,4
u5,i3,2
u5,i4,5
`
