package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/recbench/recbench/internal/config"
)

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <experiment.yaml>",
		Short: "Validate an experiment file",
		Long: `Validate an experiment file against the experiment schema without
running anything.

Schema violations are reported with their location in the document.`,
		Args: cobra.ExactArgs(1),
		RunE: validateCommandE,
	}

	return cmd
}

func validateCommandE(cmd *cobra.Command, args []string) error {
	specPath := args[0]

	data, err := os.ReadFile(specPath)
	if err != nil {
		return fmt.Errorf("failed to read experiment file: %w", err)
	}

	violations := config.ValidateBytes(data)
	if len(violations) > 0 {
		for _, v := range violations {
			fmt.Fprintf(cmd.ErrOrStderr(), "  %s\n", v) //nolint:errcheck
		}
		return fmt.Errorf("%s failed validation with %d problem(s)", specPath, len(violations))
	}

	// Schema-valid files can still be internally inconsistent, e.g. a
	// search block without a validation subset.
	if _, err := config.Load(specPath); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s is valid\n", specPath) //nolint:errcheck
	return nil
}
