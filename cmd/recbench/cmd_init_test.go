package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recbench/recbench/internal/config"
)

func TestInitCommandCreatesStarterExperiment(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "fresh")

	out, err := executeCommand(t, "init", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Initialized experiment:")

	specPath := filepath.Join(dir, "experiment.yaml")
	require.FileExists(t, specPath)
	require.FileExists(t, filepath.Join(dir, "data", "ratings.csv"))

	// The starter file must load cleanly.
	spec, err := config.Load(specPath)
	require.NoError(t, err)
	assert.Equal(t, "my-experiment", spec.Name)
	assert.Equal(t, "ratio", spec.Split.Kind)
	assert.NotEmpty(t, spec.Models)
	assert.NotEmpty(t, spec.Metrics)

	// And it must run end to end against the example data.
	_, err = executeCommand(t, "run", specPath)
	require.NoError(t, err)
}

func TestInitCommandRefusesToOverwrite(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "experiment.yaml"), []byte("name: existing\n"), 0o644))

	_, err := executeCommand(t, "init", dir)
	require.ErrorContains(t, err, "already exists")
}
