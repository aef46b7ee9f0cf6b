package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recbench/recbench/internal/algo"
	"github.com/recbench/recbench/internal/split"
)

const validSpec = `
name: movielens-smoke
dataset:
  path: ratings.csv
split:
  kind: ratio
  val_size: 0.1
  seed: 42
models:
  - name: pop
    kind: popularity
  - name: mf-small
    kind: mf
    params:
      factors: 8
      epochs: 10
metrics:
  - kind: rmse
  - kind: recall
    k: 20
options:
  workers: 2
  fit_timeout_sec: 30
`

func writeSpec(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "experiment.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadValid(t *testing.T) {
	spec, err := Load(writeSpec(t, validSpec))
	require.NoError(t, err)

	assert.Equal(t, "movielens-smoke", spec.Name)
	assert.Equal(t, "ratings.csv", spec.Dataset.Path)
	assert.Equal(t, int64(42), spec.Split.Seed)
	require.Len(t, spec.Models, 2)
	assert.Equal(t, "mf", spec.Models[1].Kind)

	// Defaults applied.
	assert.Equal(t, DefaultTestSize, spec.Split.TestSize)
	assert.Equal(t, DefaultRatingThreshold, spec.Options.RatingThreshold)
	assert.Equal(t, "prior", spec.Options.ColdStart)
	assert.Equal(t, DefaultCacheDir, spec.Options.CacheDir)
	assert.Equal(t, 2, spec.Options.Workers)
}

func TestLoadSchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing name",
			yaml: "dataset: {path: r.csv}\nsplit: {kind: ratio}\nmetrics: [{kind: rmse}]\nmodels: [{name: p, kind: popularity}]\n",
			want: "invalid",
		},
		{
			name: "bad split kind",
			yaml: "name: x\ndataset: {path: r.csv}\nsplit: {kind: chronological}\nmetrics: [{kind: rmse}]\nmodels: [{name: p, kind: popularity}]\n",
			want: "invalid",
		},
		{
			name: "bad metric kind",
			yaml: "name: x\ndataset: {path: r.csv}\nsplit: {kind: ratio}\nmetrics: [{kind: accuracy}]\nmodels: [{name: p, kind: popularity}]\n",
			want: "invalid",
		},
		{
			name: "empty metrics",
			yaml: "name: x\ndataset: {path: r.csv}\nsplit: {kind: ratio}\nmetrics: []\nmodels: [{name: p, kind: popularity}]\n",
			want: "invalid",
		},
		{
			name: "unknown top level key",
			yaml: "name: x\nbogus: true\ndataset: {path: r.csv}\nsplit: {kind: ratio}\nmetrics: [{kind: rmse}]\nmodels: [{name: p, kind: popularity}]\n",
			want: "invalid",
		},
		{
			name: "no models and no search",
			yaml: "name: x\ndataset: {path: r.csv}\nsplit: {kind: ratio}\nmetrics: [{kind: rmse}]\n",
			want: "needs a models list or a search block",
		},
		{
			name: "search without validation subset",
			yaml: "name: x\ndataset: {path: r.csv}\nsplit: {kind: ratio}\nmetrics: [{kind: rmse}]\nsearch: {strategy: grid, model: mf, metric: RMSE, space: [{param: factors, values: [5, 10]}]}\n",
			want: "validation subset",
		},
		{
			name: "search over kfold split",
			yaml: "name: x\ndataset: {path: r.csv}\nsplit: {kind: kfold, folds: 3}\nmetrics: [{kind: rmse}]\nsearch: {strategy: grid, model: mf, metric: RMSE, space: [{param: factors, values: [5, 10]}]}\n",
			want: "validation subset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeSpec(t, tt.yaml))
			require.ErrorContains(t, err, tt.want)
		})
	}
}

func TestValidateBytesReportsLocation(t *testing.T) {
	errs := ValidateBytes([]byte("name: 7\ndataset: {path: r.csv}\nsplit: {kind: ratio}\nmetrics: [{kind: rmse}]\n"))
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0], "/name")
}

func TestBuildSplitter(t *testing.T) {
	spec, err := Load(writeSpec(t, validSpec))
	require.NoError(t, err)

	sp, err := spec.BuildSplitter()
	require.NoError(t, err)
	ratio, ok := sp.(split.Ratio)
	require.True(t, ok)
	assert.Equal(t, DefaultTestSize, ratio.TestSize)
	assert.Equal(t, 0.1, ratio.ValSize)
	assert.Equal(t, int64(42), ratio.Seed)
}

func TestBuildModelsAndMetrics(t *testing.T) {
	spec, err := Load(writeSpec(t, validSpec))
	require.NoError(t, err)

	models, err := spec.BuildModels()
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "pop", models[0].Name())
	assert.IsType(t, &algo.MF{}, models[1])

	rating, ranking, err := spec.BuildMetrics()
	require.NoError(t, err)
	require.Len(t, rating, 1)
	require.Len(t, ranking, 1)
	assert.Equal(t, "Recall@20", ranking[0].Name())
}

func TestExperimentOptions(t *testing.T) {
	spec, err := Load(writeSpec(t, validSpec))
	require.NoError(t, err)

	opts, err := spec.ExperimentOptions()
	require.NoError(t, err)
	assert.NotEmpty(t, opts)

	spec.Options.ColdStart = "bogus"
	_, err = spec.ExperimentOptions()
	require.ErrorContains(t, err, "cold start")
}

func TestBuildDatasetResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	csv := "u0,a,5\nu0,b,4\nu1,b,5\nu1,a,3\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ratings.csv"), []byte(csv), 0o644))

	specYAML := "name: x\ndataset: {path: ratings.csv}\nsplit: {kind: ratio}\nmetrics: [{kind: rmse}]\nmodels: [{name: p, kind: popularity}]\n"
	specPath := filepath.Join(dir, "experiment.yaml")
	require.NoError(t, os.WriteFile(specPath, []byte(specYAML), 0o644))

	spec, err := Load(specPath)
	require.NoError(t, err)

	ds, err := spec.BuildDataset()
	require.NoError(t, err)
	assert.Equal(t, 4, ds.Len())
	assert.Equal(t, 2, ds.NumUsers())
}

func TestBuildSearch(t *testing.T) {
	yaml := `
name: tune-mf
dataset:
  path: ratings.csv
split:
  kind: ratio
  val_size: 0.1
metrics:
  - kind: rmse
search:
  strategy: grid
  model: mf
  metric: RMSE
  minimize: true
  space:
    - param: factors
      values: [5, 10]
    - param: learning_rate
      values: [0.01, 0.05]
`
	spec, err := Load(writeSpec(t, yaml))
	require.NoError(t, err)

	s, err := spec.BuildSearch()
	require.NoError(t, err)
	assert.NotNil(t, s)
}
