package wizard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recbench/recbench/internal/config"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"kebab case", "movielens-baselines", false},
		{"single word", "bench", false},
		{"with digits", "run-2", false},
		{"empty", "", true},
		{"uppercase", "MovieLens", true},
		{"leading hyphen", "-bench", true},
		{"trailing hyphen", "bench-", true},
		{"spaces", "my bench", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGenerateExperimentYAML_RatioDraft(t *testing.T) {
	draft := &Draft{
		Name:     "movielens-baselines",
		DataPath: "data/ratings.csv",
		Split:    "ratio",
		Models:   []string{"popularity", "mf"},
		Metrics:  []string{"rmse", "recall"},
	}

	out, err := GenerateExperimentYAML(draft)
	require.NoError(t, err)

	assert.Contains(t, out, "name: movielens-baselines")
	assert.Contains(t, out, "path: data/ratings.csv")
	assert.Contains(t, out, "kind: ratio")
	assert.Contains(t, out, "test_size: 0.2")
	assert.NotContains(t, out, "folds:")
	assert.Contains(t, out, "kind: popularity")
	assert.Contains(t, out, "kind: mf")
	assert.Contains(t, out, "kind: rmse")
	// Cutoff metrics get a default k, plain metrics do not.
	assert.Contains(t, out, "kind: recall\n    k: 10")
	assert.NotContains(t, out, "kind: rmse\n    k:")
}

func TestGenerateExperimentYAML_KFoldDraft(t *testing.T) {
	draft := &Draft{
		Name:     "cross-validated",
		DataPath: "ratings.csv",
		Split:    "kfold",
		Models:   []string{"bpr"},
		Metrics:  []string{"ndcg", "auc"},
	}

	out, err := GenerateExperimentYAML(draft)
	require.NoError(t, err)

	assert.Contains(t, out, "kind: kfold")
	assert.Contains(t, out, "folds: 5")
	assert.NotContains(t, out, "test_size:")
	assert.Contains(t, out, "kind: ndcg\n    k: 10")
	assert.Contains(t, out, "kind: auc")
}

// The generated file must satisfy the experiment schema so `recbench
// run` accepts it unmodified.
func TestGeneratedYAMLPassesSchema(t *testing.T) {
	draft := &Draft{
		Name:     "starter",
		DataPath: "ratings.csv",
		Split:    "ratio",
		Models:   []string{"popularity", "itemknn"},
		Metrics:  []string{"rmse", "precision", "mrr"},
	}

	out, err := GenerateExperimentYAML(draft)
	require.NoError(t, err)

	violations := config.ValidateBytes([]byte(out))
	assert.Empty(t, violations)
}
