package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRMSE(t *testing.T) {
	m := RMSE{}
	assert.Equal(t, "RMSE", m.Name())

	got := m.Compute([]float64{3, 4, 5}, []float64{3, 4, 5})
	assert.Equal(t, 0.0, got)

	got = m.Compute([]float64{1, 2}, []float64{3, 4})
	assert.InDelta(t, 2.0, got, 1e-12)

	assert.True(t, math.IsNaN(m.Compute(nil, nil)))
}

func TestMAE(t *testing.T) {
	m := MAE{}
	assert.Equal(t, "MAE", m.Name())

	got := m.Compute([]float64{1, 2, 3}, []float64{2, 2, 5})
	assert.InDelta(t, 1.0, got, 1e-12)

	assert.True(t, math.IsNaN(m.Compute(nil, nil)))
}

func TestPrecisionAtK(t *testing.T) {
	relevant := map[int]bool{1: true, 3: true, 9: true}
	ranked := []int{1, 2, 3, 4, 5}

	m := Precision{K: 2}
	assert.Equal(t, "Precision@2", m.Name())
	assert.InDelta(t, 0.5, m.Compute(ranked, relevant), 1e-12)

	// K beyond the list length clamps to the list.
	m = Precision{K: 10}
	assert.InDelta(t, 2.0/5.0, m.Compute(ranked, relevant), 1e-12)

	assert.Equal(t, 0.0, Precision{K: 5}.Compute(nil, relevant))
}

func TestRecallAtK(t *testing.T) {
	relevant := map[int]bool{1: true, 3: true, 9: true}
	ranked := []int{1, 2, 3, 4, 5}

	m := Recall{K: 3}
	assert.Equal(t, "Recall@3", m.Name())
	assert.InDelta(t, 2.0/3.0, m.Compute(ranked, relevant), 1e-12)

	// All relevant items in the cutoff.
	assert.InDelta(t, 1.0, Recall{K: 2}.Compute([]int{3, 1}, map[int]bool{1: true, 3: true}), 1e-12)
}

func TestNDCG(t *testing.T) {
	relevant := map[int]bool{5: true}

	// Relevant item at the top: perfect score.
	assert.InDelta(t, 1.0, NDCG{K: 3}.Compute([]int{5, 1, 2}, relevant), 1e-12)

	// Relevant item at position 2 (0-based 1): 1/log2(3).
	want := (1.0 / math.Log2(3)) / 1.0
	assert.InDelta(t, want, NDCG{K: 3}.Compute([]int{1, 5, 2}, relevant), 1e-12)

	// No relevant items ranked at all.
	assert.Equal(t, 0.0, NDCG{K: 3}.Compute([]int{1, 2, 3}, relevant))
}

func TestAUC(t *testing.T) {
	relevant := map[int]bool{1: true}

	// Relevant item above every negative.
	assert.InDelta(t, 1.0, AUC{}.Compute([]int{1, 2, 3}, relevant), 1e-12)

	// Relevant item below every negative.
	assert.InDelta(t, 0.0, AUC{}.Compute([]int{2, 3, 1}, relevant), 1e-12)

	// One of two negatives above.
	assert.InDelta(t, 0.5, AUC{}.Compute([]int{2, 1, 3}, relevant), 1e-12)

	// Degenerate lists score zero.
	assert.Equal(t, 0.0, AUC{}.Compute([]int{1}, relevant))
}

func TestMRR(t *testing.T) {
	relevant := map[int]bool{7: true, 9: true}

	require.InDelta(t, 1.0, MRR{}.Compute([]int{7, 1, 2}, relevant), 1e-12)
	require.InDelta(t, 1.0/3.0, MRR{}.Compute([]int{1, 2, 9}, relevant), 1e-12)
	require.Equal(t, 0.0, MRR{}.Compute([]int{1, 2, 3}, relevant))
}
