package split

import (
	"sort"
	"testing"

	"github.com/recbench/recbench/internal/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The config builders hand strategies out as plain values.
var (
	_ Splitter = Ratio{}
	_ Splitter = KFold{}
	_ Splitter = Given{}
)

func makeDataset(t *testing.T, n int) *dataset.Dataset {
	t.Helper()
	interactions := make([]dataset.Interaction, 0, n)
	for i := 0; i < n; i++ {
		interactions = append(interactions, dataset.Interaction{
			UserID: "u" + string(rune('a'+i%7)),
			ItemID: "i" + string(rune('a'+i/7)),
			Rating: float64(i%5 + 1),
		})
	}
	ds, err := dataset.New(interactions)
	require.NoError(t, err)
	return ds
}

func collectRows(sp Split) []int {
	all := append(append(append([]int(nil), sp.Train...), sp.Validation...), sp.Test...)
	sort.Ints(all)
	return all
}

func TestRatio_DeterministicAndExhaustive(t *testing.T) {
	ds := makeDataset(t, 100)
	r := Ratio{TestSize: 0.2, ValSize: 0.1, Seed: 42}

	first, err := r.Split(ds)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := r.Split(ds)
	require.NoError(t, err)

	assert.Equal(t, first[0].Train, second[0].Train, "same seed must reproduce the split")
	assert.Equal(t, first[0].Validation, second[0].Validation)
	assert.Equal(t, first[0].Test, second[0].Test)

	sp := first[0]
	assert.Len(t, sp.Train, 70)
	assert.Len(t, sp.Validation, 10)
	assert.Len(t, sp.Test, 20)

	// Pairwise disjoint and exhaustive.
	all := collectRows(sp)
	require.Len(t, all, 100)
	for i, r := range all {
		assert.Equal(t, i, r, "union of subsets must cover every row exactly once")
	}
}

func TestRatio_DifferentSeedsDiffer(t *testing.T) {
	ds := makeDataset(t, 100)

	a, err := (Ratio{TestSize: 0.2, Seed: 1}).Split(ds)
	require.NoError(t, err)
	b, err := (Ratio{TestSize: 0.2, Seed: 2}).Split(ds)
	require.NoError(t, err)

	assert.NotEqual(t, a[0].Test, b[0].Test)
}

func TestRatio_ExcludeUnknownsReportsFiltered(t *testing.T) {
	// Two users; u-cold appears once so it can end up test-only.
	interactions := []dataset.Interaction{
		{UserID: "u1", ItemID: "i1", Rating: 4},
		{UserID: "u1", ItemID: "i2", Rating: 3},
		{UserID: "u1", ItemID: "i3", Rating: 5},
		{UserID: "ucold", ItemID: "i1", Rating: 2},
	}
	ds, err := dataset.New(interactions)
	require.NoError(t, err)

	// Find a seed that puts the cold user's row in the test set.
	for seed := int64(0); seed < 64; seed++ {
		r := Ratio{TestSize: 0.25, Seed: seed, ExcludeUnknowns: true}
		splits, err := r.Split(ds)
		require.NoError(t, err)
		sp := splits[0]
		if sp.Filtered > 0 {
			total := len(sp.Train) + len(sp.Validation) + len(sp.Test) + sp.Filtered
			assert.Equal(t, ds.Len(), total, "filtered rows must be counted, not lost")
			return
		}
	}
	t.Fatal("no seed produced a cold-start test row; adjust fixture")
}

func TestRatio_InvalidFractions(t *testing.T) {
	ds := makeDataset(t, 10)
	for _, r := range []Ratio{
		{TestSize: 0.8, ValSize: 0.3},
		{TestSize: -0.1},
		{TestSize: 1.0},
	} {
		_, err := r.Split(ds)
		var verr *dataset.ValidationError
		assert.ErrorAs(t, err, &verr)
	}
}

func TestKFold_EveryRowInExactlyOneTestFold(t *testing.T) {
	ds := makeDataset(t, 103) // deliberately not divisible by k
	k := KFold{K: 5, Seed: 7}

	splits, err := k.Split(ds)
	require.NoError(t, err)
	require.Len(t, splits, 5)

	seen := make(map[int]int)
	for _, sp := range splits {
		// Each fold partitions the whole dataset.
		assert.Equal(t, ds.Len(), len(sp.Train)+len(sp.Test))
		for _, r := range sp.Test {
			seen[r]++
		}
	}

	require.Len(t, seen, ds.Len())
	for row, count := range seen {
		assert.Equal(t, 1, count, "row %d must appear in exactly one test fold", row)
	}
}

func TestKFold_Reproducible(t *testing.T) {
	ds := makeDataset(t, 50)

	a, err := (KFold{K: 3, Seed: 11}).Split(ds)
	require.NoError(t, err)
	b, err := (KFold{K: 3, Seed: 11}).Split(ds)
	require.NoError(t, err)

	for f := range a {
		assert.Equal(t, a[f].Test, b[f].Test)
	}
}

func TestKFold_Invalid(t *testing.T) {
	ds := makeDataset(t, 3)

	_, err := (KFold{K: 1}).Split(ds)
	var verr *dataset.ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = (KFold{K: 5}).Split(ds)
	assert.ErrorAs(t, err, &verr)
}

func TestGiven_Validates(t *testing.T) {
	ds := makeDataset(t, 10)

	splits, err := (Given{Train: []int{0, 1, 2, 3, 4, 5}, Validation: []int{6}, Test: []int{7, 8}}).Split(ds)
	require.NoError(t, err)
	require.Len(t, splits, 1)
	assert.Len(t, splits[0].Train, 6)

	tests := []struct {
		name string
		g    Given
	}{
		{"empty train", Given{Test: []int{0}}},
		{"empty test", Given{Train: []int{0}}},
		{"out of range", Given{Train: []int{0}, Test: []int{99}}},
		{"overlap", Given{Train: []int{0, 1}, Test: []int{1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.g.Split(ds)
			var verr *dataset.ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}
