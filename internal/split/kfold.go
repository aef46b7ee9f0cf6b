package split

import (
	"fmt"
	"math/rand"

	"github.com/recbench/recbench/internal/dataset"
)

// KFold produces k rotating splits: each fold is the test set exactly once
// and the remaining folds form the training set. There is no validation set.
type KFold struct {
	K    int
	Seed int64

	// ExcludeUnknowns drops test rows whose user or item never occurs in
	// the fold's train rows. The dropped count is reported per Split.
	ExcludeUnknowns bool
}

// Name implements Splitter.
func (k KFold) Name() string {
	return fmt.Sprintf("kfold(k=%d)", k.K)
}

// Split implements Splitter.
func (k KFold) Split(ds *dataset.Dataset) ([]Split, error) {
	if k.K < 2 {
		return nil, &dataset.ValidationError{Reason: fmt.Sprintf("kfold: k must be >= 2, got %d", k.K)}
	}
	if ds.Len() < k.K {
		return nil, &dataset.ValidationError{
			Reason: fmt.Sprintf("kfold: %d interactions cannot fill %d folds", ds.Len(), k.K),
		}
	}

	perm := rand.New(rand.NewSource(k.Seed)).Perm(ds.Len())

	// Spread the remainder over the leading folds so sizes differ by at
	// most one.
	folds := make([][]int, k.K)
	base := len(perm) / k.K
	extra := len(perm) % k.K
	pos := 0
	for f := 0; f < k.K; f++ {
		size := base
		if f < extra {
			size++
		}
		folds[f] = perm[pos : pos+size]
		pos += size
	}

	splits := make([]Split, 0, k.K)
	for f := 0; f < k.K; f++ {
		sp := Split{
			Test: append([]int(nil), folds[f]...),
		}
		for g := 0; g < k.K; g++ {
			if g != f {
				sp.Train = append(sp.Train, folds[g]...)
			}
		}
		if k.ExcludeUnknowns {
			users, items := trainEntities(ds, sp.Train)
			sp.Test, sp.Filtered = filterUnknowns(ds, sp.Test, users, items)
		}
		splits = append(splits, sp)
	}

	return splits, nil
}
