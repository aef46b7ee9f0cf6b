package split

import (
	"fmt"
	"math/rand"

	"github.com/recbench/recbench/internal/dataset"
)

// Ratio splits interactions by fraction. Rows are shuffled with the explicit
// Seed, so repeated calls with the same inputs produce identical partitions.
type Ratio struct {
	// TestSize and ValSize are fractions of the dataset in [0, 1).
	// The remainder is the training set.
	TestSize float64
	ValSize  float64

	// Seed drives the shuffle. The same seed always yields the same split.
	Seed int64

	// ExcludeUnknowns drops validation/test rows whose user or item never
	// occurs in the train rows. The dropped count is reported on the Split.
	ExcludeUnknowns bool
}

// Name implements Splitter.
func (r Ratio) Name() string {
	return fmt.Sprintf("ratio(test=%.2f,val=%.2f)", r.TestSize, r.ValSize)
}

// Split implements Splitter.
func (r Ratio) Split(ds *dataset.Dataset) ([]Split, error) {
	if r.TestSize < 0 || r.ValSize < 0 || r.TestSize+r.ValSize >= 1 {
		return nil, &dataset.ValidationError{
			Reason: fmt.Sprintf("ratio split: test=%.2f val=%.2f leave no training data", r.TestSize, r.ValSize),
		}
	}

	n := ds.Len()
	perm := rand.New(rand.NewSource(r.Seed)).Perm(n)

	numTest := int(float64(n) * r.TestSize)
	numVal := int(float64(n) * r.ValSize)
	numTrain := n - numTest - numVal
	if numTrain <= 0 {
		return nil, &dataset.ValidationError{Reason: "ratio split: empty training set"}
	}

	sp := Split{
		Train:      append([]int(nil), perm[:numTrain]...),
		Validation: append([]int(nil), perm[numTrain:numTrain+numVal]...),
		Test:       append([]int(nil), perm[numTrain+numVal:]...),
	}

	if r.ExcludeUnknowns {
		users, items := trainEntities(ds, sp.Train)
		var d1, d2 int
		sp.Validation, d1 = filterUnknowns(ds, sp.Validation, users, items)
		sp.Test, d2 = filterUnknowns(ds, sp.Test, users, items)
		sp.Filtered = d1 + d2
	}

	return []Split{sp}, nil
}
