// Package split partitions a Dataset into train/validation/test subsets
// under an explicit, seeded policy.
package split

import (
	"github.com/recbench/recbench/internal/dataset"
)

// Split is one partition of a Dataset's interaction rows. Indices refer to
// rows of the source Dataset. Filtered counts the validation/test rows
// dropped by a cold-start filter policy; it is reported, never swallowed.
type Split struct {
	Train      []int
	Validation []int
	Test       []int
	Filtered   int
}

// Splitter produces one or more Splits from a Dataset. Strategies that
// randomize must be reproducible from their explicit seed. KFold returns k
// Splits; single-partition strategies return exactly one.
type Splitter interface {
	Name() string
	Split(ds *dataset.Dataset) ([]Split, error)
}

// trainEntities collects the user and item ids present in the train rows.
func trainEntities(ds *dataset.Dataset, train []int) (users, items map[string]struct{}) {
	users = make(map[string]struct{})
	items = make(map[string]struct{})
	for _, r := range train {
		in := ds.Interaction(r)
		users[in.UserID] = struct{}{}
		items[in.ItemID] = struct{}{}
	}
	return users, items
}

// filterUnknowns drops rows whose user or item does not occur in the train
// rows, returning the kept rows and the number dropped.
func filterUnknowns(ds *dataset.Dataset, rows []int, users, items map[string]struct{}) (kept []int, dropped int) {
	kept = rows[:0:0]
	for _, r := range rows {
		in := ds.Interaction(r)
		_, uok := users[in.UserID]
		_, iok := items[in.ItemID]
		if uok && iok {
			kept = append(kept, r)
		} else {
			dropped++
		}
	}
	return kept, dropped
}
