package split

import (
	"fmt"

	"github.com/recbench/recbench/internal/dataset"
)

// Given wraps an externally supplied split. It trusts the caller's
// partition but validates it: indices must be in range and no row may
// appear in more than one subset.
type Given struct {
	Train      []int
	Validation []int
	Test       []int
}

// Name implements Splitter.
func (g Given) Name() string {
	return "given"
}

// Split implements Splitter.
func (g Given) Split(ds *dataset.Dataset) ([]Split, error) {
	if len(g.Train) == 0 {
		return nil, &dataset.ValidationError{Reason: "given split: empty training set"}
	}
	if len(g.Test) == 0 {
		return nil, &dataset.ValidationError{Reason: "given split: empty test set"}
	}

	seen := make(map[int]string, len(g.Train)+len(g.Validation)+len(g.Test))
	for _, part := range []struct {
		name string
		rows []int
	}{{"train", g.Train}, {"validation", g.Validation}, {"test", g.Test}} {
		for _, r := range part.rows {
			if r < 0 || r >= ds.Len() {
				return nil, &dataset.ValidationError{
					Reason: fmt.Sprintf("given split: %s index %d out of range [0, %d)", part.name, r, ds.Len()),
				}
			}
			if prev, dup := seen[r]; dup {
				return nil, &dataset.ValidationError{
					Reason: fmt.Sprintf("given split: row %d appears in both %s and %s", r, prev, part.name),
				}
			}
			seen[r] = part.name
		}
	}

	return []Split{{
		Train:      append([]int(nil), g.Train...),
		Validation: append([]int(nil), g.Validation...),
		Test:       append([]int(nil), g.Test...),
	}}, nil
}
