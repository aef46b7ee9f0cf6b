package dataset

import (
	"fmt"
)

// Features is a read-only table of fixed-width feature vectors keyed by raw
// item (or user) id. Ids must align with the primary Dataset's id space; the
// alignment is validated when the table is attached.
type Features struct {
	dim  int
	rows map[string][]float64
}

// NewFeatures creates an empty table for vectors of the given width.
func NewFeatures(dim int) *Features {
	return &Features{dim: dim, rows: make(map[string][]float64)}
}

// Set stores the vector for id. It fails when the width does not match the
// table's dimension.
func (f *Features) Set(id string, vec []float64) error {
	if len(vec) != f.dim {
		return &ValidationError{Reason: fmt.Sprintf("feature vector for %q has width %d, table expects %d", id, len(vec), f.dim)}
	}
	f.rows[id] = vec
	return nil
}

// Get returns the vector for id.
func (f *Features) Get(id string) ([]float64, bool) {
	v, ok := f.rows[id]
	return v, ok
}

// Dim returns the vector width.
func (f *Features) Dim() int {
	return f.dim
}

// Len returns the number of stored rows.
func (f *Features) Len() int {
	return len(f.rows)
}

// Edge is one weighted link in an item affinity graph.
type Edge struct {
	To     string
	Weight float64
}

// Adjacency is a read-only item-item graph keyed by raw item id, consumed by
// graph-regularized models.
type Adjacency struct {
	edges map[string][]Edge
}

// NewAdjacency creates an empty graph.
func NewAdjacency() *Adjacency {
	return &Adjacency{edges: make(map[string][]Edge)}
}

// AddEdge records a directed weighted edge. Call twice for symmetric graphs.
func (a *Adjacency) AddEdge(from, to string, weight float64) {
	a.edges[from] = append(a.edges[from], Edge{To: to, Weight: weight})
}

// Neighbors returns the outgoing edges of an item.
func (a *Adjacency) Neighbors(id string) []Edge {
	return a.edges[id]
}

// Len returns the number of items with at least one outgoing edge.
func (a *Adjacency) Len() int {
	return len(a.edges)
}
