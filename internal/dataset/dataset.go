// Package dataset holds immutable user-item interaction data and the
// auxiliary modality tables (image, text, graph) some models consume.
//
// A Dataset is built once from raw interactions and never mutated. It owns
// the global id↔index bijection; training views with their own train-derived
// index space are built per split via NewTrainset.
package dataset

import (
	"fmt"
	"time"
)

// Modality names a class of auxiliary side information.
type Modality string

const (
	ModalityImage Modality = "image"
	ModalityText  Modality = "text"
	ModalityGraph Modality = "graph"
)

// Interaction is one observed (user, item, rating) triple. Rating carries an
// explicit score or an implicit signal strength; Timestamp is optional.
type Interaction struct {
	UserID    string
	ItemID    string
	Rating    float64
	Timestamp time.Time
}

// ValidationError reports malformed or inconsistent input data. It is fatal:
// a Dataset is never constructed from data that fails validation.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "dataset: " + e.Reason
}

// DuplicatePolicy decides what happens when the same (user, item) pair
// appears more than once in the input.
type DuplicatePolicy int

const (
	// DuplicatesError rejects the input with a ValidationError (default).
	DuplicatesError DuplicatePolicy = iota
	// DuplicatesKeepLast keeps the last occurrence, which suits
	// timestamped streams where re-rating supersedes earlier signals.
	DuplicatesKeepLast
)

// Option configures Dataset construction.
type Option func(*builder)

// WithDuplicatePolicy overrides the default DuplicatesError policy.
func WithDuplicatePolicy(p DuplicatePolicy) Option {
	return func(b *builder) {
		b.duplicates = p
	}
}

// WithImageFeatures attaches an item image-feature table.
func WithImageFeatures(f *Features) Option {
	return func(b *builder) {
		b.images = f
	}
}

// WithTextFeatures attaches an item text-feature table.
func WithTextFeatures(f *Features) Option {
	return func(b *builder) {
		b.texts = f
	}
}

// WithItemGraph attaches an item-item affinity graph.
func WithItemGraph(g *Adjacency) Option {
	return func(b *builder) {
		b.graph = g
	}
}

type builder struct {
	duplicates DuplicatePolicy
	images     *Features
	texts      *Features
	graph      *Adjacency
}

// Dataset is an immutable, validated container of interactions with dense
// contiguous user and item indices. Indices are stable for the Dataset's
// lifetime.
type Dataset struct {
	interactions []Interaction

	uids  map[string]int
	iids  map[string]int
	users []string
	items []string

	images *Features
	texts  *Features
	graph  *Adjacency
}

// New validates raw interactions and builds a Dataset. It fails with a
// *ValidationError on empty input, malformed ids, or duplicate (user, item)
// pairs when the policy disallows them. Attached modality tables must share
// at least one item id with the interactions.
func New(interactions []Interaction, opts ...Option) (*Dataset, error) {
	b := &builder{}
	for _, o := range opts {
		o(b)
	}

	if len(interactions) == 0 {
		return nil, &ValidationError{Reason: "no interactions"}
	}

	ds := &Dataset{
		uids:   make(map[string]int),
		iids:   make(map[string]int),
		images: b.images,
		texts:  b.texts,
		graph:  b.graph,
	}

	type pair struct{ u, i string }
	seen := make(map[pair]int, len(interactions))

	for n, in := range interactions {
		if in.UserID == "" || in.ItemID == "" {
			return nil, &ValidationError{Reason: fmt.Sprintf("row %d: empty user or item id", n)}
		}
		if p, dup := seen[pair{in.UserID, in.ItemID}]; dup {
			switch b.duplicates {
			case DuplicatesKeepLast:
				ds.interactions[p] = in
				continue
			default:
				return nil, &ValidationError{
					Reason: fmt.Sprintf("row %d: duplicate pair (%s, %s)", n, in.UserID, in.ItemID),
				}
			}
		}

		if _, ok := ds.uids[in.UserID]; !ok {
			ds.uids[in.UserID] = len(ds.users)
			ds.users = append(ds.users, in.UserID)
		}
		if _, ok := ds.iids[in.ItemID]; !ok {
			ds.iids[in.ItemID] = len(ds.items)
			ds.items = append(ds.items, in.ItemID)
		}

		seen[pair{in.UserID, in.ItemID}] = len(ds.interactions)
		ds.interactions = append(ds.interactions, in)
	}

	for _, m := range []struct {
		name Modality
		feat *Features
	}{{ModalityImage, b.images}, {ModalityText, b.texts}} {
		if m.feat == nil {
			continue
		}
		if err := checkAlignment(m.name, m.feat, ds.iids); err != nil {
			return nil, err
		}
	}

	return ds, nil
}

// checkAlignment enforces the id-alignment contract for a feature table:
// its ids must overlap the item id space, otherwise the table was keyed
// against a different id universe and should have been remapped upstream.
func checkAlignment(name Modality, f *Features, iids map[string]int) error {
	if f.Len() == 0 {
		return &ValidationError{Reason: fmt.Sprintf("%s features: empty table", name)}
	}
	matched := 0
	for id := range f.rows {
		if _, ok := iids[id]; ok {
			matched++
		}
	}
	if matched == 0 {
		return &ValidationError{
			Reason: fmt.Sprintf("%s features: no id overlaps the item id space (misaligned id universe?)", name),
		}
	}
	return nil
}

// Len returns the number of interactions.
func (d *Dataset) Len() int {
	return len(d.interactions)
}

// Interaction returns the interaction at row i.
func (d *Dataset) Interaction(i int) Interaction {
	return d.interactions[i]
}

// NumUsers returns the number of distinct users.
func (d *Dataset) NumUsers() int {
	return len(d.users)
}

// NumItems returns the number of distinct items.
func (d *Dataset) NumItems() int {
	return len(d.items)
}

// UserIndex resolves a raw user id to its dense index.
func (d *Dataset) UserIndex(id string) (int, bool) {
	idx, ok := d.uids[id]
	return idx, ok
}

// ItemIndex resolves a raw item id to its dense index.
func (d *Dataset) ItemIndex(id string) (int, bool) {
	idx, ok := d.iids[id]
	return idx, ok
}

// UserAt returns the raw id of the user at the given index.
func (d *Dataset) UserAt(idx int) string {
	return d.users[idx]
}

// ItemAt returns the raw id of the item at the given index.
func (d *Dataset) ItemAt(idx int) string {
	return d.items[idx]
}

// HasModality reports whether the named auxiliary table is attached.
func (d *Dataset) HasModality(m Modality) bool {
	switch m {
	case ModalityImage:
		return d.images != nil
	case ModalityText:
		return d.texts != nil
	case ModalityGraph:
		return d.graph != nil
	}
	return false
}
