package dataset

// Rating is one training triple in the train-derived dense index space.
type Rating struct {
	User int
	Item int
	Val  float64
}

// Trainset is the training view of a Dataset restricted to a set of
// interaction rows. It owns its own dense user/item indices derived from the
// training rows only, so evaluation code can detect cold-start entities by
// failing to resolve them here. Modality tables are re-aligned to the
// train-derived item indices at construction.
type Trainset struct {
	parent *Dataset

	uids  map[string]int
	iids  map[string]int
	users []string
	items []string

	ratings    []Rating
	userItems  []map[int]float64
	itemUsers  []map[int]float64
	globalMean float64
	popularity []float64

	imageFeat [][]float64
	imageDim  int
	textFeat  [][]float64
	textDim   int
	graphAdj  [][]WeightedLink
}

// WeightedLink is an edge in the train-aligned item graph, in dense indices.
type WeightedLink struct {
	Item   int
	Weight float64
}

// NewTrainset builds the training view over the given interaction rows of a
// Dataset.
func NewTrainset(ds *Dataset, rows []int) (*Trainset, error) {
	if len(rows) == 0 {
		return nil, &ValidationError{Reason: "empty training split"}
	}

	ts := &Trainset{
		parent: ds,
		uids:   make(map[string]int),
		iids:   make(map[string]int),
	}

	sum := 0.0
	for _, r := range rows {
		in := ds.Interaction(r)
		u, ok := ts.uids[in.UserID]
		if !ok {
			u = len(ts.users)
			ts.uids[in.UserID] = u
			ts.users = append(ts.users, in.UserID)
			ts.userItems = append(ts.userItems, make(map[int]float64))
		}
		i, ok := ts.iids[in.ItemID]
		if !ok {
			i = len(ts.items)
			ts.iids[in.ItemID] = i
			ts.items = append(ts.items, in.ItemID)
			ts.itemUsers = append(ts.itemUsers, make(map[int]float64))
			ts.popularity = append(ts.popularity, 0)
		}
		ts.ratings = append(ts.ratings, Rating{User: u, Item: i, Val: in.Rating})
		ts.userItems[u][i] = in.Rating
		ts.itemUsers[i][u] = in.Rating
		ts.popularity[i]++
		sum += in.Rating
	}
	ts.globalMean = sum / float64(len(ts.ratings))

	ts.alignModalities()
	return ts, nil
}

// alignModalities projects the parent's modality tables onto the
// train-derived item index space. Items with no row in a table get a zero
// vector; whole-table presence is what models preflight against.
func (ts *Trainset) alignModalities() {
	if f := ts.parent.images; f != nil {
		ts.imageDim = f.Dim()
		ts.imageFeat = alignFeatures(f, ts.items)
	}
	if f := ts.parent.texts; f != nil {
		ts.textDim = f.Dim()
		ts.textFeat = alignFeatures(f, ts.items)
	}
	if g := ts.parent.graph; g != nil {
		ts.graphAdj = make([][]WeightedLink, len(ts.items))
		for i, id := range ts.items {
			for _, e := range g.Neighbors(id) {
				if j, ok := ts.iids[e.To]; ok {
					ts.graphAdj[i] = append(ts.graphAdj[i], WeightedLink{Item: j, Weight: e.Weight})
				}
			}
		}
	}
}

func alignFeatures(f *Features, items []string) [][]float64 {
	out := make([][]float64, len(items))
	for i, id := range items {
		if vec, ok := f.Get(id); ok {
			out[i] = vec
		} else {
			out[i] = make([]float64, f.Dim())
		}
	}
	return out
}

// NumUsers returns the number of training users.
func (ts *Trainset) NumUsers() int { return len(ts.users) }

// NumItems returns the number of training items.
func (ts *Trainset) NumItems() int { return len(ts.items) }

// NumRatings returns the number of training triples.
func (ts *Trainset) NumRatings() int { return len(ts.ratings) }

// Ratings returns the training triples. Callers must not modify the slice.
func (ts *Trainset) Ratings() []Rating { return ts.ratings }

// GlobalMean returns the mean training rating.
func (ts *Trainset) GlobalMean() float64 { return ts.globalMean }

// UserIndex resolves a raw user id against the train-derived index space.
func (ts *Trainset) UserIndex(id string) (int, bool) {
	idx, ok := ts.uids[id]
	return idx, ok
}

// ItemIndex resolves a raw item id against the train-derived index space.
func (ts *Trainset) ItemIndex(id string) (int, bool) {
	idx, ok := ts.iids[id]
	return idx, ok
}

// UserAt returns the raw id of the training user at idx.
func (ts *Trainset) UserAt(idx int) string { return ts.users[idx] }

// ItemAt returns the raw id of the training item at idx.
func (ts *Trainset) ItemAt(idx int) string { return ts.items[idx] }

// UserItems returns the items rated by training user u with their values.
// Callers must not modify the map.
func (ts *Trainset) UserItems(u int) map[int]float64 { return ts.userItems[u] }

// ItemUsers returns the users who rated training item i with their values.
// Callers must not modify the map.
func (ts *Trainset) ItemUsers(i int) map[int]float64 { return ts.itemUsers[i] }

// Popularity returns per-item interaction counts, indexed by item.
// Callers must not modify the slice.
func (ts *Trainset) Popularity() []float64 { return ts.popularity }

// HasModality reports whether the named auxiliary table is available.
func (ts *Trainset) HasModality(m Modality) bool { return ts.parent.HasModality(m) }

// ImageFeatures returns the train-aligned image feature matrix and its
// width. ok is false when no image modality is attached.
func (ts *Trainset) ImageFeatures() (feat [][]float64, dim int, ok bool) {
	return ts.imageFeat, ts.imageDim, ts.imageFeat != nil
}

// TextFeatures returns the train-aligned text feature matrix and its width.
func (ts *Trainset) TextFeatures() (feat [][]float64, dim int, ok bool) {
	return ts.textFeat, ts.textDim, ts.textFeat != nil
}

// ItemGraph returns the train-aligned item adjacency lists.
func (ts *Trainset) ItemGraph() (adj [][]WeightedLink, ok bool) {
	return ts.graphAdj, ts.graphAdj != nil
}
