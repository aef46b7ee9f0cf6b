package algo

import (
	"context"
	"math"
	"sort"

	"github.com/recbench/recbench/internal/dataset"
)

// ItemKNN scores a user-item pair by the rating-weighted similarity of
// the item to the k most similar items the user has rated. Similarity is
// cosine over the item's user-rating vectors.
type ItemKNN struct {
	base
	k   int
	sim [][]neighbor
}

type neighbor struct {
	item int
	sim  float64
}

func NewItemKNN(name string, k int) *ItemKNN {
	if k <= 0 {
		k = 20
	}
	return &ItemKNN{base: base{name: name}, k: k}
}

func (m *ItemKNN) Modalities() []dataset.Modality { return nil }

func (m *ItemKNN) Fit(ctx context.Context, ts *dataset.Trainset) error {
	n := ts.NumItems()
	norms := make([]float64, n)
	for i := 0; i < n; i++ {
		for _, v := range ts.ItemUsers(i) {
			norms[i] += v * v
		}
		norms[i] = math.Sqrt(norms[i])
	}

	m.sim = make([][]neighbor, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		var nbrs []neighbor
		ui := ts.ItemUsers(i)
		for j := 0; j < n; j++ {
			if j == i || norms[i] == 0 || norms[j] == 0 {
				continue
			}
			dotIJ := 0.0
			for u, v := range ui {
				if w, ok := ts.ItemUsers(j)[u]; ok {
					dotIJ += v * w
				}
			}
			if dotIJ == 0 {
				continue
			}
			nbrs = append(nbrs, neighbor{item: j, sim: dotIJ / (norms[i] * norms[j])})
		}
		sort.Slice(nbrs, func(a, b int) bool {
			if nbrs[a].sim != nbrs[b].sim {
				return nbrs[a].sim > nbrs[b].sim
			}
			return nbrs[a].item < nbrs[b].item
		})
		if len(nbrs) > m.k {
			nbrs = nbrs[:m.k]
		}
		m.sim[i] = nbrs
	}

	m.ts = ts
	return nil
}

func (m *ItemKNN) Score(user, item int) (float64, error) {
	if err := m.checkPair(user, item); err != nil {
		return 0, err
	}
	rated := m.ts.UserItems(user)
	num, den := 0.0, 0.0
	for _, nb := range m.sim[item] {
		if r, ok := rated[nb.item]; ok {
			num += nb.sim * r
			den += math.Abs(nb.sim)
		}
	}
	if den == 0 {
		return m.ts.GlobalMean(), nil
	}
	return num / den, nil
}

func (m *ItemKNN) Rank(user int, candidates []int) ([]int, error) {
	if m.ts == nil {
		return nil, m.checkPair(user, 0)
	}
	return rankByScore(m, user, candidates, m.ts.NumItems())
}
