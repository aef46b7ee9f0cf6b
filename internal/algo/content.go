package algo

import (
	"context"
	"fmt"
	"math"

	"github.com/recbench/recbench/internal/dataset"
)

// Content is a content based model over item text features. Each user
// gets a profile vector, the rating weighted mean of the text vectors of
// the items they rated, and items are scored by cosine similarity to
// that profile.
type Content struct {
	base
	profiles [][]float64
	feats    [][]float64
}

func NewContent(name string) *Content {
	return &Content{base: base{name: name}}
}

func (m *Content) Modalities() []dataset.Modality {
	return []dataset.Modality{dataset.ModalityText}
}

func (m *Content) Fit(ctx context.Context, ts *dataset.Trainset) error {
	if !ts.HasModality(dataset.ModalityText) {
		return fmt.Errorf("model %q requires text features", m.name)
	}
	feats, dim, _ := ts.TextFeatures()

	m.profiles = make([][]float64, ts.NumUsers())
	for u := 0; u < ts.NumUsers(); u++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		profile := make([]float64, dim)
		total := 0.0
		for item, rating := range ts.UserItems(u) {
			w := rating
			if w <= 0 {
				w = 1
			}
			for d, v := range feats[item] {
				profile[d] += w * v
			}
			total += w
		}
		if total > 0 {
			for d := range profile {
				profile[d] /= total
			}
		}
		m.profiles[u] = profile
	}

	m.feats = feats
	m.ts = ts
	return nil
}

func (m *Content) Score(user, item int) (float64, error) {
	if err := m.checkPair(user, item); err != nil {
		return 0, err
	}
	return cosine(m.profiles[user], m.feats[item]), nil
}

func (m *Content) Rank(user int, candidates []int) ([]int, error) {
	if m.ts == nil {
		return nil, m.checkPair(user, 0)
	}
	return rankByScore(m, user, candidates, m.ts.NumItems())
}

func cosine(a, b []float64) float64 {
	var dotAB, normA, normB float64
	for i := range a {
		dotAB += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dotAB / (math.Sqrt(normA) * math.Sqrt(normB))
}
