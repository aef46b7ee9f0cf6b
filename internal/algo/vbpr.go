package algo

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/recbench/recbench/internal/dataset"
)

type VBPRConfig struct {
	Factors       int
	VisualFactors int
	Epochs        int
	LearningRate  float64
	Reg           float64
	Seed          int64
}

// VBPR extends pairwise ranking with a visual channel: item image
// features are projected into a low dimensional visual space and matched
// against per-user visual preference vectors.
type VBPR struct {
	base
	cfg VBPRConfig

	userFactors   [][]float64
	itemFactors   [][]float64
	userVisual    [][]float64
	embedding     [][]float64 // visual factors x feature dim
	visualBias    []float64   // feature dim
	itemBias      []float64
	itemVisual    [][]float64 // cached projection, items x visual factors
	itemVisBiases []float64   // cached visualBias . features
}

func NewVBPR(name string, cfg VBPRConfig) *VBPR {
	if cfg.Factors <= 0 {
		cfg.Factors = 10
	}
	if cfg.VisualFactors <= 0 {
		cfg.VisualFactors = 10
	}
	if cfg.Epochs <= 0 {
		cfg.Epochs = 20
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = 0.05
	}
	if cfg.Reg < 0 {
		cfg.Reg = 0
	}
	return &VBPR{base: base{name: name}, cfg: cfg}
}

func (m *VBPR) Modalities() []dataset.Modality {
	return []dataset.Modality{dataset.ModalityImage}
}

func (m *VBPR) Fit(ctx context.Context, ts *dataset.Trainset) error {
	if !ts.HasModality(dataset.ModalityImage) {
		return fmt.Errorf("model %q requires image features", m.name)
	}
	feats, featDim, _ := ts.ImageFeatures()

	rng := rand.New(rand.NewSource(m.cfg.Seed))
	k, kv := m.cfg.Factors, m.cfg.VisualFactors

	m.userFactors = randomMatrix(rng, ts.NumUsers(), k, 0.01)
	m.itemFactors = randomMatrix(rng, ts.NumItems(), k, 0.01)
	m.userVisual = randomMatrix(rng, ts.NumUsers(), kv, 0.01)
	m.embedding = randomMatrix(rng, kv, featDim, 0.01)
	m.visualBias = make([]float64, featDim)
	m.itemBias = make([]float64, ts.NumItems())

	ratings := ts.Ratings()
	n := len(ratings)

	for epoch := 0; epoch < m.cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for s := 0; s < n; s++ {
			r := ratings[rng.Intn(n)]
			neg := sampleNegative(rng, ts, r.User)
			if neg < 0 {
				continue
			}
			if err := m.step(r.User, r.Item, neg, feats); err != nil {
				return err
			}
		}
	}

	// Freeze item projections once training is done so Score is a pair
	// of dot products.
	m.itemVisual = make([][]float64, ts.NumItems())
	m.itemVisBiases = make([]float64, ts.NumItems())
	for i := 0; i < ts.NumItems(); i++ {
		m.itemVisual[i] = m.project(feats[i])
		m.itemVisBiases[i] = dot(m.visualBias, feats[i])
	}

	m.ts = ts
	return nil
}

func (m *VBPR) project(feat []float64) []float64 {
	out := make([]float64, len(m.embedding))
	for v, row := range m.embedding {
		out[v] = dot(row, feat)
	}
	return out
}

func (m *VBPR) rawScore(user, item int, feats [][]float64) float64 {
	s := m.itemBias[item] + dot(m.userFactors[user], m.itemFactors[item])
	proj := m.project(feats[item])
	s += dot(m.userVisual[user], proj)
	s += dot(m.visualBias, feats[item])
	return s
}

func (m *VBPR) step(user, pos, neg int, feats [][]float64) error {
	diff := m.rawScore(user, pos, feats) - m.rawScore(user, neg, feats)
	if math.IsNaN(diff) || math.IsInf(diff, 0) {
		return &ConvergenceError{Model: m.name, Reason: "pairwise score diverged to NaN or Inf"}
	}
	g := 1.0 / (1.0 + math.Exp(diff))

	lr, reg := m.cfg.LearningRate, m.cfg.Reg
	uf := m.userFactors[user]
	pf := m.itemFactors[pos]
	nf := m.itemFactors[neg]
	uv := m.userVisual[user]
	fp, fn := feats[pos], feats[neg]

	m.itemBias[pos] += lr * (g - reg*m.itemBias[pos])
	m.itemBias[neg] += lr * (-g - reg*m.itemBias[neg])
	for f := range uf {
		du := g*(pf[f]-nf[f]) - reg*uf[f]
		dp := g*uf[f] - reg*pf[f]
		dn := -g*uf[f] - reg*nf[f]
		uf[f] += lr * du
		pf[f] += lr * dp
		nf[f] += lr * dn
	}

	projDiff := make([]float64, len(m.embedding))
	for v, row := range m.embedding {
		projDiff[v] = dot(row, fp) - dot(row, fn)
	}
	for v := range uv {
		duv := g*projDiff[v] - reg*uv[v]
		for d := range m.embedding[v] {
			de := g*uv[v]*(fp[d]-fn[d]) - reg*m.embedding[v][d]
			m.embedding[v][d] += lr * de
		}
		uv[v] += lr * duv
	}
	for d := range m.visualBias {
		m.visualBias[d] += lr * (g*(fp[d]-fn[d]) - reg*m.visualBias[d])
	}
	return nil
}

func (m *VBPR) Score(user, item int) (float64, error) {
	if err := m.checkPair(user, item); err != nil {
		return 0, err
	}
	s := m.itemBias[item] + dot(m.userFactors[user], m.itemFactors[item])
	s += dot(m.userVisual[user], m.itemVisual[item])
	s += m.itemVisBiases[item]
	return s, nil
}

func (m *VBPR) Rank(user int, candidates []int) ([]int, error) {
	if m.ts == nil {
		return nil, m.checkPair(user, 0)
	}
	return rankByScore(m, user, candidates, m.ts.NumItems())
}
