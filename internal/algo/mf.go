package algo

import (
	"context"
	"math"
	"math/rand"

	"github.com/recbench/recbench/internal/dataset"
)

// MFConfig holds the matrix factorization hyperparameters. Zero values
// fall back to the defaults applied in NewMF.
type MFConfig struct {
	Factors      int
	Epochs       int
	LearningRate float64
	Reg          float64
	Seed         int64
}

// MF is biased matrix factorization trained with stochastic gradient
// descent on observed ratings.
type MF struct {
	base
	cfg MFConfig

	userFactors [][]float64
	itemFactors [][]float64
	userBias    []float64
	itemBias    []float64
	mean        float64
}

func NewMF(name string, cfg MFConfig) *MF {
	if cfg.Factors <= 0 {
		cfg.Factors = 10
	}
	if cfg.Epochs <= 0 {
		cfg.Epochs = 20
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = 0.01
	}
	if cfg.Reg < 0 {
		cfg.Reg = 0
	}
	return &MF{base: base{name: name}, cfg: cfg}
}

func (m *MF) Modalities() []dataset.Modality { return nil }

func (m *MF) Fit(ctx context.Context, ts *dataset.Trainset) error {
	rng := rand.New(rand.NewSource(m.cfg.Seed))
	k := m.cfg.Factors

	m.userFactors = randomMatrix(rng, ts.NumUsers(), k, 0.01)
	m.itemFactors = randomMatrix(rng, ts.NumItems(), k, 0.01)
	m.userBias = make([]float64, ts.NumUsers())
	m.itemBias = make([]float64, ts.NumItems())
	m.mean = ts.GlobalMean()

	ratings := ts.Ratings()
	order := make([]int, len(ratings))
	for i := range order {
		order[i] = i
	}

	for epoch := 0; epoch < m.cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		for _, idx := range order {
			r := ratings[idx]
			pred := m.predict(r.User, r.Item)
			err := r.Val - pred
			if math.IsNaN(err) || math.IsInf(err, 0) {
				return &ConvergenceError{Model: m.name, Reason: "loss diverged to NaN or Inf"}
			}

			m.userBias[r.User] += m.cfg.LearningRate * (err - m.cfg.Reg*m.userBias[r.User])
			m.itemBias[r.Item] += m.cfg.LearningRate * (err - m.cfg.Reg*m.itemBias[r.Item])
			uf := m.userFactors[r.User]
			vf := m.itemFactors[r.Item]
			for f := 0; f < k; f++ {
				du := err*vf[f] - m.cfg.Reg*uf[f]
				dv := err*uf[f] - m.cfg.Reg*vf[f]
				uf[f] += m.cfg.LearningRate * du
				vf[f] += m.cfg.LearningRate * dv
			}
		}
	}

	m.ts = ts
	return nil
}

func (m *MF) predict(user, item int) float64 {
	return m.mean + m.userBias[user] + m.itemBias[item] + dot(m.userFactors[user], m.itemFactors[item])
}

func (m *MF) Score(user, item int) (float64, error) {
	if err := m.checkPair(user, item); err != nil {
		return 0, err
	}
	return m.predict(user, item), nil
}

func (m *MF) Rank(user int, candidates []int) ([]int, error) {
	if m.ts == nil {
		return nil, m.checkPair(user, 0)
	}
	return rankByScore(m, user, candidates, m.ts.NumItems())
}

func randomMatrix(rng *rand.Rand, rows, cols int, scale float64) [][]float64 {
	m := make([][]float64, rows)
	for i := range m {
		m[i] = make([]float64, cols)
		for j := range m[i] {
			m[i][j] = rng.NormFloat64() * scale
		}
	}
	return m
}

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
