package algo

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/recbench/recbench/internal/dataset"
)

type GraphMFConfig struct {
	Factors      int
	Epochs       int
	LearningRate float64
	Reg          float64
	GraphReg     float64
	Seed         int64
}

// GraphMF is matrix factorization with a graph smoothness term: the item
// relation graph pulls the factor vectors of linked items toward each
// other, weighted by edge strength.
type GraphMF struct {
	base
	cfg GraphMFConfig

	userFactors [][]float64
	itemFactors [][]float64
	userBias    []float64
	itemBias    []float64
	mean        float64
}

func NewGraphMF(name string, cfg GraphMFConfig) *GraphMF {
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
	if cfg.GraphReg <= 0 {
		cfg.GraphReg = 0.1
	}
	return &GraphMF{base: base{name: name}, cfg: cfg}
}

func (m *GraphMF) Modalities() []dataset.Modality {
	return []dataset.Modality{dataset.ModalityGraph}
}

func (m *GraphMF) Fit(ctx context.Context, ts *dataset.Trainset) error {
	if !ts.HasModality(dataset.ModalityGraph) {
		return fmt.Errorf("model %q requires an item graph", m.name)
	}
	adj, _ := ts.ItemGraph()

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
			pred := m.mean + m.userBias[r.User] + m.itemBias[r.Item] + dot(m.userFactors[r.User], m.itemFactors[r.Item])
			err := r.Val - pred
			if math.IsNaN(err) || math.IsInf(err, 0) {
				return &ConvergenceError{Model: m.name, Reason: "loss diverged to NaN or Inf"}
			}

			lr, reg := m.cfg.LearningRate, m.cfg.Reg
			m.userBias[r.User] += lr * (err - reg*m.userBias[r.User])
			m.itemBias[r.Item] += lr * (err - reg*m.itemBias[r.Item])
			uf := m.userFactors[r.User]
			vf := m.itemFactors[r.Item]
			for f := 0; f < k; f++ {
				du := err*vf[f] - reg*uf[f]
				dv := err*uf[f] - reg*vf[f]
				uf[f] += lr * du
				vf[f] += lr * dv
			}

			// Pull the item toward its graph neighbors.
			for _, link := range adj[r.Item] {
				nf := m.itemFactors[link.Item]
				for f := 0; f < k; f++ {
					vf[f] += lr * m.cfg.GraphReg * link.Weight * (nf[f] - vf[f])
				}
			}
		}
	}

	m.ts = ts
	return nil
}

func (m *GraphMF) Score(user, item int) (float64, error) {
	if err := m.checkPair(user, item); err != nil {
		return 0, err
	}
	return m.mean + m.userBias[user] + m.itemBias[item] + dot(m.userFactors[user], m.itemFactors[item]), nil
}

func (m *GraphMF) Rank(user int, candidates []int) ([]int, error) {
	if m.ts == nil {
		return nil, m.checkPair(user, 0)
	}
	return rankByScore(m, user, candidates, m.ts.NumItems())
}
