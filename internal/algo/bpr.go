package algo

import (
	"context"
	"math"
	"math/rand"

	"github.com/recbench/recbench/internal/dataset"
)

type BPRConfig struct {
	Factors      int
	Epochs       int
	LearningRate float64
	Reg          float64
	Seed         int64
}

// BPR is Bayesian Personalized Ranking: pairwise matrix factorization
// trained on sampled (user, seen item, unseen item) triples. Scores are
// relative preferences, not rating predictions.
type BPR struct {
	base
	cfg BPRConfig

	userFactors [][]float64
	itemFactors [][]float64
	itemBias    []float64
}

func NewBPR(name string, cfg BPRConfig) *BPR {
	if cfg.Factors <= 0 {
		cfg.Factors = 10
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
	return &BPR{base: base{name: name}, cfg: cfg}
}

func (b *BPR) Modalities() []dataset.Modality { return nil }

func (b *BPR) Fit(ctx context.Context, ts *dataset.Trainset) error {
	rng := rand.New(rand.NewSource(b.cfg.Seed))
	k := b.cfg.Factors

	b.userFactors = randomMatrix(rng, ts.NumUsers(), k, 0.01)
	b.itemFactors = randomMatrix(rng, ts.NumItems(), k, 0.01)
	b.itemBias = make([]float64, ts.NumItems())

	ratings := ts.Ratings()
	n := len(ratings)

	for epoch := 0; epoch < b.cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for s := 0; s < n; s++ {
			r := ratings[rng.Intn(n)]
			neg := sampleNegative(rng, ts, r.User)
			if neg < 0 {
				continue
			}
			if err := b.step(r.User, r.Item, neg); err != nil {
				return err
			}
		}
	}

	b.ts = ts
	return nil
}

func (b *BPR) step(user, pos, neg int) error {
	uf := b.userFactors[user]
	pf := b.itemFactors[pos]
	nf := b.itemFactors[neg]

	diff := b.itemBias[pos] - b.itemBias[neg] + dot(uf, pf) - dot(uf, nf)
	if math.IsNaN(diff) || math.IsInf(diff, 0) {
		return &ConvergenceError{Model: b.name, Reason: "pairwise score diverged to NaN or Inf"}
	}
	g := 1.0 / (1.0 + math.Exp(diff))

	lr, reg := b.cfg.LearningRate, b.cfg.Reg
	b.itemBias[pos] += lr * (g - reg*b.itemBias[pos])
	b.itemBias[neg] += lr * (-g - reg*b.itemBias[neg])
	for f := range uf {
		du := g*(pf[f]-nf[f]) - reg*uf[f]
		dp := g*uf[f] - reg*pf[f]
		dn := -g*uf[f] - reg*nf[f]
		uf[f] += lr * du
		pf[f] += lr * dp
		nf[f] += lr * dn
	}
	return nil
}

// sampleNegative draws an item the user has no interaction with.
// Returns -1 when the user has interacted with every item.
func sampleNegative(rng *rand.Rand, ts *dataset.Trainset, user int) int {
	seen := ts.UserItems(user)
	if len(seen) >= ts.NumItems() {
		return -1
	}
	for {
		item := rng.Intn(ts.NumItems())
		if _, ok := seen[item]; !ok {
			return item
		}
	}
}

func (b *BPR) Score(user, item int) (float64, error) {
	if err := b.checkPair(user, item); err != nil {
		return 0, err
	}
	return b.itemBias[item] + dot(b.userFactors[user], b.itemFactors[item]), nil
}

func (b *BPR) Rank(user int, candidates []int) ([]int, error) {
	if b.ts == nil {
		return nil, b.checkPair(user, 0)
	}
	return rankByScore(b, user, candidates, b.ts.NumItems())
}
