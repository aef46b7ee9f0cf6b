package algo

import (
	"context"

	"github.com/recbench/recbench/internal/dataset"
)

// Popularity scores every item by its interaction count in the trainset.
// It ignores the user entirely and serves as the baseline every other
// model has to beat.
type Popularity struct {
	base
	scores []float64
}

func NewPopularity(name string) *Popularity {
	return &Popularity{base: base{name: name}}
}

func (p *Popularity) Modalities() []dataset.Modality { return nil }

func (p *Popularity) Fit(ctx context.Context, ts *dataset.Trainset) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.ts = ts
	p.scores = ts.Popularity()
	return nil
}

func (p *Popularity) Score(user, item int) (float64, error) {
	if err := p.checkPair(user, item); err != nil {
		return 0, err
	}
	return p.scores[item], nil
}

func (p *Popularity) Rank(user int, candidates []int) ([]int, error) {
	return rankByScore(p, user, candidates, p.itemCount())
}

func (p *Popularity) itemCount() int {
	if p.ts == nil {
		return 0
	}
	return p.ts.NumItems()
}
