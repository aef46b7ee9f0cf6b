package algo

import (
	"context"
	"time"

	"github.com/recbench/recbench/internal/dataset"
)

// Fake is a scriptable Recommender for tests. It trains instantly unless
// told otherwise and scores via a pluggable function.
type Fake struct {
	FakeName       string
	FakeModalities []dataset.Modality

	// FitErr is returned from Fit verbatim.
	FitErr error

	// FitDelay makes Fit block, honoring context cancellation.
	FitDelay time.Duration

	// ScoreFn overrides scoring. Defaults to item index as score.
	ScoreFn func(user, item int) float64

	FitCalls int

	ts *dataset.Trainset
}

var _ Recommender = (*Fake)(nil)

func (f *Fake) Name() string { return f.FakeName }

func (f *Fake) Modalities() []dataset.Modality { return f.FakeModalities }

func (f *Fake) Fit(ctx context.Context, ts *dataset.Trainset) error {
	f.FitCalls++
	if f.FitDelay > 0 {
		select {
		case <-time.After(f.FitDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.FitErr != nil {
		return f.FitErr
	}
	f.ts = ts
	return nil
}

func (f *Fake) Score(user, item int) (float64, error) {
	if f.ts == nil {
		return 0, &ColdStartError{Model: f.FakeName, User: user, Item: item}
	}
	if f.ScoreFn != nil {
		return f.ScoreFn(user, item), nil
	}
	return float64(item), nil
}

func (f *Fake) Rank(user int, candidates []int) ([]int, error) {
	if f.ts == nil {
		return nil, &ColdStartError{Model: f.FakeName, User: user, Item: 0}
	}
	return rankByScore(f, user, candidates, f.ts.NumItems())
}
