package search

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/recbench/recbench/internal/algo"
	"github.com/recbench/recbench/internal/dataset"
	"github.com/recbench/recbench/internal/experiment"
	"github.com/recbench/recbench/internal/split"
)

// ModelFactory builds a model instance for one trial's parameters.
type ModelFactory func(name string, params map[string]any) (algo.Recommender, error)

// Trial is one evaluated configuration.
type Trial struct {
	Index      int                    `json:"index"`
	Params     map[string]any         `json:"params"`
	Status     experiment.ModelStatus `json:"status"`
	Err        string                 `json:"error,omitempty"`
	Score      float64                `json:"score"`
	Validation map[string]float64     `json:"validation,omitempty"`
	Test       map[string]float64     `json:"test,omitempty"`
}

// Result is the outcome of a hyperparameter search. The winner is chosen
// on validation scores only; BestTest is reported for the winning trial
// but never influences selection.
type Result struct {
	Strategy   string             `json:"strategy"`
	Metric     string             `json:"metric"`
	BestIndex  int                `json:"best_index"`
	BestParams map[string]any     `json:"best_params"`
	BestScore  float64            `json:"best_score"`
	BestTest   map[string]float64 `json:"best_test,omitempty"`
	Trials     []Trial            `json:"trials"`
}

// Search runs a strategy's candidate configurations through experiments
// and selects the best by a validation metric.
type Search struct {
	factory  ModelFactory
	strategy Strategy
	space    *Space
	metric   string
	maximize bool
	workers  int
	expOpts  []experiment.Option
}

// Option configures a Search.
type Option func(*Search)

// WithWorkers runs up to n trials concurrently.
func WithWorkers(n int) Option {
	return func(s *Search) { s.workers = n }
}

// Minimize selects the configuration with the lowest validation score
// instead of the highest. Use for error metrics such as RMSE.
func Minimize() Option {
	return func(s *Search) { s.maximize = false }
}

// WithExperimentOptions forwards options to each trial's experiment.
func WithExperimentOptions(opts ...experiment.Option) Option {
	return func(s *Search) { s.expOpts = append(s.expOpts, opts...) }
}

// New creates a search that optimizes the named metric, maximizing by
// default.
func New(factory ModelFactory, strategy Strategy, space *Space, metric string, opts ...Option) (*Search, error) {
	if factory == nil {
		return nil, errors.New("search: model factory is required")
	}
	if strategy == nil {
		return nil, errors.New("search: strategy is required")
	}
	if space == nil {
		return nil, errors.New("search: space is required")
	}
	if metric == "" {
		return nil, errors.New("search: target metric is required")
	}
	s := &Search{
		factory:  factory,
		strategy: strategy,
		space:    space,
		metric:   metric,
		maximize: true,
		workers:  1,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Run evaluates every candidate configuration and returns the trial
// table with the validation winner. The splitter must produce a
// validation subset; selecting on the test subset would leak it.
func (s *Search) Run(ctx context.Context, ds *dataset.Dataset, splitter split.Splitter) (*Result, error) {
	candidates, err := s.strategy.Candidates(s.space)
	if err != nil {
		return nil, err
	}

	trials := make([]Trial, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	limit := s.workers
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)

	for i, params := range candidates {
		g.Go(func() error {
			trials[i] = s.runTrial(gctx, i, params, ds, splitter)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &Result{
		Strategy:  s.strategy.Name(),
		Metric:    s.metric,
		BestIndex: -1,
		Trials:    trials,
	}

	// Earlier trials win ties so results are deterministic.
	for i := range trials {
		t := &trials[i]
		if t.Status != experiment.ModelStatusOK {
			continue
		}
		if result.BestIndex < 0 || s.better(t.Score, result.BestScore) {
			result.BestIndex = t.Index
			result.BestParams = t.Params
			result.BestScore = t.Score
			result.BestTest = t.Test
		}
	}

	if result.BestIndex < 0 {
		return result, errors.New("search: every trial failed")
	}
	return result, nil
}

func (s *Search) better(score, best float64) bool {
	if s.maximize {
		return score > best
	}
	return score < best
}

func (s *Search) runTrial(ctx context.Context, idx int, params map[string]any, ds *dataset.Dataset, splitter split.Splitter) Trial {
	trial := Trial{Index: idx, Params: params, Status: experiment.ModelStatusFailed}

	model, err := s.factory(fmt.Sprintf("trial-%d", idx), params)
	if err != nil {
		trial.Err = fmt.Sprintf("building model: %v", err)
		return trial
	}

	exp, err := experiment.New(ds, splitter, []algo.Recommender{model}, s.expOpts...)
	if err != nil {
		trial.Err = err.Error()
		return trial
	}

	outcome, err := exp.Run(ctx)
	if err != nil {
		trial.Err = err.Error()
		return trial
	}
	if outcome.Status == experiment.StatusStopped {
		trial.Status = experiment.ModelStatusSkipped
		return trial
	}

	agg := outcome.Aggregate()
	if len(agg) != 1 || agg[0].Status != experiment.ModelStatusOK {
		trial.Err = "trial model did not produce results"
		return trial
	}

	score, ok := agg[0].Validation[s.metric]
	if !ok {
		trial.Err = fmt.Sprintf("metric %q not present in validation results; the splitter must produce a validation subset", s.metric)
		return trial
	}

	trial.Status = experiment.ModelStatusOK
	trial.Score = score
	trial.Validation = agg[0].Validation
	trial.Test = agg[0].Test
	return trial
}
