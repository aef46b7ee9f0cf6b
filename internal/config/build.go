package config

import (
	"fmt"

	"github.com/recbench/recbench/internal/algo"
	"github.com/recbench/recbench/internal/dataset"
	"github.com/recbench/recbench/internal/experiment"
	"github.com/recbench/recbench/internal/metrics"
	"github.com/recbench/recbench/internal/search"
	"github.com/recbench/recbench/internal/split"
)

// BuildDataset loads the interaction data and any modality files the
// spec names.
func (s *Spec) BuildDataset() (*dataset.Dataset, error) {
	rows, err := dataset.LoadCSV(s.ResolvePath(s.Dataset.Path))
	if err != nil {
		return nil, fmt.Errorf("loading interactions: %w", err)
	}

	var opts []dataset.Option
	if s.Dataset.Duplicates == "keep_last" {
		opts = append(opts, dataset.WithDuplicatePolicy(dataset.DuplicatesKeepLast))
	}
	if s.Dataset.ImageFeatures != "" {
		f, err := dataset.LoadFeaturesCSV(s.ResolvePath(s.Dataset.ImageFeatures))
		if err != nil {
			return nil, fmt.Errorf("loading image features: %w", err)
		}
		opts = append(opts, dataset.WithImageFeatures(f))
	}
	if s.Dataset.TextFeatures != "" {
		f, err := dataset.LoadFeaturesCSV(s.ResolvePath(s.Dataset.TextFeatures))
		if err != nil {
			return nil, fmt.Errorf("loading text features: %w", err)
		}
		opts = append(opts, dataset.WithTextFeatures(f))
	}
	if s.Dataset.ItemGraph != "" {
		g, err := dataset.LoadEdgesCSV(s.ResolvePath(s.Dataset.ItemGraph))
		if err != nil {
			return nil, fmt.Errorf("loading item graph: %w", err)
		}
		opts = append(opts, dataset.WithItemGraph(g))
	}

	return dataset.New(rows, opts...)
}

// BuildSplitter constructs the split strategy the spec selects.
func (s *Spec) BuildSplitter() (split.Splitter, error) {
	switch s.Split.Kind {
	case "ratio":
		return split.Ratio{
			TestSize:        s.Split.TestSize,
			ValSize:         s.Split.ValSize,
			Seed:            s.Split.Seed,
			ExcludeUnknowns: s.Split.ExcludeUnknowns,
		}, nil
	case "kfold":
		return split.KFold{
			K:               s.Split.Folds,
			Seed:            s.Split.Seed,
			ExcludeUnknowns: s.Split.ExcludeUnknowns,
		}, nil
	case "given":
		return split.Given{
			Train:      s.Split.Train,
			Validation: s.Split.Validation,
			Test:       s.Split.Test,
		}, nil
	default:
		return nil, fmt.Errorf("'%s' is not a valid split kind", s.Split.Kind)
	}
}

// BuildModels instantiates every model the spec lists.
func (s *Spec) BuildModels() ([]algo.Recommender, error) {
	models := make([]algo.Recommender, 0, len(s.Models))
	for _, ms := range s.Models {
		m, err := algo.Create(algo.Kind(ms.Kind), ms.Name, ms.Params)
		if err != nil {
			return nil, fmt.Errorf("model %q: %w", ms.Name, err)
		}
		models = append(models, m)
	}
	return models, nil
}

// BuildMetrics turns metric specs into rating and ranking metric sets.
func (s *Spec) BuildMetrics() ([]metrics.RatingMetric, []metrics.RankingMetric, error) {
	var rating []metrics.RatingMetric
	var ranking []metrics.RankingMetric

	for _, ms := range s.Metrics {
		switch ms.Kind {
		case "rmse":
			rating = append(rating, metrics.RMSE{})
		case "mae":
			rating = append(rating, metrics.MAE{})
		case "precision":
			ranking = append(ranking, metrics.Precision{K: ms.K})
		case "recall":
			ranking = append(ranking, metrics.Recall{K: ms.K})
		case "ndcg":
			ranking = append(ranking, metrics.NDCG{K: ms.K})
		case "auc":
			ranking = append(ranking, metrics.AUC{})
		case "mrr":
			ranking = append(ranking, metrics.MRR{})
		default:
			return nil, nil, fmt.Errorf("'%s' is not a valid metric kind", ms.Kind)
		}
	}
	return rating, ranking, nil
}

// ExperimentOptions maps the spec's run knobs onto experiment options.
func (s *Spec) ExperimentOptions() ([]experiment.Option, error) {
	rating, ranking, err := s.BuildMetrics()
	if err != nil {
		return nil, err
	}

	opts := []experiment.Option{
		experiment.WithRatingMetrics(rating...),
		experiment.WithRankingMetrics(ranking...),
		experiment.WithWorkers(s.Options.Workers),
		experiment.WithRatingThreshold(s.Options.RatingThreshold),
		experiment.WithUserBased(s.Options.UserBased),
		experiment.WithSeed(s.Options.Seed),
	}
	if s.Options.FitTimeoutSec > 0 {
		opts = append(opts, experiment.WithFitTimeout(s.FitTimeout()))
	}

	switch s.Options.ColdStart {
	case "prior", "":
		opts = append(opts, experiment.WithColdStartPolicy(experiment.ColdStartPrior))
	case "skip":
		opts = append(opts, experiment.WithColdStartPolicy(experiment.ColdStartSkip))
	case "propagate":
		opts = append(opts, experiment.WithColdStartPolicy(experiment.ColdStartPropagate))
	default:
		return nil, fmt.Errorf("'%s' is not a valid cold start policy", s.Options.ColdStart)
	}
	return opts, nil
}

// BuildSearch assembles the search runner from the spec's search block.
func (s *Spec) BuildSearch() (*search.Search, error) {
	if s.Search == nil {
		return nil, fmt.Errorf("experiment file has no search block")
	}

	var strategy search.Strategy
	switch s.Search.Strategy {
	case "grid":
		strategy = search.Grid{}
	case "random":
		strategy = search.Random{N: s.Search.Trials, Seed: s.Search.Seed}
	default:
		return nil, fmt.Errorf("'%s' is not a valid search strategy", s.Search.Strategy)
	}

	space := search.NewSpace()
	for _, p := range s.Search.Space {
		space.Add(p.Param, p.Values...)
	}

	kind := algo.Kind(s.Search.Model)
	base := s.Search.Params
	factory := func(name string, params map[string]any) (algo.Recommender, error) {
		merged := make(map[string]any, len(base)+len(params))
		for k, v := range base {
			merged[k] = v
		}
		for k, v := range params {
			merged[k] = v
		}
		return algo.Create(kind, name, merged)
	}

	expOpts, err := s.ExperimentOptions()
	if err != nil {
		return nil, err
	}

	searchOpts := []search.Option{
		search.WithWorkers(s.Options.Workers),
		search.WithExperimentOptions(expOpts...),
	}
	if s.Search.Minimize {
		searchOpts = append(searchOpts, search.Minimize())
	}

	return search.New(factory, strategy, space, s.Search.Metric, searchOpts...)
}
