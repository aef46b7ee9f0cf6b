package algo

import (
	"context"
	"fmt"
	"sort"

	"github.com/go-viper/mapstructure/v2"

	"github.com/recbench/recbench/internal/dataset"
)

type Kind string

const (
	KindPopularity Kind = "popularity"
	KindMF         Kind = "mf"
	KindBPR        Kind = "bpr"
	KindItemKNN    Kind = "itemknn"
	KindVBPR       Kind = "vbpr"
	KindContent    Kind = "content"
	KindGraphMF    Kind = "graphmf"
)

// Recommender is the contract every model implements. Fit trains on a
// trainset; Score and Rank operate on the trainset's dense index space
// and are only valid after a successful Fit.
type Recommender interface {
	// Name returns the model instance identifier used in result tables.
	Name() string

	// Modalities lists the auxiliary data kinds the model requires.
	// Empty for models that train on interactions alone.
	Modalities() []dataset.Modality

	Fit(ctx context.Context, ts *dataset.Trainset) error

	// Score predicts the affinity of a known user for a known item.
	Score(user, item int) (float64, error)

	// Rank orders the candidate items for a known user, best first. A
	// nil candidate list means all items in the trainset.
	Rank(user int, candidates []int) ([]int, error)
}

// ConvergenceError reports that training diverged or failed to produce a
// usable model.
type ConvergenceError struct {
	Model  string
	Reason string
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("model %q did not converge: %s", e.Model, e.Reason)
}

// ColdStartError reports a score or rank request for a user or item the
// model never saw during training.
type ColdStartError struct {
	Model string
	User  int
	Item  int
}

func (e *ColdStartError) Error() string {
	return fmt.Sprintf("model %q: cold start for user=%d item=%d", e.Model, e.User, e.Item)
}

// Create builds a model of the given kind from loosely typed parameters,
// typically decoded from a YAML experiment file.
func Create(kind Kind, name string, params map[string]any) (Recommender, error) {
	switch kind {
	case KindPopularity:
		return NewPopularity(name), nil
	case KindMF:
		var v struct {
			Factors      int     `mapstructure:"factors"`
			Epochs       int     `mapstructure:"epochs"`
			LearningRate float64 `mapstructure:"learning_rate"`
			Reg          float64 `mapstructure:"reg"`
			Seed         int64   `mapstructure:"seed"`
		}
		if err := mapstructure.Decode(params, &v); err != nil {
			return nil, err
		}
		return NewMF(name, MFConfig{
			Factors:      v.Factors,
			Epochs:       v.Epochs,
			LearningRate: v.LearningRate,
			Reg:          v.Reg,
			Seed:         v.Seed,
		}), nil
	case KindBPR:
		var v struct {
			Factors      int     `mapstructure:"factors"`
			Epochs       int     `mapstructure:"epochs"`
			LearningRate float64 `mapstructure:"learning_rate"`
			Reg          float64 `mapstructure:"reg"`
			Seed         int64   `mapstructure:"seed"`
		}
		if err := mapstructure.Decode(params, &v); err != nil {
			return nil, err
		}
		return NewBPR(name, BPRConfig{
			Factors:      v.Factors,
			Epochs:       v.Epochs,
			LearningRate: v.LearningRate,
			Reg:          v.Reg,
			Seed:         v.Seed,
		}), nil
	case KindItemKNN:
		var v struct {
			K int `mapstructure:"k"`
		}
		if err := mapstructure.Decode(params, &v); err != nil {
			return nil, err
		}
		return NewItemKNN(name, v.K), nil
	case KindVBPR:
		var v struct {
			Factors       int     `mapstructure:"factors"`
			VisualFactors int     `mapstructure:"visual_factors"`
			Epochs        int     `mapstructure:"epochs"`
			LearningRate  float64 `mapstructure:"learning_rate"`
			Reg           float64 `mapstructure:"reg"`
			Seed          int64   `mapstructure:"seed"`
		}
		if err := mapstructure.Decode(params, &v); err != nil {
			return nil, err
		}
		return NewVBPR(name, VBPRConfig{
			Factors:       v.Factors,
			VisualFactors: v.VisualFactors,
			Epochs:        v.Epochs,
			LearningRate:  v.LearningRate,
			Reg:           v.Reg,
			Seed:          v.Seed,
		}), nil
	case KindContent:
		return NewContent(name), nil
	case KindGraphMF:
		var v struct {
			Factors      int     `mapstructure:"factors"`
			Epochs       int     `mapstructure:"epochs"`
			LearningRate float64 `mapstructure:"learning_rate"`
			Reg          float64 `mapstructure:"reg"`
			GraphReg     float64 `mapstructure:"graph_reg"`
			Seed         int64   `mapstructure:"seed"`
		}
		if err := mapstructure.Decode(params, &v); err != nil {
			return nil, err
		}
		return NewGraphMF(name, GraphMFConfig{
			Factors:      v.Factors,
			Epochs:       v.Epochs,
			LearningRate: v.LearningRate,
			Reg:          v.Reg,
			GraphReg:     v.GraphReg,
			Seed:         v.Seed,
		}), nil
	default:
		return nil, fmt.Errorf("'%s' is not a valid model kind", kind)
	}
}

// base carries the state every model shares: its instance name and the
// trainset it was fitted on.
type base struct {
	name string
	ts   *dataset.Trainset
}

func (b *base) Name() string { return b.name }

func (b *base) fitted() bool { return b.ts != nil }

func (b *base) checkPair(user, item int) error {
	if b.ts == nil {
		return fmt.Errorf("model %q is not fitted", b.name)
	}
	if user < 0 || user >= b.ts.NumUsers() || item < 0 || item >= b.ts.NumItems() {
		return &ColdStartError{Model: b.name, User: user, Item: item}
	}
	return nil
}

// rankByScore orders candidates by a model's Score, best first. Ties keep
// candidate order so rankings are deterministic.
func rankByScore(r Recommender, user int, candidates []int, numItems int) ([]int, error) {
	if candidates == nil {
		candidates = make([]int, numItems)
		for i := range candidates {
			candidates[i] = i
		}
	}
	type scored struct {
		item  int
		score float64
	}
	all := make([]scored, 0, len(candidates))
	for _, item := range candidates {
		s, err := r.Score(user, item)
		if err != nil {
			return nil, err
		}
		all = append(all, scored{item: item, score: s})
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].score > all[j].score })
	out := make([]int, len(all))
	for i, s := range all {
		out[i] = s.item
	}
	return out, nil
}
