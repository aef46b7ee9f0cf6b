// Package config provides the experiment spec structs and loader for
// recbench experiment YAML files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for experiment configuration. These are the single
// source of truth; Load applies them and no other code should duplicate
// them.
const (
	DefaultTestSize        = 0.2
	DefaultValSize         = 0.0
	DefaultFolds           = 5
	DefaultRatingThreshold = 1.0
	DefaultWorkers         = 1
	DefaultColdStart       = "prior"
	DefaultSearchTrials    = 10

	DefaultCacheDir = ".recbench-cache"
)

// DatasetSpec points at the interaction data and optional modality files.
type DatasetSpec struct {
	Path          string `yaml:"path"`
	ImageFeatures string `yaml:"image_features,omitempty"`
	TextFeatures  string `yaml:"text_features,omitempty"`
	ItemGraph     string `yaml:"item_graph,omitempty"`

	// Duplicates is "error" (default) or "keep_last".
	Duplicates string `yaml:"duplicates,omitempty"`
}

// SplitSpec selects and parameterizes the split strategy.
type SplitSpec struct {
	// Kind is "ratio", "kfold" or "given".
	Kind string `yaml:"kind"`

	TestSize        float64 `yaml:"test_size,omitempty"`
	ValSize         float64 `yaml:"val_size,omitempty"`
	Folds           int     `yaml:"folds,omitempty"`
	Seed            int64   `yaml:"seed,omitempty"`
	ExcludeUnknowns bool    `yaml:"exclude_unknowns,omitempty"`

	// Row index lists for kind "given".
	Train      []int `yaml:"train,omitempty"`
	Validation []int `yaml:"validation,omitempty"`
	Test       []int `yaml:"test,omitempty"`
}

// ModelSpec names one model instance and its hyperparameters.
type ModelSpec struct {
	Name   string         `yaml:"name"`
	Kind   string         `yaml:"kind"`
	Params map[string]any `yaml:"params,omitempty"`
}

// MetricSpec selects one metric. K applies to cutoff metrics only.
type MetricSpec struct {
	Kind string `yaml:"kind"`
	K    int    `yaml:"k,omitempty"`
}

// OptionsSpec carries run-level knobs.
type OptionsSpec struct {
	Workers         int     `yaml:"workers,omitempty"`
	FitTimeoutSec   int     `yaml:"fit_timeout_sec,omitempty"`
	ColdStart       string  `yaml:"cold_start,omitempty"`
	RatingThreshold float64 `yaml:"rating_threshold,omitempty"`
	UserBased       bool    `yaml:"user_based,omitempty"`
	Seed            int64   `yaml:"seed,omitempty"`
	Cache           bool    `yaml:"cache,omitempty"`
	CacheDir        string  `yaml:"cache_dir,omitempty"`
}

// SearchParamSpec is one dimension of the search space. Order in the
// YAML list is the order of the space.
type SearchParamSpec struct {
	Param  string `yaml:"param"`
	Values []any  `yaml:"values"`
}

// SearchSpec configures a hyperparameter search over one model kind.
type SearchSpec struct {
	// Strategy is "grid" or "random".
	Strategy string `yaml:"strategy"`

	Model    string            `yaml:"model"`
	Metric   string            `yaml:"metric"`
	Minimize bool              `yaml:"minimize,omitempty"`
	Trials   int               `yaml:"trials,omitempty"`
	Seed     int64             `yaml:"seed,omitempty"`
	Space    []SearchParamSpec `yaml:"space"`

	// Base params merged under every trial's sampled params.
	Params map[string]any `yaml:"params,omitempty"`
}

// Spec is a full experiment file.
type Spec struct {
	Name    string       `yaml:"name"`
	Dataset DatasetSpec  `yaml:"dataset"`
	Split   SplitSpec    `yaml:"split"`
	Models  []ModelSpec  `yaml:"models,omitempty"`
	Metrics []MetricSpec `yaml:"metrics"`
	Options OptionsSpec  `yaml:"options,omitempty"`
	Search  *SearchSpec  `yaml:"search,omitempty"`

	// dir is the directory the spec was loaded from; relative dataset
	// paths resolve against it.
	dir string
}

// Dir returns the directory the spec was loaded from.
func (s *Spec) Dir() string { return s.dir }

// ResolvePath resolves a dataset-relative path against the spec
// directory.
func (s *Spec) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) || s.dir == "" {
		return p
	}
	return filepath.Join(s.dir, p)
}

// FitTimeout returns the per-model training budget, zero when unset.
func (s *Spec) FitTimeout() time.Duration {
	return time.Duration(s.Options.FitTimeoutSec) * time.Second
}

// Load reads, schema-validates and decodes an experiment file, then
// applies defaults.
func Load(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading experiment file: %w", err)
	}

	if errs := ValidateBytes(data); len(errs) > 0 {
		return nil, fmt.Errorf("experiment file %s is invalid:\n  %s", path, joinErrs(errs))
	}

	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parsing experiment file: %w", err)
	}
	spec.dir = filepath.Dir(path)

	spec.applyDefaults()
	if err := spec.check(); err != nil {
		return nil, err
	}
	return &spec, nil
}

func (s *Spec) applyDefaults() {
	if s.Split.Kind == "ratio" && s.Split.TestSize == 0 {
		s.Split.TestSize = DefaultTestSize
	}
	if s.Split.Kind == "kfold" && s.Split.Folds == 0 {
		s.Split.Folds = DefaultFolds
	}
	if s.Options.Workers == 0 {
		s.Options.Workers = DefaultWorkers
	}
	if s.Options.ColdStart == "" {
		s.Options.ColdStart = DefaultColdStart
	}
	if s.Options.RatingThreshold == 0 {
		s.Options.RatingThreshold = DefaultRatingThreshold
	}
	if s.Options.CacheDir == "" {
		s.Options.CacheDir = DefaultCacheDir
	}
	if s.Search != nil {
		if s.Search.Trials == 0 {
			s.Search.Trials = DefaultSearchTrials
		}
	}
}

// check enforces the cross-field rules the schema cannot express.
func (s *Spec) check() error {
	if len(s.Models) == 0 && s.Search == nil {
		return errors.New("experiment file needs a models list or a search block")
	}
	if s.Search != nil {
		if len(s.Search.Space) == 0 {
			return errors.New("search block needs a non-empty space")
		}
		if s.Split.Kind == "kfold" {
			return errors.New("search needs a validation subset: kfold splits do not produce one")
		}
		if s.Split.Kind == "ratio" && s.Split.ValSize == 0 {
			return errors.New("search needs a validation subset: set split.val_size")
		}
		if s.Split.Kind == "given" && len(s.Split.Validation) == 0 {
			return errors.New("search needs a validation subset: set split.validation")
		}
	}
	return nil
}

func joinErrs(errs []string) string {
	out := ""
	for i, e := range errs {
		if i > 0 {
			out += "\n  "
		}
		out += e
	}
	return out
}
