package experiment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/recbench/recbench/internal/algo"
	"github.com/recbench/recbench/internal/dataset"
	"github.com/recbench/recbench/internal/metrics"
	"github.com/recbench/recbench/internal/split"
)

// Status is the lifecycle state of an experiment.
type Status string

const (
	StatusConfigured Status = "configured"
	StatusRunning    Status = "running"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusStopped    Status = "stopped"
)

// ModelStatus is the outcome of a single model within a fold.
type ModelStatus string

const (
	ModelStatusOK      ModelStatus = "ok"
	ModelStatusFailed  ModelStatus = "failed"
	ModelStatusSkipped ModelStatus = "skipped"
)

// MissingModalityError reports that a model requires auxiliary data the
// dataset does not carry. It is raised during preflight, before any
// training starts.
type MissingModalityError struct {
	Model    string
	Modality dataset.Modality
}

func (e *MissingModalityError) Error() string {
	return fmt.Sprintf("model %q requires %s data but the dataset has none", e.Model, e.Modality)
}

// ColdStartPolicy controls what evaluation does with users or items that
// are absent from the training split.
type ColdStartPolicy string

const (
	// ColdStartPrior falls back to a population prior: the global mean
	// for rating prediction, popularity order for ranking.
	ColdStartPrior ColdStartPolicy = "prior"

	// ColdStartSkip drops cold users and items from evaluation.
	ColdStartSkip ColdStartPolicy = "skip"

	// ColdStartPropagate fails the model on the first cold entity.
	ColdStartPropagate ColdStartPolicy = "propagate"
)

// ProgressListener receives progress updates while an experiment runs.
type ProgressListener func(event ProgressEvent)

// EventType represents the type of progress event
type EventType string

// EventType constants
const (
	EventExperimentStart    EventType = "experiment_start"
	EventExperimentComplete EventType = "experiment_complete"
	EventExperimentStopped  EventType = "experiment_stopped"
	EventFoldStart          EventType = "fold_start"
	EventFoldComplete       EventType = "fold_complete"
	EventModelStart         EventType = "model_start"
	EventModelComplete      EventType = "model_complete"
)

// ProgressEvent represents a progress update
type ProgressEvent struct {
	EventType   EventType
	ModelName   string
	ModelNum    int
	TotalModels int
	FoldNum     int
	TotalFolds  int
	Status      ModelStatus
	DurationMs  int64
	Details     map[string]any
}

// Experiment wires a dataset, a split strategy, a set of models and a
// set of metrics into one reproducible evaluation run.
type Experiment struct {
	ds       *dataset.Dataset
	splitter split.Splitter
	models   []algo.Recommender

	ratingMetrics  []metrics.RatingMetric
	rankingMetrics []metrics.RankingMetric

	workers         int
	fitTimeout      time.Duration
	coldStart       ColdStartPolicy
	ratingThreshold float64
	userBased       bool
	seed            int64

	status Status

	progressMu sync.Mutex
	listeners  []ProgressListener
}

// Option configures an Experiment.
type Option func(*Experiment)

// WithWorkers enables concurrent model fitting within a fold. Zero or
// one keeps execution sequential.
func WithWorkers(n int) Option {
	return func(e *Experiment) { e.workers = n }
}

// WithFitTimeout bounds each model's training time. A model that blows
// the budget is recorded as failed, not the experiment.
func WithFitTimeout(d time.Duration) Option {
	return func(e *Experiment) { e.fitTimeout = d }
}

func WithColdStartPolicy(p ColdStartPolicy) Option {
	return func(e *Experiment) { e.coldStart = p }
}

// WithRatingThreshold sets the relevance cutoff used to turn held-out
// ratings into binary ground truth for ranking metrics.
func WithRatingThreshold(t float64) Option {
	return func(e *Experiment) { e.ratingThreshold = t }
}

// WithUserBased averages rating metrics per user before averaging over
// users, instead of pooling all predictions.
func WithUserBased(b bool) Option {
	return func(e *Experiment) { e.userBased = b }
}

// WithSeed fixes the random source for bootstrap confidence intervals
// so repeated runs over the same inputs report identical bounds.
func WithSeed(seed int64) Option {
	return func(e *Experiment) { e.seed = seed }
}

func WithRatingMetrics(ms ...metrics.RatingMetric) Option {
	return func(e *Experiment) { e.ratingMetrics = append(e.ratingMetrics, ms...) }
}

func WithRankingMetrics(ms ...metrics.RankingMetric) Option {
	return func(e *Experiment) { e.rankingMetrics = append(e.rankingMetrics, ms...) }
}

// New creates an experiment over the given dataset, splitter and models.
func New(ds *dataset.Dataset, splitter split.Splitter, models []algo.Recommender, opts ...Option) (*Experiment, error) {
	if ds == nil {
		return nil, errors.New("experiment: dataset is required")
	}
	if splitter == nil {
		return nil, errors.New("experiment: splitter is required")
	}
	if len(models) == 0 {
		return nil, errors.New("experiment: at least one model is required")
	}
	seen := make(map[string]bool, len(models))
	for _, m := range models {
		if m.Name() == "" {
			return nil, errors.New("experiment: model with empty name")
		}
		if seen[m.Name()] {
			return nil, fmt.Errorf("experiment: duplicate model name %q", m.Name())
		}
		seen[m.Name()] = true
	}

	e := &Experiment{
		ds:              ds,
		splitter:        splitter,
		models:          models,
		coldStart:       ColdStartPrior,
		ratingThreshold: 1.0,
		status:          StatusConfigured,
		listeners:       []ProgressListener{},
	}
	for _, o := range opts {
		o(e)
	}
	if len(e.ratingMetrics) == 0 && len(e.rankingMetrics) == 0 {
		return nil, errors.New("experiment: at least one metric is required")
	}
	return e, nil
}

// Status returns the current lifecycle state.
func (e *Experiment) Status() Status { return e.status }

// OnProgress registers a progress listener
func (e *Experiment) OnProgress(listener ProgressListener) {
	e.progressMu.Lock()
	defer e.progressMu.Unlock()
	e.listeners = append(e.listeners, listener)
}

func (e *Experiment) notifyProgress(event ProgressEvent) {
	e.progressMu.Lock()
	listeners := make([]ProgressListener, len(e.listeners))
	copy(listeners, e.listeners)
	e.progressMu.Unlock()

	for _, listener := range listeners {
		listener(event)
	}
}

// Run executes the experiment. Model failures are isolated: a failed fit
// produces a failed row while the rest of the table fills in. The
// returned outcome is partial when ctx is canceled mid-run.
func (e *Experiment) Run(ctx context.Context) (*Outcome, error) {
	if e.status == StatusRunning {
		return nil, errors.New("experiment: already running")
	}
	e.status = StatusRunning
	startTime := time.Now()

	splits, err := e.splitter.Split(e.ds)
	if err != nil {
		e.status = StatusFailed
		return nil, fmt.Errorf("splitting dataset: %w", err)
	}
	slog.Debug("dataset split", "splitter", e.splitter.Name(), "folds", len(splits))

	// Preflight modality requirements so a misconfigured model never
	// reaches training.
	preflight := make([]error, len(e.models))
	for i, m := range e.models {
		for _, mod := range m.Modalities() {
			if !e.ds.HasModality(mod) {
				preflight[i] = &MissingModalityError{Model: m.Name(), Modality: mod}
				break
			}
		}
	}

	e.notifyProgress(ProgressEvent{
		EventType:   EventExperimentStart,
		TotalModels: len(e.models),
		TotalFolds:  len(splits),
	})

	outcome := &Outcome{
		Splitter:  e.splitter.Name(),
		Timestamp: startTime,
	}

	stopped := false
	for fi, sp := range splits {
		if ctx.Err() != nil {
			stopped = true
			break
		}
		outcome.Filtered += sp.Filtered

		e.notifyProgress(ProgressEvent{
			EventType:  EventFoldStart,
			FoldNum:    fi + 1,
			TotalFolds: len(splits),
		})

		fold, foldStopped := e.runFold(ctx, fi, len(splits), sp, preflight)
		outcome.Folds = append(outcome.Folds, fold)

		e.notifyProgress(ProgressEvent{
			EventType:  EventFoldComplete,
			FoldNum:    fi + 1,
			TotalFolds: len(splits),
		})

		if foldStopped {
			stopped = true
			break
		}
	}

	outcome.DurationMs = time.Since(startTime).Milliseconds()
	outcome.computeDigest()

	switch {
	case stopped:
		e.status = StatusStopped
		e.notifyProgress(ProgressEvent{EventType: EventExperimentStopped, DurationMs: outcome.DurationMs})
	case outcome.Digest.Succeeded == 0:
		e.status = StatusFailed
		e.notifyProgress(ProgressEvent{EventType: EventExperimentComplete, DurationMs: outcome.DurationMs})
	default:
		e.status = StatusCompleted
		e.notifyProgress(ProgressEvent{EventType: EventExperimentComplete, DurationMs: outcome.DurationMs})
	}
	outcome.Status = e.status

	if e.status == StatusFailed {
		return outcome, errors.New("experiment: every model failed")
	}
	return outcome, nil
}

// runFold trains and evaluates every model on one split. Results come
// back in input model order regardless of execution order.
func (e *Experiment) runFold(ctx context.Context, foldIdx, totalFolds int, sp split.Split, preflight []error) (FoldResult, bool) {
	fold := FoldResult{Fold: foldIdx}

	ts, err := dataset.NewTrainset(e.ds, sp.Train)
	if err != nil {
		// An unusable training split fails every model in the fold.
		for _, m := range e.models {
			fold.Models = append(fold.Models, ModelResult{
				Model:  m.Name(),
				Status: ModelStatusFailed,
				Err:    fmt.Sprintf("building trainset: %v", err),
			})
		}
		return fold, false
	}

	if e.workers > 1 {
		fold.Models = e.runModelsConcurrent(ctx, foldIdx, totalFolds, ts, sp, preflight)
	} else {
		fold.Models = e.runModelsSequential(ctx, foldIdx, totalFolds, ts, sp, preflight)
	}

	return fold, ctx.Err() != nil
}

func (e *Experiment) runModelsSequential(ctx context.Context, foldIdx, totalFolds int, ts *dataset.Trainset, sp split.Split, preflight []error) []ModelResult {
	results := make([]ModelResult, 0, len(e.models))
	for i, m := range e.models {
		if ctx.Err() != nil {
			results = append(results, ModelResult{Model: m.Name(), Status: ModelStatusSkipped})
			continue
		}
		results = append(results, e.runModel(ctx, m, i, foldIdx, totalFolds, ts, sp, preflight[i]))
	}
	return results
}

func (e *Experiment) runModelsConcurrent(ctx context.Context, foldIdx, totalFolds int, ts *dataset.Trainset, sp split.Split, preflight []error) []ModelResult {
	type indexed struct {
		index  int
		result ModelResult
	}

	resultChan := make(chan indexed, len(e.models))
	semaphore := make(chan struct{}, e.workers)

	var wg sync.WaitGroup
	for i, m := range e.models {
		wg.Add(1)
		go func(idx int, model algo.Recommender) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			if ctx.Err() != nil {
				resultChan <- indexed{index: idx, result: ModelResult{Model: model.Name(), Status: ModelStatusSkipped}}
				return
			}
			resultChan <- indexed{index: idx, result: e.runModel(ctx, model, idx, foldIdx, totalFolds, ts, sp, preflight[idx])}
		}(i, m)
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	results := make([]ModelResult, len(e.models))
	for res := range resultChan {
		results[res.index] = res.result
	}
	return results
}

func (e *Experiment) runModel(ctx context.Context, m algo.Recommender, modelIdx, foldIdx, totalFolds int, ts *dataset.Trainset, sp split.Split, preflightErr error) ModelResult {
	e.notifyProgress(ProgressEvent{
		EventType:   EventModelStart,
		ModelName:   m.Name(),
		ModelNum:    modelIdx + 1,
		TotalModels: len(e.models),
		FoldNum:     foldIdx + 1,
		TotalFolds:  totalFolds,
	})

	result := e.runModelInner(ctx, m, ts, sp, preflightErr)
	slog.Debug("model evaluated",
		"model", m.Name(), "fold", foldIdx+1, "status", result.Status, "fit_ms", result.FitMs)

	e.notifyProgress(ProgressEvent{
		EventType:   EventModelComplete,
		ModelName:   m.Name(),
		ModelNum:    modelIdx + 1,
		TotalModels: len(e.models),
		FoldNum:     foldIdx + 1,
		TotalFolds:  totalFolds,
		Status:      result.Status,
		DurationMs:  result.FitMs,
	})
	return result
}

func (e *Experiment) runModelInner(ctx context.Context, m algo.Recommender, ts *dataset.Trainset, sp split.Split, preflightErr error) ModelResult {
	result := ModelResult{Model: m.Name()}

	if preflightErr != nil {
		result.Status = ModelStatusFailed
		result.Err = preflightErr.Error()
		return result
	}

	fitCtx := ctx
	var cancel context.CancelFunc
	if e.fitTimeout > 0 {
		fitCtx, cancel = context.WithTimeout(ctx, e.fitTimeout)
		defer cancel()
	}

	fitStart := time.Now()
	err := m.Fit(fitCtx, ts)
	result.FitMs = time.Since(fitStart).Milliseconds()

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = &algo.ConvergenceError{Model: m.Name(), Reason: fmt.Sprintf("training exceeded %s", e.fitTimeout)}
		}
		if ctx.Err() != nil {
			result.Status = ModelStatusSkipped
			return result
		}
		result.Status = ModelStatusFailed
		result.Err = err.Error()
		return result
	}

	if len(sp.Validation) > 0 {
		ev, err := e.evaluate(m, ts, sp.Validation)
		if err != nil {
			result.Status = ModelStatusFailed
			result.Err = fmt.Sprintf("validation evaluation: %v", err)
			return result
		}
		result.Validation = ev
	}

	ev, err := e.evaluate(m, ts, sp.Test)
	if err != nil {
		result.Status = ModelStatusFailed
		result.Err = fmt.Sprintf("test evaluation: %v", err)
		return result
	}
	result.Test = ev

	result.Status = ModelStatusOK
	return result
}
