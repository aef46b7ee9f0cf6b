package experiment

import (
	"sort"

	"github.com/recbench/recbench/internal/algo"
	"github.com/recbench/recbench/internal/dataset"
	"github.com/recbench/recbench/internal/statistics"
)

// userEval groups one user's held-out rows for evaluation.
type userEval struct {
	id        string
	trainIdx  int // index in the trainset, -1 when cold
	cold      bool
	predicted []float64
	actual    []float64
	relevant  map[int]bool // relevant test items, trainset index space
}

// evaluate scores a fitted model against the held-out rows. Users and
// items resolve through the trainset's own index space, so an entity
// that never appears in the training split is a cold start and is
// handled per the configured policy.
func (e *Experiment) evaluate(m algo.Recommender, ts *dataset.Trainset, rows []int) (*Evaluation, error) {
	users, err := e.collectUsers(m, ts, rows)
	if err != nil {
		return nil, err
	}

	ev := &Evaluation{
		Metrics: make(map[string]float64),
		PerUser: make(map[string][]float64),
		CI:      make(map[string]statistics.ConfidenceInterval),
	}

	e.computeRatingMetrics(ev, users)
	if err := e.computeRankingMetrics(ev, m, ts, users); err != nil {
		return nil, err
	}
	return ev, nil
}

// collectUsers resolves held-out rows against the trainset and buckets
// them per user, applying the cold start policy to both users and items.
func (e *Experiment) collectUsers(m algo.Recommender, ts *dataset.Trainset, rows []int) ([]*userEval, error) {
	byUser := make(map[string]*userEval)
	var order []string

	for _, row := range rows {
		it := e.ds.Interaction(row)

		ue, ok := byUser[it.UserID]
		if !ok {
			uIdx, known := ts.UserIndex(it.UserID)
			if !known {
				switch e.coldStart {
				case ColdStartSkip:
					continue
				case ColdStartPropagate:
					return nil, &algo.ColdStartError{Model: m.Name(), User: -1, Item: -1}
				}
				uIdx = -1
			}
			ue = &userEval{
				id:       it.UserID,
				trainIdx: uIdx,
				cold:     !known,
				relevant: make(map[int]bool),
			}
			byUser[it.UserID] = ue
			order = append(order, it.UserID)
		}

		iIdx, itemKnown := ts.ItemIndex(it.ItemID)
		if !itemKnown {
			// A cold item cannot be scored or ranked in the train index
			// space at all, so prior and skip both drop the row.
			if e.coldStart == ColdStartPropagate {
				return nil, &algo.ColdStartError{Model: m.Name(), User: ue.trainIdx, Item: -1}
			}
			continue
		}

		predicted, err := e.predictRating(m, ts, ue, iIdx)
		if err != nil {
			return nil, err
		}
		ue.predicted = append(ue.predicted, predicted)
		ue.actual = append(ue.actual, it.Rating)
		if it.Rating >= e.ratingThreshold {
			ue.relevant[iIdx] = true
		}
	}

	users := make([]*userEval, 0, len(order))
	for _, id := range order {
		users = append(users, byUser[id])
	}
	return users, nil
}

func (e *Experiment) predictRating(m algo.Recommender, ts *dataset.Trainset, ue *userEval, item int) (float64, error) {
	if ue.cold {
		// Population prior for rating prediction.
		return ts.GlobalMean(), nil
	}
	return m.Score(ue.trainIdx, item)
}

func (e *Experiment) computeRatingMetrics(ev *Evaluation, users []*userEval) {
	if len(e.ratingMetrics) == 0 {
		return
	}

	if e.userBased {
		for _, metric := range e.ratingMetrics {
			var perUser []float64
			for _, ue := range users {
				if len(ue.actual) == 0 {
					continue
				}
				perUser = append(perUser, metric.Compute(ue.predicted, ue.actual))
			}
			ev.Metrics[metric.Name()] = statistics.Mean(perUser)
			ev.PerUser[metric.Name()] = perUser
			if len(perUser) >= 2 {
				ev.CI[metric.Name()] = statistics.BootstrapCIWithSeed(perUser, 0.95, e.seed)
			}
		}
		return
	}

	var predicted, actual []float64
	for _, ue := range users {
		predicted = append(predicted, ue.predicted...)
		actual = append(actual, ue.actual...)
	}
	for _, metric := range e.ratingMetrics {
		ev.Metrics[metric.Name()] = metric.Compute(predicted, actual)
	}
}

// computeRankingMetrics ranks, per user, every train item the user has
// not interacted with during training, plus the user's held-out items.
// Users with no relevant held-out items are excluded.
func (e *Experiment) computeRankingMetrics(ev *Evaluation, m algo.Recommender, ts *dataset.Trainset, users []*userEval) error {
	if len(e.rankingMetrics) == 0 {
		for _, ue := range users {
			if len(ue.actual) > 0 {
				ev.Users++
				if ue.cold {
					ev.ColdStartUsers++
				}
			}
		}
		return nil
	}

	perUser := make(map[string][]float64, len(e.rankingMetrics))

	for _, ue := range users {
		if len(ue.relevant) == 0 {
			continue
		}

		candidates := e.candidatesFor(ts, ue)
		ranked, err := e.rank(m, ts, ue, candidates)
		if err != nil {
			return err
		}

		ev.Users++
		if ue.cold {
			ev.ColdStartUsers++
		}
		for _, metric := range e.rankingMetrics {
			perUser[metric.Name()] = append(perUser[metric.Name()], metric.Compute(ranked, ue.relevant))
		}
	}

	for _, metric := range e.rankingMetrics {
		scores := perUser[metric.Name()]
		ev.Metrics[metric.Name()] = statistics.Mean(scores)
		ev.PerUser[metric.Name()] = scores
		if len(scores) >= 2 {
			ev.CI[metric.Name()] = statistics.BootstrapCIWithSeed(scores, 0.95, e.seed)
		}
	}
	return nil
}

// candidatesFor returns the items to rank for a user: everything except
// what the user already saw during training.
func (e *Experiment) candidatesFor(ts *dataset.Trainset, ue *userEval) []int {
	var seen map[int]float64
	if !ue.cold {
		seen = ts.UserItems(ue.trainIdx)
	}
	candidates := make([]int, 0, ts.NumItems()-len(seen))
	for i := 0; i < ts.NumItems(); i++ {
		if _, ok := seen[i]; ok {
			continue
		}
		candidates = append(candidates, i)
	}
	return candidates
}

func (e *Experiment) rank(m algo.Recommender, ts *dataset.Trainset, ue *userEval, candidates []int) ([]int, error) {
	if ue.cold {
		// Population prior for ranking: popularity order.
		pop := ts.Popularity()
		ranked := make([]int, len(candidates))
		copy(ranked, candidates)
		sort.SliceStable(ranked, func(a, b int) bool { return pop[ranked[a]] > pop[ranked[b]] })
		return ranked, nil
	}
	return m.Rank(ue.trainIdx, candidates)
}
