package metrics

import (
	"fmt"
	"math"
)

// Precision is precision@k: the fraction of the top k ranked items that are
// relevant.
type Precision struct {
	K int
}

func (m Precision) Name() string { return fmt.Sprintf("Precision@%d", m.K) }

func (m Precision) Compute(ranked []int, relevant map[int]bool) float64 {
	k := cutoff(m.K, len(ranked))
	if k == 0 {
		return 0
	}
	hits := 0
	for _, item := range ranked[:k] {
		if relevant[item] {
			hits++
		}
	}
	return float64(hits) / float64(k)
}

// Recall is recall@k: the fraction of the relevant items found in the top k.
type Recall struct {
	K int
}

func (m Recall) Name() string { return fmt.Sprintf("Recall@%d", m.K) }

func (m Recall) Compute(ranked []int, relevant map[int]bool) float64 {
	k := cutoff(m.K, len(ranked))
	hits := 0
	for _, item := range ranked[:k] {
		if relevant[item] {
			hits++
		}
	}
	return float64(hits) / float64(len(relevant))
}

// NDCG is the normalized discounted cumulative gain at k with binary
// relevance.
type NDCG struct {
	K int
}

func (m NDCG) Name() string { return fmt.Sprintf("NDCG@%d", m.K) }

func (m NDCG) Compute(ranked []int, relevant map[int]bool) float64 {
	k := cutoff(m.K, len(ranked))
	dcg := 0.0
	for pos, item := range ranked[:k] {
		if relevant[item] {
			dcg += 1.0 / math.Log2(float64(pos)+2)
		}
	}
	ideal := 0.0
	n := len(relevant)
	if n > k {
		n = k
	}
	for pos := 0; pos < n; pos++ {
		ideal += 1.0 / math.Log2(float64(pos)+2)
	}
	if ideal == 0 {
		return 0
	}
	return dcg / ideal
}

// AUC is the probability that a relevant item is ranked above a
// non-relevant one, computed over the full ranked list.
type AUC struct{}

func (AUC) Name() string { return "AUC" }

func (AUC) Compute(ranked []int, relevant map[int]bool) float64 {
	numPos := 0
	numNeg := 0
	// Count, for each relevant item, how many non-relevant items sit
	// below it in the ranking.
	correct := 0
	negSeen := 0
	for i := len(ranked) - 1; i >= 0; i-- {
		if relevant[ranked[i]] {
			numPos++
			correct += negSeen
		} else {
			numNeg++
			negSeen++
		}
	}
	if numPos == 0 || numNeg == 0 {
		return 0
	}
	return float64(correct) / float64(numPos*numNeg)
}

// MRR is the mean reciprocal rank: the inverse rank of the first relevant
// item.
type MRR struct{}

func (MRR) Name() string { return "MRR" }

func (MRR) Compute(ranked []int, relevant map[int]bool) float64 {
	for pos, item := range ranked {
		if relevant[item] {
			return 1.0 / float64(pos+1)
		}
	}
	return 0
}

func cutoff(k, n int) int {
	if k <= 0 || k > n {
		return n
	}
	return k
}
