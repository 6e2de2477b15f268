package graph

import (
	"math"
	"sort"
)

// Centrality algorithm names accepted by RankCentrality.
const (
	CentralityDegree    = "degree"
	CentralityInfluence = "influence"
)

const (
	influenceMaxIterations = 100
	influenceTolerance     = 1e-9
)

// CentralityEntry is one ranked item. Degree and MeanSimilarity are filled
// for the degree algorithm; Score carries the importance value for the
// influence algorithm.
type CentralityEntry struct {
	ID             string  `json:"track_id"`
	Degree         int     `json:"degree,omitempty"`
	MeanSimilarity float64 `json:"avg_similarity,omitempty"`
	Score          float64 `json:"score,omitempty"`
}

// CentralityResult is the outcome of a centrality ranking. Available is
// false when the requested algorithm is a capability this engine does not
// carry; that is a first-class result state, not an error, and no silent
// fallback to another algorithm happens.
type CentralityResult struct {
	Algorithm string            `json:"algorithm"`
	Available bool              `json:"available"`
	Entries   []CentralityEntry `json:"entries,omitempty"`
}

// RankCentrality ranks items by structural importance in the similarity
// graph. "degree" counts incident edges with mean incident similarity as
// tiebreaker; "influence" runs a similarity-weighted eigenvector-style
// power iteration to near-convergence.
func (e *Engine) RankCentrality(algorithm string, limit int) (*CentralityResult, error) {
	v, err := e.View()
	if err != nil {
		return nil, err
	}
	return v.RankCentrality(algorithm, limit)
}

// RankCentrality runs the ranking against the pinned snapshot.
func (v *View) RankCentrality(algorithm string, limit int) (*CentralityResult, error) {
	snap := v.snap
	if limit <= 0 {
		return nil, Validationf("limit must be positive, got %d", limit)
	}

	switch algorithm {
	case CentralityDegree:
		return &CentralityResult{
			Algorithm: CentralityDegree,
			Available: true,
			Entries:   degreeRanking(snap, limit),
		}, nil
	case CentralityInfluence:
		if !v.e.influenceEnabled {
			return &CentralityResult{Algorithm: CentralityInfluence, Available: false}, nil
		}
		return &CentralityResult{
			Algorithm: CentralityInfluence,
			Available: true,
			Entries:   influenceRanking(snap, limit),
		}, nil
	default:
		return nil, Validationf("unknown centrality algorithm %q (supported: degree, influence)", algorithm)
	}
}

func degreeRanking(snap *Snapshot, limit int) []CentralityEntry {
	entries := make([]CentralityEntry, 0, snap.Len())
	snap.Ascend(func(it *Item) bool {
		nbs := snap.Neighbors(it.ID)
		if len(nbs) == 0 {
			return true
		}
		var sum float64
		for _, nb := range nbs {
			sum += nb.Score
		}
		entries = append(entries, CentralityEntry{
			ID:             it.ID,
			Degree:         len(nbs),
			MeanSimilarity: sum / float64(len(nbs)),
		})
		return true
	})

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Degree != entries[j].Degree {
			return entries[i].Degree > entries[j].Degree
		}
		if entries[i].MeanSimilarity != entries[j].MeanSimilarity {
			return entries[i].MeanSimilarity > entries[j].MeanSimilarity
		}
		return entries[i].ID < entries[j].ID
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

// influenceRanking redistributes each item's importance to its neighbors
// proportionally to edge similarity and iterates until the L1 delta falls
// below tolerance or the iteration cap is hit. The result is deterministic:
// it starts from the uniform vector and touches nodes in stable order.
func influenceRanking(snap *Snapshot, limit int) []CentralityEntry {
	n := snap.Len()
	if n == 0 {
		return nil
	}

	ids := make([]string, 0, n)
	index := make(map[string]int, n)
	snap.Ascend(func(it *Item) bool {
		index[it.ID] = len(ids)
		ids = append(ids, it.ID)
		return true
	})

	cur := make([]float64, n)
	next := make([]float64, n)
	for i := range cur {
		cur[i] = 1.0 / float64(n)
	}

	for iter := 0; iter < influenceMaxIterations; iter++ {
		for i := range next {
			next[i] = 0
		}
		for i, id := range ids {
			for _, nb := range snap.Neighbors(id) {
				next[index[nb.ID]] += cur[i] * nb.Score
			}
		}

		var norm float64
		for _, v := range next {
			norm += v
		}
		if norm == 0 {
			// Graph with no edges: importance stays uniform.
			break
		}
		var delta float64
		for i := range next {
			next[i] /= norm
			delta += math.Abs(next[i] - cur[i])
		}
		cur, next = next, cur
		if delta < influenceTolerance {
			break
		}
	}

	entries := make([]CentralityEntry, n)
	for i, id := range ids {
		entries[i] = CentralityEntry{ID: id, Score: cur[i]}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].ID < entries[j].ID
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}
