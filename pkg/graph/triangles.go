package graph

import "sort"

// Triangle is a triple of mutually similar but distinct items, reported in
// canonical orientation A < B < C.
type Triangle struct {
	A         string  `json:"track_a_id"`
	B         string  `json:"track_b_id"`
	C         string  `json:"track_c_id"`
	ScoreAB   float64 `json:"sim_ab"`
	ScoreBC   float64 `json:"sim_bc"`
	ScoreCA   float64 `json:"sim_ca"`
	MeanScore float64 `json:"avg_similarity"`
}

// FindTriangles enumerates unordered triples whose three pairwise edges all
// exist with score >= minSimilarity. Each triangle is reported once, in
// strictly increasing id order, which also avoids the six traversal-order
// duplicates. Edges at or above the near-identity ceiling are skipped so
// that triangles reflect genuinely distinct items rather than duplicate or
// variant recordings.
//
// Results are ordered by mean edge score descending and truncated to limit.
func (e *Engine) FindTriangles(minSimilarity float64, limit int) ([]Triangle, error) {
	v, err := e.View()
	if err != nil {
		return nil, err
	}
	return v.FindTriangles(minSimilarity, limit)
}

// FindTriangles runs the enumeration against the pinned snapshot.
func (v *View) FindTriangles(minSimilarity float64, limit int) ([]Triangle, error) {
	snap := v.snap
	if minSimilarity < 0 || minSimilarity > 1 {
		return nil, Validationf("min_similarity must be between 0 and 1, got %v", minSimilarity)
	}
	if limit <= 0 {
		return nil, Validationf("limit must be positive, got %d", limit)
	}

	usable := func(score float64) bool {
		return score >= minSimilarity && score < v.e.nearIdentityCeiling
	}

	var out []Triangle
	steps := 0

	// For each canonical edge (a, b), a third vertex c > b closes a
	// triangle when both remaining edges survive the thresholds.
	for _, ab := range snap.Edges() {
		if !usable(ab.Score) {
			continue
		}
		a, b := ab.Source, ab.Target
		for _, nb := range snap.Neighbors(b) {
			steps++
			if steps > v.e.stepBudget {
				break
			}
			c := nb.ID
			if c <= b || !usable(nb.Score) {
				continue
			}
			ca, ok := snap.EdgeScore(c, a)
			if !ok || !usable(ca) {
				continue
			}
			out = append(out, Triangle{
				A:         a,
				B:         b,
				C:         c,
				ScoreAB:   ab.Score,
				ScoreBC:   nb.Score,
				ScoreCA:   ca,
				MeanScore: (ab.Score + nb.Score + ca) / 3.0,
			})
		}
		if steps > v.e.stepBudget {
			break
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].MeanScore != out[j].MeanScore {
			return out[i].MeanScore > out[j].MeanScore
		}
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		if out[i].B != out[j].B {
			return out[i].B < out[j].B
		}
		return out[i].C < out[j].C
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
