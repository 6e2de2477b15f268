package pipeline

import (
	"math"
	"runtime"
	"sort"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/sanonone/trackgraph/pkg/graph"
)

// BuilderConfig configures the similarity graph construction.
type BuilderConfig struct {
	// TopN is the number of highest-scoring partners each item keeps
	// before the symmetric union (default 15).
	TopN int `yaml:"top_n"`

	// MinScore discards candidate edges below this similarity.
	MinScore float64 `yaml:"min_score"`

	// Workers bounds the parallelism of the pairwise computation.
	// Zero means one worker per CPU.
	Workers int `yaml:"workers"`
}

const defaultTopN = 15

// BuildSimilarityGraph computes the cosine similarity between every pair of
// normalized feature vectors and prunes the result to a sparse undirected
// edge set: each item selects its TopN highest-scoring partners (ties by
// lower id), selections below MinScore are dropped, and the per-item
// selections are merged as a symmetric union. An item's final degree may
// exceed TopN when other items selected it independently.
//
// Negative cosine values are clamped to 0; audio-feature similarity carries
// no meaningful negative polarity. A zero-norm vector scores 0 against
// everything.
//
// The n^2 products dominate pipeline cost, so rows are row-normalized once
// and the score matrix is computed in worker-owned row blocks through
// gonum's BLAS-backed multiply; workers share only read-only inputs and
// write disjoint output partitions, merged at the end.
func BuildSimilarityGraph(ids []string, features *mat.Dense, cfg BuilderConfig) ([]graph.Edge, error) {
	n, dim := features.Dims()
	if len(ids) != n {
		return nil, graph.Validationf("similarity: %d ids for %d feature rows", len(ids), n)
	}
	topN := cfg.TopN
	if topN == 0 {
		topN = defaultTopN
	}
	if topN < 1 {
		return nil, graph.Validationf("similarity: top_n must be at least 1, got %d", topN)
	}
	if cfg.MinScore < 0 || cfg.MinScore > 1 {
		return nil, graph.Validationf("similarity: min_score must be in [0,1], got %v", cfg.MinScore)
	}

	// Row-normalize once so every pairwise dot product is directly the
	// cosine similarity.
	unit := mat.NewDense(n, dim, nil)
	for i := 0; i < n; i++ {
		row := features.RawRowView(i)
		var norm float64
		for _, v := range row {
			norm += v * v
		}
		norm = math.Sqrt(norm)
		if norm == 0 {
			continue // zero vector: stays zero, scores 0 everywhere
		}
		dst := unit.RawRowView(i)
		for f, v := range row {
			dst[f] = v / norm
		}
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > n {
		workers = n
	}

	// Each worker owns a disjoint row block: it computes the block's
	// similarity rows and selects that block's top-N partners. No shared
	// mutable state, no locks.
	selections := make([][]graph.Edge, workers)
	var wg sync.WaitGroup
	chunk := (n + workers - 1) / workers
	for w := 0; w < workers; w++ {
		r0 := w * chunk
		r1 := min(r0+chunk, n)
		if r0 >= r1 {
			continue
		}
		wg.Add(1)
		go func(w, r0, r1 int) {
			defer wg.Done()
			selections[w] = selectTopPartners(ids, unit, r0, r1, topN, cfg.MinScore)
		}(w, r0, r1)
	}
	wg.Wait()

	// Symmetric union. Cosine similarity is symmetric, so both directed
	// selections of a pair must agree; keep the max so a divergence would
	// surface in the snapshot invariant check rather than vanish.
	type pair struct{ a, b string }
	merged := make(map[pair]float64)
	for _, sel := range selections {
		for _, e := range sel {
			p := pair{e.Source, e.Target}
			if p.b < p.a {
				p.a, p.b = p.b, p.a
			}
			if prev, ok := merged[p]; !ok || e.Score > prev {
				merged[p] = e.Score
			}
		}
	}

	edges := make([]graph.Edge, 0, len(merged))
	for p, score := range merged {
		edges = append(edges, graph.Edge{Source: p.a, Target: p.b, Score: score})
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		return edges[i].Target < edges[j].Target
	})
	return edges, nil
}

// selectTopPartners computes similarity rows [r0, r1) against all items and
// returns each row's top-n directed selections.
func selectTopPartners(ids []string, unit *mat.Dense, r0, r1, topN int, minScore float64) []graph.Edge {
	n, dim := unit.Dims()
	rows := r1 - r0

	var block mat.Dense
	block.Mul(unit.Slice(r0, r1, 0, dim), unit.T())

	type cand struct {
		idx   int
		score float64
	}
	out := make([]graph.Edge, 0, rows*topN)
	cands := make([]cand, 0, n-1)

	for i := 0; i < rows; i++ {
		src := r0 + i
		cands = cands[:0]
		row := block.RawRowView(i)
		for j := 0; j < n; j++ {
			if j == src {
				continue
			}
			score := row[j]
			if score < 0 {
				score = 0
			} else if score > 1 {
				score = 1 // guard against float drift above unity
			}
			if score < minScore {
				continue
			}
			cands = append(cands, cand{idx: j, score: score})
		}
		sort.Slice(cands, func(a, b int) bool {
			if cands[a].score != cands[b].score {
				return cands[a].score > cands[b].score
			}
			return ids[cands[a].idx] < ids[cands[b].idx]
		})
		if len(cands) > topN {
			cands = cands[:topN]
		}
		for _, c := range cands {
			out = append(out, graph.Edge{Source: ids[src], Target: ids[c.idx], Score: c.score})
		}
	}
	return out
}
