package graph

import (
	"sort"
)

const (
	// defaultStepBudget bounds the number of edge expansions a single
	// traversal or triangle enumeration may perform. Degenerate inputs
	// (a fully connected neighborhood) get a truncated-but-fast answer
	// instead of an unbounded scan.
	defaultStepBudget = 2_000_000

	// defaultNearIdentityCeiling excludes near-duplicate edges from
	// triangle detection: three variants of the same recording are not an
	// interesting pattern.
	defaultNearIdentityCeiling = 0.99
)

// Engine answers multi-hop, pattern-matching and centrality queries against
// the snapshot currently published in its Store. All operations are pure
// reads and safe for unbounded concurrent use.
//
// The Store is injected at construction so tests can substitute an
// in-memory snapshot; the engine never reaches for process-global state.
type Engine struct {
	store *Store

	stepBudget          int
	nearIdentityCeiling float64
	influenceEnabled    bool
}

// Option customizes an Engine.
type Option func(*Engine)

// WithStepBudget overrides the per-query edge expansion budget.
func WithStepBudget(n int) Option {
	return func(e *Engine) { e.stepBudget = n }
}

// WithNearIdentityCeiling overrides the similarity ceiling above which an
// edge is treated as a duplicate-item edge for triangle detection.
func WithNearIdentityCeiling(c float64) Option {
	return func(e *Engine) { e.nearIdentityCeiling = c }
}

// WithoutInfluence disables the iterative influence centrality. The engine
// then reports the capability as unavailable instead of silently falling
// back to degree centrality.
func WithoutInfluence() Option {
	return func(e *Engine) { e.influenceEnabled = false }
}

// NewEngine builds a query engine over the given snapshot store.
func NewEngine(store *Store, opts ...Option) *Engine {
	e := &Engine{
		store:               store,
		stepBudget:          defaultStepBudget,
		nearIdentityCeiling: defaultNearIdentityCeiling,
		influenceEnabled:    true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// View pins one snapshot version. Every query and item lookup made through
// the same View observes that single version, no matter how many publishes
// land in between; callers composing a multi-step response must hold one
// View for the whole request.
type View struct {
	snap *Snapshot
	e    *Engine
}

// View captures the currently published snapshot. It fails with
// ErrNoSnapshot before the first publish.
func (e *Engine) View() (*View, error) {
	snap, ok := e.store.Current()
	if !ok {
		return nil, ErrNoSnapshot
	}
	return &View{snap: snap, e: e}, nil
}

// Snapshot returns the pinned snapshot.
func (v *View) Snapshot() *Snapshot { return v.snap }

// TraversalHit is one item reached by Traverse: its hop distance along the
// shortest discovered path and the product of edge similarities along the
// best such path.
type TraversalHit struct {
	ID        string  `json:"track_id"`
	Hops      int     `json:"hops"`
	PathScore float64 `json:"path_score"`
}

// Traverse explores the graph outward from startID up to maxHops hops
// (1 to 3) over the undirected edge set. Every reached node is kept at its
// shortest depth only and scored with the product of edge similarities
// along the best shortest path; the start node itself is never returned.
//
// Results are ordered by path score descending, then hop count ascending,
// then popularity descending, then id, and truncated to limit.
func (e *Engine) Traverse(startID string, maxHops, limit int) ([]TraversalHit, error) {
	v, err := e.View()
	if err != nil {
		return nil, err
	}
	return v.Traverse(startID, maxHops, limit)
}

// Traverse runs the traversal against the pinned snapshot.
func (v *View) Traverse(startID string, maxHops, limit int) ([]TraversalHit, error) {
	snap := v.snap
	if maxHops < 1 || maxHops > 3 {
		return nil, Validationf("max_hops must be between 1 and 3, got %d", maxHops)
	}
	if limit <= 0 {
		return nil, Validationf("limit must be positive, got %d", limit)
	}
	if _, ok := snap.Item(startID); !ok {
		return nil, &NotFoundError{Kind: "track", ID: startID}
	}

	depth := map[string]int{startID: 0}
	score := map[string]float64{startID: 1}
	frontier := []string{startID}

	steps := 0
	for hop := 1; hop <= maxHops && len(frontier) > 0; hop++ {
		var next []string
		for _, cur := range frontier {
			base := score[cur]
			for _, nb := range snap.Neighbors(cur) {
				steps++
				if steps > v.e.stepBudget {
					frontier = nil
					break
				}
				if nb.ID == startID {
					continue
				}
				cand := base * nb.Score
				if d, seen := depth[nb.ID]; seen {
					// Shortest-depth dedup: only same-depth
					// discoveries may improve the score.
					if d == hop && cand > score[nb.ID] {
						score[nb.ID] = cand
					}
					continue
				}
				depth[nb.ID] = hop
				score[nb.ID] = cand
				next = append(next, nb.ID)
			}
			if frontier == nil {
				break
			}
		}
		frontier = next
	}

	hits := make([]TraversalHit, 0, len(depth)-1)
	for id, d := range depth {
		if id == startID {
			continue
		}
		hits = append(hits, TraversalHit{ID: id, Hops: d, PathScore: score[id]})
	}

	sort.Slice(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.PathScore != b.PathScore {
			return a.PathScore > b.PathScore
		}
		if a.Hops != b.Hops {
			return a.Hops < b.Hops
		}
		pa, pb := 0, 0
		if it, ok := snap.Item(a.ID); ok {
			pa = it.Popularity
		}
		if it, ok := snap.Item(b.ID); ok {
			pb = it.Popularity
		}
		if pa != pb {
			return pa > pb
		}
		return a.ID < b.ID
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}
