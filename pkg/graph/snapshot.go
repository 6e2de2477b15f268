// Package graph holds the similarity-graph snapshot model and the read-only
// query engine that serves traversal, pattern-matching and centrality
// queries against it.
//
// A Snapshot is one immutable, internally consistent version of the full
// item/cluster/edge graph. The pipeline produces a new Snapshot per run and
// publishes it through a Store; queries never observe a half-built graph.
package graph

import (
	"fmt"
	"sort"
	"time"

	"github.com/tidwall/btree"
)

// Item is one recommendable entity inside a snapshot: a track with its
// descriptive metadata, cluster assignment, 2D embedding coordinate and
// feature vectors. The metadata fields are opaque to the engine; Popularity
// is only used as a ranking tiebreaker.
type Item struct {
	ID         string  `json:"track_id"`
	Title      string  `json:"title"`
	Artist     string  `json:"artist"`
	Album      string  `json:"album"`
	Popularity int     `json:"popularity"`
	Cluster    int     `json:"cluster_id"`
	EmbeddingX float64 `json:"embedding_x"`
	EmbeddingY float64 `json:"embedding_y"`

	// Features holds the original feature values, Normalized the
	// standardized ones (zero mean, unit variance per feature over the
	// batch the snapshot was built from).
	Features   []float64 `json:"features,omitempty"`
	Normalized []float64 `json:"normalized_features,omitempty"`
}

// Edge is an undirected weighted similarity edge. Source < Target is the
// canonical orientation; Score is the cosine similarity in [0,1].
type Edge struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Score  float64 `json:"similarity"`
}

// Neighbor is one adjacency entry: the partner item and the edge score.
type Neighbor struct {
	ID    string
	Score float64
}

// Stats carries the per-run observability numbers computed by the builder.
type Stats struct {
	ItemCount       int            `json:"total_tracks"`
	EdgeCount       int            `json:"total_edges"`
	MeanSimilarity  float64        `json:"mean_similarity"`
	ClusterSizes    map[int]int    `json:"cluster_sizes"`
	DegreeHistogram map[int]int    `json:"degree_histogram"`
	Params          map[string]any `json:"params,omitempty"`
}

// Snapshot is the immutable unit of consistency for all queries. Build one
// with NewSnapshot; never mutate items or edges after that.
type Snapshot struct {
	ID      string
	BuiltAt time.Time

	items *btree.BTreeG[*Item]
	edges []Edge

	// adj maps item id -> neighbors sorted by score desc, then id asc.
	// scores maps item id -> partner id -> edge score for O(1) edge lookup.
	adj    map[string][]Neighbor
	scores map[string]map[string]float64

	stats Stats
}

func itemLess(a, b *Item) bool { return a.ID < b.ID }

// NewSnapshot assembles and validates a snapshot from the pipeline outputs.
// It enforces the structural invariants of the edge set: no self edges, both
// endpoints present, and a single score per unordered pair (two differing
// scores for the same pair indicate a similarity computation bug and fail
// the build).
func NewSnapshot(id string, builtAt time.Time, items []*Item, edges []Edge, stats Stats) (*Snapshot, error) {
	s := &Snapshot{
		ID:      id,
		BuiltAt: builtAt,
		items:   btree.NewBTreeG[*Item](itemLess),
		adj:     make(map[string][]Neighbor, len(items)),
		scores:  make(map[string]map[string]float64, len(items)),
		stats:   stats,
	}

	for _, it := range items {
		if it.ID == "" {
			return nil, fmt.Errorf("snapshot: item with empty id")
		}
		if _, dup := s.items.Get(it); dup {
			return nil, fmt.Errorf("snapshot: duplicate item id %q", it.ID)
		}
		s.items.Set(it)
	}

	s.edges = make([]Edge, 0, len(edges))
	for _, e := range edges {
		if e.Source == e.Target {
			return nil, fmt.Errorf("snapshot: self edge on %q", e.Source)
		}
		a, b := e.Source, e.Target
		if b < a {
			a, b = b, a
		}
		if _, ok := s.items.Get(&Item{ID: a}); !ok {
			return nil, fmt.Errorf("snapshot: edge endpoint %q unknown", a)
		}
		if _, ok := s.items.Get(&Item{ID: b}); !ok {
			return nil, fmt.Errorf("snapshot: edge endpoint %q unknown", b)
		}
		if prev, ok := s.scores[a][b]; ok {
			if prev != e.Score {
				return nil, fmt.Errorf("snapshot: conflicting scores for pair (%s, %s): %v vs %v", a, b, prev, e.Score)
			}
			continue
		}
		if s.scores[a] == nil {
			s.scores[a] = make(map[string]float64)
		}
		if s.scores[b] == nil {
			s.scores[b] = make(map[string]float64)
		}
		s.scores[a][b] = e.Score
		s.scores[b][a] = e.Score
		s.edges = append(s.edges, Edge{Source: a, Target: b, Score: e.Score})
		s.adj[a] = append(s.adj[a], Neighbor{ID: b, Score: e.Score})
		s.adj[b] = append(s.adj[b], Neighbor{ID: a, Score: e.Score})
	}

	// Canonical ordering keeps traversal and export output deterministic.
	sort.Slice(s.edges, func(i, j int) bool {
		if s.edges[i].Source != s.edges[j].Source {
			return s.edges[i].Source < s.edges[j].Source
		}
		return s.edges[i].Target < s.edges[j].Target
	})
	for _, nbs := range s.adj {
		sort.Slice(nbs, func(i, j int) bool {
			if nbs[i].Score != nbs[j].Score {
				return nbs[i].Score > nbs[j].Score
			}
			return nbs[i].ID < nbs[j].ID
		})
	}

	return s, nil
}

// Item returns the item with the given id, if present.
func (s *Snapshot) Item(id string) (*Item, bool) {
	return s.items.Get(&Item{ID: id})
}

// Len returns the number of items in the snapshot.
func (s *Snapshot) Len() int { return s.items.Len() }

// EdgeCount returns the number of undirected edges.
func (s *Snapshot) EdgeCount() int { return len(s.edges) }

// Edges returns the canonical edge list (Source < Target, sorted).
// The returned slice must not be modified.
func (s *Snapshot) Edges() []Edge { return s.edges }

// Neighbors returns the adjacency list of id, sorted by score descending.
// The returned slice must not be modified.
func (s *Snapshot) Neighbors(id string) []Neighbor { return s.adj[id] }

// EdgeScore returns the similarity between two items and whether the edge
// survives in the pruned graph.
func (s *Snapshot) EdgeScore(a, b string) (float64, bool) {
	sc, ok := s.scores[a][b]
	return sc, ok
}

// Stats returns the build statistics recorded with the snapshot.
func (s *Snapshot) Stats() Stats { return s.stats }

// Ascend walks all items in id order, stopping early if fn returns false.
func (s *Snapshot) Ascend(fn func(*Item) bool) {
	s.items.Scan(fn)
}

// ClusterMembers returns the items assigned to a cluster, in id order.
func (s *Snapshot) ClusterMembers(cluster int) []*Item {
	var out []*Item
	s.items.Scan(func(it *Item) bool {
		if it.Cluster == cluster {
			out = append(out, it)
		}
		return true
	})
	return out
}
