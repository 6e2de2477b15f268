package pipeline

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/sanonone/trackgraph/pkg/graph"
	"github.com/sanonone/trackgraph/pkg/metrics"
)

// Config bundles the tunables of a full pipeline run.
type Config struct {
	// Clusters is K for the clustering stage (default 10).
	Clusters int `yaml:"clusters"`

	// Seed drives every randomized stage (embedding jitter, centroid
	// initialization). Two runs over identical input with the same seed
	// produce identical snapshots.
	Seed int64 `yaml:"seed"`

	Reducer ReducerConfig `yaml:"reducer"`
	Builder BuilderConfig `yaml:"builder"`
}

const defaultClusters = 10

// DefaultConfig mirrors the reference deployment parameters.
func DefaultConfig() Config {
	return Config{
		Clusters: defaultClusters,
		Seed:     42,
		Reducer:  ReducerConfig{Neighbors: defaultNeighbors},
		Builder:  BuilderConfig{TopN: defaultTopN},
	}
}

// Runner executes the batch pipeline and publishes the resulting snapshot.
// The Store is injected so the same runner works against the live serving
// store or an isolated one in tests.
type Runner struct {
	cfg   Config
	store *graph.Store
	log   *slog.Logger
}

// NewRunner builds a Runner. A nil logger falls back to slog.Default().
func NewRunner(cfg Config, store *graph.Store, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Clusters == 0 {
		cfg.Clusters = defaultClusters
	}
	if cfg.Reducer.Seed == 0 {
		cfg.Reducer.Seed = cfg.Seed
	}
	return &Runner{cfg: cfg, store: store, log: log}
}

// Run executes normalize -> embed + cluster -> similarity graph over the
// track batch, assembles an immutable snapshot and publishes it. Stages run
// in dependency order; the first failing stage aborts the run and nothing
// is published, so the previously published snapshot (if any) remains
// authoritative.
func (r *Runner) Run(tracks []Track) (*graph.Snapshot, error) {
	snap, err := r.build(tracks)
	if err != nil {
		metrics.PipelineRunsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	r.store.Publish(snap)
	metrics.PipelineRunsTotal.WithLabelValues("ok").Inc()
	metrics.SnapshotItems.Set(float64(snap.Len()))
	metrics.SnapshotEdges.Set(float64(snap.EdgeCount()))

	r.log.Info("pipeline run published",
		"snapshot", snap.ID,
		"items", snap.Len(),
		"edges", snap.EdgeCount(),
		"clusters", r.cfg.Clusters,
	)
	return snap, nil
}

// Build runs the pipeline without publishing; useful for one-shot exports.
func (r *Runner) Build(tracks []Track) (*graph.Snapshot, error) {
	return r.build(tracks)
}

func (r *Runner) build(tracks []Track) (*graph.Snapshot, error) {
	start := time.Now()

	var (
		normalized *mat.Dense
		coords     *mat.Dense
		assign     []int
		edges      []graph.Edge
	)

	err := r.timed("normalize", func() (err error) {
		normalized, err = NormalizeFeatures(tracks)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}

	err = r.timed("embed", func() (err error) {
		coords, err = ReduceToPlane(normalized, r.cfg.Reducer)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}

	err = r.timed("cluster", func() (err error) {
		assign, err = Cluster(normalized, r.cfg.Clusters, r.cfg.Seed)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("cluster: %w", err)
	}

	ids := make([]string, len(tracks))
	for i, t := range tracks {
		ids[i] = t.ID
	}
	err = r.timed("similarity", func() (err error) {
		edges, err = BuildSimilarityGraph(ids, normalized, r.cfg.Builder)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("similarity: %w", err)
	}

	items := make([]*graph.Item, len(tracks))
	for i, t := range tracks {
		items[i] = &graph.Item{
			ID:         t.ID,
			Title:      t.Title,
			Artist:     t.Artist,
			Album:      t.Album,
			Popularity: t.Popularity,
			Cluster:    assign[i],
			EmbeddingX: coords.At(i, 0),
			EmbeddingY: coords.At(i, 1),
			Features:   append([]float64(nil), t.Features...),
			Normalized: append([]float64(nil), normalized.RawRowView(i)...),
		}
	}

	stats := computeStats(items, edges, r.cfg)
	snap, err := graph.NewSnapshot(uuid.NewString(), time.Now().UTC(), items, edges, stats)
	if err != nil {
		return nil, fmt.Errorf("assemble snapshot: %w", err)
	}

	r.log.Info("pipeline build complete",
		"snapshot", snap.ID,
		"items", len(items),
		"edges", len(edges),
		"took", time.Since(start).String(),
	)
	return snap, nil
}

// timed runs a stage and records its duration histogram.
func (r *Runner) timed(stage string, fn func() error) error {
	start := time.Now()
	err := fn()
	took := time.Since(start)
	metrics.PipelineStageDuration.WithLabelValues(stage).Observe(took.Seconds())
	if err == nil {
		r.log.Debug("pipeline stage done", "stage", stage, "took", took.String())
	}
	return err
}

func computeStats(items []*graph.Item, edges []graph.Edge, cfg Config) graph.Stats {
	stats := graph.Stats{
		ItemCount:       len(items),
		EdgeCount:       len(edges),
		ClusterSizes:    make(map[int]int),
		DegreeHistogram: make(map[int]int),
		Params: map[string]any{
			"clusters":  cfg.Clusters,
			"neighbors": cfg.Reducer.Neighbors,
			"top_n":     cfg.Builder.TopN,
			"min_score": cfg.Builder.MinScore,
			"seed":      cfg.Seed,
		},
	}

	for _, it := range items {
		stats.ClusterSizes[it.Cluster]++
	}

	degrees := make(map[string]int, len(items))
	var sum float64
	for _, e := range edges {
		degrees[e.Source]++
		degrees[e.Target]++
		sum += e.Score
	}
	if len(edges) > 0 {
		stats.MeanSimilarity = sum / float64(len(edges))
	}
	for _, it := range items {
		stats.DegreeHistogram[degrees[it.ID]]++
	}
	return stats
}
