// Package export writes the pipeline artifacts consumed by external stores:
// flat JSON documents for the document store, node/edge files for the graph
// store, and the run statistics file.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sanonone/trackgraph/internal/pipeline"
	"github.com/sanonone/trackgraph/pkg/graph"
)

// Artifact file names inside the export directory.
const (
	TracksFile = "tracks_with_clusters.json"
	NodesFile  = "graph_nodes.json"
	EdgesFile  = "graph_edges.json"
	StatsFile  = "run_stats.json"
)

// trackDoc is the flat per-item document for the external document store:
// metadata, original and normalized features (named per FeatureNames),
// cluster id and embedding coordinates.
type trackDoc struct {
	TrackID    string             `json:"track_id"`
	Title      string             `json:"title"`
	Artist     string             `json:"artist"`
	Album      string             `json:"album"`
	Popularity int                `json:"popularity"`
	ClusterID  int                `json:"cluster_id"`
	EmbeddingX float64            `json:"embedding_x"`
	EmbeddingY float64            `json:"embedding_y"`
	Features   map[string]float64 `json:"features"`
	Normalized map[string]float64 `json:"normalized_features"`
}

// nodeDoc is the graph-store node record.
type nodeDoc struct {
	TrackID    string `json:"track_id"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	ClusterID  int    `json:"cluster_id"`
	Popularity int    `json:"popularity"`
}

// WriteArtifacts writes all four artifact files for a snapshot into dir,
// creating it if needed. Items are emitted in id order so reruns over the
// same snapshot produce byte-identical files.
func WriteArtifacts(dir string, snap *graph.Snapshot) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("export: %w", err)
	}

	var tracks []trackDoc
	var nodes []nodeDoc
	snap.Ascend(func(it *graph.Item) bool {
		tracks = append(tracks, trackDoc{
			TrackID:    it.ID,
			Title:      it.Title,
			Artist:     it.Artist,
			Album:      it.Album,
			Popularity: it.Popularity,
			ClusterID:  it.Cluster,
			EmbeddingX: it.EmbeddingX,
			EmbeddingY: it.EmbeddingY,
			Features:   namedFeatures(it.Features),
			Normalized: namedFeatures(it.Normalized),
		})
		nodes = append(nodes, nodeDoc{
			TrackID:    it.ID,
			Title:      it.Title,
			Artist:     it.Artist,
			ClusterID:  it.Cluster,
			Popularity: it.Popularity,
		})
		return true
	})

	if err := writeJSON(filepath.Join(dir, TracksFile), tracks); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, NodesFile), nodes); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, EdgesFile), snap.Edges()); err != nil {
		return err
	}
	stats := struct {
		SnapshotID string `json:"snapshot_id"`
		BuiltAt    string `json:"built_at"`
		graph.Stats
	}{snap.ID, snap.BuiltAt.Format("2006-01-02T15:04:05Z07:00"), snap.Stats()}
	return writeJSON(filepath.Join(dir, StatsFile), stats)
}

func namedFeatures(values []float64) map[string]float64 {
	if len(values) != pipeline.FeatureCount {
		return nil
	}
	out := make(map[string]float64, len(values))
	for i, name := range pipeline.FeatureNames {
		out[name] = values[i]
	}
	return out
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		f.Close()
		return fmt.Errorf("export: encode %s: %w", path, err)
	}
	return f.Close()
}
