// Package pipeline implements the offline batch job that turns raw item
// feature vectors into a clustered 2D embedding and a pruned similarity
// graph snapshot: normalize -> embed + cluster -> pairwise similarity ->
// top-N pruning -> publish.
//
// Stages run strictly in dependency order; any stage failure aborts the run
// and nothing is published, so the previous snapshot stays authoritative.
package pipeline

// FeatureNames is the canonical ordering of the audio feature vector. Every
// track carries exactly these features, in this order.
var FeatureNames = []string{
	"acousticness",
	"danceability",
	"duration_ms",
	"energy",
	"instrumentalness",
	"key",
	"liveness",
	"loudness",
	"mode",
	"speechiness",
	"tempo",
	"time_signature",
	"valence",
}

// FeatureCount is the dimensionality F of the feature vectors.
var FeatureCount = len(FeatureNames)

// Track is one input item: a stable identifier, descriptive metadata and a
// fixed-length numeric feature vector ordered per FeatureNames. Tracks are
// immutable within a run and replaced wholesale by the next run.
type Track struct {
	ID         string
	Title      string
	Artist     string
	Album      string
	Popularity int
	Features   []float64
}
