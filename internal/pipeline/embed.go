package pipeline

import (
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/sanonone/trackgraph/pkg/graph"
)

// ReducerConfig configures the 2D embedding stage.
type ReducerConfig struct {
	// Neighbors is the neighborhood size used to preserve local structure
	// (default 15, minimum 2). The batch must contain at least
	// Neighbors+1 items.
	Neighbors int `yaml:"neighbors"`

	// Iterations is the number of neighborhood-attraction refinement
	// passes over the initial projection.
	Iterations int `yaml:"iterations"`

	// Seed makes the projection deterministic across runs.
	Seed int64 `yaml:"seed"`
}

const (
	defaultNeighbors        = 15
	defaultEmbedIterations  = 40
	neighborAttractionAlpha = 0.15
	embedJitterScale        = 1e-3
)

// ReduceToPlane projects the normalized feature matrix onto 2 dimensions
// for navigation and visualization. Items close in the F-dimensional space
// tend to stay close in the plane: the projection starts from the two
// dominant singular directions and is then refined by repeatedly pulling
// each point toward the centroid of its Neighbors nearest neighbors in the
// original space. Distortion grows as Neighbors approaches the batch size.
//
// The result is deterministic for a fixed seed and never feeds similarity
// computation; it is presentation data only.
func ReduceToPlane(features *mat.Dense, cfg ReducerConfig) (*mat.Dense, error) {
	n, _ := features.Dims()
	neighbors := cfg.Neighbors
	if neighbors == 0 {
		neighbors = defaultNeighbors
	}
	if neighbors < 2 {
		return nil, graph.Validationf("embed: neighbors must be at least 2, got %d", neighbors)
	}
	if n < neighbors+1 {
		return nil, graph.Validationf("embed: batch of %d items is too small for %d neighbors", n, neighbors)
	}
	iterations := cfg.Iterations
	if iterations <= 0 {
		iterations = defaultEmbedIterations
	}

	// Initial placement: the two strongest singular directions of the
	// (already centered) feature matrix.
	var svd mat.SVD
	if !svd.Factorize(features, mat.SVDThin) {
		return nil, graph.Validationf("embed: SVD of feature matrix failed")
	}
	var u mat.Dense
	svd.UTo(&u)
	values := svd.Values(nil)

	coords := mat.NewDense(n, 2, nil)
	rng := rand.New(rand.NewSource(cfg.Seed))
	for i := 0; i < n; i++ {
		for d := 0; d < 2; d++ {
			v := 0.0
			if d < len(values) {
				v = u.At(i, d) * values[d]
			}
			// Seeded jitter breaks exact colinearity of duplicate rows.
			coords.Set(i, d, v+rng.NormFloat64()*embedJitterScale)
		}
	}

	nn := nearestNeighbors(features, neighbors)

	// Neighborhood attraction: each pass moves every point a step toward
	// the centroid of its nearest neighbors' current positions.
	next := mat.NewDense(n, 2, nil)
	for iter := 0; iter < iterations; iter++ {
		for i := 0; i < n; i++ {
			var cx, cy float64
			for _, j := range nn[i] {
				cx += coords.At(j, 0)
				cy += coords.At(j, 1)
			}
			k := float64(len(nn[i]))
			cx /= k
			cy /= k
			next.Set(i, 0, (1-neighborAttractionAlpha)*coords.At(i, 0)+neighborAttractionAlpha*cx)
			next.Set(i, 1, (1-neighborAttractionAlpha)*coords.At(i, 1)+neighborAttractionAlpha*cy)
		}
		coords, next = next, coords
	}

	return coords, nil
}

// nearestNeighbors returns, for every row, the indices of its k nearest
// rows by squared Euclidean distance (self excluded, ties by lower index).
func nearestNeighbors(features *mat.Dense, k int) [][]int {
	n, _ := features.Dims()
	type cand struct {
		idx  int
		dist float64
	}

	out := make([][]int, n)
	cands := make([]cand, 0, n-1)
	for i := 0; i < n; i++ {
		cands = cands[:0]
		ri := features.RawRowView(i)
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			rj := features.RawRowView(j)
			var d float64
			for f := range ri {
				diff := ri[f] - rj[f]
				d += diff * diff
			}
			cands = append(cands, cand{idx: j, dist: d})
		}
		sort.Slice(cands, func(a, b int) bool {
			if cands[a].dist != cands[b].dist {
				return cands[a].dist < cands[b].dist
			}
			return cands[a].idx < cands[b].idx
		})
		ids := make([]int, k)
		for c := 0; c < k; c++ {
			ids[c] = cands[c].idx
		}
		out[i] = ids
	}
	return out
}
