package pipeline

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/sanonone/trackgraph/pkg/graph"
)

const clusterMaxIterations = 100

// Cluster partitions the rows of the normalized feature matrix into k
// groups by iterative centroid relocation (Lloyd's algorithm): assign each
// item to its nearest centroid by Euclidean distance, recompute centroids
// as the mean of their members, repeat until assignments stop changing or
// the iteration cap is reached.
//
// Initial centroids are k distinct rows sampled with the seeded generator,
// so results are deterministic for a fixed seed. Nearest-centroid ties
// break toward the lowest cluster index. Cluster ids are dense (no gaps)
// but carry no meaning across runs; a batch with fewer distinct rows than
// k yields fewer than k clusters.
func Cluster(features *mat.Dense, k int, seed int64) ([]int, error) {
	n, _ := features.Dims()
	if k < 1 {
		return nil, graph.Validationf("cluster: k must be at least 1, got %d", k)
	}
	if k > n {
		return nil, graph.Validationf("cluster: k=%d exceeds item count %d", k, n)
	}

	rng := rand.New(rand.NewSource(seed))
	centroids := make([][]float64, k)
	for i, rowIdx := range rng.Perm(n)[:k] {
		centroids[i] = append([]float64(nil), features.RawRowView(rowIdx)...)
	}

	assign := make([]int, n)
	for i := range assign {
		assign[i] = -1
	}
	counts := make([]int, k)

	for iter := 0; iter < clusterMaxIterations; iter++ {
		changed := false
		for i := 0; i < n; i++ {
			row := features.RawRowView(i)
			best := 0
			bestDist := math.Inf(1)
			for c := 0; c < k; c++ {
				d := floats.Distance(row, centroids[c], 2)
				if d < bestDist {
					bestDist = d
					best = c
				}
			}
			if assign[i] != best {
				assign[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}

		// Recompute centroids as member means.
		for c := range centroids {
			for f := range centroids[c] {
				centroids[c][f] = 0
			}
			counts[c] = 0
		}
		for i := 0; i < n; i++ {
			c := assign[i]
			floats.Add(centroids[c], features.RawRowView(i))
			counts[c]++
		}
		for c := 0; c < k; c++ {
			if counts[c] > 0 {
				floats.Scale(1/float64(counts[c]), centroids[c])
			}
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				// Re-seed an emptied cluster on the item farthest
				// from its assigned centroid.
				far := farthestFromCentroid(features, centroids, assign)
				copy(centroids[c], features.RawRowView(far))
			}
		}
	}

	return compactIDs(assign, k), nil
}

// compactIDs relabels cluster ids so the used ones form [0, m) with no
// gaps. Duplicate rows can defeat re-seeding (the farthest item may sit at
// distance 0 and never move), leaving a cluster permanently empty; the
// relabeling keeps the dense-id contract regardless. Relative order of ids
// is preserved, so a run with all k clusters populated is unchanged.
func compactIDs(assign []int, k int) []int {
	used := make([]bool, k)
	for _, c := range assign {
		used[c] = true
	}
	remap := make([]int, k)
	next := 0
	for c := 0; c < k; c++ {
		if used[c] {
			remap[c] = next
			next++
		}
	}
	for i, c := range assign {
		assign[i] = remap[c]
	}
	return assign
}

// farthestFromCentroid returns the index of the item with the largest
// distance to its assigned centroid (lowest index on ties).
func farthestFromCentroid(features *mat.Dense, centroids [][]float64, assign []int) int {
	n, _ := features.Dims()
	best := 0
	bestDist := -1.0
	for i := 0; i < n; i++ {
		d := floats.Distance(features.RawRowView(i), centroids[assign[i]], 2)
		if d > bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}
