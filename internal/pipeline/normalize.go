package pipeline

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/sanonone/trackgraph/pkg/graph"
)

// NormalizeFeatures standardizes the feature matrix of a track batch: each
// feature column is transformed to (x - mean) / std, with mean and standard
// deviation computed over the whole batch. The returned matrix is n rows by
// FeatureCount columns, in the same row order as tracks.
//
// A column with zero variance has no information to standardize; instead of
// dividing by zero the whole column is set to exactly 0 for every track.
func NormalizeFeatures(tracks []Track) (*mat.Dense, error) {
	if len(tracks) == 0 {
		return nil, graph.Validationf("normalize: empty track batch")
	}

	dim := len(tracks[0].Features)
	if dim < 1 {
		return nil, graph.Validationf("normalize: track %q has no features", tracks[0].ID)
	}
	for _, t := range tracks {
		if len(t.Features) != dim {
			return nil, graph.Validationf("normalize: track %q has %d features, expected %d", t.ID, len(t.Features), dim)
		}
	}

	n := len(tracks)
	out := mat.NewDense(n, dim, nil)
	col := make([]float64, n)

	for j := 0; j < dim; j++ {
		for i, t := range tracks {
			col[i] = t.Features[j]
		}
		mean, variance := stat.MeanVariance(col, nil)
		// stat.MeanVariance is the unbiased (n-1) estimator; the batch
		// definition of standardization wants the population variance.
		if n < 2 {
			variance = 0
		} else {
			variance *= float64(n-1) / float64(n)
		}
		std := math.Sqrt(variance)

		if std == 0 {
			for i := 0; i < n; i++ {
				out.Set(i, j, 0)
			}
			continue
		}
		for i := 0; i < n; i++ {
			out.Set(i, j, (col[i]-mean)/std)
		}
	}

	return out, nil
}
