package pipeline

import (
	"math"
	"testing"

	"github.com/sanonone/trackgraph/pkg/graph"
)

func trackWith(id string, features ...float64) Track {
	return Track{ID: id, Title: id, Features: features}
}

func TestNormalizeFeaturesStandardizesColumns(t *testing.T) {
	tracks := []Track{
		trackWith("a", 1, 10),
		trackWith("b", 2, 20),
		trackWith("c", 3, 30),
	}

	out, err := NormalizeFeatures(tracks)
	if err != nil {
		t.Fatalf("NormalizeFeatures failed: %v", err)
	}

	n, dim := out.Dims()
	if n != 3 || dim != 2 {
		t.Fatalf("expected 3x2 output, got %dx%d", n, dim)
	}

	// Each column must end up with mean 0 and population std 1.
	for j := 0; j < dim; j++ {
		var sum, sumSq float64
		for i := 0; i < n; i++ {
			v := out.At(i, j)
			sum += v
			sumSq += v * v
		}
		mean := sum / float64(n)
		std := math.Sqrt(sumSq/float64(n) - mean*mean)
		if math.Abs(mean) > 1e-12 {
			t.Errorf("column %d: mean = %v, want 0", j, mean)
		}
		if math.Abs(std-1) > 1e-12 {
			t.Errorf("column %d: std = %v, want 1", j, std)
		}
	}

	// The linear [1,2,3] column is symmetric around its mean.
	if got := out.At(1, 0); math.Abs(got) > 1e-12 {
		t.Errorf("middle value of linear column = %v, want 0", got)
	}
	if a, c := out.At(0, 0), out.At(2, 0); math.Abs(a+c) > 1e-12 {
		t.Errorf("linear column not symmetric: %v vs %v", a, c)
	}
}

func TestNormalizeFeaturesZeroVarianceColumn(t *testing.T) {
	tracks := []Track{
		trackWith("a", 5, 1),
		trackWith("b", 5, 2),
		trackWith("c", 5, 3),
	}

	out, err := NormalizeFeatures(tracks)
	if err != nil {
		t.Fatalf("NormalizeFeatures failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if got := out.At(i, 0); got != 0 {
			t.Errorf("constant column row %d = %v, want exactly 0", i, got)
		}
	}
	// The varying column is still standardized normally.
	if got := out.At(0, 1); got == 0 {
		t.Errorf("varying column row 0 = 0, expected non-zero")
	}
}

func TestNormalizeFeaturesSingleTrack(t *testing.T) {
	out, err := NormalizeFeatures([]Track{trackWith("a", 3, 7)})
	if err != nil {
		t.Fatalf("NormalizeFeatures failed: %v", err)
	}
	for j := 0; j < 2; j++ {
		if got := out.At(0, j); got != 0 {
			t.Errorf("single-track column %d = %v, want 0", j, got)
		}
	}
}

func TestNormalizeFeaturesValidation(t *testing.T) {
	cases := []struct {
		name   string
		tracks []Track
	}{
		{"empty batch", nil},
		{"no features", []Track{{ID: "a"}}},
		{"mismatched dims", []Track{trackWith("a", 1, 2), trackWith("b", 1)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NormalizeFeatures(tc.tracks)
			if !graph.IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}
