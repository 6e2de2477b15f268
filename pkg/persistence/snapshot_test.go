package persistence

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sanonone/trackgraph/pkg/graph"
)

// Normalized vectors are stored at half precision, so fixtures stick to
// values a float16 represents exactly.
func testSnapshot(t *testing.T) *graph.Snapshot {
	t.Helper()
	items := []*graph.Item{
		{
			ID: "t1", Title: "One", Artist: "A", Album: "First",
			Popularity: 80, Cluster: 0,
			EmbeddingX: 1.25, EmbeddingY: -0.75,
			Features:   []float64{0.5, 0.25, 1.0},
			Normalized: []float64{1.0, -1.0, 0.5},
		},
		{
			ID: "t2", Title: "Two", Artist: "B", Album: "",
			Popularity: 0, Cluster: 1,
			EmbeddingX: -3.5, EmbeddingY: 2.0,
			Features:   []float64{0.125, 2.0, -4.0},
			Normalized: []float64{-1.0, 1.0, -0.5},
		},
		{ID: "t3", Title: "Three", Artist: "C", Cluster: 0},
	}
	edges := []graph.Edge{
		{Source: "t1", Target: "t2", Score: 0.875},
		{Source: "t1", Target: "t3", Score: 0.5},
	}
	snap, err := graph.NewSnapshot("snap-123", time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
		items, edges, graph.Stats{ItemCount: 3, EdgeCount: 2, MeanSimilarity: 0.6875})
	if err != nil {
		t.Fatalf("NewSnapshot failed: %v", err)
	}
	return snap
}

func TestSnapshotRoundTrip(t *testing.T) {
	snap := testSnapshot(t)

	var buf bytes.Buffer
	if err := SaveSnapshot(&buf, snap); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	loaded, err := LoadSnapshot(&buf)
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}

	if loaded.ID != snap.ID {
		t.Errorf("id = %q, want %q", loaded.ID, snap.ID)
	}
	if !loaded.BuiltAt.Equal(snap.BuiltAt) {
		t.Errorf("built at = %v, want %v", loaded.BuiltAt, snap.BuiltAt)
	}
	if loaded.Len() != snap.Len() || loaded.EdgeCount() != snap.EdgeCount() {
		t.Fatalf("loaded %d items / %d edges, want %d / %d",
			loaded.Len(), loaded.EdgeCount(), snap.Len(), snap.EdgeCount())
	}
	if got := loaded.Stats().MeanSimilarity; got != 0.6875 {
		t.Errorf("stats mean similarity = %v, want 0.6875", got)
	}

	snap.Ascend(func(want *graph.Item) bool {
		got, ok := loaded.Item(want.ID)
		if !ok {
			t.Fatalf("item %s missing after reload", want.ID)
		}
		if got.Title != want.Title || got.Artist != want.Artist || got.Album != want.Album {
			t.Errorf("item %s metadata mismatch: %+v", want.ID, got)
		}
		if got.Popularity != want.Popularity || got.Cluster != want.Cluster {
			t.Errorf("item %s numeric fields mismatch: %+v", want.ID, got)
		}
		if got.EmbeddingX != want.EmbeddingX || got.EmbeddingY != want.EmbeddingY {
			t.Errorf("item %s embedding mismatch: %+v", want.ID, got)
		}
		if len(got.Features) != len(want.Features) {
			t.Fatalf("item %s feature count mismatch", want.ID)
		}
		for i := range want.Features {
			if got.Features[i] != want.Features[i] {
				t.Errorf("item %s feature %d = %v, want %v", want.ID, i, got.Features[i], want.Features[i])
			}
		}
		for i := range want.Normalized {
			if got.Normalized[i] != want.Normalized[i] {
				t.Errorf("item %s normalized %d = %v, want %v", want.ID, i, got.Normalized[i], want.Normalized[i])
			}
		}
		return true
	})

	for i, want := range snap.Edges() {
		if loaded.Edges()[i] != want {
			t.Errorf("edge %d = %+v, want %+v", i, loaded.Edges()[i], want)
		}
	}
}

func TestSnapshotRoundTripLargeFeatureValues(t *testing.T) {
	// Raw features carry real-world magnitudes well past the float16
	// range (duration_ms in the hundreds of thousands); they must
	// survive a round trip bit for bit.
	features := []float64{0.123, 0.456, 210000, 0.7, 0.001, 11, 0.2, -60.25, 1, 0.04, 178.042, 4, 0.99}
	items := []*graph.Item{{
		ID: "long-track", Title: "Long", Artist: "A",
		Features:   features,
		Normalized: []float64{0.5, -0.5, 1.5},
	}}
	snap, err := graph.NewSnapshot("snap-long", time.Now().UTC(), items, nil, graph.Stats{ItemCount: 1})
	if err != nil {
		t.Fatalf("NewSnapshot failed: %v", err)
	}

	var buf bytes.Buffer
	if err := SaveSnapshot(&buf, snap); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	loaded, err := LoadSnapshot(&buf)
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}

	got, ok := loaded.Item("long-track")
	if !ok {
		t.Fatal("item missing after reload")
	}
	for i, want := range features {
		if got.Features[i] != want {
			t.Errorf("feature %d round-tripped to %v, want %v", i, got.Features[i], want)
		}
	}
}

func TestSnapshotFileRoundTrip(t *testing.T) {
	snap := testSnapshot(t)
	path := filepath.Join(t.TempDir(), "graph.tgs")

	if err := SaveSnapshotFile(path, snap); err != nil {
		t.Fatalf("SaveSnapshotFile failed: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file left behind after successful save")
	}

	loaded, err := LoadSnapshotFile(path)
	if err != nil {
		t.Fatalf("LoadSnapshotFile failed: %v", err)
	}
	if loaded.ID != snap.ID || loaded.Len() != snap.Len() {
		t.Fatalf("reloaded snapshot differs: %s / %d items", loaded.ID, loaded.Len())
	}
}

func TestLoadSnapshotRejectsTruncation(t *testing.T) {
	var buf bytes.Buffer
	if err := SaveSnapshot(&buf, testSnapshot(t)); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	data := buf.Bytes()

	// Drop the trailing edge frame entirely: every remaining frame is
	// intact, so only the meta counts can catch the loss.
	if _, err := LoadSnapshot(bytes.NewReader(data[:len(data)-HeaderSize-20])); err == nil {
		t.Fatal("expected error for truncated stream")
	}
}

func TestLoadSnapshotRejectsGarbage(t *testing.T) {
	if _, err := LoadSnapshot(bytes.NewReader([]byte("not a snapshot file at all"))); err == nil {
		t.Fatal("expected error for non-snapshot input")
	}
}
