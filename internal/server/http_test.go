package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sanonone/trackgraph/pkg/graph"
)

// newTestServer publishes a small fixture graph and returns a server over
// it: a-b 0.9, a-c 0.7, b-c 0.8, c-d 0.6, e isolated.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	items := []*graph.Item{
		{ID: "a", Title: "Alpha", Artist: "X", Popularity: 80, Cluster: 0},
		{ID: "b", Title: "Beta", Artist: "X", Popularity: 60, Cluster: 0},
		{ID: "c", Title: "Gamma", Artist: "Y", Popularity: 70, Cluster: 1},
		{ID: "d", Title: "Delta", Artist: "Y", Popularity: 40, Cluster: 1},
		{ID: "e", Title: "Epsilon", Artist: "Z", Popularity: 20, Cluster: 1},
	}
	edges := []graph.Edge{
		{Source: "a", Target: "b", Score: 0.9},
		{Source: "a", Target: "c", Score: 0.7},
		{Source: "b", Target: "c", Score: 0.8},
		{Source: "c", Target: "d", Score: 0.6},
	}
	stats := graph.Stats{
		ItemCount:    5,
		EdgeCount:    4,
		ClusterSizes: map[int]int{0: 2, 1: 3},
	}
	snap, err := graph.NewSnapshot("snap-http", time.Now(), items, edges, stats)
	if err != nil {
		t.Fatalf("NewSnapshot failed: %v", err)
	}
	store := graph.NewStore()
	store.Publish(snap)
	return NewServer(store, ":0", nil)
}

func doGet(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response body: %v", err)
	}
	return v
}

func TestRecommendEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := doGet(t, srv, "/api/recommend/a?hops=2&limit=10")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	resp := decode[RecommendResponse](t, rec)

	if resp.SourceTrack.TrackID != "a" || resp.SourceTrack.Title != "Alpha" {
		t.Errorf("source track = %+v", resp.SourceTrack)
	}
	if resp.Count != 3 || len(resp.Recommendations) != 3 {
		t.Fatalf("expected 3 recommendations, got %+v", resp)
	}
	first := resp.Recommendations[0]
	if first.TrackID != "b" || first.Hops != 1 || first.PathScore != 0.9 {
		t.Errorf("first recommendation = %+v, want b at hop 1 score 0.9", first)
	}
	for _, r := range resp.Recommendations {
		if r.TrackID == "a" {
			t.Error("source track recommended to itself")
		}
	}
}

func TestSimilarEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := doGet(t, srv, "/api/similar/a")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	resp := decode[SimilarResponse](t, rec)
	if resp.Count != 2 {
		t.Fatalf("expected 2 similar tracks, got %+v", resp)
	}
	if resp.SimilarTracks[0].TrackID != "b" || resp.SimilarTracks[0].SimilarityScore != 0.9 {
		t.Errorf("first similar = %+v", resp.SimilarTracks[0])
	}
}

func TestTrianglesEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := doGet(t, srv, "/api/triangles?min_similarity=0.5")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	resp := decode[TrianglesResponse](t, rec)
	if resp.Count != 1 {
		t.Fatalf("expected 1 triangle, got %+v", resp)
	}
	tri := resp.Triangles[0]
	if tri.A != "a" || tri.B != "b" || tri.C != "c" {
		t.Errorf("triangle = %+v", tri)
	}
	if tri.TitleA != "Alpha" || tri.TitleB != "Beta" || tri.TitleC != "Gamma" {
		t.Errorf("triangle titles = %q %q %q", tri.TitleA, tri.TitleB, tri.TitleC)
	}
}

func TestCentralityEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := doGet(t, srv, "/api/centrality?algorithm=degree&limit=3")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	resp := decode[CentralityResponse](t, rec)
	if !resp.Available || resp.Algorithm != "degree" {
		t.Fatalf("response header = %+v", resp)
	}
	if resp.Count != 3 || resp.Tracks[0].TrackID != "c" || resp.Tracks[0].Degree != 3 {
		t.Errorf("top entry = %+v", resp.Tracks)
	}
}

func TestCentralityUnavailableIsNotAnError(t *testing.T) {
	srv := newTestServer(t)
	srv.engine = graph.NewEngine(srv.store, graph.WithoutInfluence())

	rec := doGet(t, srv, "/api/centrality?algorithm=influence")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 with available=false", rec.Code)
	}
	resp := decode[CentralityResponse](t, rec)
	if resp.Available {
		t.Fatal("expected available=false")
	}
	if resp.Message == "" {
		t.Error("expected an explanatory message")
	}
	if len(resp.Tracks) != 0 {
		t.Errorf("unavailable algorithm returned tracks: %+v", resp.Tracks)
	}
}

func TestClusterEndpoints(t *testing.T) {
	srv := newTestServer(t)

	rec := doGet(t, srv, "/api/clusters")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	clusters := decode[[]ClusterInfo](t, rec)
	if len(clusters) != 2 || clusters[0].ClusterID != 0 || clusters[0].Size != 2 {
		t.Fatalf("clusters = %+v", clusters)
	}

	rec = doGet(t, srv, "/api/clusters/1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	members := decode[ClusterResponse](t, rec)
	if members.Count != 3 || members.Tracks[0].TrackID != "c" {
		t.Fatalf("cluster 1 members = %+v", members)
	}

	if rec = doGet(t, srv, "/api/clusters/99"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown cluster: status = %d, want 404", rec.Code)
	}
	if rec = doGet(t, srv, "/api/clusters/abc"); rec.Code != http.StatusBadRequest {
		t.Errorf("non-numeric cluster id: status = %d, want 400", rec.Code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := doGet(t, srv, "/api/stats")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		SnapshotID string      `json:"snapshot_id"`
		Stats      graph.Stats `json:"stats"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding stats: %v", err)
	}
	if body.SnapshotID != "snap-http" || body.Stats.ItemCount != 5 {
		t.Fatalf("stats body = %+v", body)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	srv := newTestServer(t)

	cases := []struct {
		name string
		path string
		want int
	}{
		{"unknown track", "/api/recommend/nope", http.StatusNotFound},
		{"bad hops", "/api/recommend/a?hops=7", http.StatusBadRequest},
		{"non-numeric hops", "/api/recommend/a?hops=x", http.StatusBadRequest},
		{"bad limit", "/api/similar/a?limit=0", http.StatusBadRequest},
		{"bad min similarity", "/api/triangles?min_similarity=2", http.StatusBadRequest},
		{"unknown algorithm", "/api/centrality?algorithm=pagerank", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doGet(t, srv, tc.path)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tc.want, rec.Body)
			}
			body := decode[map[string]string](t, rec)
			if body["error"] == "" {
				t.Error("error body missing message")
			}
		})
	}
}

func TestNoSnapshotReturns503(t *testing.T) {
	srv := NewServer(graph.NewStore(), ":0", nil)

	for _, path := range []string{
		"/api/recommend/a", "/api/similar/a", "/api/triangles",
		"/api/centrality", "/api/clusters", "/api/clusters/0", "/api/stats",
	} {
		if rec := doGet(t, srv, path); rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: status = %d, want 503", path, rec.Code)
		}
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	rec := doGet(t, srv, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decode[map[string]any](t, rec)
	if body["status"] != "ok" || body["snapshot"] != "snap-http" {
		t.Fatalf("healthz body = %+v", body)
	}

	empty := NewServer(graph.NewStore(), ":0", nil)
	rec = doGet(t, empty, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("empty store healthz status = %d, want 200", rec.Code)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	srv := newTestServer(t)
	panicky := srv.RecoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	panicky.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}
