package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"

	"github.com/sanonone/trackgraph/pkg/graph"
)

// writeJSON writes v as the JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the engine's error kinds to HTTP statuses: validation
// mistakes are the caller's fault (400), unknown entities are missing
// resources (404), and a store with no published snapshot is a service
// that is not ready yet (503).
func writeError(w http.ResponseWriter, err error) {
	switch {
	case graph.IsValidation(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case graph.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, graph.ErrNoSnapshot):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, graph.Validationf("parameter %q must be an integer", name)
	}
	return v, nil
}

// queryFloat parses an optional float query parameter.
func queryFloat(r *http.Request, name string, def float64) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, graph.Validationf("parameter %q must be a number", name)
	}
	return v, nil
}

// handleRecommend serves multi-hop recommendations:
// GET /api/recommend/{id}?hops=2&limit=20
func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	trackID := r.PathValue("id")
	hops, err := queryInt(r, "hops", 2)
	if err != nil {
		writeError(w, err)
		return
	}
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		writeError(w, err)
		return
	}

	// One view per request: the traversal and the item resolution below
	// must read the same snapshot version.
	view, err := s.engine.View()
	if err != nil {
		writeError(w, err)
		return
	}
	hits, err := view.Traverse(trackID, hops, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	snap := view.Snapshot()
	source, _ := snap.Item(trackID)

	recs := make([]Recommendation, 0, len(hits))
	for _, hit := range hits {
		it, ok := snap.Item(hit.ID)
		if !ok {
			continue
		}
		recs = append(recs, Recommendation{
			trackSummary: summarize(it),
			PathScore:    hit.PathScore,
			Hops:         hit.Hops,
		})
	}

	writeJSON(w, http.StatusOK, RecommendResponse{
		SourceTrack:     summarize(source),
		Parameters:      map[string]int{"max_hops": hops, "limit": limit},
		Count:           len(recs),
		Recommendations: recs,
	})
}

// handleSimilar serves direct neighbors: GET /api/similar/{id}?limit=10
func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	trackID := r.PathValue("id")
	limit, err := queryInt(r, "limit", 10)
	if err != nil {
		writeError(w, err)
		return
	}

	view, err := s.engine.View()
	if err != nil {
		writeError(w, err)
		return
	}
	hits, err := view.Traverse(trackID, 1, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	snap := view.Snapshot()
	source, _ := snap.Item(trackID)

	similar := make([]SimilarTrack, 0, len(hits))
	for _, hit := range hits {
		it, ok := snap.Item(hit.ID)
		if !ok {
			continue
		}
		similar = append(similar, SimilarTrack{
			trackSummary:    summarize(it),
			SimilarityScore: hit.PathScore,
		})
	}

	writeJSON(w, http.StatusOK, SimilarResponse{
		SourceTrack:   summarize(source),
		Count:         len(similar),
		SimilarTracks: similar,
	})
}

// handleTriangles serves mutual-similarity patterns:
// GET /api/triangles?min_similarity=0.7&limit=10
func (s *Server) handleTriangles(w http.ResponseWriter, r *http.Request) {
	minSim, err := queryFloat(r, "min_similarity", 0.7)
	if err != nil {
		writeError(w, err)
		return
	}
	limit, err := queryInt(r, "limit", 10)
	if err != nil {
		writeError(w, err)
		return
	}

	view, err := s.engine.View()
	if err != nil {
		writeError(w, err)
		return
	}
	triangles, err := view.FindTriangles(minSim, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	snap := view.Snapshot()
	title := func(id string) string {
		if it, ok := snap.Item(id); ok {
			return it.Title
		}
		return ""
	}

	results := make([]TriangleResult, len(triangles))
	for i, tri := range triangles {
		results[i] = TriangleResult{
			Triangle: tri,
			TitleA:   title(tri.A),
			TitleB:   title(tri.B),
			TitleC:   title(tri.C),
		}
	}

	writeJSON(w, http.StatusOK, TrianglesResponse{
		Parameters: map[string]any{"min_similarity": minSim, "limit": limit},
		Count:      len(results),
		Triangles:  results,
	})
}

// handleCentrality serves importance rankings:
// GET /api/centrality?algorithm=degree&limit=20
func (s *Server) handleCentrality(w http.ResponseWriter, r *http.Request) {
	algorithm := r.URL.Query().Get("algorithm")
	if algorithm == "" {
		algorithm = graph.CentralityDegree
	}
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		writeError(w, err)
		return
	}

	view, err := s.engine.View()
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := view.RankCentrality(algorithm, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	if !result.Available {
		writeJSON(w, http.StatusOK, CentralityResponse{
			Algorithm: result.Algorithm,
			Available: false,
			Message:   "centrality algorithm not available on this engine",
		})
		return
	}

	snap := view.Snapshot()
	tracks := make([]CentralityTrack, 0, len(result.Entries))
	for _, entry := range result.Entries {
		it, ok := snap.Item(entry.ID)
		if !ok {
			continue
		}
		tracks = append(tracks, CentralityTrack{
			trackSummary:   summarize(it),
			Degree:         entry.Degree,
			MeanSimilarity: entry.MeanSimilarity,
			Score:          entry.Score,
		})
	}

	writeJSON(w, http.StatusOK, CentralityResponse{
		Algorithm: result.Algorithm,
		Available: true,
		Count:     len(tracks),
		Tracks:    tracks,
	})
}

// handleClusters lists cluster ids and sizes: GET /api/clusters
func (s *Server) handleClusters(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.store.Current()
	if !ok {
		writeError(w, graph.ErrNoSnapshot)
		return
	}

	sizes := snap.Stats().ClusterSizes
	clusters := make([]ClusterInfo, 0, len(sizes))
	for id, size := range sizes {
		clusters = append(clusters, ClusterInfo{ClusterID: id, Size: size})
	}
	sort.Slice(clusters, func(i, j int) bool { return clusters[i].ClusterID < clusters[j].ClusterID })
	writeJSON(w, http.StatusOK, clusters)
}

// handleClusterMembers lists a cluster's tracks: GET /api/clusters/{id}
func (s *Server) handleClusterMembers(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.store.Current()
	if !ok {
		writeError(w, graph.ErrNoSnapshot)
		return
	}

	clusterID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, graph.Validationf("cluster id must be an integer"))
		return
	}

	members := snap.ClusterMembers(clusterID)
	if len(members) == 0 {
		writeError(w, &graph.NotFoundError{Kind: "cluster", ID: r.PathValue("id")})
		return
	}

	tracks := make([]trackSummary, len(members))
	for i, it := range members {
		tracks[i] = summarize(it)
	}
	writeJSON(w, http.StatusOK, ClusterResponse{
		ClusterID: clusterID,
		Count:     len(tracks),
		Tracks:    tracks,
	})
}

// handleStats serves the snapshot build statistics: GET /api/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.store.Current()
	if !ok {
		writeError(w, graph.ErrNoSnapshot)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"snapshot_id": snap.ID,
		"built_at":    snap.BuiltAt,
		"stats":       snap.Stats(),
	})
}
