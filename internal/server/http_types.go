package server

import "github.com/sanonone/trackgraph/pkg/graph"

// trackSummary is the metadata slice of an item embedded in responses. The
// full enriched record lives in the external document store; the API
// returns identifiers plus enough context to render a list.
type trackSummary struct {
	TrackID    string `json:"track_id"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	ClusterID  int    `json:"cluster_id"`
	Popularity int    `json:"popularity"`
}

func summarize(it *graph.Item) trackSummary {
	return trackSummary{
		TrackID:    it.ID,
		Title:      it.Title,
		Artist:     it.Artist,
		ClusterID:  it.Cluster,
		Popularity: it.Popularity,
	}
}

// RecommendResponse is the body of GET /api/recommend/{id}.
type RecommendResponse struct {
	SourceTrack     trackSummary     `json:"source_track"`
	Parameters      map[string]int   `json:"parameters"`
	Count           int              `json:"count"`
	Recommendations []Recommendation `json:"recommendations"`
}

// Recommendation is one traversal hit resolved to its track summary.
type Recommendation struct {
	trackSummary
	PathScore float64 `json:"path_score"`
	Hops      int     `json:"hops"`
}

// SimilarResponse is the body of GET /api/similar/{id}.
type SimilarResponse struct {
	SourceTrack   trackSummary   `json:"source_track"`
	Count         int            `json:"count"`
	SimilarTracks []SimilarTrack `json:"similar_tracks"`
}

// SimilarTrack is one direct neighbor with its edge similarity.
type SimilarTrack struct {
	trackSummary
	SimilarityScore float64 `json:"similarity_score"`
}

// TrianglesResponse is the body of GET /api/triangles.
type TrianglesResponse struct {
	Parameters map[string]any   `json:"parameters"`
	Count      int              `json:"count"`
	Triangles  []TriangleResult `json:"triangles"`
}

// TriangleResult decorates an engine triangle with the three track titles.
type TriangleResult struct {
	graph.Triangle
	TitleA string `json:"track_a_title"`
	TitleB string `json:"track_b_title"`
	TitleC string `json:"track_c_title"`
}

// CentralityResponse is the body of GET /api/centrality.
type CentralityResponse struct {
	Algorithm string            `json:"algorithm"`
	Available bool              `json:"available"`
	Count     int               `json:"count"`
	Tracks    []CentralityTrack `json:"tracks,omitempty"`
	Message   string            `json:"message,omitempty"`
}

// CentralityTrack is one ranked entry resolved to its track summary.
type CentralityTrack struct {
	trackSummary
	Degree         int     `json:"degree,omitempty"`
	MeanSimilarity float64 `json:"avg_similarity,omitempty"`
	Score          float64 `json:"score,omitempty"`
}

// ClusterInfo is one entry of GET /api/clusters.
type ClusterInfo struct {
	ClusterID int `json:"cluster_id"`
	Size      int `json:"size"`
}

// ClusterResponse is the body of GET /api/clusters/{id}.
type ClusterResponse struct {
	ClusterID int            `json:"cluster_id"`
	Count     int            `json:"count"`
	Tracks    []trackSummary `json:"tracks"`
}
