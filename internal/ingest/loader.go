// Package ingest reads the item batches produced by the upstream collector.
// Malformed items (missing or non-finite features, wrong dimensionality)
// are rejected at this boundary; they are never silently zero-filled.
package ingest

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/sanonone/trackgraph/internal/pipeline"
)

// trackRecord mirrors the collector's JSON document for one track. Feature
// fields are pointers so a missing field is distinguishable from a zero.
type trackRecord struct {
	TrackID    string `json:"track_id"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Album      string `json:"album"`
	Popularity int    `json:"popularity"`

	Acousticness     *float64 `json:"acousticness"`
	Danceability     *float64 `json:"danceability"`
	DurationMs       *float64 `json:"duration_ms"`
	Energy           *float64 `json:"energy"`
	Instrumentalness *float64 `json:"instrumentalness"`
	Key              *float64 `json:"key"`
	Liveness         *float64 `json:"liveness"`
	Loudness         *float64 `json:"loudness"`
	Mode             *float64 `json:"mode"`
	Speechiness      *float64 `json:"speechiness"`
	Tempo            *float64 `json:"tempo"`
	TimeSignature    *float64 `json:"time_signature"`
	Valence          *float64 `json:"valence"`
}

func (r *trackRecord) features() ([]float64, error) {
	fields := []*float64{
		r.Acousticness, r.Danceability, r.DurationMs, r.Energy,
		r.Instrumentalness, r.Key, r.Liveness, r.Loudness, r.Mode,
		r.Speechiness, r.Tempo, r.TimeSignature, r.Valence,
	}
	out := make([]float64, len(fields))
	for i, f := range fields {
		if f == nil {
			return nil, fmt.Errorf("missing feature %q", pipeline.FeatureNames[i])
		}
		if math.IsNaN(*f) || math.IsInf(*f, 0) {
			return nil, fmt.Errorf("non-finite feature %q", pipeline.FeatureNames[i])
		}
		out[i] = *f
	}
	return out, nil
}

// LoadTracks reads a JSON array of track documents from path and validates
// every record. Any malformed record fails the whole load: a partial batch
// must not reach the pipeline.
func LoadTracks(path string) ([]pipeline.Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}
	defer f.Close()

	var records []trackRecord
	dec := json.NewDecoder(f)
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("ingest: decode %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("ingest: %s contains no tracks", path)
	}

	tracks := make([]pipeline.Track, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for i, rec := range records {
		if rec.TrackID == "" {
			return nil, fmt.Errorf("ingest: record %d has no track_id", i)
		}
		if _, dup := seen[rec.TrackID]; dup {
			return nil, fmt.Errorf("ingest: duplicate track_id %q", rec.TrackID)
		}
		seen[rec.TrackID] = struct{}{}

		feats, err := rec.features()
		if err != nil {
			return nil, fmt.Errorf("ingest: track %q: %w", rec.TrackID, err)
		}
		tracks = append(tracks, pipeline.Track{
			ID:         rec.TrackID,
			Title:      rec.Title,
			Artist:     rec.Artist,
			Album:      rec.Album,
			Popularity: rec.Popularity,
			Features:   feats,
		})
	}
	return tracks, nil
}
