// Package server exposes the query engine over HTTP: recommendation
// traversal, triangle patterns, centrality rankings, cluster navigation and
// run statistics. It is a thin routing layer; all graph semantics live in
// pkg/graph.
package server

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sanonone/trackgraph/internal/export"
	"github.com/sanonone/trackgraph/internal/pipeline"
)

// Config is the top-level YAML configuration of the trackgraph binary.
type Config struct {
	HTTPAddr     string `yaml:"http_addr"`
	ExportDir    string `yaml:"export_dir"`
	SnapshotPath string `yaml:"snapshot_path"`

	Pipeline pipeline.Config    `yaml:"pipeline"`
	Neo4j    export.Neo4jConfig `yaml:"neo4j"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:     ":9290",
		ExportDir:    "data/processed",
		SnapshotPath: "data/trackgraph.tgs",
		Pipeline:     pipeline.DefaultConfig(),
	}
}

// LoadConfig reads and parses the YAML configuration file. Strict mode
// (KnownFields) turns typos into load errors instead of silently ignored
// settings.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
