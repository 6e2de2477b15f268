package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/sanonone/trackgraph/pkg/graph"
)

// Neo4jConfig configures the optional graph-store loader.
type Neo4jConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URI      string `yaml:"uri"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// neo4jBatchSize bounds the UNWIND parameter lists per transaction.
const neo4jBatchSize = 1000

// Neo4jLoader bulk-loads a snapshot into a Neo4j instance. The driver is
// acquired once at construction and released by Close; it is passed in
// explicitly rather than held as process-global state.
type Neo4jLoader struct {
	driver   neo4j.DriverWithContext
	database string
	log      *slog.Logger
}

// NewNeo4jLoader connects to the configured instance and verifies
// connectivity before returning.
func NewNeo4jLoader(ctx context.Context, cfg Neo4jConfig, log *slog.Logger) (*Neo4jLoader, error) {
	if log == nil {
		log = slog.Default()
	}
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""), func(c *neo4j.Config) {
		c.SocketConnectTimeout = 10 * time.Second
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j: init driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4j: verify connectivity: %w", err)
	}
	return &Neo4jLoader{driver: driver, database: cfg.Database, log: log}, nil
}

// Close releases the driver.
func (l *Neo4jLoader) Close(ctx context.Context) error {
	return l.driver.Close(ctx)
}

// Load replaces the Track graph in Neo4j with the snapshot contents:
// constraint setup, node MERGE batches, then relationship batches. Edges are
// written once in canonical orientation; traversal treats them as
// undirected.
func (l *Neo4jLoader) Load(ctx context.Context, snap *graph.Snapshot) error {
	session := l.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: l.database})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx,
			"CREATE CONSTRAINT track_id_unique IF NOT EXISTS FOR (t:Track) REQUIRE t.track_id IS UNIQUE", nil)
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("neo4j: constraints: %w", err)
	}

	var nodes []map[string]any
	snap.Ascend(func(it *graph.Item) bool {
		nodes = append(nodes, map[string]any{
			"track_id":   it.ID,
			"title":      it.Title,
			"artist":     it.Artist,
			"cluster_id": it.Cluster,
			"popularity": it.Popularity,
		})
		return true
	})
	if err := l.runBatches(ctx, session, nodes, `
		UNWIND $rows AS row
		MERGE (t:Track {track_id: row.track_id})
		SET t.title = row.title,
		    t.artist = row.artist,
		    t.cluster_id = row.cluster_id,
		    t.popularity = row.popularity`); err != nil {
		return fmt.Errorf("neo4j: nodes: %w", err)
	}

	edges := snap.Edges()
	rows := make([]map[string]any, len(edges))
	for i, e := range edges {
		rows[i] = map[string]any{
			"source":     e.Source,
			"target":     e.Target,
			"similarity": e.Score,
		}
	}
	if err := l.runBatches(ctx, session, rows, `
		UNWIND $rows AS row
		MATCH (a:Track {track_id: row.source})
		MATCH (b:Track {track_id: row.target})
		MERGE (a)-[r:SIMILAR_TO]->(b)
		SET r.similarity = row.similarity`); err != nil {
		return fmt.Errorf("neo4j: edges: %w", err)
	}

	l.log.Info("neo4j load complete", "snapshot", snap.ID, "nodes", len(nodes), "edges", len(edges))
	return nil
}

func (l *Neo4jLoader) runBatches(ctx context.Context, session neo4j.SessionWithContext, rows []map[string]any, query string) error {
	for start := 0; start < len(rows); start += neo4jBatchSize {
		end := min(start+neo4jBatchSize, len(rows))
		batch := rows[start:end]
		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			_, err := tx.Run(ctx, query, map[string]any{"rows": batch})
			return nil, err
		})
		if err != nil {
			return err
		}
	}
	return nil
}
