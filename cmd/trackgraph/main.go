package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sanonone/trackgraph/internal/export"
	"github.com/sanonone/trackgraph/internal/ingest"
	"github.com/sanonone/trackgraph/internal/pipeline"
	"github.com/sanonone/trackgraph/internal/server"
	"github.com/sanonone/trackgraph/pkg/graph"
	"github.com/sanonone/trackgraph/pkg/persistence"
)

func main() {
	configPath := flag.String("config", "", "Path to the YAML configuration file")
	inputPath := flag.String("input", "", "Input JSON track batch; runs the pipeline when set")
	httpAddr := flag.String("http-addr", "", "Address for the HTTP API (overrides config)")
	serve := flag.Bool("serve", false, "Serve the query API after startup")
	flag.Parse()

	log := slog.Default()

	cfg, err := server.LoadConfig(*configPath)
	if err != nil {
		log.Error("configuration failed", "error", err)
		os.Exit(1)
	}
	if *httpAddr != "" {
		cfg.HTTPAddr = *httpAddr
	}

	store := graph.NewStore()

	switch {
	case *inputPath != "":
		if err := runPipeline(cfg, store, *inputPath, log); err != nil {
			log.Error("pipeline run failed", "error", err)
			os.Exit(1)
		}
	case *serve:
		// No fresh input: serve the last persisted snapshot.
		snap, err := persistence.LoadSnapshotFile(cfg.SnapshotPath)
		if err != nil {
			log.Error("cannot load snapshot", "path", cfg.SnapshotPath, "error", err)
			os.Exit(1)
		}
		store.Publish(snap)
		log.Info("loaded snapshot", "path", cfg.SnapshotPath, "snapshot", snap.ID, "items", snap.Len())
	default:
		log.Error("nothing to do: pass -input to run the pipeline and/or -serve to start the API")
		os.Exit(1)
	}

	if !*serve {
		return
	}

	srv := server.NewServer(store, cfg.HTTPAddr, log)

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Run(); err != nil {
			log.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-shutdownChan
	log.Info("shutting down")
	if err := srv.Shutdown(); err != nil {
		log.Error("shutdown failed", "error", err)
	}
}

// runPipeline executes a full batch run: ingest, build, publish, persist
// and export. Export targets only see the snapshot after a fully
// successful build.
func runPipeline(cfg server.Config, store *graph.Store, inputPath string, log *slog.Logger) error {
	tracks, err := ingest.LoadTracks(inputPath)
	if err != nil {
		return err
	}
	log.Info("loaded tracks", "count", len(tracks), "input", inputPath)

	runner := pipeline.NewRunner(cfg.Pipeline, store, log)
	snap, err := runner.Run(tracks)
	if err != nil {
		return err
	}

	if cfg.SnapshotPath != "" {
		if err := persistence.SaveSnapshotFile(cfg.SnapshotPath, snap); err != nil {
			return err
		}
		log.Info("snapshot persisted", "path", cfg.SnapshotPath)
	}
	if cfg.ExportDir != "" {
		if err := export.WriteArtifacts(cfg.ExportDir, snap); err != nil {
			return err
		}
		log.Info("artifacts written", "dir", cfg.ExportDir)
	}

	if cfg.Neo4j.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		loader, err := export.NewNeo4jLoader(ctx, cfg.Neo4j, log)
		if err != nil {
			return err
		}
		defer loader.Close(ctx)
		if err := loader.Load(ctx, snap); err != nil {
			return err
		}
	}
	return nil
}
