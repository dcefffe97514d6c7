// Package main implements the avail-server: a small JSON API over the
// availability scoring engine and the rolling peak-period histogram.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/codeGROOVE-dev/avail/pkg/peaks"
	"github.com/codeGROOVE-dev/avail/pkg/scoring"
	"github.com/codeGROOVE-dev/avail/pkg/store"
)

var (
	port            = flag.String("port", "8080", "Port for the API server (or set PORT)")
	stateFile       = flag.String("state-file", "", "Histogram snapshot path (or set AVAIL_STATE)")
	observeInterval = flag.Duration("observe-interval", time.Hour, "How often to self-record the current score (0 disables)")
	verbose         = flag.Bool("verbose", false, "Enable verbose logging")
	version         = flag.Bool("version", false, "Show version")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Println("avail-server v1.2.0")
		return
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if os.Getenv("PORT") != "" {
		*port = os.Getenv("PORT")
	}
	if *stateFile == "" {
		*stateFile = os.Getenv("AVAIL_STATE")
	}

	if err := run(logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := scoring.NewEngine(scoring.DefaultWeights(), scoring.DefaultFactors()...)
	if err != nil {
		return fmt.Errorf("building scoring engine: %w", err)
	}

	agg := peaks.New(logger)

	snapshotPath := *stateFile
	if snapshotPath == "" {
		snapshotPath = store.DefaultPath()
	}
	var snapshots *store.SnapshotStore
	if snapshotPath != "" {
		snapshots = store.New(snapshotPath, logger)
		state, err := snapshots.Load()
		if err != nil {
			logger.Warn("snapshot load failed, starting cold", "error", err)
		} else if err := agg.ImportState(state); err != nil {
			logger.Warn("snapshot rejected, starting cold", "error", err)
		}
	}

	srv := newServer(logger, engine, agg)

	if *observeInterval > 0 {
		go selfObserve(ctx, logger, engine, agg, *observeInterval)
	}

	httpServer := &http.Server{
		Addr:              ":" + *port,
		Handler:           srv.routes(),
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "port", *port)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listening on :%s: %w", *port, err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}

	if snapshots != nil {
		if err := snapshots.Save(agg.ExportState()); err != nil {
			logger.Warn("snapshot save failed", "error", err)
		}
	}
	return nil
}

// selfObserve records the engine's score for "now" on a fixed interval
// so the histogram warms up even when no client pushes observations.
// One observation is recorded immediately at startup.
func selfObserve(ctx context.Context, logger *slog.Logger, engine *scoring.Engine, agg *peaks.Aggregator, interval time.Duration) {
	record := func() {
		now := time.Now()
		score := engine.Score(now)
		if err := agg.RecordObservation(score, now); err != nil {
			logger.Error("self-observation failed", "error", err)
			return
		}
		logger.Debug("self-observation recorded", "hour", now.Hour(), "score", score)
	}

	record()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			record()
		}
	}
}
