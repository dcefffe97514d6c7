// Package main implements the avail CLI: it scores availability for the
// current instant, records it into the rolling histogram, and prints the
// peak-period views. With -server it queries a remote avail-server
// instead of scoring locally.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/avail/pkg/availclient"
	"github.com/codeGROOVE-dev/avail/pkg/histogram"
	"github.com/codeGROOVE-dev/avail/pkg/httpcache"
	"github.com/codeGROOVE-dev/avail/pkg/peaks"
	"github.com/codeGROOVE-dev/avail/pkg/scoring"
	"github.com/codeGROOVE-dev/avail/pkg/store"
)

var (
	serverURL = flag.String("server", "", "Query a remote avail-server instead of scoring locally (or set AVAIL_SERVER)")
	limit     = flag.Int("limit", peaks.DefaultPeakLimit, "How many peak periods to list")
	cacheDir  = flag.String("cache-dir", "", "HTTP cache directory for remote mode (or set CACHE_DIR)")
	noCache   = flag.Bool("no-cache", false, "Disable HTTP response caching in remote mode")
	stateFile = flag.String("state-file", "", "Histogram snapshot path (or set AVAIL_STATE)")
	verbose   = flag.Bool("verbose", false, "Enable verbose logging")
	version   = flag.Bool("version", false, "Show version")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Println("avail CLI v1.2.0")
		return
	}

	level := slog.LevelError
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	if *serverURL == "" {
		*serverURL = os.Getenv("AVAIL_SERVER")
	}
	if *cacheDir == "" {
		*cacheDir = os.Getenv("CACHE_DIR")
	}
	if *stateFile == "" {
		*stateFile = os.Getenv("AVAIL_STATE")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var err error
	if *serverURL != "" {
		err = runRemote(ctx, logger)
	} else {
		err = runLocal(logger)
	}
	if err != nil {
		logger.Error("avail failed", "error", err)
		cancel()
		os.Exit(1)
	}
}

func runLocal(logger *slog.Logger) error {
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

	now := time.Now()
	score := engine.Score(now)
	if err := agg.RecordObservation(score, now); err != nil {
		return fmt.Errorf("recording observation: %w", err)
	}

	topPeaks := agg.Peaks(*limit)
	optimal := agg.NextOptimalTime(now)

	printScore(score, now)
	printPeaks(topPeaks)
	printOptimal(optimal)
	fmt.Print(histogram.Render(agg.Peaks(0), topPeaks, optimal))

	if snapshots != nil {
		if err := snapshots.Save(agg.ExportState()); err != nil {
			logger.Warn("snapshot save failed", "error", err)
		}
	}
	return nil
}

func runRemote(ctx context.Context, logger *slog.Logger) error {
	var opts []availclient.Option
	if !*noCache {
		dir := *cacheDir
		if dir == "" {
			if userCacheDir, err := os.UserCacheDir(); err == nil {
				dir = userCacheDir + "/avail"
			}
		}
		if dir != "" {
			cache, err := httpcache.New(ctx, dir, time.Hour, logger)
			if err != nil {
				logger.Warn("cache initialization failed, continuing uncached", "error", err)
			} else {
				defer func() {
					if err := cache.Close(); err != nil {
						logger.Warn("cache close failed", "error", err)
					}
				}()
				opts = append(opts, availclient.WithCache(cache))
			}
		}
	}

	client, err := availclient.New(*serverURL, logger, opts...)
	if err != nil {
		return err
	}

	scoreResp, err := client.Score(ctx)
	if err != nil {
		return fmt.Errorf("fetching score: %w", err)
	}
	printScore(scoreResp.Score, scoreResp.At)

	topPeaks, err := client.Peaks(ctx, *limit)
	if err != nil {
		return fmt.Errorf("fetching peaks: %w", err)
	}
	printPeaks(topPeaks)

	optimal, err := client.OptimalTime(ctx)
	if err != nil {
		return fmt.Errorf("fetching optimal time: %w", err)
	}
	printOptimal(optimal)

	allPeaks, err := client.Peaks(ctx, 24)
	if err != nil {
		return fmt.Errorf("fetching peaks for histogram: %w", err)
	}
	fmt.Print(histogram.Render(allPeaks, topPeaks, optimal))
	return nil
}

func printScore(score float64, at time.Time) {
	fmt.Printf("\n🕐 Availability:  %.1f at %s\n", score, at.Format("Mon 15:04"))
	fmt.Println(strings.Repeat("─", 50))
}

func printPeaks(entries []peaks.PeakEntry) {
	if len(entries) == 0 {
		fmt.Println("⭐ Peak Periods:  no data yet")
		return
	}
	fmt.Println("⭐ Peak Periods")
	for i, e := range entries {
		fmt.Printf("%2d. %s  avg %5.1f  confidence %.2f\n", i+1, e.TimeRange, e.AverageScore, e.Confidence)
	}
}

func printOptimal(rec *peaks.Recommendation) {
	if rec == nil {
		fmt.Println("⏰ Next Optimal:  recommendation unavailable (no data yet)")
		fmt.Println()
		return
	}
	fmt.Printf("⏰ Next Optimal:  %s (in %dh, avg %.1f)\n\n", rec.TimeRange, rec.HoursUntil, rec.AverageScore)
}
