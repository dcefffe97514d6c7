// Package peaks maintains a rolling per-hour histogram of availability
// scores and derives ranked peak periods and next-optimal-time
// recommendations from it.
package peaks

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"
)

// DefaultPeakLimit is how many ranked entries Peaks returns when the
// caller does not ask for a specific count.
const DefaultPeakLimit = 6

var (
	// ErrInvalidHour reports an hour outside [0,23].
	ErrInvalidHour = errors.New("hour out of range [0,23]")
	// ErrInvalidScore reports a non-finite or negative score.
	ErrInvalidScore = errors.New("score must be finite and non-negative")
)

// PeakEntry is one ranked hour-of-day bucket. Confidence is a
// data-sufficiency proxy (observation count capped at a week), not a
// statistical interval.
type PeakEntry struct {
	Hour         int     `json:"hour"`
	AverageScore float64 `json:"averageScore"`
	Confidence   float64 `json:"confidence"`
	TimeRange    string  `json:"timeRange"`
}

// Recommendation is the nearest future peak period relative to some
// reference instant.
type Recommendation struct {
	PeakEntry
	HoursUntil int `json:"hoursUntil"`
}

// Aggregator owns the hourly score histogram and answers peak-period
// queries over it. It is safe for use from multiple goroutines; a single
// mutex guards all histogram access, which is cheap (buckets hold at most
// seven samples).
//
// A fresh Aggregator is cold: Peaks returns an empty slice and
// NextOptimalTime returns nil until the first observation is recorded.
// Callers must treat those results as "no data yet", never as failure.
type Aggregator struct {
	logger *slog.Logger
	hist   *hourHistogram
	mu     sync.Mutex
}

// New creates an empty Aggregator. A nil logger is replaced with the
// default slog logger.
func New(logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		logger: logger,
		hist:   newHourHistogram(),
	}
}

// RecordObservation records score under the hour-of-day bucket of at.
// This is the only mutation entry point; the histogram is not reachable
// from outside the aggregator. Non-finite or negative scores are
// rejected rather than clamped, since clamping would corrupt the rolling
// average invisibly.
func (a *Aggregator) RecordObservation(score float64, at time.Time) error {
	if err := validateScore(score); err != nil {
		return err
	}
	hour := at.Hour()

	a.mu.Lock()
	a.hist.record(hour, score)
	a.mu.Unlock()

	a.logger.Debug("observation recorded", "hour", hour, "score", score)
	return nil
}

// Peaks returns observed hours ranked by average score, highest first.
// Equal averages tie-break by ascending hour so output order is
// reproducible. At most limit entries are returned; limit <= 0 means all
// observed hours. An empty result means no data yet, not failure.
func (a *Aggregator) Peaks(limit int) []PeakEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rankedLocked(limit)
}

func (a *Aggregator) rankedLocked(limit int) []PeakEntry {
	hours := a.hist.observedHours()
	entries := make([]PeakEntry, 0, len(hours))
	for _, hour := range hours {
		scores := a.hist.scoresFor(hour)
		entries = append(entries, PeakEntry{
			Hour:         hour,
			AverageScore: mean(scores),
			Confidence:   math.Min(float64(len(scores))/maxSamplesPerHour, 1.0),
			TimeRange:    formatTimeRange(hour),
		})
	}

	// Input is pre-sorted by hour, so a stable sort on score alone
	// yields the ascending-hour tie-break.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].AverageScore > entries[j].AverageScore
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

// NextOptimalTime returns the nearest future peak period relative to ref.
// It scans the ranked peaks for the first entry later today; when none
// remains, the earliest peak hour is taken as tomorrow's recommendation
// (wall-clock wrap-around). Returns nil when no observations exist.
func (a *Aggregator) NextOptimalTime(ref time.Time) *Recommendation {
	a.mu.Lock()
	ranked := a.rankedLocked(DefaultPeakLimit)
	a.mu.Unlock()

	if len(ranked) == 0 {
		return nil
	}
	currentHour := ref.Hour()

	// Best-ranked peak still ahead of us today wins outright.
	for _, entry := range ranked {
		if entry.Hour > currentHour {
			return &Recommendation{
				PeakEntry:  entry,
				HoursUntil: entry.Hour - currentHour,
			}
		}
	}

	// Nothing left today: wrap to tomorrow and take the peak closest by
	// wall-clock distance, which is the smallest hour.
	chosen := ranked[0]
	for _, entry := range ranked[1:] {
		if entry.Hour < chosen.Hour {
			chosen = entry
		}
	}
	return &Recommendation{
		PeakEntry:  chosen,
		HoursUntil: (24 - currentHour) + chosen.Hour,
	}
}

// ObservedHours returns the hours with at least one observation, sorted
// ascending.
func (a *Aggregator) ObservedHours() []int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.hist.observedHours()
}

// ScoresFor returns the recorded scores for hour, oldest first, or an
// error if hour is outside [0,23]. The result is a copy.
func (a *Aggregator) ScoresFor(hour int) ([]float64, error) {
	if hour < 0 || hour > 23 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidHour, hour)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.hist.scoresFor(hour), nil
}

// ExportState snapshots the histogram as hour -> scores (oldest first)
// for an external store. The returned map shares no memory with the
// aggregator.
func (a *Aggregator) ExportState() map[int][]float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	state := make(map[int][]float64, len(a.hist.buckets))
	for _, hour := range a.hist.observedHours() {
		state[hour] = a.hist.scoresFor(hour)
	}
	return state
}

// ImportState replaces the histogram with state, validating every hour
// and score first so a corrupt snapshot cannot poison the averages.
// Sequences longer than the per-hour bound keep their newest entries,
// matching what recording them in order would have produced.
func (a *Aggregator) ImportState(state map[int][]float64) error {
	for hour, scores := range state {
		if hour < 0 || hour > 23 {
			return fmt.Errorf("%w: %d", ErrInvalidHour, hour)
		}
		for _, score := range scores {
			if err := validateScore(score); err != nil {
				return fmt.Errorf("hour %d: %w", hour, err)
			}
		}
	}

	hist := newHourHistogram()
	for hour, scores := range state {
		for _, score := range scores {
			hist.record(hour, score)
		}
	}

	a.mu.Lock()
	a.hist = hist
	a.mu.Unlock()

	a.logger.Debug("state imported", "hours", len(state))
	return nil
}

// Reset discards all observations, returning the aggregator to its cold
// state. This is the only operation that forgets data system-wide;
// nothing else ever calls it.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	a.hist = newHourHistogram()
	a.mu.Unlock()

	a.logger.Info("histogram reset")
}

func validateScore(score float64) error {
	if math.IsNaN(score) || math.IsInf(score, 0) || score < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidScore, score)
	}
	return nil
}

func mean(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}

func formatTimeRange(hour int) string {
	return fmt.Sprintf("%02d:00 - %02d:00", hour, (hour+1)%24)
}
