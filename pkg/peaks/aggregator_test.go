package peaks

import (
	"errors"
	"math"
	"testing"
	"time"
)

// atHour builds a timestamp whose local hour-of-day is h.
func atHour(h int) time.Time {
	return time.Date(2025, 6, 10, h, 30, 0, 0, time.UTC)
}

func TestRecordObservationFIFO(t *testing.T) {
	agg := New(nil)

	scores := []float64{10, 20, 30, 40, 50, 60, 70, 80}
	for _, s := range scores {
		if err := agg.RecordObservation(s, atHour(9)); err != nil {
			t.Fatalf("RecordObservation(%v) failed: %v", s, err)
		}
	}

	got, err := agg.ScoresFor(9)
	if err != nil {
		t.Fatalf("ScoresFor(9) failed: %v", err)
	}
	want := []float64{20, 30, 40, 50, 60, 70, 80}
	if len(got) != len(want) {
		t.Fatalf("Expected %d scores after eviction, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Score %d: expected %v, got %v (oldest must be evicted first)", i, want[i], got[i])
		}
	}
}

func TestRecordObservationRejectsBadScores(t *testing.T) {
	agg := New(nil)

	for _, score := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), -0.5} {
		if err := agg.RecordObservation(score, atHour(12)); !errors.Is(err, ErrInvalidScore) {
			t.Errorf("Expected ErrInvalidScore for %v, got %v", score, err)
		}
	}
	if len(agg.ObservedHours()) != 0 {
		t.Error("Rejected observations must not create buckets")
	}
}

func TestConfidence(t *testing.T) {
	agg := New(nil)

	for k := 1; k <= 9; k++ {
		if err := agg.RecordObservation(50, atHour(14)); err != nil {
			t.Fatalf("RecordObservation failed: %v", err)
		}
		entries := agg.Peaks(1)
		if len(entries) != 1 {
			t.Fatalf("Expected one entry, got %d", len(entries))
		}
		want := math.Min(float64(k)/7, 1.0)
		if entries[0].Confidence != want {
			t.Errorf("After %d observations: confidence = %v, want %v", k, entries[0].Confidence, want)
		}
	}
}

func TestPeaksRankingAndLimit(t *testing.T) {
	agg := New(nil)

	for _, s := range []float64{80, 80} {
		if err := agg.RecordObservation(s, atHour(10)); err != nil {
			t.Fatalf("RecordObservation failed: %v", err)
		}
	}
	if err := agg.RecordObservation(90, atHour(14)); err != nil {
		t.Fatalf("RecordObservation failed: %v", err)
	}

	entries := agg.Peaks(2)
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].Hour != 14 || entries[0].AverageScore != 90 {
		t.Errorf("Top peak: expected hour 14 avg 90, got hour %d avg %v", entries[0].Hour, entries[0].AverageScore)
	}
	if entries[1].Hour != 10 || entries[1].AverageScore != 80 {
		t.Errorf("Second peak: expected hour 10 avg 80, got hour %d avg %v", entries[1].Hour, entries[1].AverageScore)
	}
	if want := 1.0 / 7; entries[0].Confidence != want {
		t.Errorf("Hour 14 confidence: expected %v, got %v", want, entries[0].Confidence)
	}
	if want := 2.0 / 7; entries[1].Confidence != want {
		t.Errorf("Hour 10 confidence: expected %v, got %v", want, entries[1].Confidence)
	}
	if entries[0].TimeRange != "14:00 - 15:00" {
		t.Errorf("Expected time range \"14:00 - 15:00\", got %q", entries[0].TimeRange)
	}

	if got := agg.Peaks(1); len(got) != 1 {
		t.Errorf("Peaks(1) returned %d entries", len(got))
	}

	observed := map[int]bool{}
	for _, h := range agg.ObservedHours() {
		observed[h] = true
	}
	for _, e := range agg.Peaks(0) {
		if !observed[e.Hour] {
			t.Errorf("Peaks returned unobserved hour %d", e.Hour)
		}
	}
}

func TestPeaksTieBreakAscendingHour(t *testing.T) {
	agg := New(nil)

	// Equal averages across three hours, recorded out of order.
	for _, h := range []int{17, 3, 11} {
		if err := agg.RecordObservation(75, atHour(h)); err != nil {
			t.Fatalf("RecordObservation failed: %v", err)
		}
	}

	first := agg.Peaks(0)
	wantOrder := []int{3, 11, 17}
	for i, h := range wantOrder {
		if first[i].Hour != h {
			t.Errorf("Tie-break position %d: expected hour %d, got %d", i, h, first[i].Hour)
		}
	}

	// Determinism: a second call with no intervening writes is identical.
	second := agg.Peaks(0)
	if len(first) != len(second) {
		t.Fatalf("Repeated Peaks() lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("Entry %d differs between calls: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestColdState(t *testing.T) {
	agg := New(nil)

	if entries := agg.Peaks(DefaultPeakLimit); len(entries) != 0 {
		t.Errorf("Cold aggregator: expected empty peaks, got %d entries", len(entries))
	}
	if rec := agg.NextOptimalTime(atHour(12)); rec != nil {
		t.Errorf("Cold aggregator: expected nil recommendation, got %+v", rec)
	}
}

func TestNextOptimalTimeSameDay(t *testing.T) {
	agg := New(nil)

	if err := agg.RecordObservation(80, atHour(10)); err != nil {
		t.Fatalf("RecordObservation failed: %v", err)
	}
	if err := agg.RecordObservation(90, atHour(14)); err != nil {
		t.Fatalf("RecordObservation failed: %v", err)
	}

	rec := agg.NextOptimalTime(atHour(9))
	if rec == nil {
		t.Fatal("Expected a recommendation, got nil")
	}
	if rec.Hour != 14 {
		t.Errorf("Expected best-ranked future hour 14, got %d", rec.Hour)
	}
	if rec.HoursUntil != 5 {
		t.Errorf("Expected 5 hours until, got %d", rec.HoursUntil)
	}

	// Between the two peaks only hour 14 remains ahead.
	rec = agg.NextOptimalTime(atHour(12))
	if rec == nil || rec.Hour != 14 || rec.HoursUntil != 2 {
		t.Errorf("Expected hour 14 in 2 hours, got %+v", rec)
	}
}

func TestNextOptimalTimeWrapAround(t *testing.T) {
	agg := New(nil)

	if err := agg.RecordObservation(90, atHour(2)); err != nil {
		t.Fatalf("RecordObservation failed: %v", err)
	}
	if err := agg.RecordObservation(95, atHour(22)); err != nil {
		t.Fatalf("RecordObservation failed: %v", err)
	}

	rec := agg.NextOptimalTime(atHour(23))
	if rec == nil {
		t.Fatal("Expected a recommendation, got nil")
	}
	if rec.Hour != 2 {
		t.Errorf("Wrap-around must pick the nearest next-day hour 2, got %d", rec.Hour)
	}
	if rec.HoursUntil != 3 {
		t.Errorf("Expected 3 hours until, got %d", rec.HoursUntil)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	agg := New(nil)

	for h, scores := range map[int][]float64{
		6:  {40, 55, 61},
		13: {88, 92},
		21: {70},
	} {
		for _, s := range scores {
			if err := agg.RecordObservation(s, atHour(h)); err != nil {
				t.Fatalf("RecordObservation failed: %v", err)
			}
		}
	}
	want := agg.Peaks(0)

	restored := New(nil)
	if err := restored.ImportState(agg.ExportState()); err != nil {
		t.Fatalf("ImportState failed: %v", err)
	}
	got := restored.Peaks(0)

	if len(got) != len(want) {
		t.Fatalf("Round trip changed entry count: %d vs %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Entry %d differs after round trip: %+v vs %+v", i, got[i], want[i])
		}
	}
}

func TestImportStateValidation(t *testing.T) {
	t.Run("Invalid hour", func(t *testing.T) {
		agg := New(nil)
		err := agg.ImportState(map[int][]float64{24: {50}})
		if !errors.Is(err, ErrInvalidHour) {
			t.Errorf("Expected ErrInvalidHour, got %v", err)
		}
	})

	t.Run("Non-finite score", func(t *testing.T) {
		agg := New(nil)
		err := agg.ImportState(map[int][]float64{5: {math.NaN()}})
		if !errors.Is(err, ErrInvalidScore) {
			t.Errorf("Expected ErrInvalidScore, got %v", err)
		}
	})

	t.Run("Overlong sequence keeps newest", func(t *testing.T) {
		agg := New(nil)
		if err := agg.ImportState(map[int][]float64{5: {1, 2, 3, 4, 5, 6, 7, 8, 9}}); err != nil {
			t.Fatalf("ImportState failed: %v", err)
		}
		scores, err := agg.ScoresFor(5)
		if err != nil {
			t.Fatalf("ScoresFor failed: %v", err)
		}
		if len(scores) != 7 || scores[0] != 3 || scores[6] != 9 {
			t.Errorf("Expected newest 7 entries [3..9], got %v", scores)
		}
	})

	t.Run("Failed import leaves state untouched", func(t *testing.T) {
		agg := New(nil)
		if err := agg.RecordObservation(77, atHour(8)); err != nil {
			t.Fatalf("RecordObservation failed: %v", err)
		}
		if err := agg.ImportState(map[int][]float64{-1: {50}}); err == nil {
			t.Fatal("Expected error for invalid hour")
		}
		if entries := agg.Peaks(0); len(entries) != 1 || entries[0].Hour != 8 {
			t.Errorf("Existing state lost after failed import: %+v", entries)
		}
	})
}

func TestScoresForInvalidHour(t *testing.T) {
	agg := New(nil)
	if _, err := agg.ScoresFor(24); !errors.Is(err, ErrInvalidHour) {
		t.Errorf("Expected ErrInvalidHour for hour 24, got %v", err)
	}
	if _, err := agg.ScoresFor(-1); !errors.Is(err, ErrInvalidHour) {
		t.Errorf("Expected ErrInvalidHour for hour -1, got %v", err)
	}
}

func TestReset(t *testing.T) {
	agg := New(nil)
	if err := agg.RecordObservation(60, atHour(15)); err != nil {
		t.Fatalf("RecordObservation failed: %v", err)
	}

	agg.Reset()

	if entries := agg.Peaks(0); len(entries) != 0 {
		t.Errorf("Expected cold state after reset, got %d entries", len(entries))
	}
	if rec := agg.NextOptimalTime(atHour(12)); rec != nil {
		t.Errorf("Expected nil recommendation after reset, got %+v", rec)
	}
}
