package peaks

import "sort"

// maxSamplesPerHour bounds each bucket to roughly one observation per day
// over a trailing week.
const maxSamplesPerHour = 7

// hourHistogram holds a bounded trailing score history per hour of day.
// Buckets are keyed 0-23 and hold scores oldest-first; hours with no
// observations are absent from the map entirely.
type hourHistogram struct {
	buckets map[int][]float64
}

func newHourHistogram() *hourHistogram {
	return &hourHistogram{buckets: make(map[int][]float64)}
}

// record appends score to the bucket for hour, evicting the oldest entry
// when the bucket exceeds maxSamplesPerHour. Eviction order is insertion
// order, never score order.
func (h *hourHistogram) record(hour int, score float64) {
	bucket := append(h.buckets[hour], score)
	if len(bucket) > maxSamplesPerHour {
		bucket = bucket[len(bucket)-maxSamplesPerHour:]
	}
	h.buckets[hour] = bucket
}

// observedHours returns the hours with at least one recorded score,
// sorted ascending for deterministic iteration.
func (h *hourHistogram) observedHours() []int {
	hours := make([]int, 0, len(h.buckets))
	for hour := range h.buckets {
		hours = append(hours, hour)
	}
	sort.Ints(hours)
	return hours
}

// scoresFor returns a copy of the bucket for hour, oldest first.
// The copy keeps readers isolated from a concurrent eviction.
func (h *hourHistogram) scoresFor(hour int) []float64 {
	bucket, ok := h.buckets[hour]
	if !ok {
		return nil
	}
	out := make([]float64, len(bucket))
	copy(out, bucket)
	return out
}
