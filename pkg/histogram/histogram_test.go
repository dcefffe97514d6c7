package histogram

import (
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/codeGROOVE-dev/avail/pkg/peaks"
)

func entry(hour int, avg, conf float64) peaks.PeakEntry {
	return peaks.PeakEntry{Hour: hour, AverageScore: avg, Confidence: conf}
}

func TestRenderEmpty(t *testing.T) {
	out := Render(nil, nil, nil)
	if !strings.Contains(out, "No availability data yet") {
		t.Errorf("Expected empty-data message, got:\n%s", out)
	}
}

func TestRenderMarkersAndBars(t *testing.T) {
	// Disable color so markers are plain characters in the output.
	old := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = old }()

	entries := []peaks.PeakEntry{
		entry(9, 60, 3.0/7),
		entry(14, 90, 1),
		entry(20, 85, 5.0/7),
	}
	top := entries[1:]
	optimal := &peaks.Recommendation{PeakEntry: entries[2], HoursUntil: 4}

	out := Render(entries, top, optimal)

	if !strings.Contains(out, "14:00 ^") {
		t.Errorf("Expected peak marker on hour 14:\n%s", out)
	}
	if !strings.Contains(out, "20:00 *") {
		t.Errorf("Expected optimal marker on hour 20:\n%s", out)
	}
	if !strings.Contains(out, "7/7") {
		t.Errorf("Expected full confidence label:\n%s", out)
	}
	if !strings.Contains(out, "Limited data") {
		t.Errorf("Expected limited-data banner for 3 observed hours:\n%s", out)
	}

	// Unobserved hours render as a bare label row.
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "03:00") && strings.ContainsAny(line, "█·(") {
			t.Errorf("Hour 03 should be blank: %q", line)
		}
	}
}

func TestRenderNoBannerWithEnoughHours(t *testing.T) {
	old := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = old }()

	var entries []peaks.PeakEntry
	for h := 8; h < 16; h++ {
		entries = append(entries, entry(h, 50+float64(h), 1))
	}

	out := Render(entries, nil, nil)
	if strings.Contains(out, "Limited data") {
		t.Errorf("No banner expected for 8 observed hours:\n%s", out)
	}
}
