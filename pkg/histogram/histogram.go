// Package histogram renders per-hour availability averages as a colored
// terminal chart.
package histogram

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/codeGROOVE-dev/avail/pkg/peaks"
)

const barWidth = 40

// Render draws a 24-row chart of average scores. Entries from top get a
// yellow "^" marker, the optimal hour gets a green "*", and hours with
// no observations stay blank.
func Render(entries, top []peaks.PeakEntry, optimal *peaks.Recommendation) string {
	var output strings.Builder

	output.WriteString("📊 Availability by Hour\n")
	output.WriteString(strings.Repeat("─", 50) + "\n")

	byHour := make(map[int]peaks.PeakEntry, len(entries))
	maxAvg := 0.0
	for _, e := range entries {
		byHour[e.Hour] = e
		if e.AverageScore > maxAvg {
			maxAvg = e.AverageScore
		}
	}

	if len(entries) < 6 {
		output.WriteString(fmt.Sprintf("⚠️  Limited data: only %d of 24 hours observed\n", len(entries)))
		output.WriteString(strings.Repeat("─", 50) + "\n")
	}
	if maxAvg == 0 {
		return output.String() + "No availability data yet\n"
	}

	peakHours := make(map[int]bool, len(top))
	for _, e := range top {
		peakHours[e.Hour] = true
	}

	grey := color.New(color.FgHiBlack)
	yellow := color.New(color.FgYellow)
	green := color.New(color.FgGreen)

	for hour := range 24 {
		line := fmt.Sprintf("%02d:00 ", hour)

		// Marker column is fixed width: colored character plus a space,
		// or two spaces when unmarked.
		switch {
		case optimal != nil && optimal.Hour == hour:
			line += green.Sprint("*") + " "
		case peakHours[hour]:
			line += yellow.Sprint("^") + " "
		default:
			line += "  "
		}

		entry, observed := byHour[hour]
		if !observed {
			output.WriteString(line + "\n")
			continue
		}

		line += fmt.Sprintf("(%5.1f %s) ", entry.AverageScore, confidenceLabel(entry.Confidence))

		barLength := int(entry.AverageScore / maxAvg * barWidth)
		switch {
		case barLength <= 0:
			line += grey.Sprint("·")
		default:
			line += grey.Sprint(strings.Repeat("█", barLength))
		}

		output.WriteString(line + "\n")
	}

	return output.String()
}

// confidenceLabel renders confidence as observed-sample sevenths, the
// unit the aggregator counts in.
func confidenceLabel(confidence float64) string {
	sevenths := int(confidence*7 + 0.5)
	if sevenths > 7 {
		sevenths = 7
	}
	return fmt.Sprintf("%d/7", sevenths)
}
