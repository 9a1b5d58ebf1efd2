package utils

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"solar-telemetry/pkg/events"
	"solar-telemetry/pkg/store"
)

type TypeCount struct {
	Type  string
	Count uint64
}

// SortTypesByCount sorts message types by count (descending), then by name (ascending)
func SortTypesByCount(byType map[string]uint64) []TypeCount {
	var typeCounts []TypeCount
	for typ, count := range byType {
		typeCounts = append(typeCounts, TypeCount{Type: typ, Count: count})
	}

	sort.Slice(typeCounts, func(i, j int) bool {
		if typeCounts[i].Count == typeCounts[j].Count {
			return typeCounts[i].Type < typeCounts[j].Type
		}
		return typeCounts[i].Count > typeCounts[j].Count
	})

	return typeCounts
}

// FormatNumber formats a number with comma separators for readability
func FormatNumber(n uint64) string {
	str := strconv.FormatUint(n, 10)
	if len(str) <= 3 {
		return str
	}

	result := ""
	for i, c := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result += ","
		}
		result += string(c)
	}
	return result
}

// FormatWatts renders a power reading, switching to kW at 1000 W.
func FormatWatts(w float64) string {
	if math.Abs(w) >= 1000 {
		return fmt.Sprintf("%.2f kW", w/1000)
	}
	return fmt.Sprintf("%.0f W", w)
}

func FormatPercent(p float64) string {
	return fmt.Sprintf("%.1f%%", p)
}

func severityRank(s events.Severity) int {
	switch s {
	case events.SeverityCritical:
		return 0
	case events.SeverityWarn:
		return 1
	default:
		return 2
	}
}

// SortAlertsBySeverity returns a copy of alerts ordered most severe first.
// Alerts of equal severity keep their order (newest first as stored).
func SortAlertsBySeverity(alerts []store.AlertEntry) []store.AlertEntry {
	out := make([]store.AlertEntry, len(alerts))
	copy(out, alerts)
	sort.SliceStable(out, func(i, j int) bool {
		return severityRank(out[i].Severity) < severityRank(out[j].Severity)
	})
	return out
}

// CountBySeverity tallies alerts per severity.
func CountBySeverity(alerts []store.AlertEntry) map[events.Severity]int {
	counts := make(map[events.Severity]int)
	for _, a := range alerts {
		counts[a.Severity]++
	}
	return counts
}
