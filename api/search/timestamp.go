package search

import "fmt"

// FormatTimestamp converts seconds to HH:MM:SS.
func FormatTimestamp(seconds float64) string {
	hours := int(seconds) / 3600
	minutes := (int(seconds) % 3600) / 60
	secs := int(seconds) % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
}

// timestampRange builds the "HH:MM:SS - HH:MM:SS" display string from
// start_time/end_time metadata, or "" when either is absent.
func timestampRange(metadata map[string]any) string {
	start, ok := metadataSeconds(metadata, "start_time")
	if !ok {
		return ""
	}
	end, ok := metadataSeconds(metadata, "end_time")
	if !ok {
		return ""
	}
	return FormatTimestamp(start) + " - " + FormatTimestamp(end)
}

func metadataSeconds(metadata map[string]any, key string) (float64, bool) {
	v, ok := metadata[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
