package qti

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
)

// ISO 8601 duration as recorded for the built-in duration variable.
// Year/month designators are not accepted: they have no fixed length and the
// platform never records them for item durations.
var durationPattern = regexp.MustCompile(
	`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+(?:\.\d+)?)S)?)?$`)

// FormatDuration converts an ISO 8601 duration into seconds with exactly
// three decimal digits, rounding half up ("PT5S" -> "5.000",
// "PT1M73.022223S" -> "133.022"). ok is false for anything that is not a
// duration.
func FormatDuration(raw string) (string, bool) {
	seconds, err := parseDurationSeconds(raw)
	if err != nil {
		return "", false
	}
	rounded := math.Round(seconds*1000) / 1000
	return strconv.FormatFloat(rounded, 'f', 3, 64), true
}

func parseDurationSeconds(raw string) (float64, error) {
	if raw == "" || raw == "P" || raw == "PT" {
		return 0, fmt.Errorf("empty duration %q", raw)
	}
	m := durationPattern.FindStringSubmatch(raw)
	if m == nil {
		return 0, fmt.Errorf("malformed duration %q", raw)
	}

	var total float64
	if m[1] != "" {
		d, _ := strconv.ParseFloat(m[1], 64)
		total += d * 86400
	}
	if m[2] != "" {
		h, _ := strconv.ParseFloat(m[2], 64)
		total += h * 3600
	}
	if m[3] != "" {
		min, _ := strconv.ParseFloat(m[3], 64)
		total += min * 60
	}
	if m[4] != "" {
		s, err := strconv.ParseFloat(m[4], 64)
		if err != nil {
			return 0, fmt.Errorf("malformed seconds in %q: %w", raw, err)
		}
		total += s
	}
	return total, nil
}
