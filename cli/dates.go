// ABOUTME: Date parsing for CLI flags
// ABOUTME: Absolute dates, relative offsets and elapsed buckets
package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/kith/cadence"
)

var localLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

// parseTime reads an absolute date in local time, an RFC 3339 timestamp,
// or an offset from now such as "+2h" or "-90m".
func parseTime(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		d, err := time.ParseDuration(s)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid offset %q: %w", s, err)
		}
		return now.Add(d), nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	if t, ok := cadence.ParseDate(s); ok {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD[ HH:MM], RFC 3339 or +duration)", s)
}

// parsePast also accepts the elapsed buckets: today, yesterday, week,
// month, 3months, 6months and year.
func parsePast(s string, now time.Time) (time.Time, error) {
	if t, ok := cadence.DateForBucket(cadence.Bucket(strings.ToLower(strings.TrimSpace(s))), now); ok {
		return t, nil
	}
	return parseTime(s, now)
}
