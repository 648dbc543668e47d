// ABOUTME: Formatting helpers shared by MCP tools
// ABOUTME: Timestamps, warnings and nil-safe slices
package handlers

import (
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/kith/cadence"
	"github.com/harperreed/kith/crm"
)

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// parseDate accepts the stored date shapes and the elapsed bucket names.
func parseDate(s string, now time.Time) (time.Time, error) {
	if t, ok := cadence.DateForBucket(cadence.Bucket(strings.ToLower(strings.TrimSpace(s))), now); ok {
		return t.UTC(), nil
	}
	if t, ok := cadence.ParseDate(s); ok {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func nonNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}

func warningStrings(warns crm.Warnings) []string {
	if len(warns) == 0 {
		return nil
	}
	out := make([]string, len(warns))
	for i, w := range warns {
		out[i] = w.Error()
	}
	return out
}
