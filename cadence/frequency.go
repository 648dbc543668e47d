// ABOUTME: Reminder cadence date math
// ABOUTME: Computes next due dates and buckets elapsed time into coarse options
package cadence

import (
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/kith/models"
)

// ParseFrequency maps user input onto a known frequency.
func ParseFrequency(s string) (models.Frequency, error) {
	f := models.Frequency(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case models.FrequencyNever, models.FrequencyWeek, models.FrequencyMonth,
		models.Frequency3Months, models.Frequency6Months,
		models.FrequencyYear, models.FrequencyYearly:
		return f, nil
	case "":
		return "", fmt.Errorf("frequency is required")
	}
	return "", fmt.Errorf("unknown frequency %q", s)
}

// Next returns the next due date after ref for frequency f. The second
// return value is false when f is never (or unknown), in which case the
// relationship stops prompting.
func Next(ref time.Time, f models.Frequency) (time.Time, bool) {
	switch f {
	case models.FrequencyWeek:
		return ref.AddDate(0, 0, 7), true
	case models.FrequencyMonth:
		return addMonths(ref, 1), true
	case models.Frequency3Months:
		return addMonths(ref, 3), true
	case models.Frequency6Months:
		return addMonths(ref, 6), true
	case models.FrequencyYear, models.FrequencyYearly:
		return addMonths(ref, 12), true
	}
	return time.Time{}, false
}

// NextPtr is Next shaped for the optional nextReminderDate field.
func NextPtr(ref time.Time, f models.Frequency) *time.Time {
	t, ok := Next(ref, f)
	if !ok {
		return nil
	}
	return &t
}

// addMonths adds n calendar months, keeping the day of month and clamping to
// the last day of the target month. time.AddDate would normalize Jan 31 + 1
// month into March.
func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysIn(first.Year(), first.Month()); d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
