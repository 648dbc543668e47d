// ABOUTME: Tests for cadence date math
// ABOUTME: Covers month clamping, strict ordering and bucket round trips
package cadence

import (
	"testing"
	"time"

	"github.com/harperreed/kith/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 30, 0, 0, time.UTC)
}

func TestNext(t *testing.T) {
	tests := []struct {
		name string
		ref  time.Time
		freq models.Frequency
		want time.Time
	}{
		{"week", date(2024, 1, 10), models.FrequencyWeek, date(2024, 1, 17)},
		{"month", date(2024, 1, 10), models.FrequencyMonth, date(2024, 2, 10)},
		{"month clamps into leap february", date(2024, 1, 31), models.FrequencyMonth, date(2024, 2, 29)},
		{"month clamps into february", date(2023, 1, 31), models.FrequencyMonth, date(2023, 2, 28)},
		{"month clamps to 30 day month", date(2024, 3, 31), models.FrequencyMonth, date(2024, 4, 30)},
		{"3months", date(2024, 1, 10), models.Frequency3Months, date(2024, 4, 10)},
		{"3months clamps", date(2023, 11, 30), models.Frequency3Months, date(2024, 2, 29)},
		{"6months across year", date(2024, 8, 31), models.Frequency6Months, date(2025, 2, 28)},
		{"year", date(2024, 5, 5), models.FrequencyYear, date(2025, 5, 5)},
		{"yearly leap day", date(2024, 2, 29), models.FrequencyYearly, date(2025, 2, 28)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Next(tt.ref, tt.freq)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextNever(t *testing.T) {
	_, ok := Next(date(2024, 1, 10), models.FrequencyNever)
	assert.False(t, ok)
	assert.Nil(t, NextPtr(date(2024, 1, 10), models.FrequencyNever))
}

func TestNextIsStrictlyAfterReference(t *testing.T) {
	freqs := []models.Frequency{
		models.FrequencyWeek, models.FrequencyMonth, models.Frequency3Months,
		models.Frequency6Months, models.FrequencyYear, models.FrequencyYearly,
	}
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	for day := 0; day < 800; day += 3 {
		ref := start.AddDate(0, 0, day)
		for _, f := range freqs {
			got, ok := Next(ref, f)
			require.True(t, ok)
			assert.True(t, got.After(ref), "next(%s, %s) = %s", ref.Format("2006-01-02"), f, got.Format("2006-01-02"))
		}
	}
}

func TestParseFrequency(t *testing.T) {
	f, err := ParseFrequency(" 3Months ")
	require.NoError(t, err)
	assert.Equal(t, models.Frequency3Months, f)

	_, err = ParseFrequency("fortnight")
	assert.Error(t, err)

	_, err = ParseFrequency("")
	assert.Error(t, err)
}
