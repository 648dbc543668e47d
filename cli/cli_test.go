// ABOUTME: Tests for CLI helpers
// ABOUTME: Flag application, date parsing and backups
package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/harperreed/kith/crm"
	"github.com/harperreed/kith/models"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 5, 4, 15, 30, 0, 0, time.Local)

func TestParseTime(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2026-06-01", time.Date(2026, 6, 1, 0, 0, 0, 0, time.Local)},
		{"2026-06-01 09:15", time.Date(2026, 6, 1, 9, 15, 0, 0, time.Local)},
		{"2026-06-01T09:15", time.Date(2026, 6, 1, 9, 15, 0, 0, time.Local)},
		{"+2h", testNow.Add(2 * time.Hour)},
		{"-90m", testNow.Add(-90 * time.Minute)},
		{"2026-06-01T09:15:00Z", time.Date(2026, 6, 1, 9, 15, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseTime(tt.in, testNow)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s want %s", got, tt.want)
		})
	}
}

func TestParseTimeRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "  ", "next tuesday", "+soon"} {
		_, err := parseTime(in, testNow)
		assert.Error(t, err, in)
	}
}

func TestParsePastAcceptsBuckets(t *testing.T) {
	got, err := parsePast("yesterday", testNow)
	require.NoError(t, err)
	assert.Equal(t, "yesterday", lastContactLabel(&models.Relationship{LastContactDate: got}, testNow))

	got, err = parsePast("Today", testNow)
	require.NoError(t, err)
	assert.True(t, got.Equal(testNow))

	got, err = parsePast("2026-01-02", testNow)
	require.NoError(t, err)
	assert.Equal(t, 2026, got.Year())
}

func TestChooseResolutionFromFlag(t *testing.T) {
	collision := &crm.CollisionError{
		Name:     "Jordan Lee",
		Existing: &models.Relationship{ID: "r1", ContactName: "Jordan Lee"},
		ForkName: "Jordan Lee (2026)",
	}

	res, err := chooseResolution(collision, "edit")
	require.NoError(t, err)
	assert.Equal(t, crm.ResolveOpenExisting, res)

	res, err = chooseResolution(collision, "fork")
	require.NoError(t, err)
	assert.Equal(t, crm.ResolveFork, res)

	_, err = chooseResolution(collision, "merge")
	assert.ErrorContains(t, err, "invalid --on-conflict")
}

func TestLastContactLabel(t *testing.T) {
	assert.Equal(t, "-", lastContactLabel(&models.Relationship{}, testNow))
	assert.Equal(t, "today", lastContactLabel(&models.Relationship{LastContactDate: testNow.Add(-time.Hour)}, testNow))
	assert.Equal(t, "20d ago (month)", lastContactLabel(&models.Relationship{LastContactDate: testNow.AddDate(0, 0, -20)}, testNow))
}

func TestUpcomingDropsStaleReminders(t *testing.T) {
	rems := []*models.Reminder{
		{ID: "stale", Date: testNow.AddDate(0, 0, -10)},
		{ID: "recent", Date: testNow.AddDate(0, 0, -2)},
		{ID: "future", Date: testNow.AddDate(0, 0, 3)},
		{ID: "done", Date: testNow.AddDate(0, 0, 4), IsCompleted: true},
	}
	got := upcoming(rems, testNow)
	require.Len(t, got, 2)
	assert.Equal(t, "recent", got[0].ID)
	assert.Equal(t, "future", got[1].ID)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList(" a, ,b ,"))
	assert.Nil(t, splitList(""))
}

func TestRelFlagsApplyOnlyChangedFlags(t *testing.T) {
	var f relFlags
	cmd := &cobra.Command{Use: "test"}
	f.register(cmd)
	require.NoError(t, cmd.Flags().Set("frequency", "week"))
	require.NoError(t, cmd.Flags().Set("tags", "work, climbing"))
	require.NoError(t, cmd.Flags().Set("email", "jordan@example.com"))
	require.NoError(t, cmd.Flags().Set("spouse", " Alex "))
	require.NoError(t, cmd.Flags().Set("twitter", "@jordanlee"))

	rel := &models.Relationship{
		ContactName:       "Jordan Lee",
		ReminderFrequency: models.FrequencyMonth,
		Notes:             "keep me",
	}
	require.NoError(t, f.apply(cmd, rel, testNow))

	assert.Equal(t, models.FrequencyWeek, rel.ReminderFrequency)
	assert.Equal(t, []string{"work", "climbing"}, rel.Tags)
	assert.Equal(t, []string{"jordan@example.com"}, rel.ContactData.Emails)
	assert.Equal(t, "Alex", rel.FamilyInfo.Spouse)
	assert.Equal(t, "@jordanlee", rel.ContactData.Twitter)
	assert.Empty(t, rel.ContactData.Instagram)
	assert.Equal(t, "keep me", rel.Notes)
	assert.True(t, rel.LastContactDate.IsZero())
}

func TestRelFlagsApplyRejectsBadFrequency(t *testing.T) {
	var f relFlags
	cmd := &cobra.Command{Use: "test"}
	f.register(cmd)
	require.NoError(t, cmd.Flags().Set("frequency", "fortnightly"))

	assert.Error(t, f.apply(cmd, &models.Relationship{}, testNow))
}

func TestBackupFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kith.db")

	require.NoError(t, backupFile(path), "missing file needs no backup")

	require.NoError(t, os.WriteFile(path, []byte("data"), 0600))
	require.NoError(t, backupFile(path))

	matches, err := filepath.Glob(path + ".backup.*")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	content, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Equal(t, "data", string(content))
}
