// ABOUTME: Terminal output helpers: styles, tables and warning reporting
// ABOUTME: Overdue items render red, items due this week yellow
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/harperreed/kith/cadence"
	"github.com/harperreed/kith/crm"
	"github.com/harperreed/kith/models"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	overdueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	soonStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	labelStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("170")).Width(16)
)

const dateLayout = "2006-01-02"
const dateTimeLayout = "2006-01-02 15:04"

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func printSuccess(format string, args ...interface{}) {
	fmt.Println(successStyle.Render("✓") + " " + fmt.Sprintf(format, args...))
}

// printWarnings reports best-effort failures without failing the command.
func printWarnings(warns crm.Warnings) {
	for _, w := range warns {
		fmt.Fprintln(os.Stderr, warnStyle.Render("warning: ")+w.Error())
	}
}

func printField(w io.Writer, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintln(w, labelStyle.Render(label)+value)
}

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format(dateLayout)
}

// dueLabel renders a due date coloured by urgency.
func dueLabel(due *time.Time, now time.Time) string {
	if due == nil {
		return dimStyle.Render("never")
	}
	s := due.Local().Format(dateLayout)
	switch {
	case due.Before(now):
		return overdueStyle.Render(s + " (overdue)")
	case due.Before(now.AddDate(0, 0, 7)):
		return soonStyle.Render(s)
	}
	return s
}

func reminderLabel(r *models.Reminder) string {
	s := r.Date.Local().Format(dateTimeLayout)
	switch {
	case r.IsOverdue:
		return overdueStyle.Render(s + " (overdue)")
	case r.IsThisWeek:
		return soonStyle.Render(s)
	}
	return s
}

// lastContactLabel describes how long ago a relationship was last contacted.
func lastContactLabel(rel *models.Relationship, now time.Time) string {
	if rel.LastContactDate.IsZero() {
		return "-"
	}
	days := cadence.ElapsedDays(rel.LastContactDate, now)
	bucket := cadence.BucketForDays(days)
	switch bucket {
	case cadence.BucketToday, cadence.BucketYesterday:
		return string(bucket)
	}
	return fmt.Sprintf("%dd ago (%s)", days, bucket)
}

func joinTags(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	return strings.Join(tags, ",")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
