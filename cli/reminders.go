// ABOUTME: Reminder CLI commands
// ABOUTME: Reminders are reminder-type activities paired with a scheduled Reminder
package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/harperreed/kith/cadence"
	"github.com/harperreed/kith/crm"
	"github.com/harperreed/kith/models"
	"github.com/spf13/cobra"
)

var (
	reminderDue       string
	reminderType      string
	reminderFrequency string
	reminderNotes     string
	reminderTags      string
	reminderAll       bool
)

var reminderCmd = &cobra.Command{
	Use:     "reminder",
	Aliases: []string{"remind"},
	Short:   "Schedule follow-ups",
}

var reminderAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Schedule a follow-up with someone",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			due, err := parseTime(reminderDue, time.Now())
			if err != nil {
				return err
			}
			utc := due.UTC()
			act := &models.Activity{
				Type:         models.ActivityReminder,
				ContactName:  strings.Join(args, " "),
				ReminderDate: &utc,
				ReminderType: reminderType,
				Description:  reminderNotes,
				Tags:         splitList(reminderTags),
			}
			if reminderFrequency != "" {
				freq, err := cadence.ParseFrequency(reminderFrequency)
				if err != nil {
					return err
				}
				act.Frequency = freq
			}

			created, warns, err := a.svc.AddActivity(ctx, act, nil)
			printWarnings(warns)
			if err != nil {
				return err
			}
			printSuccess("Reminder for %s on %s", created.ContactName, created.ReminderDate.Local().Format(dateTimeLayout))
			fmt.Println(dimStyle.Render("id: " + created.ID))
			return nil
		})
	},
}

var reminderListCmd = &cobra.Command{
	Use:   "list",
	Short: "List reminders by due date",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			rems, err := a.svc.Reminders.List(ctx)
			if err != nil {
				return err
			}
			if !reminderAll {
				rems = upcoming(rems, time.Now())
			}
			if len(rems) == 0 {
				fmt.Println("No reminders.")
				return nil
			}
			w := newTable(os.Stdout)
			fmt.Fprintln(w, "DUE\tCONTACT\tTYPE\tREPEATS\tNOTES\tID")
			for _, r := range rems {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					reminderLabel(r), r.ContactName, strings.ReplaceAll(r.Type, "_", " "), r.Frequency, r.Notes, r.ID)
			}
			return w.Flush()
		})
	},
}

// upcoming drops completed reminders and those more than a week overdue.
func upcoming(rems []*models.Reminder, now time.Time) []*models.Reminder {
	cutoff := now.AddDate(0, 0, -7)
	out := rems[:0]
	for _, r := range rems {
		if !r.IsCompleted && r.Date.After(cutoff) {
			out = append(out, r)
		}
	}
	return out
}

// lookupReminderActivity accepts an activity id or a reminder id.
func lookupReminderActivity(ctx context.Context, a *app, id string) (*models.Activity, error) {
	act, err := a.svc.Activities.Get(ctx, id)
	if err == nil {
		return act, nil
	}
	byReminder, findErr := a.svc.Activities.FindByReminderID(ctx, id)
	if findErr != nil {
		return nil, findErr
	}
	if byReminder == nil {
		return nil, err
	}
	return byReminder, nil
}

var reminderEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Change a reminder; notifications are rescheduled",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			act, err := lookupReminderActivity(ctx, a, args[0])
			if err != nil {
				return err
			}
			changed := cmd.Flags().Changed
			if changed("due") {
				due, err := parseTime(reminderDue, time.Now())
				if err != nil {
					return err
				}
				utc := due.UTC()
				act.ReminderDate = &utc
			}
			if changed("frequency") {
				freq, err := cadence.ParseFrequency(reminderFrequency)
				if err != nil {
					return err
				}
				act.Frequency = freq
			}
			if changed("type") {
				act.ReminderType = reminderType
			}
			if changed("notes") {
				act.Description = reminderNotes
			}
			if changed("tags") {
				act.Tags = splitList(reminderTags)
			}

			updated, warns, err := a.svc.Activities.Update(ctx, act)
			printWarnings(warns)
			if err != nil {
				return err
			}
			printSuccess("Reminder for %s now due %s", updated.ContactName, updated.ReminderDate.Local().Format(dateTimeLayout))
			return nil
		})
	},
}

var reminderCompleteCmd = &cobra.Command{
	Use:   "complete <id>",
	Short: "Mark a reminder done; recurring reminders roll forward",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			act, err := lookupReminderActivity(ctx, a, args[0])
			if err != nil {
				return err
			}
			done, warns, err := a.svc.Activities.CompleteReminder(ctx, act.ID)
			printWarnings(warns)
			if err != nil {
				return err
			}
			if done.IsCompleted {
				printSuccess("Completed reminder for %s", done.ContactName)
			} else {
				printSuccess("Done; next reminder for %s on %s", done.ContactName, done.ReminderDate.Local().Format(dateTimeLayout))
			}
			return nil
		})
	},
}

var reminderDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a reminder and cancel its notifications",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			act, err := lookupReminderActivity(ctx, a, args[0])
			var warns crm.Warnings
			if err == nil {
				warns, err = a.svc.Activities.Delete(ctx, act.ID)
			} else {
				warns, err = a.svc.Reminders.Delete(ctx, args[0])
			}
			printWarnings(warns)
			if err != nil {
				return err
			}
			printSuccess("Deleted reminder %s", args[0])
			return nil
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{reminderAddCmd, reminderEditCmd} {
		fs := c.Flags()
		fs.StringVar(&reminderDue, "due", "", "Due date: YYYY-MM-DD HH:MM, RFC 3339 or +duration")
		fs.StringVar(&reminderType, "type", "", "Reminder type (default follow_up)")
		fs.StringVar(&reminderFrequency, "frequency", "", "Repeat: never, week, month, 3months, 6months, year")
		fs.StringVar(&reminderNotes, "notes", "", "Notes")
		fs.StringVar(&reminderTags, "tags", "", "Comma-separated tags")
	}
	_ = reminderAddCmd.MarkFlagRequired("due")
	reminderListCmd.Flags().BoolVar(&reminderAll, "all", false, "Include reminders more than a week overdue")

	reminderCmd.AddCommand(reminderAddCmd, reminderListCmd, reminderEditCmd, reminderCompleteCmd, reminderDeleteCmd)
}
