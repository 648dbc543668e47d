// ABOUTME: Note, interaction and activity timeline CLI commands
// ABOUTME: Recording an activity creates the relationship when it is missing
package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/harperreed/kith/crm"
	"github.com/harperreed/kith/models"
	"github.com/spf13/cobra"
)

var (
	noteContact  string
	noteCategory string
	noteTags     string

	interactionType     string
	interactionWhen     string
	interactionDuration int
	interactionLocation string
	interactionNotes    string
	interactionTags     string

	activityListType     string
	activityListContact  string
	activityListArchived bool
	activityListLimit    int

	activityEditDescription string
	activityEditContent     string
	activityEditWhen        string
	activityEditTags        string
	activityEditLocation    string
)

var noteCmd = &cobra.Command{
	Use:   "note",
	Short: "Record notes",
}

var noteAddCmd = &cobra.Command{
	Use:   "add <text>",
	Short: "Add a note, optionally about a contact",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			act := &models.Activity{
				Type:        models.ActivityNote,
				ContactName: noteContact,
				Content:     strings.Join(args, " "),
				Category:    noteCategory,
				Tags:        splitList(noteTags),
			}
			return addActivity(ctx, a, act)
		})
	},
}

var interactionCmd = &cobra.Command{
	Use:   "interaction",
	Short: "Record interactions",
}

var interactionLogCmd = &cobra.Command{
	Use:   "log <name>",
	Short: "Log a call, text, email or meeting",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			act := &models.Activity{
				Type:            models.ActivityInteraction,
				ContactName:     strings.Join(args, " "),
				InteractionType: interactionType,
				Duration:        interactionDuration,
				Location:        interactionLocation,
				Description:     interactionNotes,
				Tags:            splitList(interactionTags),
			}
			if interactionWhen != "" {
				when, err := parsePast(interactionWhen, time.Now())
				if err != nil {
					return err
				}
				utc := when.UTC()
				act.Date = &utc
			}
			return addActivity(ctx, a, act)
		})
	},
}

func addActivity(ctx context.Context, a *app, act *models.Activity) error {
	created, warns, err := a.svc.AddActivity(ctx, act, nil)
	printWarnings(warns)
	if err != nil {
		return err
	}
	who := ""
	if created.ContactName != "" {
		who = " for " + created.ContactName
	}
	printSuccess("Recorded %s%s", created.Type, who)
	fmt.Println(dimStyle.Render("id: " + created.ID))
	return nil
}

// activityTime is the date an activity is about.
func activityTime(act *models.Activity) *time.Time {
	switch {
	case act.Type == models.ActivityInteraction && act.Date != nil:
		return act.Date
	case act.Type == models.ActivityReminder && act.ReminderDate != nil:
		return act.ReminderDate
	}
	return &act.CreatedAt
}

func activitySummary(act *models.Activity) string {
	var parts []string
	switch act.Type {
	case models.ActivityNote:
		parts = append(parts, act.Content)
	case models.ActivityInteraction:
		parts = append(parts, act.InteractionType)
		if act.Duration > 0 {
			parts = append(parts, fmt.Sprintf("%dm", act.Duration))
		}
		if act.Location != "" {
			parts = append(parts, "@ "+act.Location)
		}
	case models.ActivityReminder:
		parts = append(parts, strings.ReplaceAll(act.ReminderType, "_", " "))
		if act.Frequency != "" && act.Frequency != models.FrequencyNever {
			parts = append(parts, "every "+string(act.Frequency))
		}
		if act.IsCompleted {
			parts = append(parts, "(done)")
		}
	}
	if act.Description != "" && act.Type != models.ActivityNote {
		parts = append(parts, "- "+act.Description)
	}
	s := strings.Join(parts, " ")
	if len(s) > 60 {
		s = s[:57] + "..."
	}
	if act.IsArchived {
		s = dimStyle.Render(s + " [archived]")
	}
	return s
}

var activityCmd = &cobra.Command{
	Use:     "activity",
	Aliases: []string{"act"},
	Short:   "Browse and edit the activity timeline",
}

var activityListCmd = &cobra.Command{
	Use:   "list",
	Short: "List activities, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			acts, err := a.svc.Activities.List(ctx, crm.ActivityFilter{
				Type:            models.ActivityType(activityListType),
				ContactName:     activityListContact,
				IncludeArchived: activityListArchived,
				Limit:           activityListLimit,
			})
			if err != nil {
				return err
			}
			if len(acts) == 0 {
				fmt.Println("No activities found.")
				return nil
			}
			w := newTable(os.Stdout)
			fmt.Fprintln(w, "WHEN\tTYPE\tCONTACT\tDETAIL\tID")
			for _, act := range acts {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					formatDate(activityTime(act)), act.Type, act.ContactName, activitySummary(act), act.ID)
			}
			return w.Flush()
		})
	},
}

var activityEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Edit an activity; reminder edits reschedule notifications",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			act, err := a.svc.Activities.Get(ctx, args[0])
			if err != nil {
				return err
			}
			changed := cmd.Flags().Changed
			if changed("description") {
				act.Description = activityEditDescription
			}
			if changed("content") {
				act.Content = activityEditContent
			}
			if changed("location") {
				act.Location = activityEditLocation
			}
			if changed("tags") {
				act.Tags = splitList(activityEditTags)
			}
			if changed("when") {
				when, err := parseTime(activityEditWhen, time.Now())
				if err != nil {
					return err
				}
				utc := when.UTC()
				switch act.Type {
				case models.ActivityInteraction:
					act.Date = &utc
				case models.ActivityReminder:
					act.ReminderDate = &utc
				default:
					return fmt.Errorf("--when does not apply to %s activities", act.Type)
				}
			}

			updated, warns, err := a.svc.Activities.Update(ctx, act)
			printWarnings(warns)
			if err != nil {
				return err
			}
			printSuccess("Updated %s %s", updated.Type, updated.ID)
			return nil
		})
	},
}

var activityArchiveCmd = &cobra.Command{
	Use:   "archive <id>",
	Short: "Hide an activity from the timeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			if _, err := a.svc.Activities.Archive(ctx, args[0]); err != nil {
				return err
			}
			printSuccess("Archived %s", args[0])
			return nil
		})
	},
}

var activityUnarchiveCmd = &cobra.Command{
	Use:   "unarchive <id>",
	Short: "Restore an archived activity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			if _, err := a.svc.Activities.Unarchive(ctx, args[0]); err != nil {
				return err
			}
			printSuccess("Restored %s", args[0])
			return nil
		})
	},
}

var activityDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an activity and its paired reminder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			warns, err := a.svc.Activities.Delete(ctx, args[0])
			printWarnings(warns)
			if err != nil {
				return err
			}
			printSuccess("Deleted %s", args[0])
			return nil
		})
	},
}

func init() {
	noteAddCmd.Flags().StringVarP(&noteContact, "contact", "c", "", "Contact the note is about")
	noteAddCmd.Flags().StringVar(&noteCategory, "category", "", "Category (default general)")
	noteAddCmd.Flags().StringVar(&noteTags, "tags", "", "Comma-separated tags")
	noteCmd.AddCommand(noteAddCmd)

	fs := interactionLogCmd.Flags()
	fs.StringVarP(&interactionType, "type", "t", models.InteractionCall, "call, text, email or inPerson")
	fs.StringVar(&interactionWhen, "when", "", "When it happened: date or today, yesterday, week, ...")
	fs.IntVar(&interactionDuration, "duration", 0, "Duration in minutes")
	fs.StringVar(&interactionLocation, "location", "", "Where it happened")
	fs.StringVar(&interactionNotes, "notes", "", "What you talked about")
	fs.StringVar(&interactionTags, "tags", "", "Comma-separated tags")
	interactionCmd.AddCommand(interactionLogCmd)

	lf := activityListCmd.Flags()
	lf.StringVar(&activityListType, "type", "", "Only note, interaction or reminder")
	lf.StringVarP(&activityListContact, "contact", "c", "", "Only activities about this contact")
	lf.BoolVar(&activityListArchived, "archived", false, "Include archived activities")
	lf.IntVar(&activityListLimit, "limit", 50, "Maximum number of activities")

	ef := activityEditCmd.Flags()
	ef.StringVar(&activityEditDescription, "description", "", "Description")
	ef.StringVar(&activityEditContent, "content", "", "Note content")
	ef.StringVar(&activityEditWhen, "when", "", "Interaction date or reminder due date")
	ef.StringVar(&activityEditTags, "tags", "", "Comma-separated tags")
	ef.StringVar(&activityEditLocation, "location", "", "Interaction location")

	activityCmd.AddCommand(activityListCmd, activityEditCmd, activityArchiveCmd, activityUnarchiveCmd, activityDeleteCmd)
}
