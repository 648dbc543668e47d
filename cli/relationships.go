// ABOUTME: Relationship CLI commands
// ABOUTME: Add, list, show, update, delete and ensure relationships
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/harperreed/kith/cadence"
	"github.com/harperreed/kith/crm"
	"github.com/harperreed/kith/models"
	"github.com/harperreed/kith/tui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var relationshipCmd = &cobra.Command{
	Use:     "relationship",
	Aliases: []string{"rel", "r"},
	Short:   "Manage relationships",
}

// relFlags are shared by add and update.
type relFlags struct {
	frequency  string
	lastSeen   string
	method     string
	tags       string
	notes      string
	phones     string
	emails     string
	website    string
	twitter    string
	instagram  string
	company    string
	jobTitle   string
	address    string
	birthday   string
	spouse     string
	kids       string
	siblings   string
	onConflict string
}

var (
	addRelFlags    relFlags
	updateRelFlags relFlags
	listDue        bool
	listDueWithin  int
	deleteYes      bool
)

func (f *relFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.frequency, "frequency", "", "Reminder cadence: never, week, month, 3months, 6months, year")
	fs.StringVar(&f.lastSeen, "last-contact", "", "Last contact: date or today, yesterday, week, month, 3months, 6months, year")
	fs.StringVar(&f.method, "method", "", "Last contact method: call, text, email, inPerson, other")
	fs.StringVar(&f.tags, "tags", "", "Comma-separated tags")
	fs.StringVar(&f.notes, "notes", "", "Notes")
	fs.StringVar(&f.phones, "phone", "", "Comma-separated phone numbers")
	fs.StringVar(&f.emails, "email", "", "Comma-separated email addresses")
	fs.StringVar(&f.website, "website", "", "Website")
	fs.StringVar(&f.twitter, "twitter", "", "X/Twitter @handle or profile URL")
	fs.StringVar(&f.instagram, "instagram", "", "Instagram @handle or profile URL")
	fs.StringVar(&f.company, "company", "", "Company")
	fs.StringVar(&f.jobTitle, "job-title", "", "Job title")
	fs.StringVar(&f.address, "address", "", "Address")
	fs.StringVar(&f.birthday, "birthday", "", "Birthday (MM/DD/YYYY)")
	fs.StringVar(&f.spouse, "spouse", "", "Spouse or partner")
	fs.StringVar(&f.kids, "kids", "", "Kids")
	fs.StringVar(&f.siblings, "siblings", "", "Siblings")
}

// apply copies the flags the user set onto rel.
func (f *relFlags) apply(cmd *cobra.Command, rel *models.Relationship, now time.Time) error {
	changed := cmd.Flags().Changed
	if changed("frequency") {
		freq, err := cadence.ParseFrequency(f.frequency)
		if err != nil {
			return err
		}
		rel.ReminderFrequency = freq
	}
	if changed("last-contact") {
		t, err := parsePast(f.lastSeen, now)
		if err != nil {
			return err
		}
		rel.LastContactDate = t.UTC()
	}
	set := func(flag string, dst *string, value string) {
		if changed(flag) {
			*dst = strings.TrimSpace(value)
		}
	}
	set("method", &rel.LastContactMethod, f.method)
	set("notes", &rel.Notes, f.notes)
	set("website", &rel.ContactData.Website, f.website)
	set("twitter", &rel.ContactData.Twitter, f.twitter)
	set("instagram", &rel.ContactData.Instagram, f.instagram)
	set("company", &rel.ContactData.Company, f.company)
	set("job-title", &rel.ContactData.JobTitle, f.jobTitle)
	set("address", &rel.ContactData.Address, f.address)
	set("birthday", &rel.ContactData.Birthday, f.birthday)
	set("spouse", &rel.FamilyInfo.Spouse, f.spouse)
	set("kids", &rel.FamilyInfo.Kids, f.kids)
	set("siblings", &rel.FamilyInfo.Siblings, f.siblings)
	if changed("tags") {
		rel.Tags = splitList(f.tags)
	}
	if changed("phone") {
		rel.ContactData.Phones = splitList(f.phones)
	}
	if changed("email") {
		rel.ContactData.Emails = splitList(f.emails)
	}
	return nil
}

var relAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Start tracking a relationship",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRelAdd,
}

func runRelAdd(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
		draft := &models.Relationship{ContactName: strings.Join(args, " ")}
		if err := addRelFlags.apply(cmd, draft, time.Now()); err != nil {
			return err
		}

		rel, err := a.svc.StartRelationship(ctx, draft, crm.ResolveNone)
		var collision *crm.CollisionError
		if errors.As(err, &collision) {
			res, chooseErr := chooseResolution(collision, addRelFlags.onConflict)
			if chooseErr != nil {
				return chooseErr
			}
			rel, err = a.svc.StartRelationship(ctx, draft, res)
			if err == nil && res == crm.ResolveOpenExisting {
				fmt.Printf("Opened existing relationship; edit it with: kith relationship update %s\n\n", rel.ID)
				showRelationship(ctx, a, rel)
				return nil
			}
		}
		if err != nil {
			return err
		}

		printSuccess("Tracking %s (next check-in %s)", rel.ContactName, formatDate(rel.NextReminderDate))
		fmt.Println(dimStyle.Render("id: " + rel.ID))
		return nil
	})
}

// chooseResolution decides how to handle a name collision: from the flag,
// or interactively when stdin is a terminal.
func chooseResolution(c *crm.CollisionError, flag string) (crm.Resolution, error) {
	switch flag {
	case "edit":
		return crm.ResolveOpenExisting, nil
	case "fork":
		return crm.ResolveFork, nil
	case "", "ask":
	default:
		return crm.ResolveNone, fmt.Errorf("invalid --on-conflict %q (want ask, edit or fork)", flag)
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return crm.ResolveNone, fmt.Errorf("%w; rerun with --on-conflict=edit or --on-conflict=fork", c)
	}
	res, err := tui.ChooseResolution(c)
	if err != nil {
		return crm.ResolveNone, err
	}
	if res == crm.ResolveNone {
		return crm.ResolveNone, fmt.Errorf("cancelled")
	}
	return res, nil
}

var relListCmd = &cobra.Command{
	Use:   "list",
	Short: "List relationships",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			now := time.Now()
			var rels []*models.Relationship
			var err error
			if listDue {
				rels, err = a.svc.Relationships.ListDue(ctx, now.AddDate(0, 0, listDueWithin))
			} else {
				rels, err = a.svc.Relationships.List(ctx)
			}
			if err != nil {
				return err
			}
			if len(rels) == 0 {
				fmt.Println("No relationships found.")
				return nil
			}

			w := newTable(os.Stdout)
			fmt.Fprintln(w, "NAME\tLAST CONTACT\tCADENCE\tNEXT\tTAGS")
			for _, rel := range rels {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					rel.ContactName,
					lastContactLabel(rel, now),
					rel.ReminderFrequency,
					dueLabel(rel.NextReminderDate, now),
					joinTags(rel.Tags),
				)
			}
			return w.Flush()
		})
	},
}

// lookupRelationship resolves an id or a case-insensitive name.
func lookupRelationship(ctx context.Context, a *app, arg string) (*models.Relationship, error) {
	rel, err := a.svc.Relationships.Get(ctx, arg)
	if err == nil {
		return rel, nil
	}
	if !errors.Is(err, crm.ErrNotFoundOrAccessDenied) {
		return nil, err
	}
	rel, err = a.svc.Relationships.FindByName(ctx, arg)
	if err != nil {
		return nil, err
	}
	if rel == nil {
		return nil, fmt.Errorf("no relationship named %q", arg)
	}
	return rel, nil
}

var relShowCmd = &cobra.Command{
	Use:   "show <name|id>",
	Short: "Show a relationship and its timeline",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			rel, err := lookupRelationship(ctx, a, strings.Join(args, " "))
			if err != nil {
				return err
			}
			showRelationship(ctx, a, rel)
			return nil
		})
	},
}

func showRelationship(ctx context.Context, a *app, rel *models.Relationship) {
	now := time.Now()
	out := os.Stdout
	fmt.Fprintln(out, successStyle.Render(rel.ContactName))
	printField(out, "ID", rel.ID)
	printField(out, "Last contact", fmt.Sprintf("%s via %s, %s", formatDate(&rel.LastContactDate), rel.LastContactMethod, lastContactLabel(rel, now)))
	printField(out, "Cadence", string(rel.ReminderFrequency))
	printField(out, "Next check-in", dueLabel(rel.NextReminderDate, now))
	printField(out, "Tags", joinTags(rel.Tags))
	printField(out, "Phones", strings.Join(rel.ContactData.Phones, ", "))
	printField(out, "Emails", strings.Join(rel.ContactData.Emails, ", "))
	printField(out, "Company", rel.ContactData.Company)
	printField(out, "Job title", rel.ContactData.JobTitle)
	printField(out, "Website", rel.ContactData.Website)
	printField(out, "Twitter", rel.ContactData.Twitter)
	printField(out, "Instagram", rel.ContactData.Instagram)
	printField(out, "Address", rel.ContactData.Address)
	printField(out, "Birthday", rel.ContactData.Birthday)
	printField(out, "Spouse", rel.FamilyInfo.Spouse)
	printField(out, "Kids", rel.FamilyInfo.Kids)
	printField(out, "Siblings", rel.FamilyInfo.Siblings)
	printField(out, "Notes", rel.Notes)

	acts, err := a.svc.Activities.List(ctx, crm.ActivityFilter{ContactName: rel.ContactName})
	if err != nil {
		fmt.Fprintln(os.Stderr, warnStyle.Render("warning: ")+err.Error())
		return
	}
	if len(acts) == 0 {
		return
	}
	fmt.Fprintln(out)
	w := newTable(out)
	fmt.Fprintln(w, "WHEN\tTYPE\tDETAIL\tID")
	for _, act := range acts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", formatDate(activityTime(act)), act.Type, activitySummary(act), act.ID)
	}
	_ = w.Flush()
}

var relUpdateCmd = &cobra.Command{
	Use:   "update <name|id>",
	Short: "Update a relationship",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			rel, err := lookupRelationship(ctx, a, args[0])
			if err != nil {
				return err
			}
			if len(args) > 1 {
				rel.ContactName = strings.Join(args[1:], " ")
			}
			if err := updateRelFlags.apply(cmd, rel, time.Now()); err != nil {
				return err
			}
			updated, warns, err := a.svc.UpdateRelationship(ctx, rel)
			if err != nil {
				return err
			}
			printWarnings(warns)
			printSuccess("Updated %s (next check-in %s)", updated.ContactName, formatDate(updated.NextReminderDate))
			return nil
		})
	},
}

var relDeleteCmd = &cobra.Command{
	Use:   "delete <name|id>",
	Short: "Delete a relationship with its activities and reminders",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			rel, err := lookupRelationship(ctx, a, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if !deleteYes {
				if !term.IsTerminal(int(os.Stdin.Fd())) {
					return fmt.Errorf("refusing to delete %s without --yes", rel.ContactName)
				}
				ok, err := tui.Confirm(fmt.Sprintf("Delete %s and everything recorded about them?", rel.ContactName))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Println("Cancelled.")
					return nil
				}
			}
			warns, err := a.svc.DeleteRelationship(ctx, rel.ID)
			printWarnings(warns)
			if err != nil {
				return err
			}
			printSuccess("Deleted %s", rel.ContactName)
			return nil
		})
	},
}

var relEnsureCmd = &cobra.Command{
	Use:   "ensure <name>",
	Short: "Create a relationship with default cadence unless one exists",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			name := strings.Join(args, " ")
			source := findContact(ctx, a, name)
			rel := a.svc.Reconciler.EnsureRelationshipExists(ctx, name, source)
			if rel == nil {
				return fmt.Errorf("could not ensure a relationship for %q; see the log for details", name)
			}
			printSuccess("%s (%s)", rel.ContactName, rel.ID)
			return nil
		})
	},
}

func init() {
	addRelFlags.register(relAddCmd)
	relAddCmd.Flags().StringVar(&addRelFlags.onConflict, "on-conflict", "ask", "When the name exists: ask, edit or fork")
	updateRelFlags.register(relUpdateCmd)
	relListCmd.Flags().BoolVar(&listDue, "due", false, "Only relationships due for a check-in")
	relListCmd.Flags().IntVar(&listDueWithin, "within", 0, "With --due, include check-ins due in this many days")
	relDeleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "Skip confirmation")

	relationshipCmd.AddCommand(relAddCmd, relListCmd, relShowCmd, relUpdateCmd, relDeleteCmd, relEnsureCmd)
}
