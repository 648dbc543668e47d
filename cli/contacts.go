// ABOUTME: Device contact directory CLI commands
// ABOUTME: Handles Google OAuth login and contact lookup for relationship defaults
package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/kith/config"
	"github.com/harperreed/kith/contacts"
	"github.com/harperreed/kith/models"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
)

var contactsCmd = &cobra.Command{
	Use:   "contacts",
	Short: "Browse the device contact directory",
}

var contactsListCmd = &cobra.Command{
	Use:   "list [query]",
	Short: "List contacts, optionally filtered by name",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			if !a.directory.Available(ctx) {
				return fmt.Errorf("no contact directory available; set contacts to google and run 'kith contacts login'")
			}
			found, err := contacts.Search(ctx, a.directory, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if len(found) == 0 {
				fmt.Println("No contacts found.")
				return nil
			}
			w := newTable(os.Stdout)
			fmt.Fprintln(w, "NAME\tPHONE\tEMAIL\tBIRTHDAY")
			for _, c := range found {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.Name, first(c.Phones), first(c.Emails), c.Birthday)
			}
			return w.Flush()
		})
	},
}

var contactsLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authorize read-only access to Google Contacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" {
			return fmt.Errorf("google_client_id and google_client_secret must be configured")
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		oauthCfg := contacts.NewOAuthConfig(cfg.GoogleClientID, cfg.GoogleClientSecret)
		token, err := authorize(ctx, oauthCfg)
		if err != nil {
			return err
		}
		if err := contacts.SaveToken(cfg.TokenPath(), token); err != nil {
			return fmt.Errorf("failed to save token: %w", err)
		}
		printSuccess("Authenticated successfully")
		printSuccess("Token saved to %s", cfg.TokenPath())
		if cfg.Contacts != config.ContactsGoogle {
			fmt.Println(dimStyle.Render("Set contacts to \"google\" in your config to use it."))
		}
		return nil
	},
}

// authorize runs the browser consent flow and waits for the redirect on
// the local callback server.
func authorize(ctx context.Context, oauthCfg *oauth2.Config) (*oauth2.Token, error) {
	state := uuid.NewString()
	tokens := make(chan *oauth2.Token, 1)
	errs := make(chan error, 1)
	fail := func(err error) {
		select {
		case errs <- err:
		default:
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/callback", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			fail(errors.New("oauth state mismatch"))
			return
		}
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			fail(errors.New("no authorization code received"))
			return
		}
		token, err := oauthCfg.Exchange(ctx, code)
		if err != nil {
			fail(fmt.Errorf("failed to exchange code: %w", err))
			return
		}
		select {
		case tokens <- token:
		default:
		}
		_, _ = fmt.Fprintf(w, "Authorization successful! You can close this window.")
	})

	server := &http.Server{Addr: contacts.CallbackAddress, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			fail(err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	authURL := oauthCfg.AuthCodeURL(state, oauth2.AccessTypeOffline)
	fmt.Println("Opening browser for Google OAuth...")
	fmt.Printf("\nIf browser doesn't open, visit this URL:\n%s\n\n", authURL)
	_ = openBrowser(authURL)

	select {
	case token := <-tokens:
		return token, nil
	case err := <-errs:
		return nil, fmt.Errorf("OAuth flow failed: %w", err)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func openBrowser(url string) error {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "darwin":
		cmd = "open"
		args = []string{url}
	case "windows":
		cmd = "cmd"
		args = []string{"/c", "start", url}
	default:
		cmd = "xdg-open"
		args = []string{url}
	}

	return exec.Command(cmd, args...).Start()
}

// findContact looks name up in the directory. Lookup failures mean no
// contact data, never a failed command.
func findContact(ctx context.Context, a *app, name string) *models.DeviceContact {
	return contacts.FindByName(ctx, a.directory, name)
}

func first(ss []string) string {
	if len(ss) == 0 {
		return ""
	}
	return ss[0]
}

func init() {
	contactsCmd.AddCommand(contactsListCmd, contactsLoginCmd)
}
