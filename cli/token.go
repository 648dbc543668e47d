// ABOUTME: Token subcommand
// ABOUTME: Issues a bearer token for the HTTP API
package cli

import (
	"fmt"
	"time"

	"github.com/harperreed/kith/identity"
	"github.com/spf13/cobra"
)

var (
	tokenSubject string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		subject := tokenSubject
		if subject == "" {
			subject = cfg.UserID
		}
		tok, err := identity.IssueToken(subject, identity.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "User id the token identifies (default: configured user)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 30*24*time.Hour, "Token lifetime")
}
