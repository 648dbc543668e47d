// ABOUTME: HTTP API server subcommand
// ABOUTME: Runs the API, the notification dispatcher and graceful shutdown
package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harperreed/kith/identity"
	"github.com/harperreed/kith/notify"
	"github.com/harperreed/kith/web"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and deliver reminder notifications",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	addr := cfg.HTTPAddress
	if serveAddr != "" {
		addr = serveAddr
	}

	// With a secret, every request names its user in a bearer token.
	var ids identity.Provider = identity.Fallback{Default: identity.Static(cfg.UserID)}
	auth := identity.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}
	if auth.Secret != "" {
		ids = identity.FromContext{}
	} else {
		log.Warn("no jwt_secret configured; API is unauthenticated", "user", cfg.UserID)
	}

	hub := web.NewHub()
	a, err := openApp(cmd.Context(), ids, notify.MultiSink{notify.LogSink{}, hub})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              addr,
		Handler:           web.New(a.svc, ids, hub, web.Options{Version: VersionString(), Auth: auth}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	// Pending notifications live in memory; the watcher re-arms them from
	// the store and picks up reminders written by other kith commands.
	g.Go(func() error {
		a.deliver(ctx)
		return nil
	})
	g.Go(func() error {
		log.Info("kith API listening", "addr", "http://"+addr, "version", VersionString())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config)")
}
