// ABOUTME: Constructs the store, scheduler, directory and service for a command
// ABOUTME: Backend and contact source follow the loaded config
package cli

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/harperreed/kith/charm"
	"github.com/harperreed/kith/config"
	"github.com/harperreed/kith/contacts"
	"github.com/harperreed/kith/crm"
	"github.com/harperreed/kith/db"
	"github.com/harperreed/kith/identity"
	"github.com/harperreed/kith/notify"
)

// app holds everything a command needs. Build it with openApp and release
// it with Close.
type app struct {
	cfg        config.Config
	store      db.Store
	charm      *charm.Client
	dispatcher *notify.LocalDispatcher
	scheduler  *notify.Scheduler
	watcher    *crm.ReminderWatcher
	directory  contacts.Directory
	svc        *crm.Service
}

// openApp wires the service. sink receives delivered notifications; only
// long-running commands pass one. Without a sink no scheduler is wired, so
// reminders are stored without notification handles and the next
// long-running process arms them.
func openApp(ctx context.Context, ids identity.Provider, sink notify.Sink) (*app, error) {
	a := &app{cfg: cfg}
	if ids == nil {
		ids = identity.Static(cfg.UserID)
	}

	switch cfg.Backend {
	case config.BackendCharm:
		client, err := charm.NewClient(&charm.Config{Host: cfg.CharmHost, AutoSync: cfg.CharmAutoSync})
		if err != nil {
			return nil, err
		}
		a.charm = client
		a.store = db.NewKVStore(client)
	default:
		store, err := db.OpenSQLiteStore(cfg.DBPath())
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		a.store = store
	}

	if sink != nil {
		a.dispatcher = notify.NewLocalDispatcher(sink, cfg.PollInterval)
		a.scheduler = notify.NewScheduler(a.dispatcher, cfg.LeadMinutes)
	}
	a.directory = openDirectory(ctx, cfg)
	a.svc = crm.NewService(a.store, ids, a.scheduler, a.directory)
	if a.scheduler != nil {
		a.watcher = crm.NewReminderWatcher(a.svc.Reminders, cfg.WatchInterval)
	}

	log.Debug("opened store", "backend", cfg.Backend, "user", cfg.UserID)
	return a, nil
}

// openDirectory returns the configured contact source, or none when it
// cannot be reached.
func openDirectory(ctx context.Context, cfg config.Config) contacts.Directory {
	if cfg.Contacts != config.ContactsGoogle {
		return contacts.None{}
	}
	token, err := contacts.LoadToken(cfg.TokenPath())
	if err != nil {
		log.Warn("google contacts unavailable", "err", err)
		return contacts.None{}
	}
	oauthCfg := contacts.NewOAuthConfig(cfg.GoogleClientID, cfg.GoogleClientSecret)
	g, err := contacts.NewGoogle(ctx, oauthCfg, token)
	if err != nil {
		log.Warn("google contacts unavailable", "err", err)
		return contacts.None{}
	}
	return g
}

func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			log.Warn("close store", "err", err)
		}
	}
	if a.charm != nil {
		_ = a.charm.Close()
	}
}

// deliver runs the dispatcher and the reminder watcher until ctx is done.
// The watcher arms reminders for the configured user.
func (a *app) deliver(ctx context.Context) {
	if a.dispatcher == nil {
		return
	}
	go a.watcher.Run(identity.WithUser(ctx, a.cfg.UserID))
	a.dispatcher.Run(ctx)
}

// withApp opens the app without notification delivery, runs fn and closes it.
func withApp(cmdCtx context.Context, fn func(ctx context.Context, a *app) error) error {
	return runApp(cmdCtx, nil, fn)
}

// withNotifications is withApp for long-running commands; reminders are
// delivered to the log while fn runs.
func withNotifications(cmdCtx context.Context, fn func(ctx context.Context, a *app) error) error {
	return runApp(cmdCtx, notify.LogSink{}, fn)
}

func runApp(cmdCtx context.Context, sink notify.Sink, fn func(ctx context.Context, a *app) error) error {
	ctx := cmdCtx
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openApp(ctx, nil, sink)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}
