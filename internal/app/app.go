// Package app wires the store, notifiers and services from a Config. Both
// the API server and the operator CLI start from here.
package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/Deepanshu2050/subcription-manager/internal/auth"
	"github.com/Deepanshu2050/subcription-manager/internal/batch"
	"github.com/Deepanshu2050/subcription-manager/internal/budget"
	"github.com/Deepanshu2050/subcription-manager/internal/config"
	"github.com/Deepanshu2050/subcription-manager/internal/ledger"
	"github.com/Deepanshu2050/subcription-manager/internal/models"
	"github.com/Deepanshu2050/subcription-manager/internal/notify"
	"github.com/Deepanshu2050/subcription-manager/internal/scheduler"
	"github.com/Deepanshu2050/subcription-manager/internal/storage"
	"github.com/Deepanshu2050/subcription-manager/internal/subscriptions"
)

// App holds the long-lived services.
type App struct {
	Config        config.Config
	Location      *time.Location
	DB            *storage.DB
	Notifier      notify.Notifier
	Budgets       *budget.Engine
	Ledger        *ledger.Service
	Subscriptions *subscriptions.Registry
}

// New opens the database and builds every service. Close releases it.
func New(cfg config.Config) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	notifier, err := NewNotifier(cfg.Notify)
	if err != nil {
		return nil, err
	}
	db, err := storage.NewDB(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sweep := batch.Options{Workers: cfg.Scheduler.Workers, ItemTimeout: cfg.Scheduler.ItemTimeout.Duration}
	engine := budget.NewEngine(db, notifier, sweep)
	return &App{
		Config:   cfg,
		Location: loc,
		DB:       db,
		Notifier: notifier,
		Budgets:  engine,
		Ledger:   ledger.NewService(db, engine, loc),
		Subscriptions: subscriptions.NewRegistry(db, notifier, subscriptions.Options{
			Location:         loc,
			Sweep:            sweep,
			ReminderCooldown: cfg.Scheduler.ReminderCooldown.Duration,
		}),
	}, nil
}

// Close closes the database.
func (a *App) Close() error {
	return a.DB.Close()
}

// NewNotifier builds a notifier from every channel with credentials. With
// none configured, notifications are only logged.
func NewNotifier(cfg config.NotifyConfig) (notify.Notifier, error) {
	var channels notify.Multi

	if cfg.Email.Host != "" {
		channels = append(channels, notify.NewEmail(notify.EmailConfig{
			Host:     cfg.Email.Host,
			Port:     cfg.Email.Port,
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
			Currency: cfg.Currency,
		}))
	}
	if cfg.Discord.Token != "" {
		d, err := notify.NewDiscord(cfg.Discord.Token, cfg.Discord.ChannelID, cfg.Timeout.Duration, cfg.Currency)
		if err != nil {
			return nil, err
		}
		channels = append(channels, d)
	}
	if cfg.Telegram.Token != "" {
		t, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, cfg.Timeout.Duration, cfg.Currency)
		if err != nil {
			return nil, err
		}
		channels = append(channels, t)
	}

	if len(channels) == 0 {
		log.Printf("No notification channels configured, notifications will be logged")
		return notify.Log{Currency: cfg.Currency}, nil
	}
	return channels, nil
}

// BootstrapAdmin creates the configured admin account when the database has
// no users yet. It reports whether an account was created.
func (a *App) BootstrapAdmin(ctx context.Context) (bool, error) {
	admin := a.Config.Admin
	if admin.User == "" || admin.Password == "" {
		return false, nil
	}

	count, err := a.DB.UserCount(ctx)
	if err != nil {
		return false, fmt.Errorf("counting users: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	hash, err := auth.HashPassword(admin.Password)
	if err != nil {
		return false, fmt.Errorf("failed to hash password: %w", err)
	}
	if _, err := a.DB.CreateUser(ctx, &models.User{Username: admin.User, PasswordHash: hash}); err != nil {
		return false, fmt.Errorf("failed to create admin user: %w", err)
	}
	log.Printf("Created admin user %s", admin.User)
	return true, nil
}

// Scheduler returns a scheduler for the configured sweeps. It is not started.
func (a *App) Scheduler() (*scheduler.Scheduler, error) {
	s := a.Config.Scheduler
	return scheduler.New(scheduler.Options{
		Location:              a.Location,
		BudgetAlerts:          s.BudgetAlerts,
		SubscriptionReminders: s.SubscriptionReminders,
		Reconcile:             s.Reconcile,
	}, a.Budgets, a.Subscriptions, a.Budgets)
}
