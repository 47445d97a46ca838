// Package notify delivers budget alerts and subscription renewal reminders
// over email, Discord, Telegram or the process log.
package notify

import (
	"context"
	"errors"
	"log"

	"github.com/Deepanshu2050/subcription-manager/internal/models"

	"github.com/shopspring/decimal"
)

// Kind identifies what a message is about.
type Kind string

// Message kinds.
const (
	KindBudgetWarning        Kind = "budget_warning"
	KindBudgetCritical       Kind = "budget_critical"
	KindSubscriptionReminder Kind = "subscription_reminder"
)

// BudgetKind maps an alert severity to its message kind.
func BudgetKind(k models.AlertKind) Kind {
	if k == models.AlertCritical {
		return KindBudgetCritical
	}
	return KindBudgetWarning
}

// Message is one notification for one user.
type Message struct {
	Kind Kind
	User models.User

	// Budget alerts.
	Budget *models.Budget
	// Percentage is nil when the budget limit is zero and spending is
	// positive.
	Percentage *decimal.Decimal

	// Subscription reminders.
	Subscription     *models.Subscription
	DaysUntilRenewal int
}

// Notifier sends a message. Implementations must honour ctx cancellation.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Multi fans a message out to every notifier. A message counts as sent once
// any channel accepts it; failures of the other channels are logged. The
// joined errors are returned only when every channel failed.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, msg Message) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 && len(errs) < len(m) {
		log.Printf("notify %s user=%s: %d of %d channels failed: %v", msg.Kind, msg.User.ID, len(errs), len(m), errors.Join(errs...))
		return nil
	}
	return errors.Join(errs...)
}

// Log writes messages to the standard logger. It is the fallback when no
// delivery channel is configured.
type Log struct {
	Currency string
}

// Notify implements Notifier.
func (l Log) Notify(_ context.Context, msg Message) error {
	title, body := renderText(msg, l.Currency)
	log.Printf("notify %s user=%s: %s: %s", msg.Kind, msg.User.ID, title, body)
	return nil
}

// withContext runs a blocking send that has no context support of its own,
// returning early when ctx is done.
func withContext(ctx context.Context, send func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() { done <- send() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
