package subscriptions

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Deepanshu2050/subcription-manager/internal/batch"
	"github.com/Deepanshu2050/subcription-manager/internal/models"
	"github.com/Deepanshu2050/subcription-manager/internal/notify"
	"github.com/Deepanshu2050/subcription-manager/internal/storage"
)

// SweepResult counts the outcome of a reminder sweep.
type SweepResult struct {
	Subscriptions int
	RemindersSent int
	Failed        int
}

// SweepReminders sends a renewal reminder for every active, auto-renewing
// subscription, across all owners, whose next billing date is 1 to
// ReminderDays days after now (rounded up to whole days).
func (r *Registry) SweepReminders(ctx context.Context, now time.Time) (SweepResult, error) {
	autoRenew := true
	subs, err := r.db.FindSubscriptions(ctx, storage.SubscriptionFilter{Status: models.StatusActive, AutoRenew: &autoRenew})
	if err != nil {
		return SweepResult{}, fmt.Errorf("listing renewing subscriptions: %w", err)
	}

	var sent atomic.Int64
	opts := r.opts.Sweep
	opts.Name = "subscription reminders"
	res := batch.ForEach(ctx, subs, opts,
		func(s models.Subscription) string { return "subscription " + s.ID },
		func(ctx context.Context, s models.Subscription) error {
			ok, err := r.remind(ctx, &s, now)
			if ok {
				sent.Add(1)
			}
			return err
		})

	return SweepResult{Subscriptions: len(subs), RemindersSent: int(sent.Load()), Failed: res.Failed}, nil
}

func (r *Registry) remind(ctx context.Context, s *models.Subscription, now time.Time) (bool, error) {
	days := daysUntil(s.NextBillingDate, now)
	if days <= 0 || days > s.ReminderDays {
		return false, nil
	}
	if cd := r.opts.ReminderCooldown; cd > 0 && s.LastReminderSent != nil && now.Sub(*s.LastReminderSent) < cd {
		return false, nil
	}

	user, err := r.db.GetUserByID(ctx, s.OwnerID)
	if err != nil {
		return false, fmt.Errorf("loading owner: %w", err)
	}
	err = r.notifier.Notify(ctx, notify.Message{
		Kind:             notify.KindSubscriptionReminder,
		User:             *user,
		Subscription:     s,
		DaysUntilRenewal: days,
	})
	if err != nil {
		return false, fmt.Errorf("sending reminder: %w", err)
	}
	if err := r.db.MarkReminderSent(ctx, s.ID, now); err != nil {
		return true, fmt.Errorf("recording reminder: %w", err)
	}
	return true, nil
}
