// Package subscriptions owns recurring charges: their validation, renewal
// date arithmetic, monthly cost normalization and renewal reminders.
package subscriptions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Deepanshu2050/subcription-manager/internal/batch"
	"github.com/Deepanshu2050/subcription-manager/internal/models"
	"github.com/Deepanshu2050/subcription-manager/internal/notify"
	"github.com/Deepanshu2050/subcription-manager/internal/storage"

	"github.com/shopspring/decimal"
)

// DefaultUpcomingDays is the window used when a caller gives no valid one.
const DefaultUpcomingDays = 7

// Options configures a Registry.
type Options struct {
	// Location is the calendar renewals are computed in.
	Location *time.Location
	// Sweep bounds the reminder sweep.
	Sweep batch.Options
	// ReminderCooldown suppresses a reminder when the previous one for the
	// same subscription went out less than this long ago. Zero reminds on
	// every sweep inside the window.
	ReminderCooldown time.Duration
}

// Registry implements subscription operations.
type Registry struct {
	db       *storage.DB
	notifier notify.Notifier
	opts     Options
}

// NewRegistry returns a Registry.
func NewRegistry(db *storage.DB, notifier notify.Notifier, opts Options) *Registry {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Registry{db: db, notifier: notifier, opts: opts}
}

// CreateInput describes a new subscription.
type CreateInput struct {
	ServiceName     string
	Cost            *decimal.Decimal
	BillingCycle    models.BillingCycle
	StartDate       *time.Time
	NextBillingDate *time.Time
	Status          models.SubscriptionStatus
	Category        models.SubscriptionCategory
	ReminderDays    *int
	AutoRenew       *bool
	Notes           string
}

// UpdateInput is a partial update. Only non-nil fields change.
type UpdateInput struct {
	ServiceName     *string
	Cost            *decimal.Decimal
	BillingCycle    *models.BillingCycle
	StartDate       *time.Time
	NextBillingDate *time.Time
	Status          *models.SubscriptionStatus
	Category        *models.SubscriptionCategory
	ReminderDays    *int
	AutoRenew       *bool
	Notes           *string
}

func validate(s *models.Subscription) error {
	if s.ServiceName == "" {
		return models.Invalid("serviceName", "please provide a service name")
	}
	if s.Cost.IsNegative() {
		return models.Invalid("cost", "cost cannot be negative")
	}
	if !s.BillingCycle.Valid() {
		if s.BillingCycle == "" {
			return models.Invalid("billingCycle", "please provide a billing cycle")
		}
		return models.Invalid("billingCycle", "unknown billing cycle %q", s.BillingCycle)
	}
	if !s.Status.Valid() {
		return models.Invalid("status", "unknown status %q", s.Status)
	}
	if !s.Category.Valid() {
		return models.Invalid("category", "unknown category %q", s.Category)
	}
	if s.ReminderDays < 0 {
		return models.Invalid("reminderDays", "cannot be negative")
	}
	return nil
}

// Create stores a new subscription for ownerID.
func (r *Registry) Create(ctx context.Context, ownerID string, in CreateInput) (*models.Subscription, error) {
	if in.Cost == nil {
		return nil, models.Invalid("cost", "please provide the cost")
	}
	if in.StartDate == nil {
		return nil, models.Invalid("startDate", "please provide a start date")
	}
	if in.NextBillingDate == nil {
		return nil, models.Invalid("nextBillingDate", "please provide the next billing date")
	}

	s := &models.Subscription{
		OwnerID:         ownerID,
		ServiceName:     strings.TrimSpace(in.ServiceName),
		Cost:            models.Round2(*in.Cost),
		BillingCycle:    in.BillingCycle,
		StartDate:       *in.StartDate,
		NextBillingDate: *in.NextBillingDate,
		Status:          in.Status,
		Category:        in.Category,
		ReminderDays:    models.DefaultReminderDays,
		AutoRenew:       true,
		Notes:           in.Notes,
	}
	if s.Status == "" {
		s.Status = models.StatusActive
	}
	if s.Category == "" {
		s.Category = models.SubOther
	}
	if in.ReminderDays != nil {
		s.ReminderDays = *in.ReminderDays
	}
	if in.AutoRenew != nil {
		s.AutoRenew = *in.AutoRenew
	}
	if err := validate(s); err != nil {
		return nil, err
	}

	if err := r.db.InsertSubscription(ctx, s); err != nil {
		return nil, fmt.Errorf("creating subscription: %w", err)
	}
	return s, nil
}

// Get returns one of the owner's subscriptions.
func (r *Registry) Get(ctx context.Context, ownerID, id string) (*models.Subscription, error) {
	s, err := r.db.GetSubscription(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := models.CheckOwner(s.OwnerID, ownerID); err != nil {
		return nil, err
	}
	return s, nil
}

// List returns the owner's subscriptions ordered by next billing date,
// optionally filtered by status and category.
func (r *Registry) List(ctx context.Context, ownerID string, status models.SubscriptionStatus, category models.SubscriptionCategory) ([]models.Subscription, error) {
	if status != "" && !status.Valid() {
		return nil, models.Invalid("status", "unknown status %q", status)
	}
	if category != "" && !category.Valid() {
		return nil, models.Invalid("category", "unknown category %q", category)
	}
	return r.db.FindSubscriptions(ctx, storage.SubscriptionFilter{OwnerID: ownerID, Status: status, Category: category})
}

// Update applies a partial update.
func (r *Registry) Update(ctx context.Context, ownerID, id string, in UpdateInput) (*models.Subscription, error) {
	s, err := r.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	if in.ServiceName != nil {
		s.ServiceName = strings.TrimSpace(*in.ServiceName)
	}
	if in.Cost != nil {
		s.Cost = models.Round2(*in.Cost)
	}
	if in.BillingCycle != nil {
		s.BillingCycle = *in.BillingCycle
	}
	if in.StartDate != nil {
		s.StartDate = *in.StartDate
	}
	if in.NextBillingDate != nil {
		s.NextBillingDate = *in.NextBillingDate
	}
	if in.Status != nil {
		s.Status = *in.Status
	}
	if in.Category != nil {
		s.Category = *in.Category
	}
	if in.ReminderDays != nil {
		s.ReminderDays = *in.ReminderDays
	}
	if in.AutoRenew != nil {
		s.AutoRenew = *in.AutoRenew
	}
	if in.Notes != nil {
		s.Notes = *in.Notes
	}
	if err := validate(s); err != nil {
		return nil, err
	}

	if err := r.db.UpdateSubscription(ctx, s); err != nil {
		return nil, fmt.Errorf("updating subscription %s: %w", id, err)
	}
	return s, nil
}

// Delete removes one of the owner's subscriptions.
func (r *Registry) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := r.Get(ctx, ownerID, id); err != nil {
		return err
	}
	return r.db.DeleteSubscription(ctx, id)
}

// ListUpcoming returns the owner's active subscriptions billing within
// [now, now+days], soonest first. days below 1 falls back to
// DefaultUpcomingDays.
func (r *Registry) ListUpcoming(ctx context.Context, ownerID string, days int, now time.Time) ([]models.Subscription, error) {
	if days < 1 {
		days = DefaultUpcomingDays
	}
	return r.db.FindSubscriptions(ctx, storage.SubscriptionFilter{
		OwnerID: ownerID,
		Status:  models.StatusActive,
		DueFrom: now,
		DueTo:   now.AddDate(0, 0, days),
	})
}

// Renew advances the next billing date by one billing cycle, counted from
// the current next billing date.
func (r *Registry) Renew(ctx context.Context, ownerID, id string) (*models.Subscription, error) {
	s, err := r.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	next, err := NextBillingDate(s.NextBillingDate, s.BillingCycle, r.opts.Location)
	if err != nil {
		return nil, err
	}
	if err := r.db.SetNextBillingDate(ctx, id, next); err != nil {
		return nil, fmt.Errorf("renewing subscription %s: %w", id, err)
	}
	s.NextBillingDate = next
	return s, nil
}
