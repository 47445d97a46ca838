// Package budget owns budget periods: it keeps each active budget's running
// spend current, classifies spending against the alert thresholds and sends
// at most one alert per severity per day.
package budget

import (
	"context"
	"fmt"
	"time"

	"github.com/Deepanshu2050/subcription-manager/internal/batch"
	"github.com/Deepanshu2050/subcription-manager/internal/models"
	"github.com/Deepanshu2050/subcription-manager/internal/notify"
	"github.com/Deepanshu2050/subcription-manager/internal/storage"

	"github.com/shopspring/decimal"
)

// AlertInterval is the minimum spacing between two alerts of the same
// severity for one budget.
const AlertInterval = 24 * time.Hour

// Engine implements budget operations over the store.
type Engine struct {
	db       *storage.DB
	notifier notify.Notifier
	sweep    batch.Options
}

// NewEngine returns an Engine. sweep bounds the concurrency and per-budget
// timeout of SweepAlerts and Reconcile.
func NewEngine(db *storage.DB, notifier notify.Notifier, sweep batch.Options) *Engine {
	return &Engine{db: db, notifier: notifier, sweep: sweep}
}

// ThresholdsInput carries optional alert thresholds.
type ThresholdsInput struct {
	Warning  *int
	Critical *int
}

// CreateInput describes a new budget. Nil fields take their defaults; the
// limit and both dates are required.
type CreateInput struct {
	Period          models.BudgetPeriod
	TotalLimit      *decimal.Decimal
	CategoryLimits  []models.CategoryLimit
	AlertThresholds ThresholdsInput
	StartDate       *time.Time
	EndDate         *time.Time
	IsActive        *bool
}

// UpdateInput is a partial update. Only non-nil fields change.
type UpdateInput struct {
	Period          *models.BudgetPeriod
	TotalLimit      *decimal.Decimal
	CategoryLimits  *[]models.CategoryLimit
	AlertThresholds ThresholdsInput
	StartDate       *time.Time
	EndDate         *time.Time
	IsActive        *bool
}

// Summary is a budget with its spend re-derived from raw expenses.
type Summary struct {
	models.Budget
	TotalSpent decimal.Decimal `json:"totalSpent"`
	Remaining  decimal.Decimal `json:"remaining"`
}

func validate(b *models.Budget) error {
	if !b.Period.Valid() {
		return models.Invalid("period", "must be one of Monthly, Yearly")
	}
	if b.TotalLimit.IsNegative() {
		return models.Invalid("totalLimit", "budget limit cannot be negative")
	}
	for i, cl := range b.CategoryLimits {
		if !cl.Category.Valid() {
			return models.Invalid(fmt.Sprintf("categoryLimits[%d].category", i), "unknown category %q", cl.Category)
		}
		if cl.Limit.IsNegative() {
			return models.Invalid(fmt.Sprintf("categoryLimits[%d].limit", i), "limit cannot be negative")
		}
	}
	w, c := b.AlertThresholds.Warning, b.AlertThresholds.Critical
	if w < 0 || w > 100 {
		return models.Invalid("alertThresholds.warning", "must be between 0 and 100")
	}
	if c < 0 || c > 100 {
		return models.Invalid("alertThresholds.critical", "must be between 0 and 100")
	}
	if w > c {
		return models.Invalid("alertThresholds.warning", "must not exceed the critical threshold")
	}
	if b.EndDate.Before(b.StartDate) {
		return models.Invalid("endDate", "must not be before startDate")
	}
	return nil
}

// Create stores a new budget for ownerID. Every other active budget of the
// owner is deactivated and the new budget starts out with the owner's spend
// already recorded inside its window.
func (e *Engine) Create(ctx context.Context, ownerID string, in CreateInput) (*models.Budget, error) {
	if in.TotalLimit == nil {
		return nil, models.Invalid("totalLimit", "please provide a total budget limit")
	}
	if in.StartDate == nil {
		return nil, models.Invalid("startDate", "please provide a start date")
	}
	if in.EndDate == nil {
		return nil, models.Invalid("endDate", "please provide an end date")
	}

	b := &models.Budget{
		OwnerID:        ownerID,
		Period:         in.Period,
		TotalLimit:     models.Round2(*in.TotalLimit),
		CategoryLimits: in.CategoryLimits,
		AlertThresholds: models.AlertThresholds{
			Warning:  models.DefaultWarningThreshold,
			Critical: models.DefaultCriticalThreshold,
		},
		StartDate: *in.StartDate,
		EndDate:   *in.EndDate,
		IsActive:  true,
	}
	if b.Period == "" {
		b.Period = models.PeriodMonthly
	}
	if b.CategoryLimits == nil {
		b.CategoryLimits = []models.CategoryLimit{}
	}
	applyThresholds(&b.AlertThresholds, in.AlertThresholds)
	if in.IsActive != nil {
		b.IsActive = *in.IsActive
	}
	if err := validate(b); err != nil {
		return nil, err
	}

	if err := e.db.CreateBudget(ctx, b); err != nil {
		return nil, fmt.Errorf("creating budget: %w", err)
	}
	return b, nil
}

func applyThresholds(t *models.AlertThresholds, in ThresholdsInput) {
	if in.Warning != nil {
		t.Warning = *in.Warning
	}
	if in.Critical != nil {
		t.Critical = *in.Critical
	}
}

// Get returns one of the owner's budgets.
func (e *Engine) Get(ctx context.Context, ownerID, id string) (*models.Budget, error) {
	b, err := e.db.GetBudget(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := models.CheckOwner(b.OwnerID, ownerID); err != nil {
		return nil, err
	}
	return b, nil
}

// List returns the owner's budgets, newest window first, optionally filtered
// by active flag. Spend is re-derived from expenses for every entry.
func (e *Engine) List(ctx context.Context, ownerID string, active *bool) ([]Summary, error) {
	budgets, err := e.db.FindBudgets(ctx, storage.BudgetFilter{OwnerID: ownerID, Active: active})
	if err != nil {
		return nil, err
	}

	out := make([]Summary, 0, len(budgets))
	for _, b := range budgets {
		spent, err := e.db.SumExpenses(ctx, ownerID, b.StartDate, b.EndDate)
		if err != nil {
			return nil, fmt.Errorf("summing spend for budget %s: %w", b.ID, err)
		}
		out = append(out, Summary{Budget: b, TotalSpent: spent, Remaining: b.TotalLimit.Sub(spent)})
	}
	return out, nil
}

// Update applies a partial update. Changing the window or reactivating the
// budget re-derives the running spend; activating it deactivates the owner's
// others.
func (e *Engine) Update(ctx context.Context, ownerID, id string, in UpdateInput) (*models.Budget, error) {
	b, err := e.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	if in.Period != nil {
		b.Period = *in.Period
	}
	if in.TotalLimit != nil {
		b.TotalLimit = models.Round2(*in.TotalLimit)
	}
	if in.CategoryLimits != nil {
		b.CategoryLimits = *in.CategoryLimits
		if b.CategoryLimits == nil {
			b.CategoryLimits = []models.CategoryLimit{}
		}
	}
	applyThresholds(&b.AlertThresholds, in.AlertThresholds)
	rederive := false
	if in.StartDate != nil && !in.StartDate.Equal(b.StartDate) {
		b.StartDate = *in.StartDate
		rederive = true
	}
	if in.EndDate != nil && !in.EndDate.Equal(b.EndDate) {
		b.EndDate = *in.EndDate
		rederive = true
	}
	if in.IsActive != nil {
		// Inactive budgets receive no deltas, so their running spend is stale.
		if *in.IsActive && !b.IsActive {
			rederive = true
		}
		b.IsActive = *in.IsActive
	}
	if err := validate(b); err != nil {
		return nil, err
	}

	if err := e.db.UpdateBudget(ctx, b, rederive); err != nil {
		return nil, fmt.Errorf("updating budget %s: %w", id, err)
	}
	return b, nil
}

// Delete removes one of the owner's budgets.
func (e *Engine) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := e.Get(ctx, ownerID, id); err != nil {
		return err
	}
	return e.db.DeleteBudget(ctx, id)
}

// ApplyDelta adds a signed amount to the running spend of the owner's active
// budget whose window contains at. It is a no-op when no such budget exists.
func (e *Engine) ApplyDelta(ctx context.Context, ownerID string, delta decimal.Decimal, at time.Time) error {
	if delta.IsZero() {
		return nil
	}
	if _, err := e.db.AddBudgetSpending(ctx, ownerID, at, delta); err != nil {
		return fmt.Errorf("applying %s to budget of %s: %w", delta, ownerID, err)
	}
	return nil
}

// current returns the owner's active budget covering now, or nil.
func (e *Engine) current(ctx context.Context, ownerID string, now time.Time) (*models.Budget, error) {
	active := true
	budgets, err := e.db.FindBudgets(ctx, storage.BudgetFilter{OwnerID: ownerID, Active: &active, Covering: now})
	if err != nil {
		return nil, err
	}
	if len(budgets) == 0 {
		return nil, nil
	}
	return &budgets[0], nil
}
