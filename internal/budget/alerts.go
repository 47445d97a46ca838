package budget

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/Deepanshu2050/subcription-manager/internal/batch"
	"github.com/Deepanshu2050/subcription-manager/internal/models"
	"github.com/Deepanshu2050/subcription-manager/internal/notify"
	"github.com/Deepanshu2050/subcription-manager/internal/storage"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Level classifies spending against a budget's thresholds.
type Level struct {
	// Percentage is spent/limit*100, nil when the limit is zero and spend
	// is positive.
	Percentage *decimal.Decimal
	// Alert is the severity reached, empty when below the warning threshold.
	Alert      models.AlertKind
	OverBudget bool
}

// Classify computes the spending level of b. Threshold comparisons use the
// unrounded percentage and count an exact match as crossing.
func Classify(b *models.Budget) Level {
	pct, ok := models.Percentage(b.CurrentSpending, b.TotalLimit)
	if !ok {
		return Level{Alert: models.AlertCritical, OverBudget: true}
	}

	lvl := Level{Percentage: &pct, OverBudget: pct.GreaterThan(hundred)}
	switch {
	case pct.GreaterThanOrEqual(decimal.NewFromInt(int64(b.AlertThresholds.Critical))):
		lvl.Alert = models.AlertCritical
	case pct.GreaterThanOrEqual(decimal.NewFromInt(int64(b.AlertThresholds.Warning))):
		lvl.Alert = models.AlertWarning
	}
	return lvl
}

// Status describes the active budget for the current moment.
type Status struct {
	Budget             *models.Budget    `json:"budget"`
	CurrentSpending    decimal.Decimal   `json:"currentSpending"`
	TotalLimit         decimal.Decimal   `json:"totalLimit"`
	Remaining          decimal.Decimal   `json:"remaining"`
	SpendingPercentage *decimal.Decimal  `json:"spendingPercentage"`
	AlertLevel         *models.AlertKind `json:"alertLevel"`
	IsOverBudget       bool              `json:"isOverBudget"`
}

// CurrentStatus reports on the owner's active budget covering now. found is
// false when the owner has no such budget.
func (e *Engine) CurrentStatus(ctx context.Context, ownerID string, now time.Time) (status *Status, found bool, err error) {
	b, err := e.current(ctx, ownerID, now)
	if err != nil || b == nil {
		return nil, false, err
	}

	lvl := Classify(b)
	status = &Status{
		Budget:          b,
		CurrentSpending: b.CurrentSpending,
		TotalLimit:      b.TotalLimit,
		Remaining:       b.TotalLimit.Sub(b.CurrentSpending),
		IsOverBudget:    lvl.OverBudget,
	}
	if lvl.Percentage != nil {
		rounded := models.Round2(*lvl.Percentage)
		status.SpendingPercentage = &rounded
	}
	if lvl.Alert != "" {
		status.AlertLevel = &lvl.Alert
	}
	return status, true, nil
}

// due reports whether an alert last sent at last may be sent again at now.
func due(last *time.Time, now time.Time) bool {
	return last == nil || last.Before(now.Add(-AlertInterval))
}

var errNotDelivered = errors.New("alert not delivered")

// alert sends the alert b currently calls for, if any, and records it. The
// critical check takes priority: a budget past both thresholds never gets a
// warning in the same pass. A failed delivery is not recorded so the next
// pass retries it.
func (e *Engine) alert(ctx context.Context, b *models.Budget, now time.Time) (models.AlertKind, error) {
	lvl := Classify(b)
	switch lvl.Alert {
	case models.AlertCritical:
		if !due(b.LastAlertSent.Critical, now) {
			return "", nil
		}
	case models.AlertWarning:
		if !due(b.LastAlertSent.Warning, now) {
			return "", nil
		}
	default:
		return "", nil
	}

	user, err := e.db.GetUserByID(ctx, b.OwnerID)
	if err != nil {
		return "", fmt.Errorf("loading owner of budget %s: %w", b.ID, err)
	}

	msg := notify.Message{
		Kind:       notify.BudgetKind(lvl.Alert),
		User:       *user,
		Budget:     b,
		Percentage: lvl.Percentage,
	}
	if err := e.notifier.Notify(ctx, msg); err != nil {
		return "", fmt.Errorf("%w: budget %s %s: %v", errNotDelivered, b.ID, lvl.Alert, err)
	}

	if err := e.db.StampAlert(ctx, b.ID, lvl.Alert, now); err != nil {
		return "", fmt.Errorf("recording %s alert for budget %s: %w", lvl.Alert, b.ID, err)
	}
	return lvl.Alert, nil
}

// CheckAlerts evaluates the owner's active budget covering now and sends
// the alert it calls for. It returns the severities sent. Delivery failures
// are logged and do not fail the call.
func (e *Engine) CheckAlerts(ctx context.Context, ownerID string, now time.Time) ([]models.AlertKind, error) {
	sent := []models.AlertKind{}
	b, err := e.current(ctx, ownerID, now)
	if err != nil || b == nil {
		return sent, err
	}

	kind, err := e.alert(ctx, b, now)
	if errors.Is(err, errNotDelivered) {
		log.Printf("budget alerts: %v", err)
		return sent, nil
	}
	if err != nil {
		return nil, err
	}
	if kind != "" {
		sent = append(sent, kind)
	}
	return sent, nil
}

// SweepResult counts the outcome of a sweep over budgets.
type SweepResult struct {
	Budgets    int
	AlertsSent int
	Failed     int
}

// SweepAlerts evaluates every active budget whose window contains now,
// across all owners. A failure on one budget is logged and never stops the
// others.
func (e *Engine) SweepAlerts(ctx context.Context, now time.Time) (SweepResult, error) {
	active := true
	budgets, err := e.db.FindBudgets(ctx, storage.BudgetFilter{Active: &active, Covering: now})
	if err != nil {
		return SweepResult{}, fmt.Errorf("listing active budgets: %w", err)
	}

	var sent atomic.Int64
	opts := e.sweep
	opts.Name = "budget alerts"
	res := batch.ForEach(ctx, budgets, opts,
		func(b models.Budget) string { return "budget " + b.ID },
		func(ctx context.Context, b models.Budget) error {
			kind, err := e.alert(ctx, &b, now)
			if kind != "" {
				sent.Add(1)
			}
			return err
		})

	return SweepResult{Budgets: len(budgets), AlertsSent: int(sent.Load()), Failed: res.Failed}, nil
}

// ReconcileResult counts the outcome of a reconciliation pass.
type ReconcileResult struct {
	Budgets  int
	Adjusted int
	Failed   int
}

// Reconcile resets the running spend of every active budget to the sum of
// its owner's expenses inside the window, logging any drift it corrects.
func (e *Engine) Reconcile(ctx context.Context) (ReconcileResult, error) {
	active := true
	budgets, err := e.db.FindBudgets(ctx, storage.BudgetFilter{Active: &active})
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("listing active budgets: %w", err)
	}

	var adjusted atomic.Int64
	opts := e.sweep
	opts.Name = "budget reconcile"
	res := batch.ForEach(ctx, budgets, opts,
		func(b models.Budget) string { return "budget " + b.ID },
		func(ctx context.Context, b models.Budget) error {
			spent, err := e.db.RecomputeBudgetSpending(ctx, b.ID)
			if err != nil {
				return err
			}
			if !spent.Equal(b.CurrentSpending) {
				adjusted.Add(1)
				log.Printf("budget reconcile: budget %s drifted from %s to %s", b.ID, b.CurrentSpending, spent)
			}
			return nil
		})

	return ReconcileResult{Budgets: len(budgets), Adjusted: int(adjusted.Load()), Failed: res.Failed}, nil
}
