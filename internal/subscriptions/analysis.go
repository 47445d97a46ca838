package subscriptions

import (
	"context"

	"github.com/Deepanshu2050/subcription-manager/internal/models"
	"github.com/Deepanshu2050/subcription-manager/internal/storage"

	"github.com/shopspring/decimal"
)

var (
	thirty = decimal.NewFromInt(30)
	four   = decimal.NewFromInt(4)
	three  = decimal.NewFromInt(3)
	twelve = decimal.NewFromInt(12)
)

// MonthlyCost converts a per-cycle cost to its monthly equivalent.
func MonthlyCost(cost decimal.Decimal, cycle models.BillingCycle) decimal.Decimal {
	switch cycle {
	case models.CycleDaily:
		return cost.Mul(thirty)
	case models.CycleWeekly:
		return cost.Mul(four)
	case models.CycleQuarterly:
		return cost.Div(three)
	case models.CycleYearly:
		return cost.Div(twelve)
	}
	return cost
}

// CycleTotal counts subscriptions on one billing cycle and sums their raw
// per-cycle cost.
type CycleTotal struct {
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
}

// CostAnalysis summarises what the owner's active subscriptions cost.
type CostAnalysis struct {
	TotalSubscriptions int                        `json:"totalSubscriptions"`
	MonthlyTotal       decimal.Decimal            `json:"monthlyTotal"`
	YearlyTotal        decimal.Decimal            `json:"yearlyTotal"`
	ByCategory         map[string]decimal.Decimal `json:"byCategory"`
	ByBillingCycle     map[string]CycleTotal      `json:"byBillingCycle"`
	Subscriptions      []models.Subscription      `json:"subscriptions"`
}

// CostAnalysis normalizes every active subscription to a monthly cost and
// totals them. Totals are rounded to two places, half up.
func (r *Registry) CostAnalysis(ctx context.Context, ownerID string) (*CostAnalysis, error) {
	subs, err := r.db.FindSubscriptions(ctx, storage.SubscriptionFilter{OwnerID: ownerID, Status: models.StatusActive})
	if err != nil {
		return nil, err
	}

	monthly := decimal.Zero
	byCategory := map[string]decimal.Decimal{}
	byCycle := map[string]CycleTotal{}
	for _, s := range subs {
		m := MonthlyCost(s.Cost, s.BillingCycle)
		monthly = monthly.Add(m)
		byCategory[string(s.Category)] = byCategory[string(s.Category)].Add(m)

		ct := byCycle[string(s.BillingCycle)]
		ct.Count++
		ct.Total = ct.Total.Add(s.Cost)
		byCycle[string(s.BillingCycle)] = ct
	}
	for k, v := range byCategory {
		byCategory[k] = models.Round2(v)
	}

	return &CostAnalysis{
		TotalSubscriptions: len(subs),
		MonthlyTotal:       models.Round2(monthly),
		YearlyTotal:        models.Round2(monthly.Mul(twelve)),
		ByCategory:         byCategory,
		ByBillingCycle:     byCycle,
		Subscriptions:      subs,
	}, nil
}
