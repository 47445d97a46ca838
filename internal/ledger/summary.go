package ledger

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Deepanshu2050/subcription-manager/internal/models"
	"github.com/Deepanshu2050/subcription-manager/internal/storage"

	"github.com/shopspring/decimal"
)

// Summary periods.
const (
	PeriodMonthly = "monthly"
	PeriodYearly  = "yearly"
)

// Summary aggregates the owner's spend since the start of the current month
// or year.
type Summary struct {
	Period          string                     `json:"period"`
	StartDate       time.Time                  `json:"startDate"`
	EndDate         time.Time                  `json:"endDate"`
	Total           decimal.Decimal            `json:"total"`
	Count           int                        `json:"count"`
	ByCategory      map[string]decimal.Decimal `json:"byCategory"`
	ByPaymentMethod map[string]decimal.Decimal `json:"byPaymentMethod"`
	Expenses        []models.Expense           `json:"expenses"`
}

// Summary totals the owner's expenses from the start of the current period
// up to now.
func (s *Service) Summary(ctx context.Context, ownerID, period string, now time.Time) (*Summary, error) {
	local := now.In(s.loc)
	var start time.Time
	switch period {
	case PeriodMonthly:
		start = time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, s.loc)
	case PeriodYearly:
		start = time.Date(local.Year(), time.January, 1, 0, 0, 0, 0, s.loc)
	default:
		return nil, models.Invalid("period", `invalid period. Use "monthly" or "yearly"`)
	}

	expenses, err := s.db.FindExpenses(ctx, storage.ExpenseFilter{OwnerID: ownerID, From: start, To: now})
	if err != nil {
		return nil, err
	}

	sum := &Summary{
		Period:          period,
		StartDate:       start,
		EndDate:         now,
		Total:           decimal.Zero,
		Count:           len(expenses),
		ByCategory:      map[string]decimal.Decimal{},
		ByPaymentMethod: map[string]decimal.Decimal{},
		Expenses:        expenses,
	}
	for _, e := range expenses {
		sum.Total = sum.Total.Add(e.Amount)
		sum.ByCategory[string(e.Category)] = sum.ByCategory[string(e.Category)].Add(e.Amount)
		sum.ByPaymentMethod[string(e.PaymentMethod)] = sum.ByPaymentMethod[string(e.PaymentMethod)].Add(e.Amount)
	}
	return sum, nil
}

var csvHeader = []string{"date", "category", "description", "amount", "paymentMethod", "tags"}

// ExportCSV writes the owner's expenses dated within [from, to], newest
// first, as CSV with a header row. Zero bounds are open.
func (s *Service) ExportCSV(ctx context.Context, w io.Writer, ownerID string, from, to time.Time) (int, error) {
	expenses, err := s.db.FindExpenses(ctx, storage.ExpenseFilter{OwnerID: ownerID, From: from, To: to, Sort: "-date"})
	if err != nil {
		return 0, err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return 0, err
	}
	for _, e := range expenses {
		record := []string{
			e.Date.UTC().Format(time.RFC3339),
			string(e.Category),
			e.Description,
			e.Amount.StringFixed(2),
			string(e.PaymentMethod),
			strings.Join(e.Tags, ";"),
		}
		if err := cw.Write(record); err != nil {
			return 0, fmt.Errorf("writing expense %s: %w", e.ID, err)
		}
	}
	cw.Flush()
	return len(expenses), cw.Error()
}
