// Package ledger owns expense records. Every mutation that changes an
// expense's amount or date is pushed to the budget engine as a signed delta.
package ledger

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/Deepanshu2050/subcription-manager/internal/models"
	"github.com/Deepanshu2050/subcription-manager/internal/storage"

	"github.com/shopspring/decimal"
)

// BudgetDeltas receives spend changes for the budget covering at.
type BudgetDeltas interface {
	ApplyDelta(ctx context.Context, ownerID string, delta decimal.Decimal, at time.Time) error
}

// Service implements expense operations.
type Service struct {
	db      *storage.DB
	budgets BudgetDeltas
	loc     *time.Location
}

// NewService returns a Service. loc anchors the monthly and yearly summary
// windows.
func NewService(db *storage.DB, budgets BudgetDeltas, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{db: db, budgets: budgets, loc: loc}
}

// CreateInput describes a new expense. Date defaults to now and payment
// method to Cash.
type CreateInput struct {
	Amount        *decimal.Decimal
	Category      models.Category
	Description   string
	Date          *time.Time
	PaymentMethod models.PaymentMethod
	Tags          []string
}

// UpdateInput is a partial update. Only non-nil fields change.
type UpdateInput struct {
	Amount        *decimal.Decimal
	Category      *models.Category
	Description   *string
	Date          *time.Time
	PaymentMethod *models.PaymentMethod
	Tags          *[]string
}

// ListFilter narrows List. Zero values do not constrain.
type ListFilter struct {
	Category models.Category
	From     time.Time
	To       time.Time
	SortBy   string
}

func validate(e *models.Expense) error {
	if e.Amount.IsNegative() {
		return models.Invalid("amount", "amount cannot be negative")
	}
	if !e.Category.Valid() {
		if e.Category == "" {
			return models.Invalid("category", "please provide a category")
		}
		return models.Invalid("category", "unknown category %q", e.Category)
	}
	if e.Description == "" {
		return models.Invalid("description", "please provide a description")
	}
	if !e.PaymentMethod.Valid() {
		return models.Invalid("paymentMethod", "unknown payment method %q", e.PaymentMethod)
	}
	return nil
}

// applyDelta pushes a spend change to the budget engine. Failures are logged:
// the expense write already succeeded and reconciliation repairs the total.
func (s *Service) applyDelta(ctx context.Context, ownerID string, delta decimal.Decimal, at time.Time) {
	if err := s.budgets.ApplyDelta(ctx, ownerID, delta, at); err != nil {
		log.Printf("Error updating budget spending for %s: %v", ownerID, err)
	}
}

// Create records a new expense for ownerID.
func (s *Service) Create(ctx context.Context, ownerID string, in CreateInput, now time.Time) (*models.Expense, error) {
	if in.Amount == nil {
		return nil, models.Invalid("amount", "please provide an amount")
	}
	e := &models.Expense{
		OwnerID:       ownerID,
		Amount:        models.Round2(*in.Amount),
		Category:      in.Category,
		Description:   strings.TrimSpace(in.Description),
		Date:          now,
		PaymentMethod: in.PaymentMethod,
		Tags:          models.NormalizeTags(in.Tags),
	}
	if in.Date != nil {
		e.Date = *in.Date
	}
	if e.PaymentMethod == "" {
		e.PaymentMethod = models.PaymentCash
	}
	if err := validate(e); err != nil {
		return nil, err
	}

	if err := s.db.InsertExpense(ctx, e); err != nil {
		return nil, fmt.Errorf("creating expense: %w", err)
	}
	s.applyDelta(ctx, ownerID, e.Amount, e.Date)
	return e, nil
}

// Get returns one of the owner's expenses.
func (s *Service) Get(ctx context.Context, ownerID, id string) (*models.Expense, error) {
	e, err := s.db.GetExpense(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := models.CheckOwner(e.OwnerID, ownerID); err != nil {
		return nil, err
	}
	return e, nil
}

// List returns the owner's expenses matching f.
func (s *Service) List(ctx context.Context, ownerID string, f ListFilter) ([]models.Expense, error) {
	if f.SortBy != "" && !storage.ValidExpenseSort(f.SortBy) {
		return nil, models.Invalid("sortBy", "unsupported sort %q", f.SortBy)
	}
	if f.Category != "" && !f.Category.Valid() {
		return nil, models.Invalid("category", "unknown category %q", f.Category)
	}
	return s.db.FindExpenses(ctx, storage.ExpenseFilter{
		OwnerID:  ownerID,
		Category: f.Category,
		From:     f.From,
		To:       f.To,
		Sort:     f.SortBy,
	})
}

// Update applies a partial update. When the amount or date changes the old
// contribution is withdrawn from the budget covering the old date and the new
// one added to the budget covering the new date. The read and the write share
// one transaction so concurrent updates each withdraw what they replaced.
func (s *Service) Update(ctx context.Context, ownerID, id string, in UpdateInput) (*models.Expense, error) {
	before, e, err := s.db.UpdateExpense(ctx, id, func(e *models.Expense) error {
		if err := models.CheckOwner(e.OwnerID, ownerID); err != nil {
			return err
		}
		if in.Amount != nil {
			e.Amount = models.Round2(*in.Amount)
		}
		if in.Category != nil {
			e.Category = *in.Category
		}
		if in.Description != nil {
			e.Description = strings.TrimSpace(*in.Description)
		}
		if in.Date != nil {
			e.Date = *in.Date
		}
		if in.PaymentMethod != nil {
			e.PaymentMethod = *in.PaymentMethod
		}
		if in.Tags != nil {
			e.Tags = models.NormalizeTags(*in.Tags)
		}
		return validate(e)
	})
	if err != nil {
		return nil, fmt.Errorf("updating expense %s: %w", id, err)
	}

	if !before.Amount.Equal(e.Amount) || !before.Date.Equal(e.Date) {
		s.applyDelta(ctx, ownerID, before.Amount.Neg(), before.Date)
		s.applyDelta(ctx, ownerID, e.Amount, e.Date)
	}
	return e, nil
}

// Delete removes one of the owner's expenses and withdraws its amount from
// the covering budget.
func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	e, err := s.db.DeleteExpense(ctx, id, func(e *models.Expense) error {
		return models.CheckOwner(e.OwnerID, ownerID)
	})
	if err != nil {
		return err
	}
	s.applyDelta(ctx, ownerID, e.Amount.Neg(), e.Date)
	return nil
}
