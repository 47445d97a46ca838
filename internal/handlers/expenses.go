package handlers

import (
	"bytes"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/Deepanshu2050/subcription-manager/internal/ledger"
	"github.com/Deepanshu2050/subcription-manager/internal/models"
)

// expenseRequest is the body of expense create and update calls. Absent
// fields are nil.
type expenseRequest struct {
	Amount        *decimal.Decimal      `json:"amount"`
	Category      *models.Category      `json:"category"`
	Description   *string               `json:"description"`
	Date          *string               `json:"date"`
	PaymentMethod *models.PaymentMethod `json:"paymentMethod"`
	Tags          *[]string             `json:"tags"`
}

// ListExpenses returns the caller's expenses, filtered and sorted by the
// category, startDate, endDate and sortBy query parameters.
func (h *Handlers) ListExpenses(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	q := r.URL.Query()

	from, err := h.queryDate(r, "startDate", false)
	if err != nil {
		h.fail(w, r, "Expense", err)
		return
	}
	to, err := h.queryDate(r, "endDate", true)
	if err != nil {
		h.fail(w, r, "Expense", err)
		return
	}

	expenses, err := h.ledger.List(r.Context(), user.ID, ledger.ListFilter{
		Category: models.Category(q.Get("category")),
		From:     from,
		To:       to,
		SortBy:   q.Get("sortBy"),
	})
	if err != nil {
		h.fail(w, r, "Expense", err)
		return
	}
	respondList(w, expenses)
}

// GetExpense returns one of the caller's expenses.
func (h *Handlers) GetExpense(w http.ResponseWriter, r *http.Request) {
	e, err := h.ledger.Get(r.Context(), GetUserFromContext(r).ID, r.PathValue("id"))
	if err != nil {
		h.fail(w, r, "Expense", err)
		return
	}
	respond(w, http.StatusOK, e)
}

// CreateExpense records a new expense.
func (h *Handlers) CreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, "Expense", err)
		return
	}
	date, err := h.optionalDate("date", req.Date, false)
	if err != nil {
		h.fail(w, r, "Expense", err)
		return
	}

	in := ledger.CreateInput{Amount: req.Amount, Date: date}
	if req.Category != nil {
		in.Category = *req.Category
	}
	if req.Description != nil {
		in.Description = *req.Description
	}
	if req.PaymentMethod != nil {
		in.PaymentMethod = *req.PaymentMethod
	}
	if req.Tags != nil {
		in.Tags = *req.Tags
	}

	e, err := h.ledger.Create(r.Context(), GetUserFromContext(r).ID, in, h.now())
	if err != nil {
		h.fail(w, r, "Expense", err)
		return
	}
	respond(w, http.StatusCreated, e)
}

// UpdateExpense applies a partial update to one of the caller's expenses.
func (h *Handlers) UpdateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, "Expense", err)
		return
	}
	date, err := h.optionalDate("date", req.Date, false)
	if err != nil {
		h.fail(w, r, "Expense", err)
		return
	}

	e, err := h.ledger.Update(r.Context(), GetUserFromContext(r).ID, r.PathValue("id"), ledger.UpdateInput{
		Amount:        req.Amount,
		Category:      req.Category,
		Description:   req.Description,
		Date:          date,
		PaymentMethod: req.PaymentMethod,
		Tags:          req.Tags,
	})
	if err != nil {
		h.fail(w, r, "Expense", err)
		return
	}
	respond(w, http.StatusOK, e)
}

// DeleteExpense removes one of the caller's expenses.
func (h *Handlers) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.Delete(r.Context(), GetUserFromContext(r).ID, r.PathValue("id")); err != nil {
		h.fail(w, r, "Expense", err)
		return
	}
	respondMessage(w, "Expense deleted successfully")
}

// ExpenseSummary totals the caller's spending since the start of the current
// month or year.
func (h *Handlers) ExpenseSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.ledger.Summary(r.Context(), GetUserFromContext(r).ID, r.PathValue("period"), h.now())
	if err != nil {
		h.fail(w, r, "Expense", err)
		return
	}
	respond(w, http.StatusOK, summary)
}

// ExportExpenses downloads the caller's expenses as CSV, optionally bounded
// by startDate and endDate.
func (h *Handlers) ExportExpenses(w http.ResponseWriter, r *http.Request) {
	from, err := h.queryDate(r, "startDate", false)
	if err != nil {
		h.fail(w, r, "Expense", err)
		return
	}
	to, err := h.queryDate(r, "endDate", true)
	if err != nil {
		h.fail(w, r, "Expense", err)
		return
	}

	var buf bytes.Buffer
	if _, err := h.ledger.ExportCSV(r.Context(), &buf, GetUserFromContext(r).ID, from, to); err != nil {
		h.fail(w, r, "Expense", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="expenses.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
