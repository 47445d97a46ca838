package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Deepanshu2050/subcription-manager/internal/budget"
	"github.com/Deepanshu2050/subcription-manager/internal/models"
)

type thresholdsRequest struct {
	Warning  *int `json:"warning"`
	Critical *int `json:"critical"`
}

// budgetRequest is the body of budget create and update calls.
// currentSpending and lastAlertSent are not accepted from clients.
type budgetRequest struct {
	Period          *models.BudgetPeriod    `json:"period"`
	TotalLimit      *decimal.Decimal        `json:"totalLimit"`
	CategoryLimits  *[]models.CategoryLimit `json:"categoryLimits"`
	AlertThresholds *thresholdsRequest      `json:"alertThresholds"`
	StartDate       *string                 `json:"startDate"`
	EndDate         *string                 `json:"endDate"`
	IsActive        *bool                   `json:"isActive"`
}

func (req *budgetRequest) thresholds() budget.ThresholdsInput {
	if req.AlertThresholds == nil {
		return budget.ThresholdsInput{}
	}
	return budget.ThresholdsInput{Warning: req.AlertThresholds.Warning, Critical: req.AlertThresholds.Critical}
}

// window parses the budget dates. A bare end date covers that whole day.
func (h *Handlers) window(req *budgetRequest) (start, end *time.Time, err error) {
	if start, err = h.optionalDate("startDate", req.StartDate, false); err != nil {
		return nil, nil, err
	}
	if end, err = h.optionalDate("endDate", req.EndDate, true); err != nil {
		return nil, nil, err
	}
	return start, end, nil
}

type alertsResponse struct {
	AlertsSent []models.AlertKind `json:"alertsSent"`
}

// ListBudgets returns the caller's budgets, newest first, each with spend
// re-derived from expenses. isActive=true|false filters by state.
func (h *Handlers) ListBudgets(w http.ResponseWriter, r *http.Request) {
	var active *bool
	if v := r.URL.Query().Get("isActive"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			h.fail(w, r, "Budget", models.Invalid("isActive", "must be true or false"))
			return
		}
		active = &b
	}

	budgets, err := h.budgets.List(r.Context(), GetUserFromContext(r).ID, active)
	if err != nil {
		h.fail(w, r, "Budget", err)
		return
	}
	respondList(w, budgets)
}

// GetBudget returns one of the caller's budgets.
func (h *Handlers) GetBudget(w http.ResponseWriter, r *http.Request) {
	b, err := h.budgets.Get(r.Context(), GetUserFromContext(r).ID, r.PathValue("id"))
	if err != nil {
		h.fail(w, r, "Budget", err)
		return
	}
	respond(w, http.StatusOK, b)
}

// CreateBudget stores a new budget, deactivating the caller's other active
// budgets.
func (h *Handlers) CreateBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, "Budget", err)
		return
	}
	start, end, err := h.window(&req)
	if err != nil {
		h.fail(w, r, "Budget", err)
		return
	}

	in := budget.CreateInput{
		TotalLimit:      req.TotalLimit,
		AlertThresholds: req.thresholds(),
		StartDate:       start,
		EndDate:         end,
		IsActive:        req.IsActive,
	}
	if req.Period != nil {
		in.Period = *req.Period
	}
	if req.CategoryLimits != nil {
		in.CategoryLimits = *req.CategoryLimits
	}

	b, err := h.budgets.Create(r.Context(), GetUserFromContext(r).ID, in)
	if err != nil {
		h.fail(w, r, "Budget", err)
		return
	}
	respond(w, http.StatusCreated, b)
}

// UpdateBudget applies a partial update to one of the caller's budgets.
func (h *Handlers) UpdateBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, "Budget", err)
		return
	}
	start, end, err := h.window(&req)
	if err != nil {
		h.fail(w, r, "Budget", err)
		return
	}

	b, err := h.budgets.Update(r.Context(), GetUserFromContext(r).ID, r.PathValue("id"), budget.UpdateInput{
		Period:          req.Period,
		TotalLimit:      req.TotalLimit,
		CategoryLimits:  req.CategoryLimits,
		AlertThresholds: req.thresholds(),
		StartDate:       start,
		EndDate:         end,
		IsActive:        req.IsActive,
	})
	if err != nil {
		h.fail(w, r, "Budget", err)
		return
	}
	respond(w, http.StatusOK, b)
}

// DeleteBudget removes one of the caller's budgets.
func (h *Handlers) DeleteBudget(w http.ResponseWriter, r *http.Request) {
	if err := h.budgets.Delete(r.Context(), GetUserFromContext(r).ID, r.PathValue("id")); err != nil {
		h.fail(w, r, "Budget", err)
		return
	}
	respondMessage(w, "Budget deleted successfully")
}

// CurrentBudgetStatus reports on the caller's active budget covering now.
// Having no such budget is not an error.
func (h *Handlers) CurrentBudgetStatus(w http.ResponseWriter, r *http.Request) {
	status, found, err := h.budgets.CurrentStatus(r.Context(), GetUserFromContext(r).ID, h.now())
	if err != nil {
		h.fail(w, r, "Budget", err)
		return
	}
	if !found {
		respondMessage(w, "No active budget found for current period")
		return
	}
	respond(w, http.StatusOK, status)
}

// CheckBudgetAlerts sends whatever alert the caller's current budget calls
// for and lists the severities sent.
func (h *Handlers) CheckBudgetAlerts(w http.ResponseWriter, r *http.Request) {
	sent, err := h.budgets.CheckAlerts(r.Context(), GetUserFromContext(r).ID, h.now())
	if err != nil {
		h.fail(w, r, "Budget", err)
		return
	}
	message := "No alerts needed"
	if len(sent) > 0 {
		message = "Alerts sent"
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: alertsResponse{AlertsSent: sent}, Message: message})
}
