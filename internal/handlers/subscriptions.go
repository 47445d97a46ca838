package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Deepanshu2050/subcription-manager/internal/models"
	"github.com/Deepanshu2050/subcription-manager/internal/subscriptions"
)

type subscriptionRequest struct {
	ServiceName     *string                      `json:"serviceName"`
	Cost            *decimal.Decimal             `json:"cost"`
	BillingCycle    *models.BillingCycle         `json:"billingCycle"`
	StartDate       *string                      `json:"startDate"`
	NextBillingDate *string                      `json:"nextBillingDate"`
	Status          *models.SubscriptionStatus   `json:"status"`
	Category        *models.SubscriptionCategory `json:"category"`
	ReminderDays    *int                         `json:"reminderDays"`
	AutoRenew       *bool                        `json:"autoRenew"`
	Notes           *string                      `json:"notes"`
}

func (h *Handlers) subscriptionDates(req *subscriptionRequest) (start, next *time.Time, err error) {
	if start, err = h.optionalDate("startDate", req.StartDate, false); err != nil {
		return nil, nil, err
	}
	if next, err = h.optionalDate("nextBillingDate", req.NextBillingDate, false); err != nil {
		return nil, nil, err
	}
	return start, next, nil
}

// ListSubscriptions returns the caller's subscriptions, soonest renewal
// first, optionally filtered by status and category.
func (h *Handlers) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	subs, err := h.subscriptions.List(r.Context(), GetUserFromContext(r).ID,
		models.SubscriptionStatus(q.Get("status")), models.SubscriptionCategory(q.Get("category")))
	if err != nil {
		h.fail(w, r, "Subscription", err)
		return
	}
	respondList(w, subs)
}

// GetSubscription returns one of the caller's subscriptions.
func (h *Handlers) GetSubscription(w http.ResponseWriter, r *http.Request) {
	s, err := h.subscriptions.Get(r.Context(), GetUserFromContext(r).ID, r.PathValue("id"))
	if err != nil {
		h.fail(w, r, "Subscription", err)
		return
	}
	respond(w, http.StatusOK, s)
}

// CreateSubscription registers a new subscription.
func (h *Handlers) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	var req subscriptionRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, "Subscription", err)
		return
	}
	start, next, err := h.subscriptionDates(&req)
	if err != nil {
		h.fail(w, r, "Subscription", err)
		return
	}

	in := subscriptions.CreateInput{
		Cost:            req.Cost,
		StartDate:       start,
		NextBillingDate: next,
		ReminderDays:    req.ReminderDays,
		AutoRenew:       req.AutoRenew,
	}
	if req.ServiceName != nil {
		in.ServiceName = *req.ServiceName
	}
	if req.BillingCycle != nil {
		in.BillingCycle = *req.BillingCycle
	}
	if req.Status != nil {
		in.Status = *req.Status
	}
	if req.Category != nil {
		in.Category = *req.Category
	}
	if req.Notes != nil {
		in.Notes = *req.Notes
	}

	s, err := h.subscriptions.Create(r.Context(), GetUserFromContext(r).ID, in)
	if err != nil {
		h.fail(w, r, "Subscription", err)
		return
	}
	respond(w, http.StatusCreated, s)
}

// UpdateSubscription applies a partial update to one of the caller's
// subscriptions.
func (h *Handlers) UpdateSubscription(w http.ResponseWriter, r *http.Request) {
	var req subscriptionRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, "Subscription", err)
		return
	}
	start, next, err := h.subscriptionDates(&req)
	if err != nil {
		h.fail(w, r, "Subscription", err)
		return
	}

	s, err := h.subscriptions.Update(r.Context(), GetUserFromContext(r).ID, r.PathValue("id"), subscriptions.UpdateInput{
		ServiceName:     req.ServiceName,
		Cost:            req.Cost,
		BillingCycle:    req.BillingCycle,
		StartDate:       start,
		NextBillingDate: next,
		Status:          req.Status,
		Category:        req.Category,
		ReminderDays:    req.ReminderDays,
		AutoRenew:       req.AutoRenew,
		Notes:           req.Notes,
	})
	if err != nil {
		h.fail(w, r, "Subscription", err)
		return
	}
	respond(w, http.StatusOK, s)
}

// DeleteSubscription removes one of the caller's subscriptions.
func (h *Handlers) DeleteSubscription(w http.ResponseWriter, r *http.Request) {
	if err := h.subscriptions.Delete(r.Context(), GetUserFromContext(r).ID, r.PathValue("id")); err != nil {
		h.fail(w, r, "Subscription", err)
		return
	}
	respondMessage(w, "Subscription deleted successfully")
}

// UpcomingSubscriptions lists active subscriptions renewing within the next
// {days} days. A missing or non-numeric count uses the default window.
func (h *Handlers) UpcomingSubscriptions(w http.ResponseWriter, r *http.Request) {
	days, _ := strconv.Atoi(r.PathValue("days"))
	subs, err := h.subscriptions.ListUpcoming(r.Context(), GetUserFromContext(r).ID, days, h.now())
	if err != nil {
		h.fail(w, r, "Subscription", err)
		return
	}
	respondList(w, subs)
}

// CostAnalysis summarizes what the caller's active subscriptions cost per
// month and per year.
func (h *Handlers) CostAnalysis(w http.ResponseWriter, r *http.Request) {
	analysis, err := h.subscriptions.CostAnalysis(r.Context(), GetUserFromContext(r).ID)
	if err != nil {
		h.fail(w, r, "Subscription", err)
		return
	}
	respond(w, http.StatusOK, analysis)
}

// RenewSubscription moves the next billing date forward one cycle.
func (h *Handlers) RenewSubscription(w http.ResponseWriter, r *http.Request) {
	s, err := h.subscriptions.Renew(r.Context(), GetUserFromContext(r).ID, r.PathValue("id"))
	if err != nil {
		h.fail(w, r, "Subscription", err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: s, Message: "Subscription renewed successfully"})
}
