package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BudgetPeriod is the span a budget covers.
type BudgetPeriod string

// Budget periods.
const (
	PeriodMonthly BudgetPeriod = "Monthly"
	PeriodYearly  BudgetPeriod = "Yearly"
)

// Valid reports whether p is a known period.
func (p BudgetPeriod) Valid() bool {
	return p == PeriodMonthly || p == PeriodYearly
}

// Default alert thresholds, in percent of the total limit.
const (
	DefaultWarningThreshold  = 80
	DefaultCriticalThreshold = 100
)

// CategoryLimit caps spending for one category.
type CategoryLimit struct {
	Category Category        `json:"category"`
	Limit    decimal.Decimal `json:"limit"`
}

// AlertThresholds holds the warning and critical percentages.
type AlertThresholds struct {
	Warning  int `json:"warning"`
	Critical int `json:"critical"`
}

// AlertStamps records when each alert severity was last sent.
type AlertStamps struct {
	Warning  *time.Time `json:"warning,omitempty"`
	Critical *time.Time `json:"critical,omitempty"`
}

// Budget is a spending limit over a date window.
type Budget struct {
	ID              string          `json:"id"`
	OwnerID         string          `json:"ownerId"`
	Period          BudgetPeriod    `json:"period"`
	TotalLimit      decimal.Decimal `json:"totalLimit"`
	CategoryLimits  []CategoryLimit `json:"categoryLimits"`
	AlertThresholds AlertThresholds `json:"alertThresholds"`
	StartDate       time.Time       `json:"startDate"`
	EndDate         time.Time       `json:"endDate"`
	CurrentSpending decimal.Decimal `json:"currentSpending"`
	LastAlertSent   AlertStamps     `json:"lastAlertSent"`
	IsActive        bool            `json:"isActive"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// Covers reports whether t falls within [StartDate, EndDate].
func (b *Budget) Covers(t time.Time) bool {
	return !t.Before(b.StartDate) && !t.After(b.EndDate)
}

// AlertKind is the severity of a budget alert.
type AlertKind string

// Alert severities.
const (
	AlertWarning  AlertKind = "warning"
	AlertCritical AlertKind = "critical"
)
