package models

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// BillingCycle is the recurrence unit of a subscription's cost.
type BillingCycle string

// Billing cycles.
const (
	CycleDaily     BillingCycle = "Daily"
	CycleWeekly    BillingCycle = "Weekly"
	CycleMonthly   BillingCycle = "Monthly"
	CycleQuarterly BillingCycle = "Quarterly"
	CycleYearly    BillingCycle = "Yearly"
)

// BillingCycles lists every valid billing cycle.
var BillingCycles = []BillingCycle{CycleDaily, CycleWeekly, CycleMonthly, CycleQuarterly, CycleYearly}

// Valid reports whether b is a known billing cycle.
func (b BillingCycle) Valid() bool {
	return slices.Contains(BillingCycles, b)
}

// SubscriptionStatus is the lifecycle state of a subscription.
type SubscriptionStatus string

// Subscription statuses.
const (
	StatusActive    SubscriptionStatus = "Active"
	StatusCancelled SubscriptionStatus = "Cancelled"
	StatusPaused    SubscriptionStatus = "Paused"
)

// Valid reports whether s is a known status.
func (s SubscriptionStatus) Valid() bool {
	return s == StatusActive || s == StatusCancelled || s == StatusPaused
}

// SubscriptionCategory groups subscriptions by kind of service.
type SubscriptionCategory string

// Subscription categories.
const (
	SubEntertainment SubscriptionCategory = "Entertainment"
	SubMusic         SubscriptionCategory = "Music"
	SubVideo         SubscriptionCategory = "Video Streaming"
	SubGaming        SubscriptionCategory = "Gaming"
	SubSoftware      SubscriptionCategory = "Software"
	SubCloudStorage  SubscriptionCategory = "Cloud Storage"
	SubNews          SubscriptionCategory = "News & Magazines"
	SubFitness       SubscriptionCategory = "Fitness"
	SubEducation     SubscriptionCategory = "Education"
	SubProductivity  SubscriptionCategory = "Productivity"
	SubOther         SubscriptionCategory = "Other"
)

// SubscriptionCategories lists every valid subscription category.
var SubscriptionCategories = []SubscriptionCategory{
	SubEntertainment, SubMusic, SubVideo, SubGaming, SubSoftware, SubCloudStorage,
	SubNews, SubFitness, SubEducation, SubProductivity, SubOther,
}

// Valid reports whether c is a known subscription category.
func (c SubscriptionCategory) Valid() bool {
	return slices.Contains(SubscriptionCategories, c)
}

// DefaultReminderDays is how many days ahead a renewal reminder goes out.
const DefaultReminderDays = 3

// Subscription is a recurring charge.
type Subscription struct {
	ID               string               `json:"id"`
	OwnerID          string               `json:"ownerId"`
	ServiceName      string               `json:"serviceName"`
	Cost             decimal.Decimal      `json:"cost"`
	BillingCycle     BillingCycle         `json:"billingCycle"`
	StartDate        time.Time            `json:"startDate"`
	NextBillingDate  time.Time            `json:"nextBillingDate"`
	Status           SubscriptionStatus   `json:"status"`
	Category         SubscriptionCategory `json:"category"`
	ReminderDays     int                  `json:"reminderDays"`
	AutoRenew        bool                 `json:"autoRenew"`
	Notes            string               `json:"notes"`
	LastReminderSent *time.Time           `json:"lastReminderSent,omitempty"`
	CreatedAt        time.Time            `json:"createdAt"`
}
