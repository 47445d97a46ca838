package subscriptions

import (
	"fmt"
	"time"

	"github.com/Deepanshu2050/subcription-manager/internal/models"
)

// NextBillingDate adds one billing cycle to from, in loc. Month-based cycles
// keep the day of month and clamp it to the last day of a shorter target
// month: Jan 31 + 1 month is Feb 28 (Feb 29 in leap years). Clamping does
// not carry forward, so a later renewal from Feb 28 lands on Mar 28.
func NextBillingDate(from time.Time, cycle models.BillingCycle, loc *time.Location) (time.Time, error) {
	local := from.In(loc)
	switch cycle {
	case models.CycleDaily:
		return local.AddDate(0, 0, 1), nil
	case models.CycleWeekly:
		return local.AddDate(0, 0, 7), nil
	case models.CycleMonthly:
		return addMonths(local, 1), nil
	case models.CycleQuarterly:
		return addMonths(local, 3), nil
	case models.CycleYearly:
		return addMonths(local, 12), nil
	}
	return time.Time{}, fmt.Errorf("unknown billing cycle %q", cycle)
}

func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	last := daysIn(first.Year(), first.Month())
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// daysUntil returns ceil((next - now) / 24h).
func daysUntil(next, now time.Time) int {
	d := next.Sub(now)
	days := d / (24 * time.Hour)
	if d%(24*time.Hour) > 0 {
		days++
	}
	return int(days)
}
