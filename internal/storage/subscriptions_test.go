package storage

import (
	"context"
	"testing"
	"time"

	"github.com/Deepanshu2050/subcription-manager/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscriptionRoundTrip(t *testing.T) {
	db, err := NewDB(":memory:")
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	next := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	mk := func(owner, name string, next time.Time, status models.SubscriptionStatus, autoRenew bool) *models.Subscription {
		s := &models.Subscription{
			OwnerID: owner, ServiceName: name, Cost: amount("9.99"), BillingCycle: models.CycleMonthly,
			StartDate: next.AddDate(0, -1, 0), NextBillingDate: next, Status: status,
			Category: models.SubVideo, ReminderDays: 3, AutoRenew: autoRenew,
		}
		require.NoError(t, db.InsertSubscription(ctx, s))
		return s
	}

	late := mk("alice", "Late", next.AddDate(0, 0, 10), models.StatusActive, true)
	early := mk("alice", "Early", next, models.StatusActive, false)
	mk("alice", "Paused", next, models.StatusPaused, true)
	mk("bob", "Bob's", next, models.StatusActive, true)

	got, err := db.FindSubscriptions(ctx, SubscriptionFilter{OwnerID: "alice", Status: models.StatusActive})
	require.NoError(t, err)
	if assert.Len(t, got, 2) {
		assert.Equal(t, early.ID, got[0].ID, "ascending by next billing date")
		assert.Equal(t, late.ID, got[1].ID)
	}

	yes := true
	renewing, err := db.FindSubscriptions(ctx, SubscriptionFilter{Status: models.StatusActive, AutoRenew: &yes})
	require.NoError(t, err)
	assert.Len(t, renewing, 2, "sweeps span every owner")

	due, err := db.FindSubscriptions(ctx, SubscriptionFilter{OwnerID: "alice", DueFrom: next, DueTo: next.AddDate(0, 0, 5)})
	require.NoError(t, err)
	assert.Len(t, due, 2)

	require.NoError(t, db.SetNextBillingDate(ctx, early.ID, next.AddDate(0, 1, 0)))
	sentAt := next.Add(9 * time.Hour)
	require.NoError(t, db.MarkReminderSent(ctx, early.ID, sentAt))

	stored, err := db.GetSubscription(ctx, early.ID)
	require.NoError(t, err)
	assert.True(t, next.AddDate(0, 1, 0).Equal(stored.NextBillingDate))
	require.NotNil(t, stored.LastReminderSent)
	assert.True(t, sentAt.Equal(*stored.LastReminderSent))
	assert.False(t, stored.AutoRenew)

	require.NoError(t, db.DeleteSubscription(ctx, early.ID))
	_, err = db.GetSubscription(ctx, early.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}
