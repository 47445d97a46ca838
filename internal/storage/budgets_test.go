package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Deepanshu2050/subcription-manager/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type BudgetStoreSuite struct {
	suite.Suite
	db  *DB
	ctx context.Context
}

func (suite *BudgetStoreSuite) SetupTest() {
	db, err := NewDB(":memory:")
	require.NoError(suite.T(), err, "failed to create test database")
	suite.db = db
	suite.ctx = context.Background()
}

func (suite *BudgetStoreSuite) TearDownTest() {
	if suite.db != nil {
		suite.db.Close()
	}
}

func (suite *BudgetStoreSuite) march(owner string) *models.Budget {
	return &models.Budget{
		OwnerID:         owner,
		Period:          models.PeriodMonthly,
		TotalLimit:      amount("1000"),
		AlertThresholds: models.AlertThresholds{Warning: 80, Critical: 100},
		StartDate:       day(suite.T(), "2025-03-01"),
		EndDate:         day(suite.T(), "2025-03-31").Add(24*time.Hour - time.Millisecond),
		IsActive:        true,
	}
}

func (suite *BudgetStoreSuite) expense(owner, amt string, date time.Time) {
	err := suite.db.InsertExpense(suite.ctx, &models.Expense{
		OwnerID: owner, Amount: amount(amt), Category: models.CategoryFood,
		Description: "x", Date: date, PaymentMethod: models.PaymentCash,
	})
	require.NoError(suite.T(), err)
}

func (suite *BudgetStoreSuite) TestCreateBudgetBackfillsSpending() {
	suite.expense("alice", "120.00", day(suite.T(), "2025-03-05"))
	suite.expense("alice", "30.50", day(suite.T(), "2025-03-31").Add(23*time.Hour))
	suite.expense("alice", "999.00", day(suite.T(), "2025-04-01"))
	suite.expense("bob", "50.00", day(suite.T(), "2025-03-05"))

	b := suite.march("alice")
	require.NoError(suite.T(), suite.db.CreateBudget(suite.ctx, b))
	assert.True(suite.T(), amount("150.50").Equal(b.CurrentSpending), "got %s", b.CurrentSpending)

	stored, err := suite.db.GetBudget(suite.ctx, b.ID)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), amount("150.50").Equal(stored.CurrentSpending))
	assert.Equal(suite.T(), 80, stored.AlertThresholds.Warning)
	assert.Nil(suite.T(), stored.LastAlertSent.Warning)
}

func (suite *BudgetStoreSuite) TestCreateActiveBudgetDeactivatesOthers() {
	first := suite.march("alice")
	require.NoError(suite.T(), suite.db.CreateBudget(suite.ctx, first))
	other := suite.march("bob")
	require.NoError(suite.T(), suite.db.CreateBudget(suite.ctx, other))
	second := suite.march("alice")
	require.NoError(suite.T(), suite.db.CreateBudget(suite.ctx, second))

	active := true
	got, err := suite.db.FindBudgets(suite.ctx, BudgetFilter{OwnerID: "alice", Active: &active})
	require.NoError(suite.T(), err)
	if assert.Len(suite.T(), got, 1) {
		assert.Equal(suite.T(), second.ID, got[0].ID)
	}

	bobs, err := suite.db.FindBudgets(suite.ctx, BudgetFilter{OwnerID: "bob", Active: &active})
	require.NoError(suite.T(), err)
	assert.Len(suite.T(), bobs, 1, "other owners are untouched")
}

func (suite *BudgetStoreSuite) TestAddBudgetSpendingMatchesWindow() {
	b := suite.march("alice")
	require.NoError(suite.T(), suite.db.CreateBudget(suite.ctx, b))

	matched, err := suite.db.AddBudgetSpending(suite.ctx, "alice", day(suite.T(), "2025-03-10"), amount("25.75"))
	require.NoError(suite.T(), err)
	assert.True(suite.T(), matched)

	matched, err = suite.db.AddBudgetSpending(suite.ctx, "alice", day(suite.T(), "2025-05-10"), amount("25.75"))
	require.NoError(suite.T(), err)
	assert.False(suite.T(), matched, "outside window is a no-op")

	matched, err = suite.db.AddBudgetSpending(suite.ctx, "bob", day(suite.T(), "2025-03-10"), amount("25.75"))
	require.NoError(suite.T(), err)
	assert.False(suite.T(), matched)

	stored, err := suite.db.GetBudget(suite.ctx, b.ID)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), amount("25.75").Equal(stored.CurrentSpending))
}

func (suite *BudgetStoreSuite) TestConcurrentDeltasDoNotLoseUpdates() {
	b := suite.march("alice")
	require.NoError(suite.T(), suite.db.CreateBudget(suite.ctx, b))

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := suite.db.AddBudgetSpending(suite.ctx, "alice", day(suite.T(), "2025-03-10"), amount("1.01"))
			assert.NoError(suite.T(), err)
		}()
	}
	wg.Wait()

	stored, err := suite.db.GetBudget(suite.ctx, b.ID)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), amount("50.50").Equal(stored.CurrentSpending), "got %s", stored.CurrentSpending)
}

func (suite *BudgetStoreSuite) TestStampAlertAndRecompute() {
	b := suite.march("alice")
	require.NoError(suite.T(), suite.db.CreateBudget(suite.ctx, b))
	_, err := suite.db.AddBudgetSpending(suite.ctx, "alice", day(suite.T(), "2025-03-10"), amount("500"))
	require.NoError(suite.T(), err)

	at := time.Date(2025, 3, 10, 20, 0, 0, 0, time.UTC)
	require.NoError(suite.T(), suite.db.StampAlert(suite.ctx, b.ID, models.AlertCritical, at))
	assert.Error(suite.T(), suite.db.StampAlert(suite.ctx, b.ID, models.AlertKind("loud"), at))

	spent, err := suite.db.RecomputeBudgetSpending(suite.ctx, b.ID)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), spent.IsZero(), "no expenses back the drifted total")

	stored, err := suite.db.GetBudget(suite.ctx, b.ID)
	require.NoError(suite.T(), err)
	require.NotNil(suite.T(), stored.LastAlertSent.Critical)
	assert.True(suite.T(), at.Equal(*stored.LastAlertSent.Critical))
	assert.Nil(suite.T(), stored.LastAlertSent.Warning)
	assert.True(suite.T(), stored.CurrentSpending.IsZero())
}

func (suite *BudgetStoreSuite) TestUpdateBudgetRederives() {
	suite.expense("alice", "40.00", day(suite.T(), "2025-04-02"))
	b := suite.march("alice")
	require.NoError(suite.T(), suite.db.CreateBudget(suite.ctx, b))
	assert.True(suite.T(), b.CurrentSpending.IsZero())

	b.EndDate = day(suite.T(), "2025-04-30")
	require.NoError(suite.T(), suite.db.UpdateBudget(suite.ctx, b, true))
	assert.True(suite.T(), amount("40").Equal(b.CurrentSpending))

	missing := suite.march("alice")
	missing.ID = "missing"
	assert.ErrorIs(suite.T(), suite.db.UpdateBudget(suite.ctx, missing, false), models.ErrNotFound)
}

func TestBudgetStoreSuite(t *testing.T) {
	suite.Run(t, new(BudgetStoreSuite))
}
