package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/Deepanshu2050/subcription-manager/internal/auth"
	"github.com/Deepanshu2050/subcription-manager/internal/batch"
	"github.com/Deepanshu2050/subcription-manager/internal/budget"
	"github.com/Deepanshu2050/subcription-manager/internal/ledger"
	"github.com/Deepanshu2050/subcription-manager/internal/models"
	"github.com/Deepanshu2050/subcription-manager/internal/notify"
	"github.com/Deepanshu2050/subcription-manager/internal/notify/notifytest"
	"github.com/Deepanshu2050/subcription-manager/internal/storage"
	"github.com/Deepanshu2050/subcription-manager/internal/subscriptions"
)

type response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Count   *int            `json:"count"`
}

type HandlersSuite struct {
	suite.Suite
	db       *storage.DB
	recorder *notifytest.Recorder
	h        *Handlers
	mux      *http.ServeMux
	alice    string
	bob      string
}

const (
	aliceToken = "alice-session-token"
	bobToken   = "bob-session-token"
)

var now = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

func (suite *HandlersSuite) SetupTest() {
	db, err := storage.NewDB(":memory:")
	require.NoError(suite.T(), err, "failed to create test database")
	suite.db = db
	suite.recorder = &notifytest.Recorder{}

	sweep := batch.Options{Workers: 2, ItemTimeout: 5 * time.Second}
	engine := budget.NewEngine(db, suite.recorder, sweep)
	l := ledger.NewService(db, engine, time.UTC)
	registry := subscriptions.NewRegistry(db, suite.recorder, subscriptions.Options{Location: time.UTC, Sweep: sweep})

	suite.h = NewHandlers(db, l, engine, registry, Options{Development: true, Location: time.UTC})
	suite.h.now = func() time.Time { return now }
	suite.mux = http.NewServeMux()
	suite.h.Register(suite.mux)

	ctx := context.Background()
	hash, err := auth.HashPassword("secret123")
	require.NoError(suite.T(), err)
	alice, err := db.CreateUser(ctx, &models.User{Username: "alice", PasswordHash: hash, Email: "alice@example.com", EmailNotifications: true})
	require.NoError(suite.T(), err)
	bob, err := db.CreateUser(ctx, &models.User{Username: "bob", PasswordHash: hash})
	require.NoError(suite.T(), err)
	suite.alice, suite.bob = alice.ID, bob.ID

	expires := time.Now().Add(SessionDuration)
	require.NoError(suite.T(), db.CreateSession(ctx, aliceToken, alice.ID, expires))
	require.NoError(suite.T(), db.CreateSession(ctx, bobToken, bob.ID, expires))
}

func (suite *HandlersSuite) TearDownTest() {
	if suite.db != nil {
		suite.db.Close()
	}
}

func TestHandlersSuite(t *testing.T) {
	suite.Run(t, new(HandlersSuite))
}

func (suite *HandlersSuite) serve(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	suite.mux.ServeHTTP(w, req)
	return w
}

func (suite *HandlersSuite) request(method, path, token string, body any) *httptest.ResponseRecorder {
	var rdr io.Reader = http.NoBody
	switch b := body.(type) {
	case nil:
	case string:
		rdr = strings.NewReader(b)
	default:
		buf, err := json.Marshal(b)
		require.NoError(suite.T(), err)
		rdr = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, rdr)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return suite.serve(req)
}

// call performs the request, checks the status and returns the envelope.
func (suite *HandlersSuite) call(method, path, token string, body any, wantStatus int) response {
	w := suite.request(method, path, token, body)
	require.Equal(suite.T(), wantStatus, w.Code, "%s %s: %s", method, path, w.Body.String())
	var resp response
	require.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func into[T any](t *testing.T, resp response) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(resp.Data, &v), string(resp.Data))
	return v
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func (suite *HandlersSuite) createExpense(token string, body map[string]any) models.Expense {
	resp := suite.call(http.MethodPost, "/api/expenses", token, body, http.StatusCreated)
	return into[models.Expense](suite.T(), resp)
}

func (suite *HandlersSuite) createBudget(token string, body map[string]any) models.Budget {
	resp := suite.call(http.MethodPost, "/api/budgets", token, body, http.StatusCreated)
	return into[models.Budget](suite.T(), resp)
}

func (suite *HandlersSuite) TestAuthRequired() {
	t := suite.T()

	resp := suite.call(http.MethodGet, "/api/expenses", "", nil, http.StatusUnauthorized)
	assert.False(t, resp.Success)
	assert.Equal(t, "Not authorized, no token", resp.Message)

	resp = suite.call(http.MethodGet, "/api/expenses", "forged", nil, http.StatusUnauthorized)
	assert.Equal(t, "Not authorized, token failed", resp.Message)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", http.NoBody)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "stale"})
	w := suite.serve(req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Header().Get("Set-Cookie"), "Max-Age=0", "stale cookie is cleared")
}

func (suite *HandlersSuite) TestLoginMeLogout() {
	t := suite.T()

	suite.call(http.MethodPost, "/api/auth/login", "", map[string]string{"username": "alice", "password": "wrong"}, http.StatusUnauthorized)
	suite.call(http.MethodPost, "/api/auth/login", "", map[string]string{"username": "alice"}, http.StatusBadRequest)
	suite.call(http.MethodPost, "/api/auth/login", "", "{not json", http.StatusBadRequest)

	w := suite.request(http.MethodPost, "/api/auth/login", "", map[string]string{"username": " alice ", "password": "secret123"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	login := into[loginResponse](t, resp)
	require.NotEmpty(t, login.Token)
	assert.Equal(t, "alice", login.User.Username)
	assert.NotContains(t, w.Body.String(), "passwordHash")
	assert.Contains(t, w.Header().Get("Set-Cookie"), SessionCookieName+"="+login.Token)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", http.NoBody)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: login.Token})
	w = suite.serve(req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"username":"alice"`)

	suite.call(http.MethodPost, "/api/auth/logout", login.Token, nil, http.StatusOK)
	suite.call(http.MethodGet, "/api/auth/me", login.Token, nil, http.StatusUnauthorized)
}

func (suite *HandlersSuite) TestRollingSessionRenewal() {
	t := suite.T()
	ctx := context.Background()
	require.NoError(t, suite.db.CreateSession(ctx, "aging", suite.alice, time.Now().Add(10*24*time.Hour)))

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", http.NoBody)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "aging"})
	w := suite.serve(req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Set-Cookie"), SessionCookieName+"=aging")

	info, err := suite.db.ValidateSession(ctx, "aging")
	require.NoError(t, err)
	assert.Greater(t, time.Until(info.ExpiresAt), 29*24*time.Hour)

	w = suite.request(http.MethodGet, "/api/auth/me", aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Set-Cookie"), "fresh sessions are not renewed")
}

func (suite *HandlersSuite) TestHealthAndUnknownRoute() {
	t := suite.T()
	resp := suite.call(http.MethodGet, "/api/health", "", nil, http.StatusOK)
	assert.True(t, resp.Success)
	assert.Equal(t, "ok", into[healthStatus](t, resp).Database)

	resp = suite.call(http.MethodGet, "/api/nothing-here", "", nil, http.StatusNotFound)
	assert.Equal(t, "Route not found", resp.Message)
}

func (suite *HandlersSuite) TestExpenseLifecycleKeepsBudgetCurrent() {
	t := suite.T()
	suite.createBudget(aliceToken, map[string]any{
		"totalLimit": 1000,
		"startDate":  "2025-03-01",
		"endDate":    "2025-03-31",
	})

	late := suite.createExpense(aliceToken, map[string]any{
		"amount":      "200.50",
		"category":    "Food & Dining",
		"description": "Dinner",
		"date":        "2025-03-31T22:00:00Z",
		"tags":        []string{"family", " family ", ""},
	})
	assertDecimal(t, "200.5", late.Amount)
	assert.Equal(t, models.PaymentCash, late.PaymentMethod)
	assert.Equal(t, []string{"family"}, late.Tags)

	early := suite.createExpense(aliceToken, map[string]any{
		"amount": 50, "category": "Groceries", "description": "Veg", "date": "2025-03-02",
	})

	status := into[budget.Status](t, suite.call(http.MethodGet, "/api/budgets/current/status", aliceToken, nil, http.StatusOK))
	assertDecimal(t, "250.5", status.CurrentSpending)

	suite.call(http.MethodPut, "/api/expenses/"+late.ID, aliceToken, map[string]any{"amount": 700}, http.StatusOK)
	suite.call(http.MethodDelete, "/api/expenses/"+early.ID, aliceToken, nil, http.StatusOK)

	status = into[budget.Status](t, suite.call(http.MethodGet, "/api/budgets/current/status", aliceToken, nil, http.StatusOK))
	assertDecimal(t, "700", status.CurrentSpending)
	assertDecimal(t, "300", status.Remaining)
	assertDecimal(t, "70", *status.SpendingPercentage)
	assert.Nil(t, status.AlertLevel)
	assert.False(t, status.IsOverBudget)

	suite.call(http.MethodGet, "/api/expenses/"+early.ID, aliceToken, nil, http.StatusNotFound)
}

func (suite *HandlersSuite) TestExpenseErrors() {
	t := suite.T()
	e := suite.createExpense(aliceToken, map[string]any{"amount": 10, "category": "Rent", "description": "Deposit"})
	assert.Equal(t, now, e.Date.UTC(), "date defaults to now")

	resp := suite.call(http.MethodGet, "/api/expenses/"+e.ID, bobToken, nil, http.StatusForbidden)
	assert.Equal(t, "Not authorized to access this expense", resp.Message)
	suite.call(http.MethodPut, "/api/expenses/"+e.ID, bobToken, map[string]any{"amount": 1}, http.StatusForbidden)
	suite.call(http.MethodDelete, "/api/expenses/"+e.ID, bobToken, nil, http.StatusForbidden)

	resp = suite.call(http.MethodGet, "/api/expenses/does-not-exist", aliceToken, nil, http.StatusNotFound)
	assert.Equal(t, "Expense not found", resp.Message)

	resp = suite.call(http.MethodPost, "/api/expenses", aliceToken, map[string]any{"amount": 10, "description": "x"}, http.StatusBadRequest)
	assert.Contains(t, resp.Message, "category")
	suite.call(http.MethodPost, "/api/expenses", aliceToken, map[string]any{"amount": -1, "category": "Rent", "description": "x"}, http.StatusBadRequest)
	suite.call(http.MethodPost, "/api/expenses", aliceToken, map[string]any{"amount": 1, "category": "Rent", "description": "x", "date": "yesterday"}, http.StatusBadRequest)
	suite.call(http.MethodGet, "/api/expenses?sortBy=price", aliceToken, nil, http.StatusBadRequest)
	suite.call(http.MethodGet, "/api/expenses/summary/weekly", aliceToken, nil, http.StatusBadRequest)
}

func (suite *HandlersSuite) TestListExpensesFilters() {
	t := suite.T()
	for _, e := range []map[string]any{
		{"amount": 30, "category": "Travel", "description": "Cab", "date": "2025-03-01"},
		{"amount": 10, "category": "Groceries", "description": "Milk", "date": "2025-03-05"},
		{"amount": 20, "category": "Groceries", "description": "Eggs", "date": "2025-03-10T18:30:00Z"},
	} {
		suite.createExpense(aliceToken, e)
	}
	suite.createExpense(bobToken, map[string]any{"amount": 99, "category": "Groceries", "description": "Not mine"})

	resp := suite.call(http.MethodGet, "/api/expenses", aliceToken, nil, http.StatusOK)
	require.NotNil(t, resp.Count)
	assert.Equal(t, 3, *resp.Count)

	resp = suite.call(http.MethodGet, "/api/expenses?category=Groceries&sortBy=amount", aliceToken, nil, http.StatusOK)
	list := into[[]models.Expense](t, resp)
	require.Len(t, list, 2)
	assert.Equal(t, "Milk", list[0].Description)

	resp = suite.call(http.MethodGet, "/api/expenses?startDate=2025-03-05&endDate=2025-03-10", aliceToken, nil, http.StatusOK)
	list = into[[]models.Expense](t, resp)
	require.Len(t, list, 2, "endDate includes the whole day")
	assert.Equal(t, "Eggs", list[0].Description, "newest first by default")

	summary := into[ledger.Summary](t, suite.call(http.MethodGet, "/api/expenses/summary/monthly", aliceToken, nil, http.StatusOK))
	assert.Equal(t, 3, summary.Count)
	assertDecimal(t, "60", summary.Total)
	assertDecimal(t, "30", summary.ByCategory["Groceries"])
}

func (suite *HandlersSuite) TestExportCSV() {
	t := suite.T()
	suite.createExpense(aliceToken, map[string]any{"amount": "12.5", "category": "Shopping", "description": "Socks", "date": "2025-03-03", "tags": []string{"a", "b"}})
	suite.createExpense(aliceToken, map[string]any{"amount": 4, "category": "Other", "description": "Stamp", "date": "2025-03-04"})

	w := suite.request(http.MethodGet, "/api/expenses/export/csv", aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "expenses.csv")

	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "date,category,description,amount,paymentMethod,tags", lines[0])
	assert.Equal(t, "2025-03-03T00:00:00Z,Shopping,Socks,12.50,Cash,a;b", lines[2])

	w = suite.request(http.MethodGet, "/api/expenses/export/csv?startDate=2025-03-04", aliceToken, nil)
	assert.Len(t, strings.Split(strings.TrimSpace(w.Body.String()), "\n"), 2)
}

func (suite *HandlersSuite) TestSubscriptions() {
	t := suite.T()
	resp := suite.call(http.MethodPost, "/api/subscriptions", aliceToken, map[string]any{
		"serviceName":     "Streamly",
		"cost":            499,
		"billingCycle":    "Monthly",
		"category":        "Video Streaming",
		"startDate":       "2025-01-31",
		"nextBillingDate": "2025-01-31",
	}, http.StatusCreated)
	sub := into[models.Subscription](t, resp)
	assert.Equal(t, models.StatusActive, sub.Status)
	assert.True(t, sub.AutoRenew)
	assert.Equal(t, models.DefaultReminderDays, sub.ReminderDays)

	renewed := into[models.Subscription](t, suite.call(http.MethodPost, "/api/subscriptions/"+sub.ID+"/renew", aliceToken, nil, http.StatusOK))
	assert.Equal(t, time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC), renewed.NextBillingDate.UTC())
	suite.call(http.MethodPost, "/api/subscriptions/"+sub.ID+"/renew", bobToken, nil, http.StatusForbidden)

	suite.call(http.MethodPost, "/api/subscriptions", aliceToken, map[string]any{
		"serviceName": "Annual", "cost": 1200, "billingCycle": "Yearly",
		"startDate": "2025-01-01", "nextBillingDate": "2025-03-18",
	}, http.StatusCreated)
	suite.call(http.MethodPost, "/api/subscriptions", aliceToken, map[string]any{
		"serviceName": "Broken", "cost": 1, "startDate": "2025-01-01", "nextBillingDate": "2025-03-18",
	}, http.StatusBadRequest)

	upcoming := into[[]models.Subscription](t, suite.call(http.MethodGet, "/api/subscriptions/upcoming/7", aliceToken, nil, http.StatusOK))
	require.Len(t, upcoming, 1)
	assert.Equal(t, "Annual", upcoming[0].ServiceName)
	fallback := into[[]models.Subscription](t, suite.call(http.MethodGet, "/api/subscriptions/upcoming/soon", aliceToken, nil, http.StatusOK))
	assert.Len(t, fallback, 1)

	analysis := into[subscriptions.CostAnalysis](t, suite.call(http.MethodGet, "/api/subscriptions/analysis/cost", aliceToken, nil, http.StatusOK))
	assert.Equal(t, 2, analysis.TotalSubscriptions)
	assertDecimal(t, "599", analysis.MonthlyTotal)
	assertDecimal(t, "7188", analysis.YearlyTotal)
	assertDecimal(t, "1200", analysis.ByBillingCycle["Yearly"].Total)

	paused := into[models.Subscription](t, suite.call(http.MethodPut, "/api/subscriptions/"+sub.ID, aliceToken, map[string]any{"status": "Paused"}, http.StatusOK))
	assert.Equal(t, models.StatusPaused, paused.Status)
	list := into[[]models.Subscription](t, suite.call(http.MethodGet, "/api/subscriptions?status=Active", aliceToken, nil, http.StatusOK))
	assert.Len(t, list, 1)
	suite.call(http.MethodGet, "/api/subscriptions?status=Gone", aliceToken, nil, http.StatusBadRequest)

	suite.call(http.MethodDelete, "/api/subscriptions/"+sub.ID, aliceToken, nil, http.StatusOK)
	suite.call(http.MethodGet, "/api/subscriptions/"+sub.ID, aliceToken, nil, http.StatusNotFound)
}

func (suite *HandlersSuite) TestBudgets() {
	t := suite.T()
	resp := suite.call(http.MethodGet, "/api/budgets/current/status", aliceToken, nil, http.StatusOK)
	assert.True(t, resp.Success)
	assert.Equal(t, "No active budget found for current period", resp.Message)

	suite.createExpense(aliceToken, map[string]any{"amount": 400, "category": "Rent", "description": "Rent", "date": "2025-03-02"})
	first := suite.createBudget(aliceToken, map[string]any{"totalLimit": 1000, "startDate": "2025-03-01", "endDate": "2025-03-31"})
	assertDecimal(t, "400", first.CurrentSpending)

	second := suite.createBudget(aliceToken, map[string]any{
		"totalLimit":      500,
		"startDate":       "2025-03-01",
		"endDate":         "2025-03-31",
		"alertThresholds": map[string]int{"warning": 80},
		"currentSpending": 0,
	})
	assertDecimal(t, "400", second.CurrentSpending, "currentSpending is not client-writable")

	active := into[[]budget.Summary](t, suite.call(http.MethodGet, "/api/budgets?isActive=true", aliceToken, nil, http.StatusOK))
	require.Len(t, active, 1)
	assert.Equal(t, second.ID, active[0].ID)
	assertDecimal(t, "100", active[0].Remaining)
	suite.call(http.MethodGet, "/api/budgets?isActive=maybe", aliceToken, nil, http.StatusBadRequest)

	resp = suite.call(http.MethodGet, "/api/budgets/check-alerts", aliceToken, nil, http.StatusOK)
	assert.Equal(t, []models.AlertKind{models.AlertWarning}, into[alertsResponse](t, resp).AlertsSent)
	assert.Equal(t, []notify.Kind{notify.KindBudgetWarning}, suite.recorder.Kinds())

	resp = suite.call(http.MethodGet, "/api/budgets/check-alerts", aliceToken, nil, http.StatusOK)
	assert.Empty(t, into[alertsResponse](t, resp).AlertsSent)
	assert.Equal(t, "No alerts needed", resp.Message)

	suite.call(http.MethodPut, "/api/budgets/"+second.ID, aliceToken, map[string]any{"endDate": "2025-02-01"}, http.StatusBadRequest)
	updated := into[models.Budget](t, suite.call(http.MethodPut, "/api/budgets/"+first.ID, aliceToken, map[string]any{"isActive": true}, http.StatusOK))
	assert.True(t, updated.IsActive)
	reloaded := into[models.Budget](t, suite.call(http.MethodGet, "/api/budgets/"+second.ID, aliceToken, nil, http.StatusOK))
	assert.False(t, reloaded.IsActive)

	suite.call(http.MethodGet, "/api/budgets/"+second.ID, bobToken, nil, http.StatusForbidden)
	suite.call(http.MethodDelete, "/api/budgets/"+second.ID, aliceToken, nil, http.StatusOK)
	suite.call(http.MethodDelete, "/api/budgets/"+second.ID, aliceToken, nil, http.StatusNotFound)
}

func TestFailHidesDetailOutsideDevelopment(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/expenses", http.NoBody)
	boom := errors.New("disk I/O error")

	for _, tc := range []struct {
		development bool
		wantError   string
	}{
		{development: true, wantError: "disk I/O error"},
		{development: false, wantError: ""},
	} {
		h := &Handlers{development: tc.development}
		w := httptest.NewRecorder()
		h.fail(w, req, "Expense", boom)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		var resp response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.False(t, resp.Success)
		assert.Equal(t, "Server error", resp.Message)
		assert.Equal(t, tc.wantError, resp.Error)
	}
}

func TestParseDate(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	h := &Handlers{loc: ist}

	got, err := h.parseDate("date", "2025-03-31", false)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 31, 0, 0, 0, 0, ist), *got)

	got, err = h.parseDate("endDate", "2025-03-31", true)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 31, 23, 59, 59, int(999*time.Millisecond), ist), *got)

	got, err = h.parseDate("date", "2025-03-31T10:00:00Z", true)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 31, 10, 0, 0, 0, time.UTC), *got, "timestamps are taken as given")

	_, err = h.parseDate("date", "31/03/2025", false)
	assert.True(t, models.IsValidation(err))
}
