package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Deepanshu2050/subcription-manager/internal/app"
	"github.com/Deepanshu2050/subcription-manager/internal/budget"
	"github.com/Deepanshu2050/subcription-manager/internal/config"
	"github.com/Deepanshu2050/subcription-manager/internal/ledger"
	"github.com/Deepanshu2050/subcription-manager/internal/models"
	"github.com/Deepanshu2050/subcription-manager/internal/subscriptions"
)

const at = "2025-03-15T12:00:00Z"

func ptr[T any](v T) *T { return &v }

// setup writes a config file pointing at a fresh database seeded with one
// user who is at 90% of a March budget and has a renewal in two days.
func setup(t *testing.T) (configPath string, a *app.App) {
	t.Helper()
	for _, name := range []string{"DB_PATH", "TZ_NAME", "APP_ENV", "ADMIN_PASSWORD", "SMTP_HOST", "DISCORD_BOT_TOKEN", "TELEGRAM_BOT_TOKEN", "FINTRACK_CONFIG"} {
		t.Setenv(name, "")
	}

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "fintrack.db")
	configPath = filepath.Join(dir, "fintrack.toml")
	require.NoError(t, os.WriteFile(configPath, []byte(fmt.Sprintf(`
[database]
path = %q

[scheduler]
timezone = "UTC"
workers = 2
`, dbPath)), 0o600))

	cfg, err := config.Load(configPath)
	require.NoError(t, err)
	a, err = app.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	ctx := context.Background()
	user, err := a.DB.CreateUser(ctx, &models.User{Username: "alice", PasswordHash: "x"})
	require.NoError(t, err)

	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err = a.Budgets.Create(ctx, user.ID, budget.CreateInput{
		TotalLimit: ptr(decimal.NewFromInt(100)),
		StartDate:  ptr(start),
		EndDate:    ptr(start.AddDate(0, 1, 0).Add(-time.Second)),
	})
	require.NoError(t, err)
	_, err = a.Ledger.Create(ctx, user.ID, ledger.CreateInput{
		Amount:      ptr(decimal.NewFromInt(90)),
		Category:    models.CategoryGroceries,
		Description: "Weekly shop",
		Date:        ptr(start.AddDate(0, 0, 4)),
	}, start)
	require.NoError(t, err)
	_, err = a.Subscriptions.Create(ctx, user.ID, subscriptions.CreateInput{
		ServiceName:     "Tunes",
		Cost:            ptr(decimal.NewFromInt(99)),
		BillingCycle:    models.CycleMonthly,
		StartDate:       ptr(start),
		NextBillingDate: ptr(time.Date(2025, 3, 17, 9, 0, 0, 0, time.UTC)),
	})
	require.NoError(t, err)
	return configPath, a
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	err := run(args, stdout, stderr)
	return stdout.String() + stderr.String(), err
}

func TestSweepAlerts(t *testing.T) {
	configPath, _ := setup(t)

	out, err := runCLI(t, "sweep", "alerts", "--config", configPath, "--at", at)
	require.NoError(t, err)
	assert.Contains(t, out, "Checked 1 budgets: 1 alerts sent, 0 failed")

	out, err = runCLI(t, "sweep", "alerts", "--config", configPath, "--at", at)
	require.NoError(t, err)
	assert.Contains(t, out, "0 alerts sent", "the warning is not repeated within a day")
}

func TestSweepReminders(t *testing.T) {
	configPath, _ := setup(t)

	out, err := runCLI(t, "sweep", "reminders", "-c", configPath, "--at", at)
	require.NoError(t, err)
	assert.Contains(t, out, "Checked 1 subscriptions: 1 reminders sent, 0 failed")
}

func TestSweepRejectsBadTime(t *testing.T) {
	configPath, _ := setup(t)

	_, err := runCLI(t, "sweep", "alerts", "--config", configPath, "--at", "tomorrow")
	assert.ErrorContains(t, err, "RFC 3339")
}

func TestReconcile(t *testing.T) {
	configPath, a := setup(t)
	owner, err := a.DB.GetUserByUsername(context.Background(), "alice")
	require.NoError(t, err)
	_, err = a.DB.AddBudgetSpending(context.Background(), owner.ID, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), decimal.NewFromInt(7))
	require.NoError(t, err)

	out, err := runCLI(t, "reconcile", "--config", configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Checked 1 budgets: 1 adjusted, 0 failed")

	out, err = runCLI(t, "reconcile", "--config", configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "0 adjusted")
}

func TestConfigShowMasksSecrets(t *testing.T) {
	configPath, _ := setup(t)
	t.Setenv("ADMIN_PASSWORD", "hunter2")

	out, err := runCLI(t, "config", "show", "--config", configPath)
	require.NoError(t, err)
	assert.Contains(t, out, `timezone = "UTC"`)
	assert.Contains(t, out, `password = "********"`)
	assert.NotContains(t, out, "hunter2")
}

func TestUnknownCommand(t *testing.T) {
	_, err := runCLI(t, "launch")
	assert.Error(t, err)
}
