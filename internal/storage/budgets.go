package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Deepanshu2050/subcription-manager/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const budgetColumns = `id, owner_id, period, total_limit_cents, category_limits, warning_threshold,
	critical_threshold, start_date, end_date, current_spending_cents, last_warning_at, last_critical_at,
	is_active, created_at`

const recomputeSpendingSQL = `UPDATE budgets SET current_spending_cents = (
		SELECT COALESCE(SUM(e.amount_cents), 0) FROM expenses e
		WHERE e.owner_id = budgets.owner_id AND e.date >= budgets.start_date AND e.date <= budgets.end_date
	) WHERE id = ? RETURNING current_spending_cents`

// BudgetFilter selects budgets. Zero-valued fields do not constrain; an
// empty OwnerID spans every user (used by sweeps).
type BudgetFilter struct {
	OwnerID  string
	Active   *bool
	Covering time.Time
}

func (f BudgetFilter) where() (string, []any) {
	var clauses []string
	var args []any
	if f.OwnerID != "" {
		clauses = append(clauses, "owner_id = ?")
		args = append(args, f.OwnerID)
	}
	if f.Active != nil {
		clauses = append(clauses, "is_active = ?")
		args = append(args, boolInt(*f.Active))
	}
	if !f.Covering.IsZero() {
		at := formatTime(f.Covering)
		clauses = append(clauses, "start_date <= ? AND end_date >= ?")
		args = append(args, at, at)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// CreateBudget stores a new budget in one transaction: the owner's active
// budgets are deactivated first, and CurrentSpending is backfilled from the
// owner's expenses inside the budget window.
func (db *DB) CreateBudget(ctx context.Context, b *models.Budget) error {
	limits, err := json.Marshal(nonNilLimits(b.CategoryLimits))
	if err != nil {
		return err
	}
	b.ID = uuid.NewString()
	b.CreatedAt = time.Now().UTC()

	return db.withTx(ctx, func(tx *sql.Tx) error {
		if err := deactivateOthers(ctx, tx, b.OwnerID, b.ID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO budgets ("+budgetColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?)",
			b.ID, b.OwnerID, string(b.Period), models.ToCents(b.TotalLimit), string(limits),
			b.AlertThresholds.Warning, b.AlertThresholds.Critical, formatTime(b.StartDate), formatTime(b.EndDate),
			formatNullTime(b.LastAlertSent.Warning), formatNullTime(b.LastAlertSent.Critical),
			boolInt(b.IsActive), formatTime(b.CreatedAt),
		)
		if err != nil {
			return err
		}
		spent, err := recompute(ctx, tx, b.ID)
		if err != nil {
			return err
		}
		b.CurrentSpending = spent
		return nil
	})
}

// UpdateBudget overwrites the client-editable fields of a budget. When b is
// active the owner's other active budgets are deactivated; when rederive is
// set CurrentSpending is recomputed from raw expenses.
func (db *DB) UpdateBudget(ctx context.Context, b *models.Budget, rederive bool) error {
	limits, err := json.Marshal(nonNilLimits(b.CategoryLimits))
	if err != nil {
		return err
	}

	return db.withTx(ctx, func(tx *sql.Tx) error {
		if b.IsActive {
			if err := deactivateOthers(ctx, tx, b.OwnerID, b.ID); err != nil {
				return err
			}
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE budgets SET period = ?, total_limit_cents = ?, category_limits = ?, warning_threshold = ?,
			 critical_threshold = ?, start_date = ?, end_date = ?, is_active = ? WHERE id = ?`,
			string(b.Period), models.ToCents(b.TotalLimit), string(limits), b.AlertThresholds.Warning,
			b.AlertThresholds.Critical, formatTime(b.StartDate), formatTime(b.EndDate), boolInt(b.IsActive), b.ID,
		)
		if err != nil {
			return err
		}
		if err := requireAffected(res, "budget", b.ID); err != nil {
			return err
		}
		if rederive {
			spent, err := recompute(ctx, tx, b.ID)
			if err != nil {
				return err
			}
			b.CurrentSpending = spent
		}
		return nil
	})
}

func deactivateOthers(ctx context.Context, tx *sql.Tx, ownerID, keepID string) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE budgets SET is_active = 0 WHERE owner_id = ? AND is_active = 1 AND id != ?", ownerID, keepID)
	return err
}

func recompute(ctx context.Context, tx *sql.Tx, id string) (decimal.Decimal, error) {
	var cents int64
	if err := tx.QueryRowContext(ctx, recomputeSpendingSQL, id).Scan(&cents); err != nil {
		return decimal.Zero, notFound(err, "budget", id)
	}
	return models.FromCents(cents), nil
}

// GetBudget retrieves a single budget by ID.
func (db *DB) GetBudget(ctx context.Context, id string) (*models.Budget, error) {
	row := db.conn.QueryRowContext(ctx, "SELECT "+budgetColumns+" FROM budgets WHERE id = ?", id)
	b, err := scanBudget(row)
	if err != nil {
		return nil, notFound(err, "budget", id)
	}
	return b, nil
}

// DeleteBudget removes a budget by ID.
func (db *DB) DeleteBudget(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, "DELETE FROM budgets WHERE id = ?", id)
	if err != nil {
		return err
	}
	return requireAffected(res, "budget", id)
}

// FindBudgets returns the budgets matching f, newest window first.
func (db *DB) FindBudgets(ctx context.Context, f BudgetFilter) ([]models.Budget, error) {
	where, args := f.where()
	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+budgetColumns+" FROM budgets"+where+" ORDER BY start_date DESC, created_at DESC", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	budgets := []models.Budget{}
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, err
		}
		budgets = append(budgets, *b)
	}
	return budgets, rows.Err()
}

// AddBudgetSpending atomically adds delta to the running total of ownerID's
// active budget whose window contains at. It reports whether a budget matched.
func (db *DB) AddBudgetSpending(ctx context.Context, ownerID string, at time.Time, delta decimal.Decimal) (bool, error) {
	ts := formatTime(at)
	res, err := db.conn.ExecContext(ctx,
		`UPDATE budgets SET current_spending_cents = current_spending_cents + ?
		 WHERE owner_id = ? AND is_active = 1 AND start_date <= ? AND end_date >= ?`,
		models.ToCents(delta), ownerID, ts, ts,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// RecomputeBudgetSpending resets a budget's running total to the sum of the
// owner's expenses inside its window and returns the new total.
func (db *DB) RecomputeBudgetSpending(ctx context.Context, id string) (decimal.Decimal, error) {
	var spent decimal.Decimal
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		spent, err = recompute(ctx, tx, id)
		return err
	})
	return spent, err
}

// StampAlert records when an alert of the given kind was sent for a budget.
func (db *DB) StampAlert(ctx context.Context, id string, kind models.AlertKind, at time.Time) error {
	var column string
	switch kind {
	case models.AlertWarning:
		column = "last_warning_at"
	case models.AlertCritical:
		column = "last_critical_at"
	default:
		return fmt.Errorf("unknown alert kind %q", kind)
	}
	res, err := db.conn.ExecContext(ctx, "UPDATE budgets SET "+column+" = ? WHERE id = ?", formatTime(at), id)
	if err != nil {
		return err
	}
	return requireAffected(res, "budget", id)
}

func scanBudget(row rowScanner) (*models.Budget, error) {
	var b models.Budget
	var period, limits, start, end, created string
	var limitCents, spentCents int64
	var active int
	var lastWarning, lastCritical sql.NullString
	if err := row.Scan(&b.ID, &b.OwnerID, &period, &limitCents, &limits, &b.AlertThresholds.Warning,
		&b.AlertThresholds.Critical, &start, &end, &spentCents, &lastWarning, &lastCritical,
		&active, &created); err != nil {
		return nil, err
	}
	b.Period = models.BudgetPeriod(period)
	b.TotalLimit = models.FromCents(limitCents)
	b.CurrentSpending = models.FromCents(spentCents)
	b.IsActive = active != 0
	if err := json.Unmarshal([]byte(limits), &b.CategoryLimits); err != nil {
		return nil, fmt.Errorf("decoding category limits of budget %s: %w", b.ID, err)
	}

	var err error
	if b.StartDate, err = parseTime(start); err != nil {
		return nil, err
	}
	if b.EndDate, err = parseTime(end); err != nil {
		return nil, err
	}
	if b.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if b.LastAlertSent.Warning, err = parseNullTime(lastWarning); err != nil {
		return nil, err
	}
	if b.LastAlertSent.Critical, err = parseNullTime(lastCritical); err != nil {
		return nil, err
	}
	return &b, nil
}

func nonNilLimits(limits []models.CategoryLimit) []models.CategoryLimit {
	if limits == nil {
		return []models.CategoryLimit{}
	}
	return limits
}
