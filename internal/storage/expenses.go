package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Deepanshu2050/subcription-manager/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const expenseColumns = "id, owner_id, amount_cents, category, description, date, payment_method, tags, created_at"

var expenseOrders = map[string]string{
	"date":      "date ASC, created_at ASC",
	"-date":     "date DESC, created_at DESC",
	"amount":    "amount_cents ASC, date DESC",
	"-amount":   "amount_cents DESC, date DESC",
	"category":  "category ASC, date DESC",
	"-category": "category DESC, date DESC",
}

// DefaultExpenseSort orders expenses newest first.
const DefaultExpenseSort = "-date"

// ValidExpenseSort reports whether sort is a supported expense order.
func ValidExpenseSort(sort string) bool {
	_, ok := expenseOrders[sort]
	return ok
}

// ExpenseFilter selects expenses. Zero-valued fields do not constrain.
type ExpenseFilter struct {
	OwnerID  string
	Category models.Category
	From     time.Time
	To       time.Time
	Sort     string
}

func (f ExpenseFilter) where() (string, []any) {
	var clauses []string
	var args []any
	if f.OwnerID != "" {
		clauses = append(clauses, "owner_id = ?")
		args = append(args, f.OwnerID)
	}
	if f.Category != "" {
		clauses = append(clauses, "category = ?")
		args = append(args, string(f.Category))
	}
	if !f.From.IsZero() {
		clauses = append(clauses, "date >= ?")
		args = append(args, formatTime(f.From))
	}
	if !f.To.IsZero() {
		clauses = append(clauses, "date <= ?")
		args = append(args, formatTime(f.To))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// InsertExpense stores a new expense. ID and CreatedAt are assigned here.
func (db *DB) InsertExpense(ctx context.Context, e *models.Expense) error {
	tags, err := json.Marshal(nonNilTags(e.Tags))
	if err != nil {
		return err
	}
	e.ID = uuid.NewString()
	e.CreatedAt = time.Now().UTC()
	_, err = db.conn.ExecContext(ctx,
		"INSERT INTO expenses ("+expenseColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		e.ID, e.OwnerID, models.ToCents(e.Amount), string(e.Category), e.Description,
		formatTime(e.Date), string(e.PaymentMethod), string(tags), formatTime(e.CreatedAt),
	)
	return err
}

// GetExpense retrieves a single expense by ID.
func (db *DB) GetExpense(ctx context.Context, id string) (*models.Expense, error) {
	row := db.conn.QueryRowContext(ctx, "SELECT "+expenseColumns+" FROM expenses WHERE id = ?", id)
	e, err := scanExpense(row)
	if err != nil {
		return nil, notFound(err, "expense", id)
	}
	return e, nil
}

// UpdateExpense loads the expense, lets apply modify it and writes it back
// in one transaction. It returns the row as it was before apply and as it
// was stored. An error from apply aborts the write and is returned as is.
func (db *DB) UpdateExpense(ctx context.Context, id string, apply func(e *models.Expense) error) (before, after *models.Expense, err error) {
	err = db.withTx(ctx, func(tx *sql.Tx) error {
		e, err := scanExpense(tx.QueryRowContext(ctx, "SELECT "+expenseColumns+" FROM expenses WHERE id = ?", id))
		if err != nil {
			return notFound(err, "expense", id)
		}
		prev := *e
		prev.Tags = slices.Clone(e.Tags)
		if err := apply(e); err != nil {
			return err
		}

		tags, err := json.Marshal(nonNilTags(e.Tags))
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE expenses SET amount_cents = ?, category = ?, description = ?, date = ?,
			 payment_method = ?, tags = ? WHERE id = ?`,
			models.ToCents(e.Amount), string(e.Category), e.Description, formatTime(e.Date),
			string(e.PaymentMethod), string(tags), id,
		)
		if err != nil {
			return err
		}
		if err := requireAffected(res, "expense", id); err != nil {
			return err
		}
		before, after = &prev, e
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return before, after, nil
}

// DeleteExpense removes an expense and returns it. When check is non-nil it
// sees the row first and an error from it leaves the row in place.
func (db *DB) DeleteExpense(ctx context.Context, id string, check func(e *models.Expense) error) (*models.Expense, error) {
	var removed *models.Expense
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		e, err := scanExpense(tx.QueryRowContext(ctx, "SELECT "+expenseColumns+" FROM expenses WHERE id = ?", id))
		if err != nil {
			return notFound(err, "expense", id)
		}
		if check != nil {
			if err := check(e); err != nil {
				return err
			}
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM expenses WHERE id = ?", id)
		if err != nil {
			return err
		}
		if err := requireAffected(res, "expense", id); err != nil {
			return err
		}
		removed = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// FindExpenses returns the expenses matching f.
func (db *DB) FindExpenses(ctx context.Context, f ExpenseFilter) ([]models.Expense, error) {
	sort := f.Sort
	if sort == "" {
		sort = DefaultExpenseSort
	}
	order, ok := expenseOrders[sort]
	if !ok {
		return nil, fmt.Errorf("unsupported expense sort %q", sort)
	}

	where, args := f.where()
	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+expenseColumns+" FROM expenses"+where+" ORDER BY "+order, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	expenses := []models.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, *e)
	}
	return expenses, rows.Err()
}

// SumExpenses returns the total of ownerID's expenses dated within [from, to].
func (db *DB) SumExpenses(ctx context.Context, ownerID string, from, to time.Time) (decimal.Decimal, error) {
	var cents int64
	err := db.conn.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(amount_cents), 0) FROM expenses WHERE owner_id = ? AND date >= ? AND date <= ?",
		ownerID, formatTime(from), formatTime(to),
	).Scan(&cents)
	if err != nil {
		return decimal.Zero, err
	}
	return models.FromCents(cents), nil
}

func scanExpense(row rowScanner) (*models.Expense, error) {
	var e models.Expense
	var cents int64
	var category, method, tags, date, created string
	if err := row.Scan(&e.ID, &e.OwnerID, &cents, &category, &e.Description, &date, &method, &tags, &created); err != nil {
		return nil, err
	}
	e.Amount = models.FromCents(cents)
	e.Category = models.Category(category)
	e.PaymentMethod = models.PaymentMethod(method)
	if err := json.Unmarshal([]byte(tags), &e.Tags); err != nil {
		return nil, fmt.Errorf("decoding tags of expense %s: %w", e.ID, err)
	}
	var err error
	if e.Date, err = parseTime(date); err != nil {
		return nil, err
	}
	if e.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	return &e, nil
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
