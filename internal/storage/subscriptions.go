package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/Deepanshu2050/subcription-manager/internal/models"

	"github.com/google/uuid"
)

const subscriptionColumns = `id, owner_id, service_name, cost_cents, billing_cycle, start_date,
	next_billing_date, status, category, reminder_days, auto_renew, notes, last_reminder_at, created_at`

// SubscriptionFilter selects subscriptions. Zero-valued fields do not
// constrain; an empty OwnerID spans every user (used by sweeps).
type SubscriptionFilter struct {
	OwnerID   string
	Status    models.SubscriptionStatus
	Category  models.SubscriptionCategory
	AutoRenew *bool
	DueFrom   time.Time
	DueTo     time.Time
}

func (f SubscriptionFilter) where() (string, []any) {
	var clauses []string
	var args []any
	if f.OwnerID != "" {
		clauses = append(clauses, "owner_id = ?")
		args = append(args, f.OwnerID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Category != "" {
		clauses = append(clauses, "category = ?")
		args = append(args, string(f.Category))
	}
	if f.AutoRenew != nil {
		clauses = append(clauses, "auto_renew = ?")
		args = append(args, boolInt(*f.AutoRenew))
	}
	if !f.DueFrom.IsZero() {
		clauses = append(clauses, "next_billing_date >= ?")
		args = append(args, formatTime(f.DueFrom))
	}
	if !f.DueTo.IsZero() {
		clauses = append(clauses, "next_billing_date <= ?")
		args = append(args, formatTime(f.DueTo))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// InsertSubscription stores a new subscription. ID and CreatedAt are assigned here.
func (db *DB) InsertSubscription(ctx context.Context, s *models.Subscription) error {
	s.ID = uuid.NewString()
	s.CreatedAt = time.Now().UTC()
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO subscriptions ("+subscriptionColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		s.ID, s.OwnerID, s.ServiceName, models.ToCents(s.Cost), string(s.BillingCycle),
		formatTime(s.StartDate), formatTime(s.NextBillingDate), string(s.Status), string(s.Category),
		s.ReminderDays, boolInt(s.AutoRenew), s.Notes, formatNullTime(s.LastReminderSent), formatTime(s.CreatedAt),
	)
	return err
}

// GetSubscription retrieves a single subscription by ID.
func (db *DB) GetSubscription(ctx context.Context, id string) (*models.Subscription, error) {
	row := db.conn.QueryRowContext(ctx, "SELECT "+subscriptionColumns+" FROM subscriptions WHERE id = ?", id)
	s, err := scanSubscription(row)
	if err != nil {
		return nil, notFound(err, "subscription", id)
	}
	return s, nil
}

// UpdateSubscription overwrites the mutable fields of an existing subscription.
func (db *DB) UpdateSubscription(ctx context.Context, s *models.Subscription) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE subscriptions SET service_name = ?, cost_cents = ?, billing_cycle = ?, start_date = ?,
		 next_billing_date = ?, status = ?, category = ?, reminder_days = ?, auto_renew = ?, notes = ?
		 WHERE id = ?`,
		s.ServiceName, models.ToCents(s.Cost), string(s.BillingCycle), formatTime(s.StartDate),
		formatTime(s.NextBillingDate), string(s.Status), string(s.Category), s.ReminderDays,
		boolInt(s.AutoRenew), s.Notes, s.ID,
	)
	if err != nil {
		return err
	}
	return requireAffected(res, "subscription", s.ID)
}

// SetNextBillingDate moves a subscription's next billing date.
func (db *DB) SetNextBillingDate(ctx context.Context, id string, next time.Time) error {
	res, err := db.conn.ExecContext(ctx,
		"UPDATE subscriptions SET next_billing_date = ? WHERE id = ?", formatTime(next), id)
	if err != nil {
		return err
	}
	return requireAffected(res, "subscription", id)
}

// MarkReminderSent records when a renewal reminder went out.
func (db *DB) MarkReminderSent(ctx context.Context, id string, at time.Time) error {
	res, err := db.conn.ExecContext(ctx,
		"UPDATE subscriptions SET last_reminder_at = ? WHERE id = ?", formatTime(at), id)
	if err != nil {
		return err
	}
	return requireAffected(res, "subscription", id)
}

// DeleteSubscription removes a subscription by ID.
func (db *DB) DeleteSubscription(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, "DELETE FROM subscriptions WHERE id = ?", id)
	if err != nil {
		return err
	}
	return requireAffected(res, "subscription", id)
}

// FindSubscriptions returns the subscriptions matching f ordered by next billing date.
func (db *DB) FindSubscriptions(ctx context.Context, f SubscriptionFilter) ([]models.Subscription, error) {
	where, args := f.where()
	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+subscriptionColumns+" FROM subscriptions"+where+" ORDER BY next_billing_date ASC, created_at ASC",
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	subs := []models.Subscription{}
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *s)
	}
	return subs, rows.Err()
}

func scanSubscription(row rowScanner) (*models.Subscription, error) {
	var s models.Subscription
	var cents int64
	var cycle, status, category, start, next, created string
	var autoRenew int
	var lastReminder sql.NullString
	if err := row.Scan(&s.ID, &s.OwnerID, &s.ServiceName, &cents, &cycle, &start, &next, &status,
		&category, &s.ReminderDays, &autoRenew, &s.Notes, &lastReminder, &created); err != nil {
		return nil, err
	}
	s.Cost = models.FromCents(cents)
	s.BillingCycle = models.BillingCycle(cycle)
	s.Status = models.SubscriptionStatus(status)
	s.Category = models.SubscriptionCategory(category)
	s.AutoRenew = autoRenew != 0

	var err error
	if s.StartDate, err = parseTime(start); err != nil {
		return nil, err
	}
	if s.NextBillingDate, err = parseTime(next); err != nil {
		return nil, err
	}
	if s.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if s.LastReminderSent, err = parseNullTime(lastReminder); err != nil {
		return nil, err
	}
	return &s, nil
}
