package storage

import (
	"context"
	"time"

	"github.com/Deepanshu2050/subcription-manager/internal/models"

	"github.com/google/uuid"
)

const userColumns = "id, username, name, email, email_notifications, password_hash, created_at"

// CreateUser inserts a new user. ID and CreatedAt are assigned here.
func (db *DB) CreateUser(ctx context.Context, u *models.User) (*models.User, error) {
	u.ID = uuid.NewString()
	u.CreatedAt = time.Now().UTC()
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO users ("+userColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
		u.ID, u.Username, u.Name, u.Email, boolInt(u.EmailNotifications), u.PasswordHash, formatTime(u.CreatedAt),
	)
	if err != nil {
		return nil, err
	}
	return db.GetUserByID(ctx, u.ID)
}

// GetUserByID retrieves a user by ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	row := db.conn.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
	u, err := scanUser(row)
	if err != nil {
		return nil, notFound(err, "user", id)
	}
	return u, nil
}

// GetUserByUsername retrieves a user by username.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	row := db.conn.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE username = ?", username)
	u, err := scanUser(row)
	if err != nil {
		return nil, notFound(err, "user", username)
	}
	return u, nil
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	var notify int
	var created string
	if err := row.Scan(&u.ID, &u.Username, &u.Name, &u.Email, &notify, &u.PasswordHash, &created); err != nil {
		return nil, err
	}
	u.EmailNotifications = notify != 0
	t, err := parseTime(created)
	if err != nil {
		return nil, err
	}
	u.CreatedAt = t
	return &u, nil
}

// UserCount returns the number of users in the database.
func (db *DB) UserCount(ctx context.Context) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count)
	return count, err
}

// CreateSession creates a new session for a user.
func (db *DB) CreateSession(ctx context.Context, token, userID string, expiresAt time.Time) error {
	now := time.Now()
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO sessions (token, user_id, expires_at, last_activity) VALUES (?, ?, ?, ?)",
		token, userID, formatTime(expiresAt), formatTime(now),
	)
	return err
}

// SessionInfo holds session validation data.
type SessionInfo struct {
	User         *models.User
	LastActivity time.Time
	ExpiresAt    time.Time
}

// ValidateSession checks if a session token is valid and returns the user
// with the session's activity and expiry.
func (db *DB) ValidateSession(ctx context.Context, token string) (*SessionInfo, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT u.id, u.username, u.name, u.email, u.email_notifications, u.password_hash, u.created_at,
		       s.last_activity, s.expires_at
		FROM sessions s
		JOIN users u ON s.user_id = u.id
		WHERE s.token = ? AND s.expires_at > ?
	`, token, formatTime(time.Now()))

	var u models.User
	var notify int
	var created, lastActivity, expiresAt string
	if err := row.Scan(&u.ID, &u.Username, &u.Name, &u.Email, &notify, &u.PasswordHash, &created,
		&lastActivity, &expiresAt); err != nil {
		return nil, notFound(err, "session", "token")
	}
	u.EmailNotifications = notify != 0

	info := &SessionInfo{User: &u}
	var err error
	if u.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if info.LastActivity, err = parseTime(lastActivity); err != nil {
		return nil, err
	}
	if info.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, err
	}
	return info, nil
}

// RenewSession updates the last_activity and expires_at for a session.
func (db *DB) RenewSession(ctx context.Context, token string, newExpiresAt time.Time) error {
	_, err := db.conn.ExecContext(ctx,
		"UPDATE sessions SET last_activity = ?, expires_at = ? WHERE token = ?",
		formatTime(time.Now()), formatTime(newExpiresAt), token,
	)
	return err
}

// DeleteSession removes a session by token.
func (db *DB) DeleteSession(ctx context.Context, token string) error {
	_, err := db.conn.ExecContext(ctx, "DELETE FROM sessions WHERE token = ?", token)
	return err
}

// CleanExpiredSessions removes all expired sessions.
func (db *DB) CleanExpiredSessions(ctx context.Context) error {
	_, err := db.conn.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at <= ?", formatTime(time.Now()))
	return err
}
