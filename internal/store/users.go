package store

import (
	"context"
	"fmt"
	"time"
)

// User is a registered bot user.
type User struct {
	TelegramID int64
	Username   string
	FirstName  string
	LastName   string
	IsAdmin    bool
	CreatedAt  time.Time
}

// RegisterUser inserts u unless its telegram id is already known.
// It reports whether a row was created.
func (s *Store) RegisterUser(ctx context.Context, u User) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO bot_users (telegram_id, username, first_name, last_name, is_admin, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (telegram_id) DO NOTHING`),
		u.TelegramID, u.Username, u.FirstName, u.LastName, u.IsAdmin, s.now(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to register user %d: %w", u.TelegramID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to register user %d: %w", u.TelegramID, err)
	}
	return n > 0, nil
}

// GetUser returns the user with the given telegram id.
func (s *Store) GetUser(ctx context.Context, telegramID int64) (*User, error) {
	var (
		u       User
		created scanTime
	)
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT telegram_id, COALESCE(username, ''), COALESCE(first_name, ''), COALESCE(last_name, ''), is_admin, created_at
		 FROM bot_users WHERE telegram_id = ?`), telegramID,
	).Scan(&u.TelegramID, &u.Username, &u.FirstName, &u.LastName, &u.IsAdmin, &created)
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", telegramID, err)
	}
	u.CreatedAt = created.Time
	return &u, nil
}

// CountUsers returns the number of registered users.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM bot_users").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

// ListUserIDs returns every registered telegram id, oldest first.
func (s *Store) ListUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT telegram_id FROM bot_users ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
