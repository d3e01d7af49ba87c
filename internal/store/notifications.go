package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Queue row states.
const (
	NotificationPending = "pending"
	NotificationSent    = "sent"
	NotificationFailed  = "failed"
)

// Notification is a queued outbound message.
type Notification struct {
	ID         int64
	TelegramID int64
	Text       string
	Status     string
	Attempts   int
	LastError  string
	CreatedAt  time.Time
	SentAt     time.Time // zero until sent
}

const notificationColumns = `id, telegram_id, message_text, status, attempts, COALESCE(last_error, ''), created_at, sent_at`

func scanNotification(row interface{ Scan(...any) error }) (Notification, error) {
	var (
		n       Notification
		created scanTime
		sent    scanTime
	)
	if err := row.Scan(&n.ID, &n.TelegramID, &n.Text, &n.Status, &n.Attempts, &n.LastError, &created, &sent); err != nil {
		return Notification{}, err
	}
	n.CreatedAt = created.Time
	if sent.Valid {
		n.SentAt = sent.Time
	}
	return n, nil
}

// PendingNotifications returns up to limit pending rows, oldest first.
func (s *Store) PendingNotifications(ctx context.Context, limit int) ([]Notification, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT `+notificationColumns+` FROM notifications_queue
		 WHERE status = ? ORDER BY created_at ASC, id ASC LIMIT ?`),
		NotificationPending, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// GetNotification returns one queue row.
func (s *Store) GetNotification(ctx context.Context, id int64) (Notification, error) {
	n, err := scanNotification(s.db.QueryRowContext(ctx, s.rebind(
		`SELECT `+notificationColumns+` FROM notifications_queue WHERE id = ?`), id))
	if err != nil {
		return Notification{}, fmt.Errorf("failed to get notification %d: %w", id, err)
	}
	return n, nil
}

// Enqueue adds a pending notification and returns its id.
func (s *Store) Enqueue(ctx context.Context, telegramID int64, text string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, s.rebind(
		`INSERT INTO notifications_queue (telegram_id, message_text, status, attempts, created_at)
		 VALUES (?, ?, ?, 0, ?) RETURNING id`),
		telegramID, text, NotificationPending, s.now(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to enqueue notification: %w", err)
	}
	return id, nil
}

// MarkSent flips a row to sent.
func (s *Store) MarkSent(ctx context.Context, id int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE notifications_queue SET status = ?, sent_at = ? WHERE id = ?`),
		NotificationSent, at.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark notification %d sent: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed to mark notification %d sent: %w", id, sql.ErrNoRows)
	}
	return nil
}

// MarkFailed records a failed attempt. Once attempts reach maxAttempts
// the row is parked as failed and leaves the pending queue; it reports
// whether that happened.
func (s *Store) MarkFailed(ctx context.Context, id int64, cause string, maxAttempts int) (bool, error) {
	var status string
	err := s.db.QueryRowContext(ctx, s.rebind(
		`UPDATE notifications_queue
		 SET attempts = attempts + 1,
		     last_error = ?,
		     status = CASE WHEN attempts + 1 >= ? THEN ? ELSE status END
		 WHERE id = ?
		 RETURNING status`),
		cause, maxAttempts, NotificationFailed, id,
	).Scan(&status)
	if err != nil {
		return false, fmt.Errorf("failed to record failure for notification %d: %w", id, err)
	}
	return status == NotificationFailed, nil
}
