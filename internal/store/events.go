package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"cargobot/internal/orders"
)

// EventQuery filters the sync log. Zero values mean "no bound".
type EventQuery struct {
	Since        time.Time // created_at >= Since
	Until        time.Time // created_at <= Until
	Types        []orders.EventType
	ExcludeTypes []orders.EventType
	Ascending    bool // default newest first
	Limit        int
}

// ListEvents returns sync log rows matching q.
func (s *Store) ListEvents(ctx context.Context, q EventQuery) ([]orders.Event, error) {
	var (
		where []string
		args  []any
	)
	if !q.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, q.Since.UTC())
	}
	if !q.Until.IsZero() {
		where = append(where, "created_at <= ?")
		args = append(args, q.Until.UTC())
	}
	if len(q.Types) > 0 {
		where = append(where, "event_type IN ("+placeholders(len(q.Types))+")")
		for _, t := range q.Types {
			args = append(args, string(t))
		}
	}
	if len(q.ExcludeTypes) > 0 {
		where = append(where, "event_type NOT IN ("+placeholders(len(q.ExcludeTypes))+")")
		for _, t := range q.ExcludeTypes {
			args = append(args, string(t))
		}
	}

	var b strings.Builder
	b.WriteString("SELECT id, order_id, order_number, event_type, event_data, created_at FROM cloud_sync_log")
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	if q.Ascending {
		b.WriteString(" ORDER BY created_at ASC, id ASC")
	} else {
		b.WriteString(" ORDER BY created_at DESC, id DESC")
	}
	if q.Limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(b.String()), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []orders.Event
	for rows.Next() {
		var (
			e       orders.Event
			number  sql.NullString
			typ     string
			data    []byte
			created scanTime
		)
		if err := rows.Scan(&e.ID, &e.OrderID, &number, &typ, &data, &created); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.OrderNumber = number.String
		e.Type = orders.EventType(typ)
		e.Data = orders.ParseEventData(data)
		e.CreatedAt = created.Time
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}
	return events, nil
}

// CountEvents returns the total number of sync log rows.
func (s *Store) CountEvents(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM cloud_sync_log").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}

// InsertEvent appends a row to the sync log. The sync service owns this
// table in production; this exists for tooling and tests.
// A zero CreatedAt is stamped with the store clock.
func (s *Store) InsertEvent(ctx context.Context, e orders.Event) (int64, error) {
	data, err := e.Data.Marshal()
	if err != nil {
		return 0, fmt.Errorf("failed to encode event data: %w", err)
	}
	created := e.CreatedAt
	if created.IsZero() {
		created = s.now()
	}

	var number any
	if e.OrderNumber != "" {
		number = e.OrderNumber
	}

	var id int64
	err = s.db.QueryRowContext(ctx, s.rebind(
		`INSERT INTO cloud_sync_log (order_id, order_number, event_type, event_data, created_at)
		 VALUES (?, ?, ?, ?, ?) RETURNING id`),
		e.OrderID, number, string(e.Type), string(data), created.UTC(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert event: %w", err)
	}
	return id, nil
}
