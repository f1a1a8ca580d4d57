package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"attentid/internal/event"
)

// PostgresStore persists beacon events in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed event store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Append inserts one event. received_at is assigned server-side so event time
// reflects persistence order, not producer clocks.
func (s *PostgresStore) Append(ctx context.Context, e event.Event) (event.Event, error) {
	query := `
		INSERT INTO events (topic, payload, qos, device_id, received_at)
		VALUES ($1, $2, $3, $4, now())
		RETURNING id, received_at
	`
	row := s.db.QueryRowContext(ctx, query, e.Topic, e.Payload, e.QoS, nullable(e.DeviceID))
	if err := row.Scan(&e.ID, &e.ReceivedAt); err != nil {
		return event.Event{}, fmt.Errorf("insert event: %w", err)
	}
	return e, nil
}

// QueryByTopicSubstrings returns events whose topic contains every substring,
// optionally restricted to [from, to] inclusive.
func (s *PostgresStore) QueryByTopicSubstrings(ctx context.Context, substrings []string, from, to *time.Time) ([]event.Event, error) {
	var (
		conds []string
		args  []any
	)
	for _, sub := range substrings {
		args = append(args, "%"+sub+"%")
		conds = append(conds, fmt.Sprintf("topic LIKE $%d", len(args)))
	}
	if from != nil && to != nil {
		args = append(args, *from)
		conds = append(conds, fmt.Sprintf("received_at >= $%d", len(args)))
		args = append(args, *to)
		conds = append(conds, fmt.Sprintf("received_at <= $%d", len(args)))
	}

	query := `
		SELECT id, topic, payload, qos, COALESCE(device_id, ''), received_at
		FROM events
		WHERE ` + strings.Join(conds, " AND ") + `
		ORDER BY received_at
	`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// QueryByTopicSubstring is the single-substring variant of
// QueryByTopicSubstrings.
func (s *PostgresStore) QueryByTopicSubstring(ctx context.Context, substring string, from, to *time.Time) ([]event.Event, error) {
	return s.QueryByTopicSubstrings(ctx, []string{substring}, from, to)
}

func scanEvents(rows *sql.Rows) ([]event.Event, error) {
	var events []event.Event
	for rows.Next() {
		var e event.Event
		if err := rows.Scan(&e.ID, &e.Topic, &e.Payload, &e.QoS, &e.DeviceID, &e.ReceivedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
