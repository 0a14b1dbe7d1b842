package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const scheduleColumns = `id, message, interval_minutes, enabled, last_sent_at, created_at`

func scanSchedule(sc interface{ Scan(...any) error }) (ScheduledMessage, error) {
	var (
		m    ScheduledMessage
		last sql.NullTime
	)
	if err := sc.Scan(&m.ID, &m.Message, &m.IntervalMinutes, &m.Enabled, &last, &m.CreatedAt); err != nil {
		return m, err
	}
	if last.Valid {
		t := last.Time
		m.LastSentAt = &t
	}
	return m, nil
}

// CreateSchedule stores a new enabled scheduled message.
func (s *Store) CreateSchedule(ctx context.Context, message string, intervalMinutes int) (*ScheduledMessage, error) {
	if intervalMinutes <= 0 {
		return nil, fmt.Errorf("create schedule: interval must be positive, got %d", intervalMinutes)
	}
	m, err := scanSchedule(s.db.QueryRowContext(ctx,
		`INSERT INTO scheduled_messages(message, interval_minutes) VALUES($1,$2) RETURNING `+scheduleColumns,
		message, intervalMinutes))
	if err != nil {
		return nil, mapErr(err)
	}
	return &m, nil
}

// GetSchedule returns one scheduled message or ErrNotFound.
func (s *Store) GetSchedule(ctx context.Context, id int64) (*ScheduledMessage, error) {
	m, err := scanSchedule(s.db.QueryRowContext(ctx,
		`SELECT `+scheduleColumns+` FROM scheduled_messages WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err)
	}
	return &m, nil
}

// ListSchedules returns every scheduled message ordered by id.
func (s *Store) ListSchedules(ctx context.Context) ([]ScheduledMessage, error) {
	return s.listSchedules(ctx, `SELECT `+scheduleColumns+` FROM scheduled_messages ORDER BY id`)
}

// ListEnabledSchedules returns the messages the broadcast scheduler should run.
func (s *Store) ListEnabledSchedules(ctx context.Context) ([]ScheduledMessage, error) {
	return s.listSchedules(ctx, `SELECT `+scheduleColumns+` FROM scheduled_messages WHERE enabled ORDER BY id`)
}

func (s *Store) listSchedules(ctx context.Context, q string) ([]ScheduledMessage, error) {
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []ScheduledMessage
	for rows.Next() {
		m, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// SetScheduleEnabled toggles a scheduled message.
func (s *Store) SetScheduleEnabled(ctx context.Context, id int64, enabled bool) error {
	return affected(s.db.ExecContext(ctx, `UPDATE scheduled_messages SET enabled = $2 WHERE id = $1`, id, enabled))
}

// MarkScheduleSent records the instant a scheduled message was last sent.
func (s *Store) MarkScheduleSent(ctx context.Context, id int64, at time.Time) error {
	return affected(s.db.ExecContext(ctx, `UPDATE scheduled_messages SET last_sent_at = $2 WHERE id = $1`, id, at))
}

// DeleteSchedule removes a scheduled message.
func (s *Store) DeleteSchedule(ctx context.Context, id int64) error {
	return affected(s.db.ExecContext(ctx, `DELETE FROM scheduled_messages WHERE id = $1`, id))
}
