package db

import (
	"context"
	"fmt"
)

// CreditViewer adds points and watch minutes to a viewer, creating the row on first sight.
// Amounts must not be negative; there is no path that lowers a balance.
func (s *Store) CreditViewer(ctx context.Context, userID, username string, points, watchMinutes int) error {
	if points < 0 || watchMinutes < 0 {
		return fmt.Errorf("credit viewer %s: negative amount (points=%d minutes=%d)", userID, points, watchMinutes)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO viewer_points(user_id, username, points, watch_minutes, last_seen)
		 VALUES($1,$2,$3,$4,NOW())
		 ON CONFLICT(user_id) DO UPDATE SET
		   username = EXCLUDED.username,
		   points = viewer_points.points + EXCLUDED.points,
		   watch_minutes = viewer_points.watch_minutes + EXCLUDED.watch_minutes,
		   last_seen = NOW()`,
		userID, username, points, watchMinutes)
	if err != nil {
		return fmt.Errorf("credit viewer %s: %w", userID, err)
	}
	return nil
}

// GetViewerPoints returns the ledger row for userID or ErrNotFound.
func (s *Store) GetViewerPoints(ctx context.Context, userID string) (*ViewerPoints, error) {
	var v ViewerPoints
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, username, points, watch_minutes, last_seen FROM viewer_points WHERE user_id = $1`,
		userID).Scan(&v.UserID, &v.Username, &v.Points, &v.WatchMinutes, &v.LastSeen)
	if err != nil {
		return nil, mapErr(err)
	}
	return &v, nil
}

// TopViewers returns up to limit viewers ordered by points, highest first.
func (s *Store) TopViewers(ctx context.Context, limit int) ([]ViewerPoints, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, username, points, watch_minutes, last_seen
		 FROM viewer_points ORDER BY points DESC, username ASC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("top viewers: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []ViewerPoints
	for rows.Next() {
		var v ViewerPoints
		if err := rows.Scan(&v.UserID, &v.Username, &v.Points, &v.WatchMinutes, &v.LastSeen); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
