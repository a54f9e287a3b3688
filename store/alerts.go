package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

func (s *SQLite) InsertAlert(ctx context.Context, a *AlertRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alerts (id, owner, contact_name, contact_phone, distance_km,
			user_lat, user_lon, contact_lat, contact_lon,
			classification, dismissed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		a.ID, a.Owner, a.ContactName, a.ContactPhone, a.DistanceKm,
		a.UserLocation.Latitude, a.UserLocation.Longitude,
		a.ContactLocation.Latitude, a.ContactLocation.Longitude,
		a.Classification, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

const alertColumns = `id, owner, contact_name, contact_phone, distance_km,
	user_lat, user_lon, contact_lat, contact_lon,
	classification, dismissed, dismissed_at, created_at`

func scanAlert(scan func(dest ...any) error) (*AlertRecord, error) {
	a := &AlertRecord{}
	var dismissedAt sql.NullTime
	err := scan(
		&a.ID, &a.Owner, &a.ContactName, &a.ContactPhone, &a.DistanceKm,
		&a.UserLocation.Latitude, &a.UserLocation.Longitude,
		&a.ContactLocation.Latitude, &a.ContactLocation.Longitude,
		&a.Classification, &a.Dismissed, &dismissedAt, &a.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan alert: %w", err)
	}
	if dismissedAt.Valid {
		a.DismissedAt = &dismissedAt.Time
	}
	return a, nil
}

func (s *SQLite) GetAlert(ctx context.Context, owner, id string) (*AlertRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+alertColumns+` FROM alerts WHERE id = ? AND owner = ?`, id, owner)
	return scanAlert(row.Scan)
}

func (s *SQLite) DismissAlert(ctx context.Context, owner, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE alerts SET dismissed = 1, dismissed_at = ?
		WHERE id = ? AND owner = ? AND dismissed = 0`,
		at, id, owner,
	)
	if err != nil {
		return fmt.Errorf("dismiss alert: %w", err)
	}
	// zero rows here means already dismissed; callers check existence first
	_ = res
	return nil
}

func (s *SQLite) ListAlerts(ctx context.Context, owner string, limit, skip int, dismissed bool) (*AlertPage, error) {
	var total int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM alerts WHERE owner = ? AND dismissed = ?`,
		owner, dismissed,
	).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count alerts: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+alertColumns+` FROM alerts
		WHERE owner = ? AND dismissed = ?
		ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		owner, dismissed, limit, skip,
	)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	page := &AlertPage{Total: total, HasMore: skip+limit < total}
	for rows.Next() {
		a, err := scanAlert(rows.Scan)
		if err != nil {
			return nil, err
		}
		page.Alerts = append(page.Alerts, a)
	}
	return page, rows.Err()
}
