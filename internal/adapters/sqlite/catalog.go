package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"uzimasmart/internal/domain"
)

func (s *Store) CountyByName(ctx context.Context, name string) (domain.County, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var c domain.County
	// name is declared COLLATE NOCASE
	err := s.db.QueryRowContext(ctx, `SELECT id, code, name FROM counties WHERE name = ?`,
		strings.TrimSpace(name)).Scan(&c.ID, &c.Code, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return c, fmt.Errorf("county %q: %w", name, domain.ErrNotFound)
	}
	return c, err
}

func (s *Store) Counties(ctx context.Context) ([]domain.County, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `SELECT id, code, name FROM counties ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.County
	for rows.Next() {
		var c domain.County
		if err := rows.Scan(&c.ID, &c.Code, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Alerts

func (s *Store) CreateAlert(ctx context.Context, a domain.Alert) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alerts (id, report_id, county_id, alert_type, severity, title, description,
		                    confidence, valid_from, valid_until, source, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.ReportID, a.CountyID, a.AlertType, a.Severity, a.Title, a.Description,
		a.Confidence, ts(a.ValidFrom), ts(a.ValidUntil), a.Source, a.IsActive, ts(a.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

func (s *Store) ListAlerts(ctx context.Context, f domain.AlertFilter) ([]domain.Alert, error) {
	where := []string{"1 = 1"}
	var args []any
	if f.CountyID != nil {
		where = append(where, "county_id = ?")
		args = append(args, *f.CountyID)
	}
	if f.ActiveAt != nil {
		at := ts(*f.ActiveAt)
		where = append(where, "is_active = 1 AND valid_from <= ? AND valid_until > ?")
		args = append(args, at, at)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = -1
	}
	args = append(args, limit)

	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, report_id, county_id, alert_type, severity, title, description,
		       confidence, valid_from, valid_until, source, is_active, created_at
		FROM alerts WHERE `+strings.Join(where, " AND ")+`
		ORDER BY created_at DESC, rowid DESC LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()
	var out []domain.Alert
	for rows.Next() {
		var (
			a                      domain.Alert
			from, until, createdAt string
		)
		if err := rows.Scan(&a.ID, &a.ReportID, &a.CountyID, &a.AlertType, &a.Severity, &a.Title, &a.Description,
			&a.Confidence, &from, &until, &a.Source, &a.IsActive, &createdAt); err != nil {
			return nil, err
		}
		if a.ValidFrom, err = parseTS(from); err != nil {
			return nil, err
		}
		if a.ValidUntil, err = parseTS(until); err != nil {
			return nil, err
		}
		if a.CreatedAt, err = parseTS(createdAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Subscriptions

func (s *Store) UpsertSubscription(ctx context.Context, sub domain.Subscription) (domain.Subscription, error) {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var subscribedAt string
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO sms_subscriptions (id, phone_number, weather_alerts, emergency_alerts,
		                               report_confirmations, is_active, subscribed_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (phone_number) DO UPDATE SET
			weather_alerts = excluded.weather_alerts,
			emergency_alerts = excluded.emergency_alerts,
			report_confirmations = excluded.report_confirmations,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at
		RETURNING id, subscribed_at
	`, sub.ID, sub.PhoneNumber, sub.WeatherAlerts, sub.EmergencyAlerts, sub.ReportConfirmations,
		sub.IsActive, ts(sub.SubscribedAt), ts(sub.UpdatedAt)).Scan(&sub.ID, &subscribedAt)
	if err != nil {
		return sub, fmt.Errorf("upsert subscription: %w", err)
	}
	sub.SubscribedAt, err = parseTS(subscribedAt)
	return sub, err
}

func (s *Store) Subscription(ctx context.Context, phone string) (domain.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		sub                     domain.Subscription
		subscribedAt, updatedAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, phone_number, weather_alerts, emergency_alerts, report_confirmations,
		       is_active, subscribed_at, updated_at
		FROM sms_subscriptions WHERE phone_number = ?
	`, phone).Scan(&sub.ID, &sub.PhoneNumber, &sub.WeatherAlerts, &sub.EmergencyAlerts, &sub.ReportConfirmations,
		&sub.IsActive, &subscribedAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return sub, domain.ErrNotFound
	}
	if err != nil {
		return sub, err
	}
	if sub.SubscribedAt, err = parseTS(subscribedAt); err != nil {
		return sub, err
	}
	sub.UpdatedAt, err = parseTS(updatedAt)
	return sub, err
}

func (s *Store) EmergencySubscribers(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `
		SELECT phone_number FROM sms_subscriptions
		WHERE is_active = 1 AND emergency_alerts = 1
		ORDER BY phone_number
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Analytics

func (s *Store) RecordSubmission(ctx context.Context, countyID int, eventType domain.EventType, sev domain.Severity, at time.Time, confidence float64) error {
	counts := map[domain.Severity]int{sev: 1}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO report_analytics (county_id, event_type, day, total_reports,
		                              low_count, moderate_count, high_count, severe_count, confidence_sum)
		VALUES (?, ?, ?, 1, ?, ?, ?, ?, ?)
		ON CONFLICT (county_id, event_type, day) DO UPDATE SET
			total_reports = total_reports + 1,
			low_count = low_count + excluded.low_count,
			moderate_count = moderate_count + excluded.moderate_count,
			high_count = high_count + excluded.high_count,
			severe_count = severe_count + excluded.severe_count,
			confidence_sum = confidence_sum + excluded.confidence_sum
	`, countyID, eventType, day(at),
		counts[domain.SeverityLow], counts[domain.SeverityModerate], counts[domain.SeverityHigh], counts[domain.SeveritySevere],
		confidence)
	return err
}

func (s *Store) RecordVerified(ctx context.Context, countyID int, eventType domain.EventType, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO report_analytics (county_id, event_type, day, verified_reports)
		VALUES (?, ?, ?, 1)
		ON CONFLICT (county_id, event_type, day) DO UPDATE SET
			verified_reports = verified_reports + 1
	`, countyID, eventType, day(at))
	return err
}

func (s *Store) Analytics(ctx context.Context, f domain.AnalyticsFilter) ([]domain.DailyAnalytics, error) {
	where := []string{"day >= ?"}
	args := []any{day(f.Since)}
	if f.CountyID != nil {
		where = append(where, "county_id = ?")
		args = append(args, *f.CountyID)
	}
	if f.EventType != "" {
		where = append(where, "event_type = ?")
		args = append(args, f.EventType)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `
		SELECT county_id, event_type, day, total_reports, verified_reports,
		       low_count, moderate_count, high_count, severe_count, confidence_sum
		FROM report_analytics WHERE `+strings.Join(where, " AND ")+`
		ORDER BY day DESC, county_id, event_type`, args...)
	if err != nil {
		return nil, fmt.Errorf("analytics: %w", err)
	}
	defer rows.Close()
	var out []domain.DailyAnalytics
	for rows.Next() {
		var (
			a  domain.DailyAnalytics
			dv string
		)
		if err := rows.Scan(&a.CountyID, &a.EventType, &dv, &a.TotalReports, &a.VerifiedReports,
			&a.Low, &a.Moderate, &a.High, &a.Severe, &a.ConfidenceSum); err != nil {
			return nil, err
		}
		if a.Day, err = time.Parse(dayLayout, dv); err != nil {
			return nil, fmt.Errorf("parse day %q: %w", dv, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
