package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"uzimasmart/internal/domain"
)

// Counties

func (db *DB) CountyByName(ctx context.Context, name string) (domain.County, error) {
	var c domain.County
	err := db.Pool.QueryRow(ctx, `SELECT id, code, name FROM counties WHERE lower(name) = lower($1)`,
		strings.TrimSpace(name)).Scan(&c.ID, &c.Code, &c.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return c, fmt.Errorf("county %q: %w", name, domain.ErrNotFound)
	}
	return c, err
}

func (db *DB) Counties(ctx context.Context) ([]domain.County, error) {
	rows, err := db.Pool.Query(ctx, `SELECT id, code, name FROM counties ORDER BY id`)
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

func (db *DB) CreateAlert(ctx context.Context, a domain.Alert) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO alerts (id, report_id, county_id, alert_type, severity, title, description,
		                    confidence, valid_from, valid_until, source, is_active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, a.ID, a.ReportID, a.CountyID, a.AlertType, a.Severity, a.Title, a.Description,
		a.Confidence, a.ValidFrom, a.ValidUntil, a.Source, a.IsActive, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

func (db *DB) ListAlerts(ctx context.Context, f domain.AlertFilter) ([]domain.Alert, error) {
	where := []string{"TRUE"}
	var args []any
	if f.CountyID != nil {
		args = append(args, *f.CountyID)
		where = append(where, fmt.Sprintf("county_id = $%d", len(args)))
	}
	if f.ActiveAt != nil {
		args = append(args, *f.ActiveAt)
		where = append(where, fmt.Sprintf("is_active AND valid_from <= $%d AND valid_until > $%d", len(args), len(args)))
	}
	limit := ""
	if f.Limit > 0 {
		args = append(args, f.Limit)
		limit = fmt.Sprintf(" LIMIT $%d", len(args))
	}
	rows, err := db.Pool.Query(ctx, `
		SELECT id::text, report_id::text, county_id, alert_type, severity, title, description,
		       confidence, valid_from, valid_until, source, is_active, created_at
		FROM alerts WHERE `+strings.Join(where, " AND ")+`
		ORDER BY created_at DESC`+limit, args...)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()
	var out []domain.Alert
	for rows.Next() {
		var a domain.Alert
		if err := rows.Scan(&a.ID, &a.ReportID, &a.CountyID, &a.AlertType, &a.Severity, &a.Title, &a.Description,
			&a.Confidence, &a.ValidFrom, &a.ValidUntil, &a.Source, &a.IsActive, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Subscriptions

func (db *DB) UpsertSubscription(ctx context.Context, s domain.Subscription) (domain.Subscription, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO sms_subscriptions (id, phone_number, weather_alerts, emergency_alerts,
		                               report_confirmations, is_active, subscribed_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (phone_number) DO UPDATE SET
			weather_alerts = EXCLUDED.weather_alerts,
			emergency_alerts = EXCLUDED.emergency_alerts,
			report_confirmations = EXCLUDED.report_confirmations,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
		RETURNING id::text, subscribed_at
	`, s.ID, s.PhoneNumber, s.WeatherAlerts, s.EmergencyAlerts, s.ReportConfirmations,
		s.IsActive, s.SubscribedAt, s.UpdatedAt).Scan(&s.ID, &s.SubscribedAt)
	if err != nil {
		return s, fmt.Errorf("upsert subscription: %w", err)
	}
	return s, nil
}

func (db *DB) Subscription(ctx context.Context, phone string) (domain.Subscription, error) {
	var s domain.Subscription
	err := db.Pool.QueryRow(ctx, `
		SELECT id::text, phone_number, weather_alerts, emergency_alerts, report_confirmations,
		       is_active, subscribed_at, updated_at
		FROM sms_subscriptions WHERE phone_number = $1
	`, phone).Scan(&s.ID, &s.PhoneNumber, &s.WeatherAlerts, &s.EmergencyAlerts, &s.ReportConfirmations,
		&s.IsActive, &s.SubscribedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return s, domain.ErrNotFound
	}
	return s, err
}

func (db *DB) EmergencySubscribers(ctx context.Context) ([]string, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT phone_number FROM sms_subscriptions
		WHERE is_active AND emergency_alerts
		ORDER BY phone_number
	`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// Analytics

func (db *DB) RecordSubmission(ctx context.Context, countyID int, eventType domain.EventType, sev domain.Severity, day time.Time, confidence float64) error {
	var low, moderate, high, severe int
	switch sev {
	case domain.SeverityLow:
		low = 1
	case domain.SeverityModerate:
		moderate = 1
	case domain.SeverityHigh:
		high = 1
	case domain.SeveritySevere:
		severe = 1
	}
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO report_analytics (county_id, event_type, day, total_reports,
		                              low_count, moderate_count, high_count, severe_count, confidence_sum)
		VALUES ($1, $2, $3, 1, $4, $5, $6, $7, $8)
		ON CONFLICT (county_id, event_type, day) DO UPDATE SET
			total_reports = report_analytics.total_reports + 1,
			low_count = report_analytics.low_count + EXCLUDED.low_count,
			moderate_count = report_analytics.moderate_count + EXCLUDED.moderate_count,
			high_count = report_analytics.high_count + EXCLUDED.high_count,
			severe_count = report_analytics.severe_count + EXCLUDED.severe_count,
			confidence_sum = report_analytics.confidence_sum + EXCLUDED.confidence_sum
	`, countyID, eventType, domain.Day(day), low, moderate, high, severe, confidence)
	return err
}

func (db *DB) RecordVerified(ctx context.Context, countyID int, eventType domain.EventType, day time.Time) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO report_analytics (county_id, event_type, day, verified_reports)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (county_id, event_type, day) DO UPDATE SET
			verified_reports = report_analytics.verified_reports + 1
	`, countyID, eventType, domain.Day(day))
	return err
}

func (db *DB) Analytics(ctx context.Context, f domain.AnalyticsFilter) ([]domain.DailyAnalytics, error) {
	args := []any{domain.Day(f.Since)}
	where := []string{"day >= $1"}
	if f.CountyID != nil {
		args = append(args, *f.CountyID)
		where = append(where, fmt.Sprintf("county_id = $%d", len(args)))
	}
	if f.EventType != "" {
		args = append(args, f.EventType)
		where = append(where, fmt.Sprintf("event_type = $%d", len(args)))
	}
	rows, err := db.Pool.Query(ctx, `
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
		var a domain.DailyAnalytics
		if err := rows.Scan(&a.CountyID, &a.EventType, &a.Day, &a.TotalReports, &a.VerifiedReports,
			&a.Low, &a.Moderate, &a.High, &a.Severe, &a.ConfidenceSum); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
