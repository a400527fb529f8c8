package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"uzimasmart/internal/domain"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const reportSelect = `
	SELECT r.id, r.event_type, r.county_id, c.code, c.name, r.severity, r.description,
	       r.latitude, r.longitude, r.location_details, r.contact_number, r.reporter_name,
	       r.is_emergency, r.is_public, r.verification_status, r.verified_by, r.verified_at,
	       r.confidence_score, r.report_count, r.similar_reports, r.created_at, r.updated_at
	FROM reports r JOIN counties c ON c.id = r.county_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (domain.Report, error) {
	var (
		r                    domain.Report
		verifiedAt           sql.NullString
		similar              string
		createdAt, updatedAt string
	)
	err := row.Scan(
		&r.ID, &r.EventType, &r.CountyID, &r.County.Code, &r.County.Name, &r.Severity, &r.Description,
		&r.Latitude, &r.Longitude, &r.LocationDetails, &r.ContactNumber, &r.ReporterName,
		&r.IsEmergency, &r.IsPublic, &r.VerificationStatus, &r.VerifiedBy, &verifiedAt,
		&r.ConfidenceScore, &r.ReportCount, &similar, &createdAt, &updatedAt,
	)
	if err != nil {
		return r, err
	}
	r.County.ID = r.CountyID
	if r.VerifiedAt, err = parseNullTS(verifiedAt); err != nil {
		return r, err
	}
	if err := json.Unmarshal([]byte(similar), &r.SimilarReports); err != nil {
		return r, fmt.Errorf("decode similar_reports: %w", err)
	}
	if r.CreatedAt, err = parseTS(createdAt); err != nil {
		return r, err
	}
	r.UpdatedAt, err = parseTS(updatedAt)
	return r, err
}

func similarJSON(ids []string) (string, error) {
	if ids == nil {
		ids = []string{}
	}
	return toJSON(ids)
}

func (s *Store) CreateReport(ctx context.Context, r domain.Report) error {
	similar, err := similarJSON(r.SimilarReports)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reports (
			id, event_type, county_id, severity, description, latitude, longitude,
			location_details, contact_number, reporter_name, is_emergency, is_public,
			verification_status, verified_by, verified_at, confidence_score, report_count,
			similar_reports, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.EventType, r.CountyID, r.Severity, r.Description, r.Latitude, r.Longitude,
		r.LocationDetails, r.ContactNumber, r.ReporterName, r.IsEmergency, r.IsPublic,
		r.VerificationStatus, r.VerifiedBy, nullTS(r.VerifiedAt), r.ConfidenceScore, r.ReportCount,
		similar, ts(r.CreatedAt), ts(r.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (s *Store) Report(ctx context.Context, id string) (domain.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getReport(ctx, s.db, id)
}

func getReport(ctx context.Context, q querier, id string) (domain.Report, error) {
	r, err := scanReport(q.QueryRowContext(ctx, reportSelect+` WHERE r.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Report{}, domain.ErrNotFound
	}
	return r, err
}

func (s *Store) ListReports(ctx context.Context, f domain.ReportFilter) ([]domain.Report, int, error) {
	where := []string{"r.is_public = 1"}
	var args []any
	if f.CountyID != nil {
		where = append(where, "r.county_id = ?")
		args = append(args, *f.CountyID)
	}
	if f.EventType != "" {
		where = append(where, "r.event_type = ?")
		args = append(args, f.EventType)
	}
	if f.Status != "" {
		where = append(where, "r.verification_status = ?")
		args = append(args, f.Status)
	}
	cond := " WHERE " + strings.Join(where, " AND ")

	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM reports r`+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count reports: %w", err)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, reportSelect+cond+` ORDER BY r.created_at DESC, r.id DESC LIMIT ? OFFSET ?`,
		append(args, limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list reports: %w", err)
	}
	out, err := collectReports(rows)
	return out, total, err
}

func (s *Store) RecentSimilar(ctx context.Context, countyID int, eventType domain.EventType, since time.Time, limit int) ([]domain.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, reportSelect+`
		WHERE r.county_id = ? AND r.event_type = ? AND r.created_at >= ?
		  AND r.verification_status <> 'duplicate'
		ORDER BY r.created_at DESC
		LIMIT ?`, countyID, eventType, ts(since), limit)
	if err != nil {
		return nil, fmt.Errorf("similar reports: %w", err)
	}
	return collectReports(rows)
}

func collectReports(rows *sql.Rows) ([]domain.Report, error) {
	defer rows.Close()
	var out []domain.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) UpdateReport(ctx context.Context, id string, fn func(r *domain.Report) error) (domain.Report, error) {
	var out domain.Report
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		r, err := getReport(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(&r); err != nil {
			return err
		}
		if err := writeReport(ctx, tx, r); err != nil {
			return err
		}
		out = r
		return nil
	})
	return out, err
}

func writeReport(ctx context.Context, q querier, r domain.Report) error {
	similar, err := similarJSON(r.SimilarReports)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `
		UPDATE reports SET
			verification_status = ?, verified_by = ?, verified_at = ?,
			confidence_score = ?, report_count = ?, similar_reports = ?, updated_at = ?
		WHERE id = ?
	`, r.VerificationStatus, r.VerifiedBy, nullTS(r.VerifiedAt),
		r.ConfidenceScore, r.ReportCount, similar, ts(r.UpdatedAt), r.ID)
	if err != nil {
		return fmt.Errorf("update report: %w", err)
	}
	return nil
}

// Interactions

func (s *Store) RecordInteraction(ctx context.Context, it domain.Interaction, fn func(r *domain.Report, tally domain.InteractionTally) error) (domain.Report, error) {
	meta, err := toJSON(orEmpty(it.Metadata))
	if err != nil {
		return domain.Report{}, fmt.Errorf("encode metadata: %w", err)
	}
	var out domain.Report
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		r, err := getReport(ctx, tx, it.ReportID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO report_interactions (id, report_id, interaction_type, phone_number, details, metadata, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, it.ID, it.ReportID, it.Type, it.PhoneNumber, it.Details, meta, ts(it.CreatedAt)); err != nil {
			return fmt.Errorf("insert interaction: %w", err)
		}
		tally, err := tallyInteractions(ctx, tx, it.ReportID)
		if err != nil {
			return err
		}
		if err := fn(&r, tally); err != nil {
			return err
		}
		if err := writeReport(ctx, tx, r); err != nil {
			return err
		}
		out = r
		return nil
	})
	return out, err
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func tallyInteractions(ctx context.Context, q querier, reportID string) (domain.InteractionTally, error) {
	var tally domain.InteractionTally
	rows, err := q.QueryContext(ctx, `
		SELECT interaction_type, count(*) FROM report_interactions
		WHERE report_id = ? GROUP BY interaction_type
	`, reportID)
	if err != nil {
		return tally, fmt.Errorf("tally interactions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var kind domain.InteractionType
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return tally, err
		}
		tally.Add(kind, n)
	}
	return tally, rows.Err()
}

func (s *Store) Interactions(ctx context.Context, reportID string) ([]domain.Interaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, report_id, interaction_type, phone_number, details, metadata, created_at
		FROM report_interactions
		WHERE report_id = ?
		ORDER BY created_at DESC, rowid DESC
	`, reportID)
	if err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}
	defer rows.Close()
	var out []domain.Interaction
	for rows.Next() {
		var (
			it        domain.Interaction
			meta      string
			createdAt string
		)
		if err := rows.Scan(&it.ID, &it.ReportID, &it.Type, &it.PhoneNumber, &it.Details, &meta, &createdAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(meta), &it.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
		if it.CreatedAt, err = parseTS(createdAt); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}
