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

const reportColumns = `
	r.id::text, r.event_type, r.county_id, c.code, c.name, r.severity, r.description,
	r.latitude, r.longitude, r.location_details, r.contact_number, r.reporter_name,
	r.is_emergency, r.is_public, r.verification_status, r.verified_by, r.verified_at,
	r.confidence_score, r.report_count, r.similar_reports, r.created_at, r.updated_at`

const reportFrom = ` FROM reports r JOIN counties c ON c.id = r.county_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (domain.Report, error) {
	var r domain.Report
	err := row.Scan(
		&r.ID, &r.EventType, &r.CountyID, &r.County.Code, &r.County.Name, &r.Severity, &r.Description,
		&r.Latitude, &r.Longitude, &r.LocationDetails, &r.ContactNumber, &r.ReporterName,
		&r.IsEmergency, &r.IsPublic, &r.VerificationStatus, &r.VerifiedBy, &r.VerifiedAt,
		&r.ConfidenceScore, &r.ReportCount, &r.SimilarReports, &r.CreatedAt, &r.UpdatedAt,
	)
	r.County.ID = r.CountyID
	return r, err
}

// validID keeps malformed ids from reaching the uuid column, where they
// would fail with a cast error instead of a miss.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (db *DB) CreateReport(ctx context.Context, r domain.Report) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO reports (
			id, event_type, county_id, severity, description, latitude, longitude,
			location_details, contact_number, reporter_name, is_emergency, is_public,
			verification_status, verified_by, verified_at, confidence_score, report_count,
			similar_reports, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
	`, r.ID, r.EventType, r.CountyID, r.Severity, r.Description, r.Latitude, r.Longitude,
		r.LocationDetails, r.ContactNumber, r.ReporterName, r.IsEmergency, r.IsPublic,
		r.VerificationStatus, r.VerifiedBy, r.VerifiedAt, r.ConfidenceScore, r.ReportCount,
		nonNil(r.SimilarReports), r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (db *DB) Report(ctx context.Context, id string) (domain.Report, error) {
	if !validID(id) {
		return domain.Report{}, domain.ErrNotFound
	}
	return getReport(ctx, db.Pool, id, false)
}

func getReport(ctx context.Context, q querier, id string, lock bool) (domain.Report, error) {
	sql := `SELECT ` + reportColumns + reportFrom + ` WHERE r.id = $1`
	if lock {
		sql += ` FOR UPDATE OF r`
	}
	r, err := scanReport(q.QueryRow(ctx, sql, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Report{}, domain.ErrNotFound
	}
	return r, err
}

func (db *DB) ListReports(ctx context.Context, f domain.ReportFilter) ([]domain.Report, int, error) {
	where := []string{"r.is_public"}
	var args []any
	if f.CountyID != nil {
		args = append(args, *f.CountyID)
		where = append(where, fmt.Sprintf("r.county_id = $%d", len(args)))
	}
	if f.EventType != "" {
		args = append(args, f.EventType)
		where = append(where, fmt.Sprintf("r.event_type = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("r.verification_status = $%d", len(args)))
	}
	cond := " WHERE " + strings.Join(where, " AND ")

	var total int
	if err := db.Pool.QueryRow(ctx, `SELECT count(*) FROM reports r`+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count reports: %w", err)
	}

	// LIMIT NULL is no limit.
	var limit any
	if f.Limit > 0 {
		limit = f.Limit
	}
	args = append(args, limit, f.Offset)
	rows, err := db.Pool.Query(ctx, `SELECT `+reportColumns+reportFrom+cond+
		fmt.Sprintf(` ORDER BY r.created_at DESC, r.id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list reports: %w", err)
	}
	out, err := collectReports(rows)
	return out, total, err
}

func (db *DB) RecentSimilar(ctx context.Context, countyID int, eventType domain.EventType, since time.Time, limit int) ([]domain.Report, error) {
	rows, err := db.Pool.Query(ctx, `SELECT `+reportColumns+reportFrom+`
		WHERE r.county_id = $1 AND r.event_type = $2 AND r.created_at >= $3
		  AND r.verification_status <> 'duplicate'
		ORDER BY r.created_at DESC
		LIMIT $4`, countyID, eventType, since, limit)
	if err != nil {
		return nil, fmt.Errorf("similar reports: %w", err)
	}
	return collectReports(rows)
}

func collectReports(rows pgx.Rows) ([]domain.Report, error) {
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

func (db *DB) UpdateReport(ctx context.Context, id string, fn func(r *domain.Report) error) (domain.Report, error) {
	if !validID(id) {
		return domain.Report{}, domain.ErrNotFound
	}
	var out domain.Report
	err := db.inTx(ctx, func(tx pgx.Tx) error {
		r, err := getReport(ctx, tx, id, true)
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

// writeReport persists the mutable columns of a locked report.
func writeReport(ctx context.Context, q querier, r domain.Report) error {
	_, err := q.Exec(ctx, `
		UPDATE reports SET
			verification_status = $2, verified_by = $3, verified_at = $4,
			confidence_score = $5, report_count = $6, similar_reports = $7, updated_at = $8
		WHERE id = $1
	`, r.ID, r.VerificationStatus, r.VerifiedBy, r.VerifiedAt,
		r.ConfidenceScore, r.ReportCount, nonNil(r.SimilarReports), r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update report: %w", err)
	}
	return nil
}
