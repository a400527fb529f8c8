package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"uzimasmart/internal/domain"
)

// RecordInteraction locks the report, inserts the interaction, counts the
// report's interactions by type and writes fn's changes, all in one
// transaction. Concurrent interactions on one report queue on the row lock.
func (db *DB) RecordInteraction(ctx context.Context, it domain.Interaction, fn func(r *domain.Report, tally domain.InteractionTally) error) (domain.Report, error) {
	if !validID(it.ReportID) {
		return domain.Report{}, domain.ErrNotFound
	}
	var out domain.Report
	err := db.inTx(ctx, func(tx pgx.Tx) error {
		r, err := getReport(ctx, tx, it.ReportID, true)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO report_interactions (id, report_id, interaction_type, phone_number, details, metadata, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, it.ID, it.ReportID, it.Type, it.PhoneNumber, it.Details, it.Metadata, it.CreatedAt); err != nil {
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

func tallyInteractions(ctx context.Context, q querier, reportID string) (domain.InteractionTally, error) {
	var tally domain.InteractionTally
	rows, err := q.Query(ctx, `
		SELECT interaction_type, count(*) FROM report_interactions
		WHERE report_id = $1 GROUP BY interaction_type
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

func (db *DB) Interactions(ctx context.Context, reportID string) ([]domain.Interaction, error) {
	if !validID(reportID) {
		return nil, nil
	}
	rows, err := db.Pool.Query(ctx, `
		SELECT id::text, report_id::text, interaction_type, phone_number, details,
		       COALESCE(metadata, '{}'::jsonb), created_at
		FROM report_interactions
		WHERE report_id = $1
		ORDER BY created_at DESC
	`, reportID)
	if err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}
	defer rows.Close()
	var out []domain.Interaction
	for rows.Next() {
		var it domain.Interaction
		if err := rows.Scan(&it.ID, &it.ReportID, &it.Type, &it.PhoneNumber, &it.Details, &it.Metadata, &it.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}
