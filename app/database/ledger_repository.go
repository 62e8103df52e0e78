package database

import (
	"context"
	"database/sql"
	"fmt"
)

var _ LedgerRepository = (*LedgerRepo)(nil)

// LedgerRepo persists which files have been ingested. Rows are only
// written after the corresponding batch work committed, so presence with
// a success outcome is a safe skip signal.
type LedgerRepo struct {
	db *DB
}

func NewLedgerRepo(db *DB) *LedgerRepo {
	return &LedgerRepo{db: db}
}

// IsProcessed reports whether a file already has a successful ledger row.
// Files that previously failed are not considered processed; they get
// another chance on the next run.
func (r *LedgerRepo) IsProcessed(ctx context.Context, retailerID int, fileKey string) (bool, error) {
	var outcome string
	err := r.db.QueryRowContext(ctx, `
		SELECT outcome FROM processed_files
		WHERE retailer_id = $1 AND file_key = $2
	`, retailerID, fileKey).Scan(&outcome)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check processed file: %w", err)
	}

	return outcome == OutcomeSuccess, nil
}

// MarkProcessed records a file's outcome, overwriting an earlier outcome
// for the same file so a forced reprocess never duplicates ledger rows.
func (r *LedgerRepo) MarkProcessed(ctx context.Context, retailerID int, fileKey, outcome string, rowsAdded int) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO processed_files (retailer_id, file_key, outcome, rows_added, processed_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (retailer_id, file_key) DO UPDATE SET
			outcome = EXCLUDED.outcome,
			rows_added = EXCLUDED.rows_added,
			processed_at = NOW()
	`, retailerID, fileKey, outcome, rowsAdded)

	if err != nil {
		return fmt.Errorf("failed to mark file processed: %w", err)
	}

	return nil
}
