package sequence

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// PgTxRepository implements TxRepository over a pgx transaction. Orchestrator
// repositories construct one per posting transaction so the counter update
// commits or rolls back with the document.
type PgTxRepository struct {
	tx pgx.Tx
}

// NewPgTxRepository wraps a transaction.
func NewPgTxRepository(tx pgx.Tx) *PgTxRepository {
	return &PgTxRepository{tx: tx}
}

// ListActiveForUpdate locks and returns active series in the given scope.
func (r *PgTxRepository) ListActiveForUpdate(ctx context.Context, entityType string, branchID *int64) ([]Series, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, entity_type, branch_id, COALESCE(prefix,''), COALESCE(suffix,''), pad_width, counter, is_active, updated_at
FROM number_series
WHERE entity_type=$1 AND is_active AND (($2::bigint IS NULL AND branch_id IS NULL) OR branch_id=$2)
ORDER BY id
FOR UPDATE`, entityType, branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Series
	for rows.Next() {
		var s Series
		if err := rows.Scan(&s.ID, &s.EntityType, &s.BranchID, &s.Prefix, &s.Suffix, &s.PadWidth, &s.Counter, &s.IsActive, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// SetCounter persists the new counter value.
func (r *PgTxRepository) SetCounter(ctx context.Context, seriesID, counter int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE number_series SET counter=$2, updated_at=NOW() WHERE id=$1`, seriesID, counter)
	return err
}
