package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// NewGLIntegrityHandler returns the handler for TaskTypeGLIntegrity. It sums
// debits and credits per fiscal period and fails on any imbalance, which
// would mean a voucher was written outside the posting path.
func NewGLIntegrityHandler(pool *pgxpool.Pool, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload GLIntegrityPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}

		rows, err := pool.Query(ctx, `
SELECT v.period_id, SUM(l.debit), SUM(l.credit)
FROM voucher_lines l
JOIN vouchers v ON v.id = l.voucher_id
GROUP BY v.period_id
HAVING SUM(l.debit) <> SUM(l.credit)`)
		if err != nil {
			return fmt.Errorf("gl integrity query: %w", err)
		}
		defer rows.Close()

		imbalanced := 0
		for rows.Next() {
			var periodID int64
			var debit, credit decimal.Decimal
			if err := rows.Scan(&periodID, &debit, &credit); err != nil {
				return fmt.Errorf("gl integrity scan: %w", err)
			}
			imbalanced++
			logger.Error("period out of balance",
				slog.Int64("period_id", periodID),
				slog.String("debit", debit.String()),
				slog.String("credit", credit.String()))
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("gl integrity rows: %w", err)
		}
		if imbalanced > 0 {
			return fmt.Errorf("gl integrity: %d periods out of balance", imbalanced)
		}
		logger.Info("gl integrity check passed")
		return nil
	}
}
