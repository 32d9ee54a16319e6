package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-erp/meridian-erp/internal/assets"
)

// systemActorID attributes scheduled postings that no user triggered.
const systemActorID = 0

// NewDepreciationHandler returns the handler for TaskTypeDepreciationRun.
// It posts every unposted schedule row due as of the payload date.
func NewDepreciationHandler(service *assets.Service, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload DepreciationPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		asOf := payload.AsOf
		if asOf.IsZero() {
			asOf = time.Now().UTC()
		}

		result, err := service.RunDue(ctx, asOf, systemActorID)
		if err != nil {
			return err
		}
		logger.Info("depreciation run finished",
			slog.Time("as_of", asOf),
			slog.Int("posted", result.Posted),
			slog.Int("skipped", result.Skipped),
			slog.Int("failed", result.Failed))
		if result.Failed > 0 {
			return fmt.Errorf("depreciation run: %d rows failed", result.Failed)
		}
		return nil
	}
}
