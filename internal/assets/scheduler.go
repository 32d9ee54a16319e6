package assets

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/masterdata"
)

var hundred = decimal.NewFromInt(100)

// resolveLife returns the asset's useful life in months, falling back to the
// category default.
func resolveLife(asset FixedAsset, category masterdata.AssetCategory) (int, error) {
	life := category.DefaultLifeMonths
	if asset.UsefulLifeMonths != nil {
		life = *asset.UsefulLifeMonths
	}
	if life <= 0 {
		return 0, ErrLifeNotPositive
	}
	return life, nil
}

// resolveResidual returns the residual value, falling back to the category's
// percent of cost.
func resolveResidual(asset FixedAsset, category masterdata.AssetCategory) (decimal.Decimal, error) {
	residual := asset.Cost.Mul(category.DefaultResidualPercent).Div(hundred)
	if asset.ResidualValue != nil {
		residual = *asset.ResidualValue
	}
	if residual.IsNegative() || residual.GreaterThanOrEqual(asset.Cost) {
		return decimal.Decimal{}, ErrResidualOutOfRange
	}
	return residual, nil
}

// buildSchedule produces the straight-line monthly rows. The depreciable
// base spreads evenly at two decimals, with the rounding remainder folded
// into the final month so the rows always sum to exactly cost minus
// residual.
func buildSchedule(asset FixedAsset, life int, residual decimal.Decimal) []ScheduleRow {
	base := asset.Cost.Sub(residual)
	monthly := base.DivRound(decimal.NewFromInt(int64(life)), 2)

	start := time.Date(asset.AcquiredAt.Year(), asset.AcquiredAt.Month(), 1, 0, 0, 0, 0, time.UTC)
	rows := make([]ScheduleRow, 0, life)
	accumulated := decimal.Zero
	for i := 0; i < life; i++ {
		amount := monthly
		if i == life-1 {
			amount = base.Sub(accumulated)
		}
		accumulated = accumulated.Add(amount)
		periodStart := start.AddDate(0, i, 0)
		rows = append(rows, ScheduleRow{
			AssetID:      asset.ID,
			PeriodStart:  periodStart,
			PeriodEnd:    periodStart.AddDate(0, 1, -1),
			Amount:       amount,
			Accumulated:  accumulated,
			NetBookValue: asset.Cost.Sub(accumulated),
			SourceID:     uuid.New(),
		})
	}
	return rows
}
