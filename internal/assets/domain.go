package assets

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Status tracks an asset's depreciation lifecycle.
type Status string

const (
	StatusActive           Status = "ACTIVE"
	StatusFullyDepreciated Status = "FULLY_DEPRECIATED"
	StatusDisposed         Status = "DISPOSED"
)

// FixedAsset is a depreciable asset. UsefulLifeMonths and ResidualValue
// override the category defaults when set.
type FixedAsset struct {
	ID                      int64            `json:"id"`
	Code                    string           `json:"code"`
	Name                    string           `json:"name"`
	CategoryID              int64            `json:"category_id"`
	BranchID                *int64           `json:"branch_id,omitempty"`
	AcquiredAt              time.Time        `json:"acquired_at"`
	Cost                    decimal.Decimal  `json:"cost"`
	UsefulLifeMonths        *int             `json:"useful_life_months,omitempty"`
	ResidualValue           *decimal.Decimal `json:"residual_value,omitempty"`
	AccumulatedDepreciation decimal.Decimal  `json:"accumulated_depreciation"`
	Status                  Status           `json:"status"`
	DisposedAt              *time.Time       `json:"disposed_at,omitempty"`
	CreatedAt               time.Time        `json:"created_at"`
	UpdatedAt               time.Time        `json:"updated_at"`
}

// ScheduleRow is one month of straight-line depreciation.
type ScheduleRow struct {
	ID           int64           `json:"id"`
	AssetID      int64           `json:"asset_id"`
	PeriodStart  time.Time       `json:"period_start"`
	PeriodEnd    time.Time       `json:"period_end"`
	Amount       decimal.Decimal `json:"amount"`
	Accumulated  decimal.Decimal `json:"accumulated"`
	NetBookValue decimal.Decimal `json:"net_book_value"`
	Posted       bool            `json:"posted"`
	VoucherID    *int64          `json:"voucher_id,omitempty"`
	// SourceID identifies the row on its journal lines, so the ledger's
	// source-level dedup backs the Posted flag.
	SourceID  uuid.UUID `json:"source_id"`
	CreatedAt time.Time `json:"created_at"`
}

var (
	// ErrAssetNotFound indicates a missing asset.
	ErrAssetNotFound = fmt.Errorf("assets: asset %w", shared.ErrNotFound)
	// ErrScheduleRowNotFound indicates no schedule row for the requested window.
	ErrScheduleRowNotFound = fmt.Errorf("assets: schedule row %w", shared.ErrNotFound)
	// ErrScheduleExists indicates the asset already has a generated schedule.
	ErrScheduleExists = fmt.Errorf("assets: schedule already generated: %w", shared.ErrInvariant)
	// ErrLifeNotPositive indicates a useful life of zero or fewer months.
	ErrLifeNotPositive = fmt.Errorf("assets: useful life must be positive: %w", shared.ErrInvariant)
	// ErrResidualOutOfRange indicates a residual below zero or at or above cost.
	ErrResidualOutOfRange = fmt.Errorf("assets: residual value out of range: %w", shared.ErrInvariant)
	// ErrAssetDisposed indicates a posting attempt on a disposed asset.
	ErrAssetDisposed = fmt.Errorf("assets: asset disposed: %w", shared.ErrConflict)
	// ErrAlreadyDisposed indicates a repeated disposal.
	ErrAlreadyDisposed = fmt.Errorf("assets: already disposed: %w", shared.ErrConflict)
)

// fullyDepreciatedTolerance is the net book value distance from residual at
// which an asset flips to FullyDepreciated.
var fullyDepreciatedTolerance = decimal.NewFromInt(1)
