package inventory

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// MoveKind classifies a stock movement.
type MoveKind string

const (
	MoveKindInbound    MoveKind = "INBOUND"
	MoveKindOutbound   MoveKind = "OUTBOUND"
	MoveKindAdjustment MoveKind = "ADJUSTMENT"
)

// StockItem is the running balance of one product in one warehouse. AvgCost
// is the moving weighted average of everything received.
type StockItem struct {
	ID          int64           `json:"id"`
	ProductID   int64           `json:"product_id"`
	WarehouseID int64           `json:"warehouse_id"`
	QtyOnHand   decimal.Decimal `json:"qty_on_hand"`
	AvgCost     decimal.Decimal `json:"avg_cost"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// StockMove is one append-only movement. UnitCost records the acquisition
// cost on inbound and the average cost consumed on outbound; AvgCostAfter
// snapshots the balance average after the move applied.
type StockMove struct {
	ID           int64           `json:"id"`
	ProductID    int64           `json:"product_id"`
	WarehouseID  int64           `json:"warehouse_id"`
	Kind         MoveKind        `json:"kind"`
	Qty          decimal.Decimal `json:"qty"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	AvgCostAfter decimal.Decimal `json:"avg_cost_after"`
	QtyAfter     decimal.Decimal `json:"qty_after"`
	SourceKind   string          `json:"source_kind"`
	SourceID     uuid.UUID       `json:"source_id"`
	MovedAt      time.Time       `json:"moved_at"`
	CreatedAt    time.Time       `json:"created_at"`
}

// MoveInput describes a requested movement.
type MoveInput struct {
	ProductID   int64
	WarehouseID int64
	Kind        MoveKind
	Qty         decimal.Decimal
	// UnitCost carries the acquisition cost on inbound moves and stock
	// gains. Nil means no cost is known and the move applies at the
	// carrying average. Outbound moves ignore it and always consume at
	// the average.
	UnitCost   *decimal.Decimal
	SourceKind string
	SourceID   uuid.UUID
	MovedAt    time.Time
}

// TransferInput moves stock between two warehouses at carrying cost.
type TransferInput struct {
	ProductID       int64
	FromWarehouseID int64
	ToWarehouseID   int64
	Qty             decimal.Decimal
	SourceKind      string
	SourceID        uuid.UUID
	MovedAt         time.Time
}

var (
	// ErrInsufficientStock indicates an outbound exceeding quantity on hand.
	ErrInsufficientStock = fmt.Errorf("inventory: insufficient stock: %w", shared.ErrConflict)
	// ErrNegativeQty indicates a negative movement quantity.
	ErrNegativeQty = fmt.Errorf("inventory: quantity must not be negative: %w", shared.ErrInvariant)
	// ErrNegativeCost indicates a negative unit cost.
	ErrNegativeCost = fmt.Errorf("inventory: unit cost must not be negative: %w", shared.ErrInvariant)
	// ErrSameWarehouse indicates a transfer within one warehouse.
	ErrSameWarehouse = fmt.Errorf("inventory: transfer requires two warehouses: %w", shared.ErrInvariant)
	// ErrItemNotFound indicates a missing stock item row.
	ErrItemNotFound = fmt.Errorf("inventory: stock item %w", shared.ErrNotFound)
)

// Validate checks the movement preconditions. Adjustments may carry a
// signed quantity, all other kinds must be non-negative.
func (in MoveInput) Validate() error {
	if in.Qty.IsNegative() && in.Kind != MoveKindAdjustment {
		return ErrNegativeQty
	}
	if in.UnitCost != nil && in.UnitCost.IsNegative() {
		return ErrNegativeCost
	}
	return nil
}
