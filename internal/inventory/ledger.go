package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// avgCostScale is the precision kept on the moving average.
const avgCostScale = 6

// TxRepository exposes the transactional stock operations. The item row is
// locked for the duration of the transaction, so concurrent movements on the
// same product and warehouse serialize.
type TxRepository interface {
	// GetItemForUpdate returns the stock item under FOR UPDATE, creating a
	// zero row when the product has never moved in the warehouse.
	GetItemForUpdate(ctx context.Context, productID, warehouseID int64) (StockItem, error)
	UpdateItem(ctx context.Context, item StockItem) error
	InsertMove(ctx context.Context, move StockMove) (int64, error)
}

// Ledger applies stock movements under moving weighted-average valuation.
type Ledger struct {
	allowNegative bool
	now           func() time.Time
}

// NewLedger constructs a stock ledger. allowNegative permits outbound
// movements to drive quantity on hand below zero.
func NewLedger(allowNegative bool) *Ledger {
	return &Ledger{allowNegative: allowNegative, now: time.Now}
}

// WithNow overrides the clock for testing.
func (l *Ledger) WithNow(now func() time.Time) {
	if now != nil {
		l.now = now
	}
}

// Apply executes one movement and returns the recorded move. All effects
// ride on the caller's transaction.
func (l *Ledger) Apply(ctx context.Context, tx TxRepository, in MoveInput) (StockMove, error) {
	if err := in.Validate(); err != nil {
		return StockMove{}, err
	}

	item, err := tx.GetItemForUpdate(ctx, in.ProductID, in.WarehouseID)
	if err != nil {
		return StockMove{}, err
	}

	unitCost := item.AvgCost
	switch in.Kind {
	case MoveKindInbound:
		// A receipt without a cost arrives at the carrying average.
		cost := item.AvgCost
		if in.UnitCost != nil {
			cost = *in.UnitCost
		}
		// Zero-quantity receipts leave the average untouched.
		if in.Qty.IsPositive() {
			item = receive(item, in.Qty, cost)
		}
		unitCost = cost
	case MoveKindOutbound:
		if !l.allowNegative && in.Qty.GreaterThan(item.QtyOnHand) {
			return StockMove{}, fmt.Errorf("%w: product %d warehouse %d has %s, requested %s",
				ErrInsufficientStock, in.ProductID, in.WarehouseID, item.QtyOnHand, in.Qty)
		}
		// Issues consume at the carrying average and never change it.
		item.QtyOnHand = item.QtyOnHand.Sub(in.Qty)
	case MoveKindAdjustment:
		newQty := item.QtyOnHand.Add(in.Qty)
		if !l.allowNegative && newQty.IsNegative() {
			return StockMove{}, fmt.Errorf("%w: product %d warehouse %d has %s, adjustment %s",
				ErrInsufficientStock, in.ProductID, in.WarehouseID, item.QtyOnHand, in.Qty)
		}
		if in.Qty.IsPositive() && in.UnitCost != nil {
			// A costed gain is a receipt and moves the average.
			item = receive(item, in.Qty, *in.UnitCost)
			unitCost = *in.UnitCost
		} else {
			// Quantity restatements apply at the carrying average.
			item.QtyOnHand = newQty
		}
	default:
		return StockMove{}, fmt.Errorf("inventory: unknown move kind %q", in.Kind)
	}

	if err := tx.UpdateItem(ctx, item); err != nil {
		return StockMove{}, err
	}

	movedAt := in.MovedAt
	if movedAt.IsZero() {
		movedAt = l.now().UTC()
	}
	move := StockMove{
		ProductID:    in.ProductID,
		WarehouseID:  in.WarehouseID,
		Kind:         in.Kind,
		Qty:          in.Qty,
		UnitCost:     unitCost,
		AvgCostAfter: item.AvgCost,
		QtyAfter:     item.QtyOnHand,
		SourceKind:   in.SourceKind,
		SourceID:     in.SourceID,
		MovedAt:      movedAt,
	}
	id, err := tx.InsertMove(ctx, move)
	if err != nil {
		return StockMove{}, err
	}
	move.ID = id
	return move, nil
}

// receive folds a costed receipt into the item's weighted average.
func receive(item StockItem, qty, cost decimal.Decimal) StockItem {
	total := item.QtyOnHand.Mul(item.AvgCost).Add(qty.Mul(cost))
	newQty := item.QtyOnHand.Add(qty)
	if newQty.IsPositive() {
		item.AvgCost = total.DivRound(newQty, avgCostScale)
	} else {
		item.AvgCost = cost
	}
	item.QtyOnHand = newQty
	return item
}

// Transfer issues stock from one warehouse and receives it in another at the
// source warehouse's carrying cost. Locks are taken in warehouse id order to
// keep concurrent opposing transfers from deadlocking.
func (l *Ledger) Transfer(ctx context.Context, tx TxRepository, in TransferInput) (out StockMove, inbound StockMove, err error) {
	if in.FromWarehouseID == in.ToWarehouseID {
		return StockMove{}, StockMove{}, ErrSameWarehouse
	}
	if in.Qty.IsNegative() {
		return StockMove{}, StockMove{}, ErrNegativeQty
	}

	first, second := in.FromWarehouseID, in.ToWarehouseID
	if second < first {
		first, second = second, first
	}
	if _, err := tx.GetItemForUpdate(ctx, in.ProductID, first); err != nil {
		return StockMove{}, StockMove{}, err
	}
	if _, err := tx.GetItemForUpdate(ctx, in.ProductID, second); err != nil {
		return StockMove{}, StockMove{}, err
	}

	out, err = l.Apply(ctx, tx, MoveInput{
		ProductID:   in.ProductID,
		WarehouseID: in.FromWarehouseID,
		Kind:        MoveKindOutbound,
		Qty:         in.Qty,
		SourceKind:  in.SourceKind,
		SourceID:    in.SourceID,
		MovedAt:     in.MovedAt,
	})
	if err != nil {
		return StockMove{}, StockMove{}, err
	}

	cost := out.UnitCost
	inbound, err = l.Apply(ctx, tx, MoveInput{
		ProductID:   in.ProductID,
		WarehouseID: in.ToWarehouseID,
		Kind:        MoveKindInbound,
		Qty:         in.Qty,
		UnitCost:    &cost,
		SourceKind:  in.SourceKind,
		SourceID:    in.SourceID,
		MovedAt:     in.MovedAt,
	})
	if err != nil {
		return StockMove{}, StockMove{}, err
	}
	return out, inbound, nil
}

// CostOfIssue returns the ledger value consumed by an outbound move.
func CostOfIssue(move StockMove) decimal.Decimal {
	return move.Qty.Mul(move.UnitCost)
}
