package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type memoryStock struct {
	items  map[[2]int64]StockItem
	moves  []StockMove
	nextID int64
}

func newMemoryStock() *memoryStock {
	return &memoryStock{items: map[[2]int64]StockItem{}}
}

func (m *memoryStock) GetItemForUpdate(_ context.Context, productID, warehouseID int64) (StockItem, error) {
	key := [2]int64{productID, warehouseID}
	item, ok := m.items[key]
	if !ok {
		m.nextID++
		item = StockItem{ID: m.nextID, ProductID: productID, WarehouseID: warehouseID, QtyOnHand: decimal.Zero, AvgCost: decimal.Zero}
		m.items[key] = item
	}
	return item, nil
}

func (m *memoryStock) UpdateItem(_ context.Context, item StockItem) error {
	m.items[[2]int64{item.ProductID, item.WarehouseID}] = item
	return nil
}

func (m *memoryStock) InsertMove(_ context.Context, move StockMove) (int64, error) {
	m.nextID++
	move.ID = m.nextID
	m.moves = append(m.moves, move)
	return move.ID, nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func inbound(qty, cost string) MoveInput {
	return MoveInput{
		ProductID:   1,
		WarehouseID: 1,
		Kind:        MoveKindInbound,
		Qty:         dec(qty),
		UnitCost:    decPtr(cost),
		SourceKind:  "PURCHASE_INVOICE",
		SourceID:    uuid.New(),
	}
}

func outbound(qty string) MoveInput {
	return MoveInput{
		ProductID:   1,
		WarehouseID: 1,
		Kind:        MoveKindOutbound,
		Qty:         dec(qty),
		SourceKind:  "SALES_INVOICE",
		SourceID:    uuid.New(),
	}
}

func TestLedgerMovingAverage(t *testing.T) {
	stock := newMemoryStock()
	ledger := NewLedger(false)

	_, err := ledger.Apply(context.Background(), stock, inbound("10", "100"))
	require.NoError(t, err)

	move, err := ledger.Apply(context.Background(), stock, inbound("5", "130"))
	require.NoError(t, err)

	// (10*100 + 5*130) / 15 = 110
	require.True(t, move.AvgCostAfter.Equal(dec("110")), "got %s", move.AvgCostAfter)
	require.True(t, move.QtyAfter.Equal(dec("15")))
}

func TestLedgerOutboundConsumesAtAverage(t *testing.T) {
	stock := newMemoryStock()
	ledger := NewLedger(false)

	_, err := ledger.Apply(context.Background(), stock, inbound("10", "100"))
	require.NoError(t, err)
	_, err = ledger.Apply(context.Background(), stock, inbound("5", "130"))
	require.NoError(t, err)

	move, err := ledger.Apply(context.Background(), stock, outbound("6"))
	require.NoError(t, err)
	require.True(t, move.UnitCost.Equal(dec("110")))
	require.True(t, move.AvgCostAfter.Equal(dec("110")), "issues must not move the average")
	require.True(t, move.QtyAfter.Equal(dec("9")))
	require.True(t, CostOfIssue(move).Equal(dec("660")))
}

func TestLedgerRejectsOverdraw(t *testing.T) {
	stock := newMemoryStock()
	ledger := NewLedger(false)

	_, err := ledger.Apply(context.Background(), stock, inbound("15", "110"))
	require.NoError(t, err)

	_, err = ledger.Apply(context.Background(), stock, outbound("20"))
	require.ErrorIs(t, err, ErrInsufficientStock)

	item, err := stock.GetItemForUpdate(context.Background(), 1, 1)
	require.NoError(t, err)
	require.True(t, item.QtyOnHand.Equal(dec("15")), "failed issue must leave balance unchanged")
	require.Len(t, stock.moves, 1)
}

func TestLedgerAllowsOverdrawWhenConfigured(t *testing.T) {
	stock := newMemoryStock()
	ledger := NewLedger(true)

	_, err := ledger.Apply(context.Background(), stock, inbound("5", "80"))
	require.NoError(t, err)

	move, err := ledger.Apply(context.Background(), stock, outbound("8"))
	require.NoError(t, err)
	require.True(t, move.QtyAfter.Equal(dec("-3")))
}

func TestLedgerZeroQtyInboundKeepsAverage(t *testing.T) {
	stock := newMemoryStock()
	ledger := NewLedger(false)

	_, err := ledger.Apply(context.Background(), stock, inbound("10", "100"))
	require.NoError(t, err)

	move, err := ledger.Apply(context.Background(), stock, inbound("0", "999"))
	require.NoError(t, err)
	require.True(t, move.AvgCostAfter.Equal(dec("100")))
	require.True(t, move.QtyAfter.Equal(dec("10")))
}

func TestLedgerFirstInboundSetsAverage(t *testing.T) {
	stock := newMemoryStock()
	ledger := NewLedger(false)

	move, err := ledger.Apply(context.Background(), stock, inbound("3", "42.50"))
	require.NoError(t, err)
	require.True(t, move.AvgCostAfter.Equal(dec("42.5")))
}

func TestLedgerRejectsNegativeQty(t *testing.T) {
	stock := newMemoryStock()
	ledger := NewLedger(false)

	_, err := ledger.Apply(context.Background(), stock, inbound("-1", "10"))
	require.ErrorIs(t, err, ErrNegativeQty)
}

func TestLedgerAdjustmentKeepsAverage(t *testing.T) {
	stock := newMemoryStock()
	ledger := NewLedger(false)

	_, err := ledger.Apply(context.Background(), stock, inbound("10", "100"))
	require.NoError(t, err)

	in := MoveInput{ProductID: 1, WarehouseID: 1, Kind: MoveKindAdjustment, Qty: dec("-2"), SourceKind: "ADJUSTMENT", SourceID: uuid.New()}
	move, err := ledger.Apply(context.Background(), stock, in)
	require.NoError(t, err)
	require.True(t, move.AvgCostAfter.Equal(dec("100")))
	require.True(t, move.QtyAfter.Equal(dec("8")))

	in.Qty = dec("-20")
	_, err = ledger.Apply(context.Background(), stock, in)
	require.ErrorIs(t, err, ErrInsufficientStock)
}

func TestLedgerCostedGainMovesAverage(t *testing.T) {
	stock := newMemoryStock()
	ledger := NewLedger(false)

	_, err := ledger.Apply(context.Background(), stock, inbound("10", "100"))
	require.NoError(t, err)

	in := MoveInput{
		ProductID:   1,
		WarehouseID: 1,
		Kind:        MoveKindAdjustment,
		Qty:         dec("5"),
		UnitCost:    decPtr("130"),
		SourceKind:  "ADJUSTMENT",
		SourceID:    uuid.New(),
	}
	move, err := ledger.Apply(context.Background(), stock, in)
	require.NoError(t, err)

	// A costed gain folds in like a receipt: (10*100 + 5*130) / 15 = 110.
	require.True(t, move.UnitCost.Equal(dec("130")))
	require.True(t, move.AvgCostAfter.Equal(dec("110")), "got %s", move.AvgCostAfter)
	require.True(t, move.QtyAfter.Equal(dec("15")))
}

func TestLedgerUncostedGainKeepsAverage(t *testing.T) {
	stock := newMemoryStock()
	ledger := NewLedger(false)

	_, err := ledger.Apply(context.Background(), stock, inbound("10", "100"))
	require.NoError(t, err)

	in := MoveInput{ProductID: 1, WarehouseID: 1, Kind: MoveKindAdjustment, Qty: dec("5"), SourceKind: "ADJUSTMENT", SourceID: uuid.New()}
	move, err := ledger.Apply(context.Background(), stock, in)
	require.NoError(t, err)
	require.True(t, move.UnitCost.Equal(dec("100")))
	require.True(t, move.AvgCostAfter.Equal(dec("100")))
	require.True(t, move.QtyAfter.Equal(dec("15")))
}

func TestLedgerInboundWithoutCostReceivesAtAverage(t *testing.T) {
	stock := newMemoryStock()
	ledger := NewLedger(false)

	_, err := ledger.Apply(context.Background(), stock, inbound("10", "100"))
	require.NoError(t, err)

	in := MoveInput{ProductID: 1, WarehouseID: 1, Kind: MoveKindInbound, Qty: dec("5"), SourceKind: "PURCHASE_INVOICE", SourceID: uuid.New()}
	move, err := ledger.Apply(context.Background(), stock, in)
	require.NoError(t, err)
	require.True(t, move.UnitCost.Equal(dec("100")), "unknown cost must stamp at the resulting average")
	require.True(t, move.AvgCostAfter.Equal(dec("100")))
	require.True(t, move.QtyAfter.Equal(dec("15")))

	// An explicit zero is a real cost and dilutes the average.
	move, err = ledger.Apply(context.Background(), stock, inbound("5", "0"))
	require.NoError(t, err)
	require.True(t, move.AvgCostAfter.Equal(dec("75")), "got %s", move.AvgCostAfter)
}

func TestLedgerRejectsNegativeCost(t *testing.T) {
	stock := newMemoryStock()
	ledger := NewLedger(false)

	_, err := ledger.Apply(context.Background(), stock, inbound("1", "-10"))
	require.ErrorIs(t, err, ErrNegativeCost)
}

func TestLedgerTransferCarriesCost(t *testing.T) {
	stock := newMemoryStock()
	ledger := NewLedger(false)

	_, err := ledger.Apply(context.Background(), stock, inbound("10", "100"))
	require.NoError(t, err)
	_, err = ledger.Apply(context.Background(), stock, inbound("5", "130"))
	require.NoError(t, err)

	out, in, err := ledger.Transfer(context.Background(), stock, TransferInput{
		ProductID:       1,
		FromWarehouseID: 1,
		ToWarehouseID:   2,
		Qty:             dec("4"),
		SourceKind:      "TRANSFER",
		SourceID:        uuid.New(),
		MovedAt:         time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.True(t, out.UnitCost.Equal(dec("110")))
	require.True(t, in.UnitCost.Equal(dec("110")))
	require.True(t, out.QtyAfter.Equal(dec("11")))
	require.True(t, in.QtyAfter.Equal(dec("4")))
	require.True(t, in.AvgCostAfter.Equal(dec("110")))
}

func TestLedgerTransferRejectsSameWarehouse(t *testing.T) {
	stock := newMemoryStock()
	ledger := NewLedger(false)

	_, _, err := ledger.Transfer(context.Background(), stock, TransferInput{
		ProductID:       1,
		FromWarehouseID: 3,
		ToWarehouseID:   3,
		Qty:             dec("1"),
	})
	require.ErrorIs(t, err, ErrSameWarehouse)
}
