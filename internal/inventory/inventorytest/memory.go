// Package inventorytest provides an in-memory inventory.TxRepository for
// orchestrator tests.
package inventorytest

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/inventory"
)

// Memory implements inventory.TxRepository in memory.
type Memory struct {
	Items  map[[2]int64]inventory.StockItem
	Moves  []inventory.StockMove
	nextID int64
}

// New returns an empty Memory.
func New() *Memory {
	return &Memory{Items: map[[2]int64]inventory.StockItem{}}
}

// Seed sets the balance of a product in a warehouse.
func (m *Memory) Seed(productID, warehouseID int64, qty, avgCost decimal.Decimal) {
	m.nextID++
	m.Items[[2]int64{productID, warehouseID}] = inventory.StockItem{
		ID: m.nextID, ProductID: productID, WarehouseID: warehouseID, QtyOnHand: qty, AvgCost: avgCost,
	}
}

// Item returns the balance of a product in a warehouse.
func (m *Memory) Item(productID, warehouseID int64) inventory.StockItem {
	return m.Items[[2]int64{productID, warehouseID}]
}

func (m *Memory) GetItemForUpdate(_ context.Context, productID, warehouseID int64) (inventory.StockItem, error) {
	key := [2]int64{productID, warehouseID}
	item, ok := m.Items[key]
	if !ok {
		m.nextID++
		item = inventory.StockItem{ID: m.nextID, ProductID: productID, WarehouseID: warehouseID, QtyOnHand: decimal.Zero, AvgCost: decimal.Zero}
		m.Items[key] = item
	}
	return item, nil
}

func (m *Memory) UpdateItem(_ context.Context, item inventory.StockItem) error {
	m.Items[[2]int64{item.ProductID, item.WarehouseID}] = item
	return nil
}

func (m *Memory) InsertMove(_ context.Context, move inventory.StockMove) (int64, error) {
	m.nextID++
	move.ID = m.nextID
	m.Moves = append(m.Moves, move)
	return move.ID, nil
}
