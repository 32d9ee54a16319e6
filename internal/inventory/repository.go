package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides pool-backed stock reads.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// PgTxRepository implements TxRepository over a pgx transaction.
type PgTxRepository struct {
	tx pgx.Tx
}

// NewPgTxRepository wraps a transaction.
func NewPgTxRepository(tx pgx.Tx) *PgTxRepository {
	return &PgTxRepository{tx: tx}
}

// GetItemForUpdate implements TxRepository. A zero balance row is created on
// first movement so the lock has a row to land on.
func (r *PgTxRepository) GetItemForUpdate(ctx context.Context, productID, warehouseID int64) (StockItem, error) {
	_, err := r.tx.Exec(ctx, `INSERT INTO stock_items (product_id, warehouse_id, qty_on_hand, avg_cost, updated_at)
VALUES ($1, $2, 0, 0, NOW()) ON CONFLICT (product_id, warehouse_id) DO NOTHING`, productID, warehouseID)
	if err != nil {
		return StockItem{}, err
	}
	var item StockItem
	err = r.tx.QueryRow(ctx, `SELECT id, product_id, warehouse_id, qty_on_hand, avg_cost, updated_at
FROM stock_items WHERE product_id=$1 AND warehouse_id=$2 FOR UPDATE`, productID, warehouseID).
		Scan(&item.ID, &item.ProductID, &item.WarehouseID, &item.QtyOnHand, &item.AvgCost, &item.UpdatedAt)
	if err != nil {
		return StockItem{}, err
	}
	return item, nil
}

// UpdateItem implements TxRepository.
func (r *PgTxRepository) UpdateItem(ctx context.Context, item StockItem) error {
	_, err := r.tx.Exec(ctx, `UPDATE stock_items SET qty_on_hand=$1, avg_cost=$2, updated_at=NOW() WHERE id=$3`,
		item.QtyOnHand, item.AvgCost, item.ID)
	return err
}

// InsertMove implements TxRepository.
func (r *PgTxRepository) InsertMove(ctx context.Context, move StockMove) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_moves
(product_id, warehouse_id, kind, qty, unit_cost, avg_cost_after, qty_after, source_kind, source_id, moved_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW()) RETURNING id`,
		move.ProductID, move.WarehouseID, string(move.Kind), move.Qty, move.UnitCost,
		move.AvgCostAfter, move.QtyAfter, move.SourceKind, move.SourceID, move.MovedAt).Scan(&id)
	return id, err
}

// GetItem returns the stock balance for a product in a warehouse.
func (r *Repository) GetItem(ctx context.Context, productID, warehouseID int64) (StockItem, error) {
	var item StockItem
	err := r.pool.QueryRow(ctx, `SELECT id, product_id, warehouse_id, qty_on_hand, avg_cost, updated_at
FROM stock_items WHERE product_id=$1 AND warehouse_id=$2`, productID, warehouseID).
		Scan(&item.ID, &item.ProductID, &item.WarehouseID, &item.QtyOnHand, &item.AvgCost, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StockItem{}, ErrItemNotFound
		}
		return StockItem{}, err
	}
	return item, nil
}

// ListItems returns stock balances in a warehouse ordered by product.
func (r *Repository) ListItems(ctx context.Context, warehouseID int64) ([]StockItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, warehouse_id, qty_on_hand, avg_cost, updated_at
FROM stock_items WHERE warehouse_id=$1 ORDER BY product_id`, warehouseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StockItem
	for rows.Next() {
		var item StockItem
		if err := rows.Scan(&item.ID, &item.ProductID, &item.WarehouseID, &item.QtyOnHand, &item.AvgCost, &item.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// ListMoves returns the movement history for a product in a warehouse,
// newest first.
func (r *Repository) ListMoves(ctx context.Context, productID, warehouseID int64, limit int) ([]StockMove, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, warehouse_id, kind, qty, unit_cost, avg_cost_after, qty_after, source_kind, source_id, moved_at, created_at
FROM stock_moves WHERE product_id=$1 AND warehouse_id=$2 ORDER BY id DESC LIMIT $3`, productID, warehouseID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StockMove
	for rows.Next() {
		var move StockMove
		var kind string
		if err := rows.Scan(&move.ID, &move.ProductID, &move.WarehouseID, &kind, &move.Qty, &move.UnitCost,
			&move.AvgCostAfter, &move.QtyAfter, &move.SourceKind, &move.SourceID, &move.MovedAt, &move.CreatedAt); err != nil {
			return nil, err
		}
		move.Kind = MoveKind(kind)
		out = append(out, move)
	}
	return out, rows.Err()
}
