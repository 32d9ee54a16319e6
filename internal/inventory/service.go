package inventory

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/platform/db"
)

// Service exposes stock reads and standalone movements (adjustments and
// transfers) for the HTTP layer. Document postings drive the ledger through
// their own orchestrator transactions instead.
type Service struct {
	pool   *pgxpool.Pool
	repo   *Repository
	ledger *Ledger
}

// NewService constructs the inventory service.
func NewService(pool *pgxpool.Pool, repo *Repository, ledger *Ledger) *Service {
	return &Service{pool: pool, repo: repo, ledger: ledger}
}

// GetItem returns the balance of a product in a warehouse.
func (s *Service) GetItem(ctx context.Context, productID, warehouseID int64) (StockItem, error) {
	return s.repo.GetItem(ctx, productID, warehouseID)
}

// ListItems returns the balances in a warehouse.
func (s *Service) ListItems(ctx context.Context, warehouseID int64) ([]StockItem, error) {
	return s.repo.ListItems(ctx, warehouseID)
}

// ListMoves returns the movement history of a product in a warehouse.
func (s *Service) ListMoves(ctx context.Context, productID, warehouseID int64, limit int) ([]StockMove, error) {
	return s.repo.ListMoves(ctx, productID, warehouseID, limit)
}

// Adjust applies a quantity adjustment in its own transaction.
func (s *Service) Adjust(ctx context.Context, in MoveInput) (StockMove, error) {
	in.Kind = MoveKindAdjustment
	var move StockMove
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var applyErr error
		move, applyErr = s.ledger.Apply(ctx, NewPgTxRepository(tx), in)
		return applyErr
	})
	if err != nil {
		return StockMove{}, err
	}
	return move, nil
}

// Transfer moves stock between warehouses in its own transaction.
func (s *Service) Transfer(ctx context.Context, in TransferInput) (out StockMove, inbound StockMove, err error) {
	err = db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var txErr error
		out, inbound, txErr = s.ledger.Transfer(ctx, NewPgTxRepository(tx), in)
		return txErr
	})
	if err != nil {
		return StockMove{}, StockMove{}, err
	}
	return out, inbound, nil
}
