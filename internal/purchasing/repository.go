package purchasing

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/sequence"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Repository provides pool-backed invoice reads.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// PgTxRepository implements TxRepository over a pgx transaction.
type PgTxRepository struct {
	tx        pgx.Tx
	sequences *sequence.PgTxRepository
	stock     *inventory.PgTxRepository
	ledger    *ledger.PgTxRepository
}

// NewPgTxRepository wraps a transaction together with the engine views that
// share it.
func NewPgTxRepository(tx pgx.Tx) *PgTxRepository {
	return &PgTxRepository{
		tx:        tx,
		sequences: sequence.NewPgTxRepository(tx),
		stock:     inventory.NewPgTxRepository(tx),
		ledger:    ledger.NewPgTxRepository(tx),
	}
}

// Sequences implements TxRepository.
func (r *PgTxRepository) Sequences() sequence.TxRepository { return r.sequences }

// Stock implements TxRepository.
func (r *PgTxRepository) Stock() inventory.TxRepository { return r.stock }

// Ledger implements TxRepository.
func (r *PgTxRepository) Ledger() ledger.TxRepository { return r.ledger }

const invoiceColumns = `id, ref, number, supplier_id, branch_id, warehouse_id, date, COALESCE(supplier_ref,''), status, COALESCE(memo,''), subtotal, discount_total, tax_total, grand_total, voucher_id, posted_at, created_by, created_at, updated_at`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	var status string
	err := row.Scan(&inv.ID, &inv.Ref, &inv.Number, &inv.SupplierID, &inv.BranchID, &inv.WarehouseID,
		&inv.Date, &inv.SupplierRef, &status, &inv.Memo, &inv.Subtotal, &inv.DiscountTotal, &inv.TaxTotal,
		&inv.GrandTotal, &inv.VoucherID, &inv.PostedAt, &inv.CreatedBy, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, ErrInvoiceNotFound
		}
		return Invoice{}, err
	}
	inv.Status = Status(status)
	return inv, nil
}

type rowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func loadLines(ctx context.Context, q rowQuerier, invoiceID int64) ([]Line, error) {
	rows, err := q.Query(ctx, `SELECT id, invoice_id, line_no, product_id, qty, unit_cost, discount_amount, tax_rate_id, tax_amount, total
FROM purchase_invoice_lines WHERE invoice_id=$1 ORDER BY line_no`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Line
	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.ID, &line.InvoiceID, &line.LineNo, &line.ProductID, &line.Qty,
			&line.UnitCost, &line.DiscountAmount, &line.TaxRateID, &line.TaxAmount, &line.Total); err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, rows.Err()
}

// GetInvoiceForUpdate implements TxRepository.
func (r *PgTxRepository) GetInvoiceForUpdate(ctx context.Context, id int64) (Invoice, error) {
	inv, err := scanInvoice(r.tx.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM purchase_invoices WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return Invoice{}, err
	}
	inv.Lines, err = loadLines(ctx, r.tx, id)
	return inv, err
}

// InsertInvoice implements TxRepository.
func (r *PgTxRepository) InsertInvoice(ctx context.Context, inv Invoice) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO purchase_invoices
(ref, number, supplier_id, branch_id, warehouse_id, date, supplier_ref, status, memo, subtotal, discount_total, tax_total, grand_total, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW(), NOW()) RETURNING id`,
		inv.Ref, inv.Number, inv.SupplierID, inv.BranchID, inv.WarehouseID, inv.Date, inv.SupplierRef,
		string(inv.Status), inv.Memo, inv.Subtotal, inv.DiscountTotal, inv.TaxTotal, inv.GrandTotal, inv.CreatedBy).Scan(&id)
	return id, err
}

// UpdateInvoiceHeader implements TxRepository.
func (r *PgTxRepository) UpdateInvoiceHeader(ctx context.Context, inv Invoice) error {
	_, err := r.tx.Exec(ctx, `UPDATE purchase_invoices
SET supplier_id=$1, branch_id=$2, warehouse_id=$3, date=$4, supplier_ref=$5, memo=$6, subtotal=$7, discount_total=$8, tax_total=$9, grand_total=$10, updated_at=NOW()
WHERE id=$11`,
		inv.SupplierID, inv.BranchID, inv.WarehouseID, inv.Date, inv.SupplierRef, inv.Memo,
		inv.Subtotal, inv.DiscountTotal, inv.TaxTotal, inv.GrandTotal, inv.ID)
	return err
}

// ReplaceLines implements TxRepository.
func (r *PgTxRepository) ReplaceLines(ctx context.Context, invoiceID int64, lines []Line) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM purchase_invoice_lines WHERE invoice_id=$1`, invoiceID); err != nil {
		return err
	}
	for _, line := range lines {
		_, err := r.tx.Exec(ctx, `INSERT INTO purchase_invoice_lines
(invoice_id, line_no, product_id, qty, unit_cost, discount_amount, tax_rate_id, tax_amount, total)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			invoiceID, line.LineNo, line.ProductID, line.Qty, line.UnitCost,
			line.DiscountAmount, line.TaxRateID, line.TaxAmount, line.Total)
		if err != nil {
			return err
		}
	}
	return nil
}

// SetPosted implements TxRepository.
func (r *PgTxRepository) SetPosted(ctx context.Context, invoiceID, voucherID int64, postedAt time.Time) error {
	_, err := r.tx.Exec(ctx, `UPDATE purchase_invoices SET status=$1, voucher_id=$2, posted_at=$3, updated_at=NOW() WHERE id=$4`,
		string(StatusPosted), voucherID, postedAt, invoiceID)
	return err
}

// SetStatus implements TxRepository.
func (r *PgTxRepository) SetStatus(ctx context.Context, invoiceID int64, status Status) error {
	_, err := r.tx.Exec(ctx, `UPDATE purchase_invoices SET status=$1, updated_at=NOW() WHERE id=$2`, string(status), invoiceID)
	return err
}

// GetInvoice returns an invoice with lines.
func (r *Repository) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	inv, err := scanInvoice(r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM purchase_invoices WHERE id=$1`, id))
	if err != nil {
		return Invoice{}, err
	}
	inv.Lines, err = loadLines(ctx, r.pool, id)
	return inv, err
}

// ListInvoices returns invoices newest first.
func (r *Repository) ListInvoices(ctx context.Context, page shared.Pagination) ([]Invoice, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+invoiceColumns+` FROM purchase_invoices ORDER BY id DESC LIMIT $1 OFFSET $2`,
		page.PerPage, page.Offset())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}
