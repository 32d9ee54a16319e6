package treasury

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/sequence"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Repository provides pool-backed treasury reads.
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
	ledger    *ledger.PgTxRepository
}

// NewPgTxRepository wraps a transaction together with the engine views that
// share it.
func NewPgTxRepository(tx pgx.Tx) *PgTxRepository {
	return &PgTxRepository{
		tx:        tx,
		sequences: sequence.NewPgTxRepository(tx),
		ledger:    ledger.NewPgTxRepository(tx),
	}
}

// Sequences implements TxRepository.
func (r *PgTxRepository) Sequences() sequence.TxRepository { return r.sequences }

// Ledger implements TxRepository.
func (r *PgTxRepository) Ledger() ledger.TxRepository { return r.ledger }

const receiptColumns = `id, ref, number, party_id, branch_id, date, amount, cash_account_id, COALESCE(memo,''), status, voucher_id, posted_at, created_by, created_at, updated_at`

func scanReceipt(row pgx.Row) (Receipt, error) {
	var rec Receipt
	var status string
	err := row.Scan(&rec.ID, &rec.Ref, &rec.Number, &rec.PartyID, &rec.BranchID, &rec.Date,
		&rec.Amount, &rec.CashAccountID, &rec.Memo, &status, &rec.VoucherID, &rec.PostedAt,
		&rec.CreatedBy, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Receipt{}, ErrReceiptNotFound
		}
		return Receipt{}, err
	}
	rec.Status = Status(status)
	return rec, nil
}

// GetReceiptForUpdate implements TxRepository.
func (r *PgTxRepository) GetReceiptForUpdate(ctx context.Context, id int64) (Receipt, error) {
	return scanReceipt(r.tx.QueryRow(ctx, `SELECT `+receiptColumns+` FROM receipts WHERE id=$1 FOR UPDATE`, id))
}

// InsertReceipt implements TxRepository.
func (r *PgTxRepository) InsertReceipt(ctx context.Context, rec Receipt) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO receipts
(ref, number, party_id, branch_id, date, amount, cash_account_id, memo, status, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW()) RETURNING id`,
		rec.Ref, rec.Number, rec.PartyID, rec.BranchID, rec.Date, rec.Amount,
		rec.CashAccountID, rec.Memo, string(rec.Status), rec.CreatedBy).Scan(&id)
	return id, err
}

// SetReceiptPosted implements TxRepository.
func (r *PgTxRepository) SetReceiptPosted(ctx context.Context, id, voucherID int64, postedAt time.Time) error {
	_, err := r.tx.Exec(ctx, `UPDATE receipts SET status=$1, voucher_id=$2, posted_at=$3, updated_at=NOW() WHERE id=$4`,
		string(StatusPosted), voucherID, postedAt, id)
	return err
}

const paymentColumns = `id, ref, number, party_id, branch_id, date, amount, cash_account_id, COALESCE(memo,''), status, voucher_id, posted_at, created_by, created_at, updated_at`

func scanPayment(row pgx.Row) (Payment, error) {
	var pay Payment
	var status string
	err := row.Scan(&pay.ID, &pay.Ref, &pay.Number, &pay.PartyID, &pay.BranchID, &pay.Date,
		&pay.Amount, &pay.CashAccountID, &pay.Memo, &status, &pay.VoucherID, &pay.PostedAt,
		&pay.CreatedBy, &pay.CreatedAt, &pay.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Payment{}, ErrPaymentNotFound
		}
		return Payment{}, err
	}
	pay.Status = Status(status)
	return pay, nil
}

// GetPaymentForUpdate implements TxRepository.
func (r *PgTxRepository) GetPaymentForUpdate(ctx context.Context, id int64) (Payment, error) {
	return scanPayment(r.tx.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id=$1 FOR UPDATE`, id))
}

// InsertPayment implements TxRepository.
func (r *PgTxRepository) InsertPayment(ctx context.Context, pay Payment) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO payments
(ref, number, party_id, branch_id, date, amount, cash_account_id, memo, status, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW()) RETURNING id`,
		pay.Ref, pay.Number, pay.PartyID, pay.BranchID, pay.Date, pay.Amount,
		pay.CashAccountID, pay.Memo, string(pay.Status), pay.CreatedBy).Scan(&id)
	return id, err
}

// SetPaymentPosted implements TxRepository.
func (r *PgTxRepository) SetPaymentPosted(ctx context.Context, id, voucherID int64, postedAt time.Time) error {
	_, err := r.tx.Exec(ctx, `UPDATE payments SET status=$1, voucher_id=$2, posted_at=$3, updated_at=NOW() WHERE id=$4`,
		string(StatusPosted), voucherID, postedAt, id)
	return err
}

const transferColumns = `id, ref, number, from_account_id, to_account_id, branch_id, date, amount, COALESCE(memo,''), status, voucher_id, posted_at, created_by, created_at`

func scanTransfer(row pgx.Row) (CashTransfer, error) {
	var tr CashTransfer
	var status string
	err := row.Scan(&tr.ID, &tr.Ref, &tr.Number, &tr.FromAccountID, &tr.ToAccountID, &tr.BranchID,
		&tr.Date, &tr.Amount, &tr.Memo, &status, &tr.VoucherID, &tr.PostedAt, &tr.CreatedBy, &tr.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CashTransfer{}, ErrTransferNotFound
		}
		return CashTransfer{}, err
	}
	tr.Status = Status(status)
	return tr, nil
}

// GetTransferForUpdate implements TxRepository.
func (r *PgTxRepository) GetTransferForUpdate(ctx context.Context, id int64) (CashTransfer, error) {
	return scanTransfer(r.tx.QueryRow(ctx, `SELECT `+transferColumns+` FROM cash_transfers WHERE id=$1 FOR UPDATE`, id))
}

// InsertTransfer implements TxRepository.
func (r *PgTxRepository) InsertTransfer(ctx context.Context, tr CashTransfer) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO cash_transfers
(ref, number, from_account_id, to_account_id, branch_id, date, amount, memo, status, created_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW()) RETURNING id`,
		tr.Ref, tr.Number, tr.FromAccountID, tr.ToAccountID, tr.BranchID, tr.Date,
		tr.Amount, tr.Memo, string(tr.Status), tr.CreatedBy).Scan(&id)
	return id, err
}

// SetTransferPosted implements TxRepository.
func (r *PgTxRepository) SetTransferPosted(ctx context.Context, id, voucherID int64, postedAt time.Time) error {
	_, err := r.tx.Exec(ctx, `UPDATE cash_transfers SET status=$1, voucher_id=$2, posted_at=$3 WHERE id=$4`,
		string(StatusPosted), voucherID, postedAt, id)
	return err
}

const chequeColumns = `id, ref, number, cheque_no, direction, party_id, branch_id, amount, bank_account_id, issue_date, due_date, status, voucher_id, cleared_at, bounced_at, created_by, created_at, updated_at`

func scanCheque(row pgx.Row) (Cheque, error) {
	var chq Cheque
	var direction, status string
	err := row.Scan(&chq.ID, &chq.Ref, &chq.Number, &chq.ChequeNo, &direction, &chq.PartyID,
		&chq.BranchID, &chq.Amount, &chq.BankAccountID, &chq.IssueDate, &chq.DueDate, &status,
		&chq.VoucherID, &chq.ClearedAt, &chq.BouncedAt, &chq.CreatedBy, &chq.CreatedAt, &chq.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Cheque{}, ErrChequeNotFound
		}
		return Cheque{}, err
	}
	chq.Direction = ChequeDirection(direction)
	chq.Status = ChequeStatus(status)
	return chq, nil
}

// GetChequeForUpdate implements TxRepository.
func (r *PgTxRepository) GetChequeForUpdate(ctx context.Context, id int64) (Cheque, error) {
	return scanCheque(r.tx.QueryRow(ctx, `SELECT `+chequeColumns+` FROM cheques WHERE id=$1 FOR UPDATE`, id))
}

// InsertCheque implements TxRepository.
func (r *PgTxRepository) InsertCheque(ctx context.Context, chq Cheque) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO cheques
(ref, number, cheque_no, direction, party_id, branch_id, amount, bank_account_id, issue_date, due_date, status, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW()) RETURNING id`,
		chq.Ref, chq.Number, chq.ChequeNo, string(chq.Direction), chq.PartyID, chq.BranchID,
		chq.Amount, chq.BankAccountID, chq.IssueDate, chq.DueDate, string(chq.Status), chq.CreatedBy).Scan(&id)
	return id, err
}

// UpdateCheque implements TxRepository.
func (r *PgTxRepository) UpdateCheque(ctx context.Context, chq Cheque) error {
	_, err := r.tx.Exec(ctx, `UPDATE cheques
SET status=$1, voucher_id=$2, cleared_at=$3, bounced_at=$4, updated_at=NOW() WHERE id=$5`,
		string(chq.Status), chq.VoucherID, chq.ClearedAt, chq.BouncedAt, chq.ID)
	return err
}

// GetReceipt returns a receipt.
func (r *Repository) GetReceipt(ctx context.Context, id int64) (Receipt, error) {
	return scanReceipt(r.pool.QueryRow(ctx, `SELECT `+receiptColumns+` FROM receipts WHERE id=$1`, id))
}

// GetPayment returns a payment.
func (r *Repository) GetPayment(ctx context.Context, id int64) (Payment, error) {
	return scanPayment(r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id=$1`, id))
}

// GetTransfer returns a cash transfer.
func (r *Repository) GetTransfer(ctx context.Context, id int64) (CashTransfer, error) {
	return scanTransfer(r.pool.QueryRow(ctx, `SELECT `+transferColumns+` FROM cash_transfers WHERE id=$1`, id))
}

// GetCheque returns a cheque.
func (r *Repository) GetCheque(ctx context.Context, id int64) (Cheque, error) {
	return scanCheque(r.pool.QueryRow(ctx, `SELECT `+chequeColumns+` FROM cheques WHERE id=$1`, id))
}

// ListReceipts returns receipts newest first.
func (r *Repository) ListReceipts(ctx context.Context, page shared.Pagination) ([]Receipt, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+receiptColumns+` FROM receipts ORDER BY id DESC LIMIT $1 OFFSET $2`,
		page.PerPage, page.Offset())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Receipt
	for rows.Next() {
		rec, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListPayments returns payments newest first.
func (r *Repository) ListPayments(ctx context.Context, page shared.Pagination) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+paymentColumns+` FROM payments ORDER BY id DESC LIMIT $1 OFFSET $2`,
		page.PerPage, page.Offset())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Payment
	for rows.Next() {
		pay, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pay)
	}
	return out, rows.Err()
}

// ListDueCheques returns issued cheques due on or before the date.
func (r *Repository) ListDueCheques(ctx context.Context, dueBy time.Time) ([]Cheque, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+chequeColumns+` FROM cheques WHERE status=$1 AND due_date<=$2 ORDER BY due_date`,
		string(ChequeStatusIssued), dueBy)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Cheque
	for rows.Next() {
		chq, err := scanCheque(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, chq)
	}
	return out, rows.Err()
}
