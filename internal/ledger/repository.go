package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/fiscal"
	"github.com/meridian-erp/meridian-erp/internal/sequence"
)

// Repository provides pool-backed reads for accounts, rules and vouchers.
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
	periods   *fiscal.PgTxRepository
}

// NewPgTxRepository wraps a transaction with its sequence and fiscal views.
func NewPgTxRepository(tx pgx.Tx) *PgTxRepository {
	return &PgTxRepository{
		tx:        tx,
		sequences: sequence.NewPgTxRepository(tx),
		periods:   fiscal.NewPgTxRepository(tx),
	}
}

// Sequences implements TxRepository.
func (r *PgTxRepository) Sequences() sequence.TxRepository { return r.sequences }

// Periods implements TxRepository.
func (r *PgTxRepository) Periods() fiscal.TxRepository { return r.periods }

type rowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const accountColumns = `id, code, name, type, normal_side, parent_id, is_postable, is_active, created_at, updated_at`

func getAccounts(ctx context.Context, q rowQuerier, ids []int64) (map[int64]Account, error) {
	rows, err := q.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]Account, len(ids))
	for rows.Next() {
		var a Account
		var typ, side string
		if err := rows.Scan(&a.ID, &a.Code, &a.Name, &typ, &side, &a.ParentID, &a.IsPostable, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		a.Type = AccountType(typ)
		a.NormalSide = NormalSide(side)
		out[a.ID] = a
	}
	return out, rows.Err()
}

func getActiveRules(ctx context.Context, q rowQuerier, kind DocumentKind) ([]PostingRule, error) {
	rows, err := q.Query(ctx, `SELECT id, document_kind, debit_account_id, credit_account_id, tax_account_id, discount_account_id, is_active
FROM posting_rules WHERE document_kind=$1 AND is_active ORDER BY id`, string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PostingRule
	for rows.Next() {
		var rule PostingRule
		var k string
		if err := rows.Scan(&rule.ID, &k, &rule.DebitAccountID, &rule.CreditAccountID, &rule.TaxAccountID, &rule.DiscountAccountID, &rule.IsActive); err != nil {
			return nil, err
		}
		rule.DocumentKind = DocumentKind(k)
		out = append(out, rule)
	}
	return out, rows.Err()
}

// GetAccounts implements TxRepository.
func (r *PgTxRepository) GetAccounts(ctx context.Context, ids []int64) (map[int64]Account, error) {
	return getAccounts(ctx, r.tx, ids)
}

// GetActiveRules implements TxRepository.
func (r *PgTxRepository) GetActiveRules(ctx context.Context, kind DocumentKind) ([]PostingRule, error) {
	return getActiveRules(ctx, r.tx, kind)
}

// FindVoucherIDBySource implements TxRepository.
func (r *PgTxRepository) FindVoucherIDBySource(ctx context.Context, kind DocumentKind, sourceID uuid.UUID) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `SELECT DISTINCT voucher_id FROM voucher_lines WHERE source_kind=$1 AND source_id=$2`, string(kind), sourceID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrVoucherNotFound
		}
		return 0, err
	}
	return id, nil
}

// InsertVoucher implements TxRepository.
func (r *PgTxRepository) InsertVoucher(ctx context.Context, v Voucher) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO vouchers (number, date, branch_id, period_id, status, memo, posted_by, posted_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW()) RETURNING id`,
		v.Number, v.Date, v.BranchID, v.PeriodID, string(v.Status), v.Memo, v.PostedBy, v.PostedAt).Scan(&id)
	return id, err
}

// InsertVoucherLines implements TxRepository.
func (r *PgTxRepository) InsertVoucherLines(ctx context.Context, voucherID int64, lines []VoucherLine) error {
	for _, line := range lines {
		_, err := r.tx.Exec(ctx, `INSERT INTO voucher_lines (voucher_id, line_no, account_id, debit, credit, party_id, cost_center_id, currency_code, exchange_rate, source_kind, source_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			voucherID, line.LineNo, line.AccountID, line.Debit, line.Credit, line.PartyID, line.CostCenterID, line.CurrencyCode, line.ExchangeRate, string(line.SourceKind), line.SourceID)
		if err != nil {
			return err
		}
	}
	return nil
}

// GetVoucherWithLines implements TxRepository.
func (r *PgTxRepository) GetVoucherWithLines(ctx context.Context, id int64) (Voucher, error) {
	return getVoucherWithLines(ctx, r.tx, id)
}

const voucherColumns = `id, number, date, branch_id, period_id, status, COALESCE(memo,''), posted_by, posted_at, created_at`

func getVoucherWithLines(ctx context.Context, q rowQuerier, id int64) (Voucher, error) {
	var v Voucher
	var status string
	err := q.QueryRow(ctx, `SELECT `+voucherColumns+` FROM vouchers WHERE id=$1`, id).
		Scan(&v.ID, &v.Number, &v.Date, &v.BranchID, &v.PeriodID, &status, &v.Memo, &v.PostedBy, &v.PostedAt, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Voucher{}, ErrVoucherNotFound
		}
		return Voucher{}, err
	}
	v.Status = VoucherStatus(status)
	rows, err := q.Query(ctx, `SELECT id, voucher_id, line_no, account_id, debit, credit, party_id, cost_center_id, COALESCE(currency_code,''), COALESCE(exchange_rate,0), source_kind, source_id
FROM voucher_lines WHERE voucher_id=$1 ORDER BY line_no`, id)
	if err != nil {
		return Voucher{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line VoucherLine
		var kind string
		if err := rows.Scan(&line.ID, &line.VoucherID, &line.LineNo, &line.AccountID, &line.Debit, &line.Credit, &line.PartyID, &line.CostCenterID, &line.CurrencyCode, &line.ExchangeRate, &kind, &line.SourceID); err != nil {
			return Voucher{}, err
		}
		line.SourceKind = DocumentKind(kind)
		v.Lines = append(v.Lines, line)
	}
	return v, rows.Err()
}

// Pool-backed reads.

// GetAccounts returns accounts by id.
func (r *Repository) GetAccounts(ctx context.Context, ids []int64) (map[int64]Account, error) {
	return getAccounts(ctx, r.pool, ids)
}

// GetActiveRules returns active rules for a kind.
func (r *Repository) GetActiveRules(ctx context.Context, kind DocumentKind) ([]PostingRule, error) {
	return getActiveRules(ctx, r.pool, kind)
}

// GetVoucherWithLines returns a voucher and its lines.
func (r *Repository) GetVoucherWithLines(ctx context.Context, id int64) (Voucher, error) {
	return getVoucherWithLines(ctx, r.pool, id)
}

// ListAccounts returns the chart of accounts ordered by code.
func (r *Repository) ListAccounts(ctx context.Context) ([]Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		var a Account
		var typ, side string
		if err := rows.Scan(&a.ID, &a.Code, &a.Name, &typ, &side, &a.ParentID, &a.IsPostable, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		a.Type = AccountType(typ)
		a.NormalSide = NormalSide(side)
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListVouchers returns vouchers in a period ordered by number.
func (r *Repository) ListVouchers(ctx context.Context, periodID int64, limit int) ([]Voucher, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+voucherColumns+` FROM vouchers WHERE ($1 = 0 OR period_id=$1) ORDER BY number LIMIT $2`, periodID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Voucher
	for rows.Next() {
		var v Voucher
		var status string
		if err := rows.Scan(&v.ID, &v.Number, &v.Date, &v.BranchID, &v.PeriodID, &status, &v.Memo, &v.PostedBy, &v.PostedAt, &v.CreatedAt); err != nil {
			return nil, err
		}
		v.Status = VoucherStatus(status)
		out = append(out, v)
	}
	return out, rows.Err()
}
