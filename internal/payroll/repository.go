package payroll

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

// Repository provides pool-backed run reads.
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

const runColumns = `id, ref, number, branch_id, period_start, period_end, date, status, gross_total, deductions_total, net_total, voucher_id, posted_at, created_by, created_at, updated_at`

func scanRun(row pgx.Row) (Run, error) {
	var run Run
	var status string
	err := row.Scan(&run.ID, &run.Ref, &run.Number, &run.BranchID, &run.PeriodStart, &run.PeriodEnd,
		&run.Date, &status, &run.GrossTotal, &run.DeductionsTotal, &run.NetTotal,
		&run.VoucherID, &run.PostedAt, &run.CreatedBy, &run.CreatedAt, &run.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Run{}, ErrRunNotFound
		}
		return Run{}, err
	}
	run.Status = Status(status)
	return run, nil
}

type rowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func loadLines(ctx context.Context, q rowQuerier, runID int64) ([]Line, error) {
	rows, err := q.Query(ctx, `SELECT id, run_id, employee_id, gross, deductions, net
FROM payroll_run_lines WHERE run_id=$1 ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Line
	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.ID, &line.RunID, &line.EmployeeID, &line.Gross, &line.Deductions, &line.Net); err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, rows.Err()
}

// GetRunForUpdate implements TxRepository.
func (r *PgTxRepository) GetRunForUpdate(ctx context.Context, id int64) (Run, error) {
	run, err := scanRun(r.tx.QueryRow(ctx, `SELECT `+runColumns+` FROM payroll_runs WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return Run{}, err
	}
	run.Lines, err = loadLines(ctx, r.tx, id)
	return run, err
}

// InsertRun implements TxRepository.
func (r *PgTxRepository) InsertRun(ctx context.Context, run Run) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO payroll_runs
(ref, number, branch_id, period_start, period_end, date, status, gross_total, deductions_total, net_total, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW()) RETURNING id`,
		run.Ref, run.Number, run.BranchID, run.PeriodStart, run.PeriodEnd, run.Date,
		string(run.Status), run.GrossTotal, run.DeductionsTotal, run.NetTotal, run.CreatedBy).Scan(&id)
	return id, err
}

// InsertLines implements TxRepository.
func (r *PgTxRepository) InsertLines(ctx context.Context, runID int64, lines []Line) error {
	for _, line := range lines {
		_, err := r.tx.Exec(ctx, `INSERT INTO payroll_run_lines
(run_id, employee_id, gross, deductions, net) VALUES ($1, $2, $3, $4, $5)`,
			runID, line.EmployeeID, line.Gross, line.Deductions, line.Net)
		if err != nil {
			return err
		}
	}
	return nil
}

// SetPosted implements TxRepository.
func (r *PgTxRepository) SetPosted(ctx context.Context, id, voucherID int64, postedAt time.Time) error {
	_, err := r.tx.Exec(ctx, `UPDATE payroll_runs SET status=$1, voucher_id=$2, posted_at=$3, updated_at=NOW() WHERE id=$4`,
		string(StatusPosted), voucherID, postedAt, id)
	return err
}

// SetStatus implements TxRepository.
func (r *PgTxRepository) SetStatus(ctx context.Context, id int64, status Status) error {
	_, err := r.tx.Exec(ctx, `UPDATE payroll_runs SET status=$1, updated_at=NOW() WHERE id=$2`, string(status), id)
	return err
}

// GetRun returns a run with lines.
func (r *Repository) GetRun(ctx context.Context, id int64) (Run, error) {
	run, err := scanRun(r.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM payroll_runs WHERE id=$1`, id))
	if err != nil {
		return Run{}, err
	}
	run.Lines, err = loadLines(ctx, r.pool, id)
	return run, err
}

// ListRuns returns runs newest first.
func (r *Repository) ListRuns(ctx context.Context, page shared.Pagination) ([]Run, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+runColumns+` FROM payroll_runs ORDER BY id DESC LIMIT $1 OFFSET $2`,
		page.PerPage, page.Offset())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}
