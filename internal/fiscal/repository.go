package fiscal

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for the fiscal calendar.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx wraps the callback in a repeatable-read transaction exposing the
// calendar TxRepository.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, tx)
	})
}

// PgTxRepository implements TxRepository over an arbitrary pgx transaction so
// posting transactions owned by other modules can resolve periods in-tx.
type PgTxRepository struct {
	tx pgx.Tx
}

// NewPgTxRepository wraps a transaction.
func NewPgTxRepository(tx pgx.Tx) *PgTxRepository {
	return &PgTxRepository{tx: tx}
}

const yearColumns = `id, code, start_date, end_date, status, closed_at, closed_by, created_at, updated_at`
const periodColumns = `id, year_id, code, start_date, end_date, status, closed_at, created_at, updated_at`

func scanYear(row pgx.Row) (Year, error) {
	var y Year
	var status string
	if err := row.Scan(&y.ID, &y.Code, &y.StartDate, &y.EndDate, &status, &y.ClosedAt, &y.ClosedBy, &y.CreatedAt, &y.UpdatedAt); err != nil {
		return Year{}, err
	}
	y.Status = Status(status)
	return y, nil
}

func scanPeriod(row pgx.Row) (Period, error) {
	var p Period
	var status string
	if err := row.Scan(&p.ID, &p.YearID, &p.Code, &p.StartDate, &p.EndDate, &status, &p.ClosedAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Period{}, err
	}
	p.Status = Status(status)
	return p, nil
}

// FindYearByDate implements TxRepository.
func (r *PgTxRepository) FindYearByDate(ctx context.Context, date time.Time) (Year, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+yearColumns+` FROM fiscal_years
WHERE $1::date BETWEEN start_date AND end_date
ORDER BY start_date DESC LIMIT 1`, date)
	year, err := scanYear(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Year{}, ErrNoFiscalYear
		}
		return Year{}, err
	}
	return year, nil
}

// FindPeriodByDate implements TxRepository.
func (r *PgTxRepository) FindPeriodByDate(ctx context.Context, yearID int64, date time.Time) (Period, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+periodColumns+` FROM fiscal_periods
WHERE year_id=$1 AND $2::date BETWEEN start_date AND end_date
ORDER BY start_date DESC LIMIT 1`, yearID, date)
	period, err := scanPeriod(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, ErrNoFiscalPeriod
		}
		return Period{}, err
	}
	return period, nil
}

// LockPeriod implements TxRepository.
func (r *PgTxRepository) LockPeriod(ctx context.Context, periodID int64) (Period, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+periodColumns+` FROM fiscal_periods WHERE id=$1 FOR UPDATE`, periodID)
	period, err := scanPeriod(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, ErrPeriodNotFound
		}
		return Period{}, err
	}
	return period, nil
}

// Lifecycle queries used by the Service.

// GetYear returns a year by id.
func (r *Repository) GetYear(ctx context.Context, id int64) (Year, error) {
	year, err := scanYear(r.pool.QueryRow(ctx, `SELECT `+yearColumns+` FROM fiscal_years WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Year{}, ErrYearNotFound
		}
		return Year{}, err
	}
	return year, nil
}

// ListYears returns all years ordered by start date.
func (r *Repository) ListYears(ctx context.Context) ([]Year, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+yearColumns+` FROM fiscal_years ORDER BY start_date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Year
	for rows.Next() {
		year, err := scanYear(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, year)
	}
	return out, rows.Err()
}

// ListPeriods returns the periods of a year.
func (r *Repository) ListPeriods(ctx context.Context, yearID int64) ([]Period, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+periodColumns+` FROM fiscal_periods WHERE year_id=$1 ORDER BY start_date`, yearID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Period
	for rows.Next() {
		period, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, period)
	}
	return out, rows.Err()
}

// YearRangeConflict reports whether a year range overlaps an existing one.
func (r *Repository) YearRangeConflict(ctx context.Context, start, end time.Time) (bool, error) {
	var conflict bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM fiscal_years WHERE start_date <= $2 AND end_date >= $1)`, start, end).Scan(&conflict)
	return conflict, err
}

// InsertYear inserts a year inside tx.
func (r *Repository) InsertYear(ctx context.Context, tx pgx.Tx, in CreateYearInput) (Year, error) {
	row := tx.QueryRow(ctx, `INSERT INTO fiscal_years (code, start_date, end_date, status, created_at, updated_at)
VALUES ($1, $2, $3, 'OPEN', NOW(), NOW()) RETURNING `+yearColumns, in.Code, in.StartDate, in.EndDate)
	return scanYear(row)
}

// InsertPeriod inserts a period inside tx.
func (r *Repository) InsertPeriod(ctx context.Context, tx pgx.Tx, yearID int64, code string, start, end time.Time) (Period, error) {
	row := tx.QueryRow(ctx, `INSERT INTO fiscal_periods (year_id, code, start_date, end_date, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, 'OPEN', NOW(), NOW()) RETURNING `+periodColumns, yearID, code, start, end)
	return scanPeriod(row)
}

// LockYear re-reads a year under FOR UPDATE inside tx.
func (r *Repository) LockYear(ctx context.Context, tx pgx.Tx, id int64) (Year, error) {
	year, err := scanYear(tx.QueryRow(ctx, `SELECT `+yearColumns+` FROM fiscal_years WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Year{}, ErrYearNotFound
		}
		return Year{}, err
	}
	return year, nil
}

// LockPeriodTx re-reads a period under FOR UPDATE inside tx.
func (r *Repository) LockPeriodTx(ctx context.Context, tx pgx.Tx, id int64) (Period, error) {
	period, err := scanPeriod(tx.QueryRow(ctx, `SELECT `+periodColumns+` FROM fiscal_periods WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, ErrPeriodNotFound
		}
		return Period{}, err
	}
	return period, nil
}

// SetPeriodStatus updates a period's status inside tx.
func (r *Repository) SetPeriodStatus(ctx context.Context, tx pgx.Tx, id int64, status Status, closedAt *time.Time) error {
	_, err := tx.Exec(ctx, `UPDATE fiscal_periods SET status=$2, closed_at=$3, updated_at=NOW() WHERE id=$1`, id, string(status), closedAt)
	return err
}

// SetYearStatus updates a year's status inside tx.
func (r *Repository) SetYearStatus(ctx context.Context, tx pgx.Tx, id int64, status Status, closedAt *time.Time, closedBy *int64) error {
	_, err := tx.Exec(ctx, `UPDATE fiscal_years SET status=$2, closed_at=$3, closed_by=$4, updated_at=NOW() WHERE id=$1`, id, string(status), closedAt, closedBy)
	return err
}

// CountOpenPeriods returns the number of open periods in a year inside tx.
func (r *Repository) CountOpenPeriods(ctx context.Context, tx pgx.Tx, yearID int64) (int, error) {
	var n int
	err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM fiscal_periods WHERE year_id=$1 AND status='OPEN'`, yearID).Scan(&n)
	return n, err
}
