package assets

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
)

// Repository provides pool-backed asset reads.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// PgTxRepository implements TxRepository over a pgx transaction.
type PgTxRepository struct {
	tx     pgx.Tx
	ledger *ledger.PgTxRepository
}

// NewPgTxRepository wraps a transaction.
func NewPgTxRepository(tx pgx.Tx) *PgTxRepository {
	return &PgTxRepository{tx: tx, ledger: ledger.NewPgTxRepository(tx)}
}

// Ledger implements TxRepository.
func (r *PgTxRepository) Ledger() ledger.TxRepository { return r.ledger }

const assetColumns = `id, code, name, category_id, branch_id, acquired_at, cost, useful_life_months, residual_value, accumulated_depreciation, status, disposed_at, created_at, updated_at`

func scanAsset(row pgx.Row) (FixedAsset, error) {
	var a FixedAsset
	var status string
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.CategoryID, &a.BranchID, &a.AcquiredAt, &a.Cost,
		&a.UsefulLifeMonths, &a.ResidualValue, &a.AccumulatedDepreciation, &status, &a.DisposedAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FixedAsset{}, ErrAssetNotFound
		}
		return FixedAsset{}, err
	}
	a.Status = Status(status)
	return a, nil
}

// GetAssetForUpdate implements TxRepository.
func (r *PgTxRepository) GetAssetForUpdate(ctx context.Context, id int64) (FixedAsset, error) {
	return scanAsset(r.tx.QueryRow(ctx, `SELECT `+assetColumns+` FROM fixed_assets WHERE id=$1 FOR UPDATE`, id))
}

// UpdateAsset implements TxRepository.
func (r *PgTxRepository) UpdateAsset(ctx context.Context, asset FixedAsset) error {
	_, err := r.tx.Exec(ctx, `UPDATE fixed_assets
SET accumulated_depreciation=$1, status=$2, disposed_at=$3, updated_at=NOW() WHERE id=$4`,
		asset.AccumulatedDepreciation, string(asset.Status), asset.DisposedAt, asset.ID)
	return err
}

// CountScheduleRows implements TxRepository.
func (r *PgTxRepository) CountScheduleRows(ctx context.Context, assetID int64) (int, error) {
	var count int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM depreciation_schedule WHERE asset_id=$1`, assetID).Scan(&count)
	return count, err
}

// InsertScheduleRows implements TxRepository.
func (r *PgTxRepository) InsertScheduleRows(ctx context.Context, rows []ScheduleRow) error {
	for _, row := range rows {
		_, err := r.tx.Exec(ctx, `INSERT INTO depreciation_schedule
(asset_id, period_start, period_end, amount, accumulated, net_book_value, posted, source_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, false, $7, NOW())`,
			row.AssetID, row.PeriodStart, row.PeriodEnd, row.Amount, row.Accumulated, row.NetBookValue, row.SourceID)
		if err != nil {
			return err
		}
	}
	return nil
}

const scheduleColumns = `id, asset_id, period_start, period_end, amount, accumulated, net_book_value, posted, voucher_id, source_id, created_at`

func scanScheduleRow(row pgx.Row) (ScheduleRow, error) {
	var s ScheduleRow
	err := row.Scan(&s.ID, &s.AssetID, &s.PeriodStart, &s.PeriodEnd, &s.Amount, &s.Accumulated,
		&s.NetBookValue, &s.Posted, &s.VoucherID, &s.SourceID, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ScheduleRow{}, ErrScheduleRowNotFound
		}
		return ScheduleRow{}, err
	}
	return s, nil
}

// FindScheduleRow implements TxRepository.
func (r *PgTxRepository) FindScheduleRow(ctx context.Context, assetID int64, start, end time.Time) (ScheduleRow, error) {
	return scanScheduleRow(r.tx.QueryRow(ctx, `SELECT `+scheduleColumns+`
FROM depreciation_schedule WHERE asset_id=$1 AND period_start=$2 AND period_end=$3`, assetID, start, end))
}

// MarkRowPosted implements TxRepository.
func (r *PgTxRepository) MarkRowPosted(ctx context.Context, rowID, voucherID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE depreciation_schedule SET posted=true, voucher_id=$1 WHERE id=$2`, voucherID, rowID)
	return err
}

// InsertAsset persists a new asset.
func (r *Repository) InsertAsset(ctx context.Context, asset FixedAsset) (FixedAsset, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO fixed_assets
(code, name, category_id, branch_id, acquired_at, cost, useful_life_months, residual_value, accumulated_depreciation, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW()) RETURNING id, created_at, updated_at`,
		asset.Code, asset.Name, asset.CategoryID, asset.BranchID, asset.AcquiredAt, asset.Cost,
		asset.UsefulLifeMonths, asset.ResidualValue, asset.AccumulatedDepreciation, string(asset.Status)).
		Scan(&asset.ID, &asset.CreatedAt, &asset.UpdatedAt)
	return asset, err
}

// GetAsset returns an asset by id.
func (r *Repository) GetAsset(ctx context.Context, id int64) (FixedAsset, error) {
	return scanAsset(r.pool.QueryRow(ctx, `SELECT `+assetColumns+` FROM fixed_assets WHERE id=$1`, id))
}

// ListAssets returns assets ordered by code.
func (r *Repository) ListAssets(ctx context.Context) ([]FixedAsset, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+assetColumns+` FROM fixed_assets ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []FixedAsset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, asset)
	}
	return out, rows.Err()
}

// ListScheduleRows returns the full schedule of an asset in period order.
func (r *Repository) ListScheduleRows(ctx context.Context, assetID int64) ([]ScheduleRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+scheduleColumns+`
FROM depreciation_schedule WHERE asset_id=$1 ORDER BY period_start`, assetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ScheduleRow
	for rows.Next() {
		row, err := scanScheduleRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// ListDueRows returns unposted rows of active assets with a period end on or
// before asOf.
func (r *Repository) ListDueRows(ctx context.Context, asOf time.Time) ([]ScheduleRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT s.id, s.asset_id, s.period_start, s.period_end, s.amount, s.accumulated, s.net_book_value, s.posted, s.voucher_id, s.source_id, s.created_at
FROM depreciation_schedule s
JOIN fixed_assets a ON a.id = s.asset_id
WHERE NOT s.posted AND s.period_end <= $1 AND a.status = 'ACTIVE'
ORDER BY s.asset_id, s.period_start`, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ScheduleRow
	for rows.Next() {
		row, err := scanScheduleRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
