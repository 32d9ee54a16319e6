package assets

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/masterdata"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
)

// CategorySource resolves depreciation defaults.
type CategorySource interface {
	GetAssetCategory(ctx context.Context, id int64) (masterdata.AssetCategory, error)
}

// TxRepository exposes the transactional asset operations.
type TxRepository interface {
	GetAssetForUpdate(ctx context.Context, id int64) (FixedAsset, error)
	UpdateAsset(ctx context.Context, asset FixedAsset) error
	CountScheduleRows(ctx context.Context, assetID int64) (int, error)
	InsertScheduleRows(ctx context.Context, rows []ScheduleRow) error
	// FindScheduleRow matches a row by its exact period window.
	FindScheduleRow(ctx context.Context, assetID int64, start, end time.Time) (ScheduleRow, error)
	MarkRowPosted(ctx context.Context, rowID, voucherID int64) error
	Ledger() ledger.TxRepository
}

// Service manages fixed assets and their depreciation.
type Service struct {
	pool       *pgxpool.Pool
	repo       *Repository
	categories CategorySource
	poster     *ledger.Poster
	resolver   *ledger.Resolver
	logger     *slog.Logger
	now        func() time.Time
}

// NewService constructs the asset service.
func NewService(pool *pgxpool.Pool, repo *Repository, categories CategorySource, poster *ledger.Poster, logger *slog.Logger) *Service {
	return &Service{
		pool:       pool,
		repo:       repo,
		categories: categories,
		poster:     poster,
		resolver:   ledger.NewResolver(),
		logger:     logger,
		now:        time.Now,
	}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateAsset registers a new asset in Active status.
func (s *Service) CreateAsset(ctx context.Context, asset FixedAsset) (FixedAsset, error) {
	if _, err := s.categories.GetAssetCategory(ctx, asset.CategoryID); err != nil {
		return FixedAsset{}, err
	}
	asset.Status = StatusActive
	asset.AccumulatedDepreciation = decimal.Zero
	return s.repo.InsertAsset(ctx, asset)
}

// GetAsset returns an asset with its schedule.
func (s *Service) GetAsset(ctx context.Context, id int64) (FixedAsset, []ScheduleRow, error) {
	asset, err := s.repo.GetAsset(ctx, id)
	if err != nil {
		return FixedAsset{}, nil, err
	}
	rows, err := s.repo.ListScheduleRows(ctx, id)
	if err != nil {
		return FixedAsset{}, nil, err
	}
	return asset, rows, nil
}

// ListAssets returns all assets ordered by code.
func (s *Service) ListAssets(ctx context.Context) ([]FixedAsset, error) {
	return s.repo.ListAssets(ctx)
}

// GenerateSchedule builds the straight-line schedule for an asset. Once rows
// exist regeneration is rejected, posted history must not silently change.
func (s *Service) GenerateSchedule(ctx context.Context, assetID int64) ([]ScheduleRow, error) {
	var rows []ScheduleRow
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		repo := NewPgTxRepository(tx)
		asset, err := repo.GetAssetForUpdate(ctx, assetID)
		if err != nil {
			return err
		}
		count, err := repo.CountScheduleRows(ctx, assetID)
		if err != nil {
			return err
		}
		if count > 0 {
			return ErrScheduleExists
		}

		category, err := s.categories.GetAssetCategory(ctx, asset.CategoryID)
		if err != nil {
			return err
		}
		life, err := resolveLife(asset, category)
		if err != nil {
			return err
		}
		residual, err := resolveResidual(asset, category)
		if err != nil {
			return err
		}

		rows = buildSchedule(asset, life, residual)
		return repo.InsertScheduleRows(ctx, rows)
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// PostPeriod posts one schedule row's depreciation voucher. Posting an
// already posted row is a no-op.
func (s *Service) PostPeriod(ctx context.Context, assetID int64, start, end time.Time, actorID int64) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return s.postPeriodTx(ctx, NewPgTxRepository(tx), assetID, start, end, actorID)
	})
}

func (s *Service) postPeriodTx(ctx context.Context, repo TxRepository, assetID int64, start, end time.Time, actorID int64) error {
	asset, err := repo.GetAssetForUpdate(ctx, assetID)
	if err != nil {
		return err
	}
	if asset.Status == StatusDisposed {
		return ErrAssetDisposed
	}

	row, err := repo.FindScheduleRow(ctx, assetID, start, end)
	if err != nil {
		return err
	}
	if row.Posted {
		return nil
	}

	rule, err := s.resolver.Resolve(ctx, repo.Ledger(), ledger.DocumentKindDepreciation)
	if err != nil {
		return err
	}

	voucher, err := s.poster.Post(ctx, repo.Ledger(), ledger.PostingInput{
		Date:       row.PeriodEnd,
		BranchID:   asset.BranchID,
		Memo:       "Depreciation " + asset.Code + " " + row.PeriodStart.Format("2006-01"),
		SourceKind: ledger.DocumentKindDepreciation,
		SourceID:   row.SourceID,
		PostedBy:   actorID,
		Lines: []ledger.LineInput{
			{AccountID: rule.DebitAccountID, Debit: row.Amount},
			{AccountID: rule.CreditAccountID, Credit: row.Amount},
		},
	})
	if err != nil {
		return err
	}

	if err := repo.MarkRowPosted(ctx, row.ID, voucher.ID); err != nil {
		return err
	}

	asset.AccumulatedDepreciation = asset.AccumulatedDepreciation.Add(row.Amount)
	category, err := s.categories.GetAssetCategory(ctx, asset.CategoryID)
	if err != nil {
		return err
	}
	residual, err := resolveResidual(asset, category)
	if err != nil {
		return err
	}
	nbv := asset.Cost.Sub(asset.AccumulatedDepreciation)
	if nbv.Sub(residual).Abs().LessThanOrEqual(fullyDepreciatedTolerance) {
		asset.Status = StatusFullyDepreciated
	}
	return repo.UpdateAsset(ctx, asset)
}

// Dispose marks the asset disposed. Unposted schedule rows stay in place but
// can no longer post.
func (s *Service) Dispose(ctx context.Context, assetID int64) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		repo := NewPgTxRepository(tx)
		asset, err := repo.GetAssetForUpdate(ctx, assetID)
		if err != nil {
			return err
		}
		if asset.Status == StatusDisposed {
			return ErrAlreadyDisposed
		}
		asset.Status = StatusDisposed
		disposedAt := s.now().UTC()
		asset.DisposedAt = &disposedAt
		return repo.UpdateAsset(ctx, asset)
	})
}

// RunResult summarizes a depreciation run.
type RunResult struct {
	Posted  int
	Skipped int
	Failed  int
}

// RunDue posts every unposted schedule row due as of the given date. Each
// row rides its own transaction so one bad asset does not block the run.
// Assets run concurrently, the rows of one asset stay in period order so
// accumulated depreciation grows monotonically.
func (s *Service) RunDue(ctx context.Context, asOf time.Time, actorID int64) (RunResult, error) {
	due, err := s.repo.ListDueRows(ctx, asOf)
	if err != nil {
		return RunResult{}, err
	}

	byAsset := make(map[int64][]ScheduleRow)
	order := make([]int64, 0, len(due))
	for _, row := range due {
		if _, seen := byAsset[row.AssetID]; !seen {
			order = append(order, row.AssetID)
		}
		byAsset[row.AssetID] = append(byAsset[row.AssetID], row)
	}

	var mu sync.Mutex
	var result RunResult
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, assetID := range order {
		rows := byAsset[assetID]
		g.Go(func() error {
			for _, row := range rows {
				err := s.PostPeriod(ctx, row.AssetID, row.PeriodStart, row.PeriodEnd, actorID)
				mu.Lock()
				switch {
				case err == nil:
					result.Posted++
				case errors.Is(err, ErrAssetDisposed):
					result.Skipped++
				default:
					result.Failed++
					s.logger.Error("depreciation posting failed",
						slog.Int64("asset_id", row.AssetID),
						slog.String("period", row.PeriodStart.Format("2006-01")),
						slog.Any("error", err))
				}
				failedAsset := err != nil && !errors.Is(err, ErrAssetDisposed)
				mu.Unlock()
				if failedAsset {
					// Later periods of this asset would post on stale
					// accumulated figures, stop its lane here.
					return nil
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}
	return result, nil
}
