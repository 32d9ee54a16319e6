package assets

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/fiscal"
	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/ledger/ledgertest"
	"github.com/meridian-erp/meridian-erp/internal/masterdata"
	"github.com/meridian-erp/meridian-erp/internal/sequence"
)

type memoryAssets struct {
	assets map[int64]FixedAsset
	rows   []ScheduleRow
	ledger *ledgertest.Memory
}

func (m *memoryAssets) GetAssetForUpdate(_ context.Context, id int64) (FixedAsset, error) {
	asset, ok := m.assets[id]
	if !ok {
		return FixedAsset{}, ErrAssetNotFound
	}
	return asset, nil
}

func (m *memoryAssets) UpdateAsset(_ context.Context, asset FixedAsset) error {
	m.assets[asset.ID] = asset
	return nil
}

func (m *memoryAssets) CountScheduleRows(_ context.Context, assetID int64) (int, error) {
	count := 0
	for _, row := range m.rows {
		if row.AssetID == assetID {
			count++
		}
	}
	return count, nil
}

func (m *memoryAssets) InsertScheduleRows(_ context.Context, rows []ScheduleRow) error {
	for i := range rows {
		rows[i].ID = int64(len(m.rows) + 1)
		m.rows = append(m.rows, rows[i])
	}
	return nil
}

func (m *memoryAssets) FindScheduleRow(_ context.Context, assetID int64, start, end time.Time) (ScheduleRow, error) {
	for _, row := range m.rows {
		if row.AssetID == assetID && row.PeriodStart.Equal(start) && row.PeriodEnd.Equal(end) {
			return row, nil
		}
	}
	return ScheduleRow{}, ErrScheduleRowNotFound
}

func (m *memoryAssets) MarkRowPosted(_ context.Context, rowID, voucherID int64) error {
	for i := range m.rows {
		if m.rows[i].ID == rowID {
			m.rows[i].Posted = true
			m.rows[i].VoucherID = &voucherID
		}
	}
	return nil
}

func (m *memoryAssets) Ledger() ledger.TxRepository { return m.ledger }

type staticCategories map[int64]masterdata.AssetCategory

func (s staticCategories) GetAssetCategory(_ context.Context, id int64) (masterdata.AssetCategory, error) {
	category, ok := s[id]
	if !ok {
		return masterdata.AssetCategory{}, masterdata.ErrCategoryNotFound
	}
	return category, nil
}

func newDepreciationFixture(t *testing.T) (*Service, *memoryAssets) {
	t.Helper()
	ml := ledgertest.New()
	ml.AddAccount(610, "6100", ledger.AccountTypeExpense)
	ml.AddAccount(172, "1720", ledger.AccountTypeAsset)
	ml.AddRule(ledger.PostingRule{ID: 1, DocumentKind: ledger.DocumentKindDepreciation, DebitAccountID: 610, CreditAccountID: 172})
	ml.AddSeries(ledger.EntityTypeVoucher, "JV-")
	ml.OpenYear(2026)

	repo := &memoryAssets{assets: map[int64]FixedAsset{}, ledger: ml}
	asset := testAsset("12000")
	repo.assets[asset.ID] = asset
	require.NoError(t, repo.InsertScheduleRows(context.Background(), buildSchedule(asset, 12, decimal.Zero)))

	poster := ledger.NewPoster(sequence.NewSequencer(), fiscal.NewCalendar())
	poster.WithNow(func() time.Time { return time.Date(2026, 6, 30, 12, 0, 0, 0, time.UTC) })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	categories := staticCategories{1: {ID: 1, DefaultLifeMonths: 12}}
	svc := NewService(nil, nil, categories, poster, logger)
	return svc, repo
}

func TestPostPeriodPostsVoucher(t *testing.T) {
	svc, repo := newDepreciationFixture(t)
	row := repo.rows[0]

	err := svc.postPeriodTx(context.Background(), repo, 1, row.PeriodStart, row.PeriodEnd, 9)
	require.NoError(t, err)

	require.True(t, repo.rows[0].Posted)
	require.NotNil(t, repo.rows[0].VoucherID)

	voucher := repo.ledger.Vouchers[*repo.rows[0].VoucherID]
	require.Len(t, voucher.Lines, 2)
	require.True(t, voucher.Lines[0].Debit.Equal(dec("1000")))
	require.Equal(t, int64(610), voucher.Lines[0].AccountID)
	require.True(t, voucher.Lines[1].Credit.Equal(dec("1000")))
	require.Equal(t, int64(172), voucher.Lines[1].AccountID)

	require.True(t, repo.assets[1].AccumulatedDepreciation.Equal(dec("1000")))
	require.Equal(t, StatusActive, repo.assets[1].Status)
}

func TestPostPeriodIsIdempotent(t *testing.T) {
	svc, repo := newDepreciationFixture(t)
	row := repo.rows[0]

	require.NoError(t, svc.postPeriodTx(context.Background(), repo, 1, row.PeriodStart, row.PeriodEnd, 9))
	require.NoError(t, svc.postPeriodTx(context.Background(), repo, 1, row.PeriodStart, row.PeriodEnd, 9))

	require.Len(t, repo.ledger.Vouchers, 1)
	require.True(t, repo.assets[1].AccumulatedDepreciation.Equal(dec("1000")))
}

func TestPostPeriodRejectsDisposedAsset(t *testing.T) {
	svc, repo := newDepreciationFixture(t)
	asset := repo.assets[1]
	asset.Status = StatusDisposed
	repo.assets[1] = asset

	row := repo.rows[0]
	err := svc.postPeriodTx(context.Background(), repo, 1, row.PeriodStart, row.PeriodEnd, 9)
	require.ErrorIs(t, err, ErrAssetDisposed)
	require.Empty(t, repo.ledger.Vouchers)
}

func TestPostPeriodFlipsToFullyDepreciated(t *testing.T) {
	svc, repo := newDepreciationFixture(t)

	for _, row := range append([]ScheduleRow(nil), repo.rows...) {
		require.NoError(t, svc.postPeriodTx(context.Background(), repo, 1, row.PeriodStart, row.PeriodEnd, 9))
	}

	asset := repo.assets[1]
	require.True(t, asset.AccumulatedDepreciation.Equal(dec("12000")))
	require.Equal(t, StatusFullyDepreciated, asset.Status)
	require.Len(t, repo.ledger.Vouchers, 12)
}

func TestPostPeriodUnknownWindow(t *testing.T) {
	svc, repo := newDepreciationFixture(t)

	err := svc.postPeriodTx(context.Background(), repo, 1,
		time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2030, 1, 31, 0, 0, 0, 0, time.UTC), 9)
	require.ErrorIs(t, err, ErrScheduleRowNotFound)
}
