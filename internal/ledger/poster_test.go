package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/fiscal"
	"github.com/meridian-erp/meridian-erp/internal/sequence"
)

type memorySequences struct {
	series []sequence.Series
}

func (m *memorySequences) ListActiveForUpdate(_ context.Context, entityType string, branchID *int64) ([]sequence.Series, error) {
	var out []sequence.Series
	for _, s := range m.series {
		if !s.IsActive || s.EntityType != entityType {
			continue
		}
		if branchID == nil {
			if s.BranchID == nil {
				out = append(out, s)
			}
			continue
		}
		if s.BranchID != nil && *s.BranchID == *branchID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memorySequences) SetCounter(_ context.Context, seriesID, counter int64) error {
	for i := range m.series {
		if m.series[i].ID == seriesID {
			m.series[i].Counter = counter
		}
	}
	return nil
}

type memoryPeriods struct {
	years   []fiscal.Year
	periods []fiscal.Period
}

func (m *memoryPeriods) FindYearByDate(_ context.Context, date time.Time) (fiscal.Year, error) {
	var best *fiscal.Year
	for i := range m.years {
		y := m.years[i]
		if date.Before(y.StartDate) || date.After(y.EndDate) {
			continue
		}
		if best == nil || y.StartDate.After(best.StartDate) {
			best = &m.years[i]
		}
	}
	if best == nil {
		return fiscal.Year{}, fiscal.ErrNoFiscalYear
	}
	return *best, nil
}

func (m *memoryPeriods) FindPeriodByDate(_ context.Context, yearID int64, date time.Time) (fiscal.Period, error) {
	for _, p := range m.periods {
		if p.YearID == yearID && p.Contains(date) {
			return p, nil
		}
	}
	return fiscal.Period{}, fiscal.ErrNoFiscalPeriod
}

func (m *memoryPeriods) LockPeriod(_ context.Context, periodID int64) (fiscal.Period, error) {
	for _, p := range m.periods {
		if p.ID == periodID {
			return p, nil
		}
	}
	return fiscal.Period{}, fiscal.ErrPeriodNotFound
}

type memoryTx struct {
	accounts  map[int64]Account
	rules     []PostingRule
	vouchers  map[int64]Voucher
	sequences *memorySequences
	periods   *memoryPeriods
	nextID    int64
}

func newMemoryTx() *memoryTx {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
	m := &memoryTx{
		accounts: map[int64]Account{
			100: {ID: 100, Code: "1100", Name: "Accounts Receivable", Type: AccountTypeAsset, IsPostable: true, IsActive: true},
			400: {ID: 400, Code: "4000", Name: "Sales Revenue", Type: AccountTypeRevenue, IsPostable: true, IsActive: true},
			900: {ID: 900, Code: "9000", Name: "Assets (header)", Type: AccountTypeAsset, IsPostable: false, IsActive: true},
		},
		vouchers: map[int64]Voucher{},
		sequences: &memorySequences{series: []sequence.Series{
			{ID: 1, EntityType: EntityTypeVoucher, Prefix: "JV-", PadWidth: 6, Counter: 0, IsActive: true},
		}},
		periods: &memoryPeriods{
			years: []fiscal.Year{{ID: 1, Code: "FY2026", StartDate: start, EndDate: end, Status: fiscal.StatusOpen}},
			periods: []fiscal.Period{
				{ID: 1, YearID: 1, Code: "2026-03", StartDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), EndDate: time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC), Status: fiscal.StatusOpen},
				{ID: 2, YearID: 1, Code: "2026-04", StartDate: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), EndDate: time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC), Status: fiscal.StatusClosed},
			},
		},
	}
	return m
}

func (m *memoryTx) GetAccounts(_ context.Context, ids []int64) (map[int64]Account, error) {
	out := map[int64]Account{}
	for _, id := range ids {
		if a, ok := m.accounts[id]; ok {
			out[id] = a
		}
	}
	return out, nil
}

func (m *memoryTx) GetActiveRules(_ context.Context, kind DocumentKind) ([]PostingRule, error) {
	var out []PostingRule
	for _, r := range m.rules {
		if r.IsActive && r.DocumentKind == kind {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memoryTx) FindVoucherIDBySource(_ context.Context, kind DocumentKind, sourceID uuid.UUID) (int64, error) {
	for id, v := range m.vouchers {
		for _, line := range v.Lines {
			if line.SourceKind == kind && line.SourceID == sourceID {
				return id, nil
			}
		}
	}
	return 0, ErrVoucherNotFound
}

func (m *memoryTx) InsertVoucher(_ context.Context, v Voucher) (int64, error) {
	m.nextID++
	v.ID = m.nextID
	m.vouchers[v.ID] = v
	return v.ID, nil
}

func (m *memoryTx) InsertVoucherLines(_ context.Context, voucherID int64, lines []VoucherLine) error {
	v := m.vouchers[voucherID]
	v.Lines = append(v.Lines, lines...)
	m.vouchers[voucherID] = v
	return nil
}

func (m *memoryTx) GetVoucherWithLines(_ context.Context, id int64) (Voucher, error) {
	v, ok := m.vouchers[id]
	if !ok {
		return Voucher{}, ErrVoucherNotFound
	}
	return v, nil
}

func (m *memoryTx) Sequences() sequence.TxRepository { return m.sequences }
func (m *memoryTx) Periods() fiscal.TxRepository     { return m.periods }

func newTestPoster() *Poster {
	p := NewPoster(sequence.NewSequencer(), fiscal.NewCalendar())
	p.WithNow(func() time.Time { return time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC) })
	return p
}

func balancedInput(amount string) PostingInput {
	amt := decimal.RequireFromString(amount)
	return PostingInput{
		Date:       time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		Memo:       "test posting",
		SourceKind: DocumentKindSalesInvoice,
		SourceID:   uuid.New(),
		PostedBy:   7,
		Lines: []LineInput{
			{AccountID: 100, Debit: amt},
			{AccountID: 400, Credit: amt},
		},
	}
}

func TestPosterPostBalanced(t *testing.T) {
	tx := newMemoryTx()
	poster := newTestPoster()

	voucher, err := poster.Post(context.Background(), tx, balancedInput("1250.50"))
	require.NoError(t, err)
	require.Equal(t, "JV-000001", voucher.Number)
	require.Equal(t, VoucherStatusPosted, voucher.Status)
	require.Equal(t, int64(1), voucher.PeriodID)
	require.Len(t, voucher.Lines, 2)
	require.Equal(t, 1, voucher.Lines[0].LineNo)
	require.Equal(t, 2, voucher.Lines[1].LineNo)

	debit := decimal.Zero
	credit := decimal.Zero
	for _, line := range voucher.Lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	require.True(t, debit.Equal(credit))
}

func TestPosterRejectsUnbalanced(t *testing.T) {
	tx := newMemoryTx()
	poster := newTestPoster()

	input := balancedInput("100")
	input.Lines[1].Credit = decimal.RequireFromString("99.99")
	_, err := poster.Post(context.Background(), tx, input)
	require.ErrorIs(t, err, ErrUnbalanced)
	require.Empty(t, tx.vouchers)
}

func TestPosterRejectsSingleLine(t *testing.T) {
	tx := newMemoryTx()
	poster := newTestPoster()

	input := balancedInput("100")
	input.Lines = input.Lines[:1]
	_, err := poster.Post(context.Background(), tx, input)
	require.ErrorIs(t, err, ErrTooFewLines)
}

func TestPosterRejectsMixedLine(t *testing.T) {
	tx := newMemoryTx()
	poster := newTestPoster()

	input := balancedInput("100")
	input.Lines[0].Credit = decimal.RequireFromString("1")
	_, err := poster.Post(context.Background(), tx, input)
	require.ErrorIs(t, err, ErrMixedLine)
}

func TestPosterRejectsNegativeAmount(t *testing.T) {
	tx := newMemoryTx()
	poster := newTestPoster()

	input := balancedInput("100")
	input.Lines[0].Debit = decimal.RequireFromString("-100")
	input.Lines[1].Credit = decimal.RequireFromString("-100")
	_, err := poster.Post(context.Background(), tx, input)
	require.ErrorIs(t, err, ErrNegativeAmount)
}

func TestPosterRejectsHeaderAccount(t *testing.T) {
	tx := newMemoryTx()
	poster := newTestPoster()

	input := balancedInput("100")
	input.Lines[0].AccountID = 900
	_, err := poster.Post(context.Background(), tx, input)
	require.ErrorIs(t, err, ErrAccountNotPostable)
}

func TestPosterRejectsUnknownAccount(t *testing.T) {
	tx := newMemoryTx()
	poster := newTestPoster()

	input := balancedInput("100")
	input.Lines[0].AccountID = 555
	_, err := poster.Post(context.Background(), tx, input)
	require.ErrorIs(t, err, ErrAccountNotFound)
}

func TestPosterRejectsClosedPeriod(t *testing.T) {
	tx := newMemoryTx()
	poster := newTestPoster()

	input := balancedInput("100")
	input.Date = time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)
	_, err := poster.Post(context.Background(), tx, input)
	require.ErrorIs(t, err, fiscal.ErrPeriodClosed)
	require.Empty(t, tx.vouchers)
}

func TestPosterRejectsDateOutsideCalendar(t *testing.T) {
	tx := newMemoryTx()
	poster := newTestPoster()

	input := balancedInput("100")
	input.Date = time.Date(2031, 1, 5, 0, 0, 0, 0, time.UTC)
	_, err := poster.Post(context.Background(), tx, input)
	require.ErrorIs(t, err, fiscal.ErrNoFiscalYear)
}

func TestPosterRejectsRepostedSource(t *testing.T) {
	tx := newMemoryTx()
	poster := newTestPoster()

	input := balancedInput("100")
	_, err := poster.Post(context.Background(), tx, input)
	require.NoError(t, err)

	_, err = poster.Post(context.Background(), tx, input)
	require.ErrorIs(t, err, ErrSourceAlreadyPosted)
	require.Len(t, tx.vouchers, 1)
}

func TestPosterNumbersAreSequential(t *testing.T) {
	tx := newMemoryTx()
	poster := newTestPoster()

	for i, want := range []string{"JV-000001", "JV-000002", "JV-000003"} {
		voucher, err := poster.Post(context.Background(), tx, balancedInput("100"))
		require.NoError(t, err, "posting %d", i+1)
		require.Equal(t, want, voucher.Number)
	}
}

func TestPosterReverseMirrorsLines(t *testing.T) {
	tx := newMemoryTx()
	poster := newTestPoster()

	original, err := poster.Post(context.Background(), tx, balancedInput("350.75"))
	require.NoError(t, err)

	reversal, err := poster.Reverse(context.Background(), tx, original.ID, original.Date, 7)
	require.NoError(t, err)
	require.NotEqual(t, original.ID, reversal.ID)
	require.Contains(t, reversal.Memo, original.Number)
	require.Len(t, reversal.Lines, len(original.Lines))
	for i, line := range reversal.Lines {
		require.True(t, line.Debit.Equal(original.Lines[i].Credit))
		require.True(t, line.Credit.Equal(original.Lines[i].Debit))
		require.Equal(t, DocumentKindReversal, line.SourceKind)
	}
}

func TestPosterReverseRequiresExistingVoucher(t *testing.T) {
	tx := newMemoryTx()
	poster := newTestPoster()

	_, err := poster.Reverse(context.Background(), tx, 42, time.Time{}, 7)
	require.ErrorIs(t, err, ErrVoucherNotFound)
}
