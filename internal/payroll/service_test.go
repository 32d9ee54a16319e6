package payroll

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/fiscal"
	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/ledger/ledgertest"
	"github.com/meridian-erp/meridian-erp/internal/masterdata"
	"github.com/meridian-erp/meridian-erp/internal/sequence"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type staticEmployees struct {
	employees map[int64]masterdata.Employee
}

func (s *staticEmployees) GetEmployee(_ context.Context, id int64) (masterdata.Employee, error) {
	emp, ok := s.employees[id]
	if !ok {
		return masterdata.Employee{}, masterdata.ErrEmployeeNotFound
	}
	return emp, nil
}

func (s *staticEmployees) ListActiveEmployees(_ context.Context, branchID *int64) ([]masterdata.Employee, error) {
	var out []masterdata.Employee
	for _, emp := range s.employees {
		if !emp.IsActive {
			continue
		}
		if branchID != nil && (emp.BranchID == nil || *emp.BranchID != *branchID) {
			continue
		}
		out = append(out, emp)
	}
	return out, nil
}

type memoryRepo struct {
	runs   map[int64]Run
	ledger *ledgertest.Memory
	nextID int64
}

func (m *memoryRepo) GetRunForUpdate(_ context.Context, id int64) (Run, error) {
	run, ok := m.runs[id]
	if !ok {
		return Run{}, ErrRunNotFound
	}
	return run, nil
}

func (m *memoryRepo) InsertRun(_ context.Context, run Run) (int64, error) {
	m.nextID++
	run.ID = m.nextID
	m.runs[run.ID] = run
	return run.ID, nil
}

func (m *memoryRepo) InsertLines(_ context.Context, runID int64, lines []Line) error {
	run := m.runs[runID]
	run.Lines = lines
	m.runs[runID] = run
	return nil
}

func (m *memoryRepo) SetPosted(_ context.Context, id, voucherID int64, postedAt time.Time) error {
	run := m.runs[id]
	run.Status = StatusPosted
	run.VoucherID = &voucherID
	run.PostedAt = &postedAt
	m.runs[id] = run
	return nil
}

func (m *memoryRepo) SetStatus(_ context.Context, id int64, status Status) error {
	run := m.runs[id]
	run.Status = status
	m.runs[id] = run
	return nil
}

func (m *memoryRepo) Sequences() sequence.TxRepository { return m.ledger.Sequences() }
func (m *memoryRepo) Ledger() ledger.TxRepository      { return m.ledger }

// Accounts: 600 salary expense, 240 deductions payable, 101 bank.
func newFixture(t *testing.T) (*Service, *memoryRepo) {
	t.Helper()
	ml := ledgertest.New()
	ml.AddAccount(600, "6000", ledger.AccountTypeExpense)
	ml.AddAccount(240, "2400", ledger.AccountTypeLiability)
	ml.AddAccount(101, "1010", ledger.AccountTypeAsset)
	deductions := int64(240)
	ml.AddRule(ledger.PostingRule{
		ID: 1, DocumentKind: ledger.DocumentKindPayrollRun,
		DebitAccountID: 600, CreditAccountID: 101,
		TaxAccountID: &deductions,
	})
	ml.AddSeries(ledger.EntityTypeVoucher, "JV-")
	ml.AddSeries(EntityType, "PR-")
	ml.OpenYear(2026)

	refs := &staticEmployees{employees: map[int64]masterdata.Employee{
		1: {ID: 1, Code: "E001", BasicSalary: dec("3000"), IsActive: true},
		2: {ID: 2, Code: "E002", BasicSalary: dec("2000"), IsActive: true},
		3: {ID: 3, Code: "E003", BasicSalary: dec("1000"), IsActive: false},
	}}

	poster := ledger.NewPoster(sequence.NewSequencer(), fiscal.NewCalendar())
	svc := NewService(nil, nil, refs, poster, nil)
	svc.WithNow(func() time.Time { return time.Date(2026, 3, 31, 18, 0, 0, 0, time.UTC) })

	return svc, &memoryRepo{runs: map[int64]Run{}, ledger: ml}
}

func seedRun(t *testing.T, svc *Service, repo *memoryRepo, inputs []LineInput) Run {
	t.Helper()
	in := CreateInput{
		PeriodStart: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		Date:        time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		Lines:       inputs,
	}
	lines, err := svc.buildLines(context.Background(), in)
	require.NoError(t, err)

	run := Run{
		Ref:         uuid.New(),
		Number:      "PR-000001",
		PeriodStart: in.PeriodStart,
		PeriodEnd:   in.PeriodEnd,
		Date:        in.Date,
		Status:      StatusDraft,
		Lines:       lines,
	}
	run.GrossTotal, run.DeductionsTotal, run.NetTotal = totals(lines)
	id, err := repo.InsertRun(context.Background(), run)
	require.NoError(t, err)
	run.ID = id
	return run
}

func TestBuildLinesComputesNetPerEmployee(t *testing.T) {
	svc, _ := newFixture(t)

	lines, err := svc.buildLines(context.Background(), CreateInput{Lines: []LineInput{
		{EmployeeID: 1, Allowances: dec("500"), Deductions: dec("350")},
		{EmployeeID: 2},
	}})
	require.NoError(t, err)
	require.Len(t, lines, 2)

	require.True(t, lines[0].Gross.Equal(dec("3500")))
	require.True(t, lines[0].Deductions.Equal(dec("350")))
	require.True(t, lines[0].Net.Equal(dec("3150")))
	require.True(t, lines[1].Gross.Equal(dec("2000")))
	require.True(t, lines[1].Net.Equal(dec("2000")))
}

func TestBuildLinesCoversActiveEmployeesByDefault(t *testing.T) {
	svc, _ := newFixture(t)

	lines, err := svc.buildLines(context.Background(), CreateInput{})
	require.NoError(t, err)
	require.Len(t, lines, 2, "inactive employees stay out")

	gross, _, net := totals(lines)
	require.True(t, gross.Equal(dec("5000")))
	require.True(t, net.Equal(dec("5000")))
}

func TestBuildLinesRejectsNegativeNet(t *testing.T) {
	svc, _ := newFixture(t)
	_, err := svc.buildLines(context.Background(), CreateInput{Lines: []LineInput{
		{EmployeeID: 2, Deductions: dec("2500")},
	}})
	require.ErrorIs(t, err, ErrNegativeNet)
}

func TestBuildLinesRejectsUnknownEmployee(t *testing.T) {
	svc, _ := newFixture(t)
	_, err := svc.buildLines(context.Background(), CreateInput{Lines: []LineInput{{EmployeeID: 99}}})
	require.ErrorIs(t, err, masterdata.ErrEmployeeNotFound)
}

func TestPostSplitsGrossIntoDeductionsAndNet(t *testing.T) {
	svc, repo := newFixture(t)
	run := seedRun(t, svc, repo, []LineInput{
		{EmployeeID: 1, Deductions: dec("400")},
		{EmployeeID: 2, Deductions: dec("100")},
	})

	posted, err := svc.postTx(context.Background(), repo, run.ID, 7)
	require.NoError(t, err)
	require.Equal(t, StatusPosted, posted.Status)
	require.NotNil(t, posted.VoucherID)

	voucher, ok := repo.ledger.VoucherBySource(ledger.DocumentKindPayrollRun, run.Ref)
	require.True(t, ok)
	require.Len(t, voucher.Lines, 3)

	// debit expense 5000, credit deductions 500, credit bank 4500
	require.Equal(t, int64(600), voucher.Lines[0].AccountID)
	require.True(t, voucher.Lines[0].Debit.Equal(dec("5000")))
	require.Equal(t, int64(240), voucher.Lines[1].AccountID)
	require.True(t, voucher.Lines[1].Credit.Equal(dec("500")))
	require.Equal(t, int64(101), voucher.Lines[2].AccountID)
	require.True(t, voucher.Lines[2].Credit.Equal(dec("4500")))
}

func TestPostSkipsDeductionLineWhenNothingWithheld(t *testing.T) {
	svc, repo := newFixture(t)
	run := seedRun(t, svc, repo, []LineInput{{EmployeeID: 2}})

	_, err := svc.postTx(context.Background(), repo, run.ID, 7)
	require.NoError(t, err)

	voucher, ok := repo.ledger.VoucherBySource(ledger.DocumentKindPayrollRun, run.Ref)
	require.True(t, ok)
	require.Len(t, voucher.Lines, 2)
}

func TestPostIsIdempotent(t *testing.T) {
	svc, repo := newFixture(t)
	run := seedRun(t, svc, repo, []LineInput{{EmployeeID: 1}})

	first, err := svc.postTx(context.Background(), repo, run.ID, 7)
	require.NoError(t, err)
	second, err := svc.postTx(context.Background(), repo, run.ID, 7)
	require.NoError(t, err)

	require.Equal(t, first.VoucherID, second.VoucherID)
	require.Len(t, repo.ledger.Vouchers, 1)
}

func TestPostRejectsClosedPeriod(t *testing.T) {
	svc, repo := newFixture(t)
	run := seedRun(t, svc, repo, []LineInput{{EmployeeID: 1}})
	repo.ledger.ClosePeriodAt(run.Date)

	_, err := svc.postTx(context.Background(), repo, run.ID, 7)
	require.ErrorIs(t, err, fiscal.ErrPeriodClosed)
	require.Empty(t, repo.ledger.Vouchers)
}

func TestBuildVoucherLinesRequiresDeductionAccount(t *testing.T) {
	run := Run{
		GrossTotal:      dec("5000"),
		DeductionsTotal: dec("500"),
		NetTotal:        dec("4500"),
	}
	rule := ledger.PostingRule{DebitAccountID: 600, CreditAccountID: 101}

	_, err := buildVoucherLines(run, rule)
	require.ErrorIs(t, err, ErrNoDeductionAccount)
}
