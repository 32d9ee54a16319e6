// Package ledgertest provides an in-memory ledger.TxRepository for
// orchestrator tests, bundling the sequence and fiscal views the poster
// expects on a shared transaction.
package ledgertest

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/fiscal"
	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/sequence"
)

// Memory implements ledger.TxRepository in memory.
type Memory struct {
	Accounts   map[int64]ledger.Account
	Rules      []ledger.PostingRule
	Vouchers   map[int64]ledger.Voucher
	Series     []sequence.Series
	Years      []fiscal.Year
	PeriodList []fiscal.Period
	nextID     int64
}

// New returns an empty Memory.
func New() *Memory {
	return &Memory{
		Accounts: map[int64]ledger.Account{},
		Vouchers: map[int64]ledger.Voucher{},
	}
}

// AddAccount registers a postable active account.
func (m *Memory) AddAccount(id int64, code string, typ ledger.AccountType) {
	m.Accounts[id] = ledger.Account{ID: id, Code: code, Name: code, Type: typ, IsPostable: true, IsActive: true}
}

// AddRule registers an active posting rule.
func (m *Memory) AddRule(rule ledger.PostingRule) {
	rule.IsActive = true
	m.Rules = append(m.Rules, rule)
}

// AddSeries registers an active global number series.
func (m *Memory) AddSeries(entityType, prefix string) {
	m.Series = append(m.Series, sequence.Series{
		ID: int64(len(m.Series) + 1), EntityType: entityType, Prefix: prefix, PadWidth: 6, IsActive: true,
	})
}

// OpenYear registers an open calendar year with monthly open periods.
func (m *Memory) OpenYear(year int) {
	start := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	yearID := int64(len(m.Years) + 1)
	m.Years = append(m.Years, fiscal.Year{
		ID: yearID, Code: start.Format("FY2006"),
		StartDate: start, EndDate: start.AddDate(1, 0, -1), Status: fiscal.StatusOpen,
	})
	for i := 0; i < 12; i++ {
		ps := start.AddDate(0, i, 0)
		m.PeriodList = append(m.PeriodList, fiscal.Period{
			ID: int64(len(m.PeriodList) + 1), YearID: yearID, Code: ps.Format("2006-01"),
			StartDate: ps, EndDate: ps.AddDate(0, 1, -1), Status: fiscal.StatusOpen,
		})
	}
}

// ClosePeriodAt marks the period containing date closed.
func (m *Memory) ClosePeriodAt(date time.Time) {
	for i := range m.PeriodList {
		if m.PeriodList[i].Contains(date) {
			m.PeriodList[i].Status = fiscal.StatusClosed
		}
	}
}

func (m *Memory) GetAccounts(_ context.Context, ids []int64) (map[int64]ledger.Account, error) {
	out := map[int64]ledger.Account{}
	for _, id := range ids {
		if a, ok := m.Accounts[id]; ok {
			out[id] = a
		}
	}
	return out, nil
}

func (m *Memory) GetActiveRules(_ context.Context, kind ledger.DocumentKind) ([]ledger.PostingRule, error) {
	var out []ledger.PostingRule
	for _, r := range m.Rules {
		if r.IsActive && r.DocumentKind == kind {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *Memory) FindVoucherIDBySource(_ context.Context, kind ledger.DocumentKind, sourceID uuid.UUID) (int64, error) {
	for id, v := range m.Vouchers {
		for _, line := range v.Lines {
			if line.SourceKind == kind && line.SourceID == sourceID {
				return id, nil
			}
		}
	}
	return 0, ledger.ErrVoucherNotFound
}

func (m *Memory) InsertVoucher(_ context.Context, v ledger.Voucher) (int64, error) {
	m.nextID++
	v.ID = m.nextID
	m.Vouchers[v.ID] = v
	return v.ID, nil
}

func (m *Memory) InsertVoucherLines(_ context.Context, voucherID int64, lines []ledger.VoucherLine) error {
	v := m.Vouchers[voucherID]
	v.Lines = append(v.Lines, lines...)
	m.Vouchers[voucherID] = v
	return nil
}

func (m *Memory) GetVoucherWithLines(_ context.Context, id int64) (ledger.Voucher, error) {
	v, ok := m.Vouchers[id]
	if !ok {
		return ledger.Voucher{}, ledger.ErrVoucherNotFound
	}
	return v, nil
}

func (m *Memory) Sequences() sequence.TxRepository { return (*memorySequences)(m) }
func (m *Memory) Periods() fiscal.TxRepository     { return (*memoryCalendar)(m) }

// VoucherBySource returns the voucher posted for a source, for assertions.
func (m *Memory) VoucherBySource(kind ledger.DocumentKind, sourceID uuid.UUID) (ledger.Voucher, bool) {
	id, err := m.FindVoucherIDBySource(context.Background(), kind, sourceID)
	if err != nil {
		return ledger.Voucher{}, false
	}
	return m.Vouchers[id], true
}

type memorySequences Memory

func (m *memorySequences) ListActiveForUpdate(_ context.Context, entityType string, branchID *int64) ([]sequence.Series, error) {
	var out []sequence.Series
	for _, s := range m.Series {
		if !s.IsActive || s.EntityType != entityType {
			continue
		}
		if branchID == nil && s.BranchID == nil {
			out = append(out, s)
		} else if branchID != nil && s.BranchID != nil && *s.BranchID == *branchID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memorySequences) SetCounter(_ context.Context, seriesID, counter int64) error {
	for i := range m.Series {
		if m.Series[i].ID == seriesID {
			m.Series[i].Counter = counter
		}
	}
	return nil
}

type memoryCalendar Memory

func (m *memoryCalendar) FindYearByDate(_ context.Context, date time.Time) (fiscal.Year, error) {
	var best *fiscal.Year
	for i := range m.Years {
		y := m.Years[i]
		if date.Before(y.StartDate) || date.After(y.EndDate) {
			continue
		}
		if best == nil || y.StartDate.After(best.StartDate) {
			best = &m.Years[i]
		}
	}
	if best == nil {
		return fiscal.Year{}, fiscal.ErrNoFiscalYear
	}
	return *best, nil
}

func (m *memoryCalendar) FindPeriodByDate(_ context.Context, yearID int64, date time.Time) (fiscal.Period, error) {
	for _, p := range m.PeriodList {
		if p.YearID == yearID && p.Contains(date) {
			return p, nil
		}
	}
	return fiscal.Period{}, fiscal.ErrNoFiscalPeriod
}

func (m *memoryCalendar) LockPeriod(_ context.Context, periodID int64) (fiscal.Period, error) {
	for _, p := range m.PeriodList {
		if p.ID == periodID {
			return p, nil
		}
	}
	return fiscal.Period{}, fiscal.ErrPeriodNotFound
}
