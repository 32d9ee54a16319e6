package fiscal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryCalendar struct {
	years   []Year
	periods []Period
}

func (m *memoryCalendar) FindYearByDate(ctx context.Context, date time.Time) (Year, error) {
	var best *Year
	for i := range m.years {
		y := &m.years[i]
		if date.Before(y.StartDate) || date.After(y.EndDate) {
			continue
		}
		if best == nil || y.StartDate.After(best.StartDate) {
			best = y
		}
	}
	if best == nil {
		return Year{}, ErrNoFiscalYear
	}
	return *best, nil
}

func (m *memoryCalendar) FindPeriodByDate(ctx context.Context, yearID int64, date time.Time) (Period, error) {
	for _, p := range m.periods {
		if p.YearID == yearID && p.Contains(date) {
			return p, nil
		}
	}
	return Period{}, ErrNoFiscalPeriod
}

func (m *memoryCalendar) LockPeriod(ctx context.Context, periodID int64) (Period, error) {
	for _, p := range m.periods {
		if p.ID == periodID {
			return p, nil
		}
	}
	return Period{}, ErrPeriodNotFound
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func fixtureCalendar() *memoryCalendar {
	return &memoryCalendar{
		years: []Year{
			{ID: 1, Code: "FY25", StartDate: date(2025, 1, 1), EndDate: date(2025, 12, 31), Status: StatusOpen},
			{ID: 2, Code: "FY24", StartDate: date(2024, 1, 1), EndDate: date(2024, 12, 31), Status: StatusClosed},
		},
		periods: []Period{
			{ID: 10, YearID: 1, Code: "FY25-03", StartDate: date(2025, 3, 1), EndDate: date(2025, 3, 31), Status: StatusOpen},
			{ID: 11, YearID: 1, Code: "FY25-04", StartDate: date(2025, 4, 1), EndDate: date(2025, 4, 30), Status: StatusClosed},
		},
	}
}

func TestResolveOpenPeriod(t *testing.T) {
	cal := NewCalendar()
	repo := fixtureCalendar()

	period, err := cal.ResolveOpenPeriod(context.Background(), repo, date(2025, 3, 15))
	require.NoError(t, err)
	require.Equal(t, int64(10), period.ID)
}

func TestResolveNoFiscalYear(t *testing.T) {
	cal := NewCalendar()
	repo := fixtureCalendar()

	_, err := cal.ResolveOpenPeriod(context.Background(), repo, date(2030, 1, 1))
	require.ErrorIs(t, err, ErrNoFiscalYear)
}

func TestResolveClosedYear(t *testing.T) {
	cal := NewCalendar()
	repo := fixtureCalendar()

	_, err := cal.ResolveOpenPeriod(context.Background(), repo, date(2024, 6, 1))
	require.ErrorIs(t, err, ErrPeriodClosed)
}

func TestResolveClosedPeriod(t *testing.T) {
	cal := NewCalendar()
	repo := fixtureCalendar()

	_, err := cal.ResolveOpenPeriod(context.Background(), repo, date(2025, 4, 10))
	require.ErrorIs(t, err, ErrPeriodClosed)
}

func TestResolveMissingPeriodInsideYear(t *testing.T) {
	cal := NewCalendar()
	repo := fixtureCalendar()

	_, err := cal.ResolveOpenPeriod(context.Background(), repo, date(2025, 7, 1))
	require.ErrorIs(t, err, ErrNoFiscalPeriod)
}

func TestResolveOverlapPrefersLatestStart(t *testing.T) {
	cal := NewCalendar()
	repo := fixtureCalendar()
	// Stub year overlapping FY25 but starting later; it must win.
	repo.years = append(repo.years, Year{ID: 3, Code: "FY25B", StartDate: date(2025, 3, 1), EndDate: date(2026, 2, 28), Status: StatusOpen})
	repo.periods = append(repo.periods, Period{ID: 20, YearID: 3, Code: "FY25B-01", StartDate: date(2025, 3, 1), EndDate: date(2025, 3, 31), Status: StatusOpen})

	period, err := cal.ResolveOpenPeriod(context.Background(), repo, date(2025, 3, 15))
	require.NoError(t, err)
	require.Equal(t, int64(20), period.ID)
}

func TestEnsureOpenLocked(t *testing.T) {
	cal := NewCalendar()
	repo := fixtureCalendar()

	period, err := cal.EnsureOpenLocked(context.Background(), repo, 10)
	require.NoError(t, err)
	require.Equal(t, StatusOpen, period.Status)

	_, err = cal.EnsureOpenLocked(context.Background(), repo, 11)
	require.ErrorIs(t, err, ErrPeriodClosed)
}
