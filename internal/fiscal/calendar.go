package fiscal

import (
	"context"
	"time"
)

// TxRepository exposes the calendar lookups used inside posting transactions.
type TxRepository interface {
	// FindYearByDate returns the year containing date; on overlapping ranges
	// the most recently started year wins. Returns ErrNoFiscalYear when none.
	FindYearByDate(ctx context.Context, date time.Time) (Year, error)
	// FindPeriodByDate returns the period of the year enclosing date.
	// Returns ErrNoFiscalPeriod when none.
	FindPeriodByDate(ctx context.Context, yearID int64, date time.Time) (Period, error)
	// LockPeriod re-reads a period under FOR UPDATE.
	LockPeriod(ctx context.Context, periodID int64) (Period, error)
}

// Calendar resolves the open fiscal period enclosing a document date. It
// never mutates state; closing runs through the lifecycle Service.
type Calendar struct{}

// NewCalendar constructs a Calendar.
func NewCalendar() *Calendar {
	return &Calendar{}
}

// ResolveOpenPeriod finds the open period enclosing date, rejecting closed
// years and closed periods.
func (c *Calendar) ResolveOpenPeriod(ctx context.Context, tx TxRepository, date time.Time) (Period, error) {
	year, err := tx.FindYearByDate(ctx, date)
	if err != nil {
		return Period{}, err
	}
	if year.Status == StatusClosed {
		return Period{}, ErrPeriodClosed
	}
	period, err := tx.FindPeriodByDate(ctx, year.ID, date)
	if err != nil {
		return Period{}, err
	}
	if period.Status == StatusClosed {
		return Period{}, ErrPeriodClosed
	}
	return period, nil
}

// EnsureOpenLocked locks the period row and re-checks it is still open.
// A posting transaction calls this right before inserting the voucher so a
// concurrent close blocks on the row lock until the posting commits.
func (c *Calendar) EnsureOpenLocked(ctx context.Context, tx TxRepository, periodID int64) (Period, error) {
	period, err := tx.LockPeriod(ctx, periodID)
	if err != nil {
		return Period{}, err
	}
	if period.Status == StatusClosed {
		return Period{}, ErrPeriodClosed
	}
	return period, nil
}
