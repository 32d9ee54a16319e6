package fiscal

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Status enumerates year/period states.
type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

// Year represents a fiscal year window.
type Year struct {
	ID        int64      `json:"id"`
	Code      string     `json:"code"`
	StartDate time.Time  `json:"start_date"`
	EndDate   time.Time  `json:"end_date"`
	Status    Status     `json:"status"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	ClosedBy  *int64     `json:"closed_by,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Period represents a posting window inside a fiscal year.
type Period struct {
	ID        int64      `json:"id"`
	YearID    int64      `json:"year_id"`
	Code      string     `json:"code"`
	StartDate time.Time  `json:"start_date"`
	EndDate   time.Time  `json:"end_date"`
	Status    Status     `json:"status"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Contains reports whether the date falls inside the period window.
func (p Period) Contains(date time.Time) bool {
	return !date.Before(p.StartDate) && !date.After(p.EndDate)
}

// CreateYearInput captures validation rules for new fiscal years.
type CreateYearInput struct {
	Code      string
	StartDate time.Time
	EndDate   time.Time
	ActorID   int64
}

// Validate ensures the input is coherent.
func (in CreateYearInput) Validate() error {
	if strings.TrimSpace(in.Code) == "" {
		return errors.New("fiscal: code required")
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return errors.New("fiscal: start and end date required")
	}
	if !in.StartDate.Before(in.EndDate) {
		return errors.New("fiscal: start date must precede end date")
	}
	return nil
}

var (
	// ErrNoFiscalYear indicates no fiscal year encloses the document date.
	ErrNoFiscalYear = fmt.Errorf("fiscal: no fiscal year for date: %w", shared.ErrConflict)
	// ErrNoFiscalPeriod indicates the year has no period enclosing the date.
	ErrNoFiscalPeriod = fmt.Errorf("fiscal: no period for date: %w", shared.ErrConflict)
	// ErrPeriodClosed indicates the target year or period is closed for posting.
	ErrPeriodClosed = fmt.Errorf("fiscal: period closed: %w", shared.ErrConflict)
	// ErrYearOverlap indicates the requested year conflicts with an existing range.
	ErrYearOverlap = fmt.Errorf("fiscal: year overlaps existing range: %w", shared.ErrInvariant)
	// ErrPeriodsStillOpen blocks closing a year with open periods.
	ErrPeriodsStillOpen = fmt.Errorf("fiscal: open periods remain: %w", shared.ErrInvariant)
	// ErrYearClosed blocks reopening a period under a closed year.
	ErrYearClosed = fmt.Errorf("fiscal: parent year closed: %w", shared.ErrInvariant)
	// ErrPeriodNotFound indicates a missing period row.
	ErrPeriodNotFound = fmt.Errorf("fiscal: period %w", shared.ErrNotFound)
	// ErrYearNotFound indicates a missing year row.
	ErrYearNotFound = fmt.Errorf("fiscal: year %w", shared.ErrNotFound)
)
