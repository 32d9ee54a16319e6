package fiscal

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Service orchestrates fiscal year and period lifecycle. Resolution during
// posting goes through Calendar; this service owns the mutations.
type Service struct {
	repo  *Repository
	locks *shared.Mutex
	audit AuditPort
	now   func() time.Time
}

// AuditPort records calendar mutations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// NewService constructs a Service instance.
func NewService(repo *Repository, locks *shared.Mutex, audit AuditPort) *Service {
	return &Service{repo: repo, locks: locks, audit: audit, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateYear inserts a fiscal year and generates its monthly periods.
func (s *Service) CreateYear(ctx context.Context, in CreateYearInput) (Year, []Period, error) {
	if err := in.Validate(); err != nil {
		return Year{}, nil, err
	}
	conflict, err := s.repo.YearRangeConflict(ctx, in.StartDate, in.EndDate)
	if err != nil {
		return Year{}, nil, err
	}
	if conflict {
		return Year{}, nil, ErrYearOverlap
	}
	var year Year
	var periods []Period
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		year, err = s.repo.InsertYear(ctx, tx, in)
		if err != nil {
			return err
		}
		for start := in.StartDate; !start.After(in.EndDate); start = start.AddDate(0, 1, 0) {
			end := start.AddDate(0, 1, -1)
			if end.After(in.EndDate) {
				end = in.EndDate
			}
			code := fmt.Sprintf("%s-%02d", in.Code, len(periods)+1)
			period, err := s.repo.InsertPeriod(ctx, tx, year.ID, code, start, end)
			if err != nil {
				return err
			}
			periods = append(periods, period)
		}
		return nil
	})
	if err != nil {
		return Year{}, nil, err
	}
	s.record(ctx, in.ActorID, "fiscal.year.create", year.ID, map[string]any{"code": year.Code})
	return year, periods, nil
}

// ClosePeriod marks a period closed. The row lock makes a concurrent posting
// into the period either commit before the close or fail its open re-check.
func (s *Service) ClosePeriod(ctx context.Context, periodID, actorID int64) (Period, error) {
	key := shared.PeriodCloseLockKey(periodID)
	if err := s.locks.Acquire(ctx, key); err != nil {
		return Period{}, err
	}
	defer func() { _ = s.locks.Release(ctx, key) }()

	var period Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		current, err := s.repo.LockPeriodTx(ctx, tx, periodID)
		if err != nil {
			return err
		}
		if current.Status == StatusClosed {
			period = current
			return nil
		}
		closedAt := s.now().UTC()
		if err := s.repo.SetPeriodStatus(ctx, tx, periodID, StatusClosed, &closedAt); err != nil {
			return err
		}
		current.Status = StatusClosed
		current.ClosedAt = &closedAt
		period = current
		return nil
	})
	if err != nil {
		return Period{}, err
	}
	s.record(ctx, actorID, "fiscal.period.close", periodID, nil)
	return period, nil
}

// ReopenPeriod reopens a closed period unless its year is closed.
func (s *Service) ReopenPeriod(ctx context.Context, periodID, actorID int64) (Period, error) {
	var period Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		current, err := s.repo.LockPeriodTx(ctx, tx, periodID)
		if err != nil {
			return err
		}
		year, err := s.repo.LockYear(ctx, tx, current.YearID)
		if err != nil {
			return err
		}
		if year.Status == StatusClosed {
			return ErrYearClosed
		}
		if current.Status == StatusOpen {
			period = current
			return nil
		}
		if err := s.repo.SetPeriodStatus(ctx, tx, periodID, StatusOpen, nil); err != nil {
			return err
		}
		current.Status = StatusOpen
		current.ClosedAt = nil
		period = current
		return nil
	})
	if err != nil {
		return Period{}, err
	}
	s.record(ctx, actorID, "fiscal.period.reopen", periodID, nil)
	return period, nil
}

// CloseYear closes a year after every period in it is closed.
func (s *Service) CloseYear(ctx context.Context, yearID, actorID int64) (Year, error) {
	var year Year
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		current, err := s.repo.LockYear(ctx, tx, yearID)
		if err != nil {
			return err
		}
		if current.Status == StatusClosed {
			year = current
			return nil
		}
		open, err := s.repo.CountOpenPeriods(ctx, tx, yearID)
		if err != nil {
			return err
		}
		if open > 0 {
			return fmt.Errorf("%w: %d open", ErrPeriodsStillOpen, open)
		}
		closedAt := s.now().UTC()
		if err := s.repo.SetYearStatus(ctx, tx, yearID, StatusClosed, &closedAt, &actorID); err != nil {
			return err
		}
		current.Status = StatusClosed
		current.ClosedAt = &closedAt
		current.ClosedBy = &actorID
		year = current
		return nil
	})
	if err != nil {
		return Year{}, err
	}
	s.record(ctx, actorID, "fiscal.year.close", yearID, nil)
	return year, nil
}

// ListYears returns all fiscal years.
func (s *Service) ListYears(ctx context.Context) ([]Year, error) {
	return s.repo.ListYears(ctx)
}

// ListPeriods returns the periods of a year.
func (s *Service) ListPeriods(ctx context.Context, yearID int64) ([]Period, error) {
	return s.repo.ListPeriods(ctx, yearID)
}

func (s *Service) record(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "fiscal",
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
		At:       s.now(),
	})
}
