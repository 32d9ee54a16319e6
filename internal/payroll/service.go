package payroll

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/masterdata"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/sequence"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// MasterdataPort exposes the employee reads the orchestrator needs.
type MasterdataPort interface {
	GetEmployee(ctx context.Context, id int64) (masterdata.Employee, error)
	ListActiveEmployees(ctx context.Context, branchID *int64) ([]masterdata.Employee, error)
}

// AuditPort records lifecycle events.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// TxRepository exposes the transactional payroll operations.
type TxRepository interface {
	GetRunForUpdate(ctx context.Context, id int64) (Run, error)
	InsertRun(ctx context.Context, run Run) (int64, error)
	InsertLines(ctx context.Context, runID int64, lines []Line) error
	SetPosted(ctx context.Context, id, voucherID int64, postedAt time.Time) error
	SetStatus(ctx context.Context, id int64, status Status) error

	Sequences() sequence.TxRepository
	Ledger() ledger.TxRepository
}

// Service orchestrates payroll runs.
type Service struct {
	pool      *pgxpool.Pool
	repo      *Repository
	refs      MasterdataPort
	sequencer *sequence.Sequencer
	poster    *ledger.Poster
	resolver  *ledger.Resolver
	audit     AuditPort
	now       func() time.Time
}

// NewService constructs the payroll service.
func NewService(pool *pgxpool.Pool, repo *Repository, refs MasterdataPort, poster *ledger.Poster, audit AuditPort) *Service {
	return &Service{
		pool:      pool,
		repo:      repo,
		refs:      refs,
		sequencer: sequence.NewSequencer(),
		poster:    poster,
		resolver:  ledger.NewResolver(),
		audit:     audit,
		now:       time.Now,
	}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Create builds and persists a numbered draft run.
func (s *Service) Create(ctx context.Context, in CreateInput, actorID int64) (Run, error) {
	if in.PeriodEnd.Before(in.PeriodStart) {
		return Run{}, ErrInvalidPeriod
	}
	lines, err := s.buildLines(ctx, in)
	if err != nil {
		return Run{}, err
	}

	run := Run{
		Ref:         uuid.New(),
		BranchID:    in.BranchID,
		PeriodStart: in.PeriodStart,
		PeriodEnd:   in.PeriodEnd,
		Date:        in.Date,
		Status:      StatusDraft,
		CreatedBy:   actorID,
		Lines:       lines,
	}
	run.GrossTotal, run.DeductionsTotal, run.NetTotal = totals(lines)

	err = db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		repo := NewPgTxRepository(tx)
		number, err := s.sequencer.Next(ctx, repo.Sequences(), EntityType, in.BranchID)
		if err != nil {
			return err
		}
		run.Number = number
		run.ID, err = repo.InsertRun(ctx, run)
		if err != nil {
			return err
		}
		return repo.InsertLines(ctx, run.ID, lines)
	})
	if err != nil {
		return Run{}, err
	}
	s.record(ctx, actorID, "payroll.run.created", run.ID)
	return run, nil
}

// buildLines resolves employees and computes gross, deductions and net per
// line. An empty input covers every active employee of the branch.
func (s *Service) buildLines(ctx context.Context, in CreateInput) ([]Line, error) {
	var lines []Line
	if len(in.Lines) == 0 {
		employees, err := s.refs.ListActiveEmployees(ctx, in.BranchID)
		if err != nil {
			return nil, err
		}
		for _, emp := range employees {
			lines = append(lines, Line{
				EmployeeID: emp.ID,
				Gross:      emp.BasicSalary,
				Net:        emp.BasicSalary,
			})
		}
	} else {
		for _, input := range in.Lines {
			emp, err := s.refs.GetEmployee(ctx, input.EmployeeID)
			if err != nil {
				return nil, err
			}
			gross := emp.BasicSalary.Add(input.Allowances).Round(2)
			net := gross.Sub(input.Deductions)
			if net.IsNegative() {
				return nil, ErrNegativeNet
			}
			lines = append(lines, Line{
				EmployeeID: emp.ID,
				Gross:      gross,
				Deductions: input.Deductions,
				Net:        net,
			})
		}
	}
	if len(lines) == 0 {
		return nil, ErrNoEmployees
	}
	return lines, nil
}

func totals(lines []Line) (gross, deductions, net decimal.Decimal) {
	for _, line := range lines {
		gross = gross.Add(line.Gross)
		deductions = deductions.Add(line.Deductions)
		net = net.Add(line.Net)
	}
	return gross, deductions, net
}

// Post posts the run voucher: salary expense against deductions payable and
// net pay. Posting a posted run is a no-op.
func (s *Service) Post(ctx context.Context, id, actorID int64) (Run, error) {
	var run Run
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		repo := NewPgTxRepository(tx)
		var err error
		run, err = s.postTx(ctx, repo, id, actorID)
		return err
	})
	if err != nil {
		return Run{}, err
	}
	s.record(ctx, actorID, "payroll.run.posted", id)
	return run, nil
}

func (s *Service) postTx(ctx context.Context, repo TxRepository, id, actorID int64) (Run, error) {
	run, err := repo.GetRunForUpdate(ctx, id)
	if err != nil {
		return Run{}, err
	}
	switch run.Status {
	case StatusPosted:
		return run, nil
	case StatusCancelled:
		return Run{}, ErrRunCancelled
	}

	rule, err := s.resolver.Resolve(ctx, repo.Ledger(), ledger.DocumentKindPayrollRun)
	if err != nil {
		return Run{}, err
	}
	lines, err := buildVoucherLines(run, rule)
	if err != nil {
		return Run{}, err
	}

	voucher, err := s.poster.Post(ctx, repo.Ledger(), ledger.PostingInput{
		Date:       run.Date,
		BranchID:   run.BranchID,
		Memo:       "Payroll run " + run.Number,
		SourceKind: ledger.DocumentKindPayrollRun,
		SourceID:   run.Ref,
		PostedBy:   actorID,
		Lines:      lines,
	})
	if err != nil {
		return Run{}, err
	}

	postedAt := s.now().UTC()
	if err := repo.SetPosted(ctx, id, voucher.ID, postedAt); err != nil {
		return Run{}, err
	}
	run.Status = StatusPosted
	run.VoucherID = &voucher.ID
	run.PostedAt = &postedAt
	return run, nil
}

// buildVoucherLines debits the full gross to salary expense, credits the
// withheld deductions to the rule's tax account and the net to the rule's
// credit account.
func buildVoucherLines(run Run, rule ledger.PostingRule) ([]ledger.LineInput, error) {
	lines := []ledger.LineInput{
		{AccountID: rule.DebitAccountID, Debit: run.GrossTotal},
	}
	if run.DeductionsTotal.IsPositive() {
		if rule.TaxAccountID == nil {
			return nil, ErrNoDeductionAccount
		}
		lines = append(lines, ledger.LineInput{AccountID: *rule.TaxAccountID, Credit: run.DeductionsTotal})
	}
	lines = append(lines, ledger.LineInput{AccountID: rule.CreditAccountID, Credit: run.NetTotal})
	return lines, nil
}

// Get returns a run with lines.
func (s *Service) Get(ctx context.Context, id int64) (Run, error) {
	return s.repo.GetRun(ctx, id)
}

// List returns runs newest first.
func (s *Service) List(ctx context.Context, page shared.Pagination) ([]Run, error) {
	return s.repo.ListRuns(ctx, page)
}

// SetStatus moves a draft run between non-posted states.
func (s *Service) SetStatus(ctx context.Context, id int64, status Status, actorID int64) error {
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		repo := NewPgTxRepository(tx)
		run, err := repo.GetRunForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if run.Status == StatusPosted {
			return ErrRunPosted
		}
		return repo.SetStatus(ctx, id, status)
	})
	if err != nil {
		return err
	}
	s.record(ctx, actorID, "payroll.run.status."+string(status), id)
	return nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, runID int64) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   EntityType,
		EntityID: strconv.FormatInt(runID, 10),
	})
}
