package payroll

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Status tracks a payroll run's lifecycle.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusApproved  Status = "APPROVED"
	StatusPosted    Status = "POSTED"
	StatusCancelled Status = "CANCELLED"
)

// EntityType keys the run's number series.
const EntityType = "PAYROLL_RUN"

// Run is one payroll batch covering a pay period.
type Run struct {
	ID              int64           `json:"id"`
	Ref             uuid.UUID       `json:"ref"`
	Number          string          `json:"number"`
	BranchID        *int64          `json:"branch_id,omitempty"`
	PeriodStart     time.Time       `json:"period_start"`
	PeriodEnd       time.Time       `json:"period_end"`
	Date            time.Time       `json:"date"`
	Status          Status          `json:"status"`
	GrossTotal      decimal.Decimal `json:"gross_total"`
	DeductionsTotal decimal.Decimal `json:"deductions_total"`
	NetTotal        decimal.Decimal `json:"net_total"`
	VoucherID       *int64          `json:"voucher_id,omitempty"`
	PostedAt        *time.Time      `json:"posted_at,omitempty"`
	CreatedBy       int64           `json:"created_by"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Lines           []Line          `json:"lines"`
}

// Line is one employee's slice of the run. Gross is basic salary plus
// allowances; net is gross minus deductions.
type Line struct {
	ID         int64           `json:"id"`
	RunID      int64           `json:"run_id"`
	EmployeeID int64           `json:"employee_id"`
	Gross      decimal.Decimal `json:"gross"`
	Deductions decimal.Decimal `json:"deductions"`
	Net        decimal.Decimal `json:"net"`
}

// LineInput adjusts one employee's pay for the period.
type LineInput struct {
	EmployeeID int64           `json:"employee_id" validate:"required"`
	Allowances decimal.Decimal `json:"allowances"`
	Deductions decimal.Decimal `json:"deductions"`
}

// CreateInput describes a new payroll run. When Lines is empty the run
// covers every active employee of the branch at basic salary.
type CreateInput struct {
	BranchID    *int64      `json:"branch_id"`
	PeriodStart time.Time   `json:"period_start" validate:"required"`
	PeriodEnd   time.Time   `json:"period_end" validate:"required"`
	Date        time.Time   `json:"date" validate:"required"`
	Lines       []LineInput `json:"lines" validate:"dive"`
}

var (
	// ErrRunNotFound indicates a missing payroll run.
	ErrRunNotFound = fmt.Errorf("payroll: run %w", shared.ErrNotFound)
	// ErrRunPosted indicates a mutation attempt on a posted run.
	ErrRunPosted = fmt.Errorf("payroll: run already posted: %w", shared.ErrConflict)
	// ErrRunCancelled indicates a post attempt on a cancelled run.
	ErrRunCancelled = fmt.Errorf("payroll: run cancelled: %w", shared.ErrConflict)
	// ErrNoEmployees indicates a run that would cover nobody.
	ErrNoEmployees = fmt.Errorf("payroll: no employees in run: %w", shared.ErrInvariant)
	// ErrNegativeNet indicates deductions exceeding gross pay.
	ErrNegativeNet = fmt.Errorf("payroll: deductions exceed gross: %w", shared.ErrInvariant)
	// ErrInvalidPeriod indicates a period whose end precedes its start.
	ErrInvalidPeriod = fmt.Errorf("payroll: period end before start: %w", shared.ErrInvariant)
	// ErrNoDeductionAccount indicates deductions with no configured
	// liability account on the posting rule.
	ErrNoDeductionAccount = fmt.Errorf("payroll: posting rule has no deduction account: %w", shared.ErrConfiguration)
)
