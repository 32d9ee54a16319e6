package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// DocumentKind is the closed set of document types that can post to the
// ledger. Posting rules, number series and the approval workflow key off it.
type DocumentKind string

const (
	DocumentKindSalesInvoice    DocumentKind = "SALES_INVOICE"
	DocumentKindPurchaseInvoice DocumentKind = "PURCHASE_INVOICE"
	DocumentKindReceipt         DocumentKind = "RECEIPT"
	DocumentKindPayment         DocumentKind = "PAYMENT"
	DocumentKindPayrollRun      DocumentKind = "PAYROLL_RUN"
	DocumentKindCashTransfer    DocumentKind = "CASH_TRANSFER"
	DocumentKindCheque          DocumentKind = "CHEQUE"
	DocumentKindDepreciation    DocumentKind = "DEPRECIATION"
	DocumentKindReversal        DocumentKind = "REVERSAL"
)

// DocumentKinds lists every postable kind, used for configuration validation.
var DocumentKinds = []DocumentKind{
	DocumentKindSalesInvoice,
	DocumentKindPurchaseInvoice,
	DocumentKindReceipt,
	DocumentKindPayment,
	DocumentKindPayrollRun,
	DocumentKindCashTransfer,
	DocumentKindCheque,
	DocumentKindDepreciation,
}

// AccountType enumerates chart of accounts categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// NormalSide indicates which side increases the account.
type NormalSide string

const (
	NormalSideDebit  NormalSide = "DEBIT"
	NormalSideCredit NormalSide = "CREDIT"
)

// VoucherStatus enumerates voucher lifecycle values.
type VoucherStatus string

const (
	VoucherStatusDraft  VoucherStatus = "DRAFT"
	VoucherStatusPosted VoucherStatus = "POSTED"
)

// Account models a chart of accounts node. Only postable leaf accounts
// receive journal lines; headers group the hierarchy.
type Account struct {
	ID         int64       `json:"id"`
	Code       string      `json:"code"`
	Name       string      `json:"name"`
	Type       AccountType `json:"type"`
	NormalSide NormalSide  `json:"normal_side"`
	ParentID   *int64      `json:"parent_id,omitempty"`
	IsPostable bool        `json:"is_postable"`
	IsActive   bool        `json:"is_active"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// PostingRule maps a document kind to its ledger accounts.
type PostingRule struct {
	ID                int64        `json:"id"`
	DocumentKind      DocumentKind `json:"document_kind"`
	DebitAccountID    int64        `json:"debit_account_id"`
	CreditAccountID   int64        `json:"credit_account_id"`
	TaxAccountID      *int64       `json:"tax_account_id,omitempty"`
	DiscountAccountID *int64       `json:"discount_account_id,omitempty"`
	IsActive          bool         `json:"is_active"`
}

// Voucher is a balanced double-entry document. Immutable once posted: no
// update path exists, corrections go through Reverse.
type Voucher struct {
	ID        int64         `json:"id"`
	Number    string        `json:"number"`
	Date      time.Time     `json:"date"`
	BranchID  *int64        `json:"branch_id,omitempty"`
	PeriodID  int64         `json:"period_id"`
	Status    VoucherStatus `json:"status"`
	Memo      string        `json:"memo,omitempty"`
	PostedBy  int64         `json:"posted_by"`
	PostedAt  time.Time     `json:"posted_at"`
	CreatedAt time.Time     `json:"created_at"`
	Lines     []VoucherLine `json:"lines"`
}

// VoucherLine stores a debit or credit amount for an account, with the
// back-reference to the originating document.
type VoucherLine struct {
	ID           int64           `json:"id"`
	VoucherID    int64           `json:"voucher_id"`
	LineNo       int             `json:"line_no"`
	AccountID    int64           `json:"account_id"`
	Debit        decimal.Decimal `json:"debit"`
	Credit       decimal.Decimal `json:"credit"`
	PartyID      *int64          `json:"party_id,omitempty"`
	CostCenterID *int64          `json:"cost_center_id,omitempty"`
	CurrencyCode string          `json:"currency_code,omitempty"`
	ExchangeRate decimal.Decimal `json:"exchange_rate"`
	SourceKind   DocumentKind    `json:"source_kind"`
	SourceID     uuid.UUID       `json:"source_id"`
}

// LineInput describes one journal line of a posting request.
type LineInput struct {
	AccountID    int64
	Debit        decimal.Decimal
	Credit       decimal.Decimal
	PartyID      *int64
	CostCenterID *int64
	CurrencyCode string
	ExchangeRate decimal.Decimal
}

// PostingInput groups fields required to post a voucher.
type PostingInput struct {
	Date       time.Time
	BranchID   *int64
	Memo       string
	SourceKind DocumentKind
	SourceID   uuid.UUID
	PostedBy   int64
	Lines      []LineInput
}

var (
	// ErrUnbalanced indicates sum(debit) != sum(credit).
	ErrUnbalanced = fmt.Errorf("ledger: voucher lines must balance: %w", shared.ErrInvariant)
	// ErrTooFewLines indicates fewer than two lines.
	ErrTooFewLines = fmt.Errorf("ledger: voucher requires at least two lines: %w", shared.ErrInvariant)
	// ErrMixedLine indicates a line carrying both debit and credit.
	ErrMixedLine = fmt.Errorf("ledger: line cannot carry both debit and credit: %w", shared.ErrInvariant)
	// ErrNegativeAmount indicates a negative debit or credit.
	ErrNegativeAmount = fmt.Errorf("ledger: negative amount: %w", shared.ErrInvariant)
	// ErrAccountNotPostable indicates a line targeting a header or inactive account.
	ErrAccountNotPostable = fmt.Errorf("ledger: account not postable: %w", shared.ErrInvariant)
	// ErrNoPostingRule indicates no active rule for the document kind.
	ErrNoPostingRule = fmt.Errorf("ledger: no active posting rule: %w", shared.ErrConfiguration)
	// ErrAmbiguousRule indicates multiple active rules for one document kind.
	ErrAmbiguousRule = fmt.Errorf("ledger: multiple active posting rules: %w", shared.ErrConfiguration)
	// ErrSourceAlreadyPosted indicates the source document already has a voucher.
	ErrSourceAlreadyPosted = fmt.Errorf("ledger: source already posted: %w", shared.ErrConflict)
	// ErrVoucherNotFound indicates a missing voucher.
	ErrVoucherNotFound = fmt.Errorf("ledger: voucher %w", shared.ErrNotFound)
	// ErrAccountNotFound indicates a missing account.
	ErrAccountNotFound = fmt.Errorf("ledger: account %w", shared.ErrNotFound)
	// ErrNotPosted indicates a reversal of a non-posted voucher.
	ErrNotPosted = fmt.Errorf("ledger: voucher not posted: %w", shared.ErrInvariant)
)

// Validate ensures posting input meets the voucher invariants.
func (in PostingInput) Validate() error {
	if in.Date.IsZero() {
		return errors.New("ledger: date required")
	}
	if in.SourceKind == "" {
		return errors.New("ledger: source kind required")
	}
	if in.SourceID == uuid.Nil {
		return errors.New("ledger: source id required")
	}
	if len(in.Lines) < 2 {
		return ErrTooFewLines
	}
	var debit, credit decimal.Decimal
	for idx, line := range in.Lines {
		if line.AccountID == 0 {
			return fmt.Errorf("ledger: line %d missing account", idx)
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return fmt.Errorf("line %d: %w", idx, ErrNegativeAmount)
		}
		if line.Debit.IsPositive() && line.Credit.IsPositive() {
			return fmt.Errorf("line %d: %w", idx, ErrMixedLine)
		}
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	if !debit.Equal(credit) {
		return fmt.Errorf("%w: debit %s credit %s", ErrUnbalanced, debit, credit)
	}
	return nil
}
