package treasury

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Status tracks a treasury document's lifecycle.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusPosted    Status = "POSTED"
	StatusCancelled Status = "CANCELLED"
)

// Number series entities.
const (
	EntityTypeReceipt      = "RECEIPT"
	EntityTypePayment      = "PAYMENT"
	EntityTypeCashTransfer = "CASH_TRANSFER"
	EntityTypeCheque       = "CHEQUE"
)

// Receipt records money received from a customer.
type Receipt struct {
	ID       int64           `json:"id"`
	Ref      uuid.UUID       `json:"ref"`
	Number   string          `json:"number"`
	PartyID  int64           `json:"party_id"`
	BranchID *int64          `json:"branch_id,omitempty"`
	Date     time.Time       `json:"date"`
	Amount   decimal.Decimal `json:"amount"`
	// CashAccountID overrides the posting rule's debit account, so one rule
	// serves several tills and bank accounts.
	CashAccountID *int64     `json:"cash_account_id,omitempty"`
	Memo          string     `json:"memo,omitempty"`
	Status        Status     `json:"status"`
	VoucherID     *int64     `json:"voucher_id,omitempty"`
	PostedAt      *time.Time `json:"posted_at,omitempty"`
	CreatedBy     int64      `json:"created_by"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Payment records money paid to a supplier. Mirror of Receipt.
type Payment struct {
	ID            int64           `json:"id"`
	Ref           uuid.UUID       `json:"ref"`
	Number        string          `json:"number"`
	PartyID       int64           `json:"party_id"`
	BranchID      *int64          `json:"branch_id,omitempty"`
	Date          time.Time       `json:"date"`
	Amount        decimal.Decimal `json:"amount"`
	CashAccountID *int64          `json:"cash_account_id,omitempty"`
	Memo          string          `json:"memo,omitempty"`
	Status        Status          `json:"status"`
	VoucherID     *int64          `json:"voucher_id,omitempty"`
	PostedAt      *time.Time      `json:"posted_at,omitempty"`
	CreatedBy     int64           `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// CashTransfer moves money between two ledger cash or bank accounts. Both
// accounts come from the document itself, no posting rule applies.
type CashTransfer struct {
	ID            int64           `json:"id"`
	Ref           uuid.UUID       `json:"ref"`
	Number        string          `json:"number"`
	FromAccountID int64           `json:"from_account_id"`
	ToAccountID   int64           `json:"to_account_id"`
	BranchID      *int64          `json:"branch_id,omitempty"`
	Date          time.Time       `json:"date"`
	Amount        decimal.Decimal `json:"amount"`
	Memo          string          `json:"memo,omitempty"`
	Status        Status          `json:"status"`
	VoucherID     *int64          `json:"voucher_id,omitempty"`
	PostedAt      *time.Time      `json:"posted_at,omitempty"`
	CreatedBy     int64           `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
}

// ChequeDirection distinguishes received from issued cheques.
type ChequeDirection string

const (
	ChequeInbound  ChequeDirection = "INBOUND"
	ChequeOutbound ChequeDirection = "OUTBOUND"
)

// ChequeStatus tracks the cheque lifecycle. Issued cheques post nothing;
// the ledger entry happens on clearing.
type ChequeStatus string

const (
	ChequeStatusIssued  ChequeStatus = "ISSUED"
	ChequeStatusCleared ChequeStatus = "CLEARED"
	ChequeStatusBounced ChequeStatus = "BOUNCED"
)

// Cheque is a post-dated settlement instrument.
type Cheque struct {
	ID            int64           `json:"id"`
	Ref           uuid.UUID       `json:"ref"`
	Number        string          `json:"number"`
	ChequeNo      string          `json:"cheque_no"`
	Direction     ChequeDirection `json:"direction"`
	PartyID       int64           `json:"party_id"`
	BranchID      *int64          `json:"branch_id,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	BankAccountID *int64          `json:"bank_account_id,omitempty"`
	IssueDate     time.Time       `json:"issue_date"`
	DueDate       time.Time       `json:"due_date"`
	Status        ChequeStatus    `json:"status"`
	VoucherID     *int64          `json:"voucher_id,omitempty"`
	ClearedAt     *time.Time      `json:"cleared_at,omitempty"`
	BouncedAt     *time.Time      `json:"bounced_at,omitempty"`
	CreatedBy     int64           `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

var (
	// ErrReceiptNotFound indicates a missing receipt.
	ErrReceiptNotFound = fmt.Errorf("treasury: receipt %w", shared.ErrNotFound)
	// ErrPaymentNotFound indicates a missing payment.
	ErrPaymentNotFound = fmt.Errorf("treasury: payment %w", shared.ErrNotFound)
	// ErrTransferNotFound indicates a missing cash transfer.
	ErrTransferNotFound = fmt.Errorf("treasury: cash transfer %w", shared.ErrNotFound)
	// ErrChequeNotFound indicates a missing cheque.
	ErrChequeNotFound = fmt.Errorf("treasury: cheque %w", shared.ErrNotFound)
	// ErrNonPositiveAmount indicates a zero or negative amount.
	ErrNonPositiveAmount = fmt.Errorf("treasury: amount must be positive: %w", shared.ErrInvariant)
	// ErrSameAccount indicates a transfer between one account.
	ErrSameAccount = fmt.Errorf("treasury: transfer requires two accounts: %w", shared.ErrInvariant)
	// ErrDocumentCancelled indicates a posting attempt on a cancelled document.
	ErrDocumentCancelled = fmt.Errorf("treasury: document cancelled: %w", shared.ErrConflict)
	// ErrChequeNotIssued indicates a clear or bounce on a settled cheque.
	ErrChequeNotIssued = fmt.Errorf("treasury: cheque already settled: %w", shared.ErrConflict)
)
