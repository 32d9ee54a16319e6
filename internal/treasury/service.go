package treasury

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

// MasterdataPort exposes the reference-data checks the orchestrator needs.
type MasterdataPort interface {
	RequireActiveParty(ctx context.Context, id int64, kind masterdata.PartyKind) (masterdata.Party, error)
}

// IdempotencyPort deduplicates externally retried requests.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// AuditPort records lifecycle events.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// TxRepository exposes the transactional treasury operations.
type TxRepository interface {
	GetReceiptForUpdate(ctx context.Context, id int64) (Receipt, error)
	InsertReceipt(ctx context.Context, r Receipt) (int64, error)
	SetReceiptPosted(ctx context.Context, id, voucherID int64, postedAt time.Time) error

	GetPaymentForUpdate(ctx context.Context, id int64) (Payment, error)
	InsertPayment(ctx context.Context, p Payment) (int64, error)
	SetPaymentPosted(ctx context.Context, id, voucherID int64, postedAt time.Time) error

	GetTransferForUpdate(ctx context.Context, id int64) (CashTransfer, error)
	InsertTransfer(ctx context.Context, t CashTransfer) (int64, error)
	SetTransferPosted(ctx context.Context, id, voucherID int64, postedAt time.Time) error

	GetChequeForUpdate(ctx context.Context, id int64) (Cheque, error)
	InsertCheque(ctx context.Context, c Cheque) (int64, error)
	UpdateCheque(ctx context.Context, c Cheque) error

	Sequences() sequence.TxRepository
	Ledger() ledger.TxRepository
}

// Service orchestrates receipts, payments, transfers and cheques.
type Service struct {
	pool       *pgxpool.Pool
	repo       *Repository
	refs       MasterdataPort
	sequencer  *sequence.Sequencer
	poster     *ledger.Poster
	resolver   *ledger.Resolver
	idempotent IdempotencyPort
	audit      AuditPort
	now        func() time.Time
}

// NewService constructs the treasury service.
func NewService(pool *pgxpool.Pool, repo *Repository, refs MasterdataPort, poster *ledger.Poster, idempotent IdempotencyPort, audit AuditPort) *Service {
	return &Service{
		pool:       pool,
		repo:       repo,
		refs:       refs,
		sequencer:  sequence.NewSequencer(),
		poster:     poster,
		resolver:   ledger.NewResolver(),
		idempotent: idempotent,
		audit:      audit,
		now:        time.Now,
	}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateReceiptInput describes a new receipt. IdempotencyKey guards against
// bank callback retries.
type CreateReceiptInput struct {
	PartyID        int64           `json:"party_id" validate:"required"`
	BranchID       *int64          `json:"branch_id"`
	Date           time.Time       `json:"date" validate:"required"`
	Amount         decimal.Decimal `json:"amount" validate:"required"`
	CashAccountID  *int64          `json:"cash_account_id"`
	Memo           string          `json:"memo"`
	IdempotencyKey string          `json:"-"`
}

// CreateReceipt persists a numbered draft receipt.
func (s *Service) CreateReceipt(ctx context.Context, in CreateReceiptInput, actorID int64) (Receipt, error) {
	if !in.Amount.IsPositive() {
		return Receipt{}, ErrNonPositiveAmount
	}
	if _, err := s.refs.RequireActiveParty(ctx, in.PartyID, masterdata.PartyKindCustomer); err != nil {
		return Receipt{}, err
	}
	if in.IdempotencyKey != "" {
		if err := s.idempotent.CheckAndInsert(ctx, in.IdempotencyKey, EntityTypeReceipt); err != nil {
			return Receipt{}, err
		}
	}

	receipt := Receipt{
		Ref:           uuid.New(),
		PartyID:       in.PartyID,
		BranchID:      in.BranchID,
		Date:          in.Date,
		Amount:        in.Amount,
		CashAccountID: in.CashAccountID,
		Memo:          in.Memo,
		Status:        StatusDraft,
		CreatedBy:     actorID,
	}
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		repo := NewPgTxRepository(tx)
		number, err := s.sequencer.Next(ctx, repo.Sequences(), EntityTypeReceipt, in.BranchID)
		if err != nil {
			return err
		}
		receipt.Number = number
		receipt.ID, err = repo.InsertReceipt(ctx, receipt)
		return err
	})
	if err != nil {
		if in.IdempotencyKey != "" {
			_ = s.idempotent.Delete(ctx, in.IdempotencyKey)
		}
		return Receipt{}, err
	}
	s.record(ctx, actorID, "treasury.receipt.created", EntityTypeReceipt, receipt.ID)
	return receipt, nil
}

// PostReceipt posts the receipt voucher: cash in against the customer
// balance. Posting a posted receipt is a no-op.
func (s *Service) PostReceipt(ctx context.Context, id, actorID int64) (Receipt, error) {
	var receipt Receipt
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		repo := NewPgTxRepository(tx)
		var err error
		receipt, err = s.postReceiptTx(ctx, repo, id, actorID)
		return err
	})
	if err != nil {
		return Receipt{}, err
	}
	s.record(ctx, actorID, "treasury.receipt.posted", EntityTypeReceipt, id)
	return receipt, nil
}

func (s *Service) postReceiptTx(ctx context.Context, repo TxRepository, id, actorID int64) (Receipt, error) {
	receipt, err := repo.GetReceiptForUpdate(ctx, id)
	if err != nil {
		return Receipt{}, err
	}
	switch receipt.Status {
	case StatusPosted:
		return receipt, nil
	case StatusCancelled:
		return Receipt{}, ErrDocumentCancelled
	}

	rule, err := s.resolver.Resolve(ctx, repo.Ledger(), ledger.DocumentKindReceipt)
	if err != nil {
		return Receipt{}, err
	}
	cashAccount := rule.DebitAccountID
	if receipt.CashAccountID != nil {
		cashAccount = *receipt.CashAccountID
	}

	voucher, err := s.poster.Post(ctx, repo.Ledger(), ledger.PostingInput{
		Date:       receipt.Date,
		BranchID:   receipt.BranchID,
		Memo:       "Receipt " + receipt.Number,
		SourceKind: ledger.DocumentKindReceipt,
		SourceID:   receipt.Ref,
		PostedBy:   actorID,
		Lines: []ledger.LineInput{
			{AccountID: cashAccount, Debit: receipt.Amount},
			{AccountID: rule.CreditAccountID, Credit: receipt.Amount, PartyID: &receipt.PartyID},
		},
	})
	if err != nil {
		return Receipt{}, err
	}

	postedAt := s.now().UTC()
	if err := repo.SetReceiptPosted(ctx, id, voucher.ID, postedAt); err != nil {
		return Receipt{}, err
	}
	receipt.Status = StatusPosted
	receipt.VoucherID = &voucher.ID
	receipt.PostedAt = &postedAt
	return receipt, nil
}

// CreatePaymentInput describes a new supplier payment.
type CreatePaymentInput struct {
	PartyID        int64           `json:"party_id" validate:"required"`
	BranchID       *int64          `json:"branch_id"`
	Date           time.Time       `json:"date" validate:"required"`
	Amount         decimal.Decimal `json:"amount" validate:"required"`
	CashAccountID  *int64          `json:"cash_account_id"`
	Memo           string          `json:"memo"`
	IdempotencyKey string          `json:"-"`
}

// CreatePayment persists a numbered draft payment.
func (s *Service) CreatePayment(ctx context.Context, in CreatePaymentInput, actorID int64) (Payment, error) {
	if !in.Amount.IsPositive() {
		return Payment{}, ErrNonPositiveAmount
	}
	if _, err := s.refs.RequireActiveParty(ctx, in.PartyID, masterdata.PartyKindSupplier); err != nil {
		return Payment{}, err
	}
	if in.IdempotencyKey != "" {
		if err := s.idempotent.CheckAndInsert(ctx, in.IdempotencyKey, EntityTypePayment); err != nil {
			return Payment{}, err
		}
	}

	payment := Payment{
		Ref:           uuid.New(),
		PartyID:       in.PartyID,
		BranchID:      in.BranchID,
		Date:          in.Date,
		Amount:        in.Amount,
		CashAccountID: in.CashAccountID,
		Memo:          in.Memo,
		Status:        StatusDraft,
		CreatedBy:     actorID,
	}
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		repo := NewPgTxRepository(tx)
		number, err := s.sequencer.Next(ctx, repo.Sequences(), EntityTypePayment, in.BranchID)
		if err != nil {
			return err
		}
		payment.Number = number
		payment.ID, err = repo.InsertPayment(ctx, payment)
		return err
	})
	if err != nil {
		if in.IdempotencyKey != "" {
			_ = s.idempotent.Delete(ctx, in.IdempotencyKey)
		}
		return Payment{}, err
	}
	s.record(ctx, actorID, "treasury.payment.created", EntityTypePayment, payment.ID)
	return payment, nil
}

// PostPayment posts the payment voucher: supplier balance against cash out.
func (s *Service) PostPayment(ctx context.Context, id, actorID int64) (Payment, error) {
	var payment Payment
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		repo := NewPgTxRepository(tx)
		var err error
		payment, err = s.postPaymentTx(ctx, repo, id, actorID)
		return err
	})
	if err != nil {
		return Payment{}, err
	}
	s.record(ctx, actorID, "treasury.payment.posted", EntityTypePayment, id)
	return payment, nil
}

func (s *Service) postPaymentTx(ctx context.Context, repo TxRepository, id, actorID int64) (Payment, error) {
	payment, err := repo.GetPaymentForUpdate(ctx, id)
	if err != nil {
		return Payment{}, err
	}
	switch payment.Status {
	case StatusPosted:
		return payment, nil
	case StatusCancelled:
		return Payment{}, ErrDocumentCancelled
	}

	rule, err := s.resolver.Resolve(ctx, repo.Ledger(), ledger.DocumentKindPayment)
	if err != nil {
		return Payment{}, err
	}
	cashAccount := rule.CreditAccountID
	if payment.CashAccountID != nil {
		cashAccount = *payment.CashAccountID
	}

	voucher, err := s.poster.Post(ctx, repo.Ledger(), ledger.PostingInput{
		Date:       payment.Date,
		BranchID:   payment.BranchID,
		Memo:       "Payment " + payment.Number,
		SourceKind: ledger.DocumentKindPayment,
		SourceID:   payment.Ref,
		PostedBy:   actorID,
		Lines: []ledger.LineInput{
			{AccountID: rule.DebitAccountID, Debit: payment.Amount, PartyID: &payment.PartyID},
			{AccountID: cashAccount, Credit: payment.Amount},
		},
	})
	if err != nil {
		return Payment{}, err
	}

	postedAt := s.now().UTC()
	if err := repo.SetPaymentPosted(ctx, id, voucher.ID, postedAt); err != nil {
		return Payment{}, err
	}
	payment.Status = StatusPosted
	payment.VoucherID = &voucher.ID
	payment.PostedAt = &postedAt
	return payment, nil
}

// CreateTransferInput describes a transfer between two cash or bank
// accounts.
type CreateTransferInput struct {
	FromAccountID int64           `json:"from_account_id" validate:"required"`
	ToAccountID   int64           `json:"to_account_id" validate:"required"`
	BranchID      *int64          `json:"branch_id"`
	Date          time.Time       `json:"date" validate:"required"`
	Amount        decimal.Decimal `json:"amount" validate:"required"`
	Memo          string          `json:"memo"`
}

// CreateTransfer persists a numbered draft transfer.
func (s *Service) CreateTransfer(ctx context.Context, in CreateTransferInput, actorID int64) (CashTransfer, error) {
	if !in.Amount.IsPositive() {
		return CashTransfer{}, ErrNonPositiveAmount
	}
	if in.FromAccountID == in.ToAccountID {
		return CashTransfer{}, ErrSameAccount
	}

	transfer := CashTransfer{
		Ref:           uuid.New(),
		FromAccountID: in.FromAccountID,
		ToAccountID:   in.ToAccountID,
		BranchID:      in.BranchID,
		Date:          in.Date,
		Amount:        in.Amount,
		Memo:          in.Memo,
		Status:        StatusDraft,
		CreatedBy:     actorID,
	}
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		repo := NewPgTxRepository(tx)
		number, err := s.sequencer.Next(ctx, repo.Sequences(), EntityTypeCashTransfer, in.BranchID)
		if err != nil {
			return err
		}
		transfer.Number = number
		transfer.ID, err = repo.InsertTransfer(ctx, transfer)
		return err
	})
	if err != nil {
		return CashTransfer{}, err
	}
	s.record(ctx, actorID, "treasury.transfer.created", EntityTypeCashTransfer, transfer.ID)
	return transfer, nil
}

// PostTransfer posts the transfer voucher. Both accounts come from the
// document, so no posting rule lookup happens; the poster still verifies
// they are postable and active.
func (s *Service) PostTransfer(ctx context.Context, id, actorID int64) (CashTransfer, error) {
	var transfer CashTransfer
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		repo := NewPgTxRepository(tx)
		var err error
		transfer, err = s.postTransferTx(ctx, repo, id, actorID)
		return err
	})
	if err != nil {
		return CashTransfer{}, err
	}
	s.record(ctx, actorID, "treasury.transfer.posted", EntityTypeCashTransfer, id)
	return transfer, nil
}

func (s *Service) postTransferTx(ctx context.Context, repo TxRepository, id, actorID int64) (CashTransfer, error) {
	transfer, err := repo.GetTransferForUpdate(ctx, id)
	if err != nil {
		return CashTransfer{}, err
	}
	switch transfer.Status {
	case StatusPosted:
		return transfer, nil
	case StatusCancelled:
		return CashTransfer{}, ErrDocumentCancelled
	}

	voucher, err := s.poster.Post(ctx, repo.Ledger(), ledger.PostingInput{
		Date:       transfer.Date,
		BranchID:   transfer.BranchID,
		Memo:       "Cash transfer " + transfer.Number,
		SourceKind: ledger.DocumentKindCashTransfer,
		SourceID:   transfer.Ref,
		PostedBy:   actorID,
		Lines: []ledger.LineInput{
			{AccountID: transfer.ToAccountID, Debit: transfer.Amount},
			{AccountID: transfer.FromAccountID, Credit: transfer.Amount},
		},
	})
	if err != nil {
		return CashTransfer{}, err
	}

	postedAt := s.now().UTC()
	if err := repo.SetTransferPosted(ctx, id, voucher.ID, postedAt); err != nil {
		return CashTransfer{}, err
	}
	transfer.Status = StatusPosted
	transfer.VoucherID = &voucher.ID
	transfer.PostedAt = &postedAt
	return transfer, nil
}

// IssueChequeInput describes a new cheque.
type IssueChequeInput struct {
	ChequeNo      string          `json:"cheque_no" validate:"required"`
	Direction     ChequeDirection `json:"direction" validate:"required,oneof=INBOUND OUTBOUND"`
	PartyID       int64           `json:"party_id" validate:"required"`
	BranchID      *int64          `json:"branch_id"`
	Amount        decimal.Decimal `json:"amount" validate:"required"`
	BankAccountID *int64          `json:"bank_account_id"`
	IssueDate     time.Time       `json:"issue_date" validate:"required"`
	DueDate       time.Time       `json:"due_date" validate:"required"`
}

// IssueCheque registers a cheque. No ledger entry happens until clearing.
func (s *Service) IssueCheque(ctx context.Context, in IssueChequeInput, actorID int64) (Cheque, error) {
	if !in.Amount.IsPositive() {
		return Cheque{}, ErrNonPositiveAmount
	}
	kind := masterdata.PartyKindCustomer
	if in.Direction == ChequeOutbound {
		kind = masterdata.PartyKindSupplier
	}
	if _, err := s.refs.RequireActiveParty(ctx, in.PartyID, kind); err != nil {
		return Cheque{}, err
	}

	cheque := Cheque{
		Ref:           uuid.New(),
		ChequeNo:      in.ChequeNo,
		Direction:     in.Direction,
		PartyID:       in.PartyID,
		BranchID:      in.BranchID,
		Amount:        in.Amount,
		BankAccountID: in.BankAccountID,
		IssueDate:     in.IssueDate,
		DueDate:       in.DueDate,
		Status:        ChequeStatusIssued,
		CreatedBy:     actorID,
	}
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		repo := NewPgTxRepository(tx)
		number, err := s.sequencer.Next(ctx, repo.Sequences(), EntityTypeCheque, in.BranchID)
		if err != nil {
			return err
		}
		cheque.Number = number
		cheque.ID, err = repo.InsertCheque(ctx, cheque)
		return err
	})
	if err != nil {
		return Cheque{}, err
	}
	s.record(ctx, actorID, "treasury.cheque.issued", EntityTypeCheque, cheque.ID)
	return cheque, nil
}

// ClearCheque posts the settlement voucher and marks the cheque cleared.
func (s *Service) ClearCheque(ctx context.Context, id int64, clearedAt time.Time, actorID int64) (Cheque, error) {
	var cheque Cheque
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		repo := NewPgTxRepository(tx)
		var err error
		cheque, err = s.clearChequeTx(ctx, repo, id, clearedAt, actorID)
		return err
	})
	if err != nil {
		return Cheque{}, err
	}
	s.record(ctx, actorID, "treasury.cheque.cleared", EntityTypeCheque, id)
	return cheque, nil
}

func (s *Service) clearChequeTx(ctx context.Context, repo TxRepository, id int64, clearedAt time.Time, actorID int64) (Cheque, error) {
	cheque, err := repo.GetChequeForUpdate(ctx, id)
	if err != nil {
		return Cheque{}, err
	}
	if cheque.Status == ChequeStatusCleared {
		return cheque, nil
	}
	if cheque.Status != ChequeStatusIssued {
		return Cheque{}, ErrChequeNotIssued
	}

	rule, err := s.resolver.Resolve(ctx, repo.Ledger(), ledger.DocumentKindCheque)
	if err != nil {
		return Cheque{}, err
	}

	var lines []ledger.LineInput
	if cheque.Direction == ChequeInbound {
		bank := rule.DebitAccountID
		if cheque.BankAccountID != nil {
			bank = *cheque.BankAccountID
		}
		lines = []ledger.LineInput{
			{AccountID: bank, Debit: cheque.Amount},
			{AccountID: rule.CreditAccountID, Credit: cheque.Amount, PartyID: &cheque.PartyID},
		}
	} else {
		bank := rule.CreditAccountID
		if cheque.BankAccountID != nil {
			bank = *cheque.BankAccountID
		}
		lines = []ledger.LineInput{
			{AccountID: rule.DebitAccountID, Debit: cheque.Amount, PartyID: &cheque.PartyID},
			{AccountID: bank, Credit: cheque.Amount},
		}
	}

	if clearedAt.IsZero() {
		clearedAt = s.now().UTC()
	}
	voucher, err := s.poster.Post(ctx, repo.Ledger(), ledger.PostingInput{
		Date:       clearedAt,
		BranchID:   cheque.BranchID,
		Memo:       "Cheque " + cheque.ChequeNo + " cleared",
		SourceKind: ledger.DocumentKindCheque,
		SourceID:   cheque.Ref,
		PostedBy:   actorID,
		Lines:      lines,
	})
	if err != nil {
		return Cheque{}, err
	}

	cheque.Status = ChequeStatusCleared
	cheque.VoucherID = &voucher.ID
	cheque.ClearedAt = &clearedAt
	if err := repo.UpdateCheque(ctx, cheque); err != nil {
		return Cheque{}, err
	}
	return cheque, nil
}

// BounceCheque marks a cheque bounced. A cheque that already cleared gets
// its settlement voucher reversed.
func (s *Service) BounceCheque(ctx context.Context, id int64, bouncedAt time.Time, actorID int64) (Cheque, error) {
	var cheque Cheque
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		repo := NewPgTxRepository(tx)
		var err error
		cheque, err = s.bounceChequeTx(ctx, repo, id, bouncedAt, actorID)
		return err
	})
	if err != nil {
		return Cheque{}, err
	}
	s.record(ctx, actorID, "treasury.cheque.bounced", EntityTypeCheque, id)
	return cheque, nil
}

func (s *Service) bounceChequeTx(ctx context.Context, repo TxRepository, id int64, bouncedAt time.Time, actorID int64) (Cheque, error) {
	cheque, err := repo.GetChequeForUpdate(ctx, id)
	if err != nil {
		return Cheque{}, err
	}
	if bouncedAt.IsZero() {
		bouncedAt = s.now().UTC()
	}
	switch cheque.Status {
	case ChequeStatusBounced:
		return cheque, nil
	case ChequeStatusCleared:
		if _, err := s.poster.Reverse(ctx, repo.Ledger(), *cheque.VoucherID, bouncedAt, actorID); err != nil {
			return Cheque{}, err
		}
	}

	cheque.Status = ChequeStatusBounced
	cheque.BouncedAt = &bouncedAt
	if err := repo.UpdateCheque(ctx, cheque); err != nil {
		return Cheque{}, err
	}
	return cheque, nil
}

// GetReceipt returns a receipt.
func (s *Service) GetReceipt(ctx context.Context, id int64) (Receipt, error) {
	return s.repo.GetReceipt(ctx, id)
}

// GetPayment returns a payment.
func (s *Service) GetPayment(ctx context.Context, id int64) (Payment, error) {
	return s.repo.GetPayment(ctx, id)
}

// GetTransfer returns a cash transfer.
func (s *Service) GetTransfer(ctx context.Context, id int64) (CashTransfer, error) {
	return s.repo.GetTransfer(ctx, id)
}

// GetCheque returns a cheque.
func (s *Service) GetCheque(ctx context.Context, id int64) (Cheque, error) {
	return s.repo.GetCheque(ctx, id)
}

// ListReceipts returns a page of receipts, newest first.
func (s *Service) ListReceipts(ctx context.Context, page shared.Pagination) ([]Receipt, error) {
	return s.repo.ListReceipts(ctx, page)
}

// ListPayments returns a page of payments, newest first.
func (s *Service) ListPayments(ctx context.Context, page shared.Pagination) ([]Payment, error) {
	return s.repo.ListPayments(ctx, page)
}

// ListDueCheques returns issued cheques due on or before the date.
func (s *Service) ListDueCheques(ctx context.Context, dueBy time.Time) ([]Cheque, error) {
	return s.repo.ListDueCheques(ctx, dueBy)
}

func (s *Service) record(ctx context.Context, actorID int64, action, entity string, entityID int64) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(entityID, 10),
	})
}
