package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/fiscal"
	"github.com/meridian-erp/meridian-erp/internal/sequence"
)

// EntityTypeVoucher is the number series entity for journal vouchers.
const EntityTypeVoucher = "VOUCHER"

// TxRepository exposes the transactional operations the poster needs. Every
// document orchestrator's transaction wrapper embeds an implementation, so a
// voucher commits or rolls back with the document, its stock moves and the
// consumed number.
type TxRepository interface {
	GetAccounts(ctx context.Context, ids []int64) (map[int64]Account, error)
	GetActiveRules(ctx context.Context, kind DocumentKind) ([]PostingRule, error)
	// FindVoucherIDBySource returns the voucher already linked to the source
	// document, or ErrVoucherNotFound.
	FindVoucherIDBySource(ctx context.Context, kind DocumentKind, sourceID uuid.UUID) (int64, error)
	InsertVoucher(ctx context.Context, v Voucher) (int64, error)
	InsertVoucherLines(ctx context.Context, voucherID int64, lines []VoucherLine) error
	GetVoucherWithLines(ctx context.Context, id int64) (Voucher, error)
	Sequences() sequence.TxRepository
	Periods() fiscal.TxRepository
}

// Poster builds balanced journal vouchers. It is the shared invariant engine
// invoked by every document orchestrator.
type Poster struct {
	sequencer *sequence.Sequencer
	calendar  *fiscal.Calendar
	now       func() time.Time
}

// NewPoster constructs a Poster.
func NewPoster(sequencer *sequence.Sequencer, calendar *fiscal.Calendar) *Poster {
	return &Poster{sequencer: sequencer, calendar: calendar, now: time.Now}
}

// WithNow overrides the clock for testing.
func (p *Poster) WithNow(now func() time.Time) {
	if now != nil {
		p.now = now
	}
}

// Post validates and persists a voucher on the caller's transaction.
func (p *Poster) Post(ctx context.Context, tx TxRepository, input PostingInput) (Voucher, error) {
	if err := input.Validate(); err != nil {
		return Voucher{}, err
	}

	if _, err := tx.FindVoucherIDBySource(ctx, input.SourceKind, input.SourceID); err == nil {
		return Voucher{}, fmt.Errorf("%w: %s %s", ErrSourceAlreadyPosted, input.SourceKind, input.SourceID)
	} else if !errors.Is(err, ErrVoucherNotFound) {
		return Voucher{}, err
	}

	period, err := p.calendar.ResolveOpenPeriod(ctx, tx.Periods(), input.Date)
	if err != nil {
		return Voucher{}, err
	}
	// Lock the period row so a concurrent close waits for this posting.
	if _, err := p.calendar.EnsureOpenLocked(ctx, tx.Periods(), period.ID); err != nil {
		return Voucher{}, err
	}

	if err := p.checkAccounts(ctx, tx, input.Lines); err != nil {
		return Voucher{}, err
	}

	number, err := p.sequencer.Next(ctx, tx.Sequences(), EntityTypeVoucher, input.BranchID)
	if err != nil {
		return Voucher{}, err
	}

	now := p.now().UTC()
	voucher := Voucher{
		Number:   number,
		Date:     input.Date,
		BranchID: input.BranchID,
		PeriodID: period.ID,
		Status:   VoucherStatusPosted,
		Memo:     input.Memo,
		PostedBy: input.PostedBy,
		PostedAt: now,
	}
	id, err := tx.InsertVoucher(ctx, voucher)
	if err != nil {
		return Voucher{}, err
	}
	voucher.ID = id

	lines := make([]VoucherLine, 0, len(input.Lines))
	for idx, line := range input.Lines {
		lines = append(lines, VoucherLine{
			VoucherID:    id,
			LineNo:       idx + 1,
			AccountID:    line.AccountID,
			Debit:        line.Debit,
			Credit:       line.Credit,
			PartyID:      line.PartyID,
			CostCenterID: line.CostCenterID,
			CurrencyCode: line.CurrencyCode,
			ExchangeRate: line.ExchangeRate,
			SourceKind:   input.SourceKind,
			SourceID:     input.SourceID,
		})
	}
	if err := tx.InsertVoucherLines(ctx, id, lines); err != nil {
		return Voucher{}, err
	}
	voucher.Lines = lines
	return voucher, nil
}

// Reverse posts a mirrored voucher for a posted one, dated at reversalDate.
func (p *Poster) Reverse(ctx context.Context, tx TxRepository, voucherID int64, reversalDate time.Time, actorID int64) (Voucher, error) {
	original, err := tx.GetVoucherWithLines(ctx, voucherID)
	if err != nil {
		return Voucher{}, err
	}
	if original.Status != VoucherStatusPosted {
		return Voucher{}, ErrNotPosted
	}
	if reversalDate.IsZero() {
		reversalDate = original.Date
	}
	input := PostingInput{
		Date:       reversalDate,
		BranchID:   original.BranchID,
		Memo:       fmt.Sprintf("Reversal of %s", original.Number),
		SourceKind: DocumentKindReversal,
		SourceID:   uuid.New(),
		PostedBy:   actorID,
	}
	for _, line := range original.Lines {
		input.Lines = append(input.Lines, LineInput{
			AccountID:    line.AccountID,
			Debit:        line.Credit,
			Credit:       line.Debit,
			PartyID:      line.PartyID,
			CostCenterID: line.CostCenterID,
			CurrencyCode: line.CurrencyCode,
			ExchangeRate: line.ExchangeRate,
		})
	}
	return p.Post(ctx, tx, input)
}

func (p *Poster) checkAccounts(ctx context.Context, tx TxRepository, lines []LineInput) error {
	ids := make([]int64, 0, len(lines))
	seen := map[int64]bool{}
	for _, line := range lines {
		if !seen[line.AccountID] {
			seen[line.AccountID] = true
			ids = append(ids, line.AccountID)
		}
	}
	accounts, err := tx.GetAccounts(ctx, ids)
	if err != nil {
		return err
	}
	for _, id := range ids {
		account, ok := accounts[id]
		if !ok {
			return fmt.Errorf("account %d: %w", id, ErrAccountNotFound)
		}
		if !account.IsPostable || !account.IsActive {
			return fmt.Errorf("%w: %s", ErrAccountNotPostable, account.Code)
		}
	}
	return nil
}
