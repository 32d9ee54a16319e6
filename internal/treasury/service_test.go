package treasury

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/fiscal"
	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/ledger/ledgertest"
	"github.com/meridian-erp/meridian-erp/internal/masterdata"
	"github.com/meridian-erp/meridian-erp/internal/sequence"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type staticRefs struct {
	parties map[int64]masterdata.Party
}

func (s *staticRefs) RequireActiveParty(_ context.Context, id int64, kind masterdata.PartyKind) (masterdata.Party, error) {
	party, ok := s.parties[id]
	if !ok || party.Kind != kind {
		return masterdata.Party{}, masterdata.ErrPartyNotFound
	}
	if !party.IsActive {
		return masterdata.Party{}, masterdata.ErrPartyInactive
	}
	return party, nil
}

type memoryRepo struct {
	receipts  map[int64]Receipt
	payments  map[int64]Payment
	transfers map[int64]CashTransfer
	cheques   map[int64]Cheque
	ledger    *ledgertest.Memory
	nextID    int64
}

func newMemoryRepo(ml *ledgertest.Memory) *memoryRepo {
	return &memoryRepo{
		receipts:  map[int64]Receipt{},
		payments:  map[int64]Payment{},
		transfers: map[int64]CashTransfer{},
		cheques:   map[int64]Cheque{},
		ledger:    ml,
	}
}

func (m *memoryRepo) GetReceiptForUpdate(_ context.Context, id int64) (Receipt, error) {
	rec, ok := m.receipts[id]
	if !ok {
		return Receipt{}, ErrReceiptNotFound
	}
	return rec, nil
}

func (m *memoryRepo) InsertReceipt(_ context.Context, rec Receipt) (int64, error) {
	m.nextID++
	rec.ID = m.nextID
	m.receipts[rec.ID] = rec
	return rec.ID, nil
}

func (m *memoryRepo) SetReceiptPosted(_ context.Context, id, voucherID int64, postedAt time.Time) error {
	rec := m.receipts[id]
	rec.Status = StatusPosted
	rec.VoucherID = &voucherID
	rec.PostedAt = &postedAt
	m.receipts[id] = rec
	return nil
}

func (m *memoryRepo) GetPaymentForUpdate(_ context.Context, id int64) (Payment, error) {
	pay, ok := m.payments[id]
	if !ok {
		return Payment{}, ErrPaymentNotFound
	}
	return pay, nil
}

func (m *memoryRepo) InsertPayment(_ context.Context, pay Payment) (int64, error) {
	m.nextID++
	pay.ID = m.nextID
	m.payments[pay.ID] = pay
	return pay.ID, nil
}

func (m *memoryRepo) SetPaymentPosted(_ context.Context, id, voucherID int64, postedAt time.Time) error {
	pay := m.payments[id]
	pay.Status = StatusPosted
	pay.VoucherID = &voucherID
	pay.PostedAt = &postedAt
	m.payments[id] = pay
	return nil
}

func (m *memoryRepo) GetTransferForUpdate(_ context.Context, id int64) (CashTransfer, error) {
	tr, ok := m.transfers[id]
	if !ok {
		return CashTransfer{}, ErrTransferNotFound
	}
	return tr, nil
}

func (m *memoryRepo) InsertTransfer(_ context.Context, tr CashTransfer) (int64, error) {
	m.nextID++
	tr.ID = m.nextID
	m.transfers[tr.ID] = tr
	return tr.ID, nil
}

func (m *memoryRepo) SetTransferPosted(_ context.Context, id, voucherID int64, postedAt time.Time) error {
	tr := m.transfers[id]
	tr.Status = StatusPosted
	tr.VoucherID = &voucherID
	tr.PostedAt = &postedAt
	m.transfers[id] = tr
	return nil
}

func (m *memoryRepo) GetChequeForUpdate(_ context.Context, id int64) (Cheque, error) {
	chq, ok := m.cheques[id]
	if !ok {
		return Cheque{}, ErrChequeNotFound
	}
	return chq, nil
}

func (m *memoryRepo) InsertCheque(_ context.Context, chq Cheque) (int64, error) {
	m.nextID++
	chq.ID = m.nextID
	m.cheques[chq.ID] = chq
	return chq.ID, nil
}

func (m *memoryRepo) UpdateCheque(_ context.Context, chq Cheque) error {
	m.cheques[chq.ID] = chq
	return nil
}

func (m *memoryRepo) Sequences() sequence.TxRepository { return m.ledger.Sequences() }
func (m *memoryRepo) Ledger() ledger.TxRepository      { return m.ledger }

// Accounts: 100 cash till, 101 bank, 110 receivable, 210 payable.
func newFixture(t *testing.T) (*Service, *memoryRepo) {
	t.Helper()
	ml := ledgertest.New()
	ml.AddAccount(100, "1000", ledger.AccountTypeAsset)
	ml.AddAccount(101, "1010", ledger.AccountTypeAsset)
	ml.AddAccount(110, "1100", ledger.AccountTypeAsset)
	ml.AddAccount(210, "2100", ledger.AccountTypeLiability)
	ml.AddRule(ledger.PostingRule{
		ID: 1, DocumentKind: ledger.DocumentKindReceipt,
		DebitAccountID: 100, CreditAccountID: 110,
	})
	ml.AddRule(ledger.PostingRule{
		ID: 2, DocumentKind: ledger.DocumentKindPayment,
		DebitAccountID: 210, CreditAccountID: 100,
	})
	ml.AddRule(ledger.PostingRule{
		ID: 3, DocumentKind: ledger.DocumentKindCheque,
		DebitAccountID: 101, CreditAccountID: 110,
	})
	ml.AddSeries(ledger.EntityTypeVoucher, "JV-")
	ml.OpenYear(2026)

	refs := &staticRefs{parties: map[int64]masterdata.Party{
		10: {ID: 10, Kind: masterdata.PartyKindCustomer, IsActive: true},
		20: {ID: 20, Kind: masterdata.PartyKindSupplier, IsActive: true},
	}}

	poster := ledger.NewPoster(sequence.NewSequencer(), fiscal.NewCalendar())
	svc := NewService(nil, nil, refs, poster, nil, nil)
	svc.WithNow(func() time.Time { return time.Date(2026, 3, 20, 9, 0, 0, 0, time.UTC) })

	return svc, newMemoryRepo(ml)
}

func seedReceipt(t *testing.T, repo *memoryRepo, amount string, cashAccount *int64) Receipt {
	t.Helper()
	rec := Receipt{
		Ref:           uuid.New(),
		Number:        "RC-000001",
		PartyID:       10,
		Date:          time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		Amount:        dec(amount),
		CashAccountID: cashAccount,
		Status:        StatusDraft,
	}
	id, err := repo.InsertReceipt(context.Background(), rec)
	require.NoError(t, err)
	rec.ID = id
	return rec
}

func seedCheque(t *testing.T, repo *memoryRepo, direction ChequeDirection, amount string) Cheque {
	t.Helper()
	chq := Cheque{
		Ref:       uuid.New(),
		Number:    "CQ-000001",
		ChequeNo:  "88421",
		Direction: direction,
		PartyID:   10,
		Amount:    dec(amount),
		IssueDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		DueDate:   time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		Status:    ChequeStatusIssued,
	}
	if direction == ChequeOutbound {
		chq.PartyID = 20
	}
	id, err := repo.InsertCheque(context.Background(), chq)
	require.NoError(t, err)
	chq.ID = id
	return chq
}

func TestPostReceiptDebitsCashCreditsCustomer(t *testing.T) {
	svc, repo := newFixture(t)
	rec := seedReceipt(t, repo, "500", nil)

	posted, err := svc.postReceiptTx(context.Background(), repo, rec.ID, 7)
	require.NoError(t, err)
	require.Equal(t, StatusPosted, posted.Status)
	require.NotNil(t, posted.VoucherID)

	voucher, ok := repo.ledger.VoucherBySource(ledger.DocumentKindReceipt, rec.Ref)
	require.True(t, ok)
	require.Len(t, voucher.Lines, 2)
	require.Equal(t, int64(100), voucher.Lines[0].AccountID)
	require.True(t, voucher.Lines[0].Debit.Equal(dec("500")))
	require.Equal(t, int64(110), voucher.Lines[1].AccountID)
	require.True(t, voucher.Lines[1].Credit.Equal(dec("500")))
	require.NotNil(t, voucher.Lines[1].PartyID)
	require.Equal(t, int64(10), *voucher.Lines[1].PartyID)
}

func TestPostReceiptHonorsCashAccountOverride(t *testing.T) {
	svc, repo := newFixture(t)
	bank := int64(101)
	rec := seedReceipt(t, repo, "500", &bank)

	_, err := svc.postReceiptTx(context.Background(), repo, rec.ID, 7)
	require.NoError(t, err)

	voucher, ok := repo.ledger.VoucherBySource(ledger.DocumentKindReceipt, rec.Ref)
	require.True(t, ok)
	require.Equal(t, int64(101), voucher.Lines[0].AccountID)
}

func TestPostReceiptIsIdempotent(t *testing.T) {
	svc, repo := newFixture(t)
	rec := seedReceipt(t, repo, "500", nil)

	first, err := svc.postReceiptTx(context.Background(), repo, rec.ID, 7)
	require.NoError(t, err)
	second, err := svc.postReceiptTx(context.Background(), repo, rec.ID, 7)
	require.NoError(t, err)

	require.Equal(t, first.VoucherID, second.VoucherID)
	require.Len(t, repo.ledger.Vouchers, 1)
}

func TestPostPaymentDebitsSupplierCreditsCash(t *testing.T) {
	svc, repo := newFixture(t)
	pay := Payment{
		Ref:     uuid.New(),
		Number:  "PY-000001",
		PartyID: 20,
		Date:    time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		Amount:  dec("750"),
		Status:  StatusDraft,
	}
	id, err := repo.InsertPayment(context.Background(), pay)
	require.NoError(t, err)

	posted, err := svc.postPaymentTx(context.Background(), repo, id, 7)
	require.NoError(t, err)
	require.Equal(t, StatusPosted, posted.Status)

	voucher, ok := repo.ledger.VoucherBySource(ledger.DocumentKindPayment, pay.Ref)
	require.True(t, ok)
	require.Equal(t, int64(210), voucher.Lines[0].AccountID)
	require.True(t, voucher.Lines[0].Debit.Equal(dec("750")))
	require.NotNil(t, voucher.Lines[0].PartyID)
	require.Equal(t, int64(20), *voucher.Lines[0].PartyID)
	require.Equal(t, int64(100), voucher.Lines[1].AccountID)
	require.True(t, voucher.Lines[1].Credit.Equal(dec("750")))
}

func TestPostTransferUsesDocumentAccounts(t *testing.T) {
	svc, repo := newFixture(t)
	tr := CashTransfer{
		Ref:           uuid.New(),
		Number:        "CT-000001",
		FromAccountID: 100,
		ToAccountID:   101,
		Date:          time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		Amount:        dec("200"),
		Status:        StatusDraft,
	}
	id, err := repo.InsertTransfer(context.Background(), tr)
	require.NoError(t, err)

	posted, err := svc.postTransferTx(context.Background(), repo, id, 7)
	require.NoError(t, err)
	require.Equal(t, StatusPosted, posted.Status)

	voucher, ok := repo.ledger.VoucherBySource(ledger.DocumentKindCashTransfer, tr.Ref)
	require.True(t, ok)
	require.Len(t, voucher.Lines, 2)
	require.Equal(t, int64(101), voucher.Lines[0].AccountID)
	require.True(t, voucher.Lines[0].Debit.Equal(dec("200")))
	require.Equal(t, int64(100), voucher.Lines[1].AccountID)
	require.True(t, voucher.Lines[1].Credit.Equal(dec("200")))
}

func TestCreateTransferRejectsSameAccount(t *testing.T) {
	svc, _ := newFixture(t)
	_, err := svc.CreateTransfer(context.Background(), CreateTransferInput{
		FromAccountID: 100,
		ToAccountID:   100,
		Date:          time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		Amount:        dec("200"),
	}, 7)
	require.ErrorIs(t, err, ErrSameAccount)
}

func TestClearInboundChequePostsBankAgainstCustomer(t *testing.T) {
	svc, repo := newFixture(t)
	chq := seedCheque(t, repo, ChequeInbound, "900")

	cleared, err := svc.clearChequeTx(context.Background(), repo, chq.ID, time.Date(2026, 3, 18, 0, 0, 0, 0, time.UTC), 7)
	require.NoError(t, err)
	require.Equal(t, ChequeStatusCleared, cleared.Status)
	require.NotNil(t, cleared.VoucherID)
	require.NotNil(t, cleared.ClearedAt)

	voucher, ok := repo.ledger.VoucherBySource(ledger.DocumentKindCheque, chq.Ref)
	require.True(t, ok)
	require.Equal(t, int64(101), voucher.Lines[0].AccountID)
	require.True(t, voucher.Lines[0].Debit.Equal(dec("900")))
	require.Equal(t, int64(110), voucher.Lines[1].AccountID)
	require.NotNil(t, voucher.Lines[1].PartyID)
	require.Equal(t, int64(10), *voucher.Lines[1].PartyID)
}

func TestClearOutboundChequeMirrorsLines(t *testing.T) {
	svc, repo := newFixture(t)
	chq := seedCheque(t, repo, ChequeOutbound, "900")

	_, err := svc.clearChequeTx(context.Background(), repo, chq.ID, time.Date(2026, 3, 18, 0, 0, 0, 0, time.UTC), 7)
	require.NoError(t, err)

	voucher, ok := repo.ledger.VoucherBySource(ledger.DocumentKindCheque, chq.Ref)
	require.True(t, ok)
	require.Equal(t, int64(101), voucher.Lines[0].AccountID, "resolved debit account carries the party side for outbound")
	require.True(t, voucher.Lines[0].Debit.Equal(dec("900")))
	require.Equal(t, int64(110), voucher.Lines[1].AccountID)
	require.True(t, voucher.Lines[1].Credit.Equal(dec("900")))
}

func TestClearChequeIsIdempotent(t *testing.T) {
	svc, repo := newFixture(t)
	chq := seedCheque(t, repo, ChequeInbound, "900")
	when := time.Date(2026, 3, 18, 0, 0, 0, 0, time.UTC)

	first, err := svc.clearChequeTx(context.Background(), repo, chq.ID, when, 7)
	require.NoError(t, err)
	second, err := svc.clearChequeTx(context.Background(), repo, chq.ID, when, 7)
	require.NoError(t, err)

	require.Equal(t, first.VoucherID, second.VoucherID)
	require.Len(t, repo.ledger.Vouchers, 1)
}

func TestBounceIssuedChequeMarksOnly(t *testing.T) {
	svc, repo := newFixture(t)
	chq := seedCheque(t, repo, ChequeInbound, "900")

	bounced, err := svc.bounceChequeTx(context.Background(), repo, chq.ID, time.Time{}, 7)
	require.NoError(t, err)
	require.Equal(t, ChequeStatusBounced, bounced.Status)
	require.NotNil(t, bounced.BouncedAt)
	require.Empty(t, repo.ledger.Vouchers)
}

func TestBounceClearedChequeReversesVoucher(t *testing.T) {
	svc, repo := newFixture(t)
	chq := seedCheque(t, repo, ChequeInbound, "900")

	_, err := svc.clearChequeTx(context.Background(), repo, chq.ID, time.Date(2026, 3, 18, 0, 0, 0, 0, time.UTC), 7)
	require.NoError(t, err)

	bounced, err := svc.bounceChequeTx(context.Background(), repo, chq.ID, time.Date(2026, 3, 25, 0, 0, 0, 0, time.UTC), 7)
	require.NoError(t, err)
	require.Equal(t, ChequeStatusBounced, bounced.Status)
	require.Len(t, repo.ledger.Vouchers, 2, "reversal voucher follows the settlement")

	reversal := repo.ledger.Vouchers[int64(len(repo.ledger.Vouchers))]
	require.Len(t, reversal.Lines, 2)
	require.Equal(t, int64(101), reversal.Lines[0].AccountID)
	require.True(t, reversal.Lines[0].Credit.Equal(dec("900")), "bank entry comes back out")
	require.Equal(t, int64(110), reversal.Lines[1].AccountID)
	require.True(t, reversal.Lines[1].Debit.Equal(dec("900")), "customer balance is restored")
}

func TestBounceClearedChequeRejectsSecondClear(t *testing.T) {
	svc, repo := newFixture(t)
	chq := seedCheque(t, repo, ChequeInbound, "900")

	_, err := svc.bounceChequeTx(context.Background(), repo, chq.ID, time.Time{}, 7)
	require.NoError(t, err)

	_, err = svc.clearChequeTx(context.Background(), repo, chq.ID, time.Time{}, 7)
	require.ErrorIs(t, err, ErrChequeNotIssued)
}

func TestPostCancelledReceiptRejected(t *testing.T) {
	svc, repo := newFixture(t)
	rec := seedReceipt(t, repo, "500", nil)
	cancelled := repo.receipts[rec.ID]
	cancelled.Status = StatusCancelled
	repo.receipts[rec.ID] = cancelled

	_, err := svc.postReceiptTx(context.Background(), repo, rec.ID, 7)
	require.ErrorIs(t, err, ErrDocumentCancelled)
}
