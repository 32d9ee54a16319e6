package purchasing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/fiscal"
	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/inventory/inventorytest"
	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/ledger/ledgertest"
	"github.com/meridian-erp/meridian-erp/internal/masterdata"
	"github.com/meridian-erp/meridian-erp/internal/sequence"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type staticRefs struct {
	parties    map[int64]masterdata.Party
	warehouses map[int64]masterdata.Warehouse
	products   map[int64]masterdata.Product
	taxes      map[int64]masterdata.TaxRate
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

func (s *staticRefs) RequireActiveWarehouse(_ context.Context, id int64) (masterdata.Warehouse, error) {
	wh, ok := s.warehouses[id]
	if !ok {
		return masterdata.Warehouse{}, masterdata.ErrWarehouseNotFound
	}
	return wh, nil
}

func (s *staticRefs) RequireActiveProduct(_ context.Context, id int64) (masterdata.Product, error) {
	product, ok := s.products[id]
	if !ok {
		return masterdata.Product{}, masterdata.ErrProductNotFound
	}
	return product, nil
}

func (s *staticRefs) GetTaxRate(_ context.Context, id int64) (masterdata.TaxRate, error) {
	rate, ok := s.taxes[id]
	if !ok {
		return masterdata.TaxRate{}, masterdata.ErrTaxRateNotFound
	}
	return rate, nil
}

type memoryRepo struct {
	invoices map[int64]Invoice
	ledger   *ledgertest.Memory
	stock    *inventorytest.Memory
	nextID   int64
}

func (m *memoryRepo) GetInvoiceForUpdate(_ context.Context, id int64) (Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return Invoice{}, ErrInvoiceNotFound
	}
	return inv, nil
}

func (m *memoryRepo) InsertInvoice(_ context.Context, inv Invoice) (int64, error) {
	m.nextID++
	inv.ID = m.nextID
	m.invoices[inv.ID] = inv
	return inv.ID, nil
}

func (m *memoryRepo) UpdateInvoiceHeader(_ context.Context, inv Invoice) error {
	m.invoices[inv.ID] = inv
	return nil
}

func (m *memoryRepo) ReplaceLines(_ context.Context, invoiceID int64, lines []Line) error {
	inv := m.invoices[invoiceID]
	inv.Lines = lines
	m.invoices[invoiceID] = inv
	return nil
}

func (m *memoryRepo) SetPosted(_ context.Context, invoiceID, voucherID int64, postedAt time.Time) error {
	inv := m.invoices[invoiceID]
	inv.Status = StatusPosted
	inv.VoucherID = &voucherID
	inv.PostedAt = &postedAt
	m.invoices[invoiceID] = inv
	return nil
}

func (m *memoryRepo) SetStatus(_ context.Context, invoiceID int64, status Status) error {
	inv := m.invoices[invoiceID]
	inv.Status = status
	m.invoices[invoiceID] = inv
	return nil
}

func (m *memoryRepo) Sequences() sequence.TxRepository { return m.ledger.Sequences() }
func (m *memoryRepo) Stock() inventory.TxRepository    { return m.stock }
func (m *memoryRepo) Ledger() ledger.TxRepository      { return m.ledger }

func newFixture(t *testing.T) (*Service, *memoryRepo) {
	t.Helper()
	ml := ledgertest.New()
	ml.AddAccount(130, "1300", ledger.AccountTypeAsset)     // inventory
	ml.AddAccount(210, "2100", ledger.AccountTypeLiability) // payable
	ml.AddAccount(406, "4060", ledger.AccountTypeRevenue)   // discounts received
	ml.AddAccount(140, "1400", ledger.AccountTypeAsset)     // input tax
	discount, tax := int64(406), int64(140)
	ml.AddRule(ledger.PostingRule{
		ID: 1, DocumentKind: ledger.DocumentKindPurchaseInvoice,
		DebitAccountID: 130, CreditAccountID: 210,
		DiscountAccountID: &discount, TaxAccountID: &tax,
	})
	ml.AddSeries(ledger.EntityTypeVoucher, "JV-")
	ml.AddSeries(EntityType, "PI-")
	ml.OpenYear(2026)

	stock := inventorytest.New()
	stock.Seed(1, 1, dec("10"), dec("100"))

	refs := &staticRefs{
		parties: map[int64]masterdata.Party{
			20: {ID: 20, Kind: masterdata.PartyKindSupplier, IsActive: true},
		},
		warehouses: map[int64]masterdata.Warehouse{1: {ID: 1, IsActive: true}},
		products: map[int64]masterdata.Product{
			1: {ID: 1, SKU: "WIDGET", CostPrice: dec("100"), IsActive: true},
		},
		taxes: map[int64]masterdata.TaxRate{5: {ID: 5, Code: "VAT", Percent: dec("5")}},
	}

	poster := ledger.NewPoster(sequence.NewSequencer(), fiscal.NewCalendar())
	svc := NewService(nil, nil, refs, inventory.NewLedger(false), poster, nil)
	svc.WithNow(func() time.Time { return time.Date(2026, 3, 20, 9, 0, 0, 0, time.UTC) })

	repo := &memoryRepo{invoices: map[int64]Invoice{}, ledger: ml, stock: stock}
	return svc, repo
}

func draftInvoice(t *testing.T, svc *Service, repo *memoryRepo, qty, cost string) Invoice {
	t.Helper()
	lines, err := svc.buildLines(context.Background(), []LineInput{
		{ProductID: 1, Qty: dec(qty), UnitCost: dec(cost)},
	})
	require.NoError(t, err)

	subtotal, discount, tax, grand := totals(lines)
	inv := Invoice{
		Ref:        uuid.New(),
		SupplierID: 20, WarehouseID: 1,
		Date:     time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		Status:   StatusDraft,
		Number:   "PI-000001",
		Subtotal: subtotal, DiscountTotal: discount, TaxTotal: tax, GrandTotal: grand,
		Lines: lines,
	}
	id, err := repo.InsertInvoice(context.Background(), inv)
	require.NoError(t, err)
	inv.ID = id
	require.NoError(t, repo.ReplaceLines(context.Background(), id, lines))
	return inv
}

func TestPostReceivesStockAtCost(t *testing.T) {
	svc, repo := newFixture(t)
	inv := draftInvoice(t, svc, repo, "5", "130")

	posted, err := svc.postTx(context.Background(), repo, inv.ID, 7)
	require.NoError(t, err)
	require.Equal(t, StatusPosted, posted.Status)

	// 10@100 + 5@130 = 15@110
	item := repo.stock.Item(1, 1)
	require.True(t, item.QtyOnHand.Equal(dec("15")))
	require.True(t, item.AvgCost.Equal(dec("110")), "got %s", item.AvgCost)
}

func TestPostBuildsMirroredVoucher(t *testing.T) {
	svc, repo := newFixture(t)
	taxID := int64(5)
	lines, err := svc.buildLines(context.Background(), []LineInput{
		{ProductID: 1, Qty: dec("5"), UnitCost: dec("130"), DiscountPercent: dec("10"), TaxRateID: &taxID},
	})
	require.NoError(t, err)

	subtotal, discount, tax, grand := totals(lines)
	inv := Invoice{
		Ref:        uuid.New(),
		SupplierID: 20, WarehouseID: 1,
		Date:     time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		Status:   StatusDraft,
		Number:   "PI-000002",
		Subtotal: subtotal, DiscountTotal: discount, TaxTotal: tax, GrandTotal: grand,
		Lines: lines,
	}
	id, err := repo.InsertInvoice(context.Background(), inv)
	require.NoError(t, err)
	require.NoError(t, repo.ReplaceLines(context.Background(), id, lines))

	_, err = svc.postTx(context.Background(), repo, id, 7)
	require.NoError(t, err)

	// 650 gross, 65 discount, 585 net, 29.25 tax, 614.25 payable
	voucher, ok := repo.ledger.VoucherBySource(ledger.DocumentKindPurchaseInvoice, inv.Ref)
	require.True(t, ok)
	require.Len(t, voucher.Lines, 4)
	require.True(t, voucher.Lines[0].Debit.Equal(dec("650")))
	require.Equal(t, int64(130), voucher.Lines[0].AccountID)
	require.True(t, voucher.Lines[1].Credit.Equal(dec("614.25")))
	require.Equal(t, int64(210), voucher.Lines[1].AccountID)
	require.True(t, voucher.Lines[2].Credit.Equal(dec("65")))
	require.True(t, voucher.Lines[3].Debit.Equal(dec("29.25")))

	debit, credit := decimal.Zero, decimal.Zero
	for _, line := range voucher.Lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	require.True(t, debit.Equal(credit))
}

func TestPostIsIdempotent(t *testing.T) {
	svc, repo := newFixture(t)
	inv := draftInvoice(t, svc, repo, "5", "130")

	_, err := svc.postTx(context.Background(), repo, inv.ID, 7)
	require.NoError(t, err)
	_, err = svc.postTx(context.Background(), repo, inv.ID, 7)
	require.NoError(t, err)

	require.Len(t, repo.ledger.Vouchers, 1)
	require.True(t, repo.stock.Item(1, 1).QtyOnHand.Equal(dec("15")), "no double receipt")
}

func TestBuildLinesFallsBackToCostPrice(t *testing.T) {
	svc, _ := newFixture(t)

	lines, err := svc.buildLines(context.Background(), []LineInput{{ProductID: 1, Qty: dec("2")}})
	require.NoError(t, err)
	require.True(t, lines[0].UnitCost.Equal(dec("100")))
	require.True(t, lines[0].Total.Equal(dec("200")))
}

func TestBuildVoucherLinesRequiresConfiguredAccounts(t *testing.T) {
	inv := Invoice{
		SupplierID:    20,
		Subtotal:      dec("650"),
		DiscountTotal: dec("65"),
		TaxTotal:      dec("29.25"),
		GrandTotal:    dec("614.25"),
	}
	rule := ledger.PostingRule{DebitAccountID: 130, CreditAccountID: 210}

	_, err := buildVoucherLines(inv, rule)
	require.ErrorIs(t, err, ErrNoDiscountAccount)

	discount := int64(406)
	rule.DiscountAccountID = &discount
	_, err = buildVoucherLines(inv, rule)
	require.ErrorIs(t, err, ErrNoTaxAccount)
}
