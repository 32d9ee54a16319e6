package sales

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/masterdata"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/sequence"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

var hundred = decimal.NewFromInt(100)

// MasterdataPort exposes the reference-data checks the orchestrator needs.
type MasterdataPort interface {
	RequireActiveParty(ctx context.Context, id int64, kind masterdata.PartyKind) (masterdata.Party, error)
	RequireActiveWarehouse(ctx context.Context, id int64) (masterdata.Warehouse, error)
	RequireActiveProduct(ctx context.Context, id int64) (masterdata.Product, error)
	GetTaxRate(ctx context.Context, id int64) (masterdata.TaxRate, error)
}

// TxRepository exposes the transactional invoice operations.
type TxRepository interface {
	GetInvoiceForUpdate(ctx context.Context, id int64) (Invoice, error)
	InsertInvoice(ctx context.Context, inv Invoice) (int64, error)
	UpdateInvoiceHeader(ctx context.Context, inv Invoice) error
	ReplaceLines(ctx context.Context, invoiceID int64, lines []Line) error
	SetPosted(ctx context.Context, invoiceID, voucherID int64, postedAt time.Time) error
	SetStatus(ctx context.Context, invoiceID int64, status Status) error
	Sequences() sequence.TxRepository
	Stock() inventory.TxRepository
	Ledger() ledger.TxRepository
}

// Service orchestrates the sales invoice lifecycle.
type Service struct {
	pool      *pgxpool.Pool
	repo      *Repository
	refs      MasterdataPort
	sequencer *sequence.Sequencer
	stock     *inventory.Ledger
	poster    *ledger.Poster
	resolver  *ledger.Resolver
	audit     AuditPort
	now       func() time.Time
}

// AuditPort records lifecycle events.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// NewService constructs the sales service.
func NewService(pool *pgxpool.Pool, repo *Repository, refs MasterdataPort, stock *inventory.Ledger, poster *ledger.Poster, audit AuditPort) *Service {
	return &Service{
		pool:      pool,
		repo:      repo,
		refs:      refs,
		sequencer: sequence.NewSequencer(),
		stock:     stock,
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

// buildLines validates products, applies price and tax fallbacks and
// computes per-line amounts at two decimals.
func (s *Service) buildLines(ctx context.Context, inputs []LineInput) ([]Line, error) {
	if len(inputs) == 0 {
		return nil, ErrNoLines
	}
	lines := make([]Line, 0, len(inputs))
	for i, in := range inputs {
		if !in.Qty.IsPositive() {
			return nil, ErrNonPositiveQty
		}
		if in.UnitPrice.IsNegative() {
			return nil, ErrNegativePrice
		}
		product, err := s.refs.RequireActiveProduct(ctx, in.ProductID)
		if err != nil {
			return nil, err
		}

		price := in.UnitPrice
		if price.IsZero() {
			price = product.SalePrice
		}
		taxRateID := in.TaxRateID
		if taxRateID == nil {
			taxRateID = product.TaxRateID
		}

		gross := in.Qty.Mul(price).Round(2)
		discount := gross.Mul(in.DiscountPercent).Div(hundred).Round(2)
		net := gross.Sub(discount)

		tax := decimal.Zero
		if taxRateID != nil {
			rate, err := s.refs.GetTaxRate(ctx, *taxRateID)
			if err != nil {
				return nil, err
			}
			tax = net.Mul(rate.Percent).Div(hundred).Round(2)
		}

		lines = append(lines, Line{
			LineNo:         i + 1,
			ProductID:      in.ProductID,
			Qty:            in.Qty,
			UnitPrice:      price,
			DiscountAmount: discount,
			TaxRateID:      taxRateID,
			TaxAmount:      tax,
			Total:          net.Add(tax),
		})
	}
	return lines, nil
}

func totals(lines []Line) (subtotal, discount, tax, grand decimal.Decimal) {
	for _, line := range lines {
		gross := line.Qty.Mul(line.UnitPrice).Round(2)
		subtotal = subtotal.Add(gross)
		discount = discount.Add(line.DiscountAmount)
		tax = tax.Add(line.TaxAmount)
		grand = grand.Add(line.Total)
	}
	return subtotal, discount, tax, grand
}

// Create validates the input and persists a numbered draft invoice.
func (s *Service) Create(ctx context.Context, in CreateInput, actorID int64) (Invoice, error) {
	if _, err := s.refs.RequireActiveParty(ctx, in.CustomerID, masterdata.PartyKindCustomer); err != nil {
		return Invoice{}, err
	}
	if _, err := s.refs.RequireActiveWarehouse(ctx, in.WarehouseID); err != nil {
		return Invoice{}, err
	}
	lines, err := s.buildLines(ctx, in.Lines)
	if err != nil {
		return Invoice{}, err
	}

	subtotal, discount, tax, grand := totals(lines)
	invoice := Invoice{
		Ref:           uuid.New(),
		CustomerID:    in.CustomerID,
		BranchID:      in.BranchID,
		WarehouseID:   in.WarehouseID,
		Date:          in.Date,
		Status:        StatusDraft,
		Memo:          in.Memo,
		Subtotal:      subtotal,
		DiscountTotal: discount,
		TaxTotal:      tax,
		GrandTotal:    grand,
		CreatedBy:     actorID,
		Lines:         lines,
	}

	err = db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		repo := NewPgTxRepository(tx)
		number, err := s.sequencer.Next(ctx, repo.Sequences(), EntityType, in.BranchID)
		if err != nil {
			return err
		}
		invoice.Number = number
		id, err := repo.InsertInvoice(ctx, invoice)
		if err != nil {
			return err
		}
		invoice.ID = id
		for i := range invoice.Lines {
			invoice.Lines[i].InvoiceID = id
		}
		return repo.ReplaceLines(ctx, id, invoice.Lines)
	})
	if err != nil {
		return Invoice{}, err
	}
	s.record(ctx, actorID, "sales.invoice.created", invoice.ID)
	return invoice, nil
}

// Update replaces a draft invoice's header and lines.
func (s *Service) Update(ctx context.Context, id int64, in CreateInput, actorID int64) (Invoice, error) {
	if _, err := s.refs.RequireActiveParty(ctx, in.CustomerID, masterdata.PartyKindCustomer); err != nil {
		return Invoice{}, err
	}
	if _, err := s.refs.RequireActiveWarehouse(ctx, in.WarehouseID); err != nil {
		return Invoice{}, err
	}
	lines, err := s.buildLines(ctx, in.Lines)
	if err != nil {
		return Invoice{}, err
	}

	var invoice Invoice
	err = db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		repo := NewPgTxRepository(tx)
		current, err := repo.GetInvoiceForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.Status == StatusPosted {
			return ErrInvoicePosted
		}
		if current.Status == StatusCancelled {
			return ErrInvoiceCancelled
		}

		subtotal, discount, tax, grand := totals(lines)
		current.CustomerID = in.CustomerID
		current.BranchID = in.BranchID
		current.WarehouseID = in.WarehouseID
		current.Date = in.Date
		current.Memo = in.Memo
		current.Subtotal = subtotal
		current.DiscountTotal = discount
		current.TaxTotal = tax
		current.GrandTotal = grand
		for i := range lines {
			lines[i].InvoiceID = id
		}
		current.Lines = lines

		if err := repo.UpdateInvoiceHeader(ctx, current); err != nil {
			return err
		}
		if err := repo.ReplaceLines(ctx, id, lines); err != nil {
			return err
		}
		invoice = current
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}
	s.record(ctx, actorID, "sales.invoice.updated", id)
	return invoice, nil
}

// Post issues stock and posts the journal voucher in one transaction.
// Posting a posted invoice is a no-op returning the stored document.
func (s *Service) Post(ctx context.Context, id, actorID int64) (Invoice, error) {
	var invoice Invoice
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		repo := NewPgTxRepository(tx)
		var err error
		invoice, err = s.postTx(ctx, repo, id, actorID)
		return err
	})
	if err != nil {
		return Invoice{}, err
	}
	s.record(ctx, actorID, "sales.invoice.posted", id)
	return invoice, nil
}

func (s *Service) postTx(ctx context.Context, repo TxRepository, id, actorID int64) (Invoice, error) {
	invoice, err := repo.GetInvoiceForUpdate(ctx, id)
	if err != nil {
		return Invoice{}, err
	}
	switch invoice.Status {
	case StatusPosted:
		return invoice, nil
	case StatusCancelled:
		return Invoice{}, ErrInvoiceCancelled
	}

	for _, line := range invoice.Lines {
		_, err := s.stock.Apply(ctx, repo.Stock(), inventory.MoveInput{
			ProductID:   line.ProductID,
			WarehouseID: invoice.WarehouseID,
			Kind:        inventory.MoveKindOutbound,
			Qty:         line.Qty,
			SourceKind:  EntityType,
			SourceID:    invoice.Ref,
			MovedAt:     invoice.Date,
		})
		if err != nil {
			return Invoice{}, err
		}
	}

	rule, err := s.resolver.Resolve(ctx, repo.Ledger(), ledger.DocumentKindSalesInvoice)
	if err != nil {
		return Invoice{}, err
	}
	voucherLines, err := buildVoucherLines(invoice, rule)
	if err != nil {
		return Invoice{}, err
	}

	voucher, err := s.poster.Post(ctx, repo.Ledger(), ledger.PostingInput{
		Date:       invoice.Date,
		BranchID:   invoice.BranchID,
		Memo:       "Sales invoice " + invoice.Number,
		SourceKind: ledger.DocumentKindSalesInvoice,
		SourceID:   invoice.Ref,
		PostedBy:   actorID,
		Lines:      voucherLines,
	})
	if err != nil {
		return Invoice{}, err
	}

	postedAt := s.now().UTC()
	if err := repo.SetPosted(ctx, id, voucher.ID, postedAt); err != nil {
		return Invoice{}, err
	}
	invoice.Status = StatusPosted
	invoice.VoucherID = &voucher.ID
	invoice.PostedAt = &postedAt
	return invoice, nil
}

// buildVoucherLines maps invoice totals onto the posting rule: receivable
// for the grand total against gross revenue, with discount and tax split to
// their configured accounts.
func buildVoucherLines(invoice Invoice, rule ledger.PostingRule) ([]ledger.LineInput, error) {
	lines := []ledger.LineInput{
		{AccountID: rule.DebitAccountID, Debit: invoice.GrandTotal, PartyID: &invoice.CustomerID},
		{AccountID: rule.CreditAccountID, Credit: invoice.Subtotal},
	}
	if invoice.DiscountTotal.IsPositive() {
		if rule.DiscountAccountID == nil {
			return nil, ErrNoDiscountAccount
		}
		lines = append(lines, ledger.LineInput{AccountID: *rule.DiscountAccountID, Debit: invoice.DiscountTotal})
	}
	if invoice.TaxTotal.IsPositive() {
		if rule.TaxAccountID == nil {
			return nil, ErrNoTaxAccount
		}
		lines = append(lines, ledger.LineInput{AccountID: *rule.TaxAccountID, Credit: invoice.TaxTotal})
	}
	return lines, nil
}

// Get returns an invoice with lines.
func (s *Service) Get(ctx context.Context, id int64) (Invoice, error) {
	return s.repo.GetInvoice(ctx, id)
}

// List returns invoices, newest first.
func (s *Service) List(ctx context.Context, page shared.Pagination) ([]Invoice, error) {
	return s.repo.ListInvoices(ctx, page)
}

// SetStatus mirrors an approval decision onto a draft invoice.
func (s *Service) SetStatus(ctx context.Context, id int64, status Status) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		repo := NewPgTxRepository(tx)
		invoice, err := repo.GetInvoiceForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if invoice.Status == StatusPosted {
			return ErrInvoicePosted
		}
		return repo.SetStatus(ctx, id, status)
	})
}

func (s *Service) record(ctx context.Context, actorID int64, action string, entityID int64) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   EntityType,
		EntityID: strconv.FormatInt(entityID, 10),
	})
}
