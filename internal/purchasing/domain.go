package purchasing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Status tracks the invoice lifecycle. Posted invoices are immutable.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusApproved  Status = "APPROVED"
	StatusPosted    Status = "POSTED"
	StatusCancelled Status = "CANCELLED"
)

// EntityType is the number series entity for purchase invoices.
const EntityType = "PURCHASE_INVOICE"

// Invoice is a supplier invoice.
type Invoice struct {
	ID            int64           `json:"id"`
	Ref           uuid.UUID       `json:"ref"`
	Number        string          `json:"number"`
	SupplierID    int64           `json:"supplier_id"`
	BranchID      *int64          `json:"branch_id,omitempty"`
	WarehouseID   int64           `json:"warehouse_id"`
	Date          time.Time       `json:"date"`
	SupplierRef   string          `json:"supplier_ref,omitempty"`
	Status        Status          `json:"status"`
	Memo          string          `json:"memo,omitempty"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	DiscountTotal decimal.Decimal `json:"discount_total"`
	TaxTotal      decimal.Decimal `json:"tax_total"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
	VoucherID     *int64          `json:"voucher_id,omitempty"`
	PostedAt      *time.Time      `json:"posted_at,omitempty"`
	CreatedBy     int64           `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Lines         []Line          `json:"lines"`
}

// Line is one received product.
type Line struct {
	ID             int64           `json:"id"`
	InvoiceID      int64           `json:"invoice_id"`
	LineNo         int             `json:"line_no"`
	ProductID      int64           `json:"product_id"`
	Qty            decimal.Decimal `json:"qty"`
	UnitCost       decimal.Decimal `json:"unit_cost"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TaxRateID      *int64          `json:"tax_rate_id,omitempty"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	Total          decimal.Decimal `json:"total"`
}

// LineInput describes one requested line. Zero UnitCost falls back to the
// product's cost price; nil TaxRateID falls back to the product default.
type LineInput struct {
	ProductID       int64           `json:"product_id" validate:"required"`
	Qty             decimal.Decimal `json:"qty" validate:"required"`
	UnitCost        decimal.Decimal `json:"unit_cost"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	TaxRateID       *int64          `json:"tax_rate_id"`
}

// CreateInput describes a new invoice.
type CreateInput struct {
	SupplierID  int64       `json:"supplier_id" validate:"required"`
	WarehouseID int64       `json:"warehouse_id" validate:"required"`
	BranchID    *int64      `json:"branch_id"`
	Date        time.Time   `json:"date" validate:"required"`
	SupplierRef string      `json:"supplier_ref"`
	Memo        string      `json:"memo"`
	Lines       []LineInput `json:"lines" validate:"required,min=1,dive"`
}

var (
	// ErrInvoiceNotFound indicates a missing invoice.
	ErrInvoiceNotFound = fmt.Errorf("purchasing: invoice %w", shared.ErrNotFound)
	// ErrInvoicePosted indicates a mutation attempt on a posted invoice.
	ErrInvoicePosted = fmt.Errorf("purchasing: invoice already posted: %w", shared.ErrConflict)
	// ErrInvoiceCancelled indicates a posting attempt on a cancelled invoice.
	ErrInvoiceCancelled = fmt.Errorf("purchasing: invoice cancelled: %w", shared.ErrConflict)
	// ErrNoLines indicates an invoice without lines.
	ErrNoLines = fmt.Errorf("purchasing: invoice requires at least one line: %w", shared.ErrInvariant)
	// ErrNonPositiveQty indicates a zero or negative line quantity.
	ErrNonPositiveQty = fmt.Errorf("purchasing: line quantity must be positive: %w", shared.ErrInvariant)
	// ErrNegativeCost indicates a negative unit cost.
	ErrNegativeCost = fmt.Errorf("purchasing: unit cost must not be negative: %w", shared.ErrInvariant)
	// ErrNoDiscountAccount indicates a discounted invoice without a configured
	// discount account on the posting rule.
	ErrNoDiscountAccount = fmt.Errorf("purchasing: posting rule has no discount account: %w", shared.ErrConfiguration)
	// ErrNoTaxAccount indicates a taxed invoice without a configured tax
	// account on the posting rule.
	ErrNoTaxAccount = fmt.Errorf("purchasing: posting rule has no tax account: %w", shared.ErrConfiguration)
)
