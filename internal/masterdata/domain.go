package masterdata

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Branch represents a branch entity.
type Branch struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Warehouse represents a storage location scoped to a branch.
type Warehouse struct {
	ID        int64     `json:"id"`
	BranchID  int64     `json:"branch_id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PartyKind distinguishes customers from suppliers.
type PartyKind string

const (
	PartyKindCustomer PartyKind = "CUSTOMER"
	PartyKindSupplier PartyKind = "SUPPLIER"
	PartyKindEmployee PartyKind = "EMPLOYEE"
)

// Party represents a customer, supplier or employee master record.
type Party struct {
	ID        int64     `json:"id"`
	Kind      PartyKind `json:"kind"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email"`
	Address   string    `json:"address"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TaxRate represents a tax configuration.
type TaxRate struct {
	ID       int64           `json:"id"`
	Code     string          `json:"code"`
	Name     string          `json:"name"`
	Percent  decimal.Decimal `json:"percent"`
	IsActive bool            `json:"is_active"`
}

// Product represents a sellable/purchasable item.
type Product struct {
	ID        int64           `json:"id"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	UnitName  string          `json:"unit_name"`
	SalePrice decimal.Decimal `json:"sale_price"`
	CostPrice decimal.Decimal `json:"cost_price"`
	TaxRateID *int64          `json:"tax_rate_id"`
	IsActive  bool            `json:"is_active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// AssetCategory carries depreciation defaults for fixed assets.
type AssetCategory struct {
	ID                     int64           `json:"id"`
	Code                   string          `json:"code"`
	Name                   string          `json:"name"`
	DefaultLifeMonths      int             `json:"default_life_months"`
	DefaultResidualPercent decimal.Decimal `json:"default_residual_percent"`
	IsActive               bool            `json:"is_active"`
}

// Employee represents a payroll subject.
type Employee struct {
	ID          int64           `json:"id"`
	PartyID     int64           `json:"party_id"`
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	BranchID    *int64          `json:"branch_id"`
	BasicSalary decimal.Decimal `json:"basic_salary"`
	IsActive    bool            `json:"is_active"`
	JoinedAt    time.Time       `json:"joined_at"`
}

// Module-scoped not-found sentinels wrapping the shared category.
var (
	ErrBranchNotFound    = fmt.Errorf("masterdata: branch %w", shared.ErrNotFound)
	ErrWarehouseNotFound = fmt.Errorf("masterdata: warehouse %w", shared.ErrNotFound)
	ErrPartyNotFound     = fmt.Errorf("masterdata: party %w", shared.ErrNotFound)
	ErrProductNotFound   = fmt.Errorf("masterdata: product %w", shared.ErrNotFound)
	ErrTaxRateNotFound   = fmt.Errorf("masterdata: tax rate %w", shared.ErrNotFound)
	ErrCategoryNotFound  = fmt.Errorf("masterdata: asset category %w", shared.ErrNotFound)
	ErrEmployeeNotFound  = fmt.Errorf("masterdata: employee %w", shared.ErrNotFound)
	ErrPartyInactive     = fmt.Errorf("masterdata: party inactive: %w", shared.ErrConflict)
	ErrWarehouseInactive = fmt.Errorf("masterdata: warehouse inactive: %w", shared.ErrConflict)
	ErrProductInactive   = fmt.Errorf("masterdata: product inactive: %w", shared.ErrConflict)
)

// ListFilters represents standard list filters.
type ListFilters struct {
	Page     int
	Limit    int
	Search   string
	IsActive *bool
	BranchID *int64
	Kind     *PartyKind
}
