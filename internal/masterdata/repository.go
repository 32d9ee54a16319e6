package masterdata

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for master data.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetBranch returns a branch by id.
func (r *Repository) GetBranch(ctx context.Context, id int64) (Branch, error) {
	var b Branch
	err := r.pool.QueryRow(ctx, `SELECT id, code, name, COALESCE(address,''), is_active, created_at, updated_at FROM branches WHERE id=$1`, id).
		Scan(&b.ID, &b.Code, &b.Name, &b.Address, &b.IsActive, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Branch{}, ErrBranchNotFound
		}
		return Branch{}, err
	}
	return b, nil
}

// GetWarehouse returns a warehouse by id.
func (r *Repository) GetWarehouse(ctx context.Context, id int64) (Warehouse, error) {
	var w Warehouse
	err := r.pool.QueryRow(ctx, `SELECT id, branch_id, code, name, COALESCE(address,''), is_active, created_at, updated_at FROM warehouses WHERE id=$1`, id).
		Scan(&w.ID, &w.BranchID, &w.Code, &w.Name, &w.Address, &w.IsActive, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Warehouse{}, ErrWarehouseNotFound
		}
		return Warehouse{}, err
	}
	return w, nil
}

// GetParty returns a party by id.
func (r *Repository) GetParty(ctx context.Context, id int64) (Party, error) {
	var p Party
	var kind string
	err := r.pool.QueryRow(ctx, `SELECT id, kind, code, name, COALESCE(phone,''), COALESCE(email,''), COALESCE(address,''), is_active, created_at, updated_at FROM parties WHERE id=$1`, id).
		Scan(&p.ID, &kind, &p.Code, &p.Name, &p.Phone, &p.Email, &p.Address, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Party{}, ErrPartyNotFound
		}
		return Party{}, err
	}
	p.Kind = PartyKind(kind)
	return p, nil
}

// GetProduct returns a product by id.
func (r *Repository) GetProduct(ctx context.Context, id int64) (Product, error) {
	var p Product
	err := r.pool.QueryRow(ctx, `SELECT id, sku, name, COALESCE(unit_name,''), sale_price, cost_price, tax_rate_id, is_active, created_at, updated_at FROM products WHERE id=$1`, id).
		Scan(&p.ID, &p.SKU, &p.Name, &p.UnitName, &p.SalePrice, &p.CostPrice, &p.TaxRateID, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrProductNotFound
		}
		return Product{}, err
	}
	return p, nil
}

// GetTaxRate returns a tax rate by id.
func (r *Repository) GetTaxRate(ctx context.Context, id int64) (TaxRate, error) {
	var t TaxRate
	err := r.pool.QueryRow(ctx, `SELECT id, code, name, percent, is_active FROM tax_rates WHERE id=$1`, id).
		Scan(&t.ID, &t.Code, &t.Name, &t.Percent, &t.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TaxRate{}, ErrTaxRateNotFound
		}
		return TaxRate{}, err
	}
	return t, nil
}

// GetAssetCategory returns an asset category by id.
func (r *Repository) GetAssetCategory(ctx context.Context, id int64) (AssetCategory, error) {
	var c AssetCategory
	err := r.pool.QueryRow(ctx, `SELECT id, code, name, default_life_months, default_residual_percent, is_active FROM asset_categories WHERE id=$1`, id).
		Scan(&c.ID, &c.Code, &c.Name, &c.DefaultLifeMonths, &c.DefaultResidualPercent, &c.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AssetCategory{}, ErrCategoryNotFound
		}
		return AssetCategory{}, err
	}
	return c, nil
}

// GetEmployee returns an employee by id.
func (r *Repository) GetEmployee(ctx context.Context, id int64) (Employee, error) {
	var e Employee
	err := r.pool.QueryRow(ctx, `SELECT id, party_id, code, name, branch_id, basic_salary, is_active, joined_at FROM employees WHERE id=$1`, id).
		Scan(&e.ID, &e.PartyID, &e.Code, &e.Name, &e.BranchID, &e.BasicSalary, &e.IsActive, &e.JoinedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Employee{}, ErrEmployeeNotFound
		}
		return Employee{}, err
	}
	return e, nil
}

// ListEmployees returns active employees, optionally scoped to a branch.
func (r *Repository) ListEmployees(ctx context.Context, branchID *int64) ([]Employee, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, party_id, code, name, branch_id, basic_salary, is_active, joined_at
FROM employees WHERE is_active AND ($1::bigint IS NULL OR branch_id=$1) ORDER BY code`, branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Employee
	for rows.Next() {
		var e Employee
		if err := rows.Scan(&e.ID, &e.PartyID, &e.Code, &e.Name, &e.BranchID, &e.BasicSalary, &e.IsActive, &e.JoinedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListParties returns parties matching filters.
func (r *Repository) ListParties(ctx context.Context, filters ListFilters) ([]Party, error) {
	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT id, kind, code, name, COALESCE(phone,''), COALESCE(email,''), COALESCE(address,''), is_active, created_at, updated_at
FROM parties
WHERE ($1::text IS NULL OR kind=$1)
  AND ($2::bool IS NULL OR is_active=$2)
  AND ($3 = '' OR name ILIKE '%'||$3||'%' OR code ILIKE '%'||$3||'%')
ORDER BY code LIMIT $4`, filters.Kind, filters.IsActive, filters.Search, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Party
	for rows.Next() {
		var p Party
		var kind string
		if err := rows.Scan(&p.ID, &kind, &p.Code, &p.Name, &p.Phone, &p.Email, &p.Address, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.Kind = PartyKind(kind)
		out = append(out, p)
	}
	return out, rows.Err()
}
