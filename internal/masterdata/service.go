package masterdata

import (
	"context"
	"errors"
	"fmt"

	"github.com/meridian-erp/meridian-erp/internal/platform/cache"
)

// RepositoryPort abstracts the lookups used by the service.
type RepositoryPort interface {
	GetBranch(ctx context.Context, id int64) (Branch, error)
	GetWarehouse(ctx context.Context, id int64) (Warehouse, error)
	GetParty(ctx context.Context, id int64) (Party, error)
	GetProduct(ctx context.Context, id int64) (Product, error)
	GetTaxRate(ctx context.Context, id int64) (TaxRate, error)
	GetAssetCategory(ctx context.Context, id int64) (AssetCategory, error)
	GetEmployee(ctx context.Context, id int64) (Employee, error)
	ListEmployees(ctx context.Context, branchID *int64) ([]Employee, error)
	ListParties(ctx context.Context, filters ListFilters) ([]Party, error)
}

// Service is the reference-data provider consumed by document orchestrators.
type Service struct {
	repo  RepositoryPort
	cache *cache.RefData
}

// NewService constructs a Service.
func NewService(repo RepositoryPort, refCache *cache.RefData) *Service {
	return &Service{repo: repo, cache: refCache}
}

// RequireActiveParty loads a party of the expected kind and rejects inactive ones.
func (s *Service) RequireActiveParty(ctx context.Context, id int64, kind PartyKind) (Party, error) {
	party, err := s.repo.GetParty(ctx, id)
	if err != nil {
		return Party{}, err
	}
	if party.Kind != kind {
		return Party{}, fmt.Errorf("masterdata: party %d is %s, expected %s: %w", id, party.Kind, kind, ErrPartyNotFound)
	}
	if !party.IsActive {
		return Party{}, ErrPartyInactive
	}
	return party, nil
}

// RequireActiveWarehouse loads an active warehouse.
func (s *Service) RequireActiveWarehouse(ctx context.Context, id int64) (Warehouse, error) {
	wh, err := s.repo.GetWarehouse(ctx, id)
	if err != nil {
		return Warehouse{}, err
	}
	if !wh.IsActive {
		return Warehouse{}, ErrWarehouseInactive
	}
	return wh, nil
}

// RequireActiveProduct loads an active product.
func (s *Service) RequireActiveProduct(ctx context.Context, id int64) (Product, error) {
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if !product.IsActive {
		return Product{}, ErrProductInactive
	}
	return product, nil
}

// GetTaxRate returns a tax rate, read-through cached.
func (s *Service) GetTaxRate(ctx context.Context, id int64) (TaxRate, error) {
	key := fmt.Sprintf("masterdata:tax:%d", id)
	var rate TaxRate
	if err := s.cache.Get(ctx, key, &rate); err == nil {
		return rate, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		return TaxRate{}, err
	}
	rate, err := s.repo.GetTaxRate(ctx, id)
	if err != nil {
		return TaxRate{}, err
	}
	_ = s.cache.Set(ctx, key, rate)
	return rate, nil
}

// GetAssetCategory returns the depreciation defaults for a category.
func (s *Service) GetAssetCategory(ctx context.Context, id int64) (AssetCategory, error) {
	return s.repo.GetAssetCategory(ctx, id)
}

// GetBranch returns a branch.
func (s *Service) GetBranch(ctx context.Context, id int64) (Branch, error) {
	return s.repo.GetBranch(ctx, id)
}

// GetEmployee returns an employee.
func (s *Service) GetEmployee(ctx context.Context, id int64) (Employee, error) {
	return s.repo.GetEmployee(ctx, id)
}

// ListActiveEmployees returns active employees for a payroll run.
func (s *Service) ListActiveEmployees(ctx context.Context, branchID *int64) ([]Employee, error) {
	return s.repo.ListEmployees(ctx, branchID)
}

// ListParties returns parties matching filters.
func (s *Service) ListParties(ctx context.Context, filters ListFilters) ([]Party, error) {
	return s.repo.ListParties(ctx, filters)
}
