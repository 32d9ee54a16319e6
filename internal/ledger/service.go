package ledger

import "context"

// Service exposes ledger reads for the HTTP layer.
type Service struct {
	repo     *Repository
	resolver *Resolver
}

// NewService constructs the ledger read service.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo, resolver: NewResolver()}
}

// ListAccounts returns the chart of accounts.
func (s *Service) ListAccounts(ctx context.Context) ([]Account, error) {
	return s.repo.ListAccounts(ctx)
}

// GetVoucher returns a voucher with its lines.
func (s *Service) GetVoucher(ctx context.Context, id int64) (Voucher, error) {
	return s.repo.GetVoucherWithLines(ctx, id)
}

// ListVouchers returns vouchers, optionally filtered to a period.
func (s *Service) ListVouchers(ctx context.Context, periodID int64, limit int) ([]Voucher, error) {
	return s.repo.ListVouchers(ctx, periodID, limit)
}

// RuleFor returns the active posting rule for a document kind.
func (s *Service) RuleFor(ctx context.Context, kind DocumentKind) (PostingRule, error) {
	return s.resolver.Resolve(ctx, s.repo, kind)
}

// CheckRules validates the posting rule configuration.
func (s *Service) CheckRules(ctx context.Context) error {
	return s.resolver.ValidateRules(ctx, s.repo)
}
