package ledger

import (
	"context"
	"fmt"
)

// RuleSource looks up active posting rules. Both the transactional repository
// and the pool-backed repository satisfy it.
type RuleSource interface {
	GetActiveRules(ctx context.Context, kind DocumentKind) ([]PostingRule, error)
}

// Resolver maps a document kind to its account template. Duplicate active
// rules are a configuration error, not a silent first-match.
type Resolver struct{}

// NewResolver constructs a Resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve returns the single active rule for kind.
func (r *Resolver) Resolve(ctx context.Context, rules RuleSource, kind DocumentKind) (PostingRule, error) {
	matches, err := rules.GetActiveRules(ctx, kind)
	if err != nil {
		return PostingRule{}, err
	}
	switch len(matches) {
	case 0:
		return PostingRule{}, fmt.Errorf("%w: %s", ErrNoPostingRule, kind)
	case 1:
		return matches[0], nil
	default:
		return PostingRule{}, fmt.Errorf("%w: %s has %d", ErrAmbiguousRule, kind, len(matches))
	}
}

// ValidateRules checks every document kind has at most one active rule.
// Run at startup so duplicates surface as a boot failure instead of a
// runtime coin toss.
func (r *Resolver) ValidateRules(ctx context.Context, rules RuleSource) error {
	for _, kind := range DocumentKinds {
		matches, err := rules.GetActiveRules(ctx, kind)
		if err != nil {
			return err
		}
		if len(matches) > 1 {
			return fmt.Errorf("%w: %s has %d", ErrAmbiguousRule, kind, len(matches))
		}
	}
	return nil
}
