package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type staticRules []PostingRule

func (s staticRules) GetActiveRules(_ context.Context, kind DocumentKind) ([]PostingRule, error) {
	var out []PostingRule
	for _, r := range s {
		if r.IsActive && r.DocumentKind == kind {
			out = append(out, r)
		}
	}
	return out, nil
}

func TestResolverSingleRule(t *testing.T) {
	rules := staticRules{
		{ID: 1, DocumentKind: DocumentKindSalesInvoice, DebitAccountID: 100, CreditAccountID: 400, IsActive: true},
		{ID: 2, DocumentKind: DocumentKindSalesInvoice, DebitAccountID: 100, CreditAccountID: 401, IsActive: false},
	}
	rule, err := NewResolver().Resolve(context.Background(), rules, DocumentKindSalesInvoice)
	require.NoError(t, err)
	require.Equal(t, int64(1), rule.ID)
}

func TestResolverNoRule(t *testing.T) {
	_, err := NewResolver().Resolve(context.Background(), staticRules{}, DocumentKindPayment)
	require.ErrorIs(t, err, ErrNoPostingRule)
}

func TestResolverAmbiguousRule(t *testing.T) {
	rules := staticRules{
		{ID: 1, DocumentKind: DocumentKindReceipt, DebitAccountID: 100, CreditAccountID: 400, IsActive: true},
		{ID: 2, DocumentKind: DocumentKindReceipt, DebitAccountID: 101, CreditAccountID: 400, IsActive: true},
	}
	_, err := NewResolver().Resolve(context.Background(), rules, DocumentKindReceipt)
	require.ErrorIs(t, err, ErrAmbiguousRule)
}

func TestValidateRulesFlagsDuplicates(t *testing.T) {
	ok := staticRules{
		{ID: 1, DocumentKind: DocumentKindSalesInvoice, IsActive: true},
		{ID: 2, DocumentKind: DocumentKindPurchaseInvoice, IsActive: true},
	}
	require.NoError(t, NewResolver().ValidateRules(context.Background(), ok))

	dup := append(ok, PostingRule{ID: 3, DocumentKind: DocumentKindSalesInvoice, IsActive: true})
	require.ErrorIs(t, NewResolver().ValidateRules(context.Background(), dup), ErrAmbiguousRule)
}
