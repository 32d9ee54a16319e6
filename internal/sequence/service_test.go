package sequence

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type memorySeries struct {
	series []Series
}

func (m *memorySeries) ListActiveForUpdate(ctx context.Context, entityType string, branchID *int64) ([]Series, error) {
	var out []Series
	for _, s := range m.series {
		if s.EntityType != entityType || !s.IsActive {
			continue
		}
		if branchID == nil && s.BranchID != nil {
			continue
		}
		if branchID != nil && (s.BranchID == nil || *s.BranchID != *branchID) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (m *memorySeries) SetCounter(ctx context.Context, seriesID, counter int64) error {
	for i := range m.series {
		if m.series[i].ID == seriesID {
			m.series[i].Counter = counter
			return nil
		}
	}
	return fmt.Errorf("series %d missing", seriesID)
}

func TestNextFormatsPrefixPaddingSuffix(t *testing.T) {
	repo := &memorySeries{series: []Series{
		{ID: 1, EntityType: "SALES_INVOICE", Prefix: "SI-", Suffix: "/26", PadWidth: 5, Counter: 41, IsActive: true},
	}}
	seq := NewSequencer()

	number, err := seq.Next(context.Background(), repo, "SALES_INVOICE", nil)
	require.NoError(t, err)
	require.Equal(t, "SI-00042/26", number)
	require.Equal(t, int64(42), repo.series[0].Counter)
}

func TestNextPrefersBranchScopedSeries(t *testing.T) {
	branch := int64(7)
	repo := &memorySeries{series: []Series{
		{ID: 1, EntityType: "RECEIPT", Prefix: "RC-", PadWidth: 4, Counter: 10, IsActive: true},
		{ID: 2, EntityType: "RECEIPT", BranchID: &branch, Prefix: "RC-B7-", PadWidth: 4, Counter: 3, IsActive: true},
	}}
	seq := NewSequencer()

	number, err := seq.Next(context.Background(), repo, "RECEIPT", &branch)
	require.NoError(t, err)
	require.Equal(t, "RC-B7-0004", number)

	// Unknown branch falls back to the company-wide series.
	other := int64(9)
	number, err = seq.Next(context.Background(), repo, "RECEIPT", &other)
	require.NoError(t, err)
	require.Equal(t, "RC-0011", number)
}

func TestNextMissingSeries(t *testing.T) {
	repo := &memorySeries{}
	seq := NewSequencer()

	_, err := seq.Next(context.Background(), repo, "PAYMENT", nil)
	require.ErrorIs(t, err, ErrSeriesNotConfigured)
}

func TestNextAmbiguousSeries(t *testing.T) {
	repo := &memorySeries{series: []Series{
		{ID: 1, EntityType: "PAYMENT", Prefix: "PM-", PadWidth: 4, Counter: 0, IsActive: true},
		{ID: 2, EntityType: "PAYMENT", Prefix: "PAY-", PadWidth: 4, Counter: 0, IsActive: true},
	}}
	seq := NewSequencer()

	_, err := seq.Next(context.Background(), repo, "PAYMENT", nil)
	require.ErrorIs(t, err, ErrSeriesAmbiguous)
}

func TestNextMonotonicNoRepeats(t *testing.T) {
	repo := &memorySeries{series: []Series{
		{ID: 1, EntityType: "VOUCHER", Prefix: "JV-", PadWidth: 6, Counter: 0, IsActive: true},
	}}
	seq := NewSequencer()

	prev := int64(0)
	seen := map[string]bool{}
	for i := 0; i < 250; i++ {
		number, err := seq.Next(context.Background(), repo, "VOUCHER", nil)
		require.NoError(t, err)
		require.False(t, seen[number], "duplicate number %s", number)
		seen[number] = true

		n, err := strconv.ParseInt(strings.TrimPrefix(number, "JV-"), 10, 64)
		require.NoError(t, err)
		require.Greater(t, n, prev)
		prev = n
	}
}
