package sequence

import (
	"context"
	"errors"
	"fmt"
)

// TxRepository exposes the counter operations a sequencer needs. It always
// runs on the caller's transaction so a rollback also reverts the counter:
// no externally visible gaps appear for failed postings.
type TxRepository interface {
	// ListActiveForUpdate returns active series for the entity type in the
	// given branch scope (nil for the company-wide scope), locking the rows.
	ListActiveForUpdate(ctx context.Context, entityType string, branchID *int64) ([]Series, error)
	// SetCounter persists the incremented counter.
	SetCounter(ctx context.Context, seriesID, counter int64) error
}

// Sequencer issues unique document numbers from persisted series.
type Sequencer struct{}

// NewSequencer constructs a Sequencer.
func NewSequencer() *Sequencer {
	return &Sequencer{}
}

// Next issues the next number for entityType, preferring a branch-scoped
// series over the company-wide one. The counter row stays locked until the
// caller's transaction ends, which serialises concurrent postings per series.
func (s *Sequencer) Next(ctx context.Context, tx TxRepository, entityType string, branchID *int64) (string, error) {
	series, err := s.pick(ctx, tx, entityType, branchID)
	if err != nil {
		return "", err
	}
	next := series.Counter + 1
	if err := tx.SetCounter(ctx, series.ID, next); err != nil {
		return "", fmt.Errorf("sequence: persist counter for %s: %w", entityType, err)
	}
	return series.Format(next), nil
}

func (s *Sequencer) pick(ctx context.Context, tx TxRepository, entityType string, branchID *int64) (Series, error) {
	if branchID != nil {
		scoped, err := tx.ListActiveForUpdate(ctx, entityType, branchID)
		if err != nil && !errors.Is(err, ErrSeriesNotConfigured) {
			return Series{}, err
		}
		switch len(scoped) {
		case 0:
			// fall through to the company-wide series
		case 1:
			return scoped[0], nil
		default:
			return Series{}, fmt.Errorf("%w: entity %s branch %d", ErrSeriesAmbiguous, entityType, *branchID)
		}
	}
	global, err := tx.ListActiveForUpdate(ctx, entityType, nil)
	if err != nil && !errors.Is(err, ErrSeriesNotConfigured) {
		return Series{}, err
	}
	switch len(global) {
	case 0:
		return Series{}, fmt.Errorf("%w: entity %s", ErrSeriesNotConfigured, entityType)
	case 1:
		return global[0], nil
	default:
		return Series{}, fmt.Errorf("%w: entity %s", ErrSeriesAmbiguous, entityType)
	}
}
