package sequence

import (
	"fmt"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Series is a named monotonic counter used to format document numbers.
// BranchID scopes the series to a branch; nil means company-wide.
type Series struct {
	ID         int64
	EntityType string
	BranchID   *int64
	Prefix     string
	Suffix     string
	PadWidth   int
	Counter    int64
	IsActive   bool
	UpdatedAt  time.Time
}

// Format renders a counter value as this series' document number.
func (s Series) Format(counter int64) string {
	width := s.PadWidth
	if width <= 0 {
		width = 6
	}
	return fmt.Sprintf("%s%0*d%s", s.Prefix, width, counter, s.Suffix)
}

var (
	// ErrSeriesNotConfigured indicates no active series exists for the entity type.
	ErrSeriesNotConfigured = fmt.Errorf("sequence: no active series: %w", shared.ErrConfiguration)
	// ErrSeriesAmbiguous indicates more than one active series in the same scope.
	ErrSeriesAmbiguous = fmt.Errorf("sequence: multiple active series for one scope: %w", shared.ErrConfiguration)
)
