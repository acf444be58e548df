// Package scout defines the source-adapter interface the engine fans out
// over, plus the validated configuration each scan derives for a scout.
package scout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ActivateLLC/arbi-sub000/internal/model"
)

var (
	// ErrDisabled is returned when Scan is invoked on a disabled config.
	ErrDisabled = errors.New("scout: config is disabled")
)

// Filters narrows what a scout should emit. Zero values mean "no filter".
type Filters struct {
	MinProfit  decimal.Decimal `json:"min_profit"`
	MinROI     float64         `json:"min_roi"` // percent
	MaxPrice   decimal.Decimal `json:"max_price"`
	Categories []string        `json:"categories"`
}

// Match reports whether an opportunity passes every populated filter.
func (f Filters) Match(o model.Opportunity) bool {
	if f.MinProfit.IsPositive() && o.EstimatedProfit.LessThan(f.MinProfit) {
		return false
	}
	if f.MinROI > 0 && o.ROI < f.MinROI {
		return false
	}
	if f.MaxPrice.IsPositive() && o.BuyPrice.GreaterThan(f.MaxPrice) {
		return false
	}
	if len(f.Categories) > 0 {
		cat := o.Metadata["category"]
		found := false
		for _, c := range f.Categories {
			if c == cat {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Config is the per-scout scan configuration, validated once at the
// boundary rather than failing mid-cycle.
type Config struct {
	Enabled      bool          `json:"enabled"`
	ScanInterval time.Duration `json:"scan_interval"`
	Sources      []string      `json:"sources"`
	Filters      Filters       `json:"filters"`
}

// Validate rejects malformed configs eagerly.
func (c Config) Validate() error {
	if c.ScanInterval <= 0 {
		return fmt.Errorf("scout: scan interval must be positive, got %s", c.ScanInterval)
	}
	if len(c.Sources) == 0 {
		return errors.New("scout: at least one source is required")
	}
	if c.Filters.MinROI < 0 {
		return errors.New("scout: min roi cannot be negative")
	}
	if c.Filters.MinProfit.IsNegative() {
		return errors.New("scout: min profit cannot be negative")
	}
	if c.Filters.MaxPrice.IsNegative() {
		return errors.New("scout: max price cannot be negative")
	}
	return nil
}

// Scout queries one external source for raw opportunity candidates.
// Implementations must preserve their own emission order; the engine makes
// no ordering promise across scouts.
type Scout interface {
	Name() string
	Type() model.StrategyType
	Scan(ctx context.Context, cfg Config) ([]model.Opportunity, error)
}
