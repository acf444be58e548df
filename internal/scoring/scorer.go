// Package scoring converts a profit breakdown plus auxiliary market signals
// into a 0-100 opportunity score with tier, confidence, and review flags.
//
// Each sub-score is a monotonic step function over fixed breakpoints; the
// final score is a weighted sum minus a risk penalty, clamped to [0,100].
// The one place strategy type changes the arithmetic is the volatility
// branch: volatility-sensitive strategies are rewarded for high volatility
// instead of penalized, and receive a market-conditions bonus under
// elevated readings.
package scoring

import (
	"fmt"

	"github.com/ActivateLLC/arbi-sub000/internal/model"
)

// Sub-score caps. The positive factors sum to 100 before the risk penalty.
const (
	maxMarginPoints      = 30
	maxROIPoints         = 25
	maxProfitPoints      = 15
	maxReputationPoints  = 10
	maxCompetitionPoints = 10
	maxDemandPoints      = 10
	maxRiskPenalty       = 10
)

// Signals carries auxiliary inputs beyond the profit calculation. Zero
// values mean "signal missing" and discount confidence instead of scoring.
type Signals struct {
	SellerRating  float64 // 1-5 stars; 0 = unknown
	SellerReviews int     // review count backing the rating
	Competitors   int     // competing listings; -1 = unknown
	DemandRank    int     // category sales rank, lower is better; 0 = unknown
}

// MarketSignal is a VIX-like market-conditions reading. Only
// volatility-sensitive strategies react to it.
type MarketSignal struct {
	Level float64 // e.g. VIX level
	Trend string  // "rising", "falling", "flat"
}

// Config controls scoring behavior. VolatilitySensitive is the set of
// strategy types for which high volatility is rewarded rather than
// penalized — configuration, not a hidden constant.
type Config struct {
	VolatilitySensitive map[model.StrategyType]bool

	// ElevatedLevel is the market reading at or above which sensitive
	// strategies earn the conditions bonus.
	ElevatedLevel float64
}

// DefaultConfig marks the spread/event strategies volatility-sensitive and
// treats a reading of 20 or above as elevated.
func DefaultConfig() Config {
	return Config{
		VolatilitySensitive: map[model.StrategyType]bool{
			model.StrategyVolatilitySpread: true,
			model.StrategyEventFlip:        true,
		},
		ElevatedLevel: 20,
	}
}

// Scorer computes opportunity scores. Stateless aside from its config.
type Scorer struct {
	cfg Config
}

// NewScorer creates a scorer with the given config. A nil sensitive set
// falls back to the default.
func NewScorer(cfg Config) *Scorer {
	if cfg.VolatilitySensitive == nil {
		cfg.VolatilitySensitive = DefaultConfig().VolatilitySensitive
	}
	if cfg.ElevatedLevel <= 0 {
		cfg.ElevatedLevel = DefaultConfig().ElevatedLevel
	}
	return &Scorer{cfg: cfg}
}

// Score evaluates one opportunity. market may be nil when no conditions
// reading is available; that discounts confidence for sensitive strategies
// but never errors.
func (s *Scorer) Score(opp model.Opportunity, calc model.ProfitCalculation, sig Signals, market *MarketSignal) model.Score {
	var (
		score      float64
		confidence = 1.0
		reasoning  []string
		redFlags   []string
		greenFlags []string
	)

	// Profit margin, 0-30.
	marginPts := stepScore(calc.Margin, []step{{40, 30}, {30, 25}, {20, 18}, {15, 12}, {10, 6}})
	score += marginPts
	reasoning = append(reasoning, fmt.Sprintf("margin %.1f%% -> %.0f/%d", calc.Margin, marginPts, maxMarginPoints))
	if calc.Margin >= 30 {
		greenFlags = append(greenFlags, "strong margin")
	} else if calc.Margin < 10 {
		redFlags = append(redFlags, "thin margin")
	}

	// ROI, 0-25.
	roiPts := stepScore(calc.ROI, []step{{100, 25}, {50, 20}, {30, 15}, {20, 10}, {10, 5}})
	score += roiPts
	reasoning = append(reasoning, fmt.Sprintf("roi %.1f%% -> %.0f/%d", calc.ROI, roiPts, maxROIPoints))

	// Absolute profit, 0-15.
	netProfit, _ := calc.NetProfit.Float64()
	profitPts := stepScore(netProfit, []step{{50, 15}, {25, 12}, {15, 9}, {10, 6}, {5, 3}})
	score += profitPts
	reasoning = append(reasoning, fmt.Sprintf("net profit $%.2f -> %.0f/%d", netProfit, profitPts, maxProfitPoints))
	if calc.NetProfit.Sign() <= 0 {
		redFlags = append(redFlags, "no profit after fees")
	}

	// Seller reputation, 0-10. Missing rating discounts confidence.
	if sig.SellerRating > 0 {
		repPts := stepScore(sig.SellerRating, []step{{4.8, 10}, {4.5, 8}, {4.0, 6}, {3.5, 3}})
		score += repPts
		reasoning = append(reasoning, fmt.Sprintf("seller rating %.1f -> %.0f/%d", sig.SellerRating, repPts, maxReputationPoints))
		if sig.SellerRating < 3.5 {
			confidence *= 0.85
			redFlags = append(redFlags, "low seller rating")
		} else if sig.SellerRating >= 4.5 && sig.SellerReviews >= 100 {
			greenFlags = append(greenFlags, "established seller")
		}
	} else {
		confidence *= 0.9
		reasoning = append(reasoning, "seller rating unknown")
	}

	// Competition, 0-10, inverse: fewer competitors score higher.
	if sig.Competitors >= 0 {
		compPts := inverseStepScore(float64(sig.Competitors), []step{{3, 10}, {8, 7}, {15, 4}, {30, 2}})
		score += compPts
		reasoning = append(reasoning, fmt.Sprintf("%d competitors -> %.0f/%d", sig.Competitors, compPts, maxCompetitionPoints))
		if sig.Competitors > 30 {
			redFlags = append(redFlags, "crowded listing")
		}
	} else {
		confidence *= 0.95
		reasoning = append(reasoning, "competition unknown")
	}

	// Demand rank, 0-10, inverse: lower rank = higher demand.
	if sig.DemandRank > 0 {
		demandPts := inverseStepScore(float64(sig.DemandRank), []step{{5000, 10}, {20000, 7}, {50000, 5}, {100000, 2}})
		score += demandPts
		reasoning = append(reasoning, fmt.Sprintf("demand rank %d -> %.0f/%d", sig.DemandRank, demandPts, maxDemandPoints))
		if sig.DemandRank <= 5000 {
			greenFlags = append(greenFlags, "high demand")
		}
	} else {
		confidence *= 0.9
		reasoning = append(reasoning, "demand rank unknown")
	}

	// Risk penalty, 0-10. Sensitive strategies flip the volatility sign:
	// high volatility is the trade, not the hazard.
	sensitive := s.cfg.VolatilitySensitive[opp.Type]
	volPenalty := opp.Volatility / 100 * maxRiskPenalty
	if sensitive {
		score += volPenalty // reward instead of penalize
		reasoning = append(reasoning, fmt.Sprintf("volatility %.0f rewarded for %s", opp.Volatility, opp.Type))
		if market != nil && market.Level >= s.cfg.ElevatedLevel {
			bonus := 5.0
			if market.Trend == "rising" {
				bonus = 8.0
			}
			score += bonus
			reasoning = append(reasoning, fmt.Sprintf("elevated market level %.1f (%s) +%.0f", market.Level, market.Trend, bonus))
			greenFlags = append(greenFlags, "favorable volatility regime")
		}
	} else {
		score -= volPenalty
		if opp.Volatility >= 70 {
			redFlags = append(redFlags, "high volatility")
		}
	}
	if sensitive && market == nil {
		confidence *= 0.8
		reasoning = append(reasoning, "market conditions unavailable")
	}

	score = clamp(score, 0, 100)
	confidence = clamp(confidence, 0, 1)

	return model.Score{
		Score:      score,
		Tier:       TierFor(score),
		Confidence: confidence,
		Reasoning:  reasoning,
		RedFlags:   redFlags,
		GreenFlags: greenFlags,
	}
}

// TierFor maps a score to its tier using the fixed 90/75/60 breakpoints.
func TierFor(score float64) model.Tier {
	switch {
	case score >= 90:
		return model.TierExcellent
	case score >= 75:
		return model.TierHigh
	case score >= 60:
		return model.TierMedium
	default:
		return model.TierLow
	}
}

// step is one breakpoint: values at or above Threshold earn Points.
type step struct {
	Threshold float64
	Points    float64
}

// stepScore walks breakpoints high-to-low and returns the first match.
func stepScore(value float64, steps []step) float64 {
	for _, s := range steps {
		if value >= s.Threshold {
			return s.Points
		}
	}
	return 0
}

// inverseStepScore scores values where smaller is better: the first
// breakpoint the value fits under wins.
func inverseStepScore(value float64, steps []step) float64 {
	for _, s := range steps {
		if value <= s.Threshold {
			return s.Points
		}
	}
	return 0
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
