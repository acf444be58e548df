package scout

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/ActivateLLC/arbi-sub000/internal/model"
	"github.com/ActivateLLC/arbi-sub000/internal/profit"

	"github.com/go-resty/resty/v2"
)

// listing is one raw entry from a price-feed source.
type listing struct {
	SKU        string  `json:"sku"`
	Title      string  `json:"title"`
	Category   string  `json:"category"`
	BuyPrice   string  `json:"buy_price"`
	SellPrice  string  `json:"sell_price"`
	BuySource  string  `json:"buy_source"`
	BuyURL     string  `json:"buy_url"`
	SellSource string  `json:"sell_source"`
	SellURL    string  `json:"sell_url"`
	Volatility float64 `json:"volatility"`
	DemandRank int     `json:"demand_rank"`
	TTLMinutes int     `json:"ttl_minutes"`
}

type feedResponse struct {
	Listings []listing `json:"listings"`
}

// PriceFeedScout pulls buy/sell listing pairs from JSON price-feed
// endpoints and turns viable deltas into opportunity candidates. One scout
// instance covers one strategy type; its sources come from the scan config.
type PriceFeedScout struct {
	name     string
	strategy model.StrategyType
	client   *resty.Client
	limiter  *rate.Limiter
	calc     *profit.Calculator
}

// NewPriceFeedScout creates a price-feed scout. rps bounds outbound request
// rate across all sources so a scan cycle stays polite to the feed.
func NewPriceFeedScout(name string, strategy model.StrategyType, timeout time.Duration, rps float64) *PriceFeedScout {
	if rps <= 0 {
		rps = 2
	}
	return &PriceFeedScout{
		name:     name,
		strategy: strategy,
		client: resty.New().
			SetTimeout(timeout).
			SetRetryCount(2).
			SetRetryWaitTime(300 * time.Millisecond),
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		calc:    profit.NewCalculator(),
	}
}

func (s *PriceFeedScout) Name() string             { return s.name }
func (s *PriceFeedScout) Type() model.StrategyType { return s.strategy }

// Scan fetches each configured source in order and emits filtered
// opportunities. Source order is preserved; a malformed listing is skipped,
// a failed source aborts the scan with an error for the engine to contain.
func (s *PriceFeedScout) Scan(ctx context.Context, cfg Config) ([]model.Opportunity, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var found []model.Opportunity
	for _, source := range cfg.Sources {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		var feed feedResponse
		resp, err := s.client.R().
			SetContext(ctx).
			SetResult(&feed).
			Get(source)
		if err != nil {
			return nil, fmt.Errorf("scout %s: fetch %s: %w", s.name, source, err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("scout %s: %s returned %s", s.name, source, resp.Status())
		}

		for _, l := range feed.Listings {
			opp, ok := s.toOpportunity(l)
			if !ok {
				continue
			}
			if cfg.Filters.Match(opp) {
				found = append(found, opp)
			}
		}
	}
	return found, nil
}

// toOpportunity converts one listing, computing the profit breakdown with
// the default fee model. Unparseable prices are skipped, not fatal.
func (s *PriceFeedScout) toOpportunity(l listing) (model.Opportunity, bool) {
	buy, err := decimal.NewFromString(l.BuyPrice)
	if err != nil {
		slog.Debug("skipping listing with bad buy price", "scout", s.name, "sku", l.SKU, "err", err)
		return model.Opportunity{}, false
	}
	sell, err := decimal.NewFromString(l.SellPrice)
	if err != nil {
		slog.Debug("skipping listing with bad sell price", "scout", s.name, "sku", l.SKU, "err", err)
		return model.Opportunity{}, false
	}
	if !buy.IsPositive() || !sell.IsPositive() {
		return model.Opportunity{}, false
	}

	calc := s.calc.Calculate(buy, sell, profit.Options{
		Direction:        profit.SourceIsBuySide,
		Category:         l.Category,
		WeightTier:       profit.TierSmallStandard,
		OutboundShipping: decimal.NewFromFloat(4.50),
	})

	ttl := time.Duration(l.TTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = 4 * time.Hour
	}

	meta := map[string]string{
		"sku":      l.SKU,
		"title":    l.Title,
		"category": l.Category,
	}
	// The engine reads scoring signals out of metadata.
	if l.DemandRank > 0 {
		meta["demand_rank"] = strconv.Itoa(l.DemandRank)
	}

	now := time.Now().UTC()
	return model.Opportunity{
		Type:            s.strategy,
		DiscoveredAt:    now,
		ExpiresAt:       now.Add(ttl),
		BuyPrice:        buy,
		SellPrice:       sell,
		BuyCurrency:     "USD",
		SellCurrency:    "USD",
		EstimatedProfit: calc.NetProfit,
		ROI:             calc.ROI,
		Confidence:      70,
		RiskLevel:       riskLevelFor(l.Volatility),
		Volatility:      l.Volatility,
		BuySource:       l.BuySource,
		BuyURL:          l.BuyURL,
		SellSource:      l.SellSource,
		SellURL:         l.SellURL,
		ShippingCost:    calc.Shipping.Total,
		Metadata:        meta,
	}, true
}

func riskLevelFor(volatility float64) model.RiskLevel {
	switch {
	case volatility >= 60:
		return model.RiskHigh
	case volatility >= 30:
		return model.RiskMedium
	default:
		return model.RiskLow
	}
}
