// Package market provides market-wide volatility readings consumed by the
// risk manager and scorer. Conditions are VIX-like: a level, a trend, and a
// derived risk-adjustment multiplier applied to computed risk scores.
package market

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Volatility states, derived from the indicator level.
const (
	StateCalm     = "calm"
	StateNormal   = "normal"
	StateElevated = "elevated"
	StateCrisis   = "crisis"
)

// Conditions is one reading of the market-wide volatility indicator.
type Conditions struct {
	Level           float64 `json:"level"` // VIX-like index level
	Trend           string  `json:"trend"` // "rising", "falling", "flat"
	VolatilityState string  `json:"volatility_state"`
	RiskAdjustment  float64 `json:"risk_adjustment"` // 0.8 calm ... 2.0 crisis
}

// Provider supplies market condition readings. Implementations may hit the
// network; callers pass a context.
type Provider interface {
	GetMarketConditions(ctx context.Context) (Conditions, error)
}

// ShouldPauseArbitrage reports whether conditions are extreme enough to veto
// all autonomous activity regardless of per-opportunity scores.
func ShouldPauseArbitrage(c Conditions) bool {
	return c.VolatilityState == StateCrisis || c.Level >= 40
}

// Classify fills the derived fields of a reading from its raw level.
func Classify(level float64, trend string) Conditions {
	c := Conditions{Level: level, Trend: trend}
	switch {
	case level < 15:
		c.VolatilityState = StateCalm
		c.RiskAdjustment = 0.8
	case level < 20:
		c.VolatilityState = StateNormal
		c.RiskAdjustment = 1.0
	case level < 30:
		c.VolatilityState = StateElevated
		c.RiskAdjustment = 1.4
	default:
		c.VolatilityState = StateCrisis
		c.RiskAdjustment = 2.0
	}
	return c
}

// StaticProvider returns a fixed reading. Used in tests and offline runs.
type StaticProvider struct {
	Conditions Conditions
	Err        error
}

func (p *StaticProvider) GetMarketConditions(_ context.Context) (Conditions, error) {
	return p.Conditions, p.Err
}

// HTTPProvider fetches the indicator from a JSON endpoint of the shape
// {"level": 18.4, "trend": "rising"}.
type HTTPProvider struct {
	client *resty.Client
}

// NewHTTPProvider creates a provider against the given base URL.
func NewHTTPProvider(baseURL string, timeout time.Duration) *HTTPProvider {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)
	return &HTTPProvider{client: client}
}

type indicatorResponse struct {
	Level float64 `json:"level"`
	Trend string  `json:"trend"`
}

func (p *HTTPProvider) GetMarketConditions(ctx context.Context) (Conditions, error) {
	var body indicatorResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetResult(&body).
		Get("/v1/volatility")
	if err != nil {
		return Conditions{}, fmt.Errorf("market indicator fetch failed: %w", err)
	}
	if resp.IsError() {
		return Conditions{}, fmt.Errorf("market indicator returned %s", resp.Status())
	}
	return Classify(body.Level, body.Trend), nil
}
