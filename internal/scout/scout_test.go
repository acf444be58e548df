package scout

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ActivateLLC/arbi-sub000/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func validConfig() Config {
	return Config{
		Enabled:      true,
		ScanInterval: 15 * time.Minute,
		Sources:      []string{"feed-a"},
	}
}

func TestConfigValidate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero interval", func(c *Config) { c.ScanInterval = 0 }},
		{"negative interval", func(c *Config) { c.ScanInterval = -time.Second }},
		{"no sources", func(c *Config) { c.Sources = nil }},
		{"negative min roi", func(c *Config) { c.Filters.MinROI = -1 }},
		{"negative min profit", func(c *Config) { c.Filters.MinProfit = d(-5) }},
		{"negative max price", func(c *Config) { c.Filters.MaxPrice = d(-1) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestFiltersMatch(t *testing.T) {
	opp := model.Opportunity{
		BuyPrice:        d(80),
		EstimatedProfit: d(12),
		ROI:             35,
		Metadata:        map[string]string{"category": "electronics"},
	}

	cases := []struct {
		name    string
		filters Filters
		want    bool
	}{
		{"zero filters pass everything", Filters{}, true},
		{"profit floor met", Filters{MinProfit: d(10)}, true},
		{"profit floor missed", Filters{MinProfit: d(20)}, false},
		{"roi floor met", Filters{MinROI: 30}, true},
		{"roi floor missed", Filters{MinROI: 50}, false},
		{"price cap met", Filters{MaxPrice: d(100)}, true},
		{"price cap exceeded", Filters{MaxPrice: d(50)}, false},
		{"category match", Filters{Categories: []string{"toys", "electronics"}}, true},
		{"category miss", Filters{Categories: []string{"toys"}}, false},
		{"all populated and passing", Filters{MinProfit: d(10), MinROI: 30, MaxPrice: d(100), Categories: []string{"electronics"}}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.filters.Match(opp); got != tc.want {
				t.Errorf("Match = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestFiltersMatch_NoCategoryMetadata(t *testing.T) {
	opp := model.Opportunity{BuyPrice: d(10), EstimatedProfit: d(5), ROI: 50}
	f := Filters{Categories: []string{"toys"}}
	if f.Match(opp) {
		t.Error("opportunity without category metadata must not match a category filter")
	}
}
