// Package model defines the core domain types shared across the opportunity
// engine. All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// StrategyType is the closed set of arbitrage strategies a scout can emit.
type StrategyType string

const (
	StrategyRetailArbitrage  StrategyType = "retail_arbitrage"
	StrategyOnlineArbitrage  StrategyType = "online_arbitrage"
	StrategyLiquidation      StrategyType = "liquidation"
	StrategyCrossBorder      StrategyType = "cross_border"
	StrategyVolatilitySpread StrategyType = "volatility_spread"
	StrategyEventFlip        StrategyType = "event_flip"
)

// ValidStrategyTypes enumerates every accepted strategy tag.
var ValidStrategyTypes = map[StrategyType]bool{
	StrategyRetailArbitrage:  true,
	StrategyOnlineArbitrage:  true,
	StrategyLiquidation:      true,
	StrategyCrossBorder:      true,
	StrategyVolatilitySpread: true,
	StrategyEventFlip:        true,
}

// RiskLevel classifies an opportunity's qualitative risk.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Status is the lifecycle state of a tracked opportunity.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAlerted   Status = "alerted"
	StatusPurchased Status = "purchased"
	StatusExpired   Status = "expired"
)

// Opportunity is a candidate arbitrage trade discovered by a scout.
//
// Invariants: EstimatedProfit = SellPrice - BuyPrice - fees - shipping,
// ROI = EstimatedProfit / totalCost * 100. An opportunity whose ExpiresAt
// has passed must never be returned as actionable.
type Opportunity struct {
	ID           string       `json:"id" db:"id"`
	Source       string       `json:"source" db:"source"` // originating scout name
	Type         StrategyType `json:"type" db:"type"`
	DiscoveredAt time.Time    `json:"discovered_at" db:"discovered_at"`
	ExpiresAt    time.Time    `json:"expires_at" db:"expires_at"`

	// Commercial terms.
	BuyPrice        decimal.Decimal `json:"buy_price" db:"buy_price"`
	SellPrice       decimal.Decimal `json:"sell_price" db:"sell_price"`
	BuyCurrency     string          `json:"buy_currency" db:"buy_currency"`
	SellCurrency    string          `json:"sell_currency" db:"sell_currency"`
	EstimatedProfit decimal.Decimal `json:"estimated_profit" db:"estimated_profit"`
	ROI             float64         `json:"roi" db:"roi"` // percent

	// Risk signals.
	Confidence float64   `json:"confidence" db:"confidence"` // 0-100
	RiskLevel  RiskLevel `json:"risk_level" db:"risk_level"`
	Volatility float64   `json:"volatility" db:"volatility"` // 0-100

	// Timing.
	EstimatedDaysToProfit int `json:"estimated_days_to_profit" db:"estimated_days_to_profit"`

	// Provenance.
	BuySource          string `json:"buy_source" db:"buy_source"`
	BuyURL             string `json:"buy_url" db:"buy_url"`
	SellSource         string `json:"sell_source" db:"sell_source"`
	SellURL            string `json:"sell_url" db:"sell_url"`
	SourceCountry      string `json:"source_country" db:"source_country"`
	DestinationCountry string `json:"destination_country" db:"destination_country"`

	// Logistics.
	ShippingCost decimal.Decimal `json:"shipping_cost" db:"shipping_cost"`
	CustomsDuty  decimal.Decimal `json:"customs_duty" db:"customs_duty"`
	CustomsNotes string          `json:"customs_notes,omitempty" db:"customs_notes"`

	Metadata map[string]string `json:"metadata,omitempty"`
}

// Expired reports whether the opportunity is past its expiry at the given time.
func (o *Opportunity) Expired(now time.Time) bool {
	return !o.ExpiresAt.IsZero() && now.After(o.ExpiresAt)
}

// TotalCost is the full capital outlay: buy price plus shipping plus customs.
func (o *Opportunity) TotalCost() decimal.Decimal {
	return o.BuyPrice.Add(o.ShippingCost).Add(o.CustomsDuty)
}

// TrackedOpportunity pairs an opportunity with its mutable lifecycle state
// inside the engine's opportunity table.
type TrackedOpportunity struct {
	Opportunity Opportunity `json:"opportunity"`
	Score       Score       `json:"score"`
	Status      Status      `json:"status"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// FeeBreakdown itemizes platform fees for one side of a trade.
type FeeBreakdown struct {
	ListingFee        decimal.Decimal `json:"listing_fee"`
	ReferralFee       decimal.Decimal `json:"referral_fee"` // final-value fee
	PaymentProcessing decimal.Decimal `json:"payment_processing"`
	FulfillmentFee    decimal.Decimal `json:"fulfillment_fee"`
	Total             decimal.Decimal `json:"total"`
}

// ShippingBreakdown itemizes logistics costs.
type ShippingBreakdown struct {
	Inbound   decimal.Decimal `json:"inbound"`
	Outbound  decimal.Decimal `json:"outbound"`
	Packaging decimal.Decimal `json:"packaging"`
	Total     decimal.Decimal `json:"total"`
}

// ProfitCalculation is the immutable result of applying a fee/shipping model
// to a (buy, sell) price pair. Always recomputed on demand; never persisted
// independently of its owning Opportunity.
type ProfitCalculation struct {
	BuyPrice     decimal.Decimal   `json:"buy_price"`
	SellPrice    decimal.Decimal   `json:"sell_price"`
	Fees         FeeBreakdown      `json:"fees"`
	Shipping     ShippingBreakdown `json:"shipping"`
	TotalCost    decimal.Decimal   `json:"total_cost"`
	TotalRevenue decimal.Decimal   `json:"total_revenue"`
	NetProfit    decimal.Decimal   `json:"net_profit"`
	ROI          float64           `json:"roi"`    // percent of total cost
	Margin       float64           `json:"margin"` // percent of revenue
}

// Tier buckets a score into review bands.
type Tier string

const (
	TierExcellent Tier = "excellent" // score >= 90
	TierHigh      Tier = "high"      // score >= 75
	TierMedium    Tier = "medium"    // score >= 60
	TierLow       Tier = "low"
)

// Score is the scorer's verdict on one opportunity.
type Score struct {
	Score      float64  `json:"score"`      // 0-100, clamped
	Tier       Tier     `json:"tier"`       // pure function of Score
	Confidence float64  `json:"confidence"` // 0-1 data-completeness multiplier
	Reasoning  []string `json:"reasoning"`
	RedFlags   []string `json:"red_flags"`
	GreenFlags []string `json:"green_flags"`
}

// RiskTolerance bands how much computed risk a user accepts.
type RiskTolerance string

const (
	ToleranceConservative RiskTolerance = "conservative" // risk score <= 30
	ToleranceModerate     RiskTolerance = "moderate"     // <= 60
	ToleranceAggressive   RiskTolerance = "aggressive"   // <= 85
)

// BudgetSettings is per-user configuration read (never written) by the
// risk manager.
type BudgetSettings struct {
	DailyLimit        decimal.Decimal `json:"daily_limit"`
	PerOpportunityMax decimal.Decimal `json:"per_opportunity_max"`
	MonthlyLimit      decimal.Decimal `json:"monthly_limit"`
	ReserveFund       decimal.Decimal `json:"reserve_fund"`
	RiskTolerance     RiskTolerance   `json:"risk_tolerance"`
	EnabledStrategies []StrategyType  `json:"enabled_strategies"`
}

// BudgetCheck is the budget sub-result of a risk assessment.
type BudgetCheck struct {
	Passed           bool            `json:"passed"`
	DailyRemaining   decimal.Decimal `json:"daily_remaining"`
	MonthlyRemaining decimal.Decimal `json:"monthly_remaining"`
	Reason           string          `json:"reason,omitempty"`
}

// RiskAssessment is a per-(opportunity, user) evaluation. Not persisted;
// recomputed per call.
type RiskAssessment struct {
	Approved  bool        `json:"approved"`
	Budget    BudgetCheck `json:"budget"`
	RiskScore float64     `json:"risk_score"` // 0-100
	Reasons   []string    `json:"reasons"`
}

// Purchase is the immutable ledger record of an executed autonomous buy.
type Purchase struct {
	ID            string          `json:"id" db:"id"`
	OpportunityID string          `json:"opportunity_id" db:"opportunity_id"`
	UserID        string          `json:"user_id" db:"user_id"`
	Cost          decimal.Decimal `json:"cost" db:"cost"`
	Timestamp     time.Time       `json:"timestamp" db:"timestamp"`
}
