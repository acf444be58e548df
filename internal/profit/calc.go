// Package profit implements the fee, shipping, and ROI arithmetic for
// arbitrage candidates.
//
// The calculator is pure and deterministic: given a (buy, sell) price pair
// and a fee model it produces a full cost/revenue/profit breakdown with no
// hidden state and no I/O. Negative profit is a valid, representable result —
// viability is a separate predicate, not an error.
//
// All monetary values use shopspring/decimal — never float64 for money.
// Currency outputs are rounded to two places; percentages are plain floats.
package profit

import (
	"github.com/shopspring/decimal"

	"github.com/ActivateLLC/arbi-sub000/internal/model"
)

// MoneyScale is the number of decimal places for currency rounding.
const MoneyScale int32 = 2

// Direction selects which platform fee schedule applies to the sell side.
type Direction string

const (
	// SourceIsBuySide prices fees as if the source platform is where we buy
	// and the target platform is where we list and sell.
	SourceIsBuySide Direction = "source_buy"

	// SourceIsSellSide prices fees as if we acquire on the target platform
	// and liquidate on the source platform.
	SourceIsSellSide Direction = "source_sell"
)

// WeightTier buckets items by shipping weight/size for fulfillment pricing.
type WeightTier string

const (
	TierSmallStandard WeightTier = "small_standard"
	TierLargeStandard WeightTier = "large_standard"
	TierOversize      WeightTier = "oversize"
)

// FeeSchedule is one platform's fee model. Referral rates are fractions of
// the sale price keyed by category; fulfillment fees are flat per weight tier.
type FeeSchedule struct {
	Platform           string
	ListingFee         decimal.Decimal
	PaymentRate        decimal.Decimal // fraction of sale price
	PaymentFixed       decimal.Decimal
	DefaultReferral    decimal.Decimal            // fraction, used when category unknown
	ReferralByCategory map[string]decimal.Decimal // fraction of sale price
	FulfillmentByTier  map[WeightTier]decimal.Decimal
}

// Built-in directional schedules. The marketplace side charges a referral
// (final-value) fee plus fulfillment by weight tier; the auction side charges
// a listing fee plus payment processing.
var (
	marketplaceSchedule = FeeSchedule{
		Platform:        "marketplace",
		ListingFee:      decimal.Zero,
		PaymentRate:     decimal.Zero, // payment is folded into referral
		PaymentFixed:    decimal.Zero,
		DefaultReferral: decimal.NewFromFloat(0.15),
		ReferralByCategory: map[string]decimal.Decimal{
			"electronics": decimal.NewFromFloat(0.08),
			"computers":   decimal.NewFromFloat(0.08),
			"toys":        decimal.NewFromFloat(0.15),
			"home":        decimal.NewFromFloat(0.15),
			"clothing":    decimal.NewFromFloat(0.17),
			"media":       decimal.NewFromFloat(0.15),
			"collectibles": decimal.NewFromFloat(0.12),
		},
		FulfillmentByTier: map[WeightTier]decimal.Decimal{
			TierSmallStandard: decimal.NewFromFloat(3.22),
			TierLargeStandard: decimal.NewFromFloat(4.75),
			TierOversize:      decimal.NewFromFloat(9.73),
		},
	}

	auctionSchedule = FeeSchedule{
		Platform:        "auction",
		ListingFee:      decimal.NewFromFloat(0.35),
		PaymentRate:     decimal.NewFromFloat(0.029),
		PaymentFixed:    decimal.NewFromFloat(0.30),
		DefaultReferral: decimal.NewFromFloat(0.1325),
		ReferralByCategory: map[string]decimal.Decimal{
			"electronics":  decimal.NewFromFloat(0.1235),
			"computers":    decimal.NewFromFloat(0.0935),
			"collectibles": decimal.NewFromFloat(0.1325),
			"clothing":     decimal.NewFromFloat(0.15),
			"media":        decimal.NewFromFloat(0.1455),
		},
		FulfillmentByTier: map[WeightTier]decimal.Decimal{
			TierSmallStandard: decimal.Zero, // seller-fulfilled
			TierLargeStandard: decimal.Zero,
			TierOversize:      decimal.Zero,
		},
	}
)

// Options selects the fee model applied to a calculation.
type Options struct {
	Direction  Direction
	Category   string
	WeightTier WeightTier

	// Shipping legs. Zero values are honored as-is (free shipping exists).
	InboundShipping  decimal.Decimal
	OutboundShipping decimal.Decimal
	Packaging        decimal.Decimal

	// CustomsDuty applies to cross-border flows; zero for domestic.
	CustomsDuty decimal.Decimal
}

// Calculator computes profit breakdowns. It is stateless — prices and
// options are passed as arguments, not stored.
type Calculator struct {
	buySide  FeeSchedule
	sellSide FeeSchedule
}

// NewCalculator returns a calculator with the built-in directional schedules.
func NewCalculator() *Calculator {
	return &Calculator{buySide: auctionSchedule, sellSide: marketplaceSchedule}
}

// NewCalculatorWithSchedules returns a calculator with caller-supplied fee
// schedules, for platforms beyond the built-in pair.
func NewCalculatorWithSchedules(buySide, sellSide FeeSchedule) *Calculator {
	return &Calculator{buySide: buySide, sellSide: sellSide}
}

// Calculate applies the fee model selected by opts to a (buy, sell) pair.
//
//	totalCost    = buyPrice + sellFees + shipping + customs
//	totalRevenue = sellPrice
//	netProfit    = totalRevenue - totalCost
//	roi          = netProfit / totalCost * 100
//	margin       = netProfit / totalRevenue * 100
func (c *Calculator) Calculate(buyPrice, sellPrice decimal.Decimal, opts Options) model.ProfitCalculation {
	sched := c.sellSide
	if opts.Direction == SourceIsSellSide {
		sched = c.buySide
	}

	referralRate := sched.DefaultReferral
	if r, ok := sched.ReferralByCategory[opts.Category]; ok {
		referralRate = r
	}

	referral := sellPrice.Mul(referralRate).Round(MoneyScale)
	payment := sellPrice.Mul(sched.PaymentRate).Add(sched.PaymentFixed).Round(MoneyScale)
	fulfillment := sched.FulfillmentByTier[opts.WeightTier]

	fees := model.FeeBreakdown{
		ListingFee:        sched.ListingFee,
		ReferralFee:       referral,
		PaymentProcessing: payment,
		FulfillmentFee:    fulfillment,
	}
	fees.Total = fees.ListingFee.Add(fees.ReferralFee).Add(fees.PaymentProcessing).Add(fees.FulfillmentFee)

	shipping := model.ShippingBreakdown{
		Inbound:   opts.InboundShipping,
		Outbound:  opts.OutboundShipping,
		Packaging: opts.Packaging,
	}
	shipping.Total = shipping.Inbound.Add(shipping.Outbound).Add(shipping.Packaging)

	totalCost := buyPrice.Add(fees.Total).Add(shipping.Total).Add(opts.CustomsDuty).Round(MoneyScale)
	totalRevenue := sellPrice.Round(MoneyScale)
	netProfit := totalRevenue.Sub(totalCost)

	var roi, margin float64
	if totalCost.IsPositive() {
		roi, _ = netProfit.Div(totalCost).Mul(decimal.NewFromInt(100)).Round(4).Float64()
	}
	if totalRevenue.IsPositive() {
		margin, _ = netProfit.Div(totalRevenue).Mul(decimal.NewFromInt(100)).Round(4).Float64()
	}

	return model.ProfitCalculation{
		BuyPrice:     buyPrice,
		SellPrice:    sellPrice,
		Fees:         fees,
		Shipping:     shipping,
		TotalCost:    totalCost,
		TotalRevenue: totalRevenue,
		NetProfit:    netProfit,
		ROI:          roi,
		Margin:       margin,
	}
}

// Thresholds are the caller-supplied minimums for viability.
type Thresholds struct {
	MinROI    float64         // percent
	MinProfit decimal.Decimal // absolute
	MinMargin float64         // percent
}

// DefaultThresholds returns the standard viability floor: ROI >= 20%,
// profit >= $5, margin >= 10%.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinROI:    20,
		MinProfit: decimal.NewFromInt(5),
		MinMargin: 10,
	}
}

// IsViable reports whether a calculation clears every threshold. All three
// checks must pass; a negative-profit calculation always fails here rather
// than erroring upstream.
func IsViable(calc model.ProfitCalculation, t Thresholds) bool {
	if calc.ROI < t.MinROI {
		return false
	}
	if calc.NetProfit.LessThan(t.MinProfit) {
		return false
	}
	if calc.Margin < t.MinMargin {
		return false
	}
	return true
}
