package risk

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ActivateLLC/arbi-sub000/internal/market"
	"github.com/ActivateLLC/arbi-sub000/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func settings(tol model.RiskTolerance) model.BudgetSettings {
	return model.BudgetSettings{
		DailyLimit:        d(500),
		MonthlyLimit:      d(5000),
		PerOpportunityMax: d(400),
		RiskTolerance:     tol,
	}
}

func calmOpp(buyPrice float64) model.Opportunity {
	return model.Opportunity{
		ID:         "opp-1",
		Type:       model.StrategyOnlineArbitrage,
		BuyPrice:   d(buyPrice),
		SellPrice:  d(buyPrice * 2),
		Confidence: 90,
		Volatility: 10,
	}
}

func TestAssessRisk_OverDailyLimitFailsEveryTolerance(t *testing.T) {
	for _, tol := range []model.RiskTolerance{
		model.ToleranceConservative,
		model.ToleranceModerate,
		model.ToleranceAggressive,
	} {
		m := NewManager(nil)
		s := settings(tol)
		s.PerOpportunityMax = decimal.Zero // isolate the daily gate

		got, err := m.AssessRisk(context.Background(), calmOpp(600), "u1", s)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tol, err)
		}
		if got.Approved {
			t.Errorf("%s: 600 against a 500 daily limit must not be approved", tol)
		}
		if got.Budget.Passed {
			t.Errorf("%s: budget check should fail", tol)
		}
		if len(got.Reasons) == 0 {
			t.Errorf("%s: rejection must carry a reason", tol)
		}
	}
}

func TestAssessRisk_BudgetGateOrder(t *testing.T) {
	m := NewManager(nil)

	// Per-opportunity cap fires first even when daily would also fail.
	got, err := m.AssessRisk(context.Background(), calmOpp(600), "u1", settings(model.ToleranceAggressive))
	if err != nil {
		t.Fatal(err)
	}
	if got.Budget.Passed {
		t.Error("budget check should fail")
	}
	if got.Budget.Reason == "" || got.Budget.DailyRemaining.Cmp(d(500)) != 0 {
		t.Errorf("unexpected budget check: %+v", got.Budget)
	}
}

func TestAssessRisk_ApprovedWithinBudget(t *testing.T) {
	m := NewManager(nil)

	got, err := m.AssessRisk(context.Background(), calmOpp(100), "u1", settings(model.ToleranceModerate))
	if err != nil {
		t.Fatal(err)
	}
	if !got.Approved {
		t.Errorf("expected approval, reasons: %v, risk %v", got.Reasons, got.RiskScore)
	}

	// Assessment never writes the ledger.
	daily, monthly := m.Spending("u1")
	if !daily.IsZero() || !monthly.IsZero() {
		t.Errorf("assessment mutated the ledger: daily %s monthly %s", daily, monthly)
	}
}

func TestRecordSpending_ReducesRemaining(t *testing.T) {
	m := NewManager(nil)
	m.RecordSpending("u1", d(450))

	got, err := m.AssessRisk(context.Background(), calmOpp(100), "u1", settings(model.ToleranceAggressive))
	if err != nil {
		t.Fatal(err)
	}
	if got.Approved {
		t.Error("100 against 50 daily remaining must not be approved")
	}
	if got.Budget.DailyRemaining.Cmp(d(50)) != 0 {
		t.Errorf("daily remaining = %s, want 50", got.Budget.DailyRemaining)
	}

	// Ledgers are per-user: a different user is unaffected.
	other, err := m.AssessRisk(context.Background(), calmOpp(100), "u2", settings(model.ToleranceAggressive))
	if err != nil {
		t.Fatal(err)
	}
	if !other.Approved {
		t.Errorf("other user should be unaffected: %v", other.Reasons)
	}
}

func TestLedgerRollover(t *testing.T) {
	m := NewManager(nil)
	current := time.Date(2026, time.March, 31, 23, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return current }

	m.RecordSpending("u1", d(300))

	// Next day, new month: both counters reset.
	current = time.Date(2026, time.April, 1, 1, 0, 0, 0, time.UTC)
	daily, monthly := m.Spending("u1")
	if !daily.IsZero() {
		t.Errorf("daily should reset on day rollover, got %s", daily)
	}
	if !monthly.IsZero() {
		t.Errorf("monthly should reset on month rollover, got %s", monthly)
	}

	m.RecordSpending("u1", d(200))

	// Next day, same month: daily resets, monthly carries.
	current = time.Date(2026, time.April, 2, 9, 0, 0, 0, time.UTC)
	daily, monthly = m.Spending("u1")
	if !daily.IsZero() {
		t.Errorf("daily should reset, got %s", daily)
	}
	if monthly.Cmp(d(200)) != 0 {
		t.Errorf("monthly should carry within the month, got %s", monthly)
	}
}

func TestAssessRisk_ToleranceCeilings(t *testing.T) {
	m := NewManager(nil)

	// Risky but affordable: volatility 100 -> 30, exposure ~1.2,
	// confidence deficit 10, days 5 -> risk score ~46.
	opp := calmOpp(100)
	opp.Volatility = 100
	opp.Confidence = 50
	opp.EstimatedDaysToProfit = 5

	conservative, err := m.AssessRisk(context.Background(), opp, "u1", settings(model.ToleranceConservative))
	if err != nil {
		t.Fatal(err)
	}
	if conservative.Approved {
		t.Errorf("risk %v should exceed the conservative ceiling", conservative.RiskScore)
	}

	aggressive, err := m.AssessRisk(context.Background(), opp, "u1", settings(model.ToleranceAggressive))
	if err != nil {
		t.Fatal(err)
	}
	if !aggressive.Approved {
		t.Errorf("risk %v should pass the aggressive ceiling, reasons %v", aggressive.RiskScore, aggressive.Reasons)
	}

	// Unknown tolerance falls back to moderate.
	fallback, err := m.AssessRisk(context.Background(), opp, "u1", settings(model.RiskTolerance("yolo")))
	if err != nil {
		t.Fatal(err)
	}
	if fallback.Approved != (fallback.RiskScore <= 60) {
		t.Errorf("unknown tolerance should use the moderate ceiling: score %v approved %v",
			fallback.RiskScore, fallback.Approved)
	}
}

func TestAssessRisk_StrategyGate(t *testing.T) {
	m := NewManager(nil)

	s := settings(model.ToleranceModerate)
	s.EnabledStrategies = []model.StrategyType{model.StrategyRetailArbitrage}

	got, err := m.AssessRisk(context.Background(), calmOpp(100), "u1", s)
	if err != nil {
		t.Fatal(err)
	}
	if got.Approved {
		t.Error("online_arbitrage must be rejected when only retail_arbitrage is enabled")
	}
	if !got.Budget.Passed {
		t.Error("the strategy gate must not masquerade as a budget failure")
	}
	if len(got.Reasons) == 0 {
		t.Error("rejection must carry a reason")
	}

	s.EnabledStrategies = append(s.EnabledStrategies, model.StrategyOnlineArbitrage)
	got, err = m.AssessRisk(context.Background(), calmOpp(100), "u1", s)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Approved {
		t.Errorf("listed strategy should pass: %v", got.Reasons)
	}
}

func TestAssessRisk_ReserveFundCarvedFromMonthly(t *testing.T) {
	m := NewManager(nil)

	s := settings(model.ToleranceAggressive)
	s.ReserveFund = d(4950) // leaves 50 of the 5000 monthly limit spendable

	got, err := m.AssessRisk(context.Background(), calmOpp(100), "u1", s)
	if err != nil {
		t.Fatal(err)
	}
	if got.Approved || got.Budget.Passed {
		t.Error("100 against 50 spendable monthly must not pass")
	}
	if got.Budget.MonthlyRemaining.Cmp(d(50)) != 0 {
		t.Errorf("monthly remaining = %s, want 50 after the reserve carve-out", got.Budget.MonthlyRemaining)
	}
}

func TestAssessRisk_CrisisPausesEverything(t *testing.T) {
	provider := &market.StaticProvider{Conditions: market.Classify(45, "rising")}
	m := NewManager(provider)

	got, err := m.AssessRisk(context.Background(), calmOpp(50), "u1", settings(model.ToleranceAggressive))
	if err != nil {
		t.Fatal(err)
	}
	if got.Approved {
		t.Error("crisis conditions must veto approval regardless of budget")
	}
	if got.Budget.Passed != true {
		t.Error("budget itself should still pass; the veto is the pause")
	}
}

func TestAssessRisk_ProviderFailureDegradesToNeutral(t *testing.T) {
	provider := &market.StaticProvider{Err: errors.New("indicator feed down")}
	m := NewManager(provider)

	got, err := m.AssessRisk(context.Background(), calmOpp(100), "u1", settings(model.ToleranceModerate))
	if err != nil {
		t.Fatalf("provider failure must not fail the assessment: %v", err)
	}
	if !got.Approved {
		t.Errorf("neutral conditions should approve a calm opportunity: %v", got.Reasons)
	}
}
