// Package risk evaluates candidate opportunities against per-user budgets
// and a risk-tolerance profile. The manager owns the per-user spend ledgers;
// RecordSpending is the only mutator and must be called exactly once per
// executed purchase — assessment never writes the ledger.
package risk

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ActivateLLC/arbi-sub000/internal/market"
	"github.com/ActivateLLC/arbi-sub000/internal/model"
)

// Tolerance bands: the maximum acceptable risk score per profile.
var toleranceCeiling = map[model.RiskTolerance]float64{
	model.ToleranceConservative: 30,
	model.ToleranceModerate:     60,
	model.ToleranceAggressive:   85,
}

// spendLedger tracks one user's running spend. Created lazily on first
// assessment; counters reset when the wall-clock day/month rolls over.
type spendLedger struct {
	dailySpent   decimal.Decimal
	monthlySpent decimal.Decimal
	lastReset    time.Time
}

// Manager is the stateful risk gate. Safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	ledgers  map[string]*spendLedger
	provider market.Provider
	now      func() time.Time
}

// NewManager creates a risk manager. provider may be nil, in which case
// assessments run with neutral market conditions.
func NewManager(provider market.Provider) *Manager {
	return &Manager{
		ledgers:  make(map[string]*spendLedger),
		provider: provider,
		now:      time.Now,
	}
}

// AssessRisk evaluates one opportunity for one user. It consults the market
// indicator provider when available; a provider failure degrades to neutral
// conditions rather than blocking the assessment.
func (m *Manager) AssessRisk(ctx context.Context, opp model.Opportunity, userID string, settings model.BudgetSettings) (model.RiskAssessment, error) {
	conditions := market.Conditions{RiskAdjustment: 1.0, VolatilityState: market.StateNormal}
	if m.provider != nil {
		c, err := m.provider.GetMarketConditions(ctx)
		if err != nil {
			slog.Warn("market indicator unavailable, assuming neutral conditions", "err", err)
		} else {
			conditions = c
		}
	}

	m.mu.Lock()
	ledger := m.ledgerLocked(userID)
	m.resetIfRolledOver(ledger)
	budget := checkBudget(opp, ledger, settings)
	m.mu.Unlock()

	var reasons []string
	if !budget.Passed {
		reasons = append(reasons, budget.Reason)
	}

	// An empty EnabledStrategies list means every strategy is allowed.
	strategyOK := strategyEnabled(opp.Type, settings.EnabledStrategies)
	if !strategyOK {
		reasons = append(reasons, fmt.Sprintf("strategy %s is not enabled for this user", opp.Type))
	}

	riskScore := scoreRisk(opp, settings, conditions)
	ceiling := toleranceCeiling[settings.RiskTolerance]
	if ceiling == 0 {
		ceiling = toleranceCeiling[model.ToleranceModerate]
	}
	acceptable := riskScore <= ceiling
	if !acceptable {
		reasons = append(reasons, fmt.Sprintf("risk score %.1f exceeds %s ceiling %.0f", riskScore, settings.RiskTolerance, ceiling))
	}

	paused := market.ShouldPauseArbitrage(conditions)
	if paused {
		reasons = append(reasons, fmt.Sprintf("arbitrage paused: market volatility %s (level %.1f)", conditions.VolatilityState, conditions.Level))
	}

	return model.RiskAssessment{
		Approved:  budget.Passed && acceptable && !paused && strategyOK,
		Budget:    budget,
		RiskScore: riskScore,
		Reasons:   reasons,
	}, nil
}

// RecordSpending adds an executed purchase amount to the user's ledger.
func (m *Manager) RecordSpending(userID string, amount decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ledger := m.ledgerLocked(userID)
	m.resetIfRolledOver(ledger)
	ledger.dailySpent = ledger.dailySpent.Add(amount)
	ledger.monthlySpent = ledger.monthlySpent.Add(amount)
}

// Spending returns the user's current daily and monthly spend, after any
// pending rollover reset.
func (m *Manager) Spending(userID string) (daily, monthly decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ledger := m.ledgerLocked(userID)
	m.resetIfRolledOver(ledger)
	return ledger.dailySpent, ledger.monthlySpent
}

func (m *Manager) ledgerLocked(userID string) *spendLedger {
	ledger, ok := m.ledgers[userID]
	if !ok {
		ledger = &spendLedger{lastReset: m.now()}
		m.ledgers[userID] = ledger
	}
	return ledger
}

// resetIfRolledOver zeroes the daily counter when the calendar day has
// changed since lastReset, and the monthly counter when the month has.
func (m *Manager) resetIfRolledOver(ledger *spendLedger) {
	now := m.now()
	ly, lm, ld := ledger.lastReset.Date()
	ny, nm, nd := now.Date()

	if ly != ny || lm != nm || ld != nd {
		ledger.dailySpent = decimal.Zero
	}
	if ly != ny || lm != nm {
		ledger.monthlySpent = decimal.Zero
	}
	ledger.lastReset = now
}

func strategyEnabled(t model.StrategyType, enabled []model.StrategyType) bool {
	if len(enabled) == 0 {
		return true
	}
	for _, s := range enabled {
		if s == t {
			return true
		}
	}
	return false
}

// checkBudget applies the three spend gates: per-opportunity cap, daily
// remaining, monthly remaining. The reserve fund is carved out of the
// monthly budget and is never spendable. Caller holds the mutex.
func checkBudget(opp model.Opportunity, ledger *spendLedger, settings model.BudgetSettings) model.BudgetCheck {
	dailyRemaining := settings.DailyLimit.Sub(ledger.dailySpent)
	monthlyRemaining := settings.MonthlyLimit.Sub(ledger.monthlySpent).Sub(settings.ReserveFund)

	check := model.BudgetCheck{
		DailyRemaining:   dailyRemaining,
		MonthlyRemaining: monthlyRemaining,
	}

	switch {
	case settings.PerOpportunityMax.IsPositive() && opp.BuyPrice.GreaterThan(settings.PerOpportunityMax):
		check.Reason = fmt.Sprintf("buy price %s exceeds per-opportunity max %s", opp.BuyPrice, settings.PerOpportunityMax)
	case opp.BuyPrice.GreaterThan(dailyRemaining):
		check.Reason = fmt.Sprintf("buy price %s exceeds daily remaining %s", opp.BuyPrice, dailyRemaining)
	case opp.BuyPrice.GreaterThan(monthlyRemaining):
		check.Reason = fmt.Sprintf("buy price %s exceeds monthly remaining %s", opp.BuyPrice, monthlyRemaining)
	default:
		check.Passed = true
	}
	return check
}

// scoreRisk computes the weighted 0-100 risk score:
// opportunity volatility x0.3, capital exposure relative to the monthly
// limit x30 (capped), confidence deficit x0.2, time-to-profit penalty
// (capped at 20), all scaled by the market risk adjustment.
func scoreRisk(opp model.Opportunity, settings model.BudgetSettings, conditions market.Conditions) float64 {
	score := opp.Volatility * 0.3

	if settings.MonthlyLimit.IsPositive() {
		ratio, _ := opp.TotalCost().Div(settings.MonthlyLimit).Float64()
		exposure := ratio * 30
		if exposure > 30 {
			exposure = 30
		}
		score += exposure
	}

	score += (100 - opp.Confidence) * 0.2

	timePenalty := float64(opp.EstimatedDaysToProfit)
	if timePenalty > 20 {
		timePenalty = 20
	}
	score += timePenalty

	adjustment := conditions.RiskAdjustment
	if adjustment <= 0 {
		adjustment = 1.0
	}
	score *= adjustment

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}
