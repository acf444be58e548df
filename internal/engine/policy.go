package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ActivateLLC/arbi-sub000/internal/metrics"
	"github.com/ActivateLLC/arbi-sub000/internal/model"
)

// rule is one (predicate, action) entry in the decision policy. Rules are
// evaluated in order; exactly the first matching rule fires.
type rule struct {
	name string
	when func(t *model.TrackedOpportunity) bool
	act  func(ctx context.Context, t *model.TrackedOpportunity)
}

// decisionRules builds the ordered policy:
//
//  1. auto-buy: score clears the auto-buy threshold, auto-buy is enabled,
//     and the cycle's spend plus this cost fits the daily budget.
//  2. auto-buy budget fallback: would have auto-bought but the budget is
//     exhausted — escalated to a high-priority alert, never dropped.
//  3. high alert: score >= HighAlertScore.
//  4. medium alert: score >= AlertScore.
//
// Anything below the alert threshold matches no rule and stays pending.
func (e *Engine) decisionRules() []rule {
	return []rule{
		{
			name: "auto_buy",
			when: func(t *model.TrackedOpportunity) bool {
				return e.cfg.AutoBuyEnabled &&
					t.Score.Score >= e.cfg.AutoBuyScore &&
					e.dailySpent.Add(t.Opportunity.TotalCost()).LessThanOrEqual(e.cfg.DailyBudget)
			},
			act: e.executePurchase,
		},
		{
			name: "auto_buy_budget_fallback",
			when: func(t *model.TrackedOpportunity) bool {
				return e.cfg.AutoBuyEnabled && t.Score.Score >= e.cfg.AutoBuyScore
			},
			act: func(ctx context.Context, t *model.TrackedOpportunity) {
				slog.Warn("auto-buy budget exhausted, escalating to alert",
					"opportunity", t.Opportunity.ID,
					"cost", t.Opportunity.TotalCost().String(),
					"daily_spent", e.dailySpent.String(),
					"daily_budget", e.cfg.DailyBudget.String(),
				)
				e.sendAlert(ctx, t, PriorityHigh)
			},
		},
		{
			name: "high_alert",
			when: func(t *model.TrackedOpportunity) bool {
				return t.Score.Score >= e.cfg.HighAlertScore
			},
			act: func(ctx context.Context, t *model.TrackedOpportunity) {
				e.sendAlert(ctx, t, PriorityHigh)
			},
		},
		{
			name: "medium_alert",
			when: func(t *model.TrackedOpportunity) bool {
				return t.Score.Score >= e.cfg.AlertScore
			},
			act: func(ctx context.Context, t *model.TrackedOpportunity) {
				e.sendAlert(ctx, t, PriorityMedium)
			},
		},
	}
}

// route evaluates the policy for one tracked opportunity. Caller holds e.mu.
// Opportunities already alerted or purchased in a previous cycle are not
// re-routed.
func (e *Engine) route(ctx context.Context, t *model.TrackedOpportunity) {
	if t.Status != model.StatusPending {
		return
	}
	for _, r := range e.rules {
		if r.when(t) {
			r.act(ctx, t)
			return
		}
	}
	// Below alert threshold: stays pending, retained for querying.
}

// executePurchase runs the autonomous purchase path: external execution,
// status transition, spend accounting, ledger record, broadcast. An
// execution failure degrades to a high-priority alert.
func (e *Engine) executePurchase(ctx context.Context, t *model.TrackedOpportunity) {
	cost := t.Opportunity.TotalCost()

	if e.purchaser != nil {
		if err := e.purchaser.Execute(ctx, t.Opportunity); err != nil {
			slog.Error("purchase execution failed, escalating to alert",
				"opportunity", t.Opportunity.ID, "err", err)
			e.sendAlert(ctx, t, PriorityHigh)
			return
		}
	}

	if err := e.table.UpdateStatus(ctx, t.Opportunity.ID, model.StatusPurchased); err != nil {
		slog.Error("failed to mark opportunity purchased", "opportunity", t.Opportunity.ID, "err", err)
		return
	}
	t.Status = model.StatusPurchased

	e.dailySpent = e.dailySpent.Add(cost)
	if e.riskMgr != nil {
		e.riskMgr.RecordSpending(e.cfg.UserID, cost)
	}

	purchase := &model.Purchase{
		ID:            uuid.New().String(),
		OpportunityID: t.Opportunity.ID,
		UserID:        e.cfg.UserID,
		Cost:          cost,
		Timestamp:     time.Now().UTC(),
	}
	if err := e.table.InsertPurchase(ctx, purchase); err != nil {
		slog.Error("failed to record purchase", "opportunity", t.Opportunity.ID, "err", err)
	}

	metrics.PurchasesTotal.Inc()
	slog.Info("autonomous purchase executed",
		"opportunity", t.Opportunity.ID,
		"cost", cost.String(),
		"score", t.Score.Score,
		"daily_spent", e.dailySpent.String(),
	)

	if e.alerts != nil {
		e.alerts.PurchaseExecuted(*t)
	}
}

// sendAlert transitions to alerted and broadcasts.
func (e *Engine) sendAlert(ctx context.Context, t *model.TrackedOpportunity, priority string) {
	if err := e.table.UpdateStatus(ctx, t.Opportunity.ID, model.StatusAlerted); err != nil {
		slog.Error("failed to mark opportunity alerted", "opportunity", t.Opportunity.ID, "err", err)
		return
	}
	t.Status = model.StatusAlerted

	metrics.AlertsTotal.WithLabelValues(priority).Inc()
	slog.Info("opportunity alert",
		"opportunity", t.Opportunity.ID,
		"priority", priority,
		"score", t.Score.Score,
		"tier", t.Score.Tier,
		"profit", t.Opportunity.EstimatedProfit.String(),
	)

	if e.alerts != nil {
		e.alerts.Alert(*t, priority)
	}
}
