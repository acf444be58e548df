// Package engine orchestrates the discovery-and-decision loop: concurrent
// scout fan-out, normalization into the opportunity table, and tiered
// decision routing (alert vs. autonomous purchase) under a daily budget.
//
// One engine instance supports at most one in-flight scan cycle; RunScan
// serializes itself with a mutex, and callers (the scheduler) must not
// overlap cycles.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ActivateLLC/arbi-sub000/internal/market"
	"github.com/ActivateLLC/arbi-sub000/internal/metrics"
	"github.com/ActivateLLC/arbi-sub000/internal/model"
	"github.com/ActivateLLC/arbi-sub000/internal/risk"
	"github.com/ActivateLLC/arbi-sub000/internal/scoring"
	"github.com/ActivateLLC/arbi-sub000/internal/scout"
	"github.com/ActivateLLC/arbi-sub000/internal/store"
)

// Alert priorities.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
)

// Purchaser executes an autonomous purchase. Implementations are external
// (checkout automation); the engine only observes success or failure.
type Purchaser interface {
	Execute(ctx context.Context, opp model.Opportunity) error
}

// AlertSink receives routed alerts. The WebSocket hub implements this.
type AlertSink interface {
	Alert(t model.TrackedOpportunity, priority string)
	PurchaseExecuted(t model.TrackedOpportunity)
}

// Config controls engine behavior. Validated once at construction.
type Config struct {
	AutoBuyEnabled bool
	AutoBuyScore   float64         // score threshold for the autonomous path
	DailyBudget    decimal.Decimal // engine-wide autonomous spend cap per day
	HighAlertScore float64         // default 80
	AlertScore     float64         // default 70
	ScoutTimeout   time.Duration   // per-scout scan deadline
	ScanInterval   time.Duration   // passed through to derived scout configs
	UserID         string          // ledger identity for autonomous purchases
	Filters        scout.Filters   // shared filters narrowed per scout
}

// DefaultConfig returns the standard thresholds: auto-buy off at score 90,
// alerts at 80/70, 30s scout timeout.
func DefaultConfig() Config {
	return Config{
		AutoBuyEnabled: false,
		AutoBuyScore:   90,
		DailyBudget:    decimal.NewFromInt(500),
		HighAlertScore: 80,
		AlertScore:     70,
		ScoutTimeout:   30 * time.Second,
		ScanInterval:   15 * time.Minute,
		UserID:         "engine",
	}
}

// Validate rejects malformed configs before any scan begins.
func (c Config) Validate() error {
	if c.AutoBuyScore <= 0 || c.AutoBuyScore > 100 {
		return fmt.Errorf("engine: auto-buy score must be in (0,100], got %v", c.AutoBuyScore)
	}
	if c.DailyBudget.IsNegative() {
		return errors.New("engine: daily budget cannot be negative")
	}
	if c.HighAlertScore <= 0 || c.AlertScore <= 0 {
		return errors.New("engine: alert thresholds must be positive")
	}
	if c.AlertScore > c.HighAlertScore {
		return errors.New("engine: alert threshold cannot exceed high-alert threshold")
	}
	if c.ScoutTimeout <= 0 {
		return errors.New("engine: scout timeout must be positive")
	}
	if c.ScanInterval <= 0 {
		return errors.New("engine: scan interval must be positive")
	}
	return nil
}

// Stats is the aggregate snapshot returned by Stats(), computed fresh from
// the live table on every call.
type Stats struct {
	Total                int             `json:"total"`
	Pending              int             `json:"pending"`
	AlertedCount         int             `json:"alerted_count"`
	PurchasedCount       int             `json:"purchased_count"`
	AverageScore         float64         `json:"average_score"`
	TotalPotentialProfit decimal.Decimal `json:"total_potential_profit"`
	DailySpent           decimal.Decimal `json:"daily_spent"`
	LastScanTime         time.Time       `json:"last_scan_time"`
}

// Filter narrows GetOpportunities results.
type Filter struct {
	MinScore float64
	Status   model.Status // empty = any
	Limit    int          // 0 = unlimited
}

// Engine is the autonomous opportunity engine. All mutable state is
// instance-owned; multiple engines can coexist in one process.
type Engine struct {
	cfg       Config
	scorer    *scoring.Scorer
	riskMgr   *risk.Manager
	provider  market.Provider
	table     store.Store
	purchaser Purchaser
	alerts    AlertSink

	mu           sync.Mutex // serializes scan cycles and spend mutation
	scouts       map[string]scout.Scout
	scoutConfigs map[string]scout.Config
	dailySpent   decimal.Decimal
	lastScanTime time.Time

	rules []rule
	now   func() time.Time
}

// New creates an engine. table defaults to an in-memory store when nil;
// purchaser and alerts may be nil (the corresponding actions become
// log-only). riskMgr may be nil when no per-user ledger is wired, and
// provider may be nil when no market indicator is configured — scoring
// then runs without a conditions reading.
func New(cfg Config, scorer *scoring.Scorer, riskMgr *risk.Manager, provider market.Provider, table store.Store, purchaser Purchaser, alerts AlertSink) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if table == nil {
		table = store.NewMemoryStore()
	}
	if scorer == nil {
		scorer = scoring.NewScorer(scoring.DefaultConfig())
	}
	e := &Engine{
		cfg:          cfg,
		scorer:       scorer,
		riskMgr:      riskMgr,
		provider:     provider,
		table:        table,
		purchaser:    purchaser,
		alerts:       alerts,
		scouts:       make(map[string]scout.Scout),
		scoutConfigs: make(map[string]scout.Config),
		dailySpent:   decimal.Zero,
		now:          time.Now,
	}
	e.rules = e.decisionRules()
	return e, nil
}

// RegisterScout adds a scout under name. Registration is idempotent per
// name — re-registering overwrites.
func (e *Engine) RegisterScout(name string, s scout.Scout) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scouts[name] = s
}

// SetScoutSources configures the source URLs a named scout scans. The
// derived per-scout config inherits the engine's shared filters.
func (e *Engine) SetScoutSources(name string, sources []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scoutConfigs[name] = scout.Config{
		Enabled:      true,
		ScanInterval: e.cfg.ScanInterval,
		Sources:      sources,
		Filters:      e.cfg.Filters,
	}
}

// scoutResult carries one scout's contribution out of the fan-out.
type scoutResult struct {
	name string
	opps []model.Opportunity
	err  error
}

// RunScan executes one full scan cycle: concurrent fan-out across all
// registered scouts, normalization, and decision routing. A scout failure
// contributes an empty list and never aborts the cycle. lastScanTime is
// updated regardless of outcome.
func (e *Engine) RunScan(ctx context.Context) ([]model.TrackedOpportunity, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := e.now()
	defer func() {
		e.lastScanTime = e.now()
		metrics.ScansTotal.Inc()
		metrics.ScanDuration.Observe(time.Since(start).Seconds())
	}()

	// One conditions reading per cycle; every opportunity in the cycle is
	// scored against the same market view.
	marketSig := e.marketSignal(ctx)

	results := e.fanOut(ctx)

	var routed []model.TrackedOpportunity
	for _, res := range results {
		if res.err != nil {
			// Failure isolation: log and continue with the other scouts.
			slog.Error("scout scan failed", "scout", res.name, "err", res.err)
			metrics.ScoutFailures.WithLabelValues(res.name).Inc()
			continue
		}
		metrics.OpportunitiesFound.WithLabelValues(res.name).Add(float64(len(res.opps)))

		for _, opp := range res.opps {
			t, err := e.normalize(ctx, res.name, opp, marketSig)
			if err != nil {
				slog.Error("failed to track opportunity", "scout", res.name, "err", err)
				continue
			}
			e.route(ctx, t)
			routed = append(routed, *t)
		}
	}

	if list, err := e.table.ListOpportunities(ctx); err == nil {
		metrics.TrackedOpportunities.Set(float64(len(list)))
	}

	slog.Info("scan cycle complete",
		"scouts", len(e.scouts),
		"opportunities", len(routed),
		"daily_spent", e.dailySpent.String(),
		"duration", time.Since(start).String(),
	)
	return routed, nil
}

// fanOut invokes every registered scout concurrently, each under its own
// timeout. Per-scout emission order is preserved inside each result; no
// order is guaranteed across scouts. Caller holds e.mu.
func (e *Engine) fanOut(ctx context.Context) []scoutResult {
	results := make([]scoutResult, 0, len(e.scouts))
	ch := make(chan scoutResult, len(e.scouts))

	var wg sync.WaitGroup
	for name, s := range e.scouts {
		cfg, ok := e.scoutConfigs[name]
		if !ok {
			cfg = scout.Config{
				Enabled:      true,
				ScanInterval: e.cfg.ScanInterval,
				Sources:      []string{"default"},
				Filters:      e.cfg.Filters,
			}
		}

		wg.Add(1)
		go func(name string, s scout.Scout, cfg scout.Config) {
			defer wg.Done()
			scanCtx, cancel := context.WithTimeout(ctx, e.cfg.ScoutTimeout)
			defer cancel()

			opps, err := s.Scan(scanCtx, cfg)
			ch <- scoutResult{name: name, opps: opps, err: err}
		}(name, s, cfg)
	}
	wg.Wait()
	close(ch)

	for res := range ch {
		results = append(results, res)
	}
	return results
}

// marketSignal fetches one conditions reading for a scan cycle. A missing
// provider or a fetch failure yields nil, which the scorer treats as "no
// reading available".
func (e *Engine) marketSignal(ctx context.Context) *scoring.MarketSignal {
	if e.provider == nil {
		return nil
	}
	c, err := e.provider.GetMarketConditions(ctx)
	if err != nil {
		slog.Warn("market conditions unavailable for scoring", "err", err)
		return nil
	}
	return &scoring.MarketSignal{Level: c.Level, Trend: c.Trend}
}

// normalize tags an opportunity with its originating scout, fills identity
// fields, scores it, and upserts into the table (last-write-wins on id). A
// re-scanned id keeps its previous status; a new id starts pending.
func (e *Engine) normalize(ctx context.Context, scoutName string, opp model.Opportunity, marketSig *scoring.MarketSignal) (*model.TrackedOpportunity, error) {
	opp.Source = scoutName
	if opp.ID == "" {
		opp.ID = uuid.New().String()
	}
	if opp.DiscoveredAt.IsZero() {
		opp.DiscoveredAt = e.now().UTC()
	}

	sc := e.scoreOpportunity(opp, marketSig)

	status := model.StatusPending
	if prev, err := e.table.GetOpportunity(ctx, opp.ID); err == nil {
		status = prev.Status
	}

	t := &model.TrackedOpportunity{
		Opportunity: opp,
		Score:       sc,
		Status:      status,
		UpdatedAt:   e.now().UTC(),
	}
	if err := e.table.UpsertOpportunity(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// scoreOpportunity rebuilds a profit view from the opportunity's own
// commercial terms and pulls auxiliary signals out of scout metadata.
func (e *Engine) scoreOpportunity(opp model.Opportunity, marketSig *scoring.MarketSignal) model.Score {
	totalCost := opp.TotalCost()
	calc := model.ProfitCalculation{
		BuyPrice:     opp.BuyPrice,
		SellPrice:    opp.SellPrice,
		TotalCost:    totalCost,
		TotalRevenue: opp.SellPrice,
		NetProfit:    opp.EstimatedProfit,
		ROI:          opp.ROI,
	}
	if opp.SellPrice.IsPositive() {
		margin, _ := opp.EstimatedProfit.Div(opp.SellPrice).Mul(decimal.NewFromInt(100)).Float64()
		calc.Margin = margin
	}

	sig := scoring.Signals{Competitors: -1}
	if v, err := strconv.ParseFloat(opp.Metadata["seller_rating"], 64); err == nil {
		sig.SellerRating = v
	}
	if v, err := strconv.Atoi(opp.Metadata["seller_reviews"]); err == nil {
		sig.SellerReviews = v
	}
	if v, err := strconv.Atoi(opp.Metadata["competitors"]); err == nil {
		sig.Competitors = v
	}
	if v, err := strconv.Atoi(opp.Metadata["demand_rank"]); err == nil {
		sig.DemandRank = v
	}

	return e.scorer.Score(opp, calc, sig, marketSig)
}

// GetOpportunities returns a score-descending snapshot of the table.
// Expired entries are never returned; reading does not mutate status.
func (e *Engine) GetOpportunities(ctx context.Context, f Filter) ([]model.TrackedOpportunity, error) {
	list, err := e.table.ListOpportunities(ctx)
	if err != nil {
		return nil, err
	}

	now := e.now()
	filtered := make([]model.TrackedOpportunity, 0, len(list))
	for _, t := range list {
		if t.Opportunity.Expired(now) {
			continue
		}
		if t.Score.Score < f.MinScore {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		filtered = append(filtered, t)
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].Score.Score > filtered[j].Score.Score
	})

	if f.Limit > 0 && len(filtered) > f.Limit {
		filtered = filtered[:f.Limit]
	}
	return filtered, nil
}

// Stats computes aggregate counts fresh from the live table.
func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	list, err := e.table.ListOpportunities(ctx)
	if err != nil {
		return Stats{}, err
	}

	e.mu.Lock()
	stats := Stats{
		DailySpent:           e.dailySpent,
		LastScanTime:         e.lastScanTime,
		TotalPotentialProfit: decimal.Zero,
	}
	e.mu.Unlock()

	var scoreSum float64
	for _, t := range list {
		stats.Total++
		switch t.Status {
		case model.StatusPending:
			stats.Pending++
		case model.StatusAlerted:
			stats.AlertedCount++
		case model.StatusPurchased:
			stats.PurchasedCount++
		}
		scoreSum += t.Score.Score
		if t.Opportunity.EstimatedProfit.IsPositive() {
			stats.TotalPotentialProfit = stats.TotalPotentialProfit.Add(t.Opportunity.EstimatedProfit)
		}
	}
	if stats.Total > 0 {
		stats.AverageScore = scoreSum / float64(stats.Total)
	}
	return stats, nil
}

// CleanupExpired deletes every entry past its expiry. Idempotent: a second
// immediate call removes nothing further.
func (e *Engine) CleanupExpired(ctx context.Context) (int, error) {
	removed, err := e.table.DeleteExpired(ctx, e.now())
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		slog.Info("expired opportunities removed", "count", removed)
	}
	if list, err := e.table.ListOpportunities(ctx); err == nil {
		metrics.TrackedOpportunities.Set(float64(len(list)))
	}
	return removed, nil
}

// ResetDailyCounters zeroes the engine's autonomous spend counter. Intended
// for an external scheduler at the day boundary; the engine does not
// self-schedule.
func (e *Engine) ResetDailyCounters() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dailySpent = decimal.Zero
	slog.Info("daily spend counter reset")
}

// DailySpent returns the engine's autonomous spend since the last reset.
func (e *Engine) DailySpent() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dailySpent
}

// LastScanTime returns the completion time of the most recent scan cycle.
func (e *Engine) LastScanTime() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastScanTime
}
