package engine

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ActivateLLC/arbi-sub000/internal/cache"
	"github.com/ActivateLLC/arbi-sub000/internal/model"
	"github.com/ActivateLLC/arbi-sub000/internal/risk"
	"github.com/ActivateLLC/arbi-sub000/internal/scout"
)

// ArbitrageEngine is the single-pass variant: it aggregates scout results
// for manual review instead of taking autonomous action, memoizing scans so
// identical filter combinations within a short window hit the cache.
type ArbitrageEngine struct {
	mu           sync.Mutex
	scouts       map[string]scout.Scout
	scanCache    *cache.Cache[[]model.TrackedOpportunity]
	riskMgr      *risk.Manager
	scoreFn      func(model.Opportunity) model.Score
	scoutTimeout time.Duration
}

// NewArbitrageEngine creates the manual-review engine. scoreFn typically
// comes from a shared Scorer; cacheTTL bounds how long a scan result is
// reused for identical filters.
func NewArbitrageEngine(riskMgr *risk.Manager, scoreFn func(model.Opportunity) model.Score, cacheTTL, scoutTimeout time.Duration) *ArbitrageEngine {
	if scoutTimeout <= 0 {
		scoutTimeout = 30 * time.Second
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &ArbitrageEngine{
		scouts:       make(map[string]scout.Scout),
		scanCache:    cache.New[[]model.TrackedOpportunity](cacheTTL),
		riskMgr:      riskMgr,
		scoreFn:      scoreFn,
		scoutTimeout: scoutTimeout,
	}
}

// RegisterScout adds a scout; re-registering a name overwrites.
func (a *ArbitrageEngine) RegisterScout(name string, s scout.Scout) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.scouts[name] = s
}

// Analyze runs one aggregation pass under the given filters, deduplicating
// identical filter combinations through the scan cache. Results are sorted
// score-descending. Scout failures are contained exactly as in the
// autonomous engine.
func (a *ArbitrageEngine) Analyze(ctx context.Context, filters scout.Filters, sources []string, interval time.Duration) ([]model.TrackedOpportunity, error) {
	key := cache.FilterKey(filters.MinProfit, filters.MinROI, filters.MaxPrice, filters.Categories)

	return a.scanCache.GetOrSet(key, func() ([]model.TrackedOpportunity, error) {
		return a.scanAll(ctx, filters, sources, interval)
	}, 0)
}

func (a *ArbitrageEngine) scanAll(ctx context.Context, filters scout.Filters, sources []string, interval time.Duration) ([]model.TrackedOpportunity, error) {
	a.mu.Lock()
	scouts := make(map[string]scout.Scout, len(a.scouts))
	for name, s := range a.scouts {
		scouts[name] = s
	}
	a.mu.Unlock()

	cfg := scout.Config{
		Enabled:      true,
		ScanInterval: interval,
		Sources:      sources,
		Filters:      filters,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ch := make(chan scoutResult, len(scouts))
	var wg sync.WaitGroup
	for name, s := range scouts {
		wg.Add(1)
		go func(name string, s scout.Scout) {
			defer wg.Done()
			scanCtx, cancel := context.WithTimeout(ctx, a.scoutTimeout)
			defer cancel()
			opps, err := s.Scan(scanCtx, cfg)
			ch <- scoutResult{name: name, opps: opps, err: err}
		}(name, s)
	}
	wg.Wait()
	close(ch)

	var result []model.TrackedOpportunity
	now := time.Now().UTC()
	for res := range ch {
		if res.err != nil {
			slog.Error("scout scan failed", "scout", res.name, "err", res.err)
			continue
		}
		for _, opp := range res.opps {
			opp.Source = res.name
			if opp.ID == "" {
				opp.ID = uuid.New().String()
			}
			var sc model.Score
			if a.scoreFn != nil {
				sc = a.scoreFn(opp)
			}
			result = append(result, model.TrackedOpportunity{
				Opportunity: opp,
				Score:       sc,
				Status:      model.StatusPending,
				UpdatedAt:   now,
			})
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Score.Score > result[j].Score.Score
	})
	return result, nil
}

// EvaluateRisk assesses one opportunity for a user without acting on it —
// the manual-review counterpart of the autonomous purchase gate.
func (a *ArbitrageEngine) EvaluateRisk(ctx context.Context, opp model.Opportunity, userID string, settings model.BudgetSettings) (model.RiskAssessment, error) {
	if a.riskMgr == nil {
		return model.RiskAssessment{}, errors.New("engine: no risk manager configured")
	}
	return a.riskMgr.AssessRisk(ctx, opp, userID, settings)
}

// InvalidateCache drops all memoized scan results.
func (a *ArbitrageEngine) InvalidateCache() {
	a.scanCache.Clear()
}
