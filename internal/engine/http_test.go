package engine_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/ActivateLLC/arbi-sub000/internal/engine"
	"github.com/ActivateLLC/arbi-sub000/internal/model"
	"github.com/ActivateLLC/arbi-sub000/internal/risk"
	"github.com/ActivateLLC/arbi-sub000/internal/scout"
)

type feedScout struct {
	opps []model.Opportunity
}

func (s *feedScout) Name() string             { return "feed" }
func (s *feedScout) Type() model.StrategyType { return model.StrategyOnlineArbitrage }
func (s *feedScout) Scan(_ context.Context, _ scout.Config) ([]model.Opportunity, error) {
	return s.opps, nil
}

func testOpportunity(id string, roi float64) model.Opportunity {
	return model.Opportunity{
		ID:              id,
		Type:            model.StrategyOnlineArbitrage,
		BuyPrice:        decimal.NewFromInt(20),
		SellPrice:       decimal.NewFromInt(50),
		EstimatedProfit: decimal.NewFromInt(15),
		ROI:             roi,
		Confidence:      70,
		Volatility:      10,
		ExpiresAt:       time.Now().Add(4 * time.Hour),
		Metadata: map[string]string{
			"seller_rating":  "4.9",
			"seller_reviews": "200",
			"competitors":    "2",
			"demand_rank":    "1000",
		},
	}
}

func newTestRouter(t *testing.T, opps []model.Opportunity) *chi.Mux {
	t.Helper()

	riskMgr := risk.NewManager(nil)
	e, err := engine.New(engine.DefaultConfig(), nil, riskMgr, nil, nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	e.RegisterScout("feed", &feedScout{opps: opps})

	api := engine.NewAPI(e, riskMgr)
	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/scan", api.Scan)
		r.Get("/opportunities", api.Opportunities)
		r.Get("/stats", api.Stats)
		r.Post("/cleanup", api.Cleanup)
		r.Post("/reset-daily", api.ResetDaily)
		r.Post("/risk/assess", api.AssessRisk)
	})
	return r
}

func TestScanEndpoint(t *testing.T) {
	router := newTestRouter(t, []model.Opportunity{
		testOpportunity("a", 75),
		testOpportunity("b", 40),
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/scan", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var body struct {
		Count         int                        `json:"count"`
		Opportunities []model.TrackedOpportunity `json:"opportunities"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Count != 2 || len(body.Opportunities) != 2 {
		t.Errorf("count = %d, len = %d, want 2", body.Count, len(body.Opportunities))
	}
}

func TestOpportunitiesEndpoint(t *testing.T) {
	router := newTestRouter(t, []model.Opportunity{
		testOpportunity("a", 75),
		testOpportunity("b", 40),
	})

	// Empty table returns an empty array, not null.
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/opportunities", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := bytes.TrimSpace(w.Body.Bytes()); string(got) == "null" {
		t.Error("empty list should encode as [], not null")
	}

	scan := httptest.NewRecorder()
	router.ServeHTTP(scan, httptest.NewRequest(http.MethodPost, "/api/v1/scan", nil))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/opportunities?min_score=80&limit=5", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var list []model.TrackedOpportunity
	if err := json.NewDecoder(w.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Opportunity.ID != "a" {
		t.Errorf("filtered list = %v, want only the high-roi opportunity", list)
	}

	// Malformed query params are rejected.
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/opportunities?min_score=abc", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad min_score: status = %d, want 400", w.Code)
	}
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/opportunities?limit=-1", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("negative limit: status = %d, want 400", w.Code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	router := newTestRouter(t, []model.Opportunity{testOpportunity("a", 75)})

	scan := httptest.NewRecorder()
	router.ServeHTTP(scan, httptest.NewRequest(http.MethodPost, "/api/v1/scan", nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var stats engine.Stats
	if err := json.NewDecoder(w.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if stats.Total != 1 || stats.AlertedCount != 1 {
		t.Errorf("stats = %+v, want 1 total / 1 alerted", stats)
	}
}

func TestCleanupAndResetEndpoints(t *testing.T) {
	stale := testOpportunity("stale", 75)
	stale.ExpiresAt = time.Now().Add(-time.Minute)
	router := newTestRouter(t, []model.Opportunity{stale})

	scan := httptest.NewRecorder()
	router.ServeHTTP(scan, httptest.NewRequest(http.MethodPost, "/api/v1/scan", nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/cleanup", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]int
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["removed"] != 1 {
		t.Errorf("removed = %d, want 1", body["removed"])
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/reset-daily", nil))
	if w.Code != http.StatusNoContent {
		t.Errorf("reset status = %d, want 204", w.Code)
	}
}

func TestAssessRiskEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)

	payload := map[string]any{
		"opportunity": testOpportunity("a", 75),
		"user_id":     "u1",
		"settings": model.BudgetSettings{
			DailyLimit:    decimal.NewFromInt(500),
			MonthlyLimit:  decimal.NewFromInt(5000),
			RiskTolerance: model.ToleranceModerate,
		},
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/risk/assess", bytes.NewReader(buf)))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var assessment model.RiskAssessment
	if err := json.NewDecoder(w.Body).Decode(&assessment); err != nil {
		t.Fatal(err)
	}
	if !assessment.Approved {
		t.Errorf("expected approval: %v", assessment.Reasons)
	}

	// Missing user id is a 400.
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/risk/assess",
		bytes.NewReader([]byte(`{"opportunity":{},"settings":{}}`))))
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing user_id: status = %d, want 400", w.Code)
	}

	// Malformed body is a 400.
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/risk/assess",
		bytes.NewReader([]byte(`{not json`))))
	if w.Code != http.StatusBadRequest {
		t.Errorf("malformed body: status = %d, want 400", w.Code)
	}
}
