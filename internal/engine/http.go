// Package engine — HTTP handlers exposing the caller-facing engine API.
// These are the only entry points an HTTP layer or scheduler may use.
package engine

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ActivateLLC/arbi-sub000/internal/model"
	"github.com/ActivateLLC/arbi-sub000/internal/risk"
)

// API adapts the engine and risk manager to HTTP.
type API struct {
	engine  *Engine
	riskMgr *risk.Manager
}

// NewAPI creates the HTTP adapter.
func NewAPI(e *Engine, riskMgr *risk.Manager) *API {
	return &API{engine: e, riskMgr: riskMgr}
}

// Scan handles POST /api/v1/scan — triggers one scan cycle.
func (a *API) Scan(w http.ResponseWriter, r *http.Request) {
	routed, err := a.engine.RunScan(r.Context())
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if routed == nil {
		routed = []model.TrackedOpportunity{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"opportunities": routed,
		"count":         len(routed),
	})
}

// Opportunities handles GET /api/v1/opportunities
// Query params: min_score, status, limit.
func (a *API) Opportunities(w http.ResponseWriter, r *http.Request) {
	var f Filter
	q := r.URL.Query()
	if v := q.Get("min_score"); v != "" {
		score, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, "invalid min_score", http.StatusBadRequest)
			return
		}
		f.MinScore = score
	}
	if v := q.Get("status"); v != "" {
		f.Status = model.Status(v)
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeError(w, "invalid limit", http.StatusBadRequest)
			return
		}
		f.Limit = limit
	}

	list, err := a.engine.GetOpportunities(r.Context(), f)
	if err != nil {
		writeError(w, "failed to list opportunities", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []model.TrackedOpportunity{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(list)
}

// Stats handles GET /api/v1/stats.
func (a *API) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.engine.Stats(r.Context())
	if err != nil {
		writeError(w, "failed to compute stats", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// Cleanup handles POST /api/v1/cleanup — removes expired opportunities.
func (a *API) Cleanup(w http.ResponseWriter, r *http.Request) {
	removed, err := a.engine.CleanupExpired(r.Context())
	if err != nil {
		writeError(w, "cleanup failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"removed": removed})
}

// ResetDaily handles POST /api/v1/reset-daily.
func (a *API) ResetDaily(w http.ResponseWriter, _ *http.Request) {
	a.engine.ResetDailyCounters()
	w.WriteHeader(http.StatusNoContent)
}

// assessRequest is the JSON body for POST /api/v1/risk/assess.
type assessRequest struct {
	Opportunity model.Opportunity    `json:"opportunity"`
	UserID      string               `json:"user_id"`
	Settings    model.BudgetSettings `json:"settings"`
}

// AssessRisk handles POST /api/v1/risk/assess — manual-review risk check.
func (a *API) AssessRisk(w http.ResponseWriter, r *http.Request) {
	var req assessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		writeError(w, "user_id is required", http.StatusBadRequest)
		return
	}

	assessment, err := a.riskMgr.AssessRisk(r.Context(), req.Opportunity, req.UserID, req.Settings)
	if err != nil {
		writeError(w, "risk assessment failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(assessment)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
