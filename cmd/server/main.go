package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/ActivateLLC/arbi-sub000/internal/engine"
	"github.com/ActivateLLC/arbi-sub000/internal/market"
	"github.com/ActivateLLC/arbi-sub000/internal/metrics"
	"github.com/ActivateLLC/arbi-sub000/internal/model"
	"github.com/ActivateLLC/arbi-sub000/internal/risk"
	"github.com/ActivateLLC/arbi-sub000/internal/scoring"
	"github.com/ActivateLLC/arbi-sub000/internal/scout"
	"github.com/ActivateLLC/arbi-sub000/internal/store"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// --- Initialize opportunity store ---
	var st store.Store
	var cleanup []func()

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
			opt, err := redis.ParseURL(redisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, 30*time.Second)
			slog.Info("Redis cache enabled")
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Market indicator provider ---
	var provider market.Provider
	if url := os.Getenv("MARKET_DATA_URL"); url != "" {
		provider = market.NewHTTPProvider(url, 10*time.Second)
		slog.Info("market indicator provider enabled", "url", url)
	} else {
		provider = &market.StaticProvider{Conditions: market.Classify(16, "flat")}
		slog.Warn("MARKET_DATA_URL not set, using static neutral market conditions")
	}

	riskMgr := risk.NewManager(provider)
	scorer := scoring.NewScorer(scoring.DefaultConfig())

	// --- Engine config from environment ---
	cfg := engine.DefaultConfig()
	cfg.AutoBuyEnabled = envBool("AUTO_BUY_ENABLED", cfg.AutoBuyEnabled)
	cfg.AutoBuyScore = envFloat("AUTO_BUY_SCORE", cfg.AutoBuyScore)
	cfg.DailyBudget = envDecimal("DAILY_BUDGET", cfg.DailyBudget)
	cfg.ScanInterval = envDuration("SCAN_INTERVAL", cfg.ScanInterval)
	cfg.ScoutTimeout = envDuration("SCOUT_TIMEOUT", cfg.ScoutTimeout)
	cfg.Filters = scout.Filters{
		MinProfit: envDecimal("MIN_PROFIT", decimal.NewFromInt(5)),
		MinROI:    envFloat("MIN_ROI", 20),
		MaxPrice:  envDecimal("MAX_PRICE", decimal.NewFromInt(500)),
	}

	// --- WebSocket hub ---
	hub := engine.NewWSHub()
	go hub.Run()

	// --- Autonomous engine ---
	eng, err := engine.New(cfg, scorer, riskMgr, provider, st, nil, hub)
	if err != nil {
		slog.Error("invalid engine configuration", "err", err)
		os.Exit(1)
	}

	// Register scouts from PRICE_FEED_URL (comma-separated endpoints).
	if feeds := os.Getenv("PRICE_FEED_URL"); feeds != "" {
		sources := strings.Split(feeds, ",")
		s := scout.NewPriceFeedScout("pricefeed", model.StrategyOnlineArbitrage, 15*time.Second, 2)
		eng.RegisterScout(s.Name(), s)
		eng.SetScoutSources(s.Name(), sources)
		slog.Info("price feed scout registered", "sources", len(sources))
	} else {
		slog.Warn("PRICE_FEED_URL not set, no scouts registered")
	}

	api := engine.NewAPI(eng, riskMgr)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"opportunity-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for real-time alert events.
		r.Get("/ws", hub.HandleWS)

		// Engine API.
		r.Post("/scan", api.Scan)
		r.Get("/opportunities", api.Opportunities)
		r.Get("/stats", api.Stats)
		r.Post("/cleanup", api.Cleanup)
		r.Post("/reset-daily", api.ResetDaily)

		// Manual-review risk evaluation.
		r.Post("/risk/assess", api.AssessRisk)
	})

	// --- Scheduler: serialized scan cycles + housekeeping ---
	schedCtx, stopSched := context.WithCancel(context.Background())
	defer stopSched()
	go runScheduler(schedCtx, eng, cfg.ScanInterval)

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("opportunity-engine listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	stopSched()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down opportunity-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("opportunity-engine stopped")
}

// runScheduler drives scan cycles at the configured interval, cleans up
// expired opportunities after each cycle, and resets the daily spend
// counter at the day boundary. Cycles never overlap: the next tick waits
// for the previous RunScan to return.
func runScheduler(ctx context.Context, eng *engine.Engine, interval time.Duration) {
	scanTicker := time.NewTicker(interval)
	defer scanTicker.Stop()

	resetTicker := time.NewTicker(time.Minute)
	defer resetTicker.Stop()
	lastResetDay := time.Now().Day()

	for {
		select {
		case <-ctx.Done():
			return
		case <-scanTicker.C:
			if _, err := eng.RunScan(ctx); err != nil {
				slog.Error("scheduled scan failed", "err", err)
			}
			if _, err := eng.CleanupExpired(ctx); err != nil {
				slog.Error("cleanup failed", "err", err)
			}
		case now := <-resetTicker.C:
			if now.Day() != lastResetDay {
				lastResetDay = now.Day()
				eng.ResetDailyCounters()
			}
		}
	}
}

// --- Environment helpers ---

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return strings.EqualFold(v, "1") || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDecimal(key string, fallback decimal.Decimal) decimal.Decimal {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
