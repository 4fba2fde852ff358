// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"tender-workflow/internal/common/auth"
	"tender-workflow/internal/common/backend"
	"tender-workflow/internal/common/camunda"
	"tender-workflow/internal/common/config"
	"tender-workflow/internal/common/database"
	"tender-workflow/internal/common/events"
	"tender-workflow/internal/common/logger"
	"tender-workflow/internal/common/observability"
	"tender-workflow/internal/payment"
	"tender-workflow/internal/store"

	sa "tender-workflow/internal/workers/application/submit-application"
	uad "tender-workflow/internal/workers/application/upload-application-document"
	cp "tender-workflow/internal/workers/payment/confirm-payment"
	cag "tender-workflow/internal/workers/tender/check-application-gate"
	vrs "tender-workflow/internal/workers/tender/validate-requirement-schema"
)

var startupRetry = &camunda.RetryConfig{
	MaxRetries: 15,
	BaseDelay:  2 * time.Second,
	MaxDelay:   30 * time.Second,
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	log.Info("starting worker manager", map[string]interface{}{
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
	})

	obs := observability.New(cfg.App.Name, log)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Backend REST client ---
	var tokens auth.TokenSource
	if cfg.Auth.Enabled() {
		tokens = auth.NewKeycloakClient(
			cfg.Auth.Keycloak.URL,
			cfg.Auth.Keycloak.Realm,
			cfg.Auth.Keycloak.ClientID,
			cfg.Auth.Keycloak.ClientSecret,
		)
	}
	api := backend.NewClient(cfg.Backend.BaseURL, config.GetDuration(cfg.Backend.Timeout), tokens, log)

	// --- Redis: correlation ids and tender cache ---
	rdb := database.NewRedis(cfg.Database.Redis)
	defer rdb.Close()
	if err := camunda.Retry(ctx, startupRetry, "redis ping", log, func(ctx context.Context) error {
		return database.PingRedis(ctx, rdb)
	}); err != nil {
		zapLog.Fatal("redis unavailable", zap.Error(err))
	}
	tenders := store.NewTenderCache(api, rdb, config.GetDuration(cfg.Backend.CacheTTL), log)
	correlations := store.NewCorrelationStore(rdb, config.GetDuration(cfg.Database.Redis.CorrelationTTL))

	// --- Postgres: audit ledger ---
	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		zapLog.Fatal("postgres open failed", zap.Error(err))
	}
	defer pg.Close()
	if err := camunda.Retry(ctx, startupRetry, "postgres ping", log, pg.Ping); err != nil {
		zapLog.Fatal("postgres unavailable", zap.Error(err))
	}
	ledger := store.NewLedger(pg.DB, log)
	if err := ledger.Migrate(ctx); err != nil {
		zapLog.Fatal("ledger migration failed", zap.Error(err))
	}

	// --- Domain events ---
	var publisher events.Publisher = events.Nop{}
	if cfg.Events.SNS.Enabled {
		sns, err := events.NewSNSPublisher(ctx, cfg.Events.SNS.Region, cfg.Events.SNS.TopicARN, log)
		if err != nil {
			zapLog.Fatal("sns publisher failed", zap.Error(err))
		}
		publisher = sns
	}

	// --- Zeebe ---
	zeebe, err := camunda.Connect(ctx, camunda.ConfigFrom(cfg.Camunda), log)
	if err != nil {
		zapLog.Fatal("zeebe unavailable", zap.Error(err))
	}
	registry := camunda.NewRegistry(zeebe.Zeebe(), log)

	pollInterval := config.GetDuration(cfg.Payment.PollInterval)
	pushTimeout := config.GetDuration(cfg.Payment.PushTimeout)
	gate := payment.New(payment.Config{
		PollInterval: pollInterval,
		MaxAttempts:  cfg.Payment.MaxPollAttempts,
		PushTimeout:  pushTimeout,
	}, payment.Dependencies{Gateway: api, Ledger: ledger, Events: publisher}, log)

	if wcfg := config.GetWorkerConfig(cfg, vrs.TaskType); wcfg.Enabled {
		c := vrs.LoadConfig()
		c.Timeout = config.GetDuration(wcfg.Timeout)
		registry.Start(vrs.TaskType, wcfg, vrs.NewHandler(c, obs, log))
	}

	if wcfg := config.GetWorkerConfig(cfg, cag.TaskType); wcfg.Enabled {
		c := cag.LoadConfig()
		c.Timeout = config.GetDuration(wcfg.Timeout)
		c.PaymentStepOnZeroFee = cfg.Wizard.PaymentStepOnZeroFee()
		registry.Start(cag.TaskType, wcfg, cag.NewHandler(c, cag.Dependencies{
			Tenders:      tenders,
			Gate:         gate,
			Correlations: correlations,
		}, obs, log))
	}

	if wcfg := config.GetWorkerConfig(cfg, cp.TaskType); wcfg.Enabled {
		c := cp.LoadConfig()
		c.Timeout = config.GetDuration(wcfg.Timeout)
		c.PollInterval = pollInterval
		c.MaxAttempts = cfg.Payment.MaxPollAttempts
		c.PushTimeout = pushTimeout
		registry.Start(cp.TaskType, wcfg, cp.NewHandler(c, cp.Dependencies{
			Gateway: api,
			Ledger:  ledger,
			Events:  publisher,
			Tenders: tenders,
		}, obs, log))
	}

	if wcfg := config.GetWorkerConfig(cfg, uad.TaskType); wcfg.Enabled {
		c := uad.LoadConfig()
		c.Timeout = config.GetDuration(wcfg.Timeout)
		registry.Start(uad.TaskType, wcfg, uad.NewHandler(c, uad.Dependencies{
			Uploader:     api,
			Correlations: correlations,
		}, obs, log))
	}

	if wcfg := config.GetWorkerConfig(cfg, sa.TaskType); wcfg.Enabled {
		c := sa.LoadConfig()
		c.Timeout = config.GetDuration(wcfg.Timeout)
		registry.Start(sa.TaskType, wcfg, sa.NewHandler(c, sa.Dependencies{
			Tenders:      tenders,
			Reviewer:     api,
			Ledger:       ledger,
			Events:       publisher,
			Cache:        tenders,
			Correlations: correlations,
		}, obs, log))
	}
	log.Info("workers registered", map[string]interface{}{"taskTypes": registry.Running()})

	// --- Health & Metrics Server ---
	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           healthMux(zeebe, rdb, pg),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("health/metrics server listening", map[string]interface{}{"address": cfg.Server.Address})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("health/metrics server failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	log.Info("shutdown signal received, stopping workers", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	registry.Stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("health server shutdown failed", map[string]interface{}{"error": err.Error()})
	}
	if err := zeebe.Close(); err != nil {
		log.Error("error closing zeebe client", map[string]interface{}{"error": err.Error()})
	}
	log.Info("worker manager stopped gracefully", nil)
}

func healthMux(zeebe *camunda.Client, rdb *redis.Client, pg *database.PostgresClient) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		checks := map[string]string{"zeebe": "ok", "redis": "ok", "postgres": "ok"}
		code := http.StatusOK
		if err := zeebe.HealthCheck(ctx); err != nil {
			checks["zeebe"], code = err.Error(), http.StatusServiceUnavailable
		}
		if err := database.PingRedis(ctx, rdb); err != nil {
			checks["redis"], code = err.Error(), http.StatusServiceUnavailable
		}
		if err := pg.Ping(ctx); err != nil {
			checks["postgres"], code = err.Error(), http.StatusServiceUnavailable
		}
		writeStatus(w, code, checks)
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func writeStatus(w http.ResponseWriter, code int, body map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}
