package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/shieldforce/internal/audit"
	"github.com/xela07ax/shieldforce/internal/baseline"
	"github.com/xela07ax/shieldforce/internal/classifier"
	"github.com/xela07ax/shieldforce/internal/engine"
	"github.com/xela07ax/shieldforce/internal/infra"
	"github.com/xela07ax/shieldforce/internal/repository/postgres"
	"github.com/xela07ax/shieldforce/internal/risk"
	"go.uber.org/zap"
)

func main() {
	// 1. Конфигурация и инфраструктура
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if cfg.Database.URL == "" {
		log.Fatal("database.url (DATABASE_URL) is required")
	}
	auditStorage := postgres.NewAuditRepo(cfg.Database.URL)

	// Проверяем соединение с таймаутом
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := auditStorage.Ping(pingCtx); err != nil {
		log.Fatalf("database unreachable: %v", err)
	}
	pingCancel()

	// Контекст жизненного цикла фоновых горутин
	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Control Plane: реестр карантина
	qm := engine.NewQuarantineManager(rdb, logger)
	if err := qm.Init(appCtx); err != nil {
		log.Fatalf("failed to init quarantine manager: %v", err)
	}
	go qm.StartListener(appCtx)

	// 3. Decision path: baseline + скоринг
	tracker := baseline.NewTracker(cfg.Baseline, logger)
	clf := classifier.New(cfg.Classifier.URL, cfg.Classifier.Timeout)
	scorer := risk.NewScorer(cfg.Risk, cfg.Classifier, clf, logger)

	// Метрики
	reg := prometheus.NewRegistry()
	metrics := engine.NewMetrics(reg)

	// 4. Execution layer: реальный вызов под Reliability-оберткой
	upstream := engine.NewReliabilityWrapper(
		engine.NewHTTPUpstream(cfg.Engine.UpstreamTimeout), cfg.Engine, metrics)

	// 5. Асинхронный аудит
	agentFS := audit.NewAgentFS(auditStorage, cfg.Engine.AuditBufferSize, cfg.Engine.AuditFlushInterval, logger)
	agentFS.Start()
	defer agentFS.Stop()

	core := engine.NewEgressCore(tracker, scorer, qm, upstream, agentFS, auditStorage, metrics, logger)

	// Экспорт метрик на отдельном порту
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		addr := fmt.Sprintf(":%d", cfg.Egress.MetricsPort)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()

	// 6. HTTP Server
	mux := http.NewServeMux()
	mux.Handle("/v1/egress", engine.TracingMiddleware(http.HandlerFunc(core.HandleHTTPRequest)))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Egress.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Egress.ReadTimeout,
		WriteTimeout: cfg.Egress.WriteTimeout,
	}

	// 7. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("egress gateway started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	<-stop
	logger.Info("egress gateway stopping")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server shutdown failed: %+v", err)
	}
	logger.Info("egress gateway exited properly")
}
