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
	"github.com/xela07ax/shieldforce/internal/audit"
	"github.com/xela07ax/shieldforce/internal/capability"
	"github.com/xela07ax/shieldforce/internal/engine"
	"github.com/xela07ax/shieldforce/internal/firewall"
	"github.com/xela07ax/shieldforce/internal/infra"
	"github.com/xela07ax/shieldforce/internal/repository/postgres"
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

	if cfg.Database.URL == "" {
		log.Fatal("database.url (DATABASE_URL) is required")
	}
	auditStorage := postgres.NewAuditRepo(cfg.Database.URL)

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := auditStorage.Ping(pingCtx); err != nil {
		log.Fatalf("database unreachable: %v", err)
	}
	pingCancel()

	// 2. Подпись Capability-грантов (закрытый ключ — только у Ingress и Console)
	privateKey, err := capability.ParseRSAPrivateKey(cfg.Auth.PrivateKey)
	if err != nil {
		log.Fatalf("private key: %v", err)
	}
	issuer := capability.NewIssuer(privateKey, cfg.Auth.GrantTTL)

	// 3. Фильтры входа
	fw := firewall.New(cfg.Firewall)

	// 4. Клиент рантайма агента (куда уходит очищенный текст)
	var agentClient engine.AgentInvoker
	if cfg.Engine.AgentURL != "" {
		agentClient = engine.NewHTTPAgentClient(cfg.Engine.AgentURL, cfg.Engine.UpstreamTimeout)
	} else {
		logger.Warn("engine.agent_url is empty, running in decision-only mode")
	}

	// Метрики
	reg := prometheus.NewRegistry()
	metrics := engine.NewMetrics(reg)

	// 5. Асинхронный аудит
	agentFS := audit.NewAgentFS(auditStorage, cfg.Engine.AuditBufferSize, cfg.Engine.AuditFlushInterval, logger)
	agentFS.Start()
	defer agentFS.Stop()

	core := engine.NewIngressCore(cfg.Auth, fw, issuer, agentClient, agentFS, auditStorage, metrics, logger)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		addr := fmt.Sprintf(":%d", cfg.Ingress.MetricsPort)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()

	// 6. HTTP Server
	mux := http.NewServeMux()
	mux.Handle("/v1/invoke", engine.TracingMiddleware(http.HandlerFunc(core.HandleHTTPRequest)))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Ingress.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Ingress.ReadTimeout,
		WriteTimeout: cfg.Ingress.WriteTimeout,
	}

	// 7. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("ingress filter started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	<-stop
	logger.Info("ingress filter stopping")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server shutdown failed: %+v", err)
	}
	logger.Info("ingress filter exited properly")
}
