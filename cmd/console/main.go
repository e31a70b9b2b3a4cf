package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/shieldforce/internal/capability"
	"github.com/xela07ax/shieldforce/internal/console/handler"
	"github.com/xela07ax/shieldforce/internal/console/server"
	"github.com/xela07ax/shieldforce/internal/console/service"
	"github.com/xela07ax/shieldforce/internal/infra"
	"github.com/xela07ax/shieldforce/internal/infra/auth"
	"github.com/xela07ax/shieldforce/internal/repository/postgres"
)

func main() {
	// 1. Инициализация ресурсов
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
	userRepo := postgres.NewUserRepo(cfg.Database.URL)
	auditRepo := postgres.NewAuditRepo(cfg.Database.URL)

	// Проверяем соединение с таймаутом
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := userRepo.Ping(ctx); err != nil {
		log.Fatalf("database unreachable: %v", err)
	}
	cancel()

	// 2. Ключи RS256: приватный для выпуска токенов, публичный для проверки
	privateKey, err := capability.ParseRSAPrivateKey(cfg.Auth.PrivateKey)
	if err != nil {
		log.Fatalf("private key: %v", err)
	}
	publicKey, err := capability.ParseRSAPublicKey(cfg.Auth.PublicKey)
	if err != nil {
		log.Fatalf("public key: %v", err)
	}

	// 3. Инициализация слоев (Dependency Injection)
	authService := service.NewAuthService(userRepo, privateKey, cfg.Auth.TokenTTL)
	statsService := service.NewStatsService(auditRepo, rdb)
	incidentService := service.NewIncidentService(auditRepo)
	agentService := service.NewAgentService(rdb, logger)

	srv := server.NewConsoleServer(
		logger,
		auth.NewBaseValidator(publicKey),
		handler.NewAuthHandler(authService),
		handler.NewAgentHandler(agentService),
		handler.NewIncidentHandler(incidentService),
		handler.NewHealthHandler(statsService),
	)

	// 4. Запуск сервера
	httpSrv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Console.Port),
		Handler:      srv,
		ReadTimeout:  cfg.Console.ReadTimeout,
		WriteTimeout: cfg.Console.WriteTimeout,
	}

	log.Printf("Console API started on %s", httpSrv.Addr)
	log.Fatal(httpSrv.ListenAndServe())
}
