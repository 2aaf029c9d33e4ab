package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatrelay/internal/app/dispatcher"
	"chatrelay/internal/app/registry"
	"chatrelay/internal/app/server"
	"chatrelay/internal/app/server/handlers"
	"chatrelay/internal/config"
	"chatrelay/internal/core/services"
	"chatrelay/internal/platform/logger"
	"chatrelay/internal/platform/telemetry"
	"chatrelay/internal/plugins/gupshup"
	"chatrelay/internal/plugins/postgres"
	redisPlugin "chatrelay/internal/plugins/redis"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config load failed: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.NewLogger(*cfg)
	log.Info("starting application")

	otelShutdown, err := telemetry.InitTelemetry(ctx, *cfg)
	if err != nil {
		log.Error("failed to initialize telemetry", "err", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			log.Error("telemetry shutdown failed", "err", err)
		}
	}()

	// Infra
	pdb, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		log.Error("postgres connection failed", "err", err)
		return
	}
	defer pdb.Close()
	log.Info("postgres connected")

	rdb, err := redisPlugin.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "url", cfg.Redis.URL, "err", err)
		return
	}
	defer rdb.Close()
	log.Info("redis connected")

	// Adapters
	appRepo := postgres.NewAppRepo(pdb)
	contactRepo := postgres.NewContactRepo(pdb)
	messageRepo := postgres.NewMessageRepo(pdb)
	tagRepo := postgres.NewTagRepo(pdb)
	txManager := postgres.NewTxManager(log, pdb)
	presence := redisPlugin.NewRedisPresenceStore(rdb, cfg.Redis.PresenceTTL)
	provider := gupshup.NewClient(cfg.Gupshup)

	// Fan-out core
	hub := registry.New()
	fanout := dispatcher.New(log, hub)

	// Services
	tokenSvc := services.NewTokenService(cfg.JWTSecret)
	routerSvc := services.NewRouterService(log, appRepo, contactRepo, messageRepo, provider, presence, fanout)
	webhookSvc := services.NewWebhookService(log, appRepo, contactRepo, messageRepo, presence, fanout, txManager, cfg.Redis.PresenceTTL)
	tagSvc := services.NewTagService(log, appRepo, tagRepo, contactRepo)

	// Server
	srv := server.NewServer(
		log,
		cfg.Service.Name,
		cfg.Service.Addr,
		tokenSvc,
		handlers.NewWSHandler(hub, routerSvc, appRepo),
		handlers.NewWebhookHandler(webhookSvc),
		handlers.NewMessageHandler(routerSvc),
		handlers.NewTagHandler(tagSvc),
	)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "err", err)
		}
	}()

	if err := srv.Start(); err != nil {
		log.Error("server stopped", "err", err)
	}
}
