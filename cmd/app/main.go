package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"subscription-discount-engine/internal/config"
	"subscription-discount-engine/internal/infra/api"
	pg "subscription-discount-engine/internal/infra/db/postgres"
	"subscription-discount-engine/internal/infra/logging"
	"subscription-discount-engine/internal/infra/metrics"
	red "subscription-discount-engine/internal/infra/redis"
	"subscription-discount-engine/internal/infra/sched"
	"subscription-discount-engine/internal/infra/web"
	"subscription-discount-engine/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, insecure cookies)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("[DEV MODE] Enabled")
	}

	// ---- Metrics ----
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient, logger)

	// ---- Repositories ----
	planRepo := pg.NewPlanRepo(pool)
	codeRepo := pg.NewDiscountCodeRepo(pool)
	reservationRepo := pg.NewReservationRepo(pool)
	redemptionRepo := pg.NewRedemptionRepo(pool)
	tm := pg.NewTxManager(pool)

	// ---- Use cases ----
	ttl := time.Duration(cfg.Reservation.TTLMinutes) * time.Minute
	reserveUC := usecase.NewReservationUseCase(codeRepo, planRepo, reservationRepo, redemptionRepo, tm, ttl, logger)
	redeemUC := usecase.NewRedemptionUseCase(codeRepo, reservationRepo, redemptionRepo, tm, logger)
	reaperUC := usecase.NewReaperUseCase(codeRepo, reservationRepo, tm, cfg.Reaper.BatchSize, logger)
	adminUC := usecase.NewAdminUseCase(codeRepo, planRepo, logger)

	// ---- Reaper worker ----
	worker := sched.NewReaperWorker(cfg.Reaper.Interval.Std(), reaperUC, logger)
	go func() { _ = worker.Run(ctx) }()

	// ---- Public API server ----
	apiSrv := api.NewServer(reserveUC, redeemUC, reaperUC, rateLimiter, cfg.Limits, logger)
	publicServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiSrv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", publicServer.Addr).Msg("public API listening")
		if err := publicServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("public API server error")
		}
	}()

	// ---- Admin server ----
	auth := web.NewAuthManager(cfg.Admin.JWTSecret, !cfg.Runtime.Dev, cfg.Admin.SessionTTL.Std())
	adminSrv := web.NewServer(adminUC, auth, cfg.Admin.APIKey, logger)
	adminMux := http.NewServeMux()
	adminSrv.RegisterRoutes(adminMux)
	adminServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Admin.Port),
		Handler:           adminMux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", adminServer.Addr).Msg("admin API listening")
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("admin server error")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = publicServer.Shutdown(shutdownCtx)
	_ = adminServer.Shutdown(shutdownCtx)
}
