package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-kiosk/internal/broadcast"
	"github.com/stemsi/exstem-kiosk/internal/config"
	"github.com/stemsi/exstem-kiosk/internal/database"
	"github.com/stemsi/exstem-kiosk/internal/handler"
	"github.com/stemsi/exstem-kiosk/internal/logger"
	"github.com/stemsi/exstem-kiosk/internal/middleware"
	"github.com/stemsi/exstem-kiosk/internal/repository"
	"github.com/stemsi/exstem-kiosk/internal/router"
	"github.com/stemsi/exstem-kiosk/internal/service"
	"github.com/stemsi/exstem-kiosk/internal/session"
	"github.com/stemsi/exstem-kiosk/internal/validator"
	"github.com/stemsi/exstem-kiosk/internal/worker"
)

const reapInterval = time.Minute

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("store", cfg.StoreBackend).
		Str("log_level", cfg.LogLevel).
		Msg("Starting ExStem Kiosk")

	if cfg.AdminPasswordHash == "" {
		log.Warn().Msg("ADMIN_PASSWORD_HASH is not set, admin login is disabled")
	}

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect Store ─────────────────────────────────────────────────
	backends, err := database.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer backends.Close()

	// ─── Broadcaster & Login Limiter ───────────────────────────────────
	// Redis fans the admin feed and the login budget out across instances.
	var bc broadcast.Broadcaster = broadcast.NewLocal()
	var loginLimiter gin.HandlerFunc = middleware.NewRateLimiter(ctx, cfg.LoginRateLimit, time.Minute).Middleware()
	if backends.Redis != nil {
		bc = broadcast.NewRedis(backends.Redis)
		loginLimiter = middleware.NewRedisRateLimiter(backends.Redis, cfg.LoginRateLimit, time.Minute, log).Middleware()
	}

	// ─── Initialize Repositories ───────────────────────────────────────
	examRepo := repository.NewExamRepository(backends.Store, log)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg)
	publisher := service.NewPublisherService(examRepo, cfg, log)
	monitorService := service.NewMonitorService(bc, log)
	sessionService := service.NewExamSessionService(examRepo, monitorService, session.SystemClock{}, log)

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	sessionWorker := worker.NewSessionWorker(cfg.TickInterval, cfg.AutosaveInterval, log)
	sessionService.SetDriver(sessionWorker.Launch)
	reaperWorker := worker.NewReaperWorker(sessionService, reapInterval, cfg.SessionRetention, log)

	workers.Add(3)
	go func() { defer workers.Done(); sessionWorker.Start(workerCtx) }()
	go func() { defer workers.Done(); reaperWorker.Start(workerCtx) }()
	go func() { defer workers.Done(); monitorService.Run(workerCtx) }()

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:          handler.NewAuthHandler(authService, sessionService, log),
		StudentPortal: handler.NewStudentPortalHandler(log),
		WS:            handler.NewWSHandler(log, cfg.AllowedOrigins),
		Admin:         handler.NewAdminHandler(publisher, sessionService, log),
		Exam:          handler.NewExamHandler(publisher),
		Monitor:       handler.NewMonitorHandler(publisher, sessionService, monitorService, log),
		System:        handler.NewSystemHandler(cfg.StoreBackend, backends, sessionService, monitorService, log),
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(router.Deps{
		Auth:         authService,
		Sessions:     sessionService,
		LoginLimiter: loginLimiter,
	}, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop workers. Running sessions get a final autosave and the
	// monitor queue drains before the store closes.
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
