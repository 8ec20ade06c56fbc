package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/database"
	"github.com/stemsi/exstem-proctor/internal/event"
	"github.com/stemsi/exstem-proctor/internal/handler"
	"github.com/stemsi/exstem-proctor/internal/logger"
	"github.com/stemsi/exstem-proctor/internal/middleware"
	"github.com/stemsi/exstem-proctor/internal/proctoring"
	"github.com/stemsi/exstem-proctor/internal/repository"
	"github.com/stemsi/exstem-proctor/internal/router"
	"github.com/stemsi/exstem-proctor/internal/service"
	"github.com/stemsi/exstem-proctor/internal/validator"
	"github.com/stemsi/exstem-proctor/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting ExStem Proctor")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Migrations ────────────────────────────────────────────────────
	if cfg.AutoMigrate {
		if err := database.MigrateUp(cfg.DatabaseURL); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply migrations")
		}
		log.Info().Msg("Migrations applied")
	}

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	answerRepo := repository.NewAnswerRepository(pool)
	sessionRepo := repository.NewExamSessionRepository(pool, answerRepo)
	questionRepo := repository.NewQuestionRepository(pool)
	eventRepo := repository.NewProctorEventRepository(pool)
	candidateRepo := repository.NewCandidateRepository(pool)
	monitorRepo := repository.NewMonitorRepository(pool)
	questionCache := repository.NewQuestionCache(rdb)

	// ─── Proctoring Providers ──────────────────────────────────────────
	// Without a configured sidecar the capability reports unavailable and
	// every check records it as defaulted.
	decoder := proctoring.NewBase64Decoder(cfg.MaxFrameBytes)
	providers := proctoring.Providers{
		Decoder: decoder,
		Motion:  proctoring.NewFrameDiffAnalyzer(),
	}
	if cfg.FaceMatchURL != "" {
		providers.Face = proctoring.NewRemoteFaceMatcher(cfg.FaceMatchURL, nil)
	} else {
		log.Warn().Msg("FACE_MATCH_URL not set, identity checks will default")
	}
	if cfg.ObjectDetectURL != "" {
		providers.Objects = proctoring.NewRemoteObjectDetector(cfg.ObjectDetectURL, nil)
	} else {
		log.Warn().Msg("OBJECT_DETECT_URL not set, object checks will default")
	}
	orchestrator := proctoring.NewOrchestrator(providers, proctoring.Options{
		Timeout:           cfg.ProviderTimeout,
		DisallowedObjects: cfg.DisallowedObjects,
	}, log)

	// ─── Alert Fan-out ─────────────────────────────────────────────────
	notifier := service.MultiNotifier{service.NewRedisMonitorNotifier(rdb)}
	var publisher *event.AlertPublisher
	if cfg.RabbitMQURL != "" {
		publisher, err = event.NewAlertPublisher(cfg.RabbitMQURL, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to RabbitMQ")
		}
		defer publisher.Close()
		notifier = append(notifier, service.NewQueueNotifier(rdb))
	}

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg.JWTSecret, cfg.JWTExpiry)
	sessionService := service.NewExamSessionService(
		sessionRepo, questionRepo, answerRepo, eventRepo, questionCache, cfg.ExamQuestionCount, log,
	)
	proctorService := service.NewProctorService(
		sessionRepo, candidateRepo, eventRepo, orchestrator, notifier, cfg.UploadDir, log,
	)
	monitorService := service.NewMonitorService(monitorRepo)
	faceService := service.NewFaceImageService(candidateRepo, decoder, cfg.UploadDir, int64(cfg.MaxFrameBytes), log)

	// ─── Rate Limiting ─────────────────────────────────────────────────
	proctorLimiter := middleware.NewRateLimiter(cfg.ProctorRatePerMin, time.Minute)
	limiterDone := make(chan struct{})
	defer close(limiterDone)
	proctorLimiter.StartCleanup(limiterDone)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Candidate: handler.NewCandidateHandler(sessionService, proctorService, cfg.MaxFrameBytes, log),
		WS:        handler.NewWSHandler(proctorService, proctorLimiter, cfg.MaxFrameBytes, log, cfg.AllowedOrigins),
		Monitor:   handler.NewMonitorHandler(rdb, monitorService, proctorService, sessionService, log),
		Face:      handler.NewFaceHandler(faceService, log),
		System:    handler.NewSystemHandler(pool, rdb, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	workerDone := make(chan struct{})
	if publisher != nil {
		alertWorker := worker.NewAlertWorker(rdb, publisher, log)
		go func() {
			alertWorker.Start(workerCtx)
			close(workerDone)
		}()
	} else {
		close(workerDone)
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, proctorLimiter, cfg, log)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
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

	// 2. Stop the alert worker and wait for its final flush.
	workerCancel()
	select {
	case <-workerDone:
	case <-time.After(10 * time.Second):
		log.Warn().Msg("Alert worker did not stop in time")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
