package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/leadgate-ai/leadgate/cmd/mainconfig"
	"github.com/leadgate-ai/leadgate/internal/analytics"
	"github.com/leadgate-ai/leadgate/internal/api/router"
	"github.com/leadgate-ai/leadgate/internal/app/bootstrap"
	appconfig "github.com/leadgate-ai/leadgate/internal/config"
	"github.com/leadgate-ai/leadgate/internal/http/handlers"
	"github.com/leadgate-ai/leadgate/internal/observability/metrics"
	"github.com/leadgate-ai/leadgate/internal/queue"
	"github.com/leadgate-ai/leadgate/internal/triage"
	"github.com/leadgate-ai/leadgate/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel).WithComponent("api")
	logger.Info("starting leadgate API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	repo, closeRepo, err := bootstrap.BuildLeadsRepository(ctx, cfg, awsCfg, logger)
	if err != nil {
		logger.Error("failed to build leads repository", "error", err)
		os.Exit(1)
	}
	defer closeRepo()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	policyStore, policyProvider := bootstrap.BuildPolicy(redisClient, cfg, logger)

	leadClassifier, closeClassifier, err := bootstrap.BuildClassifier(ctx, cfg, awsCfg, logger)
	if err != nil {
		logger.Error("failed to build classifier", "error", err)
		os.Exit(1)
	}
	defer closeClassifier()

	deliverer, err := bootstrap.BuildDeliverer(cfg, awsCfg, logger)
	if err != nil {
		logger.Error("failed to build deliverer", "error", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	routingMetrics := metrics.NewRoutingMetrics(registry)

	service := triage.NewService(repo, leadClassifier, policyProvider, deliverer, triage.Options{
		Archiver: bootstrap.BuildArchiveStore(cfg, awsCfg, logger),
		Metrics:  routingMetrics,
		Logger:   logger,
	})

	// Submissions go through SQS when a queue is configured; otherwise the
	// API classifies inline.
	var publisher *triage.Publisher
	switch {
	case cfg.UseMemoryQueue:
		logger.Info("using in-memory intake queue")
		memQueue := queue.NewMemoryQueue(100)
		publisher = triage.NewPublisher(memQueue)
		worker := triage.NewWorker(service, memQueue, logger, triage.WithWorkerCount(cfg.WorkerCount))
		worker.Start(ctx)
	case cfg.IntakeQueueURL != "":
		sqsClient := sqs.NewFromConfig(awsCfg)
		publisher = triage.NewPublisher(queue.NewSQSQueue(sqsClient, cfg.IntakeQueueURL))
	default:
		logger.Info("no intake queue configured, classifying inline")
	}

	var policyHandler *handlers.PolicyHandler
	if policyStore != nil {
		policyHandler = handlers.NewPolicyHandler(policyStore, policyProvider, logger)
	}

	r := router.New(&router.Config{
		Logger:              logger,
		Intake:              handlers.NewIntakeHandler(service, publisher, logger),
		Review:              handlers.NewReviewHandler(service, logger),
		Agreement:           handlers.NewAgreementHandler(analytics.NewService(repo, logger), logger),
		Policy:              policyHandler,
		MetricsHandler:      promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		AdminAuthSecret:     cfg.AdminJWTSecret,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		IntakeRatePerSecond: cfg.IntakeRatePerSecond,
		IntakeBurst:         cfg.IntakeBurst,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
