package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"

	"github.com/leadgate-ai/leadgate/cmd/mainconfig"
	"github.com/leadgate-ai/leadgate/internal/app/bootstrap"
	appconfig "github.com/leadgate-ai/leadgate/internal/config"
	"github.com/leadgate-ai/leadgate/internal/observability/metrics"
	"github.com/leadgate-ai/leadgate/internal/queue"
	"github.com/leadgate-ai/leadgate/internal/triage"
	"github.com/leadgate-ai/leadgate/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel).WithComponent("intake-worker")

	if cfg.IntakeQueueURL == "" {
		logger.Error("INTAKE_QUEUE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	awsConfig, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	repo, closeRepo, err := bootstrap.BuildLeadsRepository(ctx, cfg, awsConfig, logger)
	if err != nil {
		logger.Error("failed to build leads repository", "error", err)
		os.Exit(1)
	}
	defer closeRepo()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	_, policyProvider := bootstrap.BuildPolicy(redisClient, cfg, logger)

	leadClassifier, closeClassifier, err := bootstrap.BuildClassifier(ctx, cfg, awsConfig, logger)
	if err != nil {
		logger.Error("failed to build classifier", "error", err)
		os.Exit(1)
	}
	defer closeClassifier()

	deliverer, err := bootstrap.BuildDeliverer(cfg, awsConfig, logger)
	if err != nil {
		logger.Error("failed to build deliverer", "error", err)
		os.Exit(1)
	}

	service := triage.NewService(repo, leadClassifier, policyProvider, deliverer, triage.Options{
		Archiver: bootstrap.BuildArchiveStore(cfg, awsConfig, logger),
		Metrics:  metrics.NewRoutingMetrics(nil),
		Logger:   logger,
	})

	sqsClient := sqs.NewFromConfig(awsConfig)
	worker := triage.NewWorker(
		service,
		queue.NewSQSQueue(sqsClient, cfg.IntakeQueueURL),
		logger,
		triage.WithWorkerCount(cfg.WorkerCount),
	)

	worker.Start(ctx)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down intake worker...")
	cancel()

	doneCtx, doneCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer doneCancel()

	waitCh := make(chan struct{})
	go func() {
		worker.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Info("intake worker stopped")
	case <-doneCtx.Done():
		logger.Error("intake worker shutdown timed out", "error", doneCtx.Err())
	}
}
