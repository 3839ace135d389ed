package triage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/leadgate-ai/leadgate/internal/leads"
	"github.com/leadgate-ai/leadgate/internal/queue"
	"github.com/leadgate-ai/leadgate/pkg/logging"
)

const jobKindIntake = "intake"

type intakeJob struct {
	ID         string           `json:"id"`
	Kind       string           `json:"kind"`
	Submission leads.Submission `json:"submission"`
}

// Publisher enqueues intake jobs for asynchronous processing.
type Publisher struct {
	queue queue.Client
}

func NewPublisher(q queue.Client) *Publisher {
	if q == nil {
		panic("triage: nil queue client")
	}
	return &Publisher{queue: q}
}

// Enqueue validates and publishes a submission. The returned ID is the
// job ID; the worker creates the lead under the same ID when it picks
// the job up, so repeated deliveries of one job converge on one lead.
func (p *Publisher) Enqueue(ctx context.Context, sub leads.Submission) (string, error) {
	if err := sub.Validate(); err != nil {
		return "", err
	}
	job := intakeJob{
		ID:         uuid.NewString(),
		Kind:       jobKindIntake,
		Submission: sub,
	}
	body, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("triage: encode intake job: %w", err)
	}
	if err := p.queue.Send(ctx, string(body)); err != nil {
		return "", err
	}
	return job.ID, nil
}

const (
	defaultWorkerCount  = 2
	defaultWaitSeconds  = 2
	defaultBatchSize    = 5
	maxWaitSeconds      = 20
	maxReceiveBatchSize = 10
	deleteTimeoutSecs   = 5
)

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
}

// WorkerOption customizes worker behavior.
type WorkerOption func(*workerConfig)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the SQS long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize sets how many messages to fetch per poll.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchSize {
			size = maxReceiveBatchSize
		}
		cfg.receiveBatchSize = size
	}
}

// Worker consumes intake jobs from the queue and runs them through the
// triage pipeline.
type Worker struct {
	service *Service
	queue   queue.Client
	logger  *logging.Logger

	cfg workerConfig
	wg  sync.WaitGroup
}

func NewWorker(service *Service, q queue.Client, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if service == nil {
		panic("triage: nil service")
	}
	if q == nil {
		panic("triage: nil queue client")
	}
	if logger == nil {
		logger = logging.Default()
	}
	cfg := workerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Worker{
		service: service,
		queue:   q,
		logger:  logger,
		cfg:     cfg,
	}
}

// Start launches the consumer goroutines. They exit when ctx is done.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all worker goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("intake worker started", "worker_id", workerID)

	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("intake worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			w.logger.Error("failed to receive intake jobs", "error", err, "worker_id", workerID)
			time.Sleep(backoff)
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg queue.Message) {
	var job intakeJob
	if err := json.Unmarshal([]byte(msg.Body), &job); err != nil {
		w.logger.Error("failed to decode intake job", "error", err, "msg_id", msg.ID)
		w.deleteMessage(context.Background(), msg.ReceiptHandle)
		return
	}
	if job.Kind != jobKindIntake {
		w.logger.Error("unknown job kind", "kind", job.Kind, "job_id", job.ID)
		w.deleteMessage(context.Background(), msg.ReceiptHandle)
		return
	}

	// The job ID doubles as the lead ID so a redelivered message lands on
	// the lead the earlier attempt already created.
	lead, err := w.service.IntakeWithID(ctx, job.ID, job.Submission)
	if errors.Is(err, leads.ErrLeadExists) {
		lead, err = w.service.Resume(ctx, job.ID)
	}
	if err != nil {
		// A version conflict means someone else already advanced the
		// lead; the job is not retried. Other failures leave the message
		// on the queue for redelivery.
		if errors.Is(err, leads.ErrVersionConflict) ||
			errors.Is(err, leads.ErrInvalidName) || errors.Is(err, leads.ErrMissingContact) {
			w.logger.Warn("intake job dropped", "job_id", job.ID, "error", err)
			w.deleteMessage(context.Background(), msg.ReceiptHandle)
			return
		}
		w.logger.Error("intake job failed", "job_id", job.ID, "error", err)
		return
	}

	w.logger.Info("intake job processed", "job_id", job.ID, "lead_id", lead.ID, "status", string(lead.Status.Status))
	w.deleteMessage(context.Background(), msg.ReceiptHandle)
}

func (w *Worker) deleteMessage(ctx context.Context, receiptHandle string) {
	if receiptHandle == "" {
		return
	}

	deleteCtx, cancel := context.WithTimeout(ctx, deleteTimeoutSecs*time.Second)
	defer cancel()

	if err := w.queue.Delete(deleteCtx, receiptHandle); err != nil {
		w.logger.Error("failed to delete intake job", "error", err)
	}
}
