package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/zombar/socialpulse/internal/analysis"
	"github.com/zombar/socialpulse/internal/config"
	"github.com/zombar/socialpulse/internal/database"
	"github.com/zombar/socialpulse/internal/metrics"
)

// Worker wraps the Asynq server for processing tasks
type Worker struct {
	server          *asynq.Server
	mux             *asynq.ServeMux
	db              *database.DB
	service         *analysis.Service
	registry        *config.Registry
	concurrency     int
	logger          *slog.Logger
	pipelineMetrics *metrics.PipelineMetrics
}

// WorkerConfig contains configuration for the queue worker
type WorkerConfig struct {
	RedisAddr   string
	Concurrency int
}

// NewWorker creates a new queue worker
func NewWorker(
	cfg WorkerConfig,
	db *database.DB,
	service *analysis.Service,
	registry *config.Registry,
) *Worker {
	redisOpt := asynq.RedisClientOpt{
		Addr: cfg.RedisAddr,
	}

	serverCfg := asynq.Config{
		// Concurrency determines how many tasks can be processed simultaneously
		Concurrency: cfg.Concurrency,

		// Queue priority: higher value = higher priority. Analysis tasks
		// already carry their posts; collection tasks fetch from outside
		// first and can wait.
		Queues: map[string]int{
			"analysis":   6,
			"collection": 3,
		},

		// StrictPriority: false means queues are processed proportionally
		// true would mean the analysis queue must be empty before processing collection
		StrictPriority: false,

		RetryDelayFunc: retryDelay,

		// Graceful shutdown timeout
		ShutdownTimeout: 30 * time.Second,

		// Error handler for logging
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)

			slog.Error("task processing error",
				"task_type", task.Type(),
				"error", err,
				"retry_count", retried,
				"max_retries", maxRetry,
			)
		}),
	}

	server := asynq.NewServer(redisOpt, serverCfg)
	mux := asynq.NewServeMux()

	w := &Worker{
		server:          server,
		mux:             mux,
		db:              db,
		service:         service,
		registry:        registry,
		concurrency:     cfg.Concurrency,
		logger:          slog.Default(),
		pipelineMetrics: metrics.NewPipelineMetrics("socialpulse"),
	}

	// Register task handlers
	w.registerHandlers()

	return w
}

// registerHandlers registers all task handlers with the worker
func (w *Worker) registerHandlers() {
	w.mux.HandleFunc(TypeAnalyzeBatch, w.handleAnalyzeBatch)
	w.mux.HandleFunc(TypeCollectAnalyze, w.handleCollectAnalyze)
}

// retryDelay spaces retries further apart for collection tasks, which mostly
// fail on unreachable feeds and need time to recover
func retryDelay(n int, err error, task *asynq.Task) time.Duration {
	if task.Type() == TypeCollectAnalyze {
		// Collection backoff: 30s, 2m, 10m
		delays := []time.Duration{
			30 * time.Second,
			2 * time.Minute,
			10 * time.Minute,
		}
		if n < len(delays) {
			return delays[n]
		}
		return delays[len(delays)-1]
	}

	// Analysis backoff: 10s, 1m, 5m
	delays := []time.Duration{
		10 * time.Second,
		1 * time.Minute,
		5 * time.Minute,
	}
	if n < len(delays) {
		return delays[n]
	}
	return delays[len(delays)-1]
}

// Start starts the worker to begin processing tasks
func (w *Worker) Start() error {
	w.logger.Info("starting asynq worker",
		"concurrency", w.concurrency,
		"queues", map[string]int{"analysis": 6, "collection": 3},
	)

	// Run is blocking - starts processing tasks
	if err := w.server.Run(w.mux); err != nil {
		return fmt.Errorf("asynq server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the worker
func (w *Worker) Shutdown() {
	w.logger.Info("shutting down asynq worker")
	w.server.Shutdown()
}

// Server returns the underlying Asynq server (for testing)
func (w *Worker) Server() *asynq.Server {
	return w.server
}

// getRetryDelayFunc returns the retry delay function (for testing)
func (w *Worker) getRetryDelayFunc() func(n int, err error, task *asynq.Task) time.Duration {
	return retryDelay
}
