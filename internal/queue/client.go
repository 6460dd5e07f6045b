package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zombar/socialpulse/internal/models"
)

// Task type constants
const (
	TypeAnalyzeBatch   = "socialpulse:analyze_batch"
	TypeCollectAnalyze = "socialpulse:collect_analyze"
)

// AnalyzeBatchPayload represents the payload for analyzing posts the caller
// already has in hand
type AnalyzeBatchPayload struct {
	JobID     string `json:"job_id"`
	Company   string `json:"company"`
	Posts     string `json:"posts,omitempty"` // Compressed + base64 encoded JSON post array
	PostCount int    `json:"post_count"`
	// Tracing and timing fields
	TraceID    string `json:"trace_id,omitempty"`
	SpanID     string `json:"span_id,omitempty"`
	EnqueuedAt int64  `json:"enqueued_at"` // Unix timestamp in nanoseconds
}

// CollectAnalyzePayload represents the payload for collecting posts about a
// company and analyzing them in one job
type CollectAnalyzePayload struct {
	JobID   string `json:"job_id"`
	Company string `json:"company"`
	Source  string `json:"source"`             // sample or feed
	Count   int    `json:"count"`              // how many posts to collect
	FeedURL string `json:"feed_url,omitempty"` // explicit feed URL, otherwise resolved from config
	// Tracing and timing fields
	TraceID    string `json:"trace_id,omitempty"`
	SpanID     string `json:"span_id,omitempty"`
	EnqueuedAt int64  `json:"enqueued_at"` // Unix timestamp in nanoseconds
}

// Client wraps the Asynq client for enqueueing tasks
type Client struct {
	client *asynq.Client
}

// ClientConfig contains configuration for the queue client
type ClientConfig struct {
	RedisAddr string
}

// NewClient creates a new queue client
func NewClient(cfg ClientConfig) *Client {
	redisOpt := asynq.RedisClientOpt{
		Addr: cfg.RedisAddr,
	}

	client := asynq.NewClient(redisOpt)

	return &Client{
		client: client,
	}
}

// EnqueueAnalyzeBatch enqueues an analysis task for posts supplied inline
func (c *Client) EnqueueAnalyzeBatch(ctx context.Context, jobID, company string, posts []models.Post) (string, error) {
	compressed, err := compressPosts(posts)
	if err != nil {
		return "", fmt.Errorf("failed to compress posts: %w", err)
	}

	payload := AnalyzeBatchPayload{
		JobID:      jobID,
		Company:    company,
		Posts:      compressed,
		PostCount:  len(posts),
		EnqueuedAt: time.Now().UnixNano(), // Record enqueue time for queue wait metrics
	}

	// Add tracing context if available
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		spanCtx := span.SpanContext()
		payload.TraceID = spanCtx.TraceID().String()
		payload.SpanID = spanCtx.SpanID().String()

		// Record enqueue event
		span.AddEvent("task_enqueued", trace.WithAttributes(
			attribute.String("task.type", TypeAnalyzeBatch),
			attribute.String("task.id", jobID),
			attribute.String("job_id", jobID),
			attribute.Int("post_count", len(posts)),
			attribute.Int64("enqueued_at", payload.EnqueuedAt),
		))
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal task payload: %w", err)
	}

	task := asynq.NewTask(TypeAnalyzeBatch, payloadBytes, asynq.TaskID(jobID))

	opts := []asynq.Option{
		asynq.MaxRetry(3),                   // Analysis is local, a handful of retries is plenty
		asynq.Timeout(10 * time.Minute),     // 10 minute timeout
		asynq.Queue("analysis"),             // Analysis queue (higher priority)
		asynq.Retention(7 * 24 * time.Hour), // Keep completed tasks for 7 days
	}

	info, err := c.client.Enqueue(task, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue analyze batch task: %w", err)
	}

	return info.ID, nil
}

// EnqueueCollectAnalyze enqueues a task that collects posts from a source
// before analyzing them
func (c *Client) EnqueueCollectAnalyze(ctx context.Context, jobID, company, source string, count int, feedURL string) (string, error) {
	payload := CollectAnalyzePayload{
		JobID:      jobID,
		Company:    company,
		Source:     source,
		Count:      count,
		FeedURL:    feedURL,
		EnqueuedAt: time.Now().UnixNano(),
	}

	// Add tracing context if available
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		spanCtx := span.SpanContext()
		payload.TraceID = spanCtx.TraceID().String()
		payload.SpanID = spanCtx.SpanID().String()

		// Record enqueue event
		span.AddEvent("task_enqueued", trace.WithAttributes(
			attribute.String("task.type", TypeCollectAnalyze),
			attribute.String("task.id", jobID+"-collect"),
			attribute.String("job_id", jobID),
			attribute.String("source", source),
			attribute.Int("count", count),
			attribute.Int64("enqueued_at", payload.EnqueuedAt),
		))
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal task payload: %w", err)
	}

	taskID := jobID + "-collect"
	task := asynq.NewTask(TypeCollectAnalyze, payloadBytes, asynq.TaskID(taskID))

	opts := []asynq.Option{
		asynq.MaxRetry(3),                   // Feeds recover or they don't; cap the retries
		asynq.Timeout(10 * time.Minute),     // 10 minute timeout including the fetch
		asynq.Queue("collection"),           // Collection queue (lower priority)
		asynq.Retention(7 * 24 * time.Hour), // Keep completed tasks for 7 days
	}

	info, err := c.client.Enqueue(task, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue collect analyze task: %w", err)
	}

	return info.ID, nil
}

// Close closes the client connection
func (c *Client) Close() error {
	return c.client.Close()
}
