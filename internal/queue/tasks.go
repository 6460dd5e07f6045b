package queue

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zombar/socialpulse/internal/collector"
	"github.com/zombar/socialpulse/internal/database"
	"github.com/zombar/socialpulse/internal/metrics"
	"github.com/zombar/socialpulse/internal/models"
)

// handleAnalyzeBatch analyzes a batch of posts carried in the payload
func (w *Worker) handleAnalyzeBatch(ctx context.Context, t *asynq.Task) error {
	// Parse payload
	var payload AnalyzeBatchPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		w.logger.Error("failed to unmarshal task payload", "error", err)
		return fmt.Errorf("invalid task payload: %v: %w", err, asynq.SkipRetry)
	}

	queueWait := queueWaitTime(payload.EnqueuedAt)
	w.pipelineMetrics.QueueWaitTime.WithLabelValues(TypeAnalyzeBatch).Observe(queueWait.Seconds())

	retryCount, _ := asynq.GetRetryCount(ctx)
	w.logger.Info("analyzing post batch",
		"job_id", payload.JobID,
		"company", payload.Company,
		"post_count", payload.PostCount,
		"retry_count", retryCount,
		"queue_wait_seconds", queueWait.Seconds(),
	)

	// Recreate trace context from payload if available
	ctx, span := w.startTaskSpan(ctx, TypeAnalyzeBatch, payload.TraceID, payload.SpanID, queueWait,
		attribute.String("job.id", payload.JobID),
		attribute.String("company", payload.Company),
		attribute.Int("post.count", payload.PostCount),
	)
	if span != nil {
		defer span.End()
	}

	posts, err := decompressPosts(payload.Posts)
	if err != nil {
		w.pipelineMetrics.JobsTotal.WithLabelValues(TypeAnalyzeBatch, "failed").Inc()
		w.failJob(payload.JobID, fmt.Sprintf("invalid posts payload: %v", err))
		return fmt.Errorf("failed to decompress posts: %v: %w", err, asynq.SkipRetry)
	}

	return w.analyzeAndPersist(ctx, TypeAnalyzeBatch, payload.JobID, payload.Company, posts)
}

// handleCollectAnalyze collects posts about a company and analyzes them
func (w *Worker) handleCollectAnalyze(ctx context.Context, t *asynq.Task) error {
	// Parse payload
	var payload CollectAnalyzePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		w.logger.Error("failed to unmarshal task payload", "error", err)
		return fmt.Errorf("invalid task payload: %v: %w", err, asynq.SkipRetry)
	}

	queueWait := queueWaitTime(payload.EnqueuedAt)
	w.pipelineMetrics.QueueWaitTime.WithLabelValues(TypeCollectAnalyze).Observe(queueWait.Seconds())

	retryCount, _ := asynq.GetRetryCount(ctx)
	w.logger.Info("collecting posts for analysis",
		"job_id", payload.JobID,
		"company", payload.Company,
		"source", payload.Source,
		"count", payload.Count,
		"retry_count", retryCount,
		"queue_wait_seconds", queueWait.Seconds(),
	)

	// Recreate trace context from payload if available
	ctx, span := w.startTaskSpan(ctx, TypeCollectAnalyze, payload.TraceID, payload.SpanID, queueWait,
		attribute.String("job.id", payload.JobID),
		attribute.String("company", payload.Company),
		attribute.String("source", payload.Source),
		attribute.Int("count", payload.Count),
	)
	if span != nil {
		defer span.End()
	}

	src, err := w.collectorFor(payload)
	if err != nil {
		w.pipelineMetrics.JobsTotal.WithLabelValues(TypeCollectAnalyze, "failed").Inc()
		w.failJob(payload.JobID, err.Error())
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	posts, err := src.Collect(ctx, payload.Company, payload.Count)
	if err != nil {
		// Check if this is a retriable error (connection/timeout)
		if isRetriableError(err) {
			w.pipelineMetrics.JobsTotal.WithLabelValues(TypeCollectAnalyze, "error").Inc()
			w.logger.Warn("retriable collection error, will retry",
				"job_id", payload.JobID,
				"error", err,
				"retry_count", retryCount,
			)
			return err // Let Asynq retry
		}

		// Permanent error
		w.pipelineMetrics.JobsTotal.WithLabelValues(TypeCollectAnalyze, "failed").Inc()
		w.logger.Error("permanent collection error",
			"job_id", payload.JobID,
			"error", err,
		)
		w.failJob(payload.JobID, err.Error())
		return fmt.Errorf("collection failed: %v: %w", err, asynq.SkipRetry)
	}

	return w.analyzeAndPersist(ctx, TypeCollectAnalyze, payload.JobID, payload.Company, posts)
}

// analyzeAndPersist runs the analysis service over the posts of one job and
// stores the results, moving the job through running to its final state
func (w *Worker) analyzeAndPersist(ctx context.Context, taskType, jobID, company string, posts []models.Post) error {
	// Record batch duration with exemplar support
	timer := time.Now()
	var status string
	defer func() {
		if status != "" {
			metrics.ObserveDurationWithExemplar(ctx, w.pipelineMetrics.BatchDuration, time.Since(timer).Seconds())
			w.pipelineMetrics.JobsTotal.WithLabelValues(taskType, status).Inc()
		}
	}()

	if len(posts) == 0 {
		status = "failed"
		w.failJob(jobID, "no posts to analyze")
		return fmt.Errorf("job %s has no posts to analyze: %w", jobID, asynq.SkipRetry)
	}

	if err := w.db.MarkJobRunning(jobID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			status = "failed"
			return fmt.Errorf("job %s no longer exists: %w", jobID, asynq.SkipRetry)
		}
		status = "error"
		return fmt.Errorf("failed to mark job running: %w", err)
	}

	batch, summary, err := w.service.AnalyzeCompany(ctx, company, posts)
	if err != nil {
		if isRetriableError(err) {
			status = "error"
			w.logger.Warn("retriable analysis error, will retry", "job_id", jobID, "error", err)
			return err // Let Asynq retry
		}

		status = "failed"
		w.logger.Error("permanent analysis error", "job_id", jobID, "error", err)
		w.failJob(jobID, err.Error())
		return fmt.Errorf("analysis failed: %v: %w", err, asynq.SkipRetry)
	}

	w.pipelineMetrics.PostsProcessed.WithLabelValues("analyzed").Add(float64(len(batch.Analyses)))
	w.pipelineMetrics.PostsProcessed.WithLabelValues("skipped").Add(float64(batch.Skipped))
	w.pipelineMetrics.PostsProcessed.WithLabelValues("errored").Add(float64(batch.Errored))
	w.pipelineMetrics.TopicsExtracted.Add(float64(len(batch.Topics)))

	if err := w.db.SaveAnalyses(jobID, batch.Analyses); err != nil {
		status = "error"
		return fmt.Errorf("failed to save analyses: %w", err)
	}

	if err := w.db.SaveSummary(jobID, summary); err != nil {
		status = "error"
		return fmt.Errorf("failed to save summary: %w", err)
	}

	if err := w.db.MarkJobCompleted(jobID, len(batch.Analyses)); err != nil {
		status = "error"
		return fmt.Errorf("failed to mark job completed: %w", err)
	}

	status = "success"
	w.logger.Info("batch analysis completed",
		"job_id", jobID,
		"company", company,
		"analyzed", len(batch.Analyses),
		"skipped", batch.Skipped,
		"errored", batch.Errored,
		"topics", len(batch.Topics),
	)

	return nil
}

// startTaskSpan re-creates the producer's span context from payload hex IDs
// so worker spans join the originating request trace. Returns a nil span when
// the payload carries no usable trace context.
func (w *Worker) startTaskSpan(ctx context.Context, taskType, traceIDHex, spanIDHex string, queueWait time.Duration, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if traceIDHex == "" || spanIDHex == "" {
		// No trace context in payload, annotate the current span if any
		if existing := trace.SpanFromContext(ctx); existing.SpanContext().IsValid() {
			existing.SetAttributes(attrs...)
		}
		return ctx, nil
	}

	traceID, err := trace.TraceIDFromHex(traceIDHex)
	if err != nil {
		return ctx, nil
	}
	spanID, err := trace.SpanIDFromHex(spanIDHex)
	if err != nil {
		return ctx, nil
	}

	// Create span context from stored IDs
	remoteSpanCtx := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})

	// Create new context with the remote span context
	ctx = trace.ContextWithRemoteSpanContext(ctx, remoteSpanCtx)

	attrs = append(attrs,
		attribute.String("task.type", taskType),
		attribute.Float64("queue.wait_time_seconds", queueWait.Seconds()),
	)

	// Start a new span linked to the enqueue span
	ctx, span := otel.Tracer("socialpulse").Start(ctx, "asynq.task.process",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(attrs...),
	)

	// Record queue wait time event
	span.AddEvent("task_processing_started", trace.WithAttributes(
		attribute.Float64("wait_time_seconds", queueWait.Seconds()),
	))

	return ctx, span
}

// collectorFor picks a post source for the payload. Sample collection is
// seeded from the job ID so retries regenerate the same posts.
func (w *Worker) collectorFor(payload CollectAnalyzePayload) (collector.Collector, error) {
	switch payload.Source {
	case collector.SourceSample, "":
		return collector.NewSampleGenerator(sampleSeed(payload.JobID)), nil
	case collector.SourceFeed:
		feedURL := payload.FeedURL
		if feedURL == "" {
			if urls := w.registry.FeedURLs(payload.Company); len(urls) > 0 {
				feedURL = urls[0]
			}
		}
		if feedURL == "" {
			return nil, fmt.Errorf("no feed configured for company %q", payload.Company)
		}
		return collector.NewFeedCollector(feedURL), nil
	default:
		return nil, fmt.Errorf("unknown post source %q", payload.Source)
	}
}

func sampleSeed(jobID string) int64 {
	h := fnv.New64a()
	h.Write([]byte(jobID))
	return int64(h.Sum64())
}

// failJob records a terminal job failure; the task error is surfaced separately
func (w *Worker) failJob(jobID, msg string) {
	if err := w.db.MarkJobFailed(jobID, msg); err != nil {
		w.logger.Error("failed to mark job failed", "job_id", jobID, "error", err)
	}
}

func queueWaitTime(enqueuedAt int64) time.Duration {
	if enqueuedAt <= 0 {
		return 0
	}
	return time.Since(time.Unix(0, enqueuedAt))
}

// isRetriableError determines if an error is retriable (connection/timeout)
// vs permanent (invalid input)
func isRetriableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())

	// Retriable errors: connection issues, timeouts, temporary failures
	retriablePatterns := []string{
		"connection refused",
		"connection reset",
		"timeout",
		"temporary failure",
		"service unavailable",
		"internal server error",
		"bad gateway",
		"gateway timeout",
		"too many requests",
		"context deadline exceeded",
		"context canceled",
		"i/o timeout",
		"no such host",
		"network is unreachable",
	}

	for _, pattern := range retriablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// compressPosts gzips and base64 encodes a post slice for transport inside a
// task payload
func compressPosts(posts []models.Post) (string, error) {
	if len(posts) == 0 {
		return "", nil
	}

	data, err := json.Marshal(posts)
	if err != nil {
		return "", fmt.Errorf("failed to marshal posts: %w", err)
	}

	var buf bytes.Buffer
	gzWriter := gzip.NewWriter(&buf)

	if _, err := gzWriter.Write(data); err != nil {
		return "", fmt.Errorf("failed to write to gzip: %w", err)
	}

	if err := gzWriter.Close(); err != nil {
		return "", fmt.Errorf("failed to close gzip writer: %w", err)
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// decompressPosts decodes base64 and decompresses a post slice
func decompressPosts(encoded string) ([]models.Post, error) {
	if encoded == "" {
		return nil, nil
	}

	// Decode base64
	compressed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64: %w", err)
	}

	// Decompress gzip
	gzReader, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzReader.Close()

	data, err := io.ReadAll(gzReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read decompressed data: %w", err)
	}

	var posts []models.Post
	if err := json.Unmarshal(data, &posts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal posts: %w", err)
	}

	return posts, nil
}
