package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/zombar/socialpulse/internal/models"
)

func newSpanRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	spanRecorder := tracetest.NewSpanRecorder()
	tp := trace.NewTracerProvider(
		trace.WithSpanProcessor(spanRecorder),
	)
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return spanRecorder
}

// TestE2ETraceFlow_AnalyzeBatch tests the complete trace flow for batch analysis
func TestE2ETraceFlow_AnalyzeBatch(t *testing.T) {
	spanRecorder := newSpanRecorder(t)

	// Create parent span simulating the incoming API request
	tracer := otel.Tracer("test")
	ctx, parentSpan := tracer.Start(context.Background(), "api.create_analyses",
		oteltrace.WithSpanKind(oteltrace.SpanKindServer),
	)

	parentSpanContext := parentSpan.SpanContext()

	// Step 1: Enqueue the batch task
	payload := AnalyzeBatchPayload{
		JobID:      "job_e2e00001",
		Company:    "Acme",
		PostCount:  2,
		EnqueuedAt: time.Now().Add(-2 * time.Second).UnixNano(),
	}

	// Capture trace context
	if span := oteltrace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		spanCtx := span.SpanContext()
		payload.TraceID = spanCtx.TraceID().String()
		payload.SpanID = spanCtx.SpanID().String()
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Failed to marshal payload: %v", err)
	}

	// Verify trace context captured
	if payload.TraceID != parentSpanContext.TraceID().String() {
		t.Errorf("TraceID mismatch: got %s, want %s",
			payload.TraceID, parentSpanContext.TraceID().String())
	}

	parentSpan.End()

	// Step 2: Simulate worker processing
	var receivedPayload AnalyzeBatchPayload
	if err := json.Unmarshal(payloadBytes, &receivedPayload); err != nil {
		t.Fatalf("Failed to unmarshal payload: %v", err)
	}

	w := &Worker{}
	workerCtx, workerSpan := w.startTaskSpan(context.Background(), TypeAnalyzeBatch,
		receivedPayload.TraceID, receivedPayload.SpanID, queueWaitTime(receivedPayload.EnqueuedAt))
	if workerSpan == nil {
		t.Fatal("Expected a worker span for a payload with trace context")
	}

	workerSpanContext := workerSpan.SpanContext()
	if workerSpanContext.TraceID() != parentSpanContext.TraceID() {
		t.Errorf("Worker span left the request trace: got %s, want %s",
			workerSpanContext.TraceID(), parentSpanContext.TraceID())
	}

	// The returned context must carry the worker span for downstream calls
	if got := oteltrace.SpanFromContext(workerCtx).SpanContext().SpanID(); got != workerSpanContext.SpanID() {
		t.Errorf("Context does not carry the worker span: got %s, want %s", got, workerSpanContext.SpanID())
	}

	workerSpan.End()

	// Step 3: Verify the recorded trace chain
	spans := spanRecorder.Ended()
	if len(spans) < 2 {
		t.Fatalf("Expected at least 2 spans, got %d", len(spans))
	}

	expectedTraceID := parentSpanContext.TraceID()
	for _, span := range spans {
		if span.SpanContext().TraceID() != expectedTraceID {
			t.Errorf("Span %s has different TraceID: got %s, want %s",
				span.Name(), span.SpanContext().TraceID(), expectedTraceID)
		}
	}

	// The worker span must descend from the enqueue-side span
	var found bool
	for _, span := range spans {
		if span.Name() != "asynq.task.process" {
			continue
		}
		found = true
		if span.SpanKind() != oteltrace.SpanKindConsumer {
			t.Errorf("Worker span kind: got %v, want consumer", span.SpanKind())
		}
		if span.Parent().SpanID() != parentSpanContext.SpanID() {
			t.Errorf("Worker span parent: got %s, want %s",
				span.Parent().SpanID(), parentSpanContext.SpanID())
		}
		if !span.Parent().IsRemote() {
			t.Error("Worker span parent should be marked remote")
		}
	}
	if !found {
		t.Error("No asynq.task.process span recorded")
	}
}

// TestE2ETraceFlow_CollectAnalyze tests the complete trace flow for collection jobs
func TestE2ETraceFlow_CollectAnalyze(t *testing.T) {
	spanRecorder := newSpanRecorder(t)

	tracer := otel.Tracer("test")
	ctx, parentSpan := tracer.Start(context.Background(), "api.create_analyses")

	parentSpanContext := parentSpan.SpanContext()

	payload := CollectAnalyzePayload{
		JobID:      "job_e2e00002",
		Company:    "Acme",
		Source:     "sample",
		Count:      10,
		EnqueuedAt: time.Now().UnixNano(),
	}

	// Capture trace context
	if span := oteltrace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		spanCtx := span.SpanContext()
		payload.TraceID = spanCtx.TraceID().String()
		payload.SpanID = spanCtx.SpanID().String()
	}

	parentSpan.End()

	payloadBytes, _ := json.Marshal(payload)

	// Simulate worker processing
	var receivedPayload CollectAnalyzePayload
	if err := json.Unmarshal(payloadBytes, &receivedPayload); err != nil {
		t.Fatalf("Failed to unmarshal payload: %v", err)
	}

	w := &Worker{}
	_, workerSpan := w.startTaskSpan(context.Background(), TypeCollectAnalyze,
		receivedPayload.TraceID, receivedPayload.SpanID, queueWaitTime(receivedPayload.EnqueuedAt))
	if workerSpan == nil {
		t.Fatal("Expected a worker span for a payload with trace context")
	}
	workerSpan.End()

	// Verify all spans share the same TraceID
	spans := spanRecorder.Ended()
	expectedTraceID := parentSpanContext.TraceID()

	for _, span := range spans {
		if span.SpanContext().TraceID() != expectedTraceID {
			t.Errorf("Span has different TraceID: got %s, want %s",
				span.SpanContext().TraceID(), expectedTraceID)
		}
	}
}

// TestE2EMultiJobTrace tests trace propagation across two jobs created by one request
func TestE2EMultiJobTrace(t *testing.T) {
	spanRecorder := newSpanRecorder(t)

	// One API request fanning out to analysis jobs for two companies
	tracer := otel.Tracer("test")
	ctx, requestSpan := tracer.Start(context.Background(), "api.compare_request")

	parentSpanContext := requestSpan.SpanContext()

	companies := []string{"Acme", "Globex"}
	w := &Worker{}

	for _, company := range companies {
		payload := CollectAnalyzePayload{
			JobID:      "job_multi_" + company,
			Company:    company,
			Source:     "sample",
			Count:      5,
			EnqueuedAt: time.Now().UnixNano(),
		}

		if span := oteltrace.SpanFromContext(ctx); span.SpanContext().IsValid() {
			spanCtx := span.SpanContext()
			payload.TraceID = spanCtx.TraceID().String()
			payload.SpanID = spanCtx.SpanID().String()
		}

		_, workerSpan := w.startTaskSpan(context.Background(), TypeCollectAnalyze,
			payload.TraceID, payload.SpanID, queueWaitTime(payload.EnqueuedAt))
		if workerSpan == nil {
			t.Fatalf("Expected a worker span for %s", company)
		}
		workerSpan.End()
	}

	requestSpan.End()

	// Verify all spans share the request's TraceID
	spans := spanRecorder.Ended()
	if len(spans) < 3 {
		t.Fatalf("Expected at least 3 spans (request and two workers), got %d", len(spans))
	}

	expectedTraceID := parentSpanContext.TraceID()
	for i, span := range spans {
		if span.SpanContext().TraceID() != expectedTraceID {
			t.Errorf("Span %d (%s) has different TraceID: got %s, want %s",
				i, span.Name(), span.SpanContext().TraceID(), expectedTraceID)
		}
	}
}

// TestE2ETraceFlowWithRealAsynq tests with actual Asynq client (requires Redis)
func TestE2ETraceFlowWithRealAsynq(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	spanRecorder := newSpanRecorder(t)

	// Setup Asynq client
	queueClient := NewClient(ClientConfig{RedisAddr: "localhost:6379"})
	defer queueClient.Close()

	// Create parent span
	tracer := otel.Tracer("test")
	ctx, parentSpan := tracer.Start(context.Background(), "api.create_analyses")

	// Enqueue a real task
	jobID := "job_real_" + time.Now().Format("20060102150405")
	posts := []models.Post{
		{ID: "post-1", Content: "Acme support was fantastic today", CreatedAt: time.Now().UTC()},
	}
	taskID, err := queueClient.EnqueueAnalyzeBatch(ctx, jobID, "Acme", posts)
	if err != nil {
		t.Skipf("Could not connect to Redis: %v", err)
	}

	t.Logf("Enqueued task: %s", taskID)

	parentSpan.End()

	spans := spanRecorder.Ended()
	if len(spans) == 0 {
		t.Error("No spans recorded")
	}

	for _, span := range spans {
		t.Logf("Recorded span: %s (TraceID: %s, SpanID: %s)",
			span.Name(), span.SpanContext().TraceID(), span.SpanContext().SpanID())
	}
}
