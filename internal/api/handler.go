package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/zombar/socialpulse/internal/analysis"
	"github.com/zombar/socialpulse/internal/collector"
	"github.com/zombar/socialpulse/internal/database"
	"github.com/zombar/socialpulse/internal/metrics"
	"github.com/zombar/socialpulse/internal/models"
	"github.com/zombar/socialpulse/internal/pipeline"
	"github.com/zombar/socialpulse/internal/tracing"
)

// dbTimeout bounds every database call made on behalf of one request
const dbTimeout = 30 * time.Second

var errNotEnoughSummaries = errors.New("fewer than two companies have stored summaries")

// QueueClient enqueues analysis work; satisfied by *queue.Client
type QueueClient interface {
	EnqueueAnalyzeBatch(ctx context.Context, jobID, company string, posts []models.Post) (string, error)
	EnqueueCollectAnalyze(ctx context.Context, jobID, company, source string, count int, feedURL string) (string, error)
}

// Handler handles HTTP requests
type Handler struct {
	db          *database.DB
	service     *analysis.Service
	queueClient QueueClient
	mux         *http.ServeMux
}

// NewHandler creates a new API handler with CORS support and metrics
func NewHandler(db *database.DB, service *analysis.Service, queueClient QueueClient) http.Handler {
	h := &Handler{
		db:          db,
		service:     service,
		queueClient: queueClient,
		mux:         http.NewServeMux(),
	}

	h.setupRoutes()

	httpMetrics := metrics.NewHTTPMetrics("socialpulse", normalizePath)

	// Setup CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	// Wrap with CORS and request metrics
	return c.Handler(httpMetrics.Middleware(h.mux))
}

// setupRoutes configures all API routes
func (h *Handler) setupRoutes() {
	h.mux.Handle("/metrics", promhttp.Handler()) // Prometheus metrics endpoint
	h.mux.HandleFunc("/api/analyze", h.handleAnalyze)
	h.mux.HandleFunc("/api/analyses", h.handleCreateAnalyses)
	h.mux.HandleFunc("/api/analyses/", h.handleJobAnalyses)
	h.mux.HandleFunc("/api/jobs", h.handleListJobs)
	h.mux.HandleFunc("/api/jobs/", h.handleJobOperations)
	h.mux.HandleFunc("/api/summaries", h.handleSummaries)
	h.mux.HandleFunc("/api/compare", h.handleCompare)
	h.mux.HandleFunc("/api/status", h.handleStatus)
	h.mux.HandleFunc("/health", h.handleHealth)
}

// handleHealth handles health check requests
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleAnalyze handles synchronous single-post analysis requests
func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Text     string `json:"text"`
		Company  string `json:"company,omitempty"`
		Language string `json:"language,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if strings.TrimSpace(req.Text) == "" {
		respondError(w, "Text field is required", http.StatusBadRequest)
		return
	}

	// Add text length to span
	tracing.SetSpanAttributes(r.Context(),
		attribute.Int("text.length", len(req.Text)),
		attribute.String("company", req.Company))

	post := models.Post{
		ID:        "inline_" + shortID(),
		Content:   req.Text,
		Language:  req.Language,
		CreatedAt: time.Now().UTC(),
		Source:    "api",
		Company:   req.Company,
	}

	result, err := h.service.AnalyzeOne(r.Context(), req.Company, post)
	if err != nil {
		if errors.Is(err, pipeline.ErrEmptyPost) || errors.Is(err, pipeline.ErrUnsupportedLanguage) {
			respondError(w, err.Error(), http.StatusBadRequest)
			return
		}
		respondError(w, fmt.Sprintf("Analysis failed: %v", err), http.StatusInternalServerError)
		return
	}

	respondJSON(w, result, http.StatusOK)
}

// handleCreateAnalyses starts an asynchronous batch analysis job. Posts come
// either inline in the request or from a named source the worker collects.
func (h *Handler) handleCreateAnalyses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Company string        `json:"company"`
		Posts   []models.Post `json:"posts,omitempty"`
		Source  string        `json:"source,omitempty"`
		Count   int           `json:"count,omitempty"`
		FeedURL string        `json:"feed_url,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	req.Company = strings.TrimSpace(req.Company)
	if req.Company == "" {
		respondError(w, "Company field is required", http.StatusBadRequest)
		return
	}

	if len(req.Posts) == 0 && req.Source == "" {
		respondError(w, "Either posts or a source is required", http.StatusBadRequest)
		return
	}

	if req.Source != "" && req.Source != collector.SourceSample && req.Source != collector.SourceFeed {
		respondError(w, fmt.Sprintf("Unknown source %q", req.Source), http.StatusBadRequest)
		return
	}

	count := req.Count
	if count <= 0 {
		count = 20
	}

	jobID := generateJobID()
	normalizePosts(req.Posts, jobID, req.Company)

	tracing.SetSpanAttributes(r.Context(),
		attribute.String("job.id", jobID),
		attribute.String("company", req.Company),
		attribute.Int("post.count", len(req.Posts)))

	job := &models.AnalysisJob{
		ID:        jobID,
		Company:   req.Company,
		Status:    models.JobPending,
		PostCount: len(req.Posts),
		CreatedAt: time.Now().UTC(),
	}

	ctx := r.Context()
	resultChan := make(chan string)
	errorChan := make(chan error)

	go func() {
		if err := h.db.InsertJob(job); err != nil {
			errorChan <- err
			return
		}

		var taskID string
		var err error
		if len(req.Posts) > 0 {
			taskID, err = h.queueClient.EnqueueAnalyzeBatch(ctx, jobID, req.Company, req.Posts)
		} else {
			taskID, err = h.queueClient.EnqueueCollectAnalyze(ctx, jobID, req.Company, req.Source, count, req.FeedURL)
		}
		if err != nil {
			// The job row exists but no task will ever run it
			if markErr := h.db.MarkJobFailed(jobID, fmt.Sprintf("enqueue failed: %v", err)); markErr != nil {
				err = fmt.Errorf("%w (job cleanup also failed: %v)", err, markErr)
			}
			errorChan <- fmt.Errorf("failed to enqueue analysis: %w", err)
			return
		}
		resultChan <- taskID
	}()

	select {
	case taskID := <-resultChan:
		respondJSON(w, map[string]interface{}{
			"job_id":  jobID,
			"task_id": taskID,
			"status":  models.JobPending,
			"message": "Analysis queued for processing",
		}, http.StatusAccepted)
	case err := <-errorChan:
		respondError(w, err.Error(), http.StatusInternalServerError)
	case <-time.After(dbTimeout):
		respondError(w, "Request timeout", http.StatusRequestTimeout)
	}
}

// handleJobOperations handles GET and DELETE for specific jobs
func (h *Handler) handleJobOperations(w http.ResponseWriter, r *http.Request) {
	// Extract job ID from path
	jobID := r.URL.Path[len("/api/jobs/"):]
	if idx := strings.Index(jobID, "/"); idx != -1 {
		jobID = jobID[:idx]
	}

	if jobID == "" {
		respondError(w, "Job ID is required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getJobStatus(w, jobID)
	case http.MethodDelete:
		h.deleteJob(w, jobID)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type jobStatusResult struct {
	job     *models.AnalysisJob
	summary *models.CompanyAnalysisSummary
}

// getJobStatus reports the job's state, including the summary once completed
func (h *Handler) getJobStatus(w http.ResponseWriter, jobID string) {
	resultChan := make(chan jobStatusResult)
	errorChan := make(chan error)

	go func() {
		job, err := h.db.GetJob(jobID)
		if err != nil {
			errorChan <- err
			return
		}

		result := jobStatusResult{job: job}
		if job.Status == models.JobCompleted {
			summary, err := h.db.GetSummaryByJob(jobID)
			if err != nil && !errors.Is(err, database.ErrNotFound) {
				errorChan <- err
				return
			}
			result.summary = summary
		}
		resultChan <- result
	}()

	select {
	case result := <-resultChan:
		respondJSON(w, struct {
			*models.AnalysisJob
			Summary *models.CompanyAnalysisSummary `json:"summary,omitempty"`
		}{result.job, result.summary}, http.StatusOK)
	case err := <-errorChan:
		if errors.Is(err, database.ErrNotFound) {
			respondJSON(w, map[string]interface{}{
				"job_id":  jobID,
				"status":  "not_found",
				"message": "Job not found - it may have expired",
			}, http.StatusNotFound)
			return
		}
		respondError(w, err.Error(), http.StatusInternalServerError)
	case <-time.After(dbTimeout):
		respondError(w, "Request timeout", http.StatusRequestTimeout)
	}
}

// deleteJob removes a job and its stored analyses and summaries
func (h *Handler) deleteJob(w http.ResponseWriter, jobID string) {
	errorChan := make(chan error)
	doneChan := make(chan bool)

	go func() {
		if err := h.db.DeleteJob(jobID); err != nil {
			errorChan <- err
			return
		}
		doneChan <- true
	}()

	select {
	case <-doneChan:
		w.WriteHeader(http.StatusNoContent)
	case err := <-errorChan:
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, err.Error(), http.StatusNotFound)
		} else {
			respondError(w, err.Error(), http.StatusInternalServerError)
		}
	case <-time.After(dbTimeout):
		respondError(w, "Request timeout", http.StatusRequestTimeout)
	}
}

// handleListJobs handles listing jobs with pagination
func (h *Handler) handleListJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 10
	offset := 0

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	// Fetch jobs in a goroutine
	resultChan := make(chan []*models.AnalysisJob)
	errorChan := make(chan error)

	go func() {
		jobs, err := h.db.ListJobs(limit, offset)
		if err != nil {
			errorChan <- err
			return
		}
		resultChan <- jobs
	}()

	select {
	case jobs := <-resultChan:
		respondJSON(w, jobs, http.StatusOK)
	case err := <-errorChan:
		respondError(w, err.Error(), http.StatusInternalServerError)
	case <-time.After(dbTimeout):
		respondError(w, "Request timeout", http.StatusRequestTimeout)
	}
}

// handleJobAnalyses returns the persisted per-post analyses of one job
func (h *Handler) handleJobAnalyses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	jobID := r.URL.Path[len("/api/analyses/"):]
	if jobID == "" {
		respondError(w, "Job ID is required", http.StatusBadRequest)
		return
	}

	resultChan := make(chan []*models.PostAnalysis)
	errorChan := make(chan error)

	go func() {
		// Distinguish an unknown job from a job with nothing stored yet
		if _, err := h.db.GetJob(jobID); err != nil {
			errorChan <- err
			return
		}
		analyses, err := h.db.GetAnalyses(jobID)
		if err != nil {
			errorChan <- err
			return
		}
		resultChan <- analyses
	}()

	select {
	case analyses := <-resultChan:
		respondJSON(w, analyses, http.StatusOK)
	case err := <-errorChan:
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, err.Error(), http.StatusNotFound)
		} else {
			respondError(w, err.Error(), http.StatusInternalServerError)
		}
	case <-time.After(dbTimeout):
		respondError(w, "Request timeout", http.StatusRequestTimeout)
	}
}

// handleSummaries returns the latest stored summary for a company
func (h *Handler) handleSummaries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	company := strings.TrimSpace(r.URL.Query().Get("company"))
	if company == "" {
		respondError(w, "Company parameter is required", http.StatusBadRequest)
		return
	}

	resultChan := make(chan *models.CompanyAnalysisSummary)
	errorChan := make(chan error)

	go func() {
		summary, err := h.db.GetLatestSummary(company)
		if err != nil {
			errorChan <- err
			return
		}
		resultChan <- summary
	}()

	select {
	case summary := <-resultChan:
		respondJSON(w, summary, http.StatusOK)
	case err := <-errorChan:
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, err.Error(), http.StatusNotFound)
		} else {
			respondError(w, err.Error(), http.StatusInternalServerError)
		}
	case <-time.After(dbTimeout):
		respondError(w, "Request timeout", http.StatusRequestTimeout)
	}
}

// handleCompare ranks companies against each other using their latest
// stored summaries
func (h *Handler) handleCompare(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Companies []string `json:"companies"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	companies := make([]string, 0, len(req.Companies))
	seen := make(map[string]bool)
	for _, company := range req.Companies {
		company = strings.TrimSpace(company)
		if company == "" || seen[strings.ToLower(company)] {
			continue
		}
		seen[strings.ToLower(company)] = true
		companies = append(companies, company)
	}

	if len(companies) < 2 {
		respondError(w, "At least two companies are required", http.StatusBadRequest)
		return
	}

	resultChan := make(chan *models.ComparisonReport)
	errorChan := make(chan error)

	go func() {
		summaries := make([]*models.CompanyAnalysisSummary, 0, len(companies))
		for _, company := range companies {
			summary, err := h.db.GetLatestSummary(company)
			if err != nil {
				if errors.Is(err, database.ErrNotFound) {
					continue // companies without stored summaries are left out
				}
				errorChan <- err
				return
			}
			summaries = append(summaries, summary)
		}

		if len(summaries) < 2 {
			errorChan <- errNotEnoughSummaries
			return
		}
		resultChan <- analysis.BuildComparison(summaries)
	}()

	select {
	case report := <-resultChan:
		respondJSON(w, report, http.StatusOK)
	case err := <-errorChan:
		if errors.Is(err, errNotEnoughSummaries) {
			respondError(w, err.Error(), http.StatusBadRequest)
		} else {
			respondError(w, err.Error(), http.StatusInternalServerError)
		}
	case <-time.After(dbTimeout):
		respondError(w, "Request timeout", http.StatusRequestTimeout)
	}
}

// handleStatus reports component availability and pipeline statistics
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	respondJSON(w, map[string]interface{}{
		"status":     "ok",
		"components": h.service.ComponentStatus(),
		"stats":      h.service.Stats(),
		"time":       time.Now().UTC().Format(time.RFC3339),
	}, http.StatusOK)
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// generateJobID returns a short unique job identifier
func generateJobID() string {
	return "job_" + shortID()
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// normalizePosts fills in the fields inline posts routinely omit so stored
// analyses always carry a usable post ID
func normalizePosts(posts []models.Post, jobID, company string) {
	now := time.Now().UTC()
	for i := range posts {
		if posts[i].ID == "" {
			posts[i].ID = fmt.Sprintf("%s-post-%d", jobID, i+1)
		}
		if posts[i].Company == "" {
			posts[i].Company = company
		}
		if posts[i].Source == "" {
			posts[i].Source = "api"
		}
		if posts[i].CreatedAt.IsZero() {
			posts[i].CreatedAt = now
		}
	}
}

// normalizePath bounds the metric label set by collapsing ID path segments
func normalizePath(path string) string {
	for _, prefix := range []string{"/api/jobs/", "/api/analyses/"} {
		if strings.HasPrefix(path, prefix) && len(path) > len(prefix) {
			return prefix + ":id"
		}
	}
	return path
}
