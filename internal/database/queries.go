package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zombar/socialpulse/internal/models"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("not found")

// timeLayout keeps a fixed fractional-second width so lexicographic TEXT
// ordering matches chronological ordering
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// nullTime maps the zero time to NULL
func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(t), Valid: true}
}

// InsertJob records a new analysis job
func (db *DB) InsertJob(job *models.AnalysisJob) error {
	_, err := db.conn.Exec(`
		INSERT INTO jobs (id, company, status, post_count, error, created_at, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, job.ID, job.Company, job.Status, job.PostCount, job.Error,
		formatTime(job.CreatedAt), nullTime(job.StartedAt), nullTime(job.CompletedAt))
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}

	return nil
}

// MarkJobRunning transitions a job to running and stamps its start time
func (db *DB) MarkJobRunning(id string) error {
	result, err := db.conn.Exec(`
		UPDATE jobs
		SET status = ?, started_at = ?
		WHERE id = ?
	`, models.JobRunning, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("failed to mark job running: %w", err)
	}

	return checkJobUpdated(result, id)
}

// MarkJobCompleted transitions a job to completed with its final post count
func (db *DB) MarkJobCompleted(id string, postCount int) error {
	result, err := db.conn.Exec(`
		UPDATE jobs
		SET status = ?, post_count = ?, completed_at = ?
		WHERE id = ?
	`, models.JobCompleted, postCount, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("failed to mark job completed: %w", err)
	}

	return checkJobUpdated(result, id)
}

// MarkJobFailed transitions a job to failed and records the error message
func (db *DB) MarkJobFailed(id string, errMsg string) error {
	result, err := db.conn.Exec(`
		UPDATE jobs
		SET status = ?, error = ?, completed_at = ?
		WHERE id = ?
	`, models.JobFailed, errMsg, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}

	return checkJobUpdated(result, id)
}

func checkJobUpdated(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("job %s: %w", id, ErrNotFound)
	}

	return nil
}

// GetJob retrieves a job by ID
func (db *DB) GetJob(id string) (*models.AnalysisJob, error) {
	row := db.conn.QueryRow(`
		SELECT id, company, status, post_count, error, created_at, started_at, completed_at
		FROM jobs
		WHERE id = ?
	`, id)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return job, nil
}

// ListJobs retrieves jobs newest first with pagination
func (db *DB) ListJobs(limit, offset int) ([]*models.AnalysisJob, error) {
	rows, err := db.conn.Query(`
		SELECT id, company, status, post_count, error, created_at, started_at, completed_at
		FROM jobs
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.AnalysisJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return jobs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*models.AnalysisJob, error) {
	var (
		job         models.AnalysisJob
		createdAt   string
		startedAt   sql.NullString
		completedAt sql.NullString
	)

	if err := row.Scan(&job.ID, &job.Company, &job.Status, &job.PostCount, &job.Error,
		&createdAt, &startedAt, &completedAt); err != nil {
		return nil, err
	}

	var err error
	if job.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if startedAt.Valid {
		if job.StartedAt, err = parseTime(startedAt.String); err != nil {
			return nil, fmt.Errorf("failed to parse started_at: %w", err)
		}
	}
	if completedAt.Valid {
		if job.CompletedAt, err = parseTime(completedAt.String); err != nil {
			return nil, fmt.Errorf("failed to parse completed_at: %w", err)
		}
	}

	return &job, nil
}

// SaveAnalyses persists the per-post analyses of a job in one transaction
func (db *DB) SaveAnalyses(jobID string, analyses []*models.PostAnalysis) error {
	if len(analyses) == 0 {
		return nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := formatTime(time.Now())
	for _, analysis := range analyses {
		payload, err := json.Marshal(analysis)
		if err != nil {
			return fmt.Errorf("failed to marshal analysis for post %s: %w", analysis.PostID, err)
		}

		_, err = tx.Exec(`
			INSERT INTO post_analyses (job_id, post_id, analysis, created_at)
			VALUES (?, ?, ?, ?)
		`, jobID, analysis.PostID, string(payload), now)
		if err != nil {
			return fmt.Errorf("failed to insert analysis for post %s: %w", analysis.PostID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetAnalyses retrieves the persisted analyses of a job in insertion order
func (db *DB) GetAnalyses(jobID string) ([]*models.PostAnalysis, error) {
	rows, err := db.conn.Query(`
		SELECT analysis
		FROM post_analyses
		WHERE job_id = ?
		ORDER BY id
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query analyses: %w", err)
	}
	defer rows.Close()

	var analyses []*models.PostAnalysis
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		var analysis models.PostAnalysis
		if err := json.Unmarshal([]byte(payload), &analysis); err != nil {
			return nil, fmt.Errorf("failed to unmarshal analysis: %w", err)
		}
		analyses = append(analyses, &analysis)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return analyses, nil
}

// SaveSummary persists a company summary for a job
func (db *DB) SaveSummary(jobID string, summary *models.CompanyAnalysisSummary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	_, err = db.conn.Exec(`
		INSERT INTO summaries (job_id, company, summary, created_at)
		VALUES (?, ?, ?, ?)
	`, jobID, summary.Company, string(payload), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to insert summary: %w", err)
	}

	return nil
}

// GetSummaryByJob retrieves the summary stored for a job
func (db *DB) GetSummaryByJob(jobID string) (*models.CompanyAnalysisSummary, error) {
	var payload string
	err := db.conn.QueryRow(`
		SELECT summary
		FROM summaries
		WHERE job_id = ?
		ORDER BY id DESC
		LIMIT 1
	`, jobID).Scan(&payload)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("summary for job %s: %w", jobID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get summary: %w", err)
	}

	return unmarshalSummary(payload)
}

// GetLatestSummary retrieves the most recent summary stored for a company.
// Matching is case-insensitive.
func (db *DB) GetLatestSummary(company string) (*models.CompanyAnalysisSummary, error) {
	var payload string
	err := db.conn.QueryRow(`
		SELECT summary
		FROM summaries
		WHERE company = ? COLLATE NOCASE
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, company).Scan(&payload)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("summary for company %s: %w", company, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get summary: %w", err)
	}

	return unmarshalSummary(payload)
}

func unmarshalSummary(payload string) (*models.CompanyAnalysisSummary, error) {
	var summary models.CompanyAnalysisSummary
	if err := json.Unmarshal([]byte(payload), &summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal summary: %w", err)
	}

	return &summary, nil
}

// DeleteJob deletes a job by ID; analyses and summaries cascade
func (db *DB) DeleteJob(id string) error {
	result, err := db.conn.Exec("DELETE FROM jobs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("job %s: %w", id, ErrNotFound)
	}

	return nil
}
