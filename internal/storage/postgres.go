/**
 * PostgreSQL Client for the Categorization Worker
 *
 * Persists analysis results and job status. The engine itself never writes;
 * the single write happens here after aggregation completes.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/adverant/nexus/categorize-worker/internal/engine"
)

// PostgresClient handles database operations
type PostgresClient struct {
	db *sql.DB
}

// JobUpdate represents a job status update
type JobUpdate struct {
	JobID            string
	Status           string
	Category         string
	Confidence       float64
	ProcessingTimeMs int64
	ResultID         string
	ErrorCode        string
	ErrorMessage     string
	Metadata         map[string]interface{}
}

// sanitizeConfidence rounds confidence to 4 decimal places and clamps it to
// [0.0, 1.0]. PostgreSQL NUMERIC casts reject the excess float precision that
// values like 0.9632000000000001 carry.
func sanitizeConfidence(confidence float64) float64 {
	if confidence < 0.0 {
		return 0.0
	}
	if confidence > 1.0 {
		return 1.0
	}
	return float64(int(confidence*10000+0.5)) / 10000
}

// NewPostgresClient creates a new PostgreSQL client
func NewPostgresClient(databaseURL string) (*PostgresClient, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresClient{db: db}, nil
}

// StoreAnalysisResult persists one analysis result and returns its ID.
func (p *PostgresClient) StoreAnalysisResult(ctx context.Context, jobID string, result *engine.AnalysisResult) (string, error) {
	if jobID == "" {
		return "", fmt.Errorf("job ID is required")
	}
	if result == nil {
		return "", fmt.Errorf("result is required")
	}

	matchesJSON, err := json.Marshal(result.Matches)
	if err != nil {
		return "", fmt.Errorf("failed to marshal matches: %w", err)
	}

	rawJSON, err := json.Marshal(result.Raw)
	if err != nil {
		return "", fmt.Errorf("failed to marshal diagnostics: %w", err)
	}

	resultID := uuid.New().String()

	query := `
		INSERT INTO categorize.analysis_results (
			id, job_id, category, confidence, matches, raw, created_at
		) VALUES ($1::uuid, $2::uuid, $3, $4::NUMERIC(5,4), $5::jsonb, $6::jsonb, NOW())
		RETURNING id
	`

	var returnedID string
	err = p.db.QueryRowContext(
		ctx,
		query,
		resultID,
		jobID,
		result.Category,
		sanitizeConfidence(result.Confidence),
		matchesJSON,
		rawJSON,
	).Scan(&returnedID)
	if err != nil {
		return "", fmt.Errorf("failed to store analysis result (job=%s, category=%s): %w",
			jobID, result.Category, err)
	}

	return returnedID, nil
}

// UpdateJobStatus upserts job status. The worker may see a job before the API
// created its row, so the first update also creates the record.
func (p *PostgresClient) UpdateJobStatus(ctx context.Context, update *JobUpdate) error {
	if update.JobID == "" {
		return fmt.Errorf("job ID is required")
	}
	if update.Status == "" {
		return fmt.Errorf("status is required")
	}

	sanitizedConfidence := sanitizeConfidence(update.Confidence)

	metadataJSON, err := json.Marshal(update.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO categorize.processing_jobs (
			id, status, category, confidence, processing_time_ms,
			result_id, error_code, error_message, metadata,
			created_at, updated_at
		) VALUES (
			$1::uuid, $2, NULLIF($3, ''), NULLIF($4::NUMERIC(5,4), 0), NULLIF($5, 0),
			CASE WHEN $6 = '' THEN NULL ELSE $6::uuid END,
			NULLIF($7, ''), NULLIF($8, ''),
			COALESCE($9::jsonb, '{}'::jsonb),
			NOW(), NOW()
		)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			category = COALESCE(EXCLUDED.category, categorize.processing_jobs.category),
			confidence = COALESCE(NULLIF(EXCLUDED.confidence::NUMERIC(5,4), 0), categorize.processing_jobs.confidence),
			processing_time_ms = COALESCE(NULLIF(EXCLUDED.processing_time_ms, 0), categorize.processing_jobs.processing_time_ms),
			result_id = COALESCE(EXCLUDED.result_id, categorize.processing_jobs.result_id),
			error_code = NULLIF(EXCLUDED.error_code, ''),
			error_message = NULLIF(EXCLUDED.error_message, ''),
			metadata = COALESCE(EXCLUDED.metadata, categorize.processing_jobs.metadata),
			updated_at = NOW()
		RETURNING id
	`

	var returnedID string
	err = p.db.QueryRowContext(
		ctx,
		query,
		update.JobID,
		update.Status,
		update.Category,
		sanitizedConfidence,
		update.ProcessingTimeMs,
		update.ResultID,
		update.ErrorCode,
		update.ErrorMessage,
		metadataJSON,
	).Scan(&returnedID)

	if err == sql.ErrNoRows {
		return fmt.Errorf("job not found: %s", update.JobID)
	}
	if err != nil {
		return fmt.Errorf("failed to update job status (job=%s, status=%s): %w",
			update.JobID, update.Status, err)
	}

	return nil
}

// Ping checks database connectivity
func (p *PostgresClient) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the database connection
func (p *PostgresClient) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}
