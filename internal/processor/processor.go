/**
 * Analysis Processor for the Categorization Worker
 *
 * Orchestrates one categorization request end to end:
 * - load the candidate file (buffer or URL, with retry/backoff)
 * - correct the MIME type from magic bytes and pick the modality
 * - one extraction call per request, reused across all comparisons
 * - load the annotation corpus and category directory
 * - run the matching engine and persist the result
 *
 * A missing or unreadable source file fails the request. A failed extraction
 * call does not: the engine still returns a well-formed uncategorized result.
 */

package processor

import (
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"time"

	"github.com/adverant/nexus/categorize-worker/internal/corpus"
	"github.com/adverant/nexus/categorize-worker/internal/engine"
	"github.com/adverant/nexus/categorize-worker/internal/errors"
	"github.com/adverant/nexus/categorize-worker/internal/extraction"
	"github.com/adverant/nexus/categorize-worker/internal/storage"
)

// AnalysisProcessorInterface defines the interface the queue consumers call.
type AnalysisProcessorInterface interface {
	ProcessFile(ctx context.Context, job *AnalysisJob) (*JobResult, error)
	UpdateJobStatus(ctx context.Context, jobID string, status string, metadata map[string]interface{}) error
}

// ProcessorConfig holds processor configuration
type ProcessorConfig struct {
	MaxFileSize    int64
	ShortlistLimit int
	Extraction     *extraction.Client
	Corpus         *corpus.Reader
	Storage        *storage.Manager
	Engine         *engine.Engine
}

// AnalysisJob represents one categorization request.
type AnalysisJob struct {
	JobID      string
	UserID     string
	Filename   string
	MimeType   string
	FileSize   int64
	FileURL    string
	FileBuffer []byte
	Metadata   map[string]interface{}
}

// JobResult summarizes a completed analysis for the queue layer.
type JobResult struct {
	ResultID         string
	Category         string
	Confidence       float64
	MatchCount       int
	FileType         engine.FileType
	ProcessingTimeMs int64
}

// AnalysisProcessor runs the categorization pipeline.
type AnalysisProcessor struct {
	config     *ProcessorConfig
	extraction *extraction.Client
	corpus     *corpus.Reader
	storage    *storage.Manager
	engine     *engine.Engine
}

// NewAnalysisProcessor creates a new analysis processor
func NewAnalysisProcessor(cfg *ProcessorConfig) (*AnalysisProcessor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Extraction == nil {
		return nil, fmt.Errorf("extraction client is required")
	}
	if cfg.Corpus == nil {
		return nil, fmt.Errorf("corpus reader is required")
	}
	if cfg.Storage == nil {
		return nil, fmt.Errorf("storage manager is required")
	}
	if cfg.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if cfg.ShortlistLimit <= 0 {
		cfg.ShortlistLimit = 50
	}

	return &AnalysisProcessor{
		config:     cfg,
		extraction: cfg.Extraction,
		corpus:     cfg.Corpus,
		storage:    cfg.Storage,
		engine:     cfg.Engine,
	}, nil
}

// ProcessFile runs one categorization request through the full pipeline.
func (p *AnalysisProcessor) ProcessFile(ctx context.Context, job *AnalysisJob) (*JobResult, error) {
	startTime := time.Now()
	log.Printf("[Job %s] Starting categorization pipeline: filename=%s, size=%d", job.JobID, job.Filename, job.FileSize)

	// Step 1: Load file. No buffer and no URL is fatal.
	fileData, err := p.loadFile(ctx, job)
	if err != nil {
		return nil, errors.NewContentUnavailableError(job.JobID, job.Filename, err)
	}

	// Step 2: Correct MIME type from magic bytes. Upload sources frequently
	// report application/octet-stream.
	detectedMime := extraction.DetectMimeType(fileData)
	if detectedMime != "" && (job.MimeType == "" || job.MimeType == "application/octet-stream") {
		log.Printf("[Job %s] Corrected MIME type from %q to %q (magic byte detection)",
			job.JobID, job.MimeType, detectedMime)
		job.MimeType = detectedMime
	}

	fileType, ok := extraction.FileTypeForMime(job.MimeType)
	if !ok {
		return nil, errors.NewUnsupportedFormatError(job.JobID, job.MimeType)
	}
	log.Printf("[Job %s] Modality detected: %s (mime: %s)", job.JobID, fileType, job.MimeType)

	// Step 3: Single extraction call; the result is reused across every
	// corpus comparison. Failures degrade to empty content inside Extract.
	content := p.extraction.Extract(ctx, fileData, job.MimeType, fileType)

	// Step 4: Load corpus and directory once per request. For images, try
	// the feature index shortlist first; a miss means full scan.
	records, err := p.loadCorpus(ctx, job, fileType, content)
	if err != nil {
		return nil, fmt.Errorf("failed to load annotation corpus: %w", err)
	}

	directory, err := p.corpus.LoadDirectory(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load category directory: %w", err)
	}
	log.Printf("[Job %s] Corpus loaded: records=%d, categories=%d", job.JobID, len(records), directory.Len())

	// Step 5: Run the matching engine.
	result, err := p.engine.Analyze(ctx, &engine.AnalysisRequest{
		FileType: fileType,
		Content:  content,
		Corpus:   records,
		Dir:      directory,
	})
	if err != nil {
		return nil, fmt.Errorf("analysis failed: %w", err)
	}

	// Step 6: Persist the result; this is the pipeline's only write.
	resultID, err := p.storage.StoreResult(ctx, job.JobID, result)
	if err != nil {
		return nil, errors.NewStorageFailedError(job.JobID, err)
	}

	// Step 7: Index the candidate's features so future annotations on this
	// file shortlist quickly. Best-effort.
	if fileType == engine.FileTypeImage && len(fileData) > 0 {
		if features, ferr := engine.ExtractFeatures(fileData); ferr == nil {
			p.storage.IndexImageFeatures(ctx, job.JobID, features, "")
		}
	}

	elapsed := time.Since(startTime)
	log.Printf("[Job %s] Pipeline complete: category=%s, confidence=%.4f, matches=%d, duration=%v",
		job.JobID, result.Category, result.Confidence, len(result.Matches), elapsed)

	return &JobResult{
		ResultID:         resultID,
		Category:         result.Category,
		Confidence:       result.Confidence,
		MatchCount:       len(result.Matches),
		FileType:         fileType,
		ProcessingTimeMs: elapsed.Milliseconds(),
	}, nil
}

// UpdateJobStatus updates job status in the database.
func (p *AnalysisProcessor) UpdateJobStatus(ctx context.Context, jobID string, status string, metadata map[string]interface{}) error {
	update := &storage.JobUpdate{
		JobID:    jobID,
		Status:   status,
		Metadata: metadata,
	}

	if metadata != nil {
		if category, ok := metadata["category"].(string); ok {
			update.Category = category
		}
		if confidence, ok := metadata["confidence"].(float64); ok {
			update.Confidence = confidence
		}
		if processingTime, ok := metadata["processingTime"].(int64); ok {
			update.ProcessingTimeMs = processingTime
		}
		if resultID, ok := metadata["resultId"].(string); ok {
			update.ResultID = resultID
		}
		if errorMsg, ok := metadata["error"].(string); ok {
			update.ErrorCode = "PROCESSING_ERROR"
			update.ErrorMessage = errorMsg
		}
	}

	return p.storage.UpdateJobStatus(ctx, update)
}

// loadCorpus loads the annotation records for this request, shortlisted by
// the feature index for image requests when possible.
func (p *AnalysisProcessor) loadCorpus(ctx context.Context, job *AnalysisJob, fileType engine.FileType, content *engine.CandidateContent) ([]engine.AnnotationRecord, error) {
	if fileType == engine.FileTypeImage && len(content.ImageData) > 0 {
		if features, err := engine.ExtractFeatures(content.ImageData); err == nil {
			if ids := p.storage.ShortlistSimilar(ctx, features, p.config.ShortlistLimit); len(ids) > 0 {
				records, err := p.corpus.LoadRecordsByIDs(ctx, ids)
				if err == nil && len(records) > 0 {
					log.Printf("[Job %s] Using feature-index shortlist: %d of corpus", job.JobID, len(records))
					return records, nil
				}
			}
		}
	}

	return p.corpus.LoadAnnotations(ctx)
}

// loadFile loads the candidate file from the job buffer or URL.
func (p *AnalysisProcessor) loadFile(ctx context.Context, job *AnalysisJob) ([]byte, error) {
	if len(job.FileBuffer) > 0 {
		log.Printf("[Job %s] Using file buffer (%d bytes)", job.JobID, len(job.FileBuffer))
		return job.FileBuffer, nil
	}

	if job.FileURL != "" {
		log.Printf("[Job %s] Downloading file from URL: %s", job.JobID, job.FileURL)
		fileData, err := p.downloadFile(ctx, job.JobID, job.FileURL)
		if err != nil {
			return nil, fmt.Errorf("failed to download file: %w", err)
		}
		log.Printf("[Job %s] File downloaded successfully (%d bytes)", job.JobID, len(fileData))
		return fileData, nil
	}

	return nil, fmt.Errorf("no file source provided (buffer or URL)")
}

// downloadFile downloads a file from a URL with retry and exponential
// backoff. Only the upstream fetch retries; the matching computation itself
// is deterministic and never re-run.
func (p *AnalysisProcessor) downloadFile(ctx context.Context, jobID string, fileURL string) ([]byte, error) {
	const (
		maxRetries       = 5
		initialBackoffMs = 1000
		maxBackoffMs     = 32000
	)

	client := &http.Client{Timeout: 10 * time.Minute}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		log.Printf("[Job %s] Download attempt %d/%d from: %s", jobID, attempt, maxRetries, fileURL)

		fileData, err := p.fetchOnce(ctx, client, fileURL)
		if err == nil {
			log.Printf("[Job %s] Download successful on attempt %d: %d bytes", jobID, attempt, len(fileData))
			return fileData, nil
		}

		lastErr = err
		log.Printf("[Job %s] Download attempt %d failed: %v", jobID, attempt, err)

		if attempt < maxRetries {
			backoffMs := initialBackoffMs * int(math.Pow(2, float64(attempt-1)))
			if backoffMs > maxBackoffMs {
				backoffMs = maxBackoffMs
			}
			select {
			case <-time.After(time.Duration(backoffMs) * time.Millisecond):
			case <-ctx.Done():
				return nil, fmt.Errorf("context cancelled during retry backoff")
			}
		}
	}

	return nil, fmt.Errorf("failed to download file after %d attempts: %w", maxRetries, lastErr)
}

func (p *AnalysisProcessor) fetchOnce(ctx context.Context, client *http.Client, fileURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	if p.config.MaxFileSize > 0 && resp.ContentLength > p.config.MaxFileSize {
		return nil, fmt.Errorf("file size exceeds maximum: %d > %d bytes",
			resp.ContentLength, p.config.MaxFileSize)
	}

	maxReadBytes := p.config.MaxFileSize
	if maxReadBytes == 0 {
		maxReadBytes = 10 * 1024 * 1024 * 1024 // 10GB safety limit
	}

	fileData, err := io.ReadAll(io.LimitReader(resp.Body, maxReadBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return fileData, nil
}
