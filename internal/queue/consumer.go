/**
 * Queue Consumer for the Categorization Worker
 *
 * Consumes analysis jobs from a BullMQ-style Redis queue using Asynq.
 * Selected over the direct Redis consumer with QUEUE_DRIVER=asynq.
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/adverant/nexus/categorize-worker/internal/errors"
	"github.com/adverant/nexus/categorize-worker/internal/processor"
	"github.com/hibiken/asynq"
)

// JobData represents the structure of job data from the queue
type JobData struct {
	JobID      string                 `json:"jobId"`
	UserID     string                 `json:"userId"`
	Filename   string                 `json:"filename"`
	MimeType   string                 `json:"mimeType,omitempty"`
	FileSize   int64                  `json:"fileSize,omitempty"`
	FileURL    string                 `json:"fileUrl,omitempty"`
	FileBuffer []byte                 `json:"fileBuffer,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// Consumer handles job consumption from the Redis queue
type Consumer struct {
	client    *asynq.Client
	server    *asynq.Server
	mux       *asynq.ServeMux
	processor processor.AnalysisProcessorInterface
	config    *ConsumerConfig
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	RedisURL          string
	QueueName         string
	Concurrency       int
	Processor         processor.AnalysisProcessorInterface
	ProcessingTimeout int64 // milliseconds, default 120000
}

// NewConsumer creates a new queue consumer
func NewConsumer(cfg *ConsumerConfig) (*Consumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}

	if cfg.QueueName == "" {
		return nil, fmt.Errorf("QueueName is required")
	}

	if cfg.Processor == nil {
		return nil, fmt.Errorf("Processor is required")
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := asynq.NewClient(redisOpt)

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				cfg.QueueName: 10,
				"default":     1,
			},
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				// Exponential backoff: 5s, 10s, 20s, capped at 60s
				delay := time.Duration(5*(1<<uint(n))) * time.Second
				if delay > 60*time.Second {
					delay = 60 * time.Second
				}
				return delay
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("Task processing error: type=%s, payload=%s, error=%v",
					task.Type(), string(task.Payload()), err)
			}),
		},
	)

	mux := asynq.NewServeMux()

	consumer := &Consumer{
		client:    client,
		server:    server,
		mux:       mux,
		processor: cfg.Processor,
		config:    cfg,
	}

	mux.HandleFunc("categorize-file", consumer.handleCategorizeFile)

	return consumer, nil
}

// Start starts the queue consumer
func (c *Consumer) Start(ctx context.Context) error {
	log.Printf("Starting queue consumer (concurrency=%d, queue=%s)...",
		c.config.Concurrency, c.config.QueueName)

	go func() {
		if err := c.server.Run(c.mux); err != nil {
			log.Printf("Queue consumer error: %v", err)
		}
	}()

	return nil
}

// Stop stops the queue consumer gracefully
func (c *Consumer) Stop(ctx context.Context) error {
	log.Printf("Stopping queue consumer...")

	c.server.Shutdown()

	if err := c.client.Close(); err != nil {
		return fmt.Errorf("failed to close client: %w", err)
	}

	log.Printf("Queue consumer stopped")
	return nil
}

// handleCategorizeFile processes one categorization job
func (c *Consumer) handleCategorizeFile(ctx context.Context, task *asynq.Task) error {
	startTime := time.Now()

	var jobData JobData
	if err := json.Unmarshal(task.Payload(), &jobData); err != nil {
		return fmt.Errorf("failed to unmarshal job data: %w", err)
	}

	log.Printf("[Job %s] Categorizing file: filename=%s, size=%d bytes, user=%s",
		jobData.JobID, jobData.Filename, jobData.FileSize, jobData.UserID)

	if err := c.processor.UpdateJobStatus(ctx, jobData.JobID, "processing", nil); err != nil {
		log.Printf("[Job %s] Warning: Failed to update status to processing: %v", jobData.JobID, err)
	}

	timeout := time.Duration(120000) * time.Millisecond
	if c.config.ProcessingTimeout > 0 {
		timeout = time.Duration(c.config.ProcessingTimeout) * time.Millisecond
	}

	processCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := c.processor.ProcessFile(processCtx, &processor.AnalysisJob{
		JobID:      jobData.JobID,
		UserID:     jobData.UserID,
		Filename:   jobData.Filename,
		MimeType:   jobData.MimeType,
		FileSize:   jobData.FileSize,
		FileURL:    jobData.FileURL,
		FileBuffer: jobData.FileBuffer,
		Metadata:   jobData.Metadata,
	})

	duration := time.Since(startTime)

	if err != nil {
		if processCtx.Err() == context.DeadlineExceeded {
			log.Printf("[Job %s] Analysis timed out after %v (timeout: %v)", jobData.JobID, duration, timeout)

			timeoutErr := errors.NewAnalysisTimeoutError(jobData.JobID, timeout, err)
			errorMap := timeoutErr.ToMap()

			if updateErr := c.processor.UpdateJobStatus(ctx, jobData.JobID, "failed", errorMap); updateErr != nil {
				log.Printf("[Job %s] Warning: Failed to update status to failed: %v", jobData.JobID, updateErr)
			}

			return fmt.Errorf("analysis timeout: %w", timeoutErr)
		}

		log.Printf("[Job %s] Analysis failed after %v: %v", jobData.JobID, duration, err)

		if updateErr := c.processor.UpdateJobStatus(ctx, jobData.JobID, "failed", map[string]interface{}{
			"error":          err.Error(),
			"processingTime": duration.Milliseconds(),
		}); updateErr != nil {
			log.Printf("[Job %s] Warning: Failed to update status to failed: %v", jobData.JobID, updateErr)
		}

		// A fatal content error should not retry; returning SkipRetry drops
		// the task after the failure is recorded.
		if errors.IsFatalError(err) {
			return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
		}

		return fmt.Errorf("categorization failed: %w", err)
	}

	log.Printf("[Job %s] Categorization completed in %v: category=%s, confidence=%.4f, matches=%d",
		jobData.JobID, duration, result.Category, result.Confidence, result.MatchCount)

	if err := c.processor.UpdateJobStatus(ctx, jobData.JobID, "completed", map[string]interface{}{
		"category":       result.Category,
		"confidence":     result.Confidence,
		"processingTime": duration.Milliseconds(),
		"resultId":       result.ResultID,
		"matchCount":     result.MatchCount,
		"fileType":       string(result.FileType),
	}); err != nil {
		log.Printf("[Job %s] Warning: Failed to update status to completed: %v", jobData.JobID, err)
	}

	return nil
}

// GetStatistics returns consumer statistics
func (c *Consumer) GetStatistics() map[string]interface{} {
	return map[string]interface{}{
		"concurrency": c.config.Concurrency,
		"queue":       c.config.QueueName,
		"redisURL":    c.config.RedisURL,
	}
}
