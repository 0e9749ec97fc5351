/**
 * Direct Redis Queue Consumer for the Categorization Worker
 *
 * Compatible with the platform's TypeScript RedisQueue implementation.
 * Uses simple Redis LIST operations for perfect compatibility.
 */

package queue

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/adverant/nexus/categorize-worker/internal/errors"
	"github.com/adverant/nexus/categorize-worker/internal/processor"
	"github.com/redis/go-redis/v9"
)

// RedisJobData represents a job from the Redis queue
type RedisJobData struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	Payload    JobPayload `json:"payload"`
	CreatedAt  time.Time  `json:"createdAt"`
	Attempts   int        `json:"attempts"`
	MaxRetries int        `json:"maxRetries"`
}

// JobPayload contains the actual job data
type JobPayload struct {
	JobID      string                 `json:"jobId"`
	UserID     string                 `json:"userId"`
	Filename   string                 `json:"filename"`
	MimeType   string                 `json:"mimeType,omitempty"`
	FileSize   int64                  `json:"fileSize,omitempty"`
	FileURL    string                 `json:"fileUrl,omitempty"`
	FileBuffer []byte                 // Set by custom UnmarshalJSON
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// UnmarshalJSON handles the two fileBuffer encodings producers use: base64
// strings and legacy Node.js Buffer objects.
func (p *JobPayload) UnmarshalJSON(data []byte) error {
	type Alias JobPayload
	aux := &struct {
		FileBuffer interface{} `json:"fileBuffer,omitempty"`
		*Alias
	}{
		Alias: (*Alias)(p),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("failed to unmarshal JobPayload: %w", err)
	}

	if aux.FileBuffer != nil {
		switch v := aux.FileBuffer.(type) {
		case string:
			decoded, err := base64.StdEncoding.DecodeString(v)
			if err != nil {
				return fmt.Errorf("failed to decode base64 fileBuffer: %w", err)
			}
			p.FileBuffer = decoded

		case map[string]interface{}:
			if bufferType, ok := v["type"].(string); ok && bufferType == "Buffer" {
				if dataArray, ok := v["data"].([]interface{}); ok {
					p.FileBuffer = make([]byte, len(dataArray))
					for i, val := range dataArray {
						if byteVal, ok := val.(float64); ok {
							p.FileBuffer[i] = byte(byteVal)
						} else {
							return fmt.Errorf("invalid byte value in Buffer data array at index %d", i)
						}
					}
				} else {
					return fmt.Errorf("Buffer object missing 'data' array")
				}
			} else {
				return fmt.Errorf("invalid Buffer object format (missing or incorrect 'type' field)")
			}

		default:
			return fmt.Errorf("fileBuffer must be either base64 string or Buffer object, got %T", v)
		}
	}

	return nil
}

// RedisConsumer handles job consumption from the Redis queue
type RedisConsumer struct {
	client    *redis.Client
	processor processor.AnalysisProcessorInterface
	config    *RedisConsumerConfig
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// RedisConsumerConfig holds consumer configuration
type RedisConsumerConfig struct {
	RedisURL          string
	QueueName         string
	Concurrency       int
	Processor         processor.AnalysisProcessorInterface
	ProcessingTimeout int64 // milliseconds, default 120000
}

// NewRedisConsumer creates a new Redis-based queue consumer
func NewRedisConsumer(cfg *RedisConsumerConfig) (*RedisConsumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}

	if cfg.QueueName == "" {
		cfg.QueueName = "categorize:jobs"
	}

	if cfg.Processor == nil {
		return nil, fmt.Errorf("Processor is required")
	}

	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 10
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	consumerCtx, cancel := context.WithCancel(context.Background())

	return &RedisConsumer{
		client:    client,
		processor: cfg.Processor,
		config:    cfg,
		ctx:       consumerCtx,
		cancel:    cancel,
	}, nil
}

// Start begins processing jobs from the queue
func (c *RedisConsumer) Start() error {
	log.Printf("Starting Redis queue consumer (concurrency=%d, queue=%s)...",
		c.config.Concurrency, c.config.QueueName)

	for i := 0; i < c.config.Concurrency; i++ {
		c.wg.Add(1)
		go c.worker(i)
	}

	log.Println("Queue consumer started successfully")
	return nil
}

// Stop gracefully stops the consumer
func (c *RedisConsumer) Stop() error {
	log.Println("Stopping queue consumer...")
	c.cancel()
	c.wg.Wait()
	return c.client.Close()
}

// worker is a goroutine that processes jobs
func (c *RedisConsumer) worker(id int) {
	defer c.wg.Done()
	log.Printf("Worker %d started", id)

	for {
		select {
		case <-c.ctx.Done():
			log.Printf("Worker %d stopping", id)
			return
		default:
			if err := c.processNextJob(); err != nil {
				if err.Error() != "no jobs available" {
					log.Printf("Worker %d error: %v", id, err)
				}
				time.Sleep(1 * time.Second)
			}
		}
	}
}

// processNextJob fetches and processes the next job from the queue
func (c *RedisConsumer) processNextJob() error {
	// Block for up to 5 seconds waiting for a job
	result, err := c.client.BRPop(c.ctx, 5*time.Second, c.config.QueueName).Result()
	if err != nil {
		if err == redis.Nil {
			return fmt.Errorf("no jobs available")
		}
		return fmt.Errorf("failed to fetch job: %w", err)
	}

	if len(result) < 2 {
		return fmt.Errorf("invalid job result")
	}

	jobID := result[1]

	jobData, err := c.client.HGet(c.ctx, fmt.Sprintf("%s:data", c.config.QueueName), jobID).Result()
	if err != nil {
		return fmt.Errorf("failed to get job data: %w", err)
	}

	var job RedisJobData
	if err := json.Unmarshal([]byte(jobData), &job); err != nil {
		return fmt.Errorf("failed to unmarshal job: %w", err)
	}

	// Idempotent: creates the job record if the API has not inserted it yet.
	if err := c.processor.UpdateJobStatus(c.ctx, job.Payload.JobID, "processing", map[string]interface{}{
		"filename": job.Payload.Filename,
		"mimeType": job.Payload.MimeType,
		"fileSize": job.Payload.FileSize,
		"userId":   job.Payload.UserID,
	}); err != nil {
		log.Printf("Note: Could not update job status to processing (job may not exist in DB yet): %v", err)
	}

	c.updateJobStatus(job.Payload.JobID, "processing", nil)

	log.Printf("Processing job %s: %s", job.Payload.JobID, job.Payload.Filename)

	jobResult, err := c.processJob(&job)
	if err != nil {
		log.Printf("Job %s failed: %v", job.Payload.JobID, err)

		// Fatal errors (missing source content) never retry; re-fetching
		// cannot conjure a file the producer never attached.
		retryable := !errors.IsFatalError(err)

		job.Attempts++
		if retryable && job.Attempts < job.MaxRetries {
			updatedData, _ := json.Marshal(job)
			c.client.HSet(c.ctx, fmt.Sprintf("%s:data", c.config.QueueName), job.ID, updatedData)
			c.client.LPush(c.ctx, c.config.QueueName, job.ID)
			log.Printf("Job %s re-queued for retry (attempt %d/%d)", job.Payload.JobID, job.Attempts, job.MaxRetries)
		} else {
			c.updateJobStatus(job.Payload.JobID, "failed", map[string]interface{}{
				"error":    err.Error(),
				"attempts": job.Attempts,
			})
		}
	} else {
		c.updateJobStatus(job.Payload.JobID, "completed", jobResult)
		log.Printf("Job %s completed successfully", job.Payload.JobID)
	}

	return nil
}

// processJob runs the categorization pipeline under the processing timeout.
func (c *RedisConsumer) processJob(job *RedisJobData) (*processor.JobResult, error) {
	startTime := time.Now()

	request := &processor.AnalysisJob{
		JobID:      job.Payload.JobID,
		UserID:     job.Payload.UserID,
		Filename:   job.Payload.Filename,
		MimeType:   job.Payload.MimeType,
		FileSize:   job.Payload.FileSize,
		FileURL:    job.Payload.FileURL,
		FileBuffer: job.Payload.FileBuffer,
		Metadata:   job.Payload.Metadata,
	}

	timeout := time.Duration(120000) * time.Millisecond
	if c.config.ProcessingTimeout > 0 {
		timeout = time.Duration(c.config.ProcessingTimeout) * time.Millisecond
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	result, err := c.processor.ProcessFile(ctx, request)

	duration := time.Since(startTime)

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			log.Printf("[Job %s] Analysis timed out after %v (timeout: %v)", job.Payload.JobID, duration, timeout)

			timeoutErr := errors.NewAnalysisTimeoutError(job.Payload.JobID, timeout, err)
			errorMap := timeoutErr.ToMap()

			if updateErr := c.processor.UpdateJobStatus(c.ctx, job.Payload.JobID, "failed", errorMap); updateErr != nil {
				log.Printf("[Job %s] Warning: Failed to update status to failed: %v", job.Payload.JobID, updateErr)
			}

			return nil, fmt.Errorf("analysis timeout: %w", timeoutErr)
		}

		return nil, err
	}

	log.Printf("[Job %s] Analysis completed in %v", job.Payload.JobID, duration)
	return result, nil
}

// updateJobStatus updates the status of a job in both Redis AND PostgreSQL
func (c *RedisConsumer) updateJobStatus(jobID string, status string, result interface{}) {
	// Redis queue-management sets
	if status == "processing" {
		c.client.SAdd(c.ctx, fmt.Sprintf("%s:processing", c.config.QueueName), jobID)
	} else if status == "completed" {
		c.client.SRem(c.ctx, fmt.Sprintf("%s:processing", c.config.QueueName), jobID)
		c.client.SAdd(c.ctx, fmt.Sprintf("%s:completed", c.config.QueueName), jobID)
		if result != nil {
			resultData, _ := json.Marshal(result)
			c.client.HSet(c.ctx, fmt.Sprintf("%s:results", c.config.QueueName), jobID, resultData)
		}
	} else if status == "failed" {
		c.client.SRem(c.ctx, fmt.Sprintf("%s:processing", c.config.QueueName), jobID)
		c.client.SAdd(c.ctx, fmt.Sprintf("%s:failed", c.config.QueueName), jobID)
		if result != nil {
			errorData, _ := json.Marshal(result)
			c.client.HSet(c.ctx, fmt.Sprintf("%s:errors", c.config.QueueName), jobID, errorData)
		}
	}

	// PostgreSQL for persistent job tracking
	if status == "completed" {
		if jobResult, ok := result.(*processor.JobResult); ok {
			log.Printf("[PostgreSQL] Updating job %s to completed with full details", jobID)
			if err := c.processor.UpdateJobStatus(c.ctx, jobID, status, map[string]interface{}{
				"category":       jobResult.Category,
				"confidence":     jobResult.Confidence,
				"processingTime": jobResult.ProcessingTimeMs,
				"resultId":       jobResult.ResultID,
				"matchCount":     jobResult.MatchCount,
				"fileType":       string(jobResult.FileType),
			}); err != nil {
				log.Printf("[PostgreSQL] ERROR: Failed to update job status: %v", err)
			} else {
				log.Printf("[PostgreSQL] Job %s updated successfully (category=%s, confidence=%.4f)",
					jobID, jobResult.Category, jobResult.Confidence)
			}
		} else {
			log.Printf("[PostgreSQL] WARNING: JobResult type assertion failed. Marking as completed without details.")
			if err := c.processor.UpdateJobStatus(c.ctx, jobID, status, nil); err != nil {
				log.Printf("[PostgreSQL] ERROR: Failed to update job status (fallback): %v", err)
			}
		}
	} else if status == "failed" {
		errorMsg := "Unknown error"
		if resultMap, ok := result.(map[string]interface{}); ok {
			if errStr, ok := resultMap["error"].(string); ok {
				errorMsg = errStr
			}
		}

		if err := c.processor.UpdateJobStatus(c.ctx, jobID, status, map[string]interface{}{
			"error": errorMsg,
		}); err != nil {
			log.Printf("WARNING: Failed to update PostgreSQL job status for failed job: %v", err)
		}
	} else if status == "processing" {
		if err := c.processor.UpdateJobStatus(c.ctx, jobID, status, nil); err != nil {
			log.Printf("WARNING: Failed to update PostgreSQL job status to processing: %v", err)
		}
	}

	// Publish event for WebSocket streaming
	event := map[string]interface{}{
		"event":     fmt.Sprintf("job:%s", status),
		"jobId":     jobID,
		"timestamp": time.Now().Format(time.RFC3339),
	}
	eventData, _ := json.Marshal(event)
	c.client.Publish(c.ctx, fmt.Sprintf("%s:events", c.config.QueueName), eventData)
}

// GetStats returns queue statistics
func (c *RedisConsumer) GetStats() (map[string]int64, error) {
	ctx := context.Background()

	waiting, _ := c.client.LLen(ctx, c.config.QueueName).Result()
	processing, _ := c.client.SCard(ctx, fmt.Sprintf("%s:processing", c.config.QueueName)).Result()
	completed, _ := c.client.SCard(ctx, fmt.Sprintf("%s:completed", c.config.QueueName)).Result()
	failed, _ := c.client.SCard(ctx, fmt.Sprintf("%s:failed", c.config.QueueName)).Result()

	return map[string]int64{
		"waiting":    waiting,
		"processing": processing,
		"completed":  completed,
		"failed":     failed,
	}, nil
}
