/**
 * Configuration for the Categorization Worker
 *
 * Loads configuration from environment variables matching .env.nexus
 */

package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds worker configuration
type Config struct {
	// Redis configuration
	RedisURL    string
	QueueName   string
	QueueDriver string // "redis" (LIST-based) or "asynq"

	// PostgreSQL configuration
	DatabaseURL string

	// Qdrant image feature index configuration
	QdrantURL        string
	QdrantCollection string
	QdrantEnabled    bool

	// External extraction service
	ExtractionURL string

	// Worker configuration
	WorkerConcurrency int
	ScanWorkers       int
	MaxFileSize       int64
	AnalysisTimeout   int // milliseconds

	// Tesseract fallback OCR
	TesseractEnabled bool

	// Node environment
	NodeEnv string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		RedisURL:          getEnvOrDefault("REDIS_URL", "redis://nexus-redis:6379"),
		QueueName:         getEnvOrDefault("QUEUE_NAME", "categorize:jobs"),
		QueueDriver:       getEnvOrDefault("QUEUE_DRIVER", "redis"),
		DatabaseURL:       getEnvOrThrow("DATABASE_URL"),
		QdrantURL:         getEnvOrDefault("QDRANT_URL", "nexus-qdrant:6334"),
		QdrantCollection:  getEnvOrDefault("QDRANT_COLLECTION", "annotation_image_features"),
		QdrantEnabled:     getEnvAsBoolOrDefault("QDRANT_ENABLED", true),
		ExtractionURL:     getEnvOrDefault("EXTRACTION_URL", "http://nexus-extraction:8094"),
		WorkerConcurrency: getEnvAsIntOrDefault("WORKER_CONCURRENCY", 10),
		ScanWorkers:       getEnvAsIntOrDefault("SCAN_WORKERS", 8),
		MaxFileSize:       getEnvAsInt64OrDefault("MAX_FILE_SIZE", 536870912), // 512MB
		AnalysisTimeout:   getEnvAsIntOrDefault("ANALYSIS_TIMEOUT", 120000),   // 2 minutes
		TesseractEnabled:  getEnvAsBoolOrDefault("TESSERACT_ENABLED", true),
		NodeEnv:           getEnvOrDefault("NODE_ENV", "development"),
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.QueueDriver != "redis" && c.QueueDriver != "asynq" {
		return fmt.Errorf("QUEUE_DRIVER must be \"redis\" or \"asynq\", got %q", c.QueueDriver)
	}

	if c.WorkerConcurrency < 1 || c.WorkerConcurrency > 100 {
		return fmt.Errorf("WORKER_CONCURRENCY must be between 1 and 100, got %d", c.WorkerConcurrency)
	}

	if c.ScanWorkers < 1 || c.ScanWorkers > 256 {
		return fmt.Errorf("SCAN_WORKERS must be between 1 and 256, got %d", c.ScanWorkers)
	}

	if c.MaxFileSize < 1024 || c.MaxFileSize > 10737418240 { // 1KB to 10GB
		return fmt.Errorf("MAX_FILE_SIZE must be between 1KB and 10GB, got %d", c.MaxFileSize)
	}

	return nil
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrThrow gets environment variable or panics when unset
func getEnvOrThrow(key string) string {
	value := os.Getenv(key)
	if value == "" {
		panic(fmt.Sprintf("Required environment variable %s is not set", key))
	}
	return value
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsInt64OrDefault gets environment variable as int64 or returns default
func getEnvAsInt64OrDefault(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsBoolOrDefault gets environment variable as bool or returns default
func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}
