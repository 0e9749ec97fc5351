package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

/**
 * Custom error types for the categorization worker.
 *
 * Fatal vs recoverable split:
 * - CONTENT_UNAVAILABLE aborts the request (source file missing or corrupt).
 * - EXTRACTION_FAILED degrades to empty content; analysis still produces a
 *   well-formed uncategorized result.
 * - MALFORMED_PATTERN is skipped per pattern and never aborts a corpus scan.
 */

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	// Fatal: the candidate file itself cannot be read.
	ErrorContentUnavailable ErrorCode = "CONTENT_UNAVAILABLE"

	// Recoverable: an external extraction call failed.
	ErrorExtractionFailed ErrorCode = "EXTRACTION_FAILED"

	// Skipped per pattern during a corpus scan.
	ErrorMalformedPattern ErrorCode = "MALFORMED_PATTERN"

	// Processing errors
	ErrorAnalysisTimeout   ErrorCode = "ANALYSIS_TIMEOUT"
	ErrorUnsupportedFormat ErrorCode = "UNSUPPORTED_FORMAT"

	// Storage errors
	ErrorStorageFailed ErrorCode = "STORAGE_FAILED"
)

// AnalysisError represents a structured analysis error
type AnalysisError struct {
	Code      ErrorCode
	Message   string
	JobID     string
	Timestamp time.Time
	Details   map[string]interface{}
	Cause     error
}

func (e *AnalysisError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AnalysisError) Unwrap() error {
	return e.Cause
}

// IsFatal reports whether the error must abort the request instead of
// degrading to an uncategorized result.
func (e *AnalysisError) IsFatal() bool {
	return e.Code == ErrorContentUnavailable
}

// IsFatalError reports whether err wraps a fatal AnalysisError. Used by the
// queue consumers to decide between retrying and recording a hard failure.
func IsFatalError(err error) bool {
	var analysisErr *AnalysisError
	if stderrors.As(err, &analysisErr) {
		return analysisErr.IsFatal()
	}
	return false
}

// Factory functions for common errors

func NewContentUnavailableError(jobID string, source string, cause error) *AnalysisError {
	return &AnalysisError{
		Code:      ErrorContentUnavailable,
		Message:   fmt.Sprintf("Source file unavailable: %s", source),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"source": source,
		},
		Cause: cause,
	}
}

func NewExtractionFailedError(jobID string, modality string, cause error) *AnalysisError {
	return &AnalysisError{
		Code:      ErrorExtractionFailed,
		Message:   fmt.Sprintf("Content extraction failed for modality: %s", modality),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"modality": modality,
		},
		Cause: cause,
	}
}

func NewAnalysisTimeoutError(jobID string, duration time.Duration, cause error) *AnalysisError {
	return &AnalysisError{
		Code:      ErrorAnalysisTimeout,
		Message:   fmt.Sprintf("Analysis timed out after %v", duration),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"timeout_duration": duration.String(),
		},
		Cause: cause,
	}
}

func NewUnsupportedFormatError(jobID string, mimeType string) *AnalysisError {
	return &AnalysisError{
		Code:      ErrorUnsupportedFormat,
		Message:   fmt.Sprintf("Unsupported file format: %s", mimeType),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"mime_type": mimeType,
		},
	}
}

func NewStorageFailedError(jobID string, cause error) *AnalysisError {
	return &AnalysisError{
		Code:      ErrorStorageFailed,
		Message:   "Failed to store analysis results",
		JobID:     jobID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

// ToMap converts error to map for database storage
func (e *AnalysisError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"message":    e.Message,
		"timestamp":  e.Timestamp,
	}

	for k, v := range e.Details {
		result[k] = v
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}
