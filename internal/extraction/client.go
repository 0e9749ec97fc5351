/**
 * Content Extraction Client
 *
 * Delegates OCR, object/logo detection and speech transcription to the
 * extraction service. The engine never performs detection itself; it consumes
 * the extracted output.
 *
 * Contract: extraction is called once per request and the result is reused
 * across all corpus comparisons. A failed or timed-out call degrades to empty
 * content so the analysis still returns a well-formed uncategorized result;
 * it never propagates an error into the engine.
 */

package extraction

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/adverant/nexus/categorize-worker/internal/engine"
	"github.com/adverant/nexus/categorize-worker/internal/logging"
)

// Client handles communication with the extraction service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
	tesseract  *TesseractOCR
}

// extractRequest is the wire request for all modalities.
type extractRequest struct {
	File     string `json:"file"` // Base64 encoded file content
	MimeType string `json:"mimeType"`
	Modality string `json:"modality"`
}

// extractResponse is the wire response; only the fields for the requested
// modality are populated.
type extractResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    struct {
		OCRText           string                  `json:"ocrText,omitempty"`
		OCRBoxes          []engine.OCRBox         `json:"ocrBoxes,omitempty"`
		DetectedObjects   []engine.DetectedObject `json:"detectedObjects,omitempty"`
		DetectorAvailable bool                    `json:"detectorAvailable,omitempty"`
		ExtractedText     string                  `json:"extractedText,omitempty"`
		Pages             []string                `json:"pages,omitempty"`
		TranscriptWords   []string                `json:"transcriptWords,omitempty"`
	} `json:"data"`
}

// NewClient creates an extraction client. The Tesseract fallback is optional
// and only used for image OCR when the remote service is unreachable.
func NewClient(baseURL string, tesseract *TesseractOCR) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second, // transcription can take a while
		},
		logger:    logging.NewLogger("ExtractionClient"),
		tesseract: tesseract,
	}
}

// HealthCheck verifies the extraction service is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/health", c.baseURL), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("extraction service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("extraction service unhealthy: HTTP %d", resp.StatusCode)
	}
	return nil
}

// Extract returns the candidate content for one file. The returned content is
// never nil: on extraction failure the relevant fields are simply empty.
func (c *Client) Extract(ctx context.Context, fileData []byte, mimeType string, fileType engine.FileType) *engine.CandidateContent {
	switch fileType {
	case engine.FileTypeJSON:
		// JSON needs no external service; parse and flatten locally.
		return c.extractJSON(fileData)
	case engine.FileTypeImage:
		content := c.extractRemote(ctx, fileData, mimeType, fileType)
		if content.OCRText == "" && len(content.OCRBoxes) == 0 && c.tesseract != nil {
			c.logger.Warn("Remote OCR returned no text, trying Tesseract fallback")
			if text, err := c.tesseract.Text(ctx, fileData); err != nil {
				c.logger.Warn("Tesseract fallback failed", "error", err)
			} else {
				content.OCRText = text
			}
		}
		content.ImageData = fileData
		return content
	default:
		return c.extractRemote(ctx, fileData, mimeType, fileType)
	}
}

// extractRemote performs the single extraction call for one request.
func (c *Client) extractRemote(ctx context.Context, fileData []byte, mimeType string, fileType engine.FileType) *engine.CandidateContent {
	content := &engine.CandidateContent{}

	reqBody, err := json.Marshal(&extractRequest{
		File:     base64.StdEncoding.EncodeToString(fileData),
		MimeType: mimeType,
		Modality: string(fileType),
	})
	if err != nil {
		c.logger.Error("Failed to marshal extraction request", "error", err)
		return content
	}

	endpoint := fmt.Sprintf("%s/api/internal/extract", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		c.logger.Error("Failed to create extraction request", "error", err)
		return content
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Extraction call failed, degrading to empty content", "modality", fileType, "error", err)
		return content
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Warn("Extraction service returned error, degrading to empty content",
			"modality", fileType, "status", resp.StatusCode, "body", string(body))
		return content
	}

	var parsed extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		c.logger.Warn("Failed to decode extraction response, degrading to empty content", "error", err)
		return content
	}
	if !parsed.Success {
		c.logger.Warn("Extraction reported failure, degrading to empty content", "message", parsed.Message)
		return content
	}

	content.OCRText = parsed.Data.OCRText
	content.OCRBoxes = parsed.Data.OCRBoxes
	content.DetectedObjects = parsed.Data.DetectedObjects
	content.DetectorAvailable = parsed.Data.DetectorAvailable
	content.ExtractedText = parsed.Data.ExtractedText
	content.Pages = parsed.Data.Pages
	content.TranscriptWords = parsed.Data.TranscriptWords
	return content
}

// extractJSON parses the file and flattens it into path/value pairs.
func (c *Client) extractJSON(fileData []byte) *engine.CandidateContent {
	content := &engine.CandidateContent{}

	var doc interface{}
	if err := json.Unmarshal(fileData, &doc); err != nil {
		c.logger.Warn("Failed to parse candidate JSON, degrading to empty content", "error", err)
		return content
	}

	content.KeyValues = engine.FlattenJSON(doc)
	return content
}
