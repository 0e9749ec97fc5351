/**
 * Tesseract OCR - offline fallback for image text extraction
 *
 * Used when the extraction service is unreachable. Only plain text comes out
 * of this path; word boxes and object detections stay empty, so region
 * correlation degrades to whole-image matching.
 */

package extraction

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// TesseractOCR wraps a local Tesseract installation.
type TesseractOCR struct {
	languages []string
}

// NewTesseractOCR creates the fallback OCR. Defaults to English.
func NewTesseractOCR(languages ...string) *TesseractOCR {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &TesseractOCR{languages: languages}
}

// Text runs OCR over an image buffer and returns the extracted text.
func (t *TesseractOCR) Text(ctx context.Context, fileData []byte) (string, error) {
	if len(fileData) == 0 {
		return "", fmt.Errorf("empty image buffer")
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.languages...); err != nil {
		return "", fmt.Errorf("failed to set languages: %w", err)
	}

	if err := client.SetImageFromBytes(fileData); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract OCR failed: %w", err)
	}

	return text, nil
}
