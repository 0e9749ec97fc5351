/**
 * File type detection from magic bytes
 *
 * Upload sources often report application/octet-stream; the content itself is
 * the reliable signal for picking the matcher modality.
 */

package extraction

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/adverant/nexus/categorize-worker/internal/engine"
)

// DetectMimeType detects the actual MIME type from file content magic bytes.
// Returns "" when the content is not recognized.
func DetectMimeType(data []byte) string {
	if len(data) < 4 {
		return ""
	}

	// PDF: %PDF-
	if bytes.HasPrefix(data, []byte("%PDF")) {
		return "application/pdf"
	}

	// PNG: 0x89 'P' 'N' 'G' 0x0D 0x0A 0x1A 0x0A
	if len(data) >= 8 && bytes.HasPrefix(data, []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}) {
		return "image/png"
	}

	// JPEG: 0xFF 0xD8 0xFF
	if bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}) {
		return "image/jpeg"
	}

	// GIF: 'G' 'I' 'F' '8' ('7' or '9') 'a'
	if bytes.HasPrefix(data, []byte("GIF87a")) || bytes.HasPrefix(data, []byte("GIF89a")) {
		return "image/gif"
	}

	// WebP: 'R' 'I' 'F' 'F' .... 'W' 'E' 'B' 'P'
	if len(data) > 12 && bytes.HasPrefix(data, []byte("RIFF")) && string(data[8:12]) == "WEBP" {
		return "image/webp"
	}

	// WAV: 'R' 'I' 'F' 'F' .... 'W' 'A' 'V' 'E'
	if len(data) > 12 && bytes.HasPrefix(data, []byte("RIFF")) && string(data[8:12]) == "WAVE" {
		return "audio/wav"
	}

	// MP3: ID3 tag or MPEG frame sync
	if bytes.HasPrefix(data, []byte("ID3")) || (data[0] == 0xFF && data[1]&0xE0 == 0xE0) {
		return "audio/mpeg"
	}

	// OGG: 'O' 'g' 'g' 'S'
	if bytes.HasPrefix(data, []byte("OggS")) {
		return "audio/ogg"
	}

	// FLAC: 'f' 'L' 'a' 'C'
	if bytes.HasPrefix(data, []byte("fLaC")) {
		return "audio/flac"
	}

	// TIFF: little- or big-endian header
	if bytes.HasPrefix(data, []byte{0x49, 0x49, 0x2A, 0x00}) || bytes.HasPrefix(data, []byte{0x4D, 0x4D, 0x00, 0x2A}) {
		return "image/tiff"
	}

	// BMP: 'B' 'M'
	if bytes.HasPrefix(data, []byte("BM")) {
		return "image/bmp"
	}

	// JSON: valid UTF-8 starting with an object or array
	if looksLikeJSON(data) {
		return "application/json"
	}

	return ""
}

// looksLikeJSON checks for a UTF-8 body whose first non-space byte opens a
// JSON object or array.
func looksLikeJSON(data []byte) bool {
	sample := data
	if len(sample) > 512 {
		sample = sample[:512]
	}
	if !utf8.Valid(sample) {
		return false
	}
	trimmed := strings.TrimLeft(string(sample), " \t\r\n")
	return strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")
}

// FileTypeForMime maps a MIME type to the matcher modality. The second return
// is false for unsupported types.
func FileTypeForMime(mimeType string) (engine.FileType, bool) {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return engine.FileTypeImage, true
	case mimeType == "application/pdf":
		return engine.FileTypePDF, true
	case mimeType == "application/json" || mimeType == "text/json":
		return engine.FileTypeJSON, true
	case strings.HasPrefix(mimeType, "audio/"):
		return engine.FileTypeAudio, true
	default:
		return "", false
	}
}
