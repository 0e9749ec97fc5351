package extraction

import (
	"testing"

	"github.com/adverant/nexus/categorize-worker/internal/engine"
)

func TestDetectMimeType(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"pdf", []byte("%PDF-1.7 rest of file"), "application/pdf"},
		{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00}, "image/png"},
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00}, "image/jpeg"},
		{"gif", []byte("GIF89a...."), "image/gif"},
		{"wav", append([]byte("RIFF\x00\x00\x00\x00WAVE"), 0x00), "audio/wav"},
		{"webp", append([]byte("RIFF\x00\x00\x00\x00WEBP"), 0x00), "image/webp"},
		{"mp3 id3", []byte("ID3\x04\x00"), "audio/mpeg"},
		{"ogg", []byte("OggS\x00\x02"), "audio/ogg"},
		{"flac", []byte("fLaC\x00\x00"), "audio/flac"},
		{"json object", []byte(`  {"key": "value"}`), "application/json"},
		{"json array", []byte("[1, 2, 3]"), "application/json"},
		{"unknown", []byte("hello world plain text"), ""},
		{"too short", []byte("ab"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectMimeType(tt.data); got != tt.want {
				t.Errorf("DetectMimeType = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFileTypeForMime(t *testing.T) {
	tests := []struct {
		mime     string
		fileType engine.FileType
		ok       bool
	}{
		{"image/png", engine.FileTypeImage, true},
		{"image/jpeg", engine.FileTypeImage, true},
		{"application/pdf", engine.FileTypePDF, true},
		{"application/json", engine.FileTypeJSON, true},
		{"text/json", engine.FileTypeJSON, true},
		{"audio/wav", engine.FileTypeAudio, true},
		{"audio/mpeg", engine.FileTypeAudio, true},
		{"video/mp4", "", false},
		{"application/octet-stream", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		fileType, ok := FileTypeForMime(tt.mime)
		if fileType != tt.fileType || ok != tt.ok {
			t.Errorf("FileTypeForMime(%q) = (%q, %v), want (%q, %v)",
				tt.mime, fileType, ok, tt.fileType, tt.ok)
		}
	}
}
