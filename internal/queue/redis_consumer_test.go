package queue

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestJobPayloadUnmarshalBase64Buffer(t *testing.T) {
	raw := []byte(`{
		"jobId": "job-1",
		"filename": "invoice.pdf",
		"fileBuffer": "aGVsbG8gd29ybGQ="
	}`)

	var payload JobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if payload.JobID != "job-1" {
		t.Errorf("JobID = %q, want job-1", payload.JobID)
	}
	if !bytes.Equal(payload.FileBuffer, []byte("hello world")) {
		t.Errorf("FileBuffer = %q, want 'hello world'", payload.FileBuffer)
	}
}

func TestJobPayloadUnmarshalNodeBufferObject(t *testing.T) {
	raw := []byte(`{
		"jobId": "job-2",
		"fileBuffer": {"type": "Buffer", "data": [104, 105]}
	}`)

	var payload JobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if !bytes.Equal(payload.FileBuffer, []byte("hi")) {
		t.Errorf("FileBuffer = %v, want 'hi'", payload.FileBuffer)
	}
}

func TestJobPayloadUnmarshalNoBuffer(t *testing.T) {
	raw := []byte(`{"jobId": "job-3", "fileUrl": "http://example.com/f.pdf"}`)

	var payload JobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if payload.FileBuffer != nil {
		t.Errorf("FileBuffer = %v, want nil", payload.FileBuffer)
	}
	if payload.FileURL != "http://example.com/f.pdf" {
		t.Errorf("FileURL = %q", payload.FileURL)
	}
}

func TestJobPayloadUnmarshalInvalidBuffer(t *testing.T) {
	cases := []string{
		`{"fileBuffer": "not!!valid!!base64!!"}`,
		`{"fileBuffer": {"type": "NotBuffer", "data": []}}`,
		`{"fileBuffer": {"type": "Buffer"}}`,
		`{"fileBuffer": 42}`,
	}

	for _, raw := range cases {
		var payload JobPayload
		if err := json.Unmarshal([]byte(raw), &payload); err == nil {
			t.Errorf("Expected error for %s, got nil", raw)
		}
	}
}
