package engine

import (
	"context"
	"testing"
)

func financeCorpus() []AnnotationRecord {
	return []AnnotationRecord{
		{
			DataID: "data-1",
			Rule:   AnnotationRule{ID: "rule-1", CategoryID: "cat-finance"},
			Type:   FileTypePDF,
			Annotations: []AnnotationPattern{
				{Kind: PatternPDF, PDF: &PDFPattern{KeywordText: "Invoice Number"}},
			},
		},
		{
			DataID: "data-2",
			Rule:   AnnotationRule{ID: "rule-2", CategoryID: "cat-legal"},
			Type:   FileTypePDF,
			Annotations: []AnnotationPattern{
				{Kind: PatternPDF, PDF: &PDFPattern{KeywordText: "Witness Statement"}},
			},
		},
	}
}

func TestAnalyzePDFEndToEnd(t *testing.T) {
	eng := NewEngine()

	result, err := eng.Analyze(context.Background(), &AnalysisRequest{
		FileType: FileTypePDF,
		Content:  &CandidateContent{ExtractedText: "Invoice Number: 12345, due immediately."},
		Corpus:   financeCorpus(),
		Dir:      mapDirectory{"cat-finance": "Finance", "cat-legal": "Legal"},
	})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if result.Category != "Finance" {
		t.Errorf("Category = %q, want Finance", result.Category)
	}
	if result.Confidence != 0.9 {
		t.Errorf("Confidence = %f, want 0.9", result.Confidence)
	}
	if len(result.Matches) != 1 {
		t.Errorf("Matches = %d, want 1", len(result.Matches))
	}
}

func TestAnalyzeEmptyContentUncategorized(t *testing.T) {
	eng := NewEngine()

	// Upstream extraction failure arrives as empty content.
	result, err := eng.Analyze(context.Background(), &AnalysisRequest{
		FileType: FileTypePDF,
		Content:  &CandidateContent{},
		Corpus:   financeCorpus(),
		Dir:      mapDirectory{"cat-finance": "Finance"},
	})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if result.Category != CategoryUncategorized {
		t.Errorf("Category = %q, want %q", result.Category, CategoryUncategorized)
	}
	if result.Confidence != 0 {
		t.Errorf("Confidence = %f, want 0", result.Confidence)
	}
}

func TestAnalyzeEmptyCorpus(t *testing.T) {
	eng := NewEngine()

	result, err := eng.Analyze(context.Background(), &AnalysisRequest{
		FileType: FileTypeJSON,
		Content:  &CandidateContent{KeyValues: []KeyValue{{Path: "a", Value: "b"}}},
	})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if result.Category != CategoryUncategorized {
		t.Errorf("Category = %q, want %q", result.Category, CategoryUncategorized)
	}
}

func TestAnalyzeUnsupportedFileType(t *testing.T) {
	eng := NewEngine()

	if _, err := eng.Analyze(context.Background(), &AnalysisRequest{FileType: "video"}); err == nil {
		t.Error("Expected error for unsupported file type, got nil")
	}
}

func TestAnalyzeNilRequest(t *testing.T) {
	if _, err := NewEngine().Analyze(context.Background(), nil); err == nil {
		t.Error("Expected error for nil request, got nil")
	}
}

func TestAnalyzeCancelledContext(t *testing.T) {
	eng := NewEngine(WithScanWorkers(1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A large corpus ensures the feed loop observes the cancellation.
	corpus := make([]AnnotationRecord, 0, 1000)
	for i := 0; i < 1000; i++ {
		corpus = append(corpus, financeCorpus()[0])
	}

	_, err := eng.Analyze(ctx, &AnalysisRequest{
		FileType: FileTypePDF,
		Content:  &CandidateContent{ExtractedText: "Invoice Number: 1"},
		Corpus:   corpus,
	})
	if err == nil {
		t.Error("Expected cancellation error, got nil")
	}
}

func TestAnalyzeSkipsMalformedPatterns(t *testing.T) {
	eng := NewEngine()

	corpus := []AnnotationRecord{
		{
			DataID: "data-1",
			Rule:   AnnotationRule{ID: "rule-1", CategoryID: "cat-finance"},
			Annotations: []AnnotationPattern{
				{Kind: PatternPDF, PDF: nil},                  // malformed
				{Kind: PatternPDF, PDF: &PDFPattern{}},       // malformed
				{Kind: PatternPDF, PDF: &PDFPattern{KeywordText: "Invoice Number"}},
			},
		},
	}

	result, err := eng.Analyze(context.Background(), &AnalysisRequest{
		FileType: FileTypePDF,
		Content:  &CandidateContent{ExtractedText: "Invoice Number: 7"},
		Corpus:   corpus,
		Dir:      mapDirectory{"cat-finance": "Finance"},
	})
	if err != nil {
		t.Fatalf("Analyze failed despite skippable patterns: %v", err)
	}

	if result.Category != "Finance" {
		t.Errorf("Category = %q, want Finance", result.Category)
	}
	if len(result.Matches) != 1 {
		t.Errorf("Matches = %d, want 1 (malformed patterns skipped)", len(result.Matches))
	}
	if result.Raw["malformedSkipped"] != 2 {
		t.Errorf("malformedSkipped = %v, want 2", result.Raw["malformedSkipped"])
	}
}

func TestAnalyzeDeterministicAcrossRuns(t *testing.T) {
	eng := NewEngine(WithScanWorkers(4))

	corpus := make([]AnnotationRecord, 0, 50)
	for i := 0; i < 25; i++ {
		corpus = append(corpus, financeCorpus()...)
	}

	req := func() *AnalysisRequest {
		return &AnalysisRequest{
			FileType: FileTypePDF,
			Content:  &CandidateContent{ExtractedText: "Invoice Number: 12345 and Witness Statement attached."},
			Corpus:   corpus,
			Dir:      mapDirectory{"cat-finance": "Finance", "cat-legal": "Legal"},
		}
	}

	first, err := eng.Analyze(context.Background(), req())
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	for run := 0; run < 5; run++ {
		result, err := eng.Analyze(context.Background(), req())
		if err != nil {
			t.Fatalf("Analyze failed on run %d: %v", run, err)
		}
		if result.Category != first.Category {
			t.Fatalf("Run %d category %q differs from %q", run, result.Category, first.Category)
		}
		if result.Confidence != first.Confidence {
			t.Fatalf("Run %d confidence %f differs from %f", run, result.Confidence, first.Confidence)
		}
		if len(result.Matches) != len(first.Matches) {
			t.Fatalf("Run %d match count %d differs from %d", run, len(result.Matches), len(first.Matches))
		}
		for i := range result.Matches {
			if result.Matches[i].DataID != first.Matches[i].DataID {
				t.Fatalf("Run %d match order differs at %d", run, i)
			}
		}
	}
}
