package engine

import (
	"strings"
	"testing"
)

func TestKeywordConfidenceExactSubstring(t *testing.T) {
	text := "This document contains the Invoice Number: 12345 near the top."

	confidence, matchType := KeywordConfidence(text, "Invoice Number")
	if confidence != 0.9 {
		t.Errorf("Exact substring confidence = %f, want 0.9", confidence)
	}
	if matchType != MatchTypeExact {
		t.Errorf("Match type = %q, want %q", matchType, MatchTypeExact)
	}

	// Case-insensitive.
	confidence, _ = KeywordConfidence(text, "invoice number")
	if confidence != 0.9 {
		t.Errorf("Case-insensitive confidence = %f, want 0.9", confidence)
	}
}

func TestKeywordConfidenceNoMatch(t *testing.T) {
	confidence, _ := KeywordConfidence("completely unrelated text", "zzzqqqxxx")
	if confidence != 0 {
		t.Errorf("Confidence = %f, want 0 for unrelated keyword", confidence)
	}
}

func TestKeywordConfidenceEmptyInputs(t *testing.T) {
	if c, _ := KeywordConfidence("", "keyword"); c != 0 {
		t.Errorf("Empty text confidence = %f, want 0", c)
	}
	if c, _ := KeywordConfidence("some text", ""); c != 0 {
		t.Errorf("Empty keyword confidence = %f, want 0", c)
	}
}

func TestKeywordConfidenceFuzzyCappedBelowExact(t *testing.T) {
	// Words present but never as a contiguous phrase: fuzzy path.
	text := "invoice sent with the number attached separately"
	confidence, _ := KeywordConfidence(text, "number invoice")
	if confidence <= 0 {
		t.Fatal("Expected fuzzy match to score above 0")
	}
	if confidence > 0.8 {
		t.Errorf("Fuzzy confidence = %f, must be capped at 0.8", confidence)
	}
}

func TestKeywordConfidenceShortWordsIgnored(t *testing.T) {
	// All keyword words are <= 2 characters, so nothing is significant.
	confidence, _ := KeywordConfidence("ab cd ef", "ab cd")
	if confidence != 0 {
		t.Errorf("Confidence = %f, want 0 when no significant words remain", confidence)
	}
}

func TestWordMatchScore(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"invoice", "invoice", 1.0},
		{"", "invoice", 0},
		{"invoice", "", 0},
		{"inv", "invoice", 3.0 / 7.0}, // containment, length ratio
		{"invoice", "inv", 3.0 / 7.0},
		{"xy", "ab", 0},
	}

	for _, tt := range tests {
		if got := WordMatchScore(tt.a, tt.b); got != tt.want {
			t.Errorf("WordMatchScore(%q, %q) = %f, want %f", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestWordMatchScorePositionalFallback(t *testing.T) {
	// No containment, both longer than 3: positional similarity scaled by 0.8.
	got := WordMatchScore("invoice", "invoica")
	want := (6.0 / 7.0) * 0.8
	if got != want {
		t.Errorf("WordMatchScore = %f, want %f", got, want)
	}

	// Similarity at or below 0.7 scores zero.
	if got := WordMatchScore("abcdef", "abzzzz"); got != 0 {
		t.Errorf("Low positional similarity scored %f, want 0", got)
	}
}

func TestSplitPages(t *testing.T) {
	pages := SplitPages("page one\fpage two\fpage three")
	if len(pages) != 3 {
		t.Fatalf("SplitPages returned %d pages, want 3", len(pages))
	}

	pages = SplitPages("first\n\n\nsecond")
	if len(pages) != 2 {
		t.Fatalf("Triple-newline split returned %d pages, want 2", len(pages))
	}

	pages = SplitPages("no breaks here")
	if len(pages) != 1 {
		t.Fatalf("Unbroken text returned %d pages, want 1", len(pages))
	}

	if pages := SplitPages(""); pages != nil {
		t.Errorf("Empty text returned %v, want nil", pages)
	}
}

func TestResolvePage(t *testing.T) {
	content := &CandidateContent{
		Pages: []string{"intro text", "the Invoice Number appears here", "closing"},
	}

	if page := ResolvePage(content, "invoice number"); page != 2 {
		t.Errorf("ResolvePage = %d, want 2", page)
	}

	// Keyword absent from every page: whole document counts as page 1.
	if page := ResolvePage(content, "missing keyword"); page != 1 {
		t.Errorf("ResolvePage fallback = %d, want 1", page)
	}

	// No page list: pages derived from the extracted text.
	derived := &CandidateContent{ExtractedText: "first page\fInvoice Number here"}
	if page := ResolvePage(derived, "invoice number"); page != 2 {
		t.Errorf("ResolvePage with derived pages = %d, want 2", page)
	}
}

func TestPDFMatcherEmitsCandidates(t *testing.T) {
	content := &CandidateContent{
		ExtractedText: "Quarterly report. Invoice Number: 12345. Total due on receipt.",
	}
	record := &AnnotationRecord{
		DataID: "data-1",
		Rule:   AnnotationRule{ID: "rule-1", CategoryID: "cat-finance"},
		Annotations: []AnnotationPattern{
			{Kind: PatternPDF, PDF: &PDFPattern{KeywordText: "Invoice Number"}},
			{Kind: PatternPDF, PDF: &PDFPattern{KeywordText: "zzzqqq"}},
			{Kind: PatternPDF, PDF: &PDFPattern{}}, // malformed, skipped
		},
	}

	candidates := pdfMatcher{}.match(content, record)
	if len(candidates) != 1 {
		t.Fatalf("Got %d candidates, want 1", len(candidates))
	}

	c := candidates[0]
	if c.Confidence != 0.9 {
		t.Errorf("Confidence = %f, want 0.9", c.Confidence)
	}
	if c.CategoryID != "cat-finance" {
		t.Errorf("CategoryID = %q, want cat-finance", c.CategoryID)
	}
	if c.Page != 1 {
		t.Errorf("Page = %d, want 1", c.Page)
	}
	if !strings.Contains(c.Snippet, "Invoice Number") {
		t.Errorf("Snippet %q does not contain the keyword", c.Snippet)
	}
}

func TestPDFMatcherEmptyText(t *testing.T) {
	record := &AnnotationRecord{
		Annotations: []AnnotationPattern{
			{Kind: PatternPDF, PDF: &PDFPattern{KeywordText: "anything"}},
		},
	}
	if candidates := (pdfMatcher{}).match(&CandidateContent{}, record); candidates != nil {
		t.Errorf("Expected no candidates for empty extracted text, got %d", len(candidates))
	}
}
