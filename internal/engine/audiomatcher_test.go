package engine

import (
	"strings"
	"testing"
)

func TestAudioMatcherTextPhrase(t *testing.T) {
	content := &CandidateContent{
		TranscriptWords: strings.Fields("the quick brown fox jumps over the lazy dog"),
	}
	record := &AnnotationRecord{
		DataID: "audio-1",
		Rule:   AnnotationRule{ID: "rule-1", CategoryID: "cat-nature"},
		Annotations: []AnnotationPattern{
			{Kind: PatternAudioSegment, AudioSegment: &AudioSegmentPattern{
				Text:      "quick brown",
				StartTime: 1.5,
				EndTime:   3.0,
			}},
		},
	}

	candidates := audioMatcher{}.match(content, record)
	if len(candidates) != 1 {
		t.Fatalf("Got %d candidates, want 1", len(candidates))
	}

	c := candidates[0]
	if c.Confidence != 0.95 {
		t.Errorf("Confidence = %f, want 0.95", c.Confidence)
	}
	if !strings.Contains(c.Snippet, "quick brown") {
		t.Errorf("Snippet %q does not contain the matched phrase", c.Snippet)
	}
	if c.StartTime != 1.5 || c.EndTime != 3.0 {
		t.Errorf("Timestamps = (%f, %f), want pattern values carried over", c.StartTime, c.EndTime)
	}
}

func TestAudioMatcherKeywordFallback(t *testing.T) {
	content := &CandidateContent{
		TranscriptWords: strings.Fields("meeting adjourned at noon"),
	}
	record := &AnnotationRecord{
		Rule: AnnotationRule{CategoryID: "cat-meetings"},
		Annotations: []AnnotationPattern{
			{Kind: PatternAudioSegment, AudioSegment: &AudioSegmentPattern{
				Text:        "not in transcript",
				KeywordText: "adjourned",
			}},
		},
	}

	candidates := audioMatcher{}.match(content, record)
	if len(candidates) != 1 {
		t.Fatalf("Got %d candidates, want 1", len(candidates))
	}
	if candidates[0].Confidence != 0.9 {
		t.Errorf("Keyword fallback confidence = %f, want 0.9", candidates[0].Confidence)
	}
}

func TestAudioMatcherNoTranscript(t *testing.T) {
	record := &AnnotationRecord{
		Annotations: []AnnotationPattern{
			{Kind: PatternAudioSegment, AudioSegment: &AudioSegmentPattern{Text: "anything"}},
		},
	}
	if candidates := (audioMatcher{}).match(&CandidateContent{}, record); candidates != nil {
		t.Errorf("Expected no candidates without a transcript, got %d", len(candidates))
	}
}

func TestAudioMatcherCaseInsensitive(t *testing.T) {
	content := &CandidateContent{
		TranscriptWords: strings.Fields("The Quick BROWN Fox"),
	}
	record := &AnnotationRecord{
		Rule: AnnotationRule{CategoryID: "cat-nature"},
		Annotations: []AnnotationPattern{
			{Kind: PatternAudioSegment, AudioSegment: &AudioSegmentPattern{Text: "quick brown"}},
		},
	}

	if candidates := (audioMatcher{}).match(content, record); len(candidates) != 1 {
		t.Fatalf("Case-insensitive match failed, got %d candidates", len(candidates))
	}
}

func TestTranscriptSnippetWindow(t *testing.T) {
	long := strings.Repeat("a ", 100) + "needle" + strings.Repeat(" b", 100)
	snippet := transcriptSnippet(long, "needle")

	if !strings.Contains(snippet, "needle") {
		t.Fatalf("Snippet %q does not contain the phrase", snippet)
	}
	if len(snippet) > len("needle")+2*snippetRadius {
		t.Errorf("Snippet length %d exceeds the context window", len(snippet))
	}
}
