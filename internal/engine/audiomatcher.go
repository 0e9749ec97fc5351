/**
 * Audio Segment Matcher
 *
 * Matches stored transcript-span annotations against the transcript of a
 * candidate recording by case-insensitive substring containment.
 *
 * Known limitation: StartTime/EndTime on emitted candidates are copied
 * verbatim from the stored pattern rather than re-located in the new
 * transcript, so they are only meaningful when the candidate is a re-upload
 * of the recording the pattern was annotated on.
 */

package engine

import (
	"strings"
)

const (
	audioTextConfidence    = 0.95
	audioKeywordConfidence = 0.9

	// snippetRadius is the number of context characters kept on each side
	// of a transcript match for display.
	snippetRadius = 50
)

// audioMatcher scans audio_segment-kind patterns of a corpus record.
type audioMatcher struct{}

func (audioMatcher) kind() PatternKind { return PatternAudioSegment }

func (audioMatcher) match(content *CandidateContent, record *AnnotationRecord) []MatchCandidate {
	transcript := strings.ToLower(strings.Join(content.TranscriptWords, " "))
	if transcript == "" {
		return nil
	}

	var candidates []MatchCandidate
	for _, pattern := range record.Annotations {
		if pattern.Kind != PatternAudioSegment {
			continue
		}
		seg := pattern.AudioSegment
		if seg == nil || (seg.Text == "" && seg.KeywordText == "") {
			continue
		}

		confidence := 0.0
		matchedPhrase := ""
		if seg.Text != "" {
			if idx := strings.Index(transcript, strings.ToLower(seg.Text)); idx >= 0 {
				confidence = audioTextConfidence
				matchedPhrase = strings.ToLower(seg.Text)
			}
		}
		if confidence == 0 && seg.KeywordText != "" {
			if idx := strings.Index(transcript, strings.ToLower(seg.KeywordText)); idx >= 0 {
				confidence = audioKeywordConfidence
				matchedPhrase = strings.ToLower(seg.KeywordText)
			}
		}
		if confidence == 0 {
			continue
		}

		candidates = append(candidates, MatchCandidate{
			DataID:       record.DataID,
			RuleID:       record.Rule.ID,
			CategoryID:   record.Rule.CategoryID,
			Confidence:   clamp01(confidence),
			EvidenceKind: PatternAudioSegment,
			MatchType:    MatchTypeExact,
			Snippet:      transcriptSnippet(transcript, matchedPhrase),
			StartTime:    seg.StartTime,
			EndTime:      seg.EndTime,
		})
	}
	return candidates
}

// transcriptSnippet extracts the matched phrase with snippetRadius characters
// of context on each side.
func transcriptSnippet(transcript, phrase string) string {
	idx := strings.Index(transcript, phrase)
	if idx < 0 {
		return phrase
	}

	start := idx - snippetRadius
	if start < 0 {
		start = 0
	}
	end := idx + len(phrase) + snippetRadius
	if end > len(transcript) {
		end = len(transcript)
	}
	return transcript[start:end]
}
