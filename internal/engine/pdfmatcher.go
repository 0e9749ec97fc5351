/**
 * PDF Keyword Matcher
 *
 * Scores stored keyword annotations against the extracted text of a candidate
 * PDF. A verbatim case-insensitive hit is worth 0.9; everything else goes
 * through word-level fuzzy scoring whose aggregate is capped at 0.8, so a
 * fuzzy match can never outrank a verbatim one.
 */

package engine

import (
	"strings"
)

// Match type labels reported on PDF candidates.
const (
	MatchTypeExact   = "exact"
	MatchTypePartial = "partial"
	MatchTypeKeyword = "keyword"
)

// pdfCandidateThreshold is the minimum confidence for emitting a candidate.
const pdfCandidateThreshold = 0.1

// pdfMatcher scans pdf-kind patterns of a corpus record.
type pdfMatcher struct{}

func (pdfMatcher) kind() PatternKind { return PatternPDF }

func (pdfMatcher) match(content *CandidateContent, record *AnnotationRecord) []MatchCandidate {
	if content.ExtractedText == "" {
		return nil
	}

	var candidates []MatchCandidate
	for _, pattern := range record.Annotations {
		if pattern.Kind != PatternPDF {
			continue
		}
		if pattern.PDF == nil || pattern.PDF.KeywordText == "" {
			// Malformed for its kind: skip, never abort the scan.
			continue
		}

		confidence, matchType := KeywordConfidence(content.ExtractedText, pattern.PDF.KeywordText)
		if confidence <= pdfCandidateThreshold {
			continue
		}

		candidates = append(candidates, MatchCandidate{
			DataID:       record.DataID,
			RuleID:       record.Rule.ID,
			CategoryID:   record.Rule.CategoryID,
			Confidence:   clamp01(confidence),
			EvidenceKind: PatternPDF,
			MatchType:    matchType,
			Snippet:      keywordSnippet(content.ExtractedText, pattern.PDF.KeywordText),
			Page:         ResolvePage(content, pattern.PDF.KeywordText),
		})
	}
	return candidates
}

// KeywordConfidence scores how strongly a stored keyword is present in the
// extracted text, returning the confidence and the match type label.
func KeywordConfidence(extractedText, keyword string) (float64, string) {
	if extractedText == "" || keyword == "" {
		return 0, MatchTypeKeyword
	}

	lowerText := strings.ToLower(extractedText)
	lowerKeyword := strings.ToLower(keyword)

	// Verbatim case-insensitive substring.
	if strings.Contains(lowerText, lowerKeyword) {
		return 0.9, MatchTypeExact
	}

	// Word-level fuzzy scoring over keyword words longer than 2 characters.
	keywordWords := significantWords(lowerKeyword)
	if len(keywordWords) == 0 {
		return 0, MatchTypeKeyword
	}

	textWords := strings.Fields(lowerText)

	matched := 0
	var scoreSum float64
	for _, kw := range keywordWords {
		best := bestWordScore(kw, textWords)
		if best > 0 {
			matched++
			scoreSum += best
		}
	}

	if matched == 0 {
		return 0, MatchTypeKeyword
	}

	coverage := float64(matched) / float64(len(keywordWords))
	avgScore := scoreSum / float64(matched)

	confidence := coverage*0.6 + avgScore*0.4
	if confidence > 0.8 {
		confidence = 0.8
	}

	matchType := MatchTypeKeyword
	if confidence > 0.3 {
		matchType = MatchTypePartial
	}
	return confidence, matchType
}

// significantWords splits a keyword into words longer than 2 characters.
func significantWords(keyword string) []string {
	var words []string
	for _, w := range strings.Fields(keyword) {
		if len(w) > 2 {
			words = append(words, w)
		}
	}
	return words
}

// bestWordScore finds the best score for a keyword word among text words.
func bestWordScore(keywordWord string, textWords []string) float64 {
	best := 0.0
	for _, tw := range textWords {
		score := WordMatchScore(keywordWord, tw)
		if score > best {
			best = score
		}
	}
	return best
}

// WordMatchScore scores a single word pair: exact equality is 1.0, mutual
// substring containment scores by length ratio, and longer words fall back to
// positional character overlap scaled by 0.8. Inputs are assumed lowercase.
func WordMatchScore(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1.0
	}

	if strings.Contains(a, b) || strings.Contains(b, a) {
		minLen := len(a)
		maxLen := len(b)
		if minLen > maxLen {
			minLen, maxLen = maxLen, minLen
		}
		if maxLen == 0 {
			return 0
		}
		return float64(minLen) / float64(maxLen)
	}

	if len(a) > 3 && len(b) > 3 {
		similarity := calculateWordSimilarity(a, b)
		if similarity > 0.7 {
			return similarity * 0.8
		}
	}

	return 0
}

// calculateWordSimilarity counts characters matching at equal index, divided
// by the longer word's length.
func calculateWordSimilarity(a, b string) float64 {
	shorter := len(a)
	longer := len(b)
	if shorter > longer {
		shorter, longer = longer, shorter
	}
	if longer == 0 {
		return 0
	}

	matching := 0
	for i := 0; i < shorter; i++ {
		if a[i] == b[i] {
			matching++
		}
	}
	return float64(matching) / float64(longer)
}

// ResolvePage returns the 1-based number of the first extracted page whose
// lowercase content contains the keyword. When no page list is available, or
// no page contains the keyword, the whole document counts as page 1.
func ResolvePage(content *CandidateContent, keyword string) int {
	lowerKeyword := strings.ToLower(keyword)

	pages := content.Pages
	if len(pages) == 0 {
		pages = SplitPages(content.ExtractedText)
	}

	for i, page := range pages {
		if strings.Contains(strings.ToLower(page), lowerKeyword) {
			return i + 1
		}
	}
	return 1
}

// SplitPages splits extracted text into pages on form-feed or triple-newline
// boundaries. Text without page breaks is a single page.
func SplitPages(text string) []string {
	if text == "" {
		return nil
	}

	normalized := strings.ReplaceAll(text, "\f", "\n\n\n")
	parts := strings.Split(normalized, "\n\n\n")

	pages := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			pages = append(pages, p)
		}
	}
	if len(pages) == 0 {
		return []string{text}
	}
	return pages
}

// keywordSnippet extracts up to 50 characters of context around the first
// occurrence of the keyword, or the keyword itself for fuzzy matches.
func keywordSnippet(text, keyword string) string {
	idx := strings.Index(strings.ToLower(text), strings.ToLower(keyword))
	if idx < 0 {
		return keyword
	}

	start := idx - 50
	if start < 0 {
		start = 0
	}
	end := idx + len(keyword) + 50
	if end > len(text) {
		end = len(text)
	}
	return text[start:end]
}
