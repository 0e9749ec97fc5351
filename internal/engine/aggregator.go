/**
 * Evidence Aggregator
 *
 * Reduces the flat candidate list produced by a matcher to one category
 * decision. The category with the most candidates wins, with ties broken by
 * first-encountered order over the candidate list (deterministic because
 * candidates are collected in corpus order).
 *
 * The reported confidence is the maximum across the ENTIRE candidate list,
 * not just the winning category's own candidates. That mirrors the original
 * annotation workflow and is covered by tests; correct it there first if the
 * behavior ever changes.
 */

package engine

// Aggregate turns scored candidates into the final category decision. The
// directory is passed explicitly; any caching it does must be request-scoped.
func Aggregate(candidates []MatchCandidate, dir CategoryDirectory) *AnalysisResult {
	if len(candidates) == 0 {
		return &AnalysisResult{
			Category:   CategoryUncategorized,
			Confidence: 0,
			Matches:    []MatchCandidate{},
		}
	}

	counts := make(map[string]int, len(candidates))
	order := make([]string, 0, len(candidates))
	maxConfidence := 0.0

	for _, c := range candidates {
		if _, seen := counts[c.CategoryID]; !seen {
			order = append(order, c.CategoryID)
		}
		counts[c.CategoryID]++
		if c.Confidence > maxConfidence {
			maxConfidence = c.Confidence
		}
	}

	winner := order[0]
	for _, id := range order[1:] {
		if counts[id] > counts[winner] {
			winner = id
		}
	}

	category := winner
	if dir != nil {
		if name, ok := dir.Name(winner); ok {
			category = name
		} else {
			category = CategoryUncategorized
		}
	}

	return &AnalysisResult{
		Category:   category,
		Confidence: clamp01(maxConfidence),
		Matches:    candidates,
	}
}
