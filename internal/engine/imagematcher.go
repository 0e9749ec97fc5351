/**
 * Image Region Correlator
 *
 * Matches OCR-text annotations against OCR boxes detected on the candidate
 * image, and routes visual (label-only) annotations through the feature
 * comparator on the cropped region.
 */

package engine

import (
	"strings"
)

// visualPropagationThreshold is the minimum whole-image similarity for
// propagating a visual match from a previously annotated image.
const visualPropagationThreshold = 0.7

// imageMatcher scans image-kind and visual-kind patterns of a corpus record.
type imageMatcher struct{}

func (imageMatcher) kind() PatternKind { return PatternImage }

func (imageMatcher) match(content *CandidateContent, record *AnnotationRecord) []MatchCandidate {
	var candidates []MatchCandidate

	for _, pattern := range record.Annotations {
		switch pattern.Kind {
		case PatternImage:
			if pattern.Image == nil || pattern.Image.OCRText == "" {
				continue
			}
			if c, ok := matchOCRRegion(content, record, pattern.Image); ok {
				candidates = append(candidates, c)
			}
		case PatternVisual:
			if pattern.Visual == nil {
				continue
			}
			if c, ok := matchVisualRegion(content, record, pattern.Visual); ok {
				candidates = append(candidates, c)
			}
		}
	}
	return candidates
}

// matchOCRRegion correlates one stored OCR annotation with the candidate's
// OCR boxes: the annotation's bounding box must overlap a detected box, and
// among overlapping boxes the single best text match wins.
func matchOCRRegion(content *CandidateContent, record *AnnotationRecord, pattern *ImagePattern) (MatchCandidate, bool) {
	if len(content.OCRBoxes) == 0 {
		return MatchCandidate{}, false
	}

	patternText := strings.ToLower(pattern.OCRText)

	bestScore := 0.0
	bestText := ""
	for _, box := range content.OCRBoxes {
		bounds := polygonBounds(box.Vertices)
		if !BoxesOverlap(pattern.BoundingBox, bounds) {
			continue
		}

		score := WordMatchScore(patternText, strings.ToLower(box.Text))
		if score > bestScore {
			bestScore = score
			bestText = box.Text
		}
	}

	if bestScore == 0 {
		return MatchCandidate{}, false
	}

	box := pattern.BoundingBox
	return MatchCandidate{
		DataID:       record.DataID,
		RuleID:       record.Rule.ID,
		CategoryID:   record.Rule.CategoryID,
		Confidence:   clamp01(bestScore),
		EvidenceKind: PatternImage,
		MatchType:    MatchTypePartial,
		Snippet:      bestText,
		BoundingBox:  &box,
	}, true
}

// matchVisualRegion routes a visual annotation through the feature
// comparator. The cropped candidate region has to contain a meaningful
// visual element, and the match is propagated from the stored record's
// whole-image features when their similarity clears the threshold. With an
// object detector in play, a label hit on a detected object also qualifies.
func matchVisualRegion(content *CandidateContent, record *AnnotationRecord, pattern *VisualPattern) (MatchCandidate, bool) {
	if len(content.ImageData) == 0 {
		return MatchCandidate{}, false
	}

	regionFeatures, err := ExtractRegionFeatures(content.ImageData, pattern.BoundingBox)
	if err != nil {
		return MatchCandidate{}, false
	}
	if !IsMeaningfulRegion(regionFeatures, content.DetectorAvailable) {
		return MatchCandidate{}, false
	}

	box := pattern.BoundingBox
	candidate := MatchCandidate{
		DataID:       record.DataID,
		RuleID:       record.Rule.ID,
		CategoryID:   record.Rule.CategoryID,
		EvidenceKind: PatternVisual,
		Snippet:      pattern.Label,
		BoundingBox:  &box,
	}

	// Whole-image propagation against the stored record's feature vector.
	if record.Features != nil && content.imageFeatures != nil {
		comparison := CompareImages(content.imageFeatures, record.Features)
		if comparison.Similarity >= visualPropagationThreshold {
			candidate.Confidence = clamp01(comparison.Similarity)
			candidate.MatchType = "visual_propagation"
			return candidate, true
		}
	}

	// Detector-backed label match.
	if content.DetectorAvailable && pattern.Label != "" {
		label := strings.ToLower(pattern.Label)
		for _, obj := range content.DetectedObjects {
			objLabel := strings.ToLower(obj.Label)
			if objLabel == "" {
				continue
			}
			if strings.Contains(objLabel, label) || strings.Contains(label, objLabel) {
				candidate.Confidence = clamp01(obj.Confidence)
				candidate.MatchType = "label"
				candidate.Snippet = obj.Label
				return candidate, true
			}
		}
	}

	return MatchCandidate{}, false
}

// polygonBounds computes the axis-aligned bounds of a 4-vertex OCR polygon.
func polygonBounds(vertices []Vertex) BoundingBox {
	if len(vertices) == 0 {
		return BoundingBox{}
	}

	minX, minY := vertices[0].X, vertices[0].Y
	maxX, maxY := vertices[0].X, vertices[0].Y
	for _, v := range vertices[1:] {
		if v.X < minX {
			minX = v.X
		}
		if v.X > maxX {
			maxX = v.X
		}
		if v.Y < minY {
			minY = v.Y
		}
		if v.Y > maxY {
			maxY = v.Y
		}
	}
	return BoundingBox{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// BoxesOverlap reports standard axis-aligned rectangle intersection: the
// boxes overlap unless they are fully disjoint on either axis.
func BoxesOverlap(a, b BoundingBox) bool {
	if a.X+a.Width < b.X || b.X+b.Width < a.X {
		return false
	}
	if a.Y+a.Height < b.Y || b.Y+b.Height < a.Y {
		return false
	}
	return true
}
