/**
 * Core Types - Shared data structures for the categorization engine
 *
 * The annotation corpus is read-only input: records and patterns are never
 * mutated during a scan. CandidateContent and MatchCandidate live for the
 * duration of a single analysis request.
 */

package engine

// FileType identifies the modality of a candidate file.
type FileType string

const (
	FileTypeImage FileType = "image"
	FileTypePDF   FileType = "pdf"
	FileTypeJSON  FileType = "json"
	FileTypeAudio FileType = "audio"
)

// PatternKind tags the variant of an AnnotationPattern.
type PatternKind string

const (
	PatternImage        PatternKind = "image"
	PatternVisual       PatternKind = "visual"
	PatternPDF          PatternKind = "pdf"
	PatternJSON         PatternKind = "json"
	PatternAudioSegment PatternKind = "audio_segment"
)

// BoundingBox represents an axis-aligned rectangle in pixel coordinates.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Vertex is a single point of an OCR polygon.
type Vertex struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// AnnotationPattern is a tagged union: exactly one variant is set, selected
// by Kind. Matchers switch on the tag instead of probing optional fields.
type AnnotationPattern struct {
	Kind PatternKind `json:"kind"`

	Image        *ImagePattern        `json:"image,omitempty"`
	Visual       *VisualPattern       `json:"visual,omitempty"`
	PDF          *PDFPattern          `json:"pdf,omitempty"`
	JSON         *JSONPattern         `json:"json,omitempty"`
	AudioSegment *AudioSegmentPattern `json:"audioSegment,omitempty"`
}

// ImagePattern is an OCR-text annotation on an image region.
type ImagePattern struct {
	OCRText       string      `json:"ocrText"`
	BoundingBox   BoundingBox `json:"boundingBox"`
	OCRConfidence float64     `json:"ocrConfidence"`
}

// VisualPattern is a labeled visual element (logo, object) without OCR text.
type VisualPattern struct {
	BoundingBox BoundingBox `json:"boundingBox"`
	Label       string      `json:"label"`
}

// PDFPattern is a keyword annotation on extracted PDF text.
type PDFPattern struct {
	KeywordText string `json:"keywordText"`
}

// JSONPattern is a key/value annotation on flattened JSON content.
type JSONPattern struct {
	JSONKey   string `json:"jsonKey"`
	JSONValue string `json:"jsonValue"`
}

// AudioSegmentPattern is an annotated span of a transcript. KeywordText is an
// optional secondary phrase carried over from the annotation workflow.
type AudioSegmentPattern struct {
	Text        string  `json:"text"`
	KeywordText string  `json:"keywordText,omitempty"`
	StartTime   float64 `json:"startTime"`
	EndTime     float64 `json:"endTime"`
}

// AnnotationRule links a record to its category.
type AnnotationRule struct {
	ID         string `json:"id"`
	CategoryID string `json:"categoryId"`
}

// AnnotationRecord is one immutable corpus entry: a previously annotated file
// with its category-linked patterns. Features is the precomputed perceptual
// feature vector of the annotated image, when the source file was an image;
// it enables whole-image match propagation.
type AnnotationRecord struct {
	DataID      string              `json:"dataId"`
	Rule        AnnotationRule      `json:"rule"`
	Annotations []AnnotationPattern `json:"annotations"`
	Type        FileType            `json:"type"`
	Features    *ImageFeatures      `json:"features,omitempty"`
}

// OCRBox is one OCR-detected text fragment with its 4-vertex polygon.
type OCRBox struct {
	Text     string   `json:"text"`
	Vertices []Vertex `json:"vertices"`
}

// DetectedObject is one object/logo detection on the candidate image.
type DetectedObject struct {
	Label       string      `json:"label"`
	Confidence  float64     `json:"confidence"`
	BoundingBox BoundingBox `json:"boundingBox"`
}

// KeyValue is one flattened JSON path/value pair.
type KeyValue struct {
	Path  string `json:"path"`
	Value string `json:"value"`
}

// CandidateContent holds the extracted content of the file being categorized.
// Only the fields for the active modality are populated; extraction failures
// leave them empty rather than failing the request.
type CandidateContent struct {
	// Image modality
	OCRText           string           `json:"ocrText,omitempty"`
	OCRBoxes          []OCRBox         `json:"ocrBoxes,omitempty"`
	DetectedObjects   []DetectedObject `json:"detectedObjects,omitempty"`
	ImageData         []byte           `json:"-"`
	DetectorAvailable bool             `json:"detectorAvailable,omitempty"`

	// PDF modality
	ExtractedText string   `json:"extractedText,omitempty"`
	Pages         []string `json:"pages,omitempty"`

	// JSON modality
	KeyValues []KeyValue `json:"keyValues,omitempty"`

	// Audio modality
	TranscriptWords []string `json:"transcriptWords,omitempty"`

	// Whole-image feature vector, computed once per request by the engine
	// and reused across all corpus comparisons.
	imageFeatures *ImageFeatures
}

// MatchCandidate is one scored piece of evidence linking the candidate file
// to a category via a stored pattern.
type MatchCandidate struct {
	DataID       string       `json:"dataId"`
	RuleID       string       `json:"ruleId"`
	CategoryID   string       `json:"categoryId"`
	Confidence   float64      `json:"confidence"`
	EvidenceKind PatternKind  `json:"evidenceKind"`
	MatchType    string       `json:"matchType,omitempty"`
	Snippet      string       `json:"snippet,omitempty"`
	BoundingBox  *BoundingBox `json:"boundingBox,omitempty"`
	Page         int          `json:"page,omitempty"`
	StartTime    float64      `json:"startTime,omitempty"`
	EndTime      float64      `json:"endTime,omitempty"`
}

// CategoryDirectory resolves category IDs to display names. Implementations
// must be request-scoped snapshots, never hidden module-level singletons.
type CategoryDirectory interface {
	Name(categoryID string) (string, bool)
}

// AnalysisRequest is the in-process engine contract input.
type AnalysisRequest struct {
	FileType FileType
	Content  *CandidateContent
	Corpus   []AnnotationRecord
	Dir      CategoryDirectory
}

// AnalysisResult is the sole engine output, handed to the persistence layer.
type AnalysisResult struct {
	Category   string                 `json:"category"`
	Confidence float64                `json:"confidence"`
	Matches    []MatchCandidate       `json:"matches"`
	Raw        map[string]interface{} `json:"raw,omitempty"`
}

// CategoryUncategorized is returned when no evidence links the candidate to
// any category.
const CategoryUncategorized = "uncategorized"

// clamp01 bounds a confidence value to [0,1] and maps NaN to 0.
func clamp01(v float64) float64 {
	if v != v { // NaN
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
