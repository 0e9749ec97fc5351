/**
 * Categorization Engine
 *
 * Selects the matcher for the detected modality, fans the corpus scan out
 * over a worker pool, and aggregates the scored candidates into one category
 * decision.
 *
 * Scanning is pure: every comparison reads immutable inputs and produces
 * candidates independently, so the parallel scan needs no locking beyond the
 * fan-in. Candidates are re-assembled in corpus order to keep results
 * deterministic.
 */

package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/adverant/nexus/categorize-worker/internal/logging"
)

// modalityMatcher scans one corpus record for one modality.
type modalityMatcher interface {
	kind() PatternKind
	match(content *CandidateContent, record *AnnotationRecord) []MatchCandidate
}

// Engine runs analysis requests against an annotation corpus.
type Engine struct {
	logger      *logging.Logger
	scanWorkers int
}

// Option configures an Engine.
type Option func(*Engine)

// WithScanWorkers sets the corpus scan fan-out width.
func WithScanWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.scanWorkers = n
		}
	}
}

// NewEngine creates an engine with the default scan fan-out.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		logger:      logging.NewLogger("Engine"),
		scanWorkers: 8,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Analyze runs one synchronous categorization request. Extraction failures
// upstream arrive here as empty content and produce a well-formed
// uncategorized result; only an unsupported file type is an error.
func (e *Engine) Analyze(ctx context.Context, req *AnalysisRequest) (*AnalysisResult, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}

	matcher, err := matcherFor(req.FileType)
	if err != nil {
		return nil, err
	}

	startTime := time.Now()

	content := req.Content
	if content == nil {
		content = &CandidateContent{}
	}

	// Whole-image features are computed once and reused across every corpus
	// comparison; a decode failure degrades to region-only matching.
	if req.FileType == FileTypeImage && len(content.ImageData) > 0 && content.imageFeatures == nil {
		features, ferr := ExtractFeatures(content.ImageData)
		if ferr != nil {
			e.logger.Warn("Failed to extract candidate image features, continuing without propagation", "error", ferr)
		} else {
			content.imageFeatures = features
		}
	}

	malformed := countMalformedPatterns(req.Corpus, matcher.kind())
	if malformed > 0 {
		e.logger.Warn("Skipping malformed stored patterns", "kind", matcher.kind(), "count", malformed)
	}

	candidates, err := e.scanCorpus(ctx, matcher, content, req.Corpus)
	if err != nil {
		return nil, err
	}

	result := Aggregate(candidates, req.Dir)
	result.Raw = map[string]interface{}{
		"matcher":          string(matcher.kind()),
		"corpusSize":       len(req.Corpus),
		"candidateCount":   len(candidates),
		"malformedSkipped": malformed,
		"durationMs":       time.Since(startTime).Milliseconds(),
	}

	e.logger.Info("Analysis complete",
		"fileType", req.FileType,
		"category", result.Category,
		"confidence", fmt.Sprintf("%.4f", result.Confidence),
		"matches", len(result.Matches))

	return result, nil
}

// scanCorpus fans record scanning out over the worker pool and collects the
// per-record candidates back in corpus order.
func (e *Engine) scanCorpus(ctx context.Context, matcher modalityMatcher, content *CandidateContent, corpus []AnnotationRecord) ([]MatchCandidate, error) {
	if len(corpus) == 0 {
		return nil, nil
	}

	workers := e.scanWorkers
	if workers > len(corpus) {
		workers = len(corpus)
	}

	perRecord := make([][]MatchCandidate, len(corpus))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				perRecord[i] = matcher.match(content, &corpus[i])
			}
		}()
	}

	var scanErr error
feed:
	for i := range corpus {
		select {
		case jobs <- i:
		case <-ctx.Done():
			scanErr = ctx.Err()
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if scanErr != nil {
		return nil, fmt.Errorf("corpus scan cancelled: %w", scanErr)
	}

	var candidates []MatchCandidate
	for _, recordCandidates := range perRecord {
		candidates = append(candidates, recordCandidates...)
	}
	return candidates, nil
}

// matcherFor selects the modality matcher for a detected file type.
func matcherFor(fileType FileType) (modalityMatcher, error) {
	switch fileType {
	case FileTypeImage:
		return imageMatcher{}, nil
	case FileTypePDF:
		return pdfMatcher{}, nil
	case FileTypeJSON:
		return jsonMatcher{}, nil
	case FileTypeAudio:
		return audioMatcher{}, nil
	default:
		return nil, fmt.Errorf("unsupported file type: %q", fileType)
	}
}

// countMalformedPatterns counts stored patterns of the active kind that are
// missing their required fields. Matchers skip them; this only surfaces the
// count in logs and diagnostics.
func countMalformedPatterns(corpus []AnnotationRecord, kind PatternKind) int {
	malformed := 0
	for _, record := range corpus {
		for _, pattern := range record.Annotations {
			if pattern.Kind != kind && !(kind == PatternImage && pattern.Kind == PatternVisual) {
				continue
			}
			if !patternWellFormed(pattern) {
				malformed++
			}
		}
	}
	return malformed
}

func patternWellFormed(p AnnotationPattern) bool {
	switch p.Kind {
	case PatternImage:
		return p.Image != nil && p.Image.OCRText != ""
	case PatternVisual:
		return p.Visual != nil
	case PatternPDF:
		return p.PDF != nil && p.PDF.KeywordText != ""
	case PatternJSON:
		return p.JSON != nil && (p.JSON.JSONKey != "" || p.JSON.JSONValue != "")
	case PatternAudioSegment:
		return p.AudioSegment != nil && (p.AudioSegment.Text != "" || p.AudioSegment.KeywordText != "")
	default:
		return false
	}
}
