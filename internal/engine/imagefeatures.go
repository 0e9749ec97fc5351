/**
 * Image Feature Extractor & Comparator
 *
 * Pure numeric functions: decode an image buffer into a perceptual feature
 * vector (hash, average color, edge density, texture complexity, grayscale
 * histogram) and score pairwise similarity between two vectors.
 *
 * All features are computed on a fixed 64x64 canonical grid with alpha
 * dropped, so buffers of any size compare on equal footing.
 */

package engine

import (
	"bytes"
	"fmt"
	"image"
	"math"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

const canonicalSize = 64

// ImageFeatures is the perceptual feature vector of a canonicalized image.
type ImageFeatures struct {
	Hash              float64      `json:"hash"`
	AverageColor      RGB          `json:"averageColor"`
	EdgeDensity       float64      `json:"edgeDensity"`
	TextureComplexity float64      `json:"textureComplexity"`
	Histogram         [256]float64 `json:"histogram"`
}

// RGB holds per-channel mean values in the 0-255 range.
type RGB struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
}

// ImageComparison is the per-term breakdown of a pairwise similarity score.
type ImageComparison struct {
	Similarity        float64 `json:"similarity"`
	FeatureDistance   float64 `json:"featureDistance"`
	ColorDistance     float64 `json:"colorDistance"`
	EdgeSimilarity    float64 `json:"edgeSimilarity"`
	TextureSimilarity float64 `json:"textureSimilarity"`
}

// ExtractFeatures decodes an image buffer and computes its feature vector.
// Returns an error only when the buffer cannot be decoded; feature math has
// no failure modes.
func ExtractFeatures(imageBytes []byte) (*ImageFeatures, error) {
	if len(imageBytes) == 0 {
		return nil, fmt.Errorf("empty image buffer")
	}

	img, _, err := image.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	return extractFromImage(img), nil
}

// ExtractRegionFeatures crops the bounding box out of the image buffer and
// computes the feature vector of the cropped region. Zero-area or fully
// out-of-bounds boxes yield an error.
func ExtractRegionFeatures(imageBytes []byte, box BoundingBox) (*ImageFeatures, error) {
	if len(imageBytes) == 0 {
		return nil, fmt.Errorf("empty image buffer")
	}

	img, _, err := image.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	crop := image.Rect(box.X, box.Y, box.X+box.Width, box.Y+box.Height).Intersect(img.Bounds())
	if crop.Empty() {
		return nil, fmt.Errorf("region %dx%d at (%d,%d) is outside image bounds", box.Width, box.Height, box.X, box.Y)
	}

	region := image.NewRGBA(image.Rect(0, 0, crop.Dx(), crop.Dy()))
	draw.Draw(region, region.Bounds(), img, crop.Min, draw.Src)

	return extractFromImage(region), nil
}

func extractFromImage(img image.Image) *ImageFeatures {
	grid := canonicalize(img)

	features := &ImageFeatures{}

	totalPixels := float64(canonicalSize * canonicalSize)

	// Single pass for hash, average color and histogram.
	var sumBrightness, sumR, sumG, sumB float64
	var counts [256]int
	for y := 0; y < canonicalSize; y++ {
		for x := 0; x < canonicalSize; x++ {
			r, g, b := pixelAt(grid, x, y)
			sumR += r
			sumG += g
			sumB += b
			mean := (r + g + b) / 3.0
			sumBrightness += mean

			gray := int(math.Round(mean))
			if gray < 0 {
				gray = 0
			} else if gray > 255 {
				gray = 255
			}
			counts[gray]++
		}
	}

	features.Hash = sumBrightness / totalPixels
	features.AverageColor = RGB{
		R: sumR / totalPixels,
		G: sumG / totalPixels,
		B: sumB / totalPixels,
	}
	for i, c := range counts {
		features.Histogram[i] = float64(c) / totalPixels
	}

	// Edge density: central differences on the red channel, interior only.
	// The sum is divided by the full pixel count, border included.
	var edgeSum float64
	for y := 1; y < canonicalSize-1; y++ {
		for x := 1; x < canonicalSize-1; x++ {
			rLeft, _, _ := pixelAt(grid, x-1, y)
			rRight, _, _ := pixelAt(grid, x+1, y)
			rUp, _, _ := pixelAt(grid, x, y-1)
			rDown, _, _ := pixelAt(grid, x, y+1)

			gx := math.Abs(rRight - rLeft)
			gy := math.Abs(rDown - rUp)
			edgeSum += math.Sqrt(gx*gx + gy*gy)
		}
	}
	features.EdgeDensity = edgeSum / totalPixels

	// Texture complexity: per interior pixel, mean absolute brightness
	// difference against the 8 neighbors, again divided by the full count.
	var textureSum float64
	for y := 1; y < canonicalSize-1; y++ {
		for x := 1; x < canonicalSize-1; x++ {
			center := brightnessAt(grid, x, y)
			var diff float64
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if dx == 0 && dy == 0 {
						continue
					}
					diff += math.Abs(center - brightnessAt(grid, x+dx, y+dy))
				}
			}
			textureSum += diff / 8.0
		}
	}
	features.TextureComplexity = textureSum / totalPixels

	return features
}

// canonicalize resizes the image to the 64x64 grid and drops alpha.
func canonicalize(img image.Image) *image.RGBA {
	grid := image.NewRGBA(image.Rect(0, 0, canonicalSize, canonicalSize))
	draw.ApproxBiLinear.Scale(grid, grid.Bounds(), img, img.Bounds(), draw.Src, nil)
	return grid
}

func pixelAt(grid *image.RGBA, x, y int) (r, g, b float64) {
	i := grid.PixOffset(x, y)
	return float64(grid.Pix[i]), float64(grid.Pix[i+1]), float64(grid.Pix[i+2])
}

func brightnessAt(grid *image.RGBA, x, y int) float64 {
	r, g, b := pixelAt(grid, x, y)
	return (r + g + b) / 3.0
}

// CompareImages scores the similarity of two feature vectors. Every term is
// symmetric, so CompareImages(a, b) == CompareImages(b, a), and the weighted
// sum is clamped to [0,1].
func CompareImages(a, b *ImageFeatures) ImageComparison {
	if a == nil || b == nil {
		return ImageComparison{}
	}

	hashSimilarity := 1.0 - math.Abs(a.Hash-b.Hash)/65535.0

	colorDistance := math.Sqrt(
		(a.AverageColor.R-b.AverageColor.R)*(a.AverageColor.R-b.AverageColor.R) +
			(a.AverageColor.G-b.AverageColor.G)*(a.AverageColor.G-b.AverageColor.G) +
			(a.AverageColor.B-b.AverageColor.B)*(a.AverageColor.B-b.AverageColor.B))
	colorSimilarity := 1.0 - colorDistance/441.67

	edgeSimilarity := 1.0 - math.Abs(a.EdgeDensity-b.EdgeDensity)/math.Max(math.Max(a.EdgeDensity, b.EdgeDensity), 1.0)
	textureSimilarity := 1.0 - math.Abs(a.TextureComplexity-b.TextureComplexity)/math.Max(math.Max(a.TextureComplexity, b.TextureComplexity), 1.0)

	// Histogram intersection over union of the two frequency distributions.
	var sumMin, sumMax float64
	for i := 0; i < 256; i++ {
		sumMin += math.Min(a.Histogram[i], b.Histogram[i])
		sumMax += math.Max(a.Histogram[i], b.Histogram[i])
	}
	histogramSimilarity := 0.0
	if sumMax > 0 {
		histogramSimilarity = sumMin / sumMax
	}

	similarity := 0.30*hashSimilarity +
		0.20*colorSimilarity +
		0.20*edgeSimilarity +
		0.15*textureSimilarity +
		0.15*histogramSimilarity

	return ImageComparison{
		Similarity:        clamp01(similarity),
		FeatureDistance:   math.Abs(a.Hash - b.Hash),
		ColorDistance:     colorDistance,
		EdgeSimilarity:    clamp01(edgeSimilarity),
		TextureSimilarity: clamp01(textureSimilarity),
	}
}

// Meaningful-region thresholds. The stricter set applies when an external
// object/logo detector is available to catch what the heuristic misses; the
// lower set applies when the heuristic is the only signal.
const (
	textureThresholdWithDetector = 50.0
	edgeThresholdWithDetector    = 20.0
	binThresholdWithDetector     = 0.1

	textureThresholdStandalone = 30.0
	edgeThresholdStandalone    = 15.0
	binThresholdStandalone     = 0.05
)

// IsMeaningfulRegion reports whether a cropped region contains enough visual
// structure to be worth matching against visual annotations.
func IsMeaningfulRegion(f *ImageFeatures, detectorAvailable bool) bool {
	if f == nil {
		return false
	}

	texture := textureThresholdStandalone
	edges := edgeThresholdStandalone
	bin := binThresholdStandalone
	if detectorAvailable {
		texture = textureThresholdWithDetector
		edges = edgeThresholdWithDetector
		bin = binThresholdWithDetector
	}

	if f.TextureComplexity > texture || f.EdgeDensity > edges {
		return true
	}
	for _, freq := range f.Histogram {
		if freq > bin {
			return true
		}
	}
	return false
}
