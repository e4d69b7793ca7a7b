package service

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// maxDimensions bounds each image type before resizing is recommended.
var maxDimensions = map[string]dimensions{
	"product":    {2048, 2048},
	"collection": {1920, 1080},
	"banner":     {2400, 1200},
	"thumbnail":  {600, 600},
	"default":    {1920, 1920},
}

// compressionRatios are conservative size-after-compression estimates.
var compressionRatios = map[string]float64{
	"JPG":  0.75,
	"JPEG": 0.75,
	"PNG":  0.85,
	"WEBP": 0.70,
	"AVIF": 0.60,
	"GIF":  0.90,
	"SVG":  0.95,
}

const (
	defaultCompressionRatio = 0.80
	webpThreshold           = 500000
	webpSavingsRatio        = 0.4
)

// Recommendation is one suggested optimization.
type Recommendation struct {
	Type           string  `json:"type"` // resize, compression, format
	Description    string  `json:"description"`
	Savings        float64 `json:"savings"`
	SavingsPercent int     `json:"savingsPercent"`
}

// Savings is the estimate for one image.
type Savings struct {
	OriginalSize           int64            `json:"originalSize"`
	EstimatedOptimizedSize int64            `json:"estimatedOptimizedSize"`
	CompressionSavings     int64            `json:"compressionSavings"`
	ResizeSavings          int64            `json:"resizeSavings"`
	TotalSavings           int64            `json:"totalSavings"`
	SavingsPercent         int              `json:"savingsPercent"`
	NewDimensions          dimensions       `json:"newDimensions"`
	NeedsResize            bool             `json:"needsResize"`
	CompressionRatio       float64          `json:"compressionRatio,omitempty"`
	Recommendations        []Recommendation `json:"recommendations"`
}

// OptimizedImage pairs an analyzed image with its estimate.
type OptimizedImage struct {
	AnalyzedImage
	Optimization Savings `json:"optimization"`
}

// OptimizationSummary totals the estimates.
type OptimizationSummary struct {
	TotalImages            int    `json:"totalImages"`
	OptimizableImages      int    `json:"optimizableImages"`
	ResizableImages        int    `json:"resizableImages"`
	TotalOriginalSize      int64  `json:"totalOriginalSize"`
	TotalOptimizedSize     int64  `json:"totalOptimizedSize"`
	TotalSavings           int64  `json:"totalSavings"`
	TotalSavingsPercent    int    `json:"totalSavingsPercent"`
	CompressionSavings     int64  `json:"compressionSavings"`
	ResizeSavings          int64  `json:"resizeSavings"`
	FormattedOriginalSize  string `json:"formattedOriginalSize"`
	FormattedOptimizedSize string `json:"formattedOptimizedSize"`
	FormattedSavings       string `json:"formattedSavings"`
}

// OptimizationReport is the response of an optimization estimate.
type OptimizationReport struct {
	Images  []OptimizedImage    `json:"images"`
	Summary OptimizationSummary `json:"summary"`
}

// EstimateSavings estimates what resizing and recompressing img would save.
// Nothing is re-encoded. Images without size or dimensions get no estimate.
func EstimateSavings(img AnalyzedImage) Savings {
	original := img.Size
	fileType := strings.ToUpper(img.Type)
	if fileType == "" {
		fileType = "UNKNOWN"
	}
	width, height := img.Width, img.Height

	if original == 0 || width == 0 || height == 0 {
		return Savings{
			OriginalSize:           original,
			EstimatedOptimizedSize: original,
			NewDimensions:          dimensions{width, height},
			Recommendations:        []Recommendation{},
		}
	}

	limit, ok := maxDimensions[img.ImageType]
	if !ok {
		limit = maxDimensions["default"]
	}

	ratio := 1.0
	newWidth, newHeight := width, height
	if width > limit.Width || height > limit.Height {
		ratio = math.Min(float64(limit.Width)/float64(width), float64(limit.Height)/float64(height))
		newWidth = int(math.Round(float64(width) * ratio))
		newHeight = int(math.Round(float64(height) * ratio))
	}

	size := float64(original)
	resizeSavings := size * (1 - ratio*ratio)
	afterResize := size - resizeSavings

	compressionRatio, ok := compressionRatios[fileType]
	if !ok {
		compressionRatio = defaultCompressionRatio
	}
	compressionSavings := afterResize * (1 - compressionRatio)
	total := resizeSavings + compressionSavings

	recs := []Recommendation{}
	if resizeSavings > 0 {
		recs = append(recs, Recommendation{
			Type:           "resize",
			Description:    fmt.Sprintf("Resize from %d×%d to %d×%d", width, height, newWidth, newHeight),
			Savings:        resizeSavings,
			SavingsPercent: percent(resizeSavings, size),
		})
	}
	if compressionSavings > 0 {
		recs = append(recs, Recommendation{
			Type:           "compression",
			Description:    "Apply lossless compression to " + fileType,
			Savings:        compressionSavings,
			SavingsPercent: percent(compressionSavings, size),
		})
	}
	if fileType == "PNG" && original > webpThreshold {
		webp := size * webpSavingsRatio
		recs = append(recs, Recommendation{
			Type:           "format",
			Description:    "Convert PNG to WebP format",
			Savings:        webp,
			SavingsPercent: percent(webp, size),
		})
	}

	return Savings{
		OriginalSize:           original,
		EstimatedOptimizedSize: int64(math.Round(afterResize - compressionSavings)),
		CompressionSavings:     int64(math.Round(compressionSavings)),
		ResizeSavings:          int64(math.Round(resizeSavings)),
		TotalSavings:           int64(math.Round(total)),
		SavingsPercent:         percent(total, size),
		NewDimensions:          dimensions{newWidth, newHeight},
		NeedsResize:            ratio < 1,
		CompressionRatio:       compressionRatio,
		Recommendations:        recs,
	}
}

// Optimize estimates savings for every image and totals them.
func Optimize(images []AnalyzedImage) *OptimizationReport {
	report := &OptimizationReport{Images: make([]OptimizedImage, 0, len(images))}
	sum := &report.Summary
	sum.TotalImages = len(images)

	for _, img := range images {
		est := EstimateSavings(img)
		sum.TotalOriginalSize += est.OriginalSize
		sum.TotalOptimizedSize += est.EstimatedOptimizedSize
		sum.CompressionSavings += est.CompressionSavings
		sum.ResizeSavings += est.ResizeSavings
		if est.TotalSavings > 0 {
			sum.OptimizableImages++
		}
		if est.NeedsResize {
			sum.ResizableImages++
		}
		report.Images = append(report.Images, OptimizedImage{AnalyzedImage: img, Optimization: est})
	}

	sum.TotalSavings = sum.CompressionSavings + sum.ResizeSavings
	if sum.TotalOriginalSize > 0 {
		sum.TotalSavingsPercent = percent(float64(sum.TotalSavings), float64(sum.TotalOriginalSize))
	}
	sum.FormattedOriginalSize = FormatBytes(sum.TotalOriginalSize)
	sum.FormattedOptimizedSize = FormatBytes(sum.TotalOptimizedSize)
	sum.FormattedSavings = FormatBytes(sum.TotalSavings)
	return report
}

func percent(part, whole float64) int {
	return int(math.Round(part / whole * 100))
}

// FormatBytes renders n as "1.5 MB" with at most two decimals.
func FormatBytes(n int64) string {
	if n <= 0 {
		return "0 Bytes"
	}
	units := []string{"Bytes", "KB", "MB", "GB"}
	v, i := float64(n), 0
	for v >= 1024 && i < len(units)-1 {
		v /= 1024
		i++
	}
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64) + " " + units[i]
}
