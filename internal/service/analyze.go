package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/timmy/shopmedia/internal/domain"
	"github.com/timmy/shopmedia/internal/logger"
)

// AnalyzedImage is an image record with measured size and dimensions.
type AnalyzedImage struct {
	URL      string          `json:"url"`
	Category domain.Category `json:"category"`
	Alt      string          `json:"alt,omitempty"`
	MimeType string          `json:"mimeType,omitempty"`
	domain.SideData

	Size          int64  `json:"size"`
	SizeFormatted string `json:"sizeFormatted"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	IsLarge       bool   `json:"isLarge"`
	Type          string `json:"type"`      // JPEG, PNG, WEBP ...
	ImageType     string `json:"imageType"` // product, collection, banner, thumbnail
	AspectRatio   string `json:"aspectRatio"`
	TotalPixels   int    `json:"totalPixels"`
}

// AnalyzeService downloads images to measure them.
type AnalyzeService struct {
	fetcher        *Fetcher
	workers        int
	largeThreshold int64
	logger         *logger.Logger
}

// AnalyzeConfig holds configuration for the analyze service.
type AnalyzeConfig struct {
	Workers        int
	LargeThreshold int64 // bytes above which an image is flagged large
}

// NewAnalyzeService creates a new analyze service.
func NewAnalyzeService(fetcher *Fetcher, log *logger.Logger, cfg *AnalyzeConfig) *AnalyzeService {
	c := AnalyzeConfig{}
	if cfg != nil {
		c = *cfg
	}
	if c.Workers <= 0 {
		c.Workers = 5
	}
	if c.LargeThreshold <= 0 {
		c.LargeThreshold = 1024 * 1024
	}
	return &AnalyzeService{
		fetcher:        fetcher,
		workers:        c.Workers,
		largeThreshold: c.LargeThreshold,
		logger:         log,
	}
}

func (s *AnalyzeService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// Analyze measures every image. An image that cannot be downloaded or
// decoded is returned with zero size and dimensions; the call itself does
// not fail. Results keep the input order.
func (s *AnalyzeService) Analyze(ctx context.Context, images []domain.ImageRecord) []AnalyzedImage {
	start := time.Now()
	results := make([]AnalyzedImage, len(images))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i := range images {
		i := i
		g.Go(func() error {
			results[i] = s.analyzeOne(gctx, images[i])
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if r.Size == 0 {
			failed++
		}
	}
	logger.With(logger.Fields{
		logger.FieldCount: len(results),
		"failed":          failed,
	}).WithDuration(time.Since(start)).Info(ctx, "Analyzed images")
	return results
}

func (s *AnalyzeService) analyzeOne(ctx context.Context, rec domain.ImageRecord) AnalyzedImage {
	out := AnalyzedImage{
		URL:           rec.URL,
		Category:      rec.Category,
		Alt:           rec.Alt,
		MimeType:      rec.MimeType,
		SideData:      rec.SideData(),
		SizeFormatted: "Unknown",
		Type:          typeFromURL(rec.URL),
		ImageType:     "product",
		AspectRatio:   "unknown",
	}

	data, err := s.fetcher.Fetch(ctx, rec.URL)
	if err != nil {
		s.log(ctx).WithError(err).WithField(logger.FieldURL, rec.URL).Warn("Failed to analyze image")
		return out
	}

	out.Size = int64(len(data))
	out.SizeFormatted = FormatBytes(out.Size)
	out.IsLarge = out.Size > s.largeThreshold
	out.ImageType = imageTypeFor(rec.Category, rec.URL)

	info, err := inspectImage(data)
	if err != nil {
		s.log(ctx).WithError(err).WithField(logger.FieldURL, rec.URL).Debug("Could not decode image header")
		return out
	}
	if info.Format != "svg" {
		out.Type = strings.ToUpper(info.Format)
	}
	if out.MimeType == "" {
		out.MimeType = info.MimeType
	}
	out.Width, out.Height = info.Width, info.Height
	out.TotalPixels = info.Width * info.Height
	if info.Width > 0 && info.Height > 0 {
		out.AspectRatio = strconv.FormatFloat(float64(info.Width)/float64(info.Height), 'f', 2, 64)
	}
	return out
}

// imageTypeFor picks the size class used by the optimizer.
func imageTypeFor(category domain.Category, rawURL string) string {
	switch category {
	case domain.CategoryCollections:
		return "collection"
	case domain.CategoryTheme:
		u := strings.ToLower(rawURL)
		if containsAny(u, "banner", "hero", "slider") {
			return "banner"
		}
		if containsAny(u, "thumb", "icon", "logo") {
			return "thumbnail"
		}
		return "banner"
	}
	return "product"
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
