package service

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/timmy/shopmedia/internal/domain"
	"github.com/timmy/shopmedia/internal/logger"
	"github.com/timmy/shopmedia/internal/shopify"
	"github.com/timmy/shopmedia/internal/source"
)

// MediaService aggregates the images of a store across every source.
type MediaService struct {
	gateway    *shopify.Gateway
	sources    []source.Source
	concurrent bool
	logger     *logger.Logger
}

// MediaConfig holds configuration for the media service.
type MediaConfig struct {
	Concurrent bool // run sources in parallel; they still share the throttle
}

// NewMediaService creates a new media service.
func NewMediaService(gateway *shopify.Gateway, sources []source.Source, log *logger.Logger, cfg *MediaConfig) *MediaService {
	if cfg == nil {
		cfg = &MediaConfig{}
	}
	return &MediaService{
		gateway:    gateway,
		sources:    sources,
		concurrent: cfg.Concurrent,
		logger:     log,
	}
}

func (s *MediaService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

type sourceOutcome struct {
	records []domain.ImageRecord
	err     error
}

// Aggregate runs every source against the store and merges their records.
// A failing source is listed in Skipped and never stops the others, so the
// only error returned is for an unusable credential.
func (s *MediaService) Aggregate(ctx context.Context, cred domain.Credential) (*domain.AggregationResult, error) {
	cred, err := domain.NewCredential(cred.Shop, cred.AccessToken)
	if err != nil {
		return nil, err
	}
	ctx = logger.SetShop(logger.SetComponent(ctx, "aggregator"), cred.Shop)
	client := s.gateway.Session(cred)
	start := time.Now()

	outcomes := make([]sourceOutcome, len(s.sources))
	if s.concurrent {
		var g errgroup.Group
		for i := range s.sources {
			i := i
			g.Go(func() error {
				outcomes[i] = s.runSource(ctx, client, s.sources[i])
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i := range s.sources {
			outcomes[i] = s.runSource(ctx, client, s.sources[i])
		}
	}

	result := &domain.AggregationResult{
		Images:  []domain.ImageRecord{},
		Skipped: []domain.Category{},
		Stats:   domain.NewStats(),
	}
	dropped := 0
	for i, out := range outcomes {
		if out.err != nil {
			result.Skipped = append(result.Skipped, s.sources[i].Category())
			continue
		}
		for _, rec := range out.records {
			if !rec.Valid() {
				dropped++
				continue
			}
			result.Images = append(result.Images, rec)
			result.Stats.Categories[rec.Category]++
		}
	}
	result.Stats.TotalFiles = len(result.Images)

	s.log(ctx).WithFields(logger.Fields{
		"total":    result.Stats.TotalFiles,
		"skipped":  result.Skipped,
		"dropped":  dropped,
		"duration": time.Since(start).String(),
	}).Info("Media aggregation completed")

	return result, nil
}

// runSource extracts one source, turning a panic into an error.
func (s *MediaService) runSource(ctx context.Context, client *shopify.Client, src source.Source) (out sourceOutcome) {
	ctx = logger.SetCategory(ctx, string(src.Category()))
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			out = sourceOutcome{err: fmt.Errorf("%s panicked: %v", src.GetDisplayName(), r)}
			s.log(ctx).WithField("panic", r).Error("Source panicked, skipping")
		}
	}()

	records, err := src.Extract(ctx, client)
	if err != nil {
		s.log(ctx).WithError(err).Warnf("Skipping %s", src.GetDisplayName())
		return sourceOutcome{err: err}
	}

	logger.With(logger.Fields{logger.FieldCount: len(records)}).
		WithDuration(time.Since(start)).
		Info(ctx, "Extracted %s", src.GetDisplayName())
	return sourceOutcome{records: records}
}
