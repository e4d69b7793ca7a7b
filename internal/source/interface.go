package source

import (
	"context"

	"github.com/timmy/shopmedia/internal/domain"
	"github.com/timmy/shopmedia/internal/logger"
	"github.com/timmy/shopmedia/internal/shopify"
)

// Source extracts the images of one Shopify resource type.
type Source interface {
	// Category returns the category every emitted record carries.
	Category() domain.Category

	// GetDisplayName returns a human-readable name for logs.
	GetDisplayName() string

	// Extract lists the resource through client and returns its images.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	//   - client: session bound to the shop being scanned.
	// Returns:
	//   - []domain.ImageRecord: records with validated URLs only.
	//   - error: non-nil when the resource could not be listed at all.
	Extract(ctx context.Context, client *shopify.Client) ([]domain.ImageRecord, error)
}

// Append adds rec unless its URL fails validation.
func Append(records []domain.ImageRecord, rec domain.ImageRecord) []domain.ImageRecord {
	if !domain.ValidateImageURL(rec.URL) {
		return records
	}
	return append(records, rec)
}

// NotePartial logs a truncated listing. Its items are still used.
func NotePartial[T any](ctx context.Context, what string, listing *shopify.Listing[T]) {
	if listing == nil || !listing.Partial {
		return
	}
	logger.With(logger.Fields{
		logger.FieldPages: listing.Pages,
		logger.FieldCount: len(listing.Items),
	}).Warn(ctx, "%s listing is partial", what)
}
