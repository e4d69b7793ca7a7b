package product

import (
	"context"
	"fmt"

	"github.com/timmy/shopmedia/internal/domain"
	"github.com/timmy/shopmedia/internal/logger"
	"github.com/timmy/shopmedia/internal/shopify"
	"github.com/timmy/shopmedia/internal/source"
)

// Adapter lists every product image of the store.
type Adapter struct {
	pageSize int
}

// NewAdapter creates a product image source.
// Parameters:
//   - pageSize: products requested per page, at most 250.
//
// Returns:
//   - *Adapter: initialized product source.
func NewAdapter(pageSize int) *Adapter {
	if pageSize <= 0 || pageSize > 250 {
		pageSize = 250
	}
	return &Adapter{pageSize: pageSize}
}

func (a *Adapter) Category() domain.Category {
	return domain.CategoryProducts
}

func (a *Adapter) GetDisplayName() string {
	return "Product images"
}

// Extract pages through product ids, then fetches each product's images.
// A product whose images cannot be fetched is skipped.
func (a *Adapter) Extract(ctx context.Context, client *shopify.Client) ([]domain.ImageRecord, error) {
	pager := client.Pager()
	listing, err := shopify.Collect(ctx, pager,
		shopify.LinkPages[shopify.Product](client, fmt.Sprintf("products.json?limit=%d&fields=id", a.pageSize), "products"))
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	source.NotePartial(ctx, "products", listing)

	var (
		records []domain.ImageRecord
		failed  int
	)
	for _, p := range listing.Items {
		images, err := Images(ctx, client, pager, p.ID)
		if err != nil {
			failed++
			logger.FromContext(ctx).WithError(err).Warnf("Skipping images of product %d", p.ID)
			continue
		}
		for _, img := range images {
			rec := domain.NewImageRecord(img.Src, domain.ProductSource{ProductID: p.ID, ImageID: img.ID})
			rec.Alt = img.Alt
			records = source.Append(records, rec)
		}
	}

	logger.With(logger.Fields{
		logger.FieldCount: len(records),
		"products":        len(listing.Items),
		"failed":          failed,
	}).Info(ctx, "Collected product images")
	return records, nil
}

// Images fetches the images of one product.
func Images(ctx context.Context, client *shopify.Client, pager *shopify.Pager, productID int64) ([]shopify.ProductImage, error) {
	var resp struct {
		Images []shopify.ProductImage `json:"images"`
	}
	err := pager.Do(ctx, func(ctx context.Context) error {
		_, err := client.Get(ctx, fmt.Sprintf("products/%d/images.json", productID), &resp)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp.Images, nil
}
