package collection

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/timmy/shopmedia/internal/domain"
	"github.com/timmy/shopmedia/internal/shopify"
	"github.com/timmy/shopmedia/internal/source"
)

// Adapter lists the featured images of custom and smart collections.
type Adapter struct {
	pageSize int
}

// NewAdapter creates a collection image source.
func NewAdapter(pageSize int) *Adapter {
	if pageSize <= 0 || pageSize > 250 {
		pageSize = 250
	}
	return &Adapter{pageSize: pageSize}
}

func (a *Adapter) Category() domain.Category {
	return domain.CategoryCollections
}

func (a *Adapter) GetDisplayName() string {
	return "Collection images"
}

// Extract lists both collection kinds concurrently. Either listing failing
// fails the whole source.
func (a *Adapter) Extract(ctx context.Context, client *shopify.Client) ([]domain.ImageRecord, error) {
	var custom, smart []shopify.Collection

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		custom, err = List(gctx, client, domain.CollectionCustom, a.pageSize)
		return err
	})
	g.Go(func() error {
		var err error
		smart, err = List(gctx, client, domain.CollectionSmart, a.pageSize)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var records []domain.ImageRecord
	records = appendImages(records, custom, domain.CollectionCustom)
	records = appendImages(records, smart, domain.CollectionSmart)
	return records, nil
}

func appendImages(records []domain.ImageRecord, collections []shopify.Collection, kind domain.CollectionKind) []domain.ImageRecord {
	for _, c := range collections {
		if c.Image == nil || c.Image.Src == "" {
			continue
		}
		rec := domain.NewImageRecord(c.Image.Src, domain.CollectionSource{
			CollectionID: c.ID,
			Title:        c.Title,
			Handle:       c.Handle,
			Kind:         kind,
		})
		rec.Alt = c.Image.Alt
		records = source.Append(records, rec)
	}
	return records
}

// Endpoint returns the REST resource name of a collection kind.
func Endpoint(kind domain.CollectionKind) string {
	if kind == domain.CollectionSmart {
		return "smart_collections"
	}
	return "custom_collections"
}

// List pages through every collection of one kind.
func List(ctx context.Context, client *shopify.Client, kind domain.CollectionKind, pageSize int) ([]shopify.Collection, error) {
	resource := Endpoint(kind)
	listing, err := shopify.Collect(ctx, client.Pager(), shopify.LinkPages[shopify.Collection](client,
		fmt.Sprintf("%s.json?fields=id,title,handle,image&limit=%d", resource, pageSize), resource))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", resource, err)
	}
	source.NotePartial(ctx, resource, listing)
	return listing.Items, nil
}
