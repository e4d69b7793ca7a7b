package metafield

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/timmy/shopmedia/internal/domain"
	"github.com/timmy/shopmedia/internal/logger"
	"github.com/timmy/shopmedia/internal/shopify"
	"github.com/timmy/shopmedia/internal/source"
	"github.com/timmy/shopmedia/internal/source/collection"
)

const (
	ownerProduct    = "product"
	ownerCollection = "collection"
)

// Adapter reads image-valued metafields from a sample of products and
// collections.
type Adapter struct {
	sample int
}

// NewAdapter creates a metafield image source inspecting at most sample
// products and sample collections.
func NewAdapter(sample int) *Adapter {
	if sample <= 0 {
		sample = 50
	}
	if sample > 250 {
		sample = 250
	}
	return &Adapter{sample: sample}
}

func (a *Adapter) Category() domain.Category {
	return domain.CategoryMetafields
}

func (a *Adapter) GetDisplayName() string {
	return "Metafield images"
}

type owner struct {
	resource string
	id       int64
}

func (a *Adapter) Extract(ctx context.Context, client *shopify.Client) ([]domain.ImageRecord, error) {
	owners, err := a.owners(ctx, client)
	if err != nil {
		return nil, err
	}

	pager := client.Pager()
	var records []domain.ImageRecord
	for _, o := range owners {
		fields, err := Metafields(ctx, client, pager, o.resource, o.id)
		if err != nil {
			logger.FromContext(ctx).WithError(err).Warnf("Skipping metafields of %s %d", o.resource, o.id)
			continue
		}
		for _, mf := range fields {
			url, ok := ImageURL(mf)
			if !ok {
				continue
			}
			records = source.Append(records, domain.NewImageRecord(url, domain.MetafieldSource{
				MetafieldID:   mf.ID,
				Key:           mf.Key,
				Namespace:     mf.Namespace,
				OwnerResource: o.resource,
				OwnerID:       o.id,
			}))
		}
	}
	return records, nil
}

// owners returns the first products and the first collections of either
// kind, each bounded by the sample size.
func (a *Adapter) owners(ctx context.Context, client *shopify.Client) ([]owner, error) {
	var products struct {
		Products []shopify.Product `json:"products"`
	}
	err := client.Pager().Do(ctx, func(ctx context.Context) error {
		_, err := client.Get(ctx, fmt.Sprintf("products.json?limit=%d&fields=id", a.sample), &products)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("sample products: %w", err)
	}

	owners := make([]owner, 0, len(products.Products))
	for _, p := range products.Products {
		owners = append(owners, owner{resource: ownerProduct, id: p.ID})
	}

	collected := 0
	for _, kind := range []domain.CollectionKind{domain.CollectionCustom, domain.CollectionSmart} {
		if collected >= a.sample {
			break
		}
		var page map[string][]shopify.Collection
		resource := collection.Endpoint(kind)
		err := client.Pager().Do(ctx, func(ctx context.Context) error {
			_, err := client.Get(ctx, fmt.Sprintf("%s.json?limit=%d&fields=id", resource, a.sample), &page)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("sample %s: %w", resource, err)
		}
		for _, c := range page[resource] {
			if collected >= a.sample {
				break
			}
			owners = append(owners, owner{resource: ownerCollection, id: c.ID})
			collected++
		}
	}
	return owners, nil
}

// Metafields fetches the metafields of one product or collection.
func Metafields(ctx context.Context, client *shopify.Client, pager *shopify.Pager, ownerResource string, ownerID int64) ([]shopify.Metafield, error) {
	var resp struct {
		Metafields []shopify.Metafield `json:"metafields"`
	}
	err := pager.Do(ctx, func(ctx context.Context) error {
		_, err := client.Get(ctx, fmt.Sprintf("%ss/%d/metafields.json", ownerResource, ownerID), &resp)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp.Metafields, nil
}

// ImageURL extracts the image URL a metafield points at. file_reference
// values carry either a JSON object with a url or the URL itself; url
// values are used as-is.
func ImageURL(mf shopify.Metafield) (string, bool) {
	switch mf.Type {
	case "file_reference":
		switch v := mf.Value.(type) {
		case map[string]interface{}:
			return domain.ImageURLFromValue(v["url"])
		case string:
			if strings.HasPrefix(strings.TrimSpace(v), "{") {
				var payload struct {
					URL string `json:"url"`
				}
				if err := json.Unmarshal([]byte(v), &payload); err == nil && payload.URL != "" {
					return domain.ImageURLFromValue(payload.URL)
				}
			}
			return domain.ImageURLFromValue(v)
		}
		return "", false
	case "url":
		return domain.ImageURLFromValue(mf.Value)
	}
	return "", false
}
