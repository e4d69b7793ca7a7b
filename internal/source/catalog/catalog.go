// Package catalog assembles the configured image sources.
package catalog

import (
	"fmt"

	"github.com/timmy/shopmedia/internal/config"
	"github.com/timmy/shopmedia/internal/domain"
	"github.com/timmy/shopmedia/internal/source"
	"github.com/timmy/shopmedia/internal/source/blog"
	"github.com/timmy/shopmedia/internal/source/collection"
	"github.com/timmy/shopmedia/internal/source/file"
	"github.com/timmy/shopmedia/internal/source/htmlscan"
	"github.com/timmy/shopmedia/internal/source/metafield"
	"github.com/timmy/shopmedia/internal/source/metaobject"
	"github.com/timmy/shopmedia/internal/source/page"
	"github.com/timmy/shopmedia/internal/source/product"
	"github.com/timmy/shopmedia/internal/source/theme"
)

// Build returns the enabled sources in aggregation order. An empty
// cfg.Sources enables all eight.
func Build(cfg config.ExtractConfig, pageSize int) ([]source.Source, error) {
	scanner := htmlscan.New(cfg.HTMLScanner)

	all := map[domain.Category]source.Source{
		domain.CategoryTheme:       theme.NewAdapter(),
		domain.CategoryProducts:    product.NewAdapter(pageSize),
		domain.CategoryCollections: collection.NewAdapter(pageSize),
		domain.CategoryBlogs:       blog.NewAdapter(scanner, pageSize),
		domain.CategoryPages:       page.NewAdapter(scanner, pageSize),
		domain.CategoryMetafields:  metafield.NewAdapter(cfg.MetafieldSample),
		domain.CategoryFiles:       file.NewAdapter(pageSize),
		domain.CategoryMetaobjects: metaobject.NewAdapter(pageSize),
	}

	enabled := domain.AllCategories
	if len(cfg.Sources) > 0 {
		enabled = make([]domain.Category, 0, len(cfg.Sources))
		seen := make(map[domain.Category]bool)
		for _, name := range cfg.Sources {
			c, err := domain.ParseCategory(name)
			if err != nil {
				return nil, fmt.Errorf("extract.sources: %w", err)
			}
			if !seen[c] {
				seen[c] = true
				enabled = append(enabled, c)
			}
		}
	}

	sources := make([]source.Source, 0, len(enabled))
	for _, c := range domain.AllCategories {
		for _, e := range enabled {
			if e == c {
				sources = append(sources, all[c])
			}
		}
	}
	return sources, nil
}
