package service

import (
	"errors"
	"testing"

	"github.com/timmy/shopmedia/internal/domain"
)

func TestResolveImageType(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		category domain.Category
		side     domain.SideData
		want     domain.ImageSource
	}{
		{
			name:     "metaobject side data wins over url",
			url:      "https://cdn.shopify.com/s/files/1/products/123/images/456/a.png",
			category: domain.CategoryProducts,
			side:     domain.SideData{MetaobjectID: "gid://shopify/Metaobject/9", FieldKey: "image"},
			want:     domain.MetaobjectSource{MetaobjectID: "gid://shopify/Metaobject/9", FieldKey: "image"},
		},
		{
			name:     "metafield before blog",
			url:      "https://cdn.shopify.com/files/a.png",
			category: domain.CategoryBlogs,
			side:     domain.SideData{MetafieldID: "77", BlogID: "1", OwnerResource: "product", OwnerID: "5"},
			want:     domain.MetafieldSource{MetafieldID: 77, OwnerResource: "product", OwnerID: 5},
		},
		{
			name: "product path",
			url:  "https://demo.myshopify.com/products/123/images/456",
			want: domain.ProductSource{ProductID: 123, ImageID: 456},
		},
		{
			name: "collection path",
			url:  "https://demo.myshopify.com/collections/summer/banner.jpg",
			want: domain.CollectionSource{Handle: "summer"},
		},
		{
			name:     "collection category",
			url:      "https://cdn.shopify.com/s/files/1/0001/collections/x.jpg",
			category: domain.CategoryCollections,
			want:     domain.CollectionSource{Handle: ""},
		},
		{
			name: "theme asset",
			url:  "https://cdn.shopify.com/s/files/1/0001/t/5/assets/logo.png?v=12",
			want: domain.ThemeSource{ThemeID: 5, AssetKey: "assets/logo.png"},
		},
		{
			name: "generic file",
			url:  "https://cdn.shopify.com/files/hero.webp?v=1",
			want: domain.FileSource{FileName: "hero.webp"},
		},
		{
			name: "file name starts after first files segment",
			url:  "https://cdn.shopify.com/s/files/1/0001/0002/files/hero.webp?v=1",
			want: domain.FileSource{FileName: "1/0001/0002/files/hero.webp"},
		},
		{
			name:     "products hint without ids",
			url:      "https://example.com/img/a.png",
			category: domain.CategoryProducts,
			want:     domain.ProductSource{},
		},
		{
			name:     "blog hint without ids",
			url:      "https://example.com/img/a.png",
			category: domain.CategoryBlogs,
			want:     domain.BlogSource{},
		},
		{
			name: "unknown falls back to file",
			url:  "https://example.com/img/a.png",
			want: domain.FileSource{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveImageType(tt.url, tt.category, tt.side)
			if err != nil {
				t.Fatalf("ResolveImageType() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ResolveImageType() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestResolveImageTypeInvalidURL(t *testing.T) {
	for _, raw := range []string{"", "/relative/a.png", "ftp://host/a.png", "//cdn.shopify.com/a.png"} {
		if _, err := ResolveImageType(raw, domain.CategoryFiles, domain.SideData{}); !errors.Is(err, domain.ErrInvalidURL) {
			t.Errorf("ResolveImageType(%q) error = %v, want ErrInvalidURL", raw, err)
		}
	}
}

func TestBlogRecordRoundTripsThroughResolver(t *testing.T) {
	rec := domain.NewImageRecord("https://cdn.shopify.com/files/a.png", domain.BlogSource{BlogID: 10, ArticleID: 100})

	got, err := ResolveImageType(rec.URL, rec.Category, rec.SideData())
	if err != nil {
		t.Fatalf("ResolveImageType() error = %v", err)
	}
	blog, ok := got.(domain.BlogSource)
	if !ok || blog.BlogID != 10 || blog.ArticleID != 100 {
		t.Errorf("ResolveImageType() = %#v, want blog 10 article 100", got)
	}
}

func TestAssetKeyFromURL(t *testing.T) {
	tests := map[string]string{
		"https://cdn.shopify.com/s/files/1/t/5/assets/logo.png?v=1": "assets/logo.png",
		"https://demo.myshopify.com/assets/img/hero.jpg":            "assets/img/hero.jpg",
		"https://cdn.shopify.com/files/logo.png":                    "",
		"https://cdn.shopify.com/assets/":                           "",
	}
	for raw, want := range tests {
		if got := assetKeyFromURL(raw); got != want {
			t.Errorf("assetKeyFromURL(%q) = %q, want %q", raw, got, want)
		}
	}
}
