package theme

import (
	"context"
	"fmt"
	"regexp"

	"github.com/timmy/shopmedia/internal/domain"
	"github.com/timmy/shopmedia/internal/logger"
	"github.com/timmy/shopmedia/internal/shopify"
	"github.com/timmy/shopmedia/internal/source"
)

var imageAssetRe = regexp.MustCompile(`(?i)\.(png|jpe?g|gif|webp|svg|ico)$`)

// Adapter lists the image assets of the live theme.
type Adapter struct{}

// NewAdapter creates a theme asset source.
func NewAdapter() *Adapter {
	return &Adapter{}
}

func (a *Adapter) Category() domain.Category {
	return domain.CategoryTheme
}

func (a *Adapter) GetDisplayName() string {
	return "Theme assets"
}

// Extract reads the asset list of the main theme, or the published one when
// no theme has the main role. A store without either yields no records.
func (a *Adapter) Extract(ctx context.Context, client *shopify.Client) ([]domain.ImageRecord, error) {
	pager := client.Pager()

	var active *shopify.Theme
	err := pager.Do(ctx, func(ctx context.Context) error {
		var err error
		active, err = client.ActiveTheme(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list themes: %w", err)
	}
	if active == nil {
		logger.CtxInfo(ctx, "No main or published theme, skipping theme assets")
		return nil, nil
	}

	var resp struct {
		Assets []shopify.Asset `json:"assets"`
	}
	err = pager.Do(ctx, func(ctx context.Context) error {
		_, err := client.Get(ctx, fmt.Sprintf("themes/%d/assets.json", active.ID), &resp)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list assets of theme %d: %w", active.ID, err)
	}

	var records []domain.ImageRecord
	for _, asset := range resp.Assets {
		if !imageAssetRe.MatchString(asset.Key) {
			continue
		}
		url := asset.PublicURL
		if url == "" {
			url = fmt.Sprintf("https://%s/files/%s", client.Shop(), asset.Key)
		}
		rec := domain.NewImageRecord(url, domain.ThemeSource{ThemeID: active.ID, AssetKey: asset.Key})
		rec.MimeType = asset.ContentType
		records = source.Append(records, rec)
	}
	return records, nil
}
