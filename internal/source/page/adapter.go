package page

import (
	"context"
	"fmt"

	"github.com/timmy/shopmedia/internal/domain"
	"github.com/timmy/shopmedia/internal/shopify"
	"github.com/timmy/shopmedia/internal/source"
	"github.com/timmy/shopmedia/internal/source/htmlscan"
)

// Adapter finds images embedded in online store pages.
type Adapter struct {
	scanner  htmlscan.Scanner
	pageSize int
}

// NewAdapter creates a page image source. A nil scanner uses the regex scanner.
func NewAdapter(scanner htmlscan.Scanner, pageSize int) *Adapter {
	if scanner == nil {
		scanner = htmlscan.RegexScanner{}
	}
	if pageSize <= 0 || pageSize > 250 {
		pageSize = 250
	}
	return &Adapter{scanner: scanner, pageSize: pageSize}
}

func (a *Adapter) Category() domain.Category {
	return domain.CategoryPages
}

func (a *Adapter) GetDisplayName() string {
	return "Page images"
}

func (a *Adapter) Extract(ctx context.Context, client *shopify.Client) ([]domain.ImageRecord, error) {
	pages, err := shopify.Collect(ctx, client.Pager(), shopify.LinkPages[shopify.OnlinePage](client,
		fmt.Sprintf("pages.json?limit=%d&fields=id,title,handle,body_html", a.pageSize), "pages"))
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	source.NotePartial(ctx, "pages", pages)

	var records []domain.ImageRecord
	for _, p := range pages.Items {
		for _, img := range a.scanner.Scan(p.BodyHTML) {
			rec := domain.NewImageRecord(img.URL, domain.PageSource{PageID: p.ID, Title: p.Title, Handle: p.Handle})
			rec.Alt = img.Alt
			records = source.Append(records, rec)
		}
	}
	return records, nil
}
