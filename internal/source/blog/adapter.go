package blog

import (
	"context"
	"fmt"

	"github.com/timmy/shopmedia/internal/domain"
	"github.com/timmy/shopmedia/internal/logger"
	"github.com/timmy/shopmedia/internal/shopify"
	"github.com/timmy/shopmedia/internal/source"
	"github.com/timmy/shopmedia/internal/source/htmlscan"
)

// Adapter finds images embedded in blog article bodies.
type Adapter struct {
	scanner  htmlscan.Scanner
	pageSize int
}

// NewAdapter creates a blog image source.
// Parameters:
//   - scanner: HTML scanner used on article bodies; nil uses the regex scanner.
//   - pageSize: blogs and articles requested per page.
//
// Returns:
//   - *Adapter: initialized blog source.
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
	return domain.CategoryBlogs
}

func (a *Adapter) GetDisplayName() string {
	return "Blog article images"
}

// Extract walks blogs, then the articles of each blog. A blog whose
// articles cannot be listed is skipped.
func (a *Adapter) Extract(ctx context.Context, client *shopify.Client) ([]domain.ImageRecord, error) {
	pager := client.Pager()
	blogs, err := shopify.Collect(ctx, pager,
		shopify.LinkPages[shopify.Blog](client, fmt.Sprintf("blogs.json?limit=%d", a.pageSize), "blogs"))
	if err != nil {
		return nil, fmt.Errorf("list blogs: %w", err)
	}
	source.NotePartial(ctx, "blogs", blogs)

	var records []domain.ImageRecord
	for _, b := range blogs.Items {
		articles, err := shopify.Collect(ctx, pager, shopify.LinkPages[shopify.Article](client,
			fmt.Sprintf("blogs/%d/articles.json?limit=%d&fields=id,blog_id,title,body_html", b.ID, a.pageSize), "articles"))
		if err != nil {
			logger.FromContext(ctx).WithError(err).Warnf("Skipping articles of blog %d", b.ID)
			continue
		}
		source.NotePartial(ctx, fmt.Sprintf("blog %d articles", b.ID), articles)

		for _, article := range articles.Items {
			for _, img := range a.scanner.Scan(article.BodyHTML) {
				rec := domain.NewImageRecord(img.URL, domain.BlogSource{
					BlogID:       b.ID,
					ArticleID:    article.ID,
					BlogTitle:    b.Title,
					ArticleTitle: article.Title,
				})
				rec.Alt = img.Alt
				records = source.Append(records, rec)
			}
		}
	}
	return records, nil
}
