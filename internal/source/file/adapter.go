package file

import (
	"context"
	"fmt"
	"path"

	"github.com/timmy/shopmedia/internal/domain"
	"github.com/timmy/shopmedia/internal/shopify"
	"github.com/timmy/shopmedia/internal/source"
)

const filesQuery = `query files($first: Int!, $after: String) {
  files(first: $first, after: $after, query: "media_type:IMAGE") {
    nodes {
      id
      alt
      fileStatus
      ... on MediaImage {
        mimeType
        image { url width height }
        originalSource { url }
      }
    }
    pageInfo { hasNextPage endCursor }
  }
}`

// Node is one entry of the files connection.
type Node struct {
	ID         string `json:"id"`
	Alt        string `json:"alt"`
	FileStatus string `json:"fileStatus"`
	MimeType   string `json:"mimeType"`
	Image      *struct {
		URL    string `json:"url"`
		Width  int    `json:"width"`
		Height int    `json:"height"`
	} `json:"image"`
	OriginalSource *struct {
		URL string `json:"url"`
	} `json:"originalSource"`
}

// URL returns the processed image URL, or the original upload while
// processing is pending.
func (n Node) URL() string {
	if n.Image != nil && n.Image.URL != "" {
		return n.Image.URL
	}
	if n.OriginalSource != nil {
		return n.OriginalSource.URL
	}
	return ""
}

// Adapter lists image files of the Files section.
type Adapter struct {
	pageSize int
}

// NewAdapter creates a Files image source.
func NewAdapter(pageSize int) *Adapter {
	if pageSize <= 0 || pageSize > 250 {
		pageSize = 250
	}
	return &Adapter{pageSize: pageSize}
}

func (a *Adapter) Category() domain.Category {
	return domain.CategoryFiles
}

func (a *Adapter) GetDisplayName() string {
	return "Files"
}

func (a *Adapter) Extract(ctx context.Context, client *shopify.Client) ([]domain.ImageRecord, error) {
	listing, err := shopify.Collect(ctx, client.Pager(), Pages(client, a.pageSize))
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	source.NotePartial(ctx, "files", listing)

	var records []domain.ImageRecord
	for _, n := range listing.Items {
		url := n.URL()
		rec := domain.NewImageRecord(url, domain.FileSource{FileID: n.ID, FileName: path.Base(stripQuery(url))})
		rec.Alt = n.Alt
		rec.MimeType = n.MimeType
		if n.Image != nil {
			rec.Width = n.Image.Width
			rec.Height = n.Image.Height
		}
		records = source.Append(records, rec)
	}
	return records, nil
}

// Pages fetches image files a page at a time by cursor.
func Pages(client *shopify.Client, pageSize int) shopify.FetchFunc[Node] {
	return func(ctx context.Context, cursor string) (shopify.Page[Node], error) {
		vars := map[string]interface{}{"first": pageSize}
		if cursor != "" {
			vars["after"] = cursor
		}
		data, err := shopify.Query[struct {
			Files shopify.Connection[Node] `json:"files"`
		}](ctx, client, filesQuery, vars)
		if err != nil {
			return shopify.Page[Node]{}, err
		}
		return data.Files.Page(), nil
	}
}

func stripQuery(u string) string {
	for i := 0; i < len(u); i++ {
		if u[i] == '?' || u[i] == '#' {
			return u[:i]
		}
	}
	return u
}
