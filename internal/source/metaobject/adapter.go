package metaobject

import (
	"context"
	"fmt"

	"github.com/timmy/shopmedia/internal/domain"
	"github.com/timmy/shopmedia/internal/logger"
	"github.com/timmy/shopmedia/internal/shopify"
	"github.com/timmy/shopmedia/internal/source"
)

const definitionsQuery = `query metaobjectDefinitions($first: Int!, $after: String) {
  metaobjectDefinitions(first: $first, after: $after) {
    nodes {
      type
      fieldDefinitions { key type { name } }
    }
    pageInfo { hasNextPage endCursor }
  }
}`

const metaobjectsQuery = `query metaobjects($type: String!, $first: Int!, $after: String) {
  metaobjects(type: $type, first: $first, after: $after) {
    nodes {
      id
      handle
      type
      fields {
        key
        type
        value
        reference {
          ... on MediaImage { id alt image { url } }
        }
      }
    }
    pageInfo { hasNextPage endCursor }
  }
}`

// Field types that can hold an image.
const (
	typeFileReference = "file_reference"
	typeText          = "single_line_text_field"
	typeURL           = "url"
)

// Definition is a metaobject schema.
type Definition struct {
	Type             string `json:"type"`
	FieldDefinitions []struct {
		Key  string `json:"key"`
		Type struct {
			Name string `json:"name"`
		} `json:"type"`
	} `json:"fieldDefinitions"`
}

// HasImageField reports whether any field could reference an image.
func (d Definition) HasImageField() bool {
	for _, f := range d.FieldDefinitions {
		switch f.Type.Name {
		case typeFileReference, typeText, typeURL:
			return true
		}
	}
	return false
}

// Field is one field of a metaobject instance.
type Field struct {
	Key       string `json:"key"`
	Type      string `json:"type"`
	Value     string `json:"value"`
	Reference *struct {
		ID    string `json:"id"`
		Alt   string `json:"alt"`
		Image *struct {
			URL string `json:"url"`
		} `json:"image"`
	} `json:"reference"`
}

// Object is a metaobject instance.
type Object struct {
	ID     string  `json:"id"`
	Handle string  `json:"handle"`
	Type   string  `json:"type"`
	Fields []Field `json:"fields"`
}

// Adapter finds images referenced by metaobject fields.
type Adapter struct {
	pageSize int
}

// NewAdapter creates a metaobject image source.
func NewAdapter(pageSize int) *Adapter {
	if pageSize <= 0 || pageSize > 250 {
		pageSize = 50
	}
	return &Adapter{pageSize: pageSize}
}

func (a *Adapter) Category() domain.Category {
	return domain.CategoryMetaobjects
}

func (a *Adapter) GetDisplayName() string {
	return "Metaobject images"
}

// Extract lists definitions, keeps those with an image-capable field, then
// lists the instances of each. A type whose instances fail is skipped.
func (a *Adapter) Extract(ctx context.Context, client *shopify.Client) ([]domain.ImageRecord, error) {
	pager := client.Pager()
	definitions, err := shopify.Collect(ctx, pager, a.definitions(client))
	if err != nil {
		return nil, fmt.Errorf("list metaobject definitions: %w", err)
	}
	source.NotePartial(ctx, "metaobject definitions", definitions)

	var records []domain.ImageRecord
	for _, def := range definitions.Items {
		if !def.HasImageField() {
			continue
		}
		objects, err := shopify.Collect(ctx, pager, Objects(client, def.Type, a.pageSize))
		if err != nil {
			logger.FromContext(ctx).WithError(err).Warnf("Skipping metaobjects of type %s", def.Type)
			continue
		}
		source.NotePartial(ctx, "metaobjects "+def.Type, objects)

		for _, obj := range objects.Items {
			for _, f := range obj.Fields {
				url, alt, ok := ImageURL(f)
				if !ok {
					continue
				}
				rec := domain.NewImageRecord(url, domain.MetaobjectSource{
					MetaobjectID: obj.ID,
					Type:         obj.Type,
					Handle:       obj.Handle,
					FieldKey:     f.Key,
				})
				rec.Alt = alt
				records = source.Append(records, rec)
			}
		}
	}
	return records, nil
}

func (a *Adapter) definitions(client *shopify.Client) shopify.FetchFunc[Definition] {
	return func(ctx context.Context, cursor string) (shopify.Page[Definition], error) {
		vars := map[string]interface{}{"first": a.pageSize}
		if cursor != "" {
			vars["after"] = cursor
		}
		data, err := shopify.Query[struct {
			Definitions shopify.Connection[Definition] `json:"metaobjectDefinitions"`
		}](ctx, client, definitionsQuery, vars)
		if err != nil {
			return shopify.Page[Definition]{}, err
		}
		return data.Definitions.Page(), nil
	}
}

// Objects fetches the instances of one metaobject type by cursor.
func Objects(client *shopify.Client, objectType string, pageSize int) shopify.FetchFunc[Object] {
	return func(ctx context.Context, cursor string) (shopify.Page[Object], error) {
		vars := map[string]interface{}{"type": objectType, "first": pageSize}
		if cursor != "" {
			vars["after"] = cursor
		}
		data, err := shopify.Query[struct {
			Metaobjects shopify.Connection[Object] `json:"metaobjects"`
		}](ctx, client, metaobjectsQuery, vars)
		if err != nil {
			return shopify.Page[Object]{}, err
		}
		return data.Metaobjects.Page(), nil
	}
}

// ImageURL returns the image a field points at. File references use the
// referenced image; text and url fields count only when the value looks
// like an image URL.
func ImageURL(f Field) (url, alt string, ok bool) {
	switch f.Type {
	case typeFileReference:
		if f.Reference == nil || f.Reference.Image == nil {
			return "", "", false
		}
		if !domain.ValidateImageURL(f.Reference.Image.URL) {
			return "", "", false
		}
		return f.Reference.Image.URL, f.Reference.Alt, true
	case typeText, typeURL:
		if domain.LooksLikeImage(f.Value) {
			return f.Value, "", true
		}
	}
	return "", "", false
}
