package domain

import (
	"strconv"
	"strings"
)

// SideData is the flat set of identifiers exchanged with browser clients.
// A record sent to a client carries it inline; a replacement request sends
// it back so the owning resource can be found without searching.
type SideData struct {
	MetafieldID   string `json:"metafieldId,omitempty" form:"metafieldId"`
	Key           string `json:"key,omitempty" form:"key"`
	Namespace     string `json:"namespace,omitempty" form:"namespace"`
	OwnerResource string `json:"ownerResource,omitempty" form:"ownerResource"`
	OwnerID       string `json:"ownerId,omitempty" form:"ownerId"`

	MetaobjectID     string `json:"metaobjectId,omitempty" form:"metaobjectId"`
	MetaobjectType   string `json:"metaobjectType,omitempty" form:"metaobjectType"`
	MetaobjectHandle string `json:"metaobjectHandle,omitempty" form:"metaobjectHandle"`
	FieldKey         string `json:"fieldKey,omitempty" form:"fieldKey"`

	FileID   string `json:"fileId,omitempty" form:"fileId"`
	FileName string `json:"fileName,omitempty" form:"fileName"`

	BlogID       string `json:"blogId,omitempty" form:"blogId"`
	ArticleID    string `json:"articleId,omitempty" form:"articleId"`
	BlogTitle    string `json:"blogTitle,omitempty" form:"blogTitle"`
	ArticleTitle string `json:"articleTitle,omitempty" form:"articleTitle"`

	PageID     string `json:"pageId,omitempty" form:"pageId"`
	PageTitle  string `json:"pageTitle,omitempty" form:"pageTitle"`
	PageHandle string `json:"pageHandle,omitempty" form:"pageHandle"`

	ProductID string `json:"productId,omitempty" form:"productId"`
	ImageID   string `json:"imageId,omitempty" form:"imageId"`

	CollectionID     string `json:"collectionId,omitempty" form:"collectionId"`
	CollectionTitle  string `json:"collectionTitle,omitempty" form:"collectionTitle"`
	CollectionHandle string `json:"collectionHandle,omitempty" form:"collectionHandle"`
	CollectionKind   string `json:"collectionKind,omitempty" form:"collectionKind"`

	ThemeID  string `json:"themeId,omitempty" form:"themeId"`
	AssetKey string `json:"assetKey,omitempty" form:"assetKey"`
}

// Source returns the variant named by the first explicit identifier.
// Priority: metafield, metaobject, file, blog, page, product, collection, theme.
// Returns false when no identifier is present.
func (s SideData) Source() (ImageSource, bool) {
	if id, ok := ParseID(s.MetafieldID); ok {
		owner, _ := ParseID(s.OwnerID)
		return MetafieldSource{
			MetafieldID:   id,
			Key:           s.Key,
			Namespace:     s.Namespace,
			OwnerResource: s.OwnerResource,
			OwnerID:       owner,
		}, true
	}
	if s.MetaobjectID != "" {
		return MetaobjectSource{
			MetaobjectID: s.MetaobjectID,
			Type:         s.MetaobjectType,
			Handle:       s.MetaobjectHandle,
			FieldKey:     s.FieldKey,
		}, true
	}
	if s.FileID != "" {
		return FileSource{FileID: s.FileID, FileName: s.FileName}, true
	}
	if id, ok := ParseID(s.BlogID); ok {
		article, _ := ParseID(s.ArticleID)
		return BlogSource{BlogID: id, ArticleID: article, BlogTitle: s.BlogTitle, ArticleTitle: s.ArticleTitle}, true
	}
	if id, ok := ParseID(s.PageID); ok {
		return PageSource{PageID: id, Title: s.PageTitle, Handle: s.PageHandle}, true
	}
	if id, ok := ParseID(s.ProductID); ok {
		image, _ := ParseID(s.ImageID)
		return ProductSource{ProductID: id, ImageID: image}, true
	}
	if id, ok := ParseID(s.CollectionID); ok {
		return CollectionSource{
			CollectionID: id,
			Title:        s.CollectionTitle,
			Handle:       s.CollectionHandle,
			Kind:         CollectionKind(s.CollectionKind),
		}, true
	}
	theme, hasTheme := ParseID(s.ThemeID)
	if hasTheme || s.AssetKey != "" {
		return ThemeSource{ThemeID: theme, AssetKey: s.AssetKey}, true
	}
	return nil, false
}

// ParseID reads a numeric REST id or the trailing id of a GraphQL gid
// such as "gid://shopify/Product/123".
func ParseID(raw string) (int64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	if strings.HasPrefix(raw, "gid://") {
		raw = raw[strings.LastIndex(raw, "/")+1:]
		if i := strings.IndexByte(raw, '?'); i >= 0 {
			raw = raw[:i]
		}
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
