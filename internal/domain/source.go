package domain

import "strconv"

// ImageSource locates the Shopify resource that owns an image.
// It is a closed set of variants, one per Category; zero-valued identifiers
// mean "unknown" and make the replacement fall back to searching.
type ImageSource interface {
	Category() Category

	// Replaceable reports whether the variant carries every identifier its
	// replacement path needs without searching.
	Replaceable() bool

	sideData() SideData
}

// ThemeSource is an asset of a theme.
type ThemeSource struct {
	ThemeID  int64
	AssetKey string // e.g. "assets/logo.png"
}

// ProductSource is a product image.
type ProductSource struct {
	ProductID int64
	ImageID   int64
}

// CollectionKind distinguishes the two collection endpoints.
type CollectionKind string

const (
	CollectionCustom CollectionKind = "custom"
	CollectionSmart  CollectionKind = "smart"
)

// CollectionSource is the featured image of a collection.
type CollectionSource struct {
	CollectionID int64
	Title        string
	Handle       string
	Kind         CollectionKind
}

// BlogSource is an image embedded in an article body.
type BlogSource struct {
	BlogID       int64
	ArticleID    int64
	BlogTitle    string
	ArticleTitle string
}

// PageSource is an image embedded in a page body.
type PageSource struct {
	PageID int64
	Title  string
	Handle string
}

// MetafieldSource is a metafield whose value references an image.
type MetafieldSource struct {
	MetafieldID   int64
	Key           string
	Namespace     string
	OwnerResource string // product, collection
	OwnerID       int64
}

// FileSource is an entry of the Files section. FileID is a GraphQL gid.
type FileSource struct {
	FileID   string
	FileName string
}

// MetaobjectSource is a metaobject field pointing at an image.
type MetaobjectSource struct {
	MetaobjectID string // gid
	Type         string
	Handle       string
	FieldKey     string
}

func (ThemeSource) Category() Category      { return CategoryTheme }
func (ProductSource) Category() Category    { return CategoryProducts }
func (CollectionSource) Category() Category { return CategoryCollections }
func (BlogSource) Category() Category       { return CategoryBlogs }
func (PageSource) Category() Category       { return CategoryPages }
func (MetafieldSource) Category() Category  { return CategoryMetafields }
func (FileSource) Category() Category       { return CategoryFiles }
func (MetaobjectSource) Category() Category { return CategoryMetaobjects }

func (s ThemeSource) Replaceable() bool   { return s.ThemeID != 0 && s.AssetKey != "" }
func (s ProductSource) Replaceable() bool { return s.ProductID != 0 && s.ImageID != 0 }
func (s CollectionSource) Replaceable() bool {
	return s.CollectionID != 0 && (s.Kind == CollectionCustom || s.Kind == CollectionSmart)
}
func (s BlogSource) Replaceable() bool      { return s.BlogID != 0 && s.ArticleID != 0 }
func (s PageSource) Replaceable() bool      { return s.PageID != 0 }
func (s MetafieldSource) Replaceable() bool { return s.MetafieldID != 0 }

// Replaceable is always true: a file replacement uploads a new file.
func (FileSource) Replaceable() bool         { return true }
func (s MetaobjectSource) Replaceable() bool { return s.MetaobjectID != "" && s.FieldKey != "" }

func (s ThemeSource) sideData() SideData {
	return SideData{ThemeID: formatID(s.ThemeID), AssetKey: s.AssetKey}
}

func (s ProductSource) sideData() SideData {
	return SideData{ProductID: formatID(s.ProductID), ImageID: formatID(s.ImageID)}
}

func (s CollectionSource) sideData() SideData {
	return SideData{
		CollectionID:     formatID(s.CollectionID),
		CollectionTitle:  s.Title,
		CollectionHandle: s.Handle,
		CollectionKind:   string(s.Kind),
	}
}

func (s BlogSource) sideData() SideData {
	return SideData{
		BlogID:       formatID(s.BlogID),
		ArticleID:    formatID(s.ArticleID),
		BlogTitle:    s.BlogTitle,
		ArticleTitle: s.ArticleTitle,
	}
}

func (s PageSource) sideData() SideData {
	return SideData{PageID: formatID(s.PageID), PageTitle: s.Title, PageHandle: s.Handle}
}

func (s MetafieldSource) sideData() SideData {
	return SideData{
		MetafieldID:   formatID(s.MetafieldID),
		Key:           s.Key,
		Namespace:     s.Namespace,
		OwnerResource: s.OwnerResource,
		OwnerID:       formatID(s.OwnerID),
	}
}

func (s FileSource) sideData() SideData {
	return SideData{FileID: s.FileID, FileName: s.FileName}
}

func (s MetaobjectSource) sideData() SideData {
	return SideData{
		MetaobjectID:     s.MetaobjectID,
		MetaobjectType:   s.Type,
		MetaobjectHandle: s.Handle,
		FieldKey:         s.FieldKey,
	}
}

func formatID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}
