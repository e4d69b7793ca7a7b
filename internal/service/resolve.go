package service

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/timmy/shopmedia/internal/domain"
)

var (
	productImagePathRe = regexp.MustCompile(`/products/(\d+)/images/(\d+)`)
	collectionPathRe   = regexp.MustCompile(`/collections/([^/]+)/`)
	themeAssetPathRe   = regexp.MustCompile(`/t/(\d+)/assets/(.+)$`)
	filePathRe         = regexp.MustCompile(`/files/(.+)$`)
)

// ResolveImageType works out which resource owns the image at rawURL.
//
// Identifiers in side win when present. Otherwise the URL path is matched
// against the shapes Shopify uses for product, collection, theme and file
// URLs. Failing that, category picks a locator with no identifiers, which
// makes the replacement search for the resource.
func ResolveImageType(rawURL string, category domain.Category, side domain.SideData) (domain.ImageSource, error) {
	if !domain.ValidateImageURL(rawURL) {
		return nil, domain.ErrInvalidURL
	}
	if src, ok := side.Source(); ok {
		return src, nil
	}

	u, _ := url.Parse(rawURL)
	p := u.Path

	if m := productImagePathRe.FindStringSubmatch(p); m != nil {
		productID, _ := strconv.ParseInt(m[1], 10, 64)
		imageID, _ := strconv.ParseInt(m[2], 10, 64)
		return domain.ProductSource{ProductID: productID, ImageID: imageID}, nil
	}

	if strings.Contains(p, "/collections/") || category == domain.CategoryCollections {
		loc := domain.CollectionSource{}
		if m := collectionPathRe.FindStringSubmatch(p); m != nil {
			loc.Handle = m[1]
		}
		return loc, nil
	}

	if m := themeAssetPathRe.FindStringSubmatch(p); m != nil {
		themeID, _ := strconv.ParseInt(m[1], 10, 64)
		return domain.ThemeSource{ThemeID: themeID, AssetKey: "assets/" + m[2]}, nil
	}

	if m := filePathRe.FindStringSubmatch(p); m != nil {
		return domain.FileSource{FileName: m[1]}, nil
	}

	switch category {
	case domain.CategoryProducts:
		return domain.ProductSource{}, nil
	case domain.CategoryTheme:
		return domain.ThemeSource{}, nil
	case domain.CategoryBlogs:
		return domain.BlogSource{}, nil
	case domain.CategoryPages:
		return domain.PageSource{}, nil
	case domain.CategoryMetafields:
		return domain.MetafieldSource{}, nil
	case domain.CategoryMetaobjects:
		return domain.MetaobjectSource{}, nil
	}
	return domain.FileSource{}, nil
}

// assetKeyFromURL recovers "assets/{name}" from a theme asset URL.
func assetKeyFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	i := strings.Index(u.Path, "/assets/")
	if i < 0 || i+len("/assets/") == len(u.Path) {
		return ""
	}
	return u.Path[i+1:]
}
