package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/timmy/shopmedia/internal/domain"
	"github.com/timmy/shopmedia/internal/logger"
	"github.com/timmy/shopmedia/internal/shopify"
	"github.com/timmy/shopmedia/internal/source/collection"
	"github.com/timmy/shopmedia/internal/source/product"
	"github.com/timmy/shopmedia/internal/storage"
)

// ReplaceService swaps an image in a store for new bytes.
type ReplaceService struct {
	gateway *shopify.Gateway
	archive *storage.Archive
	fetcher *Fetcher
	logger  *logger.Logger
	cfg     ReplaceConfig
}

// ReplaceConfig holds configuration for the replace service.
type ReplaceConfig struct {
	FileReadyAttempts int           // polls of a new file before giving up on its URL
	FileReadyDelay    time.Duration // pause between polls
	SearchMaxPages    int           // bound on product search fallbacks; 0 means unbounded
	PageSize          int
	Clock             shopify.Clock
}

// NewReplaceService creates a replace service. archive and fetcher may be
// nil, which disables backups of the original image.
func NewReplaceService(gateway *shopify.Gateway, archive *storage.Archive, fetcher *Fetcher, log *logger.Logger, cfg *ReplaceConfig) *ReplaceService {
	c := ReplaceConfig{}
	if cfg != nil {
		c = *cfg
	}
	if c.FileReadyAttempts < 0 {
		c.FileReadyAttempts = 0
	}
	if c.PageSize <= 0 || c.PageSize > 250 {
		c.PageSize = 250
	}
	if c.Clock == nil {
		c.Clock = shopify.SystemClock
	}
	return &ReplaceService{
		gateway: gateway,
		archive: archive,
		fetcher: fetcher,
		logger:  log,
		cfg:     c,
	}
}

func (s *ReplaceService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// ReplaceRequest is one replacement as received from a client.
type ReplaceRequest struct {
	Credential  domain.Credential
	OriginalURL string
	Category    domain.Category
	Side        domain.SideData
	Image       []byte
	Alt         string
}

// ReplaceResult describes the image now in place.
type ReplaceResult struct {
	NewURL     string          `json:"newUrl"`
	ResourceID string          `json:"resourceId"`
	ImageType  domain.Category `json:"imageType"`
	Size       int             `json:"size"`
	Width      int             `json:"width"`
	Height     int             `json:"height"`
	BackupKey  string          `json:"backupKey,omitempty"`
	BackupURL  string          `json:"backupUrl,omitempty"`
}

// Upload is validated replacement content.
type Upload struct {
	Data     []byte
	Filename string
	Alt      string
	Info     ImageInfo
}

// NewUpload checks that data decodes as an image and names it.
func NewUpload(data []byte, alt string) (*Upload, error) {
	info, err := inspectImage(data)
	if err != nil {
		return nil, err
	}
	return &Upload{
		Data:     data,
		Filename: "replacement_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12] + info.Ext(),
		Alt:      alt,
		Info:     info,
	}, nil
}

func (u *Upload) attachment() string {
	return base64.StdEncoding.EncodeToString(u.Data)
}

// ResolveAndReplace finds the resource behind req.OriginalURL and puts the
// new image in place.
func (s *ReplaceService) ResolveAndReplace(ctx context.Context, req ReplaceRequest) (*ReplaceResult, error) {
	cred, err := domain.NewCredential(req.Credential.Shop, req.Credential.AccessToken)
	if err != nil {
		return nil, err
	}
	upload, err := NewUpload(req.Image, req.Alt)
	if err != nil {
		return nil, err
	}
	src, err := ResolveImageType(req.OriginalURL, req.Category, req.Side)
	if err != nil {
		return nil, err
	}

	ctx = logger.SetShop(logger.SetComponent(ctx, "replace"), cred.Shop)
	ctx = logger.SetCategory(ctx, string(src.Category()))
	s.log(ctx).WithFields(logger.Fields{
		logger.FieldURL:  req.OriginalURL,
		"locator":        fmt.Sprintf("%+v", src),
		"replaceable":    src.Replaceable(),
		logger.FieldSize: len(upload.Data),
	}).Info("Replacing image")

	backupKey := s.backup(ctx, cred.Shop, src.Category(), req.OriginalURL)

	result, err := s.Replace(ctx, s.gateway.Session(cred), src, req.OriginalURL, upload)
	if err != nil {
		return nil, err
	}
	if backupKey != "" {
		result.BackupKey = backupKey
		result.BackupURL = s.archive.URL(backupKey)
	}
	return result, nil
}

// Replace routes to the update procedure of the locator's resource type.
// Failures are *domain.ReplacementError; steps that already succeeded
// are not undone.
func (s *ReplaceService) Replace(ctx context.Context, client *shopify.Client, src domain.ImageSource, originalURL string, img *Upload) (*ReplaceResult, error) {
	var (
		newURL, resourceID string
		err                error
	)
	switch loc := src.(type) {
	case domain.ProductSource:
		newURL, resourceID, err = s.replaceProduct(ctx, client, loc, originalURL, img)
	case domain.CollectionSource:
		newURL, resourceID, err = s.replaceCollection(ctx, client, loc, originalURL, img)
	case domain.ThemeSource:
		newURL, resourceID, err = s.replaceTheme(ctx, client, loc, originalURL, img)
	case domain.FileSource:
		newURL, resourceID, err = s.replaceFile(ctx, client, img)
	case domain.BlogSource:
		newURL, resourceID, err = s.replaceArticle(ctx, client, loc, originalURL, img)
	case domain.PageSource:
		newURL, resourceID, err = s.replacePage(ctx, client, loc, originalURL, img)
	case domain.MetafieldSource:
		newURL, resourceID, err = s.replaceMetafield(ctx, client, loc, img)
	case domain.MetaobjectSource:
		newURL, resourceID, err = s.replaceMetaobject(ctx, client, loc, img)
	default:
		err = stepError(domain.Category(""), "dispatch", domain.ErrNotImplemented)
	}
	if err != nil {
		s.log(ctx).WithError(err).Error("Image replacement failed")
		return nil, err
	}

	s.log(ctx).WithFields(logger.Fields{
		"new_url":     newURL,
		"resource_id": resourceID,
	}).Info("Image replaced")

	return &ReplaceResult{
		NewURL:     newURL,
		ResourceID: resourceID,
		ImageType:  src.Category(),
		Size:       len(img.Data),
		Width:      img.Info.Width,
		Height:     img.Info.Height,
	}, nil
}

func stepError(category domain.Category, step string, err error) error {
	return &domain.ReplacementError{Category: category, Step: step, Err: err}
}

func (s *ReplaceService) retry(ctx context.Context, client *shopify.Client, op func(ctx context.Context) error) error {
	return client.Pager().Do(ctx, op)
}

func (s *ReplaceService) replaceProduct(ctx context.Context, client *shopify.Client, loc domain.ProductSource, originalURL string, img *Upload) (string, string, error) {
	if !loc.Replaceable() {
		found, err := s.findProductImage(ctx, client, loc.ProductID, originalURL)
		if err != nil {
			return "", "", stepError(domain.CategoryProducts, "search product image", err)
		}
		loc = found
	}

	var resp struct {
		Image shopify.ProductImage `json:"image"`
	}
	body := map[string]interface{}{"image": map[string]interface{}{
		"id":         loc.ImageID,
		"attachment": img.attachment(),
		"filename":   img.Filename,
	}}
	path := fmt.Sprintf("products/%d/images/%d.json", loc.ProductID, loc.ImageID)
	err := s.retry(ctx, client, func(ctx context.Context) error {
		_, err := client.Put(ctx, path, body, &resp)
		return err
	})
	if err != nil {
		return "", "", stepError(domain.CategoryProducts, "update product image", err)
	}
	if resp.Image.Src == "" {
		return "", "", stepError(domain.CategoryProducts, "update product image", errors.New("response has no image src"))
	}
	return resp.Image.Src, strconv.FormatInt(resp.Image.ID, 10), nil
}

// findProductImage looks for originalURL among product images. With a
// known productID only that product is searched.
func (s *ReplaceService) findProductImage(ctx context.Context, client *shopify.Client, productID int64, originalURL string) (domain.ProductSource, error) {
	pager := client.Pager()
	pager.MaxPages = s.cfg.SearchMaxPages

	match := func(id int64) (domain.ProductSource, bool, error) {
		images, err := product.Images(ctx, client, pager, id)
		if err != nil {
			return domain.ProductSource{}, false, err
		}
		for _, img := range images {
			if sameImage(img.Src, originalURL) {
				return domain.ProductSource{ProductID: id, ImageID: img.ID}, true, nil
			}
		}
		return domain.ProductSource{}, false, nil
	}

	if productID != 0 {
		found, ok, err := match(productID)
		if err != nil {
			return found, err
		}
		if !ok {
			return found, domain.ErrResourceNotFound
		}
		return found, nil
	}

	var found domain.ProductSource
	fetch := shopify.LinkPages[shopify.Product](client, fmt.Sprintf("products.json?limit=%d&fields=id", s.cfg.PageSize), "products")
	pages, partial, err := shopify.Walk(ctx, pager, fetch, func(products []shopify.Product) bool {
		for _, p := range products {
			loc, ok, err := match(p.ID)
			if err != nil {
				s.log(ctx).WithError(err).Warnf("Skipping product %d during search", p.ID)
				continue
			}
			if ok {
				found = loc
				return false
			}
		}
		return true
	})
	if err != nil {
		return found, err
	}
	if found.ProductID == 0 {
		s.log(ctx).WithFields(logger.Fields{
			logger.FieldPages: pages,
			"partial":         partial,
		}).Warn("Product image not found")
		return found, domain.ErrResourceNotFound
	}
	return found, nil
}

func (s *ReplaceService) replaceCollection(ctx context.Context, client *shopify.Client, loc domain.CollectionSource, originalURL string, img *Upload) (string, string, error) {
	if !loc.Replaceable() {
		found, err := s.findCollection(ctx, client, loc, originalURL)
		if err != nil {
			return "", "", stepError(domain.CategoryCollections, "search collection", err)
		}
		loc = found
	}

	resource := collection.Endpoint(loc.Kind)
	key := strings.TrimSuffix(resource, "s")
	body := map[string]interface{}{key: map[string]interface{}{
		"id": loc.CollectionID,
		"image": map[string]interface{}{
			"attachment": img.attachment(),
			"filename":   img.Filename,
			"alt":        img.Alt,
		},
	}}
	var resp map[string]shopify.Collection
	path := fmt.Sprintf("%s/%d.json", resource, loc.CollectionID)
	err := s.retry(ctx, client, func(ctx context.Context) error {
		_, err := client.Put(ctx, path, body, &resp)
		return err
	})
	if err != nil {
		return "", "", stepError(domain.CategoryCollections, "update collection", err)
	}
	updated := resp[key]
	if updated.Image == nil || updated.Image.Src == "" {
		return "", "", stepError(domain.CategoryCollections, "update collection", errors.New("response has no image src"))
	}
	return updated.Image.Src, strconv.FormatInt(updated.ID, 10), nil
}

// findCollection searches custom collections, then smart ones, by id,
// handle or current image.
func (s *ReplaceService) findCollection(ctx context.Context, client *shopify.Client, loc domain.CollectionSource, originalURL string) (domain.CollectionSource, error) {
	for _, kind := range []domain.CollectionKind{domain.CollectionCustom, domain.CollectionSmart} {
		collections, err := collection.List(ctx, client, kind, s.cfg.PageSize)
		if err != nil {
			return loc, err
		}
		for _, c := range collections {
			byID := loc.CollectionID != 0 && c.ID == loc.CollectionID
			byHandle := loc.Handle != "" && c.Handle == loc.Handle
			byImage := c.Image != nil && sameImage(c.Image.Src, originalURL)
			if byID || byHandle || byImage {
				return domain.CollectionSource{CollectionID: c.ID, Title: c.Title, Handle: c.Handle, Kind: kind}, nil
			}
		}
	}
	return loc, domain.ErrResourceNotFound
}

func (s *ReplaceService) replaceTheme(ctx context.Context, client *shopify.Client, loc domain.ThemeSource, originalURL string, img *Upload) (string, string, error) {
	if loc.ThemeID == 0 {
		var active *shopify.Theme
		err := s.retry(ctx, client, func(ctx context.Context) error {
			var err error
			active, err = client.ActiveTheme(ctx)
			return err
		})
		if err != nil {
			return "", "", stepError(domain.CategoryTheme, "find theme", err)
		}
		if active == nil {
			return "", "", stepError(domain.CategoryTheme, "find theme", domain.ErrResourceNotFound)
		}
		loc.ThemeID = active.ID
	}
	if loc.AssetKey == "" {
		loc.AssetKey = assetKeyFromURL(originalURL)
	}
	if loc.AssetKey == "" {
		return "", "", stepError(domain.CategoryTheme, "find asset key", domain.ErrNotImplemented)
	}

	var resp struct {
		Asset shopify.Asset `json:"asset"`
	}
	body := map[string]interface{}{"asset": map[string]interface{}{
		"key":        loc.AssetKey,
		"attachment": img.attachment(),
	}}
	path := fmt.Sprintf("themes/%d/assets.json", loc.ThemeID)
	err := s.retry(ctx, client, func(ctx context.Context) error {
		_, err := client.Put(ctx, path, body, &resp)
		return err
	})
	if err != nil {
		return "", "", stepError(domain.CategoryTheme, "update asset", err)
	}

	newURL := resp.Asset.PublicURL
	if newURL == "" {
		newURL = originalURL
	}
	return newURL, loc.AssetKey, nil
}

func (s *ReplaceService) replaceFile(ctx context.Context, client *shopify.Client, img *Upload) (string, string, error) {
	created, err := s.uploadFile(ctx, client, img)
	if err != nil {
		return "", "", stepError(domain.CategoryFiles, "create file", err)
	}
	return created.URL, created.ID, nil
}

// uploadFile runs the staged upload protocol and waits, a bounded number
// of times, for the new file to get an image URL.
func (s *ReplaceService) uploadFile(ctx context.Context, client *shopify.Client, img *Upload) (*shopify.CreatedFile, error) {
	var target *shopify.StagedTarget
	err := s.retry(ctx, client, func(ctx context.Context) error {
		var err error
		target, err = client.CreateStagedUpload(ctx, img.Filename, img.Info.MimeType, len(img.Data))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("staged upload: %w", err)
	}

	if err := client.UploadStaged(ctx, target, img.Filename, img.Data); err != nil {
		return nil, fmt.Errorf("upload bytes: %w", err)
	}

	var file *shopify.CreatedFile
	err = s.retry(ctx, client, func(ctx context.Context) error {
		var err error
		file, err = client.CreateFile(ctx, target.ResourceURL, img.Alt)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("register file: %w", err)
	}

	for attempt := 0; file.URL == "" && file.Status != "FAILED" && attempt < s.cfg.FileReadyAttempts; attempt++ {
		if err := s.cfg.Clock.Sleep(ctx, s.cfg.FileReadyDelay); err != nil {
			return nil, err
		}
		url, status, err := client.FileImageURL(ctx, file.ID)
		if err != nil {
			return nil, fmt.Errorf("poll file %s: %w", file.ID, err)
		}
		file.URL, file.Status = url, status
	}
	if file.URL == "" {
		s.log(ctx).WithField("file_id", file.ID).Warn("Created file has no image url, leaving it in place")
		return nil, fmt.Errorf("%w: %s (status %s)", domain.ErrFileNotReady, file.ID, file.Status)
	}
	return file, nil
}

func (s *ReplaceService) replaceArticle(ctx context.Context, client *shopify.Client, loc domain.BlogSource, originalURL string, img *Upload) (string, string, error) {
	if !loc.Replaceable() {
		return "", "", stepError(domain.CategoryBlogs, "locate article", domain.ErrMissingLocator)
	}
	path := fmt.Sprintf("blogs/%d/articles/%d.json", loc.BlogID, loc.ArticleID)

	var current struct {
		Article shopify.Article `json:"article"`
	}
	err := s.retry(ctx, client, func(ctx context.Context) error {
		_, err := client.Get(ctx, path, &current)
		return err
	})
	if err != nil {
		return "", "", stepError(domain.CategoryBlogs, "fetch article", err)
	}
	if !containsURL(current.Article.BodyHTML, originalURL) {
		return "", "", stepError(domain.CategoryBlogs, "find image in article", domain.ErrResourceNotFound)
	}

	created, err := s.uploadFile(ctx, client, img)
	if err != nil {
		return "", "", stepError(domain.CategoryBlogs, "create file", err)
	}
	rewritten, _ := rewriteURL(current.Article.BodyHTML, originalURL, created.URL)

	body := map[string]interface{}{"article": map[string]interface{}{
		"id":        loc.ArticleID,
		"body_html": rewritten,
	}}
	var updated struct {
		Article shopify.Article `json:"article"`
	}
	err = s.retry(ctx, client, func(ctx context.Context) error {
		_, err := client.Put(ctx, path, body, &updated)
		return err
	})
	if err != nil {
		return "", "", stepError(domain.CategoryBlogs, "update article", err)
	}
	return created.URL, strconv.FormatInt(loc.ArticleID, 10), nil
}

func (s *ReplaceService) replacePage(ctx context.Context, client *shopify.Client, loc domain.PageSource, originalURL string, img *Upload) (string, string, error) {
	if !loc.Replaceable() {
		return "", "", stepError(domain.CategoryPages, "locate page", domain.ErrMissingLocator)
	}
	path := fmt.Sprintf("pages/%d.json", loc.PageID)

	var current struct {
		Page shopify.OnlinePage `json:"page"`
	}
	err := s.retry(ctx, client, func(ctx context.Context) error {
		_, err := client.Get(ctx, path, &current)
		return err
	})
	if err != nil {
		return "", "", stepError(domain.CategoryPages, "fetch page", err)
	}
	if !containsURL(current.Page.BodyHTML, originalURL) {
		return "", "", stepError(domain.CategoryPages, "find image in page", domain.ErrResourceNotFound)
	}

	created, err := s.uploadFile(ctx, client, img)
	if err != nil {
		return "", "", stepError(domain.CategoryPages, "create file", err)
	}
	rewritten, _ := rewriteURL(current.Page.BodyHTML, originalURL, created.URL)

	body := map[string]interface{}{"page": map[string]interface{}{
		"id":        loc.PageID,
		"body_html": rewritten,
	}}
	err = s.retry(ctx, client, func(ctx context.Context) error {
		_, err := client.Put(ctx, path, body, nil)
		return err
	})
	if err != nil {
		return "", "", stepError(domain.CategoryPages, "update page", err)
	}
	return created.URL, strconv.FormatInt(loc.PageID, 10), nil
}

func (s *ReplaceService) replaceMetafield(ctx context.Context, client *shopify.Client, loc domain.MetafieldSource, img *Upload) (string, string, error) {
	if !loc.Replaceable() {
		return "", "", stepError(domain.CategoryMetafields, "locate metafield", domain.ErrMissingLocator)
	}

	created, err := s.uploadFile(ctx, client, img)
	if err != nil {
		return "", "", stepError(domain.CategoryMetafields, "create file", err)
	}

	path := fmt.Sprintf("metafields/%d.json", loc.MetafieldID)
	if loc.OwnerResource != "" && loc.OwnerID != 0 {
		path = fmt.Sprintf("%ss/%d/metafields/%d.json", loc.OwnerResource, loc.OwnerID, loc.MetafieldID)
	}
	body := map[string]interface{}{"metafield": map[string]interface{}{
		"id":    loc.MetafieldID,
		"value": created.URL,
		"type":  "url",
	}}
	err = s.retry(ctx, client, func(ctx context.Context) error {
		_, err := client.Put(ctx, path, body, nil)
		return err
	})
	if err != nil {
		return "", "", stepError(domain.CategoryMetafields, "update metafield", err)
	}
	return created.URL, strconv.FormatInt(loc.MetafieldID, 10), nil
}

func (s *ReplaceService) replaceMetaobject(ctx context.Context, client *shopify.Client, loc domain.MetaobjectSource, img *Upload) (string, string, error) {
	if !loc.Replaceable() {
		return "", "", stepError(domain.CategoryMetaobjects, "locate metaobject", domain.ErrMissingLocator)
	}

	created, err := s.uploadFile(ctx, client, img)
	if err != nil {
		return "", "", stepError(domain.CategoryMetaobjects, "create file", err)
	}

	var id string
	err = s.retry(ctx, client, func(ctx context.Context) error {
		var err error
		id, err = client.UpdateMetaobjectField(ctx, loc.MetaobjectID, loc.FieldKey, created.ID)
		return err
	})
	if err != nil {
		return "", "", stepError(domain.CategoryMetaobjects, "update metaobject field", err)
	}
	return created.URL, id, nil
}

// containsURL reports whether body references rawURL, either literally or
// HTML-escaped.
func containsURL(body, rawURL string) bool {
	_, n := rewriteURL(body, rawURL, rawURL)
	return n > 0
}

// rewriteURL replaces every whole occurrence of oldURL in body and reports
// how many it replaced. An occurrence followed by more URL characters is a
// different URL and is left alone.
func rewriteURL(body, oldURL, newURL string) (string, int) {
	out, n := replaceWhole(body, oldURL, newURL)
	if escaped := html.EscapeString(oldURL); escaped != oldURL {
		var m int
		out, m = replaceWhole(out, escaped, html.EscapeString(newURL))
		n += m
	}
	return out, n
}

func replaceWhole(s, old, repl string) (string, int) {
	if old == "" {
		return s, 0
	}
	var b strings.Builder
	n, i := 0, 0
	for {
		j := strings.Index(s[i:], old)
		if j < 0 {
			break
		}
		start, end := i+j, i+j+len(old)
		if end < len(s) && !endsURL(s[end]) {
			b.WriteString(s[i:end])
		} else {
			b.WriteString(s[i:start])
			b.WriteString(repl)
			n++
		}
		i = end
	}
	b.WriteString(s[i:])
	return b.String(), n
}

func endsURL(c byte) bool {
	return strings.IndexByte("\"'<>() \t\r\n\f", c) >= 0
}

// backup copies the current image to the archive. Failures are logged and
// do not stop the replacement.
func (s *ReplaceService) backup(ctx context.Context, shop string, category domain.Category, originalURL string) string {
	if s.archive == nil || s.fetcher == nil {
		return ""
	}
	data, err := s.fetcher.Fetch(ctx, originalURL)
	if err != nil {
		s.log(ctx).WithError(err).Warn("Could not download original for backup")
		return ""
	}
	key, err := s.archive.Save(ctx, storage.Original{
		Shop:        shop,
		Category:    string(category),
		URL:         originalURL,
		Data:        data,
		ContentType: http.DetectContentType(data),
	})
	if err != nil {
		s.log(ctx).WithError(err).Warn("Could not archive original image")
		return ""
	}
	logger.With(logger.Fields{logger.FieldSize: len(data), "key": key}).Info(ctx, "Archived original image")
	return key
}
