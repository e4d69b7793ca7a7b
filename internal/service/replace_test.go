package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/timmy/shopmedia/internal/domain"
	"github.com/timmy/shopmedia/internal/shopify"
	"github.com/timmy/shopmedia/internal/shopify/shopifytest"
	"github.com/timmy/shopmedia/internal/storage"
)

const newFileURL = "https://cdn.shopify.com/s/files/1/0001/files/replacement.png?v=2"

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

// fakeFiles serves the staged upload, file creation and file polling calls.
type fakeFiles struct {
	mu          sync.Mutex
	uploads     int
	metaobjects []map[string]interface{}
}

func newFakeFiles(srv *shopifytest.Server) *fakeFiles {
	f := &fakeFiles{}
	srv.Mux.HandleFunc("POST /staged-upload", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.FormValue("key") != "tmp/upload" || r.Header.Get("X-Shopify-Access-Token") != "" {
			http.Error(w, "bad form", http.StatusForbidden)
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		_, _ = io.Copy(io.Discard, file)
		f.mu.Lock()
		f.uploads++
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	srv.HandleGraphQL(func(req shopifytest.GraphQLRequest) interface{} {
		switch {
		case strings.Contains(req.Query, "stagedUploadsCreate"):
			return map[string]interface{}{"stagedUploadsCreate": map[string]interface{}{
				"stagedTargets": []map[string]interface{}{{
					"url":         srv.URL + "/staged-upload",
					"resourceUrl": "https://shopify-staged-uploads.storage.googleapis.com/tmp/upload",
					"parameters":  []map[string]string{{"name": "key", "value": "tmp/upload"}},
				}},
				"userErrors": []interface{}{},
			}}
		case strings.Contains(req.Query, "fileCreate"):
			return map[string]interface{}{"fileCreate": map[string]interface{}{
				"files":      []map[string]interface{}{{"id": "gid://shopify/MediaImage/77", "fileStatus": "UPLOADED"}},
				"userErrors": []interface{}{},
			}}
		case strings.Contains(req.Query, "fileNode"):
			return map[string]interface{}{"node": map[string]interface{}{
				"id": "gid://shopify/MediaImage/77", "fileStatus": "READY",
				"image": map[string]string{"url": newFileURL},
			}}
		case strings.Contains(req.Query, "metaobjectUpdate"):
			f.mu.Lock()
			f.metaobjects = append(f.metaobjects, req.Variables)
			f.mu.Unlock()
			return map[string]interface{}{"metaobjectUpdate": map[string]interface{}{
				"metaobject": map[string]string{"id": req.Variables["id"].(string), "handle": "hero"},
				"userErrors": []interface{}{},
			}}
		}
		return errors.New("unexpected query")
	})
	return f
}

func newTestReplaceService(srv *shopifytest.Server, clock *shopifytest.FakeClock) *ReplaceService {
	return NewReplaceService(srv.Gateway(shopify.Config{}), nil, nil, nil, &ReplaceConfig{
		FileReadyAttempts: 3,
		Clock:             clock,
	})
}

func replaceRequest(t *testing.T, srv *shopifytest.Server, originalURL string, category domain.Category, side domain.SideData) ReplaceRequest {
	return ReplaceRequest{
		Credential:  domain.Credential{Shop: shopifytest.Shop, AccessToken: "shpat_test"},
		OriginalURL: originalURL,
		Category:    category,
		Side:        side,
		Image:       pngBytes(t, 3, 2),
	}
}

func TestReplaceFileCreatesNewFile(t *testing.T) {
	srv := shopifytest.NewServer(t)
	files := newFakeFiles(srv)
	clock := &shopifytest.FakeClock{}
	svc := newTestReplaceService(srv, clock)

	original := "https://cdn.shopify.com/s/files/1/0001/files/old.png"
	result, err := svc.ResolveAndReplace(context.Background(), replaceRequest(t, srv, original, domain.CategoryFiles, domain.SideData{}))
	if err != nil {
		t.Fatalf("ResolveAndReplace() error = %v", err)
	}
	if result.NewURL != newFileURL || result.NewURL == original {
		t.Errorf("NewURL = %q, want %q", result.NewURL, newFileURL)
	}
	if result.ImageType != domain.CategoryFiles || result.ResourceID != "gid://shopify/MediaImage/77" {
		t.Errorf("result = %+v", result)
	}
	if result.Width != 3 || result.Height != 2 {
		t.Errorf("dimensions = %dx%d, want 3x2", result.Width, result.Height)
	}
	if files.uploads != 1 {
		t.Errorf("staged uploads = %d, want 1", files.uploads)
	}
	if len(clock.Sleeps) != 1 {
		t.Errorf("file polls = %d, want 1", len(clock.Sleeps))
	}
}

func TestReplaceFileNeverReady(t *testing.T) {
	srv := shopifytest.NewServer(t)
	srv.Mux.HandleFunc("POST /staged-upload", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	srv.HandleGraphQL(func(req shopifytest.GraphQLRequest) interface{} {
		switch {
		case strings.Contains(req.Query, "stagedUploadsCreate"):
			return map[string]interface{}{"stagedUploadsCreate": map[string]interface{}{
				"stagedTargets": []map[string]interface{}{{"url": srv.URL + "/staged-upload", "resourceUrl": "https://staged/tmp/x"}},
			}}
		case strings.Contains(req.Query, "fileCreate"):
			return map[string]interface{}{"fileCreate": map[string]interface{}{
				"files": []map[string]interface{}{{"id": "gid://shopify/MediaImage/1", "fileStatus": "UPLOADED"}},
			}}
		}
		return map[string]interface{}{"node": map[string]interface{}{"id": "gid://shopify/MediaImage/1", "fileStatus": "PROCESSING"}}
	})
	clock := &shopifytest.FakeClock{}
	svc := newTestReplaceService(srv, clock)

	_, err := svc.ResolveAndReplace(context.Background(), replaceRequest(t, srv, "https://example.com/a.png", domain.CategoryFiles, domain.SideData{}))
	if !errors.Is(err, domain.ErrFileNotReady) {
		t.Fatalf("error = %v, want ErrFileNotReady", err)
	}
	var replaceErr *domain.ReplacementError
	if !errors.As(err, &replaceErr) || replaceErr.Category != domain.CategoryFiles {
		t.Errorf("error = %#v, want *ReplacementError for files", err)
	}
	if len(clock.Sleeps) != 3 {
		t.Errorf("polls = %d, want 3", len(clock.Sleeps))
	}
}

func TestReplaceArticleRewritesEveryOccurrence(t *testing.T) {
	srv := shopifytest.NewServer(t)
	newFakeFiles(srv)

	old := "https://cdn.shopify.com/s/files/1/0001/files/old.png"
	body := `<img src="` + old + `"><p>see ` + old + `</p><img src="` + old + `?v=9"><img src="` + old + `.bak">`
	srv.HandleJSON("GET /blogs/10/articles/100.json", map[string]interface{}{"article": map[string]interface{}{
		"id": 100, "blog_id": 10, "title": "Launch", "body_html": body,
	}})
	var saved string
	srv.Mux.HandleFunc("PUT /blogs/10/articles/100.json", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Article shopify.Article `json:"article"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		saved = req.Article.BodyHTML
		shopifytest.WriteJSON(w, http.StatusOK, map[string]interface{}{"article": req.Article})
	})

	rec := domain.NewImageRecord(old, domain.BlogSource{BlogID: 10, ArticleID: 100})
	svc := newTestReplaceService(srv, &shopifytest.FakeClock{})
	result, err := svc.ResolveAndReplace(context.Background(), replaceRequest(t, srv, rec.URL, rec.Category, rec.SideData()))
	if err != nil {
		t.Fatalf("ResolveAndReplace() error = %v", err)
	}

	want := `<img src="` + newFileURL + `"><p>see ` + newFileURL + `</p><img src="` + old + `?v=9"><img src="` + old + `.bak">`
	if saved != want {
		t.Errorf("saved body =\n%s\nwant\n%s", saved, want)
	}
	if result.ImageType != domain.CategoryBlogs || result.ResourceID != "100" {
		t.Errorf("result = %+v", result)
	}
}

func TestReplaceArticleWithoutImageUploadsNothing(t *testing.T) {
	srv := shopifytest.NewServer(t)
	files := newFakeFiles(srv)
	srv.HandleJSON("GET /pages/5.json", map[string]interface{}{"page": map[string]interface{}{
		"id": 5, "body_html": "<p>no images</p>",
	}})

	svc := newTestReplaceService(srv, &shopifytest.FakeClock{})
	_, err := svc.ResolveAndReplace(context.Background(), replaceRequest(t, srv,
		"https://cdn.shopify.com/files/a.png", domain.CategoryPages, domain.SideData{PageID: "5"}))
	if !errors.Is(err, domain.ErrResourceNotFound) {
		t.Fatalf("error = %v, want ErrResourceNotFound", err)
	}
	if files.uploads != 0 {
		t.Errorf("uploads = %d, want 0", files.uploads)
	}
}

func TestReplaceProductDirect(t *testing.T) {
	srv := shopifytest.NewServer(t)
	var body map[string]map[string]interface{}
	srv.Mux.HandleFunc("PUT /products/123/images/456.json", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		shopifytest.WriteJSON(w, http.StatusOK, map[string]interface{}{"image": map[string]interface{}{
			"id": 456, "product_id": 123, "src": "https://cdn.shopify.com/s/files/1/products/new.png",
		}})
	})

	svc := newTestReplaceService(srv, &shopifytest.FakeClock{})
	result, err := svc.ResolveAndReplace(context.Background(), replaceRequest(t, srv,
		"https://demo.myshopify.com/products/123/images/456", "", domain.SideData{}))
	if err != nil {
		t.Fatalf("ResolveAndReplace() error = %v", err)
	}
	if result.NewURL != "https://cdn.shopify.com/s/files/1/products/new.png" || result.ResourceID != "456" {
		t.Errorf("result = %+v", result)
	}
	if body["image"]["attachment"] == "" || !strings.HasSuffix(body["image"]["filename"].(string), ".png") {
		t.Errorf("request body = %v", body)
	}
}

func TestReplaceProductSearchesByURL(t *testing.T) {
	srv := shopifytest.NewServer(t)
	old := "https://img.example.com/products/b.png"
	srv.Mux.HandleFunc("GET /products.json", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page_info") == "" {
			w.Header().Set("Link", srv.NextLink("products.json?page_info=2"))
			shopifytest.WriteJSON(w, http.StatusOK, map[string]interface{}{"products": []map[string]int{{"id": 1}}})
			return
		}
		shopifytest.WriteJSON(w, http.StatusOK, map[string]interface{}{"products": []map[string]int{{"id": 2}, {"id": 3}}})
	})
	srv.HandleJSON("GET /products/1/images.json", map[string]interface{}{"images": []map[string]interface{}{{"id": 10, "src": "https://cdn.shopify.com/s/files/1/products/a.png"}}})
	srv.HandleJSON("GET /products/2/images.json", map[string]interface{}{"images": []map[string]interface{}{{"id": 20, "src": old + "?v=5"}}})
	srv.Mux.HandleFunc("PUT /products/2/images/20.json", func(w http.ResponseWriter, r *http.Request) {
		shopifytest.WriteJSON(w, http.StatusOK, map[string]interface{}{"image": map[string]interface{}{"id": 20, "src": old + "?v=6"}})
	})

	svc := newTestReplaceService(srv, &shopifytest.FakeClock{})
	result, err := svc.ResolveAndReplace(context.Background(), replaceRequest(t, srv, old, domain.CategoryProducts, domain.SideData{}))
	if err != nil {
		t.Fatalf("ResolveAndReplace() error = %v", err)
	}
	if result.ResourceID != "20" {
		t.Errorf("ResourceID = %q, want 20", result.ResourceID)
	}
	if n := srv.Count("GET /products/3/images.json"); n != 0 {
		t.Errorf("product 3 searched %d times after a match", n)
	}
}

func TestReplaceProductNotFound(t *testing.T) {
	srv := shopifytest.NewServer(t)
	srv.HandleJSON("GET /products.json", map[string]interface{}{"products": []map[string]int{{"id": 1}}})
	srv.HandleJSON("GET /products/1/images.json", map[string]interface{}{"images": []interface{}{}})

	svc := newTestReplaceService(srv, &shopifytest.FakeClock{})
	_, err := svc.ResolveAndReplace(context.Background(), replaceRequest(t, srv,
		"https://example.com/x.png", domain.CategoryProducts, domain.SideData{}))
	if !errors.Is(err, domain.ErrResourceNotFound) {
		t.Fatalf("error = %v, want ErrResourceNotFound", err)
	}
}

func TestReplaceCollectionByHandle(t *testing.T) {
	srv := shopifytest.NewServer(t)
	srv.HandleJSON("GET /custom_collections.json", map[string]interface{}{"custom_collections": []interface{}{}})
	srv.HandleJSON("GET /smart_collections.json", map[string]interface{}{"smart_collections": []map[string]interface{}{
		{"id": 9, "handle": "summer", "title": "Summer"},
	}})
	var body map[string]map[string]interface{}
	srv.Mux.HandleFunc("PUT /smart_collections/9.json", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		shopifytest.WriteJSON(w, http.StatusOK, map[string]interface{}{"smart_collection": map[string]interface{}{
			"id": 9, "image": map[string]string{"src": "https://cdn.shopify.com/s/files/1/collections/new.png"},
		}})
	})

	svc := newTestReplaceService(srv, &shopifytest.FakeClock{})
	result, err := svc.ResolveAndReplace(context.Background(), replaceRequest(t, srv,
		"https://demo.myshopify.com/collections/summer/banner.png", "", domain.SideData{}))
	if err != nil {
		t.Fatalf("ResolveAndReplace() error = %v", err)
	}
	if result.ResourceID != "9" || body["smart_collection"] == nil {
		t.Errorf("result = %+v, body = %v", result, body)
	}
}

func TestReplaceThemeUsesMainTheme(t *testing.T) {
	srv := shopifytest.NewServer(t)
	srv.HandleJSON("GET /themes.json", map[string]interface{}{"themes": []map[string]interface{}{
		{"id": 1, "role": "unpublished"}, {"id": 2, "role": "main"},
	}})
	var key string
	srv.Mux.HandleFunc("PUT /themes/2/assets.json", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Asset shopify.Asset `json:"asset"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		key = req.Asset.Key
		shopifytest.WriteJSON(w, http.StatusOK, map[string]interface{}{"asset": map[string]string{
			"key": req.Asset.Key, "public_url": "https://cdn.shopify.com/s/files/1/t/2/assets/logo.png?v=99",
		}})
	})

	svc := newTestReplaceService(srv, &shopifytest.FakeClock{})
	result, err := svc.ResolveAndReplace(context.Background(), replaceRequest(t, srv,
		"https://demo.myshopify.com/cdn/shop/assets/logo.png", domain.CategoryTheme, domain.SideData{}))
	if err != nil {
		t.Fatalf("ResolveAndReplace() error = %v", err)
	}
	if key != "assets/logo.png" || result.ResourceID != "assets/logo.png" {
		t.Errorf("key = %q, result = %+v", key, result)
	}
}

func TestReplaceMetaobjectSetsFileID(t *testing.T) {
	srv := shopifytest.NewServer(t)
	files := newFakeFiles(srv)

	svc := newTestReplaceService(srv, &shopifytest.FakeClock{})
	result, err := svc.ResolveAndReplace(context.Background(), replaceRequest(t, srv,
		"https://cdn.shopify.com/files/hero.png", domain.CategoryMetaobjects,
		domain.SideData{MetaobjectID: "gid://shopify/Metaobject/5", FieldKey: "image"}))
	if err != nil {
		t.Fatalf("ResolveAndReplace() error = %v", err)
	}
	if result.ResourceID != "gid://shopify/Metaobject/5" {
		t.Errorf("ResourceID = %q", result.ResourceID)
	}
	if len(files.metaobjects) != 1 {
		t.Fatalf("metaobjectUpdate calls = %d, want 1", len(files.metaobjects))
	}
	fields := files.metaobjects[0]["metaobject"].(map[string]interface{})["fields"].([]interface{})
	field := fields[0].(map[string]interface{})
	if field["key"] != "image" || field["value"] != "gid://shopify/MediaImage/77" {
		t.Errorf("field = %v", field)
	}
}

func TestReplaceMetafieldUsesOwnerPath(t *testing.T) {
	srv := shopifytest.NewServer(t)
	newFakeFiles(srv)
	var value string
	srv.Mux.HandleFunc("PUT /products/8/metafields/300.json", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Metafield struct {
				Value string `json:"value"`
				Type  string `json:"type"`
			} `json:"metafield"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		value = req.Metafield.Value
		shopifytest.WriteJSON(w, http.StatusOK, map[string]interface{}{"metafield": map[string]interface{}{"id": 300}})
	})

	svc := newTestReplaceService(srv, &shopifytest.FakeClock{})
	_, err := svc.ResolveAndReplace(context.Background(), replaceRequest(t, srv,
		"https://cdn.shopify.com/files/hero.png", domain.CategoryMetafields,
		domain.SideData{MetafieldID: "300", OwnerResource: "product", OwnerID: "8"}))
	if err != nil {
		t.Fatalf("ResolveAndReplace() error = %v", err)
	}
	if value != newFileURL {
		t.Errorf("metafield value = %q, want %q", value, newFileURL)
	}
}

func TestReplaceMissingLocator(t *testing.T) {
	srv := shopifytest.NewServer(t)
	svc := newTestReplaceService(srv, &shopifytest.FakeClock{})

	for _, category := range []domain.Category{domain.CategoryBlogs, domain.CategoryPages, domain.CategoryMetafields, domain.CategoryMetaobjects} {
		_, err := svc.ResolveAndReplace(context.Background(), replaceRequest(t, srv, "https://example.com/a.png", category, domain.SideData{}))
		if !errors.Is(err, domain.ErrMissingLocator) {
			t.Errorf("%s: error = %v, want ErrMissingLocator", category, err)
		}
	}
	if len(srv.Calls()) != 0 {
		t.Errorf("calls = %v, want none", srv.Calls())
	}
}

func TestReplaceRejectsNonImage(t *testing.T) {
	srv := shopifytest.NewServer(t)
	svc := newTestReplaceService(srv, &shopifytest.FakeClock{})

	req := replaceRequest(t, srv, "https://example.com/a.png", domain.CategoryFiles, domain.SideData{})
	req.Image = []byte("not an image")
	if _, err := svc.ResolveAndReplace(context.Background(), req); !errors.Is(err, domain.ErrInvalidImage) {
		t.Fatalf("error = %v, want ErrInvalidImage", err)
	}
}

func TestReplaceArchivesOriginal(t *testing.T) {
	srv := shopifytest.NewServer(t)
	newFakeFiles(srv)
	original := pngBytes(t, 1, 1)
	srv.Mux.HandleFunc("GET /cdn/old.png", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(original)
	})

	store := storage.NewMemoryStorage("https://backups.example.com")
	svc := NewReplaceService(srv.Gateway(shopify.Config{}), storage.NewArchive(store, "originals"),
		NewFetcher(0, 0, ""), nil, &ReplaceConfig{FileReadyAttempts: 1, Clock: &shopifytest.FakeClock{}})

	result, err := svc.ResolveAndReplace(context.Background(), replaceRequest(t, srv, srv.URL+"/cdn/old.png", domain.CategoryFiles, domain.SideData{}))
	if err != nil {
		t.Fatalf("ResolveAndReplace() error = %v", err)
	}
	if !strings.HasPrefix(result.BackupKey, "originals/"+shopifytest.Shop+"/files/") {
		t.Errorf("BackupKey = %q", result.BackupKey)
	}
	if len(store.Keys()) != 1 {
		t.Errorf("archived keys = %v, want 1", store.Keys())
	}
}

func TestRewriteURL(t *testing.T) {
	old := "https://cdn.shopify.com/a.png?x=1&y=2"
	body := `<img src="https://cdn.shopify.com/a.png?x=1&amp;y=2"> ` + old
	got, n := rewriteURL(body, old, "https://cdn.shopify.com/b.png?x=1&y=3")
	want := `<img src="https://cdn.shopify.com/b.png?x=1&amp;y=3"> https://cdn.shopify.com/b.png?x=1&y=3`
	if got != want || n != 2 {
		t.Errorf("rewriteURL() = (%q, %d), want (%q, 2)", got, n, want)
	}
}
