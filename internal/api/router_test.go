package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/timmy/shopmedia/internal/config"
	"github.com/timmy/shopmedia/internal/domain"
	"github.com/timmy/shopmedia/internal/logger"
	"github.com/timmy/shopmedia/internal/service"
	"github.com/timmy/shopmedia/internal/shopify"
	"github.com/timmy/shopmedia/internal/shopify/shopifytest"
	"github.com/timmy/shopmedia/internal/source"
)

type fixedSource struct {
	category domain.Category
	records  []domain.ImageRecord
	err      error
}

func (s fixedSource) Category() domain.Category { return s.category }
func (s fixedSource) GetDisplayName() string    { return string(s.category) }
func (s fixedSource) Extract(context.Context, *shopify.Client) ([]domain.ImageRecord, error) {
	return s.records, s.err
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Mode:        "test",
			Environment: "test",
			MaxUploadMB: 1,
			CORS:        config.CORSConfig{AllowedOrigins: []string{"https://admin.example.com"}},
		},
		Shopify: config.ShopifyConfig{APIKey: "public-key"},
	}
}

func newTestRouter(t *testing.T, srv *shopifytest.Server, sources []source.Source) http.Handler {
	t.Helper()
	log := logger.New(&logger.Config{Level: "error", Output: &bytes.Buffer{}})
	gw := srv.Gateway(shopify.Config{})
	svc := Services{
		Media:   service.NewMediaService(gw, sources, log, &service.MediaConfig{}),
		Analyze: service.NewAnalyzeService(service.NewFetcher(0, 0, ""), log, nil),
		Replace: service.NewReplaceService(gw, nil, nil, log, &service.ReplaceConfig{Clock: &shopifytest.FakeClock{}}),
		Store:   service.NewStoreService(gw),
	}
	return SetupRouter(svc, testConfig(), log)
}

func postJSON(t *testing.T, h http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("response %q is not JSON: %v", rec.Body.String(), err)
	}
	return out
}

func multipartReplace(t *testing.T, fields map[string]string, image []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("WriteField(%s) error = %v", k, err)
		}
	}
	if image != nil {
		part, err := w.CreateFormFile("image", "new.png")
		if err != nil {
			t.Fatalf("CreateFormFile() error = %v", err)
		}
		_, _ = part.Write(image)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("multipart Close() error = %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/media/replace", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 3))); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t, shopifytest.NewServer(t), nil)

	for _, path := range []string{"/health", "/api/health"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s status = %d, want 200", path, rec.Code)
		}
		body := decode(t, rec)
		if body["status"] != "ok" || body["shopify_api_key"] != "configured" {
			t.Errorf("GET %s body = %v", path, body)
		}
		if rec.Header().Get("X-Request-ID") == "" {
			t.Errorf("GET %s has no X-Request-ID header", path)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	router := newTestRouter(t, shopifytest.NewServer(t), nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/media", nil)
	req.Header.Set("Origin", "https://admin.example.com")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("allowed preflight status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://admin.example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/api/media", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("foreign preflight status = %d, want 403", rec.Code)
	}
}

func TestAggregateEndpoint(t *testing.T) {
	srv := shopifytest.NewServer(t)
	product := domain.NewImageRecord("https://cdn.shopify.com/s/files/1/products/a.png", domain.ProductSource{ProductID: 1, ImageID: 2})
	router := newTestRouter(t, srv, []source.Source{
		fixedSource{category: domain.CategoryProducts, records: []domain.ImageRecord{product}},
		fixedSource{category: domain.CategoryBlogs, err: &shopify.UpstreamError{Status: 500}},
	})

	for _, path := range []string{"/api/media", "/api/media/fetch"} {
		rec := postJSON(t, router, path, map[string]string{"shop": shopifytest.Shop, "accessToken": "tok"})
		if rec.Code != http.StatusOK {
			t.Fatalf("POST %s status = %d, body %s", path, rec.Code, rec.Body.String())
		}
		body := decode(t, rec)
		if body["success"] != true {
			t.Errorf("POST %s success = %v", path, body["success"])
		}
		images, _ := body["images"].([]interface{})
		if len(images) != 1 {
			t.Fatalf("POST %s images = %v, want 1", path, body["images"])
		}
		first := images[0].(map[string]interface{})
		if first["productId"] != "1" || first["imageId"] != "2" || first["category"] != "products" {
			t.Errorf("image side data = %v", first)
		}
		skipped, _ := body["skipped"].([]interface{})
		if len(skipped) != 1 || skipped[0] != "blogs" {
			t.Errorf("skipped = %v, want [blogs]", body["skipped"])
		}
		stats := body["stats"].(map[string]interface{})
		if stats["totalFiles"] != float64(1) {
			t.Errorf("stats = %v", stats)
		}
	}
}

func TestAggregateRejectsMissingCredential(t *testing.T) {
	router := newTestRouter(t, shopifytest.NewServer(t), nil)
	rec := postJSON(t, router, "/api/media", map[string]string{"shop": shopifytest.Shop})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestOptimizeEndpoint(t *testing.T) {
	router := newTestRouter(t, shopifytest.NewServer(t), nil)
	rec := postJSON(t, router, "/api/media/optimize", map[string]interface{}{
		"images": []map[string]interface{}{{
			"url":       "https://cdn.shopify.com/s/files/1/products/big.png",
			"category":  "products",
			"size":      4 * 1024 * 1024,
			"width":     4000,
			"height":    3000,
			"type":      "PNG",
			"imageType": "product",
		}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	summary := decode(t, rec)["summary"].(map[string]interface{})
	if summary["totalImages"] != float64(1) || summary["resizableImages"] != float64(1) {
		t.Errorf("summary = %v", summary)
	}
}

func TestValidateTokenEndpoint(t *testing.T) {
	srv := shopifytest.NewServer(t)
	srv.Mux.HandleFunc("GET /shop.json", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Shopify-Access-Token") != "good" {
			shopifytest.WriteJSON(w, http.StatusUnauthorized, map[string]string{"errors": "Invalid API key or access token"})
			return
		}
		shopifytest.WriteJSON(w, http.StatusOK, map[string]interface{}{"shop": map[string]string{"name": "Demo"}})
	})
	router := newTestRouter(t, srv, nil)

	body := decode(t, postJSON(t, router, "/api/validate-token", map[string]string{"shop": shopifytest.Shop, "accessToken": "good"}))
	if body["valid"] != true {
		t.Errorf("good token body = %v", body)
	}
	body = decode(t, postJSON(t, router, "/api/validate-token", map[string]string{"shop": shopifytest.Shop, "accessToken": "stale"}))
	if body["valid"] != false || body["error"] != "Invalid or expired token" {
		t.Errorf("stale token body = %v", body)
	}

	rec := postJSON(t, router, "/api/store", map[string]string{"shop": shopifytest.Shop, "accessToken": "stale"})
	if rec.Code != http.StatusBadGateway {
		t.Errorf("store with stale token status = %d, want 502", rec.Code)
	}
}

func TestReplaceEndpoint(t *testing.T) {
	srv := shopifytest.NewServer(t)
	srv.Mux.HandleFunc("PUT /products/1/images/2.json", func(w http.ResponseWriter, r *http.Request) {
		shopifytest.WriteJSON(w, http.StatusOK, map[string]interface{}{"image": map[string]interface{}{
			"id": 2, "product_id": 1, "src": "https://cdn.shopify.com/s/files/1/products/new.png",
		}})
	})
	router := newTestRouter(t, srv, nil)
	img := pngBytes(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, multipartReplace(t, map[string]string{
		"shop":        shopifytest.Shop,
		"accessToken": "tok",
		"originalUrl": "https://cdn.shopify.com/s/files/1/products/old.png",
		"category":    "products",
		"productId":   "1",
		"imageId":     "2",
	}, img))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["newUrl"] != "https://cdn.shopify.com/s/files/1/products/new.png" || body["resourceId"] != "2" {
		t.Errorf("body = %v", body)
	}
	if body["imageType"] != "products" || body["width"] != float64(4) || body["height"] != float64(3) {
		t.Errorf("body = %v", body)
	}
}

func TestReplaceEndpointErrors(t *testing.T) {
	srv := shopifytest.NewServer(t)
	router := newTestRouter(t, srv, nil)
	img := pngBytes(t)
	base := map[string]string{
		"shop":        shopifytest.Shop,
		"accessToken": "tok",
		"originalUrl": "https://cdn.shopify.com/s/files/1/blog/hero.png",
	}
	with := func(extra map[string]string) map[string]string {
		out := make(map[string]string, len(base)+len(extra))
		for k, v := range base {
			out[k] = v
		}
		for k, v := range extra {
			out[k] = v
		}
		return out
	}

	tests := []struct {
		name   string
		fields map[string]string
		image  []byte
		want   int
	}{
		{"missing file", base, nil, http.StatusBadRequest},
		{"not an image", base, []byte("plain text"), http.StatusBadRequest},
		{"unknown category", with(map[string]string{"category": "videos"}), img, http.StatusBadRequest},
		{"bad url", with(map[string]string{"originalUrl": "ftp://example.com/a.png"}), img, http.StatusBadRequest},
		{"blog without ids", with(map[string]string{"category": "blogs", "originalUrl": "https://cdn.example.com/blog/hero.png"}), img, http.StatusUnprocessableEntity},
		{"too large", base, bytes.Repeat([]byte{0}, 2<<20), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, multipartReplace(t, tt.fields, tt.image))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), "error") {
				t.Errorf("body %s has no error", rec.Body.String())
			}
		})
	}
	if calls := srv.Calls(); len(calls) != 0 {
		t.Errorf("upstream calls = %v, want none", calls)
	}
}
