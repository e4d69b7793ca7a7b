package collection

import (
	"context"
	"net/http"
	"testing"

	"github.com/timmy/shopmedia/internal/domain"
	"github.com/timmy/shopmedia/internal/shopify/shopifytest"
)

func TestExtractBothKinds(t *testing.T) {
	srv := shopifytest.NewServer(t)
	srv.HandleJSON("GET /custom_collections.json", map[string]interface{}{"custom_collections": []map[string]interface{}{
		{"id": 1, "title": "Summer", "handle": "summer", "image": map[string]string{"src": "https://cdn.shopify.com/collections/summer.jpg", "alt": "Sun"}},
		{"id": 2, "title": "Bare", "handle": "bare"},
	}})
	srv.HandleJSON("GET /smart_collections.json", map[string]interface{}{"smart_collections": []map[string]interface{}{
		{"id": 3, "title": "Sale", "handle": "sale", "image": map[string]string{"src": "https://cdn.shopify.com/collections/sale.png"}},
	}})

	records, err := NewAdapter(250).Extract(context.Background(), srv.Client())
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}

	want := []domain.CollectionSource{
		{CollectionID: 1, Title: "Summer", Handle: "summer", Kind: domain.CollectionCustom},
		{CollectionID: 3, Title: "Sale", Handle: "sale", Kind: domain.CollectionSmart},
	}
	for i := range want {
		if records[i].Source != want[i] {
			t.Errorf("records[%d].Source = %#v, want %#v", i, records[i].Source, want[i])
		}
	}
	if records[0].Alt != "Sun" {
		t.Errorf("Alt = %q, want Sun", records[0].Alt)
	}
}

func TestExtractFailsWhenOneKindFails(t *testing.T) {
	srv := shopifytest.NewServer(t)
	srv.HandleJSON("GET /custom_collections.json", map[string]interface{}{"custom_collections": []interface{}{}})
	srv.Mux.HandleFunc("GET /smart_collections.json", func(w http.ResponseWriter, r *http.Request) {
		shopifytest.WriteJSON(w, http.StatusForbidden, map[string]string{"errors": "forbidden"})
	})

	if _, err := NewAdapter(250).Extract(context.Background(), srv.Client()); err == nil {
		t.Error("Extract() error = nil, want failure")
	}
}
