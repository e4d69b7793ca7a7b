package domain

import (
	"encoding/json"
	"testing"
)

func TestSideDataSourcePriority(t *testing.T) {
	tests := []struct {
		name string
		side SideData
		want ImageSource
	}{
		{
			name: "metafield wins over everything",
			side: SideData{MetafieldID: "77", MetaobjectID: "gid://shopify/Metaobject/1", BlogID: "5"},
			want: MetafieldSource{MetafieldID: 77},
		},
		{
			name: "metaobject before file",
			side: SideData{MetaobjectID: "gid://shopify/Metaobject/9", FieldKey: "hero", FileID: "gid://shopify/MediaImage/3"},
			want: MetaobjectSource{MetaobjectID: "gid://shopify/Metaobject/9", FieldKey: "hero"},
		},
		{
			name: "blog with article",
			side: SideData{BlogID: "11", ArticleID: "22", PageID: "33"},
			want: BlogSource{BlogID: 11, ArticleID: 22},
		},
		{
			name: "page",
			side: SideData{PageID: "33"},
			want: PageSource{PageID: 33},
		},
		{
			name: "product accepts gids",
			side: SideData{ProductID: "gid://shopify/Product/123", ImageID: "456"},
			want: ProductSource{ProductID: 123, ImageID: 456},
		},
		{
			name: "theme asset key alone",
			side: SideData{AssetKey: "assets/logo.png"},
			want: ThemeSource{AssetKey: "assets/logo.png"},
		},
		{
			name: "malformed metafield id is ignored",
			side: SideData{MetafieldID: "abc", PageID: "8"},
			want: PageSource{PageID: 8},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.side.Source()
			if !ok {
				t.Fatalf("Source() found nothing")
			}
			if got != tt.want {
				t.Errorf("Source() = %#v, want %#v", got, tt.want)
			}
		})
	}

	if _, ok := (SideData{}).Source(); ok {
		t.Error("empty SideData should not yield a source")
	}
}

func TestImageRecordJSONCarriesSideData(t *testing.T) {
	rec := NewImageRecord("https://cdn.shopify.com/files/a.png", BlogSource{BlogID: 1, ArticleID: 2, ArticleTitle: "Launch"})

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var flat map[string]interface{}
	if err := json.Unmarshal(data, &flat); err != nil {
		t.Fatalf("Unmarshal(map) error = %v", err)
	}
	if flat["blogId"] != "1" || flat["articleId"] != "2" || flat["category"] != "blogs" {
		t.Errorf("flattened record = %v", flat)
	}

	var back ImageRecord
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal(record) error = %v", err)
	}
	if !back.Valid() {
		t.Fatalf("decoded record invalid: %#v", back)
	}
	if back.Source != (BlogSource{BlogID: 1, ArticleID: 2, ArticleTitle: "Launch"}) {
		t.Errorf("Source = %#v", back.Source)
	}
}

func TestNewStatsHasEveryCategory(t *testing.T) {
	stats := NewStats()
	if len(stats.Categories) != len(AllCategories) {
		t.Fatalf("len(Categories) = %d, want %d", len(stats.Categories), len(AllCategories))
	}
	for _, c := range AllCategories {
		if n, ok := stats.Categories[c]; !ok || n != 0 {
			t.Errorf("Categories[%s] = %d, %v", c, n, ok)
		}
	}
}
