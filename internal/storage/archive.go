package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Metadata keys written with every archived original.
const (
	MetaShop      = "shop"
	MetaCategory  = "category"
	MetaSourceURL = "source-url"
)

// Archive keeps copies of images before they are overwritten in a store.
type Archive struct {
	store  ObjectStorage
	prefix string
	now    func() time.Time
}

// Original is an image about to be replaced.
type Original struct {
	Shop        string
	Category    string
	URL         string
	Data        []byte
	ContentType string
}

// NewArchive wraps store. Keys are placed under prefix.
func NewArchive(store ObjectStorage, prefix string) *Archive {
	return &Archive{
		store:  store,
		prefix: strings.Trim(prefix, "/"),
		now:    time.Now,
	}
}

// Save stores orig and returns the key it was written under.
// Keys look like {prefix}/{shop}/{category}/{yyyymmdd}/{uuid}{ext}.
func (a *Archive) Save(ctx context.Context, orig Original) (string, error) {
	key := a.key(orig.Shop, orig.Category, orig.URL)
	err := a.store.Put(ctx, Object{
		Key:         key,
		Body:        bytes.NewReader(orig.Data),
		Size:        int64(len(orig.Data)),
		ContentType: orig.ContentType,
		Metadata: map[string]string{
			MetaShop:      orig.Shop,
			MetaCategory:  orig.Category,
			MetaSourceURL: orig.URL,
		},
	})
	if err != nil {
		return "", fmt.Errorf("archive %s: %w", orig.URL, err)
	}
	return key, nil
}

// Open returns the archived bytes under key.
func (a *Archive) Open(ctx context.Context, key string) ([]byte, error) {
	rc, err := a.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// URL returns where an archived key can be fetched from.
func (a *Archive) URL(key string) string {
	return a.store.URL(key)
}

func (a *Archive) key(shop, category, originalURL string) string {
	ext := ""
	if u, err := url.Parse(originalURL); err == nil {
		ext = strings.ToLower(path.Ext(u.Path))
	}
	parts := []string{
		shop,
		category,
		a.now().UTC().Format("20060102"),
		uuid.NewString() + ext,
	}
	if a.prefix != "" {
		parts = append([]string{a.prefix}, parts...)
	}
	return strings.Join(parts, "/")
}
