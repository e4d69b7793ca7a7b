package domain

import (
	"net/url"
	"path"
	"strings"
)

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".webp": true, ".svg": true, ".avif": true, ".ico": true,
}

// ValidateImageURL reports whether raw parses as an absolute http(s) URL.
func ValidateImageURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}

// ImageURLFromValue validates a decoded JSON value. Non-strings are rejected.
func ImageURLFromValue(v interface{}) (string, bool) {
	s, ok := v.(string)
	if !ok || !ValidateImageURL(s) {
		return "", false
	}
	return s, true
}

// LooksLikeImage reports whether a valid URL points at an image file,
// either by extension or by living under a Shopify /files/ path.
func LooksLikeImage(raw string) bool {
	if !ValidateImageURL(raw) {
		return false
	}
	u, _ := url.Parse(raw)
	if imageExtensions[strings.ToLower(path.Ext(u.Path))] {
		return true
	}
	return strings.Contains(u.Path, "/files/")
}

// Credential identifies the store and the token used to call it.
type Credential struct {
	Shop        string
	AccessToken string
}

// NewCredential normalizes shop ("https://x.myshopify.com/" becomes
// "x.myshopify.com") and checks that both parts are present.
func NewCredential(shop, token string) (Credential, error) {
	shop = strings.TrimSpace(shop)
	shop = strings.TrimPrefix(shop, "https://")
	shop = strings.TrimPrefix(shop, "http://")
	shop = strings.TrimRight(shop, "/")
	token = strings.TrimSpace(token)
	if shop == "" || token == "" || strings.ContainsAny(shop, "/?# ") {
		return Credential{}, ErrInvalidCredential
	}
	return Credential{Shop: strings.ToLower(shop), AccessToken: token}, nil
}
