package service

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/url"
	"path"
	"strings"

	_ "golang.org/x/image/webp"

	"github.com/timmy/shopmedia/internal/domain"
)

// ImageInfo describes decoded image bytes.
type ImageInfo struct {
	Format   string // jpeg, png, gif, webp, svg
	MimeType string
	Width    int
	Height   int
}

// Ext returns the file extension for the format, with the dot.
func (i ImageInfo) Ext() string {
	if i.Format == "jpeg" {
		return ".jpg"
	}
	return "." + i.Format
}

// inspectImage reads the header of data. SVG documents are accepted
// without dimensions.
func inspectImage(data []byte) (ImageInfo, error) {
	if len(data) == 0 {
		return ImageInfo{}, fmt.Errorf("%w: empty upload", domain.ErrInvalidImage)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err == nil {
		return ImageInfo{
			Format:   format,
			MimeType: "image/" + format,
			Width:    cfg.Width,
			Height:   cfg.Height,
		}, nil
	}
	if isSVG(data) {
		return ImageInfo{Format: "svg", MimeType: "image/svg+xml"}, nil
	}
	return ImageInfo{}, fmt.Errorf("%w: %v", domain.ErrInvalidImage, err)
}

func isSVG(data []byte) bool {
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	head = bytes.ToLower(bytes.TrimSpace(head))
	return bytes.HasPrefix(head, []byte("<svg")) ||
		(bytes.HasPrefix(head, []byte("<?xml")) && bytes.Contains(head, []byte("<svg")))
}

var typeByExt = map[string]string{
	"jpg":  "JPEG",
	"jpeg": "JPEG",
	"png":  "PNG",
	"gif":  "GIF",
	"webp": "WEBP",
	"svg":  "SVG",
	"bmp":  "BMP",
	"tiff": "TIFF",
	"tif":  "TIFF",
	"ico":  "ICO",
	"avif": "AVIF",
}

// typeFromURL guesses the file type from the URL's extension.
func typeFromURL(raw string) string {
	p := raw
	if u, err := url.Parse(raw); err == nil {
		p = u.Path
	}
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(p)), ".")
	if ext == "" {
		return "UNKNOWN"
	}
	if t, ok := typeByExt[ext]; ok {
		return t
	}
	return strings.ToUpper(ext)
}

// sameImage compares CDN URLs, ignoring the cache-busting query string.
func sameImage(a, b string) bool {
	if a == b {
		return true
	}
	return stripQuery(a) == stripQuery(b) && stripQuery(a) != ""
}

func stripQuery(raw string) string {
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		return raw[:i]
	}
	return raw
}
