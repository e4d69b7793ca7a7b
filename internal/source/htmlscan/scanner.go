// Package htmlscan finds image references in rich-text HTML bodies.
package htmlscan

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/timmy/shopmedia/internal/domain"
)

// Image is one <img> found in a body.
type Image struct {
	URL string
	Alt string
}

// Scanner returns the distinct, valid image URLs of an HTML fragment in
// document order.
type Scanner interface {
	Scan(html string) []Image
}

// New returns the scanner named by kind: "dom" for a parsed-document scan,
// anything else for the regex scanner.
func New(kind string) Scanner {
	if kind == "dom" {
		return DOMScanner{}
	}
	return RegexScanner{}
}

var (
	imgTagRe = regexp.MustCompile(`(?i)<img[^>]*\ssrc=["']([^"']+)["'][^>]*>`)
	altRe    = regexp.MustCompile(`(?i)\salt=["']([^"']*)["']`)
)

// RegexScanner matches <img ... src="..."> tags textually. It tolerates
// broken markup and leaves the body untouched, so the URLs it reports are
// exactly the strings present in the source.
type RegexScanner struct{}

func (RegexScanner) Scan(html string) []Image {
	var out []Image
	seen := make(map[string]bool)
	for _, m := range imgTagRe.FindAllStringSubmatch(html, -1) {
		src := strings.TrimSpace(m[1])
		if seen[src] || !domain.ValidateImageURL(src) {
			continue
		}
		seen[src] = true
		img := Image{URL: src}
		if alt := altRe.FindStringSubmatch(m[0]); alt != nil {
			img.Alt = alt[1]
		}
		out = append(out, img)
	}
	return out
}

// DOMScanner parses the fragment with goquery and reads img[src].
// Entity-encoded attributes are decoded, so a src containing &amp; is
// reported with a plain &.
type DOMScanner struct{}

func (DOMScanner) Scan(html string) []Image {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var out []Image
	seen := make(map[string]bool)
	doc.Find("img[src]").Each(func(_ int, sel *goquery.Selection) {
		src, _ := sel.Attr("src")
		src = strings.TrimSpace(src)
		if seen[src] || !domain.ValidateImageURL(src) {
			return
		}
		seen[src] = true
		alt, _ := sel.Attr("alt")
		out = append(out, Image{URL: src, Alt: alt})
	})
	return out
}
