package extract

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dyatlov/go-opengraph/opengraph"
)

// pageMedia is what markup parsing recovers from one page
type pageMedia struct {
	ImageURLs []string
	Caption   string
}

// parseMarkup extracts candidate image URLs and a caption from page HTML.
// OpenGraph tags are authoritative; twitter:image and plain <img> tags are
// fallbacks for pages without them. Relative URLs are resolved against the
// page URL and duplicates collapse in first-seen order.
func parseMarkup(html []byte, pageURL string) pageMedia {
	var media pageMedia

	og := opengraph.NewOpenGraph()
	if err := og.ProcessHTML(bytes.NewReader(html)); err == nil {
		for _, img := range og.Images {
			if img.URL != "" {
				media.ImageURLs = append(media.ImageURLs, img.URL)
			}
		}
		media.Caption = og.Title
		if media.Caption == "" {
			media.Caption = og.Description
		}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		media.ImageURLs = resolveAll(media.ImageURLs, pageURL)
		return media
	}

	if len(media.ImageURLs) == 0 {
		doc.Find(`meta[name="twitter:image"], meta[property="twitter:image"]`).Each(func(_ int, s *goquery.Selection) {
			if content, ok := s.Attr("content"); ok && content != "" {
				media.ImageURLs = append(media.ImageURLs, content)
			}
		})
	}

	if len(media.ImageURLs) == 0 {
		doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
			src, ok := s.Attr("src")
			if !ok || src == "" || strings.HasPrefix(src, "data:") {
				return
			}
			media.ImageURLs = append(media.ImageURLs, src)
		})
	}

	if media.Caption == "" {
		media.Caption = strings.TrimSpace(doc.Find("title").First().Text())
	}

	media.ImageURLs = resolveAll(media.ImageURLs, pageURL)
	return media
}

// resolveAll resolves relative candidate URLs against the page and removes
// duplicates while preserving order
func resolveAll(candidates []string, pageURL string) []string {
	base, baseErr := url.Parse(pageURL)

	seen := make(map[string]bool, len(candidates))
	resolved := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ref, err := url.Parse(c)
		if err != nil {
			continue
		}
		if baseErr == nil {
			ref = base.ResolveReference(ref)
		}
		if ref.Scheme != "http" && ref.Scheme != "https" {
			continue
		}
		abs := ref.String()
		if !seen[abs] {
			seen[abs] = true
			resolved = append(resolved, abs)
		}
	}
	return resolved
}
