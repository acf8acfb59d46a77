package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseMarkupOpenGraph(t *testing.T) {
	html := []byte(`<html><head>
		<meta property="og:title" content="Sunset gallery" />
		<meta property="og:image" content="https://cdn.example.com/1.jpg" />
		<meta property="og:image" content="https://cdn.example.com/2.jpg" />
	</head><body></body></html>`)

	media := parseMarkup(html, "https://example.com/post/1")

	assert.Equal(t, []string{"https://cdn.example.com/1.jpg", "https://cdn.example.com/2.jpg"}, media.ImageURLs)
	assert.Equal(t, "Sunset gallery", media.Caption)
}

func TestParseMarkupTwitterImageFallback(t *testing.T) {
	html := []byte(`<html><head>
		<title>Fallback page</title>
		<meta name="twitter:image" content="https://cdn.example.com/tw.jpg" />
	</head><body></body></html>`)

	media := parseMarkup(html, "https://example.com/post/1")

	assert.Equal(t, []string{"https://cdn.example.com/tw.jpg"}, media.ImageURLs)
	assert.Equal(t, "Fallback page", media.Caption)
}

func TestParseMarkupImgTagFallback(t *testing.T) {
	html := []byte(`<html><body>
		<img src="/media/a.jpg" />
		<img src="data:image/png;base64,AAAA" />
		<img src="https://cdn.example.com/b.jpg" />
	</body></html>`)

	media := parseMarkup(html, "https://example.com/post/1")

	assert.Equal(t, []string{
		"https://example.com/media/a.jpg",
		"https://cdn.example.com/b.jpg",
	}, media.ImageURLs, "relative URLs resolve against the page, data URIs are skipped")
}

func TestParseMarkupDeduplicates(t *testing.T) {
	html := []byte(`<html><head>
		<meta property="og:image" content="https://cdn.example.com/same.jpg" />
		<meta property="og:image" content="https://cdn.example.com/same.jpg" />
	</head></html>`)

	media := parseMarkup(html, "https://example.com/post/1")
	assert.Len(t, media.ImageURLs, 1)
}

func TestParseMarkupEmptyPage(t *testing.T) {
	media := parseMarkup([]byte("<html><body><p>nothing here</p></body></html>"), "https://example.com/")
	assert.Empty(t, media.ImageURLs)
}

func TestResolveAllSkipsBadSchemes(t *testing.T) {
	resolved := resolveAll([]string{
		"javascript:alert(1)",
		"ftp://example.com/a.jpg",
		"https://example.com/ok.jpg",
	}, "https://example.com/")

	assert.Equal(t, []string{"https://example.com/ok.jpg"}, resolved)
}
