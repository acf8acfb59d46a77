package classify

import (
	"net/url"
	"regexp"
	"strings"

	"grabbot/pkg/config"
)

// Category describes which extraction chain a URL should be routed to
type Category int

const (
	// CategoryGeneric is everything the other categories don't claim
	CategoryGeneric Category = iota
	// CategoryFormatChoice covers hosts with separable audio/video streams
	CategoryFormatChoice
	// CategoryImage covers image-capable hosts
	CategoryImage
	// CategoryImageVideo covers image hosts where the path indicates a video post
	CategoryImageVideo
)

// String returns a human-readable category name
func (c Category) String() string {
	switch c {
	case CategoryFormatChoice:
		return "format_choice"
	case CategoryImage:
		return "image"
	case CategoryImageVideo:
		return "image_video"
	default:
		return "generic"
	}
}

var urlPattern = regexp.MustCompile(`https?://[^\s<>\[\]()'"]+`)

// Classifier routes raw message text to a candidate URL and a site category
type Classifier struct {
	choiceHosts  map[string]bool
	imageHosts   map[string]bool
	videoPattern []string
}

// New creates a Classifier from the configured host lists
func New(cfg *config.ClassifyConfig) *Classifier {
	c := &Classifier{
		choiceHosts:  make(map[string]bool, len(cfg.ChoiceHosts)),
		imageHosts:   make(map[string]bool, len(cfg.ImageHosts)),
		videoPattern: make([]string, 0, len(cfg.VideoPathPatterns)),
	}
	for _, h := range cfg.ChoiceHosts {
		c.choiceHosts[strings.ToLower(h)] = true
	}
	for _, h := range cfg.ImageHosts {
		c.imageHosts[strings.ToLower(h)] = true
	}
	for _, p := range cfg.VideoPathPatterns {
		c.videoPattern = append(c.videoPattern, strings.ToLower(p))
	}
	return c
}

// Classify extracts the first URL from text and assigns it a category.
// An empty url means the text carried no URL and the message should be
// ignored silently.
func (c *Classifier) Classify(text string) (string, Category) {
	raw := urlPattern.FindString(text)
	if raw == "" {
		return "", CategoryGeneric
	}

	// Trailing sentence punctuation is part of the match but never part
	// of the link the user meant to share.
	raw = strings.TrimRight(raw, ".,;:!?")

	parsed, err := url.Parse(raw)
	if err != nil {
		return raw, CategoryGeneric
	}

	host := strings.ToLower(parsed.Hostname())
	path := strings.ToLower(parsed.Path)

	switch {
	case c.choiceHosts[host]:
		return raw, CategoryFormatChoice
	case c.imageHosts[host] && c.hasVideoPath(path):
		return raw, CategoryImageVideo
	case c.imageHosts[host]:
		return raw, CategoryImage
	default:
		return raw, CategoryGeneric
	}
}

func (c *Classifier) hasVideoPath(path string) bool {
	for _, p := range c.videoPattern {
		if strings.Contains(path, p) {
			return true
		}
	}
	return false
}
