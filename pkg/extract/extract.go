// Package extract turns a classified URL into staged media files. Strategies
// are ordered into a chain: a strategy that finds nothing yields to the
// next one, a strategy that hits a real fault aborts the whole chain.
package extract

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"grabbot/pkg/classify"
	"grabbot/pkg/errors"
	"grabbot/pkg/logger"
	"grabbot/pkg/staging"
)

// Kind is the media kind a strategy declares for its result
type Kind int

const (
	KindVideo Kind = iota
	KindAudio
	KindImage
)

// String returns the kind name used in logs and callback payloads
func (k Kind) String() string {
	switch k {
	case KindAudio:
		return "audio"
	case KindImage:
		return "image"
	default:
		return "video"
	}
}

// Result is what one strategy produced for a URL
type Result struct {
	Files   []string
	Caption string
	Kind    Kind
}

func (r *Result) empty() bool {
	return r == nil || len(r.Files) == 0
}

// Strategy is one concrete way of resolving a URL into staged media
type Strategy interface {
	Name() string
	// Attempt resolves url into files inside scope. A nil or empty result
	// means the strategy did not resolve the URL and the chain should move
	// on; an error means a real fault that aborts the chain.
	Attempt(ctx context.Context, url string, scope *staging.Scope) (*Result, error)
}

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".gif":  true,
}

// Chain runs strategies in order until one produces a usable result
type Chain struct {
	strategies []Strategy
	logger     logger.Logger
}

// NewChain builds a chain over the given strategies
func NewChain(log logger.Logger, strategies ...Strategy) *Chain {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Chain{strategies: strategies, logger: log}
}

// Run evaluates the chain. Exhausting every strategy without a result is
// reported as an unavailable error, the terminal outcome for the request.
func (c *Chain) Run(ctx context.Context, url string, scope *staging.Scope) (*Result, error) {
	for _, s := range c.strategies {
		start := time.Now()
		result, err := s.Attempt(ctx, url, scope)
		files := 0
		if result != nil {
			files = len(result.Files)
		}
		logger.LogExtraction(c.logger, s.Name(), url, files, time.Since(start), err)

		if err != nil {
			return nil, err
		}
		if result.empty() {
			continue
		}

		// Image strategies can surface non-image junk (tracking pixels,
		// favicons saved by naive markup). Filtering may empty the set,
		// which falls through exactly like an empty strategy result.
		if result.Kind == KindImage {
			result.Files = filterImages(result.Files)
			if len(result.Files) == 0 {
				c.logger.DebugWithFields("image filter emptied result, falling through", map[string]interface{}{
					"strategy": s.Name(),
					"url":      url,
				})
				continue
			}
		}

		return result, nil
	}

	return nil, errors.New(errors.ErrorTypeUnavailable, "no strategy could resolve the URL")
}

func filterImages(files []string) []string {
	kept := files[:0]
	for _, f := range files {
		if imageExtensions[strings.ToLower(filepath.Ext(f))] {
			kept = append(kept, f)
		}
	}
	return kept
}

// ChainFor composes the strategy order for a site category. Image-capable
// categories try the cheap scrape first, then the rendered scrape, then
// yt-dlp as the post may actually be a video. Everything else goes
// straight to yt-dlp with the requested kind.
func ChainFor(category classify.Category, kind Kind, gallery, rendered Strategy, ytdlp func(Kind) Strategy, log logger.Logger) *Chain {
	switch category {
	case classify.CategoryImage, classify.CategoryImageVideo:
		return NewChain(log, gallery, rendered, ytdlp(KindVideo))
	default:
		return NewChain(log, ytdlp(kind))
	}
}
