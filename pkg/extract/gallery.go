package extract

import (
	"context"
	"time"

	"grabbot/internal/downloader"
	"grabbot/pkg/config"
	"grabbot/pkg/errors"
	"grabbot/pkg/fetch"
	"grabbot/pkg/logger"
	"grabbot/pkg/ratelimit"
	"grabbot/pkg/staging"
)

// hostPace builds the per-host download limiter from the scrape
// configuration, or nil when pacing is disabled
func hostPace(scrapeCfg *config.ScrapeConfig) ratelimit.Limiter {
	if scrapeCfg.HostRequestsPerMinute <= 0 {
		return nil
	}
	return ratelimit.NewSlidingWindow(scrapeCfg.HostRequestsPerMinute, time.Minute)
}

// GalleryStrategy resolves image posts with a plain HTTP fetch and markup
// parse, the cheapest strategy in the chain
type GalleryStrategy struct {
	client     *fetch.Client
	numWorkers int
	minBytes   int64
	pace       ratelimit.Limiter
	logger     logger.Logger
}

// NewGalleryStrategy creates the lightweight scrape strategy
func NewGalleryStrategy(client *fetch.Client, scrapeCfg *config.ScrapeConfig, downloadCfg *config.DownloadConfig, log logger.Logger) *GalleryStrategy {
	if log == nil {
		log = logger.GetLogger()
	}
	return &GalleryStrategy{
		client:     client,
		numWorkers: downloadCfg.ConcurrentDownloads,
		minBytes:   scrapeCfg.MinImageBytes,
		pace:       hostPace(scrapeCfg),
		logger:     log,
	}
}

func (g *GalleryStrategy) Name() string { return "gallery" }

// Attempt fetches the page, parses it for image candidates, and downloads
// the survivors into the scope. A page with no usable markup or no
// surviving images is an empty result, not a fault.
func (g *GalleryStrategy) Attempt(ctx context.Context, url string, scope *staging.Scope) (*Result, error) {
	html, err := g.client.FetchHTML(ctx, url)
	if err != nil {
		// A page the source refuses to serve is not a transport fault;
		// the next strategy may still resolve the URL another way.
		if errors.IsUnavailable(err) {
			g.logger.WithError(err).WithField("url", url).Debug("page not served, falling through")
			return nil, nil
		}
		return nil, err
	}

	return scrapeMarkup(ctx, html, url, scope, g.client, g.numWorkers, g.minBytes, g.pace, g.logger)
}

// scrapeMarkup is the shared parse-then-download path used by the gallery
// and rendered strategies
func scrapeMarkup(ctx context.Context, html []byte, url string, scope *staging.Scope, client *fetch.Client, numWorkers int, minBytes int64, pace ratelimit.Limiter, log logger.Logger) (*Result, error) {
	media := parseMarkup(html, url)
	if len(media.ImageURLs) == 0 {
		return nil, nil
	}

	paths := downloader.FetchAll(ctx, media.ImageURLs, numWorkers, client, scope, minBytes, pace, log)
	if len(paths) == 0 {
		return nil, nil
	}

	return &Result{
		Files:   paths,
		Caption: media.Caption,
		Kind:    KindImage,
	}, nil
}
