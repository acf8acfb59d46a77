package extract

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"

	"grabbot/pkg/config"
	"grabbot/pkg/fetch"
	"grabbot/pkg/logger"
	"grabbot/pkg/ratelimit"
	"grabbot/pkg/staging"
)

// consentSelectors are clicked best-effort before capturing markup. Sites
// gate galleries behind cookie and consent overlays that hide the images
// from the DOM until dismissed.
var consentSelectors = []string{
	`button[aria-label="Accept all"]`,
	`button[aria-label="Allow all cookies"]`,
	`button[data-cookiebanner="accept_button"]`,
	`[id*="consent"] button`,
}

// RenderFunc captures page markup after client-side rendering. Split out
// so pipeline tests can script the renderer without a browser.
type RenderFunc func(ctx context.Context, url string) (string, error)

// RenderedStrategy resolves image posts that hide their media behind
// client-side rendering or consent interstitials
type RenderedStrategy struct {
	client     *fetch.Client
	render     RenderFunc
	timeout    time.Duration
	numWorkers int
	minBytes   int64
	pace       ratelimit.Limiter
	logger     logger.Logger
}

// NewRenderedStrategy creates the headless-browser scrape strategy
func NewRenderedStrategy(client *fetch.Client, scrapeCfg *config.ScrapeConfig, downloadCfg *config.DownloadConfig, log logger.Logger) *RenderedStrategy {
	if log == nil {
		log = logger.GetLogger()
	}
	s := &RenderedStrategy{
		client:     client,
		timeout:    scrapeCfg.RenderTimeout,
		numWorkers: downloadCfg.ConcurrentDownloads,
		minBytes:   scrapeCfg.MinImageBytes,
		pace:       hostPace(scrapeCfg),
		logger:     log,
	}
	s.render = s.renderWithBrowser
	return s
}

// SetRenderFunc overrides the renderer, used by tests
func (r *RenderedStrategy) SetRenderFunc(fn RenderFunc) {
	r.render = fn
}

func (r *RenderedStrategy) Name() string { return "rendered" }

// Attempt renders the page and runs the shared parse-then-download path.
// Renderer failures of any sort are absorbed as "no markup obtained";
// the browser is an opportunistic collaborator, never a hard dependency.
func (r *RenderedStrategy) Attempt(ctx context.Context, url string, scope *staging.Scope) (*Result, error) {
	html, err := r.render(ctx, url)
	if err != nil {
		r.logger.WithError(err).WithField("url", url).Debug("renderer yielded no markup")
		return nil, nil
	}
	if html == "" {
		return nil, nil
	}

	return scrapeMarkup(ctx, []byte(html), url, scope, r.client, r.numWorkers, r.minBytes, r.pace, r.logger)
}

// renderWithBrowser drives headless Chrome to capture the rendered DOM
func (r *RenderedStrategy) renderWithBrowser(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	browserCtx, browserCancel := chromedp.NewContext(ctx)
	defer browserCancel()

	var html string
	tasks := chromedp.Tasks{
		chromedp.Navigate(url),
		chromedp.ActionFunc(func(ctx context.Context) error {
			// Consent dismissal is best-effort; a missing button is fine.
			for _, sel := range consentSelectors {
				clickCtx, clickCancel := context.WithTimeout(ctx, 2*time.Second)
				_ = chromedp.Run(clickCtx, chromedp.Click(sel, chromedp.NodeVisible))
				clickCancel()
			}
			return nil
		}),
		chromedp.OuterHTML("html", &html),
	}

	if err := chromedp.Run(browserCtx, tasks); err != nil {
		return "", err
	}
	return html, nil
}
