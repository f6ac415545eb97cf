package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"docqa/core"
	"docqa/document"
	"docqa/logging"
	"docqa/sanitizer"
)

const (
	maxPageBytes = 10 << 20
	userAgent    = "docqa/1.0"
)

// DirectFetcher downloads the page itself and converts its main content.
type DirectFetcher struct {
	timeout    time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
	sanitizer  *sanitizer.Sanitizer
	logger     *logging.Logger
}

func newDirect(opts Options) *DirectFetcher {
	client := opts.HTTPClient
	if !opts.AllowPrivateNetworks {
		client = guardedClient(client)
	}
	return &DirectFetcher{
		timeout:    opts.Timeout,
		httpClient: client,
		limiter:    opts.limiter(),
		sanitizer:  opts.Sanitizer,
		logger:     opts.Logger.Named("scraper"),
	}
}

// Scrape GETs rawURL. HTML pages are reduced to their main content and
// converted to markdown; plain-text pages are used as is.
func (f *DirectFetcher) Scrape(ctx context.Context, rawURL string) (*document.ScrapedWebsite, error) {
	pageURL, err := NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, core.ErrService(serviceName, pageURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("scraper: failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9")

	start := time.Now()
	resp, err := f.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, ErrBlockedAddress) {
			f.logger.Warn("blocked website destination", zap.String("url", pageURL), zap.Error(err))
			return nil, core.ErrBlockedDestination(pageURL, err)
		}
		return nil, core.ErrService(serviceName, pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, core.ErrService(serviceName, pageURL, fmt.Errorf("page returned status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, core.ErrService(serviceName, pageURL, err)
	}

	finalURL := pageURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	var title, content string
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	switch {
	case mediaType == "text/plain":
		content = string(body)
	case mediaType == "" || strings.Contains(mediaType, "html"):
		page, err := ParseHTML(string(body), finalURL)
		if err != nil {
			return nil, core.ErrService(serviceName, pageURL, err)
		}
		title, content = page.Title, page.Markdown
	default:
		return nil, core.ErrService(serviceName, pageURL, fmt.Errorf("unsupported content type %q", mediaType))
	}

	site, err := finish(f.sanitizer, finalURL, title, content)
	if err != nil {
		return nil, err
	}
	f.logger.Info("website fetched",
		zap.String("url", finalURL),
		zap.Int("length", len(site.Content)),
		zap.Duration("duration", time.Since(start)))
	return site, nil
}
