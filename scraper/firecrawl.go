package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"docqa/core"
	"docqa/document"
	"docqa/logging"
	"docqa/sanitizer"
)

// DefaultFirecrawlEndpoint is the hosted scrape endpoint.
const DefaultFirecrawlEndpoint = "https://api.firecrawl.dev/v1/scrape"

const maxAPIResponseBytes = 16 << 20

type firecrawlRequest struct {
	URL     string   `json:"url"`
	Formats []string `json:"formats"`
	Timeout int      `json:"timeout"`
}

type firecrawlResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Data    struct {
		Markdown string `json:"markdown"`
		HTML     string `json:"html"`
		Metadata struct {
			Title     string `json:"title"`
			SourceURL string `json:"sourceURL"`
		} `json:"metadata"`
	} `json:"data"`
}

// FirecrawlClient calls the hosted scraping API.
type FirecrawlClient struct {
	apiKey     string
	endpoint   string
	timeout    time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
	sanitizer  *sanitizer.Sanitizer
	logger     *logging.Logger
}

func newFirecrawl(opts Options) *FirecrawlClient {
	return &FirecrawlClient{
		apiKey:     opts.APIKey,
		endpoint:   opts.Endpoint,
		timeout:    opts.Timeout,
		httpClient: opts.HTTPClient,
		limiter:    opts.limiter(),
		sanitizer:  opts.Sanitizer,
		logger:     opts.Logger.Named("scraper"),
	}
}

// Scrape asks the API for markdown and HTML of rawURL. Markdown is
// preferred; HTML is converted locally when markdown is missing.
func (c *FirecrawlClient) Scrape(ctx context.Context, rawURL string) (*document.ScrapedWebsite, error) {
	pageURL, err := NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, core.ErrService(serviceName, pageURL, err)
	}

	payload, err := json.Marshal(firecrawlRequest{
		URL:     pageURL,
		Formats: []string{"markdown", "html"},
		Timeout: int(c.timeout / time.Millisecond),
	})
	if err != nil {
		return nil, fmt.Errorf("scraper: failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("scraper: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, core.ErrService(serviceName, pageURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAPIResponseBytes))
	if err != nil {
		return nil, core.ErrService(serviceName, pageURL, err)
	}

	var parsed firecrawlResponse
	decodeErr := json.Unmarshal(body, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := fmt.Sprintf("scrape API returned status %d", resp.StatusCode)
		if decodeErr == nil && parsed.Error != "" {
			msg = parsed.Error
		}
		c.logger.Warn("scrape API error", zap.String("url", pageURL), zap.Int("status_code", resp.StatusCode))
		return nil, core.ErrService(serviceName, pageURL, errors.New(msg))
	}
	if decodeErr != nil {
		return nil, core.ErrService(serviceName, pageURL, fmt.Errorf("malformed response: %w", decodeErr))
	}
	if !parsed.Success {
		msg := parsed.Error
		if msg == "" {
			msg = "failed to scrape website"
		}
		return nil, core.ErrService(serviceName, pageURL, errors.New(msg))
	}

	content := parsed.Data.Markdown
	if content == "" && parsed.Data.HTML != "" {
		content, err = HTMLToMarkdown(parsed.Data.HTML, pageURL)
		if err != nil {
			return nil, core.ErrService(serviceName, pageURL, err)
		}
	}
	finalURL := pageURL
	if parsed.Data.Metadata.SourceURL != "" {
		finalURL = parsed.Data.Metadata.SourceURL
	}

	site, err := finish(c.sanitizer, finalURL, parsed.Data.Metadata.Title, content)
	if err != nil {
		return nil, err
	}
	c.logger.Info("website scraped",
		zap.String("url", finalURL),
		zap.Int("length", len(site.Content)),
		zap.Duration("duration", time.Since(start)))
	return site, nil
}
