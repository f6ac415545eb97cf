// Package scraper turns a website URL into sanitized page text, either via
// the hosted scraping API or by fetching and converting the page directly.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"docqa/core"
	"docqa/document"
	"docqa/logging"
	"docqa/sanitizer"
)

// ErrInvalidURL is returned for URLs without a usable host.
var ErrInvalidURL = errors.New("scraper: invalid URL")

// serviceName labels scraper failures in DocumentErrors.
const serviceName = "website scraping"

// Scraper fetches one page.
type Scraper interface {
	Scrape(ctx context.Context, rawURL string) (*document.ScrapedWebsite, error)
}

// Options configures both scraper implementations.
type Options struct {
	// APIKey selects the hosted API. Empty selects the direct fetcher.
	APIKey   string
	Endpoint string

	Timeout time.Duration

	// RequestsPerSecond and Burst bound outbound requests. Zero disables
	// the limiter.
	RequestsPerSecond float64
	Burst             int

	HTTPClient *http.Client
	Sanitizer  *sanitizer.Sanitizer
	Logger     *logging.Logger

	// AllowPrivateNetworks lets the direct fetcher reach loopback, private
	// and link-local addresses. Off by default.
	AllowPrivateNetworks bool
}

// OptionsFromConfig maps the runtime configuration onto Options.
func OptionsFromConfig(cfg *core.Config, logger *logging.Logger, s *sanitizer.Sanitizer) Options {
	return Options{
		APIKey:            cfg.FirecrawlAPIKey,
		Endpoint:          cfg.FirecrawlAPIURL,
		Timeout:           cfg.ExternalTimeout,
		RequestsPerSecond: 2,
		Burst:             4,
		HTTPClient:        core.GetDefaultHTTPClient(cfg),
		Sanitizer:         s,
		Logger:            logger,

		AllowPrivateNetworks: cfg.ScrapeAllowPrivateNetworks,
	}
}

// New returns the hosted API client when an API key is set and the direct
// fetcher otherwise.
func New(opts Options) Scraper {
	opts = opts.withDefaults()
	if opts.APIKey != "" {
		return newFirecrawl(opts)
	}
	return newDirect(opts)
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: o.Timeout}
	}
	if o.Sanitizer == nil {
		o.Sanitizer = sanitizer.Default()
	}
	if o.Logger == nil {
		o.Logger = logging.NewNop()
	}
	if o.Endpoint == "" {
		o.Endpoint = DefaultFirecrawlEndpoint
	}
	return o
}

func (o Options) limiter() *rate.Limiter {
	if o.RequestsPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := o.Burst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(o.RequestsPerSecond), burst)
}

// NormalizeURL trims raw, adds https:// when the scheme is missing and
// checks that a host is present. Failures are INVALID_URL DocumentErrors
// wrapping ErrInvalidURL.
func NormalizeURL(raw string) (string, error) {
	input := strings.TrimSpace(raw)
	invalid := func(format string, args ...any) error {
		return core.ErrInvalidURL(input, fmt.Errorf("%w: "+format, append([]any{ErrInvalidURL}, args...)...))
	}

	if input == "" {
		return "", invalid("empty")
	}
	full := input
	if !strings.Contains(full, "://") {
		full = "https://" + full
	}
	u, err := url.Parse(full)
	if err != nil {
		return "", invalid("%v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", invalid("unsupported scheme %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return "", invalid("missing host")
	}
	return u.String(), nil
}

// finish sanitizes the page and rejects pages without text.
func finish(s *sanitizer.Sanitizer, pageURL, title, content string) (*document.ScrapedWebsite, error) {
	text := s.Sanitize(content)
	if text == "" {
		return nil, core.ErrEmptyContent(pageURL)
	}
	return &document.ScrapedWebsite{
		URL:     pageURL,
		Title:   strings.TrimSpace(s.Sanitize(title)),
		Content: text,
	}, nil
}
