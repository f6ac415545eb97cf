// Package core holds configuration, error types and small shared helpers.
//
// Configuration is read once at startup into an immutable Config which is
// passed to every component constructor. Nothing outside this package reads
// the environment.
package core

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// OCR request modes.
const (
	OCRModeDataURL   = "dataurl"
	OCRModeMultipart = "multipart"
)

// Config is the complete runtime configuration. Treat it as read-only after
// LoadConfig returns.
type Config struct {
	// Answer service
	OpenAIAPIKey      string  `env:"OPENAI_API_KEY" validate:"required"`
	OpenAIBaseURL     string  `env:"OPENAI_BASE_URL" validate:"omitempty,url"`
	AnswerModel       string  `env:"ANSWER_MODEL" validate:"required"`
	AnswerMaxTokens   int     `env:"ANSWER_MAX_TOKENS" validate:"gte=1,lte=16384"`
	AnswerTemperature float32 `env:"ANSWER_TEMPERATURE" validate:"gte=0,lte=2"`

	// OCR / conversion service. An empty key disables the OCR strategy.
	OCRAPIKey      string `env:"OCR_API_KEY"`
	OCRAPIURL      string `env:"OCR_API_URL" validate:"required,url"`
	OCRRequestMode string `env:"OCR_REQUEST_MODE" validate:"oneof=dataurl multipart"`
	OCRLanguage    string `env:"OCR_LANGUAGE" validate:"required"`

	// Scraping API. An empty key selects the direct fetcher.
	FirecrawlAPIKey string `env:"FIRECRAWL_API_KEY"`
	FirecrawlAPIURL string `env:"FIRECRAWL_API_URL" validate:"required,url"`

	// ScrapeAllowPrivateNetworks lets the direct fetcher reach loopback and
	// private addresses.
	ScrapeAllowPrivateNetworks bool `env:"SCRAPE_ALLOW_PRIVATE_NETWORKS"`

	// ExternalTimeout bounds every outbound call.
	ExternalTimeout time.Duration `env:"EXTERNAL_TIMEOUT" validate:"gt=0"`

	// Pipeline limits
	MaxContextChars      int     `env:"MAX_CONTEXT_CHARS" validate:"gte=200"`
	SummaryMaxChars      int     `env:"SUMMARY_MAX_CHARS" validate:"gte=20"`
	MinExtractedChars    int     `env:"MIN_EXTRACTED_CHARS" validate:"gte=1"`
	ReadabilityThreshold float64 `env:"READABILITY_THRESHOLD" validate:"gt=0,lt=1"`
	MaxConcurrentFiles   int     `env:"MAX_CONCURRENT_FILES" validate:"gte=1,lte=32"`
	MaxUploadBytes       int64   `env:"MAX_UPLOAD_MB" validate:"gt=0"`

	// SessionTTL expires idle sessions.
	SessionTTL time.Duration `env:"SESSION_TTL" validate:"gt=0"`

	// Persistence. An empty DatabasePath disables history and the
	// persistent extraction cache.
	DatabasePath        string `env:"DATABASE_PATH"`
	ExtractionCacheSize int    `env:"EXTRACTION_CACHE_SIZE" validate:"gte=0"`

	// Pipeline holds the strategy order and sanitizer extras, optionally
	// loaded from the PIPELINE_CONFIG YAML file.
	Pipeline PipelineSettings `env:"PIPELINE_CONFIG"`

	// HTTP server
	Port           int     `env:"PORT" validate:"gte=1,lte=65535"`
	APIAccessKey   string  `env:"API_ACCESS_KEY"`
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" validate:"gte=0"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" validate:"gte=1"`

	AllowSelfSignedCerts bool   `env:"ALLOW_SELF_SIGNED_CERTS"`
	DevMode              bool   `env:"DEV_MODE"`
	LogLevel             string `env:"LOG_LEVEL" validate:"omitempty,oneof=debug info warn warning error"`
	LogFile              string `env:"LOG_FILE"`
}

// LoadConfig reads the environment into a validated Config. Call
// godotenv.Load before it to honor a .env file.
func LoadConfig() (*Config, error) {
	pipeline, err := LoadPipelineSettings(GetEnvOrDefault("PIPELINE_CONFIG", ""))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		OpenAIAPIKey:      GetEnvOrDefault("OPENAI_API_KEY", ""),
		OpenAIBaseURL:     GetEnvOrDefault("OPENAI_BASE_URL", ""),
		AnswerModel:       GetEnvOrDefault("ANSWER_MODEL", "gpt-4o-mini"),
		AnswerMaxTokens:   ParseIntEnv("ANSWER_MAX_TOKENS", 1000),
		AnswerTemperature: float32(ParseFloat64Env("ANSWER_TEMPERATURE", 0.1)),

		OCRAPIKey:      GetEnvOrDefault("OCR_API_KEY", ""),
		OCRAPIURL:      GetEnvOrDefault("OCR_API_URL", "https://api.pdf.co/v1/pdf/convert/to/text"),
		OCRRequestMode: strings.ToLower(GetEnvOrDefault("OCR_REQUEST_MODE", OCRModeDataURL)),
		OCRLanguage:    GetEnvOrDefault("OCR_LANGUAGE", "eng"),

		FirecrawlAPIKey: GetEnvOrDefault("FIRECRAWL_API_KEY", ""),
		FirecrawlAPIURL: GetEnvOrDefault("FIRECRAWL_API_URL", "https://api.firecrawl.dev/v1/scrape"),

		ScrapeAllowPrivateNetworks: ParseBoolEnv("SCRAPE_ALLOW_PRIVATE_NETWORKS", false),

		ExternalTimeout: ParseDurationEnv("EXTERNAL_TIMEOUT", 30),

		MaxContextChars:      ParseIntEnv("MAX_CONTEXT_CHARS", 20000),
		SummaryMaxChars:      ParseIntEnv("SUMMARY_MAX_CHARS", 500),
		MinExtractedChars:    ParseIntEnv("MIN_EXTRACTED_CHARS", 50),
		ReadabilityThreshold: ParseFloat64Env("READABILITY_THRESHOLD", 0.7),
		MaxConcurrentFiles:   ParseIntEnv("MAX_CONCURRENT_FILES", 3),
		MaxUploadBytes:       int64(ParseIntEnv("MAX_UPLOAD_MB", 25)) << 20,
		SessionTTL:           ParseDurationEnv("SESSION_TTL", 3600),

		DatabasePath:        GetEnvOrDefault("DATABASE_PATH", ""),
		ExtractionCacheSize: ParseIntEnv("EXTRACTION_CACHE_SIZE", 128),
		Pipeline:            pipeline,

		Port:           ParseIntEnv("PORT", 3000),
		APIAccessKey:   GetEnvOrDefault("API_ACCESS_KEY", ""),
		RateLimitRPS:   ParseFloat64Env("RATE_LIMIT_RPS", 5),
		RateLimitBurst: ParseIntEnv("RATE_LIMIT_BURST", 10),

		AllowSelfSignedCerts: ParseBoolEnv("ALLOW_SELF_SIGNED_CERTS", false),
		DevMode:              ParseBoolEnv("DEV_MODE", false),
		LogLevel:             strings.ToLower(GetEnvOrDefault("LOG_LEVEL", "")),
		LogFile:              GetEnvOrDefault("LOG_FILE", "docqa.log"),
	}

	// Values in the pipeline file take precedence over the environment.
	if pipeline.MinLength > 0 {
		cfg.MinExtractedChars = pipeline.MinLength
	}
	if pipeline.ReadabilityThreshold > 0 {
		cfg.ReadabilityThreshold = pipeline.ReadabilityThreshold
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

var configValidator = newConfigValidator()

func newConfigValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("env"); name != "" {
			return name
		}
		if name := f.Tag.Get("yaml"); name != "" {
			return strings.Split(name, ",")[0]
		}
		return f.Name
	})
	return v
}

// ValidateConfig checks struct constraints and reports every problem at
// once. Missing required variables are reported together, the way an
// operator fixes them.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	err := configValidator.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating config: %w", err)
	}

	var missing, invalid []string
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			missing = append(missing, fe.Field())
			continue
		}
		invalid = append(invalid, fmt.Sprintf("%s (%s %s, got %v)", fe.Field(), fe.Tag(), fe.Param(), fe.Value()))
	}
	if len(missing) > 0 {
		return ErrMissingConfig(missing...)
	}
	return ErrInvalidConfig(invalid...)
}

// OCREnabled reports whether the OCR strategy can be used.
func (c *Config) OCREnabled() bool {
	return c.OCRAPIKey != ""
}

// ScrapeAPIEnabled reports whether the hosted scraping API is configured.
func (c *Config) ScrapeAPIEnabled() bool {
	return c.FirecrawlAPIKey != ""
}

// PersistenceEnabled reports whether a database path is configured.
func (c *Config) PersistenceEnabled() bool {
	return c.DatabasePath != ""
}

// GetHTTPClient returns a client for outbound calls honoring
// AllowSelfSignedCerts.
func GetHTTPClient(cfg *Config, timeout time.Duration) *http.Client {
	client := &http.Client{Timeout: timeout}
	if cfg != nil && cfg.AllowSelfSignedCerts {
		client.Transport = &http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	return client
}

// GetDefaultHTTPClient returns a client using the configured external timeout.
func GetDefaultHTTPClient(cfg *Config) *http.Client {
	timeout := 30 * time.Second
	if cfg != nil && cfg.ExternalTimeout > 0 {
		timeout = cfg.ExternalTimeout
	}
	return GetHTTPClient(cfg, timeout)
}
