package answer

import (
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"docqa/core"
)

// ClientConfig holds what is needed to build an OpenAI-compatible client.
type ClientConfig struct {
	APIKey string

	// BaseURL overrides the default endpoint, e.g. for a proxy or a
	// compatible server. Empty keeps api.openai.com.
	BaseURL string

	// HTTPClient carries TLS settings and the timeout.
	HTTPClient *http.Client
}

// NewOpenAIClient creates a client from cfg.
func NewOpenAIClient(cfg ClientConfig) *openai.Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if base := ResolveBaseURL(cfg.BaseURL); base != "" {
		clientConfig.BaseURL = base
	}
	if cfg.HTTPClient != nil {
		clientConfig.HTTPClient = cfg.HTTPClient
	}
	return openai.NewClientWithConfig(clientConfig)
}

// ClientConfigFromCore maps the runtime configuration onto ClientConfig.
func ClientConfigFromCore(cfg *core.Config) ClientConfig {
	return ClientConfig{
		APIKey:     cfg.OpenAIAPIKey,
		BaseURL:    cfg.OpenAIBaseURL,
		HTTPClient: core.GetDefaultHTTPClient(cfg),
	}
}

// ResolveBaseURL trims base and drops a trailing slash so that request
// paths join cleanly.
//
// Example:
//
//	ResolveBaseURL("http://localhost:8080/v1/") // "http://localhost:8080/v1"
func ResolveBaseURL(base string) string {
	return strings.TrimRight(strings.TrimSpace(base), "/")
}
