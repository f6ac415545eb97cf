// client.go implements Client, the HTTP side of the OCR strategy. It
// composes:
//   - atoms.go: request encoding and response parsing
//   - core.GetHTTPClient: HTTP client factory
//   - logging.Logger: structured logging
package ocrprocessor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"go.uber.org/zap"

	"docqa/core"
	"docqa/document"
	"docqa/logging"
)

// maxResponseBytes caps the service response read into memory.
const maxResponseBytes = 32 << 20

// serviceName labels OCR failures in DocumentErrors.
const serviceName = "OCR service"

// ErrNilClient and ErrNilLogger report missing constructor dependencies.
var (
	ErrNilClient = errors.New("ocrprocessor: HTTP client cannot be nil")
	ErrNilLogger = errors.New("ocrprocessor: logger cannot be nil")
)

// ClientConfig holds the service endpoint and request options.
type ClientConfig struct {
	// Endpoint receives the POST request.
	Endpoint string

	// Mode is core.OCRModeDataURL (JSON body with a base64 data URL, the
	// conversion-service style) or core.OCRModeMultipart (file upload, the
	// OCR-service style).
	Mode string

	// Language is the recognition language hint, e.g. "eng".
	Language string

	// Timeout bounds one request in addition to the caller's context.
	Timeout time.Duration
}

// DefaultClientConfig returns the conversion-service defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Endpoint: "https://api.pdf.co/v1/pdf/convert/to/text",
		Mode:     core.OCRModeDataURL,
		Language: "eng",
		Timeout:  30 * time.Second,
	}
}

// ConfigFromCore maps the runtime configuration onto a ClientConfig.
func ConfigFromCore(cfg *core.Config) ClientConfig {
	c := DefaultClientConfig()
	if cfg.OCRAPIURL != "" {
		c.Endpoint = cfg.OCRAPIURL
	}
	if cfg.OCRRequestMode != "" {
		c.Mode = cfg.OCRRequestMode
	}
	if cfg.OCRLanguage != "" {
		c.Language = cfg.OCRLanguage
	}
	if cfg.ExternalTimeout > 0 {
		c.Timeout = cfg.ExternalTimeout
	}
	return c
}

// Client posts documents to the service. It is safe for concurrent use.
type Client struct {
	apiKey     string
	httpClient *http.Client
	logger     *logging.Logger
	config     ClientConfig
}

// NewClient creates a client. The API key must be non-empty.
func NewClient(apiKey string, httpClient *http.Client, logger *logging.Logger, config ClientConfig) (*Client, error) {
	if httpClient == nil {
		return nil, ErrNilClient
	}
	if logger == nil {
		return nil, ErrNilLogger
	}
	if err := ValidateAPIKey(apiKey); err != nil {
		return nil, fmt.Errorf("ocrprocessor: %w", err)
	}
	if config.Mode == "" {
		config.Mode = core.OCRModeDataURL
	}
	if config.Mode != core.OCRModeDataURL && config.Mode != core.OCRModeMultipart {
		return nil, fmt.Errorf("ocrprocessor: unknown request mode %q", config.Mode)
	}

	return &Client{
		apiKey:     apiKey,
		httpClient: httpClient,
		logger:     logger.Named("ocr-client"),
		config:     config,
	}, nil
}

// Source tags text produced by this client: conversion services are
// reported as serviceApi, image OCR as ocr.
func (c *Client) Source() document.Source {
	if c.config.Mode == core.OCRModeMultipart {
		return document.SourceOCR
	}
	return document.SourceServiceAPI
}

// Recognize sends data to the service and returns its text. Failures of the
// call itself are SERVICE_TIMEOUT or SERVICE_ERROR DocumentErrors.
func (c *Client) Recognize(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("ocrprocessor: document data is empty")
	}
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	start := time.Now()
	log := c.logger.With(zap.Int("document_bytes", len(data)), zap.String("mode", c.config.Mode))
	log.Debug("sending document to OCR service")

	req, err := c.buildRequest(ctx, data)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", core.ErrService(serviceName, "", fmt.Errorf("request timed out: %w", ctx.Err()))
		}
		return "", core.ErrService(serviceName, "", fmt.Errorf("failed to send request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", core.ErrService(serviceName, "", fmt.Errorf("failed to read response body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Warn("OCR service returned an error status", zap.Int("status_code", resp.StatusCode))
		return "", core.ErrService(serviceName, "", fmt.Errorf("service returned status %d: %s", resp.StatusCode, logging.Redact(snippet(body))))
	}

	text, err := ParseResponse(body)
	if err != nil {
		log.Warn("OCR response unusable", zap.Error(err))
		return "", core.ErrService(serviceName, "", err)
	}

	log.Info("OCR completed",
		zap.Int("text_length", len(text)),
		zap.Duration("processing_time", time.Since(start)))
	return text, nil
}

func (c *Client) buildRequest(ctx context.Context, data []byte) (*http.Request, error) {
	var (
		body        bytes.Buffer
		contentType string
	)

	switch c.config.Mode {
	case core.OCRModeMultipart:
		mw := multipart.NewWriter(&body)
		fw, err := mw.CreateFormFile("file", "document.pdf")
		if err != nil {
			return nil, fmt.Errorf("ocrprocessor: failed to build form: %w", err)
		}
		if _, err := fw.Write(data); err != nil {
			return nil, fmt.Errorf("ocrprocessor: failed to build form: %w", err)
		}
		fields := [][2]string{{"language", c.config.Language}, {"isOverlayRequired", "false"}, {"filetype", "PDF"}}
		for _, f := range fields {
			if err := mw.WriteField(f[0], f[1]); err != nil {
				return nil, fmt.Errorf("ocrprocessor: failed to build form: %w", err)
			}
		}
		if err := mw.Close(); err != nil {
			return nil, fmt.Errorf("ocrprocessor: failed to build form: %w", err)
		}
		contentType = mw.FormDataContentType()

	default:
		payload := dataURLRequest{
			URL:    PDFDataURL(data),
			Inline: true,
			Lang:   c.config.Language,
			Async:  false,
		}
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			return nil, fmt.Errorf("ocrprocessor: failed to marshal request: %w", err)
		}
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("ocrprocessor: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if c.config.Mode == core.OCRModeMultipart {
		req.Header.Set("apikey", c.apiKey)
	} else {
		req.Header.Set("x-api-key", c.apiKey)
	}
	return req, nil
}

type dataURLRequest struct {
	URL    string `json:"url"`
	Inline bool   `json:"inline"`
	Lang   string `json:"lang"`
	Async  bool   `json:"async"`
}

// MaskedAPIKey returns the key in a form safe for logs.
func (c *Client) MaskedAPIKey() string {
	return logging.MaskKey(c.apiKey)
}

func snippet(b []byte) string {
	const n = 200
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
