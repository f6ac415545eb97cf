package ocrprocessor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"docqa/core"
	"docqa/document"
	"docqa/logging"
)

func newTestClient(t *testing.T, url, mode string) *Client {
	t.Helper()
	cfg := DefaultClientConfig()
	cfg.Endpoint = url
	cfg.Mode = mode
	cfg.Timeout = 2 * time.Second
	c, err := NewClient("test-api-key", &http.Client{}, logging.NewNop(), cfg)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name    string
		apiKey  string
		client  *http.Client
		logger  *logging.Logger
		mode    string
		wantErr error
	}{
		{name: "valid", apiKey: "key", client: &http.Client{}, logger: logging.NewNop()},
		{name: "nil client", apiKey: "key", logger: logging.NewNop(), wantErr: ErrNilClient},
		{name: "nil logger", apiKey: "key", client: &http.Client{}, wantErr: ErrNilLogger},
		{name: "empty key", apiKey: "  ", client: &http.Client{}, logger: logging.NewNop(), wantErr: ErrEmptyAPIKey},
		{name: "bad mode", apiKey: "key", client: &http.Client{}, logger: logging.NewNop(), mode: "fax"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultClientConfig()
			if tt.mode != "" {
				cfg.Mode = tt.mode
			}
			_, err := NewClient(tt.apiKey, tt.client, tt.logger, cfg)
			switch {
			case tt.name == "bad mode":
				if err == nil {
					t.Fatal("expected error for unknown mode")
				}
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("got %v, want %v", err, tt.wantErr)
				}
			case err != nil:
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestRecognizeDataURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-api-key" {
			t.Errorf("missing x-api-key header")
		}
		var req dataURLRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if !strings.HasPrefix(req.URL, "data:application/pdf;base64,") {
			t.Errorf("url = %q", req.URL)
		}
		if !req.Inline || req.Async || req.Lang != "eng" {
			t.Errorf("unexpected request options: %+v", req)
		}
		w.Write([]byte(`{"body":"Converted text of the scanned page","error":false,"status":200}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, core.OCRModeDataURL)
	text, err := c.Recognize(context.Background(), []byte("%PDF-1.4 fake"))
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if text != "Converted text of the scanned page" {
		t.Errorf("text = %q", text)
	}
	if c.Source() != document.SourceServiceAPI {
		t.Errorf("source = %q", c.Source())
	}
}

func TestRecognizeMultipart(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("apikey") != "test-api-key" {
			t.Errorf("missing apikey header")
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.FormValue("language"); got != "eng" {
			t.Errorf("language = %q", got)
		}
		if got := r.FormValue("isOverlayRequired"); got != "false" {
			t.Errorf("isOverlayRequired = %q", got)
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		data, _ := io.ReadAll(f)
		if string(data) != "%PDF-1.4 scan" {
			t.Errorf("file = %q", data)
		}
		w.Write([]byte(`{"ParsedResults":[{"ParsedText":"page one"},{"ParsedText":"page two"}],"IsErroredOnProcessing":false}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, core.OCRModeMultipart)
	text, err := c.Recognize(context.Background(), []byte("%PDF-1.4 scan"))
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if text != "page one\n\npage two" {
		t.Errorf("text = %q", text)
	}
	if c.Source() != document.SourceOCR {
		t.Errorf("source = %q", c.Source())
	}
}

func TestRecognizeFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{name: "server error", status: 500, body: "boom", wantErr: "status 500"},
		{name: "unauthorized", status: 401, body: `{"message":"bad key"}`, wantErr: "status 401"},
		{name: "malformed json", status: 200, body: "<html>", wantErr: "malformed response"},
		{name: "error flag", status: 200, body: `{"error":true,"message":"file too large"}`, wantErr: "file too large"},
		{name: "error string", status: 200, body: `{"error":"quota exceeded"}`, wantErr: "quota exceeded"},
		{name: "processing error", status: 200, body: `{"IsErroredOnProcessing":true,"ErrorMessage":["Timed out waiting"]}`, wantErr: "Timed out waiting"},
		{name: "empty body", status: 200, body: `{"body":"   "}`, wantErr: "no text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newTestClient(t, server.URL, core.OCRModeDataURL).Recognize(context.Background(), []byte("x"))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("got %v, want error containing %q", err, tt.wantErr)
			}
			if code := core.GetErrorCode(err); code != core.ErrCodeService {
				t.Errorf("code = %q, want %q", code, core.ErrCodeService)
			}
		})
	}
}

func TestRecognizeTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, core.OCRModeDataURL)
	c.config.Timeout = 50 * time.Millisecond

	_, err := c.Recognize(context.Background(), []byte("x"))
	if err == nil || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v, want deadline exceeded", err)
	}
	if code := core.GetErrorCode(err); code != core.ErrCodeServiceTimeout {
		t.Errorf("code = %q, want %q", code, core.ErrCodeServiceTimeout)
	}
}

func TestRecognizeEmptyInput(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1", core.OCRModeDataURL)
	if _, err := c.Recognize(context.Background(), nil); err == nil {
		t.Fatal("expected error for empty data")
	}
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"body":"from body","text":"from text"}`, "from body"},
		{`{"text":"from text"}`, "from text"},
		{`{"error":null,"body":"ok"}`, "ok"},
		{`{"error":"","body":"ok"}`, "ok"},
	}
	for _, tt := range tests {
		got, err := ParseResponse([]byte(tt.body))
		if err != nil {
			t.Errorf("%s: %v", tt.body, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.body, got, tt.want)
		}
	}
}

func TestConfigFromCore(t *testing.T) {
	cfg := &core.Config{OCRAPIURL: "https://ocr.example/parse", OCRRequestMode: core.OCRModeMultipart, OCRLanguage: "ger", ExternalTimeout: 5 * time.Second}
	got := ConfigFromCore(cfg)
	if got.Endpoint != cfg.OCRAPIURL || got.Mode != core.OCRModeMultipart || got.Language != "ger" || got.Timeout != 5*time.Second {
		t.Errorf("unexpected config %+v", got)
	}
}
