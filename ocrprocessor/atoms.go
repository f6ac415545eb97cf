// Package ocrprocessor delegates text recognition of scanned documents to an
// external OCR or document-conversion service.
//
// atoms.go contains pure request and response helpers with no I/O.
package ocrprocessor

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyAPIKey indicates that the API key is empty or whitespace.
	ErrEmptyAPIKey = errors.New("API key is empty")

	// ErrNoTextFound indicates the service answered without any text.
	ErrNoTextFound = errors.New("ocrprocessor: no text in service response")

	// ErrServiceReported wraps an error the service put in a 2xx body.
	ErrServiceReported = errors.New("ocrprocessor: service reported an error")
)

// ValidateAPIKey checks that a key is present.
func ValidateAPIKey(apiKey string) error {
	if strings.TrimSpace(apiKey) == "" {
		return ErrEmptyAPIKey
	}
	return nil
}

// PDFDataURL encodes data as a base64 data URL.
func PDFDataURL(data []byte) string {
	return "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(data)
}

// serviceResponse covers the shapes returned by conversion services
// (body or text) and OCR services (ParsedResults).
type serviceResponse struct {
	Body          string `json:"body"`
	Text          string `json:"text"`
	ParsedResults []struct {
		ParsedText   string `json:"ParsedText"`
		ErrorMessage string `json:"ErrorMessage"`
	} `json:"ParsedResults"`

	Error                 json.RawMessage `json:"error"`
	Message               string          `json:"message"`
	IsErroredOnProcessing bool            `json:"IsErroredOnProcessing"`
	ErrorMessage          json.RawMessage `json:"ErrorMessage"`
}

// ParseResponse extracts recognized text from a service response body.
// Malformed JSON and service-reported errors are returned as errors.
func ParseResponse(body []byte) (string, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return "", ErrNoTextFound
	}

	var resp serviceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("ocrprocessor: malformed response: %w", err)
	}

	if msg, failed := reportedError(&resp); failed {
		return "", fmt.Errorf("%w: %s", ErrServiceReported, msg)
	}

	text := resp.Body
	if strings.TrimSpace(text) == "" {
		text = resp.Text
	}
	if strings.TrimSpace(text) == "" && len(resp.ParsedResults) > 0 {
		parts := make([]string, 0, len(resp.ParsedResults))
		for _, r := range resp.ParsedResults {
			if t := strings.TrimSpace(r.ParsedText); t != "" {
				parts = append(parts, t)
			}
		}
		text = strings.Join(parts, "\n\n")
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrNoTextFound
	}
	return text, nil
}

// reportedError interprets "error" as either a boolean flag or a message.
func reportedError(resp *serviceResponse) (string, bool) {
	if resp.IsErroredOnProcessing {
		return firstMessage(decodeMessages(resp.ErrorMessage), resp.Message, "processing failed"), true
	}

	switch raw := bytes.TrimSpace(resp.Error); {
	case len(raw) == 0, bytes.Equal(raw, []byte("null")), bytes.Equal(raw, []byte("false")):
		return "", false
	case bytes.Equal(raw, []byte("true")):
		return firstMessage(resp.Message, decodeMessages(resp.ErrorMessage), "unknown error"), true
	default:
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if s == "" {
				return "", false
			}
			return s, true
		}
		return string(raw), true
	}
}

// decodeMessages accepts a string or an array of strings.
func decodeMessages(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var list []string
	if json.Unmarshal(raw, &list) == nil {
		return strings.Join(list, "; ")
	}
	return ""
}

func firstMessage(candidates ...string) string {
	for _, c := range candidates {
		if strings.TrimSpace(c) != "" {
			return c
		}
	}
	return ""
}
