package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ConfigError represents a startup configuration problem with an
// instruction for fixing it.
type ConfigError struct {
	Code    string // Error code for programmatic handling
	Message string // Human-readable error message
	Action  string // Actionable instruction for resolution
}

func (e *ConfigError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%s. %s", e.Message, e.Action)
	}
	return e.Message
}

// Configuration error codes
const (
	ErrCodeMissingConfig  = "MISSING_CONFIG"
	ErrCodeInvalidConfig  = "INVALID_CONFIG"
	ErrCodePipelineConfig = "PIPELINE_CONFIG"
)

// ErrMissingConfig reports required variables that are unset.
func ErrMissingConfig(varNames ...string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeMissingConfig,
		Message: fmt.Sprintf("missing required environment variables: %v", varNames),
		Action:  "Set them in the environment or in your .env file",
	}
}

// ErrInvalidConfig reports variables whose values fail validation.
func ErrInvalidConfig(problems ...string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidConfig,
		Message: fmt.Sprintf("invalid configuration: %s", strings.Join(problems, "; ")),
		Action:  "Correct the listed values and restart",
	}
}

// ErrPipelineConfig reports an unreadable or invalid pipeline YAML file.
func ErrPipelineConfig(path string, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodePipelineConfig,
		Message: fmt.Sprintf("invalid pipeline configuration %s: %s", path, reason),
		Action:  "Fix the file or unset PIPELINE_CONFIG to use the default strategy order",
	}
}

// IsConfigError extracts a ConfigError from err.
func IsConfigError(err error) (*ConfigError, bool) {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// DocumentError is the user-facing failure of one input: a file, a URL or
// a question. Source names the input; Action tells the user what to do.
type DocumentError struct {
	Code    string
	Source  string
	Message string
	Action  string
	Err     error
}

func (e *DocumentError) Error() string {
	var b strings.Builder
	if e.Source != "" {
		b.WriteString(e.Source)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Err != nil {
		fmt.Fprintf(&b, " (%v)", e.Err)
	}
	if e.Action != "" {
		b.WriteString(". ")
		b.WriteString(e.Action)
	}
	return b.String()
}

func (e *DocumentError) Unwrap() error { return e.Err }

// Document error codes
const (
	ErrCodeUnsupportedFormat     = "UNSUPPORTED_FORMAT"
	ErrCodeDecode                = "DECODE_ERROR"
	ErrCodeStructuredExtraction  = "STRUCTURED_EXTRACTION_ERROR"
	ErrCodeUnextractableDocument = "UNEXTRACTABLE_DOCUMENT"
	ErrCodeServiceTimeout        = "SERVICE_TIMEOUT"
	ErrCodeService               = "SERVICE_ERROR"
	ErrCodeContextEmpty          = "CONTEXT_EMPTY"
	ErrCodeInvalidURL            = "INVALID_URL"
)

// ErrUnsupportedFormat reports a file type no extractor handles.
func ErrUnsupportedFormat(fileName, fileType string) *DocumentError {
	if fileType == "" {
		fileType = "unknown"
	}
	return &DocumentError{
		Code:    ErrCodeUnsupportedFormat,
		Source:  fileName,
		Message: fmt.Sprintf("unsupported file type %q", fileType),
		Action:  "Upload a PDF, DOCX or TXT file",
	}
}

// ErrDecode reports bytes that could not be decoded as text.
func ErrDecode(fileName string, cause error) *DocumentError {
	return &DocumentError{
		Code:    ErrCodeDecode,
		Source:  fileName,
		Message: "could not decode the file as text",
		Action:  "Save the file as UTF-8 plain text and upload it again",
		Err:     cause,
	}
}

// ErrStructuredExtraction reports a corrupt or unexpected DOCX package.
func ErrStructuredExtraction(fileName string, cause error) *DocumentError {
	return &DocumentError{
		Code:    ErrCodeStructuredExtraction,
		Source:  fileName,
		Message: "could not read the document structure",
		Action:  "Open the file in a word processor, save it again as DOCX and re-upload",
		Err:     cause,
	}
}

// ErrUnextractableDocument reports that no method produced readable text.
// detail lists what was attempted.
func ErrUnextractableDocument(fileName, detail string) *DocumentError {
	msg := "no readable text could be extracted"
	if detail != "" {
		msg = fmt.Sprintf("%s (tried %s)", msg, detail)
	}
	return &DocumentError{
		Code:    ErrCodeUnextractableDocument,
		Source:  fileName,
		Message: msg,
		Action:  "The file may be scanned or image-based. Convert it to DOCX or TXT and upload it again",
	}
}

// ErrEmptyContent reports a readable file that contains no text.
func ErrEmptyContent(fileName string) *DocumentError {
	return &DocumentError{
		Code:    ErrCodeUnextractableDocument,
		Source:  fileName,
		Message: "the file contains no text",
		Action:  "Check that you uploaded the right file",
	}
}

// ErrService classifies a failed external call as a timeout or a generic
// service error. target is the file or URL the call was made for.
func ErrService(service, target string, cause error) *DocumentError {
	if IsTimeout(cause) {
		return &DocumentError{
			Code:    ErrCodeServiceTimeout,
			Source:  target,
			Message: fmt.Sprintf("%s did not respond in time", service),
			Action:  "Try again in a moment",
			Err:     cause,
		}
	}
	return &DocumentError{
		Code:    ErrCodeService,
		Source:  target,
		Message: fmt.Sprintf("%s request failed", service),
		Action:  "Check the service credentials and try again",
		Err:     cause,
	}
}

// ErrInvalidURL reports a website address that cannot be fetched.
func ErrInvalidURL(rawURL string, cause error) *DocumentError {
	return &DocumentError{
		Code:    ErrCodeInvalidURL,
		Source:  rawURL,
		Message: "invalid website address",
		Action:  "Check the website address, including http:// or https://, and try again",
		Err:     cause,
	}
}

// ErrBlockedDestination reports a website that resolves to an address the
// server may not fetch, such as loopback or a private network.
func ErrBlockedDestination(rawURL string, cause error) *DocumentError {
	return &DocumentError{
		Code:    ErrCodeService,
		Source:  rawURL,
		Message: "website address points to a private or local network",
		Action:  "Use a publicly reachable website address",
		Err:     cause,
	}
}

// ErrContextEmpty reports a question asked before any content was ingested.
func ErrContextEmpty() *DocumentError {
	return &DocumentError{
		Code:    ErrCodeContextEmpty,
		Message: "no content available to answer questions from",
		Action:  "Upload a document or add a website first",
	}
}

// IsDocumentError extracts a DocumentError from err.
func IsDocumentError(err error) (*DocumentError, bool) {
	var de *DocumentError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// HasCode reports whether err carries the given document or config code.
func HasCode(err error, code string) bool {
	return GetErrorCode(err) == code
}

// GetErrorCode returns the code of a ConfigError or DocumentError, or "".
func GetErrorCode(err error) string {
	if de, ok := IsDocumentError(err); ok {
		return de.Code
	}
	if ce, ok := IsConfigError(err); ok {
		return ce.Code
	}
	return ""
}

// IsTimeout reports whether err is a deadline or network timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
