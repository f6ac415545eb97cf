// Package docformat maps an upload's declared media type and file name to
// the extractor that should handle it.
package docformat

import (
	"mime"
	"path/filepath"
	"strings"

	"docqa/core"
)

// Format is a supported document format.
type Format string

const (
	PDF         Format = "pdf"
	DOCX        Format = "docx"
	TXT         Format = "txt"
	Unsupported Format = "unsupported"
)

const (
	MediaTypePDF  = "application/pdf"
	MediaTypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MediaTypeTXT  = "text/plain"
)

// Browsers and multipart clients send these when they do not know better.
var genericMediaTypes = map[string]bool{
	"":                             true,
	"application/octet-stream":     true,
	"binary/octet-stream":          true,
	"application/binary":           true,
	"application/force-download":   true,
	"application/zip":              true, // a docx is a zip container
	"application/x-zip-compressed": true,
}

var extensionFormats = map[string]Format{
	".pdf":  PDF,
	".docx": DOCX,
	".txt":  TXT,
	".text": TXT,
	".md":   TXT,
	".csv":  TXT,
	".log":  TXT,
}

// Detect returns the format for an upload. Unsupported inputs return
// Unsupported together with a core.DocumentError naming the file and the
// offending type.
func Detect(mediaType, fileName string) (Format, error) {
	mt := normalizeMediaType(mediaType)

	switch {
	case mt == MediaTypePDF || mt == "application/x-pdf":
		return PDF, nil
	case mt == MediaTypeDOCX:
		return DOCX, nil
	case mt == MediaTypeTXT || (strings.HasPrefix(mt, "text/") && mt != "text/html"):
		return TXT, nil
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	if genericMediaTypes[mt] {
		if f, ok := extensionFormats[ext]; ok {
			return f, nil
		}
	}

	offending := mediaType
	if mt == "" || genericMediaTypes[mt] {
		offending = ext
		if offending == "" {
			offending = mediaType
		}
	}
	return Unsupported, core.ErrUnsupportedFormat(fileName, offending)
}

// MediaTypeFor returns the canonical media type of a supported format.
func MediaTypeFor(f Format) string {
	switch f {
	case PDF:
		return MediaTypePDF
	case DOCX:
		return MediaTypeDOCX
	case TXT:
		return MediaTypeTXT
	default:
		return ""
	}
}

// normalizeMediaType lowercases and strips parameters such as charset.
func normalizeMediaType(mediaType string) string {
	mediaType = strings.TrimSpace(mediaType)
	if mediaType == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(mediaType); err == nil {
		return mt
	}
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = mediaType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}
