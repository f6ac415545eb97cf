package pdfprocessor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zlib"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// maxInflatedBytes caps the decoded size of all streams in one document.
const maxInflatedBytes = 64 << 20

// dictLookback is how far before a "stream" keyword the dictionary is
// searched for filter and subtype names.
const dictLookback = 2048

// Streams that never carry page text.
var skippedStreamMarkers = [][]byte{
	[]byte("/Subtype /Image"),
	[]byte("/Subtype/Image"),
	[]byte("/DCTDecode"),
	[]byte("/JPXDecode"),
	[]byte("/CCITTFaxDecode"),
	[]byte("/JBIG2Decode"),
	[]byte("/XRef"),
	[]byte("/Length1"),
	[]byte("/Type1C"),
	[]byte("/CIDFontType0C"),
	[]byte("/OpenType"),
	[]byte("/Metadata"),
}

// ContentSource yields decoded content streams for the heuristic
// strategies. The boolean is false when no streams could be located.
type ContentSource interface {
	Streams(ctx context.Context, data []byte) ([][]byte, bool)
}

// InflateSource scans the raw bytes for stream objects and inflates the
// Flate-compressed ones. It works on files too broken for any parser.
type InflateSource struct{}

func (InflateSource) Streams(ctx context.Context, data []byte) ([][]byte, bool) {
	return scanStreams(ctx, data)
}

// PageContentSource asks pdfcpu for each page's decoded content and falls
// back to Fallback when the document does not validate.
type PageContentSource struct {
	Fallback ContentSource
}

func (s PageContentSource) Streams(ctx context.Context, data []byte) ([][]byte, bool) {
	pages, err := pdfcpuPageContents(ctx, data)
	if err == nil && len(pages) > 0 {
		return pages, true
	}
	if s.Fallback == nil {
		return nil, false
	}
	return s.Fallback.Streams(ctx, data)
}

var disablePdfcpuConfig sync.Once

func pdfcpuPageContents(ctx context.Context, data []byte) (pages [][]byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("pdfcpu panic: %v", r)
		}
	}()

	// pdfcpu otherwise creates a config directory under the user's home.
	disablePdfcpuConfig.Do(func() { model.ConfigPath = "disable" })

	conf := model.NewDefaultConfiguration()
	pctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return nil, err
	}

	for i := 1; i <= pctx.PageCount; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := pdfcpu.ExtractPageContent(pctx, i)
		if err != nil || r == nil {
			continue
		}
		b, err := io.ReadAll(io.LimitReader(r, maxInflatedBytes))
		if err != nil || len(b) == 0 {
			continue
		}
		pages = append(pages, b)
	}
	return pages, nil
}

// scanStreams finds "stream ... endstream" bodies, skips image and font
// programs, and inflates FlateDecode bodies. Truncated or corrupt
// compressed data contributes whatever decoded before the error.
func scanStreams(ctx context.Context, data []byte) ([][]byte, bool) {
	var (
		out    [][]byte
		found  bool
		budget = maxInflatedBytes
		pos    = 0
	)

	for budget > 0 {
		if ctx.Err() != nil {
			break
		}
		idx := indexKeyword(data, pos, "stream")
		if idx < 0 {
			break
		}
		bodyStart := idx + len("stream")
		if bodyStart < len(data) && data[bodyStart] == '\r' {
			bodyStart++
		}
		if bodyStart < len(data) && data[bodyStart] == '\n' {
			bodyStart++
		}
		end := bytes.Index(data[bodyStart:], []byte("endstream"))
		if end < 0 {
			break
		}
		bodyEnd := bodyStart + end
		pos = bodyEnd + len("endstream")
		found = true

		dict := data[max(0, idx-dictLookback):idx]
		if i := bytes.LastIndex(dict, []byte("obj")); i >= 0 {
			dict = dict[i:]
		}
		if skipStream(dict) {
			continue
		}

		body := bytes.TrimRight(data[bodyStart:bodyEnd], "\r\n")
		if bytes.Contains(dict, []byte("/FlateDecode")) {
			body = inflate(body, budget)
		}
		if len(body) == 0 {
			continue
		}
		budget -= len(body)
		out = append(out, body)
	}
	return out, found
}

func skipStream(dict []byte) bool {
	for _, m := range skippedStreamMarkers {
		if bytes.Contains(dict, m) {
			return true
		}
	}
	return false
}

// indexKeyword finds word as a standalone token at or after pos, so that
// "stream" does not match inside "endstream".
func indexKeyword(data []byte, pos int, word string) int {
	for pos < len(data) {
		i := bytes.Index(data[pos:], []byte(word))
		if i < 0 {
			return -1
		}
		i += pos
		before := i == 0 || isWhite(data[i-1]) || isDelimiter(data[i-1])
		afterIdx := i + len(word)
		after := afterIdx >= len(data) || isWhite(data[afterIdx]) || isDelimiter(data[afterIdx])
		if before && after {
			return i
		}
		pos = i + len(word)
	}
	return -1
}

// inflate decodes zlib data, retrying as raw deflate when the header is
// missing. Partial output is kept on error.
func inflate(body []byte, limit int) []byte {
	if zr, err := zlib.NewReader(bytes.NewReader(body)); err == nil {
		out, _ := io.ReadAll(io.LimitReader(zr, int64(limit)))
		zr.Close()
		if len(out) > 0 {
			return out
		}
	}
	fr := flate.NewReader(bytes.NewReader(body))
	defer fr.Close()
	out, _ := io.ReadAll(io.LimitReader(fr, int64(limit)))
	return out
}
