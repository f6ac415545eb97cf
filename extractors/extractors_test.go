package extractors

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/core"
	"docqa/docformat"
	"docqa/document"
)

func TestTextExtractor(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"utf8", []byte("Hello world. This is a test."), "Hello world. This is a test."},
		{"utf8 bom", append([]byte{0xEF, 0xBB, 0xBF}, "Hello"...), "Hello"},
		{"utf16le bom", []byte{0xFF, 0xFE, 'H', 0, 'i', 0, '!', 0}, "Hi!"},
		{"utf16be bom", []byte{0xFE, 0xFF, 0, 'H', 0, 'i'}, "Hi"},
		{"windows-1252", []byte("caf\xe9 cr\xe8me"), "café crème"},
		{"messy whitespace", []byte("  line one  \r\n\r\n\r\n\tline two "), "line one\n\nline two"},
	}

	ex := NewTextExtractor(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ex.Extract(context.Background(), document.NewSourceFile("a.txt", "text/plain", tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Text)
			assert.Equal(t, document.SourceStructured, res.Source)
			assert.Equal(t, len([]rune(tt.want)), res.Length)
		})
	}
}

func TestTextExtractor_Failures(t *testing.T) {
	ex := NewTextExtractor(nil)

	_, err := ex.Extract(context.Background(), document.NewSourceFile("image.txt", "text/plain", []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")))
	require.Error(t, err)
	assert.True(t, core.HasCode(err, core.ErrCodeDecode))
	assert.ErrorIs(t, err, ErrBinaryContent)
	assert.Contains(t, err.Error(), "image.txt")

	_, err = ex.Extract(context.Background(), document.NewSourceFile("blank.txt", "text/plain", []byte(" \n\t\n ")))
	require.Error(t, err)
	assert.True(t, core.HasCode(err, core.ErrCodeUnextractableDocument))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ex.Extract(ctx, document.NewSourceFile("a.txt", "text/plain", []byte("hello")))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDocxExtractor(t *testing.T) {
	data := buildDocx(t, "Quarterly results improved.", "Revenue grew by 12 percent ≥ target.")

	res, err := NewDocxExtractor(nil).Extract(context.Background(), document.NewSourceFile("report.docx", docformat.MediaTypeDOCX, data))
	require.NoError(t, err)
	assert.Contains(t, res.Text, "Quarterly results improved.")
	assert.Contains(t, res.Text, "Revenue grew by 12 percent ≥ target.")
	assert.Equal(t, "docx", res.Strategy)
}

func TestDocxExtractor_Corrupt(t *testing.T) {
	_, err := NewDocxExtractor(nil).Extract(context.Background(),
		document.NewSourceFile("broken.docx", docformat.MediaTypeDOCX, []byte("PK\x03\x04 definitely not a zip")))
	require.Error(t, err)
	assert.True(t, core.HasCode(err, core.ErrCodeStructuredExtraction))
	assert.Contains(t, err.Error(), "broken.docx")
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(nil)

	res, err := r.Extract(context.Background(), document.NewSourceFile("notes.txt", "", []byte("Some notes")))
	require.NoError(t, err)
	assert.Equal(t, "Some notes", res.Text)

	_, err = r.Extract(context.Background(), document.NewSourceFile("budget.xlsx", "", []byte("PK")))
	assert.True(t, core.HasCode(err, core.ErrCodeUnsupportedFormat))

	// No PDF extractor until one is registered.
	_, err = r.Extract(context.Background(), document.NewSourceFile("a.pdf", "application/pdf", []byte("%PDF-1.4")))
	assert.True(t, core.HasCode(err, core.ErrCodeUnsupportedFormat))

	r.Register(docformat.PDF, document.ExtractorFunc(func(ctx context.Context, f document.SourceFile) (*document.ExtractionResult, error) {
		return document.NewExtractionResult("pdf text", document.SourceHeuristic, "stub", 1), nil
	}))
	res, err = r.Extract(context.Background(), document.NewSourceFile("a.pdf", "application/pdf", []byte("%PDF-1.4")))
	require.NoError(t, err)
	assert.Equal(t, "stub", res.Strategy)
}

// buildDocx assembles a minimal word-processor package with one paragraph
// per argument.
func buildDocx(t *testing.T, paragraphs ...string) []byte {
	t.Helper()

	var body bytes.Buffer
	for _, p := range paragraphs {
		body.WriteString(`<w:p><w:r><w:t>` + p + `</w:t></w:r></w:p>`)
	}

	files := []struct{ name, content string }{
		{"[Content_Types].xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`},
		{"_rels/.rels", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`},
		{"word/document.xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` + body.String() + `</w:body></w:document>`},
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		w, err := zw.Create(f.name)
		require.NoError(t, err)
		_, err = w.Write([]byte(f.content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}
