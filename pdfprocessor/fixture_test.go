package pdfprocessor

import (
	"bytes"
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/require"
)

type fixtureOptions struct {
	compress     bool
	imageOnly    bool
	breakTrailer bool
	// rawContent replaces the generated content stream of every page.
	rawContent string
	// filter is written into uncompressed content stream dictionaries.
	filter string
}

// buildPDF writes a minimal PDF with one page per entry of pages. Each
// page shows its text with Helvetica in WinAnsi encoding.
func buildPDF(t testing.TB, pages []string, opts fixtureOptions) []byte {
	t.Helper()

	var objects [][]byte
	add := func(body []byte) int {
		objects = append(objects, body)
		return len(objects)
	}
	reserve := func() int { return add(nil) }
	set := func(num int, body string) { objects[num-1] = []byte(body) }

	catalog := reserve()
	pagesObj := reserve()
	font := add([]byte("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>"))

	var image int
	if opts.imageOnly {
		pixels := make([]byte, 64)
		for i := range pixels {
			pixels[i] = byte(0x80 + i)
		}
		image = add(streamObject("/Type /XObject /Subtype /Image /Width 8 /Height 8 /BitsPerComponent 8 /ColorSpace /DeviceGray", pixels))
	}

	kids := make([]string, 0, len(pages))
	for _, text := range pages {
		content := opts.rawContent
		switch {
		case content != "":
		case opts.imageOnly:
			content = "q 100 0 0 100 72 600 cm /Im1 Do Q"
		default:
			content = "BT /F1 12 Tf 72 720 Td (" + escapeLiteral(text) + ") Tj ET"
		}

		var contentObj int
		if opts.compress {
			var buf bytes.Buffer
			zw := zlib.NewWriter(&buf)
			_, err := zw.Write([]byte(content))
			require.NoError(t, err)
			require.NoError(t, zw.Close())
			contentObj = add(streamObject("/Filter /FlateDecode", buf.Bytes()))
		} else {
			contentObj = add(streamObject(opts.filter, []byte(content)))
		}

		resources := fmt.Sprintf("<< /Font << /F1 %d 0 R >> >>", font)
		if opts.imageOnly {
			resources = fmt.Sprintf("<< /XObject << /Im1 %d 0 R >> >>", image)
		}
		page := add([]byte(fmt.Sprintf("<< /Type /Page /Parent %d 0 R /MediaBox [0 0 612 792] /Resources %s /Contents %d 0 R >>",
			pagesObj, resources, contentObj)))
		kids = append(kids, fmt.Sprintf("%d 0 R", page))
	}

	set(catalog, fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R >>", pagesObj))
	set(pagesObj, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(kids)))

	var out bytes.Buffer
	out.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, body := range objects {
		offsets[i] = out.Len()
		fmt.Fprintf(&out, "%d 0 obj\n", i+1)
		out.Write(body)
		out.WriteString("\nendobj\n")
	}
	if opts.breakTrailer {
		return out.Bytes()
	}

	xref := out.Len()
	fmt.Fprintf(&out, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&out, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&out, "trailer\n<< /Size %d /Root %d 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, catalog, xref)
	return out.Bytes()
}

// binaryNoise returns n pseudo-random bytes with every eighth byte forced
// above 0x7F, so no ASCII run reaches the raw scanner's minimum length.
func binaryNoise(n int) []byte {
	rng := rand.New(rand.NewPCG(7, 11))
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(rng.Uint32())
		if i%8 == 7 {
			out[i] |= 0x80
		}
	}
	return out
}

func streamObject(dict string, data []byte) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "<< %s /Length %d >>\nstream\n", dict, len(data))
	b.Write(data)
	b.WriteString("\nendstream")
	return b.Bytes()
}

func escapeLiteral(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}
