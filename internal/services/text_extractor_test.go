package services

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Corphon/StoryForge/internal/errors"
)

func TestTextExtractor_PlainFormats(t *testing.T) {
	var e TextExtractor
	for _, name := range []string{"script.txt", "SCRIPT.MD", "draft.fountain"} {
		text, err := e.Extract(name, []byte("\xef\xbb\xbfINT. DINER - NIGHT\r\nJake sits."))
		require.NoError(t, err, name)
		assert.Equal(t, "INT. DINER - NIGHT\nJake sits.", text)
	}
}

func TestTextExtractor_Rejects(t *testing.T) {
	var e TextExtractor
	cases := map[string][]byte{
		"empty.txt":   {},
		"script.docx": []byte("PK..."),
		"binary.txt":  {0xff, 0xfe, 0xfd},
		"broken.pdf":  []byte("not a pdf at all"),
	}
	for name, data := range cases {
		_, err := e.Extract(name, data)
		require.Error(t, err, name)
		assert.True(t, apperrors.IsValidationError(err), name)
	}
}

// buildPDF 生成单页 PDF，每行一个 Tj
func buildPDF(lines ...string) []byte {
	var content strings.Builder
	content.WriteString("BT /F1 12 Tf 72 720 Td\n")
	for i, line := range lines {
		if i > 0 {
			content.WriteString("0 -16 Td\n")
		}
		fmt.Fprintf(&content, "(%s) Tj\n", line)
	}
	content.WriteString("ET")

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", content.Len(), content.String()),
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestTextExtractor_PDF(t *testing.T) {
	var e TextExtractor
	text, err := e.Extract("noir.PDF", buildPDF("INT. DINER - NIGHT", "Jake sits alone."))
	require.NoError(t, err)
	assert.Contains(t, text, "INT. DINER - NIGHT")
	assert.Contains(t, text, "Jake sits alone.")
}

func TestTextExtractor_PDFWithoutText(t *testing.T) {
	var e TextExtractor
	_, err := e.Extract("blank.pdf", buildPDF())
	require.Error(t, err)
	assert.True(t, apperrors.IsValidationError(err))
}

func TestTextExtractor_DamagedPDFIsValidationError(t *testing.T) {
	valid := buildPDF("FADE IN:", "EXT. PIER - DAWN")

	damaged := [][]byte{
		[]byte("%PDF-1.4\n%%EOF\n"),
		valid[:len(valid)/2],
		bytes.Replace(valid, []byte("/Root 1 0 R"), []byte("/Root 9 0 R"), 1),
		bytes.Replace(valid, []byte("/Kids [3 0 R]"), []byte("/Kids [4 0 R]"), 1),
	}
	// 逐段覆写字节，解析器不论报错还是 panic 都应得到校验错误
	for off := 16; off < len(valid)-32; off += 24 {
		b := append([]byte(nil), valid...)
		copy(b[off:], "\x00)]>>{{")
		damaged = append(damaged, b)
	}

	for i, data := range damaged {
		assert.NotPanics(t, func() {
			if _, err := extractPDF(data); err != nil {
				assert.True(t, apperrors.IsValidationError(err), "case %d: %v", i, err)
			}
		}, "case %d", i)
	}
}
