// internal/services/text_extractor.go
package services

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	apperrors "github.com/Corphon/StoryForge/internal/errors"
)

// MaxUploadBytes 上传剧本的大小上限
const MaxUploadBytes = 20 << 20

// TextExtractor 从上传的剧本文件中取出纯文本
type TextExtractor struct{}

// SupportedExtensions 可接受的文件扩展名
func (TextExtractor) SupportedExtensions() []string {
	return []string{".txt", ".md", ".fountain", ".pdf"}
}

// Extract 按扩展名选择解析方式。文本格式必须是合法 UTF-8
func (e TextExtractor) Extract(filename string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", apperrors.NewValidationError("uploaded file is empty", nil)
	}
	if len(data) > MaxUploadBytes {
		return "", apperrors.NewValidationError(fmt.Sprintf("uploaded file exceeds %d bytes", MaxUploadBytes), nil)
	}

	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".txt", ".md", ".fountain":
		data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
		if !utf8.Valid(data) {
			return "", apperrors.NewValidationError(fmt.Sprintf("%s is not valid UTF-8 text", filename), nil)
		}
		return normalizeNewlines(string(data)), nil
	case ".pdf":
		return extractPDF(data)
	default:
		return "", apperrors.NewValidationError(
			fmt.Sprintf("unsupported file type %q, expected one of %s", ext, strings.Join(e.SupportedExtensions(), ", ")), nil)
	}
}

// extractPDF 解析库在畸形输入上可能 panic，统一转成校验错误
func extractPDF(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = apperrors.NewValidationError("cannot read PDF", fmt.Errorf("pdf parser panic: %v", r))
		}
	}()
	return readPDFText(data)
}

func readPDFText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", apperrors.NewValidationError("cannot read PDF", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", apperrors.NewValidationError("cannot extract text from PDF", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", apperrors.NewValidationError("cannot extract text from PDF", err)
	}

	text := strings.TrimSpace(normalizeNewlines(buf.String()))
	if text == "" {
		return "", apperrors.NewValidationError("PDF contains no extractable text", nil)
	}
	return text, nil
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
