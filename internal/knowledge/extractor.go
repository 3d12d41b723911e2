package knowledge

import (
	"bytes"
	"strings"
	"unicode"

	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
)

// Extractor 按MIME类型提取文档文本
type Extractor interface {
	Supports(mimeType string) bool
	Extract(data []byte) string
}

// TextExtractor 纯文本提取器
type TextExtractor struct{}

func (e *TextExtractor) Supports(mimeType string) bool {
	return mimeType == "text/plain" || mimeType == "text/markdown"
}

// Extract 按UTF-8解码，非法字节序列替换为U+FFFD，永不失败
func (e *TextExtractor) Extract(data []byte) string {
	return strings.ToValidUTF8(string(data), "�")
}

// PDFExtractor PDF文本提取器
type PDFExtractor struct{}

func (e *PDFExtractor) Supports(mimeType string) bool {
	return mimeType == "application/pdf"
}

// Extract 按页序拼接各页文本。单页失败贡献空串，整体解析失败返回空串，
// 不向上抛错，由调用方按"无可提取文本"跳过。
func (e *PDFExtractor) Extract(data []byte) string {
	pdfReader, err := model.NewPdfReader(bytes.NewReader(data))
	if err != nil {
		return ""
	}

	numPages, err := pdfReader.GetNumPages()
	if err != nil {
		return ""
	}

	var textBuilder strings.Builder
	for i := 1; i <= numPages; i++ {
		page, err := pdfReader.GetPage(i)
		if err != nil {
			continue
		}

		ex, err := extractor.New(page)
		if err != nil {
			continue
		}

		text, err := ex.ExtractText()
		if err != nil {
			continue
		}

		textBuilder.WriteString(text)
		textBuilder.WriteString("\n")
	}

	return textBuilder.String()
}

// ExtractorManager 文本提取器管理器
type ExtractorManager struct {
	extractors []Extractor
}

// NewExtractorManager 创建提取器管理器
func NewExtractorManager() *ExtractorManager {
	return &ExtractorManager{
		extractors: []Extractor{
			&PDFExtractor{},
			&TextExtractor{},
		},
	}
}

// ExtractText 提取并归一化文档文本。未知MIME类型返回空串，调用方跳过。
func (m *ExtractorManager) ExtractText(data []byte, mimeType string) string {
	mimeType = normalizeMIME(mimeType)
	for _, e := range m.extractors {
		if e.Supports(mimeType) {
			return normalizeWhitespace(e.Extract(data))
		}
	}
	return ""
}

// normalizeMIME 去掉参数部分，如 "text/plain; charset=utf-8"
func normalizeMIME(mimeType string) string {
	if idx := strings.IndexByte(mimeType, ';'); idx >= 0 {
		mimeType = mimeType[:idx]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}

func normalizeWhitespace(s string) string {
	var builder strings.Builder
	builder.Grow(len(s))

	var prevSpace bool
	for _, r := range s {
		if unicode.IsSpace(r) {
			if prevSpace {
				continue
			}
			builder.WriteRune(' ')
			prevSpace = true
			continue
		}
		builder.WriteRune(r)
		prevSpace = false
	}

	return strings.TrimSpace(builder.String())
}
