package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"matchin-backend/internal/models"
)

const DefaultMaxPDFBytes = 20 * 1024 * 1024

type PDFExtractor struct {
	maxBytes int64
	conf     *model.Configuration
}

func NewPDFExtractor(maxBytes int64) *PDFExtractor {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxPDFBytes
	}

	// Keep pdfcpu from creating a config directory under $HOME.
	api.DisableConfigDir()
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	return &PDFExtractor{maxBytes: maxBytes, conf: conf}
}

// Extract reads every page of a PDF and returns its text. A PDF without a text
// layer yields a Document with empty Text.
func (s *PDFExtractor) Extract(ctx context.Context, name string, data []byte) (*models.Document, error) {
	if len(data) == 0 {
		return nil, &ExtractionError{Name: name, Err: fmt.Errorf("file is empty")}
	}
	if int64(len(data)) > s.maxBytes {
		return nil, &ExtractionError{Name: name, Err: fmt.Errorf("file exceeds %d bytes", s.maxBytes)}
	}

	pageCount, err := s.pageCount(data)
	if err != nil {
		return nil, &ExtractionError{Name: name, Err: fmt.Errorf("invalid pdf: %w", err)}
	}

	text, err := s.extractPDF(ctx, data)
	if err != nil {
		return nil, &ExtractionError{Name: name, Err: err}
	}

	return &models.Document{
		Name:      name,
		Text:      text,
		PageCount: pageCount,
	}, nil
}

func (s *PDFExtractor) pageCount(data []byte) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf validation panic: %v", r)
		}
	}()
	return api.PageCount(bytes.NewReader(data), s.conf)
}

func (s *PDFExtractor) extractPDF(ctx context.Context, data []byte) (text string, err error) {
	// ledongthuc/pdf panics on some malformed streams.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	totalPage := reader.NumPage()
	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}

		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(content)
		b.WriteString("\n")
	}

	return normalizeExtractedText(b.String()), nil
}

func normalizeExtractedText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	lines := strings.Split(s, "\n")
	buf := bytes.Buffer{}

	emptyCount := 0
	for _, line := range lines {
		trimmed := strings.Join(strings.Fields(line), " ")
		if trimmed == "" {
			emptyCount++
			if emptyCount > 1 {
				continue
			}
			buf.WriteString("\n")
			continue
		}
		emptyCount = 0
		buf.WriteString(trimmed)
		buf.WriteString("\n")
	}

	return strings.TrimSpace(buf.String())
}
