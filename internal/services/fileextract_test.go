package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// buildTextPDF writes a minimal PDF with one Helvetica text line per page.
func buildTextPDF(pages ...string) []byte {
	var objects []string
	objects = append(objects, "<< /Type /Catalog /Pages 2 0 R >>")

	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	objects = append(objects,
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	)
	for i, text := range pages {
		content := fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj ET", text)
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestExtractTextPDF(t *testing.T) {
	extractor := NewPDFExtractor(1 << 20)

	tests := []struct {
		name      string
		pages     []string
		wantText  string
		wantPages int
	}{
		{"single page", []string{"Ola mundo"}, "Ola mundo", 1},
		{"pages joined by newline", []string{"Primeira pagina", "Segunda pagina"}, "Primeira pagina Segunda pagina", 2},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			doc, err := extractor.Extract(context.Background(), "aula.pdf", buildTextPDF(tc.pages...))
			if err != nil {
				t.Fatalf("Extract failed: %v", err)
			}
			if doc.Name != "aula.pdf" {
				t.Errorf("Expected name aula.pdf, got %q", doc.Name)
			}
			if doc.PageCount != tc.wantPages {
				t.Errorf("Expected %d pages, got %d", tc.wantPages, doc.PageCount)
			}
			if got := strings.Join(strings.Fields(doc.Text), " "); got != tc.wantText {
				t.Errorf("Expected text %q, got %q", tc.wantText, doc.Text)
			}
			if tc.wantPages > 1 && strings.Count(doc.Text, "\n") < tc.wantPages-1 {
				t.Errorf("Expected pages separated by newlines, got %q", doc.Text)
			}
		})
	}
}

func TestNormalizeExtractedText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"trims lines", "  linha um  \n  linha dois ", "linha um\nlinha dois"},
		{"collapses blank runs", "a\n\n\n\nb", "a\n\nb"},
		{"windows newlines", "a\r\nb\rc", "a\nb\nc"},
		{"collapses inner spaces", "palavra    outra\tmais", "palavra outra mais"},
		{"empty", " \n \n", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := normalizeExtractedText(tc.input); got != tc.expected {
				t.Errorf("Expected %q, got %q", tc.expected, got)
			}
		})
	}
}

func TestExtractRejectsInvalidInput(t *testing.T) {
	extractor := NewPDFExtractor(1024)

	tests := []struct {
		name string
		data []byte
	}{
		{"empty file", nil},
		{"not a pdf", []byte("isto não é um pdf")},
		{"too large", []byte(strings.Repeat("x", 2048))},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			doc, err := extractor.Extract(context.Background(), "aula.pdf", tc.data)
			if doc != nil {
				t.Errorf("Expected no document, got %+v", doc)
			}
			var extractErr *ExtractionError
			if !errors.As(err, &extractErr) {
				t.Fatalf("Expected ExtractionError, got %v", err)
			}
			if extractErr.Name != "aula.pdf" {
				t.Errorf("Expected file name in error, got %q", extractErr.Name)
			}
		})
	}
}
