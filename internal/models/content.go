package models

import (
	"mime"
	"strings"
)

const PDFMediaType = "application/pdf"

// Document is the text extracted from one uploaded PDF. Immutable once built.
type Document struct {
	Name      string `json:"name"`
	Text      string `json:"text"`
	PageCount int    `json:"page_count"`
}

// Upload is a file as declared by the client.
type Upload struct {
	Name      string
	MediaType string
	Data      []byte
}

// IsPDF reports whether the declared media type is application/pdf.
func (u Upload) IsPDF() bool {
	return IsPDFMediaType(u.MediaType)
}

func IsPDFMediaType(mediaType string) bool {
	if mediaType == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		mt = strings.TrimSpace(strings.SplitN(mediaType, ";", 2)[0])
	}
	return strings.EqualFold(mt, PDFMediaType)
}
