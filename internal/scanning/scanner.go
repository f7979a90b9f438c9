package scanning

import "strings"

// Document is the plain text recognized from an invoice image or PDF
type Document struct {
	Text     string `json:"text"`
	Pages    int    `json:"pages"`
	Method   string `json:"method"`             // tesseract, pdf-text, gemini, ...
	Language string `json:"language,omitempty"` // OCR language that produced Text, if any
}

// Scanner defines the interface for text recognition backends
type Scanner interface {
	// ScanText recognizes the text of an invoice image/PDF, keeping its layout
	ScanText(data []byte, contentType string) (*Document, error)
	// Close closes the scanner and releases resources
	Close() error
}

// wordCount is how passes and text layers are compared.
func wordCount(text string) int {
	return len(strings.Fields(text))
}
