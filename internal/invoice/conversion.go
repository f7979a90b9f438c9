package invoice

import (
	"errors"
	"time"

	"github.com/zombor/invoice-sql/internal/extraction"
)

var (
	// ErrNotFound is returned when a conversion or one of its files does not exist
	ErrNotFound = errors.New("not found")
	// ErrScanFailed is returned when no text could be recognized from an upload
	ErrScanFailed = errors.New("text recognition failed")
)

// Conversion is one invoice document turned into an SQL script
type Conversion struct {
	ID          string                   `json:"id"`
	Filename    string                   `json:"filename"`
	ContentType string                   `json:"content_type"`
	Method      string                   `json:"method"`             // how the text was obtained
	Language    string                   `json:"language,omitempty"` // OCR language, if any
	Pages       int                      `json:"pages"`
	Text        string                   `json:"text"` // recognized text the extractor ran on
	Record      extraction.InvoiceRecord `json:"factura"`
	Items       []extraction.LineItem    `json:"items"`
	Warnings    []string                 `json:"warnings"`
	SourceFile  string                   `json:"source_file,omitempty"` // uploaded document in storage
	ScriptFile  string                   `json:"script_file"`           // generated .sql in storage
	CreatedAt   time.Time                `json:"created_at"`
}

// Result returns the extraction result the conversion was built from
func (c *Conversion) Result() *extraction.Result {
	return &extraction.Result{
		Record:   c.Record,
		Items:    c.Items,
		Warnings: c.Warnings,
	}
}
