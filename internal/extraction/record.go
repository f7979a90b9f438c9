package extraction

import "fmt"

// NotFound marks a field the extractor could not resolve. It is distinct
// from an empty string, which never appears in an extracted value.
const NotFound = "NA"

// Amount keeps a numeric field as matched in the OCR text alongside its
// canonical form ('.' as decimal separator, no grouping).
type Amount struct {
	Raw        string `json:"raw"`
	Normalized string `json:"normalized"`
}

// Found reports whether the amount parsed to a usable number.
func (a Amount) Found() bool {
	return a.Normalized != NotFound && a.Normalized != ""
}

// InvoiceRecord contains the scalar fields extracted from an invoice
type InvoiceRecord struct {
	ClientID      string `json:"cliente_id"`
	ClientName    string `json:"cliente_nombre"`
	ClientAddress string `json:"cliente_direccion"`
	InvoiceNumber string `json:"factura_numero"`
	InvoiceDate   string `json:"factura_fecha"` // as printed, never parsed
	Subtotal      Amount `json:"factura_subtotal"`
	Tax           Amount `json:"factura_iva"`
	Total         Amount `json:"factura_total"`
}

// LineItem is one row of the invoice item table
type LineItem struct {
	Description string `json:"descripcion"`
	Quantity    Amount `json:"cantidad"`
	UnitPrice   Amount `json:"precio"`
	LineTotal   Amount `json:"total"`
}

// Warnings collects one human-readable message per extraction gap.
type Warnings []string

// Addf appends a formatted warning.
func (w *Warnings) Addf(format string, args ...any) {
	*w = append(*w, fmt.Sprintf(format, args...))
}

// Result is everything extracted from a single document.
type Result struct {
	Record   InvoiceRecord `json:"factura"`
	Items    []LineItem    `json:"items"`
	Warnings Warnings      `json:"warnings"`
}

func newRecord() InvoiceRecord {
	missing := Amount{Raw: NotFound, Normalized: NotFound}
	return InvoiceRecord{
		ClientID:      NotFound,
		ClientName:    NotFound,
		ClientAddress: NotFound,
		InvoiceNumber: NotFound,
		InvoiceDate:   NotFound,
		Subtotal:      missing,
		Tax:           missing,
		Total:         missing,
	}
}
