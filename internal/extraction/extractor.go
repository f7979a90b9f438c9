package extraction

import "log/slog"

// Extractor turns OCR text into an invoice record and its line items.
type Extractor struct {
	rules *Rules
}

// NewExtractor creates an extractor backed by the given compiled labels.
func NewExtractor(rules *Rules) *Extractor {
	return &Extractor{rules: rules}
}

// DefaultExtractor returns an extractor using the built-in label table.
func DefaultExtractor() *Extractor {
	return NewExtractor(DefaultRules())
}

// Extract never fails: every gap becomes a NotFound value and, unless the
// field is optional, a warning.
func (e *Extractor) Extract(text string) *Result {
	text = Normalize(text)
	res := &Result{Record: newRecord(), Warnings: Warnings{}}

	for _, name := range FieldNames {
		m, ok := e.rules.fields[name]
		if !ok {
			m = fieldMatcher{name: name}
		}
		v := m.extract(text, &res.Warnings)
		res.Record.set(name, v)
	}

	res.Items = e.rules.ExtractItems(text)
	if len(res.Items) == 0 {
		res.Warnings.Addf("no line items found")
	}

	slog.Debug("Extracted invoice",
		"factura_numero", res.Record.InvoiceNumber,
		"items", len(res.Items),
		"warnings", len(res.Warnings))
	return res
}

func (rec *InvoiceRecord) set(name, v string) {
	switch name {
	case FieldClientID:
		rec.ClientID = v
	case FieldClientName:
		rec.ClientName = v
	case FieldClientAddress:
		rec.ClientAddress = v
	case FieldInvoiceNumber:
		rec.InvoiceNumber = v
	case FieldInvoiceDate:
		rec.InvoiceDate = v
	case FieldSubtotal:
		rec.Subtotal = newAmount(v)
	case FieldTax:
		rec.Tax = newAmount(v)
	case FieldTotal:
		rec.Total = newAmount(v)
	}
}
