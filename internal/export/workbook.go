// Package export renders extraction results as spreadsheets.
package export

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/zombor/invoice-sql/internal/extraction"
)

// Sheet names of the generated workbook.
const (
	InvoiceSheet  = "Factura"
	ItemsSheet    = "Items"
	WarningsSheet = "Avisos"
)

// Workbook returns an XLSX workbook (as bytes) with the invoice fields, its
// line items and the extraction warnings on separate sheets.
func Workbook(res *extraction.Result) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), InvoiceSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(ItemsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(WarningsSheet); err != nil {
		return nil, err
	}

	rec := res.Record
	invoiceRows := [][]any{
		{"Campo", "Valor", "Valor normalizado"},
		{extraction.FieldClientID, rec.ClientID, ""},
		{extraction.FieldClientName, rec.ClientName, ""},
		{extraction.FieldClientAddress, rec.ClientAddress, ""},
		{extraction.FieldInvoiceNumber, rec.InvoiceNumber, ""},
		{extraction.FieldInvoiceDate, rec.InvoiceDate, ""},
		{extraction.FieldSubtotal, rec.Subtotal.Raw, number(rec.Subtotal)},
		{extraction.FieldTax, rec.Tax.Raw, number(rec.Tax)},
		{extraction.FieldTotal, rec.Total.Raw, number(rec.Total)},
	}
	if err := writeRows(f, InvoiceSheet, invoiceRows); err != nil {
		return nil, err
	}

	itemRows := [][]any{{"descripcion", "cantidad", "precio", "total"}}
	for _, item := range res.Items {
		itemRows = append(itemRows, []any{
			item.Description,
			number(item.Quantity),
			number(item.UnitPrice),
			number(item.LineTotal),
		})
	}
	if err := writeRows(f, ItemsSheet, itemRows); err != nil {
		return nil, err
	}

	warningRows := [][]any{{"aviso"}}
	for _, w := range res.Warnings {
		warningRows = append(warningRows, []any{w})
	}
	if err := writeRows(f, WarningsSheet, warningRows); err != nil {
		return nil, err
	}

	_ = f.SetColWidth(InvoiceSheet, "A", "A", 20)
	_ = f.SetColWidth(InvoiceSheet, "B", "C", 32)
	_ = f.SetColWidth(ItemsSheet, "A", "A", 48)
	_ = f.SetColWidth(ItemsSheet, "B", "D", 14)
	_ = f.SetColWidth(WarningsSheet, "A", "A", 60)

	f.SetActiveSheet(0)
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("writing %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

// number writes parsed amounts as numeric cells and anything else as text.
func number(a extraction.Amount) any {
	if !a.Found() {
		return ""
	}
	v, err := decimal.NewFromString(a.Normalized)
	if err != nil {
		return a.Normalized
	}
	return v.InexactFloat64()
}
