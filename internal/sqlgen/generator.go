// Package sqlgen renders extracted invoices as SQL INSERT scripts.
package sqlgen

import (
	"fmt"
	"strings"

	"github.com/zombor/invoice-sql/internal/extraction"
)

// Banner opens every generated script.
const Banner = "-- Script generado automáticamente por invoice-sql"

const schema = `CREATE TABLE IF NOT EXISTS Clientes (
    id TEXT PRIMARY KEY,
    nombre TEXT,
    direccion TEXT
);
CREATE TABLE IF NOT EXISTS Facturas (
    numero TEXT PRIMARY KEY,
    fecha TEXT,
    subtotal NUMERIC,
    iva NUMERIC,
    total NUMERIC,
    cliente_id TEXT REFERENCES Clientes(id)
);
CREATE TABLE IF NOT EXISTS ItemsFactura (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    factura_numero TEXT REFERENCES Facturas(numero),
    descripcion TEXT,
    cantidad NUMERIC,
    precio NUMERIC
);`

// Schema returns the DDL the generated INSERTs target.
func Schema() string {
	return schema
}

// Script is an ordered list of SQL statements.
type Script struct {
	Statements []string
}

// String renders the script with its banner, one statement per line.
func (s *Script) String() string {
	var b strings.Builder
	b.WriteString(Banner)
	b.WriteString("\n\n")
	for _, stmt := range s.Statements {
		b.WriteString(stmt)
		b.WriteString("\n")
	}
	return b.String()
}

// Generate builds the client, invoice and item INSERTs for one invoice.
// Output depends only on the input, so the same record always yields the
// same script.
func Generate(rec extraction.InvoiceRecord, items []extraction.LineItem) *Script {
	s := &Script{Statements: make([]string, 0, 2+len(items))}

	s.Statements = append(s.Statements, fmt.Sprintf(
		"INSERT INTO Clientes (id, nombre, direccion) VALUES (%s, %s, %s);",
		Text(rec.ClientID), Text(rec.ClientName), Text(rec.ClientAddress)))

	s.Statements = append(s.Statements, fmt.Sprintf(
		"INSERT INTO Facturas (numero, fecha, subtotal, iva, total, cliente_id) VALUES (%s, %s, %s, %s, %s, %s);",
		Text(rec.InvoiceNumber), Text(rec.InvoiceDate),
		Number(rec.Subtotal), Number(rec.Tax), Number(rec.Total),
		Text(rec.ClientID)))

	for _, item := range items {
		s.Statements = append(s.Statements, fmt.Sprintf(
			"INSERT INTO ItemsFactura (factura_numero, descripcion, cantidad, precio) VALUES (%s, %s, %s, %s);",
			Text(rec.InvoiceNumber), Text(item.Description),
			Number(item.Quantity), Number(item.UnitPrice)))
	}

	return s
}

// Text quotes a string literal, doubling embedded single quotes. Missing
// values become NULL.
func Text(v string) string {
	if v == "" || v == extraction.NotFound {
		return "NULL"
	}
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}

// Number renders a normalized amount unquoted, or NULL when it did not parse.
func Number(a extraction.Amount) string {
	if !a.Found() {
		return "NULL"
	}
	return a.Normalized
}
