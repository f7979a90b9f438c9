package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/zombor/invoice-sql/internal/export"
	"github.com/zombor/invoice-sql/internal/extraction"
	"github.com/zombor/invoice-sql/internal/invoice"
	"github.com/zombor/invoice-sql/internal/scanning"
	"github.com/zombor/invoice-sql/internal/sqlgen"
)

// batch converts documents named on the command line into .sql files
type batch struct {
	scanner   scanning.Scanner
	extractor *extraction.Extractor
	outDir    string
	xlsx      bool
	verify    bool
	stdout    io.Writer
}

// run converts every file and returns how many failed. A failed document
// never stops the rest.
func (b *batch) run(files []string) int {
	if err := os.MkdirAll(b.outDir, 0755); err != nil {
		slog.Error("Failed to create output directory", "path", b.outDir, "error", err)
		return len(files)
	}

	failed := 0
	for _, path := range files {
		if err := b.convert(path); err != nil {
			slog.Error("Failed to convert document", "path", path, "error", err)
			failed++
		}
	}
	return failed
}

func (b *batch) convert(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	text, err := b.recognize(path, data)
	if err != nil {
		return err
	}

	res := b.extractor.Extract(text)
	for _, w := range res.Warnings {
		fmt.Fprintf(b.stdout, "%s: warning: %s\n", path, w)
	}

	script := sqlgen.Generate(res.Record, res.Items)
	if b.verify {
		if err := sqlgen.Verify(context.Background(), script); err != nil {
			return fmt.Errorf("verifying script: %w", err)
		}
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	sqlPath := filepath.Join(b.outDir, base+".sql")
	if err := os.WriteFile(sqlPath, []byte(script.String()), 0644); err != nil {
		return fmt.Errorf("writing script: %w", err)
	}
	fmt.Fprintf(b.stdout, "%s: wrote %s (%d items, %d warnings)\n", path, sqlPath, len(res.Items), len(res.Warnings))

	if b.xlsx {
		workbook, err := export.Workbook(res)
		if err != nil {
			return fmt.Errorf("building workbook: %w", err)
		}
		xlsxPath := filepath.Join(b.outDir, base+".xlsx")
		if err := os.WriteFile(xlsxPath, workbook, 0644); err != nil {
			return fmt.Errorf("writing workbook: %w", err)
		}
		fmt.Fprintf(b.stdout, "%s: wrote %s\n", path, xlsxPath)
	}
	return nil
}

// recognize returns the text of a document; .txt files already are OCR text
func (b *batch) recognize(path string, data []byte) (string, error) {
	contentType := invoice.ContentTypeFor("", path)
	if contentType == "text/plain" {
		return string(data), nil
	}

	doc, err := b.scanner.ScanText(data, contentType)
	if err != nil {
		return "", fmt.Errorf("%w: %w", invoice.ErrScanFailed, err)
	}
	if strings.TrimSpace(doc.Text) == "" {
		return "", fmt.Errorf("%w: no text found", invoice.ErrScanFailed)
	}
	slog.Debug("Recognized document", "path", path, "method", doc.Method, "language", doc.Language, "pages", doc.Pages)
	return doc.Text, nil
}
