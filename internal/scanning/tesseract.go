package scanning

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// TesseractConfig configures the tesseract command line backend
type TesseractConfig struct {
	Binary      string   // tesseract executable, looked up in PATH
	TessdataDir string   // optional --tessdata-dir
	Languages   []string // one recognition pass per language; the wordiest wins
	PSM         int      // page segmentation mode, 0 keeps tesseract's default
	OEM         int      // engine mode, 0 keeps tesseract's default
	DPI         float64  // PDF render resolution
	MaxPages    int
	Enhance     bool // grayscale, contrast and sharpen before recognition
	Timeout     time.Duration

	// MinTextWords is how many words a PDF text layer needs before OCR is
	// skipped. Negative disables the text layer.
	MinTextWords int
}

// Tesseract implements the Scanner interface by running the tesseract CLI
type Tesseract struct {
	cfg    TesseractConfig
	runner Runner
}

// NewTesseract creates a new Tesseract Scanner instance
func NewTesseract(cfg TesseractConfig) (*Tesseract, error) {
	return NewTesseractWithRunner(cfg, execRunner{})
}

// NewTesseractWithRunner creates a Tesseract Scanner that runs commands
// through runner (for testing)
func NewTesseractWithRunner(cfg TesseractConfig, runner Runner) (*Tesseract, error) {
	if cfg.Binary == "" {
		cfg.Binary = "tesseract"
	}
	if len(cfg.Languages) == 0 {
		cfg.Languages = []string{"eng", "spa"}
	}
	for _, lang := range cfg.Languages {
		if strings.TrimSpace(lang) == "" {
			return nil, fmt.Errorf("empty tesseract language")
		}
	}
	if cfg.DPI <= 0 {
		cfg.DPI = defaultDPI
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaultMaxPages
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.MinTextWords == 0 {
		cfg.MinTextWords = 10
	}
	return &Tesseract{cfg: cfg, runner: runner}, nil
}

// ScanText recognizes the text of an invoice. Digital PDFs are read from
// their text layer; everything else is rasterized and passed through
// tesseract once per configured language.
func (t *Tesseract) ScanText(data []byte, contentType string) (*Document, error) {
	ctx, cancel := context.WithTimeout(context.Background(), t.cfg.Timeout)
	defer cancel()

	if normalizeMIME(contentType) == "application/pdf" && t.cfg.MinTextWords > 0 {
		text, pages, err := pdfText(data, t.cfg.MaxPages)
		switch {
		case err != nil:
			slog.Debug("PDF text layer unavailable", "error", err)
		case wordCount(text) >= t.cfg.MinTextWords:
			slog.Debug("Using PDF text layer", "pages", pages, "words", wordCount(text))
			return &Document{Text: text, Pages: pages, Method: "pdf-text"}, nil
		}
	}

	pages, err := decodePages(data, contentType, t.cfg.DPI, t.cfg.MaxPages)
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "invoice-ocr-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	paths := make([]string, 0, len(pages))
	for i, img := range pages {
		if t.cfg.Enhance {
			img = enhance(img)
		}
		b, err := encodePNG(img)
		if err != nil {
			return nil, err
		}
		path := filepath.Join(dir, fmt.Sprintf("page-%03d.png", i+1))
		if err := os.WriteFile(path, b, 0600); err != nil {
			return nil, fmt.Errorf("writing page image: %w", err)
		}
		paths = append(paths, path)
	}

	var best *Document
	for _, lang := range t.cfg.Languages {
		var text strings.Builder
		for i, path := range paths {
			out, err := t.recognize(ctx, path, lang)
			if err != nil {
				return nil, fmt.Errorf("page %d: %w", i+1, err)
			}
			if i > 0 {
				text.WriteString("\n\n")
			}
			text.WriteString(out)
		}

		doc := &Document{Text: text.String(), Pages: len(paths), Method: "tesseract", Language: lang}
		slog.Debug("Tesseract pass finished", "lang", lang, "words", wordCount(doc.Text))
		if best == nil || wordCount(doc.Text) > wordCount(best.Text) {
			best = doc
		}
	}

	return best, nil
}

// recognize runs: tesseract <file> stdout -l <lang> [options]
func (t *Tesseract) recognize(ctx context.Context, path, lang string) (string, error) {
	args := []string{path, "stdout", "-l", lang}
	if t.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.cfg.TessdataDir)
	}
	if t.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(t.cfg.PSM))
	}
	if t.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(t.cfg.OEM))
	}
	// keep column gaps instead of collapsing them to one space
	args = append(args, "-c", "preserve_interword_spaces=1")

	out, errb, err := t.runner.Run(ctx, t.cfg.Binary, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract (%s): %w: %s", lang, err, truncate(strings.TrimSpace(string(errb)), 512))
	}
	return string(out), nil
}

// Close is a no-op; every scan cleans up its own temp files
func (t *Tesseract) Close() error {
	return nil
}
