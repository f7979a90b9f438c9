package scanning

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// transcriptionPrompt is the shared prompt used by all LLM providers. The
// extractor downstream relies on labels and column gaps surviving as text.
const transcriptionPrompt = `You are transcribing a scanned invoice (factura). Read every piece of text in the image and write it out as plain text, exactly as printed.

Rules:
- Keep the original reading order, top to bottom, one printed line per output line.
- Keep labels and their values on the same line (e.g. "Factura No.: INV-001", "Total: $1.234,56").
- For tables, write the header row and every item row on their own lines and separate columns with at least two spaces.
- Copy numbers exactly as printed, including thousands and decimal separators. Do not convert currencies or formats.
- Do not translate, summarize, or add commentary.
- Do not use markdown, code blocks, or tables with pipes.`

const (
	defaultDPI      = 300
	defaultMaxPages = 10
)

// normalizeMIME lowercases the content type and drops any parameters.
func normalizeMIME(contentType string) string {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if mimeType == "" {
		mimeType = "image/jpeg" // default
	}
	return mimeType
}

// pdfToImages renders up to maxPages pages of a PDF
func pdfToImages(pdfData []byte, dpi float64, maxPages int) ([]image.Image, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	n := doc.NumPage()
	if n == 0 {
		return nil, fmt.Errorf("PDF has no pages")
	}
	if maxPages > 0 && n > maxPages {
		n = maxPages
	}

	pages := make([]image.Image, 0, n)
	for i := 0; i < n; i++ {
		img, err := doc.ImageDPI(i, dpi)
		if err != nil {
			return nil, fmt.Errorf("rendering PDF page %d: %w", i+1, err)
		}
		pages = append(pages, img)
	}
	return pages, nil
}

// decodeImage decodes any supported image format
func decodeImage(imageData []byte, mimeType string) (image.Image, error) {
	// Check for HEIC/HEIF format (common on iPhones) - Go's standard image package doesn't support it
	if isHEICFormat(imageData) || isHEICMimeType(mimeType) {
		img, err := heic.Decode(bytes.NewReader(imageData))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
		return img, nil
	}

	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		if strings.Contains(err.Error(), "unknown format") || strings.Contains(err.Error(), "unsupported") {
			return nil, fmt.Errorf("unsupported image format. Supported formats: JPEG, PNG, GIF, HEIC, HEIF, PDF. Error: %w", err)
		}
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}

// isHEICFormat checks if the image data is in HEIC/HEIF format
// HEIC files typically start with specific magic bytes
func isHEICFormat(data []byte) bool {
	if len(data) < 12 {
		return false
	}
	// ftyp box at offset 4 with brand 'heic', 'heif', 'mif1' or 'msf1'
	if string(data[4:8]) == "ftyp" {
		brand := string(data[8:12])
		if brand == "heic" || brand == "heif" || brand == "mif1" || brand == "msf1" {
			return true
		}
	}
	return false
}

// isHEICMimeType checks if the MIME type indicates HEIC/HEIF format
func isHEICMimeType(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	return strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}

// decodePages turns a PDF or image upload into one image per page
func decodePages(data []byte, contentType string, dpi float64, maxPages int) ([]image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty document")
	}
	if dpi <= 0 {
		dpi = defaultDPI
	}

	mimeType := normalizeMIME(contentType)
	if mimeType == "application/pdf" {
		pages, err := pdfToImages(data, dpi, maxPages)
		if err != nil {
			return nil, fmt.Errorf("converting PDF to image: %w", err)
		}
		return pages, nil
	}

	img, err := decodeImage(data, mimeType)
	if err != nil {
		return nil, err
	}
	return []image.Image{img}, nil
}

// enhance prepares a page for OCR: grayscale, more contrast, slight sharpening.
func enhance(img image.Image) image.Image {
	out := imaging.Grayscale(img)
	out = imaging.AdjustContrast(out, 20)
	return imaging.Sharpen(out, 0.8)
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// preparePNGPages decodes the upload and re-encodes every page as PNG, the
// format all LLM providers accept
func preparePNGPages(data []byte, contentType string, maxPages int) ([][]byte, error) {
	if normalizeMIME(contentType) == "image/png" && !isHEICFormat(data) {
		return [][]byte{data}, nil
	}

	pages, err := decodePages(data, contentType, defaultDPI, maxPages)
	if err != nil {
		return nil, err
	}
	out := make([][]byte, 0, len(pages))
	for _, p := range pages {
		b, err := encodePNG(p)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}
