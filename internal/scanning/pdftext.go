package scanning

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// pdfText reads the embedded text layer of a digital PDF, laid out page by
// page. Scanned PDFs come back empty.
func pdfText(data []byte, maxPages int) (text string, pages int, err error) {
	// ledongthuc/pdf panics on some malformed content streams
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reading PDF text layer: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, fmt.Errorf("opening PDF: %w", err)
	}

	n := r.NumPage()
	if maxPages > 0 && n > maxPages {
		n = maxPages
	}

	var out []string
	for i := 1; i <= n; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		pages++

		texts := p.Content().Text
		frags := make([]fragment, 0, len(texts))
		for _, t := range texts {
			frags = append(frags, fragment{
				X:    t.X,
				Y:    -t.Y, // PDF space grows upwards
				W:    t.W,
				H:    t.FontSize,
				Text: t.S,
			})
		}
		out = append(out, layoutText(frags, 0))
	}

	return strings.Join(out, "\n\n"), pages, nil
}
