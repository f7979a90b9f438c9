package extraction

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

var (
	cellToken    = regexp.MustCompile(`\S+(?:[ \t]\S+)*`)
	numericCell  = regexp.MustCompile(`^[$€£]?[ \t]*\d[\d.,]*$`)
	integerToken = regexp.MustCompile(`\d+`)
	decimalToken = regexp.MustCompile(`\d[\d.,]*`)
)

// ExtractItems locates the item table by its header line and turns every
// row up to the first terminator into a LineItem. Without a recognizable
// header, rows are matched line by line with the fallback pattern.
func (r *Rules) ExtractItems(text string) []LineItem {
	lines := strings.Split(text, "\n")
	if idx, cols, ok := r.findHeader(lines); ok {
		return r.parseTable(lines[idx+1:], cols)
	}
	return r.parseLoose(text)
}

func (r *Rules) findHeader(lines []string) (int, []column, bool) {
	for i, line := range lines {
		for _, h := range r.headers {
			if cols, ok := h.match(line); ok {
				return i, cols, true
			}
		}
	}
	return 0, nil, false
}

func (r *Rules) isTerminator(line string) bool {
	if strings.TrimSpace(line) == "" {
		return true
	}
	for _, re := range r.terminators {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

func (r *Rules) parseTable(rows []string, cols []column) []LineItem {
	items := []LineItem{}
	for _, line := range rows {
		if r.isTerminator(line) {
			break
		}
		cells := sliceRow(line, cols)
		filled := 0
		for _, c := range cells {
			if c != "" {
				filled++
			}
		}
		if filled < 3 {
			continue
		}

		byRole := make([]string, colTotal+1)
		for i, c := range cols {
			byRole[c.role] = cells[i]
		}
		items = append(items, buildItem(byRole))
	}
	return items
}

// sliceRow splits a table row into one cell per column. A row whose
// blank-separated cells line up one to one with the header is taken as is
// when its amount cells are numeric or every cell overlaps its column;
// otherwise it is cut at the header offsets.
func sliceRow(line string, cols []column) []string {
	if cells, ok := alignedCells(line, cols); ok {
		return cells
	}

	runes := []rune(line)
	out := make([]string, len(cols))
	for i := range cols {
		start := 0
		if i > 0 {
			start = min(cols[i].offset, len(runes))
		}
		end := len(runes)
		if i+1 < len(cols) {
			end = min(cols[i+1].offset, len(runes))
		}
		if start < end {
			out[i] = strings.TrimSpace(string(runes[start:end]))
		}
	}
	return out
}

func alignedCells(line string, cols []column) ([]string, bool) {
	spans := cellToken.FindAllStringIndex(line, -1)
	if len(spans) != len(cols) {
		return nil, false
	}

	cells := make([]string, len(spans))
	numeric, overlapping := true, true
	for i, span := range spans {
		cells[i] = line[span[0]:span[1]]
		if cols[i].role != colDescription && !numericCell.MatchString(cells[i]) {
			numeric = false
		}

		start := utf8.RuneCountInString(line[:span[0]])
		end := start + utf8.RuneCountInString(cells[i])
		colStart := 0
		if i > 0 {
			colStart = cols[i].offset
		}
		colEnd := end
		if i+1 < len(cols) {
			colEnd = cols[i+1].offset
		}
		if start >= colEnd || end <= colStart {
			overlapping = false
		}
	}
	return cells, numeric || overlapping
}

func buildItem(cells []string) LineItem {
	description := cells[colDescription]
	if description == "" {
		description = NotFound
	}

	qty := integerToken.FindString(cells[colQuantity])
	if qty == "" {
		qty = integerToken.FindString(cells[colPrice])
	}
	price := decimalToken.FindString(cells[colPrice])
	if price == "" {
		price = decimalToken.FindString(cells[colQuantity])
	}

	return newItem(description, qty, price, decimalToken.FindString(cells[colTotal]))
}

func (r *Rules) parseLoose(text string) []LineItem {
	items := []LineItem{}
	if r.fallback == nil {
		return items
	}
	for _, m := range r.fallback.FindAllStringSubmatch(text, -1) {
		description := strings.TrimSpace(m[1])
		if r.isTerminator(description) {
			continue
		}
		total := ""
		if len(m) > 4 {
			total = m[4]
		}
		items = append(items, newItem(description, m[2], m[3], total))
	}
	return items
}

func newItem(description, qty, price, total string) LineItem {
	item := LineItem{
		Description: description,
		Quantity:    newAmount(qty),
		UnitPrice:   newAmount(price),
		LineTotal:   newAmount(total),
	}
	if !item.LineTotal.Found() && item.Quantity.Found() && item.UnitPrice.Found() {
		q, qerr := decimal.NewFromString(item.Quantity.Normalized)
		p, perr := decimal.NewFromString(item.UnitPrice.Normalized)
		if qerr == nil && perr == nil {
			item.LineTotal.Normalized = canonical(q.Mul(p))
		}
	}
	return item
}
