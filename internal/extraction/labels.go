package extraction

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed labels.yaml
var defaultLabels []byte

// Field names understood by the extractor.
const (
	FieldClientID      = "cliente_id"
	FieldClientName    = "cliente_nombre"
	FieldClientAddress = "cliente_direccion"
	FieldInvoiceNumber = "factura_numero"
	FieldInvoiceDate   = "factura_fecha"
	FieldSubtotal      = "factura_subtotal"
	FieldTax           = "factura_iva"
	FieldTotal         = "factura_total"
)

// FieldNames lists the scalar fields in output order.
var FieldNames = []string{
	FieldClientID,
	FieldClientName,
	FieldClientAddress,
	FieldInvoiceNumber,
	FieldInvoiceDate,
	FieldSubtotal,
	FieldTax,
	FieldTotal,
}

// FieldRule is the label table entry for one scalar field.
type FieldRule struct {
	Name     string   `yaml:"name"`
	Group    int      `yaml:"group"`
	Optional bool     `yaml:"optional"`
	Patterns []string `yaml:"patterns"`
}

// HeaderVariant names the item table columns in one language.
type HeaderVariant struct {
	Description string `yaml:"description"`
	Quantity    string `yaml:"quantity"`
	Price       string `yaml:"price"`
	Total       string `yaml:"total,omitempty"`
}

// LabelTable is the uncompiled label table, as stored in YAML.
type LabelTable struct {
	Fields       []FieldRule     `yaml:"fields"`
	Headers      []HeaderVariant `yaml:"headers"`
	Terminators  []string        `yaml:"terminators"`
	FallbackItem string          `yaml:"fallback_item"`
}

// ParseLabels decodes a YAML label table.
func ParseLabels(data []byte) (*LabelTable, error) {
	var l LabelTable
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("failed to parse labels: %w", err)
	}
	return &l, nil
}

// LoadLabels reads a YAML label table from disk.
func LoadLabels(path string) (*LabelTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read labels file: %w", err)
	}
	return ParseLabels(data)
}

// DefaultLabels returns the built-in Spanish/English label table.
func DefaultLabels() *LabelTable {
	l, err := ParseLabels(defaultLabels)
	if err != nil {
		panic(err)
	}
	return l
}

type fieldMatcher struct {
	name     string
	group    int
	optional bool
	patterns []*regexp.Regexp
}

type headerMatcher struct {
	description *regexp.Regexp
	quantity    *regexp.Regexp
	price       *regexp.Regexp
	total       *regexp.Regexp
}

// Rules is a compiled label table, safe for concurrent use.
type Rules struct {
	fields      map[string]fieldMatcher
	headers     []headerMatcher
	terminators []*regexp.Regexp
	fallback    *regexp.Regexp
}

func compile(expr string) (*regexp.Regexp, error) {
	re, err := regexp.Compile("(?i)" + expr)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", expr, err)
	}
	return re, nil
}

// Compile validates the label table and compiles every pattern.
func (l *LabelTable) Compile() (*Rules, error) {
	known := make(map[string]bool, len(FieldNames))
	for _, name := range FieldNames {
		known[name] = true
	}

	r := &Rules{fields: make(map[string]fieldMatcher, len(l.Fields))}
	for _, f := range l.Fields {
		if !known[f.Name] {
			return nil, fmt.Errorf("unknown field %q", f.Name)
		}
		if _, dup := r.fields[f.Name]; dup {
			return nil, fmt.Errorf("field %q defined twice", f.Name)
		}
		m := fieldMatcher{name: f.Name, group: f.Group, optional: f.Optional}
		for _, p := range f.Patterns {
			re, err := compile(p)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", f.Name, err)
			}
			m.patterns = append(m.patterns, re)
		}
		r.fields[f.Name] = m
	}

	for i, h := range l.Headers {
		if h.Description == "" || h.Quantity == "" || h.Price == "" {
			return nil, fmt.Errorf("header %d: description, quantity and price are required", i)
		}
		var hm headerMatcher
		var err error
		if hm.description, err = compile(h.Description); err != nil {
			return nil, fmt.Errorf("header %d: %w", i, err)
		}
		if hm.quantity, err = compile(h.Quantity); err != nil {
			return nil, fmt.Errorf("header %d: %w", i, err)
		}
		if hm.price, err = compile(h.Price); err != nil {
			return nil, fmt.Errorf("header %d: %w", i, err)
		}
		if h.Total != "" {
			if hm.total, err = compile(h.Total); err != nil {
				return nil, fmt.Errorf("header %d: %w", i, err)
			}
		}
		r.headers = append(r.headers, hm)
	}

	for _, t := range l.Terminators {
		re, err := compile(t)
		if err != nil {
			return nil, fmt.Errorf("terminator: %w", err)
		}
		r.terminators = append(r.terminators, re)
	}

	if l.FallbackItem != "" {
		re, err := compile(l.FallbackItem)
		if err != nil {
			return nil, fmt.Errorf("fallback item: %w", err)
		}
		if re.NumSubexp() < 3 {
			return nil, fmt.Errorf("fallback item pattern needs at least 3 groups, has %d", re.NumSubexp())
		}
		r.fallback = re
	}

	return r, nil
}

// DefaultRules compiles the built-in label table.
func DefaultRules() *Rules {
	r, err := DefaultLabels().Compile()
	if err != nil {
		panic(err)
	}
	return r
}

// column is a header label position, measured in runes.
type column struct {
	role   int
	offset int
}

const (
	colDescription = iota
	colQuantity
	colPrice
	colTotal
)

// match locates the variant's labels on a single line. Columns are returned
// left to right.
func (h headerMatcher) match(line string) ([]column, bool) {
	cols := make([]column, 0, 4)
	for role, re := range []*regexp.Regexp{h.description, h.quantity, h.price} {
		loc := re.FindStringIndex(line)
		if loc == nil {
			return nil, false
		}
		cols = append(cols, column{role: role, offset: runeOffset(line, loc[0])})
	}
	if h.total != nil {
		price := cols[colPrice].offset
		for _, loc := range h.total.FindAllStringIndex(line, -1) {
			if off := runeOffset(line, loc[0]); off > price {
				cols = append(cols, column{role: colTotal, offset: off})
				break
			}
		}
	}

	sort.SliceStable(cols, func(i, j int) bool { return cols[i].offset < cols[j].offset })
	for i := 1; i < len(cols); i++ {
		if cols[i].offset == cols[i-1].offset {
			return nil, false
		}
	}
	return cols, true
}

func runeOffset(s string, byteOffset int) int {
	n := 0
	for i := range s {
		if i >= byteOffset {
			break
		}
		n++
	}
	return n
}
