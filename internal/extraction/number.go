package extraction

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// '.' groups thousands, ',' marks decimals: 1.234,56
	commaDecimal = []*regexp.Regexp{
		regexp.MustCompile(`^-?\d{1,3}(?:\.\d{3})+(?:,\d+)?$`),
		regexp.MustCompile(`^-?\d+(?:,\d+)?$`),
	}
	// ',' groups thousands, '.' marks decimals: 1,234.56
	pointDecimal = []*regexp.Regexp{
		regexp.MustCompile(`^-?\d{1,3}(?:,\d{3})+(?:\.\d+)?$`),
		regexp.MustCompile(`^-?\d+(?:\.\d+)?$`),
	}
)

// ParseNumber interprets a number as printed on an invoice. The
// comma-decimal convention is tried first; the point-decimal convention
// only when the first reading is not well formed.
func ParseNumber(raw string) (decimal.Decimal, bool) {
	s := cleanNumber(raw)
	if s == "" {
		return decimal.Zero, false
	}

	if matchesAny(commaDecimal, s) {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	} else if matchesAny(pointDecimal, s) {
		s = strings.ReplaceAll(s, ",", "")
	} else {
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// NormalizeNumber returns the canonical string form of raw, or fallback
// when raw is not a number.
func NormalizeNumber(raw, fallback string) string {
	if raw == NotFound {
		return fallback
	}
	d, ok := ParseNumber(raw)
	if !ok {
		return fallback
	}
	return canonical(d)
}

// canonical keeps the scale that was printed, so 119.00 stays 119.00.
func canonical(d decimal.Decimal) string {
	if exp := d.Exponent(); exp < 0 {
		return d.StringFixed(-exp)
	}
	return d.String()
}

func newAmount(raw string) Amount {
	if raw == "" {
		raw = NotFound
	}
	return Amount{Raw: raw, Normalized: NormalizeNumber(raw, NotFound)}
}

func cleanNumber(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '$', '€', '£':
			return -1
		}
		return r
	}, s)
	// sentence punctuation picked up after the amount
	s = strings.TrimRight(s, ".,")
	return s
}

func matchesAny(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
