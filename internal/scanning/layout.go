package scanning

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"
)

// fragment is a piece of positioned text. Y grows downwards.
type fragment struct {
	X, Y, W, H float64
	Text       string
}

type row struct {
	y     float64
	frags []fragment
}

// layoutText places fragments on a character grid so that table columns
// keep their horizontal alignment as runs of spaces. minGap is the number
// of spaces forced between two fragments on the same row: 0 for glyph
// level input, 1 for word level input.
func layoutText(frags []fragment, minGap int) string {
	if len(frags) == 0 {
		return ""
	}

	charW := charWidth(frags)
	tolerance := math.Max(medianHeight(frags)*0.5, 2.0)

	sorted := make([]fragment, len(frags))
	copy(sorted, frags)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Y < sorted[j].Y })

	minX := math.Inf(1)
	var rows []row
	for _, f := range sorted {
		if strings.TrimSpace(f.Text) == "" {
			continue
		}
		minX = math.Min(minX, f.X)
		if n := len(rows); n > 0 && math.Abs(rows[n-1].y-f.Y) < tolerance {
			rows[n-1].frags = append(rows[n-1].frags, f)
			continue
		}
		rows = append(rows, row{y: f.Y, frags: []fragment{f}})
	}

	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		sort.SliceStable(r.frags, func(i, j int) bool { return r.frags[i].X < r.frags[j].X })
		var b strings.Builder
		width := 0
		for _, f := range r.frags {
			col := int(math.Round((f.X - minX) / charW))
			if width > 0 && col < width+minGap {
				col = width + minGap
			}
			if col > width {
				b.WriteString(strings.Repeat(" ", col-width))
				width = col
			}
			b.WriteString(f.Text)
			width += utf8.RuneCountInString(f.Text)
		}
		lines = append(lines, strings.TrimRight(b.String(), " "))
	}

	return strings.Join(lines, "\n")
}

// charWidth estimates the width of one character from the fragments that
// carry a width.
func charWidth(frags []fragment) float64 {
	var widths []float64
	for _, f := range frags {
		n := utf8.RuneCountInString(strings.TrimSpace(f.Text))
		if n > 0 && f.W > 0 {
			widths = append(widths, f.W/float64(n))
		}
	}
	if w := median(widths); w > 0 {
		return w
	}
	if h := medianHeight(frags); h > 0 {
		return h * 0.5
	}
	return 1
}

func medianHeight(frags []fragment) float64 {
	heights := make([]float64, 0, len(frags))
	for _, f := range frags {
		if f.H > 0 {
			heights = append(heights, f.H)
		}
	}
	return median(heights)
}

func median(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	s := make([]float64, len(v))
	copy(s, v)
	sort.Float64s(s)
	return s[len(s)/2]
}
