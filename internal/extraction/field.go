package extraction

import (
	"regexp"
	"strings"
)

// ExtractField returns the value of the first pattern that matches text
// with a non-empty value, or NotFound. The value is read from group; if
// that group does not exist or did not participate in the match, the last
// group is used, then the whole match.
func ExtractField(text string, patterns []*regexp.Regexp, group int) string {
	for _, re := range patterns {
		loc := re.FindStringSubmatchIndex(text)
		if loc == nil {
			continue
		}
		if v := matchValue(text, loc, group); v != "" {
			return v
		}
	}
	return NotFound
}

func matchValue(text string, loc []int, group int) string {
	groups := len(loc)/2 - 1
	submatch := func(g int) string {
		if g < 0 || g > groups || loc[2*g] < 0 {
			return ""
		}
		return strings.TrimSpace(text[loc[2*g]:loc[2*g+1]])
	}

	if group >= 1 {
		if v := submatch(group); v != "" {
			return v
		}
	}
	if groups >= 1 {
		if v := submatch(groups); v != "" {
			return v
		}
	}
	return submatch(0)
}

func (m fieldMatcher) extract(text string, warnings *Warnings) string {
	v := ExtractField(text, m.patterns, m.group)
	if v == NotFound && !m.optional {
		warnings.Addf("could not extract field %s", m.name)
	}
	return v
}
