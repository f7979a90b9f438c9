package extraction

import "strings"

var lineEndings = strings.NewReplacer(
	"\r\n", "\n",
	"\r", "\n",
	"\f", "\n\n",
	"\x00", "\n\n",
	"\v", "\n",
	"\t", "  ",
	"\u00a0", " ",
)

// Normalize prepares OCR output for extraction: line endings become "\n",
// tabs become two spaces, page breaks become blank lines and trailing
// blanks are dropped. Runs of spaces inside a line are kept since they
// separate table columns.
func Normalize(text string) string {
	text = lineEndings.Replace(text)
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " ")
	}
	return strings.Join(lines, "\n")
}
