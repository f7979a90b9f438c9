package scanning

import "strings"

// cleanTranscript strips what chat models wrap around a transcription:
// markdown code fences and surrounding blank lines. Leading spaces on the
// first line are kept since they can carry column alignment.
func cleanTranscript(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	if trimmed := strings.TrimSpace(text); strings.HasPrefix(trimmed, "```") {
		// drop the opening fence together with its language tag
		text = ""
		if i := strings.Index(trimmed, "\n"); i >= 0 {
			text = trimmed[i+1:]
		}
		text = strings.TrimSuffix(strings.TrimRight(text, "\n "), "```")
	}

	return strings.TrimRight(strings.TrimLeft(text, "\n"), "\n ")
}
