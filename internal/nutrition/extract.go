package nutrition

import "strings"

// maxScanBytes bounds how much model output the extractor will look at.
const maxScanBytes = 256 << 10

// ExtractJSONObject returns the first top-level balanced {...} span in text.
// Braces inside JSON strings are ignored. Prose, code fences and any further
// objects after the first one are discarded.
func ExtractJSONObject(text string) (string, bool) {
	if len(text) > maxScanBytes {
		text = text[:maxScanBytes]
	}
	start := strings.IndexByte(text, '{')
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escape := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			if escape {
				escape = false
				continue
			}
			switch ch {
			case '\\':
				escape = true
			case '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
