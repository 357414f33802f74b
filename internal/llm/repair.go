package llm

import "strings"

// ExtractJSON extracts the first complete JSON object from a string that may
// contain extra text. This handles models that add explanations before or
// after the JSON despite instructions.
func ExtractJSON(text string) string {
	// Remove common markdown code block markers.
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	if start == -1 {
		return text // no JSON found; let the parser fail
	}

	braceCount := 0
	inString := false
	escape := false

	for i := start; i < len(text); i++ {
		char := text[i]

		if escape {
			escape = false
			continue
		}
		if char == '\\' {
			escape = true
			continue
		}
		if char == '"' {
			inString = !inString
			continue
		}

		if !inString {
			switch char {
			case '{':
				braceCount++
			case '}':
				braceCount--
				if braceCount == 0 {
					return text[start : i+1]
				}
			}
		}
	}

	return text // no complete object found
}

// RepairJSON applies a best-effort structural repair to model output that
// failed strict parsing: markdown fences are stripped, text outside the
// object is dropped, an unterminated string is closed, trailing commas are
// removed, and unbalanced braces/brackets are closed in nesting order.
// The result is not guaranteed to parse; callers must attempt a second
// parse and degrade on failure.
func RepairJSON(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	if start == -1 {
		return text
	}
	text = text[start:]

	var out strings.Builder
	var stack []byte // open containers, innermost last
	inString := false
	escape := false
	done := false

	for i := 0; i < len(text) && !done; i++ {
		char := text[i]

		if inString {
			out.WriteByte(char)
			if escape {
				escape = false
				continue
			}
			switch char {
			case '\\':
				escape = true
			case '"':
				inString = false
			}
			continue
		}

		switch char {
		case '"':
			inString = true
			out.WriteByte(char)
		case '{', '[':
			stack = append(stack, char)
			out.WriteByte(char)
		case '}', ']':
			trimTrailingComma(&out)
			if len(stack) > 0 {
				// Close the innermost open container regardless of which
				// closer the model produced.
				if stack[len(stack)-1] == '{' {
					out.WriteByte('}')
				} else {
					out.WriteByte(']')
				}
				stack = stack[:len(stack)-1]
				if len(stack) == 0 {
					done = true // ignore trailing garbage after the object
				}
			}
		default:
			out.WriteByte(char)
		}
	}

	if inString {
		out.WriteByte('"')
	}
	trimTrailingComma(&out)

	// Close whatever the model left open, innermost first.
	repaired := out.String()
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			repaired += "}"
		} else {
			repaired += "]"
		}
	}
	return repaired
}

// trimTrailingComma removes a trailing comma (and any whitespace after it)
// from the builder so a closer can follow legally.
func trimTrailingComma(out *strings.Builder) {
	s := strings.TrimRight(out.String(), " \t\r\n")
	if strings.HasSuffix(s, ",") {
		s = s[:len(s)-1]
	}
	out.Reset()
	out.WriteString(s)
}
