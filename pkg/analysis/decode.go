package analysis

import (
	"encoding/json"
	"strings"
)

// ExtractJSONObject returns the first balanced {...} object inside text.
// It tolerates code fences, prose around the object, nested braces, and
// braces inside string literals. ok is false when no balanced object exists.
func ExtractJSONObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
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

// DecodeFirstObject extracts the first balanced JSON object from text and
// unmarshals it into v. It never panics; it reports false on any failure,
// and callers must discard v then.
func DecodeFirstObject(text string, v any) bool {
	raw, found := ExtractJSONObject(text)
	if !found {
		return false
	}
	return json.Unmarshal([]byte(raw), v) == nil
}
