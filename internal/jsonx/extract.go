// Package jsonx extracts JSON objects from untrusted model output.
//
// The oracle frequently wraps its JSON in prose, markdown fences, or
// stray control characters. This package narrows such output down to the
// first balanced object span so callers can decode it with confidence.
package jsonx

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

// Extract returns the first balanced JSON object span in response.
// Markdown code fences are stripped first, then unescaped control
// characters that commonly break json.Unmarshal.
func Extract(response string) (string, error) {
	cleaned := stripControl(stripFences(response))

	// Fast path: the whole response is a JSON object.
	trimmed := strings.TrimSpace(cleaned)
	if strings.HasPrefix(trimmed, "{") && json.Valid([]byte(trimmed)) {
		return trimmed, nil
	}

	span, ok := balancedSpan(cleaned)
	if ok && json.Valid([]byte(span)) {
		return span, nil
	}

	preview := response
	if len(preview) > 100 {
		preview = preview[:100] + "..."
	}
	return "", fmt.Errorf("no JSON object found in response: %q", preview)
}

// Decode extracts the first JSON object from response and unmarshals it
// into T.
func Decode[T any](response string) (T, error) {
	var result T
	span, err := Extract(response)
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal([]byte(span), &result); err != nil {
		return result, fmt.Errorf("unmarshal extracted JSON: %w", err)
	}
	return result, nil
}

// DecodeInto extracts the first JSON object from response and unmarshals
// it into the provided pointer. Non-generic variant of Decode.
func DecodeInto(response string, out any) error {
	span, err := Extract(response)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(span), out); err != nil {
		return fmt.Errorf("unmarshal extracted JSON: %w", err)
	}
	return nil
}

// balancedSpan scans for the first '{' and walks forward tracking brace
// depth, honoring string literals and escapes, until the matching '}'.
func balancedSpan(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]

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
				return s[start : i+1], true
			}
		}
	}

	return "", false
}

// stripFences removes a surrounding markdown code block, with or without
// a "json" language tag.
func stripFences(s string) string {
	trimmed := strings.TrimSpace(s)

	if strings.HasPrefix(trimmed, "```json") {
		trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, "```json"))
	} else if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))
	}

	if strings.HasSuffix(trimmed, "```") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, "```"))
	}

	return trimmed
}

// stripControl drops raw control characters except the whitespace JSON
// tolerates between tokens. Escaped sequences inside strings ("\n") are
// multi-byte and unaffected.
func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
