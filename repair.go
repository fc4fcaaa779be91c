package ouicomply

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrMalformedResponse marks model output that no repair strategy could
// turn into valid JSON. Match with errors.Is, or errors.As against
// *MalformedResponseError to recover the raw payload for logging.
var ErrMalformedResponse = errors.New("malformed model response")

// MalformedResponseError carries the original raw text for diagnostics.
type MalformedResponseError struct {
	Raw string
}

func (e *MalformedResponseError) Error() string {
	preview := e.Raw
	if len(preview) > 120 {
		preview = preview[:120] + "..."
	}
	return "malformed model response: " + preview
}

func (e *MalformedResponseError) Unwrap() error { return ErrMalformedResponse }

// SanitizeJSONResponse removes garbage characters often produced by LLMs:
// surrounding whitespace and markdown code fences.
func SanitizeJSONResponse(b []byte) []byte {
	s := strings.TrimSpace(string(b))
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return []byte(strings.TrimSpace(s))
}

// ParseRepair returns raw as valid JSON bytes, applying structural repairs
// in order and stopping at the first that parses:
//
//  1. sanitize and parse as-is
//  2. truncate at the last balanced closing brace/bracket (models like to
//     append prose after the JSON block)
//  3. close an unterminated string literal and any still-open containers
//
// Repairs are heuristic and lossy; callers must treat a repaired payload
// as best effort and tolerate missing fields downstream. Well-formed
// input passes through unaltered apart from fence stripping.
func ParseRepair(raw []byte) ([]byte, error) {
	b := SanitizeJSONResponse(raw)
	if json.Valid(b) {
		return b, nil
	}

	if fixed, ok := truncateBalanced(b); ok && json.Valid(fixed) {
		return fixed, nil
	}

	if fixed, ok := closeUnterminated(b); ok {
		if json.Valid(fixed) {
			return fixed, nil
		}
		if refixed, ok := truncateBalanced(fixed); ok && json.Valid(refixed) {
			return refixed, nil
		}
	}

	return nil, &MalformedResponseError{Raw: string(raw)}
}

// truncateBalanced cuts b at the point where the outermost brace/bracket
// closes, dropping any trailing data.
func truncateBalanced(b []byte) ([]byte, bool) {
	depth := 0
	inString := false
	escaped := false
	opened := false

	for i := 0; i < len(b); i++ {
		c := b[i]
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
		case '{', '[':
			depth++
			opened = true
		case '}', ']':
			depth--
			if opened && depth == 0 {
				return b[:i+1], true
			}
		}
	}
	return nil, false
}

// closeUnterminated detects a payload that ends inside a string literal,
// appends the missing quote, and closes whatever containers remain open.
func closeUnterminated(b []byte) ([]byte, bool) {
	var stack []byte
	inString := false
	escaped := false

	for i := 0; i < len(b); i++ {
		c := b[i]
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
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 && stack[len(stack)-1] == c {
				stack = stack[:len(stack)-1]
			}
		}
	}

	if !inString && len(stack) == 0 {
		return nil, false // nothing to repair
	}

	fixed := make([]byte, 0, len(b)+len(stack)+1)
	fixed = append(fixed, b...)
	if inString {
		fixed = append(fixed, '"')
	}
	for i := len(stack) - 1; i >= 0; i-- {
		fixed = append(fixed, stack[i])
	}
	return fixed, true
}
