// Package toolcall extracts structured tool invocations from free-form
// assistant text, per §4.G. The parser is pure and side-effect-free and
// safe to call repeatedly on growing prefixes of the same text.
package toolcall

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"go_backend/message"
)

type candidate struct {
	start, end int
	name       string
	arguments  string
}

// Parse extracts zero or more tool calls from text. toolNames, when
// non-nil, restricts the permissive function-call shape
// (identifier({…})) to identifiers present in the set — the decision
// recorded for the §9 open question on that shape's ambiguity. Pass nil
// to disable the filter.
func Parse(text string, toolNames map[string]bool) []message.ToolCall {
	var candidates []candidate

	tagged, consumed := findTagged(text)
	candidates = append(candidates, tagged...)

	candidates = append(candidates, findFunctionCalls(text, toolNames, consumed)...)
	consumed = append(consumed, rangesOf(candidates)...)

	candidates = append(candidates, findBareJSON(text, consumed)...)

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].start < candidates[j].start })

	calls := make([]message.ToolCall, 0, len(candidates))
	for i, c := range candidates {
		calls = append(calls, message.ToolCall{
			ID:        callID(i),
			Name:      c.name,
			Arguments: c.arguments,
		})
	}
	return calls
}

func callID(n int) string {
	return "call_" + itoa(n)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

type span struct{ start, end int }

func rangesOf(cs []candidate) []span {
	out := make([]span, len(cs))
	for i, c := range cs {
		out[i] = span{c.start, c.end}
	}
	return out
}

func overlaps(s span, ranges []span) bool {
	for _, r := range ranges {
		if s.start < r.end && r.start < s.end {
			return true
		}
	}
	return false
}

var tagPattern = regexp.MustCompile(`(?s)<tool_call>(.*?)</tool_call>`)

func findTagged(text string) ([]candidate, []span) {
	matches := tagPattern.FindAllStringSubmatchIndex(text, -1)
	var out []candidate
	var consumed []span
	for _, m := range matches {
		fullStart, fullEnd := m[0], m[1]
		innerStart, innerEnd := m[2], m[3]
		inner := text[innerStart:innerEnd]

		obj, ok := firstBraceObject(inner)
		if !ok {
			continue
		}
		name, args, ok := decodeNamedObject(obj)
		if !ok {
			continue
		}
		out = append(out, candidate{start: fullStart, end: fullEnd, name: name, arguments: args})
		consumed = append(consumed, span{fullStart, fullEnd})
	}
	return out, consumed
}

var functionCallHead = regexp.MustCompile(`[A-Za-z_]\w*\(`)

func findFunctionCalls(text string, toolNames map[string]bool, consumed []span) []candidate {
	var out []candidate
	for _, m := range functionCallHead.FindAllStringIndex(text, -1) {
		headStart, parenEnd := m[0], m[1]
		if parenEnd >= len(text) || text[parenEnd] != '{' {
			continue
		}
		s := span{headStart, parenEnd}
		if overlaps(s, consumed) {
			continue
		}

		braceEnd, ok := matchBrace(text, parenEnd)
		if !ok {
			continue
		}
		closeParen := skipSpace(text, braceEnd)
		if closeParen >= len(text) || text[closeParen] != ')' {
			continue
		}

		name := identifierBefore(text, headStart, parenEnd)
		if toolNames != nil && !toolNames[name] {
			continue
		}

		argText := text[parenEnd : braceEnd+1]
		var probe any
		if err := json.Unmarshal([]byte(argText), &probe); err != nil {
			continue
		}

		out = append(out, candidate{start: headStart, end: closeParen + 1, name: name, arguments: argText})
	}
	return out
}

func identifierBefore(text string, start, parenIdx int) string {
	return text[start : parenIdx-1]
}

func skipSpace(text string, i int) int {
	for i < len(text) && (text[i] == ' ' || text[i] == '\t' || text[i] == '\n' || text[i] == '\r') {
		i++
	}
	return i
}

func findBareJSON(text string, consumed []span) []candidate {
	var out []candidate
	i := 0
	for i < len(text) {
		if text[i] != '{' {
			i++
			continue
		}
		end, ok := matchBrace(text, i)
		if !ok {
			i++
			continue
		}
		s := span{i, end + 1}
		if overlaps(s, consumed) {
			i = end + 1
			continue
		}
		obj := text[i : end+1]
		if name, args, ok := decodeNamedObject(obj); ok {
			out = append(out, candidate{start: i, end: end + 1, name: name, arguments: args})
			consumed = append(consumed, s)
		}
		i = end + 1
	}
	return out
}

// matchBrace returns the index of the '}' matching the '{' at openIdx,
// tracking nesting depth and skipping over characters inside JSON
// string literals so that braces in string values don't confuse the
// scanner.
func matchBrace(text string, openIdx int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := openIdx; i < len(text); i++ {
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
				return i, true
			}
		}
	}
	return 0, false
}

// firstBraceObject returns the first complete {...} substring in s, if any.
func firstBraceObject(s string) (string, bool) {
	idx := strings.IndexByte(s, '{')
	if idx < 0 {
		return "", false
	}
	end, ok := matchBrace(s, idx)
	if !ok {
		return "", false
	}
	return s[idx : end+1], true
}

// decodeNamedObject parses obj as a JSON object containing a "name"
// field and resolves its argument payload per §4.G: "arguments"
// (preferred), else "parameters", else the remaining keys collectively.
func decodeNamedObject(obj string) (name string, argsJSON string, ok bool) {
	var decoded map[string]any
	if err := json.Unmarshal([]byte(obj), &decoded); err != nil {
		return "", "", false
	}
	rawName, exists := decoded["name"]
	if !exists {
		return "", "", false
	}
	name, isString := rawName.(string)
	if !isString || name == "" {
		return "", "", false
	}

	if args, exists := decoded["arguments"]; exists {
		return name, marshalOrEmpty(args), true
	}
	if params, exists := decoded["parameters"]; exists {
		return name, marshalOrEmpty(params), true
	}

	remaining := make(map[string]any, len(decoded))
	for k, v := range decoded {
		if k == "name" {
			continue
		}
		remaining[k] = v
	}
	return name, marshalOrEmpty(remaining), true
}

func marshalOrEmpty(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
