package normalize

import (
	"fmt"
	"regexp"
	"strings"
)

// The passes below are deliberately independent and ordered; each one is a
// no-op on input that does not exhibit the malformation it targets, so clean
// JSON flows through the whole pipeline unchanged.

var (
	reasoningTagRe   = regexp.MustCompile(`(?s)<thinking>.*?</thinking>`)
	reasoningBlockRe = regexp.MustCompile(`(?s)\[THINKING\].*?\[/THINKING\]`)
	fenceBlockRe     = regexp.MustCompile("(?s)```[a-zA-Z0-9_+.-]*[ \t]*\r?\n?(.*?)```")
)

// stripReasoning removes reasoning-model wrappers from raw output. Some
// providers echo their chain of thought in <thinking> tags or [THINKING]
// blocks before the payload.
func stripReasoning(raw string) string {
	out := reasoningTagRe.ReplaceAllString(raw, "")
	out = reasoningBlockRe.ReplaceAllString(out, "")
	return strings.TrimSpace(out)
}

// stripFences extracts the inner region of a markdown code fence when one is
// present, discarding surrounding prose. Without a fence the input passes
// through untouched.
func stripFences(raw string) string {
	if m := fenceBlockRe.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(raw)
}

// repairStructural trims the candidate to its outermost braces and escapes
// raw control characters inside quoted strings. Models pad JSON with prose
// and emit literal newlines in string values often enough that both repairs
// are table stakes.
func repairStructural(raw string) (string, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("no JSON object boundaries found")
	}
	return escapeControlChars(raw[start : end+1]), nil
}

// escapeControlChars rewrites unescaped control characters that appear inside
// JSON string values. Characters outside strings are left alone; the JSON
// parser will judge those.
func escapeControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
				b.WriteByte(c)
			case c == '\\':
				escaped = true
				b.WriteByte(c)
			case c == '"':
				inString = false
				b.WriteByte(c)
			case c == '\n':
				b.WriteString(`\n`)
			case c == '\r':
				b.WriteString(`\r`)
			case c == '\t':
				b.WriteString(`\t`)
			case c < 0x20:
				fmt.Fprintf(&b, `\u%04x`, c)
			default:
				b.WriteByte(c)
			}
			continue
		}
		if c == '"' {
			inString = true
		}
		b.WriteByte(c)
	}
	return b.String()
}
