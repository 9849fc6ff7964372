package llm

import "strings"

// FencedBlock returns the body of the first ``` fenced block in text, with
// any language tag dropped.
func FencedBlock(text string) (string, bool) {
	start := strings.Index(text, "```")
	if start < 0 {
		return "", false
	}
	rest := text[start+3:]
	nl := strings.IndexByte(rest, '\n')
	if nl < 0 {
		return "", false
	}
	rest = rest[nl+1:]
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

// Enclosed returns the widest substring of text that starts with open and
// ends with close, e.g. the outermost JSON object in surrounding prose.
func Enclosed(text string, open, close byte) (string, bool) {
	i := strings.IndexByte(text, open)
	j := strings.LastIndexByte(text, close)
	if i < 0 || j <= i {
		return "", false
	}
	return text[i : j+1], true
}
