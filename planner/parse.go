package planner

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/mmuhlariholdings/hlavi-agent/errors"
	"github.com/mmuhlariholdings/hlavi-agent/llm"
)

// listItem matches "- x", "* x", "• x", "1. x" and "1) x", with an optional
// markdown checkbox.
var listItem = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+(?:\[[ xX]\]\s+)?(.+?)\s*$`)

// ParseCriteria reads criteria from provider text. A JSON array of strings
// is preferred, bare or in a fenced block; a bulleted or numbered list is
// accepted otherwise.
func ParseCriteria(text string) ([]string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.Planning("provider returned an empty response")
	}

	candidates := make([]string, 0, 3)
	if block, ok := llm.FencedBlock(text); ok {
		candidates = append(candidates, block)
	}
	candidates = append(candidates, text)
	if arr, ok := llm.Enclosed(text, '[', ']'); ok {
		candidates = append(candidates, arr)
	}
	for _, c := range candidates {
		if criteria, ok := parseJSON(c); ok {
			return nonEmpty(criteria)
		}
	}

	var criteria []string
	for _, line := range strings.Split(text, "\n") {
		if m := listItem.FindStringSubmatch(line); m != nil {
			criteria = append(criteria, m[1])
		}
	}
	if len(criteria) == 0 {
		return nil, errors.Planning("could not read acceptance criteria from the response")
	}
	return nonEmpty(criteria)
}

func parseJSON(s string) ([]string, bool) {
	var list []string
	if err := json.Unmarshal([]byte(s), &list); err == nil {
		return list, true
	}
	var wrapped struct {
		Criteria []string `json:"criteria"`
	}
	if err := json.Unmarshal([]byte(s), &wrapped); err == nil && wrapped.Criteria != nil {
		return wrapped.Criteria, true
	}
	return nil, false
}

func nonEmpty(in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil, errors.Planning("response contained no acceptance criteria")
	}
	return out, nil
}
