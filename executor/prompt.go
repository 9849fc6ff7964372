package executor

import (
	"fmt"
	"strings"

	"github.com/mmuhlariholdings/hlavi-agent/llm"
	"github.com/mmuhlariholdings/hlavi-agent/ticket"
)

const systemPrompt = `You are a software engineering agent completing one acceptance criterion of a ticket at a time.
Respond with a single JSON object and nothing else:

{
  "summary": "one sentence describing what you did",
  "steps": [
    {"type": "write_file", "path": "relative/path", "content": "full file content"},
    {"type": "delete_file", "path": "relative/path"},
    {"type": "run_command", "command": "go test ./..."},
    {"type": "call_tool", "tool": "tool_name", "args": {}}
  ]
}

Paths are relative to the workspace root. Steps run in order and stop at the first failure.
Use an empty steps list when the criterion is already satisfied.`

// toolDescriber is implemented by appliers that offer call_tool targets.
type toolDescriber interface {
	Describe() string
}

// criterionMessages builds the conversation asking the provider to satisfy
// the criterion at idx. tools lists the call_tool targets, if any.
func criterionMessages(t *ticket.Ticket, idx int, tools string) []llm.Message {
	c := t.AcceptanceCriteria[idx]

	system := systemPrompt
	if tools = strings.TrimSpace(tools); tools != "" {
		system += "\n\nTools available to call_tool:\n" + tools
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Ticket %s: %s\n", t.ID, t.Title)
	if d := strings.TrimSpace(t.Description); d != "" {
		fmt.Fprintf(&sb, "\n%s\n", d)
	}
	sb.WriteString("\nAcceptance criteria:\n")
	for i, ac := range t.AcceptanceCriteria {
		mark := " "
		if ac.Completed || i < idx {
			mark = "x"
		}
		fmt.Fprintf(&sb, "- [%s] %d. %s\n", mark, ac.ID, ac.Description)
	}
	fmt.Fprintf(&sb, "\nComplete criterion %d: %s\n", c.ID, c.Description)

	return []llm.Message{llm.System(system), llm.User(sb.String())}
}
