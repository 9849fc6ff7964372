package executor

import (
	"encoding/json"
	"testing"

	"github.com/mmuhlariholdings/hlavi-agent/errors"
)

func TestParseAction(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		steps   int
		summary string
	}{
		{"bare", `{"summary":"s","steps":[{"type":"run_command","command":"go test ./..."}]}`, 1, "s"},
		{"fenced", "Here you go:\n```json\n{\"summary\":\"f\",\"steps\":[]}\n```", 0, "f"},
		{"prose", `Plan: {"summary":"p","steps":[{"type":"delete_file","path":"old.go"}]} Done.`, 1, "p"},
		{"tool", `{"steps":[{"type":"call_tool","tool":"search","args":{"q":"x"}}]}`, 1, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := ParseAction(tt.text)
			if err != nil {
				t.Fatalf("ParseAction: %v", err)
			}
			if len(a.Steps) != tt.steps || a.Summary != tt.summary {
				t.Errorf("action = %+v", a)
			}
		})
	}
}

func TestParseActionErrors(t *testing.T) {
	tests := map[string]string{
		"empty":        "   ",
		"prose":        "I cannot do that.",
		"unknown step": `{"steps":[{"type":"format_disk"}]}`,
		"no path":      `{"steps":[{"type":"write_file","content":"x"}]}`,
		"no command":   `{"steps":[{"type":"run_command","command":"  "}]}`,
		"no tool":      `{"steps":[{"type":"call_tool"}]}`,
	}
	for name, text := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseAction(text); !errors.Is(err, errors.ErrExecution) {
				t.Errorf("ParseAction() = %v, want execution error", err)
			}
		})
	}
}

func TestTextEncodings(t *testing.T) {
	for s := Idle; s <= Failed; s++ {
		got, err := ParseState(s.String())
		if err != nil || got != s {
			t.Errorf("ParseState(%q) = %v, %v", s.String(), got, err)
		}
	}
	if _, err := ParseState("sleeping"); err == nil {
		t.Error("expected error for unknown state")
	}
	if m, err := ParseMode("Unattended"); err != nil || m != Unattended {
		t.Errorf("ParseMode = %v, %v", m, err)
	}

	data, err := json.Marshal(FileChange{Path: "a.go", ChangeType: Deleted})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"path":"a.go","change_type":"deleted"}` {
		t.Errorf("FileChange JSON = %s", data)
	}
	var fc FileChange
	if err := json.Unmarshal([]byte(`{"path":"b","change_type":"bogus"}`), &fc); err == nil {
		t.Error("expected error for unknown change type")
	}
}
