package executor

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mmuhlariholdings/hlavi-agent/errors"
	"github.com/mmuhlariholdings/hlavi-agent/llm"
)

// StepType names an action step.
type StepType string

const (
	StepWriteFile  StepType = "write_file"
	StepDeleteFile StepType = "delete_file"
	StepRunCommand StepType = "run_command"
	StepCallTool   StepType = "call_tool"
)

// Step is one unit of work in an Action.
type Step struct {
	Type    StepType       `json:"type"`
	Path    string         `json:"path,omitempty"`
	Content string         `json:"content,omitempty"`
	Command string         `json:"command,omitempty"`
	Tool    string         `json:"tool,omitempty"`
	Args    map[string]any `json:"args,omitempty"`
}

// Action is what the provider proposes for a criterion. Changes lists side
// effects the provider reports having made itself; they are passed through
// to the result after the applied steps' changes.
type Action struct {
	Summary string       `json:"summary"`
	Steps   []Step       `json:"steps"`
	Changes []FileChange `json:"changes,omitempty"`
}

// Applier performs an action's steps and reports the resulting file changes
// in step order. On error the changes made so far are still returned.
type Applier interface {
	Apply(ctx context.Context, action *Action) ([]FileChange, error)
}

// ApplierFunc adapts a function to Applier.
type ApplierFunc func(ctx context.Context, action *Action) ([]FileChange, error)

func (f ApplierFunc) Apply(ctx context.Context, action *Action) ([]FileChange, error) {
	return f(ctx, action)
}

// ParseAction reads an Action from provider text: a bare JSON object, one
// inside a fenced block, or one embedded in prose.
func ParseAction(text string) (*Action, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.Execution(nil, "provider returned an empty action")
	}

	candidates := make([]string, 0, 3)
	if block, ok := llm.FencedBlock(text); ok {
		candidates = append(candidates, block)
	}
	candidates = append(candidates, text)
	if obj, ok := llm.Enclosed(text, '{', '}'); ok {
		candidates = append(candidates, obj)
	}

	var lastErr error
	for _, c := range candidates {
		var a Action
		if err := json.Unmarshal([]byte(c), &a); err != nil {
			lastErr = err
			continue
		}
		if err := a.validate(); err != nil {
			return nil, err
		}
		return &a, nil
	}
	return nil, errors.Execution(lastErr, "could not parse action")
}

func (a *Action) validate() error {
	for i, s := range a.Steps {
		switch s.Type {
		case StepWriteFile, StepDeleteFile:
			if s.Path == "" {
				return errors.Execution(nil, "step %d (%s) has no path", i+1, s.Type)
			}
		case StepRunCommand:
			if strings.TrimSpace(s.Command) == "" {
				return errors.Execution(nil, "step %d has no command", i+1)
			}
		case StepCallTool:
			if s.Tool == "" {
				return errors.Execution(nil, "step %d has no tool", i+1)
			}
		default:
			return errors.Execution(nil, "step %d has unknown type %q", i+1, s.Type)
		}
	}
	return nil
}
