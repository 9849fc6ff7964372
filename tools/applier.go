package tools

import (
	"context"

	"github.com/mmuhlariholdings/hlavi-agent/errors"
	"github.com/mmuhlariholdings/hlavi-agent/executor"
	"github.com/mmuhlariholdings/hlavi-agent/logging"
)

// Applier performs action steps in a workspace. It satisfies
// executor.Applier.
type Applier struct {
	ws       *Workspace
	registry *ToolRegistry
	logger   *logging.Logger
}

// NewApplier returns an Applier for ws. registry may be nil, in which case
// call_tool steps fail.
func NewApplier(ws *Workspace, registry *ToolRegistry, logger *logging.Logger) *Applier {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Applier{ws: ws, registry: registry, logger: logger}
}

// Apply runs the steps in order and stops at the first failure. The changes
// of the steps that succeeded are returned along with the error.
func (a *Applier) Apply(ctx context.Context, action *executor.Action) ([]executor.FileChange, error) {
	var changes []executor.FileChange
	for i, step := range action.Steps {
		if err := ctx.Err(); err != nil {
			return changes, errors.Execution(err, "step %d (%s) not started", i+1, step.Type)
		}

		change, err := a.applyStep(ctx, step)
		if err != nil {
			return changes, errors.Execution(err, "step %d (%s)", i+1, step.Type)
		}
		if change != nil {
			changes = append(changes, *change)
		}
	}
	return changes, nil
}

func (a *Applier) applyStep(ctx context.Context, step executor.Step) (*executor.FileChange, error) {
	switch step.Type {
	case executor.StepWriteFile:
		created, err := a.ws.WriteFile(step.Path, step.Content)
		if err != nil {
			return nil, err
		}
		ct := executor.Modified
		if created {
			ct = executor.Created
		}
		a.logger.Debug("file written", "path", step.Path, "change", ct.String())
		return &executor.FileChange{Path: step.Path, ChangeType: ct}, nil

	case executor.StepDeleteFile:
		if err := a.ws.DeleteFile(step.Path); err != nil {
			return nil, err
		}
		a.logger.Debug("file deleted", "path", step.Path)
		return &executor.FileChange{Path: step.Path, ChangeType: executor.Deleted}, nil

	case executor.StepRunCommand:
		out, err := a.ws.RunCommand(ctx, step.Command)
		a.logger.Debug("command finished", "command", step.Command, "output", out)
		return nil, err

	case executor.StepCallTool:
		if a.registry == nil {
			return nil, errors.New("no tools are available")
		}
		tool, ok := a.registry.GetTool(step.Tool)
		if !ok {
			return nil, errors.New("tool '%s' is not registered", step.Tool)
		}
		args := step.Args
		if args == nil {
			args = map[string]interface{}{}
		}
		out, err := tool.Execute(ctx, args)
		a.logger.Debug("tool finished", "tool", step.Tool, "output", out)
		return nil, err

	default:
		return nil, errors.New("unknown step type '%s'", step.Type)
	}
}

// Describe lists the callable tools. The executor adds it to its prompt.
func (a *Applier) Describe() string {
	if a.registry == nil {
		return ""
	}
	return a.registry.Describe()
}
