package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mmuhlariholdings/hlavi-agent/errors"
)

// ExecuteCommandTool implements the tool for running OS commands.
type ExecuteCommandTool struct {
	ws *Workspace
}

func (t *ExecuteCommandTool) Name() string { return "execute_command" }
func (t *ExecuteCommandTool) Description() string {
	if len(t.ws.allowedCommands) == 0 {
		return "Executes a command in the workspace root. No commands are currently allowed. Args: command (string)."
	}

	var sb strings.Builder
	sb.WriteString("Executes a command in the workspace root. Args: command (string). Allowed command patterns:")
	for _, re := range t.ws.allowedCommands {
		fmt.Fprintf(&sb, " %s", re.String())
	}
	return sb.String()
}

func (t *ExecuteCommandTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	command, ok := args["command"].(string)
	if !ok {
		return "", errors.New("missing or invalid 'command' argument")
	}
	return t.ws.RunCommand(ctx, command)
}
