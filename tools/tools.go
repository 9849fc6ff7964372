// Package tools is the action layer: it performs the steps of the actions
// the model proposes inside a bounded workspace and reports the files they
// changed.
package tools

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/mmuhlariholdings/hlavi-agent/config"
	"github.com/mmuhlariholdings/hlavi-agent/errors"
	"github.com/mmuhlariholdings/hlavi-agent/logging"
	"github.com/mmuhlariholdings/hlavi-agent/tools/mcp"
)

// Tool defines the interface for any action the agent can take.
type Tool interface {
	Name() string
	Description() string
	Execute(ctx context.Context, args map[string]interface{}) (string, error)
}

// ToolRegistry holds all available tools.
type ToolRegistry struct {
	tools      map[string]Tool
	mcpClients []*mcp.Client
	logger     *logging.Logger
}

// NewToolRegistry registers the built-in tools for ws.
func NewToolRegistry(ws *Workspace, logger *logging.Logger) *ToolRegistry {
	if logger == nil {
		logger = logging.Nop()
	}
	r := &ToolRegistry{tools: make(map[string]Tool), logger: logger}

	r.Register(&ReadFileTool{ws: ws})
	r.Register(&ListFilesTool{ws: ws})
	r.Register(&ExecuteCommandTool{ws: ws})
	return r
}

// ConnectMCP starts every configured MCP server and registers its tools as
// "<server>.<tool>". Servers that fail to start are logged and skipped.
func (r *ToolRegistry) ConnectMCP(ctx context.Context, servers []config.MCPServer) {
	for _, s := range servers {
		client, err := mcp.NewClient(ctx, s.Name, s.Command, s.Args)
		if err != nil {
			r.logger.Warn("MCP server unavailable", "server", s.Name, "error", err.Error())
			continue
		}
		r.mcpClients = append(r.mcpClients, client)
		for _, t := range client.Tools() {
			r.Register(t)
		}
		r.logger.Info("MCP server connected", "server", s.Name, "tools", len(client.Tools()))
	}
}

func (r *ToolRegistry) Register(t Tool) {
	r.tools[t.Name()] = t
}

func (r *ToolRegistry) GetTool(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names in sorted order.
func (r *ToolRegistry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe lists the tools for inclusion in a prompt.
func (r *ToolRegistry) Describe() string {
	var sb strings.Builder
	for _, name := range r.Names() {
		fmt.Fprintf(&sb, "- %s: %s\n", name, strings.TrimSpace(r.tools[name].Description()))
	}
	return sb.String()
}

// Close stops every MCP server started by ConnectMCP.
func (r *ToolRegistry) Close() error {
	var errs []error
	for _, c := range r.mcpClients {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.mcpClients = nil
	return errors.Join(errs...)
}

// isPathRestricted checks if a slash-separated path matches any of the
// glob patterns. Patterns are validated by NewWorkspace.
func isPathRestricted(path string, patterns []string) bool {
	for _, pattern := range patterns {
		if match, _ := doublestar.Match(pattern, path); match {
			return true
		}
	}
	return false
}

// isCommandAllowed checks if a command matches an entry of the allowlist.
func isCommandAllowed(command string, allowed []*regexp.Regexp) bool {
	for _, re := range allowed {
		if re.MatchString(command) {
			return true
		}
	}
	return false
}
