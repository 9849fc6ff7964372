// Package mcp exposes tools served by external Model Context Protocol
// servers so actions can call them.
package mcp

import (
	"context"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/mmuhlariholdings/hlavi-agent/errors"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Client manages the connection to a single MCP server subprocess.
type Client struct {
	Name    string
	cmd     *exec.Cmd
	session *mcpsdk.ClientSession
	tools   map[string]*Tool // keyed by the server's own tool name
}

// NewClient starts the MCP server subprocess and discovers the tools it
// provides.
func NewClient(ctx context.Context, name, command string, args []string) (*Client, error) {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(command) == "" {
		return nil, errors.Config("MCP server needs a name and a command")
	}

	cmd := exec.Command(command, args...)
	cmd.Stderr = os.Stderr
	sdkClient := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "hlavi-agent", Version: "v0.1.0"}, nil)
	session, err := sdkClient.Connect(ctx, mcpsdk.NewCommandTransport(cmd))
	if err != nil {
		kill(cmd)
		return nil, errors.Wrapf(err, "failed to connect to MCP server '%s'", name)
	}
	client := &Client{
		Name:    name,
		cmd:     cmd,
		session: session,
		tools:   make(map[string]*Tool),
	}

	params := &mcpsdk.ListToolsParams{}
	for {
		list, err := session.ListTools(ctx, params)
		if err != nil {
			client.Close()
			return nil, errors.Wrapf(err, "failed to list tools from MCP server '%s'", name)
		}
		for _, t := range list.Tools {
			client.tools[t.Name] = &Tool{
				serverName:  name,
				toolName:    t.Name,
				description: t.Description,
				client:      client,
			}
		}
		if list.NextCursor == "" {
			break
		}
		params.Cursor = list.NextCursor
	}
	return client, nil
}

// Tools returns the server's tools ordered by name.
func (c *Client) Tools() []*Tool {
	out := make([]*Tool, 0, len(c.tools))
	for _, t := range c.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].toolName < out[j].toolName })
	return out
}

// GetTool returns a tool by the server's own name for it.
func (c *Client) GetTool(toolName string) (*Tool, bool) {
	tool, ok := c.tools[toolName]
	return tool, ok
}

// Close ends the session and terminates the subprocess.
func (c *Client) Close() error {
	if c.session != nil {
		c.session.Close()
		c.session = nil
	}
	return kill(c.cmd)
}

func kill(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

// Tool is a tool served by an MCP server. It satisfies tools.Tool.
type Tool struct {
	serverName  string
	toolName    string
	description string
	client      *Client
}

// Name returns "<server>.<tool>". A dot is used because some providers
// reject colons in tool names.
func (t *Tool) Name() string {
	return QualifiedName(t.serverName, t.toolName)
}

func (t *Tool) Description() string {
	return t.description
}

// Execute calls the tool and returns its text content.
func (t *Tool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	if t.client.session == nil {
		return "", errors.New("MCP server '%s' is closed", t.serverName)
	}
	result, err := t.client.session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      t.toolName,
		Arguments: args,
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to call tool '%s'", t.Name())
	}
	text := textOf(result.Content)
	if result.IsError {
		return text, errors.New("tool '%s' reported an error: %s", t.Name(), text)
	}
	return text, nil
}

// QualifiedName joins a server and tool name.
func QualifiedName(server, tool string) string {
	return server + "." + tool
}

func textOf(content []mcpsdk.Content) string {
	var sb strings.Builder
	for _, c := range content {
		if tc, ok := c.(*mcpsdk.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	return sb.String()
}
