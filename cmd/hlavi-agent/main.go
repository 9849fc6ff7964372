package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/mmuhlariholdings/hlavi-agent/agent"
	"github.com/mmuhlariholdings/hlavi-agent/config"
	"github.com/mmuhlariholdings/hlavi-agent/llm"
	"github.com/mmuhlariholdings/hlavi-agent/logging"
	"github.com/mmuhlariholdings/hlavi-agent/session"
	"github.com/mmuhlariholdings/hlavi-agent/tools"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdin, os.Stdout).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type globalFlags struct {
	root     string
	logLevel string
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	var g globalFlags
	cmd := &cobra.Command{
		Use:          "hlavi-agent",
		Short:        "Plan and execute tickets with a language model",
		SilenceUsage: true,
	}
	cmd.SetIn(in)
	cmd.SetOut(out)
	cmd.PersistentFlags().StringVar(&g.root, "root", "", "workspace root, overriding workspace.root")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn or error")

	cmd.AddCommand(planCmd(&g))
	cmd.AddCommand(runCmd(&g))
	cmd.AddCommand(approveCmd(&g))
	cmd.AddCommand(statusCmd(&g))
	return cmd
}

// env is what every command loads before doing anything.
type env struct {
	cfg    *config.Config
	logger *logging.Logger
}

func loadEnv(g *globalFlags) (*env, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	if g.root != "" {
		cfg.Workspace.Root = g.root
	}
	if g.logLevel != "" {
		cfg.Logging.Level = g.logLevel
	}

	logFile := cfg.Logging.File
	if logFile == "" {
		logFile = filepath.Join(cfg.Workspace.Root, config.Dir, "agent.log")
	}
	logger, err := logging.New(logFile, cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, logger: logger}, nil
}

func (e *env) Close() error { return e.logger.Close() }

func (e *env) runsDir() string { return session.Dir(e.cfg.Workspace.Root) }

type agentOptions struct {
	mode agent.Mode
	// dryRun replaces the provider with a scripted one and skips the action
	// layer, so nothing leaves the process and no file is touched.
	dryRun bool
	// withTools wires the workspace tools and MCP servers as the applier.
	withTools bool
	logger    *logging.Logger
}

// newAgent builds an agent from the loaded config. The returned func
// releases provider and MCP connections.
func (e *env) newAgent(ctx context.Context, o agentOptions) (*agent.Agent, func(), error) {
	agentCfg := e.cfg.Agent
	opts := []agent.Option{agent.WithLogger(o.logger)}

	if o.dryRun {
		// The scripted provider ignores its config; give it one that validates.
		agentCfg.Provider = &config.LocalProvider{Endpoint: "dry-run", Model: "mock"}
		a, err := agent.New(&agentCfg, o.mode, dryRunProvider(), opts...)
		return a, func() {}, err
	}

	if err := agentCfg.Validate(); err != nil {
		return nil, nil, err
	}
	provider, err := llm.New(ctx, agentCfg.Provider)
	if err != nil {
		return nil, nil, err
	}
	var closers []io.Closer
	if c, ok := provider.(io.Closer); ok {
		closers = append(closers, c)
	}
	release := func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				o.logger.Warn("failed to release connection", "error", err.Error())
			}
		}
	}

	if o.withTools {
		ws, err := tools.NewWorkspace(e.cfg.Workspace)
		if err != nil {
			release()
			return nil, nil, err
		}
		registry := tools.NewToolRegistry(ws, o.logger)
		registry.ConnectMCP(ctx, e.cfg.Workspace.MCPServers)
		closers = append(closers, registry)
		opts = append(opts, agent.WithApplier(tools.NewApplier(ws, registry, o.logger)))
	}

	a, err := agent.New(&agentCfg, o.mode, provider, opts...)
	if err != nil {
		release()
		return nil, nil, err
	}
	return a, release, nil
}

func dryRunProvider() *llm.MockProvider {
	return llm.NewMockProvider(llm.MockResponse{Text: `{"summary": "dry run, no changes made", "steps": []}`})
}
