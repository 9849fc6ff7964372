package config

import (
	"os"
	"path/filepath"

	"github.com/mmuhlariholdings/hlavi-agent/errors"
	"gopkg.in/yaml.v3"
)

// Dir is the per-user and per-project directory holding config and runs.
const Dir = ".hlavi"

// FileName is the config file looked up inside Dir.
const FileName = "config.yaml"

type FilesystemAccess struct {
	Hidden   []string `yaml:"hidden"`
	ReadOnly []string `yaml:"read_only"`
}

type MCPServer struct {
	Name    string   `yaml:"name"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

// WorkspaceConfig bounds what executed actions may touch.
type WorkspaceConfig struct {
	Root             string           `yaml:"root"`
	AllowedCommands  []string         `yaml:"allowed_commands"`
	FilesystemAccess FilesystemAccess `yaml:"filesystem_access"`
	MCPServers       []MCPServer      `yaml:"mcp_servers"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type Config struct {
	Agent     AgentConfig     `yaml:"agent"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// Default returns the configuration used before any file is read.
func Default() *Config {
	cfg := &Config{
		Agent: DefaultAgentConfig(),
		Workspace: WorkspaceConfig{
			Root: ".",
		},
		Logging: LoggingConfig{Level: "info"},
	}
	// The agent's own directory is never visible to actions.
	cfg.Workspace.FilesystemAccess.Hidden = append(cfg.Workspace.FilesystemAccess.Hidden, Dir, Dir+"/**")
	return cfg
}

// LoadConfig loads configuration from the user's home directory and the current
// working directory, with the latter taking precedence. Missing API keys are
// then filled from the provider's environment variable.
func LoadConfig() (*Config, error) {
	cfg := Default()

	// Load user-level config first
	home, err := os.UserHomeDir()
	if err == nil {
		userConfigPath := filepath.Join(home, Dir, FileName)
		if _, err := os.Stat(userConfigPath); err == nil {
			if err := LoadFile(userConfigPath, cfg); err != nil {
				return nil, errors.Wrapf(err, "error loading user config")
			}
		}
	}

	// Load project-level config, overriding user-level
	wd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrapf(err, "could not get working directory")
	}
	projectConfigPath := filepath.Join(wd, Dir, FileName)
	if _, err := os.Stat(projectConfigPath); err == nil {
		if err := LoadFile(projectConfigPath, cfg); err != nil {
			return nil, errors.Wrapf(err, "error loading project config")
		}
	}

	ApplyEnv(&cfg.Agent, os.Getenv)
	return cfg, nil
}

// LoadFile decodes the YAML file at path on top of cfg. Keys absent from the
// file keep their current values.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// ApplyEnv fills an empty API key from the provider's conventional
// environment variable.
func ApplyEnv(c *AgentConfig, getenv func(string) string) {
	switch p := c.Provider.(type) {
	case *AnthropicProvider:
		if p.APIKey == "" {
			p.APIKey = getenv("ANTHROPIC_API_KEY")
		}
	case *OpenAIProvider:
		if p.APIKey == "" {
			p.APIKey = getenv("OPENAI_API_KEY")
		}
	case *GeminiProvider:
		if p.APIKey == "" {
			p.APIKey = getenv("GEMINI_API_KEY")
		}
	case *BedrockProvider:
		if p.Region == "" {
			p.Region = getenv("AWS_REGION")
		}
		if p.Region == "" {
			p.Region = getenv("AWS_DEFAULT_REGION")
		}
	}
}
