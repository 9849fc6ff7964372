package config

import (
	"math"

	"github.com/mmuhlariholdings/hlavi-agent/errors"
	"gopkg.in/yaml.v3"
)

const (
	DefaultMaxRetries  uint    = 3
	DefaultTemperature float64 = 0.7
	DefaultModel               = "claude-3-5-sonnet-20241022"
)

// AgentConfig selects the model provider and the generation tunables shared
// by the planner and the executor. Treat it as immutable once validated; it
// is safe to share between concurrent executors.
type AgentConfig struct {
	Provider    ProviderConfig
	MaxRetries  uint
	Temperature float64
}

// DefaultAgentConfig returns an Anthropic config with no API key. It does
// not validate until a key is supplied.
func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		Provider:    &AnthropicProvider{Model: DefaultModel},
		MaxRetries:  DefaultMaxRetries,
		Temperature: DefaultTemperature,
	}
}

// Clone returns a copy of c that shares no provider state with it.
func (c *AgentConfig) Clone() AgentConfig {
	out := *c
	if c.Provider != nil {
		out.Provider = c.Provider.clone()
	}
	return out
}

// Validate checks the active provider's credential or endpoint and the
// temperature range. It has no side effects.
func (c *AgentConfig) Validate() error {
	if c == nil || c.Provider == nil {
		return errors.NotConfigured("")
	}
	if err := c.Provider.validate(); err != nil {
		return err
	}
	if math.IsNaN(c.Temperature) || c.Temperature < 0.0 || c.Temperature > 1.0 {
		return errors.Config("Temperature must be between 0.0 and 1.0")
	}
	return nil
}

// agentYAML is the on-disk shape of the agent section. Pointers distinguish
// absent keys from zero values so later files only override what they set.
type agentYAML struct {
	Provider    yaml.Node `yaml:"provider"`
	MaxRetries  *uint     `yaml:"max_retries"`
	Temperature *float64  `yaml:"temperature"`
}

// UnmarshalYAML decodes the agent section on top of the current values.
// The provider mapping is tagged by its kind key:
//
//	provider:
//	  kind: anthropic
//	  api_key: sk-...
//	  model: claude-3-5-sonnet-20241022
func (c *AgentConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw agentYAML
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.MaxRetries != nil {
		c.MaxRetries = *raw.MaxRetries
	}
	if raw.Temperature != nil {
		c.Temperature = *raw.Temperature
	}
	if raw.Provider.Kind == 0 {
		return nil
	}

	var tag struct {
		Kind string `yaml:"kind"`
	}
	if err := raw.Provider.Decode(&tag); err != nil {
		return err
	}
	kind := ProviderKind("")
	if tag.Kind != "" {
		k, err := ParseProviderKind(tag.Kind)
		if err != nil {
			return errors.Config(err.Error())
		}
		kind = k
	} else if c.Provider != nil {
		kind = c.Provider.Kind()
	} else {
		return errors.Config("provider kind is required")
	}

	// Same kind as before: overlay so a project file can change only the
	// model and keep the user-level key.
	p := c.Provider
	if p == nil || p.Kind() != kind {
		p = newProvider(kind)
	}
	if err := raw.Provider.Decode(p); err != nil {
		return err
	}
	c.Provider = p
	return nil
}

// MarshalYAML writes the config back in the shape UnmarshalYAML reads.
func (c AgentConfig) MarshalYAML() (interface{}, error) {
	out := map[string]interface{}{
		"max_retries": c.MaxRetries,
		"temperature": c.Temperature,
	}
	if c.Provider != nil {
		var fields map[string]interface{}
		b, err := yaml.Marshal(c.Provider)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &fields); err != nil {
			return nil, err
		}
		if fields == nil {
			fields = map[string]interface{}{}
		}
		fields["kind"] = string(c.Provider.Kind())
		out["provider"] = fields
	}
	return out, nil
}
