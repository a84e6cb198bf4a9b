// Package config loads and validates the Operator service configuration
// from a YAML file with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the main configuration structure for Operator.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Auth        AuthConfig        `yaml:"auth"`
	Browserbase BrowserbaseConfig `yaml:"browserbase"`
	LLM         LLMConfig         `yaml:"llm"`
	Runs        RunsConfig        `yaml:"runs"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// AuthConfig holds the static caller credential required on mutating
// endpoints. An empty token means the server is misconfigured and mutating
// requests are rejected with a 500.
type AuthConfig struct {
	Token string `yaml:"token"`
}

// BrowserbaseConfig holds hosting-provider credentials and endpoint.
type BrowserbaseConfig struct {
	APIKey    string `yaml:"api_key"`
	ProjectID string `yaml:"project_id"`
	BaseURL   string `yaml:"base_url"`
}

// LLMConfig selects the reasoning-model provider used for planning.
type LLMConfig struct {
	// Provider is "openai" or "anthropic".
	Provider  string            `yaml:"provider"`
	OpenAI    LLMProviderConfig `yaml:"openai"`
	Anthropic LLMProviderConfig `yaml:"anthropic"`
}

// LLMProviderConfig configures one reasoning-model backend.
type LLMProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// RunsConfig controls the optional run-history store. An empty path
// disables recording.
type RunsConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig controls structured log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a configuration with sane defaults applied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Browserbase: BrowserbaseConfig{
			BaseURL: "https://api.browserbase.com",
		},
		LLM: LLMConfig{
			Provider: "openai",
			OpenAI: LLMProviderConfig{
				Model: "gpt-4o",
			},
			Anthropic: LLMProviderConfig{
				Model: "claude-sonnet-4-20250514",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads the configuration file at path, expands $VAR references,
// applies environment overrides, and fills defaults. An empty path yields
// a default configuration driven purely by the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

// applyEnv overlays well-known environment variables onto the config.
// Environment values win over file values so deployments can inject
// credentials without editing files.
func (c *Config) applyEnv() {
	if v := os.Getenv("BROWSERBASE_API_KEY"); v != "" {
		c.Browserbase.APIKey = v
	}
	if v := os.Getenv("BROWSERBASE_PROJECT_ID"); v != "" {
		c.Browserbase.ProjectID = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.LLM.OpenAI.APIKey = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		c.LLM.Anthropic.APIKey = v
	}
	if v := os.Getenv("OPERATOR_API_TOKEN"); v != "" {
		c.Auth.Token = v
	}
}

func (c *Config) applyDefaults() {
	def := Default()
	if c.Server.Port == 0 {
		c.Server.Port = def.Server.Port
	}
	if c.Server.Host == "" {
		c.Server.Host = def.Server.Host
	}
	if c.Browserbase.BaseURL == "" {
		c.Browserbase.BaseURL = def.Browserbase.BaseURL
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = def.LLM.Provider
	}
	if c.LLM.OpenAI.Model == "" {
		c.LLM.OpenAI.Model = def.LLM.OpenAI.Model
	}
	if c.LLM.Anthropic.Model == "" {
		c.LLM.Anthropic.Model = def.LLM.Anthropic.Model
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = def.Logging.Format
	}
}

// Validate checks that every credential required before any remote call is
// present. It reports all problems at once.
func (c *Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Browserbase.APIKey) == "" {
		missing = append(missing, "browserbase.api_key (BROWSERBASE_API_KEY)")
	}
	if strings.TrimSpace(c.Browserbase.ProjectID) == "" {
		missing = append(missing, "browserbase.project_id (BROWSERBASE_PROJECT_ID)")
	}
	switch c.LLM.Provider {
	case "openai":
		if strings.TrimSpace(c.LLM.OpenAI.APIKey) == "" {
			missing = append(missing, "llm.openai.api_key (OPENAI_API_KEY)")
		}
	case "anthropic":
		if strings.TrimSpace(c.LLM.Anthropic.APIKey) == "" {
			missing = append(missing, "llm.anthropic.api_key (ANTHROPIC_API_KEY)")
		}
	default:
		return fmt.Errorf("unknown llm provider %q (want openai or anthropic)", c.LLM.Provider)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}
