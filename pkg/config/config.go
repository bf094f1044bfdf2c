// Copyright 2026 © The Agentloop Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads agentloop settings from defaults, an optional YAML
// file and AGENTLOOP_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/jllopis/agentloop/pkg/goal"
)

// EnvPrefix prefixes every environment override. The first underscore after
// the prefix separates the section from the key: AGENTLOOP_LLM_API_KEY sets
// llm.api_key.
const EnvPrefix = "AGENTLOOP_"

// Model providers.
const (
	ProviderGroq   = "groq"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// Transcript drivers.
const (
	TranscriptNone   = "none"
	TranscriptFile   = "file"
	TranscriptSQLite = "sqlite"
)

type Config struct {
	Log        LogConfig        `koanf:"log"`
	LLM        LLMConfig        `koanf:"llm"`
	Agent      AgentConfig      `koanf:"agent"`
	Workspace  WorkspaceConfig  `koanf:"workspace"`
	Transcript TranscriptConfig `koanf:"transcript"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
	MCP        MCPConfig        `koanf:"mcp"`
	Goals      []GoalConfig     `koanf:"goals"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type LLMConfig struct {
	Provider      string        `koanf:"provider"` // groq, openai, ollama
	Model         string        `koanf:"model"`
	BaseURL       string        `koanf:"base_url"`
	APIKey        string        `koanf:"api_key"`
	MaxTokens     int           `koanf:"max_tokens"`
	Temperature   float64       `koanf:"temperature"`
	Timeout       time.Duration `koanf:"timeout"`
	RetryAttempts int           `koanf:"retry_attempts"`
	RetryDelay    time.Duration `koanf:"retry_delay"`
}

type AgentConfig struct {
	ID            string `koanf:"id"`
	MaxIterations int    `koanf:"max_iterations"`
	MemoryWindow  int    `koanf:"memory_window"`
	Input         string `koanf:"input"`
}

type WorkspaceConfig struct {
	Root       string   `koanf:"root"`
	Extensions []string `koanf:"extensions"`
}

type TranscriptConfig struct {
	Driver string `koanf:"driver"` // none, file, sqlite
	Path   string `koanf:"path"`
}

type TelemetryConfig struct {
	Exporter     string `koanf:"exporter"` // none, stdout, otlp
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	OTLPInsecure bool   `koanf:"otlp_insecure"`
	ServiceName  string `koanf:"service_name"`
}

type MCPConfig struct {
	Servers []MCPServerConfig `koanf:"servers"`
}

// MCPServerConfig describes a stdio MCP server whose tools become actions.
type MCPServerConfig struct {
	Name    string   `koanf:"name"`
	Command string   `koanf:"command"`
	Args    []string `koanf:"args"`
	Env     []string `koanf:"env"`
}

type GoalConfig struct {
	Priority    int    `koanf:"priority"`
	Name        string `koanf:"name"`
	Description string `koanf:"description"`
}

var defaults = map[string]any{
	"log.level":  "info",
	"log.format": "text",

	"llm.provider":       ProviderGroq,
	"llm.model":          "llama-3.3-70b-versatile",
	"llm.max_tokens":     1024,
	"llm.timeout":        60 * time.Second,
	"llm.retry_attempts": 3,
	"llm.retry_delay":    500 * time.Millisecond,

	"agent.id":             "file-explorer",
	"agent.max_iterations": 50,
	"agent.memory_window":  0,
	"agent.input":          "List the files in the project and read each file's content.",

	"workspace.root":       ".",
	"workspace.extensions": []string{".py"},

	"transcript.driver": TranscriptNone,

	"telemetry.exporter":     "none",
	"telemetry.service_name": "agentloop",

	"goals": []map[string]any{
		{
			"priority":    1,
			"name":        "Gather Information",
			"description": "Get files list using tools and then Read each file in the project",
		},
		{
			"priority":    1,
			"name":        "Terminate",
			"description": "Call the terminate call when you have read all the files and provide the content of the README in the terminate message",
		},
	},
}

// Load reads the configuration. An empty path skips the file layer.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	for key, v := range defaults {
		if err := k.Set(key, v); err != nil {
			return nil, fmt.Errorf("set default %s: %w", key, err)
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.LLM.APIKey = apiKeyFallback(cfg.LLM)
	return &cfg, nil
}

// envKey maps AGENTLOOP_LLM_API_KEY to llm.api_key.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, key, found := strings.Cut(s, "_")
	if !found {
		return section
	}
	return section + "." + key
}

func apiKeyFallback(llm LLMConfig) string {
	if llm.APIKey != "" {
		return llm.APIKey
	}
	switch llm.Provider {
	case ProviderGroq:
		return os.Getenv("GROQ_API_KEY")
	case ProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	}
	return ""
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.LLM.Provider {
	case ProviderGroq, ProviderOpenAI:
		if c.LLM.APIKey == "" {
			errs = append(errs, fmt.Errorf("llm.api_key is required for provider %s", c.LLM.Provider))
		}
	case ProviderOllama:
	default:
		errs = append(errs, fmt.Errorf("llm.provider %q is not supported", c.LLM.Provider))
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		errs = append(errs, errors.New("llm.model is required"))
	}
	if c.LLM.MaxTokens < 0 {
		errs = append(errs, errors.New("llm.max_tokens must not be negative"))
	}
	if c.LLM.RetryAttempts < 1 {
		errs = append(errs, errors.New("llm.retry_attempts must be at least 1"))
	}

	if c.Agent.MaxIterations < 1 {
		errs = append(errs, errors.New("agent.max_iterations must be at least 1"))
	}
	if c.Agent.MemoryWindow < 0 {
		errs = append(errs, errors.New("agent.memory_window must not be negative"))
	}

	switch c.Transcript.Driver {
	case "", TranscriptNone:
	case TranscriptFile, TranscriptSQLite:
		if c.Transcript.Path == "" {
			errs = append(errs, fmt.Errorf("transcript.path is required for driver %s", c.Transcript.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("transcript.driver %q is not supported", c.Transcript.Driver))
	}

	switch c.Telemetry.Exporter {
	case "", "none", "stdout":
	case "otlp":
		if c.Telemetry.OTLPEndpoint == "" {
			errs = append(errs, errors.New("telemetry.otlp_endpoint is required for the otlp exporter"))
		}
	default:
		errs = append(errs, fmt.Errorf("telemetry.exporter %q is not supported", c.Telemetry.Exporter))
	}

	seen := make(map[string]bool, len(c.MCP.Servers))
	for i, s := range c.MCP.Servers {
		if s.Name == "" || s.Command == "" {
			errs = append(errs, fmt.Errorf("mcp.servers[%d] needs a name and a command", i))
			continue
		}
		if seen[s.Name] {
			errs = append(errs, fmt.Errorf("mcp.servers: duplicate name %q", s.Name))
		}
		seen[s.Name] = true
	}

	if _, err := c.GoalList(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// GoalList converts the configured goals.
func (c *Config) GoalList() ([]goal.Goal, error) {
	if len(c.Goals) == 0 {
		return nil, errors.New("at least one goal is required")
	}
	out := make([]goal.Goal, 0, len(c.Goals))
	for i, gc := range c.Goals {
		g, err := goal.New(gc.Priority, gc.Name, gc.Description)
		if err != nil {
			return nil, fmt.Errorf("goals[%d]: %w", i, err)
		}
		out = append(out, g)
	}
	return out, nil
}
