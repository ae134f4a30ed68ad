package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config models pressflow.yml.
type Config struct {
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
		// DispatchTimeoutSeconds bounds each side effect after a transition.
		DispatchTimeoutSeconds int `yaml:"dispatch_timeout_seconds"`
	} `yaml:"server"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
		Issuer    string `yaml:"issuer"`
	} `yaml:"auth"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Email struct {
		RelayURL  string `yaml:"relay_url"`
		APIKey    string `yaml:"api_key"`
		From      string `yaml:"from"`
		PortalURL string `yaml:"portal_url"`
	} `yaml:"email"`
	LLM struct {
		Endpoint       string `yaml:"endpoint"`
		Model          string `yaml:"model"`
		APIKey         string `yaml:"api_key"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"llm"`
	Nudge struct {
		Enabled   bool   `yaml:"enabled"`
		After     string `yaml:"after"`
		Interval  string `yaml:"interval"`
		BatchSize int    `yaml:"batch_size"`
	} `yaml:"nudge"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Secret         string   `yaml:"secret"`
	Events         []string `yaml:"events"`
	Enabled        *bool    `yaml:"enabled"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

// IsEnabled treats a missing flag as enabled.
func (w WebhookConfig) IsEnabled() bool {
	return w.Enabled == nil || *w.Enabled
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; write one with pf config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("config.server.addr is required")
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("config.log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("config.log.format must be text or json")
	}
	if c.Email.RelayURL != "" {
		if err := validURL(c.Email.RelayURL); err != nil {
			return fmt.Errorf("config.email.relay_url: %w", err)
		}
		if c.Email.From == "" {
			return fmt.Errorf("config.email.from is required when relay_url is set")
		}
	}
	if c.LLM.Endpoint != "" {
		if err := validURL(c.LLM.Endpoint); err != nil {
			return fmt.Errorf("config.llm.endpoint: %w", err)
		}
		if c.LLM.Model == "" {
			return fmt.Errorf("config.llm.model is required when endpoint is set")
		}
	}
	if _, err := c.NudgeAfter(); err != nil {
		return fmt.Errorf("config.nudge.after: %w", err)
	}
	if _, err := c.NudgeInterval(); err != nil {
		return fmt.Errorf("config.nudge.interval: %w", err)
	}
	if c.Nudge.BatchSize < 0 {
		return fmt.Errorf("config.nudge.batch_size must be >= 0")
	}
	for i, hook := range c.Webhooks {
		if hook.URL == "" {
			return fmt.Errorf("config.webhooks[%d].url is required", i)
		}
		if err := validURL(hook.URL); err != nil {
			return fmt.Errorf("config.webhooks[%d].url: %w", i, err)
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("config.webhooks[%d].timeout_seconds must be >= 0", i)
		}
		for _, ev := range hook.Events {
			if strings.TrimSpace(ev) == "" {
				return fmt.Errorf("config.webhooks[%d] has empty event name", i)
			}
		}
	}
	return nil
}

// NudgeAfter is how long a client may stay idle before the onboarding nudge.
func (c *Config) NudgeAfter() (time.Duration, error) {
	return durationOr(c.Nudge.After, 48*time.Hour)
}

func (c *Config) NudgeInterval() (time.Duration, error) {
	return durationOr(c.Nudge.Interval, time.Hour)
}

func (c *Config) DispatchTimeout() time.Duration {
	if c.Server.DispatchTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Server.DispatchTimeoutSeconds) * time.Second
}

func (c *Config) LLMTimeout() time.Duration {
	if c.LLM.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}

func durationOr(v string, def time.Duration) (time.Duration, error) {
	if strings.TrimSpace(v) == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive")
	}
	return d, nil
}

func validURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "pressflow.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Missing keys keep
// their default values.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `server:
  addr: 127.0.0.1:8080
  base_path: /v0
  dispatch_timeout_seconds: 10

auth:
  # set PRESSFLOW_JWT_SECRET instead of committing a secret
  jwt_secret: ""
  issuer: pressflow

log:
  level: info
  format: text

email:
  # leave relay_url empty to log outgoing mail instead of sending it
  relay_url: ""
  from: "PressFlow <desk@pressflow.local>"
  portal_url: http://localhost:3000

llm:
  endpoint: https://api.openai.com/v1/chat/completions
  model: gpt-4o-mini
  timeout_seconds: 60

nudge:
  enabled: false
  after: 48h
  interval: 1h
  batch_size: 50

webhooks: []
`
