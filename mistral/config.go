package mistral

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the file form of the client options.
//
//	api_key: ${MISTRAL_API_KEY}
//	base_url: https://api.mistral.ai
//	api_version: v1
//	timeout: 2m
//	user_agent: my-app/1.0
//	sanitize: true
type Config struct {
	APIKey     string        `yaml:"api_key"`
	BaseURL    string        `yaml:"base_url"`
	APIVersion string        `yaml:"api_version"`
	UserAgent  string        `yaml:"user_agent"`
	Timeout    time.Duration `yaml:"timeout"`
	Sanitize   *bool         `yaml:"sanitize"`
}

// LoadConfig reads a YAML config file. Environment references such as
// ${MISTRAL_API_KEY} are expanded before parsing.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML config data.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// Options converts the config into client options. Unset fields keep the
// client defaults.
func (c *Config) Options() []Option {
	var opts []Option
	if c.APIKey != "" {
		opts = append(opts, WithAPIKey(c.APIKey))
	}
	if c.BaseURL != "" {
		opts = append(opts, WithBaseURL(c.BaseURL))
	}
	if c.APIVersion != "" {
		opts = append(opts, WithAPIVersion(c.APIVersion))
	}
	if c.UserAgent != "" {
		opts = append(opts, WithUserAgent(c.UserAgent))
	}
	if c.Timeout > 0 {
		opts = append(opts, WithTimeout(c.Timeout))
	}
	if c.Sanitize != nil && !*c.Sanitize {
		opts = append(opts, WithoutSanitization())
	}
	return opts
}
